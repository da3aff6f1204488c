package sync

import (
	"sort"
	gosync "sync"
	"time"

	"github.com/QuilibriumNetwork/quorum-shared/pkg/logger"
)

// Default session timing. RequestExpiry bounds candidate collection;
// the aggressive timeout bounds waiting once a first candidate exists.
const (
	DefaultRequestExpiry         = 30 * time.Second
	DefaultAggressiveSyncTimeout = time.Second
)

// Candidate is a peer that answered our sync-request with a sync-info.
type Candidate struct {
	InboxAddress string
	Summary      Summary
}

// Session tracks one in-flight sync round for a space. A collecting session
// exists iff its expiry is in the future; expired ones are reaped lazily on
// access. A session already in progress is not reaped by expiry; it lives
// until completion, cancellation or replacement.
type Session struct {
	SpaceID    string
	ChannelID  string
	Expiry     time.Time
	Candidates []Candidate
	InProgress bool
	Target     *Candidate

	aggressiveTimer *time.Timer
	expiryTimer     *time.Timer
}

func (s *Session) stopTimers() {
	if s.aggressiveTimer != nil {
		s.aggressiveTimer.Stop()
		s.aggressiveTimer = nil
	}
	if s.expiryTimer != nil {
		s.expiryTimer.Stop()
		s.expiryTimer = nil
	}
}

// InitiateFunc is invoked when a sync target has been selected. Errors are
// the host's to surface; the session manager only logs them.
type InitiateFunc func(spaceID string, target Candidate)

// SessionManager owns the per-space session table and its timers.
type SessionManager struct {
	mu       gosync.Mutex
	sessions map[string]*Session

	requestExpiry     time.Duration
	aggressiveTimeout time.Duration
	onInitiate        InitiateFunc
}

// NewSessionManager builds a manager with the given timing. onInitiate may
// be nil when the host drives selection itself via BeginSync.
func NewSessionManager(requestExpiry, aggressiveTimeout time.Duration, onInitiate InitiateFunc) *SessionManager {
	if requestExpiry <= 0 {
		requestExpiry = DefaultRequestExpiry
	}
	if aggressiveTimeout <= 0 {
		aggressiveTimeout = DefaultAggressiveSyncTimeout
	}
	return &SessionManager{
		sessions:          make(map[string]*Session),
		requestExpiry:     requestExpiry,
		aggressiveTimeout: aggressiveTimeout,
		onInitiate:        onInitiate,
	}
}

// Open creates (or replaces) the session for a space and arms the expiry
// timer. Returns the session's expiry instant.
func (m *SessionManager) Open(spaceID, channelID string) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.sessions[spaceID]; ok {
		old.stopTimers()
	}
	s := &Session{
		SpaceID:   spaceID,
		ChannelID: channelID,
		Expiry:    time.Now().Add(m.requestExpiry),
	}
	s.expiryTimer = time.AfterFunc(m.requestExpiry, func() { m.fireSelection(spaceID) })
	m.sessions[spaceID] = s
	sessionsOpened.Inc()
	return s.Expiry
}

// AddCandidate appends a candidate in arrival order. The first candidate
// arms the aggressive timer; later candidates reschedule it. Candidates
// arriving after expiry are discarded.
func (m *SessionManager) AddCandidate(spaceID string, c Candidate) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.liveLocked(spaceID)
	if s == nil || s.InProgress {
		return false
	}
	s.Candidates = append(s.Candidates, c)
	// scheduleSyncInitiation replaces any existing timer
	if s.aggressiveTimer != nil {
		s.aggressiveTimer.Stop()
	}
	s.aggressiveTimer = time.AfterFunc(m.aggressiveTimeout, func() { m.fireSelection(spaceID) })
	return true
}

// fireSelection runs on either timer: picks the best candidate and hands it
// to the host callback. Host errors must not alter session state, so the
// callback runs outside the lock under a recover.
func (m *SessionManager) fireSelection(spaceID string) {
	m.mu.Lock()
	// Raw lookup: the firing timer IS the Collecting→Selected transition,
	// so it must not be raced out by lazy expiry reaping.
	s := m.sessions[spaceID]
	if s == nil || s.InProgress {
		m.mu.Unlock()
		return
	}
	s.stopTimers()
	best := SelectBestCandidate(s.Candidates)
	if best == nil {
		delete(m.sessions, spaceID)
		m.mu.Unlock()
		return
	}
	target := *best
	cb := m.onInitiate
	m.mu.Unlock()

	if cb == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("sync_initiate_callback_panic", "space", spaceID, "panic", r)
		}
	}()
	cb(spaceID, target)
}

// SelectBestCandidate picks by message count descending, then member count
// descending; the sort is stable so the earliest arrival wins ties.
func SelectBestCandidate(candidates []Candidate) *Candidate {
	if len(candidates) == 0 {
		return nil
	}
	sorted := append([]Candidate(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Summary.MessageCount != sorted[j].Summary.MessageCount {
			return sorted[i].Summary.MessageCount > sorted[j].Summary.MessageCount
		}
		return sorted[i].Summary.MemberCount > sorted[j].Summary.MemberCount
	})
	best := sorted[0]
	return &best
}

// BeginSync marks the session in progress against the chosen target. When
// the session has no candidates it is deleted and nil is returned.
func (m *SessionManager) BeginSync(spaceID string) *Candidate {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Raw lookup: a session selected by the expiry timer transitions into
	// Syncing even though its collection window just closed.
	s := m.sessions[spaceID]
	if s == nil {
		return nil
	}
	best := SelectBestCandidate(s.Candidates)
	if best == nil {
		s.stopTimers()
		delete(m.sessions, spaceID)
		return nil
	}
	s.stopTimers()
	s.InProgress = true
	s.Target = best
	return best
}

// Complete deletes the session after a final delta was applied.
func (m *SessionManager) Complete(spaceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[spaceID]; ok {
		s.stopTimers()
		delete(m.sessions, spaceID)
	}
}

// Cancel clears timers and deletes the session unconditionally.
func (m *SessionManager) Cancel(spaceID string) {
	m.Complete(spaceID)
}

// HasActiveSession reports whether a live session exists, reaping it when
// expired.
func (m *SessionManager) HasActiveSession(spaceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveLocked(spaceID) != nil
}

// Snapshot returns copies of all live sessions, reaping expired ones.
func (m *SessionManager) Snapshot() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Session, 0, len(m.sessions))
	for id := range m.sessions {
		if s := m.liveLocked(id); s != nil {
			cp := *s
			cp.Candidates = append([]Candidate(nil), s.Candidates...)
			cp.aggressiveTimer, cp.expiryTimer = nil, nil
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SpaceID < out[j].SpaceID })
	return out
}

// liveLocked returns the session for spaceID, deleting it first when
// expired. Callers hold m.mu.
func (m *SessionManager) liveLocked(spaceID string) *Session {
	s, ok := m.sessions[spaceID]
	if !ok {
		return nil
	}
	if time.Now().After(s.Expiry) && !s.InProgress {
		s.stopTimers()
		delete(m.sessions, spaceID)
		return nil
	}
	return s
}

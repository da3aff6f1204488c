package sync

import (
	gosync "sync"
	"time"

	"github.com/QuilibriumNetwork/quorum-shared/pkg/models"
)

// DefaultTombstoneMaxAge is the horizon beyond which tombstones are
// reapable.
const DefaultTombstoneMaxAge = 30 * 24 * time.Hour

// TombstoneLog is the append-only per-process deletion log. The host
// persists tombstones and reloads the log on startup; readers always get
// copies.
type TombstoneLog struct {
	mu     gosync.Mutex
	list   []models.Tombstone
	maxAge time.Duration
}

// NewTombstoneLog builds a log with the given reaping horizon.
func NewTombstoneLog(maxAge time.Duration) *TombstoneLog {
	if maxAge <= 0 {
		maxAge = DefaultTombstoneMaxAge
	}
	return &TombstoneLog{maxAge: maxAge}
}

// Load replaces the log contents, typically from persisted state at
// startup.
func (l *TombstoneLog) Load(ts []models.Tombstone) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.list = append([]models.Tombstone(nil), ts...)
	tombstoneCount.Set(float64(len(l.list)))
}

// Record appends one tombstone. Duplicate (message, space, channel) keys
// replace the previous record's timestamp.
func (l *TombstoneLog) Record(t models.Tombstone) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, old := range l.list {
		if old.MessageID == t.MessageID && old.SpaceID == t.SpaceID && old.ChannelID == t.ChannelID {
			l.list[i] = t
			return
		}
	}
	l.list = append(l.list, t)
	tombstoneCount.Set(float64(len(l.list)))
}

// All returns a copy of the log.
func (l *TombstoneLog) All() []models.Tombstone {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.Tombstone(nil), l.list...)
}

// ForChannel returns the deleted message IDs recorded for one channel.
func (l *TombstoneLog) ForChannel(spaceID, channelID string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var ids []string
	for _, t := range l.list {
		if t.SpaceID == spaceID && t.ChannelID == channelID {
			ids = append(ids, t.MessageID)
		}
	}
	return ids
}

// Cleanup drops tombstones older than the horizon and returns the removed
// records so the host can purge persisted copies.
func (l *TombstoneLog) Cleanup(now time.Time) []models.Tombstone {
	cutoff := uint64(now.Add(-l.maxAge).UnixMilli())
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.list[:0]
	var removed []models.Tombstone
	for _, t := range l.list {
		if t.DeletedAt < cutoff {
			removed = append(removed, t)
			continue
		}
		kept = append(kept, t)
	}
	l.list = kept
	tombstoneCount.Set(float64(len(l.list)))
	return removed
}

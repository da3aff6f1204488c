package sync

import (
	"context"
	"encoding/hex"
	"fmt"
	"sort"
	gosync "sync"

	"github.com/QuilibriumNetwork/quorum-shared/pkg/hashing"
	"github.com/QuilibriumNetwork/quorum-shared/pkg/logger"
	"github.com/QuilibriumNetwork/quorum-shared/pkg/models"
)

type channelKey struct {
	space   string
	channel string
}

// cacheEntry is the in-memory snapshot of one (space, channel). The entry
// exclusively owns its maps and the 32-byte XOR accumulator; accessors hand
// out defensive copies only. entry.mu serializes every operation on the
// entry, including the initial load.
type cacheEntry struct {
	mu gosync.Mutex

	spaceID   string
	channelID string
	loaded    bool

	messages      map[string]models.Message
	members       map[string]models.Member
	digests       map[string]MessageDigest
	memberDigests map[string]MemberDigest

	oldest uint64
	newest uint64
	// XOR of SHA-256(messageId) over every cached message.
	manifestHash [32]byte
}

// CacheManager owns the per-channel payload caches. Entries are created
// lazily on first access and live until invalidated.
type CacheManager struct {
	mu      gosync.Mutex
	entries map[channelKey]*cacheEntry

	store       Storage
	maxMessages int
}

// NewCacheManager builds a manager reading through to store, loading at
// most maxMessages messages per channel.
func NewCacheManager(store Storage, maxMessages int) *CacheManager {
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	return &CacheManager{
		entries:     make(map[channelKey]*cacheEntry),
		store:       store,
		maxMessages: maxMessages,
	}
}

func (c *CacheManager) entry(spaceID, channelID string) *cacheEntry {
	k := channelKey{spaceID, channelID}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	if !ok {
		e = &cacheEntry{
			spaceID:       spaceID,
			channelID:     channelID,
			messages:      make(map[string]models.Message),
			members:       make(map[string]models.Member),
			digests:       make(map[string]MessageDigest),
			memberDigests: make(map[string]MemberDigest),
		}
		c.entries[k] = e
	}
	return e
}

// peek returns the entry only if it already exists, without creating it;
// the entry may not be loaded yet, so callers check loaded under entry.mu.
func (c *CacheManager) peek(spaceID, channelID string) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[channelKey{spaceID, channelID}]
}

// get returns the loaded entry, performing the initial storage load when
// needed. The entry is returned locked; the caller must unlock it.
func (c *CacheManager) get(ctx context.Context, spaceID, channelID string) (*cacheEntry, error) {
	e := c.entry(spaceID, channelID)
	e.mu.Lock()
	if e.loaded {
		return e, nil
	}
	if err := c.load(ctx, e); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.loaded = true
	cacheEntries.Set(float64(c.Len()))
	return e, nil
}

// load fills the entry from storage: the newest maxMessages messages plus
// the space member list.
func (c *CacheManager) load(ctx context.Context, e *cacheEntry) error {
	remaining := c.maxMessages
	cursor := ""
	for remaining > 0 {
		limit := remaining
		if limit > 200 {
			limit = 200
		}
		res, err := c.store.GetMessages(ctx, GetMessagesRequest{
			SpaceID:   e.spaceID,
			ChannelID: e.channelID,
			Limit:     limit,
			Cursor:    cursor,
			Direction: DirectionBackward,
		})
		if err != nil {
			return fmt.Errorf("load messages for %s/%s: %w", e.spaceID, e.channelID, err)
		}
		for _, m := range res.Messages {
			if err := e.insert(m); err != nil {
				return err
			}
		}
		remaining -= len(res.Messages)
		if res.NextCursor == "" || len(res.Messages) == 0 {
			break
		}
		cursor = res.NextCursor
	}

	members, err := c.store.GetSpaceMembers(ctx, e.spaceID)
	if err != nil {
		return fmt.Errorf("load members for %s: %w", e.spaceID, err)
	}
	for _, m := range members {
		e.members[m.Address] = m
		e.memberDigests[m.Address] = BuildMemberDigest(m)
	}
	logger.Debug("payload_cache_loaded",
		"space", e.spaceID, "channel", e.channelID,
		"messages", len(e.messages), "members", len(e.members))
	return nil
}

// insert adds a message during initial load; same accounting as
// UpsertMessage (a repeated ID replaces the record without touching the
// hash) but without the loaded check.
func (e *cacheEntry) insert(m models.Message) error {
	d, err := BuildMessageDigest(m)
	if err != nil {
		return err
	}
	if _, exists := e.messages[m.ID]; !exists {
		e.xorID(m.ID)
	}
	e.messages[m.ID] = m.Clone()
	e.digests[m.ID] = d
	e.expandBounds(m.CreatedDate)
	return nil
}

func (e *cacheEntry) xorID(id string) {
	h := hashing.IDHash(id)
	for i := range e.manifestHash {
		e.manifestHash[i] ^= h[i]
	}
}

func (e *cacheEntry) expandBounds(created uint64) {
	if len(e.messages) == 1 {
		e.oldest, e.newest = created, created
		return
	}
	if created < e.oldest {
		e.oldest = created
	}
	if created > e.newest {
		e.newest = created
	}
}

// recomputeBounds rescans all cached messages. Called only when a removed
// message sat on a boundary.
func (e *cacheEntry) recomputeBounds() {
	if len(e.messages) == 0 {
		e.oldest, e.newest = 0, 0
		return
	}
	first := true
	for _, m := range e.messages {
		if first {
			e.oldest, e.newest = m.CreatedDate, m.CreatedDate
			first = false
			continue
		}
		if m.CreatedDate < e.oldest {
			e.oldest = m.CreatedDate
		}
		if m.CreatedDate > e.newest {
			e.newest = m.CreatedDate
		}
	}
}

// Warm ensures the cache for (space, channel) is loaded.
func (c *CacheManager) Warm(ctx context.Context, spaceID, channelID string) error {
	e, err := c.get(ctx, spaceID, channelID)
	if err != nil {
		return err
	}
	e.mu.Unlock()
	return nil
}

// UpsertMessage applies an incremental O(1) update. A message ID not seen
// before is XORed into the manifest hash; replacing an existing message
// leaves the hash unchanged. No-op when the channel has never been loaded.
func (c *CacheManager) UpsertMessage(spaceID, channelID string, m models.Message) error {
	e := c.peek(spaceID, channelID)
	if e == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return nil
	}
	d, err := BuildMessageDigest(m)
	if err != nil {
		return err
	}
	if _, exists := e.messages[m.ID]; !exists {
		e.xorID(m.ID)
	}
	e.messages[m.ID] = m.Clone()
	e.digests[m.ID] = d
	e.expandBounds(m.CreatedDate)
	return nil
}

// RemoveMessage removes a message and XORs its ID hash back out (XOR
// self-cancellation). Boundary timestamps are recomputed only when the
// removed message held a boundary.
func (c *CacheManager) RemoveMessage(spaceID, channelID, messageID string) {
	e := c.peek(spaceID, channelID)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return
	}
	m, ok := e.messages[messageID]
	if !ok {
		return
	}
	delete(e.messages, messageID)
	delete(e.digests, messageID)
	e.xorID(messageID)
	if m.CreatedDate == e.oldest || m.CreatedDate == e.newest {
		e.recomputeBounds()
	}
}

// UpsertMember applies an O(1) member update.
func (c *CacheManager) UpsertMember(spaceID, channelID string, m models.Member) {
	e := c.peek(spaceID, channelID)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return
	}
	e.members[m.Address] = m
	e.memberDigests[m.Address] = BuildMemberDigest(m)
}

// RemoveMember drops a member from the cached maps.
func (c *CacheManager) RemoveMember(spaceID, channelID, address string) {
	e := c.peek(spaceID, channelID)
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return
	}
	delete(e.members, address)
	delete(e.memberDigests, address)
}

// Invalidate drops one channel's cache, or every cache for the space when
// no channel is given.
func (c *CacheManager) Invalidate(spaceID string, channelID ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(channelID) > 0 {
		delete(c.entries, channelKey{spaceID, channelID[0]})
	} else {
		for k := range c.entries {
			if k.space == spaceID {
				delete(c.entries, k)
			}
		}
	}
	cacheEntries.Set(float64(len(c.entries)))
}

// Len reports the number of live cache entries.
func (c *CacheManager) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Summary returns the O(1) channel summary.
func (c *CacheManager) Summary(ctx context.Context, spaceID, channelID string) (Summary, error) {
	e, err := c.get(ctx, spaceID, channelID)
	if err != nil {
		return Summary{}, err
	}
	defer e.mu.Unlock()
	return e.summary(), nil
}

func (e *cacheEntry) summary() Summary {
	return Summary{
		MessageCount:           len(e.messages),
		MemberCount:            len(e.members),
		OldestMessageTimestamp: e.oldest,
		NewestMessageTimestamp: e.newest,
		ManifestHash:           hex.EncodeToString(e.manifestHash[:]),
	}
}

// Manifest builds the ordered manifest: digests sorted by createdDate
// ascending (message ID breaks ties), reaction digests collected in the
// same order.
func (c *CacheManager) Manifest(ctx context.Context, spaceID, channelID string) (Manifest, error) {
	e, err := c.get(ctx, spaceID, channelID)
	if err != nil {
		return Manifest{}, err
	}
	defer e.mu.Unlock()
	return e.manifest(), nil
}

func (e *cacheEntry) manifest() Manifest {
	digests := make([]MessageDigest, 0, len(e.digests))
	for _, d := range e.digests {
		digests = append(digests, d)
	}
	sort.Slice(digests, func(i, j int) bool {
		if digests[i].CreatedDate != digests[j].CreatedDate {
			return digests[i].CreatedDate < digests[j].CreatedDate
		}
		return digests[i].MessageID < digests[j].MessageID
	})

	reactions := make([]ReactionDigest, 0)
	for _, d := range digests {
		m := e.messages[d.MessageID]
		reactions = append(reactions, BuildReactionDigests(m.ID, m.Reactions)...)
	}

	return Manifest{
		SpaceID:         e.spaceID,
		ChannelID:       e.channelID,
		MessageCount:    len(e.messages),
		OldestTimestamp: e.oldest,
		NewestTimestamp: e.newest,
		Digests:         digests,
		ReactionDigests: reactions,
	}
}

// MemberDigests returns the member digest list sorted by address.
func (c *CacheManager) MemberDigests(ctx context.Context, spaceID, channelID string) ([]MemberDigest, error) {
	e, err := c.get(ctx, spaceID, channelID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	out := make([]MemberDigest, 0, len(e.memberDigests))
	for _, d := range e.memberDigests {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

// MessagesByID materialises full message records for the given IDs,
// skipping IDs not in the cache. Order follows ids.
func (c *CacheManager) MessagesByID(ctx context.Context, spaceID, channelID string, ids []string) ([]models.Message, error) {
	e, err := c.get(ctx, spaceID, channelID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	out := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		if m, ok := e.messages[id]; ok {
			out = append(out, m.Clone())
		}
	}
	return out, nil
}

// MembersByAddress materialises member records for the given addresses,
// skipping unknown ones.
func (c *CacheManager) MembersByAddress(ctx context.Context, spaceID, channelID string, addrs []string) ([]models.Member, error) {
	e, err := c.get(ctx, spaceID, channelID)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	out := make([]models.Member, 0, len(addrs))
	for _, a := range addrs {
		if m, ok := e.members[a]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

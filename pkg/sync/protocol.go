package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/QuilibriumNetwork/quorum-shared/pkg/logger"
	"github.com/QuilibriumNetwork/quorum-shared/pkg/models"
)

// DefaultMaxMessages caps how many messages are loaded into a channel's
// payload cache.
const DefaultMaxMessages = 1000

// Options tunes the engine. Zero values fall back to the documented
// defaults.
type Options struct {
	MaxMessages           int
	RequestExpiry         time.Duration
	AggressiveSyncTimeout time.Duration
	MaxChunkSize          int
	TombstoneMaxAge       time.Duration

	// OnInitiateSync is invoked when a candidate has been selected for a
	// space, either by the aggressive timeout or by request expiry.
	OnInitiateSync InitiateFunc
	// OnPeerMapDelta receives inbound peer-map deltas; key material is
	// opaque here and belongs to the encryption layer.
	OnPeerMapDelta func(spaceID string, delta PeerMapDelta)
}

// Engine wires the payload caches, diff, delta assembly and session
// tracking into the five-step control protocol. It is safe for concurrent
// use; each cache entry and the session table carry their own locks.
type Engine struct {
	store      Storage
	caches     *CacheManager
	sessions   *SessionManager
	tombstones *TombstoneLog

	maxChunkSize   int
	onPeerMapDelta func(spaceID string, delta PeerMapDelta)

	// removedMu guards removedMembers: addresses removed locally per space,
	// used to populate memberDelta.removedAddresses.
	removedMu      gosync.Mutex
	removedMembers map[string]map[string]struct{}
}

// New builds an engine over the given storage.
func New(store Storage, opts Options) *Engine {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = DefaultMaxChunkSize
	}
	e := &Engine{
		store:          store,
		caches:         NewCacheManager(store, opts.MaxMessages),
		sessions:       NewSessionManager(opts.RequestExpiry, opts.AggressiveSyncTimeout, opts.OnInitiateSync),
		tombstones:     NewTombstoneLog(opts.TombstoneMaxAge),
		maxChunkSize:   opts.MaxChunkSize,
		onPeerMapDelta: opts.OnPeerMapDelta,
		removedMembers: make(map[string]map[string]struct{}),
	}
	return e
}

// Caches exposes the payload cache manager.
func (e *Engine) Caches() *CacheManager { return e.caches }

// Tombstones exposes the tombstone log.
func (e *Engine) Tombstones() *TombstoneLog { return e.tombstones }

// Sessions returns a snapshot of the live session table.
func (e *Engine) Sessions() []Session { return e.sessions.Snapshot() }

// BuildSyncRequest loads the channel cache, opens a session and produces
// the opening control payload.
func (e *Engine) BuildSyncRequest(ctx context.Context, spaceID, channelID, ourInbox string) (*SyncRequest, error) {
	summary, err := e.caches.Summary(ctx, spaceID, channelID)
	if err != nil {
		return nil, err
	}
	expiry := e.sessions.Open(spaceID, channelID)
	return &SyncRequest{
		Type:         TypeSyncRequest,
		InboxAddress: ourInbox,
		Expiry:       uint64(expiry.UnixMilli()),
		Summary:      summary,
	}, nil
}

// BuildSyncInfo answers a remote sync-request. It returns nil when we have
// nothing to offer: no messages and no members, or a summary that matches
// the requester's.
func (e *Engine) BuildSyncInfo(ctx context.Context, spaceID, channelID, ourInbox string, theirs Summary) (*SyncInfo, error) {
	ours, err := e.caches.Summary(ctx, spaceID, channelID)
	if err != nil {
		return nil, err
	}
	if ours.MessageCount == 0 && ours.MemberCount == 0 {
		return nil, nil
	}
	if ours.ManifestHash == theirs.ManifestHash && ours.MemberCount == theirs.MemberCount {
		return nil, nil
	}
	moreMessages := ours.MessageCount > theirs.MessageCount
	moreMembers := ours.MemberCount > theirs.MemberCount
	newerMessages := ours.NewestMessageTimestamp > theirs.NewestMessageTimestamp
	olderMessages := ours.OldestMessageTimestamp != 0 &&
		(theirs.OldestMessageTimestamp == 0 || ours.OldestMessageTimestamp < theirs.OldestMessageTimestamp)
	differentManifestHash := ours.ManifestHash != theirs.ManifestHash
	if !moreMessages && !moreMembers && !newerMessages && !olderMessages && !differentManifestHash {
		return nil, nil
	}
	return &SyncInfo{Type: TypeSyncInfo, InboxAddress: ourInbox, Summary: ours}, nil
}

// AddCandidate records a remote sync-info against the space's session.
// Candidates arriving after expiry are discarded.
func (e *Engine) AddCandidate(spaceID string, info SyncInfo) bool {
	return e.sessions.AddCandidate(spaceID, Candidate{
		InboxAddress: info.InboxAddress,
		Summary:      info.Summary,
	})
}

// BuildSyncInitiate selects the best candidate and produces the initiate
// payload carrying our manifest. With no candidates the session is deleted
// and all return values are nil.
func (e *Engine) BuildSyncInitiate(ctx context.Context, spaceID, channelID, ourInbox string, peerIDs []uint32) (*Candidate, *SyncInitiate, error) {
	target := e.sessions.BeginSync(spaceID)
	if target == nil {
		return nil, nil, nil
	}
	manifest, err := e.caches.Manifest(ctx, spaceID, channelID)
	if err != nil {
		return nil, nil, err
	}
	memberDigests, err := e.caches.MemberDigests(ctx, spaceID, channelID)
	if err != nil {
		return nil, nil, err
	}
	return target, &SyncInitiate{
		Type:          TypeSyncInitiate,
		InboxAddress:  ourInbox,
		Manifest:      &manifest,
		MemberDigests: memberDigests,
		PeerIDs:       peerIDs,
	}, nil
}

// BuildSyncManifest produces the responder-side manifest payload.
func (e *Engine) BuildSyncManifest(ctx context.Context, spaceID, channelID, ourInbox string, peerIDs []uint32) (*SyncManifest, error) {
	manifest, err := e.caches.Manifest(ctx, spaceID, channelID)
	if err != nil {
		return nil, err
	}
	memberDigests, err := e.caches.MemberDigests(ctx, spaceID, channelID)
	if err != nil {
		return nil, err
	}
	return &SyncManifest{
		Type:          TypeSyncManifest,
		InboxAddress:  ourInbox,
		Manifest:      manifest,
		MemberDigests: memberDigests,
		PeerIDs:       peerIDs,
	}, nil
}

// BuildSyncDelta compares the remote manifest against ours and assembles
// the chunked delta sequence the remote needs.
func (e *Engine) BuildSyncDelta(
	ctx context.Context,
	spaceID, channelID string,
	theirManifest Manifest,
	theirMemberDigests []MemberDigest,
	theirPeerIDs []uint32,
	ourPeerEntries []models.PeerEntry,
) ([]SyncDelta, error) {
	ourManifest, err := e.caches.Manifest(ctx, spaceID, channelID)
	if err != nil {
		return nil, err
	}
	ourMemberDigests, err := e.caches.MemberDigests(ctx, spaceID, channelID)
	if err != nil {
		return nil, err
	}

	// Diff from the remote's point of view: what they are missing is what
	// we send as new; their outdated copies get ours when ours is newer.
	remote := ComputeMessageDiff(theirManifest, ourManifest)
	newMessages, err := e.caches.MessagesByID(ctx, spaceID, channelID, remote.MissingIDs)
	if err != nil {
		return nil, err
	}
	updatedMessages, err := e.caches.MessagesByID(ctx, spaceID, channelID, remote.OutdatedIDs)
	if err != nil {
		return nil, err
	}

	rdiff := ComputeReactionDiff(ourManifest.ReactionDigests, theirManifest.ReactionDigests, nil)
	reactionMessages, err := e.caches.MessagesByID(ctx, spaceID, channelID, rdiff.MessageIDs)
	if err != nil {
		return nil, err
	}
	var reactions []MessageReactions
	for _, m := range reactionMessages {
		if len(m.Reactions) == 0 {
			continue
		}
		reactions = append(reactions, MessageReactions{MessageID: m.ID, Reactions: m.Reactions})
	}

	mdiff := ComputeMemberDiff(ourMemberDigests, theirMemberDigests)
	sendAddrs := append(append([]string(nil), mdiff.ExtraAddresses...), mdiff.OutdatedAddresses...)
	members, err := e.caches.MembersByAddress(ctx, spaceID, channelID, sendAddrs)
	if err != nil {
		return nil, err
	}
	removed := e.removedAddressesFor(spaceID, mdiff.MissingAddresses)

	var peerEntries []models.PeerEntry
	if len(ourPeerEntries) > 0 {
		ourIDs := make([]uint32, 0, len(ourPeerEntries))
		byID := make(map[uint32]models.PeerEntry, len(ourPeerEntries))
		for _, p := range ourPeerEntries {
			ourIDs = append(ourIDs, p.PeerID)
			byID[p.PeerID] = p
		}
		for _, id := range ComputePeerDiff(ourIDs, theirPeerIDs) {
			peerEntries = append(peerEntries, byID[id])
		}
	}

	payloads := AssembleDeltas(DeltaInput{
		NewMessages:       newMessages,
		UpdatedMessages:   updatedMessages,
		DeletedMessageIDs: e.tombstones.ForChannel(spaceID, channelID),
		Reactions:         reactions,
		Members:           members,
		RemovedAddresses:  removed,
		PeerEntries:       peerEntries,
	}, e.maxChunkSize)

	deltasBuilt.Inc()
	deltaPayloads.Add(float64(len(payloads)))
	return payloads, nil
}

// removedAddressesFor intersects the remote-only addresses with the set of
// members we removed locally; mere absence is not treated as removal.
func (e *Engine) removedAddressesFor(spaceID string, remoteOnly []string) []string {
	e.removedMu.Lock()
	defer e.removedMu.Unlock()
	set := e.removedMembers[spaceID]
	if len(set) == 0 {
		return nil
	}
	var out []string
	for _, a := range remoteOnly {
		if _, ok := set[a]; ok {
			out = append(out, a)
		}
	}
	return out
}

// ApplyDelta persists one inbound sync-delta payload. Cache state is not
// mutated here; the host re-invalidates or feeds incremental updates after
// storage settles. On a final payload the space's session is completed.
func (e *Engine) ApplyDelta(ctx context.Context, spaceID, channelID string, d SyncDelta) error {
	if d.MessageDelta != nil {
		if err := e.applyMessageDelta(ctx, spaceID, channelID, *d.MessageDelta); err != nil {
			return err
		}
	}
	if d.ReactionDelta != nil {
		if err := e.applyReactionDelta(ctx, spaceID, channelID, *d.ReactionDelta); err != nil {
			return err
		}
	}
	if d.MemberDelta != nil {
		if err := e.applyMemberDelta(ctx, spaceID, *d.MemberDelta); err != nil {
			return err
		}
	}
	if d.PeerMapDelta != nil && e.onPeerMapDelta != nil {
		e.onPeerMapDelta(spaceID, *d.PeerMapDelta)
	}
	deltasApplied.Inc()
	if d.IsFinal {
		e.sessions.Complete(spaceID)
	}
	return nil
}

func (e *Engine) applyMessageDelta(ctx context.Context, spaceID, channelID string, md MessageDelta) error {
	for _, m := range md.NewMessages {
		if err := e.store.SaveMessage(ctx, m); err != nil {
			return fmt.Errorf("save new message %s: %w", m.ID, err)
		}
	}
	for _, m := range md.UpdatedMessages {
		if err := e.store.SaveMessage(ctx, m); err != nil {
			return fmt.Errorf("save updated message %s: %w", m.ID, err)
		}
	}
	now := uint64(time.Now().UnixMilli())
	for _, id := range md.DeletedMessageIDs {
		if err := e.store.DeleteMessage(ctx, id); err != nil {
			return fmt.Errorf("delete message %s: %w", id, err)
		}
		// keep propagating the deletion to peers that sync with us later
		e.tombstones.Record(models.Tombstone{
			MessageID: id, SpaceID: spaceID, ChannelID: channelID, DeletedAt: now,
		})
	}
	return nil
}

// applyReactionDelta replaces each message's reaction row for the incoming
// emoji with the remote member set; an emptied member set drops the row.
func (e *Engine) applyReactionDelta(ctx context.Context, spaceID, channelID string, rd ReactionDelta) error {
	for _, mr := range rd.Reactions {
		m, err := e.store.GetMessage(ctx, spaceID, channelID, mr.MessageID)
		if err != nil {
			return fmt.Errorf("load message %s for reactions: %w", mr.MessageID, err)
		}
		if m == nil {
			logger.Debug("reaction_delta_unknown_message",
				"space", spaceID, "channel", channelID, "message", mr.MessageID)
			continue
		}
		for _, incoming := range mr.Reactions {
			m.Reactions = mergeReaction(m.Reactions, incoming)
		}
		if err := e.store.SaveMessage(ctx, *m); err != nil {
			return fmt.Errorf("save reactions on %s: %w", mr.MessageID, err)
		}
	}
	return nil
}

func mergeReaction(existing []models.Reaction, incoming models.Reaction) []models.Reaction {
	incoming.Count = len(incoming.MemberIDs)
	for i, r := range existing {
		if r.EmojiID != incoming.EmojiID {
			continue
		}
		if len(incoming.MemberIDs) == 0 {
			return append(existing[:i], existing[i+1:]...)
		}
		existing[i] = incoming
		return existing
	}
	if len(incoming.MemberIDs) == 0 {
		return existing
	}
	return append(existing, incoming)
}

func (e *Engine) applyMemberDelta(ctx context.Context, spaceID string, md MemberDelta) error {
	for _, m := range md.Members {
		if err := e.store.SaveSpaceMember(ctx, spaceID, m); err != nil {
			return fmt.Errorf("save member %s: %w", m.Address, err)
		}
	}
	for _, addr := range md.RemovedAddresses {
		if err := e.store.RemoveSpaceMember(ctx, spaceID, addr); err != nil {
			return fmt.Errorf("remove member %s: %w", addr, err)
		}
	}
	return nil
}

// CancelSync clears timers and deletes the space's session. In-flight
// applies on the same space may still complete but will no longer observe
// session state.
func (e *Engine) CancelSync(spaceID string) {
	e.sessions.Cancel(spaceID)
}

// HasActiveSession reports whether a live session exists for the space.
func (e *Engine) HasActiveSession(spaceID string) bool {
	return e.sessions.HasActiveSession(spaceID)
}

// UpsertMessage is the host's incremental-update hook after a local write.
func (e *Engine) UpsertMessage(spaceID, channelID string, m models.Message) error {
	return e.caches.UpsertMessage(spaceID, channelID, m)
}

// RemoveMessage is the host's hook after a local delete: it updates the
// cache and records the tombstone.
func (e *Engine) RemoveMessage(spaceID, channelID, messageID string) {
	e.caches.RemoveMessage(spaceID, channelID, messageID)
	e.tombstones.Record(models.Tombstone{
		MessageID: messageID,
		SpaceID:   spaceID,
		ChannelID: channelID,
		DeletedAt: uint64(time.Now().UnixMilli()),
	})
}

// UpsertMember is the host's hook after a local member write.
func (e *Engine) UpsertMember(spaceID, channelID string, m models.Member) {
	e.caches.UpsertMember(spaceID, channelID, m)
	e.removedMu.Lock()
	if set := e.removedMembers[spaceID]; set != nil {
		delete(set, m.Address)
	}
	e.removedMu.Unlock()
}

// RemoveMember is the host's hook after a local member removal; the address
// will be offered in memberDelta.removedAddresses to peers that still hold
// it.
func (e *Engine) RemoveMember(spaceID, channelID, address string) {
	e.caches.RemoveMember(spaceID, channelID, address)
	e.removedMu.Lock()
	if e.removedMembers[spaceID] == nil {
		e.removedMembers[spaceID] = make(map[string]struct{})
	}
	e.removedMembers[spaceID][address] = struct{}{}
	e.removedMu.Unlock()
}

// CleanupTombstones reaps tombstones past the horizon, returning what was
// dropped so the host can purge persisted copies.
func (e *Engine) CleanupTombstones(now time.Time) []models.Tombstone {
	return e.tombstones.Cleanup(now)
}

// Package sync implements the delta-sync core: per-channel payload caches
// with a commutative manifest hash, digest diffing, delta assembly and
// chunking, per-space session tracking, and construction of the five
// control payloads exchanged between peers.
package sync

import (
	"encoding/json"
	"fmt"

	"github.com/QuilibriumNetwork/quorum-shared/pkg/models"
)

// Control payload type tags (wire-visible).
const (
	TypeSyncRequest  = "sync-request"
	TypeSyncInfo     = "sync-info"
	TypeSyncInitiate = "sync-initiate"
	TypeSyncManifest = "sync-manifest"
	TypeSyncDelta    = "sync-delta"
)

// Summary is the compact channel description attached to sync-request and
// sync-info. ManifestHash is the 64-hex-char XOR accumulator.
type Summary struct {
	MessageCount           int    `json:"messageCount"`
	MemberCount            int    `json:"memberCount"`
	OldestMessageTimestamp uint64 `json:"oldestMessageTimestamp"`
	NewestMessageTimestamp uint64 `json:"newestMessageTimestamp"`
	ManifestHash           string `json:"manifestHash"`
}

// MessageDigest summarises one message's identity and mutable content.
// ModifiedDate is present only when it differs from CreatedDate.
type MessageDigest struct {
	MessageID    string `json:"messageId"`
	CreatedDate  uint64 `json:"createdDate"`
	ContentHash  string `json:"contentHash"`
	ModifiedDate uint64 `json:"modifiedDate,omitempty"`
}

// Newest returns the digest's effective modification timestamp.
func (d MessageDigest) Newest() uint64 {
	if d.ModifiedDate != 0 {
		return d.ModifiedDate
	}
	return d.CreatedDate
}

// ReactionDigest summarises one reaction row on a message.
type ReactionDigest struct {
	MessageID   string `json:"messageId"`
	EmojiID     string `json:"emojiId"`
	Count       int    `json:"count"`
	MembersHash string `json:"membersHash"`
}

// MemberDigest summarises a member profile.
type MemberDigest struct {
	Address         string `json:"address"`
	InboxAddress    string `json:"inboxAddress"`
	DisplayNameHash string `json:"displayNameHash"`
	IconHash        string `json:"iconHash"`
}

// Manifest describes a channel at a point in time. Digests are sorted by
// createdDate ascending.
type Manifest struct {
	SpaceID         string           `json:"spaceId"`
	ChannelID       string           `json:"channelId"`
	MessageCount    int              `json:"messageCount"`
	OldestTimestamp uint64           `json:"oldestTimestamp"`
	NewestTimestamp uint64           `json:"newestTimestamp"`
	Digests         []MessageDigest  `json:"digests"`
	ReactionDigests []ReactionDigest `json:"reactionDigests"`
}

// SyncRequest opens a sync round: "who can bring me up to date?".
type SyncRequest struct {
	Type         string  `json:"type"`
	InboxAddress string  `json:"inboxAddress"`
	Expiry       uint64  `json:"expiry"`
	Summary      Summary `json:"summary"`
}

// SyncInfo answers a sync-request with our own summary, making us a
// candidate.
type SyncInfo struct {
	Type         string  `json:"type"`
	InboxAddress string  `json:"inboxAddress"`
	Summary      Summary `json:"summary"`
}

// SyncInitiate is sent to the selected candidate with our manifest so the
// peer can compute what we lack.
type SyncInitiate struct {
	Type          string         `json:"type"`
	InboxAddress  string         `json:"inboxAddress"`
	Manifest      *Manifest      `json:"manifest,omitempty"`
	MemberDigests []MemberDigest `json:"memberDigests,omitempty"`
	PeerIDs       []uint32       `json:"peerIds,omitempty"`
}

// SyncManifest is the responder's manifest, sent back so both sides can
// produce deltas.
type SyncManifest struct {
	Type          string         `json:"type"`
	InboxAddress  string         `json:"inboxAddress"`
	Manifest      Manifest       `json:"manifest"`
	MemberDigests []MemberDigest `json:"memberDigests"`
	PeerIDs       []uint32       `json:"peerIds"`
}

// MessageDelta carries full message records plus propagated deletions.
type MessageDelta struct {
	NewMessages       []models.Message `json:"newMessages,omitempty"`
	UpdatedMessages   []models.Message `json:"updatedMessages,omitempty"`
	DeletedMessageIDs []string         `json:"deletedMessageIds,omitempty"`
}

// MessageReactions is the reaction set for one message inside a reaction
// delta.
type MessageReactions struct {
	MessageID string            `json:"messageId"`
	Reactions []models.Reaction `json:"reactions"`
}

// ReactionDelta carries reaction sets for messages whose reaction digests
// differ.
type ReactionDelta struct {
	Reactions []MessageReactions `json:"reactions"`
}

// MemberDelta carries full member records and removals.
type MemberDelta struct {
	Members          []models.Member `json:"members,omitempty"`
	RemovedAddresses []string        `json:"removedAddresses,omitempty"`
}

// PeerMapDelta carries group-key entries the remote lacks. Key material is
// opaque to the sync core.
type PeerMapDelta struct {
	Entries []models.PeerEntry `json:"entries"`
}

// SyncDelta is one chunk of the delta stream. Exactly one payload in a
// returned sequence has IsFinal set, and it is the last one.
type SyncDelta struct {
	Type          string         `json:"type"`
	MessageDelta  *MessageDelta  `json:"messageDelta,omitempty"`
	ReactionDelta *ReactionDelta `json:"reactionDelta,omitempty"`
	MemberDelta   *MemberDelta   `json:"memberDelta,omitempty"`
	PeerMapDelta  *PeerMapDelta  `json:"peerMapDelta,omitempty"`
	IsFinal       bool           `json:"isFinal,omitempty"`
}

// Encode serializes any control payload to its wire JSON.
func Encode(payload any) ([]byte, error) {
	return json.Marshal(payload)
}

// Decode parses an inbound control frame by its "type" tag and returns one
// of *SyncRequest, *SyncInfo, *SyncInitiate, *SyncManifest or *SyncDelta.
func Decode(data []byte) (any, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("invalid control payload: %w", err)
	}
	switch tag.Type {
	case TypeSyncRequest:
		out := &SyncRequest{}
		return out, json.Unmarshal(data, out)
	case TypeSyncInfo:
		out := &SyncInfo{}
		return out, json.Unmarshal(data, out)
	case TypeSyncInitiate:
		out := &SyncInitiate{}
		return out, json.Unmarshal(data, out)
	case TypeSyncManifest:
		out := &SyncManifest{}
		return out, json.Unmarshal(data, out)
	case TypeSyncDelta:
		out := &SyncDelta{}
		return out, json.Unmarshal(data, out)
	default:
		return nil, fmt.Errorf("unknown control payload type %q", tag.Type)
	}
}

package sync

import (
	"github.com/QuilibriumNetwork/quorum-shared/pkg/models"
)

// DeltaInput is everything the assembler needs to emit a delta sequence for
// one remote peer.
type DeltaInput struct {
	NewMessages       []models.Message
	UpdatedMessages   []models.Message
	DeletedMessageIDs []string
	Reactions         []MessageReactions
	Members           []models.Member
	RemovedAddresses  []string
	PeerEntries       []models.PeerEntry
}

// AssembleDeltas turns a delta input into the ordered sync-delta payload
// sequence:
//
//  1. new and updated messages are chunked together under the byte cap,
//     each chunk's messageDelta split back into new/updated subsets;
//  2. deleted message IDs and the reaction delta ride only the last
//     message chunk;
//  3. member and peer-map changes go into a trailing payload, which is also
//     emitted when there were no message chunks at all;
//  4. exactly one payload carries isFinal and it is the last one.
func AssembleDeltas(in DeltaInput, maxChunkSize int) []SyncDelta {
	newIDs := make(map[string]struct{}, len(in.NewMessages))
	for _, m := range in.NewMessages {
		newIDs[m.ID] = struct{}{}
	}

	all := make([]models.Message, 0, len(in.NewMessages)+len(in.UpdatedMessages))
	all = append(all, in.NewMessages...)
	all = append(all, in.UpdatedMessages...)
	chunks := ChunkMessages(all, maxChunkSize)

	// Deletions must ride a message chunk; synthesize an empty one when
	// nothing else produced message payloads.
	if len(chunks) == 0 && len(in.DeletedMessageIDs) > 0 {
		chunks = [][]models.Message{nil}
	}

	var payloads []SyncDelta
	for i, chunk := range chunks {
		md := &MessageDelta{}
		for _, m := range chunk {
			if _, isNew := newIDs[m.ID]; isNew {
				md.NewMessages = append(md.NewMessages, m)
			} else {
				md.UpdatedMessages = append(md.UpdatedMessages, m)
			}
		}
		p := SyncDelta{Type: TypeSyncDelta, MessageDelta: md}
		if i == len(chunks)-1 {
			md.DeletedMessageIDs = in.DeletedMessageIDs
			if len(in.Reactions) > 0 {
				p.ReactionDelta = &ReactionDelta{Reactions: in.Reactions}
			}
		}
		payloads = append(payloads, p)
	}

	memberChanges := len(in.Members) > 0 || len(in.RemovedAddresses) > 0
	peerChanges := len(in.PeerEntries) > 0

	if memberChanges || peerChanges || len(payloads) == 0 {
		trailing := SyncDelta{Type: TypeSyncDelta, IsFinal: true}
		if memberChanges {
			trailing.MemberDelta = &MemberDelta{
				Members:          in.Members,
				RemovedAddresses: in.RemovedAddresses,
			}
		}
		if peerChanges {
			trailing.PeerMapDelta = &PeerMapDelta{Entries: in.PeerEntries}
		}
		payloads = append(payloads, trailing)
	} else {
		payloads[len(payloads)-1].IsFinal = true
	}
	return payloads
}

package sync

import (
	"encoding/hex"

	"github.com/QuilibriumNetwork/quorum-shared/pkg/hashing"
	"github.com/QuilibriumNetwork/quorum-shared/pkg/models"
)

// BuildMessageDigest constructs the digest for one message. ModifiedDate is
// set only when it differs from CreatedDate.
func BuildMessageDigest(m models.Message) (MessageDigest, error) {
	ch, err := hashing.ContentHash(m.Content)
	if err != nil {
		return MessageDigest{}, err
	}
	d := MessageDigest{
		MessageID:   m.ID,
		CreatedDate: m.CreatedDate,
		ContentHash: ch,
	}
	if m.ModifiedDate != m.CreatedDate {
		d.ModifiedDate = m.ModifiedDate
	}
	return d, nil
}

// BuildReactionDigests returns one digest per reaction on the message.
// Empty input yields an empty list.
func BuildReactionDigests(messageID string, reactions []models.Reaction) []ReactionDigest {
	out := make([]ReactionDigest, 0, len(reactions))
	for _, r := range reactions {
		out = append(out, ReactionDigest{
			MessageID:   messageID,
			EmojiID:     r.EmojiID,
			Count:       len(r.MemberIDs),
			MembersHash: hashing.MembersHash(r.MemberIDs),
		})
	}
	return out
}

// BuildMemberDigest constructs the digest for a member profile. A missing
// inbox address digests as the empty string.
func BuildMemberDigest(m models.Member) MemberDigest {
	return MemberDigest{
		Address:         m.Address,
		InboxAddress:    m.InboxAddress,
		DisplayNameHash: hashing.Sum(m.DisplayName),
		IconHash:        hashing.Sum(m.ProfileImage),
	}
}

// ComputeManifestHash folds the message IDs of an ordered digest list into
// the hex form of the 32-byte XOR accumulator. Used when a summary is built
// straight from a message list; incremental updates go through the cache's
// own accumulator.
func ComputeManifestHash(digests []MessageDigest) string {
	var acc [32]byte
	for _, d := range digests {
		h := hashing.IDHash(d.MessageID)
		for i := range acc {
			acc[i] ^= h[i]
		}
	}
	return hex.EncodeToString(acc[:])
}

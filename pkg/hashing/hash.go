// Package hashing holds the canonical hash functions shared by digest
// construction and the payload cache. All hashes are SHA-256; string forms
// are lower-case hex.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/QuilibriumNetwork/quorum-shared/pkg/models"
)

// ErrUnsupportedContent is returned when a content variant is unknown to
// this build. The message is unsyncable until the host upgrades.
var ErrUnsupportedContent = errors.New("unsupported content variant")

// Sum returns the lower-case hex SHA-256 of s.
func Sum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// IDHash returns the raw SHA-256 of a message ID, used by the payload
// cache's XOR accumulator.
func IDHash(id string) [32]byte {
	return sha256.Sum256([]byte(id))
}

// ContentHash produces the deterministic hash of a message's content. The
// canonical string is colon-joined starting with the sender; optional fields
// canonicalise as empty strings.
func ContentHash(c models.Content) (string, error) {
	s, err := canonicalContent(c)
	if err != nil {
		return "", err
	}
	return Sum(s), nil
}

func canonicalContent(c models.Content) (string, error) {
	var b strings.Builder
	b.WriteString(c.SenderID)
	b.WriteByte(':')
	b.WriteString(string(c.Kind))

	switch c.Kind {
	case models.KindPost:
		b.WriteByte(':')
		b.WriteString(c.Text)
		writeReply(&b, c.ReplyID)
	case models.KindEmbed:
		b.WriteByte(':')
		b.WriteString(c.ImageURL)
		b.WriteByte(':')
		b.WriteString(c.VideoURL)
		writeReply(&b, c.ReplyID)
	case models.KindSticker:
		b.WriteByte(':')
		b.WriteString(c.StickerID)
		writeReply(&b, c.ReplyID)
	case models.KindEditMessage:
		fmt.Fprintf(&b, ":%s:%s:%d", c.OriginalID, c.EditedText, c.EditedAt)
	case models.KindRemoveMessage:
		b.WriteByte(':')
		b.WriteString(c.RemoveID)
	case models.KindJoin, models.KindLeave, models.KindKick:
		// senderId:<kind> only
	case models.KindEvent:
		b.WriteByte(':')
		b.WriteString(c.Text)
	case models.KindUpdateProfile:
		b.WriteByte(':')
		b.WriteString(c.DisplayName)
		b.WriteByte(':')
		b.WriteString(c.UserIcon)
	case models.KindMute:
		fmt.Fprintf(&b, ":%s:%s:%s", c.Target, c.Action, c.MuteID)
	case models.KindPin:
		b.WriteByte(':')
		b.WriteString(c.TargetMessageID)
		b.WriteByte(':')
		b.WriteString(c.Action)
	case models.KindReaction, models.KindRemoveReaction:
		b.WriteByte(':')
		b.WriteString(c.MessageID)
		b.WriteByte(':')
		b.WriteString(c.Reaction)
	case models.KindDeleteConversation:
		// senderId:delete-conversation only
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedContent, c.Kind)
	}
	return b.String(), nil
}

func writeReply(b *strings.Builder, replyID string) {
	if replyID != "" {
		b.WriteString(":reply:")
		b.WriteString(replyID)
	}
}

// ReactionsHash hashes a message's reaction set. Reactions are sorted by
// emoji ID ascending, member IDs sorted ascending within each reaction, one
// line per reaction.
func ReactionsHash(reactions []models.Reaction) string {
	lines := make([]string, 0, len(reactions))
	for _, r := range reactions {
		members := append([]string(nil), r.MemberIDs...)
		sort.Strings(members)
		lines = append(lines, r.EmojiID+":"+strings.Join(members, ","))
	}
	sort.Strings(lines)
	return Sum(strings.Join(lines, "\n"))
}

// MembersHash hashes the member-ID set of one reaction: sorted IDs joined
// with commas.
func MembersHash(memberIDs []string) string {
	ids := append([]string(nil), memberIDs...)
	sort.Strings(ids)
	return Sum(strings.Join(ids, ","))
}

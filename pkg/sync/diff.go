package sync

import "sort"

// MessageDiff is the outcome of comparing two manifests from the first
// argument's point of view.
type MessageDiff struct {
	// MissingIDs are present in theirs, absent in ours.
	MissingIDs []string
	// OutdatedIDs are present in both with differing content hashes where
	// their copy is newer ("newest-modified wins").
	OutdatedIDs []string
	// ExtraIDs are present in ours, absent in theirs.
	ExtraIDs []string
}

// ComputeMessageDiff compares ourManifest against theirManifest. When
// content hashes differ but theirs is not newer we do nothing; the remote
// detects the reciprocal case on its side.
func ComputeMessageDiff(ours, theirs Manifest) MessageDiff {
	ourByID := make(map[string]MessageDigest, len(ours.Digests))
	for _, d := range ours.Digests {
		ourByID[d.MessageID] = d
	}
	theirByID := make(map[string]MessageDigest, len(theirs.Digests))
	for _, d := range theirs.Digests {
		theirByID[d.MessageID] = d
	}

	var diff MessageDiff
	for _, td := range theirs.Digests {
		od, ok := ourByID[td.MessageID]
		if !ok {
			diff.MissingIDs = append(diff.MissingIDs, td.MessageID)
			continue
		}
		if td.ContentHash != od.ContentHash && td.Newest() > od.Newest() {
			diff.OutdatedIDs = append(diff.OutdatedIDs, td.MessageID)
		}
	}
	for _, od := range ours.Digests {
		if _, ok := theirByID[od.MessageID]; !ok {
			diff.ExtraIDs = append(diff.ExtraIDs, od.MessageID)
		}
	}
	return diff
}

// ReactionDiff lists messages whose reaction rows differ.
type ReactionDiff struct {
	// MessageIDs whose reaction set on our side should be offered to the
	// remote (present here with rows the remote lacks or holds differently).
	MessageIDs []string
}

// ComputeReactionDiff compares reaction digest lists and returns message IDs
// whose reaction sets differ between the two sides. Our rows count even on
// messages the remote has no rows for; remote-only rows count only on
// messages we hold rows for. restrictTo (when non-nil) limits the result to
// that ID set.
func ComputeReactionDiff(ours, theirs []ReactionDigest, restrictTo map[string]struct{}) ReactionDiff {
	type rk struct{ msg, emoji string }
	ourRows := make(map[rk]ReactionDigest, len(ours))
	ourMsgs := make(map[string]struct{})
	for _, d := range ours {
		ourRows[rk{d.MessageID, d.EmojiID}] = d
		ourMsgs[d.MessageID] = struct{}{}
	}
	theirRows := make(map[rk]ReactionDigest, len(theirs))
	theirMsgs := make(map[string]struct{})
	for _, d := range theirs {
		theirRows[rk{d.MessageID, d.EmojiID}] = d
		theirMsgs[d.MessageID] = struct{}{}
	}

	changed := make(map[string]struct{})
	for k, od := range ourRows {
		td, ok := theirRows[k]
		if !ok || td.MembersHash != od.MembersHash || td.Count != od.Count {
			changed[k.msg] = struct{}{}
		}
	}
	// reaction rows the remote has on messages we also hold, but we dropped
	for k := range theirRows {
		if _, ok := ourRows[k]; ok {
			continue
		}
		if _, weKnow := ourMsgs[k.msg]; weKnow {
			changed[k.msg] = struct{}{}
		}
	}

	var diff ReactionDiff
	for id := range changed {
		if restrictTo != nil {
			if _, ok := restrictTo[id]; !ok {
				continue
			}
		}
		diff.MessageIDs = append(diff.MessageIDs, id)
	}
	sort.Strings(diff.MessageIDs)
	return diff
}

// MemberDiff is the outcome of comparing member digest sets by address.
type MemberDiff struct {
	// MissingAddresses are present in theirs, absent in ours.
	MissingAddresses []string
	// OutdatedAddresses are present in both with a differing display-name
	// or icon hash. There is no newest-wins rule for members; the sender
	// always offers its own copy.
	OutdatedAddresses []string
	// ExtraAddresses are present in ours, absent in theirs.
	ExtraAddresses []string
}

// ComputeMemberDiff compares member digests keyed by address.
func ComputeMemberDiff(ours, theirs []MemberDigest) MemberDiff {
	ourBy := make(map[string]MemberDigest, len(ours))
	for _, d := range ours {
		ourBy[d.Address] = d
	}
	theirBy := make(map[string]MemberDigest, len(theirs))
	for _, d := range theirs {
		theirBy[d.Address] = d
	}

	var diff MemberDiff
	for _, td := range theirs {
		od, ok := ourBy[td.Address]
		if !ok {
			diff.MissingAddresses = append(diff.MissingAddresses, td.Address)
			continue
		}
		if od.DisplayNameHash != td.DisplayNameHash || od.IconHash != td.IconHash {
			diff.OutdatedAddresses = append(diff.OutdatedAddresses, td.Address)
		}
	}
	for _, od := range ours {
		if _, ok := theirBy[od.Address]; !ok {
			diff.ExtraAddresses = append(diff.ExtraAddresses, od.Address)
		}
	}
	sort.Strings(diff.MissingAddresses)
	sort.Strings(diff.OutdatedAddresses)
	sort.Strings(diff.ExtraAddresses)
	return diff
}

// ComputePeerDiff is a set difference over peer IDs: ours not present in
// theirs.
func ComputePeerDiff(ours, theirs []uint32) []uint32 {
	theirSet := make(map[uint32]struct{}, len(theirs))
	for _, id := range theirs {
		theirSet[id] = struct{}{}
	}
	var missing []uint32
	for _, id := range ours {
		if _, ok := theirSet[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

package sync

import (
	"reflect"
	"sort"
	"testing"
)

func manifestOf(digests ...MessageDigest) Manifest {
	return Manifest{SpaceID: "s1", ChannelID: "c1", MessageCount: len(digests), Digests: digests}
}

func TestComputeMessageDiffSets(t *testing.T) {
	ours := manifestOf(
		MessageDigest{MessageID: "both", CreatedDate: 1000, ContentHash: "h1"},
		MessageDigest{MessageID: "only-ours", CreatedDate: 2000, ContentHash: "h2"},
	)
	theirs := manifestOf(
		MessageDigest{MessageID: "both", CreatedDate: 1000, ContentHash: "h1"},
		MessageDigest{MessageID: "only-theirs", CreatedDate: 3000, ContentHash: "h3"},
	)
	d := ComputeMessageDiff(ours, theirs)
	if !reflect.DeepEqual(d.MissingIDs, []string{"only-theirs"}) {
		t.Fatalf("missing: %v", d.MissingIDs)
	}
	if len(d.OutdatedIDs) != 0 {
		t.Fatalf("outdated should be empty: %v", d.OutdatedIDs)
	}
	if !reflect.DeepEqual(d.ExtraIDs, []string{"only-ours"}) {
		t.Fatalf("extra: %v", d.ExtraIDs)
	}
}

func TestComputeMessageDiffNewestWins(t *testing.T) {
	ours := manifestOf(MessageDigest{MessageID: "m", CreatedDate: 1000, ContentHash: "ha"})

	// differing hash, theirs newer → outdated
	theirs := manifestOf(MessageDigest{MessageID: "m", CreatedDate: 1000, ContentHash: "hb", ModifiedDate: 2000})
	d := ComputeMessageDiff(ours, theirs)
	if !reflect.DeepEqual(d.OutdatedIDs, []string{"m"}) {
		t.Fatalf("expected outdated; got %v", d.OutdatedIDs)
	}

	// differing hash, theirs not newer → keep ours, do nothing
	theirs = manifestOf(MessageDigest{MessageID: "m", CreatedDate: 1000, ContentHash: "hb"})
	d = ComputeMessageDiff(ours, theirs)
	if len(d.OutdatedIDs) != 0 {
		t.Fatalf("tie should not be outdated; got %v", d.OutdatedIDs)
	}

	// same hash, theirs newer → content equal, nothing to do
	theirs = manifestOf(MessageDigest{MessageID: "m", CreatedDate: 1000, ContentHash: "ha", ModifiedDate: 9000})
	d = ComputeMessageDiff(ours, theirs)
	if len(d.OutdatedIDs) != 0 {
		t.Fatalf("equal hashes should never be outdated; got %v", d.OutdatedIDs)
	}
}

func TestComputeMemberDiff(t *testing.T) {
	ours := []MemberDigest{
		{Address: "a1", DisplayNameHash: "n1", IconHash: "i1"},
		{Address: "a2", DisplayNameHash: "n2", IconHash: "i2"},
	}
	theirs := []MemberDigest{
		{Address: "a1", DisplayNameHash: "n1-changed", IconHash: "i1"},
		{Address: "a3", DisplayNameHash: "n3", IconHash: "i3"},
	}
	d := ComputeMemberDiff(ours, theirs)
	if !reflect.DeepEqual(d.MissingAddresses, []string{"a3"}) {
		t.Fatalf("missing: %v", d.MissingAddresses)
	}
	if !reflect.DeepEqual(d.OutdatedAddresses, []string{"a1"}) {
		t.Fatalf("outdated: %v", d.OutdatedAddresses)
	}
	if !reflect.DeepEqual(d.ExtraAddresses, []string{"a2"}) {
		t.Fatalf("extra: %v", d.ExtraAddresses)
	}
}

func TestComputePeerDiff(t *testing.T) {
	missing := ComputePeerDiff([]uint32{1, 2, 3}, []uint32{2})
	if !reflect.DeepEqual(missing, []uint32{1, 3}) {
		t.Fatalf("peer diff: %v", missing)
	}
	if got := ComputePeerDiff(nil, []uint32{1}); len(got) != 0 {
		t.Fatalf("empty ours should yield empty diff: %v", got)
	}
}

func TestComputeReactionDiff(t *testing.T) {
	ours := []ReactionDigest{
		{MessageID: "m1", EmojiID: "👍", Count: 2, MembersHash: "ha"},
		{MessageID: "m2", EmojiID: "🎉", Count: 1, MembersHash: "hb"},
	}
	theirs := []ReactionDigest{
		{MessageID: "m1", EmojiID: "👍", Count: 2, MembersHash: "ha"},
		{MessageID: "m2", EmojiID: "🎉", Count: 1, MembersHash: "hb-stale"},
	}
	d := ComputeReactionDiff(ours, theirs, nil)
	sort.Strings(d.MessageIDs)
	if !reflect.DeepEqual(d.MessageIDs, []string{"m2"}) {
		t.Fatalf("reaction diff: %v", d.MessageIDs)
	}

	// remote-only row on a message we hold means our empty set wins
	ours = []ReactionDigest{{MessageID: "m1", EmojiID: "👍", Count: 1, MembersHash: "x"}}
	theirs = []ReactionDigest{
		{MessageID: "m1", EmojiID: "👍", Count: 1, MembersHash: "x"},
		{MessageID: "m1", EmojiID: "💀", Count: 1, MembersHash: "y"},
	}
	d = ComputeReactionDiff(ours, theirs, nil)
	if !reflect.DeepEqual(d.MessageIDs, []string{"m1"}) {
		t.Fatalf("dropped remote row should mark message changed: %v", d.MessageIDs)
	}
}

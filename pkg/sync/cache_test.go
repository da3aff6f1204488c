package sync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/QuilibriumNetwork/quorum-shared/pkg/models"
)

func xorHex(ids ...string) string {
	var acc [32]byte
	for _, id := range ids {
		h := sha256.Sum256([]byte(id))
		for i := range acc {
			acc[i] ^= h[i]
		}
	}
	return hex.EncodeToString(acc[:])
}

func newTestCache(t *testing.T, st *memStore) *CacheManager {
	t.Helper()
	c := NewCacheManager(st, 0)
	if err := c.Warm(context.Background(), "s1", "c1"); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	return c
}

func TestEmptyCacheSummary(t *testing.T) {
	c := newTestCache(t, newMemStore())
	s, err := c.Summary(context.Background(), "s1", "c1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.MessageCount != 0 || s.MemberCount != 0 {
		t.Fatalf("expected zero counts; got %+v", s)
	}
	if s.OldestMessageTimestamp != 0 || s.NewestMessageTimestamp != 0 {
		t.Fatalf("expected zero timestamps; got %+v", s)
	}
	if s.ManifestHash != strings.Repeat("0", 64) {
		t.Fatalf("empty manifest hash should be 32 zero bytes; got %s", s.ManifestHash)
	}
}

func TestManifestHashMatchesXOR(t *testing.T) {
	c := newTestCache(t, newMemStore())
	ids := []string{"m1", "m2", "m3", "m4"}
	for i, id := range ids {
		if err := c.UpsertMessage("s1", "c1", post(id, "s1", "c1", uint64(1000*(i+1)), "hi")); err != nil {
			t.Fatalf("UpsertMessage: %v", err)
		}
	}
	s, _ := c.Summary(context.Background(), "s1", "c1")
	if s.ManifestHash != xorHex(ids...) {
		t.Fatalf("manifest hash mismatch: got %s want %s", s.ManifestHash, xorHex(ids...))
	}
}

func TestManifestHashCommutative(t *testing.T) {
	a := newTestCache(t, newMemStore())
	b := newTestCache(t, newMemStore())
	msgs := []models.Message{
		post("m1", "s1", "c1", 1000, "a"),
		post("m2", "s1", "c1", 2000, "b"),
		post("m3", "s1", "c1", 3000, "c"),
	}
	for _, m := range msgs {
		if err := a.UpsertMessage("s1", "c1", m); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if err := b.UpsertMessage("s1", "c1", msgs[i]); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	sa, _ := a.Summary(context.Background(), "s1", "c1")
	sb, _ := b.Summary(context.Background(), "s1", "c1")
	if sa.ManifestHash != sb.ManifestHash {
		t.Fatalf("hash should not depend on insertion order: %s vs %s", sa.ManifestHash, sb.ManifestHash)
	}
}

func TestRemoveMessageXORInverse(t *testing.T) {
	c := newTestCache(t, newMemStore())
	if err := c.UpsertMessage("s1", "c1", post("m1", "s1", "c1", 1000, "a")); err != nil {
		t.Fatalf("upsert m1: %v", err)
	}
	s0, _ := c.Summary(context.Background(), "s1", "c1")

	if err := c.UpsertMessage("s1", "c1", post("m2", "s1", "c1", 2000, "b")); err != nil {
		t.Fatalf("upsert m2: %v", err)
	}
	s1, _ := c.Summary(context.Background(), "s1", "c1")
	if s1.ManifestHash == s0.ManifestHash {
		t.Fatalf("adding m2 should change the hash")
	}

	c.RemoveMessage("s1", "c1", "m2")
	s2, _ := c.Summary(context.Background(), "s1", "c1")
	if s2.ManifestHash != s0.ManifestHash {
		t.Fatalf("removing m2 should restore the hash: got %s want %s", s2.ManifestHash, s0.ManifestHash)
	}
}

func TestContentUpdateKeepsHash(t *testing.T) {
	c := newTestCache(t, newMemStore())
	m := post("m1", "s1", "c1", 1000, "original")
	if err := c.UpsertMessage("s1", "c1", m); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	before, _ := c.Manifest(context.Background(), "s1", "c1")

	m2 := m
	m2.Content.Text = "edited"
	m2.ModifiedDate = 5000
	if err := c.UpsertMessage("s1", "c1", m2); err != nil {
		t.Fatalf("upsert edited: %v", err)
	}
	after, _ := c.Manifest(context.Background(), "s1", "c1")

	sBefore, _ := c.Summary(context.Background(), "s1", "c1")
	if sBefore.ManifestHash != xorHex("m1") {
		t.Fatalf("set unchanged, hash should equal single-id XOR")
	}
	if before.Digests[0].ContentHash == after.Digests[0].ContentHash {
		t.Fatalf("content hash should change after edit")
	}
	if after.Digests[0].ModifiedDate != 5000 {
		t.Fatalf("digest should carry the new modified date; got %d", after.Digests[0].ModifiedDate)
	}
}

func TestTimestampBounds(t *testing.T) {
	c := newTestCache(t, newMemStore())
	created := []uint64{3000, 1000, 2000, 5000, 4000}
	for i, ts := range created {
		id := string(rune('a' + i))
		if err := c.UpsertMessage("s1", "c1", post(id, "s1", "c1", ts, "x")); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		s, _ := c.Summary(context.Background(), "s1", "c1")
		for j := 0; j <= i; j++ {
			if created[j] < s.OldestMessageTimestamp || created[j] > s.NewestMessageTimestamp {
				t.Fatalf("bounds [%d,%d] exclude %d", s.OldestMessageTimestamp, s.NewestMessageTimestamp, created[j])
			}
		}
	}
}

func TestRemoveBoundaryRecomputes(t *testing.T) {
	c := newTestCache(t, newMemStore())
	for _, m := range []models.Message{
		post("old", "s1", "c1", 1000, "x"),
		post("mid", "s1", "c1", 2000, "x"),
		post("new", "s1", "c1", 3000, "x"),
	} {
		if err := c.UpsertMessage("s1", "c1", m); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	c.RemoveMessage("s1", "c1", "mid")
	s, _ := c.Summary(context.Background(), "s1", "c1")
	if s.OldestMessageTimestamp != 1000 || s.NewestMessageTimestamp != 3000 {
		t.Fatalf("interior removal should not move bounds; got %+v", s)
	}

	c.RemoveMessage("s1", "c1", "old")
	s, _ = c.Summary(context.Background(), "s1", "c1")
	if s.OldestMessageTimestamp != 3000 {
		t.Fatalf("oldest should move to 3000 after boundary removal; got %d", s.OldestMessageTimestamp)
	}

	c.RemoveMessage("s1", "c1", "new")
	s, _ = c.Summary(context.Background(), "s1", "c1")
	if s.OldestMessageTimestamp != 0 || s.NewestMessageTimestamp != 0 {
		t.Fatalf("empty cache should report zero bounds; got %+v", s)
	}
}

func TestInitialLoadFromStorage(t *testing.T) {
	st := newMemStore()
	seedMessages(st,
		post("m1", "s1", "c1", 1000, "a"),
		post("m2", "s1", "c1", 2000, "b"),
		post("other", "s1", "c2", 9000, "z"),
	)
	if err := st.SaveSpaceMember(context.Background(), "s1", models.Member{Address: "a1", DisplayName: "Alice"}); err != nil {
		t.Fatalf("seed member: %v", err)
	}

	c := NewCacheManager(st, 0)
	s, err := c.Summary(context.Background(), "s1", "c1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if s.MessageCount != 2 || s.MemberCount != 1 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if s.OldestMessageTimestamp != 1000 || s.NewestMessageTimestamp != 2000 {
		t.Fatalf("unexpected bounds: %+v", s)
	}
	if s.ManifestHash != xorHex("m1", "m2") {
		t.Fatalf("loaded hash mismatch")
	}
}

func TestManifestOrderedByCreatedDate(t *testing.T) {
	c := newTestCache(t, newMemStore())
	for _, m := range []models.Message{
		post("late", "s1", "c1", 3000, "x"),
		post("early", "s1", "c1", 1000, "x"),
		post("middle", "s1", "c1", 2000, "x"),
	} {
		if err := c.UpsertMessage("s1", "c1", m); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	man, _ := c.Manifest(context.Background(), "s1", "c1")
	var prev uint64
	for _, d := range man.Digests {
		if d.CreatedDate < prev {
			t.Fatalf("digests out of order: %v", man.Digests)
		}
		prev = d.CreatedDate
	}
}

func TestInvalidateDropsEntries(t *testing.T) {
	st := newMemStore()
	c := NewCacheManager(st, 0)
	for _, ch := range []string{"c1", "c2"} {
		if err := c.Warm(context.Background(), "s1", ch); err != nil {
			t.Fatalf("Warm: %v", err)
		}
	}
	if err := c.Warm(context.Background(), "s2", "c1"); err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if c.Len() != 3 {
		t.Fatalf("expected 3 entries; got %d", c.Len())
	}
	c.Invalidate("s1", "c1")
	if c.Len() != 2 {
		t.Fatalf("channel invalidate should drop one entry; got %d", c.Len())
	}
	c.Invalidate("s1")
	if c.Len() != 1 {
		t.Fatalf("space invalidate should drop the rest; got %d", c.Len())
	}
}

func TestUpsertBeforeLoadIsNoop(t *testing.T) {
	st := newMemStore()
	c := NewCacheManager(st, 0)
	// never loaded: incremental updates have nothing to maintain
	if err := c.UpsertMessage("s1", "c1", post("m1", "s1", "c1", 1000, "a")); err != nil {
		t.Fatalf("UpsertMessage: %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("no entry should exist before first access")
	}
}

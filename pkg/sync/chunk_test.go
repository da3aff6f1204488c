package sync

import (
	"strings"
	"testing"

	"github.com/QuilibriumNetwork/quorum-shared/pkg/models"
)

// sized builds a post whose serialized size is roughly n bytes.
func sized(id string, created uint64, n int) models.Message {
	m := post(id, "s1", "c1", created, "")
	base := serializedSize(m)
	if n > base {
		m.Content.Text = strings.Repeat("x", n-base)
	}
	return m
}

func TestChunkMessagesGreedy(t *testing.T) {
	msgs := []models.Message{
		sized("a", 1, 400),
		sized("b", 2, 400),
		sized("c", 3, 400),
	}
	chunks := ChunkMessages(msgs, 1000)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks; got %d", len(chunks))
	}
	if len(chunks[0]) != 2 || len(chunks[1]) != 1 {
		t.Fatalf("unexpected chunk shapes: %d/%d", len(chunks[0]), len(chunks[1]))
	}
	// order matches input order
	if chunks[0][0].ID != "a" || chunks[0][1].ID != "b" || chunks[1][0].ID != "c" {
		t.Fatalf("chunk order broken")
	}
}

func TestChunkMessagesOversized(t *testing.T) {
	msgs := []models.Message{
		sized("small", 1, 100),
		sized("huge", 2, 5000),
		sized("tail", 3, 100),
	}
	chunks := ChunkMessages(msgs, 1000)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks; got %d", len(chunks))
	}
	if len(chunks[1]) != 1 || chunks[1][0].ID != "huge" {
		t.Fatalf("oversized message must ride alone")
	}
}

func TestChunkMessagesSingleOversizedOnly(t *testing.T) {
	chunks := ChunkMessages([]models.Message{sized("huge", 1, 9000)}, 1000)
	if len(chunks) != 1 || len(chunks[0]) != 1 {
		t.Fatalf("single oversized message should yield one chunk; got %v", chunks)
	}
}

func TestChunkMessagesEmpty(t *testing.T) {
	if chunks := ChunkMessages(nil, 1000); len(chunks) != 0 {
		t.Fatalf("no input should produce no chunks; got %d", len(chunks))
	}
}

package sync

import (
	"encoding/json"

	"github.com/QuilibriumNetwork/quorum-shared/pkg/models"
)

// DefaultMaxChunkSize caps the serialized byte size of one delta chunk.
const DefaultMaxChunkSize = 5 * 1024 * 1024

// ChunkMessages walks messages in order and greedily fills chunks whose
// summed serialized size stays under maxBytes. A single message larger than
// the cap is emitted alone in its own chunk; messages are never split.
// Chunk order matches input order.
func ChunkMessages(messages []models.Message, maxBytes int) [][]models.Message {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxChunkSize
	}
	var out [][]models.Message
	var cur []models.Message
	room := maxBytes
	flush := func() {
		if len(cur) == 0 {
			return
		}
		out = append(out, cur)
		cur = nil
		room = maxBytes
	}
	for _, m := range messages {
		sz := serializedSize(m)
		if sz > maxBytes {
			// Oversized record: own chunk, downstream transport decides how
			// to carry it further.
			flush()
			out = append(out, []models.Message{m})
			continue
		}
		if sz > room {
			flush()
		}
		cur = append(cur, m)
		room -= sz
	}
	flush()
	return out
}

func serializedSize(m models.Message) int {
	b, err := json.Marshal(m)
	if err != nil {
		return DefaultMaxChunkSize
	}
	return len(b)
}

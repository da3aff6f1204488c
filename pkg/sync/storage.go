package sync

import (
	"context"

	"github.com/QuilibriumNetwork/quorum-shared/pkg/models"
)

// Direction selects paging order for GetMessages.
type Direction string

const (
	DirectionForward  Direction = "forward"
	DirectionBackward Direction = "backward"
)

// GetMessagesRequest is a paged read over one channel. Cursor is an opaque
// token from a previous result; empty means start at the boundary implied
// by Direction.
type GetMessagesRequest struct {
	SpaceID   string
	ChannelID string
	Limit     int
	Cursor    string
	Direction Direction
}

// GetMessagesResult carries one page plus continuation cursors.
type GetMessagesResult struct {
	Messages   []models.Message
	NextCursor string
	PrevCursor string
}

// Storage is the persistence interface the sync core consumes. The core
// never retries; storage errors propagate to the caller unchanged.
type Storage interface {
	GetMessages(ctx context.Context, req GetMessagesRequest) (GetMessagesResult, error)
	// GetMessage returns nil (no error) when the message is absent.
	GetMessage(ctx context.Context, spaceID, channelID, messageID string) (*models.Message, error)
	SaveMessage(ctx context.Context, m models.Message) error
	DeleteMessage(ctx context.Context, messageID string) error

	GetSpaceMembers(ctx context.Context, spaceID string) ([]models.Member, error)
	SaveSpaceMember(ctx context.Context, spaceID string, m models.Member) error
	RemoveSpaceMember(ctx context.Context, spaceID, address string) error
}

// TombstoneStorage is the optional fast path for tombstone persistence.
// Absence is fine; the host then reloads the in-process log itself.
type TombstoneStorage interface {
	SaveTombstone(ctx context.Context, t models.Tombstone) error
	ListTombstones(ctx context.Context) ([]models.Tombstone, error)
	DeleteTombstone(ctx context.Context, t models.Tombstone) error
}

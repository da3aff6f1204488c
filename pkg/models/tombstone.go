package models

// Tombstone records that a specific message was deleted so deletions can
// propagate via sync. DeletedAt is milliseconds since epoch.
type Tombstone struct {
	MessageID string `json:"messageId"`
	SpaceID   string `json:"spaceId"`
	ChannelID string `json:"channelId"`
	DeletedAt uint64 `json:"deletedAt"`
}

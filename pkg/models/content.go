package models

// ContentKind tags the message content variant.
type ContentKind string

const (
	KindPost               ContentKind = "post"
	KindEmbed              ContentKind = "embed"
	KindSticker            ContentKind = "sticker"
	KindEditMessage        ContentKind = "edit-message"
	KindRemoveMessage      ContentKind = "remove-message"
	KindJoin               ContentKind = "join"
	KindLeave              ContentKind = "leave"
	KindKick               ContentKind = "kick"
	KindEvent              ContentKind = "event"
	KindUpdateProfile      ContentKind = "update-profile"
	KindMute               ContentKind = "mute"
	KindPin                ContentKind = "pin"
	KindReaction           ContentKind = "reaction"
	KindRemoveReaction     ContentKind = "remove-reaction"
	KindDeleteConversation ContentKind = "delete-conversation"
)

// Content is the tagged union of message payload variants. Only the fields
// belonging to Kind are meaningful; the rest stay zero. Missing optional
// fields canonicalise as empty strings when hashed.
type Content struct {
	Kind     ContentKind `json:"kind"`
	SenderID string      `json:"senderId"`

	// post / event
	Text string `json:"text,omitempty"`
	// post / embed / sticker reply target
	ReplyID string `json:"replyId,omitempty"`

	// embed
	ImageURL string `json:"imageUrl,omitempty"`
	VideoURL string `json:"videoUrl,omitempty"`

	// sticker
	StickerID string `json:"stickerId,omitempty"`

	// edit-message
	OriginalID string `json:"originalId,omitempty"`
	EditedText string `json:"editedText,omitempty"`
	EditedAt   uint64 `json:"editedAt,omitempty"`

	// remove-message
	RemoveID string `json:"removeId,omitempty"`

	// update-profile
	DisplayName string `json:"displayName,omitempty"`
	UserIcon    string `json:"userIcon,omitempty"`

	// mute / pin
	Target          string `json:"target,omitempty"`
	Action          string `json:"action,omitempty"`
	MuteID          string `json:"muteId,omitempty"`
	TargetMessageID string `json:"targetMessageId,omitempty"`

	// reaction / remove-reaction
	MessageID string `json:"messageId,omitempty"`
	Reaction  string `json:"reaction,omitempty"`
}

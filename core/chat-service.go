package core

import "context"

// Chat actions understood by the transport.
const (
	ActionTyping      = "typing"
	ActionUploadPhoto = "upload_photo"
)

// Attachment is an image file attached to a chat message, referenced by the
// platform file id. The payload is only downloaded when a request needs it.
type Attachment struct {
	FileID   string
	MimeType string
}

// ReplyTarget describes the message an inbound message replies to.
type ReplyTarget struct {
	MessageID   int
	FromBot     bool
	Attachments []Attachment
}

// Inbound is one chat message after platform-level filtering: mention-stripped
// text, image attachments and the optional reply target.
type Inbound struct {
	ChatID      int64
	MessageID   int
	UserName    string
	Content     string
	Attachments []Attachment
	ReplyTo     *ReplyTarget
}

// Transport is the outbound side of the chat platform. Implemented by the bot,
// consumed by the engine.
type Transport interface {
	// SendStatus posts a new message replying to replyTo and returns its id.
	SendStatus(chatID int64, replyTo int, text string) (int, error)
	EditStatus(chatID int64, messageID int, text string) error
	// SendPhoto uploads one image replying to replyTo and returns the id of
	// the message carrying it.
	SendPhoto(chatID int64, replyTo int, caption, name string, data []byte) (int, error)
	SendAction(chatID int64, action string) error
	// Download fetches an attachment payload, returning data and MIME type.
	Download(ctx context.Context, att Attachment) ([]byte, string, error)
}

// MessageHandler processes one inbound message end to end.
type MessageHandler interface {
	HandleMessage(ctx context.Context, in Inbound)
}

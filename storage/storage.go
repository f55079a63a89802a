package storage

import (
	"fmt"
	"time"
)

// Turn is one exchange step in a dialogue thread.
type Turn struct {
	IsUser    bool      `bson:"is_user"`
	Text      string    `bson:"text"`
	Timestamp time.Time `bson:"timestamp"`
}

// Thread is the ordered dialogue history attached to one anchor message.
// Insertion order is significant: it is replayed to the model as history.
type Thread struct {
	Key       string    `bson:"key"`
	Turns     []Turn    `bson:"turns"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// ImageBlob is an encoded image payload with its MIME type.
type ImageBlob struct {
	MimeType string `bson:"mime_type"`
	Data     []byte `bson:"data"`
}

// GenerationRecord remembers one emitted image batch so a reply to it can
// regenerate. Prompt is the refined creative prompt actually sent to the
// model, so a later regeneration compounds on the refined version.
type GenerationRecord struct {
	Key       string      `bson:"key"`
	Prompt    string      `bson:"prompt"`
	Images    []ImageBlob `bson:"images"`
	CreatedAt time.Time   `bson:"created_at"`
}

// Key builds the session key for a message within a chat. Telegram message
// ids are only unique per chat, so both parts are needed.
func Key(chatID int64, messageID int) string {
	return fmt.Sprintf("%d:%d", chatID, messageID)
}

// SessionStorage keeps dialogue threads and generation records addressed by
// message keys. Entries are never deleted. Implementations must serialize
// AppendTurns per key so concurrent replies to the same anchor cannot lose
// updates.
type SessionStorage interface {
	// GetThread returns the thread stored under key, nil if none.
	GetThread(key string) (*Thread, error)
	// PutThread stores a full thread snapshot under key.
	PutThread(key string, thread *Thread) error
	// AppendTurns atomically appends turns to the thread under key, creating
	// it if missing, and returns the resulting thread.
	AppendTurns(key string, turns ...Turn) (*Thread, error)
	// GetRecord returns the generation record stored under key, nil if none.
	GetRecord(key string) (*GenerationRecord, error)
	PutRecord(key string, record *GenerationRecord) error
	Close() error
}

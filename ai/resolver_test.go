package ai

import (
	"Palette/core"
	"Palette/storage"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resolverChat = int64(42)

func seedRecord(t *testing.T, store storage.SessionStorage, messageID int, prompt string) {
	t.Helper()
	err := store.PutRecord(storage.Key(resolverChat, messageID), &storage.GenerationRecord{
		Prompt: prompt,
		Images: []storage.ImageBlob{*pngBlob("seed")},
	})
	require.NoError(t, err)
}

func seedThread(t *testing.T, store storage.SessionStorage, messageID int) {
	t.Helper()
	_, err := store.AppendTurns(storage.Key(resolverChat, messageID),
		storage.Turn{IsUser: true, Text: "explain entropy"},
		storage.Turn{IsUser: false, Text: "entropy is a measure of disorder"},
	)
	require.NoError(t, err)
}

func TestResolveNoReply(t *testing.T) {
	e := newTestEngine(t, testConfig(), &fakeGenerator{}, newFakeTransport(), nil)

	req := e.resolve(core.Inbound{ChatID: resolverChat, MessageID: 1, Content: "draw a boat"})
	assert.Equal(t, ModeNewImage, req.Mode)

	req = e.resolve(core.Inbound{ChatID: resolverChat, MessageID: 2, Content: "how deep is the ocean?"})
	assert.Equal(t, ModeNewText, req.Mode)
}

func TestResolveRegenerationWinsOverKeywords(t *testing.T) {
	store := storage.NewMemoryStorage(0)
	seedRecord(t, store, 10, "a dog")
	e := newTestEngine(t, testConfig(), &fakeGenerator{}, newFakeTransport(), store)

	// Content full of image keywords still resolves to regeneration
	req := e.resolve(core.Inbound{
		ChatID:    resolverChat,
		MessageID: 11,
		Content:   "draw it again, make the picture pink",
		ReplyTo:   &core.ReplyTarget{MessageID: 10, FromBot: true},
	})
	assert.Equal(t, ModeRegenerate, req.Mode)
	require.NotNil(t, req.Record)
	assert.Equal(t, "a dog", req.Record.Prompt)
}

func TestResolveRegenerationIgnoresNewAttachments(t *testing.T) {
	store := storage.NewMemoryStorage(0)
	seedRecord(t, store, 10, "a dog")
	e := newTestEngine(t, testConfig(), &fakeGenerator{}, newFakeTransport(), store)

	req := e.resolve(core.Inbound{
		ChatID:      resolverChat,
		MessageID:   11,
		Content:     "make it pink",
		Attachments: []core.Attachment{{FileID: "new-upload"}},
		ReplyTo:     &core.ReplyTarget{MessageID: 10, FromBot: true},
	})
	assert.Equal(t, ModeRegenerate, req.Mode)
	assert.Empty(t, req.ReplyAttachments)
}

func TestResolveRecordWinsOverThread(t *testing.T) {
	store := storage.NewMemoryStorage(0)
	seedRecord(t, store, 10, "a dog")
	seedThread(t, store, 10)
	e := newTestEngine(t, testConfig(), &fakeGenerator{}, newFakeTransport(), store)

	req := e.resolve(core.Inbound{
		ChatID:    resolverChat,
		MessageID: 11,
		Content:   "again please",
		ReplyTo:   &core.ReplyTarget{MessageID: 10, FromBot: true},
	})
	assert.Equal(t, ModeRegenerate, req.Mode)
}

func TestResolveTextContinuation(t *testing.T) {
	store := storage.NewMemoryStorage(0)
	seedThread(t, store, 20)
	e := newTestEngine(t, testConfig(), &fakeGenerator{}, newFakeTransport(), store)

	req := e.resolve(core.Inbound{
		ChatID:    resolverChat,
		MessageID: 21,
		Content:   "can you simplify that?",
		ReplyTo:   &core.ReplyTarget{MessageID: 20, FromBot: true},
	})
	assert.Equal(t, ModeContinueText, req.Mode)
	require.NotNil(t, req.Thread)
	assert.Len(t, req.Thread.Turns, 2)
}

func TestResolveReferenceImage(t *testing.T) {
	e := newTestEngine(t, testConfig(), &fakeGenerator{}, newFakeTransport(), nil)

	atts := []core.Attachment{{FileID: "photo-1", MimeType: "image/jpeg"}}

	req := e.resolve(core.Inbound{
		ChatID:    resolverChat,
		MessageID: 31,
		Content:   "draw this in watercolor",
		ReplyTo:   &core.ReplyTarget{MessageID: 30, FromBot: false, Attachments: atts},
	})
	assert.Equal(t, ModeReferenceImage, req.Mode)
	assert.Equal(t, atts, req.ReplyAttachments)

	// Same reply without image intent falls through to fresh classification
	req = e.resolve(core.Inbound{
		ChatID:    resolverChat,
		MessageID: 32,
		Content:   "who is in this?",
		ReplyTo:   &core.ReplyTarget{MessageID: 30, FromBot: false, Attachments: atts},
	})
	assert.Equal(t, ModeNewText, req.Mode)
}

func TestResolveBotReplyWithoutStateFallsThrough(t *testing.T) {
	e := newTestEngine(t, testConfig(), &fakeGenerator{}, newFakeTransport(), nil)

	req := e.resolve(core.Inbound{
		ChatID:    resolverChat,
		MessageID: 41,
		Content:   "sketch a lighthouse",
		ReplyTo:   &core.ReplyTarget{MessageID: 40, FromBot: true},
	})
	assert.Equal(t, ModeNewImage, req.Mode)

	req = e.resolve(core.Inbound{
		ChatID:    resolverChat,
		MessageID: 42,
		Content:   "what happened yesterday?",
		ReplyTo:   &core.ReplyTarget{MessageID: 40, FromBot: true},
	})
	assert.Equal(t, ModeNewText, req.Mode)
}

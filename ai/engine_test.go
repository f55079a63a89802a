package ai

import (
	"Palette/core"
	"Palette/holder"
	"Palette/storage"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"google.golang.org/genai"
)

// fakeGenerator records calls and answers through configurable functions.
// Variant calls run concurrently, so everything is guarded.
type fakeGenerator struct {
	mu            sync.Mutex
	calls         int
	variantCalls  [][]*genai.Part
	dialogueCalls [][]storage.Turn

	variantFn  func(call int, parts []*genai.Part) (string, *storage.ImageBlob, error)
	dialogueFn func(turns []storage.Turn) (string, error)
}

func (f *fakeGenerator) GenerateVariant(_ context.Context, parts []*genai.Part) (string, *storage.ImageBlob, error) {
	f.mu.Lock()
	call := f.calls
	f.calls++
	f.variantCalls = append(f.variantCalls, parts)
	fn := f.variantFn
	f.mu.Unlock()

	if fn == nil {
		return "", nil, fmt.Errorf("no variant handler configured")
	}
	return fn(call, parts)
}

func (f *fakeGenerator) GenerateDialogue(_ context.Context, turns []storage.Turn) (string, error) {
	f.mu.Lock()
	f.dialogueCalls = append(f.dialogueCalls, turns)
	fn := f.dialogueFn
	f.mu.Unlock()

	if fn == nil {
		return "", fmt.Errorf("no dialogue handler configured")
	}
	return fn(turns)
}

type sentMessage struct {
	chatID  int64
	replyTo int
	msgID   int
	text    string
}

type sentPhoto struct {
	chatID  int64
	replyTo int
	msgID   int
	name    string
	data    []byte
}

// fakeTransport assigns increasing message ids starting at 1000 and records
// every outbound operation.
type fakeTransport struct {
	mu       sync.Mutex
	nextID   int
	statuses []sentMessage
	edits    []sentMessage
	photos   []sentPhoto
	actions  []string

	downloads    map[string][]byte
	failDownload map[string]bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		nextID:       1000,
		downloads:    make(map[string][]byte),
		failDownload: make(map[string]bool),
	}
}

func (f *fakeTransport) SendStatus(chatID int64, replyTo int, text string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.statuses = append(f.statuses, sentMessage{chatID: chatID, replyTo: replyTo, msgID: f.nextID, text: text})
	return f.nextID, nil
}

func (f *fakeTransport) EditStatus(chatID int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, sentMessage{chatID: chatID, msgID: messageID, text: text})
	return nil
}

func (f *fakeTransport) SendPhoto(chatID int64, replyTo int, caption, name string, data []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.photos = append(f.photos, sentPhoto{chatID: chatID, replyTo: replyTo, msgID: f.nextID, name: name, data: data})
	return f.nextID, nil
}

func (f *fakeTransport) SendAction(chatID int64, action string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action)
	return nil
}

func (f *fakeTransport) Download(_ context.Context, att core.Attachment) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDownload[att.FileID] {
		return nil, "", fmt.Errorf("file server returned 404 Not Found")
	}
	data, ok := f.downloads[att.FileID]
	if !ok {
		data = []byte(att.FileID)
	}
	return data, "image/png", nil
}

func (f *fakeTransport) lastEdit() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.edits) == 0 {
		return sentMessage{}
	}
	return f.edits[len(f.edits)-1]
}

func testConfig() *core.Config {
	return &core.Config{
		VariantCount: 3,
		TextModel:    "test-text-model",
		ImageModel:   "test-image-model",
	}
}

func newTestEngine(t *testing.T, conf *core.Config, gen *fakeGenerator, tr *fakeTransport, store storage.SessionStorage) *Engine {
	t.Helper()
	if store == nil {
		store = storage.NewMemoryStorage(0)
	}
	return &Engine{
		conf:      conf,
		log:       slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError})),
		sessions:  holder.NewSessionManager(store),
		gen:       gen,
		transport: tr,
	}
}

// pngBlob builds a distinguishable image payload for tests.
func pngBlob(tag string) *storage.ImageBlob {
	return &storage.ImageBlob{MimeType: "image/png", Data: []byte("png:" + tag)}
}

// promptPart extracts the text part of a variant call.
func promptPart(parts []*genai.Part) string {
	for _, p := range parts {
		if p.Text != "" {
			return p.Text
		}
	}
	return ""
}

// inlineParts extracts the inline image payloads of a variant call.
func inlineParts(parts []*genai.Part) [][]byte {
	var out [][]byte
	for _, p := range parts {
		if p.InlineData != nil {
			out = append(out, p.InlineData.Data)
		}
	}
	return out
}

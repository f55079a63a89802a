package ai

import (
	"Palette/core"
	"Palette/holder"
	"Palette/lib/sl"
	"Palette/storage"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const heartbeatInterval = 5 * time.Second

const (
	clarifyResponse = "Tell me what you'd like: describe an image to generate, or just ask me something."
	workingOnImage  = "🎨 Working on it..."
	workingOnText   = "💭 Thinking..."
	noOutputNotice  = "The model returned neither text nor images for this one. Try rewording your request."
)

// Engine resolves each inbound message against session state and runs either
// the image fan-out or a text turn. It implements core.MessageHandler.
type Engine struct {
	conf      *core.Config
	log       *slog.Logger
	sessions  *holder.SessionManager
	gen       generator
	transport core.Transport
}

func NewEngine(conf *core.Config, log *slog.Logger, store storage.SessionStorage, transport core.Transport) *Engine {
	return &Engine{
		conf:      conf,
		log:       log.With(sl.Module("engine")),
		sessions:  holder.NewSessionManager(store),
		gen:       NewGemini(conf, log),
		transport: transport,
	}
}

func (e *Engine) Close() error {
	return e.sessions.Close()
}

// HandleMessage runs one inbound message through resolution, generation and
// delivery. It never panics the dispatch loop: every failure ends in a status
// message edit.
func (e *Engine) HandleMessage(ctx context.Context, in core.Inbound) {
	log := e.log.With(
		slog.String("req", uuid.NewString()[:8]),
		slog.Int64("chat", in.ChatID),
	)

	content := strings.TrimSpace(in.Content)
	if content == "" {
		if _, err := e.transport.SendStatus(in.ChatID, in.MessageID, clarifyResponse); err != nil {
			log.Error("sending clarify response", sl.Err(err))
		}
		return
	}

	req := e.resolve(in)
	log.With(slog.String("mode", req.Mode.String())).Info("request resolved")

	action := core.ActionTyping
	working := workingOnText
	if req.Mode == ModeNewImage || req.Mode == ModeRegenerate || req.Mode == ModeReferenceImage {
		action = core.ActionUploadPhoto
		working = workingOnImage
	}

	statusID, err := e.transport.SendStatus(in.ChatID, in.MessageID, working)
	if err != nil {
		log.Error("posting status message", sl.Err(err))
		statusID = 0
	}

	// Heartbeat runs until the pipeline exits, success or failure
	stop := make(chan struct{})
	go e.heartbeat(in.ChatID, action, stop)
	defer close(stop)

	switch req.Mode {
	case ModeNewText:
		e.textTurn(ctx, log, in, content, nil, statusID)
	case ModeContinueText:
		e.textTurn(ctx, log, in, content, req.Thread, statusID)
	default:
		e.imageTurn(ctx, log, in, req, content, statusID)
	}
}

// heartbeat re-signals the chat action every few seconds while a pipeline is
// in flight. Best effort: send failures are swallowed.
func (e *Engine) heartbeat(chatID int64, action string, stop <-chan struct{}) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.transport.SendAction(chatID, action); err != nil {
				e.log.Debug("sending chat action", sl.Err(err))
			}
		case <-stop:
			return
		}
	}
}

// deliver puts the final text into the status message, falling back to a new
// message when the edit is impossible.
func (e *Engine) deliver(log *slog.Logger, in core.Inbound, statusID int, text string) {
	if statusID != 0 {
		err := e.transport.EditStatus(in.ChatID, statusID, text)
		if err == nil {
			return
		}
		log.Warn("editing status message", sl.Err(err))
	}
	if _, err := e.transport.SendStatus(in.ChatID, in.MessageID, text); err != nil {
		log.Error("sending final message", sl.Err(err))
	}
}

// textTurn runs one dialogue exchange. A nil thread starts a fresh
// conversation anchored at the triggering message; otherwise the stored
// thread is replayed and grows at its anchor.
func (e *Engine) textTurn(ctx context.Context, log *slog.Logger, in core.Inbound, content string, thread *storage.Thread, statusID int) {
	anchorKey := storage.Key(in.ChatID, in.MessageID)
	var mirrors []string
	var history []storage.Turn
	if thread != nil {
		history = thread.Turns
		anchorKey = storage.Key(in.ChatID, in.ReplyTo.MessageID)
		mirrors = append(mirrors, storage.Key(in.ChatID, in.MessageID))
	}

	turns := append(history, storage.Turn{IsUser: true, Text: content})
	reply, err := e.gen.GenerateDialogue(ctx, turns)
	if err != nil {
		log.Error("text turn failed", sl.Err(err))
		e.deliver(log, in, statusID, failureMessage(classifyFailure(err)))
		return
	}

	e.deliver(log, in, statusID, reply)

	if statusID != 0 {
		mirrors = append(mirrors, storage.Key(in.ChatID, statusID))
	}
	e.sessions.RecordExchange(anchorKey, mirrors, content, reply)
	log.With(sl.Key(anchorKey), slog.Int("turns", len(turns)+1)).Info("exchange recorded")
}

// imageTurn runs the multi-variant image path for the three image modes.
func (e *Engine) imageTurn(ctx context.Context, log *slog.Logger, in core.Inbound, req Request, content string, statusID int) {
	var prompt string
	var refs, extras []storage.ImageBlob

	switch req.Mode {
	case ModeRegenerate:
		prompt = regenerationPrompt(req.Record.Prompt, content)
		refs = req.Record.Images
		// Attachments on the triggering message are ignored here: the
		// stored reference set wins during regeneration
	case ModeReferenceImage:
		prompt = e.refinePrompt(ctx, content)
		extras = e.download(ctx, log, req.ReplyAttachments)
		extras = append(extras, e.download(ctx, log, in.Attachments)...)
	default:
		prompt = e.refinePrompt(ctx, content)
		extras = e.download(ctx, log, in.Attachments)
	}

	b := e.generateVariants(ctx, prompt, refs, extras)
	if b.allFailed() {
		log.Error("all variants failed", sl.Err(b.firstError()))
		e.deliver(log, in, statusID, failureMessage(classifyFailure(b.firstError())))
		return
	}

	if len(b.images) > 0 {
		var keys []string
		for i, img := range b.images {
			name := fmt.Sprintf("palette-%d%s", i+1, extensionFor(img.MimeType))
			id, err := e.transport.SendPhoto(in.ChatID, in.MessageID, "", name, img.Data)
			if err != nil {
				log.Error("sending image", sl.Err(err))
				continue
			}
			keys = append(keys, storage.Key(in.ChatID, id))
		}
		if len(keys) > 0 {
			e.sessions.SaveRecord(&storage.GenerationRecord{
				Prompt: prompt,
				Images: b.images,
			}, keys...)
			log.With(slog.Int("images", len(b.images))).Info("generation record stored")
		}

		note := fmt.Sprintf("Done: %d of %d variants.", len(b.images), b.total)
		if b.text != "" {
			note = b.text
		}
		e.deliver(log, in, statusID, note)
		return
	}

	if b.text != "" {
		e.deliver(log, in, statusID, b.text)
		return
	}
	e.deliver(log, in, statusID, noOutputNotice)
}

// download fetches attachment payloads. A failed download is logged and
// dropped; the request continues with whatever arrived.
func (e *Engine) download(ctx context.Context, log *slog.Logger, atts []core.Attachment) []storage.ImageBlob {
	var blobs []storage.ImageBlob
	for _, att := range atts {
		data, mime, err := e.transport.Download(ctx, att)
		if err != nil {
			log.Warn("attachment download failed, skipping", sl.Err(err))
			continue
		}
		if mime == "" {
			mime = att.MimeType
		}
		if mime == "" {
			mime = "image/jpeg"
		}
		blobs = append(blobs, storage.ImageBlob{MimeType: mime, Data: data})
	}
	return blobs
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	return ".png"
}

package ai

import (
	"Palette/core"
	"Palette/storage"
	"log/slog"
)

// RequestMode is the kind of work one inbound message resolves to.
type RequestMode int

const (
	// ModeNewImage starts a fresh image generation from the message text.
	ModeNewImage RequestMode = iota
	// ModeNewText starts a fresh text conversation.
	ModeNewText
	// ModeRegenerate reruns a stored image batch with an appended
	// modification.
	ModeRegenerate
	// ModeContinueText resumes a stored dialogue thread.
	ModeContinueText
	// ModeReferenceImage generates images using the replied-to message's
	// attachments as references.
	ModeReferenceImage
)

func (m RequestMode) String() string {
	switch m {
	case ModeNewImage:
		return "new-image"
	case ModeNewText:
		return "new-text"
	case ModeRegenerate:
		return "regenerate"
	case ModeContinueText:
		return "continue-text"
	case ModeReferenceImage:
		return "reference-image"
	}
	return "unknown"
}

// Request is a resolved inbound message, carrying whatever stored state its
// mode needs.
type Request struct {
	Mode             RequestMode
	Record           *storage.GenerationRecord // set for ModeRegenerate
	Thread           *storage.Thread           // set for ModeContinueText
	ReplyAttachments []core.Attachment         // set for ModeReferenceImage
}

// resolve walks the reply chain and picks the request mode. The rule order
// matters: regeneration wins over thread continuation for the same reply
// target, and both win over re-classifying the text.
func (e *Engine) resolve(in core.Inbound) Request {
	if in.ReplyTo != nil {
		replyKey := storage.Key(in.ChatID, in.ReplyTo.MessageID)

		if in.ReplyTo.FromBot {
			if record := e.sessions.Record(replyKey); record != nil {
				return Request{Mode: ModeRegenerate, Record: record}
			}
			if thread := e.sessions.Thread(replyKey); thread != nil {
				return Request{Mode: ModeContinueText, Thread: thread}
			}
		} else if len(in.ReplyTo.Attachments) > 0 && DetectImageIntent(in.Content) {
			return Request{Mode: ModeReferenceImage, ReplyAttachments: in.ReplyTo.Attachments}
		}

		// Reply target carries no usable state, classify the text alone
		e.log.With(
			slog.Int("reply_to", in.ReplyTo.MessageID),
		).Debug("reply target has no session state, classifying fresh")
	}

	if DetectImageIntent(in.Content) {
		return Request{Mode: ModeNewImage}
	}
	return Request{Mode: ModeNewText}
}

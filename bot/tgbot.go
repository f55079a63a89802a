package bot

import (
	"Palette/core"
	"Palette/lib/sl"
	"Palette/settings"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
)

type TgBot struct {
	conf        *core.Config
	log         *slog.Logger
	api         *tgbotapi.BotAPI
	handler     core.MessageHandler
	settings    *settings.Client
	botUsername string
	files       *http.Client
	stop        chan struct{}
}

func NewTgBot(conf *core.Config, log *slog.Logger) (*TgBot, error) {
	tgBot := &TgBot{
		conf:        conf,
		log:         log.With(sl.Module("tgbot")),
		botUsername: conf.Username,
		files: &http.Client{
			Timeout: 60 * time.Second,
		},
		stop: make(chan struct{}),
	}

	api, err := tgbotapi.NewBotAPI(conf.TelegramApiKey)
	if err != nil {
		return nil, err
	}
	tgBot.api = api
	if tgBot.botUsername == "" {
		tgBot.botUsername = api.Self.UserName
	}

	return tgBot, nil
}

// SetHandler sets the message handler
func (t *TgBot) SetHandler(handler core.MessageHandler) {
	t.handler = handler
}

// SetSettings sets the remote settings client used by the /config command
func (t *TgBot) SetSettings(client *settings.Client) {
	t.settings = client
}

func (t *TgBot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates, err := t.api.GetUpdatesChan(u)
	if err != nil {
		return err
	}

	for {
		select {
		case <-t.stop:
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			t.dispatch(update.Message)
		}
	}
}

func (t *TgBot) Stop() {
	close(t.stop)
}

func (t *TgBot) dispatch(incoming *tgbotapi.Message) {
	chat := incoming.Chat

	if !incoming.IsCommand() && !chat.IsPrivate() && !t.isMentioned(incoming.Text) && !t.isReplyToBot(incoming) {
		return
	}

	if incoming.IsCommand() {
		switch incoming.Command() {
		case "help", "start":
			text := "Describe an image and I'll generate a few variants of it.\n"
			text += "Reply to a generated image to refine it, or reply to my text answers to keep the conversation going.\n"
			text += "Reply to someone's photo with an image request to use it as a reference.\n"
			text += "/help - show this help\n"
			t.plainResponse(chat.ID, text)
			return
		case "config":
			t.handleConfig(incoming)
			return
		}
		// Unknown commands fall through as plain text
	}

	if t.handler == nil {
		return
	}

	in := t.buildInbound(incoming)

	logText := in.Content
	if len(logText) > 50 {
		logText = logText[:50] + "..."
	}
	t.log.With(
		slog.String("user", in.UserName),
		slog.String("text", logText),
	).Info("incoming message")

	go t.handler.HandleMessage(context.Background(), in)
}

// buildInbound flattens a telegram message into the engine's inbound shape:
// mention-stripped text, image attachments and the reply target, if any.
func (t *TgBot) buildInbound(msg *tgbotapi.Message) core.Inbound {
	in := core.Inbound{
		ChatID:      msg.Chat.ID,
		MessageID:   msg.MessageID,
		Content:     t.stripMention(messageText(msg)),
		Attachments: imageAttachments(msg),
	}
	if msg.From != nil {
		in.UserName = msg.From.UserName
	}

	if reply := msg.ReplyToMessage; reply != nil {
		target := &core.ReplyTarget{
			MessageID:   reply.MessageID,
			Attachments: imageAttachments(reply),
		}
		if reply.From != nil {
			target.FromBot = reply.From.UserName == t.api.Self.UserName
		}
		in.ReplyTo = target
	}

	return in
}

// messageText prefers the text body, falling back to a media caption.
func messageText(msg *tgbotapi.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

// imageAttachments collects image file references from a message: the
// largest photo size, plus image documents.
func imageAttachments(msg *tgbotapi.Message) []core.Attachment {
	var atts []core.Attachment
	if msg.Photo != nil && len(*msg.Photo) > 0 {
		sizes := *msg.Photo
		largest := sizes[len(sizes)-1]
		atts = append(atts, core.Attachment{FileID: largest.FileID, MimeType: "image/jpeg"})
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/") {
		atts = append(atts, core.Attachment{FileID: msg.Document.FileID, MimeType: msg.Document.MimeType})
	}
	return atts
}

func (t *TgBot) handleConfig(incoming *tgbotapi.Message) {
	if incoming.From == nil || int64(incoming.From.ID) != t.conf.AdminId || t.conf.AdminId == 0 {
		t.plainResponse(incoming.Chat.ID, "This command is reserved for the bot admin.")
		return
	}
	if t.settings == nil {
		t.plainResponse(incoming.Chat.ID, "Remote settings are not enabled.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	args := strings.Fields(incoming.CommandArguments())
	switch {
	case len(args) == 2 && args[0] == "get":
		value, err := t.settings.Get(ctx, args[1])
		if err != nil {
			t.log.Error("settings get", sl.Err(err))
			t.plainResponse(incoming.Chat.ID, "Could not read that key.")
			return
		}
		t.plainResponse(incoming.Chat.ID, fmt.Sprintf("%s = %s", args[1], value))
	case len(args) >= 3 && args[0] == "set":
		value := strings.Join(args[2:], " ")
		if err := t.settings.Set(ctx, args[1], value); err != nil {
			t.log.Error("settings set", sl.Err(err))
			t.plainResponse(incoming.Chat.ID, "Could not update that key.")
			return
		}
		t.plainResponse(incoming.Chat.ID, fmt.Sprintf("%s updated", args[1]))
	default:
		t.plainResponse(incoming.Chat.ID, "Usage: /config get <key> | /config set <key> <value>")
	}
}

// SendStatus posts a new message replying to replyTo and returns its id.
func (t *TgBot) SendStatus(chatID int64, replyTo int, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	sent, err := t.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (t *TgBot) EditStatus(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	_, err := t.api.Send(edit)
	return err
}

func (t *TgBot) SendPhoto(chatID int64, replyTo int, caption, name string, data []byte) (int, error) {
	photo := tgbotapi.NewPhotoUpload(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	photo.ReplyToMessageID = replyTo
	photo.Caption = caption
	sent, err := t.api.Send(photo)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (t *TgBot) SendAction(chatID int64, action string) error {
	_, err := t.api.Send(tgbotapi.NewChatAction(chatID, action))
	return err
}

// Download resolves the file id against the telegram file server and fetches
// the payload.
func (t *TgBot) Download(ctx context.Context, att core.Attachment) ([]byte, string, error) {
	fileUrl, err := t.api.GetFileDirectURL(att.FileID)
	if err != nil {
		return nil, "", fmt.Errorf("resolving file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileUrl, nil)
	if err != nil {
		return nil, "", fmt.Errorf("making request: %w", err)
	}

	resp, err := t.files.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("downloading file: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			t.log.Warn("closing body", slog.String("error", err.Error()))
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("file server returned %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading file body: %w", err)
	}

	mime := att.MimeType
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	return data, mime, nil
}

func (t *TgBot) plainResponse(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := t.api.Send(msg); err != nil {
		t.log.Error("sending message", sl.Err(err))
	}
}

// stripMention removes the bot mention from the message text.
func (t *TgBot) stripMention(text string) string {
	if t.botUsername == "" {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(strings.ReplaceAll(text, "@"+t.botUsername, ""))
}

// detect if we are mentioned in the message
func (t *TgBot) isMentioned(text string) bool {
	if t.botUsername != "" {
		return strings.Contains(text, "@"+t.botUsername)
	}
	return false
}

// detect if message is a reply to a message from the bot
func (t *TgBot) isReplyToBot(message *tgbotapi.Message) bool {
	if message.ReplyToMessage != nil && message.ReplyToMessage.From != nil {
		return message.ReplyToMessage.From.UserName == t.api.Self.UserName
	}
	return false
}

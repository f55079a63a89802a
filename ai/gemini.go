package ai

import (
	"Palette/core"
	"Palette/lib/sl"
	"Palette/storage"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/genai"
)

// generator is the slice of the generative service the engine needs. Gemini
// implements it; tests substitute fakes.
type generator interface {
	// GenerateVariant issues one multimodal call and returns whatever text
	// and inline image the model produced. Either may be absent.
	GenerateVariant(ctx context.Context, parts []*genai.Part) (string, *storage.ImageBlob, error)
	// GenerateDialogue replays a dialogue history and returns the model's
	// text reply.
	GenerateDialogue(ctx context.Context, turns []storage.Turn) (string, error)
}

type Gemini struct {
	conf *core.Config
	log  *slog.Logger

	mu     sync.Mutex
	client *genai.Client
}

func NewGemini(conf *core.Config, log *slog.Logger) *Gemini {
	return &Gemini{
		conf: conf,
		log:  log.With(sl.Module("gemini")),
	}
}

// ensureClient initializes the genai client on first use.
func (g *Gemini) ensureClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}
	if g.conf.GeminiApiKey == "" {
		return nil, fmt.Errorf("gemini API key is not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: g.conf.GeminiApiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	g.log.Info("gemini client initialized", sl.Secret(g.conf.GeminiApiKey))
	g.client = client
	return client, nil
}

func (g *Gemini) GenerateVariant(ctx context.Context, parts []*genai.Part) (string, *storage.ImageBlob, error) {
	client, err := g.ensureClient(ctx)
	if err != nil {
		return "", nil, err
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
	}

	resp, err := client.Models.GenerateContent(ctx, g.conf.ImageModel, contents, config)
	if err != nil {
		return "", nil, fmt.Errorf("image generation: %w", err)
	}

	text, image := extractParts(resp)
	g.log.With(
		slog.String("model", g.conf.ImageModel),
		slog.Int("text_len", len(text)),
		slog.Bool("image", image != nil),
	).Debug("variant completed")
	return text, image, nil
}

func (g *Gemini) GenerateDialogue(ctx context.Context, turns []storage.Turn) (string, error) {
	client, err := g.ensureClient(ctx)
	if err != nil {
		return "", err
	}

	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		var role genai.Role = genai.RoleModel
		if turn.IsUser {
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}

	resp, err := client.Models.GenerateContent(ctx, g.conf.TextModel, contents, nil)
	if err != nil {
		return "", fmt.Errorf("text generation: %w", err)
	}

	text, _ := extractParts(resp)
	if text == "" {
		return "", fmt.Errorf("text generation: empty response")
	}
	return text, nil
}

// extractParts pulls the concatenated text and the first inline image out of
// a response. A call may legitimately return image-only or text-only output,
// so absence of either is not an error here.
func extractParts(resp *genai.GenerateContentResponse) (string, *storage.ImageBlob) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	var text string
	var image *storage.ImageBlob
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
		if image == nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			image = &storage.ImageBlob{
				MimeType: part.InlineData.MIMEType,
				Data:     part.InlineData.Data,
			}
		}
	}
	return text, image
}

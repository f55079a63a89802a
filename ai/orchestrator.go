package ai

import (
	"Palette/lib/sl"
	"Palette/storage"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"
)

const defaultVariantCount = 3

type variantResult struct {
	text  string
	image *storage.ImageBlob
	err   error
}

// batch aggregates the outcome of one fan-out. Image order matches the order
// variants were issued, not completion order.
type batch struct {
	images []storage.ImageBlob
	text   string
	failed []error
	total  int
}

func (b *batch) allFailed() bool {
	return len(b.failed) == b.total
}

func (b *batch) firstError() error {
	if len(b.failed) == 0 {
		return nil
	}
	return b.failed[0]
}

func inlinePart(blob storage.ImageBlob) *genai.Part {
	return &genai.Part{InlineData: &genai.Blob{MIMEType: blob.MimeType, Data: blob.Data}}
}

// generateVariants issues the configured number of independent generation
// calls for one prompt and collects whatever each produced. Each variant is
// awaited on its own: a failed variant is recorded and the rest of the batch
// still counts.
func (e *Engine) generateVariants(ctx context.Context, prompt string, refs, extras []storage.ImageBlob) *batch {
	parts := []*genai.Part{genai.NewPartFromText(imageEnvelope(prompt))}
	for _, blob := range refs {
		parts = append(parts, inlinePart(blob))
	}
	for _, blob := range extras {
		parts = append(parts, inlinePart(blob))
	}

	count := e.conf.VariantCount
	if count <= 0 {
		count = defaultVariantCount
	}

	results := make([]variantResult, count)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		g.Go(func() error {
			text, image, err := e.gen.GenerateVariant(gctx, parts)
			results[i] = variantResult{text: text, image: image, err: err}
			// Errors are kept in the slot so one failed variant cannot
			// cancel its siblings
			return nil
		})
	}
	_ = g.Wait()

	out := &batch{total: count}
	var texts []string
	for i, r := range results {
		if r.err != nil {
			out.failed = append(out.failed, r.err)
			e.log.With(slog.Int("variant", i+1)).Warn("variant failed", sl.Err(r.err))
			continue
		}
		if r.image != nil {
			out.images = append(out.images, *r.image)
		}
		if r.text != "" {
			texts = append(texts, fmt.Sprintf("Variant %d:\n%s", i+1, r.text))
		}
	}
	out.text = strings.Join(texts, "\n\n")

	e.log.With(
		slog.Int("variants", count),
		slog.Int("images", len(out.images)),
		slog.Int("failed", len(out.failed)),
	).Info("generation batch completed")
	return out
}

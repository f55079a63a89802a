package ai

import (
	"Palette/lib/sl"
	"Palette/storage"
	"context"
	"strings"
)

// imageEnvelope wraps the creative description with the fixed instructions
// every image call carries.
func imageEnvelope(creative string) string {
	p := "Generate a single high-quality image. "
	p += "Aspect ratio: square. "
	p += "Style: rich detail, coherent lighting and color palette. "
	p += "Composition: a clear subject with a supporting background, no text overlays, no watermarks. "
	p += "Here is the description of what to create: "
	return p + creative
}

const refineInstruction = "You prepare prompts for an image generation model. " +
	"From the following request, extract only the creative content: subject appearance, " +
	"setting, mood and pose. Strip technical or compositional instructions such as " +
	"resolution, file format or camera settings. Respond with the extracted description " +
	"only, no other text. The request is: "

// refinePrompt asks the text model to distill the creative content of a raw
// request. Falls back to the raw prompt when refinement fails or comes back
// empty.
func (e *Engine) refinePrompt(ctx context.Context, raw string) string {
	if !e.conf.RefinePrompts {
		return raw
	}

	refined, err := e.gen.GenerateDialogue(ctx, []storage.Turn{
		{IsUser: true, Text: refineInstruction + raw},
	})
	if err != nil {
		e.log.Warn("prompt refinement failed, using raw prompt", sl.Err(err))
		return raw
	}
	refined = strings.TrimSpace(refined)
	if refined == "" {
		return raw
	}
	return refined
}

// regenerationPrompt compounds a stored refined prompt with the user's
// modification.
func regenerationPrompt(stored, content string) string {
	return stored + ", " + content
}

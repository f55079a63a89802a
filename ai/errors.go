package ai

import "strings"

// FailureKind is the user-facing classification of a generation failure.
type FailureKind int

const (
	KindUnknown FailureKind = iota
	KindMissingCredential
	KindRateLimited
	KindModelUnavailable
)

// classifyFailure maps a low-level service error onto the user-facing
// taxonomy by inspecting the error text. Quota markers are checked before the
// broad "model" match because quota errors usually name a model too.
func classifyFailure(err error) FailureKind {
	if err == nil {
		return KindUnknown
	}
	text := err.Error()

	if strings.Contains(text, "API key") {
		return KindMissingCredential
	}
	if strings.Contains(text, "429") || strings.Contains(text, "Quota") {
		return KindRateLimited
	}
	if strings.Contains(text, "model") {
		return KindModelUnavailable
	}
	return KindUnknown
}

// failureMessage returns the user-facing template for a failure kind.
func failureMessage(kind FailureKind) string {
	switch kind {
	case KindMissingCredential:
		return "I can't reach the image service: the API key is missing or invalid. " +
			"Set gemini_api_key (or the GEMINI_API_KEY variable) and restart me."
	case KindRateLimited:
		return "The image service says we're over quota (rate limited). " +
			"Free-tier keys allow only a few requests per minute; wait a bit and try again, " +
			"or enable billing on the API key for higher limits."
	case KindModelUnavailable:
		return "The model I'm configured with isn't available. " +
			"This usually means a misconfigured model name; check text_model and image_model."
	}
	return "Something went wrong while generating. Please try again later."
}

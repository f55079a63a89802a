package ai

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{name: "missing key", err: errors.New("gemini API key is not configured"), want: KindMissingCredential},
		{name: "invalid key", err: errors.New("400: API key not valid"), want: KindMissingCredential},
		{name: "http 429", err: errors.New("googleapi: Error 429: resource exhausted"), want: KindRateLimited},
		{name: "quota wins over model", err: errors.New("Quota exceeded for model gemini-2.5-flash-image"), want: KindRateLimited},
		{name: "bad model", err: errors.New("model not found: gemini-nonexistent"), want: KindModelUnavailable},
		{name: "network", err: errors.New("connection reset by peer"), want: KindUnknown},
		{name: "nil", err: nil, want: KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyFailure(tt.err))
		})
	}
}

func TestFailureMessages(t *testing.T) {
	kinds := []FailureKind{KindUnknown, KindMissingCredential, KindRateLimited, KindModelUnavailable}

	seen := make(map[string]bool)
	for _, kind := range kinds {
		msg := failureMessage(kind)
		assert.NotEmpty(t, msg)
		assert.False(t, seen[msg], "template for kind %d is not distinct", kind)
		seen[msg] = true
	}

	// Rate limiting explains the quota/billing context
	assert.Contains(t, failureMessage(KindRateLimited), "quota")
	assert.Contains(t, failureMessage(KindRateLimited), "billing")
}

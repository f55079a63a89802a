package ai

import "strings"

// imageKeywords are the trigger words that make a free-text message an image
// request. Matching is a case-insensitive substring check.
var imageKeywords = []string{
	"generate", "create", "make", "draw", "image", "picture", "photo",
	"render", "art", "artwork", "illustration", "sketch", "design",
	"visualize", "show me", "paint",
}

// DetectImageIntent reports whether the text asks for an image.
func DetectImageIntent(text string) bool {
	lowered := strings.ToLower(text)
	for _, keyword := range imageKeywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

// Package family identifies provider families and the models and content
// kinds each of them serves.
package family

import (
	"fmt"

	"github.com/germanamz/chaichat/pkg/chats/content"
)

// Family is a provider family sharing one wire format.
type Family string

const (
	OpenAI    Family = "openai"
	Google    Family = "google"
	Anthropic Family = "anthropic"
)

// Parse converts a configuration string into a Family.
func Parse(s string) (Family, error) {
	f := Family(s)
	if !f.Valid() {
		return "", fmt.Errorf("family: unknown provider family %q", s)
	}
	return f, nil
}

// Valid reports whether f is a known family.
func (f Family) Valid() bool {
	switch f {
	case OpenAI, Google, Anthropic:
		return true
	}
	return false
}

func (f Family) String() string { return string(f) }

// DefaultModel is the model used when a request does not name one.
func (f Family) DefaultModel() string {
	switch f {
	case OpenAI:
		return "gpt-4o"
	case Google:
		return "gemini-1.5-flash"
	case Anthropic:
		return "claude-3-5-sonnet-20241022"
	}
	return ""
}

// Supports reports whether the family accepts the given content kind at all.
// Per-model vision support is narrower; see [Catalog.Accepts].
func (f Family) Supports(k content.Kind) bool {
	switch k {
	case content.KindText, content.KindImage:
		return f.Valid()
	case content.KindVideoFile, content.KindAudioFile:
		return f == Google
	}
	return false
}

// Handle carries the credentials and endpoint for one provider family.
// Handles are values and never mutated by adapters.
type Handle struct {
	Family  Family
	APIKey  string //nolint:gosec // credential field, not a hardcoded secret
	BaseURL string // Empty means the provider's public endpoint.
}

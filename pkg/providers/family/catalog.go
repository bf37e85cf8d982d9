package family

import (
	"fmt"
	"slices"

	"github.com/germanamz/chaichat/pkg/chats/content"
)

// ModelInfo describes one selectable model.
type ModelInfo struct {
	Name   string
	Family Family
	Vision bool // Accepts image parts.
}

// Catalog is an explicit model table. Family resolution happens once, when a
// model is selected, instead of by inspecting model names at each call site.
type Catalog struct {
	models []ModelInfo
}

// NewCatalog creates a catalog from the given models, in display order.
func NewCatalog(models ...ModelInfo) *Catalog {
	return &Catalog{models: models}
}

// DefaultCatalog returns the built-in model table.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		ModelInfo{Name: "claude-3-7-sonnet-20250219", Family: Anthropic},
		ModelInfo{Name: "claude-3-5-sonnet-20241022", Family: Anthropic, Vision: true},
		ModelInfo{Name: "gemini-1.5-flash", Family: Google, Vision: true},
		ModelInfo{Name: "gemini-1.5-pro", Family: Google, Vision: true},
		ModelInfo{Name: "gpt-4o", Family: OpenAI, Vision: true},
		ModelInfo{Name: "gpt-4-turbo", Family: OpenAI, Vision: true},
		ModelInfo{Name: "gpt-3.5-turbo-16k", Family: OpenAI},
		ModelInfo{Name: "gpt-4", Family: OpenAI},
		ModelInfo{Name: "gpt-4-32k", Family: OpenAI},
	)
}

// Lookup returns the model with the given name.
func (c *Catalog) Lookup(name string) (ModelInfo, error) {
	for _, m := range c.models {
		if m.Name == name {
			return m, nil
		}
	}
	return ModelInfo{}, fmt.Errorf("family: unknown model %q", name)
}

// Available lists the models whose family has a configured handle, in
// catalog order.
func (c *Catalog) Available(configured ...Family) []ModelInfo {
	var out []ModelInfo
	for _, m := range c.models {
		if slices.Contains(configured, m.Family) {
			out = append(out, m)
		}
	}
	return out
}

// Accepts reports whether the model can take the given content kind.
func (m ModelInfo) Accepts(k content.Kind) bool {
	if !m.Family.Supports(k) {
		return false
	}
	if k == content.KindImage || k == content.KindVideoFile {
		return m.Vision
	}
	return true
}

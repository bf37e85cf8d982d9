// Package message defines the Message type, one role-tagged turn of a conversation.
package message

import (
	"strings"

	"github.com/germanamz/chaichat/pkg/chats/content"
	"github.com/germanamz/chaichat/pkg/chats/role"
)

// Message represents a single turn in a conversation.
// It is a value type that copies cheaply; Parts is shared between copies.
type Message struct {
	Role  role.Role
	Parts []content.Part
}

// New creates a message with the given role and content parts.
func New(r role.Role, parts ...content.Part) Message {
	return Message{
		Role:  r,
		Parts: parts,
	}
}

// NewText creates a message with a single Text content part.
func NewText(r role.Role, text string) Message {
	return New(r, content.Text{Text: text})
}

// TextContent concatenates the text of all Text parts in the message.
func (m Message) TextContent() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if t, ok := p.(content.Text); ok {
			b.WriteString(t.Text)
		}
	}
	return b.String()
}

// Kinds returns the distinct content kinds present in the message, in order
// of first appearance.
func (m Message) Kinds() []content.Kind {
	var kinds []content.Kind
	seen := make(map[content.Kind]struct{}, len(m.Parts))
	for _, p := range m.Parts {
		k := p.PartKind()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		kinds = append(kinds, k)
	}
	return kinds
}

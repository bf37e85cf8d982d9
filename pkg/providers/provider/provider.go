// Package provider defines the contract between the streaming driver and the
// per-family adapters, plus the translation algorithm they share.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/germanamz/chaichat/pkg/chats/content"
	"github.com/germanamz/chaichat/pkg/chats/message"
	"github.com/germanamz/chaichat/pkg/chats/role"
	"github.com/germanamz/chaichat/pkg/modeladapter/usage"
	"github.com/germanamz/chaichat/pkg/providers/family"
)

// ErrUnsupportedContentKind is returned when a transcript holds a content kind
// the target family cannot render. Callers are expected to prevent this.
var ErrUnsupportedContentKind = errors.New("provider: unsupported content kind")

// UnsupportedKind wraps ErrUnsupportedContentKind with the offending kind.
func UnsupportedKind(f family.Family, k content.Kind) error {
	return fmt.Errorf("%w: %s cannot render %s", ErrUnsupportedContentKind, f, k)
}

// CallFailedError reports a failed provider call: network, auth, quota or a
// mid-stream error.
type CallFailedError struct {
	Provider family.Family
	Cause    error
}

func (e *CallFailedError) Error() string {
	return fmt.Sprintf("provider %s: call failed: %v", e.Provider, e.Cause)
}

func (e *CallFailedError) Unwrap() error { return e.Cause }

// Request holds fully resolved generation settings.
type Request struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Stream yields the text fragments of one completion. Recv returns io.EOF
// once the provider signals the end of the stream. An empty fragment is a
// valid chunk.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// UsageReporter is implemented by streams that learn token counts from the
// provider. Usage is only meaningful after Recv has returned io.EOF.
type UsageReporter interface {
	Usage() (usage.TokenCount, bool)
}

// Adapter translates a transcript snapshot into one family's wire format.
// Adapters never mutate msgs.
//
// Errors from Prepare are translation errors (ErrUnsupportedContentKind,
// attachment.ErrMalformedAttachment) unless the adapter had to contact the
// provider while translating, in which case they are *CallFailedError.
type Adapter interface {
	Family() family.Family
	Prepare(ctx context.Context, msgs []message.Message) (Call, error)
}

// Call is a translated transcript ready to be sent. Open may be called more
// than once.
type Call interface {
	Open(ctx context.Context, req Request) (Stream, error)
}

// CallFunc adapts a function to Call.
type CallFunc func(ctx context.Context, req Request) (Stream, error)

func (f CallFunc) Open(ctx context.Context, req Request) (Stream, error) { return f(ctx, req) }

// Open prepares msgs and opens the call in one step.
func Open(ctx context.Context, a Adapter, msgs []message.Message, req Request) (Stream, error) {
	c, err := a.Prepare(ctx, msgs)
	if err != nil {
		return nil, err
	}
	return c.Open(ctx, req)
}

// ImageRenderer renders an image part in a family's wire representation P.
type ImageRenderer[P any] interface {
	RenderImage(img content.Image) (P, error)
}

// ImageRendererFunc adapts a function to ImageRenderer.
type ImageRendererFunc[P any] func(content.Image) (P, error)

func (f ImageRendererFunc[P]) RenderImage(img content.Image) (P, error) { return f(img) }

// Builder supplies a family's leaf rules to Coalesce.
type Builder[M any] interface {
	// NewMessage starts a wire message for r, using the family's role names.
	NewMessage(r role.Role) M
	// AppendPart renders p and appends it to m.
	AppendPart(ctx context.Context, m *M, p content.Part) error
}

// Coalesce walks msgs in order and emits one wire message per run of
// same-role turns; a turn whose role matches the previous turn's role is
// merged into the last emitted message.
func Coalesce[M any](ctx context.Context, msgs []message.Message, b Builder[M]) ([]M, error) {
	out := make([]M, 0, len(msgs))

	var prev role.Role
	for i, m := range msgs {
		if i == 0 || m.Role != prev {
			out = append(out, b.NewMessage(m.Role))
		}

		last := &out[len(out)-1]
		for _, p := range m.Parts {
			if err := b.AppendPart(ctx, last, p); err != nil {
				return nil, fmt.Errorf("message %d: %w", i, err)
			}
		}

		prev = m.Role
	}

	return out, nil
}

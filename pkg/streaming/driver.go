// Package streaming drives one model completion over a transcript: it
// forwards text fragments to the caller as they arrive and, on success,
// commits the assembled response as a single assistant turn.
package streaming

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/germanamz/chaichat/pkg/chats/chat"
	"github.com/germanamz/chaichat/pkg/chats/message"
	"github.com/germanamz/chaichat/pkg/chats/role"
	"github.com/germanamz/chaichat/pkg/modeladapter/usage"
	"github.com/germanamz/chaichat/pkg/providers/family"
	"github.com/germanamz/chaichat/pkg/providers/model"
	"github.com/germanamz/chaichat/pkg/providers/provider"
)

// ErrEmptyTranscript is returned when Stream is called on a transcript with
// no turns. No provider call is made.
var ErrEmptyTranscript = errors.New("streaming: transcript is empty")

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger used for stream lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.log = l
		}
	}
}

// WithUsage records the token usage of every completed stream in t.
func WithUsage(t *usage.Tracker) Option {
	return func(d *Driver) { d.usage = t }
}

// Driver streams completions for a single transcript. Only one stream may be
// consumed at a time; the owner of the transcript serializes calls.
type Driver struct {
	registry *provider.Registry
	chat     *chat.Chat
	log      *slog.Logger
	usage    *usage.Tracker
}

// New creates a Driver that resolves adapters from reg and commits responses
// to c.
func New(reg *provider.Registry, c *chat.Chat, opts ...Option) *Driver {
	d := &Driver{
		registry: reg,
		chat:     c,
		log:      slog.New(slog.DiscardHandler),
	}

	for _, o := range opts {
		o(d)
	}

	return d
}

// Stream returns a sequence of response fragments for the current transcript.
//
// Fragments are yielded in provider order; a chunk without text yields "".
// When the provider ends the stream the concatenated fragments are appended
// to the transcript as one assistant turn. A transcript the provider cannot
// express yields the translation error (provider.ErrUnsupportedContentKind,
// attachment.ErrMalformedAttachment) before any call is made. A failed call
// yields a single *provider.CallFailedError. Neither changes the transcript,
// and neither does breaking out of the loop before the sequence ends.
func (d *Driver) Stream(ctx context.Context, params model.Params, h family.Handle) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := params.Validate(); err != nil {
			yield("", fmt.Errorf("streaming: %w", err))
			return
		}

		msgs := d.chat.Messages()
		if len(msgs) == 0 {
			yield("", ErrEmptyTranscript)
			return
		}

		adapter, err := d.registry.Resolve(h)
		if err != nil {
			yield("", fmt.Errorf("streaming: %w", err))
			return
		}

		req := provider.Request{
			Model:       params.ModelOr(h.Family.DefaultModel()),
			Temperature: params.TemperatureOrDefault(),
			MaxTokens:   model.MaxOutputTokens,
		}

		d.run(ctx, adapter, msgs, req, yield)
	}
}

func (d *Driver) run(
	ctx context.Context,
	adapter provider.Adapter,
	msgs []message.Message,
	req provider.Request,
	yield func(string, error) bool,
) {
	fam := adapter.Family()
	start := time.Now()

	d.log.InfoContext(ctx, "stream started",
		"provider", fam,
		"model", req.Model,
		"turns", len(msgs),
	)

	report := func(err error) {
		d.log.ErrorContext(ctx, "stream finished with error",
			"provider", fam,
			"model", req.Model,
			"duration", time.Since(start),
			"error", err,
		)
		yield("", err)
	}
	fail := func(err error) {
		report(&provider.CallFailedError{Provider: fam, Cause: err})
	}

	call, err := adapter.Prepare(ctx, msgs)
	if err != nil {
		var cf *provider.CallFailedError
		if errors.As(err, &cf) {
			report(err)
			return
		}
		report(fmt.Errorf("streaming: %w", err))
		return
	}

	s, err := call.Open(ctx, req)
	if err != nil {
		fail(err)
		return
	}
	defer func() { _ = s.Close() }()

	var (
		acc    strings.Builder
		chunks int
	)

	for {
		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fail(err)
			return
		}

		acc.WriteString(chunk)
		chunks++

		if !yield(chunk, nil) {
			d.log.DebugContext(ctx, "stream abandoned",
				"provider", fam,
				"model", req.Model,
				"chunks", chunks,
			)
			return
		}
	}

	if err := d.chat.Append(message.NewText(role.Assistant, acc.String())); err != nil {
		yield("", fmt.Errorf("streaming: commit response: %w", err))
		return
	}

	d.record(s, fam, req.Model)

	d.log.InfoContext(ctx, "stream finished",
		"provider", fam,
		"model", req.Model,
		"chunks", chunks,
		"duration", time.Since(start),
	)
}

func (d *Driver) record(s provider.Stream, fam family.Family, modelName string) {
	if d.usage == nil {
		return
	}

	ur, ok := s.(provider.UsageReporter)
	if !ok {
		return
	}

	tc, ok := ur.Usage()
	if !ok {
		return
	}

	d.usage.Add(usage.Entry{Provider: fam.String(), Model: modelName, TokenCount: tc})
}

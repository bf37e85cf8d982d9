// Package anthropic streams completions from the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/germanamz/chaichat/pkg/attachment"
	"github.com/germanamz/chaichat/pkg/chats/content"
	"github.com/germanamz/chaichat/pkg/chats/message"
	"github.com/germanamz/chaichat/pkg/chats/role"
	"github.com/germanamz/chaichat/pkg/modeladapter/usage"
	"github.com/germanamz/chaichat/pkg/providers/family"
	"github.com/germanamz/chaichat/pkg/providers/provider"
)

var (
	_ provider.Adapter       = (*Adapter)(nil)
	_ provider.UsageReporter = (*stream)(nil)
)

// Adapter implements provider.Adapter for the Anthropic family.
type Adapter struct {
	client anthropic.Client
	images provider.ImageRenderer[anthropic.ContentBlockParamUnion]
}

// New creates an Adapter for the handle. An empty BaseURL targets the public
// API. The SDK's automatic retries are disabled; callers decide whether to
// re-invoke.
func New(h family.Handle) *Adapter {
	opts := []option.RequestOption{
		option.WithAPIKey(h.APIKey),
		option.WithMaxRetries(0),
	}
	if h.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(h.BaseURL, "/")+"/"))
	}

	return &Adapter{
		client: anthropic.NewClient(opts...),
		images: provider.ImageRendererFunc[anthropic.ContentBlockParamUnion](renderImage),
	}
}

// Factory is a provider.Factory for the Anthropic family.
func Factory(h family.Handle) (provider.Adapter, error) {
	if h.APIKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	return New(h), nil
}

// Family returns family.Anthropic.
func (a *Adapter) Family() family.Family { return family.Anthropic }

// Translate converts a transcript snapshot into Messages API params.
// Consecutive same-role turns become one message with several blocks.
func (a *Adapter) Translate(ctx context.Context, msgs []message.Message) ([]anthropic.MessageParam, error) {
	out, err := provider.Coalesce(ctx, msgs, builder{images: a.images})
	if err != nil {
		return nil, fmt.Errorf("anthropic: translate: %w", err)
	}
	return out, nil
}

// Prepare translates msgs and returns a call that opens a streaming message.
func (a *Adapter) Prepare(ctx context.Context, msgs []message.Message) (provider.Call, error) {
	wire, err := a.Translate(ctx, msgs)
	if err != nil {
		return nil, err
	}

	return provider.CallFunc(func(ctx context.Context, req provider.Request) (provider.Stream, error) {
		s := a.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
			Model:       anthropic.Model(req.Model),
			Messages:    wire,
			MaxTokens:   int64(req.MaxTokens),
			Temperature: anthropic.Float(req.Temperature),
		})
		return &stream{s: s}, nil
	}), nil
}

// Stream translates msgs and starts a streaming message.
func (a *Adapter) Stream(ctx context.Context, msgs []message.Message, req provider.Request) (provider.Stream, error) {
	return provider.Open(ctx, a, msgs, req)
}

type builder struct {
	images provider.ImageRenderer[anthropic.ContentBlockParamUnion]
}

func (builder) NewMessage(r role.Role) anthropic.MessageParam {
	if r == role.Assistant {
		return anthropic.NewAssistantMessage()
	}
	return anthropic.NewUserMessage()
}

func (b builder) AppendPart(_ context.Context, m *anthropic.MessageParam, p content.Part) error {
	switch v := p.(type) {
	case content.Text:
		m.Content = append(m.Content, anthropic.NewTextBlock(v.Text))
	case content.Image:
		block, err := b.images.RenderImage(v)
		if err != nil {
			return err
		}
		m.Content = append(m.Content, block)
	default:
		return provider.UnsupportedKind(family.Anthropic, p.PartKind())
	}
	return nil
}

// renderImage splits the data URI into a {type: base64, media_type, data}
// image source.
func renderImage(img content.Image) (anthropic.ContentBlockParamUnion, error) {
	d, err := attachment.ParseDataURI(img.URL)
	if err != nil {
		return anthropic.ContentBlockParamUnion{}, err
	}
	if _, err := d.Bytes(); err != nil {
		return anthropic.ContentBlockParamUnion{}, err
	}
	return anthropic.NewImageBlockBase64(d.MediaType, d.Payload), nil
}

type stream struct {
	s   *ssestream.Stream[anthropic.MessageStreamEventUnion]
	acc anthropic.Message
}

// Recv returns the next text delta. Events without text (message start,
// block boundaries, stop) are consumed silently.
func (s *stream) Recv() (string, error) {
	for s.s.Next() {
		event := s.s.Current()
		if err := s.acc.Accumulate(event); err != nil {
			return "", fmt.Errorf("anthropic: accumulate: %w", err)
		}

		if e, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent); ok && e.Delta.Type == "text_delta" {
			return e.Delta.Text, nil
		}
	}

	if err := s.s.Err(); err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	return "", io.EOF
}

func (s *stream) Close() error {
	return s.s.Close()
}

func (s *stream) Usage() (usage.TokenCount, bool) {
	if s.acc.Usage.InputTokens == 0 && s.acc.Usage.OutputTokens == 0 {
		return usage.TokenCount{}, false
	}
	return usage.TokenCount{
		InputTokens:  int(s.acc.Usage.InputTokens),
		OutputTokens: int(s.acc.Usage.OutputTokens),
	}, true
}

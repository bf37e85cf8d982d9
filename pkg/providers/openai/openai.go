// Package openai streams chat completions from the OpenAI Chat Completions API
// and exposes the companion audio and embedding endpoints used by the chat
// front-end.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/germanamz/chaichat/pkg/chats/content"
	"github.com/germanamz/chaichat/pkg/chats/message"
	"github.com/germanamz/chaichat/pkg/chats/role"
	"github.com/germanamz/chaichat/pkg/providers/family"
	"github.com/germanamz/chaichat/pkg/providers/provider"
	gpt "github.com/sashabaranov/go-openai"
)

var _ provider.Adapter = (*Adapter)(nil)

// Adapter implements provider.Adapter for the OpenAI family.
type Adapter struct {
	// TranscriptionModel overrides the Whisper model used by Transcribe.
	TranscriptionModel string

	client *gpt.Client
	images provider.ImageRenderer[gpt.ChatMessagePart]
}

// New creates an Adapter for the handle. An empty BaseURL targets
// https://api.openai.com/v1.
func New(h family.Handle) *Adapter {
	cfg := gpt.DefaultConfig(h.APIKey)
	if h.BaseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(h.BaseURL, "/")
	}

	return &Adapter{
		client: gpt.NewClientWithConfig(cfg),
		images: provider.ImageRendererFunc[gpt.ChatMessagePart](renderImage),
	}
}

// Factory is a provider.Factory for the OpenAI family.
func Factory(h family.Handle) (provider.Adapter, error) {
	if h.APIKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	return New(h), nil
}

// Family returns family.OpenAI.
func (a *Adapter) Family() family.Family { return family.OpenAI }

// Translate converts a transcript snapshot into Chat Completions messages.
// Consecutive same-role turns become one multi-part message.
func (a *Adapter) Translate(ctx context.Context, msgs []message.Message) ([]gpt.ChatCompletionMessage, error) {
	out, err := provider.Coalesce(ctx, msgs, builder{images: a.images})
	if err != nil {
		return nil, fmt.Errorf("openai: translate: %w", err)
	}
	return out, nil
}

// Prepare translates msgs and returns a call that opens a streaming chat
// completion.
func (a *Adapter) Prepare(ctx context.Context, msgs []message.Message) (provider.Call, error) {
	wire, err := a.Translate(ctx, msgs)
	if err != nil {
		return nil, err
	}

	return provider.CallFunc(func(ctx context.Context, req provider.Request) (provider.Stream, error) {
		return a.open(ctx, wire, req)
	}), nil
}

// Stream translates msgs and starts a streaming chat completion.
func (a *Adapter) Stream(ctx context.Context, msgs []message.Message, req provider.Request) (provider.Stream, error) {
	return provider.Open(ctx, a, msgs, req)
}

func (a *Adapter) open(ctx context.Context, wire []gpt.ChatCompletionMessage, req provider.Request) (provider.Stream, error) {
	s, err := a.client.CreateChatCompletionStream(ctx, gpt.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    wire,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	return &stream{s: s}, nil
}

type builder struct {
	images provider.ImageRenderer[gpt.ChatMessagePart]
}

func (builder) NewMessage(r role.Role) gpt.ChatCompletionMessage {
	name := gpt.ChatMessageRoleUser
	if r == role.Assistant {
		name = gpt.ChatMessageRoleAssistant
	}
	return gpt.ChatCompletionMessage{Role: name}
}

func (b builder) AppendPart(_ context.Context, m *gpt.ChatCompletionMessage, p content.Part) error {
	switch v := p.(type) {
	case content.Text:
		m.MultiContent = append(m.MultiContent, gpt.ChatMessagePart{
			Type: gpt.ChatMessagePartTypeText,
			Text: v.Text,
		})
	case content.Image:
		part, err := b.images.RenderImage(v)
		if err != nil {
			return err
		}
		m.MultiContent = append(m.MultiContent, part)
	default:
		return provider.UnsupportedKind(family.OpenAI, p.PartKind())
	}
	return nil
}

// renderImage passes the data URI through as an image_url part.
func renderImage(img content.Image) (gpt.ChatMessagePart, error) {
	return gpt.ChatMessagePart{
		Type:     gpt.ChatMessagePartTypeImageURL,
		ImageURL: &gpt.ChatMessageImageURL{URL: img.URL},
	}, nil
}

type stream struct {
	s *gpt.ChatCompletionStream
}

func (s *stream) Recv() (string, error) {
	resp, err := s.s.Recv()
	if errors.Is(err, io.EOF) {
		return "", io.EOF
	}
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}

	// Role-only and finish chunks carry no choices or an empty delta.
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (s *stream) Close() error {
	s.s.Close()
	return nil
}

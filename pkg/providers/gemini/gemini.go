// Package gemini streams completions from the Google Gemini API and uploads
// audio and video attachments through its Files API.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/germanamz/chaichat/pkg/attachment"
	"github.com/germanamz/chaichat/pkg/chats/content"
	"github.com/germanamz/chaichat/pkg/chats/message"
	"github.com/germanamz/chaichat/pkg/chats/role"
	"github.com/germanamz/chaichat/pkg/modeladapter"
	"github.com/germanamz/chaichat/pkg/modeladapter/usage"
	"github.com/germanamz/chaichat/pkg/providers/family"
	"github.com/germanamz/chaichat/pkg/providers/provider"
)

// DefaultBaseURL is the public Gemini endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com"

var (
	_ provider.Adapter       = (*Adapter)(nil)
	_ provider.UsageReporter = (*stream)(nil)
)

// Uploader turns a local media file into a provider-side file reference.
type Uploader interface {
	Upload(ctx context.Context, path string) (File, error)
}

// Adapter implements provider.Adapter for the Google family.
type Adapter struct {
	modeladapter.ModelAdapter
	Files  Uploader
	images provider.ImageRenderer[Part]
}

// New creates an Adapter configured for the Gemini API, with a Files API
// uploader sharing its credentials.
func New(h family.Handle) *Adapter {
	baseURL := strings.TrimSuffix(h.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	a := &Adapter{images: provider.ImageRendererFunc[Part](renderImage)}
	a.BaseURL = baseURL
	a.Auth = modeladapter.Auth{
		Key:    h.APIKey,
		Header: "x-goog-api-key",
	}
	a.Files = &FileService{ModelAdapter: &a.ModelAdapter}

	return a
}

// Factory is a provider.Factory for the Google family.
func Factory(h family.Handle) (provider.Adapter, error) {
	if h.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	return New(h), nil
}

// Family returns family.Google.
func (a *Adapter) Family() family.Family { return family.Google }

// Translate converts a transcript snapshot into Gemini contents. Assistant
// turns use the "model" role; consecutive same-role turns share one content
// entry. Audio and video files are uploaded and referenced by URI.
func (a *Adapter) Translate(ctx context.Context, msgs []message.Message) ([]Content, error) {
	out, err := provider.Coalesce(ctx, msgs, builder{images: a.images, files: a.Files})
	if err != nil {
		return nil, fmt.Errorf("gemini: translate: %w", err)
	}
	return out, nil
}

// Prepare translates msgs, uploading any media files, and returns a call
// that opens a streamGenerateContent request.
func (a *Adapter) Prepare(ctx context.Context, msgs []message.Message) (provider.Call, error) {
	contents, err := a.Translate(ctx, msgs)
	if err != nil {
		return nil, err
	}

	return provider.CallFunc(func(ctx context.Context, req provider.Request) (provider.Stream, error) {
		return a.open(ctx, contents, req)
	}), nil
}

// Stream translates msgs and starts a streamGenerateContent call.
func (a *Adapter) Stream(ctx context.Context, msgs []message.Message, req provider.Request) (provider.Stream, error) {
	return provider.Open(ctx, a, msgs, req)
}

func (a *Adapter) open(ctx context.Context, contents []Content, req provider.Request) (provider.Stream, error) {
	t := req.Temperature
	body := apiRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			Temperature:     &t,
			MaxOutputTokens: req.MaxTokens,
		},
	}

	path := fmt.Sprintf("/v1beta/models/%s:streamGenerateContent?alt=sse", url.PathEscape(req.Model))

	r, err := a.PostStream(ctx, path, body)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	return &stream{events: r}, nil
}

// --- request types ---

type apiRequest struct {
	Contents         []Content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

// Content is one entry of the contents array.
type Content struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// Part holds exactly one of Text, InlineData or FileData.
type Part struct {
	Text       string    `json:"text,omitempty"`
	InlineData *Blob     `json:"inlineData,omitempty"`
	FileData   *FileData `json:"fileData,omitempty"`
}

// Blob is inline base64 media.
type Blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

// FileData references a file uploaded through the Files API.
type FileData struct {
	MimeType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens"`
}

// --- response types ---

type apiResponse struct {
	Candidates    []apiCandidate `json:"candidates"`
	UsageMetadata *apiUsageMeta  `json:"usageMetadata"`
}

type apiCandidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type apiUsageMeta struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

// --- conversion helpers ---

type builder struct {
	images provider.ImageRenderer[Part]
	files  Uploader
}

func (builder) NewMessage(r role.Role) Content {
	return Content{Role: mapRole(r)}
}

func (b builder) AppendPart(ctx context.Context, c *Content, p content.Part) error {
	var (
		part Part
		err  error
	)

	switch v := p.(type) {
	case content.Text:
		part = Part{Text: v.Text}
	case content.Image:
		part, err = b.images.RenderImage(v)
	case content.VideoFile:
		part, err = b.upload(ctx, v.Path)
	case content.AudioFile:
		part, err = b.upload(ctx, v.Path)
	default:
		return provider.UnsupportedKind(family.Google, p.PartKind())
	}
	if err != nil {
		return err
	}

	c.Parts = append(c.Parts, part)

	return nil
}

func (b builder) upload(ctx context.Context, path string) (Part, error) {
	if b.files == nil {
		return Part{}, errors.New("no file uploader configured")
	}

	f, err := b.files.Upload(ctx, path)
	if err != nil {
		return Part{}, err
	}

	return Part{FileData: &FileData{MimeType: f.MimeType, FileURI: f.URI}}, nil
}

// renderImage decodes the data URI back to the original image bytes and
// sends them as an inline blob.
func renderImage(img content.Image) (Part, error) {
	d, err := attachment.ParseDataURI(img.URL)
	if err != nil {
		return Part{}, err
	}

	raw, err := d.Bytes()
	if err != nil {
		return Part{}, err
	}

	return Part{InlineData: &Blob{
		MimeType: attachment.ImageMediaType(d.MediaType, raw),
		Data:     base64.StdEncoding.EncodeToString(raw),
	}}, nil
}

func mapRole(r role.Role) string {
	if r == role.Assistant {
		return "model"
	}
	return "user"
}

type stream struct {
	events *modeladapter.EventReader
	usage  *apiUsageMeta
}

// Recv returns the concatenated text of the next chunk's first candidate.
// Chunks without candidates or text yield an empty fragment.
func (s *stream) Recv() (string, error) {
	ev, err := s.events.Next()
	if errors.Is(err, io.EOF) {
		return "", io.EOF
	}
	if err != nil {
		return "", fmt.Errorf("gemini: read stream: %w", err)
	}

	var resp apiResponse
	if err := json.Unmarshal(ev.Data, &resp); err != nil {
		return "", fmt.Errorf("gemini: decode chunk: %w", err)
	}

	if resp.UsageMetadata != nil {
		s.usage = resp.UsageMetadata
	}

	if len(resp.Candidates) == 0 {
		return "", nil
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}

	return b.String(), nil
}

func (s *stream) Close() error {
	return s.events.Close()
}

func (s *stream) Usage() (usage.TokenCount, bool) {
	if s.usage == nil {
		return usage.TokenCount{}, false
	}
	return usage.TokenCount{
		InputTokens:  s.usage.PromptTokenCount,
		OutputTokens: s.usage.CandidatesTokenCount,
	}, true
}

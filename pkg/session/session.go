// Package session owns one conversation: its transcript, the driver that
// streams responses into it and the optional speech collaborators.
package session

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"github.com/germanamz/chaichat/pkg/attachment"
	"github.com/germanamz/chaichat/pkg/chats/chat"
	"github.com/germanamz/chaichat/pkg/chats/content"
	"github.com/germanamz/chaichat/pkg/chats/message"
	"github.com/germanamz/chaichat/pkg/chats/role"
	"github.com/germanamz/chaichat/pkg/modeladapter/usage"
	"github.com/germanamz/chaichat/pkg/providers/family"
	"github.com/germanamz/chaichat/pkg/providers/model"
	"github.com/germanamz/chaichat/pkg/providers/provider"
	"github.com/germanamz/chaichat/pkg/streaming"
	"github.com/google/uuid"
)

var (
	// ErrStreamInFlight is returned when the transcript is modified or a new
	// stream is started while another stream is being consumed.
	ErrStreamInFlight = errors.New("session: a stream is already in flight")
	// ErrNoResponse is returned by Speak when there is no assistant turn yet.
	ErrNoResponse = errors.New("session: no assistant response")
	// ErrSpeechDisabled is returned when a speech operation has no backend.
	ErrSpeechDisabled = errors.New("session: speech is not configured")
	// ErrUnknownMediaType is returned by AppendAttachment for files that are
	// neither images, videos nor audio.
	ErrUnknownMediaType = errors.New("session: unsupported attachment media type")
)

// Transcriber converts recorded speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Speaker synthesizes speech from text.
type Speaker interface {
	Speak(ctx context.Context, text string) ([]byte, error)
}

// Options configures a Session. Registry is required.
type Options struct {
	Registry    *provider.Registry
	Catalog     *family.Catalog // Defaults to family.DefaultCatalog().
	Logger      *slog.Logger
	Transcriber Transcriber
	Speaker     Speaker
}

// Session is the single owner of a transcript. Only one stream may be in
// flight at a time; while it is, the transcript cannot be modified.
// Session is not safe for concurrent use.
type Session struct {
	id          string
	chat        *chat.Chat
	driver      *streaming.Driver
	catalog     *family.Catalog
	usage       *usage.Tracker
	transcriber Transcriber
	speaker     Speaker
	log         *slog.Logger

	busy     atomic.Bool
	selected atomic.Pointer[family.ModelInfo]
}

// New creates an empty Session.
func New(opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	catalog := opts.Catalog
	if catalog == nil {
		catalog = family.DefaultCatalog()
	}

	id := uuid.NewString()
	log = log.With("session", id)

	s := &Session{
		id:          id,
		chat:        &chat.Chat{},
		catalog:     catalog,
		usage:       &usage.Tracker{},
		transcriber: opts.Transcriber,
		speaker:     opts.Speaker,
		log:         log,
	}
	s.driver = streaming.New(opts.Registry, s.chat,
		streaming.WithLogger(log),
		streaming.WithUsage(s.usage),
	)

	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Select makes name the model whose capabilities gate new user turns.
func (s *Session) Select(name string) (family.ModelInfo, error) {
	info, err := s.catalog.Lookup(name)
	if err != nil {
		return family.ModelInfo{}, fmt.Errorf("session: %w", err)
	}

	s.selected.Store(&info)

	return info, nil
}

// Selected returns the currently selected model.
func (s *Session) Selected() (family.ModelInfo, bool) {
	info := s.selected.Load()
	if info == nil {
		return family.ModelInfo{}, false
	}
	return *info, true
}

// AppendUserTurn appends one user turn. When a model is selected, every part
// must be a kind that model accepts.
func (s *Session) AppendUserTurn(parts ...content.Part) error {
	if s.busy.Load() {
		return ErrStreamInFlight
	}

	if info, ok := s.Selected(); ok {
		for _, p := range parts {
			if !info.Accepts(p.PartKind()) {
				return fmt.Errorf("session: model %s: %w", info.Name, provider.UnsupportedKind(info.Family, p.PartKind()))
			}
		}
	}

	if err := s.chat.Append(message.New(role.User, parts...)); err != nil {
		return fmt.Errorf("session: %w", err)
	}

	return nil
}

// AppendAttachment appends the file at path as a user turn: images are
// embedded as data URIs, videos and audio are referenced by path.
func (s *Session) AppendAttachment(path string) error {
	mediaType := attachment.MediaTypeForPath(path)

	var part content.Part

	switch {
	case strings.HasPrefix(mediaType, "image/"):
		raw, err := os.ReadFile(path) //nolint:gosec // path is chosen by the user.
		if err != nil {
			return fmt.Errorf("session: read attachment: %w", err)
		}
		part = content.Image{URL: attachment.EncodeImage(raw, mediaType)}
	case strings.HasPrefix(mediaType, "video/"):
		part = content.VideoFile{Path: path}
	case strings.HasPrefix(mediaType, "audio/"):
		part = content.AudioFile{Path: path}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownMediaType, mediaType)
	}

	return s.AppendUserTurn(part)
}

// AppendSpeech appends a recorded prompt. Models that accept audio get the
// recording itself; for the rest it is transcribed and appended as text.
func (s *Session) AppendSpeech(ctx context.Context, path string) error {
	if info, ok := s.Selected(); ok && info.Accepts(content.KindAudioFile) {
		return s.AppendUserTurn(content.AudioFile{Path: path})
	}

	if s.transcriber == nil {
		return ErrSpeechDisabled
	}

	audio, err := os.ReadFile(path) //nolint:gosec // path is a recording made by the user.
	if err != nil {
		return fmt.Errorf("session: read recording: %w", err)
	}

	text, err := s.transcriber.Transcribe(ctx, audio)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	s.log.DebugContext(ctx, "speech transcribed", "chars", len(text))

	return s.AppendUserTurn(content.Text{Text: text})
}

// Stream streams a response to the current transcript. See
// streaming.Driver.Stream for the commit semantics. Starting a second stream
// before the first one finishes yields ErrStreamInFlight.
func (s *Session) Stream(ctx context.Context, params model.Params, h family.Handle) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !s.busy.CompareAndSwap(false, true) {
			yield("", ErrStreamInFlight)
			return
		}
		defer s.busy.Store(false)

		for chunk, err := range s.driver.Stream(ctx, params, h) {
			if !yield(chunk, err) {
				return
			}
		}
	}
}

// Reset clears the transcript. It fails while a stream is in flight.
func (s *Session) Reset() error {
	if s.busy.Load() {
		return ErrStreamInFlight
	}

	s.chat.Reset()
	s.log.Debug("transcript reset")

	return nil
}

// Transcript returns a snapshot of the conversation.
func (s *Session) Transcript() []message.Message {
	return s.chat.Messages()
}

// Speak synthesizes the last assistant turn.
func (s *Session) Speak(ctx context.Context) ([]byte, error) {
	if s.speaker == nil {
		return nil, ErrSpeechDisabled
	}

	last, ok := s.chat.Last()
	if !ok || last.Role != role.Assistant {
		return nil, ErrNoResponse
	}

	audio, err := s.speaker.Speak(ctx, last.TextContent())
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	return audio, nil
}

// Usage returns the token usage recorded for this session.
func (s *Session) Usage() *usage.Tracker { return s.usage }

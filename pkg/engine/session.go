package engine

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/germanamz/chaichat/pkg/chats/content"
	"github.com/germanamz/chaichat/pkg/chats/message"
	"github.com/germanamz/chaichat/pkg/modeladapter/usage"
	"github.com/germanamz/chaichat/pkg/profile"
	"github.com/germanamz/chaichat/pkg/providers/family"
	"github.com/germanamz/chaichat/pkg/providers/model"
	"github.com/germanamz/chaichat/pkg/session"
	"github.com/germanamz/chaichat/pkg/workflows"
)

// Session is one interactive conversation bound to a selected model. It
// publishes its activity on the engine's event bus.
type Session struct {
	inner   *session.Session
	events  *EventBus
	catalog *family.Catalog
	handles map[family.Family]family.Handle

	mu     sync.Mutex
	params model.Params
	handle family.Handle
	env    workflows.Env
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.inner.ID() }

// SelectModel switches the model used for the next streams. The model's
// family must have a configured provider; otherwise the selection is left
// unchanged.
func (s *Session) SelectModel(name string) error {
	info, err := s.catalog.Lookup(name)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	h, ok := s.handles[info.Family]
	if !ok {
		return fmt.Errorf("engine: model %q: no %s provider configured", name, info.Family)
	}

	if _, err := s.inner.Select(info.Name); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	s.mu.Lock()
	s.params.Model = info.Name
	s.handle = h
	s.mu.Unlock()

	s.publish(EventModelChanged, nil)

	return nil
}

// Model returns the selected model.
func (s *Session) Model() family.ModelInfo {
	info, _ := s.inner.Selected()
	return info
}

// SetTemperature sets the sampling temperature for the next streams.
func (s *Session) SetTemperature(t float64) error {
	p := model.Params{Temperature: model.Temp(t)}
	if err := p.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	s.mu.Lock()
	s.params.Temperature = p.Temperature
	s.mu.Unlock()

	return nil
}

// Temperature returns the effective sampling temperature.
func (s *Session) Temperature() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.params.TemperatureOrDefault()
}

// SetProfile sets the freelancer profile used by workflows.
func (s *Session) SetProfile(p profile.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.env.Profile = p
}

// Profile returns the freelancer profile used by workflows.
func (s *Session) Profile() profile.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.env.Profile
}

// Send appends a user turn with the given parts and streams the response.
func (s *Session) Send(ctx context.Context, parts ...content.Part) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if err := s.AppendUserTurn(parts...); err != nil {
			yield("", err)
			return
		}

		for chunk, err := range s.Stream(ctx) {
			if !yield(chunk, err) {
				return
			}
		}
	}
}

// AppendUserTurn appends a user turn without streaming a response.
func (s *Session) AppendUserTurn(parts ...content.Part) error {
	if err := s.inner.AppendUserTurn(parts...); err != nil {
		return err
	}
	s.publish(EventTurnAdded, nil)
	return nil
}

// AppendAttachment appends a file as a user turn.
func (s *Session) AppendAttachment(path string) error {
	if err := s.inner.AppendAttachment(path); err != nil {
		return err
	}
	s.publish(EventTurnAdded, path)
	return nil
}

// AppendSpeech appends a recorded prompt as a user turn.
func (s *Session) AppendSpeech(ctx context.Context, path string) error {
	if err := s.inner.AppendSpeech(ctx, path); err != nil {
		return err
	}
	s.publish(EventTurnAdded, path)
	return nil
}

// Stream streams a response to the current transcript with the selected
// model and temperature.
func (s *Session) Stream(ctx context.Context) iter.Seq2[string, error] {
	s.mu.Lock()
	params, h := s.params, s.handle
	s.mu.Unlock()

	return s.observe(ctx, params, h)
}

// Run executes a workflow against this session.
func (s *Session) Run(ctx context.Context, w workflows.Workflow) iter.Seq2[workflows.Chunk, error] {
	s.mu.Lock()
	params, h, env := s.params, s.handle, s.env
	s.mu.Unlock()

	r := &workflows.Runner{Session: observed{s}, Env: env}

	return r.Run(ctx, w, params, h)
}

// Reset clears the transcript.
func (s *Session) Reset() error {
	if err := s.inner.Reset(); err != nil {
		return err
	}
	s.publish(EventReset, nil)
	return nil
}

// Transcript returns a snapshot of the conversation.
func (s *Session) Transcript() []message.Message { return s.inner.Transcript() }

// Speak synthesizes the last assistant turn.
func (s *Session) Speak(ctx context.Context) ([]byte, error) { return s.inner.Speak(ctx) }

// Usage returns the token usage recorded for this session.
func (s *Session) Usage() *usage.Tracker { return s.inner.Usage() }

func (s *Session) observe(ctx context.Context, params model.Params, h family.Handle) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		s.publish(EventStreamStart, nil)

		start := time.Now()
		chunks := 0

		for chunk, err := range s.inner.Stream(ctx, params, h) {
			if err != nil {
				s.publish(EventError, err)
				yield("", err)
				return
			}

			chunks++

			if !yield(chunk, nil) {
				s.publish(EventStreamEnd, StreamStats{Chunks: chunks, Duration: time.Since(start), Aborted: true})
				return
			}
		}

		s.publish(EventStreamEnd, StreamStats{Chunks: chunks, Duration: time.Since(start)})
	}
}

func (s *Session) publish(kind EventKind, data any) {
	s.events.Publish(Event{
		Kind:      kind,
		SessionID: s.ID(),
		Model:     s.Model().Name,
		Data:      data,
	})
}

// observed routes workflow turns and streams through the session so they are
// published like interactive ones.
type observed struct {
	s *Session
}

func (o observed) AppendUserTurn(parts ...content.Part) error {
	return o.s.AppendUserTurn(parts...)
}

func (o observed) Stream(ctx context.Context, params model.Params, h family.Handle) iter.Seq2[string, error] {
	return o.s.observe(ctx, params, h)
}

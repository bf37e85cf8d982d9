package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/germanamz/chaichat/pkg/profile"
	"github.com/germanamz/chaichat/pkg/prompts"
	"github.com/germanamz/chaichat/pkg/providers/family"
	"github.com/germanamz/chaichat/pkg/providers/openai"
	"github.com/germanamz/chaichat/pkg/providers/provider"
	"github.com/germanamz/chaichat/pkg/retrieval"
	"github.com/germanamz/chaichat/pkg/session"
	"github.com/germanamz/chaichat/pkg/workflows"
)

// ErrNoProfilesDir is returned by profile operations when profiles_dir is not
// configured.
var ErrNoProfilesDir = errors.New("engine: profiles_dir is not configured")

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger handed to sessions and the streaming driver.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithHTTPClient sets the client used for retrieval queries.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.httpClient = c }
}

// Engine is the composition root that assembles providers, speech,
// retrieval and prompt templates from configuration and hands out sessions.
type Engine struct {
	cfg        Config
	log        *slog.Logger
	httpClient *http.Client
	events     *EventBus
	registry   *provider.Registry
	catalog    *family.Catalog
	handles    map[family.Family]family.Handle
	openai     *openai.Adapter // nil without an openai provider.
	prompts    *prompts.Loader
	retriever  retrieval.Retriever

	mu       sync.Mutex
	sessions map[string]*Session
}

// New creates an Engine from the given configuration.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		log:      slog.New(slog.DiscardHandler),
		events:   NewEventBus(),
		registry: newRegistry(),
		catalog:  family.DefaultCatalog(),
		handles:  cfg.handles(),
		prompts:  prompts.NewLoader(cfg.PromptsDir),
		sessions: make(map[string]*Session),
	}

	for _, o := range opts {
		o(e)
	}

	for _, pc := range cfg.Providers {
		if f, _ := family.Parse(pc.Kind); f == family.OpenAI {
			e.openai = newOpenAI(pc, cfg.TranscriptionModel)
			break
		}
	}

	if rc := cfg.Retrieval; rc.IndexHost != "" {
		pc, _ := cfg.provider(rc.OpenAIProvider)
		p := retrieval.NewPinecone(rc.IndexHost, rc.APIKey, newOpenAI(pc, ""), e.httpClient)
		p.EmbeddingModel = rc.EmbeddingModel
		p.Namespace = rc.Namespace
		if rc.TopK > 0 {
			p.TopK = rc.TopK
		}
		e.retriever = p
	}

	return e, nil
}

// Events returns the engine's event bus.
func (e *Engine) Events() *EventBus { return e.events }

// Config returns the configuration the engine was built from.
func (e *Engine) Config() Config { return e.cfg }

// Models lists the catalog models whose family has a configured provider.
func (e *Engine) Models() []family.ModelInfo {
	fams := make([]family.Family, 0, len(e.handles))
	for f := range e.handles {
		fams = append(fams, f)
	}
	return e.catalog.Available(fams...)
}

// Profiles lists the profile IDs in profiles_dir.
func (e *Engine) Profiles() ([]string, error) {
	if e.cfg.ProfilesDir == "" {
		return nil, ErrNoProfilesDir
	}
	return profile.List(e.cfg.ProfilesDir)
}

// LoadProfile reads profile id from profiles_dir.
func (e *Engine) LoadProfile(id string) (profile.Profile, error) {
	if e.cfg.ProfilesDir == "" {
		return profile.Profile{}, ErrNoProfilesDir
	}
	return profile.LoadNamed(e.cfg.ProfilesDir, id)
}

// NewSession creates a session using the configured model (or the first
// available one), temperature and profile.
func (e *Engine) NewSession() (*Session, error) {
	opts := session.Options{
		Registry: e.registry,
		Catalog:  e.catalog,
		Logger:   e.log,
	}
	if e.openai != nil {
		opts.Transcriber = e.openai
		if e.cfg.Speech.Enabled {
			opts.Speaker = speaker{
				adapter: e.openai,
				opts:    openai.SpeechOptions{Model: e.cfg.Speech.Model, Voice: e.cfg.Speech.Voice},
			}
		}
	}

	inner := session.New(opts)

	s := &Session{
		inner:   inner,
		events:  e.events,
		catalog: e.catalog,
		handles: e.handles,
		env: workflows.Env{
			Prompts:   e.prompts,
			Retriever: e.retriever,
		},
	}
	s.params.Temperature = e.cfg.Temperature

	name := e.cfg.Model
	if name == "" {
		models := e.Models()
		if len(models) == 0 {
			return nil, errors.New("engine: no model available for the configured providers")
		}
		name = models[0].Name
	}
	if err := s.SelectModel(name); err != nil {
		return nil, err
	}

	if e.cfg.Profile != "" {
		p, err := e.LoadProfile(e.cfg.Profile)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		s.SetProfile(p)
	}

	e.mu.Lock()
	e.sessions[s.ID()] = s
	e.mu.Unlock()

	return s, nil
}

// Session returns an existing session by ID.
func (e *Engine) Session(id string) (*Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[id]
	return s, ok
}

// SessionIDs lists the IDs of the open sessions in sorted order.
func (e *Engine) SessionIDs() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

// RemoveSession forgets a session.
func (e *Engine) RemoveSession(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.sessions, id)
}

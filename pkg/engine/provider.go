package engine

import (
	"context"
	"sync"

	"github.com/germanamz/chaichat/pkg/providers/anthropic"
	"github.com/germanamz/chaichat/pkg/providers/family"
	"github.com/germanamz/chaichat/pkg/providers/gemini"
	"github.com/germanamz/chaichat/pkg/providers/openai"
	"github.com/germanamz/chaichat/pkg/providers/provider"
)

var (
	factoryMu   sync.RWMutex
	factories   = map[family.Family]provider.Factory{}
	defaultsReg sync.Once
)

func ensureDefaults() {
	defaultsReg.Do(func() {
		factoryMu.Lock()
		defer factoryMu.Unlock()

		factories[family.OpenAI] = openai.Factory
		factories[family.Google] = gemini.Factory
		factories[family.Anthropic] = anthropic.Factory
	})
}

// RegisterProvider replaces the adapter factory used for a family. It must be
// called before New to affect the engines it creates.
func RegisterProvider(f family.Family, factory provider.Factory) {
	ensureDefaults()

	factoryMu.Lock()
	defer factoryMu.Unlock()

	factories[f] = factory
}

// newRegistry snapshots the registered factories into a provider.Registry.
func newRegistry() *provider.Registry {
	ensureDefaults()

	factoryMu.RLock()
	defer factoryMu.RUnlock()

	reg := provider.NewRegistry()
	for f, fn := range factories {
		reg.Register(f, fn)
	}

	return reg
}

func newOpenAI(pc ProviderConfig, transcriptionModel string) *openai.Adapter {
	a := openai.New(family.Handle{Family: family.OpenAI, APIKey: pc.APIKey, BaseURL: pc.BaseURL})
	a.TranscriptionModel = transcriptionModel
	return a
}

// speaker binds the configured voice to an OpenAI adapter.
type speaker struct {
	adapter *openai.Adapter
	opts    openai.SpeechOptions
}

func (s speaker) Speak(ctx context.Context, text string) ([]byte, error) {
	return s.adapter.Speak(ctx, text, s.opts)
}

// Package engine is the composition root of chaichat. It builds provider
// adapters, speech, retrieval and prompt templates from configuration and
// hands out sessions. Frontends interact with Engine and Session, observe
// activity through an EventBus, and never import the provider packages
// directly.
package engine

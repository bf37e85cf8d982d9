// Package providers groups the provider families the chat core can stream from.
//
// It is organized into sub-packages:
//   - [github.com/germanamz/chaichat/pkg/providers/family]: provider family enum, credentials handle, model catalog
//   - [github.com/germanamz/chaichat/pkg/providers/model]: per-request model parameters and defaults
//   - [github.com/germanamz/chaichat/pkg/providers/provider]: Adapter and Stream contracts, role coalescing, error taxonomy
//   - [github.com/germanamz/chaichat/pkg/providers/openai]: OpenAI chat, transcription, speech and embeddings
//   - [github.com/germanamz/chaichat/pkg/providers/gemini]: Google Gemini streaming and Files API uploads
//   - [github.com/germanamz/chaichat/pkg/providers/anthropic]: Anthropic Messages API streaming
package providers

package openai

import (
	"bytes"
	"context"
	"fmt"
	"io"

	gpt "github.com/sashabaranov/go-openai"
)

// Default audio models and voices.
const (
	TranscriptionModel = gpt.Whisper1
	SpeechModel        = "tts-1-hd"
	SpeechVoice        = "alloy"
)

// Voices lists the selectable text-to-speech voices.
var Voices = []string{"alloy", "echo", "fable", "onyx", "nova", "shimmer"}

// Transcribe converts recorded speech (WAV bytes) to text.
func (a *Adapter) Transcribe(ctx context.Context, audio []byte) (string, error) {
	model := a.TranscriptionModel
	if model == "" {
		model = TranscriptionModel
	}

	resp, err := a.client.CreateTranscription(ctx, gpt.AudioRequest{
		Model:    model,
		FilePath: "audio.wav",
		Reader:   bytes.NewReader(audio),
	})
	if err != nil {
		return "", fmt.Errorf("openai: transcribe: %w", err)
	}
	return resp.Text, nil
}

// SpeechOptions selects the text-to-speech model and voice. Zero fields use
// SpeechModel and SpeechVoice.
type SpeechOptions struct {
	Model string
	Voice string
}

// Speak synthesizes text and returns the encoded audio (MP3).
func (a *Adapter) Speak(ctx context.Context, text string, opts SpeechOptions) ([]byte, error) {
	model := opts.Model
	if model == "" {
		model = SpeechModel
	}
	voice := opts.Voice
	if voice == "" {
		voice = SpeechVoice
	}

	resp, err := a.client.CreateSpeech(ctx, gpt.CreateSpeechRequest{
		Model: gpt.SpeechModel(model),
		Input: text,
		Voice: gpt.SpeechVoice(voice),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: speech: %w", err)
	}
	defer func() { _ = resp.Close() }()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("openai: read speech: %w", err)
	}
	return audio, nil
}

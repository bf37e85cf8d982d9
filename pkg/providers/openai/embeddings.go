package openai

import (
	"context"
	"errors"
	"fmt"

	gpt "github.com/sashabaranov/go-openai"
)

// EmbeddingModel is the default embedding model.
const EmbeddingModel = "text-embedding-3-large"

// Embed returns the embedding vector for text.
func (a *Adapter) Embed(ctx context.Context, model, text string) ([]float32, error) {
	if model == "" {
		model = EmbeddingModel
	}

	resp, err := a.client.CreateEmbeddings(ctx, gpt.EmbeddingRequestStrings{
		Input: []string{text},
		Model: gpt.EmbeddingModel(model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai: embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai: embed: empty response")
	}

	return resp.Data[0].Embedding, nil
}

// Package retrieval looks up past experience relevant to a job description
// in a vector index.
package retrieval

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/germanamz/chaichat/pkg/modeladapter"
)

// DefaultTopK is the number of matches requested when none is configured.
const DefaultTopK = 3

// Retriever returns context text relevant to a query.
type Retriever interface {
	Query(ctx context.Context, text string) (string, error)
}

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Pinecone queries a Pinecone index and joins the "text" metadata of the
// best matches.
type Pinecone struct {
	modeladapter.ModelAdapter

	Embedder       Embedder
	EmbeddingModel string // Empty uses the embedder's default.
	TopK           int
	Namespace      string
}

// NewPinecone creates a Pinecone retriever for the index served at host.
func NewPinecone(host, apiKey string, e Embedder, client *http.Client) *Pinecone {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}

	p := &Pinecone{Embedder: e, TopK: DefaultTopK}
	p.BaseURL = strings.TrimSuffix(host, "/")
	p.Auth = modeladapter.Auth{Key: apiKey, Header: "Api-Key"}
	p.Client = client

	return p
}

type queryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	IncludeMetadata bool      `json:"includeMetadata"`
	Namespace       string    `json:"namespace,omitempty"`
}

type queryResponse struct {
	Matches []match `json:"matches"`
}

type match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata"`
}

// Query embeds text and returns the metadata text of the nearest matches,
// separated by blank lines. No matches yield "".
func (p *Pinecone) Query(ctx context.Context, text string) (string, error) {
	vec, err := p.Embedder.Embed(ctx, p.EmbeddingModel, text)
	if err != nil {
		return "", fmt.Errorf("retrieval: embed: %w", err)
	}

	topK := p.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	var resp queryResponse
	err = p.PostJSON(ctx, "/query", queryRequest{
		Vector:          vec,
		TopK:            topK,
		IncludeMetadata: true,
		Namespace:       p.Namespace,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("retrieval: query: %w", err)
	}

	texts := make([]string, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if t, ok := m.Metadata["text"].(string); ok && t != "" {
			texts = append(texts, t)
		}
	}

	return strings.Join(texts, "\n\n"), nil
}

// Static is a Retriever that always returns the same text.
type Static string

// Query returns s.
func (s Static) Query(context.Context, string) (string, error) { return string(s), nil }

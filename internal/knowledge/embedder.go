package knowledge

import (
	"context"
	"errors"
)

// Embedder turns text into vectors. Documents and queries must be embedded
// by the same model.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// DefaultEmbeddingModel is the sentence-transformers model the store is
// built with.
const DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"

// ErrUnsupportedModel is returned by NewFastEmbed for unknown model names.
var ErrUnsupportedModel = errors.New("unsupported embedding model")

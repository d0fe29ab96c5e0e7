//go:build cgo

package knowledge

import (
	"context"
	"fmt"
	"sync"

	fastembed "github.com/anush008/fastembed-go"

	"github.com/leofalp/planner/internal/utils"
)

var fastEmbedModels = map[string]fastembed.EmbeddingModel{
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"all-MiniLM-L6-v2":                       fastembed.AllMiniLML6V2,
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
}

const fastEmbedBatchSize = 64

// FastEmbed embeds text locally with an ONNX model. The model files are
// downloaded into the cache directory on first use.
type FastEmbed struct {
	model *fastembed.FlagEmbedding
	mu    sync.Mutex
}

// NewFastEmbed loads modelName, caching model files under cacheDir.
func NewFastEmbed(modelName, cacheDir string) (*FastEmbed, error) {
	model, ok := fastEmbedModels[modelName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, modelName)
	}

	flagEmbedding, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            512,
		ShowDownloadProgress: utils.Ptr(false),
	})
	if err != nil {
		return nil, fmt.Errorf("initializing FastEmbed: %w", err)
	}

	return &FastEmbed{model: flagEmbedding}, nil
}

// EmbedDocuments implements Embedder.
func (embedder *FastEmbed) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embedder.mu.Lock()
	defer embedder.mu.Unlock()

	vectors, err := embedder.model.Embed(texts, fastEmbedBatchSize)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	return vectors, nil
}

// EmbedQuery implements Embedder.
func (embedder *FastEmbed) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := embedder.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Close releases the ONNX session.
func (embedder *FastEmbed) Close() error {
	embedder.mu.Lock()
	defer embedder.mu.Unlock()
	return embedder.model.Destroy()
}

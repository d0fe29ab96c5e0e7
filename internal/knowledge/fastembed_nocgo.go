//go:build !cgo

package knowledge

import (
	"context"
	"errors"
)

// ErrFastEmbedNotAvailable is returned in binaries built without cgo, which
// the ONNX runtime requires.
var ErrFastEmbedNotAvailable = errors.New("fastembed: not available (binary built without cgo)")

// FastEmbed is unavailable without cgo.
type FastEmbed struct{}

// NewFastEmbed always fails without cgo.
func NewFastEmbed(_, _ string) (*FastEmbed, error) {
	return nil, ErrFastEmbedNotAvailable
}

// EmbedDocuments implements Embedder.
func (embedder *FastEmbed) EmbedDocuments(context.Context, []string) ([][]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

// EmbedQuery implements Embedder.
func (embedder *FastEmbed) EmbedQuery(context.Context, string) ([]float32, error) {
	return nil, ErrFastEmbedNotAvailable
}

// Close is a no-op.
func (embedder *FastEmbed) Close() error {
	return nil
}

package knowledge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"github.com/tmc/langchaingo/schema"
)

// DefaultCollection is the chromem collection holding the textbook chunks.
const DefaultCollection = "sgk_toan_9"

// Metadata keys stored with every chunk.
const (
	MetadataSource = "source"
	MetadataChunk  = "chunk"
)

// ErrStoreNotFound is returned by Open when the store has not been built.
var ErrStoreNotFound = errors.New("knowledge store not found")

// Store is a built knowledge base opened for search.
type Store struct {
	collection *chromem.Collection
}

// Open loads the store at path. The embedder must be the one the store was
// built with.
func Open(path, collectionName string, embedder Embedder) (*Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, path)
		}
		return nil, fmt.Errorf("stat store: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("store path %s is not a directory", path)
	}
	if collectionName == "" {
		collectionName = DefaultCollection
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}

	collection := db.GetCollection(collectionName, embeddingFunc(embedder))
	if collection == nil {
		return nil, fmt.Errorf("%w: collection %q in %s", ErrStoreNotFound, collectionName, path)
	}

	return &Store{collection: collection}, nil
}

// Count returns the number of chunks in the store.
func (store *Store) Count() int {
	return store.collection.Count()
}

// Search returns up to k chunks most similar to query, best first. Score
// holds the cosine similarity.
func (store *Store) Search(ctx context.Context, query string, k int) ([]schema.Document, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if count := store.collection.Count(); k > count {
		k = count
	}
	if k == 0 {
		return []schema.Document{}, nil
	}

	results, err := store.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query store: %w", err)
	}

	documents := make([]schema.Document, len(results))
	for index, result := range results {
		metadata := make(map[string]any, len(result.Metadata))
		for key, value := range result.Metadata {
			metadata[key] = value
		}
		documents[index] = schema.Document{
			PageContent: result.Content,
			Metadata:    metadata,
			Score:       result.Similarity,
		}
	}
	return documents, nil
}

// writeStore persists chunks and their vectors as a chromem database in dir.
func writeStore(ctx context.Context, dir, collectionName string, chunks []schema.Document, vectors [][]float32, embedder Embedder) error {
	db, err := chromem.NewPersistentDB(dir, false)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}

	collection, err := db.CreateCollection(collectionName, nil, embeddingFunc(embedder))
	if err != nil {
		return fmt.Errorf("create collection %s: %w", collectionName, err)
	}

	documents := make([]chromem.Document, len(chunks))
	for index, chunk := range chunks {
		metadata := map[string]string{MetadataChunk: strconv.Itoa(index)}
		for key, value := range chunk.Metadata {
			metadata[key] = fmt.Sprint(value)
		}
		documents[index] = chromem.Document{
			ID:        uuid.NewString(),
			Metadata:  metadata,
			Embedding: vectors[index],
			Content:   chunk.PageContent,
		}
	}

	if err := collection.AddDocuments(ctx, documents, 1); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

func embeddingFunc(embedder Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	}
}

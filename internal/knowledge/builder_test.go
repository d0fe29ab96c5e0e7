package knowledge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leofalp/planner/providers/observability/promobs"
	"github.com/leofalp/planner/providers/observability/slogobs"
)

// fakeRenderer writes one empty image per page.
type fakeRenderer struct {
	pages     int
	err       error
	calls     atomic.Int32
	outputDir string
}

func (renderer *fakeRenderer) RenderPages(_ context.Context, _ string, outputDir string, _ int) ([]string, error) {
	renderer.calls.Add(1)
	renderer.outputDir = outputDir
	if renderer.err != nil {
		return nil, renderer.err
	}
	paths := make([]string, renderer.pages)
	for index := range paths {
		paths[index] = filepath.Join(outputDir, fmt.Sprintf("page-%d.png", index+1))
		if err := os.WriteFile(paths[index], nil, 0o600); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

// missingRenderer is a renderer whose binary is not installed.
type missingRenderer struct {
	fakeRenderer
}

func (renderer *missingRenderer) Locate() error {
	return fmt.Errorf("%w: pdftoppm", ErrMissingBinary)
}

// fakeRecognizer returns the text of each page by its file name.
type fakeRecognizer struct {
	texts  map[string]string
	errors map[string]error
}

func (recognizer *fakeRecognizer) Recognize(_ context.Context, imagePath, language string) (string, error) {
	if language != "vie" {
		return "", fmt.Errorf("unexpected language %q", language)
	}
	name := filepath.Base(imagePath)
	if err := recognizer.errors[name]; err != nil {
		return "", err
	}
	return recognizer.texts[name], nil
}

// letterEmbedder maps text to letter frequencies, enough to make search
// results predictable.
type letterEmbedder struct {
	err    error
	closed atomic.Bool
}

func (embedder *letterEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if embedder.err != nil {
		return nil, embedder.err
	}
	vectors := make([][]float32, len(texts))
	for index, text := range texts {
		vectors[index], _ = embedder.EmbedQuery(ctx, text)
	}
	return vectors, nil
}

func (embedder *letterEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	vector := make([]float32, 27)
	vector[26] = 1
	for _, char := range strings.ToLower(text) {
		if char >= 'a' && char <= 'z' {
			vector[char-'a']++
		}
	}
	return vector, nil
}

func (embedder *letterEmbedder) Close() error {
	embedder.closed.Store(true)
	return nil
}

type fixture struct {
	config     Config
	renderer   *fakeRenderer
	recognizer *fakeRecognizer
	embedder   *letterEmbedder
	factoryHit atomic.Int32
}

func newFixture(testCase *testing.T) *fixture {
	testCase.Helper()
	dir := testCase.TempDir()

	pdfPath := filepath.Join(dir, "data", "sgk.pdf")
	require.NoError(testCase, os.MkdirAll(filepath.Dir(pdfPath), 0o755))
	require.NoError(testCase, os.WriteFile(pdfPath, []byte("%PDF-1.4"), 0o600))

	config := DefaultConfig()
	config.PDFPath = pdfPath
	config.StorePath = filepath.Join(dir, "vector_store", "sgk_toan_9")

	return &fixture{
		config:   config,
		renderer: &fakeRenderer{pages: 3},
		recognizer: &fakeRecognizer{texts: map[string]string{
			"page-1.png": "Chương 1. Phương trình và hệ hai phương trình bậc nhất hai ẩn.",
			"page-2.png": "Bài 1. Khái niệm phương trình bậc nhất hai ẩn.",
			"page-3.png": "Zzz zig zag quiz: bài tập cuối chương.",
		}},
		embedder: &letterEmbedder{},
	}
}

func (fixture *fixture) builder(opts ...BuilderOption) *Builder {
	return fixture.builderWith(fixture.renderer, opts...)
}

func (fixture *fixture) builderWith(renderer PageRenderer, opts ...BuilderOption) *Builder {
	return NewBuilder(fixture.config, renderer, fixture.recognizer, func() (Embedder, error) {
		fixture.factoryHit.Add(1)
		return fixture.embedder, nil
	}, opts...)
}

func TestBuild_CreatesSearchableStore(testCase *testing.T) {
	fixture := newFixture(testCase)

	report, err := fixture.builder().Build(context.Background())
	require.NoError(testCase, err)

	assert.False(testCase, report.Skipped)
	assert.Equal(testCase, 3, report.Pages)
	assert.Empty(testCase, report.FailedPages)
	assert.Equal(testCase, 1, report.Chunks)
	assert.True(testCase, fixture.embedder.closed.Load())

	entries, err := os.ReadDir(filepath.Dir(fixture.config.StorePath))
	require.NoError(testCase, err)
	require.Len(testCase, entries, 1, "staging directory must not be left behind")
	assert.Equal(testCase, "sgk_toan_9", entries[0].Name())

	_, err = os.Stat(fixture.renderer.outputDir)
	assert.ErrorIs(testCase, err, os.ErrNotExist, "rendered pages are removed")

	store, err := Open(fixture.config.StorePath, "", fixture.embedder)
	require.NoError(testCase, err)
	assert.Equal(testCase, 1, store.Count())

	results, err := store.Search(context.Background(), "phương trình", 5)
	require.NoError(testCase, err)
	require.Len(testCase, results, 1)
	assert.Contains(testCase, results[0].PageContent, "Chương 1.")
	assert.Contains(testCase, results[0].PageContent, "Bài 1.")
	assert.Equal(testCase, fixture.config.PDFPath, results[0].Metadata[MetadataSource])
	assert.Equal(testCase, "0", results[0].Metadata[MetadataChunk])
}

func TestBuild_SkipsExistingStore(testCase *testing.T) {
	fixture := newFixture(testCase)
	require.NoError(testCase, os.MkdirAll(fixture.config.StorePath, 0o755))

	report, err := fixture.builder().Build(context.Background())
	require.NoError(testCase, err)

	assert.True(testCase, report.Skipped)
	assert.Zero(testCase, fixture.renderer.calls.Load())
	assert.Zero(testCase, fixture.factoryHit.Load())
}

func TestBuild_MissingBinary(testCase *testing.T) {
	fixture := newFixture(testCase)

	_, err := fixture.builderWith(&missingRenderer{}).Build(context.Background())

	assert.ErrorIs(testCase, err, ErrMissingBinary)
	assert.NoDirExists(testCase, filepath.Dir(fixture.config.StorePath))
}

func TestBuild_MissingSource(testCase *testing.T) {
	fixture := newFixture(testCase)
	fixture.config.PDFPath = filepath.Join(testCase.TempDir(), "missing.pdf")

	_, err := fixture.builder().Build(context.Background())

	assert.ErrorIs(testCase, err, ErrMissingSource)
	assert.Zero(testCase, fixture.renderer.calls.Load())
	assert.NoDirExists(testCase, fixture.config.StorePath)
}

func TestBuild_PageFailureIsTolerated(testCase *testing.T) {
	fixture := newFixture(testCase)
	fixture.recognizer.errors = map[string]error{"page-2.png": errors.New("tesseract crashed")}

	registry := prometheus.NewRegistry()
	var logs bytes.Buffer
	observer := slogobs.New(
		slogobs.WithFormat(slogobs.FormatJSON),
		slogobs.WithOutput(&logs),
		slogobs.WithMetrics(promobs.New(registry)),
	)

	report, err := fixture.builder(WithObserver(observer)).Build(context.Background())
	require.NoError(testCase, err)

	assert.Equal(testCase, []int{2}, report.FailedPages)
	assert.Contains(testCase, logs.String(), "Page recognition failed")
	assert.Contains(testCase, logs.String(), "tesseract crashed")

	count, err := testutil.GatherAndCount(registry, "planner_knowledge_page_failures_total")
	require.NoError(testCase, err)
	assert.Equal(testCase, 1, count)

	store, err := Open(fixture.config.StorePath, fixture.config.Collection, fixture.embedder)
	require.NoError(testCase, err)
	results, err := store.Search(context.Background(), "bài", 1)
	require.NoError(testCase, err)
	require.Len(testCase, results, 1)
	assert.NotContains(testCase, results[0].PageContent, "Bài 1.")
}

func TestBuild_NoChunks(testCase *testing.T) {
	fixture := newFixture(testCase)
	fixture.recognizer.texts = map[string]string{"page-1.png": "  \n", "page-3.png": "\t"}
	fixture.recognizer.errors = map[string]error{"page-2.png": errors.New("unreadable")}

	_, err := fixture.builder().Build(context.Background())

	assert.ErrorIs(testCase, err, ErrNoChunks)
	assert.Zero(testCase, fixture.factoryHit.Load())
	assert.NoDirExists(testCase, fixture.config.StorePath)
}

func TestBuild_EmbeddingFailureLeavesNothing(testCase *testing.T) {
	fixture := newFixture(testCase)
	fixture.embedder.err = errors.New("model download failed")

	_, err := fixture.builder().Build(context.Background())

	assert.ErrorContains(testCase, err, "embed chunks: model download failed")
	entries, readErr := os.ReadDir(filepath.Dir(fixture.config.StorePath))
	if readErr == nil {
		assert.Empty(testCase, entries)
	}
	assert.NoDirExists(testCase, fixture.config.StorePath)
}

func TestBuild_RenderFailure(testCase *testing.T) {
	fixture := newFixture(testCase)
	fixture.renderer.err = errors.New("corrupt pdf")

	_, err := fixture.builder().Build(context.Background())

	assert.ErrorContains(testCase, err, "corrupt pdf")
	assert.NoDirExists(testCase, fixture.config.StorePath)
}

func TestBuild_CanceledContext(testCase *testing.T) {
	fixture := newFixture(testCase)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fixture.builder().Build(ctx)

	assert.ErrorIs(testCase, err, context.Canceled)
	assert.NoDirExists(testCase, fixture.config.StorePath)
}

func TestBuild_SplitsLongTextWithOverlap(testCase *testing.T) {
	fixture := newFixture(testCase)
	sentence := "Hàm số y = ax² với a khác 0 có đồ thị là một parabol. "
	fixture.recognizer.texts = map[string]string{
		"page-1.png": strings.Repeat(sentence, 30),
		"page-2.png": strings.Repeat(sentence, 30),
	}
	fixture.renderer.pages = 2

	report, err := fixture.builder().Build(context.Background())
	require.NoError(testCase, err)
	assert.GreaterOrEqual(testCase, report.Chunks, 3)

	store, err := Open(fixture.config.StorePath, fixture.config.Collection, fixture.embedder)
	require.NoError(testCase, err)
	results, err := store.Search(context.Background(), "parabol", report.Chunks)
	require.NoError(testCase, err)
	require.Len(testCase, results, report.Chunks)
	for _, result := range results {
		assert.LessOrEqual(testCase, utf8.RuneCountInString(result.PageContent), fixture.config.ChunkSize)
	}
}

func TestNewBuilder_Defaults(testCase *testing.T) {
	builder := NewBuilder(Config{PDFPath: "a.pdf", StorePath: "store"}, nil, nil, nil)

	assert.Equal(testCase, DefaultCollection, builder.config.Collection)
	assert.Equal(testCase, "vie", builder.config.Language)
	assert.Equal(testCase, 300, builder.config.DPI)
	assert.Equal(testCase, 1000, builder.config.ChunkSize)
	assert.Equal(testCase, 100, builder.config.ChunkOverlap)
}

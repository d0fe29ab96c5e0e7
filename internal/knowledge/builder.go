package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/leofalp/planner/providers/observability"
)

var (
	// ErrMissingBinary is returned when an external tool cannot be found.
	ErrMissingBinary = errors.New("required binary not found")

	// ErrMissingSource is returned when the source PDF does not exist.
	ErrMissingSource = errors.New("source document not found")

	// ErrNoChunks is returned when recognition produced no usable text.
	ErrNoChunks = errors.New("document produced no chunks")
)

// Config describes one knowledge base build.
type Config struct {
	PDFPath      string
	StorePath    string
	Collection   string
	Language     string
	DPI          int
	ChunkSize    int
	ChunkOverlap int
}

// DefaultConfig returns the settings of the grade 9 mathematics textbook.
func DefaultConfig() Config {
	return Config{
		PDFPath:      "data/thuvienhoclieu.com-SGK-Toan-9-KNTT-tap-1.pdf",
		StorePath:    "vector_store/sgk_toan_9",
		Collection:   DefaultCollection,
		Language:     "vie",
		DPI:          300,
		ChunkSize:    1000,
		ChunkOverlap: 100,
	}
}

// Report summarizes a build.
type Report struct {
	// Skipped is set when the store already existed and nothing was done.
	Skipped bool

	StorePath   string
	Pages       int
	FailedPages []int
	Chunks      int
	Duration    time.Duration
}

// EmbedderFactory creates the embedder. It is called only once chunks exist,
// so a skipped or failed build never loads the model.
type EmbedderFactory func() (Embedder, error)

// Builder runs the render, recognize, split, embed and persist pipeline.
type Builder struct {
	config      Config
	renderer    PageRenderer
	recognizer  Recognizer
	newEmbedder EmbedderFactory
	observer    observability.Provider
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithObserver reports progress to observer.
func WithObserver(observer observability.Provider) BuilderOption {
	return func(builder *Builder) {
		builder.observer = observer
	}
}

// NewBuilder creates a Builder. Zero values in config are taken from
// DefaultConfig.
func NewBuilder(config Config, renderer PageRenderer, recognizer Recognizer, newEmbedder EmbedderFactory, opts ...BuilderOption) *Builder {
	defaults := DefaultConfig()
	if config.Collection == "" {
		config.Collection = defaults.Collection
	}
	if config.Language == "" {
		config.Language = defaults.Language
	}
	if config.DPI == 0 {
		config.DPI = defaults.DPI
	}
	if config.ChunkSize == 0 {
		config.ChunkSize = defaults.ChunkSize
		if config.ChunkOverlap == 0 {
			config.ChunkOverlap = defaults.ChunkOverlap
		}
	}

	builder := &Builder{
		config:      config,
		renderer:    renderer,
		recognizer:  recognizer,
		newEmbedder: newEmbedder,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder
}

// Build creates the store unless it already exists. Nothing is written to
// the store path unless every step succeeds.
func (builder *Builder) Build(ctx context.Context) (report Report, err error) {
	start := time.Now()
	report.StorePath = builder.config.StorePath

	if builder.observer != nil {
		var span observability.Span
		ctx, span = builder.observer.StartSpan(ctx, observability.SpanKnowledgeBuild,
			observability.String(observability.AttrKnowledgeSource, builder.config.PDFPath),
			observability.String(observability.AttrKnowledgeStore, builder.config.StorePath),
		)
		defer func() {
			span.SetAttributes(
				observability.Bool("knowledge.skipped", report.Skipped),
				observability.Int(observability.AttrKnowledgePages, report.Pages),
				observability.Int(observability.AttrKnowledgeChunks, report.Chunks),
			)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(observability.StatusError, err.Error())
			} else {
				span.SetStatus(observability.StatusOK, "")
			}
			span.End()
		}()
	}

	if err := builder.preflight(); err != nil {
		return report, err
	}

	if _, statErr := os.Stat(builder.config.StorePath); statErr == nil {
		builder.info(ctx, "Knowledge store already exists, skipping build",
			observability.String(observability.AttrKnowledgeStore, builder.config.StorePath))
		report.Skipped = true
		return report, nil
	} else if !errors.Is(statErr, os.ErrNotExist) {
		return report, fmt.Errorf("stat store: %w", statErr)
	}

	text, err := builder.recognize(ctx, &report)
	if err != nil {
		return report, err
	}

	chunks, err := builder.split(text)
	if err != nil {
		return report, err
	}
	report.Chunks = len(chunks)
	builder.info(ctx, "Document split into chunks",
		observability.Int(observability.AttrKnowledgeChunks, len(chunks)))

	if err := builder.persist(ctx, chunks); err != nil {
		return report, err
	}

	report.Duration = time.Since(start)
	builder.info(ctx, "Knowledge store built",
		observability.String(observability.AttrKnowledgeStore, builder.config.StorePath),
		observability.Int(observability.AttrKnowledgeChunks, report.Chunks),
		observability.Duration(observability.AttrDuration, report.Duration),
	)
	return report, nil
}

// preflight checks the tools and the source before anything is written.
func (builder *Builder) preflight() error {
	for _, tool := range []any{builder.renderer, builder.recognizer} {
		if locator, ok := tool.(Locator); ok {
			if err := locator.Locate(); err != nil {
				return err
			}
		}
	}

	info, err := os.Stat(builder.config.PDFPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingSource, builder.config.PDFPath)
		}
		return fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrMissingSource, builder.config.PDFPath)
	}
	return nil
}

// recognize renders every page and joins the recognized text with blank
// lines. A page that fails recognition is logged and left out.
func (builder *Builder) recognize(ctx context.Context, report *Report) (string, error) {
	pagesDir, err := os.MkdirTemp("", "planner-pages-*")
	if err != nil {
		return "", fmt.Errorf("create page directory: %w", err)
	}
	defer os.RemoveAll(pagesDir)

	pages, err := builder.renderer.RenderPages(ctx, builder.config.PDFPath, pagesDir, builder.config.DPI)
	if err != nil {
		return "", err
	}
	report.Pages = len(pages)
	builder.info(ctx, "Pages rendered", observability.Int(observability.AttrKnowledgePages, len(pages)))

	var text strings.Builder
	for index, page := range pages {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		pageNumber := index + 1
		pageText, err := builder.recognizer.Recognize(ctx, page, builder.config.Language)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			report.FailedPages = append(report.FailedPages, pageNumber)
			if builder.observer != nil {
				builder.observer.Counter(observability.MetricKnowledgePageFailures).Add(ctx, 1)
				builder.observer.Warn(ctx, "Page recognition failed",
					observability.Int(observability.AttrKnowledgePage, pageNumber),
					observability.Error(err),
				)
			}
			continue
		}

		text.WriteString(pageText)
		text.WriteString("\n\n")
		if builder.observer != nil {
			builder.observer.Debug(ctx, "Page recognized",
				observability.Int(observability.AttrKnowledgePage, pageNumber),
				observability.Int(observability.AttrKnowledgePages, len(pages)),
			)
		}
	}

	return text.String(), nil
}

// split cuts text into overlapping chunks, dropping blank ones.
func (builder *Builder) split(text string) ([]schema.Document, error) {
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(builder.config.ChunkSize),
		textsplitter.WithChunkOverlap(builder.config.ChunkOverlap),
	)

	documents, err := textsplitter.SplitDocuments(splitter, []schema.Document{{
		PageContent: text,
		Metadata:    map[string]any{MetadataSource: builder.config.PDFPath},
	}})
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}

	chunks := documents[:0]
	for _, document := range documents {
		if strings.TrimSpace(document.PageContent) != "" {
			chunks = append(chunks, document)
		}
	}
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	return chunks, nil
}

// persist embeds the chunks and writes the store into a temporary sibling
// directory, renamed into place once complete.
func (builder *Builder) persist(ctx context.Context, chunks []schema.Document) error {
	embedder, err := builder.newEmbedder()
	if err != nil {
		return fmt.Errorf("create embedder: %w", err)
	}
	if closer, ok := embedder.(io.Closer); ok {
		defer closer.Close()
	}

	texts := make([]string, len(chunks))
	for index, chunk := range chunks {
		texts[index] = chunk.PageContent
	}
	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	storePath := filepath.Clean(builder.config.StorePath)
	if err := os.MkdirAll(filepath.Dir(storePath), 0o755); err != nil {
		return fmt.Errorf("create store parent: %w", err)
	}
	stagingDir, err := os.MkdirTemp(filepath.Dir(storePath), "."+filepath.Base(storePath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}

	if err := writeStore(ctx, stagingDir, builder.config.Collection, chunks, vectors, embedder); err != nil {
		_ = os.RemoveAll(stagingDir)
		return err
	}
	if err := os.Chmod(stagingDir, 0o755); err != nil {
		_ = os.RemoveAll(stagingDir)
		return fmt.Errorf("chmod staging directory: %w", err)
	}
	if err := os.Rename(stagingDir, storePath); err != nil {
		_ = os.RemoveAll(stagingDir)
		return fmt.Errorf("move store into place: %w", err)
	}
	return nil
}

func (builder *Builder) info(ctx context.Context, msg string, attrs ...observability.Attribute) {
	if builder.observer != nil {
		builder.observer.Info(ctx, msg, attrs...)
	}
}

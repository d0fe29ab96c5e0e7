// Command build-knowledge-base turns the scanned textbook PDF into the
// vector store searched by planner search.
//
// It needs pdftoppm (poppler-utils) and tesseract with the Vietnamese
// language data installed. When the store directory already exists the
// command does nothing.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/leofalp/planner/internal/config"
	"github.com/leofalp/planner/internal/knowledge"
	"github.com/leofalp/planner/providers/observability"
	"github.com/leofalp/planner/providers/observability/slogobs"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// overrides holds the flag values that replace configured settings.
type overrides struct {
	configPath string
	pdfPath    string
	storePath  string
	tesseract  string
	pdftoppm   string
	language   string
	dpi        int
}

func newCommand() *cobra.Command {
	var flags overrides

	cmd := &cobra.Command{
		Use:   "build-knowledge-base",
		Short: "Build the textbook knowledge base",
		Long: `Renders every page of the textbook PDF, recognizes it with tesseract, splits the
text into overlapping chunks, embeds them and saves the vector store.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			flags.apply(&cfg.Knowledge)

			observer, err := newObserver(cfg.Log, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			builder := knowledge.NewBuilder(
				knowledge.Config{
					PDFPath:      cfg.Knowledge.PDFPath,
					StorePath:    cfg.Knowledge.StorePath,
					Collection:   cfg.Knowledge.Collection,
					Language:     cfg.Knowledge.Language,
					DPI:          cfg.Knowledge.DPI,
					ChunkSize:    cfg.Knowledge.ChunkSize,
					ChunkOverlap: cfg.Knowledge.ChunkOverlap,
				},
				knowledge.NewPdftoppm(cfg.Knowledge.PdftoppmPath),
				knowledge.NewTesseract(cfg.Knowledge.TesseractPath),
				func() (knowledge.Embedder, error) {
					return knowledge.NewFastEmbed(cfg.Knowledge.EmbeddingModel, cfg.Knowledge.CacheDir)
				},
				knowledge.WithObserver(observer),
			)

			return run(cmd.Context(), builder, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "path to a YAML configuration file")
	cmd.Flags().StringVar(&flags.pdfPath, "pdf", "", "source PDF, overrides knowledge.pdf_path")
	cmd.Flags().StringVar(&flags.storePath, "store", "", "output directory, overrides knowledge.store_path")
	cmd.Flags().StringVar(&flags.tesseract, "tesseract", "", "tesseract binary, overrides knowledge.tesseract_path")
	cmd.Flags().StringVar(&flags.pdftoppm, "pdftoppm", "", "pdftoppm binary, overrides knowledge.pdftoppm_path")
	cmd.Flags().StringVar(&flags.language, "lang", "", "OCR language, overrides knowledge.language")
	cmd.Flags().IntVar(&flags.dpi, "dpi", 0, "render resolution, overrides knowledge.dpi")
	return cmd
}

func (flags overrides) apply(cfg *config.KnowledgeConfig) {
	if flags.pdfPath != "" {
		cfg.PDFPath = flags.pdfPath
	}
	if flags.storePath != "" {
		cfg.StorePath = flags.storePath
	}
	if flags.tesseract != "" {
		cfg.TesseractPath = flags.tesseract
	}
	if flags.pdftoppm != "" {
		cfg.PdftoppmPath = flags.pdftoppm
	}
	if flags.language != "" {
		cfg.Language = flags.language
	}
	if flags.dpi > 0 {
		cfg.DPI = flags.dpi
	}
}

func newObserver(cfg config.LogConfig, output io.Writer) (observability.Provider, error) {
	level, err := slogobs.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	return slogobs.New(
		slogobs.WithFormat(slogobs.ParseFormat(cfg.Format)),
		slogobs.WithLevel(level),
		slogobs.WithOutput(output),
	), nil
}

// knowledgeBuilder is the part of *knowledge.Builder run needs.
type knowledgeBuilder interface {
	Build(ctx context.Context) (knowledge.Report, error)
}

func run(ctx context.Context, builder knowledgeBuilder, out io.Writer) error {
	report, err := builder.Build(ctx)
	if err != nil {
		return err
	}

	if report.Skipped {
		_, err = fmt.Fprintf(out, "Knowledge base already exists at %s, nothing to do.\n", report.StorePath)
		return err
	}

	_, err = fmt.Fprintf(out, "Knowledge base saved to %s: %d pages, %d chunks in %s.\n",
		report.StorePath, report.Pages, report.Chunks, report.Duration.Round(time.Millisecond))
	if err == nil && len(report.FailedPages) > 0 {
		_, err = fmt.Fprintf(out, "Pages that could not be recognized: %v\n", report.FailedPages)
	}
	return err
}

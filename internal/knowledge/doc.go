// Package knowledge builds and queries the textbook knowledge base.
//
// Build is an offline batch job: every page of a scanned PDF is rendered to
// an image, recognized with OCR, the recognized text is split into
// overlapping chunks, each chunk is embedded and the result is persisted as
// a chromem-go database directory. The job is idempotent: when the store
// directory already exists nothing is done.
//
// The external tools sit behind small interfaces (PageRenderer, Recognizer,
// Embedder) so the pipeline can be tested without poppler, tesseract or an
// ONNX runtime installed.
//
//	builder := knowledge.NewBuilder(cfg,
//	    knowledge.NewPdftoppm("pdftoppm"),
//	    knowledge.NewTesseract("tesseract"),
//	    func() (knowledge.Embedder, error) {
//	        return knowledge.NewFastEmbed(model, cacheDir)
//	    },
//	)
//	report, err := builder.Build(ctx)
package knowledge

package knowledge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// PageRenderer turns every page of a PDF into an image file.
type PageRenderer interface {
	// RenderPages writes one image per page into outputDir and returns their
	// paths in page order.
	RenderPages(ctx context.Context, pdfPath, outputDir string, dpi int) ([]string, error)
}

// Recognizer extracts text from a page image.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath, language string) (string, error)
}

// Locator is implemented by tools backed by an external binary. Locate
// fails with ErrMissingBinary when the binary cannot be found.
type Locator interface {
	Locate() error
}

const pagePrefix = "page"

// Pdftoppm renders pages with poppler's pdftoppm.
type Pdftoppm struct {
	Path string
}

// NewPdftoppm creates a renderer running the binary at path, or the one
// named pdftoppm on PATH when path is empty.
func NewPdftoppm(path string) *Pdftoppm {
	if path == "" {
		path = "pdftoppm"
	}
	return &Pdftoppm{Path: path}
}

// Locate implements Locator.
func (renderer *Pdftoppm) Locate() error {
	return locate(renderer.Path)
}

// RenderPages implements PageRenderer.
func (renderer *Pdftoppm) RenderPages(ctx context.Context, pdfPath, outputDir string, dpi int) ([]string, error) {
	// #nosec G204 -- binary path comes from configuration
	cmd := exec.CommandContext(ctx, renderer.Path,
		"-r", strconv.Itoa(dpi),
		"-png",
		pdfPath,
		filepath.Join(outputDir, pagePrefix),
	)
	if err := run(cmd); err != nil {
		return nil, fmt.Errorf("render %s: %w", pdfPath, err)
	}

	return pageImages(outputDir)
}

// pageImages lists the images pdftoppm wrote, ordered by page number.
// pdftoppm pads the number to the width of the page count (page-07.png).
func pageImages(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pagePrefix+"-*.png"))
	if err != nil {
		return nil, err
	}

	numbers := make(map[string]int, len(matches))
	for _, match := range matches {
		name := strings.TrimSuffix(filepath.Base(match), ".png")
		number, err := strconv.Atoi(strings.TrimPrefix(name, pagePrefix+"-"))
		if err != nil {
			return nil, fmt.Errorf("unexpected page image %s", match)
		}
		numbers[match] = number
	}

	sort.Slice(matches, func(i, j int) bool {
		return numbers[matches[i]] < numbers[matches[j]]
	})
	return matches, nil
}

// Tesseract recognizes text with the tesseract CLI.
type Tesseract struct {
	Path string
}

// NewTesseract creates a recognizer running the binary at path, or the one
// named tesseract on PATH when path is empty.
func NewTesseract(path string) *Tesseract {
	if path == "" {
		path = "tesseract"
	}
	return &Tesseract{Path: path}
}

// Locate implements Locator.
func (recognizer *Tesseract) Locate() error {
	return locate(recognizer.Path)
}

// Recognize implements Recognizer. The text is read from stdout.
func (recognizer *Tesseract) Recognize(ctx context.Context, imagePath, language string) (string, error) {
	// #nosec G204 -- binary path comes from configuration
	cmd := exec.CommandContext(ctx, recognizer.Path, imagePath, "stdout", "-l", language)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := run(cmd); err != nil {
		return "", fmt.Errorf("recognize %s: %w", filepath.Base(imagePath), err)
	}
	return stdout.String(), nil
}

func locate(path string) error {
	if _, err := exec.LookPath(path); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingBinary, path)
		}
		return fmt.Errorf("%w: %s: %v", ErrMissingBinary, path, err)
	}
	return nil
}

// run executes cmd and folds its stderr into the error.
func run(cmd *exec.Cmd) error {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if message := strings.TrimSpace(stderr.String()); message != "" {
			return fmt.Errorf("%w: %s", err, message)
		}
		return err
	}
	return nil
}

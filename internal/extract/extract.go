// Package extract reads the plain-text content of uploaded documents.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/core"
	"github.com/book-expert/podcast-service/internal/text"
	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
)

// Document kinds keyed by lower-case extension.
const (
	extPDF      = ".pdf"
	extHTML     = ".html"
	extHTM      = ".htm"
	extText     = ".txt"
	extMarkdown = ".md"
)

// Log messages.
const (
	logExtracting = "Extracting text from %s"
	logExtracted  = "Extracted %d characters from %s"
	logFallback   = "Readability found no article in %s, using full page text"
)

// Error formats.
const (
	errFmtOpen        = "%w: failed to open %s: %w"
	errFmtRead        = "%w: failed to read text from %s: %w"
	errFmtPanic       = "%w: malformed document %s: %v"
	errFmtUnsupported = "%w: %q"
)

// Extractor implements core.TextExtractor for PDF, HTML and plain text files.
type Extractor struct {
	normalizer *text.Normalizer
	log        *logger.Logger
}

// New returns an extractor that cleans text with the given normalizer.
func New(normalizer *text.Normalizer, log *logger.Logger) *Extractor {
	return &Extractor{normalizer: normalizer, log: log}
}

// Supported reports whether documents with the extension can be extracted.
func Supported(extension string) bool {
	switch strings.ToLower(extension) {
	case extPDF, extHTML, extHTM, extText, extMarkdown:
		return true
	default:
		return false
	}
}

// Extract returns the cleaned text content of the document at path.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	err := ctx.Err()
	if err != nil {
		return "", fmt.Errorf(errFmtRead, core.ErrExtraction, path, err)
	}

	e.log.Info(logExtracting, filepath.Base(path))

	var raw string

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case extPDF:
		raw, err = pdfText(path)
	case extHTML, extHTM:
		raw, err = e.htmlText(path)
	case extText, extMarkdown:
		raw, err = plainText(path)
	default:
		return "", fmt.Errorf(errFmtUnsupported, core.ErrUnsupportedDocument, ext)
	}

	if err != nil {
		return "", err
	}

	cleaned := e.normalizer.CleanDocument(raw)
	e.log.Info(logExtracted, len([]rune(cleaned)), filepath.Base(path))

	return cleaned, nil
}

func pdfText(path string) (content string, err error) {
	// The pdf package panics on some malformed cross-reference tables.
	defer func() {
		if recovered := recover(); recovered != nil {
			content = ""
			err = fmt.Errorf(errFmtPanic, core.ErrExtraction, path, recovered)
		}
	}()

	file, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf(errFmtOpen, core.ErrExtraction, path, err)
	}
	defer file.Close()

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf(errFmtRead, core.ErrExtraction, path, err)
	}

	var buf bytes.Buffer

	_, err = io.Copy(&buf, textReader)
	if err != nil {
		return "", fmt.Errorf(errFmtRead, core.ErrExtraction, path, err)
	}

	return buf.String(), nil
}

func (e *Extractor) htmlText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf(errFmtOpen, core.ErrExtraction, path, err)
	}

	article, err := readability.FromReader(bytes.NewReader(data), nil)
	if err == nil && strings.TrimSpace(article.TextContent) != "" {
		return article.TextContent, nil
	}

	e.log.Warn(logFallback, filepath.Base(path))

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf(errFmtRead, core.ErrExtraction, path, err)
	}

	doc.Find("script, style, noscript, nav, header, footer").Remove()

	return doc.Find("body").Text(), nil
}

func plainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf(errFmtOpen, core.ErrExtraction, path, err)
	}

	return string(data), nil
}

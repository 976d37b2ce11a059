// Package podcast wires extraction, script generation and audio assembly
// into the request-level operations exposed over HTTP, NATS and the CLI.
package podcast

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/assemble"
	"github.com/book-expert/podcast-service/internal/audio"
	"github.com/book-expert/podcast-service/internal/config"
	"github.com/book-expert/podcast-service/internal/core"
	"github.com/book-expert/podcast-service/internal/storage"
)

// DefaultSourceName names the output when a request omits the source file.
const DefaultSourceName = "podcast"

const (
	uploadFileMode = 0o600
	previewSuffix  = "..."
)

// Log messages.
const (
	logSavedUpload     = "Saved upload %s (%s)"
	logExtracted       = "Extracted %d characters from %s"
	logScriptReady     = "Script %q for %s has %d turns"
	logPodcastReady    = "Podcast %s ready: %s, %d of %d turns"
	logRemoveFailed    = "Failed to remove partial upload %s: %v"
	logPipelineStarted = "Running pipeline for %s in %s"
)

// Error formats.
const (
	errFmtEmptyName     = "%w: file name is empty"
	errFmtDisallowed    = "%w: %s (allowed: %s)"
	errFmtSaveUpload    = "failed to save upload %s: %w"
	errFmtNotFound      = "%w: %s"
	errFmtInsufficient  = "%w: %d characters, need at least %d"
	errFmtNoScript      = "%w: script is empty"
	errFmtPrepareOutput = "failed to prepare output directory: %w"
)

// ErrInvalidRequest indicates a request is missing a required value.
var ErrInvalidRequest = errors.New("invalid request")

// Assembler renders a script to an audio file.
type Assembler interface {
	Assemble(ctx context.Context, script *core.Script, language, outputPath string) (*assemble.Result, error)
	Format() audio.Format
}

// Options configures the Service directories and upload rules.
type Options struct {
	UploadDir         string
	OutputDir         string
	AllowedExtensions []string
	MinTextLength     int
	PreviewChars      int
}

// OptionsFromConfig builds Options from the paths and upload sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		UploadDir:         cfg.Paths.UploadDir,
		OutputDir:         cfg.Paths.OutputDir,
		AllowedExtensions: cfg.Upload.AllowedExtensions,
		MinTextLength:     cfg.Upload.MinTextLength,
		PreviewChars:      cfg.Upload.PreviewChars,
	}
}

// Upload describes a stored document and its extracted text.
type Upload struct {
	Filename   string
	TextLength int
	Preview    string
}

// Outcome is the result of the full pipeline on one document.
type Outcome struct {
	Script *core.Script
	Audio  *assemble.Result
}

// Service owns the uploads and outputs directories.
type Service struct {
	extractor core.TextExtractor
	generator core.ScriptGenerator
	assembler Assembler
	opts      Options
	log       *logger.Logger
}

// New returns a Service after creating its directories.
func New(
	extractor core.TextExtractor,
	generator core.ScriptGenerator,
	assembler Assembler,
	opts Options,
	log *logger.Logger,
) (*Service, error) {
	for _, dir := range []string{opts.UploadDir, opts.OutputDir} {
		err := storage.EnsureDir(dir)
		if err != nil {
			return nil, err
		}
	}

	return &Service{
		extractor: extractor,
		generator: generator,
		assembler: assembler,
		opts:      opts,
		log:       log,
	}, nil
}

// OutputFormat returns the container of produced podcasts.
func (s *Service) OutputFormat() audio.Format {
	return s.assembler.Format()
}

// SaveUpload stores a document under its sanitized name and returns that name.
func (s *Service) SaveUpload(name string, content io.Reader) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf(errFmtEmptyName, ErrInvalidRequest)
	}

	if !storage.HasExtension(name, s.opts.AllowedExtensions) {
		return "", fmt.Errorf(errFmtDisallowed, core.ErrUnsupportedDocument, name,
			strings.Join(s.opts.AllowedExtensions, ", "))
	}

	filename := storage.SanitizeFilename(name)
	if storage.Stem(filename) == "" || !storage.HasExtension(filename, s.opts.AllowedExtensions) {
		return "", fmt.Errorf(errFmtEmptyName, ErrInvalidRequest)
	}

	path := filepath.Join(s.opts.UploadDir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, uploadFileMode)
	if err != nil {
		return "", fmt.Errorf(errFmtSaveUpload, filename, err)
	}

	size, copyErr := io.Copy(file, content)
	closeErr := file.Close()

	if copyErr != nil || closeErr != nil {
		removeErr := os.Remove(path)
		if removeErr != nil {
			s.log.Warn(logRemoveFailed, path, removeErr)
		}

		return "", fmt.Errorf(errFmtSaveUpload, filename, errors.Join(copyErr, closeErr))
	}

	s.log.Info(logSavedUpload, filename, storage.FormatFileSize(size))

	return filename, nil
}

// Upload saves the document and extracts it, so a document with too little
// text is rejected at the boundary.
func (s *Service) Upload(ctx context.Context, name string, content io.Reader) (*Upload, error) {
	filename, err := s.SaveUpload(name, content)
	if err != nil {
		return nil, err
	}

	text, err := s.Extract(ctx, filename)
	if err != nil {
		return nil, err
	}

	return &Upload{
		Filename:   filename,
		TextLength: utf8.RuneCountInString(text),
		Preview:    Preview(text, s.opts.PreviewChars),
	}, nil
}

// Extract returns the normalized text of a stored upload.
func (s *Service) Extract(ctx context.Context, name string) (string, error) {
	path, err := s.resolve(s.opts.UploadDir, name)
	if err != nil {
		return "", err
	}

	return s.extractPath(ctx, path)
}

// GenerateScript extracts a stored upload and writes a dialogue for it.
func (s *Service) GenerateScript(ctx context.Context, name, language string) (*core.Script, error) {
	text, err := s.Extract(ctx, name)
	if err != nil {
		return nil, err
	}

	return s.generate(ctx, name, text, language)
}

// GenerateAudio renders script to "<stem>_podcast.<ext>" in the outputs directory.
func (s *Service) GenerateAudio(ctx context.Context, script *core.Script, name, language string) (*assemble.Result, error) {
	return s.GenerateAudioTo(ctx, script, s.outputFile(s.opts.OutputDir, name), language)
}

// GenerateAudioTo renders script to outputPath.
func (s *Service) GenerateAudioTo(
	ctx context.Context,
	script *core.Script,
	outputPath, language string,
) (*assemble.Result, error) {
	if script == nil || len(script.Conversation) == 0 {
		return nil, fmt.Errorf(errFmtNoScript, ErrInvalidRequest)
	}

	err := storage.EnsureDir(filepath.Dir(outputPath))
	if err != nil {
		return nil, fmt.Errorf(errFmtPrepareOutput, err)
	}

	language = normalizeLanguage(language)

	result, err := s.assembler.Assemble(ctx, script, language, outputPath)
	if err != nil {
		return nil, err
	}

	s.log.Info(logPodcastReady, filepath.Base(result.Path), storage.FormatDuration(result.Duration.Seconds()),
		result.TurnsIncluded, result.TurnsTotal)

	return result, nil
}

// Run executes the whole pipeline on a local document, writing the podcast
// to the outputs directory.
func (s *Service) Run(ctx context.Context, path, language string) (*Outcome, error) {
	return s.RunTo(ctx, path, s.opts.OutputDir, language)
}

// RunTo executes the whole pipeline on a local document and writes
// "<stem>_podcast.<ext>" to outputDir. Callers that pass their own
// directory never touch files served from the outputs directory.
func (s *Service) RunTo(ctx context.Context, path, outputDir, language string) (*Outcome, error) {
	language = normalizeLanguage(language)
	s.log.Info(logPipelineStarted, path, language)

	script, err := s.ScriptFromFile(ctx, path, language)
	if err != nil {
		return nil, err
	}

	result, err := s.GenerateAudioTo(ctx, script, s.outputFile(outputDir, filepath.Base(path)), language)
	if err != nil {
		return nil, err
	}

	return &Outcome{Script: script, Audio: result}, nil
}

// ScriptFromFile extracts a local document and writes a dialogue for it.
func (s *Service) ScriptFromFile(ctx context.Context, path, language string) (*core.Script, error) {
	text, err := s.extractPath(ctx, path)
	if err != nil {
		return nil, err
	}

	return s.generate(ctx, path, text, language)
}

// OutputPath resolves a produced file for download.
func (s *Service) OutputPath(name string) (string, error) {
	return s.resolve(s.opts.OutputDir, name)
}

// Preview returns the first limit characters of text followed by "..." when
// text is longer.
func Preview(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}

	return string([]rune(text)[:limit]) + previewSuffix
}

func (s *Service) outputFile(dir, name string) string {
	if strings.TrimSpace(name) == "" {
		name = DefaultSourceName
	}

	return filepath.Join(dir, storage.PodcastName(name, s.assembler.Format().Extension()))
}

func (s *Service) extractPath(ctx context.Context, path string) (string, error) {
	text, err := s.extractor.Extract(ctx, path)
	if err != nil {
		return "", err
	}

	length := utf8.RuneCountInString(strings.TrimSpace(text))
	if length < s.opts.MinTextLength {
		return "", fmt.Errorf(errFmtInsufficient, core.ErrInsufficientText, length, s.opts.MinTextLength)
	}

	s.log.Info(logExtracted, length, filepath.Base(path))

	return text, nil
}

func (s *Service) generate(ctx context.Context, source, text, language string) (*core.Script, error) {
	script, err := s.generator.Generate(ctx, text, normalizeLanguage(language))
	if err != nil {
		return nil, err
	}

	s.log.Info(logScriptReady, script.Title, filepath.Base(source), len(script.Conversation))

	return script, nil
}

func (s *Service) resolve(dir, name string) (string, error) {
	path, err := storage.ResolveWithin(dir, name)
	if err != nil {
		return "", fmt.Errorf(errFmtNotFound, core.ErrNotFound, name)
	}

	found, err := storage.Exists(path)
	if err != nil {
		return "", err
	}

	if !found {
		return "", fmt.Errorf(errFmtNotFound, core.ErrNotFound, name)
	}

	return path, nil
}

func normalizeLanguage(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return core.DefaultLanguage
	}

	return language
}

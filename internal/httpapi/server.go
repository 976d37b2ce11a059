// Package httpapi exposes the podcast pipeline over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/audio"
	"github.com/book-expert/podcast-service/internal/core"
	"github.com/book-expert/podcast-service/internal/podcast"
	"github.com/gofiber/fiber/v2"
)

// Error kinds reported in the JSON error body.
const (
	KindBadRequest       = "bad_request"
	KindInsufficientText = "insufficient_text"
	KindNotFound         = "not_found"
	KindExtraction       = "extraction"
	KindScriptGeneration = "script_generation"
	KindAssembly         = "assembly"
	KindInternal         = "internal"
)

const (
	uploadField       = "pdf"
	uploadMessage     = "Document uploaded successfully"
	statusOK          = "ok"
	statusDegraded    = "degraded"
	healthTimeout     = 5 * time.Second
	msgNoFile         = "No PDF file provided"
	msgNoSelection    = "No file selected"
	msgNoFilename     = "No filename provided"
	msgNoScript       = "No script provided"
	msgInvalidJSON    = "invalid JSON body"
	msgUnreadableFile = "failed to read uploaded file"
)

// Log messages.
const (
	logRequestFailed = "%s %s failed (%d %s): %v"
	logHealthFailed  = "Health check failed: %v"
)

// HealthFunc reports whether a dependency is usable.
type HealthFunc func(ctx context.Context) error

// Options configures the HTTP server.
type Options struct {
	BodyLimit int
	StaticDir string
	Health    HealthFunc
}

// Server serves the upload, script, audio and download endpoints.
type Server struct {
	app     *fiber.App
	service *podcast.Service
	health  HealthFunc
	log     *logger.Logger
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// UploadResponse is returned by POST /api/upload.
type UploadResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Filename   string `json:"filename"`
	TextLength int    `json:"text_length"`
	Preview    string `json:"preview"`
}

// ScriptRequest is the body of POST /api/generate-script.
type ScriptRequest struct {
	Filename string `json:"filename"`
	Language string `json:"language"`
}

// ScriptResponse is returned by POST /api/generate-script.
type ScriptResponse struct {
	Success bool         `json:"success"`
	Script  *core.Script `json:"script"`
}

// AudioRequest is the body of POST /api/generate-audio.
type AudioRequest struct {
	Script   *core.Script `json:"script"`
	Filename string       `json:"filename"`
	Language string       `json:"language"`
}

// AudioResponse is returned by POST /api/generate-audio.
type AudioResponse struct {
	Success         bool    `json:"success"`
	AudioFile       string  `json:"audio_file"`
	DurationSeconds float64 `json:"duration_seconds"`
	TurnsTotal      int     `json:"turns_total"`
	TurnsDropped    int     `json:"turns_dropped"`
}

// New builds the fiber application and registers every route.
func New(service *podcast.Service, opts Options, log *logger.Logger) *Server {
	server := &Server{service: service, health: opts.Health, log: log}

	server.app = fiber.New(fiber.Config{
		BodyLimit:             opts.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          server.handleError,
	})

	server.app.Get("/health", server.healthHandler)

	api := server.app.Group("/api")
	api.Post("/upload", server.uploadHandler)
	api.Post("/generate-script", server.scriptHandler)
	api.Post("/generate-audio", server.audioHandler)
	api.Get("/download/:filename", server.downloadHandler)
	api.Get("/stream/:filename", server.streamHandler)

	if opts.StaticDir != "" {
		server.app.Static("/", opts.StaticDir)
	}

	return server
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	err := s.app.Listen(addr)
	if err != nil {
		return fmt.Errorf("http server on %s: %w", addr, err)
	}

	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) healthHandler(c *fiber.Ctx) error {
	if s.health == nil {
		return c.JSON(fiber.Map{"status": statusOK})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	err := s.health(ctx)
	if err != nil {
		s.log.Warn(logHealthFailed, err)

		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": statusDegraded, "error": err.Error()})
	}

	return c.JSON(fiber.Map{"status": statusOK})
}

func (s *Server) uploadHandler(c *fiber.Ctx) error {
	header, err := c.FormFile(uploadField)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, msgNoFile)
	}

	if header.Filename == "" {
		return fiber.NewError(fiber.StatusBadRequest, msgNoSelection)
	}

	file, err := header.Open()
	if err != nil {
		return fmt.Errorf("%s: %w", msgUnreadableFile, err)
	}
	defer file.Close()

	upload, err := s.service.Upload(c.UserContext(), header.Filename, file)
	if err != nil {
		return err
	}

	return c.JSON(UploadResponse{
		Success:    true,
		Message:    uploadMessage,
		Filename:   upload.Filename,
		TextLength: upload.TextLength,
		Preview:    upload.Preview,
	})
}

func (s *Server) scriptHandler(c *fiber.Ctx) error {
	var request ScriptRequest

	err := c.BodyParser(&request)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, msgInvalidJSON)
	}

	if request.Filename == "" {
		return fiber.NewError(fiber.StatusBadRequest, msgNoFilename)
	}

	script, err := s.service.GenerateScript(c.UserContext(), request.Filename, request.Language)
	if err != nil {
		return err
	}

	return c.JSON(ScriptResponse{Success: true, Script: script})
}

func (s *Server) audioHandler(c *fiber.Ctx) error {
	var request AudioRequest

	err := c.BodyParser(&request)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, msgInvalidJSON)
	}

	if request.Script == nil || len(request.Script.Conversation) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, msgNoScript)
	}

	result, err := s.service.GenerateAudio(c.UserContext(), request.Script, request.Filename, request.Language)
	if err != nil {
		return err
	}

	return c.JSON(AudioResponse{
		Success:         true,
		AudioFile:       filepath.Base(result.Path),
		DurationSeconds: result.Duration.Seconds(),
		TurnsTotal:      result.TurnsTotal,
		TurnsDropped:    len(result.Dropped),
	})
}

func (s *Server) downloadHandler(c *fiber.Ctx) error {
	path, err := s.service.OutputPath(c.Params("filename"))
	if err != nil {
		return err
	}

	err = c.Download(path, filepath.Base(path))
	if err != nil {
		return err
	}

	setAudioType(c, path)

	return nil
}

func (s *Server) streamHandler(c *fiber.Ctx) error {
	path, err := s.service.OutputPath(c.Params("filename"))
	if err != nil {
		return err
	}

	err = c.SendFile(path)
	if err != nil {
		return err
	}

	setAudioType(c, path)

	return nil
}

func setAudioType(c *fiber.Ctx, path string) {
	format, err := audio.ParseFormat(filepath.Ext(path))
	if err == nil {
		c.Set(fiber.HeaderContentType, format.MIMEType())
	}
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status, kind := Classify(err)

	s.log.Error(logRequestFailed, c.Method(), c.Path(), status, kind, err)

	return c.Status(status).JSON(ErrorResponse{Error: err.Error(), Kind: kind})
}

// Classify maps an error to its HTTP status and error kind.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, podcast.ErrInvalidRequest), errors.Is(err, core.ErrUnsupportedDocument):
		return fiber.StatusBadRequest, KindBadRequest
	case errors.Is(err, core.ErrInsufficientText):
		return fiber.StatusBadRequest, KindInsufficientText
	case errors.Is(err, core.ErrNotFound):
		return fiber.StatusNotFound, KindNotFound
	case errors.Is(err, core.ErrExtraction):
		return fiber.StatusUnprocessableEntity, KindExtraction
	case errors.Is(err, core.ErrScriptGeneration):
		return fiber.StatusBadGateway, KindScriptGeneration
	case errors.Is(err, core.ErrAssembly):
		return fiber.StatusInternalServerError, KindAssembly
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		switch {
		case fiberErr.Code == fiber.StatusNotFound:
			return fiberErr.Code, KindNotFound
		case fiberErr.Code >= fiber.StatusBadRequest && fiberErr.Code < fiber.StatusInternalServerError:
			return fiberErr.Code, KindBadRequest
		default:
			return fiberErr.Code, KindInternal
		}
	}

	return fiber.StatusInternalServerError, KindInternal
}

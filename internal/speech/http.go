// Package speech provides the synthesizers that voice one dialogue turn.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/book-expert/podcast-service/internal/core"
)

// API endpoints and paths.
const (
	apiGenerateSpeech = "/v1/generate/speech"
	apiHealth         = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeWAV    = "audio/wav"
	contentTypeMPEG   = "audio/mpeg"
)

// Default values.
const (
	defaultTemperature = 0.75
	defaultLanguage    = "en"
	formatWAV          = "wav"
	formatMP3          = "mp3"
)

// Error messages.
const (
	errTextCannotBeEmpty       = "text cannot be empty"
	errUnexpectedContentType   = "unexpected content type: expected audio/wav, got %s"
	errReceivedEmptyAudio      = "received empty audio data"
	errFmtServiceErrorWithCode = "TTS service error (%s): %s (code: %s)"
	errFmtServiceNonOKStatus   = "TTS service returned non-OK status: %s, body: %s"
)

var (
	// ErrEmptyText is returned when a synthesizer is called with blank text.
	ErrEmptyText = errors.New(errTextCannotBeEmpty)
	// ErrEmptyAudio is returned when a provider answers with no audio bytes.
	ErrEmptyAudio = errors.New(errReceivedEmptyAudio)
)

// HTTPSynthesizer talks to the standalone TTS HTTP service.
type HTTPSynthesizer struct {
	httpClient  *http.Client
	baseURL     string
	temperature float64
	timeout     time.Duration
}

// Request defines the JSON payload of a generation request.
type Request struct {
	Text           string  `json:"text"`
	Voice          string  `json:"voice,omitempty"`
	SpeakerRefPath string  `json:"speaker_ref_path,omitempty"`
	Language       string  `json:"language"`
	Temperature    float64 `json:"temperature"`
}

// ErrorResponse is the structured error body returned by the service.
type ErrorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewHTTPSynthesizer creates a client for the service at baseURL, e.g.
// "http://localhost:8000". The timeout bounds every request.
func NewHTTPSynthesizer(baseURL string, timeout time.Duration, temperature float64) *HTTPSynthesizer {
	if temperature == 0 {
		temperature = defaultTemperature
	}

	return &HTTPSynthesizer{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		temperature: temperature,
		timeout:     timeout,
	}
}

// Synthesize voices text with the named voice and returns a WAV clip.
func (c *HTTPSynthesizer) Synthesize(ctx context.Context, text, voice string) (*core.AudioClip, error) {
	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	data, err := c.GenerateSpeech(ctx, Request{
		Text:        text,
		Voice:       voice,
		Language:    languageFromVoice(voice),
		Temperature: c.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSynthesis, err)
	}

	return &core.AudioClip{Data: data, Format: formatWAV}, nil
}

// GenerateSpeech sends one generation request and returns the raw WAV bytes.
func (c *HTTPSynthesizer) GenerateSpeech(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	if req.Temperature == 0 {
		req.Temperature = c.temperature
	}

	if req.Language == "" {
		req.Language = defaultLanguage
	}

	requestBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+apiGenerateSpeech, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeWAV)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to TTS service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(resp)
	}

	if !isWAV(resp.Header.Get(headerContentType)) {
		return nil, fmt.Errorf(errUnexpectedContentType, resp.Header.Get(headerContentType))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}

	return audioData, nil
}

// HealthCheck verifies that the TTS service is running.
func (c *HTTPSynthesizer) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed with status: %s", resp.Status)
	}

	return nil
}

// parseErrorResponse decodes a structured error, falling back to the raw body.
func parseErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var errorResp ErrorResponse

	err := json.Unmarshal(body, &errorResp)
	if err == nil && errorResp.Detail != "" {
		return fmt.Errorf(errFmtServiceErrorWithCode, resp.Status, errorResp.Detail, errorResp.ErrorCode)
	}

	return fmt.Errorf(errFmtServiceNonOKStatus, resp.Status, string(body))
}

func isWAV(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	switch mediaType {
	case contentTypeWAV, "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return true
	default:
		return false
	}
}

// languageFromVoice reads the language prefix of ids such as "en-US-GuyNeural".
func languageFromVoice(voice string) string {
	prefix, _, found := strings.Cut(voice, "-")
	if !found || len(prefix) < 2 || len(prefix) > 3 {
		return defaultLanguage
	}

	return strings.ToLower(prefix)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}

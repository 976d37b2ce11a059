package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/assemble"
	"github.com/book-expert/podcast-service/internal/audio"
	"github.com/book-expert/podcast-service/internal/core"
	"github.com/book-expert/podcast-service/internal/extract"
	"github.com/book-expert/podcast-service/internal/httpapi"
	"github.com/book-expert/podcast-service/internal/podcast"
	"github.com/book-expert/podcast-service/internal/speech"
	"github.com/book-expert/podcast-service/internal/text"
	"github.com/book-expert/podcast-service/internal/voice"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errMockHealth = errors.New("speech service unreachable")
	sampleText    = strings.Repeat("Tides rise and fall because the moon pulls on the oceans. ", 3)
)

type fakeGenerator struct {
	err error
}

func (f *fakeGenerator) Generate(context.Context, string, string) (*core.Script, error) {
	if f.err != nil {
		return nil, f.err
	}

	return &core.Script{
		Title:        "Tides",
		Conversation: []core.DialogueTurn{{Speaker: core.SpeakerTeacher, Text: "The moon pulls."}},
	}, nil
}

type fixture struct {
	app       *fiber.App
	generator *fakeGenerator
	uploads   string
	outputs   string
}

func newFixture(t *testing.T, opts httpapi.Options) *fixture {
	t.Helper()

	log, err := logger.New(t.TempDir(), "httpapi-test.log")
	require.NoError(t, err)

	spec := audio.Spec{SampleRate: 24000, Channels: 1}
	assembler := assemble.New(
		speech.NewStubSynthesizer(spec, log),
		voice.NewResolver(nil),
		audio.WAVCodec{},
		assemble.Options{
			Spec:            spec,
			Export:          audio.ExportOptions{Format: audio.FormatWAV},
			LeadingSilence:  500 * time.Millisecond,
			Pause:           400 * time.Millisecond,
			TrailingSilence: time.Second,
		},
		log,
	)

	root := t.TempDir()
	fx := &fixture{
		generator: &fakeGenerator{},
		uploads:   filepath.Join(root, "uploads"),
		outputs:   filepath.Join(root, "outputs"),
	}

	service, err := podcast.New(
		extract.New(text.NewNormalizer(), log),
		fx.generator,
		assembler,
		podcast.Options{
			UploadDir:         fx.uploads,
			OutputDir:         fx.outputs,
			AllowedExtensions: []string{".pdf", ".txt"},
			MinTextLength:     100,
			PreviewChars:      500,
		},
		log,
	)
	require.NoError(t, err)

	fx.app = httpapi.New(service, opts, log).App()

	return fx
}

func (fx *fixture) do(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()

	resp, err := fx.app.Test(req, -1)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	return resp, body
}

func (fx *fixture) postJSON(t *testing.T, path string, payload any) (*http.Response, []byte) {
	t.Helper()

	data, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	return fx.do(t, req)
}

func (fx *fixture) upload(t *testing.T, field, name, content string) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer

	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile(field, name)
	require.NoError(t, err)

	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set(fiber.HeaderContentType, writer.FormDataContentType())

	return fx.do(t, req)
}

func decodeError(t *testing.T, body []byte) httpapi.ErrorResponse {
	t.Helper()

	var response httpapi.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &response))

	return response
}

func TestHealth(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, httpapi.Options{})
	resp, body := fx.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	degraded := newFixture(t, httpapi.Options{Health: func(context.Context) error { return errMockHealth }})
	resp, body = degraded.do(t, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), "speech service unreachable")
}

func TestUpload(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, httpapi.Options{})

	resp, body := fx.upload(t, "pdf", "tides notes.txt", sampleText)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var response httpapi.UploadResponse
	require.NoError(t, json.Unmarshal(body, &response))
	assert.True(t, response.Success)
	assert.Equal(t, "tides_notes.txt", response.Filename)
	assert.Equal(t, len(strings.TrimSpace(sampleText)), response.TextLength)
	assert.Equal(t, strings.TrimSpace(sampleText), response.Preview)

	_, err := os.Stat(filepath.Join(fx.uploads, "tides_notes.txt"))
	require.NoError(t, err)
}

func TestUpload_Rejections(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, httpapi.Options{})

	tests := []struct {
		name     string
		field    string
		filename string
		content  string
		kind     string
	}{
		{name: "missing field", field: "document", filename: "a.txt", content: sampleText, kind: httpapi.KindBadRequest},
		{name: "disallowed type", field: "pdf", filename: "a.docx", content: sampleText, kind: httpapi.KindBadRequest},
		{name: "too little text", field: "pdf", filename: "a.txt", content: "short", kind: httpapi.KindInsufficientText},
		{
			name:     "one character below threshold",
			field:    "pdf",
			filename: "edge.txt",
			content:  strings.Repeat("abcdefghij", 10)[:99],
			kind:     httpapi.KindInsufficientText,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			resp, body := fx.upload(t, testCase.field, testCase.filename, testCase.content)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, testCase.kind, decodeError(t, body).Kind)
		})
	}
}

func TestUpload_AtThreshold(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, httpapi.Options{})

	resp, body := fx.upload(t, "pdf", "edge.txt", strings.Repeat("abcdefghij", 10))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var response httpapi.UploadResponse
	require.NoError(t, json.Unmarshal(body, &response))
	assert.Equal(t, 100, response.TextLength)
}

func TestUpload_NotMultipart(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, httpapi.Options{})

	resp, body := fx.do(t, httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("raw")))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No PDF file provided", decodeError(t, body).Error)
}

func TestGenerateScript(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, httpapi.Options{})
	require.NoError(t, os.WriteFile(filepath.Join(fx.uploads, "tides.txt"), []byte(sampleText), 0o600))

	resp, body := fx.postJSON(t, "/api/generate-script", httpapi.ScriptRequest{Filename: "tides.txt", Language: "es"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var response httpapi.ScriptResponse
	require.NoError(t, json.Unmarshal(body, &response))
	assert.True(t, response.Success)
	assert.Equal(t, "Tides", response.Script.Title)
	require.Len(t, response.Script.Conversation, 1)
}

func TestGenerateScript_Errors(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, httpapi.Options{})
	require.NoError(t, os.WriteFile(filepath.Join(fx.uploads, "broken.pdf"), []byte("%PDF-1.4 garbage"), 0o600))

	resp, body := fx.postJSON(t, "/api/generate-script", httpapi.ScriptRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No filename provided", decodeError(t, body).Error)

	resp, body = fx.postJSON(t, "/api/generate-script", httpapi.ScriptRequest{Filename: "absent.pdf"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, httpapi.KindNotFound, decodeError(t, body).Kind)

	resp, body = fx.postJSON(t, "/api/generate-script", httpapi.ScriptRequest{Filename: "broken.pdf"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, httpapi.KindExtraction, decodeError(t, body).Kind)

	req := httptest.NewRequest(http.MethodPost, "/api/generate-script", strings.NewReader("{not json"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, _ = fx.do(t, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGenerateScript_ModelFailure(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, httpapi.Options{})
	fx.generator.err = fmt.Errorf("%w: rate limited", core.ErrScriptGeneration)
	require.NoError(t, os.WriteFile(filepath.Join(fx.uploads, "tides.txt"), []byte(sampleText), 0o600))

	resp, body := fx.postJSON(t, "/api/generate-script", httpapi.ScriptRequest{Filename: "tides.txt"})
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, httpapi.KindScriptGeneration, decodeError(t, body).Kind)
}

func TestGenerateAudioAndDownload(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, httpapi.Options{})
	script := &core.Script{Conversation: []core.DialogueTurn{
		{Speaker: core.SpeakerTeacher, Text: "Hello"},
		{Speaker: core.SpeakerStudent, Text: ""},
	}}

	resp, body := fx.postJSON(t, "/api/generate-audio", httpapi.AudioRequest{Script: script, Filename: "tides.pdf"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var response httpapi.AudioResponse
	require.NoError(t, json.Unmarshal(body, &response))
	assert.True(t, response.Success)
	assert.Equal(t, "tides_podcast.wav", response.AudioFile)
	assert.InDelta(t, 1.95, response.DurationSeconds, 1e-9)
	assert.Equal(t, 2, response.TurnsTotal)
	assert.Zero(t, response.TurnsDropped)

	resp, body = fx.do(t, httptest.NewRequest(http.MethodGet, "/api/download/tides_podcast.wav", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "attachment")

	track, err := audio.DecodeWAV(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, 1950*time.Millisecond, track.Duration())

	resp, _ = fx.do(t, httptest.NewRequest(http.MethodGet, "/api/stream/tides_podcast.wav", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/wav", resp.Header.Get(fiber.HeaderContentType))
	assert.Empty(t, resp.Header.Get(fiber.HeaderContentDisposition))
}

func TestGenerateAudio_Errors(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, httpapi.Options{})

	resp, body := fx.postJSON(t, "/api/generate-audio", map[string]string{"filename": "x.pdf"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No script provided", decodeError(t, body).Error)

	silent := &core.Script{Conversation: []core.DialogueTurn{{Speaker: core.SpeakerTeacher, Text: "  "}}}
	resp, body = fx.postJSON(t, "/api/generate-audio", httpapi.AudioRequest{Script: silent})
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, httpapi.KindAssembly, decodeError(t, body).Kind)

	entries, err := os.ReadDir(fx.outputs)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownload_NotFound(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, httpapi.Options{})

	for _, path := range []string{"/api/download/missing.mp3", "/api/stream/missing.mp3", "/api/download/..%2Fsecret"} {
		resp, body := fx.do(t, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		assert.Equal(t, httpapi.KindNotFound, decodeError(t, body).Kind, path)
	}
}

func TestStaticFrontend(t *testing.T) {
	t.Parallel()

	static := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(static, "index.html"), []byte("<h1>Podcast</h1>"), 0o600))

	fx := newFixture(t, httpapi.Options{StaticDir: static})

	resp, body := fx.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "Podcast")
}

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err    error
		status int
		kind   string
	}{
		{err: fmt.Errorf("wrap: %w", core.ErrExtraction), status: 422, kind: httpapi.KindExtraction},
		{err: core.ErrInsufficientText, status: 400, kind: httpapi.KindInsufficientText},
		{err: core.ErrUnsupportedDocument, status: 400, kind: httpapi.KindBadRequest},
		{err: podcast.ErrInvalidRequest, status: 400, kind: httpapi.KindBadRequest},
		{err: core.ErrScriptGeneration, status: 502, kind: httpapi.KindScriptGeneration},
		{err: core.ErrAssembly, status: 500, kind: httpapi.KindAssembly},
		{err: core.ErrNotFound, status: 404, kind: httpapi.KindNotFound},
		{err: fiber.ErrRequestEntityTooLarge, status: 413, kind: httpapi.KindBadRequest},
		{err: fiber.ErrNotFound, status: 404, kind: httpapi.KindNotFound},
		{err: errMockHealth, status: 500, kind: httpapi.KindInternal},
	}

	for _, testCase := range tests {
		status, kind := httpapi.Classify(testCase.err)
		assert.Equal(t, testCase.status, status, testCase.err.Error())
		assert.Equal(t, testCase.kind, kind, testCase.err.Error())
	}
}

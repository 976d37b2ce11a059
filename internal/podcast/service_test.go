package podcast_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/assemble"
	"github.com/book-expert/podcast-service/internal/audio"
	"github.com/book-expert/podcast-service/internal/config"
	"github.com/book-expert/podcast-service/internal/core"
	"github.com/book-expert/podcast-service/internal/extract"
	"github.com/book-expert/podcast-service/internal/podcast"
	"github.com/book-expert/podcast-service/internal/speech"
	"github.com/book-expert/podcast-service/internal/text"
	"github.com/book-expert/podcast-service/internal/voice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMockGenerate = errors.New("mock model outage")

var sampleText = strings.Repeat("Photosynthesis turns light into chemical energy. ", 4)

type fakeGenerator struct {
	mu        sync.Mutex
	err       error
	languages []string
	texts     []string
}

func (f *fakeGenerator) Generate(_ context.Context, text, language string) (*core.Script, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.languages = append(f.languages, language)
	f.texts = append(f.texts, text)

	if f.err != nil {
		return nil, f.err
	}

	return &core.Script{
		Title:   "Light",
		Summary: "Plants and light",
		Conversation: []core.DialogueTurn{
			{Speaker: core.SpeakerTeacher, Text: "Plants eat light."},
			{Speaker: core.SpeakerStudent, Text: "Really?"},
		},
	}, nil
}

type fixture struct {
	service   *podcast.Service
	generator *fakeGenerator
	uploads   string
	outputs   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log, err := logger.New(t.TempDir(), "podcast-test.log")
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
	generator := &fakeGenerator{}
	fx := &fixture{
		generator: generator,
		uploads:   filepath.Join(root, "uploads"),
		outputs:   filepath.Join(root, "outputs"),
	}

	fx.service, err = podcast.New(
		extract.New(text.NewNormalizer(), log),
		generator,
		assembler,
		podcast.Options{
			UploadDir:         fx.uploads,
			OutputDir:         fx.outputs,
			AllowedExtensions: []string{".pdf", ".txt"},
			MinTextLength:     100,
			PreviewChars:      20,
		},
		log,
	)
	require.NoError(t, err)

	return fx
}

func TestNew_CreatesDirectories(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	for _, dir := range []string{fx.uploads, fx.outputs} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestSaveUpload(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	name, err := fx.service.SaveUpload("../My Notes.txt", strings.NewReader(sampleText))
	require.NoError(t, err)
	assert.Equal(t, "My_Notes.txt", name)

	data, err := os.ReadFile(filepath.Join(fx.uploads, name))
	require.NoError(t, err)
	assert.Equal(t, sampleText, string(data))

	_, err = fx.service.SaveUpload("slides.pptx", strings.NewReader("x"))
	require.ErrorIs(t, err, core.ErrUnsupportedDocument)

	_, err = fx.service.SaveUpload("", strings.NewReader("x"))
	require.ErrorIs(t, err, podcast.ErrInvalidRequest)

	_, err = fx.service.SaveUpload("日本.txt", strings.NewReader("x"))
	require.ErrorIs(t, err, podcast.ErrInvalidRequest)
}

func TestUpload_Preview(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	upload, err := fx.service.Upload(context.Background(), "notes.txt", strings.NewReader(sampleText))
	require.NoError(t, err)

	cleaned := strings.TrimSpace(sampleText)
	assert.Equal(t, "notes.txt", upload.Filename)
	assert.Equal(t, len(cleaned), upload.TextLength)
	assert.Equal(t, cleaned[:20]+"...", upload.Preview)
}

func TestUpload_InsufficientText(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	_, err := fx.service.Upload(context.Background(), "short.txt", strings.NewReader("Too short to teach anything."))
	require.ErrorIs(t, err, core.ErrInsufficientText)
}

func TestUpload_MinimumTextLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		length  int
		wantErr bool
	}{
		{name: "one below threshold", length: 99, wantErr: true},
		{name: "at threshold", length: 100},
		{name: "above threshold", length: 101},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			fx := newFixture(t)
			content := strings.Repeat("abcdefghij", 11)[:testCase.length]

			upload, err := fx.service.Upload(context.Background(), "edge.txt", strings.NewReader(content))
			if testCase.wantErr {
				require.ErrorIs(t, err, core.ErrInsufficientText)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, testCase.length, upload.TextLength)
		})
	}
}

func TestExtract_NotFound(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	_, err := fx.service.Extract(context.Background(), "missing.pdf")
	require.ErrorIs(t, err, core.ErrNotFound)

	_, err = fx.service.Extract(context.Background(), "../outputs/x.txt")
	require.ErrorIs(t, err, core.ErrNotFound)
}

func TestGenerateScript(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	_, err := fx.service.SaveUpload("notes.txt", strings.NewReader(sampleText))
	require.NoError(t, err)

	script, err := fx.service.GenerateScript(context.Background(), "notes.txt", "")
	require.NoError(t, err)
	assert.Equal(t, "Light", script.Title)
	assert.Equal(t, []string{"en"}, fx.generator.languages)
	assert.Equal(t, strings.TrimSpace(sampleText), fx.generator.texts[0])

	fx.generator.err = errMockGenerate
	_, err = fx.service.GenerateScript(context.Background(), "notes.txt", "FR")
	require.ErrorIs(t, err, errMockGenerate)
	assert.Equal(t, "fr", fx.generator.languages[1])
}

func TestGenerateAudio(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	script := &core.Script{Conversation: []core.DialogueTurn{{Speaker: core.SpeakerTeacher, Text: "Hello"}}}

	result, err := fx.service.GenerateAudio(context.Background(), script, "lecture.pdf", "en")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fx.outputs, "lecture_podcast.wav"), result.Path)
	assert.Equal(t, 1950*time.Millisecond, result.Duration)

	path, err := fx.service.OutputPath("lecture_podcast.wav")
	require.NoError(t, err)
	assert.Equal(t, result.Path, path)

	result, err = fx.service.GenerateAudio(context.Background(), script, "", "en")
	require.NoError(t, err)
	assert.Equal(t, "podcast_podcast.wav", filepath.Base(result.Path))

	_, err = fx.service.GenerateAudio(context.Background(), &core.Script{}, "x.pdf", "en")
	require.ErrorIs(t, err, podcast.ErrInvalidRequest)
}

func TestRun(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	source := filepath.Join(t.TempDir(), "chapter.txt")
	require.NoError(t, os.WriteFile(source, []byte(sampleText), 0o600))

	outcome, err := fx.service.Run(context.Background(), source, "de")
	require.NoError(t, err)

	assert.Equal(t, "Light", outcome.Script.Title)
	assert.Equal(t, filepath.Join(fx.outputs, "chapter_podcast.wav"), outcome.Audio.Path)
	assert.Equal(t, 2, outcome.Audio.TurnsIncluded)
	assert.Equal(t, []string{"de"}, fx.generator.languages)

	_, err = os.Stat(outcome.Audio.Path)
	require.NoError(t, err)
}

func TestOutputPath(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	for _, name := range []string{"missing.mp3", "../uploads/x.txt", "", "/etc/passwd"} {
		_, err := fx.service.OutputPath(name)
		require.ErrorIs(t, err, core.ErrNotFound, name)
	}
}

func TestPreview(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", podcast.Preview("short", 500))
	assert.Equal(t, "éé...", podcast.Preview("ééé", 2))
	assert.Equal(t, "anything", podcast.Preview("anything", 0))
}

func TestBuild(t *testing.T) {
	t.Parallel()

	log, err := logger.New(t.TempDir(), "build-test.log")
	require.NoError(t, err)

	root := t.TempDir()
	cfg := config.Default()
	cfg.Speech.Provider = config.ProviderStub
	cfg.Audio.Format = "wav"
	cfg.Paths.UploadDir = filepath.Join(root, "uploads")
	cfg.Paths.OutputDir = filepath.Join(root, "outputs")
	cfg.Voices = map[string]config.VoiceConfig{"en": {Teacher: "custom-teacher"}}

	stack, err := podcast.Build(cfg, log)
	require.NoError(t, err)
	assert.IsType(t, &speech.StubSynthesizer{}, stack.Synthesizer)
	assert.Equal(t, audio.FormatWAV, stack.Service.OutputFormat())
	assert.Equal(t, "custom-teacher", stack.Voices.Resolve("en", core.SpeakerTeacher))
	assert.Equal(t, "en-US-JennyNeural", stack.Voices.Resolve("en", core.SpeakerStudent))

	cfg.Audio.Format = "aiff"
	_, err = podcast.Build(cfg, log)
	require.ErrorIs(t, err, audio.ErrUnsupportedFormat)
}

func TestScriptFromFile(t *testing.T) {
	t.Parallel()

	fx := newFixture(t)

	source := filepath.Join(t.TempDir(), "short.txt")
	require.NoError(t, os.WriteFile(source, []byte("Not much here."), 0o600))

	_, err := fx.service.ScriptFromFile(context.Background(), source, "en")
	require.ErrorIs(t, err, core.ErrInsufficientText)
	assert.Empty(t, fx.generator.languages, "the model is not called for short documents")

	_, err = fx.service.ScriptFromFile(context.Background(), filepath.Join(t.TempDir(), "slides.pptx"), "en")
	require.ErrorIs(t, err, core.ErrUnsupportedDocument)
}

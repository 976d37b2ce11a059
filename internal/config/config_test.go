// Package config_test tests the configuration loading for the podcast-service.
package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/book-expert/podcast-service/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tomlData = `
[server]
listen_addr = "0.0.0.0:8080"

[nats]
url = "nats://127.0.0.1:4222"
podcast_requested_subject = "jobs.podcast"
audio_object_store_bucket = "AUDIO_FILES"

[llm]
api_key = "gsk-test"
model = "llama-3.1-8b-instant"
temperature = 0.5

[speech]
provider = "elevenlabs"
api_key = "xi-test"
timeout_seconds = 30

[audio]
format = "wav"
pause_ms = 250

[upload]
allowed_extensions = [".pdf", ".html"]

[voices.en]
teacher = "pNInz6obpgDQGcFmaJgB"
student = "21m00Tcm4TlvDq8ikWAM"

[voices.it]
teacher = "it-IT-DiegoNeural"
student = "it-IT-ElsaNeural"
`

func fakeEnv(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		value, ok := values[key]

		return value, ok
	}
}

func TestConfig_UnmarshalTOML(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.ListenAddr)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "jobs.podcast", cfg.NATS.PodcastRequestedSubject)
	assert.Equal(t, "AUDIO_FILES", cfg.NATS.AudioObjectStoreBucket)
	assert.Equal(t, "gsk-test", cfg.LLM.APIKey)
	assert.Equal(t, "llama-3.1-8b-instant", cfg.LLM.Model)
	assert.InEpsilon(t, 0.5, cfg.LLM.Temperature, 0.001)
	assert.Equal(t, "elevenlabs", cfg.Speech.Provider)
	assert.Equal(t, 30, cfg.Speech.TimeoutSeconds)
	assert.Equal(t, "wav", cfg.Audio.Format)
	assert.Equal(t, 250, cfg.Audio.PauseMs)
	assert.Equal(t, []string{".pdf", ".html"}, cfg.Upload.AllowedExtensions)
	assert.Equal(t, "it-IT-DiegoNeural", cfg.Voices["it"].Teacher)
	assert.Equal(t, "it-IT-ElsaNeural", cfg.Voices["it"].Student)
}

func TestConfig_ApplyDefaults(t *testing.T) {
	t.Parallel()

	cfg := config.Default()

	assert.Equal(t, config.DefaultListenAddr, cfg.Server.ListenAddr)
	assert.Equal(t, 50*1024*1024, cfg.Server.BodyLimit())
	assert.Equal(t, config.DefaultLLMModel, cfg.LLM.Model)
	assert.InEpsilon(t, 0.7, cfg.LLM.Temperature, 0.001)
	assert.Equal(t, 4000, cfg.LLM.MaxTokens)
	assert.Equal(t, 12000, cfg.LLM.MaxInputChars)
	assert.Equal(t, config.ProviderHTTP, cfg.Speech.Provider)
	assert.Equal(t, config.DefaultSpeechURL, cfg.Speech.BaseURL)
	assert.Equal(t, "mp3", cfg.Audio.Format)
	assert.Equal(t, "192k", cfg.Audio.Bitrate)
	assert.Equal(t, 500, cfg.Audio.LeadingSilenceMs)
	assert.Equal(t, 400, cfg.Audio.PauseMs)
	assert.Equal(t, 1000, cfg.Audio.TrailingSilenceMs)
	assert.Equal(t, []string{".pdf"}, cfg.Upload.AllowedExtensions)
	assert.Equal(t, 100, cfg.Upload.MinTextLength)
	assert.Equal(t, 500, cfg.Upload.PreviewChars)
	assert.Equal(t, 2*time.Minute, cfg.LLM.Timeout())
	assert.NoError(t, cfg.Validate())
}

func TestConfig_ApplyEnvironment(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Speech.Provider = config.ProviderElevenLabs

	cfg.ApplyEnvironment(fakeEnv(map[string]string{
		"GROQ_API_KEY":       " gsk-from-env ",
		"ELEVENLABS_API_KEY": "xi-from-env",
	}))

	assert.Equal(t, "gsk-from-env", cfg.LLM.APIKey)
	assert.Equal(t, "xi-from-env", cfg.Speech.APIKey)
}

func TestConfig_ApplyEnvironmentKeepsFileSecrets(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.LLM.APIKey = "from-file"

	cfg.ApplyEnvironment(fakeEnv(map[string]string{"GROQ_API_KEY": "from-env"}))

	assert.Equal(t, "from-file", cfg.LLM.APIKey)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*config.Config) {}, wantErr: false},
		{name: "stub provider", mutate: func(cfg *config.Config) { cfg.Speech.Provider = config.ProviderStub }, wantErr: false},
		{name: "unknown provider", mutate: func(cfg *config.Config) { cfg.Speech.Provider = "espeak" }, wantErr: true},
		{name: "elevenlabs without key", mutate: func(cfg *config.Config) { cfg.Speech.Provider = config.ProviderElevenLabs }, wantErr: true},
		{
			name: "elevenlabs with built-in voices",
			mutate: func(cfg *config.Config) {
				cfg.Speech.Provider = config.ProviderElevenLabs
				cfg.Speech.APIKey = "xi-test"
			},
			wantErr: true,
		},
		{
			name: "elevenlabs with partial english voices",
			mutate: func(cfg *config.Config) {
				cfg.Speech.Provider = config.ProviderElevenLabs
				cfg.Speech.APIKey = "xi-test"
				cfg.Voices = map[string]config.VoiceConfig{"en": {Teacher: "pNInz6obpgDQGcFmaJgB"}}
			},
			wantErr: true,
		},
		{
			name: "elevenlabs with english voices",
			mutate: func(cfg *config.Config) {
				cfg.Speech.Provider = config.ProviderElevenLabs
				cfg.Speech.APIKey = "xi-test"
				cfg.Voices = map[string]config.VoiceConfig{
					"en": {Teacher: "pNInz6obpgDQGcFmaJgB", Student: "21m00Tcm4TlvDq8ikWAM"},
				}
			},
			wantErr: false,
		},
		{name: "temperature too high", mutate: func(cfg *config.Config) { cfg.LLM.Temperature = 2.5 }, wantErr: true},
		{name: "negative pause", mutate: func(cfg *config.Config) { cfg.Audio.PauseMs = -1 }, wantErr: true},
		{name: "negative cache size", mutate: func(cfg *config.Config) { cfg.Speech.CacheMaxSizeMB = -5 }, wantErr: true},
		{
			name: "empty voice override",
			mutate: func(cfg *config.Config) {
				cfg.Voices = map[string]config.VoiceConfig{"pt": {}}
			},
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			testCase.mutate(cfg)

			err := cfg.Validate()
			if testCase.wantErr {
				require.ErrorIs(t, err, config.ErrInvalidConfig)

				return
			}

			require.NoError(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "project.toml")
	require.NoError(t, os.WriteFile(path, []byte(tomlData), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "xi-test", cfg.Speech.APIKey)
	assert.Equal(t, 250, cfg.Audio.PauseMs)
	assert.Equal(t, 500, cfg.Audio.LeadingSilenceMs)
	assert.Equal(t, config.DefaultOutputDir, cfg.Paths.OutputDir)
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

// Package config provides the configuration structure for the podcast-service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"
)

// Default values applied to any field left unset by the configuration file.
const (
	DefaultListenAddr   = "127.0.0.1:5000"
	DefaultBodyLimitMB  = 50
	DefaultNATSSubject  = "podcast.requested"
	DefaultDocBucket    = "PODCAST_DOCUMENTS"
	DefaultAudioBucket  = "PODCAST_AUDIO"
	DefaultNATSTimeout  = 600
	DefaultLLMBaseURL   = "https://api.groq.com/openai/v1"
	DefaultLLMModel     = "llama-3.3-70b-versatile"
	DefaultTemperature  = 0.7
	DefaultMaxTokens    = 4000
	DefaultMaxInput     = 12000
	DefaultLLMTimeout   = 120
	DefaultProvider     = "http"
	DefaultSpeechURL    = "http://127.0.0.1:8000"
	DefaultSpeechTmo    = 60
	DefaultFormat       = "mp3"
	DefaultBitrate      = "192k"
	DefaultSampleRate   = 24000
	DefaultChannels     = 1
	DefaultLeadingMs    = 500
	DefaultPauseMs      = 400
	DefaultTrailingMs   = 1000
	DefaultFFmpegPath   = "ffmpeg"
	DefaultUploadDir    = "uploads"
	DefaultOutputDir    = "outputs"
	DefaultMinText      = 100
	DefaultPreviewChars = 500
)

// Environment variables consulted when the matching secret is absent from the file.
const (
	envLLMAPIKey        = "GROQ_API_KEY"
	envElevenLabsAPIKey = "ELEVENLABS_API_KEY"
)

// fallbackVoiceLanguage is the profile used for every unknown language.
const fallbackVoiceLanguage = "en"

// Speech providers accepted by the speech section.
const (
	ProviderHTTP       = "http"
	ProviderElevenLabs = "elevenlabs"
	ProviderStub       = "stub"
)

var (
	// ErrInvalidConfig is wrapped by every validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ServerConfig holds the configuration for the HTTP API.
type ServerConfig struct {
	ListenAddr  string `toml:"listen_addr"`
	BodyLimitMB int    `toml:"body_limit_mb"`
}

// NATSConfig holds the configuration for NATS. An empty URL disables the worker.
type NATSConfig struct {
	URL                     string `toml:"url"`
	PodcastRequestedSubject string `toml:"podcast_requested_subject"`
	DocumentObjectStore     string `toml:"document_object_store_bucket"`
	AudioObjectStoreBucket  string `toml:"audio_object_store_bucket"`
	TimeoutSeconds          int    `toml:"timeout_seconds"`
}

// LLMConfig holds the configuration of the chat model used for scripts.
type LLMConfig struct {
	BaseURL        string  `toml:"base_url"`
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
	MaxInputChars  int     `toml:"max_input_chars"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// SpeechConfig holds the configuration of the speech synthesis provider.
type SpeechConfig struct {
	Provider       string  `toml:"provider"`
	BaseURL        string  `toml:"base_url"`
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	CacheDir       string  `toml:"cache_dir"`
	CacheMaxSizeMB int     `toml:"cache_max_size_mb"`
}

// AudioConfig holds the timing and export settings of the assembled track.
type AudioConfig struct {
	Format            string `toml:"format"`
	Bitrate           string `toml:"bitrate"`
	SampleRate        int    `toml:"sample_rate"`
	Channels          int    `toml:"channels"`
	LeadingSilenceMs  int    `toml:"leading_silence_ms"`
	PauseMs           int    `toml:"pause_ms"`
	TrailingSilenceMs int    `toml:"trailing_silence_ms"`
	FFmpegPath        string `toml:"ffmpeg_path"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	UploadDir   string `toml:"upload_dir"`
	OutputDir   string `toml:"output_dir"`
	StaticDir   string `toml:"static_dir"`
}

// UploadConfig holds the rules enforced on uploaded documents.
type UploadConfig struct {
	AllowedExtensions []string `toml:"allowed_extensions"`
	MinTextLength     int      `toml:"min_text_length"`
	PreviewChars      int      `toml:"preview_chars"`
}

// VoiceConfig overrides the voices of one language.
type VoiceConfig struct {
	Teacher string `toml:"teacher"`
	Student string `toml:"student"`
}

// Config is the root configuration structure.
type Config struct {
	Server ServerConfig           `toml:"server"`
	NATS   NATSConfig             `toml:"nats"`
	LLM    LLMConfig              `toml:"llm"`
	Speech SpeechConfig           `toml:"speech"`
	Audio  AudioConfig            `toml:"audio"`
	Paths  PathsConfig            `toml:"paths"`
	Upload UploadConfig           `toml:"upload"`
	Voices map[string]VoiceConfig `toml:"voices"`
}

// Load loads the configuration for the podcast-service through the central configurator.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return finalize(&cfg)
}

// LoadFile loads the configuration from a TOML file on disk.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}

	var cfg Config

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
	}

	return finalize(&cfg)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config

	cfg.ApplyDefaults()

	return &cfg
}

func finalize(cfg *Config) (*Config, error) {
	cfg.ApplyDefaults()
	cfg.ApplyEnvironment(os.LookupEnv)

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills every unset field with its default value.
func (c *Config) ApplyDefaults() {
	setString(&c.Server.ListenAddr, DefaultListenAddr)
	setInt(&c.Server.BodyLimitMB, DefaultBodyLimitMB)

	setString(&c.NATS.PodcastRequestedSubject, DefaultNATSSubject)
	setString(&c.NATS.DocumentObjectStore, DefaultDocBucket)
	setString(&c.NATS.AudioObjectStoreBucket, DefaultAudioBucket)
	setInt(&c.NATS.TimeoutSeconds, DefaultNATSTimeout)

	setString(&c.LLM.BaseURL, DefaultLLMBaseURL)
	setString(&c.LLM.Model, DefaultLLMModel)
	setInt(&c.LLM.MaxTokens, DefaultMaxTokens)
	setInt(&c.LLM.MaxInputChars, DefaultMaxInput)
	setInt(&c.LLM.TimeoutSeconds, DefaultLLMTimeout)

	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = DefaultTemperature
	}

	setString(&c.Speech.Provider, DefaultProvider)
	setInt(&c.Speech.TimeoutSeconds, DefaultSpeechTmo)

	if c.Speech.Provider == ProviderHTTP {
		setString(&c.Speech.BaseURL, DefaultSpeechURL)
	}

	setString(&c.Audio.Format, DefaultFormat)
	setString(&c.Audio.Bitrate, DefaultBitrate)
	setInt(&c.Audio.SampleRate, DefaultSampleRate)
	setInt(&c.Audio.Channels, DefaultChannels)
	setInt(&c.Audio.LeadingSilenceMs, DefaultLeadingMs)
	setInt(&c.Audio.PauseMs, DefaultPauseMs)
	setInt(&c.Audio.TrailingSilenceMs, DefaultTrailingMs)
	setString(&c.Audio.FFmpegPath, DefaultFFmpegPath)

	setString(&c.Paths.BaseLogsDir, os.TempDir())
	setString(&c.Paths.UploadDir, DefaultUploadDir)
	setString(&c.Paths.OutputDir, DefaultOutputDir)

	if len(c.Upload.AllowedExtensions) == 0 {
		c.Upload.AllowedExtensions = []string{".pdf"}
	}

	setInt(&c.Upload.MinTextLength, DefaultMinText)
	setInt(&c.Upload.PreviewChars, DefaultPreviewChars)
}

// ApplyEnvironment fills missing secrets from the environment.
func (c *Config) ApplyEnvironment(lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}

	if c.LLM.APIKey == "" {
		if value, ok := lookup(envLLMAPIKey); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}

	if c.Speech.APIKey == "" && c.Speech.Provider == ProviderElevenLabs {
		if value, ok := lookup(envElevenLabsAPIKey); ok {
			c.Speech.APIKey = strings.TrimSpace(value)
		}
	}
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	switch c.Speech.Provider {
	case ProviderHTTP:
		if c.Speech.BaseURL == "" {
			return fmt.Errorf("%w: speech.base_url is required for the http provider", ErrInvalidConfig)
		}
	case ProviderElevenLabs:
		if c.Speech.APIKey == "" {
			return fmt.Errorf("%w: speech.api_key is required for the elevenlabs provider", ErrInvalidConfig)
		}

		// The built-in voices are Edge neural names; ElevenLabs needs its own ids.
		fallback := c.Voices[fallbackVoiceLanguage]
		if fallback.Teacher == "" || fallback.Student == "" {
			return fmt.Errorf("%w: voices.%s needs teacher and student ids for the elevenlabs provider",
				ErrInvalidConfig, fallbackVoiceLanguage)
		}
	case ProviderStub:
	default:
		return fmt.Errorf("%w: unknown speech provider %q", ErrInvalidConfig, c.Speech.Provider)
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("%w: llm.temperature must be between 0.0 and 2.0, got %f", ErrInvalidConfig, c.LLM.Temperature)
	}

	if c.LLM.MaxTokens <= 0 || c.LLM.MaxInputChars <= 0 {
		return fmt.Errorf("%w: llm.max_tokens and llm.max_input_chars must be positive", ErrInvalidConfig)
	}

	if c.Audio.LeadingSilenceMs < 0 || c.Audio.PauseMs < 0 || c.Audio.TrailingSilenceMs < 0 {
		return fmt.Errorf("%w: audio silences must be non-negative", ErrInvalidConfig)
	}

	if c.Speech.CacheMaxSizeMB < 0 {
		return fmt.Errorf("%w: speech.cache_max_size_mb must be non-negative", ErrInvalidConfig)
	}

	for lang, voices := range c.Voices {
		if strings.TrimSpace(lang) == "" {
			return fmt.Errorf("%w: voice override with empty language code", ErrInvalidConfig)
		}

		if voices.Teacher == "" && voices.Student == "" {
			return fmt.Errorf("%w: voice override for %q names no voices", ErrInvalidConfig, lang)
		}
	}

	return nil
}

// Timeout returns the per-call deadline of the chat model.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout returns the per-call deadline of one synthesis request.
func (c SpeechConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout returns the deadline of one podcast job received over NATS.
func (c NATSConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BodyLimit returns the maximum accepted request body in bytes.
func (c ServerConfig) BodyLimit() int {
	return c.BodyLimitMB * 1024 * 1024
}

func setString(target *string, value string) {
	if strings.TrimSpace(*target) == "" {
		*target = value
	}
}

func setInt(target *int, value int) {
	if *target == 0 {
		*target = value
	}
}

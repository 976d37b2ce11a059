package speech

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/audio"
	"github.com/book-expert/podcast-service/internal/config"
	"github.com/book-expert/podcast-service/internal/core"
)

const bytesPerMB = 1024 * 1024

// ErrUnknownProvider is returned for a speech.provider value New does not know.
var ErrUnknownProvider = errors.New("unknown speech provider")

// HealthChecker is implemented by synthesizers that can probe their backend.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// New builds the synthesizer selected by the speech section, wrapped in a
// disk cache when speech.cache_dir is set.
func New(speechCfg config.SpeechConfig, spec audio.Spec, log *logger.Logger) (core.Synthesizer, error) {
	var synthesizer core.Synthesizer

	switch speechCfg.Provider {
	case config.ProviderHTTP:
		synthesizer = NewHTTPSynthesizer(speechCfg.BaseURL, speechCfg.Timeout(), speechCfg.Temperature)
	case config.ProviderElevenLabs:
		synthesizer = NewElevenLabsSynthesizer(
			speechCfg.APIKey, speechCfg.BaseURL, speechCfg.Model, spec, speechCfg.Timeout())
	case config.ProviderStub:
		synthesizer = NewStubSynthesizer(spec, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, speechCfg.Provider)
	}

	if speechCfg.CacheDir == "" || speechCfg.CacheMaxSizeMB <= 0 {
		return synthesizer, nil
	}

	cached, err := NewCachedSynthesizer(
		synthesizer, speechCfg.Provider, speechCfg.CacheDir, int64(speechCfg.CacheMaxSizeMB)*bytesPerMB, log)
	if err != nil {
		return nil, err
	}

	return cached, nil
}

// HealthCheck probes the backend when the synthesizer supports it.
func HealthCheck(ctx context.Context, synthesizer core.Synthesizer) error {
	if cached, ok := synthesizer.(*CachedSynthesizer); ok {
		synthesizer = cached.next
	}

	checker, ok := synthesizer.(HealthChecker)
	if !ok {
		return nil
	}

	return checker.HealthCheck(ctx)
}

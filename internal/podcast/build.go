package podcast

import (
	"fmt"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/assemble"
	"github.com/book-expert/podcast-service/internal/audio"
	"github.com/book-expert/podcast-service/internal/config"
	"github.com/book-expert/podcast-service/internal/core"
	"github.com/book-expert/podcast-service/internal/extract"
	"github.com/book-expert/podcast-service/internal/script"
	"github.com/book-expert/podcast-service/internal/speech"
	"github.com/book-expert/podcast-service/internal/text"
	"github.com/book-expert/podcast-service/internal/voice"
)

// Stack is the service together with the components callers probe directly.
type Stack struct {
	Service     *Service
	Synthesizer core.Synthesizer
	Voices      *voice.Resolver
}

// Build constructs the whole pipeline from configuration. The chat client is
// created once here and shared by every request.
func Build(cfg *config.Config, log *logger.Logger) (*Stack, error) {
	assembleOpts, err := assemble.OptionsFromConfig(cfg.Audio)
	if err != nil {
		return nil, fmt.Errorf("invalid audio configuration: %w", err)
	}

	synthesizer, err := speech.New(cfg.Speech, assembleOpts.Spec, log)
	if err != nil {
		return nil, err
	}

	normalizer := text.NewNormalizer()
	assembleOpts.Preprocess = normalizer.CleanUtterance

	voices := voice.NewResolver(VoiceOverrides(cfg.Voices))
	assembler := assemble.New(synthesizer, voices, audio.NewCodec(cfg.Audio.FFmpegPath), assembleOpts, log)
	generator := script.NewGenerator(script.NewClient(cfg.LLM), script.OptionsFromConfig(cfg.LLM), log)

	service, err := New(extract.New(normalizer, log), generator, assembler, OptionsFromConfig(cfg), log)
	if err != nil {
		return nil, err
	}

	return &Stack{Service: service, Synthesizer: synthesizer, Voices: voices}, nil
}

// VoiceOverrides converts the [voices.<lang>] sections into resolver profiles.
func VoiceOverrides(voices map[string]config.VoiceConfig) map[string]voice.Profile {
	if len(voices) == 0 {
		return nil
	}

	overrides := make(map[string]voice.Profile, len(voices))
	for language, profile := range voices {
		overrides[language] = voice.Profile{Teacher: profile.Teacher, Student: profile.Student}
	}

	return overrides
}

package speech

import (
	"bytes"
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/audio"
	"github.com/book-expert/podcast-service/internal/core"
)

// StubDurationPerChar is the length of silence produced per input character.
const StubDurationPerChar = 10 * time.Millisecond

// StubSynthesizer returns deterministic silent WAV clips whose length is
// proportional to the text. It is meant for CI and local runs without a
// speech provider.
type StubSynthesizer struct {
	spec audio.Spec
	log  *logger.Logger
}

// NewStubSynthesizer returns a stub producing clips in the given layout.
func NewStubSynthesizer(spec audio.Spec, log *logger.Logger) *StubSynthesizer {
	return &StubSynthesizer{spec: spec, log: log}
}

// StubDuration returns the clip length the stub produces for text.
func StubDuration(text string) time.Duration {
	return time.Duration(utf8.RuneCountInString(text)) * StubDurationPerChar
}

// Synthesize returns a silent clip of StubDuration(text).
func (s *StubSynthesizer) Synthesize(ctx context.Context, text, voice string) (*core.AudioClip, error) {
	err := ctx.Err()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSynthesis, err)
	}

	if voice == "" {
		return nil, fmt.Errorf("%w: stub: voice is required", core.ErrSynthesis)
	}

	if text == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrSynthesis, ErrEmptyText)
	}

	track, err := audio.Silence(s.spec, StubDuration(text))
	if err != nil {
		return nil, fmt.Errorf("%w: stub: %w", core.ErrSynthesis, err)
	}

	var buf bytes.Buffer

	err = audio.EncodeWAV(&buf, track)
	if err != nil {
		return nil, fmt.Errorf("%w: stub: %w", core.ErrSynthesis, err)
	}

	if s.log != nil {
		s.log.Info("Stub synthesis of %d characters with voice %s (%s)", utf8.RuneCountInString(text), voice, track.Duration())
	}

	return &core.AudioClip{Data: buf.Bytes(), Format: formatWAV}, nil
}

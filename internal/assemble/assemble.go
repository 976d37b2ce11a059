// Package assemble turns a dialogue script into one timed audio track.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/podcast-service/internal/audio"
	"github.com/book-expert/podcast-service/internal/config"
	"github.com/book-expert/podcast-service/internal/core"
	"github.com/book-expert/podcast-service/internal/voice"
)

const (
	scratchPattern  = "podcast-turns-*"
	scratchClipName = "turn-%03d.%s"
	defaultClipFmt  = "wav"
	scratchFileMode = 0o600
	outputDirMode   = 0o755
)

// Log messages.
const (
	logAssembling    = "Assembling %d turns in %s to %s"
	logSkippedEmpty  = "Turn %d (%s) has no text, skipping"
	logDroppedTurn   = "Dropping turn %d (%s): %v"
	logCleanupFailed = "Failed to remove scratch path %s: %v"
	logAssembled     = "Wrote %s: %s, %d of %d turns included, %d dropped"
)

// Error formats.
const (
	errFmtNoTurns    = "%w: script has no turns"
	errFmtNoAudio    = "%w: none of %d turns produced audio"
	errFmtScratch    = "%w: failed to create scratch directory: %w"
	errFmtTrack      = "%w: %w"
	errFmtCancelled  = "%w: cancelled after %d of %d turns: %w"
	errFmtOutputDir  = "%w: failed to create output directory: %w"
	errFmtExport     = "%w: export failed: %w"
	errFmtWriteClip  = "failed to write scratch clip: %w"
	errFmtDecodeClip = "failed to decode clip: %w"
)

// Options control the timing and output format of the assembled track.
type Options struct {
	Spec            audio.Spec
	Export          audio.ExportOptions
	LeadingSilence  time.Duration
	Pause           time.Duration
	TrailingSilence time.Duration
	// Preprocess, when set, rewrites each turn's text before synthesis.
	Preprocess func(text, language string) string
}

// OptionsFromConfig converts the audio section into assembler options.
func OptionsFromConfig(cfg config.AudioConfig) (Options, error) {
	format, err := audio.ParseFormat(cfg.Format)
	if err != nil {
		return Options{}, err
	}

	opts := Options{
		Spec:            audio.Spec{SampleRate: cfg.SampleRate, Channels: cfg.Channels},
		Export:          audio.ExportOptions{Format: format, Bitrate: cfg.Bitrate},
		LeadingSilence:  time.Duration(cfg.LeadingSilenceMs) * time.Millisecond,
		Pause:           time.Duration(cfg.PauseMs) * time.Millisecond,
		TrailingSilence: time.Duration(cfg.TrailingSilenceMs) * time.Millisecond,
	}

	err = opts.Spec.Validate()
	if err != nil {
		return Options{}, err
	}

	err = opts.Export.Validate()
	if err != nil {
		return Options{}, err
	}

	return opts, nil
}

// TurnFailure records why one turn was left out of the track.
type TurnFailure struct {
	Index   int
	Speaker string
	Err     error
}

// Result describes an exported podcast.
type Result struct {
	Path          string
	Duration      time.Duration
	TurnsTotal    int
	TurnsIncluded int
	TurnsSkipped  int
	Dropped       []TurnFailure
}

// Assembler synthesizes turns strictly in order and concatenates them.
type Assembler struct {
	synthesizer core.Synthesizer
	voices      *voice.Resolver
	codec       audio.Codec
	opts        Options
	log         *logger.Logger
}

// New returns an assembler. The codec decodes scratch clips and encodes the export.
func New(
	synthesizer core.Synthesizer,
	voices *voice.Resolver,
	codec audio.Codec,
	opts Options,
	log *logger.Logger,
) *Assembler {
	return &Assembler{
		synthesizer: synthesizer,
		voices:      voices,
		codec:       codec,
		opts:        opts,
		log:         log,
	}
}

// Format returns the container of exported files.
func (a *Assembler) Format() audio.Format {
	return a.opts.Export.Format
}

// Assemble renders script in language and writes the track to outputPath.
// Turns that fail to synthesize or decode are dropped and reported in the
// result. Nothing is written unless at least one turn produced audio.
func (a *Assembler) Assemble(ctx context.Context, script *core.Script, language, outputPath string) (*Result, error) {
	if script == nil || len(script.Conversation) == 0 {
		return nil, fmt.Errorf(errFmtNoTurns, core.ErrAssembly)
	}

	track, err := audio.NewTrack(a.opts.Spec)
	if err != nil {
		return nil, fmt.Errorf(errFmtTrack, core.ErrAssembly, err)
	}

	scratch, err := os.MkdirTemp("", scratchPattern)
	if err != nil {
		return nil, fmt.Errorf(errFmtScratch, core.ErrAssembly, err)
	}
	defer a.remove(scratch, os.RemoveAll)

	total := len(script.Conversation)
	result := &Result{Path: outputPath, TurnsTotal: total}

	a.log.Info(logAssembling, total, voice.LanguageName(language), outputPath)

	track.AppendSilence(a.opts.LeadingSilence)

	for index, turn := range script.Conversation {
		err = ctx.Err()
		if err != nil {
			return nil, fmt.Errorf(errFmtCancelled, core.ErrAssembly, index, total, err)
		}

		text := turn.Text
		if a.opts.Preprocess != nil {
			text = a.opts.Preprocess(text, language)
		}

		if strings.TrimSpace(text) == "" {
			a.log.Info(logSkippedEmpty, index, turn.Speaker)
			result.TurnsSkipped++

			continue
		}

		clip, renderErr := a.renderTurn(ctx, scratch, index, text, a.voices.Resolve(language, turn.Speaker))
		if renderErr == nil {
			renderErr = track.Append(clip)
		}

		if renderErr != nil {
			if !errors.Is(renderErr, core.ErrSynthesis) {
				renderErr = fmt.Errorf("%w: %w", core.ErrSynthesis, renderErr)
			}

			a.log.Warn(logDroppedTurn, index, turn.Speaker, renderErr)
			result.Dropped = append(result.Dropped, TurnFailure{Index: index, Speaker: turn.Speaker, Err: renderErr})

			continue
		}

		track.AppendSilence(a.opts.Pause)
		result.TurnsIncluded++
	}

	if result.TurnsIncluded == 0 {
		return nil, fmt.Errorf(errFmtNoAudio, core.ErrAssembly, total)
	}

	track.AppendSilence(a.opts.TrailingSilence)

	err = os.MkdirAll(filepath.Dir(outputPath), outputDirMode)
	if err != nil {
		return nil, fmt.Errorf(errFmtOutputDir, core.ErrAssembly, err)
	}

	err = audio.Export(ctx, a.codec, track, outputPath, a.opts.Export)
	if err != nil {
		return nil, fmt.Errorf(errFmtExport, core.ErrAssembly, err)
	}

	result.Duration = track.Duration()

	a.log.Info(logAssembled, outputPath, result.Duration, result.TurnsIncluded, total, len(result.Dropped))

	return result, nil
}

// renderTurn synthesizes one turn through a scratch file that is removed
// before returning, so at most one clip exists on disk at a time.
func (a *Assembler) renderTurn(ctx context.Context, scratch string, index int, text, voiceID string) (*audio.Track, error) {
	clip, err := a.synthesizer.Synthesize(ctx, text, voiceID)
	if err != nil {
		return nil, err
	}

	format := strings.ToLower(clip.Format)
	if format == "" {
		format = defaultClipFmt
	}

	path := filepath.Join(scratch, fmt.Sprintf(scratchClipName, index, format))

	err = os.WriteFile(path, clip.Data, scratchFileMode)
	if err != nil {
		return nil, fmt.Errorf(errFmtWriteClip, err)
	}
	defer a.remove(path, os.Remove)

	track, err := a.codec.Decode(ctx, path, a.opts.Spec)
	if err != nil {
		return nil, fmt.Errorf(errFmtDecodeClip, err)
	}

	return track, nil
}

func (a *Assembler) remove(path string, removeFunc func(string) error) {
	err := removeFunc(path)
	if err != nil && !os.IsNotExist(err) {
		a.log.Warn(logCleanupFailed, path, err)
	}
}

// Package audio provides PCM track handling, codecs and export settings for
// assembled podcasts.
package audio

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Limits for accepted stream parameters.
const (
	MaxSampleRate = 192000
	MaxChannels   = 8
	bytesPerInt16 = 2
)

// Error messages and formats.
const (
	errFmtSampleRateRange = "%w: sample rate must be between 1 and %d Hz, got %d"
	errFmtChannelsRange   = "%w: channels must be between 1 and %d, got %d"
	errFmtBitrate         = "%w: bitrate must look like 192k, got %q"
	errFmtFormat          = "%w: %q"
)

var (
	// ErrInvalidQuality indicates out-of-range stream or export parameters.
	ErrInvalidQuality = errors.New("invalid quality settings")
	// ErrUnsupportedFormat indicates a container the codec cannot handle.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrFormatMismatch indicates two tracks or a clip with different stream layouts.
	ErrFormatMismatch = errors.New("audio format mismatch")

	bitratePattern = regexp.MustCompile(`^[1-9][0-9]*k$`)
)

// Format represents supported audio container formats.
type Format string

// Supported formats.
const (
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatOGG  Format = "ogg"
	FormatFLAC Format = "flac"
)

// ParseFormat normalises a format name such as "MP3" or ".wav".
func ParseFormat(name string) (Format, error) {
	format := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "."))

	switch format {
	case FormatWAV, FormatMP3, FormatOGG, FormatFLAC:
		return format, nil
	default:
		return "", fmt.Errorf(errFmtFormat, ErrUnsupportedFormat, name)
	}
}

// Extension returns the file extension including the leading dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// MIMEType returns the content type used when serving the format.
func (f Format) MIMEType() string {
	switch f {
	case FormatMP3:
		return "audio/mpeg"
	case FormatWAV:
		return "audio/wav"
	case FormatOGG:
		return "audio/ogg"
	case FormatFLAC:
		return "audio/flac"
	default:
		return "application/octet-stream"
	}
}

// Spec describes the PCM layout every clip is decoded into.
type Spec struct {
	SampleRate int
	Channels   int
}

// Validate checks that the layout is within reasonable bounds.
func (s Spec) Validate() error {
	if s.SampleRate <= 0 || s.SampleRate > MaxSampleRate {
		return fmt.Errorf(errFmtSampleRateRange, ErrInvalidQuality, MaxSampleRate, s.SampleRate)
	}

	if s.Channels <= 0 || s.Channels > MaxChannels {
		return fmt.Errorf(errFmtChannelsRange, ErrInvalidQuality, MaxChannels, s.Channels)
	}

	return nil
}

// ExportOptions controls how a finished track is encoded.
type ExportOptions struct {
	Format  Format
	Bitrate string
}

// Validate checks the export options. Bitrate is ignored for lossless formats.
func (o ExportOptions) Validate() error {
	_, err := ParseFormat(string(o.Format))
	if err != nil {
		return err
	}

	if o.Format == FormatWAV || o.Format == FormatFLAC {
		return nil
	}

	if !bitratePattern.MatchString(o.Bitrate) {
		return fmt.Errorf(errFmtBitrate, ErrInvalidQuality, o.Bitrate)
	}

	return nil
}

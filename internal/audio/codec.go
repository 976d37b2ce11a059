package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Codec converts between files on disk and in-memory tracks.
type Codec interface {
	Decode(ctx context.Context, path string, spec Spec) (*Track, error)
	Encode(ctx context.Context, track *Track, path string, opts ExportOptions) error
}

// FFmpegCodec shells out to the ffmpeg binary. Decoding resamples any input
// to the requested layout; encoding supports every Format.
type FFmpegCodec struct {
	Binary string
}

// NewFFmpegCodec returns a codec using the binary at path, or "ffmpeg" from PATH.
func NewFFmpegCodec(path string) *FFmpegCodec {
	if path == "" {
		path = "ffmpeg"
	}

	return &FFmpegCodec{Binary: path}
}

// Decode converts the file at path to signed 16-bit PCM in the given layout.
func (c *FFmpegCodec) Decode(ctx context.Context, path string, spec Spec) (*Track, error) {
	err := spec.Validate()
	if err != nil {
		return nil, err
	}

	args := []string{
		"-v", "error", "-nostdin",
		"-i", path,
		"-f", "s16le", "-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(spec.Channels),
		"-ar", strconv.Itoa(spec.SampleRate),
		"pipe:1",
	}

	var stdout, stderr bytes.Buffer

	// #nosec G204 -- binary comes from configuration, arguments are built here
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg decode of %s failed: %w - output: %s", path, err, stderr.String())
	}

	return TrackFromSamples(spec, bytesToSamples(stdout.Bytes()))
}

// Encode writes the track to path in the requested format.
func (c *FFmpegCodec) Encode(ctx context.Context, track *Track, path string, opts ExportOptions) error {
	err := opts.Validate()
	if err != nil {
		return err
	}

	spec := track.Spec()
	args := []string{
		"-y", "-v", "error",
		"-f", "s16le",
		"-ar", strconv.Itoa(spec.SampleRate),
		"-ac", strconv.Itoa(spec.Channels),
		"-i", "pipe:0",
	}
	args = append(args, encoderArgs(opts)...)
	args = append(args, "-f", string(opts.Format), path)

	var stderr bytes.Buffer

	// #nosec G204 -- binary comes from configuration, arguments are built here
	cmd := exec.CommandContext(ctx, c.Binary, args...)
	cmd.Stdin = bytes.NewReader(samplesToBytes(track.Samples()))
	cmd.Stderr = &stderr

	err = cmd.Run()
	if err != nil {
		return fmt.Errorf("ffmpeg encode to %s failed: %w - output: %s", path, err, stderr.String())
	}

	return nil
}

func encoderArgs(opts ExportOptions) []string {
	switch opts.Format {
	case FormatMP3:
		return []string{"-codec:a", "libmp3lame", "-b:a", opts.Bitrate}
	case FormatOGG:
		return []string{"-codec:a", "libvorbis", "-b:a", opts.Bitrate}
	case FormatFLAC:
		return []string{"-codec:a", "flac"}
	default:
		return []string{"-codec:a", "pcm_s16le"}
	}
}

// Export encodes the track next to path and renames it into place, so a
// reader never observes a partially written file.
func Export(ctx context.Context, codec Codec, track *Track, path string, opts ExportOptions) error {
	err := opts.Validate()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".partial-*"+opts.Format.Extension())
	if err != nil {
		return fmt.Errorf("failed to create temporary export file: %w", err)
	}

	tmpPath := tmp.Name()

	err = tmp.Close()
	if err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("failed to close temporary export file: %w", err)
	}

	err = codec.Encode(ctx, track, tmpPath, opts)
	if err != nil {
		_ = os.Remove(tmpPath)

		return err
	}

	err = os.Rename(tmpPath, path)
	if err != nil {
		_ = os.Remove(tmpPath)

		return fmt.Errorf("failed to move export into place at %s: %w", path, err)
	}

	return nil
}

// NativeCodec handles WAV in pure Go and hands everything else, including
// WAV clips in another layout, to ffmpeg.
type NativeCodec struct {
	wav    WAVCodec
	ffmpeg *FFmpegCodec
}

// NewCodec returns a NativeCodec falling back to the ffmpeg binary at ffmpegPath.
func NewCodec(ffmpegPath string) *NativeCodec {
	return &NativeCodec{ffmpeg: NewFFmpegCodec(ffmpegPath)}
}

// Decode implements Codec.
func (c *NativeCodec) Decode(ctx context.Context, path string, spec Spec) (*Track, error) {
	if strings.EqualFold(filepath.Ext(path), FormatWAV.Extension()) {
		track, err := c.wav.Decode(ctx, path, spec)
		if err == nil {
			return track, nil
		}

		if !errors.Is(err, ErrFormatMismatch) && !errors.Is(err, ErrInvalidWAV) {
			return nil, err
		}
	}

	return c.ffmpeg.Decode(ctx, path, spec)
}

// Encode implements Codec.
func (c *NativeCodec) Encode(ctx context.Context, track *Track, path string, opts ExportOptions) error {
	if opts.Format == FormatWAV {
		return c.wav.Encode(ctx, track, path, opts)
	}

	return c.ffmpeg.Encode(ctx, track, path, opts)
}

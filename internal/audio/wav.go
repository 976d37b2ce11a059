package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	wavHeaderSize   = 44
	wavFmtChunkSize = 16
	wavPCMFormat    = 1
	wavBitsPerInt16 = 16
)

// ErrInvalidWAV indicates a RIFF stream that is not 16-bit PCM WAV.
var ErrInvalidWAV = errors.New("invalid wav data")

// WAVCodec reads and writes 16-bit PCM RIFF files without external tools.
// It does not resample: clips must already match the requested Spec.
type WAVCodec struct{}

// Decode reads a WAV file into a track with the given layout.
func (WAVCodec) Decode(_ context.Context, path string, spec Spec) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wav file %s: %w", path, err)
	}

	track, err := DecodeWAV(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	if track.Spec() != spec {
		return nil, fmt.Errorf("%w: %s is %d Hz/%d ch, want %d Hz/%d ch", ErrFormatMismatch, path,
			track.spec.SampleRate, track.spec.Channels, spec.SampleRate, spec.Channels)
	}

	return track, nil
}

// Encode writes the track as a WAV file. Only FormatWAV is accepted.
func (WAVCodec) Encode(_ context.Context, track *Track, path string, opts ExportOptions) error {
	if opts.Format != FormatWAV {
		return fmt.Errorf("%w: wav codec cannot encode %q", ErrUnsupportedFormat, opts.Format)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	err = EncodeWAV(file, track)
	if err != nil {
		_ = file.Close()

		return err
	}

	err = file.Close()
	if err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	return nil
}

// EncodeWAV writes the canonical 44-byte header followed by little-endian samples.
func EncodeWAV(w io.Writer, track *Track) error {
	spec := track.Spec()
	dataSize := len(track.samples) * bytesPerInt16
	blockAlign := spec.Channels * bytesPerInt16

	header := make([]byte, wavHeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(wavHeaderSize-8+dataSize))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], wavFmtChunkSize)
	binary.LittleEndian.PutUint16(header[20:22], wavPCMFormat)
	binary.LittleEndian.PutUint16(header[22:24], uint16(spec.Channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(spec.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(spec.SampleRate*blockAlign))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], wavBitsPerInt16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))

	_, err := w.Write(header)
	if err != nil {
		return fmt.Errorf("failed to write wav header: %w", err)
	}

	_, err = w.Write(samplesToBytes(track.samples))
	if err != nil {
		return fmt.Errorf("failed to write wav samples: %w", err)
	}

	return nil
}

// DecodeWAV parses a RIFF stream, skipping chunks other than fmt and data.
func DecodeWAV(r io.Reader) (*Track, error) {
	var riff [12]byte

	_, err := io.ReadFull(r, riff[:])
	if err != nil {
		return nil, fmt.Errorf("%w: short riff header: %w", ErrInvalidWAV, err)
	}

	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE signature", ErrInvalidWAV)
	}

	var (
		spec    Spec
		haveFmt bool
	)

	for {
		var chunk [8]byte

		_, err = io.ReadFull(r, chunk[:])
		if err != nil {
			return nil, fmt.Errorf("%w: no data chunk: %w", ErrInvalidWAV, err)
		}

		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case "fmt ":
			spec, err = readFmtChunk(r, size)
			if err != nil {
				return nil, err
			}

			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidWAV)
			}

			payload, readErr := io.ReadAll(io.LimitReader(r, size))
			if readErr != nil {
				return nil, fmt.Errorf("%w: %w", ErrInvalidWAV, readErr)
			}

			return TrackFromSamples(spec, bytesToSamples(payload))
		default:
			_, err = io.CopyN(io.Discard, r, size+size%2)
			if err != nil {
				return nil, fmt.Errorf("%w: truncated %q chunk: %w", ErrInvalidWAV, id, err)
			}
		}
	}
}

func readFmtChunk(r io.Reader, size int64) (Spec, error) {
	if size < wavFmtChunkSize {
		return Spec{}, fmt.Errorf("%w: fmt chunk of %d bytes", ErrInvalidWAV, size)
	}

	body := make([]byte, size+size%2)

	_, err := io.ReadFull(r, body)
	if err != nil {
		return Spec{}, fmt.Errorf("%w: truncated fmt chunk: %w", ErrInvalidWAV, err)
	}

	format := binary.LittleEndian.Uint16(body[0:2])
	bits := binary.LittleEndian.Uint16(body[14:16])

	if format != wavPCMFormat || bits != wavBitsPerInt16 {
		return Spec{}, fmt.Errorf("%w: format %d with %d bits, want 16-bit PCM", ErrInvalidWAV, format, bits)
	}

	spec := Spec{
		SampleRate: int(binary.LittleEndian.Uint32(body[4:8])),
		Channels:   int(binary.LittleEndian.Uint16(body[2:4])),
	}

	err = spec.Validate()
	if err != nil {
		return Spec{}, fmt.Errorf("%w: %w", ErrInvalidWAV, err)
	}

	return spec, nil
}

func samplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*bytesPerInt16)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(out[i*bytesPerInt16:], uint16(sample))
	}

	return out
}

func bytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/bytesPerInt16)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*bytesPerInt16:]))
	}

	return samples
}

package audio

import (
	"fmt"
	"time"
)

// Track is an in-memory run of interleaved signed 16-bit PCM samples.
type Track struct {
	spec    Spec
	samples []int16
}

// NewTrack returns an empty track with the given layout.
func NewTrack(spec Spec) (*Track, error) {
	err := spec.Validate()
	if err != nil {
		return nil, err
	}

	return &Track{spec: spec}, nil
}

// TrackFromSamples wraps already decoded interleaved samples.
func TrackFromSamples(spec Spec, samples []int16) (*Track, error) {
	track, err := NewTrack(spec)
	if err != nil {
		return nil, err
	}

	if len(samples)%spec.Channels != 0 {
		return nil, fmt.Errorf("%w: %d samples do not divide into %d channels",
			ErrFormatMismatch, len(samples), spec.Channels)
	}

	track.samples = samples

	return track, nil
}

// Spec returns the layout of the track.
func (t *Track) Spec() Spec {
	return t.spec
}

// Samples returns the interleaved samples. The slice aliases the track.
func (t *Track) Samples() []int16 {
	return t.samples
}

// Frames returns the number of sample frames (one sample per channel each).
func (t *Track) Frames() int {
	return len(t.samples) / t.spec.Channels
}

// Duration returns the playback length of the track.
func (t *Track) Duration() time.Duration {
	return framesToDuration(t.Frames(), t.spec.SampleRate)
}

// AppendSilence extends the track with d of digital silence.
func (t *Track) AppendSilence(d time.Duration) {
	if d <= 0 {
		return
	}

	frames := durationToFrames(d, t.spec.SampleRate)
	t.samples = append(t.samples, make([]int16, frames*t.spec.Channels)...)
}

// Append copies other onto the end of the track. Both must share a layout.
func (t *Track) Append(other *Track) error {
	if other.spec != t.spec {
		return fmt.Errorf("%w: track is %d Hz/%d ch, clip is %d Hz/%d ch",
			ErrFormatMismatch, t.spec.SampleRate, t.spec.Channels,
			other.spec.SampleRate, other.spec.Channels)
	}

	t.samples = append(t.samples, other.samples...)

	return nil
}

// Silence returns a standalone track of digital silence.
func Silence(spec Spec, d time.Duration) (*Track, error) {
	track, err := NewTrack(spec)
	if err != nil {
		return nil, err
	}

	track.AppendSilence(d)

	return track, nil
}

func durationToFrames(d time.Duration, sampleRate int) int {
	return int((int64(d)*int64(sampleRate) + int64(time.Second)/2) / int64(time.Second))
}

func framesToDuration(frames, sampleRate int) time.Duration {
	return time.Duration(int64(frames) * int64(time.Second) / int64(sampleRate))
}

package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/book-expert/podcast-service/internal/audio"
	"github.com/book-expert/podcast-service/internal/core"
)

const (
	// ElevenLabsBaseURL is the ElevenLabs API base URL.
	ElevenLabsBaseURL = "https://api.elevenlabs.io/v1"
	// DefaultElevenLabsModel is used when speech.model is empty.
	DefaultElevenLabsModel = "eleven_multilingual_v2"

	headerAPIKey      = "xi-api-key"
	mp3OutputFormat   = "mp3_44100_128"
	errBodyLimitBytes = 4096
)

// PCM rates ElevenLabs can return directly.
var elevenLabsPCMRates = map[int]bool{16000: true, 22050: true, 24000: true, 44100: true}

// ElevenLabsSynthesizer calls the ElevenLabs text-to-speech endpoint. Voice
// names are ElevenLabs voice ids. Mono output at a supported sample rate is
// requested as raw PCM and wrapped in WAV; anything else is fetched as mp3.
type ElevenLabsSynthesizer struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	spec       audio.Spec
	timeout    time.Duration
}

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id,omitempty"`
}

// NewElevenLabsSynthesizer constructs a client. An empty baseURL selects the public API.
func NewElevenLabsSynthesizer(
	apiKey, baseURL, model string,
	spec audio.Spec,
	timeout time.Duration,
) *ElevenLabsSynthesizer {
	if baseURL == "" {
		baseURL = ElevenLabsBaseURL
	}

	if model == "" {
		model = DefaultElevenLabsModel
	}

	return &ElevenLabsSynthesizer{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		spec:       spec,
		timeout:    timeout,
	}
}

// Synthesize voices text with the given voice id.
func (s *ElevenLabsSynthesizer) Synthesize(ctx context.Context, text, voice string) (*core.AudioClip, error) {
	if voice == "" {
		return nil, fmt.Errorf("%w: elevenlabs: voice id is required", core.ErrSynthesis)
	}

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrSynthesis, ErrEmptyText)
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	pcm := s.spec.Channels == 1 && elevenLabsPCMRates[s.spec.SampleRate]

	outputFormat := mp3OutputFormat
	if pcm {
		outputFormat = fmt.Sprintf("pcm_%d", s.spec.SampleRate)
	}

	data, err := s.post(ctx, voice, outputFormat, elevenLabsRequest{Text: text, ModelID: s.model})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSynthesis, err)
	}

	if !pcm {
		return &core.AudioClip{Data: data, Format: formatMP3}, nil
	}

	track, err := audio.TrackFromSamples(s.spec, pcmSamples(data))
	if err != nil {
		return nil, fmt.Errorf("%w: elevenlabs: %w", core.ErrSynthesis, err)
	}

	var wav bytes.Buffer

	err = audio.EncodeWAV(&wav, track)
	if err != nil {
		return nil, fmt.Errorf("%w: elevenlabs: %w", core.ErrSynthesis, err)
	}

	return &core.AudioClip{Data: wav.Bytes(), Format: formatWAV}, nil
}

func (s *ElevenLabsSynthesizer) post(ctx context.Context, voice, outputFormat string, req elevenLabsRequest) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s",
		s.baseURL, url.PathEscape(voice), url.QueryEscape(outputFormat))

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAPIKey, s.apiKey)

	if outputFormat == mp3OutputFormat {
		httpReq.Header.Set(headerAccept, contentTypeMPEG)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimitBytes))

		return nil, fmt.Errorf("elevenlabs: API error (status %d): %s", resp.StatusCode, string(errBody))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read audio: %w", err)
	}

	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}

	return data, nil
}

func pcmSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
	}

	return samples
}

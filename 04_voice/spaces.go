package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"product-intro-pipeline/config"
	"product-intro-pipeline/media"
	"product-intro-pipeline/types"
)

// Spaces is the free community backend: an ordered list of interchangeable
// hosted TTS endpoints. Failures are expected and cheap here, so each endpoint
// gets one quick try before moving down the list.
type Spaces struct {
	endpoints  []string
	sampleRate int
	channels   int
	httpClient *http.Client
}

func newSpaces(cfg *config.Config, creds config.Credentials) *Spaces {
	return &Spaces{
		endpoints:  creds.SpaceEndpoints,
		sampleRate: cfg.Voice.SampleRate,
		channels:   cfg.Voice.Channels,
		httpClient: &http.Client{Timeout: 45 * time.Second},
	}
}

func (s *Spaces) Name() string { return "spaces" }

func (s *Spaces) Synthesize(ctx context.Context, text, outFile string) (types.VoiceSegmentResult, error) {
	var lastErr error
	refused := 0
	for i, ep := range s.endpoints {
		err := s.tryOne(ctx, ep, text, outFile)
		if err == nil {
			if i > 0 {
				log.Printf("[voice] Community backend %d/%d served the request", i+1, len(s.endpoints))
			}
			return finishResult("spaces", text, outFile)
		}
		if errors.Is(err, ErrBackendRefused) {
			refused++
		}
		lastErr = err
		log.Printf("[voice] Community backend %d/%d failed: %v", i+1, len(s.endpoints), err)
	}

	if refused > 0 {
		return types.VoiceSegmentResult{}, &SynthesisError{
			Engine: "spaces",
			Op:     "synthesize",
			Err: fmt.Errorf("%w: %d of %d community backends declined (quota or capacity) — wait and retry later, or configure a paid engine credential",
				ErrBackendRefused, refused, len(s.endpoints)),
		}
	}
	return types.VoiceSegmentResult{}, &SynthesisError{
		Engine: "spaces",
		Op:     "synthesize",
		Err:    fmt.Errorf("all %d community backends unreachable, last error: %v", len(s.endpoints), lastErr),
	}
}

func (s *Spaces) tryOne(ctx context.Context, endpoint, text, outFile string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusPaymentRequired:
		return fmt.Errorf("%w: %v", ErrBackendRefused, httpError(resp))
	default:
		return httpError(resp)
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(audio) == 0 {
		return fmt.Errorf("empty response body")
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		return fmt.Errorf("backend returned JSON instead of audio: %.120s", string(audio))
	}

	// Community models often hand back raw WAV; normalize to the compressed
	// format everything downstream expects, then drop the intermediate.
	if bytes.HasPrefix(audio, []byte("RIFF")) {
		wavFile := outFile + ".wav"
		if err := os.WriteFile(wavFile, audio, 0644); err != nil {
			return err
		}
		if !media.Available("ffmpeg") {
			log.Printf("[voice] ⚠️ ffmpeg not found — keeping uncompressed backend output")
			os.Remove(wavFile)
			return os.WriteFile(outFile, audio, 0644)
		}
		if err := media.Encode(ctx, wavFile, outFile, s.sampleRate, s.channels); err != nil {
			os.Remove(wavFile)
			return err
		}
		os.Remove(wavFile)
		return nil
	}
	return os.WriteFile(outFile, audio, 0644)
}

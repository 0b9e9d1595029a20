package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"product-intro-pipeline/config"
	"product-intro-pipeline/types"
)

const defaultElevenVoice = "21m00Tcm4TlvDq8ikWAM" // Rachel

// ElevenLabs is a synchronous engine: one POST with the full segment text,
// audio bytes straight back. No chunking, no jobs.
type ElevenLabs struct {
	apiKey     string
	voiceID    string
	baseURL    string
	httpClient *http.Client
}

func newElevenLabs(cfg *config.Config, creds config.Credentials) *ElevenLabs {
	voice := cfg.Voice.VoiceID
	if voice == "" {
		voice = defaultElevenVoice
	}
	return &ElevenLabs{
		apiKey:     creds.ElevenLabsKey,
		voiceID:    voice,
		baseURL:    "https://api.elevenlabs.io",
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (e *ElevenLabs) Name() string { return "elevenlabs" }

type elevenRequest struct {
	Text          string              `json:"text"`
	ModelID       string              `json:"model_id"`
	VoiceSettings elevenVoiceSettings `json:"voice_settings"`
}

type elevenVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

func (e *ElevenLabs) Synthesize(ctx context.Context, text, outFile string) (types.VoiceSegmentResult, error) {
	body, err := json.Marshal(elevenRequest{
		Text:    text,
		ModelID: "eleven_multilingual_v2",
		VoiceSettings: elevenVoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	})
	if err != nil {
		return types.VoiceSegmentResult{}, &SynthesisError{Engine: "elevenlabs", Op: "marshal request", Err: err}
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", e.baseURL, e.voiceID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return types.VoiceSegmentResult{}, &SynthesisError{Engine: "elevenlabs", Op: "build request", Err: err}
	}
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return types.VoiceSegmentResult{}, &SynthesisError{Engine: "elevenlabs", Op: "request", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.VoiceSegmentResult{}, &SynthesisError{Engine: "elevenlabs", Op: "synthesize", Err: httpError(resp)}
	}

	f, err := os.Create(outFile)
	if err != nil {
		return types.VoiceSegmentResult{}, &SynthesisError{Engine: "elevenlabs", Op: "create output", Err: err}
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(outFile)
		return types.VoiceSegmentResult{}, &SynthesisError{Engine: "elevenlabs", Op: "write output", Err: err}
	}
	if err := f.Close(); err != nil {
		return types.VoiceSegmentResult{}, &SynthesisError{Engine: "elevenlabs", Op: "close output", Err: err}
	}

	return finishResult("elevenlabs", text, outFile)
}

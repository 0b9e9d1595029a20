package voice

import (
	"context"
	"encoding/base64"
	"net/http"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"

	"product-intro-pipeline/config"
	"product-intro-pipeline/types"
)

const defaultGoogleVoice = "en-US-Neural2-D"

// GoogleTTS is a synchronous engine on the Cloud Text-to-Speech API.
// Auth takes whichever path is configured: a plain API key, or the
// client-id/secret/refresh-token triple via OAuth2.
type GoogleTTS struct {
	creds      config.Credentials
	voice      string
	sampleRate int
}

func newGoogleTTS(cfg *config.Config, creds config.Credentials) *GoogleTTS {
	voice := cfg.Voice.VoiceID
	if voice == "" {
		voice = defaultGoogleVoice
	}
	return &GoogleTTS{
		creds:      creds,
		voice:      voice,
		sampleRate: cfg.Voice.SampleRate,
	}
}

func (g *GoogleTTS) Name() string { return "google" }

func (g *GoogleTTS) service(ctx context.Context) (*texttospeech.Service, error) {
	if g.creds.GoogleAPIKey != "" {
		return texttospeech.NewService(ctx, option.WithAPIKey(g.creds.GoogleAPIKey))
	}

	conf := &oauth2.Config{
		ClientID:     g.creds.GoogleClientID,
		ClientSecret: g.creds.GoogleClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{texttospeech.CloudPlatformScope},
	}
	token := &oauth2.Token{
		RefreshToken: g.creds.GoogleRefreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	client := &http.Client{
		Transport: &oauth2.Transport{Source: conf.TokenSource(ctx, token)},
	}
	return texttospeech.NewService(ctx, option.WithHTTPClient(client))
}

func (g *GoogleTTS) Synthesize(ctx context.Context, text, outFile string) (types.VoiceSegmentResult, error) {
	svc, err := g.service(ctx)
	if err != nil {
		return types.VoiceSegmentResult{}, &SynthesisError{Engine: "google", Op: "auth", Err: err}
	}

	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: "en-US",
			Name:         g.voice,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding:   "MP3",
			SampleRateHertz: int64(g.sampleRate),
		},
	}

	resp, err := svc.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return types.VoiceSegmentResult{}, &SynthesisError{Engine: "google", Op: "synthesize", Err: err}
	}

	audio, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return types.VoiceSegmentResult{}, &SynthesisError{Engine: "google", Op: "decode response", Err: err}
	}
	if err := os.WriteFile(outFile, audio, 0644); err != nil {
		return types.VoiceSegmentResult{}, &SynthesisError{Engine: "google", Op: "write output", Err: err}
	}

	return finishResult("google", text, outFile)
}

package voice

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"product-intro-pipeline/config"
	"product-intro-pipeline/types"
)

// OpenAITTS is a synchronous engine backed by the OpenAI speech endpoint.
// Full segment per call, compressed audio straight back.
type OpenAITTS struct {
	client openai.Client
	voice  string
}

func newOpenAITTS(cfg *config.Config, creds config.Credentials) *OpenAITTS {
	voice := cfg.Voice.VoiceID
	if voice == "" {
		voice = string(openai.AudioSpeechNewParamsVoiceAlloy)
	}
	return &OpenAITTS{
		client: openai.NewClient(option.WithAPIKey(creds.OpenAIKey)),
		voice:  voice,
	}
}

func (o *OpenAITTS) Name() string { return "openai" }

func (o *OpenAITTS) Synthesize(ctx context.Context, text, outFile string) (types.VoiceSegmentResult, error) {
	resp, err := o.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModelTTS1,
		Input:          text,
		Voice:          openai.AudioSpeechNewParamsVoice(o.voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return types.VoiceSegmentResult{}, &SynthesisError{Engine: "openai", Op: "synthesize", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.VoiceSegmentResult{}, &SynthesisError{Engine: "openai", Op: "synthesize", Err: httpError(resp)}
	}

	f, err := os.Create(outFile)
	if err != nil {
		return types.VoiceSegmentResult{}, &SynthesisError{Engine: "openai", Op: "create output", Err: err}
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(outFile)
		return types.VoiceSegmentResult{}, &SynthesisError{Engine: "openai", Op: "write output", Err: err}
	}
	if err := f.Close(); err != nil {
		return types.VoiceSegmentResult{}, &SynthesisError{Engine: "openai", Op: "close output", Err: err}
	}

	return finishResult("openai", text, outFile)
}

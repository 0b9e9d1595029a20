package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"product-intro-pipeline/config"
	"product-intro-pipeline/media"
	"product-intro-pipeline/types"
)

// Engine synthesizes one narration segment into a compressed audio file.
// Implementations hide everything provider-specific: chunking, job polling,
// endpoint fallback, output transcoding. Callers only ever see a finished
// file and a duration.
type Engine interface {
	Name() string
	Synthesize(ctx context.Context, text, outFile string) (types.VoiceSegmentResult, error)
}

// BatchEngine is implemented by engines that can push all segments through
// one shared polling loop instead of synthesizing them one at a time.
type BatchEngine interface {
	Engine
	SynthesizeAll(ctx context.Context, texts []string, outDir string) ([]types.VoiceSegmentResult, error)
}

// ErrNoEngine means not a single engine credential is configured.
// There is nothing to fall back to, so callers treat this as fatal.
var ErrNoEngine = errors.New("no voice engine credential configured")

// ErrBackendRefused marks a community backend that answered but declined to
// generate (quota or capacity). Kept distinct from unreachable: the operator
// can wait and retry without touching any configuration.
var ErrBackendRefused = errors.New("backend refused generation")

// SynthesisError wraps any failure inside one engine so the caller can move
// to the next engine in the chain.
type SynthesisError struct {
	Engine string
	Op     string
	Err    error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("voice engine %s: %s: %v", e.Engine, e.Op, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// enginePriority is the selection and fallback order: paid engines by output
// quality first, the free community backend always last.
var enginePriority = []string{"elevenlabs", "openai", "google", "replicate", "spaces"}

func hasCredential(name string, creds config.Credentials) bool {
	switch name {
	case "elevenlabs":
		return creds.ElevenLabsKey != ""
	case "openai":
		return creds.OpenAIKey != ""
	case "google":
		return creds.HasGoogle()
	case "replicate":
		return creds.ReplicateToken != ""
	case "spaces":
		return len(creds.SpaceEndpoints) > 0
	}
	return false
}

func build(name string, cfg *config.Config, creds config.Credentials) (Engine, error) {
	switch name {
	case "elevenlabs":
		return newElevenLabs(cfg, creds), nil
	case "openai":
		return newOpenAITTS(cfg, creds), nil
	case "google":
		return newGoogleTTS(cfg, creds), nil
	case "replicate":
		return newReplicate(cfg, creds), nil
	case "spaces":
		return newSpaces(cfg, creds), nil
	}
	return nil, fmt.Errorf("unknown voice engine %q", name)
}

// Available returns every usable engine in fallback order. An explicitly
// configured engine goes first; asking for an engine whose credential is
// missing is a configuration error, not something to silently fall back from.
func Available(cfg *config.Config, creds config.Credentials) ([]Engine, error) {
	requested := cfg.Voice.Engine
	if requested == "auto" {
		requested = ""
	}

	var chain []Engine
	if requested != "" {
		if !hasCredential(requested, creds) {
			return nil, fmt.Errorf("voice engine %q has no credential: %w", requested, ErrNoEngine)
		}
		e, err := build(requested, cfg, creds)
		if err != nil {
			return nil, err
		}
		chain = append(chain, e)
	}
	for _, name := range enginePriority {
		if name == requested || !hasCredential(name, creds) {
			continue
		}
		e, err := build(name, cfg, creds)
		if err != nil {
			return nil, err
		}
		chain = append(chain, e)
	}
	if len(chain) == 0 {
		return nil, ErrNoEngine
	}

	names := make([]string, len(chain))
	for i, e := range chain {
		names[i] = e.Name()
	}
	log.Printf("[voice] Engines available: %s", strings.Join(names, " → "))
	return chain, nil
}

// msPerWord mirrors the 130 words-per-minute narration pace used everywhere
// a duration has to be guessed instead of measured.
const msPerWord = 60000 / 130

// finishResult measures the synthesized file with ffprobe, falling back to
// the word-count estimate. The estimate is flagged, never retrofitted: a
// later probe of the same file must not change an already-reported duration.
func finishResult(engineName, text, outFile string) (types.VoiceSegmentResult, error) {
	res := types.VoiceSegmentResult{AudioFile: outFile}
	if media.Available("ffprobe") {
		ms, err := media.DurationMs(outFile)
		if err == nil {
			res.DurationMs = ms
			return res, nil
		}
		log.Printf("[voice] Warning: %s output %s not measurable: %v — using word-count estimate", engineName, filepath.Base(outFile), err)
	}
	res.DurationMs = len(strings.Fields(text)) * msPerWord
	res.Estimated = true
	return res, nil
}

// httpError turns a non-OK response into an error carrying a short body
// snippet, which is usually where providers put the actual reason.
func httpError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
}

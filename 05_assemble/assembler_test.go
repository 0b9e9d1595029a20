package assemble

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"product-intro-pipeline/04_voice"
	"product-intro-pipeline/config"
	"product-intro-pipeline/types"
)

// fakeEngine records synthesis calls and writes placeholder audio bytes.
type fakeEngine struct {
	name     string
	durMs    int
	failAt   int // 1-based call index that fails, 0 = never
	calls    []string
	outFiles []string
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Synthesize(ctx context.Context, text, outFile string) (types.VoiceSegmentResult, error) {
	f.calls = append(f.calls, text)
	f.outFiles = append(f.outFiles, outFile)
	if f.failAt > 0 && len(f.calls) == f.failAt {
		return types.VoiceSegmentResult{}, &voice.SynthesisError{Engine: f.name, Op: "synthesize", Err: errors.New("provider exploded")}
	}
	if err := os.WriteFile(outFile, []byte("FAKEMP3DATA"), 0644); err != nil {
		return types.VoiceSegmentResult{}, err
	}
	return types.VoiceSegmentResult{AudioFile: outFile, DurationMs: f.durMs, Estimated: true}, nil
}

// fakeBatchEngine adds the shared-polling-loop entry point.
type fakeBatchEngine struct {
	fakeEngine
	batchCalls int
	batchTexts []string
}

func (f *fakeBatchEngine) SynthesizeAll(ctx context.Context, texts []string, outDir string) ([]types.VoiceSegmentResult, error) {
	f.batchCalls++
	f.batchTexts = append([]string(nil), texts...)
	out := make([]types.VoiceSegmentResult, 0, len(texts))
	for i := range texts {
		file := filepath.Join(outDir, fmt.Sprintf("segment_%02d.mp3", i))
		if err := os.WriteFile(file, []byte("FAKEMP3DATA"), 0644); err != nil {
			return nil, err
		}
		out = append(out, types.VoiceSegmentResult{AudioFile: file, DurationMs: f.durMs, Estimated: true})
	}
	return out, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Voice: config.VoiceConfig{
			SampleRate: 44100,
			Channels:   2,
		},
	}
}

func testScript() *types.ProductScript {
	narration := []string{
		"Meet Orbit, the workspace your team actually wants.",
		"Tired of losing decisions in endless chat threads?",
		"Orbit keeps every plan in one living document.",
		"Draft together in real time without version chaos.",
		"Search finds any decision in under a second.",
		"Automations file the busywork before you notice it.",
		"It connects to the tools you already run.",
		"Start free today and ship your next plan faster.",
	}
	return &types.ProductScript{Title: "Orbit", Narration: narration}
}

func TestSplitProportionalSumsExactly(t *testing.T) {
	tests := []struct {
		name    string
		totalMs int
		words   []int
	}{
		{"even split", 10000, []int{1, 1, 1, 1, 1, 1, 1, 3}},
		{"rounding drift", 9999, []int{2, 2, 2, 2, 2, 2, 2, 2}},
		{"zero word segment", 5000, []int{3, 0, 2, 4}},
		{"all zero words", 1000, []int{0, 0, 0}},
		{"single segment", 4321, []int{12}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitProportional(tt.totalMs, tt.words)
			if len(got) != len(tt.words) {
				t.Fatalf("got %d durations, want %d", len(got), len(tt.words))
			}
			sum := 0
			for _, d := range got {
				sum += d
			}
			if sum != tt.totalMs {
				t.Errorf("durations sum to %d, want exactly %d", sum, tt.totalMs)
			}
			totalWords := 0
			for _, w := range tt.words {
				totalWords += w
			}
			if totalWords > 0 {
				for i := 0; i < len(tt.words)-1; i++ {
					want := tt.totalMs * tt.words[i] / totalWords
					if got[i] != want {
						t.Errorf("segment %d = %dms, want floor share %dms", i, got[i], want)
					}
				}
			}
		})
	}
}

func TestSingleCallModeSplitsByWordCount(t *testing.T) {
	cfg := testConfig()
	cfg.Voice.SingleCall = true
	eng := &fakeEngine{name: "fake", durMs: 11000}
	script := testScript()
	outDir := filepath.Join(t.TempDir(), "run")

	narration, err := New(cfg).Run(context.Background(), eng, script, outDir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(eng.calls) != 1 {
		t.Fatalf("engine called %d times, want 1", len(eng.calls))
	}
	if want := strings.Join(script.Narration, " "); eng.calls[0] != want {
		t.Errorf("engine got %q, want the joined narration", eng.calls[0])
	}
	if narration.TotalDurationMs != 11000 {
		t.Errorf("TotalDurationMs = %d, want 11000", narration.TotalDurationMs)
	}
	if len(narration.SegmentDurationsMs) != len(script.Narration) {
		t.Fatalf("got %d segment durations, want %d", len(narration.SegmentDurationsMs), len(script.Narration))
	}
	sum := 0
	for _, d := range narration.SegmentDurationsMs {
		sum += d
	}
	if sum != narration.TotalDurationMs {
		t.Errorf("segment durations sum to %d, want exactly %d", sum, narration.TotalDurationMs)
	}
	if !narration.Estimated {
		t.Error("proportional split must be flagged as estimated timing")
	}
	data, err := os.ReadFile(narration.AudioFile)
	if err != nil {
		t.Fatalf("final track missing: %v", err)
	}
	if string(data) != "FAKEMP3DATA" {
		t.Error("final track does not contain the synthesized audio")
	}
	if _, err := os.Stat(filepath.Join(outDir, "segments")); !os.IsNotExist(err) {
		t.Error("scratch directory should be removed after assembly")
	}
}

func TestSingleSegmentPassesThroughUntouched(t *testing.T) {
	cfg := testConfig()
	eng := &fakeEngine{name: "fake", durMs: 4321}
	script := &types.ProductScript{Narration: []string{"One lonely narration segment for the whole video."}}
	outDir := filepath.Join(t.TempDir(), "run")

	narration, err := New(cfg).Run(context.Background(), eng, script, outDir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if narration.TotalDurationMs != 4321 {
		t.Errorf("TotalDurationMs = %d, want the measured 4321", narration.TotalDurationMs)
	}
	if len(narration.SegmentDurationsMs) != 1 || narration.SegmentDurationsMs[0] != 4321 {
		t.Errorf("SegmentDurationsMs = %v, want [4321]", narration.SegmentDurationsMs)
	}
	data, err := os.ReadFile(narration.AudioFile)
	if err != nil {
		t.Fatalf("final track missing: %v", err)
	}
	if string(data) != "FAKEMP3DATA" {
		t.Error("single segment should be moved out without re-encoding")
	}
	if _, err := os.Stat(filepath.Join(outDir, "segments")); !os.IsNotExist(err) {
		t.Error("scratch directory should be removed after assembly")
	}
}

func TestPerSegmentFailureAbortsAndCleansUp(t *testing.T) {
	cfg := testConfig()
	eng := &fakeEngine{name: "fake", durMs: 1000, failAt: 3}
	outDir := filepath.Join(t.TempDir(), "run")

	_, err := New(cfg).Run(context.Background(), eng, testScript(), outDir)
	if err == nil {
		t.Fatal("expected assembly to abort on segment failure")
	}
	var synthErr *voice.SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("error should preserve the engine failure for fallback, got %v", err)
	}
	if !strings.Contains(err.Error(), "segment 2") {
		t.Errorf("error should name the failing segment, got %q", err)
	}
	if len(eng.calls) != 3 {
		t.Errorf("engine called %d times, want 3 (abort on first failure)", len(eng.calls))
	}
	if _, statErr := os.Stat(filepath.Join(outDir, "narration.mp3")); !os.IsNotExist(statErr) {
		t.Error("no final track may exist after a failed assembly")
	}
	if _, statErr := os.Stat(filepath.Join(outDir, "segments")); !os.IsNotExist(statErr) {
		t.Error("scratch directory should be removed on the failure path too")
	}
}

func TestSequentialSynthesisFollowsSegmentOrder(t *testing.T) {
	cfg := testConfig()
	script := testScript()
	eng := &fakeEngine{name: "fake", durMs: 1000, failAt: len(script.Narration)}
	outDir := filepath.Join(t.TempDir(), "run")

	_, err := New(cfg).Run(context.Background(), eng, script, outDir)
	if err == nil {
		t.Fatal("expected failure on the last segment")
	}
	if len(eng.calls) != len(script.Narration) {
		t.Fatalf("engine called %d times, want %d", len(eng.calls), len(script.Narration))
	}
	for i, text := range eng.calls {
		if text != script.Narration[i] {
			t.Errorf("call %d synthesized %q, want segment %d in order", i, text, i)
		}
		want := fmt.Sprintf("segment_%02d.mp3", i)
		if filepath.Base(eng.outFiles[i]) != want {
			t.Errorf("call %d wrote %s, want %s", i, filepath.Base(eng.outFiles[i]), want)
		}
	}
}

func TestParallelModeUsesEnginePollingLoop(t *testing.T) {
	cfg := testConfig()
	cfg.Voice.Parallel = true
	eng := &fakeBatchEngine{fakeEngine: fakeEngine{name: "fake", durMs: 1000}}
	script := testScript()
	outDir := filepath.Join(t.TempDir(), "run")

	_, err := New(cfg).Run(context.Background(), eng, script, outDir)

	if eng.batchCalls != 1 {
		t.Fatalf("batch entry point called %d times, want 1", eng.batchCalls)
	}
	if len(eng.calls) != 0 {
		t.Errorf("per-segment entry point called %d times, want 0 in parallel mode", len(eng.calls))
	}
	if len(eng.batchTexts) != len(script.Narration) || eng.batchTexts[0] != script.Narration[0] {
		t.Errorf("batch received %d texts, want the %d narration segments", len(eng.batchTexts), len(script.Narration))
	}

	// The placeholder bytes are not decodable audio, so the join phase fails
	// whether or not ffmpeg is installed. That failure must surface as an
	// assembly error, not as something the caller would retry on another
	// engine, and scratch must still be cleaned up.
	if err == nil {
		t.Fatal("expected the join phase to fail on placeholder audio")
	}
	var asmErr *AssemblyError
	if !errors.As(err, &asmErr) {
		t.Fatalf("join failure should be an AssemblyError, got %v", err)
	}
	if asmErr.Op != "decode segment 0" {
		t.Errorf("Op = %q, want %q", asmErr.Op, "decode segment 0")
	}
	var synthErr *voice.SynthesisError
	if errors.As(err, &synthErr) {
		t.Error("an ffmpeg failure must not look like an engine failure")
	}
	if _, statErr := os.Stat(filepath.Join(outDir, "segments")); !os.IsNotExist(statErr) {
		t.Error("scratch directory should be removed on the failure path")
	}
}

func TestParallelFallsBackWhenEngineCannotBatch(t *testing.T) {
	cfg := testConfig()
	cfg.Voice.Parallel = true
	eng := &fakeEngine{name: "fake", durMs: 1000, failAt: 1}
	outDir := filepath.Join(t.TempDir(), "run")

	_, err := New(cfg).Run(context.Background(), eng, testScript(), outDir)
	if err == nil {
		t.Fatal("expected the first sequential call to fail")
	}
	if len(eng.calls) != 1 {
		t.Errorf("engine called %d times, want 1 sequential call", len(eng.calls))
	}
}

package assemble

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"product-intro-pipeline/04_voice"
	"product-intro-pipeline/config"
	"product-intro-pipeline/media"
	"product-intro-pipeline/types"
)

// crossfadeSec is the overlap between adjacent segments. It only masks
// encoder clicks at the joins; anything longer would audibly shift the
// narration against the scene schedule.
const crossfadeSec = 0.03

// Assembler turns an accepted script into one narration track using a single
// voice engine. Falling back to another engine is the caller's job: when
// synthesis fails, every artifact from this attempt is already cleaned up,
// so the caller can simply re-run with the next engine in the chain.
type Assembler struct {
	cfg *config.Config
}

// New creates a new Assembler
func New(cfg *config.Config) *Assembler {
	return &Assembler{cfg: cfg}
}

// AssemblyError is an ffmpeg or filesystem failure while stitching audio.
// Unlike a synthesis failure there is no other engine to try, so the run
// aborts.
type AssemblyError struct {
	Op  string
	Err error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assembly %s: %v", e.Op, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// Run synthesizes the narration with the given engine and writes the final
// track to outputDir/narration.mp3. All per-segment and per-conversion
// intermediates live in a scratch directory that is removed on success and
// failure alike.
func (a *Assembler) Run(ctx context.Context, engine voice.Engine, script *types.ProductScript, outputDir string) (*types.AssembledNarration, error) {
	log.Printf("[assemble] Assembling narration via %s...", engine.Name())

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, &AssemblyError{Op: "create output dir", Err: err}
	}
	scratch := filepath.Join(outputDir, "segments")
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return nil, &AssemblyError{Op: "create scratch dir", Err: err}
	}
	defer os.RemoveAll(scratch)

	if a.cfg.Voice.SingleCall {
		return a.assembleSingleCall(ctx, engine, script, scratch, outputDir)
	}
	return a.assemblePerSegment(ctx, engine, script, scratch, outputDir)
}

// assemblePerSegment synthesizes each segment as its own file, measures it,
// and joins everything with short crossfades. Any segment failure aborts the
// whole assembly, there is no partial output to hand downstream.
func (a *Assembler) assemblePerSegment(ctx context.Context, engine voice.Engine, script *types.ProductScript, scratch, outputDir string) (*types.AssembledNarration, error) {
	results, err := a.synthesizeSegments(ctx, engine, script.Narration, scratch)
	if err != nil {
		return nil, err
	}

	files := make([]string, len(results))
	durations := make([]int, len(results))
	total := 0
	estimated := false
	for i, r := range results {
		files[i] = r.AudioFile
		durations[i] = r.DurationMs
		total += r.DurationMs
		if r.Estimated {
			estimated = true
		}
	}

	finalFile := filepath.Join(outputDir, "narration.mp3")
	if err := a.join(ctx, files, scratch, finalFile); err != nil {
		return nil, err
	}

	log.Printf("[assemble] ✅ Narration: %s (total: %.1fs, engine: %s)", finalFile, float64(total)/1000, engine.Name())
	return &types.AssembledNarration{
		AudioFile:          finalFile,
		TotalDurationMs:    total,
		SegmentDurationsMs: durations,
		Engine:             engine.Name(),
		Estimated:          estimated,
	}, nil
}

func (a *Assembler) synthesizeSegments(ctx context.Context, engine voice.Engine, segments []string, scratch string) ([]types.VoiceSegmentResult, error) {
	if a.cfg.Voice.Parallel {
		if batch, ok := engine.(voice.BatchEngine); ok {
			log.Printf("[assemble] Submitting %d segments through one polling loop (%s)...", len(segments), engine.Name())
			return batch.SynthesizeAll(ctx, segments, scratch)
		}
		log.Printf("[assemble] ⚠️ %s has no batch mode, synthesizing sequentially", engine.Name())
	}

	results := make([]types.VoiceSegmentResult, 0, len(segments))
	for i, text := range segments {
		log.Printf("[assemble] Segment %d/%d: synthesizing...", i+1, len(segments))
		outFile := filepath.Join(scratch, fmt.Sprintf("segment_%02d.mp3", i))
		res, err := engine.Synthesize(ctx, text, outFile)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// join decodes the segments to WAV, crossfades them into one waveform, and
// encodes the final mp3, mastering exactly once on the combined track.
// Mastering per segment would process every transition twice, so it never
// happens here. A single segment skips the crossfade entirely.
func (a *Assembler) join(ctx context.Context, files []string, scratch, finalFile string) error {
	rate, ch := a.cfg.Voice.SampleRate, a.cfg.Voice.Channels

	var combined string
	if len(files) == 1 {
		if !a.cfg.Voice.Mastering {
			// Move the lone segment out untouched so its duration stays
			// exactly as measured.
			if err := os.Rename(files[0], finalFile); err != nil {
				return &AssemblyError{Op: "move narration", Err: err}
			}
			return nil
		}
		combined = files[0]
	} else {
		wavs := make([]string, len(files))
		for i, f := range files {
			wav := filepath.Join(scratch, fmt.Sprintf("segment_%02d.wav", i))
			if err := media.ToWAV(ctx, f, wav, rate, ch); err != nil {
				return &AssemblyError{Op: fmt.Sprintf("decode segment %d", i), Err: err}
			}
			wavs[i] = wav
		}
		joined := filepath.Join(scratch, "joined.wav")
		if err := media.CrossfadeJoin(ctx, wavs, joined, crossfadeSec); err != nil {
			return &AssemblyError{Op: "crossfade join", Err: err}
		}
		combined = joined
	}

	if a.cfg.Voice.Mastering {
		if err := media.Master(ctx, combined, finalFile, rate, ch); err != nil {
			return &AssemblyError{Op: "master", Err: err}
		}
		return nil
	}
	if err := media.Encode(ctx, combined, finalFile, rate, ch); err != nil {
		return &AssemblyError{Op: "encode", Err: err}
	}
	return nil
}

// assembleSingleCall reads the whole narration in one synthesis call, which
// paces more naturally than eight separate reads. The one measured total is
// split across segments proportionally to word count, so the per-segment
// numbers are estimates even when the total itself was decoded.
func (a *Assembler) assembleSingleCall(ctx context.Context, engine voice.Engine, script *types.ProductScript, scratch, outputDir string) (*types.AssembledNarration, error) {
	log.Printf("[assemble] Single-call mode: synthesizing full narration...")

	fullText := strings.Join(script.Narration, " ")
	rawFile := filepath.Join(scratch, "narration_full.mp3")
	res, err := engine.Synthesize(ctx, fullText, rawFile)
	if err != nil {
		return nil, err
	}

	finalFile := filepath.Join(outputDir, "narration.mp3")
	if a.cfg.Voice.Mastering {
		if err := media.Master(ctx, res.AudioFile, finalFile, a.cfg.Voice.SampleRate, a.cfg.Voice.Channels); err != nil {
			return nil, &AssemblyError{Op: "master", Err: err}
		}
	} else if err := os.Rename(res.AudioFile, finalFile); err != nil {
		return nil, &AssemblyError{Op: "move narration", Err: err}
	}

	words := make([]int, len(script.Narration))
	for i, seg := range script.Narration {
		words[i] = len(strings.Fields(seg))
	}

	log.Printf("[assemble] ✅ Narration: %s (total: %.1fs, engine: %s, per-segment timing estimated)",
		finalFile, float64(res.DurationMs)/1000, engine.Name())
	return &types.AssembledNarration{
		AudioFile:          finalFile,
		TotalDurationMs:    res.DurationMs,
		SegmentDurationsMs: splitProportional(res.DurationMs, words),
		Engine:             engine.Name(),
		Estimated:          true,
	}, nil
}

// splitProportional divides totalMs across segments in proportion to word
// count. Integer division rounds each share down; the remainder lands on the
// last segment so the parts always sum back to the exact total.
func splitProportional(totalMs int, words []int) []int {
	out := make([]int, len(words))
	if len(words) == 0 {
		return out
	}
	totalWords := 0
	for _, w := range words {
		totalWords += w
	}
	if totalWords == 0 {
		out[len(out)-1] = totalMs
		return out
	}
	acc := 0
	for i := 0; i < len(words)-1; i++ {
		out[i] = totalMs * words[i] / totalWords
		acc += out[i]
	}
	out[len(out)-1] = totalMs - acc
	return out
}

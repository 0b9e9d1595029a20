package schedule

import (
	"log"

	"product-intro-pipeline/config"
	"product-intro-pipeline/types"
)

// Scheduler converts narration timing into per-scene frame counts for the
// renderer. It is pure frame math: measured durations when voice synthesis
// succeeded, word-count weights when it was skipped or failed.
type Scheduler struct {
	cfg *config.Config
}

// New creates a new Scheduler
func New(cfg *config.Config) *Scheduler {
	return &Scheduler{cfg: cfg}
}

// FromDurations builds the schedule from measured per-segment durations.
// Each scene gets its audio length in frames plus the crossfade overlap into
// the next scene (every scene but the last), the silent lead-in (first scene)
// and the closing hold (last scene). Everything is floored at the minimum
// scene length. The total is computed from the raw audio frames, not the
// padded scene list, so the composition can never end before the narration.
func (s *Scheduler) FromDurations(durationsMs []int) types.SceneSchedule {
	t := s.cfg.Timeline

	frames := make([]int, len(durationsMs))
	audioFrames := 0
	for i, ms := range durationsMs {
		f := ceilFrames(ms, t.FPS)
		audioFrames += f

		if i < len(durationsMs)-1 {
			f += t.CrossfadeFrames
		}
		if i == 0 {
			f += t.VoiceDelayFrames
		}
		if i == len(durationsMs)-1 {
			f += t.ClosingHoldFrames
		}
		frames[i] = max(f, t.MinSceneFrames)
	}

	total := t.VoiceDelayFrames + audioFrames + t.ClosingHoldFrames

	log.Printf("[schedule] ✅ %d scenes, %d frames total at %d fps (from measured audio)", len(frames), total, t.FPS)
	return types.SceneSchedule{
		SceneFrames:     frames,
		VoiceStartFrame: t.VoiceDelayFrames,
		TotalFrames:     total,
		FPS:             t.FPS,
		Exact:           true,
	}
}

// FromWeights builds the schedule from word-count weights when no audio
// exists. The renderer reclaims the crossfade overlap from each transition,
// so the distributable budget is the nominal length plus one overlap per
// transition; each scene gets its weight's share, rounded, then floored at
// the minimum. The voice start offset falls back to a fixed fraction of the
// first scene since there is no measured lead-in to anchor it.
func (s *Scheduler) FromWeights(weights []int) types.SceneSchedule {
	t := s.cfg.Timeline

	transitions := len(weights) - 1
	if transitions < 0 {
		transitions = 0
	}
	available := t.NominalTotalFrames + transitions*t.CrossfadeFrames

	sumW := 0
	for _, w := range weights {
		sumW += w
	}

	frames := make([]int, len(weights))
	for i, w := range weights {
		f := 0
		if sumW > 0 {
			f = (w*available + sumW/2) / sumW // round to nearest share
		}
		frames[i] = max(f, t.MinSceneFrames)
	}

	total := -transitions * t.CrossfadeFrames
	for _, f := range frames {
		total += f
	}

	voiceStart := 0
	if len(frames) > 0 {
		voiceStart = frames[0] / 3
	}

	log.Printf("[schedule] ✅ %d scenes, %d frames total at %d fps (weight-based)", len(frames), total, t.FPS)
	return types.SceneSchedule{
		SceneFrames:     frames,
		VoiceStartFrame: voiceStart,
		TotalFrames:     total,
		FPS:             t.FPS,
		Exact:           false,
	}
}

// ceilFrames converts milliseconds to frames, rounding partial frames up so a
// scene never ends before its audio does.
func ceilFrames(ms, fps int) int {
	return (ms*fps + 999) / 1000
}

package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"product-intro-pipeline/config"
	"product-intro-pipeline/types"
)

// Renderer hands the finished timeline to the external video renderer
type Renderer struct {
	cfg *config.Config
}

// New creates a new Renderer
func New(cfg *config.Config) *Renderer {
	return &Renderer{cfg: cfg}
}

// timelineProps is everything the renderer needs, as plain data
type timelineProps struct {
	Template        string          `json:"template"`
	Brand           string          `json:"brand"`
	Tagline         string          `json:"tagline"`
	Features        []types.Feature `json:"features"`
	Integrations    []string        `json:"integrations"`
	Narration       []string        `json:"narration"`
	AudioFile       string          `json:"audio_file,omitempty"`
	Silent          bool            `json:"silent"`
	FPS             int             `json:"fps"`
	SceneFrames     []int           `json:"scene_frames"`
	VoiceStartFrame int             `json:"voice_start_frame"`
	TotalFrames     int             `json:"total_frames"`
	ExactTiming     bool            `json:"exact_timing"`
}

// Run writes timeline.json and invokes the configured render command with
// `--timeline <file> --output <file>` appended. An empty audioFile means the
// video is rendered silent. With no command configured the timeline handoff
// is the final artifact and the video step is skipped.
func (r *Renderer) Run(ctx context.Context, script *types.ProductScript, class *types.Classification, schedule *types.SceneSchedule, audioFile, outputDir string) (string, string, error) {
	log.Println("[render] Writing timeline for the renderer...")

	props := timelineProps{
		Template:        class.TemplateID,
		Brand:           script.Title,
		Tagline:         script.Tagline,
		Features:        script.Features,
		Integrations:    script.Integrations,
		Narration:       script.Narration,
		AudioFile:       audioFile,
		Silent:          audioFile == "",
		FPS:             schedule.FPS,
		SceneFrames:     schedule.SceneFrames,
		VoiceStartFrame: schedule.VoiceStartFrame,
		TotalFrames:     schedule.TotalFrames,
		ExactTiming:     schedule.Exact,
	}

	timelineFile := filepath.Join(outputDir, "timeline.json")
	data, err := json.MarshalIndent(props, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("marshal timeline: %w", err)
	}
	if err := os.WriteFile(timelineFile, data, 0644); err != nil {
		return "", "", fmt.Errorf("write timeline: %w", err)
	}
	log.Printf("[render] ✅ Timeline: %s (%d scenes, %d frames)", timelineFile, len(schedule.SceneFrames), schedule.TotalFrames)

	command := strings.TrimSpace(r.cfg.Render.Command)
	if command == "" {
		log.Println("[render] ⚠️ No render command configured — stopping at the timeline handoff")
		return timelineFile, "", nil
	}

	videoFile := filepath.Join(outputDir, "intro.mp4")
	parts := strings.Fields(command)
	args := append(parts[1:], "--timeline", timelineFile, "--output", videoFile)

	log.Printf("[render] Invoking renderer: %s", command)
	cmd := exec.CommandContext(ctx, parts[0], args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return timelineFile, "", fmt.Errorf("render command: %w", err)
	}
	if _, err := os.Stat(videoFile); err != nil {
		return timelineFile, "", fmt.Errorf("render command produced no output at %s", videoFile)
	}

	log.Printf("[render] ✅ Video: %s", videoFile)
	return timelineFile, videoFile, nil
}

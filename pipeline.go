package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"product-intro-pipeline/01_scrape"
	"product-intro-pipeline/02_classify"
	"product-intro-pipeline/03_script"
	"product-intro-pipeline/04_voice"
	"product-intro-pipeline/05_assemble"
	"product-intro-pipeline/06_schedule"
	"product-intro-pipeline/07_render"
	"product-intro-pipeline/config"
	"product-intro-pipeline/types"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env (local dev only — CI uses injected secrets)
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <product-url>", filepath.Base(os.Args[0]))
	}
	sourceURL := os.Args[1]

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Secrets are read from the environment exactly once; everything below
	// main sees only this snapshot.
	creds := config.ResolveCredentials(cfg)

	for _, dir := range []string{cfg.Paths.Output, cfg.Paths.Logs} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create dir %s: %v", dir, err)
		}
	}

	runID := uuid.NewString()[:8]
	runDir := filepath.Join(cfg.Paths.Output, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		log.Fatalf("Failed to create run dir: %v", err)
	}

	log.Printf("🎬 Product Intro Pipeline starting — Run ID: %s", runID)
	log.Printf("📁 Output dir: %s", runDir)

	ctx := context.Background()
	state := &types.PipelineState{
		RunID:     runID,
		SourceURL: sourceURL,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}

	// Save state on exit
	defer func() {
		state.CompletedAt = time.Now().UTC().Format(time.RFC3339)
		saveState(state, runDir)
		if state.Error != "" {
			log.Printf("❌ Pipeline failed: %s", state.Error)
			os.Exit(1)
		}
		if state.VideoFile != "" {
			log.Printf("✅ Pipeline complete! Video: %s", state.VideoFile)
		} else {
			log.Printf("✅ Pipeline complete! Timeline: %s", state.TimelineFile)
		}
	}()

	// ─────────────────────────────────────────────
	// STAGE 1: Site Scrape
	// ─────────────────────────────────────────────
	log.Println("\n━━━ STAGE 1: Site Scrape ━━━")
	site, err := scrape.New(cfg).Run(ctx, sourceURL)
	if err != nil {
		state.Error = fmt.Sprintf("Stage 1 Scrape: %v", err)
		return
	}
	state.Site = site
	saveJSON(filepath.Join(runDir, "site.json"), site)

	// ─────────────────────────────────────────────
	// STAGE 2: Classification
	// ─────────────────────────────────────────────
	log.Println("\n━━━ STAGE 2: Classification ━━━")
	class := classify.New(cfg).Run(site)
	state.Class = class
	saveJSON(filepath.Join(runDir, "classification.json"), class)

	// ─────────────────────────────────────────────
	// STAGE 3: Script Writing
	// ─────────────────────────────────────────────
	log.Println("\n━━━ STAGE 3: Script Writing ━━━")
	if creds.ScriptAPIKey == "" {
		state.Error = "Stage 3 Script: no model credential (set GROQ_API_KEY or OPENAI_API_KEY)"
		return
	}
	scriptData, err := script.New(cfg, creds).Run(ctx, site, class)
	if err != nil {
		state.Error = fmt.Sprintf("Stage 3 Script: %v", err)
		return
	}
	state.Script = scriptData
	saveJSON(filepath.Join(runDir, "script.json"), scriptData)

	// ─────────────────────────────────────────────
	// STAGE 4: Voice Synthesis & Assembly
	// ─────────────────────────────────────────────
	log.Println("\n━━━ STAGE 4: Voice Synthesis & Assembly ━━━")
	narration := synthesizeNarration(ctx, cfg, creds, scriptData, runDir, state)
	if state.Error != "" {
		return
	}
	if narration != nil {
		state.Narration = narration
		saveJSON(filepath.Join(runDir, "narration.json"), narration)
	}

	// ─────────────────────────────────────────────
	// STAGE 5: Timeline
	// ─────────────────────────────────────────────
	log.Println("\n━━━ STAGE 5: Timeline ━━━")
	scheduler := schedule.New(cfg)
	var sched types.SceneSchedule
	if narration != nil {
		sched = scheduler.FromDurations(narration.SegmentDurationsMs)
	} else {
		sched = scheduler.FromWeights(scriptData.Weights)
	}
	state.Schedule = &sched
	saveJSON(filepath.Join(runDir, "schedule.json"), sched)

	// ─────────────────────────────────────────────
	// STAGE 6: Render Handoff
	// ─────────────────────────────────────────────
	log.Println("\n━━━ STAGE 6: Render Handoff ━━━")
	audioFile := ""
	if narration != nil {
		audioFile = narration.AudioFile
	}
	timelineFile, videoFile, err := render.New(cfg).Run(ctx, scriptData, class, &sched, audioFile, runDir)
	if err != nil {
		state.Error = fmt.Sprintf("Stage 6 Render: %v", err)
		return
	}
	state.TimelineFile = timelineFile
	state.VideoFile = videoFile
}

// synthesizeNarration walks the engine chain until one produces a finished
// track. Engine failures fall through to the next engine; with the chain
// exhausted the run degrades to a silent weight-scheduled video instead of
// aborting. Assembly (ffmpeg) failures and a fully unconfigured engine list
// are fatal and set state.Error.
func synthesizeNarration(ctx context.Context, cfg *config.Config, creds config.Credentials, scriptData *types.ProductScript, runDir string, state *types.PipelineState) *types.AssembledNarration {
	engines, err := voice.Available(cfg, creds)
	if err != nil {
		state.Error = fmt.Sprintf("Stage 4 Voice: %v", err)
		return nil
	}

	asm := assemble.New(cfg)
	audioDir := filepath.Join(runDir, "audio")
	for _, eng := range engines {
		narration, err := asm.Run(ctx, eng, scriptData, audioDir)
		if err == nil {
			return narration
		}
		var synthErr *voice.SynthesisError
		if errors.As(err, &synthErr) {
			log.Printf("⚠️  Engine %s failed: %v — trying next engine", eng.Name(), err)
			continue
		}
		state.Error = fmt.Sprintf("Stage 4 Assembly: %v", err)
		return nil
	}

	log.Printf("⚠️  Every voice engine failed — rendering silent with the weight-based schedule")
	state.Silent = true
	return nil
}

// ─────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────

func saveState(state *types.PipelineState, dir string) {
	saveJSON(filepath.Join(dir, "pipeline_state.json"), state)
}

func saveJSON(path string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("Warning: could not marshal JSON for %s: %v", path, err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Printf("Warning: could not save %s: %v", path, err)
	}
}

package types

// Scene slots in playback order. Every script carries exactly one narration
// segment per slot, so narration index == scene index everywhere downstream.
const (
	SceneBrandReveal = iota
	SceneHook
	SceneWordmark
	SceneFeatureOne
	SceneFeatureTwo
	SceneFeatureThree
	SceneIntegrations
	SceneClosing
)

// SceneCount is the fixed number of scenes (and narration segments) per video.
const SceneCount = 8

// SiteContent holds the flattened text of one scraped marketing page
type SiteContent struct {
	URL          string   `json:"url"`
	BrandName    string   `json:"brand_name"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Headline     string   `json:"headline"`
	Paragraphs   []string `json:"paragraphs"`
	Features     []string `json:"features"`
	Integrations []string `json:"integrations"`
	ScrapedAt    string   `json:"scraped_at"`
}

// Classification labels the product so the renderer can pick a template
type Classification struct {
	Domain     string         `json:"domain"`   // devtool | saas | ecommerce | ai | fintech | generic
	TemplateID string         `json:"template_id"`
	Scores     map[string]int `json:"scores"`
}

// Feature is one marketable capability surfaced in the script
type Feature struct {
	Name   string `json:"name"`
	Detail string `json:"detail"`
}

// ProductScript is the accepted narration script for one video.
// Narration has exactly SceneCount segments; TotalWords sits inside the
// configured word band; Weights carries max(wordCount,2) per segment for the
// silent fallback schedule.
type ProductScript struct {
	Title        string    `json:"title"`
	Tagline      string    `json:"tagline"`
	Features     []Feature `json:"features"`
	Integrations []string  `json:"integrations"`
	Narration    []string  `json:"narration"`
	Weights      []int     `json:"weights"`
	TotalWords   int       `json:"total_words"`
}

// VoiceSegmentResult is one synthesized narration segment on disk
type VoiceSegmentResult struct {
	AudioFile  string `json:"audio_file"`
	DurationMs int    `json:"duration_ms"`
	Estimated  bool   `json:"estimated"` // duration derived from word count, not decoded
}

// AssembledNarration is the single narration track for the whole video.
// SegmentDurationsMs always sums to TotalDurationMs exactly.
type AssembledNarration struct {
	AudioFile          string `json:"audio_file"`
	TotalDurationMs    int    `json:"total_duration_ms"`
	SegmentDurationsMs []int  `json:"segment_durations_ms"`
	Engine             string `json:"engine"`
	Estimated          bool   `json:"estimated"`
}

// SceneSchedule maps narration timing onto renderer frames
type SceneSchedule struct {
	SceneFrames     []int `json:"scene_frames"`
	VoiceStartFrame int   `json:"voice_start_frame"`
	TotalFrames     int   `json:"total_frames"`
	FPS             int   `json:"fps"`
	Exact           bool  `json:"exact"` // frames follow measured audio, not weights
}

// PipelineState tracks the full state of one pipeline run
type PipelineState struct {
	RunID        string              `json:"run_id"`
	SourceURL    string              `json:"source_url"`
	StartedAt    string              `json:"started_at"`
	CompletedAt  string              `json:"completed_at"`
	Site         *SiteContent        `json:"site"`
	Class        *Classification     `json:"classification"`
	Script       *ProductScript      `json:"script"`
	Narration    *AssembledNarration `json:"narration"`
	Schedule     *SceneSchedule      `json:"schedule"`
	TimelineFile string              `json:"timeline_file"`
	VideoFile    string              `json:"video_file"`
	Silent       bool                `json:"silent"` // narration degraded to a weight-scheduled silent video
	Error        string              `json:"error,omitempty"`
}

package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Scrape   ScrapeConfig   `yaml:"scrape"`
	Script   ScriptConfig   `yaml:"script"`
	Voice    VoiceConfig    `yaml:"voice"`
	Timeline TimelineConfig `yaml:"timeline"`
	Render   RenderConfig   `yaml:"render"`
	Paths    PathsConfig    `yaml:"paths"`
}

type ScrapeConfig struct {
	TimeoutSec    int    `yaml:"timeout_sec"`
	UserAgent     string `yaml:"user_agent"`
	MaxParagraphs int    `yaml:"max_paragraphs"`
}

type ScriptConfig struct {
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float64 `yaml:"temperature"`
	WordFloor   int     `yaml:"word_floor"`
	WordCeiling int     `yaml:"word_ceiling"`
	MaxAttempts int     `yaml:"max_attempts"`
}

type VoiceConfig struct {
	Engine           string   `yaml:"engine"` // auto | elevenlabs | openai | google | replicate | spaces
	VoiceID          string   `yaml:"voice_id"`
	SampleRate       int      `yaml:"sample_rate"`
	Channels         int      `yaml:"channels"`
	Mastering        bool     `yaml:"mastering"`
	SingleCall       bool     `yaml:"single_call"`
	Parallel         bool     `yaml:"parallel"`
	ReplicateVersion string   `yaml:"replicate_version"`
	SpaceEndpoints   []string `yaml:"space_endpoints"`
}

type TimelineConfig struct {
	FPS                int `yaml:"fps"`
	MinSceneFrames     int `yaml:"min_scene_frames"`
	CrossfadeFrames    int `yaml:"crossfade_frames"`
	VoiceDelayFrames   int `yaml:"voice_delay_frames"`
	ClosingHoldFrames  int `yaml:"closing_hold_frames"`
	NominalTotalFrames int `yaml:"nominal_total_frames"`
}

type RenderConfig struct {
	Command string `yaml:"command"`
}

type PathsConfig struct {
	Output string `yaml:"output"`
	Logs   string `yaml:"logs"`
}

// Load reads config.yaml and returns a Config struct
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Credentials holds every secret the pipeline can use, resolved from the
// environment exactly once in main. Nothing below main reads the environment,
// so engine availability is a pure function of this struct.
type Credentials struct {
	ScriptAPIKey       string
	ElevenLabsKey      string
	OpenAIKey          string
	GoogleAPIKey       string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRefreshToken string
	ReplicateToken     string
	SpaceEndpoints     []string
}

// ResolveCredentials snapshots all engine secrets. The script key prefers
// GROQ_API_KEY (OpenAI-compatible endpoint) and falls back to OPENAI_API_KEY.
// Space endpoints come from config.yaml; a non-empty list is what counts as
// the "credential" for the community backend.
func ResolveCredentials(cfg *Config) Credentials {
	scriptKey := os.Getenv("GROQ_API_KEY")
	if scriptKey == "" {
		scriptKey = os.Getenv("OPENAI_API_KEY")
	}
	return Credentials{
		ScriptAPIKey:       scriptKey,
		ElevenLabsKey:      os.Getenv("ELEVENLABS_API_KEY"),
		OpenAIKey:          os.Getenv("OPENAI_API_KEY"),
		GoogleAPIKey:       os.Getenv("GOOGLE_TTS_API_KEY"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRefreshToken: os.Getenv("GOOGLE_REFRESH_TOKEN"),
		ReplicateToken:     os.Getenv("REPLICATE_API_TOKEN"),
		SpaceEndpoints:     cfg.Voice.SpaceEndpoints,
	}
}

// HasGoogle reports whether either Google auth path is fully configured
func (c Credentials) HasGoogle() bool {
	if c.GoogleAPIKey != "" {
		return true
	}
	return c.GoogleClientID != "" && c.GoogleClientSecret != "" && c.GoogleRefreshToken != ""
}

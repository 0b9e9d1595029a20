package voice

import (
	"errors"
	"testing"

	"product-intro-pipeline/config"
)

func chainNames(t *testing.T, cfg *config.Config, creds config.Credentials) []string {
	t.Helper()
	chain, err := Available(cfg, creds)
	if err != nil {
		t.Fatalf("Available: %v", err)
	}
	names := make([]string, len(chain))
	for i, e := range chain {
		names[i] = e.Name()
	}
	return names
}

func TestAvailableFollowsPriorityOrder(t *testing.T) {
	cfg := &config.Config{}
	creds := config.Credentials{
		ElevenLabsKey:  "k1",
		ReplicateToken: "k2",
		SpaceEndpoints: []string{"http://example.test/tts"},
	}

	got := chainNames(t, cfg, creds)
	want := []string{"elevenlabs", "replicate", "spaces"}
	if len(got) != len(want) {
		t.Fatalf("chain = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("chain = %v, want %v", got, want)
		}
	}
}

func TestAvailablePutsRequestedEngineFirst(t *testing.T) {
	cfg := &config.Config{}
	cfg.Voice.Engine = "replicate"
	creds := config.Credentials{
		ElevenLabsKey:  "k1",
		ReplicateToken: "k2",
	}

	got := chainNames(t, cfg, creds)
	if got[0] != "replicate" {
		t.Fatalf("requested engine not first: %v", got)
	}
	if len(got) != 2 || got[1] != "elevenlabs" {
		t.Fatalf("fallbacks wrong: %v", got)
	}
}

func TestAvailableRequestedEngineNeedsItsCredential(t *testing.T) {
	cfg := &config.Config{}
	cfg.Voice.Engine = "google"
	creds := config.Credentials{ElevenLabsKey: "k1"}

	_, err := Available(cfg, creds)
	if err == nil {
		t.Fatal("expected a configuration error")
	}
	if !errors.Is(err, ErrNoEngine) {
		t.Fatalf("expected ErrNoEngine, got %v", err)
	}
}

func TestAvailableNoCredentialsAtAll(t *testing.T) {
	_, err := Available(&config.Config{}, config.Credentials{})
	if !errors.Is(err, ErrNoEngine) {
		t.Fatalf("expected ErrNoEngine, got %v", err)
	}
}

func TestAvailableGoogleCredentialPaths(t *testing.T) {
	tests := []struct {
		name  string
		creds config.Credentials
		want  bool
	}{
		{"api key", config.Credentials{GoogleAPIKey: "k"}, true},
		{"oauth triple", config.Credentials{GoogleClientID: "id", GoogleClientSecret: "s", GoogleRefreshToken: "r"}, true},
		{"partial triple", config.Credentials{GoogleClientID: "id"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, err := Available(&config.Config{}, tt.creds)
			if tt.want {
				if err != nil {
					t.Fatalf("Available: %v", err)
				}
				if len(chain) != 1 || chain[0].Name() != "google" {
					t.Fatalf("chain = %v", chain)
				}
				return
			}
			if !errors.Is(err, ErrNoEngine) {
				t.Fatalf("expected ErrNoEngine, got %v", err)
			}
		})
	}
}

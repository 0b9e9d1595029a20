package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"product-intro-pipeline/config"
)

const landingPage = `<!DOCTYPE html>
<html>
<head>
<title>Orbit | Team Workspace</title>
<meta name="description" content="Orbit keeps every plan, doc and decision in one place.">
<meta property="og:site_name" content="Orbit">
</head>
<body>
<svg><path d="M0 0 L10 10"/></svg>
<h1>The workspace your <strong>team</strong> actually wants</h1>
<p>Orbit brings plans, docs and decisions together so your team stops losing work in chat threads and scattered files.</p>
<p>Short.</p>
<p>Built for modern product teams, Orbit keeps everyone aligned without another standup on the calendar.</p>
<ul>
<li>Real-time collaborative editing</li>
<li>Instant full-text search</li>
<li>Workflow automations</li>
<li>x</li>
</ul>
<h2>Works with Slack, GitHub and Figma</h2>
<p>Connect Orbit to Slack, GitHub, Figma and Zapier in two clicks without leaving your browser.</p>
</body>
</html>`

func testConfig() *config.Config {
	return &config.Config{}
}

func TestRunExtractsLandingPageContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("request should carry a User-Agent")
		}
		w.Write([]byte(landingPage))
	}))
	defer srv.Close()

	content, err := New(testConfig()).Run(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if content.BrandName != "Orbit" {
		t.Errorf("BrandName = %q, want og:site_name %q", content.BrandName, "Orbit")
	}
	if content.Title != "Orbit | Team Workspace" {
		t.Errorf("Title = %q", content.Title)
	}
	if !strings.Contains(content.Description, "one place") {
		t.Errorf("Description = %q, want the meta description", content.Description)
	}
	if content.Headline != "The workspace your team actually wants" {
		t.Errorf("Headline = %q, want the h1 with inner markup stripped", content.Headline)
	}
	if len(content.Paragraphs) != 3 {
		t.Fatalf("got %d paragraphs, want 3 (the short one filtered out)", len(content.Paragraphs))
	}
	for _, p := range content.Paragraphs {
		if p == "Short." {
			t.Error("paragraphs below the length cutoff should be dropped")
		}
	}

	wantFeature := "Real-time collaborative editing"
	found := false
	for _, f := range content.Features {
		if f == wantFeature {
			found = true
		}
		if f == "x" {
			t.Error("single-word list items are not feature candidates")
		}
	}
	if !found {
		t.Errorf("Features = %v, want to include %q", content.Features, wantFeature)
	}

	for _, want := range []string{"Slack", "GitHub", "Figma", "Zapier"} {
		if !containsString(content.Integrations, want) {
			t.Errorf("Integrations = %v, want to include %q", content.Integrations, want)
		}
	}
}

func TestRunRejectsPageWithNoText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><script>var x = 1;</script></body></html>`))
	}))
	defer srv.Close()

	_, err := New(testConfig()).Run(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected an error for a page with no usable text")
	}
	if !strings.Contains(err.Error(), "no usable text") {
		t.Errorf("error = %v, want it to say the page was empty", err)
	}
}

func TestRunFailsOnHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := New(testConfig()).Run(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected an error on 404")
	}
	if !strings.Contains(err.Error(), "status 404") {
		t.Errorf("error = %v, want the status code in the message", err)
	}
}

func TestBrandFromHostFallback(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"www.acme.io", "Acme"},
		{"tool.co", "Tool"},
		{"getorbit.com", "Getorbit"},
	}
	for _, tt := range tests {
		if got := brandFromPage("<html></html>", tt.host); got != tt.want {
			t.Errorf("brandFromPage(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestCollectTextsIgnoresLookalikeTags(t *testing.T) {
	page := `<svg><path d="M0 0"/></svg><p>The only real paragraph on this page, long enough to pass the filter.</p>`
	got := collectTexts(page, "p", 5, 40)
	if len(got) != 1 {
		t.Fatalf("got %d texts, want 1 (path must not match p)", len(got))
	}
	if !strings.Contains(got[0], "real paragraph") {
		t.Errorf("got %q", got[0])
	}
}

func TestFindIntegrationsUsesDisplayNames(t *testing.T) {
	got := findIntegrations(`we sync with github, hubspot and microsoft teams`)
	for _, want := range []string{"GitHub", "HubSpot", "Microsoft Teams"} {
		if !containsString(got, want) {
			t.Errorf("integrations = %v, want %q", got, want)
		}
	}
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

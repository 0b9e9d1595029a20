package scrape

import (
	"context"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"product-intro-pipeline/config"
	"product-intro-pipeline/types"
)

// integrationNames are tools worth calling out when a landing page mentions
// them. Matching is lowercase substring over the page text; the display form
// is what ends up in the script prompt.
var integrationNames = []struct{ match, display string }{
	{"slack", "Slack"}, {"zoom", "Zoom"}, {"jira", "Jira"},
	{"github", "GitHub"}, {"gitlab", "GitLab"}, {"notion", "Notion"},
	{"google drive", "Google Drive"}, {"dropbox", "Dropbox"},
	{"salesforce", "Salesforce"}, {"hubspot", "HubSpot"},
	{"zapier", "Zapier"}, {"figma", "Figma"}, {"trello", "Trello"},
	{"asana", "Asana"}, {"shopify", "Shopify"}, {"stripe", "Stripe"},
	{"intercom", "Intercom"}, {"segment", "Segment"},
	{"discord", "Discord"}, {"microsoft teams", "Microsoft Teams"},
}

// Scraper fetches a product site and reduces it to script-ready content
type Scraper struct {
	cfg        *config.Config
	httpClient *http.Client
}

// New creates a new Scraper
func New(cfg *config.Config) *Scraper {
	timeout := time.Duration(cfg.Scrape.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Scraper{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Run fetches the landing page and extracts everything the script writer
// needs: title, description, headline, body copy, feature candidates and
// mentioned integrations. A page with no usable text is an error; nothing
// downstream can work without content.
func (s *Scraper) Run(ctx context.Context, rawURL string) (*types.SiteContent, error) {
	log.Printf("[scrape] Fetching %s...", rawURL)

	pageURL, err := normalizeURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, _ := http.NewRequestWithContext(ctx, "GET", pageURL.String(), nil)
	ua := s.cfg.Scrape.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (compatible; ProductIntroPipeline/1.0)"
	}
	req.Header.Set("User-Agent", ua)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL.Host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL.Host, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}
	page := string(body)

	maxParagraphs := s.cfg.Scrape.MaxParagraphs
	if maxParagraphs <= 0 {
		maxParagraphs = 12
	}

	content := &types.SiteContent{
		URL:          pageURL.String(),
		BrandName:    brandFromPage(page, pageURL.Host),
		Title:        firstTagText(page, "title"),
		Description:  metaContent(page, "name", "description"),
		Headline:     firstTagText(page, "h1"),
		Paragraphs:   collectTexts(page, "p", maxParagraphs, 40),
		Features:     collectFeatures(page, 10),
		Integrations: findIntegrations(page),
		ScrapedAt:    time.Now().Format(time.RFC3339),
	}

	if content.Title == "" && content.Headline == "" && len(content.Paragraphs) == 0 {
		return nil, fmt.Errorf("page %s yielded no usable text", pageURL.Host)
	}

	log.Printf("[scrape] ✅ %s: %d paragraphs, %d feature candidates, %d integrations",
		content.BrandName, len(content.Paragraphs), len(content.Features), len(content.Integrations))
	return content, nil
}

func normalizeURL(raw string) (*url.URL, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("bad url %q: %w", raw, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("bad url %q: no host", raw)
	}
	return u, nil
}

// brandFromPage prefers the site's own og:site_name and falls back to the
// first label of the host name.
func brandFromPage(page, host string) string {
	if name := metaContent(page, "property", "og:site_name"); name != "" {
		return name
	}
	host = strings.TrimPrefix(host, "www.")
	if i := strings.Index(host, "."); i > 0 {
		host = host[:i]
	}
	if host == "" {
		return host
	}
	return strings.ToUpper(host[:1]) + host[1:]
}

func firstTagText(page, tag string) string {
	texts := collectTexts(page, tag, 1, 0)
	if len(texts) == 0 {
		return ""
	}
	return texts[0]
}

// collectTexts pulls the inner text of up to limit <tag> elements, skipping
// entries shorter than minLen characters. Plain string slicing is enough here,
// landing pages do not need a real HTML tree.
func collectTexts(page, tag string, limit, minLen int) []string {
	lower := strings.ToLower(page)
	open := "<" + tag
	closing := "</" + tag
	var out []string

	pos := 0
	for len(out) < limit {
		start := strings.Index(lower[pos:], open)
		if start == -1 {
			break
		}
		start += pos
		// "<p" must not match "<path"
		after := start + len(open)
		if after >= len(lower) {
			break
		}
		if c := lower[after]; c != '>' && c != ' ' && c != '\t' && c != '\n' && c != '/' {
			pos = after
			continue
		}
		gt := strings.Index(lower[start:], ">")
		if gt == -1 {
			break
		}
		contentStart := start + gt + 1
		end := strings.Index(lower[contentStart:], closing)
		if end == -1 {
			break
		}
		text := stripTags(page[contentStart : contentStart+end])
		pos = contentStart + end + len(closing)
		if text != "" && len(text) >= minLen {
			out = append(out, text)
		}
	}
	return out
}

// stripTags removes markup from an HTML fragment and collapses whitespace
func stripTags(fragment string) string {
	var b strings.Builder
	inTag := false
	for _, r := range fragment {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(html.UnescapeString(b.String())), " ")
}

// metaContent finds a <meta attr="val" ...> tag and returns its content
// attribute, tolerating either attribute order and either quote style.
func metaContent(page, attr, val string) string {
	lower := strings.ToLower(page)
	pos := 0
	for {
		start := strings.Index(lower[pos:], "<meta")
		if start == -1 {
			return ""
		}
		start += pos
		end := strings.Index(lower[start:], ">")
		if end == -1 {
			return ""
		}
		tag := page[start : start+end]
		pos = start + end

		tagLower := strings.ToLower(tag)
		if strings.Contains(tagLower, attr+`="`+val+`"`) || strings.Contains(tagLower, attr+`='`+val+`'`) {
			return attrValue(tag, "content")
		}
	}
}

// attrValue extracts attr="..." (or single-quoted) from one tag's text
func attrValue(tag, attr string) string {
	lower := strings.ToLower(tag)
	idx := strings.Index(lower, attr+"=")
	if idx == -1 {
		return ""
	}
	rest := tag[idx+len(attr)+1:]
	if rest == "" {
		return ""
	}
	quote := rest[0]
	if quote != '"' && quote != '\'' {
		return ""
	}
	rest = rest[1:]
	end := strings.IndexByte(rest, quote)
	if end == -1 {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(rest[:end]))
}

// collectFeatures gathers feature-ish copy: list items and subheadings of
// plausible length. Landing pages put their selling points in exactly these
// spots.
func collectFeatures(page string, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tag := range []string{"li", "h2", "h3"} {
		for _, text := range collectTexts(page, tag, limit*3, 0) {
			words := len(strings.Fields(text))
			if words < 2 || words > 16 || len(text) > 140 {
				continue
			}
			key := strings.ToLower(text)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, text)
			if len(out) >= limit {
				return out
			}
		}
	}
	return out
}

// findIntegrations scans the page for tools the product claims to connect to
func findIntegrations(page string) []string {
	text := strings.ToLower(stripTags(page))
	var found []string
	for _, n := range integrationNames {
		if strings.Contains(text, n.match) {
			found = append(found, n.display)
		}
	}
	return found
}

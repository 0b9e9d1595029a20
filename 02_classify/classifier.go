package classify

import (
	"log"
	"sort"
	"strings"

	"product-intro-pipeline/config"
	"product-intro-pipeline/types"
)

// domainKeywords score a product into a template domain. Single words must
// match a whole token ("ai" must not hit "email"); phrases match as
// substrings and count double because they are a much stronger signal.
var domainKeywords = map[string][]string{
	"devtool": {
		"api", "sdk", "cli", "deploy", "deployment", "pipeline", "repository",
		"open source", "developer", "terminal", "docker", "kubernetes",
		"observability", "debugging", "github", "gitlab",
	},
	"saas": {
		"workspace", "collaboration", "workflow", "dashboard", "productivity",
		"project management", "automation", "crm", "onboarding", "meetings",
		"docs", "knowledge base",
	},
	"ecommerce": {
		"checkout", "storefront", "cart", "shipping", "inventory", "merchants",
		"catalog", "conversion", "dropshipping", "online store",
	},
	"ai": {
		"ai", "machine learning", "llm", "model", "copilot", "generative",
		"neural", "inference", "prompt", "agents", "transcription",
	},
	"fintech": {
		"banking", "invoices", "payroll", "ledger", "compliance", "lending",
		"treasury", "expense", "accounting", "payments", "payouts",
	},
}

// domainTemplates maps a winning domain to the render template for it
var domainTemplates = map[string]string{
	"devtool":   "terminal_dark",
	"saas":      "clean_gradient",
	"ecommerce": "product_grid",
	"ai":        "neon_wave",
	"fintech":   "ledger_light",
	"generic":   "clean_gradient",
}

// Classifier labels scraped content with a product domain and template
type Classifier struct {
	cfg *config.Config
}

// New creates a new Classifier
func New(cfg *config.Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Run scores the page text against every domain's keyword list and picks the
// highest scorer. A page that matches nothing lands on "generic" so the
// renderer always has a template to work with.
func (c *Classifier) Run(site *types.SiteContent) *types.Classification {
	text := pageText(site)
	tokens := tokenize(text)

	scores := make(map[string]int)
	for domain, keywords := range domainKeywords {
		for _, kw := range keywords {
			if strings.Contains(kw, " ") {
				if strings.Contains(text, kw) {
					scores[domain] += 2
				}
			} else if tokens[kw] {
				scores[domain]++
			}
		}
	}

	domain := "generic"
	best := 0
	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic tie-break
	for _, name := range names {
		if scores[name] > best {
			best = scores[name]
			domain = name
		}
	}

	class := &types.Classification{
		Domain:     domain,
		TemplateID: domainTemplates[domain],
		Scores:     scores,
	}
	log.Printf("[classify] ✅ Domain: %s (score %d) → template %s", domain, best, class.TemplateID)
	return class
}

func pageText(site *types.SiteContent) string {
	parts := []string{site.Title, site.Description, site.Headline}
	parts = append(parts, site.Paragraphs...)
	parts = append(parts, site.Features...)
	parts = append(parts, site.Integrations...)
	return strings.ToLower(strings.Join(parts, " "))
}

// tokenize builds a set of words with surrounding punctuation trimmed
func tokenize(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, f := range strings.Fields(text) {
		f = strings.Trim(f, ".,;:!?()[]\"'")
		if f != "" {
			tokens[f] = true
		}
	}
	return tokens
}

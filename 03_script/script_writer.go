package script

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"product-intro-pipeline/config"
	"product-intro-pipeline/types"
)

const systemPrompt = `You are a copywriter for short product-intro videos. You turn a product's website content into a tight narration script read over an 8-scene motion-graphics template.

You MUST respond with ONLY valid JSON — no preamble, no markdown, no explanation.

The JSON object must have:
- "title": the product name
- "tagline": one line, max 8 words
- "features": array of EXACTLY 3 objects {"name": "...", "detail": "..."}
- "integrations": array of 1-6 tool names the product works with
- "narration": array of EXACTLY 8 strings, one per scene, in this order:
  1. brand reveal — name the product, one punchy opener
  2. hook — the problem it solves, spoken to the viewer
  3. wordmark — the tagline moment, short
  4. feature one — first capability, concrete benefit
  5. feature two — second capability, concrete benefit
  6. feature three — third capability, concrete benefit
  7. integrations — how it fits the viewer's existing tools
  8. closing — call to action, end on the product name

Narration rules:
- Spoken register. Short sentences. No bullet fragments, no emoji, no quotes.
- Every scene gets at least one full sentence.
- TOTAL narration length across all 8 scenes MUST land between the word floor and word ceiling given by the user. Count every word.`

// Writer turns scraped site content into an accepted narration script.
// A script is accepted only when it carries exactly one segment per scene
// slot and its total word count sits inside the configured band.
type Writer struct {
	cfg *config.Config
	llm completer
}

// completer is the single outbound model call; tests swap in a scripted fake
type completer interface {
	complete(ctx context.Context, system, user string) (string, error)
}

// New creates a script Writer backed by an OpenAI-compatible chat endpoint.
// A Groq key works by pointing base_url at Groq's /openai/v1 path.
func New(cfg *config.Config, creds config.Credentials) *Writer {
	opts := []option.RequestOption{option.WithAPIKey(creds.ScriptAPIKey)}
	if cfg.Script.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.Script.BaseURL))
	}
	return &Writer{
		cfg: cfg,
		llm: &openaiCompleter{
			client:      openai.NewClient(opts...),
			model:       cfg.Script.Model,
			temperature: cfg.Script.Temperature,
		},
	}
}

type openaiCompleter struct {
	client      openai.Client
	model       string
	temperature float64
}

func (o *openaiCompleter) complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 90*time.Second)
	defer cancel()

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:       o.model,
		Temperature: openai.Float(o.temperature),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerationError reports a script run that exhausted its attempt budget
type GenerationError struct {
	Attempts int
	Reason   string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("script generation failed after %d attempts: %s", e.Attempts, e.Reason)
}

// scriptJSON is the raw JSON structure returned by the model
type scriptJSON struct {
	Title        string        `json:"title"`
	Tagline      string        `json:"tagline"`
	Features     []featureJSON `json:"features"`
	Integrations []string      `json:"integrations"`
	Narration    []string      `json:"narration"`
}

type featureJSON struct {
	Name   string `json:"name"`
	Detail string `json:"detail"`
}

// Run generates a narration script from scraped site content. Each rejected
// attempt feeds the violated constraint back into the next prompt; the final
// attempt is normalized locally instead of burning another model call.
func (w *Writer) Run(ctx context.Context, site *types.SiteContent, class *types.Classification) (*types.ProductScript, error) {
	log.Println("[script] Generating narration script...")

	attempts := w.cfg.Script.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	floor, ceiling := w.cfg.Script.WordFloor, w.cfg.Script.WordCeiling

	var lastViolation string
	for attempt := 1; attempt <= attempts; attempt++ {
		user := buildUserPrompt(site, class, floor, ceiling)
		if attempt > 1 && lastViolation != "" {
			user += "\n\nYOUR PREVIOUS ATTEMPT WAS REJECTED: " + lastViolation +
				"\nFix exactly that. Keep everything else the same."
		}

		content, err := w.llm.complete(ctx, systemPrompt, user)
		if err != nil {
			lastViolation = fmt.Sprintf("model call failed: %v", err)
			log.Printf("[script] Attempt %d/%d failed: %v", attempt, attempts, err)
			continue
		}

		raw, err := parseScript(content)
		if err != nil {
			lastViolation = err.Error()
			log.Printf("[script] Attempt %d/%d rejected: %v", attempt, attempts, err)
			continue
		}

		if err := validateStructure(raw); err != nil {
			lastViolation = err.Error()
			log.Printf("[script] Attempt %d/%d rejected: %v", attempt, attempts, err)
			continue
		}

		script := convertScript(raw)
		if script.TotalWords < floor || script.TotalWords > ceiling {
			if attempt < attempts {
				lastViolation = fmt.Sprintf("total narration is %d words, must be between %d and %d", script.TotalWords, floor, ceiling)
				log.Printf("[script] Attempt %d/%d rejected: %s", attempt, attempts, lastViolation)
				continue
			}
			normalizeLength(script, floor, ceiling)
			if script.TotalWords < floor || script.TotalWords > ceiling {
				return nil, &GenerationError{
					Attempts: attempts,
					Reason:   fmt.Sprintf("narration stuck at %d words after local normalization", script.TotalWords),
				}
			}
			log.Printf("[script] ⚠️ Final attempt out of band — normalized locally to %d words", script.TotalWords)
		}

		log.Printf("[script] ✅ Script ready: %d segments, %d words", len(script.Narration), script.TotalWords)
		return script, nil
	}

	return nil, &GenerationError{Attempts: attempts, Reason: lastViolation}
}

func buildUserPrompt(site *types.SiteContent, class *types.Classification, floor, ceiling int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Write the 8-scene narration. TOTAL words across all scenes: between %d and %d.\n\n", floor, ceiling))
	sb.WriteString(fmt.Sprintf("PRODUCT: %s\n", site.BrandName))
	sb.WriteString(fmt.Sprintf("WEBSITE: %s\n", site.URL))
	if class != nil {
		sb.WriteString(fmt.Sprintf("CATEGORY: %s\n", class.Domain))
	}
	sb.WriteString(fmt.Sprintf("PAGE TITLE: %s\n", site.Title))
	if site.Headline != "" {
		sb.WriteString(fmt.Sprintf("HEADLINE: %s\n", site.Headline))
	}
	if site.Description != "" {
		sb.WriteString(fmt.Sprintf("DESCRIPTION: %s\n", site.Description))
	}
	if len(site.Paragraphs) > 0 {
		sb.WriteString("\nPAGE CONTENT:\n")
		for _, p := range site.Paragraphs {
			sb.WriteString("- " + p + "\n")
		}
	}
	if len(site.Features) > 0 {
		sb.WriteString("\nFEATURE CANDIDATES (pick the 3 strongest):\n")
		for _, f := range site.Features {
			sb.WriteString("- " + f + "\n")
		}
	}
	if len(site.Integrations) > 0 {
		sb.WriteString("\nINTEGRATIONS FOUND ON PAGE:\n")
		for _, name := range site.Integrations {
			sb.WriteString("- " + name + "\n")
		}
	}
	sb.WriteString("\nRespond ONLY with valid JSON. No markdown. No explanation.")
	return sb.String()
}

func parseScript(content string) (*scriptJSON, error) {
	content = cleanJSON(content)
	var raw scriptJSON
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w (raw: %s)", err, content[:min(200, len(content))])
	}
	return &raw, nil
}

func validateStructure(raw *scriptJSON) error {
	if strings.TrimSpace(raw.Title) == "" {
		return fmt.Errorf(`"title" is missing or empty`)
	}
	if strings.TrimSpace(raw.Tagline) == "" {
		return fmt.Errorf(`"tagline" is missing or empty`)
	}
	if len(raw.Features) != 3 {
		return fmt.Errorf(`"features" must have exactly 3 entries, got %d`, len(raw.Features))
	}
	for i, f := range raw.Features {
		if strings.TrimSpace(f.Name) == "" || strings.TrimSpace(f.Detail) == "" {
			return fmt.Errorf(`feature %d is missing "name" or "detail"`, i+1)
		}
	}
	if len(raw.Integrations) == 0 {
		return fmt.Errorf(`"integrations" must have at least 1 entry`)
	}
	for i, name := range raw.Integrations {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("integration %d is empty", i+1)
		}
	}
	if len(raw.Narration) != types.SceneCount {
		return fmt.Errorf(`"narration" must have exactly %d segments, got %d`, types.SceneCount, len(raw.Narration))
	}
	for i, seg := range raw.Narration {
		if strings.TrimSpace(seg) == "" {
			return fmt.Errorf("narration segment %d is empty", i+1)
		}
	}
	return nil
}

func convertScript(raw *scriptJSON) *types.ProductScript {
	script := &types.ProductScript{
		Title:        strings.TrimSpace(raw.Title),
		Tagline:      strings.TrimSpace(raw.Tagline),
		Integrations: raw.Integrations,
	}
	for _, f := range raw.Features {
		script.Features = append(script.Features, types.Feature{
			Name:   strings.TrimSpace(f.Name),
			Detail: strings.TrimSpace(f.Detail),
		})
	}
	for _, seg := range raw.Narration {
		script.Narration = append(script.Narration, strings.TrimSpace(seg))
	}
	recount(script)
	return script
}

// recount refreshes TotalWords and the per-segment pacing weights.
// Weights floor at 2 so a near-empty segment still gets visible screen time
// in the silent fallback schedule.
func recount(s *types.ProductScript) {
	s.TotalWords = 0
	s.Weights = make([]int, len(s.Narration))
	for i, seg := range s.Narration {
		n := len(strings.Fields(seg))
		s.TotalWords += n
		if n < 2 {
			n = 2
		}
		s.Weights[i] = n
	}
}

// segmentWordCap is the harsh per-segment cut used when the final attempt
// overshoots the ceiling: 8 capped segments land at 136 words, inside the band.
const segmentWordCap = 17

// boosterCycleCap bounds the padding loop when the final attempt undershoots
const boosterCycleCap = 20

// boosterSentences pad thin feature/integration segments. Generic on purpose:
// they must read naturally after any product sentence.
var boosterSentences = []string{
	"It fits right into the way your team already works.",
	"Setup takes minutes, not days.",
	"Everything stays fast as you scale.",
	"No manual steps, no surprises.",
}

// normalizeLength pulls an out-of-band final attempt into the word band
// without another model call. Overshoot is cut first; a truncated script can
// land under the floor, so boosting always runs after.
func normalizeLength(s *types.ProductScript, floor, ceiling int) {
	if s.TotalWords > ceiling {
		for i, seg := range s.Narration {
			words := strings.Fields(seg)
			if len(words) <= segmentWordCap {
				continue
			}
			cut := strings.Join(words[:segmentWordCap], " ")
			s.Narration[i] = strings.TrimRight(cut, ",;:.!?") + "."
		}
		recount(s)
	}

	for i := 0; s.TotalWords < floor && i < boosterCycleCap; i++ {
		seg := types.SceneFeatureOne + i%4 // cycles the three feature scenes plus integrations
		s.Narration[seg] = s.Narration[seg] + " " + boosterSentences[i%len(boosterSentences)]
		recount(s)
	}
}

// cleanJSON strips markdown fences if the model wraps its response in ```json ... ```
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"product-intro-pipeline/config"
	"product-intro-pipeline/media"
	"product-intro-pipeline/types"
)

const (
	replicateBaseURL = "https://api.replicate.com"

	// defaultReplicateModel is used when no pinned version is configured;
	// it goes through the models route instead of /v1/predictions.
	defaultReplicateModel = "minimax/speech-02-turbo"

	replicateMaxPolls  = 90 // hard bound for the whole pending set
	replicatePollEvery = 2 * time.Second
	replicateSubmitGap = 350 * time.Millisecond
	replicate429Tries  = 3
)

// Replicate is the async job engine: every chunk becomes a prediction that
// has to be polled to a terminal state. Text above the chunk ceiling is
// split at sentence boundaries and the pieces stitched back afterwards.
type Replicate struct {
	token            string
	version          string
	voiceID          string
	baseURL          string
	httpClient       *http.Client
	pollInterval     time.Duration
	submitGap        time.Duration
	maxPolls         int
	rateLimitTries   int
	rateLimitBackoff time.Duration
}

func newReplicate(cfg *config.Config, creds config.Credentials) *Replicate {
	return &Replicate{
		token:            creds.ReplicateToken,
		version:          cfg.Voice.ReplicateVersion,
		voiceID:          cfg.Voice.VoiceID,
		baseURL:          replicateBaseURL,
		httpClient:       &http.Client{Timeout: 60 * time.Second},
		pollInterval:     replicatePollEvery,
		submitGap:        replicateSubmitGap,
		maxPolls:         replicateMaxPolls,
		rateLimitTries:   replicate429Tries,
		rateLimitBackoff: time.Second,
	}
}

func (r *Replicate) Name() string { return "replicate" }

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

type replicateJob struct {
	segIndex  int // narration segment this chunk belongs to
	id        string
	status    string
	outputURL string
	errMsg    string
	fetchErrs int
	chunkFile string
}

func (j *replicateJob) terminal() bool {
	return j.status == "succeeded" || j.status == "failed" || j.status == "canceled"
}

func (j *replicateJob) update(p *prediction) {
	j.status = p.Status
	j.errMsg = p.Error
	if url, err := audioURL(p.Output); err == nil {
		j.outputURL = url
	}
}

// audioURL pulls the result URL out of a prediction's output, which models
// return as either one URL or a list of URLs.
func audioURL(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("no output")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		return s, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0], nil
	}
	return "", fmt.Errorf("unrecognized output shape: %.80s", string(raw))
}

func (r *Replicate) Synthesize(ctx context.Context, text, outFile string) (types.VoiceSegmentResult, error) {
	results, err := r.run(ctx, []string{text}, []string{outFile})
	if err != nil {
		return types.VoiceSegmentResult{}, err
	}
	return results[0], nil
}

// SynthesizeAll pushes every segment through one shared polling loop:
// sequential spaced submissions, then a single loop over the pending set.
func (r *Replicate) SynthesizeAll(ctx context.Context, texts []string, outDir string) ([]types.VoiceSegmentResult, error) {
	outFiles := make([]string, len(texts))
	for i := range texts {
		outFiles[i] = filepath.Join(outDir, fmt.Sprintf("segment_%02d.mp3", i))
	}
	return r.run(ctx, texts, outFiles)
}

func (r *Replicate) run(ctx context.Context, texts []string, outFiles []string) ([]types.VoiceSegmentResult, error) {
	if len(texts) == 0 {
		return nil, &SynthesisError{Engine: "replicate", Op: "submit", Err: fmt.Errorf("no text to synthesize")}
	}
	scratch := filepath.Dir(outFiles[0])

	// Submissions are sequential and spaced; Prefer-wait lets fast jobs come
	// back already terminal, skipping the poll loop entirely.
	var jobs []*replicateJob
	for segIdx, text := range texts {
		for _, chunk := range chunkText(text, maxChunkChars) {
			if len(jobs) > 0 {
				select {
				case <-ctx.Done():
					return nil, &SynthesisError{Engine: "replicate", Op: "submit", Err: ctx.Err()}
				case <-time.After(r.submitGap):
				}
			}
			p, err := r.submit(ctx, chunk)
			if err != nil {
				return nil, &SynthesisError{Engine: "replicate", Op: "submit", Err: err}
			}
			job := &replicateJob{
				segIndex:  segIdx,
				id:        p.ID,
				chunkFile: filepath.Join(scratch, fmt.Sprintf("replicate_%02d_%02d.mp3", segIdx, len(jobs))),
			}
			job.update(p)
			jobs = append(jobs, job)
		}
	}
	log.Printf("[voice] Replicate: %d job(s) submitted for %d segment(s)", len(jobs), len(texts))

	if err := r.pollJobs(ctx, jobs); err != nil {
		return nil, &SynthesisError{Engine: "replicate", Op: "poll", Err: err}
	}

	// Completed outputs download in parallel; order is carried by the job
	// structs themselves, so no re-sorting is ever needed.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, j := range jobs {
		j := j
		g.Go(func() error {
			return r.download(gctx, j.outputURL, j.chunkFile)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &SynthesisError{Engine: "replicate", Op: "download", Err: err}
	}

	results := make([]types.VoiceSegmentResult, len(texts))
	for segIdx, text := range texts {
		var parts []string
		for _, j := range jobs {
			if j.segIndex == segIdx {
				parts = append(parts, j.chunkFile)
			}
		}
		if len(parts) == 1 {
			if err := os.Rename(parts[0], outFiles[segIdx]); err != nil {
				return nil, &SynthesisError{Engine: "replicate", Op: "move output", Err: err}
			}
		} else {
			if err := media.ConcatCopy(ctx, parts, outFiles[segIdx]); err != nil {
				return nil, &SynthesisError{Engine: "replicate", Op: "join chunks", Err: err}
			}
			for _, p := range parts {
				os.Remove(p)
			}
		}
		res, err := finishResult("replicate", text, outFiles[segIdx])
		if err != nil {
			return nil, err
		}
		results[segIdx] = res
	}
	return results, nil
}

func (r *Replicate) submit(ctx context.Context, text string) (*prediction, error) {
	input := map[string]any{"text": text}
	if r.voiceID != "" {
		input["voice_id"] = r.voiceID
	}

	url := r.baseURL + "/v1/predictions"
	payload := map[string]any{"version": r.version, "input": input}
	if r.version == "" {
		url = fmt.Sprintf("%s/v1/models/%s/predictions", r.baseURL, defaultReplicateModel)
		payload = map[string]any{"input": input}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+r.token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "wait")

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			if attempt >= r.rateLimitTries {
				return nil, fmt.Errorf("rate limited %d times, giving up", attempt)
			}
			wait := time.Duration(attempt) * r.rateLimitBackoff
			log.Printf("[voice] Replicate rate limited — retrying in %s", wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			err := httpError(resp)
			resp.Body.Close()
			return nil, err
		}

		var p prediction
		err = json.NewDecoder(resp.Body).Decode(&p)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode prediction: %w", err)
		}
		return &p, nil
	}
}

func (r *Replicate) fetch(ctx context.Context, id string) (*prediction, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", r.baseURL+"/v1/predictions/"+id, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+r.token)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpError(resp)
	}
	var p prediction
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode prediction: %w", err)
	}
	return &p, nil
}

// pollJobs drives every pending job to a terminal state through one shared
// loop, hard-bounded at maxPolls ticks for the whole set. One failed job
// fails the batch immediately, naming the job; transient fetch errors are
// tolerated a few times per job inside the same global budget.
func (r *Replicate) pollJobs(ctx context.Context, jobs []*replicateJob) error {
	for tick := 0; ; tick++ {
		pending := 0
		for i, j := range jobs {
			switch j.status {
			case "succeeded":
			case "failed", "canceled":
				reason := j.errMsg
				if reason == "" {
					reason = j.status
				}
				return fmt.Errorf("job %d of %d (%s) failed: %s — abandoning batch", i+1, len(jobs), j.id, reason)
			default:
				pending++
			}
		}
		if pending == 0 {
			return nil
		}
		if tick >= r.maxPolls {
			return fmt.Errorf("poll budget exhausted after %d polls with %d job(s) unfinished", r.maxPolls, pending)
		}
		if tick > 0 && tick%15 == 0 {
			log.Printf("[voice] Replicate: still waiting on %d job(s) (poll %d/%d)", pending, tick, r.maxPolls)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.pollInterval):
		}

		for _, j := range jobs {
			if j.terminal() {
				continue
			}
			p, err := r.fetch(ctx, j.id)
			if err != nil {
				j.fetchErrs++
				if j.fetchErrs >= 3 {
					return fmt.Errorf("job %s: polling failed %d times: %v", j.id, j.fetchErrs, err)
				}
				continue
			}
			j.fetchErrs = 0
			j.update(p)
		}
	}
}

func (r *Replicate) download(ctx context.Context, url, outFile string) error {
	if url == "" {
		return fmt.Errorf("job succeeded but returned no output URL")
	}
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download output: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download output: %w", httpError(resp))
	}

	f, err := os.Create(outFile)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(outFile)
		return fmt.Errorf("write output: %w", err)
	}
	return f.Close()
}

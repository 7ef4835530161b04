// Package pipeline orchestrates one run: extract candidate facts from the
// note, verify their provenance, evaluate the payer criteria, and assemble
// the decision packet.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/patrace/patrace/internal/cache"
	"github.com/patrace/patrace/internal/checklist"
	"github.com/patrace/patrace/internal/extract"
	"github.com/patrace/patrace/internal/llm"
	"github.com/patrace/patrace/internal/model"
	"github.com/patrace/patrace/internal/policy"
	"github.com/patrace/patrace/internal/provenance"
	"github.com/patrace/patrace/internal/worker"
)

// Pipeline runs cases against one compiled criteria set. It holds no
// per-run mutable state, so one Pipeline serves a whole evaluation batch.
type Pipeline struct {
	cfg      *model.Config
	baseline extract.Extractor
	provider llm.Provider // nil when model-backed extraction is disabled
	engine   *checklist.Engine
	store    *policy.Store
	cache    cache.Cache // nil when caching is disabled
	limiter  *worker.Limiter
	renderer *Renderer
}

// NewPipeline builds a pipeline from configuration. Criteria are loaded
// and compiled here: a malformed criterion aborts before any evidence is
// processed.
func NewPipeline(cfg *model.Config) (*Pipeline, error) {
	engine, err := checklist.LoadEngine(cfg.Criteria.Path)
	if err != nil {
		return nil, fmt.Errorf("load criteria: %w", err)
	}

	store := policy.NewStore(policy.DefaultChunks())
	if cfg.Policy.Path != "" {
		store, err = policy.Load(cfg.Policy.Path)
		if err != nil {
			return nil, fmt.Errorf("load policy: %w", err)
		}
	}

	var provider llm.Provider
	if cfg.Extraction.Mode == "llm" {
		provider, err = llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
		if err != nil {
			return nil, fmt.Errorf("create extraction provider: %w", err)
		}
		if provider == nil {
			return nil, fmt.Errorf("extraction mode is llm but no provider is configured")
		}
	}

	var c cache.Cache
	if cfg.Cache.Enabled {
		c = cache.NewMemoryCache(cfg.Cache.TTL, cfg.Cache.CleanupInterval)
	}

	return &Pipeline{
		cfg:      cfg,
		baseline: extract.NewBaselineExtractor(),
		provider: provider,
		engine:   engine,
		store:    store,
		cache:    c,
		limiter:  worker.NewLimiter(cfg.Concurrency.ProviderRPS, cfg.Concurrency.ProviderBurst),
		renderer: NewRenderer(cfg.Output.IncludeFooter),
	}, nil
}

// Engine exposes the compiled criteria engine (for eval reporting)
func (p *Pipeline) Engine() *checklist.Engine {
	return p.engine
}

// RunCase loads one case file and runs it
func (p *Pipeline) RunCase(ctx context.Context, casePath string) (*model.Bundle, error) {
	c, err := LoadCase(casePath)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, c)
}

// extractionOutput is one backend's contribution at the join point
type extractionOutput struct {
	backend string
	facts   []model.ExtractedFact
	err     error
}

// Run executes the full pipeline for one case. The baseline and the model
// backend run concurrently over the immutable note; a model failure or
// timeout degrades to an empty fact set and a warning, never a run
// failure. Only a malformed criteria set (caught in NewPipeline) can
// refuse to run.
func (p *Pipeline) Run(ctx context.Context, c model.Case) (*model.Bundle, error) {
	source := c.Source()
	order := c.ExamRequest

	chunks := p.retrievePolicy(order)

	outputs := make(chan extractionOutput, 2)

	go func() {
		facts, err := p.baseline.Extract(ctx, source, order)
		outputs <- extractionOutput{backend: p.baseline.Name(), facts: facts, err: err}
	}()

	modelActive := p.provider != nil
	if modelActive {
		go func() {
			facts, err := p.modelExtract(ctx, source, order, chunks)
			outputs <- extractionOutput{backend: p.provider.Name(), facts: facts, err: err}
		}()
	}

	var baselineFacts, modelFacts []model.ExtractedFact
	var warnings []string
	mode := p.baseline.Name()

	joins := 1
	if modelActive {
		joins = 2
		mode = "llm"
	}
	for i := 0; i < joins; i++ {
		out := <-outputs
		switch {
		case out.backend == p.baseline.Name():
			baselineFacts = out.facts
		case out.err != nil:
			// ExtractionUnavailable: recovered locally as an empty set.
			warnings = append(warnings, out.err.Error())
			mode = "llm_fallback_baseline"
			var unavail *extract.UnavailableError
			if errors.As(out.err, &unavail) && unavail.Refused {
				mode = "llm_refused"
			}
		default:
			modelFacts = out.facts
		}
	}

	var discrepancies []string
	if modelActive && mode == "llm" {
		discrepancies = extract.CrossCheck(baselineFacts, modelFacts)
	}

	candidates := extract.MergeFacts(baselineFacts, modelFacts)
	res := provenance.Validate(source, candidates)
	if res.Rejected > 0 {
		warnings = append(warnings, fmt.Sprintf("provenance: %d fact(s) rejected, see audit trail", res.Rejected))
	}

	verdict := p.engine.Evaluate(res.Facts)

	return &model.Bundle{
		Case:            c,
		RetrievedPolicy: chunks,
		Facts:           res.Facts,
		Audit:           res.Audit,
		Verdict:         verdict,
		ExtractionMode:  mode,
		Warnings:        warnings,
		Discrepancies:   discrepancies,
		GeneratedAt:     time.Now().UTC(),
	}, nil
}

// retrievePolicy pulls the policy chunks relevant to the requested exam
func (p *Pipeline) retrievePolicy(order map[string]string) []model.PolicyChunk {
	query := order["procedure"] + " criteria conservative care red flags"
	return p.store.Retrieve(query, p.cfg.Policy.TopK)
}

// modelExtract invokes the model backend under the configured bound,
// throttled per provider and memoized by note content. Cancellation and
// timeout surface as UnavailableError, handled identically to a
// legitimately empty extraction.
func (p *Pipeline) modelExtract(ctx context.Context, source model.SourceText, order map[string]string, chunks []model.PolicyChunk) ([]model.ExtractedFact, error) {
	name := p.provider.Name()
	key := cache.ExtractionKey(source.Text, name, p.cfg.LLM.Model)

	if p.cache != nil {
		if facts, ok := p.cache.Get(key); ok {
			return facts, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.Extraction.BackendTimeout)
	defer cancel()

	if err := p.limiter.Wait(ctx, name); err != nil {
		return nil, &extract.UnavailableError{Backend: name, Reason: err.Error()}
	}

	backend := llm.NewBackend(p.provider, chunks, p.cfg.LLM.MaxTokens)
	facts, err := backend.Extract(ctx, source, order)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.Set(key, facts, p.cfg.Cache.TTL); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to cache extraction: %v\n", err)
		}
	}
	return facts, nil
}

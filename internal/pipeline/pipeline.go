// Package pipeline drives one opportunity at a time through the
// scrape → enrich → analyze stages, tolerant of partial failure and
// idempotent on rerun.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ospreyintel/awardflow/config"
	"github.com/ospreyintel/awardflow/internal/intel"
	"github.com/ospreyintel/awardflow/models"
)

// Stage names as they appear in status payloads and the error log.
const (
	StageScraping   = "scraping"
	StageEnrichment = "enrichment"
	StageAnalysis   = "analysis"
)

// ScrapeResult is what the scraping collaborator hands back.
type ScrapeResult struct {
	ExtractedText string
	AttachmentRef string
}

// Scraper fetches and extracts the text of an opportunity's notice page.
// Opaque and fallible; the orchestrator only depends on the result shape.
type Scraper interface {
	Scrape(ctx context.Context, opp models.Opportunity) (*ScrapeResult, error)
}

// InsightProvider runs the AI text-analysis step over an opportunity and its
// gathered context, returning structured insight fields.
type InsightProvider interface {
	Analyze(ctx context.Context, opp models.Opportunity) (map[string]interface{}, error)
}

// AwardLinker joins an opportunity to its historical precedent awards.
type AwardLinker interface {
	LinkOpportunity(ctx context.Context, opp models.Opportunity) ([]models.OpportunityAwardLink, error)
}

// IntelSource produces the combined intelligence pass for an opportunity.
type IntelSource interface {
	OpportunityIntelligence(ctx context.Context, opp models.Opportunity) (*intel.Intelligence, error)
}

// StateStore is the slice of the persistence layer the orchestrator needs.
type StateStore interface {
	GetOpportunity(ctx context.Context, id string) (*models.Opportunity, error)
	ListPursuing(ctx context.Context) ([]models.Opportunity, error)
	SavePipelineState(ctx context.Context, o *models.Opportunity) error
	SetFingerprint(ctx context.Context, id, fingerprint string) error
}

// Options control forced stage reruns. A force flag clears the stage's
// completion mark, which is also the only way out of the error state.
type Options struct {
	ForceScrape  bool `json:"force_scrape"`
	ForceEnrich  bool `json:"force_enrich"`
	ForceAnalyze bool `json:"force_analyze"`
}

func (o Options) any() bool { return o.ForceScrape || o.ForceEnrich || o.ForceAnalyze }

// StageStatus reports one stage's outcome for the caller.
type StageStatus struct {
	Completed bool   `json:"completed"`
	Skipped   bool   `json:"skipped"`
	Error     string `json:"error,omitempty"`
}

// Result is the structured outcome of one pipeline run.
type Result struct {
	Success     bool                   `json:"success"`
	FinalStatus string                 `json:"final_status"`
	Stages      map[string]StageStatus `json:"stages"`
	Error       string                 `json:"error,omitempty"`
}

// BatchResult summarizes a batch pipeline pass over every pursuing
// opportunity.
type BatchResult struct {
	Processed int                `json:"processed"`
	Ready     int                `json:"ready"`
	Errored   int                `json:"errored"`
	Results   map[string]*Result `json:"results"`
}

// Orchestrator sequences the stages for one opportunity, persisting state
// after every stage so a terminated run resumes where it stopped.
type Orchestrator struct {
	Store   StateStore
	Scraper Scraper
	Linker  AwardLinker
	Intel   IntelSource
	Insight InsightProvider
	Config  config.PipelineConfig
	Logger  *log.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewOrchestrator wires an orchestrator; any collaborator may be nil, in
// which case its stage degrades with a recorded error instead of running.
func NewOrchestrator(st StateStore, scraper Scraper, linker AwardLinker, intelSrc IntelSource, insight InsightProvider, cfg config.PipelineConfig, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		Store:   st,
		Scraper: scraper,
		Linker:  linker,
		Intel:   intelSrc,
		Insight: insight,
		Config:  cfg,
		Logger:  logger,
		now:     time.Now,
		sleep:   sleepCtx,
	}
}

// Process runs the state machine for a single opportunity.
func (o *Orchestrator) Process(ctx context.Context, id string, opts Options) (*Result, error) {
	return o.process(ctx, id, opts, false)
}

func (o *Orchestrator) process(ctx context.Context, id string, opts Options, auto bool) (*Result, error) {
	opp, err := o.Store.GetOpportunity(ctx, id)
	if err != nil {
		return nil, err
	}
	if opp == nil {
		return nil, fmt.Errorf("opportunity %s not found", id)
	}

	res := &Result{Stages: map[string]StageStatus{}}

	switch opp.PipelineStatus {
	case models.StatusFlagged, models.StatusIgnored:
		res.FinalStatus = opp.PipelineStatus
		res.Error = fmt.Sprintf("opportunity is %s", opp.PipelineStatus)
		return res, nil
	case models.StatusReady:
		if !opts.any() {
			res.Success = true
			res.FinalStatus = models.StatusReady
			for _, s := range []string{StageScraping, StageEnrichment, StageAnalysis} {
				res.Stages[s] = StageStatus{Completed: true, Skipped: true}
			}
			return res, nil
		}
	case models.StatusError:
		if !opts.any() {
			res.FinalStatus = models.StatusError
			res.Error = "opportunity is in error state; a force flag is required to rerun"
			return res, nil
		}
	}

	if auto {
		opp.AutoProcessed = true
	}
	if opts.ForceScrape {
		opp.ScrapeDone = false
	}
	if opts.ForceEnrich {
		opp.EnrichDone = false
	}
	if opts.ForceAnalyze {
		opp.AnalyzeDone = false
	}
	if opp.StartedAt == nil {
		t := o.now()
		opp.StartedAt = &t
	}

	if fp := intel.Fingerprint(opp.Agency, opp.NAICSCodes, opp.Title, opp.SolicitationNo); fp != opp.Fingerprint {
		if err := o.Store.SetFingerprint(ctx, opp.ID, fp); err != nil {
			o.Logger.Printf("fingerprint for %s: %v", opp.ID, err)
		} else {
			opp.Fingerprint = fp
		}
	}

	lastReached := opp.PipelineStatus
	if lastReached == "" || lastReached == models.StatusError {
		lastReached = models.StatusDiscovered
	}

	res.Stages[StageScraping] = o.runScrape(ctx, opp, &lastReached)
	if o.hasSeedText(opp) {
		res.Stages[StageEnrichment] = o.runEnrich(ctx, opp, &lastReached)
	} else {
		res.Stages[StageEnrichment] = StageStatus{Error: "no scraped or seed text; enrichment halted"}
		opp.StageErrors = dropStageErrors(opp.StageErrors, StageEnrichment)
		o.recordError(opp, StageEnrichment, "no scraped or seed text available")
	}
	if opp.EnrichDone {
		res.Stages[StageAnalysis] = o.runAnalyze(ctx, opp, &lastReached)
	} else {
		res.Stages[StageAnalysis] = StageStatus{Error: "enrichment output unavailable; analysis halted"}
	}

	opp.PipelineStatus = finalStatus(opp, res, lastReached)
	opp.CurrentStage = ""
	if opp.PipelineStatus == models.StatusReady {
		t := o.now()
		opp.CompletedAt = &t
		res.Success = true
	}
	res.FinalStatus = opp.PipelineStatus
	if res.FinalStatus == models.StatusError {
		res.Error = lastStageError(res)
	}

	if err := o.Store.SavePipelineState(ctx, opp); err != nil {
		return res, err
	}
	o.Logger.Printf("pipeline %s: final status %s", opp.ID, res.FinalStatus)
	return res, nil
}

// ProcessAll drives every pursuing opportunity sequentially with a fixed
// inter-item delay, isolating per-opportunity failures.
func (o *Orchestrator) ProcessAll(ctx context.Context, opts Options) (*BatchResult, error) {
	opps, err := o.Store.ListPursuing(ctx)
	if err != nil {
		return nil, err
	}
	batch := &BatchResult{Results: map[string]*Result{}}
	for i, opp := range opps {
		if i > 0 {
			if err := o.sleep(ctx, o.Config.ItemDelay); err != nil {
				return batch, err
			}
		}
		res, err := o.process(ctx, opp.ID, opts, true)
		if err != nil {
			batch.Errored++
			batch.Results[opp.ID] = &Result{FinalStatus: models.StatusError, Error: err.Error()}
			o.Logger.Printf("pipeline %s: %v", opp.ID, err)
			continue
		}
		batch.Processed++
		batch.Results[opp.ID] = res
		if res.FinalStatus == models.StatusReady {
			batch.Ready++
		}
		if res.FinalStatus == models.StatusError {
			batch.Errored++
		}
	}
	return batch, nil
}

func (o *Orchestrator) runScrape(ctx context.Context, opp *models.Opportunity, lastReached *string) StageStatus {
	if opp.ScrapeDone {
		return StageStatus{Completed: true, Skipped: true}
	}
	opp.StageErrors = dropStageErrors(opp.StageErrors, StageScraping)
	o.enterStage(ctx, opp, models.StatusScraping, StageScraping)
	if o.Scraper == nil {
		o.recordError(opp, StageScraping, "no scraper configured")
		return StageStatus{Error: "no scraper configured"}
	}
	sr, err := o.Scraper.Scrape(ctx, *opp)
	if err != nil {
		o.recordError(opp, StageScraping, err.Error())
		return StageStatus{Error: err.Error()}
	}
	opp.ScrapedText = sr.ExtractedText
	opp.AttachmentRef = sr.AttachmentRef
	opp.ScrapeDone = true
	*lastReached = models.StatusScraped
	opp.PipelineStatus = models.StatusScraped
	return StageStatus{Completed: true}
}

func (o *Orchestrator) runEnrich(ctx context.Context, opp *models.Opportunity, lastReached *string) StageStatus {
	if opp.EnrichDone {
		return StageStatus{Completed: true, Skipped: true}
	}
	opp.StageErrors = dropStageErrors(opp.StageErrors, StageEnrichment)
	o.enterStage(ctx, opp, models.StatusEnriching, StageEnrichment)
	if opp.Analysis == nil {
		opp.Analysis = map[string]interface{}{}
	}

	var stageErr string
	if o.Linker != nil {
		links, err := o.Linker.LinkOpportunity(ctx, *opp)
		if err != nil {
			stageErr = err.Error()
		} else {
			opp.Analysis["links_created"] = len(links)
		}
	}
	if o.Intel != nil {
		ip, err := o.Intel.OpportunityIntelligence(ctx, *opp)
		if err != nil {
			stageErr = err.Error()
		} else {
			opp.Analysis["intelligence"] = ip
		}
	}
	if o.Linker == nil && o.Intel == nil {
		stageErr = "no enrichment collaborators configured"
	}

	if stageErr != "" {
		o.recordError(opp, StageEnrichment, stageErr)
		return StageStatus{Error: stageErr}
	}
	opp.EnrichDone = true
	*lastReached = models.StatusEnriched
	opp.PipelineStatus = models.StatusEnriched
	return StageStatus{Completed: true}
}

func (o *Orchestrator) runAnalyze(ctx context.Context, opp *models.Opportunity, lastReached *string) StageStatus {
	if opp.AnalyzeDone {
		return StageStatus{Completed: true, Skipped: true}
	}
	opp.StageErrors = dropStageErrors(opp.StageErrors, StageAnalysis)
	o.enterStage(ctx, opp, models.StatusAnalyzing, StageAnalysis)
	if o.Insight == nil {
		o.recordError(opp, StageAnalysis, "no insight provider configured")
		return StageStatus{Error: "no insight provider configured"}
	}
	fields, err := o.Insight.Analyze(ctx, *opp)
	if err != nil {
		o.recordError(opp, StageAnalysis, err.Error())
		return StageStatus{Error: err.Error()}
	}
	if opp.Analysis == nil {
		opp.Analysis = map[string]interface{}{}
	}
	for k, v := range fields {
		opp.Analysis[k] = v
	}
	opp.AnalyzeDone = true
	*lastReached = models.StatusAnalyzed
	opp.PipelineStatus = models.StatusAnalyzed
	return StageStatus{Completed: true}
}

// enterStage persists the in-progress status so an interrupted run shows
// where it stopped.
func (o *Orchestrator) enterStage(ctx context.Context, opp *models.Opportunity, status, stage string) {
	opp.PipelineStatus = status
	opp.CurrentStage = stage
	if err := o.Store.SavePipelineState(ctx, opp); err != nil {
		o.Logger.Printf("persisting %s state for %s: %v", stage, opp.ID, err)
	}
}

// dropStageErrors removes a stage's entries before it reruns, so the error
// log always reflects each stage's most recent attempt. Without this a
// forced rerun that succeeds would leave the opportunity ready but still
// carrying the failed run's entries.
func dropStageErrors(errs []models.StageError, stage string) []models.StageError {
	var out []models.StageError
	for _, e := range errs {
		if e.Stage != stage {
			out = append(out, e)
		}
	}
	return out
}

func (o *Orchestrator) recordError(opp *models.Opportunity, stage, msg string) {
	opp.StageErrors = append(opp.StageErrors, models.StageError{
		Stage:      stage,
		Message:    msg,
		OccurredAt: o.now(),
	})
}

// hasSeedText reports whether enrichment has at least minimal input to work
// from: scraped text or the notice's own description.
func (o *Orchestrator) hasSeedText(opp *models.Opportunity) bool {
	return opp.ScrapedText != "" || opp.Description != ""
}

// finalStatus applies the terminal rules: ready only when all three stages
// completed, error when any stage in this run failed, otherwise the last
// successfully reached intermediate status.
func finalStatus(opp *models.Opportunity, res *Result, lastReached string) string {
	if opp.ScrapeDone && opp.EnrichDone && opp.AnalyzeDone {
		return models.StatusReady
	}
	for _, s := range res.Stages {
		if s.Error != "" {
			return models.StatusError
		}
	}
	return lastReached
}

func lastStageError(res *Result) string {
	for _, stage := range []string{StageAnalysis, StageEnrichment, StageScraping} {
		if s, ok := res.Stages[stage]; ok && s.Error != "" {
			return fmt.Sprintf("%s: %s", stage, s.Error)
		}
	}
	return ""
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ospreyintel/awardflow/config"
	"github.com/ospreyintel/awardflow/internal/store"
	"github.com/ospreyintel/awardflow/internal/usaspending"
)

// ErrBatchEmpty marks a discovery run that produced zero records across all
// attempted pages. This is a real failure, distinct from a legitimately
// small result set after partial success, and is propagated to the caller.
var ErrBatchEmpty = errors.New("ingest batch produced zero records")

// Options tunes one ingest batch.
type Options struct {
	MaxPages  int
	PageLimit int
}

// Result enumerates what a batch did, so callers and schedulers can make
// retry decisions without exception handling.
type Result struct {
	Success  bool           `json:"success"`
	BatchID  string         `json:"batch_id"`
	Ingested int            `json:"ingested"`
	Saved    int            `json:"saved"`
	Skipped  int            `json:"skipped"`
	Failed   int            `json:"failed"`
	Errors   []string       `json:"errors,omitempty"`
	Stats    map[string]int `json:"stats,omitempty"`
}

// Ingestor drives discovery, normalization and idempotent persistence for
// one batch of awards.
type Ingestor struct {
	Discoverer *Discoverer
	Normalizer *Normalizer
	Store      *store.Store
	Config     config.IngestConfig
	Logger     *log.Logger
}

// NewIngestor wires an ingestor from its parts.
func NewIngestor(api AwardAPI, st *store.Store, cfg config.IngestConfig, logger *log.Logger) *Ingestor {
	if logger == nil {
		logger = log.Default()
	}
	return &Ingestor{
		Discoverer: NewDiscoverer(api, logger),
		Normalizer: NewNormalizer(api, logger),
		Store:      st,
		Config:     cfg,
		Logger:     logger,
	}
}

// DefaultFilters assembles the configured filter set with a trailing time
// window; the end date is clamped again at discovery time.
func (ing *Ingestor) DefaultFilters(now time.Time) usaspending.SearchFilters {
	start := now.AddDate(0, -ing.Config.LookbackMonths, 0)
	f := usaspending.SearchFilters{
		NAICSCodes:     ing.Config.NAICSCodes,
		AwardTypeCodes: ing.Config.AwardTypeCodes,
		TimePeriod: []usaspending.TimePeriod{{
			StartDate: start.Format("2006-01-02"),
			EndDate:   now.Format("2006-01-02"),
		}},
	}
	for _, name := range ing.Config.Agencies {
		f.Agencies = append(f.Agencies, usaspending.AgencyFilter{
			Type: "awarding", Tier: "toptier", Name: name,
		})
	}
	return f
}

// Run executes one batch: discover, normalize, upsert. Per-record failures
// are isolated and logged; re-running with an unchanged result set produces
// identical row counts because every write is an upsert on the stable id.
func (ing *Ingestor) Run(ctx context.Context, filters usaspending.SearchFilters, opts Options) (*Result, error) {
	batchID := uuid.NewString()
	res := &Result{BatchID: batchID, Stats: map[string]int{}}

	if opts.MaxPages <= 0 {
		opts.MaxPages = ing.Config.MaxPages
	}
	if opts.PageLimit <= 0 {
		opts.PageLimit = ing.Config.PageLimit
	}

	raws, err := ing.Discoverer.Discover(ctx, filters, DiscoveryOptions{
		MaxPages:     opts.MaxPages,
		LimitPerPage: opts.PageLimit,
		PageDelay:    ing.Config.PageDelay,
	})
	if err != nil {
		return res, fmt.Errorf("batch %s: %w", batchID, err)
	}
	if len(raws) == 0 {
		return res, fmt.Errorf("batch %s: %w", batchID, ErrBatchEmpty)
	}
	res.Ingested = len(raws)

	for _, raw := range raws {
		award, err := ing.Normalizer.Normalize(ctx, raw)
		if err != nil {
			if errors.Is(err, ErrMissingIdentifier) {
				res.Skipped++
				continue
			}
			res.Failed++
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		award.BatchID = batchID
		if err := ing.Store.UpsertAward(ctx, award); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		res.Saved++
	}

	res.Stats["pages_requested"] = opts.MaxPages
	res.Success = res.Failed == 0
	ing.Logger.Printf("batch %s: ingested=%d saved=%d skipped=%d failed=%d",
		batchID, res.Ingested, res.Saved, res.Skipped, res.Failed)
	return res, nil
}

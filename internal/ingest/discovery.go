// Package ingest implements the paginated discovery-and-ingestion loop for
// award records: discovery, normalization, and idempotent batch persistence.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ospreyintel/awardflow/internal/usaspending"
)

// AwardAPI is the slice of the upstream client the ingest pipeline uses.
type AwardAPI interface {
	SearchAwards(ctx context.Context, req usaspending.SearchRequest) (*usaspending.SearchResponse, error)
	GetAward(ctx context.Context, id string) (usaspending.RawAward, error)
	SearchTransactions(ctx context.Context, req usaspending.TransactionRequest) (*usaspending.SearchResponse, error)
}

// DiscoveryOptions bounds one discovery run.
type DiscoveryOptions struct {
	MaxPages     int
	LimitPerPage int
	PageDelay    time.Duration
}

// Discoverer pages the award search endpoint under a filter set.
type Discoverer struct {
	API    AwardAPI
	Logger *log.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewDiscoverer builds a discoverer over the given API client.
func NewDiscoverer(api AwardAPI, logger *log.Logger) *Discoverer {
	if logger == nil {
		logger = log.Default()
	}
	return &Discoverer{API: api, Logger: logger, now: time.Now, sleep: sleepCtx}
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

// Discover accumulates raw award records page by page until the upstream
// has_next_page flag clears or the page ceiling is reached. A failure on
// page 1 aborts (there is no partial result to salvage); a failure on a
// later page ends discovery with whatever already succeeded. A short delay
// between pages avoids bursting the shared rate limiter.
func (d *Discoverer) Discover(ctx context.Context, filters usaspending.SearchFilters, opts DiscoveryOptions) ([]usaspending.RawAward, error) {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 5
	}
	if opts.LimitPerPage <= 0 {
		opts.LimitPerPage = 100
	}
	filters = d.clampTimePeriod(filters)

	var out []usaspending.RawAward
	for page := 1; page <= opts.MaxPages; page++ {
		if page > 1 {
			if err := d.sleep(ctx, opts.PageDelay); err != nil {
				return out, err
			}
		}
		resp, err := d.API.SearchAwards(ctx, usaspending.SearchRequest{
			Filters: filters,
			Fields:  usaspending.DefaultSearchFields,
			Page:    page,
			Limit:   opts.LimitPerPage,
			Sort:    "Award Amount",
			Order:   "desc",
		})
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("discovery page 1: %w", err)
			}
			d.Logger.Printf("discovery page %d failed, keeping %d records from earlier pages: %v",
				page, len(out), err)
			return out, nil
		}
		for _, res := range resp.Results {
			raw, err := usaspending.DecodeRawAward(res)
			if err != nil {
				d.Logger.Printf("discovery page %d: undecodable record skipped: %v", page, err)
				continue
			}
			out = append(out, raw)
		}
		if !resp.PageMetadata.HasNextPage {
			break
		}
	}
	return out, nil
}

// clampTimePeriod caps any end date at today; the upstream API rejects
// date ranges that extend into the future.
func (d *Discoverer) clampTimePeriod(filters usaspending.SearchFilters) usaspending.SearchFilters {
	today := d.now().Format("2006-01-02")
	for i, tp := range filters.TimePeriod {
		if tp.EndDate == "" || tp.EndDate > today {
			filters.TimePeriod[i].EndDate = today
		}
	}
	return filters
}

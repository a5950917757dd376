// Package enrich performs per-award detail and transaction-history
// retrieval, plus the best-effort vendor-registry lookup, then applies the
// relevance score and activity signals.
package enrich

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ospreyintel/awardflow/internal/ingest"
	"github.com/ospreyintel/awardflow/internal/scoring"
	"github.com/ospreyintel/awardflow/internal/store"
	"github.com/ospreyintel/awardflow/internal/usaspending"
	"github.com/ospreyintel/awardflow/models"
)

// Enricher fetches award detail and transactions and persists the enriched
// snapshot. Registry failures never fail enrichment; detail-fetch failures
// do.
type Enricher struct {
	API      ingest.AwardAPI
	Store    *store.Store
	Registry *RegistryClient
	Logger   *log.Logger

	now func() time.Time
}

// NewEnricher wires an enricher; registry may be nil to disable the vendor
// lookup.
func NewEnricher(api ingest.AwardAPI, st *store.Store, registry *RegistryClient, logger *log.Logger) *Enricher {
	if logger == nil {
		logger = log.Default()
	}
	return &Enricher{API: api, Store: st, Registry: registry, Logger: logger, now: time.Now}
}

// Result summarizes a batch enrichment pass.
type Result struct {
	Enriched int      `json:"enriched"`
	Failed   int      `json:"failed"`
	Errors   []string `json:"errors,omitempty"`
}

// EnrichAward enriches one persisted award in place.
func (e *Enricher) EnrichAward(ctx context.Context, externalID string) error {
	award, err := e.Store.GetAward(ctx, externalID)
	if err != nil {
		return err
	}
	if award == nil {
		return fmt.Errorf("award %s not found", externalID)
	}

	detail, err := e.API.GetAward(ctx, externalID)
	if err != nil {
		if serr := e.Store.SetEnrichmentStatus(ctx, externalID, models.EnrichmentFailed); serr != nil {
			e.Logger.Printf("marking %s failed: %v", externalID, serr)
		}
		return fmt.Errorf("detail fetch for %s: %w", externalID, err)
	}
	ingest.MergeDetail(award, detail)

	txs, err := e.fetchTransactions(ctx, award)
	if err != nil {
		// Transactions are additive; keep the detail enrichment.
		e.Logger.Printf("transaction fetch for %s: %v", externalID, err)
	}
	for _, tx := range txs {
		if err := e.Store.UpsertTransaction(ctx, tx); err != nil {
			e.Logger.Printf("persisting transaction %s: %v", tx.ID, err)
		}
	}

	e.lookupVendor(ctx, award)

	award.EnrichmentStatus = models.EnrichmentCompleted
	if err := e.Store.UpsertAward(ctx, *award); err != nil {
		return err
	}
	// The award upsert never overwrites enrichment_status on conflict, so the
	// transition is written explicitly.
	if err := e.Store.SetEnrichmentStatus(ctx, externalID, models.EnrichmentCompleted); err != nil {
		return err
	}

	stored, err := e.Store.ListTransactions(ctx, externalID)
	if err != nil {
		stored = txs
	}
	now := e.now()
	score := scoring.Score(*award, len(stored), now)
	signals := scoring.Signals(*award, stored, now)
	return e.Store.UpdateAwardScore(ctx, externalID, score, signals)
}

// EnrichPending walks awards still marked pending, isolating per-award
// failures.
func (e *Enricher) EnrichPending(ctx context.Context, limit int) (*Result, error) {
	if limit <= 0 {
		limit = 50
	}
	pending, err := e.Store.ListAwardsPendingEnrichment(ctx, limit)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	for _, a := range pending {
		if err := e.EnrichAward(ctx, a.ExternalID); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		res.Enriched++
	}
	e.Logger.Printf("enrichment pass: %d enriched, %d failed", res.Enriched, res.Failed)
	return res, nil
}

func (e *Enricher) fetchTransactions(ctx context.Context, award *models.Award) ([]models.Transaction, error) {
	awardID := award.AwardID
	if awardID == "" {
		awardID = award.ExternalID
	}
	resp, err := e.API.SearchTransactions(ctx, usaspending.TransactionRequest{
		Filters: map[string]interface{}{
			"award_ids":        []string{awardID},
			"award_type_codes": []string{"A", "B", "C", "D"},
		},
		Fields: []string{"Action Date", "Transaction Amount", "Mod", "Transaction Description", "internal_id"},
		Page:   1,
		Limit:  100,
		Sort:   "Action Date",
		Order:  "desc",
	})
	if err != nil {
		return nil, err
	}
	var out []models.Transaction
	for _, res := range resp.Results {
		raw, err := usaspending.DecodeRawAward(res)
		if err != nil {
			continue
		}
		id := raw.Str("internal_id", "id", "transaction_unique_id")
		if id == "" {
			continue
		}
		tx := models.Transaction{
			ID:            id,
			AwardExternal: award.ExternalID,
			Amount:        raw.Num("Transaction Amount", "federal_action_obligation"),
			ModNumber:     raw.Str("Mod", "modification_number"),
			Description:   raw.Str("Transaction Description", "description"),
		}
		if d := raw.Str("Action Date", "action_date"); d != "" {
			if t, err := time.Parse("2006-01-02", d); err == nil {
				tx.ActionDate = &t
			}
		}
		out = append(out, tx)
	}
	return out, nil
}

// lookupVendor merges registered business classifications from the vendor
// registry. Strictly best-effort.
func (e *Enricher) lookupVendor(ctx context.Context, award *models.Award) {
	if e.Registry == nil || award.RecipientID == "" {
		return
	}
	rec, err := e.Registry.Lookup(ctx, award.RecipientID)
	if err != nil {
		e.Logger.Printf("vendor registry lookup %s: %v", award.RecipientID, err)
		return
	}
	if len(rec.BusinessTypes) > 0 {
		award.BusinessTypes = mergeStrings(award.BusinessTypes, rec.BusinessTypes)
	}
}

func mergeStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

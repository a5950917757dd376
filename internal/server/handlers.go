package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ospreyintel/awardflow/internal/ingest"
	"github.com/ospreyintel/awardflow/internal/pipeline"
	"github.com/ospreyintel/awardflow/internal/store"
	"github.com/ospreyintel/awardflow/internal/usaspending"
)

type ingestRequest struct {
	NAICSCodes     []string `json:"naics_codes"`
	Agencies       []string `json:"agencies"`
	LookbackMonths int      `json:"lookback_months"`
	MaxPages       int      `json:"max_pages"`
	PageLimit      int      `json:"page_limit"`
}

// handleIngest runs one discovery/ingest batch synchronously and returns its
// structured result. A batch that yields zero records is a 502, not a 200
// with empty counts.
func (a *App) handleIngest(c echo.Context) error {
	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	filters := applyIngestOverrides(a.Ingestor.DefaultFilters(time.Now()), req, time.Now())

	res, err := a.Ingestor.Run(c.Request().Context(), filters, ingest.Options{
		MaxPages:  req.MaxPages,
		PageLimit: req.PageLimit,
	})
	if err != nil {
		if errors.Is(err, ingest.ErrBatchEmpty) {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// applyIngestOverrides layers request-supplied filters over the configured
// defaults. Agencies named in the request replace the configured set and
// select by awarding toptier agency, matching how the defaults are built.
func applyIngestOverrides(filters usaspending.SearchFilters, req ingestRequest, now time.Time) usaspending.SearchFilters {
	if len(req.NAICSCodes) > 0 {
		filters.NAICSCodes = req.NAICSCodes
	}
	if len(req.Agencies) > 0 {
		filters.Agencies = filters.Agencies[:0]
		for _, name := range req.Agencies {
			filters.Agencies = append(filters.Agencies, usaspending.AgencyFilter{
				Type: "awarding", Tier: "toptier", Name: name,
			})
		}
	}
	if req.LookbackMonths > 0 && len(filters.TimePeriod) > 0 {
		start := now.AddDate(0, -req.LookbackMonths, 0)
		filters.TimePeriod[0].StartDate = start.Format("2006-01-02")
	}
	return filters
}

// handleEnrich runs an enrichment pass over pending awards.
func (a *App) handleEnrich(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	res, err := a.Enricher.EnrichPending(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// handleLinkRun links every pursuing opportunity to historical awards.
func (a *App) handleLinkRun(c echo.Context) error {
	res, err := a.Linker.Run(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

type pipelineRequest struct {
	ForceScrape  bool `json:"force_scrape"`
	ForceEnrich  bool `json:"force_enrich"`
	ForceAnalyze bool `json:"force_analyze"`
}

// handlePipeline runs the stage machine for one opportunity.
func (a *App) handlePipeline(c echo.Context) error {
	var req pipelineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := a.Orch.Process(c.Request().Context(), c.Param("id"), pipeline.Options{
		ForceScrape:  req.ForceScrape,
		ForceEnrich:  req.ForceEnrich,
		ForceAnalyze: req.ForceAnalyze,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// handlePipelineAll drives every pursuing opportunity through the pipeline.
func (a *App) handlePipelineAll(c echo.Context) error {
	var req pipelineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	res, err := a.Orch.ProcessAll(c.Request().Context(), pipeline.Options{
		ForceScrape:  req.ForceScrape,
		ForceEnrich:  req.ForceEnrich,
		ForceAnalyze: req.ForceAnalyze,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// handleIntelligence returns the combined intelligence pass for one
// opportunity: agency behavior profile plus set-aside enforcement reality.
func (a *App) handleIntelligence(c echo.Context) error {
	ctx := c.Request().Context()
	opp, err := a.Store.GetOpportunity(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if opp == nil {
		return echo.NewHTTPError(http.StatusNotFound, "opportunity not found")
	}
	res, err := a.Analyzer.OpportunityIntelligence(ctx, *opp)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// handleListAwards serves the scored award population.
func (a *App) handleListAwards(c echo.Context) error {
	minScore, _ := strconv.Atoi(c.QueryParam("min_score"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	awards, err := a.Store.ListAwards(c.Request().Context(), store.AwardFilter{
		Agency:   c.QueryParam("agency"),
		NAICS:    c.QueryParam("naics"),
		MinScore: minScore,
		Limit:    limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"awards": awards, "count": len(awards)})
}

// handleGetAward serves one award with its transaction history.
func (a *App) handleGetAward(c echo.Context) error {
	ctx := c.Request().Context()
	award, err := a.Store.GetAward(ctx, c.Param("id"))
	if err != nil {
		return err
	}
	if award == nil {
		return echo.NewHTTPError(http.StatusNotFound, "award not found")
	}
	txs, err := a.Store.ListTransactions(ctx, award.ExternalID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"award": award, "transactions": txs})
}

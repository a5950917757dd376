// Package intel computes cacheable, agency-scoped behavioral statistics from
// the persisted award population: incumbent concentration, recompete
// likelihood, agency behavior profiles and set-aside enforcement reality.
package intel

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/ospreyintel/awardflow/config"
	"github.com/ospreyintel/awardflow/internal/store"
	"github.com/ospreyintel/awardflow/models"
)

// Analyzer derives intelligence from historical awards and caches the
// per-(agency, NAICS) behavior profile.
type Analyzer struct {
	Store  *store.Store
	Config config.IntelligenceConfig
	Logger *log.Logger

	now func() time.Time
}

// NewAnalyzer builds an analyzer over the given store.
func NewAnalyzer(st *store.Store, cfg config.IntelligenceConfig, logger *log.Logger) *Analyzer {
	if logger == nil {
		logger = log.Default()
	}
	return &Analyzer{Store: st, Config: cfg, Logger: logger, now: time.Now}
}

// vendorKey resolves an award to a vendor identity: the stable vendor id
// when present, else the free-text recipient name. When the same vendor
// appears both with and without an id across records this can miscount; that
// is an upstream data-quality gap, deliberately not patched with fuzzy
// name matching here.
func vendorKey(a models.Award) string {
	if a.RecipientID != "" {
		return a.RecipientID
	}
	return strings.ToLower(strings.TrimSpace(a.RecipientName))
}

// IncumbentConcentration computes the Herfindahl-Hirschman index over vendor
// award-count shares. Range [0,1]; 1.0 means a single-vendor monopoly.
func IncumbentConcentration(awards []models.Award) float64 {
	if len(awards) == 0 {
		return 0
	}
	counts := map[string]int{}
	for _, a := range awards {
		counts[vendorKey(a)]++
	}
	total := float64(len(awards))
	var hhi float64
	for _, c := range counts {
		share := float64(c) / total
		hhi += share * share
	}
	return hhi
}

// RecompeteLikelihood estimates how likely the most recent winner keeps
// winning: over the most recent 5 awards (or fewer), the share won by the
// latest award's vendor. Nil when fewer than 2 awards exist.
func RecompeteLikelihood(awards []models.Award) *float64 {
	if len(awards) < 2 {
		return nil
	}
	sorted := make([]models.Award, len(awards))
	copy(sorted, awards)
	sort.SliceStable(sorted, func(i, j int) bool {
		return awardDate(sorted[i]).After(awardDate(sorted[j]))
	})
	considered := sorted
	if len(considered) > 5 {
		considered = considered[:5]
	}
	latest := vendorKey(considered[0])
	matches := 0
	for _, a := range considered {
		if vendorKey(a) == latest {
			matches++
		}
	}
	v := float64(matches) / float64(len(considered))
	return &v
}

func awardDate(a models.Award) time.Time {
	if a.StartDate != nil {
		return *a.StartDate
	}
	if a.LastModified != nil {
		return *a.LastModified
	}
	return time.Time{}
}

// AgencyProfile returns the behavior profile for (agency, primary NAICS),
// serving a cached copy when one younger than the TTL exists and recomputing
// otherwise. Below the minimum sample the statistical fields stay nil so
// callers can distinguish "no signal" from an error.
func (an *Analyzer) AgencyProfile(ctx context.Context, agency, naics string) (*models.AgencyProfile, error) {
	key := normalize(agency)
	ttl := time.Duration(an.Config.CacheTTLDays) * 24 * time.Hour

	if cached, err := an.Store.GetAgencyProfile(ctx, key, naics, ttl); err != nil {
		return nil, err
	} else if cached != nil {
		return cached, nil
	}

	since := an.now().AddDate(-an.Config.WindowYears, 0, 0)
	awards, err := an.Store.ListAwardsByAgencyNAICS(ctx, agency, naics, &since)
	if err != nil {
		return nil, err
	}

	profile := an.buildProfile(key, naics, awards, since)
	if err := an.Store.PutAgencyProfile(ctx, profile); err != nil {
		// A lost cache write only costs a recomputation; keep the result.
		an.Logger.Printf("caching profile %s/%s failed: %v", key, naics, err)
	}
	return profile, nil
}

func (an *Analyzer) buildProfile(key, naics string, awards []models.Award, windowStart time.Time) *models.AgencyProfile {
	p := &models.AgencyProfile{
		AgencyKey:    key,
		NAICSCode:    naics,
		AwardCount:   len(awards),
		CalculatedAt: an.now(),
		WindowStart:  &windowStart,
	}
	if len(awards) < an.Config.MinSampleSize {
		return p
	}

	vendorTotals := map[string]int{}
	for _, a := range awards {
		vendorTotals[vendorKey(a)]++
	}
	newVendorAwards := 0
	var sizes []float64
	var sum float64
	for _, a := range awards {
		if vendorTotals[vendorKey(a)] < 3 {
			newVendorAwards++
		}
		sizes = append(sizes, a.TotalObligation)
		sum += a.TotalObligation
	}
	sort.Float64s(sizes)

	newRate := float64(newVendorAwards) / float64(len(awards))
	avg := sum / float64(len(awards))
	median := percentile50(sizes)
	perYear := float64(len(awards)) / float64(an.Config.WindowYears)
	hhi := IncumbentConcentration(awards)

	p.NewVendorRate = &newRate
	p.AvgAwardSize = &avg
	p.MedianAwardSize = &median
	p.AwardsPerYear = &perYear
	p.IncumbentHHI = &hhi
	p.RecompeteLikely = RecompeteLikelihood(awards)
	return p
}

func percentile50(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// SetAsideEnforcement computes how strictly stated set-asides were honored
// for an agency/NAICS: the fraction of historical winners whose registered
// business types actually match the stated set-aside, plus the deviating
// classifications seen. Below the minimum sample it declares insufficient
// data (WEAK, zero compliance, no deviations) rather than failing.
func (an *Analyzer) SetAsideEnforcement(setAside string, awards []models.Award) models.SetAsideReality {
	r := models.SetAsideReality{
		SetAside:   setAside,
		SampleSize: len(awards),
		Strength:   models.EnforcementWeak,
	}
	if len(awards) < an.Config.MinSampleSize {
		r.InsufficientData = true
		return r
	}

	compliant := 0
	deviations := map[string]struct{}{}
	for _, a := range awards {
		if setAsideMatches(setAside, a.BusinessTypes) {
			compliant++
			continue
		}
		for _, bt := range a.BusinessTypes {
			deviations[bt] = struct{}{}
		}
	}
	r.ComplianceRate = float64(compliant) / float64(len(awards))
	for d := range deviations {
		r.Deviations = append(r.Deviations, d)
	}
	sort.Strings(r.Deviations)

	switch {
	case r.ComplianceRate >= 0.9:
		r.Strength = models.EnforcementStrict
	case r.ComplianceRate >= 0.7:
		r.Strength = models.EnforcementModerate
	}
	return r
}

// setAsideKeywords maps a stated set-aside type to the registered business
// classifications that satisfy it.
var setAsideKeywords = map[string][]string{
	"8(a)":     {"8(a)", "8a"},
	"wosb":     {"woman owned", "women owned", "wosb"},
	"edwosb":   {"economically disadvantaged women", "edwosb"},
	"sdvosb":   {"service disabled veteran", "sdvosb"},
	"vosb":     {"veteran owned", "vosb"},
	"hubzone":  {"hubzone"},
	"sba":      {"small business"},
	"small":    {"small business"},
	"sdb":      {"small disadvantaged", "disadvantaged"},
	"8(a) sol": {"8(a)", "8a"},
}

func setAsideMatches(setAside string, businessTypes []string) bool {
	sa := strings.ToLower(strings.TrimSpace(setAside))
	if sa == "" || sa == "none" {
		return true
	}
	var keywords []string
	for prefix, kws := range setAsideKeywords {
		if strings.Contains(sa, prefix) {
			keywords = append(keywords, kws...)
		}
	}
	if len(keywords) == 0 {
		// Unknown set-aside vocabulary: fall back to matching the raw label.
		keywords = []string{sa}
	}
	for _, bt := range businessTypes {
		lbt := strings.ToLower(bt)
		for _, kw := range keywords {
			if strings.Contains(lbt, kw) {
				return true
			}
		}
	}
	return false
}

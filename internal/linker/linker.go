// Package linker joins in-pursuit opportunities to historical precedent
// awards via confidence-scored fuzzy matching over five independent
// criteria.
package linker

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ospreyintel/awardflow/config"
	"github.com/ospreyintel/awardflow/internal/store"
	"github.com/ospreyintel/awardflow/models"
)

// Contract-vehicle keywords whose co-occurrence counts as a match criterion.
var vehicleKeywords = []string{"idiq", "bpa", "gwac", "boa", "blanket purchase"}

const descriptionSimilarityFloor = 0.3

// Match is the evaluation of one (opportunity, award) pair.
type Match struct {
	AwardExternal   string   `json:"award_external_id"`
	MatchCount      int      `json:"match_count"`
	Confidence      float64  `json:"confidence"`
	AgencyMatch     bool     `json:"agency_match"`
	MatchedNAICS    []string `json:"matched_naics,omitempty"`
	TitleSimilarity float64  `json:"title_similarity"`
	IncumbentMatch  bool     `json:"incumbent_match"`
	VehicleMatch    bool     `json:"vehicle_match"`
}

// RunResult summarizes a batch linking pass.
type RunResult struct {
	Evaluated    int                           `json:"evaluated"`
	LinksCreated int                           `json:"links_created"`
	Links        []models.OpportunityAwardLink `json:"links"`
	Errors       []string                      `json:"errors,omitempty"`
}

// Linker evaluates opportunities against a bounded candidate award set.
type Linker struct {
	Store  *store.Store
	Config config.LinkerConfig
	Logger *log.Logger
}

// NewLinker builds a linker over the given store.
func NewLinker(st *store.Store, cfg config.LinkerConfig, logger *log.Logger) *Linker {
	if logger == nil {
		logger = log.Default()
	}
	return &Linker{Store: st, Config: cfg, Logger: logger}
}

// Evaluate scores one (opportunity, award) pair. Confidence is only computed
// once at least two criteria hold; below that the pair is a non-match with
// zero confidence.
func Evaluate(opp models.Opportunity, award models.Award) Match {
	m := Match{AwardExternal: award.ExternalID}

	m.AgencyMatch = agencyMatch(opp.Agency, award.AwardingAgency)
	m.MatchedNAICS = naicsIntersection(opp.NAICSCodes, award.NAICSCode)
	m.TitleSimilarity = CosineSimilarity(opportunityText(opp), awardText(award))
	descMatch := m.TitleSimilarity >= descriptionSimilarityFloor
	m.IncumbentMatch = incumbentMatch(opp, award)
	m.VehicleMatch = vehicleMatch(opportunityText(opp), awardText(award))

	if m.AgencyMatch {
		m.MatchCount++
	}
	if len(m.MatchedNAICS) > 0 {
		m.MatchCount++
	}
	if descMatch {
		m.MatchCount++
	}
	if m.IncumbentMatch {
		m.MatchCount++
	}
	if m.VehicleMatch {
		m.MatchCount++
	}
	if m.MatchCount < 2 {
		return m
	}
	m.Confidence = Confidence(m.MatchCount, m.AgencyMatch && len(m.MatchedNAICS) > 0,
		descMatch, m.TitleSimilarity, m.IncumbentMatch)
	return m
}

// Confidence applies the calibration formula: base of 0.2 per criterion,
// +0.15 when both agency and NAICS match, + similarity*0.2 when the
// description matched, +0.10 for an incumbent match, capped at 1.0. The
// formula is preserved as calibrated; a strong description match can push a
// two-criterion pair over the persistence threshold while a weak one cannot.
func Confidence(matchCount int, agencyAndNAICS, descMatch bool, similarity float64, incumbent bool) float64 {
	c := float64(matchCount) * 0.2
	if agencyAndNAICS {
		c += 0.15
	}
	if descMatch {
		c += similarity * 0.2
	}
	if incumbent {
		c += 0.10
	}
	if c > 1.0 {
		c = 1.0
	}
	return c
}

// Qualifies reports whether a match satisfies the persistence policy:
// at least minCriteria true criteria and confidence at the threshold.
func (l *Linker) Qualifies(m Match) bool {
	return m.MatchCount >= l.Config.MinCriteria && m.Confidence >= l.Config.ConfidenceThreshold
}

// LinkOpportunity evaluates one opportunity against the bounded candidate set
// and persists every qualifying link. Non-qualifying pairs produce no side
// effect.
func (l *Linker) LinkOpportunity(ctx context.Context, opp models.Opportunity) ([]models.OpportunityAwardLink, error) {
	candidates, err := l.Store.CandidateAwards(ctx, store.CandidateFilter{
		Agency:     opp.Agency,
		NAICSCodes: opp.NAICSCodes,
		Limit:      l.Config.CandidateCap,
	})
	if err != nil {
		return nil, fmt.Errorf("loading candidates for %s: %w", opp.ID, err)
	}

	var links []models.OpportunityAwardLink
	for _, award := range candidates {
		m := Evaluate(opp, award)
		if !l.Qualifies(m) {
			continue
		}
		link := models.OpportunityAwardLink{
			OpportunityID:   opp.ID,
			AwardExternal:   award.ExternalID,
			Confidence:      m.Confidence,
			MatchedNAICS:    m.MatchedNAICS,
			TitleSimilarity: m.TitleSimilarity,
			Relationship:    "historical_precedent",
		}
		if m.AgencyMatch {
			link.MatchedAgency = award.AwardingAgency
		}
		if err := l.Store.UpsertLink(ctx, link); err != nil {
			return links, err
		}
		links = append(links, link)
	}
	return links, nil
}

// Run links every pursuing opportunity. Per-opportunity failures are
// collected, never abort sibling work.
func (l *Linker) Run(ctx context.Context) (*RunResult, error) {
	opps, err := l.Store.ListPursuing(ctx)
	if err != nil {
		return nil, err
	}
	res := &RunResult{}
	for _, opp := range opps {
		res.Evaluated++
		links, err := l.LinkOpportunity(ctx, opp)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", opp.ID, err))
			continue
		}
		res.Links = append(res.Links, links...)
		res.LinksCreated += len(links)
	}
	l.Logger.Printf("link pass: %d opportunities, %d links, %d errors",
		res.Evaluated, res.LinksCreated, len(res.Errors))
	return res, nil
}

func agencyMatch(oppAgency, awardAgency string) bool {
	a := normalizeAgency(oppAgency)
	b := normalizeAgency(awardAgency)
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func normalizeAgency(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func naicsIntersection(oppCodes []string, awardCode string) []string {
	if awardCode == "" {
		return nil
	}
	for _, c := range oppCodes {
		if strings.TrimSpace(c) == awardCode {
			return []string{awardCode}
		}
	}
	return nil
}

func incumbentMatch(opp models.Opportunity, award models.Award) bool {
	name := strings.ToLower(strings.TrimSpace(award.RecipientName))
	if len(name) < 4 {
		return false
	}
	text := strings.ToLower(opp.Title + " " + opp.Description + " " + opp.ScrapedText)
	return strings.Contains(text, name)
}

func vehicleMatch(oppText, awardText string) bool {
	a := strings.ToLower(oppText)
	b := strings.ToLower(awardText)
	for _, kw := range vehicleKeywords {
		if strings.Contains(a, kw) && strings.Contains(b, kw) {
			return true
		}
	}
	return false
}

func opportunityText(opp models.Opportunity) string {
	return strings.TrimSpace(opp.Title + " " + opp.Description)
}

func awardText(award models.Award) string {
	return strings.TrimSpace(award.Description)
}

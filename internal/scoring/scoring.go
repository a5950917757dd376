// Package scoring computes the bounded relevance score and categorical
// activity signals for a normalized award. Everything here is a pure
// function over the award and its transaction history, with the clock
// injected so results are reproducible.
package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/ospreyintel/awardflow/models"
)

// NAICS codes considered directly relevant.
var relevantNAICS = map[string]struct{}{
	"541512": {},
	"541511": {},
}

// Description keywords worth points, matched case-insensitively.
var keywordSet = []string{
	"rmf", "stig", "ato", "cyber", "emass", "zero trust", "enterprise",
}

// Score returns the additive relevance score for an award, clamped to
// [0, 100]. Contributions are independent; txCount is the number of known
// transactions.
func Score(a models.Award, txCount int, now time.Time) int {
	score := 0
	if _, ok := relevantNAICS[a.NAICSCode]; ok {
		score += 30
	}
	if strings.Contains(a.AwardingAgency, "Department of Defense") {
		score += 20
	}
	if containsKeyword(a.Description) {
		score += 15
	}
	if a.EndDate != nil && !a.EndDate.Before(now) {
		score += 15
	}
	if a.TotalObligation > 5_000_000 {
		score += 10
	}
	if txCount > 10 {
		score += 10
	}
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func containsKeyword(desc string) bool {
	d := strings.ToLower(desc)
	for _, kw := range keywordSet {
		if strings.Contains(d, kw) {
			return true
		}
	}
	return false
}

// Signals derives the categorical activity tags for an award. Any subset may
// apply; the result is ordered deterministically.
func Signals(a models.Award, txs []models.Transaction, now time.Time) []string {
	var out []string
	if isActive(a, txs, now) {
		out = append(out, models.SignalActive)
	}
	if isStable(txs) {
		out = append(out, models.SignalStable)
	}
	if isDeclining(txs, now) {
		out = append(out, models.SignalDeclining)
	}
	if inRecompeteWindow(a, now) {
		out = append(out, models.SignalRecompeteWindow)
	}
	return out
}

// ACTIVE: the period of performance is still open and there was movement in
// the last 180 days, either a record modification or a positive obligation.
func isActive(a models.Award, txs []models.Transaction, now time.Time) bool {
	if a.EndDate == nil || !a.EndDate.After(now) {
		return false
	}
	recent := now.AddDate(0, 0, -180)
	if a.LastModified != nil && a.LastModified.After(recent) {
		return true
	}
	for _, tx := range txs {
		if tx.Amount > 0 && tx.ActionDate != nil && tx.ActionDate.After(recent) {
			return true
		}
	}
	return false
}

// STABLE: more than 5 modifications and low dispersion of obligation amounts
// (coefficient of variation under 0.5).
func isStable(txs []models.Transaction) bool {
	if len(txs) <= 5 {
		return false
	}
	cv, ok := coefficientOfVariation(txs)
	return ok && cv < 0.5
}

// DECLINING: any deobligation, or a year with no transaction at all
// (zero transactions counts).
func isDeclining(txs []models.Transaction, now time.Time) bool {
	for _, tx := range txs {
		if tx.Amount < 0 {
			return true
		}
	}
	yearAgo := now.AddDate(0, 0, -365)
	for _, tx := range txs {
		if tx.ActionDate != nil && tx.ActionDate.After(yearAgo) {
			return false
		}
	}
	return true
}

// RECOMPETE_WINDOW: the period of performance ends strictly between now and
// 24 months out.
func inRecompeteWindow(a models.Award, now time.Time) bool {
	if a.EndDate == nil {
		return false
	}
	return a.EndDate.After(now) && a.EndDate.Before(now.AddDate(0, 24, 0))
}

func coefficientOfVariation(txs []models.Transaction) (float64, bool) {
	n := float64(len(txs))
	if n == 0 {
		return 0, false
	}
	var sum float64
	for _, tx := range txs {
		sum += tx.Amount
	}
	mean := sum / n
	if mean == 0 {
		return 0, false
	}
	var variance float64
	for _, tx := range txs {
		d := tx.Amount - mean
		variance += d * d
	}
	variance /= n
	return math.Sqrt(variance) / math.Abs(mean), true
}

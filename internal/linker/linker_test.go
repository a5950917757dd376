package linker

import (
	"math"
	"testing"

	"github.com/ospreyintel/awardflow/config"
	"github.com/ospreyintel/awardflow/models"
)

func policyLinker() *Linker {
	return &Linker{Config: config.LinkerConfig{
		ConfidenceThreshold: 0.7,
		MinCriteria:         2,
		CandidateCap:        200,
	}}
}

func TestConfidenceAgencyAndNAICSOnly(t *testing.T) {
	// Two criteria, no description/incumbent/vehicle: 2*0.2 + 0.15 = 0.55.
	got := Confidence(2, true, false, 0, false)
	if math.Abs(got-0.55) > 1e-9 {
		t.Fatalf("Confidence = %v, want 0.55", got)
	}
	l := policyLinker()
	if l.Qualifies(Match{MatchCount: 2, Confidence: got}) {
		t.Fatal("0.55 is below the 0.7 threshold; no link may be created")
	}
}

func TestConfidenceWithStrongDescription(t *testing.T) {
	// Three criteria with similarity 0.8: 3*0.2 + 0.15 + 0.8*0.2 = 0.91.
	got := Confidence(3, true, true, 0.8, false)
	if math.Abs(got-0.91) > 1e-9 {
		t.Fatalf("Confidence = %v, want 0.91", got)
	}
	l := policyLinker()
	if !l.Qualifies(Match{MatchCount: 3, Confidence: got}) {
		t.Fatal("0.91 must qualify for a link")
	}
}

func TestConfidenceCappedAtOne(t *testing.T) {
	got := Confidence(5, true, true, 1.0, true)
	if got != 1.0 {
		t.Fatalf("Confidence = %v, want cap at 1.0", got)
	}
}

func TestConfidenceAlwaysInUnitInterval(t *testing.T) {
	for count := 2; count <= 5; count++ {
		for _, sim := range []float64{0, 0.3, 0.5, 1.0} {
			for _, inc := range []bool{false, true} {
				c := Confidence(count, true, sim >= 0.3, sim, inc)
				if c < 0 || c > 1 {
					t.Fatalf("Confidence(%d, %v, %v) = %v out of [0,1]", count, sim, inc, c)
				}
			}
		}
	}
}

func TestEvaluateBelowTwoCriteriaHasNoConfidence(t *testing.T) {
	opp := models.Opportunity{
		Agency:     "Department of the Navy",
		NAICSCodes: []string{"541512"},
		Title:      "network modernization",
	}
	award := models.Award{
		ExternalID:     "CONT_AWD_1",
		AwardingAgency: "Department of Agriculture",
		NAICSCode:      "541512",
		Description:    "grain inspection logistics",
	}
	m := Evaluate(opp, award)
	if m.MatchCount != 1 {
		t.Fatalf("MatchCount = %d, want 1 (NAICS only)", m.MatchCount)
	}
	if m.Confidence != 0 {
		t.Fatalf("confidence must not be computed below 2 criteria, got %v", m.Confidence)
	}
}

func TestEvaluateAgencySubstringTolerant(t *testing.T) {
	opp := models.Opportunity{
		Agency:     "Department of Defense",
		NAICSCodes: []string{"541512"},
	}
	award := models.Award{
		ExternalID:     "CONT_AWD_2",
		AwardingAgency: "Department of Defense Cyber Command",
		NAICSCode:      "541512",
	}
	m := Evaluate(opp, award)
	if !m.AgencyMatch {
		t.Fatal("substring-contained agency names must match")
	}
	if m.MatchCount != 2 {
		t.Fatalf("MatchCount = %d, want 2", m.MatchCount)
	}
	if math.Abs(m.Confidence-0.55) > 1e-9 {
		t.Fatalf("Confidence = %v, want 0.55", m.Confidence)
	}
}

func TestEvaluateIncumbentAndVehicle(t *testing.T) {
	opp := models.Opportunity{
		Agency:      "GSA",
		NAICSCodes:  []string{"541519"},
		Title:       "Alliant GWAC follow-on",
		Description: "Seeking IT services; incumbent is Vector Shield Technologies under a GWAC.",
	}
	award := models.Award{
		ExternalID:     "CONT_AWD_3",
		AwardingAgency: "General Services Administration",
		NAICSCode:      "541519",
		RecipientName:  "Vector Shield Technologies",
		Description:    "IT services task order under the Alliant GWAC vehicle",
	}
	m := Evaluate(opp, award)
	if !m.IncumbentMatch {
		t.Fatal("recipient name appearing in opportunity text must match incumbent")
	}
	if !m.VehicleMatch {
		t.Fatal("GWAC keyword on both sides must match vehicle criterion")
	}
	if len(m.MatchedNAICS) != 1 || m.MatchedNAICS[0] != "541519" {
		t.Fatalf("MatchedNAICS = %v, want [541519]", m.MatchedNAICS)
	}
	if m.Confidence < 0.7 {
		t.Fatalf("expected qualifying confidence, got %v", m.Confidence)
	}
}

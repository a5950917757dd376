package scoring

import (
	"testing"
	"time"

	"github.com/ospreyintel/awardflow/models"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func datePtr(t time.Time) *time.Time { return &t }

func TestScoreFullHouse(t *testing.T) {
	end := now.AddDate(1, 0, 0)
	a := models.Award{
		NAICSCode:       "541512",
		AwardingAgency:  "Department of Defense Cyber Command",
		Description:     "Sustainment of RMF accreditation packages",
		EndDate:         &end,
		TotalObligation: 6_000_000,
	}
	if got := Score(a, 12, now); got != 100 {
		t.Fatalf("Score = %d, want 100 (30+20+15+15+10+10)", got)
	}
}

func TestScoreBounds(t *testing.T) {
	cases := []struct {
		name string
		a    models.Award
		txs  int
		want int
	}{
		{"empty award", models.Award{}, 0, 0},
		{"naics only", models.Award{NAICSCode: "541511"}, 0, 30},
		{"agency only", models.Award{AwardingAgency: "Department of Defense"}, 0, 20},
		{"keyword case-insensitive", models.Award{Description: "zero trust architecture"}, 0, 15},
		{"obligation at threshold", models.Award{TotalObligation: 5_000_000}, 0, 0},
		{"obligation above threshold", models.Award{TotalObligation: 5_000_001}, 0, 10},
		{"tx count at threshold", models.Award{}, 10, 0},
		{"tx count above threshold", models.Award{}, 11, 10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Score(tc.a, tc.txs, now)
			if got != tc.want {
				t.Fatalf("Score = %d, want %d", got, tc.want)
			}
			if got < 0 || got > 100 {
				t.Fatalf("Score %d out of [0,100]", got)
			}
		})
	}
}

func TestSignalRecompeteWindow(t *testing.T) {
	cases := []struct {
		name string
		end  *time.Time
		want bool
	}{
		{"no end date", nil, false},
		{"ended yesterday", datePtr(now.AddDate(0, 0, -1)), false},
		{"ends exactly now", datePtr(now), false},
		{"ends tomorrow", datePtr(now.AddDate(0, 0, 1)), true},
		{"ends in 23 months", datePtr(now.AddDate(0, 23, 0)), true},
		{"ends at 24 months", datePtr(now.AddDate(0, 24, 0)), false},
		{"ends past 24 months", datePtr(now.AddDate(0, 24, 1)), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := inRecompeteWindow(models.Award{EndDate: tc.end}, now)
			if got != tc.want {
				t.Fatalf("inRecompeteWindow = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSignalActive(t *testing.T) {
	end := now.AddDate(1, 0, 0)
	recentMod := now.AddDate(0, 0, -30)
	staleMod := now.AddDate(0, 0, -200)

	a := models.Award{EndDate: &end, LastModified: &recentMod}
	if got := Signals(a, nil, now); !contains(got, models.SignalActive) {
		t.Fatal("recent modification on open award should be ACTIVE")
	}

	a = models.Award{EndDate: &end, LastModified: &staleMod}
	txs := []models.Transaction{{Amount: 1000, ActionDate: datePtr(now.AddDate(0, 0, -10))}}
	if got := Signals(a, txs, now); !contains(got, models.SignalActive) {
		t.Fatal("recent positive transaction on open award should be ACTIVE")
	}

	a = models.Award{EndDate: datePtr(now.AddDate(0, 0, -1)), LastModified: &recentMod}
	if got := Signals(a, txs, now); contains(got, models.SignalActive) {
		t.Fatal("expired award must never be ACTIVE")
	}
}

func TestSignalStable(t *testing.T) {
	mkTxs := func(amounts ...float64) []models.Transaction {
		var out []models.Transaction
		for i, amt := range amounts {
			out = append(out, models.Transaction{
				Amount:     amt,
				ActionDate: datePtr(now.AddDate(0, -i, 0)),
				ModNumber:  "P0000" + string(rune('1'+i)),
			})
		}
		return out
	}

	steady := mkTxs(100, 100, 100, 100, 100, 100)
	if !isStable(steady) {
		t.Fatal("six equal transactions should be STABLE")
	}
	few := mkTxs(100, 100, 100)
	if isStable(few) {
		t.Fatal("five or fewer modifications are never STABLE")
	}
	erratic := mkTxs(100, 5000, 10, 8000, 3, 9000)
	if isStable(erratic) {
		t.Fatal("high-variance amounts should not be STABLE")
	}
}

func TestSignalDeclining(t *testing.T) {
	if !isDeclining(nil, now) {
		t.Fatal("zero transactions should be DECLINING")
	}
	neg := []models.Transaction{{Amount: -500, ActionDate: datePtr(now.AddDate(0, 0, -10))}}
	if !isDeclining(neg, now) {
		t.Fatal("deobligation should be DECLINING")
	}
	old := []models.Transaction{{Amount: 500, ActionDate: datePtr(now.AddDate(-2, 0, 0))}}
	if !isDeclining(old, now) {
		t.Fatal("no transaction within a year should be DECLINING")
	}
	fresh := []models.Transaction{{Amount: 500, ActionDate: datePtr(now.AddDate(0, 0, -30))}}
	if isDeclining(fresh, now) {
		t.Fatal("recent positive transaction should not be DECLINING")
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

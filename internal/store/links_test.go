package store

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/ospreyintel/awardflow/models"
)

func TestUpsertLink(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectExec(regexp.QuoteMeta(upsertLinkSQL)).
		WithArgs("opp-1", "CONT_AWD_1", 0.91, sqlmock.AnyArg(), "Department of Defense", 0.8, "historical_precedent").
		WillReturnResult(sqlmock.NewResult(0, 1))

	l := models.OpportunityAwardLink{
		OpportunityID:   "opp-1",
		AwardExternal:   "CONT_AWD_1",
		Confidence:      0.91,
		MatchedNAICS:    []string{"541512"},
		MatchedAgency:   "Department of Defense",
		TitleSimilarity: 0.8,
		Relationship:    "historical_precedent",
	}
	if err := st.UpsertLink(context.Background(), l); err != nil {
		t.Fatalf("UpsertLink: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetAgencyProfileStaleIsAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	query := regexp.QuoteMeta(`SELECT profile FROM agency_intelligence_cache
WHERE agency_key = $1 AND naics_code = $2 AND calculated_at > $3`)

	// The cutoff argument makes stale rows invisible; no row means nil, nil.
	mock.ExpectQuery(query).
		WithArgs("department of defense", "541512", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"profile"}))

	p, err := st.GetAgencyProfile(context.Background(), "department of defense", "541512", 7*24*time.Hour)
	if err != nil {
		t.Fatalf("GetAgencyProfile: %v", err)
	}
	if p != nil {
		t.Fatalf("expected nil profile for absent/stale cache entry, got %+v", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPutAgencyProfile(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}
	mock.ExpectExec(regexp.QuoteMeta(upsertProfileSQL)).
		WithArgs("department of defense", "541512", sqlmock.AnyArg(), 12, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	p := &models.AgencyProfile{
		AgencyKey:    "department of defense",
		NAICSCode:    "541512",
		AwardCount:   12,
		CalculatedAt: time.Now(),
	}
	if err := st.PutAgencyProfile(context.Background(), p); err != nil {
		t.Fatalf("PutAgencyProfile: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

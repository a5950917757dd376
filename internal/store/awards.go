package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/ospreyintel/awardflow/models"
)

const upsertAwardSQL = `
INSERT INTO awards (external_id, generated_id, award_id, total_obligation, recipient_name, recipient_id,
  awarding_agency, naics_code, naics_desc, psc_code, psc_desc, set_aside, business_types,
  start_date, end_date, description, enrichment_status, last_modified, raw, batch_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,NOW(),NOW())
ON CONFLICT (external_id) DO UPDATE SET
  generated_id = COALESCE(NULLIF(EXCLUDED.generated_id, ''), awards.generated_id),
  award_id = EXCLUDED.award_id,
  total_obligation = EXCLUDED.total_obligation,
  recipient_name = EXCLUDED.recipient_name,
  recipient_id = EXCLUDED.recipient_id,
  awarding_agency = EXCLUDED.awarding_agency,
  naics_code = EXCLUDED.naics_code,
  naics_desc = EXCLUDED.naics_desc,
  psc_code = EXCLUDED.psc_code,
  psc_desc = EXCLUDED.psc_desc,
  set_aside = EXCLUDED.set_aside,
  business_types = EXCLUDED.business_types,
  start_date = EXCLUDED.start_date,
  end_date = EXCLUDED.end_date,
  description = EXCLUDED.description,
  last_modified = EXCLUDED.last_modified,
  raw = EXCLUDED.raw,
  batch_id = EXCLUDED.batch_id,
  updated_at = NOW();
`

// UpsertAward writes the latest normalized snapshot of an award, keyed by the
// stable external id. When the record arrived under the generated-unique
// identifier scheme, an existing row holding that generated id wins, so the
// same underlying award reached via two identifier schemes stays one row.
// Every upsert stamps the originating batch id for provenance.
func (s *Store) UpsertAward(ctx context.Context, a models.Award) error {
	if a.ExternalID == "" {
		return errors.New("award has no external id")
	}
	if a.GeneratedID != "" && a.GeneratedID != a.ExternalID {
		var existing string
		err := s.DB.QueryRowContext(ctx,
			`SELECT external_id FROM awards WHERE generated_id = $1`, a.GeneratedID).Scan(&existing)
		if err == nil && existing != "" {
			a.ExternalID = existing
		} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("generated-id lookup: %w", err)
		}
	}

	types, err := json.Marshal(a.BusinessTypes)
	if err != nil {
		return fmt.Errorf("encoding business types: %w", err)
	}
	status := a.EnrichmentStatus
	if status == "" {
		status = models.EnrichmentPending
	}
	_, err = s.DB.ExecContext(ctx, upsertAwardSQL,
		a.ExternalID, a.GeneratedID, a.AwardID, a.TotalObligation, a.RecipientName, a.RecipientID,
		a.AwardingAgency, a.NAICSCode, a.NAICSDescription, a.PSCCode, a.PSCDescription, a.SetAside, types,
		a.StartDate, a.EndDate, a.Description, status, a.LastModified, nullJSON(a.Raw), nullStr(a.BatchID))
	if err != nil {
		return fmt.Errorf("upserting award %s: %w", a.ExternalID, err)
	}
	return nil
}

// UpdateAwardScore stores the computed relevance score and signal set.
func (s *Store) UpdateAwardScore(ctx context.Context, externalID string, score int, signals []string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE awards SET relevance_score = $2, signals = $3, updated_at = NOW() WHERE external_id = $1`,
		externalID, score, pq.Array(signals))
	if err != nil {
		return fmt.Errorf("updating score for %s: %w", externalID, err)
	}
	return nil
}

// SetEnrichmentStatus advances an award's enrichment lifecycle.
func (s *Store) SetEnrichmentStatus(ctx context.Context, externalID, status string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE awards SET enrichment_status = $2, updated_at = NOW() WHERE external_id = $1`,
		externalID, status)
	if err != nil {
		return fmt.Errorf("setting enrichment status for %s: %w", externalID, err)
	}
	return nil
}

const awardColumns = `external_id, generated_id, award_id, total_obligation, recipient_name, recipient_id,
  awarding_agency, naics_code, naics_desc, psc_code, psc_desc, set_aside, business_types,
  start_date, end_date, description, enrichment_status, relevance_score, signals, last_modified`

// GetAward loads one award by external id.
func (s *Store) GetAward(ctx context.Context, externalID string) (*models.Award, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+awardColumns+` FROM awards WHERE external_id = $1`, externalID)
	a, err := scanAward(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading award %s: %w", externalID, err)
	}
	return a, nil
}

// ListAwardsPendingEnrichment returns awards still awaiting enrichment,
// oldest first.
func (s *Store) ListAwardsPendingEnrichment(ctx context.Context, limit int) ([]models.Award, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+awardColumns+` FROM awards WHERE enrichment_status = $1 ORDER BY created_at ASC LIMIT $2`,
		models.EnrichmentPending, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending awards: %w", err)
	}
	return collectAwards(rows)
}

// ListAwardsByAgencyNAICS returns the historical award population for one
// agency/NAICS pair, most recent first, optionally bounded to a trailing
// window.
func (s *Store) ListAwardsByAgencyNAICS(ctx context.Context, agency, naics string, since *time.Time) ([]models.Award, error) {
	b := sq.Select(awardColumns).From("awards").
		Where(sq.ILike{"awarding_agency": "%" + agency + "%"}).
		OrderBy("start_date DESC NULLS LAST").
		PlaceholderFormat(sq.Dollar)
	if naics != "" {
		b = b.Where(sq.Eq{"naics_code": naics})
	}
	if since != nil {
		b = b.Where(sq.GtOrEq{"start_date": *since})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing agency awards: %w", err)
	}
	return collectAwards(rows)
}

// CandidateFilter bounds the linker's candidate award query.
type CandidateFilter struct {
	Agency     string
	NAICSCodes []string
	Limit      int
}

// CandidateAwards returns the bounded candidate set for fuzzy linking: the
// most recent, largest awards overlapping the opportunity's agency or NAICS
// codes. The cap keeps batch linking O(opportunities x candidates).
func (s *Store) CandidateAwards(ctx context.Context, f CandidateFilter) ([]models.Award, error) {
	if f.Limit <= 0 {
		f.Limit = 200
	}
	b := sq.Select(awardColumns).From("awards").
		OrderBy("end_date DESC NULLS LAST", "total_obligation DESC").
		Limit(uint64(f.Limit)).
		PlaceholderFormat(sq.Dollar)

	var or sq.Or
	if f.Agency != "" {
		or = append(or, sq.ILike{"awarding_agency": "%" + f.Agency + "%"})
	}
	if len(f.NAICSCodes) > 0 {
		or = append(or, sq.Eq{"naics_code": f.NAICSCodes})
	}
	if len(or) > 0 {
		b = b.Where(or)
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing candidate awards: %w", err)
	}
	return collectAwards(rows)
}

// AwardFilter bounds the API-facing award listing.
type AwardFilter struct {
	Agency   string
	NAICS    string
	MinScore int
	Limit    int
}

// ListAwards returns the scored award population for the read API, highest
// relevance first.
func (s *Store) ListAwards(ctx context.Context, f AwardFilter) ([]models.Award, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	b := sq.Select(awardColumns).From("awards").
		OrderBy("relevance_score DESC NULLS LAST", "total_obligation DESC").
		Limit(uint64(f.Limit)).
		PlaceholderFormat(sq.Dollar)
	if f.Agency != "" {
		b = b.Where(sq.ILike{"awarding_agency": "%" + f.Agency + "%"})
	}
	if f.NAICS != "" {
		b = b.Where(sq.Eq{"naics_code": f.NAICS})
	}
	if f.MinScore > 0 {
		b = b.Where(sq.GtOrEq{"relevance_score": f.MinScore})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing awards: %w", err)
	}
	return collectAwards(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAward(r rowScanner) (*models.Award, error) {
	var a models.Award
	var generated, awardID, recipientName, recipientID, agency sql.NullString
	var naics, naicsDesc, psc, pscDesc, setAside sql.NullString
	var types []byte
	var start, end, lastMod sql.NullTime
	var desc sql.NullString
	var score sql.NullInt64
	var signals pq.StringArray
	err := r.Scan(&a.ExternalID, &generated, &awardID, &a.TotalObligation, &recipientName, &recipientID,
		&agency, &naics, &naicsDesc, &psc, &pscDesc, &setAside, &types,
		&start, &end, &desc, &a.EnrichmentStatus, &score, &signals, &lastMod)
	if err != nil {
		return nil, err
	}
	a.GeneratedID = generated.String
	a.AwardID = awardID.String
	a.RecipientName = recipientName.String
	a.RecipientID = recipientID.String
	a.AwardingAgency = agency.String
	a.NAICSCode = naics.String
	a.NAICSDescription = naicsDesc.String
	a.PSCCode = psc.String
	a.PSCDescription = pscDesc.String
	a.SetAside = setAside.String
	a.Description = desc.String
	if len(types) > 0 {
		_ = json.Unmarshal(types, &a.BusinessTypes)
	}
	if start.Valid {
		t := start.Time
		a.StartDate = &t
	}
	if end.Valid {
		t := end.Time
		a.EndDate = &t
	}
	if lastMod.Valid {
		t := lastMod.Time
		a.LastModified = &t
	}
	if score.Valid {
		v := int(score.Int64)
		a.RelevanceScore = &v
	}
	a.Signals = []string(signals)
	return &a, nil
}

func collectAwards(rows *sql.Rows) ([]models.Award, error) {
	defer rows.Close()
	var out []models.Award
	for rows.Next() {
		a, err := scanAward(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullJSON(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

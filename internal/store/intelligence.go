package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ospreyintel/awardflow/models"
)

const upsertProfileSQL = `
INSERT INTO agency_intelligence_cache (agency_key, naics_code, profile, award_count, calculated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (agency_key, naics_code) DO UPDATE SET
  profile = EXCLUDED.profile,
  award_count = EXCLUDED.award_count,
  calculated_at = EXCLUDED.calculated_at;
`

// PutAgencyProfile caches a computed behavior profile. Last writer wins: the
// payload is derived and recomputable, so a lost update only costs one extra
// recomputation.
func (s *Store) PutAgencyProfile(ctx context.Context, p *models.AgencyProfile) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, upsertProfileSQL,
		p.AgencyKey, p.NAICSCode, payload, p.AwardCount, p.CalculatedAt)
	if err != nil {
		return fmt.Errorf("caching profile %s/%s: %w", p.AgencyKey, p.NAICSCode, err)
	}
	return nil
}

// GetAgencyProfile returns the cached profile for (agency, NAICS), or nil
// when no entry exists or the entry is older than maxAge. Stale entries are
// treated as absent, never served.
func (s *Store) GetAgencyProfile(ctx context.Context, agencyKey, naics string, maxAge time.Duration) (*models.AgencyProfile, error) {
	var payload []byte
	err := s.DB.QueryRowContext(ctx,
		`SELECT profile FROM agency_intelligence_cache
WHERE agency_key = $1 AND naics_code = $2 AND calculated_at > $3`,
		agencyKey, naics, time.Now().Add(-maxAge)).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading cached profile %s/%s: %w", agencyKey, naics, err)
	}
	var p models.AgencyProfile
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("decoding cached profile: %w", err)
	}
	return &p, nil
}

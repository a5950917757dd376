package store

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/ospreyintel/awardflow/models"
)

const upsertLinkSQL = `
INSERT INTO opportunity_award_links (opportunity_id, award_external_id, confidence, matched_naics,
  matched_agency, title_similarity, relationship, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
ON CONFLICT (opportunity_id, award_external_id) DO UPDATE SET
  confidence = EXCLUDED.confidence,
  matched_naics = EXCLUDED.matched_naics,
  matched_agency = EXCLUDED.matched_agency,
  title_similarity = EXCLUDED.title_similarity,
  relationship = EXCLUDED.relationship,
  updated_at = NOW();
`

// UpsertLink persists one opportunity-award link, keyed by the pair. The
// linker only calls this for matches that already satisfied the policy;
// links are never created speculatively.
func (s *Store) UpsertLink(ctx context.Context, l models.OpportunityAwardLink) error {
	_, err := s.DB.ExecContext(ctx, upsertLinkSQL,
		l.OpportunityID, l.AwardExternal, l.Confidence, pq.Array(l.MatchedNAICS),
		nullStr(l.MatchedAgency), l.TitleSimilarity, nullStr(l.Relationship))
	if err != nil {
		return fmt.Errorf("upserting link %s->%s: %w", l.OpportunityID, l.AwardExternal, err)
	}
	return nil
}

// ListLinks returns the links for one opportunity, strongest first.
func (s *Store) ListLinks(ctx context.Context, opportunityID string) ([]models.OpportunityAwardLink, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT opportunity_id, award_external_id, confidence, matched_naics, matched_agency, title_similarity, relationship
FROM opportunity_award_links WHERE opportunity_id = $1 ORDER BY confidence DESC`, opportunityID)
	if err != nil {
		return nil, fmt.Errorf("listing links for %s: %w", opportunityID, err)
	}
	defer rows.Close()
	var out []models.OpportunityAwardLink
	for rows.Next() {
		var l models.OpportunityAwardLink
		var naics pq.StringArray
		var agencyStr, relStr *string
		if err := rows.Scan(&l.OpportunityID, &l.AwardExternal, &l.Confidence, &naics, &agencyStr, &l.TitleSimilarity, &relStr); err != nil {
			return nil, err
		}
		l.MatchedNAICS = []string(naics)
		if agencyStr != nil {
			l.MatchedAgency = *agencyStr
		}
		if relStr != nil {
			l.Relationship = *relStr
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

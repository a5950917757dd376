package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/ospreyintel/awardflow/models"
)

const opportunityColumns = `id, notice_id, title, agency, naics_codes, description, solicitation_no, set_aside,
  capture_status, fingerprint, pipeline_status, current_stage, stage_errors,
  scrape_done, enrich_done, analyze_done, scraped_text, attachment_ref, analysis,
  started_at, completed_at, auto_processed`

// GetOpportunity loads one opportunity with its pipeline state.
func (s *Store) GetOpportunity(ctx context.Context, id string) (*models.Opportunity, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+opportunityColumns+` FROM opportunities WHERE id = $1`, id)
	o, err := scanOpportunity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading opportunity %s: %w", id, err)
	}
	return o, nil
}

// ListPursuing returns opportunities currently in pursuit, excluding the
// external terminal states.
func (s *Store) ListPursuing(ctx context.Context) ([]models.Opportunity, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+opportunityColumns+` FROM opportunities
WHERE capture_status = 'pursuing' AND pipeline_status NOT IN ($1, $2)
ORDER BY started_at ASC NULLS FIRST`, models.StatusFlagged, models.StatusIgnored)
	if err != nil {
		return nil, fmt.Errorf("listing pursuing opportunities: %w", err)
	}
	defer rows.Close()
	var out []models.Opportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

const updatePipelineStateSQL = `
UPDATE opportunities SET
  pipeline_status = $2,
  current_stage = $3,
  stage_errors = $4,
  scrape_done = $5,
  enrich_done = $6,
  analyze_done = $7,
  scraped_text = $8,
  attachment_ref = $9,
  analysis = $10,
  started_at = $11,
  completed_at = $12,
  auto_processed = $13,
  updated_at = NOW()
WHERE id = $1;
`

// SavePipelineState persists the orchestrator-owned fields of an opportunity.
// Written after every stage so a terminated run resumes where it stopped.
func (s *Store) SavePipelineState(ctx context.Context, o *models.Opportunity) error {
	stageErrs, err := json.Marshal(o.StageErrors)
	if err != nil {
		return fmt.Errorf("encoding stage errors: %w", err)
	}
	var analysis interface{}
	if o.Analysis != nil {
		b, err := json.Marshal(o.Analysis)
		if err != nil {
			return fmt.Errorf("encoding analysis: %w", err)
		}
		analysis = b
	}
	_, err = s.DB.ExecContext(ctx, updatePipelineStateSQL,
		o.ID, o.PipelineStatus, nullStr(o.CurrentStage), stageErrs,
		o.ScrapeDone, o.EnrichDone, o.AnalyzeDone,
		nullStr(o.ScrapedText), nullStr(o.AttachmentRef), analysis,
		o.StartedAt, o.CompletedAt, o.AutoProcessed)
	if err != nil {
		return fmt.Errorf("saving pipeline state for %s: %w", o.ID, err)
	}
	return nil
}

// SetFingerprint records the opportunity's dedup fingerprint.
func (s *Store) SetFingerprint(ctx context.Context, id, fingerprint string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE opportunities SET fingerprint = $2, updated_at = NOW() WHERE id = $1`, id, fingerprint)
	if err != nil {
		return fmt.Errorf("setting fingerprint for %s: %w", id, err)
	}
	return nil
}

func scanOpportunity(r rowScanner) (*models.Opportunity, error) {
	var o models.Opportunity
	var naics pq.StringArray
	var desc, solicitation, setAside, capture, fingerprint, stage, text, attach sql.NullString
	var stageErrs, analysis []byte
	var started, completed sql.NullTime
	err := r.Scan(&o.ID, &o.NoticeID, &o.Title, &o.Agency, &naics, &desc, &solicitation, &setAside,
		&capture, &fingerprint, &o.PipelineStatus, &stage, &stageErrs,
		&o.ScrapeDone, &o.EnrichDone, &o.AnalyzeDone, &text, &attach, &analysis,
		&started, &completed, &o.AutoProcessed)
	if err != nil {
		return nil, err
	}
	o.NAICSCodes = []string(naics)
	o.Description = desc.String
	o.SolicitationNo = solicitation.String
	o.SetAside = setAside.String
	o.CaptureStatus = capture.String
	o.Fingerprint = fingerprint.String
	o.CurrentStage = stage.String
	o.ScrapedText = text.String
	o.AttachmentRef = attach.String
	if len(stageErrs) > 0 {
		_ = json.Unmarshal(stageErrs, &o.StageErrors)
	}
	if len(analysis) > 0 {
		_ = json.Unmarshal(analysis, &o.Analysis)
	}
	if started.Valid {
		t := started.Time
		o.StartedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		o.CompletedAt = &t
	}
	return &o, nil
}

package ingest

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ospreyintel/awardflow/internal/usaspending"
	"github.com/ospreyintel/awardflow/models"
)

// ErrMissingIdentifier marks a record that resolved no identifier under any
// known field name. Such records are skipped, not failed; the batch
// continues and counts them separately.
var ErrMissingIdentifier = errors.New("award record has no resolvable identifier")

// Identifier resolution order: explicit award id, generic id,
// generated-unique id, then known alias fields.
var (
	explicitIDKeys  = []string{"Award ID", "piid", "fain", "uri"}
	genericIDKeys   = []string{"id"}
	generatedIDKeys = []string{"generated_internal_id", "generated_unique_award_id"}
	aliasIDKeys     = []string{"internal_id", "award_id", "contract_award_unique_key"}
)

// Normalizer maps heterogeneous upstream payloads into canonical awards.
type Normalizer struct {
	API    AwardAPI
	Logger *log.Logger
}

// NewNormalizer builds a normalizer; api may be nil to disable detail
// backfill.
func NewNormalizer(api AwardAPI, logger *log.Logger) *Normalizer {
	if logger == nil {
		logger = log.Default()
	}
	return &Normalizer{API: api, Logger: logger}
}

// Normalize produces the canonical award for one raw payload. Records
// lacking every descriptive field get one best-effort detail fetch to
// backfill before the minimal record is accepted as-is.
func (n *Normalizer) Normalize(ctx context.Context, raw usaspending.RawAward) (models.Award, error) {
	resolved := resolveIdentifier(raw)
	if resolved == "" {
		return models.Award{}, ErrMissingIdentifier
	}

	a := buildAward(raw)
	a.AwardID = raw.Str(explicitIDKeys...)
	a.GeneratedID = raw.Str(generatedIDKeys...)
	a.ExternalID = a.GeneratedID
	if a.ExternalID == "" {
		a.ExternalID = resolved
	}
	a.Raw = raw.Raw

	if isDescriptivelyBlank(a) && n.API != nil {
		detail, err := n.API.GetAward(ctx, resolved)
		if err != nil {
			n.Logger.Printf("detail backfill for %s failed, persisting minimal record: %v", resolved, err)
			return a, nil
		}
		MergeDetail(&a, detail)
	}
	return a, nil
}

func resolveIdentifier(raw usaspending.RawAward) string {
	if id := raw.Str(explicitIDKeys...); id != "" {
		return id
	}
	if id := raw.Str(genericIDKeys...); id != "" {
		return id
	}
	if id := raw.Str(generatedIDKeys...); id != "" {
		return id
	}
	return raw.Str(aliasIDKeys...)
}

// buildAward maps whichever known shape the payload carries; unrecognized
// payloads go through the same alias probing, which is exactly what coping
// with this API means.
func buildAward(raw usaspending.RawAward) models.Award {
	a := models.Award{
		TotalObligation:  raw.Num("Award Amount", "total_obligation", "obligated_amount"),
		RecipientName:    raw.Str("Recipient Name", "recipient_name"),
		RecipientID:      raw.Str("recipient_id", "recipient_uei", "recipient_unique_id"),
		AwardingAgency:   raw.Str("Awarding Agency", "awarding_agency_name"),
		NAICSCode:        raw.Str("naics_code", "NAICS"),
		NAICSDescription: raw.Str("naics_description"),
		PSCCode:          raw.Str("psc_code", "PSC"),
		PSCDescription:   raw.Str("psc_description", "product_or_service_description"),
		SetAside:         raw.Str("type_set_aside", "type_set_aside_description"),
		Description:      raw.Str("Description", "description"),
		EnrichmentStatus: models.EnrichmentPending,
	}
	a.StartDate = parseDate(raw.Str("Start Date", "period_of_performance_start_date"))
	a.EndDate = parseDate(raw.Str("End Date", "period_of_performance_current_end_date"))
	a.LastModified = parseDate(raw.Str("Last Modified Date", "last_modified_date", "update_date"))

	if sub, ok := raw.Sub("awarding_agency"); ok {
		if top, ok := sub.Sub("toptier_agency"); ok {
			if name := top.Str("name"); name != "" {
				a.AwardingAgency = name
			}
		}
	}
	if sub, ok := raw.Sub("recipient"); ok {
		if name := sub.Str("recipient_name"); name != "" {
			a.RecipientName = name
		}
		if uei := sub.Str("recipient_uei", "uei"); uei != "" {
			a.RecipientID = uei
		}
		a.BusinessTypes = sub.StrSlice("business_categories", "business_types_description")
	}
	if sub, ok := raw.Sub("latest_transaction"); ok {
		if cd, ok := sub.Sub("contract_data"); ok {
			if a.NAICSCode == "" {
				a.NAICSCode = cd.Str("naics")
			}
			if a.SetAside == "" {
				a.SetAside = cd.Str("type_set_aside_description", "type_set_aside")
			}
		}
	}
	return a
}

// isDescriptivelyBlank reports a record with no description, agency,
// recipient, or NAICS/PSC description: the trigger for a backfill fetch.
func isDescriptivelyBlank(a models.Award) bool {
	return a.Description == "" && a.AwardingAgency == "" && a.RecipientName == "" &&
		a.NAICSDescription == "" && a.PSCDescription == ""
}

// MergeDetail fills empty canonical fields from a detail payload without
// overwriting values discovery already supplied.
func MergeDetail(a *models.Award, detail usaspending.RawAward) {
	d := buildAward(detail)
	if a.Description == "" {
		a.Description = d.Description
	}
	if a.AwardingAgency == "" {
		a.AwardingAgency = d.AwardingAgency
	}
	if a.RecipientName == "" {
		a.RecipientName = d.RecipientName
	}
	if a.RecipientID == "" {
		a.RecipientID = d.RecipientID
	}
	if a.NAICSCode == "" {
		a.NAICSCode = d.NAICSCode
	}
	if a.NAICSDescription == "" {
		a.NAICSDescription = d.NAICSDescription
	}
	if a.PSCCode == "" {
		a.PSCCode = d.PSCCode
	}
	if a.PSCDescription == "" {
		a.PSCDescription = d.PSCDescription
	}
	if a.SetAside == "" {
		a.SetAside = d.SetAside
	}
	if len(a.BusinessTypes) == 0 {
		a.BusinessTypes = d.BusinessTypes
	}
	if a.StartDate == nil {
		a.StartDate = d.StartDate
	}
	if a.EndDate == nil {
		a.EndDate = d.EndDate
	}
	if a.LastModified == nil {
		a.LastModified = d.LastModified
	}
	if a.GeneratedID == "" {
		a.GeneratedID = detail.Str(generatedIDKeys...)
	}
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02T15:04:05"}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

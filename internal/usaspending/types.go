package usaspending

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TimePeriod bounds a search to an inclusive date range (YYYY-MM-DD).
type TimePeriod struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// AgencyFilter selects awards by awarding/funding agency name.
type AgencyFilter struct {
	Type string `json:"type"` // awarding or funding
	Tier string `json:"tier"` // toptier or subtier
	Name string `json:"name"`
}

// SearchFilters is the filter object for the spending_by_award endpoint.
type SearchFilters struct {
	NAICSCodes     []string       `json:"naics_codes,omitempty"`
	AwardTypeCodes []string       `json:"award_type_codes,omitempty"`
	Agencies       []AgencyFilter `json:"agencies,omitempty"`
	TimePeriod     []TimePeriod   `json:"time_period,omitempty"`
	Keywords       []string       `json:"keywords,omitempty"`
}

// SearchRequest is the body for POST /search/spending_by_award/.
type SearchRequest struct {
	Filters SearchFilters `json:"filters"`
	Fields  []string      `json:"fields"`
	Page    int           `json:"page"`
	Limit   int           `json:"limit"`
	Sort    string        `json:"sort,omitempty"`
	Order   string        `json:"order,omitempty"`
}

// PageMetadata carries upstream pagination state.
type PageMetadata struct {
	Page        int  `json:"page"`
	HasNextPage bool `json:"has_next_page"`
	Total       int  `json:"total,omitempty"`
}

// SearchResponse is the envelope for award and transaction searches.
type SearchResponse struct {
	Results      []json.RawMessage `json:"results"`
	PageMetadata PageMetadata      `json:"page_metadata"`
	Messages     []string          `json:"messages,omitempty"`
}

// TransactionRequest is the body for POST /search/spending_by_transaction/.
type TransactionRequest struct {
	Filters map[string]interface{} `json:"filters"`
	Fields  []string               `json:"fields"`
	Page    int                    `json:"page"`
	Limit   int                    `json:"limit"`
	Sort    string                 `json:"sort,omitempty"`
	Order   string                 `json:"order,omitempty"`
}

// DefaultSearchFields are the columns requested from the search endpoint.
var DefaultSearchFields = []string{
	"Award ID", "Recipient Name", "Awarding Agency", "Awarding Sub Agency",
	"Award Amount", "Total Outlays", "Description", "Start Date", "End Date",
	"NAICS", "PSC", "Last Modified Date", "recipient_id", "generated_internal_id",
}

// RawKind tags which upstream payload shape a RawAward carries.
type RawKind int

const (
	// KindUnrecognized is a payload that matched no known shape; the
	// normalizer falls back to probing alias fields on it.
	KindUnrecognized RawKind = iota
	// KindSearchRow is a row from /search/spending_by_award/.
	KindSearchRow
	// KindDetail is a payload from /awards/{id}/.
	KindDetail
)

// RawAward is one upstream award payload in whichever shape the API returned
// it. Fields is always populated so callers can probe alias keys; Raw holds
// the original bytes for audit persistence.
type RawAward struct {
	Kind   RawKind
	Fields map[string]interface{}
	Raw    json.RawMessage
}

// DecodeRawAward classifies an upstream payload into a tagged RawAward.
func DecodeRawAward(raw json.RawMessage) (RawAward, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return RawAward{}, fmt.Errorf("decoding award payload: %w", err)
	}
	kind := KindUnrecognized
	if _, ok := fields["Award ID"]; ok {
		kind = KindSearchRow
	} else if _, ok := fields["generated_internal_id"]; ok {
		kind = KindSearchRow
	} else if _, ok := fields["generated_unique_award_id"]; ok {
		kind = KindDetail
	} else if _, ok := fields["total_obligation"]; ok {
		kind = KindDetail
	}
	return RawAward{Kind: kind, Fields: fields, Raw: raw}, nil
}

// Str extracts a string-ish field, coercing numeric values. The upstream API
// returns identifiers as integers on some endpoints and strings on others.
func (r RawAward) Str(keys ...string) string {
	for _, k := range keys {
		v, ok := r.Fields[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case float64:
			// JSON numbers decode as float64; ids are integral.
			return strconv.FormatInt(int64(t), 10)
		case json.Number:
			return t.String()
		}
	}
	return ""
}

// Num extracts a numeric field, coercing string values.
func (r RawAward) Num(keys ...string) float64 {
	for _, k := range keys {
		v, ok := r.Fields[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case float64:
			return t
		case json.Number:
			f, _ := t.Float64()
			return f
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
				return f
			}
		}
	}
	return 0
}

// StrSlice extracts a list-of-strings field.
func (r RawAward) StrSlice(keys ...string) []string {
	for _, k := range keys {
		v, ok := r.Fields[k]
		if !ok || v == nil {
			continue
		}
		items, ok := v.([]interface{})
		if !ok {
			continue
		}
		var out []string
		for _, it := range items {
			if s, ok := it.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// Sub returns a nested object field as a RawAward-style probe.
func (r RawAward) Sub(key string) (RawAward, bool) {
	v, ok := r.Fields[key]
	if !ok || v == nil {
		return RawAward{}, false
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return RawAward{}, false
	}
	return RawAward{Kind: r.Kind, Fields: m}, true
}

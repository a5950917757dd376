package models

import (
	"time"
)

// Enrichment statuses for an award.
const (
	EnrichmentPending   = "pending"
	EnrichmentCompleted = "completed"
	EnrichmentFailed    = "failed"
)

// Pipeline statuses for an opportunity, in forward order. Error is absorbing
// unless a forced rerun is requested; Flagged and Ignored are set externally.
const (
	StatusDiscovered = "discovered"
	StatusScraping   = "scraping"
	StatusScraped    = "scraped"
	StatusEnriching  = "enriching"
	StatusEnriched   = "enriched"
	StatusAnalyzing  = "analyzing"
	StatusAnalyzed   = "analyzed"
	StatusReady      = "ready"
	StatusFlagged    = "flagged"
	StatusIgnored    = "ignored"
	StatusError      = "error"
)

// Activity signals attached to an award by the scoring engine.
const (
	SignalActive          = "ACTIVE"
	SignalStable          = "STABLE"
	SignalDeclining       = "DECLINING"
	SignalRecompeteWindow = "RECOMPETE_WINDOW"
)

// Award is the canonical, normalized form of an upstream award record.
// ExternalID is the stable upsert key; GeneratedID is the upstream
// generated-unique identifier used as a secondary dedup key.
type Award struct {
	ExternalID       string
	GeneratedID      string
	AwardID          string // human-readable id (PIID or FAIN)
	TotalObligation  float64
	RecipientName    string
	RecipientID      string // UEI or DUNS when present
	AwardingAgency   string
	NAICSCode        string
	NAICSDescription string
	PSCCode          string
	PSCDescription   string
	SetAside         string
	BusinessTypes    []string
	StartDate        *time.Time
	EndDate          *time.Time
	Description      string
	EnrichmentStatus string
	RelevanceScore   *int
	Signals          []string
	LastModified     *time.Time
	Raw              []byte // original upstream payload, persisted for audit
	BatchID          string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Transaction is a single obligation action against an award.
type Transaction struct {
	ID            string
	AwardExternal string
	ActionDate    *time.Time
	Amount        float64
	ModNumber     string
	Description   string
}

// Opportunity is an in-pursuit notice produced by an external discovery
// collaborator; this system consumes it for linking and pipeline runs.
type Opportunity struct {
	ID             string
	NoticeID       string
	Title          string
	Agency         string
	NAICSCodes     []string
	Description    string
	SolicitationNo string
	SetAside       string
	CaptureStatus  string
	Fingerprint    string

	// Pipeline state, mutated only by the orchestrator.
	PipelineStatus string
	CurrentStage   string
	StageErrors    []StageError
	ScrapeDone     bool
	EnrichDone     bool
	AnalyzeDone    bool
	ScrapedText    string
	AttachmentRef  string
	Analysis       map[string]interface{}
	StartedAt      *time.Time
	CompletedAt    *time.Time
	AutoProcessed  bool
}

// StageError is one structured entry in an opportunity's error log.
type StageError struct {
	Stage      string    `json:"stage"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// OpportunityAwardLink joins an opportunity to a historical award once the
// match policy is satisfied.
type OpportunityAwardLink struct {
	OpportunityID   string
	AwardExternal   string
	Confidence      float64
	MatchedNAICS    []string
	MatchedAgency   string
	TitleSimilarity float64
	Relationship    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// AgencyProfile is the cached behavior profile for an (agency, NAICS) pair.
// Statistical fields are nil when fewer than the minimum sample of awards
// exists; AwardCount is always set so callers can tell "no signal" from error.
type AgencyProfile struct {
	AgencyKey       string     `json:"agency_key"`
	NAICSCode       string     `json:"naics_code"`
	AwardCount      int        `json:"award_count"`
	NewVendorRate   *float64   `json:"new_vendor_rate"`
	AvgAwardSize    *float64   `json:"avg_award_size"`
	MedianAwardSize *float64   `json:"median_award_size"`
	AwardsPerYear   *float64   `json:"awards_per_year"`
	IncumbentHHI    *float64   `json:"incumbent_hhi"`
	RecompeteLikely *float64   `json:"recompete_likelihood"`
	CalculatedAt    time.Time  `json:"calculated_at"`
	WindowStart     *time.Time `json:"window_start,omitempty"`
}

// SetAsideReality reports how strictly an agency's historical winners in a
// NAICS actually matched a stated set-aside type.
type SetAsideReality struct {
	SetAside         string   `json:"set_aside"`
	Strength         string   `json:"strength"` // STRICT, MODERATE or WEAK
	ComplianceRate   float64  `json:"compliance_rate"`
	Deviations       []string `json:"deviations"`
	SampleSize       int      `json:"sample_size"`
	InsufficientData bool     `json:"insufficient_data"`
}

// Enforcement strength bands for SetAsideReality.
const (
	EnforcementStrict   = "STRICT"
	EnforcementModerate = "MODERATE"
	EnforcementWeak     = "WEAK"
)

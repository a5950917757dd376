package intel

import (
	"context"

	"github.com/ospreyintel/awardflow/models"
)

// Intelligence bundles the combined intelligence pass for one opportunity.
type Intelligence struct {
	Profile  *models.AgencyProfile  `json:"agency_behavior_profile"`
	SetAside models.SetAsideReality `json:"set_aside_enforcement"`
}

// OpportunityIntelligence runs the combined pass for an opportunity: the
// cached agency behavior profile plus the set-aside enforcement reality,
// both scoped to the opportunity's primary NAICS.
func (an *Analyzer) OpportunityIntelligence(ctx context.Context, opp models.Opportunity) (*Intelligence, error) {
	var naics string
	if len(opp.NAICSCodes) > 0 {
		naics = opp.NAICSCodes[0]
	}

	profile, err := an.AgencyProfile(ctx, opp.Agency, naics)
	if err != nil {
		return nil, err
	}

	since := an.now().AddDate(-an.Config.WindowYears, 0, 0)
	awards, err := an.Store.ListAwardsByAgencyNAICS(ctx, opp.Agency, naics, &since)
	if err != nil {
		return nil, err
	}
	reality := an.SetAsideEnforcement(opp.SetAside, awards)

	return &Intelligence{Profile: profile, SetAside: reality}, nil
}

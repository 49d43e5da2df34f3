package escrow

import (
	"time"

	"github.com/escrowhq/escrow/config"
	"github.com/escrowhq/escrow/model"
)

// Timeline holds the day counts governing a transaction's deadlines.
type Timeline struct {
	CompletionDeadlineDays int
	ReviewPeriodDays       int
}

// PartyRoles names the two sides of a transaction for a given category.
type PartyRoles struct {
	PayerRole string
	PayeeRole string
}

var defaultTimelines = map[model.Category]Timeline{
	model.CategoryWork:         {CompletionDeadlineDays: 30, ReviewPeriodDays: 7},
	model.CategoryService:      {CompletionDeadlineDays: 30, ReviewPeriodDays: 7},
	model.CategoryConsulting:   {CompletionDeadlineDays: 45, ReviewPeriodDays: 10},
	model.CategoryPartnership:  {CompletionDeadlineDays: 60, ReviewPeriodDays: 10},
	model.CategoryBusinessSale: {CompletionDeadlineDays: 90, ReviewPeriodDays: 14},
	model.CategoryInvestment:   {CompletionDeadlineDays: 120, ReviewPeriodDays: 14},
	model.CategoryOther:        {CompletionDeadlineDays: 30, ReviewPeriodDays: 7},
}

// TimelineFor returns the deadline day counts for a category, applying any
// per-deployment override from the configuration. Unknown categories fall back
// to the "other" defaults.
func TimelineFor(category model.Category, conf *config.Configuration) Timeline {
	timeline, ok := defaultTimelines[category]
	if !ok {
		timeline = defaultTimelines[model.CategoryOther]
	}
	if conf != nil {
		if override, ok := conf.Timeline[string(category)]; ok {
			timeline.CompletionDeadlineDays = override.CompletionDeadlineDays
			timeline.ReviewPeriodDays = override.ReviewPeriodDays
		}
	}
	return timeline
}

// Roles maps a listing category to the roles each party plays. Which side
// pays depends on the category: for investments the investor funds the deal,
// for a business sale the buyer pays the seller, otherwise a client pays a
// provider for delivered work.
func Roles(category model.Category) PartyRoles {
	switch category {
	case model.CategoryInvestment:
		return PartyRoles{PayerRole: "investor", PayeeRole: "founder"}
	case model.CategoryBusinessSale:
		return PartyRoles{PayerRole: "buyer", PayeeRole: "seller"}
	case model.CategoryPartnership:
		return PartyRoles{PayerRole: "funding_partner", PayeeRole: "operating_partner"}
	default:
		return PartyRoles{PayerRole: "client", PayeeRole: "provider"}
	}
}

// DeadlineDate derives the completion deadline from the creation time.
func DeadlineDate(createdAt time.Time, completionDeadlineDays int) time.Time {
	return createdAt.AddDate(0, 0, completionDeadlineDays)
}

// AutoReleaseDate derives the automatic release time from a work submission
// time. Recomputed on every (re)submission.
func AutoReleaseDate(submittedAt time.Time, reviewPeriodDays int) time.Time {
	return submittedAt.AddDate(0, 0, reviewPeriodDays)
}

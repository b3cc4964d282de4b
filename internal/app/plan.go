/**
 * @description
 * Subscription plan catalog and the description-based plan derivation used by
 * the activation flow. Payment records encode the purchased plan inside the
 * human-readable description string, so settlement-time code derives the plan
 * key and duration by substring match against the known labels.
 */
package app

import (
	"strings"

	"github.com/tradelearn/billing-service/internal/domain"
)

// Plan describes one purchasable subscription plan.
type Plan struct {
	Key          string `json:"key"`
	Label        string `json:"label"`
	DurationDays int    `json:"duration_days"`
	Price        int64  `json:"price"` // smallest currency unit
}

// planCatalog is the set of purchasable plans, keyed by canonical plan key.
var planCatalog = map[string]Plan{
	domain.Plan1Month:  {Key: domain.Plan1Month, Label: "1 Month", DurationDays: 30, Price: 50000},
	domain.Plan3Months: {Key: domain.Plan3Months, Label: "3 Months", DurationDays: 90, Price: 120000},
	domain.Plan1Year:   {Key: domain.Plan1Year, Label: "1 Year", DurationDays: 365, Price: 400000},
}

// LookupPlan returns the catalog entry for a canonical plan key.
func LookupPlan(key string) (Plan, bool) {
	p, ok := planCatalog[key]
	return p, ok
}

// DurationDaysFromDescription derives the subscription length in days from a
// payment description. Unrecognized descriptions default to 30 days.
func DurationDaysFromDescription(description string) int {
	desc := strings.ToLower(description)
	switch {
	case strings.Contains(desc, "3 months") || strings.Contains(desc, "90 days"):
		return 90
	case strings.Contains(desc, "1 year") || strings.Contains(desc, "365 days"):
		return 365
	case strings.Contains(desc, "1 month") || strings.Contains(desc, "30 days"):
		return 30
	default:
		return 30
	}
}

// PlanKeyFromDescription derives the canonical plan key from a payment
// description by the same substring matching. Unrecognized descriptions
// default to the one-month plan.
func PlanKeyFromDescription(description string) string {
	desc := strings.ToLower(description)
	switch {
	case strings.Contains(desc, "3 months") || strings.Contains(desc, "90 days"):
		return domain.Plan3Months
	case strings.Contains(desc, "1 year") || strings.Contains(desc, "365 days"):
		return domain.Plan1Year
	case strings.Contains(desc, "1 month") || strings.Contains(desc, "30 days"):
		return domain.Plan1Month
	default:
		return domain.Plan1Month
	}
}

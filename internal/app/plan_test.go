package app

import (
	"testing"

	"github.com/tradelearn/billing-service/internal/domain"
)

func TestDurationDaysFromDescription(t *testing.T) {
	tests := []struct {
		name        string
		description string
		wantDays    int
	}{
		{"three month label", "3 Months Premium Subscription", 90},
		{"three month day count", "Premium access for 90 days", 90},
		{"one year label", "1 Year Premium Subscription", 365},
		{"one year day count", "Premium access for 365 days", 365},
		{"one month label", "1 Month Premium Subscription", 30},
		{"one month day count", "Premium access for 30 days", 30},
		{"case insensitive", "3 MONTHS premium", 90},
		{"unrecognized defaults to 30", "Premium Subscription", 30},
		{"empty defaults to 30", "", 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DurationDaysFromDescription(tt.description); got != tt.wantDays {
				t.Fatalf("DurationDaysFromDescription(%q) = %d, want %d", tt.description, got, tt.wantDays)
			}
		})
	}
}

func TestPlanKeyFromDescription(t *testing.T) {
	tests := []struct {
		name        string
		description string
		wantKey     string
	}{
		{"three months", "3 Months Premium Subscription", domain.Plan3Months},
		{"one year", "1 Year Premium Subscription", domain.Plan1Year},
		{"one month", "1 Month Premium Subscription", domain.Plan1Month},
		{"ninety days", "90 days of premium", domain.Plan3Months},
		{"unrecognized defaults to 1month", "Premium Subscription", domain.Plan1Month},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PlanKeyFromDescription(tt.description); got != tt.wantKey {
				t.Fatalf("PlanKeyFromDescription(%q) = %q, want %q", tt.description, got, tt.wantKey)
			}
		})
	}
}

func TestLookupPlan(t *testing.T) {
	plan, ok := LookupPlan(domain.Plan3Months)
	if !ok {
		t.Fatal("expected 3months plan in catalog")
	}
	if plan.DurationDays != 90 {
		t.Fatalf("expected 90-day duration, got %d", plan.DurationDays)
	}
	if plan.Price != 120000 {
		t.Fatalf("expected 120000 price, got %d", plan.Price)
	}

	if _, ok := LookupPlan("lifetime"); ok {
		t.Fatal("did not expect unknown plan key in catalog")
	}
}

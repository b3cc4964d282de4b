package app

import "testing"

func TestResolveNotification(t *testing.T) {
	tests := []struct {
		name              string
		transactionStatus string
		fraudStatus       string
		want              NotificationOutcome
	}{
		{"settlement accepted", "settlement", "accept", OutcomeActivate},
		{"capture accepted", "capture", "accept", OutcomeActivate},
		{"settlement without fraud status", "settlement", "", OutcomeActivate},
		{"capture challenged holds for review", "capture", "challenge", OutcomeHold},
		{"settlement with denied fraud fails", "settlement", "deny", OutcomeFail},
		{"pending stays pending", "pending", "", OutcomeHold},
		{"deny fails", "deny", "", OutcomeFail},
		{"expire fails", "expire", "", OutcomeFail},
		{"cancel fails", "cancel", "", OutcomeFail},
		{"unknown status ignored", "refund", "", OutcomeIgnore},
		{"uppercase input normalized", "SETTLEMENT", "ACCEPT", OutcomeActivate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveNotification(tt.transactionStatus, tt.fraudStatus)
			if got != tt.want {
				t.Fatalf("ResolveNotification(%q, %q) = %d, want %d", tt.transactionStatus, tt.fraudStatus, got, tt.want)
			}
		})
	}
}

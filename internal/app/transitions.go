/**
 * @description
 * Pure transition logic for gateway payment-status observations. Both the
 * webhook handler and the status poller converge on ResolveNotification so the
 * two racing paths cannot disagree on what a given gateway status means.
 */
package app

import "strings"

// NotificationOutcome is the action a gateway status observation maps to.
type NotificationOutcome int

const (
	// OutcomeIgnore means the observation carries no transition.
	OutcomeIgnore NotificationOutcome = iota
	// OutcomeActivate means the payment settled and membership activation runs.
	OutcomeActivate
	// OutcomeHold keeps the record pending (in-flight payment or manual fraud review).
	OutcomeHold
	// OutcomeFail marks the payment failed.
	OutcomeFail
)

// ResolveNotification maps a gateway transaction status and fraud status onto
// a transition outcome. The mapping is a pure function; callers apply the
// outcome through compare-and-set store updates, so repeated application of
// the same terminal observation is a no-op.
func ResolveNotification(transactionStatus, fraudStatus string) NotificationOutcome {
	status := strings.ToLower(strings.TrimSpace(transactionStatus))
	fraud := strings.ToLower(strings.TrimSpace(fraudStatus))
	// Non-card payment channels omit fraud_status on settlement; the gateway
	// only populates it for card transactions that went through fraud checks.
	if fraud == "" {
		fraud = "accept"
	}

	switch status {
	case "settlement", "capture":
		switch fraud {
		case "accept":
			return OutcomeActivate
		case "challenge":
			return OutcomeHold
		default:
			return OutcomeFail
		}
	case "pending":
		return OutcomeHold
	case "deny", "expire", "cancel":
		return OutcomeFail
	default:
		return OutcomeIgnore
	}
}

package domain

import (
	"strings"
	"time"

	catalogdomain "github.com/smallbiznis/console/internal/catalog/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionStatusPaused            SubscriptionStatus = "paused"
)

// NormalizeStatus lower-cases and trims a status; "cancelled" is accepted.
func NormalizeStatus(raw string) SubscriptionStatus {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "cancelled" {
		value = string(SubscriptionStatusCanceled)
	}
	return SubscriptionStatus(value)
}

// Usable reports whether a subscription in this status grants its modules.
// past_due keeps access while the processor retries payment.
func (s SubscriptionStatus) Usable() bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusTrialing, SubscriptionStatusPastDue:
		return true
	default:
		return false
	}
}

// Subscription is the read-only subscription record of the current account.
type Subscription struct {
	PlanID           string
	PlanName         string
	Status           SubscriptionStatus
	CurrentUsers     int64
	CurrentPeriodEnd *time.Time
}

// UserUsage is the seat usage reported by the backend. The percentage is
// derived locally from these two values.
type UserUsage struct {
	Current int64
	Limit   *int64
}

// PlanLimits is the server-side entitlement view of /v1/plan-limits.
type PlanLimits struct {
	HasSubscription bool
	Subscription    *Subscription
	Modules         map[string]catalogdomain.Module
	MaxUsers        *int64
	Users           UserUsage
}

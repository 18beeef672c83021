package entitlement

import (
	"time"

	catalogdomain "github.com/smallbiznis/console/internal/catalog/domain"
	subscriptiondomain "github.com/smallbiznis/console/internal/subscription/domain"
)

// Result is the entitlement view of one account.
type Result struct {
	HasSubscription  bool
	PlanID           string
	PlanName         string
	Status           subscriptiondomain.SubscriptionStatus
	CurrentPeriodEnd *time.Time
	UserUsage        UserUsage
	EntitledModules  map[string]catalogdomain.Module
	// Unresolved lists plan module ids missing from the catalog, in plan order.
	Unresolved []string
	// PlanMissing is set when the subscribed plan is not in the catalog.
	PlanMissing bool
}

// UserUsage is seat usage against the plan limit. A nil Limit is unlimited.
type UserUsage struct {
	Current        int64
	Limit          *int64
	Percentage     int
	ShowPercentage bool
}

// Package entitlement derives which modules an account may use, and how much
// of its seat limit it consumes, from a subscription and the catalog.
package entitlement

import (
	"math"

	"github.com/samber/lo"
	catalogdomain "github.com/smallbiznis/console/internal/catalog/domain"
	subscriptiondomain "github.com/smallbiznis/console/internal/subscription/domain"
)

// Resolve computes the entitlement result of sub against cat. It is a pure
// function of its inputs and is evaluated at read time, never cached.
func Resolve(sub *subscriptiondomain.Subscription, cat catalogdomain.Catalog) Result {
	result := Result{EntitledModules: map[string]catalogdomain.Module{}}
	if sub == nil {
		return result
	}

	result.PlanID = sub.PlanID
	result.PlanName = sub.PlanName
	result.Status = sub.Status
	result.CurrentPeriodEnd = sub.CurrentPeriodEnd
	result.UserUsage = UserUsage{Current: sub.CurrentUsers}
	if !sub.Status.Usable() {
		return result
	}
	result.HasSubscription = true

	plan, ok := cat.FindPlan(sub.PlanID)
	if !ok {
		result.PlanMissing = true
		return result
	}
	if result.PlanName == "" {
		result.PlanName = plan.Name
	}

	for _, id := range lo.Uniq(plan.Modules) {
		module, found := cat.FindModule(id)
		if !found {
			result.Unresolved = append(result.Unresolved, id)
			continue
		}
		result.EntitledModules[id] = module
	}
	result.UserUsage = Usage(sub.CurrentUsers, plan.MaxUsers)
	return result
}

// FromPlanLimits builds the result from the backend's server-resolved
// limits. It is used when the subscription does not name its plan id.
func FromPlanLimits(limits subscriptiondomain.PlanLimits) Result {
	result := Result{EntitledModules: map[string]catalogdomain.Module{}}
	sub := limits.Subscription
	if sub != nil {
		result.PlanID = sub.PlanID
		result.PlanName = sub.PlanName
		result.Status = sub.Status
		result.CurrentPeriodEnd = sub.CurrentPeriodEnd
	}
	result.UserUsage = UserUsage{Current: limits.Users.Current}
	if !limits.HasSubscription || sub == nil || !sub.Status.Usable() {
		return result
	}
	result.HasSubscription = true

	for id, module := range limits.Modules {
		result.EntitledModules[id] = module
	}

	limit := limits.Users.Limit
	if limit == nil {
		limit = limits.MaxUsers
	}
	result.UserUsage = Usage(limits.Users.Current, limit)
	return result
}

// ResolveLimits prefers resolving against the catalog, so entitlements
// follow the plan's current module set, and falls back to the server view
// when the plan cannot be identified.
func ResolveLimits(limits subscriptiondomain.PlanLimits, cat catalogdomain.Catalog) Result {
	sub := limits.Subscription
	if !limits.HasSubscription || sub == nil || sub.PlanID == "" {
		return FromPlanLimits(limits)
	}
	if _, ok := cat.FindPlan(sub.PlanID); !ok {
		return FromPlanLimits(limits)
	}

	withUsers := *sub
	withUsers.CurrentUsers = limits.Users.Current
	return Resolve(&withUsers, cat)
}

// Usage computes seat usage. Percentage is shown only for a positive limit.
func Usage(current int64, limit *int64) UserUsage {
	usage := UserUsage{Current: current}
	if limit == nil {
		return usage
	}
	l := *limit
	usage.Limit = &l
	if l <= 0 {
		return usage
	}
	usage.Percentage = int(math.Round(float64(current) / float64(l) * 100))
	usage.ShowPercentage = true
	return usage
}

// IsEntitled reports whether result grants moduleID.
func IsEntitled(result Result, moduleID string) bool {
	if !result.HasSubscription {
		return false
	}
	_, ok := result.EntitledModules[moduleID]
	return ok
}

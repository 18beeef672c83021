package domain

import (
	"strings"

	"github.com/samber/lo"
	"github.com/smallbiznis/console/internal/money"
)

// Module is a feature module that plans enable.
type Module struct {
	ModuleID    string `json:"module_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	IsActive    bool   `json:"is_active"`
}

// Plan is a subscription plan. Prices are minor units of Currency.
type Plan struct {
	PlanID         string           `json:"plan_id"`
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	MonthlyPrice   money.MinorUnits `json:"monthly_price"`
	YearlyPrice    money.MinorUnits `json:"yearly_price"`
	Currency       string           `json:"currency,omitempty"`
	MaxUsers       *int64           `json:"max_users"`
	PriceIDMonthly string           `json:"price_id_monthly,omitempty"`
	PriceIDYearly  string           `json:"price_id_yearly,omitempty"`
	Modules        []string         `json:"modules"`
	Features       []string         `json:"features"`
	IsActive       bool             `json:"is_active"`
}

// Unlimited reports whether the plan has no user cap.
func (p Plan) Unlimited() bool {
	return p.MaxUsers == nil
}

// HasModule reports whether the plan references moduleID.
func (p Plan) HasModule(moduleID string) bool {
	return lo.Contains(p.Modules, moduleID)
}

// PriceID returns the processor price id for a billing interval.
func (p Plan) PriceID(interval Interval) string {
	if interval == IntervalYearly {
		return p.PriceIDYearly
	}
	return p.PriceIDMonthly
}

// Clone returns a deep copy so callers never share slices with the store.
func (p Plan) Clone() Plan {
	out := p
	out.Modules = append([]string(nil), p.Modules...)
	out.Features = append([]string(nil), p.Features...)
	if p.MaxUsers != nil {
		v := *p.MaxUsers
		out.MaxUsers = &v
	}
	return out
}

type Interval string

const (
	IntervalMonthly Interval = "monthly"
	IntervalYearly  Interval = "yearly"
)

// ParseInterval accepts "monthly"/"month" and "yearly"/"year"/"annual".
func ParseInterval(raw string) (Interval, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "monthly", "month":
		return IntervalMonthly, true
	case "yearly", "year", "annual":
		return IntervalYearly, true
	default:
		return "", false
	}
}

// Kind selects which catalog record an operation targets.
type Kind string

const (
	KindPlan   Kind = "plan"
	KindModule Kind = "module"
)

func ParseKind(raw string) (Kind, bool) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindPlan, "plans":
		return KindPlan, true
	case KindModule, "modules":
		return KindModule, true
	default:
		return "", false
	}
}

// Snapshot is an immutable copy of the catalog at one point in time.
type Snapshot struct {
	Plans   []Plan
	Modules []Module
}

// FindModule looks up a module without failing.
func (s Snapshot) FindModule(id string) (Module, bool) {
	return lo.Find(s.Modules, func(m Module) bool { return m.ModuleID == id })
}

// FindPlan looks up a plan without failing.
func (s Snapshot) FindPlan(id string) (Plan, bool) {
	return lo.Find(s.Plans, func(p Plan) bool { return p.PlanID == id })
}

// PlansReferencing lists the plans whose module set contains moduleID.
func (s Snapshot) PlansReferencing(moduleID string) []Plan {
	return lo.Filter(s.Plans, func(p Plan, _ int) bool { return p.HasModule(moduleID) })
}

// Snapshot returns s itself so a Snapshot can serve as a Catalog.
func (s Snapshot) Snapshot() Snapshot {
	return s
}

var _ Catalog = Snapshot{}

package domain

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// Validate checks the fields every plan record must carry.
func (p Plan) Validate() error {
	switch {
	case strings.TrimSpace(p.PlanID) == "":
		return fmt.Errorf("plan_id is required")
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("plan %q: name is required", p.PlanID)
	case p.MonthlyPrice < 0:
		return fmt.Errorf("plan %q: monthly_price must not be negative", p.PlanID)
	case p.YearlyPrice < 0:
		return fmt.Errorf("plan %q: yearly_price must not be negative", p.PlanID)
	case p.MaxUsers != nil && *p.MaxUsers < 0:
		return fmt.Errorf("plan %q: max_users must not be negative", p.PlanID)
	}
	return nil
}

// Validate checks the fields every module record must carry.
func (m Module) Validate() error {
	switch {
	case strings.TrimSpace(m.ModuleID) == "":
		return fmt.Errorf("module_id is required")
	case strings.TrimSpace(m.Name) == "":
		return fmt.Errorf("module %q: name is required", m.ModuleID)
	}
	return nil
}

// ValidatePlans validates each plan and rejects duplicate identifiers.
func ValidatePlans(plans []Plan) error {
	for _, p := range plans {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	ids := lo.Map(plans, func(p Plan, _ int) string { return p.PlanID })
	if dup := lo.FindDuplicates(ids); len(dup) > 0 {
		return fmt.Errorf("duplicate plan_id %q", dup[0])
	}
	return nil
}

// ValidateModules validates each module and rejects duplicate identifiers.
func ValidateModules(modules []Module) error {
	for _, m := range modules {
		if err := m.Validate(); err != nil {
			return err
		}
	}
	ids := lo.Map(modules, func(m Module, _ int) string { return m.ModuleID })
	if dup := lo.FindDuplicates(ids); len(dup) > 0 {
		return fmt.Errorf("duplicate module_id %q", dup[0])
	}
	return nil
}

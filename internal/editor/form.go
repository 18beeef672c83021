package editor

import (
	"strings"

	"github.com/samber/lo"
	catalogdomain "github.com/smallbiznis/console/internal/catalog/domain"
	"github.com/smallbiznis/console/internal/money"
)

type Mode string

const (
	ModeCreate Mode = "create"
	ModeEdit   Mode = "edit"
)

// ModuleOption is one row of the plan form's module checklist.
type ModuleOption struct {
	ModuleID string `json:"module_id"`
	Name     string `json:"name"`
	Checked  bool   `json:"checked"`
	Inactive bool   `json:"inactive,omitempty"`
	// Missing marks a plan reference to a module absent from the catalog.
	Missing bool `json:"missing,omitempty"`
}

// PlanForm is the editable state of a plan. Prices are minor units.
type PlanForm struct {
	Mode       Mode   `json:"mode" validate:"oneof=create edit"`
	OriginalID string `json:"original_id,omitempty"`

	PlanID         string         `json:"plan_id" validate:"required,identifier"`
	Name           string         `json:"name" validate:"required"`
	Description    string         `json:"description"`
	MonthlyPrice   *int64         `json:"monthly_price" validate:"required,gte=0"`
	YearlyPrice    *int64         `json:"yearly_price" validate:"required,gte=0"`
	Currency       string         `json:"currency" validate:"omitempty,len=3,alpha"`
	MaxUsers       *int64         `json:"max_users" validate:"omitempty,gt=0"`
	PriceIDMonthly string         `json:"price_id_monthly"`
	PriceIDYearly  string         `json:"price_id_yearly"`
	Modules        []ModuleOption `json:"modules"`
	FeaturesText   string         `json:"features_text"`
	IsActive       bool           `json:"is_active"`
}

// ModuleForm is the editable state of a module.
type ModuleForm struct {
	Mode       Mode   `json:"mode" validate:"oneof=create edit"`
	OriginalID string `json:"original_id,omitempty"`

	ModuleID    string `json:"module_id" validate:"required,identifier"`
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	IsActive    bool   `json:"is_active"`
}

// Form is the editor model of either kind; exactly one of Plan and Module
// is set, matching Kind.
type Form struct {
	Kind   catalogdomain.Kind `json:"kind"`
	Plan   *PlanForm          `json:"plan,omitempty"`
	Module *ModuleForm        `json:"module,omitempty"`
}

// SelectedModules returns the checked module ids in checklist order.
func (f PlanForm) SelectedModules() []string {
	checked := lo.Filter(f.Modules, func(o ModuleOption, _ int) bool { return o.Checked })
	return lo.Uniq(lo.Map(checked, func(o ModuleOption, _ int) string { return strings.TrimSpace(o.ModuleID) }))
}

func (f PlanForm) toPlan() catalogdomain.Plan {
	return catalogdomain.Plan{
		PlanID:         strings.TrimSpace(f.PlanID),
		Name:           strings.TrimSpace(f.Name),
		Description:    strings.TrimSpace(f.Description),
		MonthlyPrice:   minorUnits(f.MonthlyPrice),
		YearlyPrice:    minorUnits(f.YearlyPrice),
		Currency:       strings.ToLower(strings.TrimSpace(f.Currency)),
		MaxUsers:       cloneInt64(f.MaxUsers),
		PriceIDMonthly: strings.TrimSpace(f.PriceIDMonthly),
		PriceIDYearly:  strings.TrimSpace(f.PriceIDYearly),
		Modules:        f.SelectedModules(),
		Features:       FeaturesFromText(f.FeaturesText),
		IsActive:       f.IsActive,
	}
}

func (f ModuleForm) toModule() catalogdomain.Module {
	return catalogdomain.Module{
		ModuleID:    strings.TrimSpace(f.ModuleID),
		Name:        strings.TrimSpace(f.Name),
		Description: strings.TrimSpace(f.Description),
		Icon:        strings.TrimSpace(f.Icon),
		IsActive:    f.IsActive,
	}
}

// checklist lists every catalog module, checking those in selected.
// Selected ids absent from the catalog are appended checked and Missing.
func checklist(modules []catalogdomain.Module, selected []string) []ModuleOption {
	options := lo.Map(modules, func(m catalogdomain.Module, _ int) ModuleOption {
		return ModuleOption{
			ModuleID: m.ModuleID,
			Name:     m.Name,
			Checked:  lo.Contains(selected, m.ModuleID),
			Inactive: !m.IsActive,
		}
	})
	known := lo.SliceToMap(modules, func(m catalogdomain.Module) (string, struct{}) { return m.ModuleID, struct{}{} })
	for _, id := range lo.Uniq(selected) {
		if _, ok := known[id]; ok {
			continue
		}
		options = append(options, ModuleOption{ModuleID: id, Name: id, Checked: true, Missing: true})
	}
	return options
}

func planForm(plan catalogdomain.Plan, modules []catalogdomain.Module) *PlanForm {
	monthly := int64(plan.MonthlyPrice)
	yearly := int64(plan.YearlyPrice)
	return &PlanForm{
		Mode:           ModeEdit,
		OriginalID:     plan.PlanID,
		PlanID:         plan.PlanID,
		Name:           plan.Name,
		Description:    plan.Description,
		MonthlyPrice:   &monthly,
		YearlyPrice:    &yearly,
		Currency:       plan.Currency,
		MaxUsers:       cloneInt64(plan.MaxUsers),
		PriceIDMonthly: plan.PriceIDMonthly,
		PriceIDYearly:  plan.PriceIDYearly,
		Modules:        checklist(modules, plan.Modules),
		FeaturesText:   FeaturesToText(plan.Features),
		IsActive:       plan.IsActive,
	}
}

func moduleForm(module catalogdomain.Module) *ModuleForm {
	return &ModuleForm{
		Mode:        ModeEdit,
		OriginalID:  module.ModuleID,
		ModuleID:    module.ModuleID,
		Name:        module.Name,
		Description: module.Description,
		Icon:        module.Icon,
		IsActive:    module.IsActive,
	}
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func minorUnits(v *int64) money.MinorUnits {
	if v == nil {
		return 0
	}
	return money.MinorUnits(*v)
}

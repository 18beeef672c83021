package projection

// Tone is the visual weight of a badge.
type Tone string

const (
	ToneSuccess Tone = "success"
	ToneWarning Tone = "warning"
	ToneDanger  Tone = "danger"
	ToneInfo    Tone = "info"
	ToneNeutral Tone = "neutral"
)

type Badge struct {
	Label string `json:"label"`
	Tone  Tone   `json:"tone"`
}

// Options carries display settings.
type Options struct {
	DefaultCurrency string
	// FeaturedIndex highlights the card at this position; negative disables.
	FeaturedIndex   int
	WarningPercent  int
	CriticalPercent int
}

func DefaultOptions() Options {
	return Options{
		DefaultCurrency: "usd",
		FeaturedIndex:   1,
		WarningPercent:  80,
		CriticalPercent: 100,
	}
}

type ModuleChip struct {
	ModuleID string `json:"module_id"`
	Name     string `json:"name"`
	Inactive bool   `json:"inactive,omitempty"`
	Missing  bool   `json:"missing,omitempty"`
}

type PlanCard struct {
	PlanID      string `json:"plan_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Currency    string `json:"currency"`

	MonthlyPrice         string `json:"monthly_price"`
	YearlyPrice          string `json:"yearly_price"`
	YearlyPerMonth       string `json:"yearly_per_month"`
	YearlySavings        string `json:"yearly_savings,omitempty"`
	YearlySavingsPercent int    `json:"yearly_savings_percent,omitempty"`

	UserLimit string       `json:"user_limit"`
	Features  []string     `json:"features"`
	Modules   []ModuleChip `json:"modules"`

	Featured bool  `json:"featured"`
	Status   Badge `json:"status"`
	Current  bool  `json:"current,omitempty"`

	MonthlyCheckout bool `json:"monthly_checkout"`
	YearlyCheckout  bool `json:"yearly_checkout"`
}

type ModuleCard struct {
	ModuleID    string   `json:"module_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Icon        string   `json:"icon"`
	Status      Badge    `json:"status"`
	PlanCount   int      `json:"plan_count"`
	Plans       []string `json:"plans"`
}

type EntitlementCard struct {
	ModuleID    string `json:"module_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Available   bool   `json:"available"`
	Status      Badge  `json:"status"`
}

type CountsView struct {
	Plans         int `json:"plans"`
	ActivePlans   int `json:"active_plans"`
	Modules       int `json:"modules"`
	ActiveModules int `json:"active_modules"`
}

type UsageLevel string

const (
	UsageOK       UsageLevel = "ok"
	UsageWarning  UsageLevel = "warning"
	UsageCritical UsageLevel = "critical"
)

type UsageBar struct {
	Label          string     `json:"label"`
	Current        int64      `json:"current"`
	Limit          *int64     `json:"limit"`
	Percentage     int        `json:"percentage"`
	ShowPercentage bool       `json:"show_percentage"`
	Level          UsageLevel `json:"level"`
}

type InvoiceRow struct {
	ID               string `json:"id"`
	Number           string `json:"number"`
	Status           Badge  `json:"status"`
	AmountDue        string `json:"amount_due"`
	AmountPaid       string `json:"amount_paid"`
	Created          string `json:"created"`
	HostedInvoiceURL string `json:"hosted_invoice_url,omitempty"`
}

type ModuleUnavailablePage struct {
	ModuleID        string     `json:"module_id"`
	ModuleName      string     `json:"module_name"`
	Description     string     `json:"description"`
	Icon            string     `json:"icon"`
	Missing         bool       `json:"missing"`
	Entitled        bool       `json:"entitled"`
	HasSubscription bool       `json:"has_subscription"`
	CurrentPlan     string     `json:"current_plan"`
	Plans           []PlanCard `json:"plans"`
}

type ChoosePlanPage struct {
	HasSubscription bool       `json:"has_subscription"`
	CurrentPlanID   string     `json:"current_plan_id"`
	CurrentPlanName string     `json:"current_plan_name"`
	Status          Badge      `json:"status"`
	Plans           []PlanCard `json:"plans"`
}

type MyModulesPage struct {
	HasSubscription bool              `json:"has_subscription"`
	PlanName        string            `json:"plan_name"`
	PlanMissing     bool              `json:"plan_missing,omitempty"`
	Status          Badge             `json:"status"`
	RenewsOn        string            `json:"renews_on,omitempty"`
	Usage           UsageBar          `json:"usage"`
	Modules         []EntitlementCard `json:"modules"`
	Unresolved      []string          `json:"unresolved"`
}

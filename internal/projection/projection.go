// Package projection maps catalog and entitlement state to display-ready
// view models. Every function is pure.
package projection

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	catalogdomain "github.com/smallbiznis/console/internal/catalog/domain"
	"github.com/smallbiznis/console/internal/entitlement"
	invoicedomain "github.com/smallbiznis/console/internal/invoice/domain"
	"github.com/smallbiznis/console/internal/money"
	subscriptiondomain "github.com/smallbiznis/console/internal/subscription/domain"
)

const dateLayout = "Jan 2, 2006"

// PlanCards projects every plan in catalog order.
func PlanCards(snap catalogdomain.Snapshot, opts Options) []PlanCard {
	return planCards(snap, snap.Plans, opts)
}

func planCards(snap catalogdomain.Snapshot, plans []catalogdomain.Plan, opts Options) []PlanCard {
	cards := make([]PlanCard, 0, len(plans))
	for i, plan := range plans {
		card := planCard(snap, plan, opts)
		card.Featured = opts.FeaturedIndex >= 0 && i == opts.FeaturedIndex
		cards = append(cards, card)
	}
	return cards
}

func planCard(snap catalogdomain.Snapshot, plan catalogdomain.Plan, opts Options) PlanCard {
	currency := currencyOf(plan.Currency, opts)
	card := PlanCard{
		PlanID:          plan.PlanID,
		Name:            plan.Name,
		Description:     plan.Description,
		Currency:        currency,
		MonthlyPrice:    plan.MonthlyPrice.Amount(currency).Format(),
		YearlyPrice:     plan.YearlyPrice.Amount(currency).Format(),
		UserLimit:       userLimitLabel(plan.MaxUsers),
		Features:        append([]string{}, plan.Features...),
		Modules:         moduleChips(snap, plan.Modules),
		Status:          activeBadge(plan.IsActive),
		MonthlyCheckout: plan.PriceIDMonthly != "",
		YearlyCheckout:  plan.PriceIDYearly != "",
	}

	yearly := decimal.NewFromInt(int64(plan.YearlyPrice))
	perMonth := yearly.Div(decimal.NewFromInt(12)).Round(0)
	card.YearlyPerMonth = money.MinorUnits(perMonth.IntPart()).Amount(currency).Format()

	fullYear := int64(plan.MonthlyPrice) * 12
	if fullYear > 0 && int64(plan.YearlyPrice) < fullYear {
		saved := fullYear - int64(plan.YearlyPrice)
		card.YearlySavings = money.MinorUnits(saved).Amount(currency).Format()
		card.YearlySavingsPercent = int(decimal.NewFromInt(saved * 100).Div(decimal.NewFromInt(fullYear)).Round(0).IntPart())
	}
	return card
}

func moduleChips(snap catalogdomain.Snapshot, ids []string) []ModuleChip {
	return lo.Map(lo.Uniq(ids), func(id string, _ int) ModuleChip {
		module, ok := snap.FindModule(id)
		if !ok {
			return ModuleChip{ModuleID: id, Name: id, Missing: true}
		}
		return ModuleChip{ModuleID: id, Name: module.Name, Inactive: !module.IsActive}
	})
}

func userLimitLabel(maxUsers *int64) string {
	if maxUsers == nil {
		return "Unlimited users"
	}
	if *maxUsers == 1 {
		return "1 user"
	}
	return fmt.Sprintf("Up to %d users", *maxUsers)
}

func currencyOf(currency string, opts Options) string {
	if strings.TrimSpace(currency) != "" {
		return money.NormalizeCurrency(currency)
	}
	return money.NormalizeCurrency(opts.DefaultCurrency)
}

func activeBadge(active bool) Badge {
	if active {
		return Badge{Label: "Active", Tone: ToneSuccess}
	}
	return Badge{Label: "Inactive", Tone: ToneNeutral}
}

// ModuleCards projects every module with the plans that include it.
func ModuleCards(snap catalogdomain.Snapshot) []ModuleCard {
	return lo.Map(snap.Modules, func(m catalogdomain.Module, _ int) ModuleCard {
		plans := snap.PlansReferencing(m.ModuleID)
		return ModuleCard{
			ModuleID:    m.ModuleID,
			Name:        m.Name,
			Description: m.Description,
			Icon:        m.Icon,
			Status:      activeBadge(m.IsActive),
			PlanCount:   len(plans),
			Plans:       lo.Map(plans, func(p catalogdomain.Plan, _ int) string { return p.Name }),
		}
	})
}

// EntitlementCards lists catalog modules as available or locked. Inactive
// modules are shown only when entitled; entitled modules the catalog does
// not list are appended in id order.
func EntitlementCards(modules []catalogdomain.Module, result entitlement.Result) []EntitlementCard {
	cards := make([]EntitlementCard, 0, len(modules))
	seen := map[string]struct{}{}
	for _, m := range modules {
		seen[m.ModuleID] = struct{}{}
		available := entitlement.IsEntitled(result, m.ModuleID)
		if !available && !m.IsActive {
			continue
		}
		cards = append(cards, entitlementCard(m, available))
	}

	extra := lo.Filter(lo.Keys(result.EntitledModules), func(id string, _ int) bool {
		_, ok := seen[id]
		return !ok
	})
	sort.Strings(extra)
	for _, id := range extra {
		if !result.HasSubscription {
			break
		}
		cards = append(cards, entitlementCard(result.EntitledModules[id], true))
	}
	return cards
}

func entitlementCard(m catalogdomain.Module, available bool) EntitlementCard {
	status := Badge{Label: "Locked", Tone: ToneNeutral}
	if available {
		status = Badge{Label: "Available", Tone: ToneSuccess}
	}
	name := m.Name
	if name == "" {
		name = m.ModuleID
	}
	return EntitlementCard{
		ModuleID:    m.ModuleID,
		Name:        name,
		Description: m.Description,
		Icon:        m.Icon,
		Available:   available,
		Status:      status,
	}
}

// Counts returns the tab badge counters.
func Counts(snap catalogdomain.Snapshot) CountsView {
	return CountsView{
		Plans:         len(snap.Plans),
		ActivePlans:   lo.CountBy(snap.Plans, func(p catalogdomain.Plan) bool { return p.IsActive }),
		Modules:       len(snap.Modules),
		ActiveModules: lo.CountBy(snap.Modules, func(m catalogdomain.Module) bool { return m.IsActive }),
	}
}

// Usage builds the seat usage bar.
func Usage(result entitlement.Result, opts Options) UsageBar {
	u := result.UserUsage
	bar := UsageBar{
		Current:        u.Current,
		Limit:          u.Limit,
		Percentage:     u.Percentage,
		ShowPercentage: u.ShowPercentage,
		Level:          UsageOK,
	}
	if u.ShowPercentage && u.Limit != nil {
		bar.Label = fmt.Sprintf("%d of %d users", u.Current, *u.Limit)
	} else {
		bar.Label = fmt.Sprintf("%d users (unlimited)", u.Current)
	}
	if !u.ShowPercentage {
		return bar
	}
	switch {
	case opts.CriticalPercent > 0 && u.Percentage >= opts.CriticalPercent:
		bar.Level = UsageCritical
	case opts.WarningPercent > 0 && u.Percentage >= opts.WarningPercent:
		bar.Level = UsageWarning
	}
	return bar
}

// SubscriptionBadge labels a subscription status.
func SubscriptionBadge(status subscriptiondomain.SubscriptionStatus) Badge {
	switch status {
	case subscriptiondomain.SubscriptionStatusActive:
		return Badge{Label: "Active", Tone: ToneSuccess}
	case subscriptiondomain.SubscriptionStatusTrialing:
		return Badge{Label: "Trial", Tone: ToneInfo}
	case subscriptiondomain.SubscriptionStatusPastDue:
		return Badge{Label: "Past due", Tone: ToneWarning}
	case subscriptiondomain.SubscriptionStatusCanceled:
		return Badge{Label: "Canceled", Tone: ToneNeutral}
	case subscriptiondomain.SubscriptionStatusIncomplete, subscriptiondomain.SubscriptionStatusIncompleteExpired:
		return Badge{Label: "Incomplete", Tone: ToneWarning}
	case subscriptiondomain.SubscriptionStatusUnpaid:
		return Badge{Label: "Unpaid", Tone: ToneDanger}
	case subscriptiondomain.SubscriptionStatusPaused:
		return Badge{Label: "Paused", Tone: ToneNeutral}
	case "":
		return Badge{Label: "No subscription", Tone: ToneNeutral}
	default:
		return Badge{Label: humanize(string(status)), Tone: ToneNeutral}
	}
}

// InvoiceBadge labels an invoice status.
func InvoiceBadge(status invoicedomain.InvoiceStatus) Badge {
	switch status {
	case invoicedomain.InvoiceStatusPaid:
		return Badge{Label: "Paid", Tone: ToneSuccess}
	case invoicedomain.InvoiceStatusOpen:
		return Badge{Label: "Open", Tone: ToneWarning}
	case invoicedomain.InvoiceStatusDraft:
		return Badge{Label: "Draft", Tone: ToneNeutral}
	case invoicedomain.InvoiceStatusVoid:
		return Badge{Label: "Void", Tone: ToneNeutral}
	case invoicedomain.InvoiceStatusUncollectible:
		return Badge{Label: "Uncollectible", Tone: ToneDanger}
	default:
		return Badge{Label: humanize(string(status)), Tone: ToneNeutral}
	}
}

func humanize(value string) string {
	value = strings.ReplaceAll(strings.TrimSpace(value), "_", " ")
	if value == "" {
		return "Unknown"
	}
	return strings.ToUpper(value[:1]) + value[1:]
}

// InvoiceRows formats invoices. amount_due arrives in minor units and
// amount_paid in major units; each is formatted at its own scale.
func InvoiceRows(invoices []invoicedomain.Invoice, opts Options) []InvoiceRow {
	return lo.Map(invoices, func(inv invoicedomain.Invoice, _ int) InvoiceRow {
		currency := currencyOf(inv.Currency, opts)
		number := inv.Number
		if number == "" {
			number = inv.ID
		}
		return InvoiceRow{
			ID:               inv.ID,
			Number:           number,
			Status:           InvoiceBadge(inv.Status),
			AmountDue:        inv.AmountDue.Amount(currency).Format(),
			AmountPaid:       inv.AmountPaid.Amount(currency).Format(),
			Created:          formatDate(inv.Created),
			HostedInvoiceURL: inv.HostedInvoiceURL,
		}
	})
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

// MyModules builds the my-modules page.
func MyModules(snap catalogdomain.Snapshot, result entitlement.Result, opts Options) MyModulesPage {
	page := MyModulesPage{
		HasSubscription: result.HasSubscription,
		PlanName:        result.PlanName,
		PlanMissing:     result.PlanMissing,
		Status:          SubscriptionBadge(result.Status),
		Usage:           Usage(result, opts),
		Modules:         EntitlementCards(snap.Modules, result),
		Unresolved:      append([]string{}, result.Unresolved...),
	}
	if result.CurrentPeriodEnd != nil {
		page.RenewsOn = formatDate(*result.CurrentPeriodEnd)
	}
	return page
}

// ModuleUnavailable builds the module-not-available page: the module (or a
// missing indicator), the active plans that include it and the current plan.
func ModuleUnavailable(snap catalogdomain.Snapshot, result entitlement.Result, moduleID string, opts Options) ModuleUnavailablePage {
	page := ModuleUnavailablePage{
		ModuleID:        moduleID,
		ModuleName:      moduleID,
		Entitled:        entitlement.IsEntitled(result, moduleID),
		HasSubscription: result.HasSubscription,
		CurrentPlan:     result.PlanName,
	}
	if module, ok := snap.FindModule(moduleID); ok {
		page.ModuleName = module.Name
		page.Description = module.Description
		page.Icon = module.Icon
	} else {
		page.Missing = true
	}

	including := lo.Filter(snap.Plans, func(p catalogdomain.Plan, _ int) bool {
		return p.IsActive && p.HasModule(moduleID)
	})
	noFeature := opts
	noFeature.FeaturedIndex = -1
	page.Plans = planCards(snap, including, noFeature)
	markCurrent(page.Plans, result)
	return page
}

// ChoosePlan lists active plans and marks the current one.
func ChoosePlan(snap catalogdomain.Snapshot, result entitlement.Result, opts Options) ChoosePlanPage {
	active := lo.Filter(snap.Plans, func(p catalogdomain.Plan, _ int) bool { return p.IsActive })
	page := ChoosePlanPage{
		HasSubscription: result.HasSubscription,
		CurrentPlanID:   result.PlanID,
		CurrentPlanName: result.PlanName,
		Status:          SubscriptionBadge(result.Status),
		Plans:           planCards(snap, active, opts),
	}
	markCurrent(page.Plans, result)
	return page
}

func markCurrent(cards []PlanCard, result entitlement.Result) {
	if !result.HasSubscription {
		return
	}
	for i := range cards {
		if result.PlanID != "" {
			cards[i].Current = cards[i].PlanID == result.PlanID
			continue
		}
		cards[i].Current = result.PlanName != "" && strings.EqualFold(cards[i].Name, result.PlanName)
	}
}

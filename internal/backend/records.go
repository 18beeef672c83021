package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	catalogdomain "github.com/smallbiznis/console/internal/catalog/domain"
	invoicedomain "github.com/smallbiznis/console/internal/invoice/domain"
	"github.com/smallbiznis/console/internal/money"
	subscriptiondomain "github.com/smallbiznis/console/internal/subscription/domain"
)

// Wire records mirror the backend JSON. Required fields are pointers so a
// missing key is distinguishable from a zero value; conversion to domain
// types fails closed.

type planRecord struct {
	PlanID         string     `json:"plan_id"`
	Name           string     `json:"name"`
	Description    *string    `json:"description"`
	MonthlyPrice   *int64     `json:"monthly_price"`
	YearlyPrice    *int64     `json:"yearly_price"`
	Currency       string     `json:"currency"`
	MaxUsers       *int64     `json:"max_users"`
	PriceIDMonthly *string    `json:"price_id_monthly"`
	PriceIDYearly  *string    `json:"price_id_yearly"`
	Modules        moduleRefs `json:"modules"`
	Features       []string   `json:"features"`
	IsActive       *bool      `json:"is_active"`
}

func (r planRecord) toDomain() (catalogdomain.Plan, error) {
	if r.MonthlyPrice == nil {
		return catalogdomain.Plan{}, fmt.Errorf("plan %q: monthly_price is required", r.PlanID)
	}
	if r.YearlyPrice == nil {
		return catalogdomain.Plan{}, fmt.Errorf("plan %q: yearly_price is required", r.PlanID)
	}
	if r.IsActive == nil {
		return catalogdomain.Plan{}, fmt.Errorf("plan %q: is_active is required", r.PlanID)
	}

	plan := catalogdomain.Plan{
		PlanID:         strings.TrimSpace(r.PlanID),
		Name:           strings.TrimSpace(r.Name),
		Description:    lo.FromPtr(r.Description),
		MonthlyPrice:   money.MinorUnits(*r.MonthlyPrice),
		YearlyPrice:    money.MinorUnits(*r.YearlyPrice),
		Currency:       strings.ToLower(strings.TrimSpace(r.Currency)),
		MaxUsers:       r.MaxUsers,
		PriceIDMonthly: strings.TrimSpace(lo.FromPtr(r.PriceIDMonthly)),
		PriceIDYearly:  strings.TrimSpace(lo.FromPtr(r.PriceIDYearly)),
		Modules:        lo.Uniq([]string(r.Modules)),
		Features:       append([]string{}, r.Features...),
		IsActive:       *r.IsActive,
	}
	if plan.Modules == nil {
		plan.Modules = []string{}
	}
	if err := plan.Validate(); err != nil {
		return catalogdomain.Plan{}, err
	}
	return plan, nil
}

type planPayload struct {
	PlanID         string   `json:"plan_id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	MonthlyPrice   int64    `json:"monthly_price"`
	YearlyPrice    int64    `json:"yearly_price"`
	Currency       string   `json:"currency,omitempty"`
	MaxUsers       *int64   `json:"max_users"`
	PriceIDMonthly *string  `json:"price_id_monthly"`
	PriceIDYearly  *string  `json:"price_id_yearly"`
	Modules        []string `json:"modules"`
	Features       []string `json:"features"`
	IsActive       bool     `json:"is_active"`
}

func newPlanPayload(p catalogdomain.Plan) planPayload {
	return planPayload{
		PlanID:         p.PlanID,
		Name:           p.Name,
		Description:    p.Description,
		MonthlyPrice:   int64(p.MonthlyPrice),
		YearlyPrice:    int64(p.YearlyPrice),
		Currency:       p.Currency,
		MaxUsers:       p.MaxUsers,
		PriceIDMonthly: lo.EmptyableToPtr(p.PriceIDMonthly),
		PriceIDYearly:  lo.EmptyableToPtr(p.PriceIDYearly),
		Modules:        lo.Ternary(p.Modules == nil, []string{}, p.Modules),
		Features:       lo.Ternary(p.Features == nil, []string{}, p.Features),
		IsActive:       p.IsActive,
	}
}

type moduleRecord struct {
	ModuleID    string  `json:"module_id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Icon        *string `json:"icon"`
	IsActive    *bool   `json:"is_active"`
}

func (r moduleRecord) toDomain() (catalogdomain.Module, error) {
	if r.IsActive == nil {
		return catalogdomain.Module{}, fmt.Errorf("module %q: is_active is required", r.ModuleID)
	}
	module := catalogdomain.Module{
		ModuleID:    strings.TrimSpace(r.ModuleID),
		Name:        strings.TrimSpace(r.Name),
		Description: lo.FromPtr(r.Description),
		Icon:        strings.TrimSpace(lo.FromPtr(r.Icon)),
		IsActive:    *r.IsActive,
	}
	if err := module.Validate(); err != nil {
		return catalogdomain.Module{}, err
	}
	return module, nil
}

type modulePayload struct {
	ModuleID    string `json:"module_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	IsActive    bool   `json:"is_active"`
}

func newModulePayload(m catalogdomain.Module) modulePayload {
	return modulePayload{
		ModuleID:    m.ModuleID,
		Name:        m.Name,
		Description: m.Description,
		Icon:        m.Icon,
		IsActive:    m.IsActive,
	}
}

// moduleRefs accepts a list of module ids or a list of module objects.
type moduleRefs []string

func (m *moduleRefs) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err == nil {
		*m = lo.Map(ids, func(id string, _ int) string { return strings.TrimSpace(id) })
		return nil
	}
	var objects []struct {
		ModuleID string `json:"module_id"`
	}
	if err := json.Unmarshal(data, &objects); err != nil {
		return fmt.Errorf("modules: expected ids or module objects: %w", err)
	}
	out := make([]string, 0, len(objects))
	for _, o := range objects {
		id := strings.TrimSpace(o.ModuleID)
		if id == "" {
			return fmt.Errorf("modules: module object without module_id")
		}
		out = append(out, id)
	}
	*m = out
	return nil
}

type planLimitsRecord struct {
	HasSubscription *bool `json:"has_subscription"`
	Subscription    *struct {
		PlanID           string        `json:"plan_id"`
		PlanName         string        `json:"plan_name"`
		Status           string        `json:"status"`
		CurrentPeriodEnd *flexibleTime `json:"current_period_end"`
	} `json:"subscription"`
	Limits struct {
		Modules  map[string]moduleRecord `json:"modules"`
		MaxUsers *int64                  `json:"max_users"`
	} `json:"limits"`
	Users struct {
		Current int64  `json:"current"`
		Limit   *int64 `json:"limit"`
	} `json:"users"`
}

func (r planLimitsRecord) toDomain() (subscriptiondomain.PlanLimits, error) {
	if r.HasSubscription == nil {
		return subscriptiondomain.PlanLimits{}, fmt.Errorf("has_subscription is required")
	}

	limits := subscriptiondomain.PlanLimits{
		HasSubscription: *r.HasSubscription,
		Modules:         make(map[string]catalogdomain.Module, len(r.Limits.Modules)),
		MaxUsers:        r.Limits.MaxUsers,
		Users: subscriptiondomain.UserUsage{
			Current: r.Users.Current,
			Limit:   r.Users.Limit,
		},
	}

	if limits.HasSubscription {
		if r.Subscription == nil {
			return subscriptiondomain.PlanLimits{}, fmt.Errorf("subscription is required when has_subscription is true")
		}
		sub := &subscriptiondomain.Subscription{
			PlanID:       strings.TrimSpace(r.Subscription.PlanID),
			PlanName:     strings.TrimSpace(r.Subscription.PlanName),
			Status:       subscriptiondomain.NormalizeStatus(r.Subscription.Status),
			CurrentUsers: r.Users.Current,
		}
		if sub.Status == "" {
			return subscriptiondomain.PlanLimits{}, fmt.Errorf("subscription.status is required")
		}
		if r.Subscription.CurrentPeriodEnd != nil {
			end := time.Time(*r.Subscription.CurrentPeriodEnd)
			sub.CurrentPeriodEnd = &end
		}
		limits.Subscription = sub
	}

	for key, rec := range r.Limits.Modules {
		if strings.TrimSpace(rec.ModuleID) == "" {
			rec.ModuleID = key
		}
		if rec.IsActive == nil {
			rec.IsActive = lo.ToPtr(true)
		}
		module, err := rec.toDomain()
		if err != nil {
			return subscriptiondomain.PlanLimits{}, fmt.Errorf("limits.modules: %w", err)
		}
		limits.Modules[module.ModuleID] = module
	}

	return limits, nil
}

type checkoutPayload struct {
	PriceID    string `json:"price_id"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

type checkoutRecord struct {
	URL string `json:"url"`
}

type invoiceRecord struct {
	ID               string            `json:"id"`
	Number           string            `json:"number"`
	Status           string            `json:"status"`
	AmountDue        *int64            `json:"amount_due"`
	AmountPaid       *money.MajorUnits `json:"amount_paid"`
	Currency         string            `json:"currency"`
	Created          *flexibleTime     `json:"created"`
	HostedInvoiceURL string            `json:"hosted_invoice_url"`
}

func (r invoiceRecord) toDomain() (invoicedomain.Invoice, error) {
	if strings.TrimSpace(r.ID) == "" {
		return invoicedomain.Invoice{}, fmt.Errorf("invoice id is required")
	}
	if r.AmountDue == nil {
		return invoicedomain.Invoice{}, fmt.Errorf("invoice %q: amount_due is required", r.ID)
	}
	inv := invoicedomain.Invoice{
		ID:               strings.TrimSpace(r.ID),
		Number:           strings.TrimSpace(r.Number),
		Status:           invoicedomain.NormalizeStatus(r.Status),
		AmountDue:        money.MinorUnits(*r.AmountDue),
		Currency:         strings.ToLower(strings.TrimSpace(r.Currency)),
		HostedInvoiceURL: strings.TrimSpace(r.HostedInvoiceURL),
	}
	if r.AmountPaid != nil {
		inv.AmountPaid = *r.AmountPaid
	}
	if r.Created != nil {
		inv.Created = time.Time(*r.Created)
	}
	return inv, nil
}

// flexibleTime accepts unix seconds or RFC 3339 strings.
type flexibleTime time.Time

func (t *flexibleTime) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == `""` {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		parsed, perr := time.Parse(time.RFC3339, unquoted)
		if perr != nil {
			return fmt.Errorf("invalid timestamp %q", unquoted)
		}
		*t = flexibleTime(parsed.UTC())
		return nil
	}
	secs, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s", raw)
	}
	*t = flexibleTime(time.Unix(secs, 0).UTC())
	return nil
}

// unwrapList returns the array held by body, which is either a bare array
// or an object holding it under one of keys.
func unwrapList(body []byte, keys ...string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return trimmed, nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	for _, key := range append([]string{"data"}, keys...) {
		if raw, ok := envelope[key]; ok {
			if t := bytes.TrimSpace(raw); len(t) > 0 && t[0] == '[' {
				return t, nil
			}
		}
	}
	return nil, fmt.Errorf("response holds no list under %v", append([]string{"data"}, keys...))
}

// unwrapObject returns the record held by body, which is either the record
// itself or an object holding it under one of keys.
func unwrapObject(body []byte, keys ...string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	for _, key := range append([]string{"data"}, keys...) {
		if raw, ok := envelope[key]; ok {
			if t := bytes.TrimSpace(raw); len(t) > 0 && t[0] == '{' {
				return t, nil
			}
		}
	}
	return trimmed, nil
}

package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	catalogdomain "github.com/smallbiznis/console/internal/catalog/domain"
	ierr "github.com/smallbiznis/console/internal/errors"
	invoicedomain "github.com/smallbiznis/console/internal/invoice/domain"
	"github.com/smallbiznis/console/internal/money"
	subscriptiondomain "github.com/smallbiznis/console/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*Config)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := Config{BaseURL: srv.URL, Token: "service-token", Timeout: 2 * time.Second}
	for _, fn := range mutate {
		fn(&cfg)
	}
	client, err := New(cfg, srv.Client(), zap.NewNop(), nil)
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

const plansJSON = `[
  {"plan_id":"basic","name":"Basic","monthly_price":1000,"yearly_price":10000,"max_users":5,
   "modules":["crm"],"features":["Email support"],"is_active":true},
  {"plan_id":"pro","name":"Pro","monthly_price":2500,"yearly_price":25000,"max_users":null,
   "modules":[{"module_id":"crm"},{"module_id":"inv"}],"is_active":true,"price_id_monthly":"price_123"}
]`

func TestListPlansAcceptsBareArrayAndEnvelope(t *testing.T) {
	for name, body := range map[string]string{
		"bare":  plansJSON,
		"data":  `{"data":` + plansJSON + `}`,
		"named": `{"plans":` + plansJSON + `}`,
	} {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/saas/plans", r.URL.Path)
				assert.Equal(t, "Bearer service-token", r.Header.Get("Authorization"))
				writeJSON(w, http.StatusOK, body)
			})

			plans, err := client.ListPlans(context.Background())
			require.NoError(t, err)
			require.Len(t, plans, 2)

			assert.Equal(t, "basic", plans[0].PlanID)
			assert.Equal(t, money.MinorUnits(1000), plans[0].MonthlyPrice)
			require.NotNil(t, plans[0].MaxUsers)
			assert.Equal(t, int64(5), *plans[0].MaxUsers)

			assert.True(t, plans[1].Unlimited())
			assert.Equal(t, []string{"crm", "inv"}, plans[1].Modules)
			assert.Equal(t, "price_123", plans[1].PriceIDMonthly)
			assert.Empty(t, plans[1].Features)
		})
	}
}

func TestListPublicPlansSetsQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("public"))
		writeJSON(w, http.StatusOK, `[]`)
	})

	plans, err := client.ListPublicPlans(context.Background())
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestListPlansFailsClosedOnMalformedRecords(t *testing.T) {
	cases := map[string]string{
		"missing monthly price": `[{"plan_id":"basic","name":"Basic","yearly_price":0,"is_active":true}]`,
		"missing is_active":     `[{"plan_id":"basic","name":"Basic","monthly_price":0,"yearly_price":0}]`,
		"negative price":        `[{"plan_id":"basic","name":"Basic","monthly_price":-1,"yearly_price":0,"is_active":true}]`,
		"duplicate ids": `[{"plan_id":"basic","name":"A","monthly_price":0,"yearly_price":0,"is_active":true},
		                   {"plan_id":"basic","name":"B","monthly_price":0,"yearly_price":0,"is_active":true}]`,
		"not json":  `<html>`,
		"no list":   `{"ok":true}`,
		"bad price": `[{"plan_id":"basic","name":"Basic","monthly_price":"ten","yearly_price":0,"is_active":true}]`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusOK, body)
			})
			_, err := client.ListPlans(context.Background())
			require.Error(t, err)
			assert.True(t, ierr.IsFetch(err))
		})
	}
}

func TestReadFailureSurfacesServerMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"message":"database unavailable"}`)
	})

	_, err := client.ListModules(context.Background())
	require.Error(t, err)
	assert.True(t, ierr.IsFetch(err))
	assert.Equal(t, "database unavailable", ierr.DisplayMessage(err))
}

func TestReadFailureFallsBackToGenericMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.ListModules(context.Background())
	require.Error(t, err)
	assert.True(t, ierr.IsFetch(err))
	assert.Equal(t, "Failed to load modules", ierr.DisplayMessage(err))
}

func TestCreatePlanSendsIdempotencyKeyAndForwardedToken(t *testing.T) {
	var received planPayload
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		assert.Len(t, r.Header.Get(IdempotencyHeader), 26)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		writeJSON(w, http.StatusCreated, `{"plan_id":"team","name":"Team (confirmed)","monthly_price":500,"yearly_price":5000,"modules":["crm"],"is_active":true}`)
	})

	ctx := WithBearerToken(context.Background(), "user-token")
	saved, err := client.CreatePlan(ctx, catalogdomain.Plan{
		PlanID:       "team",
		Name:         "Team",
		MonthlyPrice: 500,
		YearlyPrice:  5000,
		Modules:      []string{"crm"},
		IsActive:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, "team", received.PlanID)
	assert.Equal(t, []string{"crm"}, received.Modules)
	assert.Equal(t, []string{}, received.Features)
	assert.Equal(t, "Team (confirmed)", saved.Name)
}

func TestWriteFailureClassification(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		check   func(error) bool
		message string
	}{
		{"conflict", http.StatusConflict, `{"message":"Plan ID already exists"}`, ierr.IsConflict, "Plan ID already exists"},
		{"bad request", http.StatusBadRequest, `{"error":"name too long"}`, ierr.IsConflict, "name too long"},
		{"unprocessable", http.StatusUnprocessableEntity, `{"error":{"message":"price mismatch"}}`, ierr.IsConflict, "price mismatch"},
		{"not found", http.StatusNotFound, `{}`, ierr.IsNotFound, "The plan no longer exists"},
		{"server error", http.StatusBadGateway, `{"message":"upstream down"}`, ierr.IsFetch, "upstream down"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPut, r.Method)
				assert.Equal(t, "/v1/saas/plans/basic", r.URL.Path)
				writeJSON(w, tc.status, tc.body)
			})
			_, err := client.UpdatePlan(context.Background(), catalogdomain.Plan{PlanID: "basic", Name: "Basic", IsActive: true})
			require.Error(t, err)
			assert.True(t, tc.check(err), "unexpected classification: %v", err)
			assert.Equal(t, tc.message, ierr.DisplayMessage(err))
		})
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusServiceUnavailable, `{"message":"down"}`)
	}, func(cfg *Config) {
		cfg.BreakerFailures = 2
		cfg.BreakerOpenTimeout = time.Minute
	})

	for i := 0; i < 2; i++ {
		_, err := client.ListPlans(context.Background())
		require.Error(t, err)
	}
	_, err := client.ListPlans(context.Background())
	require.Error(t, err)
	assert.True(t, ierr.IsFetch(err))
	assert.Contains(t, ierr.DisplayMessage(err), "temporarily unavailable")
	assert.Equal(t, int32(2), hits.Load())
}

func TestCallerCancellationDoesNotTripBreaker(t *testing.T) {
	var healthy atomic.Bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		writeJSON(w, http.StatusOK, `[{"module_id":"crm","name":"CRM","is_active":true}]`)
	}, func(cfg *Config) {
		cfg.BreakerFailures = 1
		cfg.BreakerOpenTimeout = time.Minute
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.ListModules(ctx)
	require.Error(t, err)
	assert.True(t, ierr.IsFetch(err))

	healthy.Store(true)
	modules, err := client.ListModules(context.Background())
	require.NoError(t, err)
	assert.Len(t, modules, 1)
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusConflict, `{"message":"taken"}`)
	}, func(cfg *Config) {
		cfg.BreakerFailures = 1
	})

	for i := 0; i < 3; i++ {
		_, err := client.CreateModule(context.Background(), catalogdomain.Module{ModuleID: "crm", Name: "CRM", IsActive: true})
		require.Error(t, err)
		assert.True(t, ierr.IsConflict(err))
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestGetPlanLimits(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/plan-limits", r.URL.Path)
		writeJSON(w, http.StatusOK, `{
		  "has_subscription": true,
		  "subscription": {"plan_name":"Pro","status":"Active","current_period_end":1767225600},
		  "limits": {"modules": {"crm": {"name":"CRM"}, "inv": {"module_id":"inv","name":"Inventory","is_active":false}}, "max_users": 10},
		  "users": {"current": 8, "limit": 10, "percentage": 80}
		}`)
	})

	limits, err := client.GetPlanLimits(context.Background())
	require.NoError(t, err)

	assert.True(t, limits.HasSubscription)
	require.NotNil(t, limits.Subscription)
	assert.Equal(t, "", limits.Subscription.PlanID)
	assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, limits.Subscription.Status)
	require.NotNil(t, limits.Subscription.CurrentPeriodEnd)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), *limits.Subscription.CurrentPeriodEnd)

	require.Contains(t, limits.Modules, "crm")
	assert.Equal(t, "crm", limits.Modules["crm"].ModuleID)
	assert.True(t, limits.Modules["crm"].IsActive)
	assert.False(t, limits.Modules["inv"].IsActive)
	assert.Equal(t, int64(8), limits.Users.Current)
	require.NotNil(t, limits.Users.Limit)
	assert.Equal(t, int64(10), *limits.Users.Limit)
}

func TestGetPlanLimitsRequiresSubscriptionWhenFlagged(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"has_subscription": true}`)
	})

	_, err := client.GetPlanLimits(context.Background())
	require.Error(t, err)
	assert.True(t, ierr.IsFetch(err))
}

func TestCreateCheckout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var payload checkoutPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "price_123", payload.PriceID)
		assert.NotEmpty(t, r.Header.Get(IdempotencyHeader))
		writeJSON(w, http.StatusOK, `{"url":"https://checkout.example/session"}`)
	})

	redirect, err := client.CreateCheckout(context.Background(), CheckoutRequest{PriceID: "price_123", SuccessURL: "https://app/ok", CancelURL: "https://app/cancel"})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/session", redirect)
}

func TestCreateCheckoutRejectsEmptyURL(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"url":""}`)
	})

	_, err := client.CreateCheckout(context.Background(), CheckoutRequest{PriceID: "price_123"})
	require.Error(t, err)
	assert.True(t, ierr.IsFetch(err))
}

func TestListInvoicesKeepsPerFieldScale(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "paid", r.URL.Query().Get("status"))
		writeJSON(w, http.StatusOK, `{"invoices":[{"id":"in_1","number":"INV-1","status":"paid","amount_due":2500,"amount_paid":"25.00","currency":"usd","created":"2026-03-01T10:00:00Z"}]}`)
	})

	invoices, err := client.ListInvoices(context.Background(), invoicedomain.ListRequest{Status: "paid"})
	require.NoError(t, err)
	require.Len(t, invoices, 1)

	inv := invoices[0]
	assert.Equal(t, invoicedomain.InvoiceStatusPaid, inv.Status)
	assert.Equal(t, "$25.00", inv.AmountDue.Amount(inv.Currency).Format())
	assert.Equal(t, "$25.00", inv.AmountPaid.Amount(inv.Currency).Format())
	assert.Equal(t, 2026, inv.Created.Year())
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "not a url"}, nil, nil, nil)
	require.Error(t, err)
}

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/console/internal/backend"
	catalogservice "github.com/smallbiznis/console/internal/catalog/service"
	"github.com/smallbiznis/console/internal/checkout"
	"github.com/smallbiznis/console/internal/config"
	"github.com/smallbiznis/console/internal/observability"
	"github.com/smallbiznis/console/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeBilling is an in-memory billing API.
type fakeBilling struct {
	mu      sync.Mutex
	plans   []gin.H
	modules []gin.H

	failPlans    atomic.Int32
	failLimits   atomic.Int32
	failInvoices atomic.Int32
	planWrites   atomic.Int32
	lastCheckout gin.H
	lastToken    string
}

func newFakeBilling() *fakeBilling {
	return &fakeBilling{
		plans: []gin.H{
			{"plan_id": "basic", "name": "Basic", "monthly_price": 1000, "yearly_price": 10000, "currency": "usd",
				"max_users": 10, "modules": []string{"crm"}, "is_active": true,
				"price_id_monthly": "price_basic_m", "price_id_yearly": "price_basic_y"},
			{"plan_id": "pro", "name": "Pro", "monthly_price": 2500, "yearly_price": 25000, "currency": "usd",
				"modules": []string{"crm", "inv"}, "is_active": true, "price_id_monthly": "price_pro_m"},
		},
		modules: []gin.H{
			{"module_id": "crm", "name": "CRM", "is_active": true},
			{"module_id": "inv", "name": "Inventory", "is_active": true},
		},
	}
}

func (f *fakeBilling) handler() http.Handler {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		f.mu.Lock()
		f.lastToken = c.GetHeader("Authorization")
		f.mu.Unlock()
		c.Next()
	})
	r.GET("/v1/saas/plans", func(c *gin.Context) {
		if f.failPlans.Load() > 0 {
			f.failPlans.Add(-1)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Plan catalog is unavailable"})
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		plans := f.plans
		if c.Query("public") == "true" {
			plans = plans[:1]
		}
		c.JSON(http.StatusOK, gin.H{"data": plans})
	})
	r.GET("/v1/saas/modules", func(c *gin.Context) {
		f.mu.Lock()
		defer f.mu.Unlock()
		c.JSON(http.StatusOK, f.modules)
	})
	r.POST("/v1/saas/plans", func(c *gin.Context) {
		f.planWrites.Add(1)
		var body gin.H
		_ = c.ShouldBindJSON(&body)
		if body["plan_id"] == "basic" {
			c.JSON(http.StatusConflict, gin.H{"message": "A plan with this ID already exists"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"data": body})
	})
	r.DELETE("/v1/saas/modules/:id", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/v1/plan-limits", func(c *gin.Context) {
		if f.failLimits.Load() > 0 {
			f.failLimits.Add(-1)
			c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Usage service is unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"has_subscription": true,
			"subscription": gin.H{
				"plan_id": "basic", "plan_name": "Basic", "status": "active", "current_period_end": 1767225600,
			},
			"limits": gin.H{"modules": gin.H{"crm": gin.H{"name": "CRM"}}, "max_users": 10},
			"users":  gin.H{"current": 8, "limit": 10, "percentage": 80},
		})
	})
	r.POST("/v1/saas/checkout", func(c *gin.Context) {
		var body gin.H
		_ = c.ShouldBindJSON(&body)
		f.mu.Lock()
		f.lastCheckout = body
		f.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{"url": "https://checkout.example/cs_123"})
	})
	r.GET("/v1/saas/invoices", func(c *gin.Context) {
		if f.failInvoices.Load() > 0 {
			f.failInvoices.Add(-1)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Stripe timed out"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"invoices": []gin.H{
			{"id": "in_1", "number": "INV-1", "status": "paid", "amount_due": 2500, "amount_paid": 25,
				"currency": "usd", "created": 1767225600},
		}})
	})
	return r
}

type harness struct {
	t        *testing.T
	engine   *gin.Engine
	billing  *fakeBilling
	sessions *session.Registry
	cookie   *http.Cookie
	token    string
}

func newHarness(t *testing.T, serviceToken string) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	billing := newFakeBilling()
	upstream := httptest.NewServer(billing.handler())
	t.Cleanup(upstream.Close)

	client, err := backend.New(backend.Config{BaseURL: upstream.URL, Token: serviceToken, BreakerFailures: 100}, nil, zap.NewNop(), nil)
	require.NoError(t, err)

	factory := catalogservice.NewFactory(catalogservice.FactoryParams{Source: client, Log: zap.NewNop()})
	registry := session.New(factory, client, time.Minute, zap.NewNop(), nil)
	cfg := config.Config{
		Session: config.SessionConfig{CookieName: "console_session", TTL: time.Minute},
		Backend: config.BackendConfig{BaseURL: upstream.URL, Token: serviceToken},
	}

	engine := NewEngine(observability.Config{}, nil)
	NewServer(ServerParams{
		Gin:         engine,
		Cfg:         cfg,
		Log:         zap.NewNop(),
		Backend:     client,
		Sessions:    registry,
		CheckoutSvc: checkout.New(client, "https://console.example/success", "https://console.example/cancel", zap.NewNop()),
		Display:     config.NewStaticDisplayConfigHolder(config.DefaultDisplayConfig()),
	})

	return &harness{t: t, engine: engine, billing: billing, sessions: registry}
}

func (h *harness) do(method, path string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == "console_session" && cookie.Value != "" {
			h.cookie = cookie
		}
	}
	return rec
}

type page struct {
	Data          json.RawMessage        `json:"data"`
	Notifications []session.Notification `json:"notifications"`
}

func decodePage(t *testing.T, rec *httptest.ResponseRecorder, data any) page {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var p page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	if data != nil {
		require.NoError(t, json.Unmarshal(p.Data, data))
	}
	return p
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error
}

func TestHealth(t *testing.T) {
	h := newHarness(t, "svc-token")
	rec := h.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminCatalogRendersCardsAndCounts(t *testing.T) {
	h := newHarness(t, "svc-token")

	var view adminCatalogView
	p := decodePage(t, h.do(http.MethodGet, "/console/admin/plans", nil), &view)

	assert.Empty(t, p.Notifications)
	require.Len(t, view.Plans, 2)
	assert.Equal(t, "$10.00", view.Plans[0].MonthlyPrice)
	assert.Equal(t, 2, view.Counts.Plans)
	assert.Equal(t, 2, view.Counts.ActiveModules)
	assert.Equal(t, 2, view.Modules[0].PlanCount)
	assert.NotNil(t, h.cookie)
	assert.Equal(t, "Bearer svc-token", h.billing.lastToken)
}

func TestFailedLoadRendersOneNotificationUntilRetrySucceeds(t *testing.T) {
	h := newHarness(t, "svc-token")
	h.billing.failPlans.Store(2)

	var view adminCatalogView
	p := decodePage(t, h.do(http.MethodGet, "/console/admin/plans", nil), &view)
	assert.Empty(t, view.Plans)
	require.Len(t, p.Notifications, 1)
	assert.Equal(t, "fetch_error", p.Notifications[0].Type)
	assert.Equal(t, "Plan catalog is unavailable", p.Notifications[0].Message)

	p = decodePage(t, h.do(http.MethodPost, "/console/refresh?view=admin-plans", nil), &view)
	assert.Len(t, p.Notifications, 1)

	p = decodePage(t, h.do(http.MethodPost, "/console/refresh", nil), &view)
	assert.Empty(t, p.Notifications)
	assert.Len(t, view.Plans, 2)
}

func TestRefreshRetriesTheReadsOfItsView(t *testing.T) {
	h := newHarness(t, "svc-token")
	h.billing.failLimits.Store(2)

	type myModules struct {
		HasSubscription bool   `json:"has_subscription"`
		PlanName        string `json:"plan_name"`
	}

	var view myModules
	p := decodePage(t, h.do(http.MethodGet, "/console/my-modules", nil), &view)
	assert.False(t, view.HasSubscription)
	require.Len(t, p.Notifications, 1)
	assert.Equal(t, "Usage service is unavailable", p.Notifications[0].Message)

	view = myModules{}
	p = decodePage(t, h.do(http.MethodPost, "/console/refresh?view=my-modules", nil), &view)
	assert.False(t, view.HasSubscription)
	require.Len(t, p.Notifications, 1)
	assert.Equal(t, "Usage service is unavailable", p.Notifications[0].Message)

	view = myModules{}
	p = decodePage(t, h.do(http.MethodPost, "/console/refresh?view=my-modules", nil), &view)
	assert.Empty(t, p.Notifications)
	assert.True(t, view.HasSubscription)
	assert.Equal(t, "Basic", view.PlanName)
}

func TestRefreshRendersTheRequestedPage(t *testing.T) {
	h := newHarness(t, "svc-token")
	h.billing.failInvoices.Store(1)

	p := decodePage(t, h.do(http.MethodGet, "/console/invoices", nil), nil)
	require.Len(t, p.Notifications, 1)

	var rows []struct {
		Number string `json:"number"`
	}
	p = decodePage(t, h.do(http.MethodPost, "/console/refresh?view=invoices&status=paid", nil), &rows)
	assert.Empty(t, p.Notifications)
	require.Len(t, rows, 1)
	assert.Equal(t, "INV-1", rows[0].Number)

	var unavailable struct {
		ModuleName string `json:"module_name"`
	}
	decodePage(t, h.do(http.MethodPost, "/console/refresh?view=module-not-available&module_id=inv", nil), &unavailable)
	assert.Equal(t, "Inventory", unavailable.ModuleName)

	rec := h.do(http.MethodPost, "/console/refresh?view=module-not-available", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"module_id"}, fieldNames(decodeError(t, rec)))
}

func TestDismissNotification(t *testing.T) {
	h := newHarness(t, "svc-token")
	h.billing.failInvoices.Store(1)

	p := decodePage(t, h.do(http.MethodGet, "/console/invoices", nil), nil)
	require.Len(t, p.Notifications, 1)
	assert.Equal(t, "Stripe timed out", p.Notifications[0].Message)

	rec := h.do(http.MethodDelete, "/console/notifications/invoices", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = h.do(http.MethodDelete, "/console/notifications/billing", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvoicesRenderBothAmountScales(t *testing.T) {
	h := newHarness(t, "svc-token")

	var rows []struct {
		Number     string `json:"number"`
		AmountDue  string `json:"amount_due"`
		AmountPaid string `json:"amount_paid"`
	}
	decodePage(t, h.do(http.MethodGet, "/console/invoices?status=paid", nil), &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, "$25.00", rows[0].AmountDue)
	assert.Equal(t, "$25.00", rows[0].AmountPaid)

	rec := h.do(http.MethodGet, "/console/invoices?status=refunded", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"status"}, fieldNames(decodeError(t, rec)))
}

func TestMyModulesResolvesAgainstCatalog(t *testing.T) {
	h := newHarness(t, "svc-token")

	var view struct {
		HasSubscription bool   `json:"has_subscription"`
		PlanName        string `json:"plan_name"`
		Usage           struct {
			Percentage int    `json:"percentage"`
			Level      string `json:"level"`
		} `json:"usage"`
		Modules []struct {
			ModuleID  string `json:"module_id"`
			Available bool   `json:"available"`
		} `json:"modules"`
	}
	decodePage(t, h.do(http.MethodGet, "/console/my-modules", nil), &view)

	assert.True(t, view.HasSubscription)
	assert.Equal(t, "Basic", view.PlanName)
	assert.Equal(t, 80, view.Usage.Percentage)
	assert.Equal(t, "warning", view.Usage.Level)
	require.Len(t, view.Modules, 2)
	assert.Equal(t, "crm", view.Modules[0].ModuleID)
	assert.True(t, view.Modules[0].Available)
	assert.False(t, view.Modules[1].Available)
}

func TestModuleNotAvailableListsPlansIncludingIt(t *testing.T) {
	h := newHarness(t, "svc-token")

	var view struct {
		ModuleName string `json:"module_name"`
		Entitled   bool   `json:"entitled"`
		Plans      []struct {
			PlanID string `json:"plan_id"`
		} `json:"plans"`
	}
	decodePage(t, h.do(http.MethodGet, "/console/module-not-available/inv", nil), &view)
	assert.Equal(t, "Inventory", view.ModuleName)
	assert.False(t, view.Entitled)
	require.Len(t, view.Plans, 1)
	assert.Equal(t, "pro", view.Plans[0].PlanID)
}

func TestChoosePlanWithoutCredentialsReadsPublicPlans(t *testing.T) {
	h := newHarness(t, "")

	var view struct {
		HasSubscription bool `json:"has_subscription"`
		Plans           []struct {
			PlanID string `json:"plan_id"`
		} `json:"plans"`
	}
	decodePage(t, h.do(http.MethodGet, "/console/choose-plan", nil), &view)
	assert.False(t, view.HasSubscription)
	require.Len(t, view.Plans, 1)
	assert.Equal(t, "", h.billing.lastToken)

	h.token = "user-token"
	decodePage(t, h.do(http.MethodGet, "/console/choose-plan", nil), &view)
	assert.True(t, view.HasSubscription)
	assert.Len(t, view.Plans, 2)
	assert.Equal(t, "Bearer user-token", h.billing.lastToken)
}

func TestCheckout(t *testing.T) {
	h := newHarness(t, "svc-token")

	rec := h.do(http.MethodPost, "/console/checkout", gin.H{"plan_id": "basic", "interval": "yearly"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "https://checkout.example/cs_123")
	assert.Equal(t, "price_basic_y", h.billing.lastCheckout["price_id"])
	assert.Equal(t, "https://console.example/success", h.billing.lastCheckout["success_url"])

	rec = h.do(http.MethodPost, "/console/checkout", gin.H{"plan_id": "pro", "interval": "yearly"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"interval"}, fieldNames(decodeError(t, rec)))

	rec = h.do(http.MethodPost, "/console/checkout", gin.H{"plan_id": "gold", "interval": "monthly"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodPost, "/console/checkout", gin.H{"plan_id": "basic", "interval": "weekly"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlanFormValidationNeverCallsBackend(t *testing.T) {
	h := newHarness(t, "svc-token")

	rec := h.do(http.MethodPost, "/console/admin/plans", gin.H{"plan_id": "Bad ID", "name": ""})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "validation_error", payload.Type)
	assert.Equal(t, []string{"monthly_price", "name", "plan_id", "yearly_price"}, fieldNames(payload))
	assert.Equal(t, int32(0), h.billing.planWrites.Load())
}

func TestCreatePlanSurfacesConflictVerbatim(t *testing.T) {
	h := newHarness(t, "svc-token")
	decodePage(t, h.do(http.MethodGet, "/console/admin/plans", nil), nil)
	form := gin.H{"plan_id": "basic", "name": "Basic", "monthly_price": 1000, "yearly_price": 10000, "is_active": true}

	rec := h.do(http.MethodPost, "/console/admin/plans", form)
	require.Equal(t, http.StatusConflict, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "conflict", payload.Type)
	assert.Equal(t, "A plan with this ID already exists", payload.Message)

	form["plan_id"] = "team"
	form["name"] = "Team"
	rec = h.do(http.MethodPost, "/console/admin/plans", form)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = h.do(http.MethodGet, "/console/admin/plans/team/edit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"plan_id":"team"`)
}

func TestOpenEditFormForUnknownPlanIsNotFound(t *testing.T) {
	h := newHarness(t, "svc-token")

	rec := h.do(http.MethodGet, "/console/admin/plans/ghost/edit", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, `Plan "ghost" was not found`, decodeError(t, rec).Message)
}

func TestDeleteReferencedModuleIsRejected(t *testing.T) {
	h := newHarness(t, "svc-token")

	rec := h.do(http.MethodDelete, "/console/admin/modules/inv", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decodeError(t, rec).Message, "Pro")
}

func TestSuggestIdentifier(t *testing.T) {
	h := newHarness(t, "svc-token")
	rec := h.do(http.MethodGet, "/console/admin/identifier?name=Team%20Plus", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"identifier":"team-plus"`)
}

func TestEndSessionDropsState(t *testing.T) {
	h := newHarness(t, "svc-token")
	decodePage(t, h.do(http.MethodGet, "/console/admin/plans", nil), nil)
	require.Equal(t, 1, h.sessions.Len())

	rec := h.do(http.MethodDelete, "/console/session", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, h.sessions.Len())
}

func fieldNames(payload errorPayload) []string {
	out := make([]string, 0, len(payload.Errors))
	for _, e := range payload.Errors {
		out = append(out, e.Field)
	}
	sort.Strings(out)
	return out
}

// Package backend is the typed client for the billing backend API. Every
// response is decoded into strict wire records and converted to domain types
// before it leaves the package; anything malformed is a fetch error.
package backend

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	catalogdomain "github.com/smallbiznis/console/internal/catalog/domain"
	ierr "github.com/smallbiznis/console/internal/errors"
	invoicedomain "github.com/smallbiznis/console/internal/invoice/domain"
	obsmetrics "github.com/smallbiznis/console/internal/observability/metrics"
	subscriptiondomain "github.com/smallbiznis/console/internal/subscription/domain"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	maxResponseBytes = 4 << 20
)

// Config configures the backend client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	BreakerFailures    uint32
	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerOpenTimeout time.Duration
}

// Client calls the billing backend. It never retries; a failed call is
// surfaced to the caller, who decides whether to refresh.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*response]
	log     *zap.Logger
	metrics *obsmetrics.ConsoleMetrics
	tracer  trace.Tracer
	newKey  func() string
}

type response struct {
	status int
	body   []byte
}

// errServerStatus lets a 5xx count as a breaker failure while the response
// is still handed back for classification.
var errServerStatus = errors.New("backend server error")

// errCallerGone marks a call abandoned because the caller's context ended.
// It says nothing about backend health and is not a breaker failure.
var errCallerGone = errors.New("caller context done")

// New builds a Client. A nil httpClient gets one with cfg.Timeout.
func New(cfg Config, httpClient *http.Client, log *zap.Logger, metrics *obsmetrics.ConsoleMetrics) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid backend base url %q", cfg.BaseURL)
	}
	if log == nil {
		log = zap.NewNop()
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	openTimeout := cfg.BreakerOpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	maxRequests := cfg.BreakerMaxRequests
	if maxRequests == 0 {
		maxRequests = 1
	}

	c := &Client{
		baseURL: base,
		token:   strings.TrimSpace(cfg.Token),
		http:    httpClient,
		log:     log.Named("backend"),
		metrics: metrics,
		tracer:  otel.Tracer("console/backend"),
		newKey:  newULIDSource(),
	}
	c.breaker = gobreaker.NewCircuitBreaker[*response](gobreaker.Settings{
		Name:        "backend",
		MaxRequests: maxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerGone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			c.metrics.SetBreakerOpen(name, to == gobreaker.StateOpen)
		},
	})
	return c, nil
}

func newULIDSource() func() string {
	var mu sync.Mutex
	entropy := ulid.Monotonic(rand.Reader, 0)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
	}
}

type call struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	write  bool
	// subject names the resource in fallback hints, e.g. "plans".
	subject string
}

// do executes c and returns the 2xx body. Non-2xx statuses, transport
// failures and breaker rejections come back as marked errors.
func (c *Client) do(ctx context.Context, cl call) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "backend."+cl.op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", cl.method),
		attribute.String("http.route", cl.path),
	)

	var payload []byte
	if cl.body != nil {
		encoded, err := json.Marshal(cl.body)
		if err != nil {
			return nil, ierr.WithError(err).
				WithHint("An unexpected error occurred").
				Mark(ierr.ErrInternal)
		}
		payload = encoded
	}

	var idempotencyKey string
	if cl.write && cl.method != http.MethodDelete {
		idempotencyKey = c.newKey()
	}

	start := time.Now()
	resp, err := c.breaker.Execute(func() (*response, error) {
		req, err := c.newRequest(ctx, cl, payload, idempotencyKey)
		if err != nil {
			return nil, err
		}
		httpResp, err := c.http.Do(req)
		if err != nil {
			return nil, callerGone(ctx, err)
		}
		defer httpResp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
		if err != nil {
			return nil, callerGone(ctx, err)
		}
		out := &response{status: httpResp.StatusCode, body: body}
		if out.status >= http.StatusInternalServerError {
			return out, errServerStatus
		}
		return out, nil
	})

	status := 0
	if resp != nil {
		status = resp.status
	}
	c.metrics.ObserveBackendRequest(cl.op, cl.method, status, time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", status))

	log := c.log.With(
		zap.String("operation", cl.op),
		zap.String("method", cl.method),
		zap.String("path", cl.path),
		zap.Int("status", status),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		span.SetStatus(codes.Error, "circuit open")
		log.Warn("backend call rejected by circuit breaker")
		return nil, ierr.WithError(err).
			WithMessage(cl.op).
			WithHint("The billing service is temporarily unavailable. Please try again shortly.").
			Mark(ierr.ErrFetch)
	case err != nil && !errors.Is(err, errServerStatus):
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		log.Warn("backend call failed", zap.Error(err))
		return nil, ierr.WithError(err).
			WithMessage(cl.op).
			WithHintf("Failed to %s %s", verb(cl), cl.subject).
			Mark(ierr.ErrFetch)
	}

	if status >= 200 && status < 300 {
		log.Debug("backend call")
		return resp.body, nil
	}

	span.SetStatus(codes.Error, http.StatusText(status))
	apiErr := newAPIError(status, resp.body)
	log.Info("backend call rejected", zap.String("message", apiErr.Message))
	return nil, classify(cl, apiErr)
}

func callerGone(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %w", errCallerGone, err)
	}
	return err
}

func (c *Client) newRequest(ctx context.Context, cl call, payload []byte, idempotencyKey string) (*http.Request, error) {
	target := c.baseURL.JoinPath(cl.path)
	if len(cl.query) > 0 {
		target.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, target.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set(IdempotencyHeader, idempotencyKey)
	}
	token := BearerTokenFromContext(ctx)
	if token == "" {
		token = c.token
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return req, nil
}

// classify maps a non-2xx response to the error taxonomy. Reads always fail
// as fetch errors; writes distinguish missing records and rejections.
func classify(cl call, apiErr *APIError) error {
	status := apiErr.StatusCode
	hint := apiErr.Message

	if !cl.write || status >= http.StatusInternalServerError || status < http.StatusBadRequest {
		if hint == "" {
			hint = fmt.Sprintf("Failed to %s %s", verb(cl), cl.subject)
		}
		return ierr.WithError(apiErr).WithHint(hint).Mark(ierr.ErrFetch)
	}

	if status == http.StatusNotFound {
		if hint == "" {
			hint = fmt.Sprintf("The %s no longer exists", strings.TrimSuffix(cl.subject, "s"))
		}
		return ierr.WithError(apiErr).WithHint(hint).Mark(ierr.ErrNotFound)
	}

	if hint == "" {
		hint = fmt.Sprintf("The %s could not be saved", strings.TrimSuffix(cl.subject, "s"))
	}
	return ierr.WithError(apiErr).WithHint(hint).Mark(ierr.ErrConflict)
}

func verb(cl call) string {
	switch cl.method {
	case http.MethodGet:
		return "load"
	case http.MethodDelete:
		return "delete"
	default:
		return "save"
	}
}

func malformed(err error, subject string) error {
	return ierr.WithError(err).
		WithMessage("malformed response").
		WithHintf("Failed to load %s: the server returned an unexpected response", subject).
		Mark(ierr.ErrFetch)
}

// ListPlans fetches the full plan catalog.
func (c *Client) ListPlans(ctx context.Context) ([]catalogdomain.Plan, error) {
	return c.listPlans(ctx, nil)
}

// ListPublicPlans fetches the plans shown before login.
func (c *Client) ListPublicPlans(ctx context.Context) ([]catalogdomain.Plan, error) {
	return c.listPlans(ctx, url.Values{"public": []string{"true"}})
}

func (c *Client) listPlans(ctx context.Context, query url.Values) ([]catalogdomain.Plan, error) {
	body, err := c.do(ctx, call{op: "list_plans", method: http.MethodGet, path: "/v1/saas/plans", query: query, subject: "plans"})
	if err != nil {
		return nil, err
	}
	raw, err := unwrapList(body, "plans")
	if err != nil {
		return nil, malformed(err, "plans")
	}
	var records []planRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, malformed(err, "plans")
	}
	plans := make([]catalogdomain.Plan, 0, len(records))
	for _, rec := range records {
		plan, err := rec.toDomain()
		if err != nil {
			return nil, malformed(err, "plans")
		}
		plans = append(plans, plan)
	}
	if err := catalogdomain.ValidatePlans(plans); err != nil {
		return nil, malformed(err, "plans")
	}
	return plans, nil
}

// ListModules fetches the full module catalog.
func (c *Client) ListModules(ctx context.Context) ([]catalogdomain.Module, error) {
	body, err := c.do(ctx, call{op: "list_modules", method: http.MethodGet, path: "/v1/saas/modules", subject: "modules"})
	if err != nil {
		return nil, err
	}
	raw, err := unwrapList(body, "modules")
	if err != nil {
		return nil, malformed(err, "modules")
	}
	var records []moduleRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, malformed(err, "modules")
	}
	modules := make([]catalogdomain.Module, 0, len(records))
	for _, rec := range records {
		module, err := rec.toDomain()
		if err != nil {
			return nil, malformed(err, "modules")
		}
		modules = append(modules, module)
	}
	if err := catalogdomain.ValidateModules(modules); err != nil {
		return nil, malformed(err, "modules")
	}
	return modules, nil
}

func (c *Client) CreatePlan(ctx context.Context, plan catalogdomain.Plan) (catalogdomain.Plan, error) {
	return c.writePlan(ctx, call{op: "create_plan", method: http.MethodPost, path: "/v1/saas/plans"}, plan)
}

func (c *Client) UpdatePlan(ctx context.Context, plan catalogdomain.Plan) (catalogdomain.Plan, error) {
	return c.writePlan(ctx, call{op: "update_plan", method: http.MethodPut, path: "/v1/saas/plans/" + url.PathEscape(plan.PlanID)}, plan)
}

func (c *Client) writePlan(ctx context.Context, cl call, plan catalogdomain.Plan) (catalogdomain.Plan, error) {
	cl.write = true
	cl.subject = "plans"
	cl.body = newPlanPayload(plan)
	body, err := c.do(ctx, cl)
	if err != nil {
		return catalogdomain.Plan{}, err
	}
	raw, err := unwrapObject(body, "plan")
	if err != nil {
		return catalogdomain.Plan{}, malformed(err, "plan")
	}
	var rec planRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return catalogdomain.Plan{}, malformed(err, "plan")
	}
	saved, err := rec.toDomain()
	if err != nil {
		return catalogdomain.Plan{}, malformed(err, "plan")
	}
	return saved, nil
}

func (c *Client) DeletePlan(ctx context.Context, planID string) error {
	_, err := c.do(ctx, call{
		op:      "delete_plan",
		method:  http.MethodDelete,
		path:    "/v1/saas/plans/" + url.PathEscape(planID),
		write:   true,
		subject: "plans",
	})
	return err
}

func (c *Client) CreateModule(ctx context.Context, module catalogdomain.Module) (catalogdomain.Module, error) {
	return c.writeModule(ctx, call{op: "create_module", method: http.MethodPost, path: "/v1/saas/modules"}, module)
}

func (c *Client) UpdateModule(ctx context.Context, module catalogdomain.Module) (catalogdomain.Module, error) {
	return c.writeModule(ctx, call{op: "update_module", method: http.MethodPut, path: "/v1/saas/modules/" + url.PathEscape(module.ModuleID)}, module)
}

func (c *Client) writeModule(ctx context.Context, cl call, module catalogdomain.Module) (catalogdomain.Module, error) {
	cl.write = true
	cl.subject = "modules"
	cl.body = newModulePayload(module)
	body, err := c.do(ctx, cl)
	if err != nil {
		return catalogdomain.Module{}, err
	}
	raw, err := unwrapObject(body, "module")
	if err != nil {
		return catalogdomain.Module{}, malformed(err, "module")
	}
	var rec moduleRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return catalogdomain.Module{}, malformed(err, "module")
	}
	saved, err := rec.toDomain()
	if err != nil {
		return catalogdomain.Module{}, malformed(err, "module")
	}
	return saved, nil
}

func (c *Client) DeleteModule(ctx context.Context, moduleID string) error {
	_, err := c.do(ctx, call{
		op:      "delete_module",
		method:  http.MethodDelete,
		path:    "/v1/saas/modules/" + url.PathEscape(moduleID),
		write:   true,
		subject: "modules",
	})
	return err
}

// GetPlanLimits fetches the caller's server-resolved subscription limits.
func (c *Client) GetPlanLimits(ctx context.Context) (subscriptiondomain.PlanLimits, error) {
	body, err := c.do(ctx, call{op: "get_plan_limits", method: http.MethodGet, path: "/v1/plan-limits", subject: "subscription"})
	if err != nil {
		return subscriptiondomain.PlanLimits{}, err
	}
	var rec planLimitsRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return subscriptiondomain.PlanLimits{}, malformed(err, "subscription")
	}
	limits, err := rec.toDomain()
	if err != nil {
		return subscriptiondomain.PlanLimits{}, malformed(err, "subscription")
	}
	return limits, nil
}

// CheckoutRequest starts a hosted checkout for one price.
type CheckoutRequest struct {
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// CreateCheckout returns the hosted checkout redirect URL.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	body, err := c.do(ctx, call{
		op:     "create_checkout",
		method: http.MethodPost,
		path:   "/v1/saas/checkout",
		body: checkoutPayload{
			PriceID:    req.PriceID,
			SuccessURL: req.SuccessURL,
			CancelURL:  req.CancelURL,
		},
		write:   true,
		subject: "checkout session",
	})
	if err != nil {
		return "", err
	}
	var rec checkoutRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return "", malformed(err, "checkout session")
	}
	redirect := strings.TrimSpace(rec.URL)
	if redirect == "" {
		return "", malformed(errors.New("checkout url is empty"), "checkout session")
	}
	return redirect, nil
}

// ListInvoices fetches the caller's invoices, optionally filtered by status.
func (c *Client) ListInvoices(ctx context.Context, req invoicedomain.ListRequest) ([]invoicedomain.Invoice, error) {
	var query url.Values
	if status := strings.TrimSpace(string(req.Status)); status != "" {
		query = url.Values{"status": []string{status}}
	}
	body, err := c.do(ctx, call{op: "list_invoices", method: http.MethodGet, path: "/v1/saas/invoices", query: query, subject: "invoices"})
	if err != nil {
		return nil, err
	}
	raw, err := unwrapList(body, "invoices")
	if err != nil {
		return nil, malformed(err, "invoices")
	}
	var records []invoiceRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, malformed(err, "invoices")
	}
	invoices := make([]invoicedomain.Invoice, 0, len(records))
	for _, rec := range records {
		inv, err := rec.toDomain()
		if err != nil {
			return nil, malformed(err, "invoices")
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

var _ catalogdomain.Source = (*Client)(nil)

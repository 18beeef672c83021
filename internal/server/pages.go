package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/console/internal/catalog/domain"
	"github.com/smallbiznis/console/internal/entitlement"
	ierr "github.com/smallbiznis/console/internal/errors"
	invoicedomain "github.com/smallbiznis/console/internal/invoice/domain"
	"github.com/smallbiznis/console/internal/projection"
	"github.com/smallbiznis/console/internal/session"
	subscriptiondomain "github.com/smallbiznis/console/internal/subscription/domain"
)

// loadEntitlements reloads the catalog and the caller's plan limits as one
// flow of view and resolves them. A failed limits read resolves to no
// subscription.
func (s *Server) loadEntitlements(c *gin.Context, sess *session.Session, view session.View) (catalogdomain.Snapshot, entitlement.Result, error) {
	var limits subscriptiondomain.PlanLimits
	snap, err := sess.LoadCatalog(c.Request.Context(), view, func(ctx context.Context) error {
		got, err := s.backend.GetPlanLimits(ctx)
		if err != nil {
			return err
		}
		limits = got
		return nil
	})

	result := entitlement.ResolveLimits(limits, snap)
	s.metrics.AddUnresolvedModules(len(result.Unresolved))
	return snap, result, err
}

func (s *Server) MyModules(c *gin.Context) {
	sess := currentSession(c)
	snap, result, err := s.loadEntitlements(c, sess, session.ViewMyModules)
	page := projection.MyModules(snap, result, displayOptions(s.display))
	s.renderPage(c, sess, session.ViewMyModules, page, err)
}

// ChoosePlan lists purchasable plans. Without credentials only the public
// plan list is read.
func (s *Server) ChoosePlan(c *gin.Context) {
	sess := currentSession(c)
	opts := displayOptions(s.display)

	if !s.authenticated(c) {
		var plans []catalogdomain.Plan
		err := sess.Run(c.Request.Context(), session.ViewChoosePlan, func(ctx context.Context) error {
			got, err := s.backend.ListPublicPlans(ctx)
			if err != nil {
				return err
			}
			plans = got
			return nil
		})
		page := projection.ChoosePlan(catalogdomain.Snapshot{Plans: plans}, entitlement.Result{}, opts)
		s.renderPage(c, sess, session.ViewChoosePlan, page, err)
		return
	}

	snap, result, err := s.loadEntitlements(c, sess, session.ViewChoosePlan)
	s.renderPage(c, sess, session.ViewChoosePlan, projection.ChoosePlan(snap, result, opts), err)
}

func (s *Server) ModuleNotAvailable(c *gin.Context) {
	sess := currentSession(c)
	moduleID := pathID(c, "module_id")
	if moduleID == "" {
		moduleID = strings.TrimSpace(c.Query("module_id"))
	}
	if moduleID == "" {
		AbortWithError(c, ierr.NewFieldError("module_id", "required", "Module ID is required"))
		return
	}

	snap, result, err := s.loadEntitlements(c, sess, session.ViewModuleNotAvailable)
	page := projection.ModuleUnavailable(snap, result, moduleID, displayOptions(s.display))
	s.renderPage(c, sess, session.ViewModuleNotAvailable, page, err)
}

type checkoutRequest struct {
	PlanID   string `json:"plan_id"`
	Interval string `json:"interval"`
}

func (s *Server) Checkout(c *gin.Context) {
	sess := currentSession(c)

	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	interval, ok := catalogdomain.ParseInterval(req.Interval)
	if !ok {
		AbortWithError(c, ierr.NewFieldError("interval", "oneof", "Billing interval must be monthly or yearly"))
		return
	}
	if err := s.ensureCatalog(c, sess, session.ViewChoosePlan); err != nil {
		AbortWithError(c, err)
		return
	}

	url, err := s.checkoutSvc.Checkout(c.Request.Context(), sess.Store.Snapshot(), strings.TrimSpace(req.PlanID), interval)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"url": url}})
}

var invoiceStatuses = map[invoicedomain.InvoiceStatus]struct{}{
	invoicedomain.InvoiceStatusDraft:         {},
	invoicedomain.InvoiceStatusOpen:          {},
	invoicedomain.InvoiceStatusPaid:          {},
	invoicedomain.InvoiceStatusVoid:          {},
	invoicedomain.InvoiceStatusUncollectible: {},
}

func (s *Server) Invoices(c *gin.Context) {
	sess := currentSession(c)

	status := invoicedomain.NormalizeStatus(c.Query("status"))
	if _, ok := invoiceStatuses[status]; status != "" && !ok {
		AbortWithError(c, ierr.NewFieldError("status", "oneof", "Unknown invoice status"))
		return
	}

	var invoices []invoicedomain.Invoice
	err := sess.Run(c.Request.Context(), session.ViewInvoices, func(ctx context.Context) error {
		got, err := s.backend.ListInvoices(ctx, invoicedomain.ListRequest{Status: string(status)})
		if err != nil {
			return err
		}
		invoices = got
		return nil
	})

	rows := projection.InvoiceRows(invoices, displayOptions(s.display))
	s.renderPage(c, sess, session.ViewInvoices, rows, err)
}

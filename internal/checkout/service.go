// Package checkout starts hosted checkout sessions for catalog plans.
package checkout

import (
	"context"
	"strings"

	"github.com/smallbiznis/console/internal/backend"
	catalogdomain "github.com/smallbiznis/console/internal/catalog/domain"
	"github.com/smallbiznis/console/internal/config"
	ierr "github.com/smallbiznis/console/internal/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Creator opens a hosted checkout and returns its redirect URL.
type Creator interface {
	CreateCheckout(ctx context.Context, req backend.CheckoutRequest) (string, error)
}

type Service struct {
	creator    Creator
	successURL string
	cancelURL  string
	log        *zap.Logger
}

type ServiceParams struct {
	fx.In

	Creator Creator
	Config  config.Config
	Log     *zap.Logger
}

func NewService(p ServiceParams) *Service {
	return New(p.Creator, p.Config.Checkout.SuccessURL, p.Config.Checkout.CancelURL, p.Log)
}

func New(creator Creator, successURL, cancelURL string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		creator:    creator,
		successURL: successURL,
		cancelURL:  cancelURL,
		log:        log.Named("checkout"),
	}
}

// Checkout resolves the processor price of planID for interval and returns
// the hosted checkout URL.
func (s *Service) Checkout(ctx context.Context, cat catalogdomain.Catalog, planID string, interval catalogdomain.Interval) (string, error) {
	planID = strings.TrimSpace(planID)
	plan, ok := cat.FindPlan(planID)
	if !ok {
		return "", ierr.NewError("plan not found").
			WithHintf("Plan %q was not found", planID).
			Mark(ierr.ErrNotFound)
	}
	if !plan.IsActive {
		return "", ierr.NewFieldError("plan_id", "inactive", "This plan is no longer available")
	}

	priceID := strings.TrimSpace(plan.PriceID(interval))
	if priceID == "" {
		return "", ierr.NewFieldError("interval", "unavailable",
			"The "+string(interval)+" price is not available for this plan")
	}

	redirect, err := s.creator.CreateCheckout(ctx, backend.CheckoutRequest{
		PriceID:    priceID,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
	})
	if err != nil {
		s.log.Warn("checkout failed",
			zap.String("plan_id", planID),
			zap.String("interval", string(interval)),
			zap.String("error_code", ierr.Code(err)),
		)
		return "", err
	}
	s.log.Info("checkout started", zap.String("plan_id", planID), zap.String("interval", string(interval)))
	return redirect, nil
}

package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/console/internal/config"
	"github.com/smallbiznis/console/internal/projection"
	"github.com/smallbiznis/console/internal/session"
)

func parseView(value string) (session.View, bool) {
	view := session.View(strings.ToLower(strings.TrimSpace(value)))
	return view, view.Valid()
}

func pathID(c *gin.Context, name string) string {
	return strings.TrimSpace(c.Param(name))
}

func displayOptions(holder *config.DisplayConfigHolder) projection.Options {
	cfg := holder.Get()
	return projection.Options{
		DefaultCurrency: cfg.DefaultCurrency,
		FeaturedIndex:   cfg.FeaturedPlanIndex,
		WarningPercent:  cfg.UsageWarningPercent,
		CriticalPercent: cfg.UsageCriticalPercent,
	}
}

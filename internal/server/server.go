package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/console/internal/backend"
	"github.com/smallbiznis/console/internal/catalog"
	catalogdomain "github.com/smallbiznis/console/internal/catalog/domain"
	"github.com/smallbiznis/console/internal/checkout"
	"github.com/smallbiznis/console/internal/config"
	"github.com/smallbiznis/console/internal/editor"
	invoicedomain "github.com/smallbiznis/console/internal/invoice/domain"
	"github.com/smallbiznis/console/internal/observability"
	obslogger "github.com/smallbiznis/console/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/console/internal/observability/metrics"
	obstracing "github.com/smallbiznis/console/internal/observability/tracing"
	"github.com/smallbiznis/console/internal/session"
	subscriptiondomain "github.com/smallbiznis/console/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	backend.Module,
	catalog.Module,
	editor.Module,
	checkout.Module,
	session.Module,
	fx.Provide(
		registerGin,
		func(c *backend.Client) Backend { return c },
	),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// Backend is the read side the console pages need beyond the catalog.
type Backend interface {
	ListPublicPlans(ctx context.Context) ([]catalogdomain.Plan, error)
	GetPlanLimits(ctx context.Context) (subscriptiondomain.PlanLimits, error)
	ListInvoices(ctx context.Context, req invoicedomain.ListRequest) ([]invoicedomain.Invoice, error)
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type ginParams struct {
	fx.In

	ObsCfg      observability.Config
	HTTPMetrics *obsmetrics.HTTPMetrics `optional:"true"`
}

func registerGin(p ginParams) *gin.Engine {
	return NewEngine(p.ObsCfg, p.HTTPMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	backend     Backend
	sessions    *session.Registry
	checkoutSvc *checkout.Service
	display     *config.DisplayConfigHolder
	metrics     *obsmetrics.ConsoleMetrics
	httpMetrics *obsmetrics.HTTPMetrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	Backend     Backend
	Sessions    *session.Registry
	CheckoutSvc *checkout.Service
	Display     *config.DisplayConfigHolder
	Metrics     *obsmetrics.ConsoleMetrics `optional:"true"`
	HTTPMetrics *obsmetrics.HTTPMetrics    `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         log.Named("server"),
		backend:     p.Backend,
		sessions:    p.Sessions,
		checkoutSvc: p.CheckoutSvc,
		display:     p.Display,
		metrics:     p.Metrics,
		httpMetrics: p.HTTPMetrics,
	}

	svc.registerConsoleRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerConsoleRoutes() {
	console := s.engine.Group("/console", s.SessionMiddleware())

	admin := console.Group("/admin", markView(session.ViewAdminPlans))
	admin.GET("/plans", s.AdminCatalog)
	admin.GET("/plans/new", s.OpenCreateForm(catalogdomain.KindPlan))
	admin.GET("/plans/:id/edit", s.OpenEditForm(catalogdomain.KindPlan))
	admin.POST("/plans", s.SaveForm(catalogdomain.KindPlan, editor.ModeCreate))
	admin.PUT("/plans/:id", s.SaveForm(catalogdomain.KindPlan, editor.ModeEdit))
	admin.DELETE("/plans/:id", s.DeleteRecord(catalogdomain.KindPlan))
	admin.GET("/modules/new", s.OpenCreateForm(catalogdomain.KindModule))
	admin.GET("/modules/:id/edit", s.OpenEditForm(catalogdomain.KindModule))
	admin.POST("/modules", s.SaveForm(catalogdomain.KindModule, editor.ModeCreate))
	admin.PUT("/modules/:id", s.SaveForm(catalogdomain.KindModule, editor.ModeEdit))
	admin.DELETE("/modules/:id", s.DeleteRecord(catalogdomain.KindModule))
	admin.GET("/identifier", s.SuggestIdentifier)

	console.GET("/my-modules", markView(session.ViewMyModules), s.MyModules)
	console.GET("/choose-plan", markView(session.ViewChoosePlan), s.ChoosePlan)
	console.POST("/checkout", markView(session.ViewChoosePlan), s.Checkout)
	console.GET("/module-not-available/:module_id", markView(session.ViewModuleNotAvailable), s.ModuleNotAvailable)
	console.GET("/invoices", markView(session.ViewInvoices), s.Invoices)

	console.POST("/refresh", s.Refresh)
	console.DELETE("/notifications/:view", s.DismissNotification)
	console.DELETE("/session", s.EndSession)
}

package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/appointly/internal/account"
	"github.com/smallbiznis/appointly/internal/actor"
	"github.com/smallbiznis/appointly/internal/audit"
	"github.com/smallbiznis/appointly/internal/authorization"
	"github.com/smallbiznis/appointly/internal/booking"
	bookingdomain "github.com/smallbiznis/appointly/internal/booking/domain"
	"github.com/smallbiznis/appointly/internal/breakdown"
	"github.com/smallbiznis/appointly/internal/config"
	"github.com/smallbiznis/appointly/internal/ledger"
	ledgerdomain "github.com/smallbiznis/appointly/internal/ledger/domain"
	"github.com/smallbiznis/appointly/internal/locking"
	"github.com/smallbiznis/appointly/internal/notification"
	"github.com/smallbiznis/appointly/internal/observability"
	obsmiddleware "github.com/smallbiznis/appointly/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/appointly/internal/observability/metrics"
	obstracing "github.com/smallbiznis/appointly/internal/observability/tracing"
	"github.com/smallbiznis/appointly/internal/payment"
	paymentdomain "github.com/smallbiznis/appointly/internal/payment/domain"
	"github.com/smallbiznis/appointly/internal/ratelimit"
	"github.com/smallbiznis/appointly/internal/sideeffect"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	locking.Module,
	fx.Provide(newSideEffectRunner),
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	account.Module,
	notification.Module,
	breakdown.Module,
	booking.Module,
	ledger.Module,
	payment.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func newSideEffectRunner(cfg config.Config, log *zap.Logger, metrics *obsmetrics.Metrics) *sideeffect.Runner {
	return sideeffect.NewRunner(log, cfg.ExternalCallTimeout, metrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
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
	engine     *gin.Engine
	cfg        config.Config
	bookingSvc bookingdomain.Service
	ledgerSvc  ledgerdomain.Service
	paymentSvc paymentdomain.Service
	limiter    bookingLimiter
	obsMetrics *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	BookingSvc bookingdomain.Service
	LedgerSvc  ledgerdomain.Service
	PaymentSvc paymentdomain.Service
	Limiter    *ratelimit.Limiter  `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		bookingSvc: p.BookingSvc,
		ledgerSvc:  p.LedgerSvc,
		paymentSvc: p.PaymentSvc,
		limiter:    p.Limiter,
		obsMetrics: p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerInternalRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Payment Webhooks --------
	// Providers authenticate with signatures, not bearer tokens.
	api.POST("/payments/webhooks/:provider", s.HandlePaymentWebhook)

	api.Use(s.Authenticate())

	// -------- Bookings --------
	api.POST("/bookings", s.BookingCreateRateLimit(), s.CreateBooking)
	api.GET("/bookings/:id", RequireActor(actor.TypeClient, actor.TypeTech, actor.TypeSystem), s.GetBooking)
	api.POST("/bookings/:id/actions", RequireActor(actor.TypeClient, actor.TypeTech, actor.TypeSystem), s.BookingAction)

	// -------- Techs --------
	api.GET("/techs/:id/availability", s.GetTechAvailability)
	api.GET("/techs/:id/bookings", RequireActor(actor.TypeTech, actor.TypeSystem), s.ListTechBookings)

	// -------- Credits --------
	me := api.Group("/accounts/me", RequireActor(actor.TypeClient, actor.TypeTech))
	{
		me.GET("/credits", s.GetMyCredits)
		me.GET("/credits/transactions", s.ListMyCreditTransactions)
	}
}

func (s *Server) registerInternalRoutes() {
	internal := s.engine.Group("/api/internal")
	internal.Use(s.Authenticate())
	internal.Use(RequireActor(actor.TypeSystem))

	internal.POST("/credits/adjustments", s.AdjustCredits)
	internal.GET("/credits/:userId/verify", s.VerifyCredits)
}

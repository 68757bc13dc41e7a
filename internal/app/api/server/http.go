package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/creditledger/docs"
	"github.com/fatflowers/creditledger/internal/app/api/handlers"
	mw "github.com/fatflowers/creditledger/internal/app/api/middleware"
	"github.com/fatflowers/creditledger/internal/app/service/allocator"
	"github.com/fatflowers/creditledger/internal/app/service/consumer"
	"github.com/fatflowers/creditledger/internal/app/service/expiration"
	"github.com/fatflowers/creditledger/internal/app/service/ledger"
	"github.com/fatflowers/creditledger/internal/app/service/lifecycle"
	"github.com/fatflowers/creditledger/internal/app/service/plan"
	"github.com/fatflowers/creditledger/internal/app/service/referral"
	"github.com/fatflowers/creditledger/internal/app/service/statistics"
	"github.com/fatflowers/creditledger/internal/app/service/usage"
	cfgpkg "github.com/fatflowers/creditledger/pkg/config"
	"github.com/fatflowers/creditledger/pkg/metrics"
)

// MetricsEngine serves /metrics on its own listener. Nil when metrics_addr
// is empty.
type MetricsEngine struct {
	*gin.Engine
}

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func newMetricsEngine(cfg *cfgpkg.Config) *MetricsEngine {
	if cfg.MetricsAddr == "" {
		return nil
	}
	e := gin.New()
	e.Use(gin.Recovery())
	return &MetricsEngine{Engine: e}
}

type RouteParams struct {
	fx.In

	Log        *zap.SugaredLogger
	Cfg        *cfgpkg.Config
	Engine     *gin.Engine
	Metrics    *MetricsEngine
	Store      ledger.Store
	Catalog    *plan.Catalog
	Accountant *usage.Accountant
	Consumer   *consumer.Consumer
	Allocator  *allocator.Allocator
	Processor  *lifecycle.Processor
	Referrals  *referral.Service
	Statistics *statistics.Service
	Sweeper    *expiration.Sweeper
}

func registerRoutes(p RouteParams) {
	r, log := p.Engine, p.Log
	if p.Metrics != nil {
		prom := metrics.NewPrometheus(metrics.NewPrometheusOptions{Logger: log})
		prom.Use(r, p.Metrics.Engine)
		log.Infow("metrics enabled", "addr", p.Cfg.MetricsAddr)
	}

	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	apiV1.GET("/plans", handlers.ApiListPlans(p.Catalog))
	handlers.RegisterCreditRoutes(apiV1.Group("/credits"), p.Accountant, p.Consumer, p.Store)
	handlers.RegisterReferralRoutes(apiV1.Group("/referral"), p.Referrals)
	handlers.RegisterWebhookRoutes(apiV1.Group("/webhook"), p.Processor)
	handlers.RegisterAdminRoutes(apiV1.Group("/admin"), handlers.AdminDeps{
		Credits:    p.Store,
		Statistics: p.Statistics,
		Granter:    p.Allocator,
		Expiration: p.Sweeper,
	})
}

func serve(lc fx.Lifecycle, log *zap.SugaredLogger, name, addr string, h http.Handler) {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "name", name, "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("%s server error: %v", name, err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server", "name", name)
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine, m *MetricsEngine) {
	serve(lc, log, "api", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port), r)
	if m != nil {
		serve(lc, log, "metrics", cfg.MetricsAddr, m.Engine)
	}
}

var Module = fx.Options(
	fx.Provide(newEngine, newMetricsEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)

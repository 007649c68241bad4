package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/storepay/docs"
	"github.com/fatflowers/storepay/internal/app/api/handlers"
	mw "github.com/fatflowers/storepay/internal/app/api/middleware"
	nh "github.com/fatflowers/storepay/internal/app/service/notification_handler"
	"github.com/fatflowers/storepay/internal/app/service/order"
	"github.com/fatflowers/storepay/internal/app/service/payment"
	"github.com/fatflowers/storepay/internal/app/service/reconcile"
	"github.com/fatflowers/storepay/internal/app/service/statistics"
	cfgpkg "github.com/fatflowers/storepay/pkg/config"
	"github.com/fatflowers/storepay/pkg/metrics"
)

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// Tracing only; request logger and access log are attached per group in registerRoutes.
	r.Use(mw.TraceMiddleware())
	if len(cfg.CORS.AllowOrigins) > 0 {
		cc := cors.DefaultConfig()
		cc.AllowOrigins = cfg.CORS.AllowOrigins
		cc.AllowHeaders = append(cc.AllowHeaders, "Authorization", "X-Request-ID")
		cc.ExposeHeaders = []string{"X-Request-ID"}
		r.Use(cors.New(cc))
	}
	return r
}

type routeDeps struct {
	fx.In

	Log          *zap.SugaredLogger
	Cfg          *cfgpkg.Config
	DB           *gorm.DB
	Notification *nh.NotificationHandler
	Orders       *order.Service
	Payments     *payment.Service
	Reconcile    *reconcile.Service
	Stats        *statistics.Service
}

func registerRoutes(r *gin.Engine, d routeDeps) {
	log, cfg := d.Log, d.Cfg
	if cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			Subsystem: "storepay_http",
			SkipPaths: []string{"/healthz", "/swagger/*any"},
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return c.Request.URL.Path
			},
			Logger: log,
		})
		p.SetListenAddress(cfg.MetricsAddr)
		p.Use(r)

		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}

	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))
	handlers.RegisterHealthRoutes(pub, d.DB)
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware(log))

	limit := mw.RateLimitMiddleware(mw.NewIPRateLimiter(cfg.RateLimit))
	handlers.RegisterOrderRoutes(apiV1.Group("/orders"), d.Orders, d.Payments)
	handlers.RegisterPaymentRoutes(apiV1.Group("/payment"), d.Payments, limit)
	handlers.RegisterWebhookRoutes(apiV1.Group("/payment/webhook"), d.Notification)
	handlers.RegisterAdminRoutes(apiV1.Group("/admin"), handlers.AdminDeps{
		Payments:  d.Payments,
		Reconcile: d.Reconcile,
		Orders:    d.Orders,
		Stats:     d.Stats,
	})
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)

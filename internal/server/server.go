package server

import (
	"context"
	"net/http"
	"time"

	"github.com/flowpulse/flowpulse/internal/config"
	customerdomain "github.com/flowpulse/flowpulse/internal/customer/domain"
	dailymetricsdomain "github.com/flowpulse/flowpulse/internal/dailymetrics/domain"
	deliverydomain "github.com/flowpulse/flowpulse/internal/delivery/domain"
	"github.com/flowpulse/flowpulse/internal/observability"
	obsmiddleware "github.com/flowpulse/flowpulse/internal/observability/logger"
	obsmetrics "github.com/flowpulse/flowpulse/internal/observability/metrics"
	obstracing "github.com/flowpulse/flowpulse/internal/observability/tracing"
	responsedomain "github.com/flowpulse/flowpulse/internal/response/domain"
	surveydomain "github.com/flowpulse/flowpulse/internal/survey/domain"
	webhookdomain "github.com/flowpulse/flowpulse/internal/webhook/domain"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterAPIRoutes()
		s.RegisterWebhookRoutes()
	}),
	fx.Invoke(RunHTTP),
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
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
	surveySvc   surveydomain.Service
	deliverySvc deliverydomain.Service
	responseSvc responsedomain.Service
	customerSvc customerdomain.Service
	metricsSvc  dailymetricsdomain.Service
	webhookSvc  webhookdomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	SurveySvc   surveydomain.Service
	DeliverySvc deliverydomain.Service
	ResponseSvc responsedomain.Service
	CustomerSvc customerdomain.Service
	MetricsSvc  dailymetricsdomain.Service
	WebhookSvc  webhookdomain.Service `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		surveySvc:   p.SurveySvc,
		deliverySvc: p.DeliverySvc,
		responseSvc: p.ResponseSvc,
		customerSvc: p.CustomerSvc,
		metricsSvc:  p.MetricsSvc,
		webhookSvc:  p.WebhookSvc,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api", OrgContext())

	// -------- Surveys --------
	api.POST("/surveys", s.CreateSurvey)
	api.GET("/surveys", s.ListSurveys)
	api.GET("/surveys/:id", s.GetSurveyByID)
	api.PATCH("/surveys/:id", s.UpdateSurvey)

	// -------- Deliveries --------
	api.POST("/deliveries", s.SendDelivery)
	api.GET("/deliveries", s.ListDeliveries)
	api.GET("/deliveries/:id", s.GetDeliveryByID)
	api.POST("/deliveries/:id/sent", s.MarkDeliverySent)

	// -------- Responses --------
	api.POST("/responses", s.RecordResponse)
	api.GET("/responses", s.ListResponses)

	// -------- Customers --------
	api.GET("/customers", s.ListCustomers)
	api.GET("/customers/:id", s.GetCustomerByID)

	// -------- Metrics --------
	api.GET("/metrics/daily", s.GetDailyMetrics)
	api.GET("/metrics/summary", s.GetMetricsSummary)
	api.GET("/metrics/report.pdf", s.DownloadMetricsReport)
	api.POST("/metrics/rebuild", s.RebuildMetrics)
}

func (s *Server) RegisterWebhookRoutes() {
	webhooks := s.engine.Group("/webhooks")
	webhooks.POST("/kapso/:org_id", s.HandleKapsoWebhook)
}

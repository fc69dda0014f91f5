package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	assignmentdomain "github.com/smallbiznis/territorial/internal/assignment/domain"
	auditdomain "github.com/smallbiznis/territorial/internal/audit/domain"
	"github.com/smallbiznis/territorial/internal/config"
	"github.com/smallbiznis/territorial/internal/observability"
	obslogger "github.com/smallbiznis/territorial/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/territorial/internal/observability/metrics"
	obstracing "github.com/smallbiznis/territorial/internal/observability/tracing"
	resolverdomain "github.com/smallbiznis/territorial/internal/resolver/domain"
	ruledomain "github.com/smallbiznis/territorial/internal/rule/domain"
	territorydomain "github.com/smallbiznis/territorial/internal/territory/domain"
	"github.com/smallbiznis/territorial/internal/trigger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Log:             log,
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

func registerGin(obsCfg observability.Config, log *zap.Logger, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, log, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
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
			log.Info("http server listening", zap.String("addr", addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
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
	engine        *gin.Engine
	log           *zap.Logger
	territorySvc  territorydomain.Service
	ruleSvc       ruledomain.Service
	assignmentSvc assignmentdomain.Service
	resolverSvc   resolverdomain.Service
	auditSvc      auditdomain.Service
	trigger       *trigger.Handler
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Log           *zap.Logger
	TerritorySvc  territorydomain.Service
	RuleSvc       ruledomain.Service
	AssignmentSvc assignmentdomain.Service
	ResolverSvc   resolverdomain.Service
	AuditSvc      auditdomain.Service `optional:"true"`
	Trigger       *trigger.Handler
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		log:           p.Log.Named("http.server"),
		territorySvc:  p.TerritorySvc,
		ruleSvc:       p.RuleSvc,
		assignmentSvc: p.AssignmentSvc,
		resolverSvc:   p.ResolverSvc,
		auditSvc:      p.AuditSvc,
		trigger:       p.Trigger,
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1")

	// -------- Territories --------
	api.POST("/territories", s.CreateTerritory)
	api.GET("/territories", s.ListTerritories)
	api.GET("/territories/:id", s.GetTerritoryByID)
	api.PATCH("/territories/:id", s.UpdateTerritory)
	api.DELETE("/territories/:id", s.DeleteTerritory)
	api.POST("/territories/:id/restore", s.RestoreTerritory)
	api.GET("/territories/:id/children", s.ListTerritoryChildren)
	api.GET("/territories/:id/descendants", s.ListTerritoryDescendants)
	api.GET("/territories/:id/ancestors", s.ListTerritoryAncestors)

	// -------- Rules --------
	api.POST("/territories/:id/rules", s.CreateRule)
	api.GET("/territories/:id/rules", s.ListRules)
	api.GET("/rules/:id", s.GetRuleByID)
	api.PATCH("/rules/:id", s.UpdateRule)
	api.POST("/rules/:id/activate", s.ActivateRule)
	api.POST("/rules/:id/deactivate", s.DeactivateRule)

	// -------- Assignments --------
	api.POST("/assignments", s.CreateAssignment)
	api.GET("/assignments", s.ListAssignments)
	api.GET("/assignments/:id", s.GetAssignmentByID)

	// -------- Records --------
	api.POST("/records/created", s.RecordCreated)
	api.POST("/records/resolve", s.ResolveRecord)

	// -------- Audit --------
	api.GET("/audit_logs", s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

// actorFromRequest returns the caller identity from the actor header.
func actorFromRequest(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(obslogger.ActorHeader))
}

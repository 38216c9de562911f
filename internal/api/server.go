package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pricehawk/internal/api/middleware"
	"pricehawk/internal/config"
	"pricehawk/internal/service"
	"pricehawk/internal/store"
)

// Server HTTP 边界。
//
// 处理器只做参数翻译和错误映射，业务规则全部在 service 与 store 层。
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	search *service.SearchService
	alerts *service.AlertEngine
	router *gin.Engine
}

// NewServer 组装路由。依赖由调用方（cmd/server）构造并注入。
func NewServer(cfg *config.Config, logger *slog.Logger, st *store.Store, search *service.SearchService, alerts *service.AlertEngine) *Server {
	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:    cfg,
		logger: logger,
		store:  st,
		search: search,
		alerts: alerts,
		router: r,
	}
	s.registerRoutes()
	return s
}

// Router 返回 HTTP 路由处理器。
func (s *Server) Router() http.Handler {
	return s.router
}

// registerRoutes 注册所有的 API 路由。
func (s *Server) registerRoutes() {
	// Prometheus metrics 端点
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/healthz", s.handleHealthz)

	api := s.router.Group("/api")
	api.GET("/search", s.handleSearch)
	api.POST("/search", s.handleSearch)
	api.GET("/products/:id/history", s.handleHistory)
	api.GET("/products/:id/stats", s.handleStats)
	api.POST("/track", s.handleTrack)
	api.GET("/tracked", s.handleTracked)
	api.POST("/alerts", s.handleCreateAlert)
	api.DELETE("/alerts/:id", s.handleDeleteAlert)
	api.GET("/recent-searches", s.handleRecentSearches)
}

func (s *Server) handleHealthz(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": "store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"configurator/internal/config"
	"configurator/internal/server/handlers"
	"configurator/internal/store"
)

// Server 运行报告 HTTP 服务器
type Server struct {
	router   *gin.Engine
	store    *store.Store
	handlers *handlers.Handler
}

// NewServer 创建服务器
func NewServer(cfg *config.AppConfig, st *store.Store) *Server {
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router:   gin.Default(),
		store:    st,
		handlers: handlers.NewHandler(st),
	}

	s.setupRoutes()
	return s
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	api := s.router.Group("/api")
	{
		s.handlers.RegisterRoutes(api)
	}

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Run 启动服务器
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

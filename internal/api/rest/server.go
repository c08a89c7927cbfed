package rest

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/KevinKickass/OpenGCodeCore/internal/api/websocket"
	"github.com/KevinKickass/OpenGCodeCore/internal/auth"
	"github.com/KevinKickass/OpenGCodeCore/internal/config"
	"github.com/KevinKickass/OpenGCodeCore/internal/interfaces"
	"github.com/KevinKickass/OpenGCodeCore/internal/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router  *gin.Engine
	lm      interfaces.LifecycleManager
	logger  *zap.Logger
	server  *http.Server
	wsHub   *websocket.Hub
	jwt     *auth.JWTHandler
	metrics *metrics.Metrics
	addr    net.Addr
}

// NewServer builds the HTTP API. A nil jwt disables authentication.
func NewServer(cfg *config.Config, lm interfaces.LifecycleManager, logger *zap.Logger, wsHub *websocket.Hub, jwt *auth.JWTHandler, m *metrics.Metrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Logging.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router:  gin.New(),
		lm:      lm,
		logger:  logger,
		wsHub:   wsHub,
		jwt:     jwt,
		metrics: m,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Transport.ResponseTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start binds the listener and serves in the background.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	s.addr = lis.Addr()

	s.logger.Info("Starting REST API server", zap.String("address", s.addr.String()))
	go func() {
		if err := s.server.Serve(lis); err != nil && err != http.ErrServerClosed {
			s.logger.Error("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr is the bound address after Start.
func (s *Server) Addr() net.Addr {
	return s.addr
}

func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	// Public routes (no auth required)
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := s.router.Group("/api/v1")

	// ==================== WEBSOCKET (auth via first message) ====================
	v1.GET("/ws/live", s.wsLiveConnection)

	api := v1.Group("")
	api.Use(auth.Middleware(s.jwt))

	// ==================== SYSTEM ====================
	system := api.Group("/system")
	{
		system.GET("/status", auth.RequireRole(auth.RoleViewer), s.getSystemStatus)
		system.GET("/machine", auth.RequireRole(auth.RoleViewer), s.getMachineStatus)
		system.POST("/reload", auth.RequireRole(auth.RoleAdmin), s.reload)
	}
	api.GET("/ws/status", auth.RequireRole(auth.RoleViewer), s.wsStatus)

	// ==================== STATE ====================
	state := api.Group("/state")
	{
		state.GET("", auth.RequireRole(auth.RoleViewer), s.getState)
		state.GET("/:domain", auth.RequireRole(auth.RoleViewer), s.getStateDomain)

		state.POST("/push", auth.RequireRole(auth.RoleOperator), s.pushState)
		state.POST("/pop", auth.RequireRole(auth.RoleOperator), s.popState)
		state.POST("/reset", auth.RequireRole(auth.RoleOperator), s.resetState)
		state.POST("/snapshots", auth.RequireRole(auth.RoleOperator), s.saveSnapshot)
		state.POST("/snapshots/:id/restore", auth.RequireRole(auth.RoleOperator), s.restoreSnapshot)
	}

	api.GET("/journal", auth.RequireRole(auth.RoleViewer), s.getJournal)

	// ==================== INSTRUCTIONS ====================
	instructions := api.Group("/instructions")
	{
		instructions.GET("", auth.RequireRole(auth.RoleViewer), s.listInstructions)
		instructions.POST("/execute", auth.RequireRole(auth.RoleOperator), s.executeInstruction)
		instructions.POST("/query", auth.RequireRole(auth.RoleOperator), s.queryRaw)
	}

	// ==================== COMPONENTS ====================
	components := api.Group("/components")
	{
		components.GET("", auth.RequireRole(auth.RoleViewer), s.listComponents)
		components.GET("/:id", auth.RequireRole(auth.RoleViewer), s.getComponent)
		components.POST("/:id/actions/:action", auth.RequireRole(auth.RoleOperator), s.invokeComponent)
	}

	// ==================== FUNCTIONS ====================
	functions := api.Group("/functions")
	{
		functions.GET("", auth.RequireRole(auth.RoleViewer), s.listFunctions)
		functions.GET("/:name", auth.RequireRole(auth.RoleViewer), s.getFunction)
		functions.GET("/:name/validate", auth.RequireRole(auth.RoleViewer), s.validateFunction)
		functions.POST("/:name/operations/:op", auth.RequireRole(auth.RoleOperator), s.invokeFunction)
	}
}

// WebSocket handlers
func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWs(s.wsHub, c.Writer, c.Request)
}

func (s *Server) wsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"connected_clients": s.wsHub.GetClientCount(),
	})
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	status := s.lm.MachineController().GetStatus()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"machine":   status.Status,
		"timestamp": time.Now().Unix(),
	})
}

package system

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/KevinKickass/OpenGCodeCore/internal/api/rest"
	"github.com/KevinKickass/OpenGCodeCore/internal/api/websocket"
	"github.com/KevinKickass/OpenGCodeCore/internal/auth"
	"github.com/KevinKickass/OpenGCodeCore/internal/config"
	"github.com/KevinKickass/OpenGCodeCore/internal/events"
	"github.com/KevinKickass/OpenGCodeCore/internal/interfaces"
	"github.com/KevinKickass/OpenGCodeCore/internal/machine"
	"github.com/KevinKickass/OpenGCodeCore/internal/metrics"
	"github.com/KevinKickass/OpenGCodeCore/internal/monitor"
	"github.com/KevinKickass/OpenGCodeCore/internal/storage"
	"github.com/KevinKickass/OpenGCodeCore/internal/transport"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

type LifecycleManager struct {
	config     *config.Config
	logger     *zap.Logger
	metrics    *metrics.Metrics
	streamer   *events.Streamer
	transport  *transport.Client
	controller *machine.Controller
	loader     *machine.Loader
	jwt        *auth.JWTHandler
	hub        *websocket.Hub
	health     *HealthReporter
	poller     *monitor.Poller
	storage    *storage.PostgresClient

	restServer *rest.Server
	grpcServer *grpc.Server
	grpcAddr   net.Addr
	cancel     context.CancelFunc

	stateMu      sync.RWMutex
	currentState SystemState

	shutdownOnce sync.Once
}

func NewLifecycleManager(cfg *config.Config, logger *zap.Logger) (*LifecycleManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loader, err := machine.NewLoader(cfg.Machine.SearchPaths)
	if err != nil {
		return nil, fmt.Errorf("failed to create machine loader: %w", err)
	}

	m := metrics.New(cfg.Metrics)
	streamer := events.NewStreamer()
	client := transport.NewClient(transport.Config{
		Address:         cfg.Transport.Address,
		DialTimeout:     cfg.Transport.DialTimeout,
		ResponseTimeout: cfg.Transport.ResponseTimeout,
	}, logger.Named("transport"))
	controller := machine.NewController(logger.Named("machine"), client, m, streamer)

	var jwt *auth.JWTHandler
	if cfg.Auth.Enabled {
		if !cfg.Auth.IsProductionReady() {
			logger.Warn("JWT secret is not production ready",
				zap.String("env", cfg.Auth.JWTSecretEnv))
		}
		jwt = auth.NewJWTHandler(cfg.Auth.GetJWTSecret(), cfg.Auth.AccessTokenTTL)
	}

	lm := &LifecycleManager{
		config:       cfg,
		logger:       logger,
		metrics:      m,
		streamer:     streamer,
		transport:    client,
		controller:   controller,
		loader:       loader,
		jwt:          jwt,
		hub:          websocket.NewHub(logger.Named("websocket"), jwt),
		health:       NewHealthReporter(logger.Named("health")),
		currentState: StateInitializing,
	}
	if cfg.Monitor.Enabled {
		lm.poller = monitor.NewPoller(controller, cfg.Monitor.Interval, logger.Named("monitor"), m, streamer)
	}
	return lm, nil
}

// MachineController returns the machine controller
func (lm *LifecycleManager) MachineController() *machine.Controller {
	return lm.controller
}

// Start brings up journal, machine definition, device connection and the
// API servers.
func (lm *LifecycleManager) Start(ctx context.Context) error {
	lm.logger.Info("Starting OpenGCodeCore")

	if lm.config.Database.Enabled() {
		if err := lm.openJournal(ctx); err != nil {
			lm.setState(StateError)
			return err
		}
	}

	if lm.config.Machine.Definition != "" {
		if err := lm.loadDefinition(); err != nil {
			lm.setState(StateError)
			return err
		}
	}

	// Geräteverbindung ist nicht kritisch, Reload versucht es erneut
	if err := lm.controller.Connect(ctx); err != nil {
		lm.logger.Warn("Device not reachable",
			zap.String("address", lm.transport.Address()),
			zap.Error(err))
	}

	runCtx, cancel := context.WithCancel(context.Background())
	lm.cancel = cancel
	go lm.hub.Run(runCtx)
	go lm.hub.Forward(runCtx, lm.streamer)
	go lm.health.Watch(runCtx, lm.streamer, func() machine.Status {
		return lm.controller.GetStatus().Status
	})

	if lm.poller != nil {
		if err := lm.poller.Start(); err != nil {
			lm.logger.Warn("Failed to start temperature monitor", zap.Error(err))
		}
	}

	if err := lm.startGRPCServer(); err != nil {
		lm.setState(StateError)
		return fmt.Errorf("failed to start gRPC: %w", err)
	}

	lm.restServer = rest.NewServer(lm.config, lm, lm.logger.Named("rest"), lm.hub, lm.jwt, lm.metrics)
	if err := lm.restServer.Start(); err != nil {
		lm.setState(StateError)
		return fmt.Errorf("failed to start REST API: %w", err)
	}

	lm.setState(StateRunning)
	lm.logger.Info("System started successfully",
		zap.Int("grpc_port", lm.config.Server.GRPCPort),
		zap.Int("http_port", lm.config.Server.HTTPPort),
		zap.String("machine", lm.config.Machine.Definition),
		zap.Bool("journal", lm.storage != nil),
		zap.Bool("auth", lm.jwt != nil))

	return nil
}

func (lm *LifecycleManager) openJournal(ctx context.Context) error {
	db, err := storage.NewPostgresClient(ctx, lm.config.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to prepare journal schema: %w", err)
	}
	lm.storage = db
	lm.controller.SetJournal(db)
	lm.logger.Info("Instruction journal enabled",
		zap.String("host", lm.config.Database.Host),
		zap.String("database", lm.config.Database.Database))
	return nil
}

func (lm *LifecycleManager) loadDefinition() error {
	def, err := lm.loader.Load(lm.config.Machine.Definition)
	if err != nil {
		return err
	}
	return lm.controller.Load(def)
}

func (lm *LifecycleManager) startGRPCServer() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", lm.config.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	lm.grpcServer = grpc.NewServer()
	lm.health.Register(lm.grpcServer)
	lm.grpcAddr = lis.Addr()

	go func() {
		lm.logger.Info("gRPC server listening",
			zap.String("address", lis.Addr().String()),
			zap.String("services", "grpc.health.v1.Health"))
		if err := lm.grpcServer.Serve(lis); err != nil {
			lm.logger.Error("gRPC server failed", zap.Error(err))
		}
	}()

	return nil
}

// Reload re-reads the machine definition from disk and reconnects the
// device when the connection was lost. A rejected definition keeps the
// previous one active.
func (lm *LifecycleManager) Reload(ctx context.Context) error {
	if !lm.setState(StateReloading) {
		return fmt.Errorf("cannot reload: system is %s", lm.state())
	}

	var err error
	if lm.config.Machine.Definition != "" {
		lm.loader.ClearCache()
		err = lm.loadDefinition()
	}
	if err == nil && !lm.transport.IsConnected() {
		err = lm.controller.Connect(ctx)
	}

	lm.setState(StateRunning)
	if err != nil {
		lm.logger.Error("Reload failed", zap.Error(err))
		return err
	}
	lm.logger.Info("Machine definition reloaded",
		zap.String("definition", lm.config.Machine.Definition))
	return nil
}

// Shutdown gracefully shuts down the system
func (lm *LifecycleManager) Shutdown(ctx context.Context) error {
	var shutdownErr error

	lm.shutdownOnce.Do(func() {
		lm.logger.Info("Shutting down system")
		lm.setState(StateStopping)

		shutdownErr = lm.gracefulShutdown(ctx)

		lm.setState(StateStopped)
	})

	return shutdownErr
}

func (lm *LifecycleManager) gracefulShutdown(ctx context.Context) error {
	if lm.poller != nil {
		lm.poller.Stop()
	}

	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	if lm.restServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			if err := lm.restServer.Shutdown(shutdownCtx); err != nil {
				errChan <- fmt.Errorf("rest api shutdown failed: %w", err)
			}
		}()
	}

	if lm.grpcServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lm.health.Shutdown()
			lm.grpcServer.GracefulStop()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		lm.logger.Warn("Shutdown timeout, forcing stop")
		if lm.grpcServer != nil {
			lm.grpcServer.Stop()
		}
		err = fmt.Errorf("shutdown timeout exceeded")
	}
	select {
	case err = <-errChan:
	default:
	}

	if lm.cancel != nil {
		lm.cancel()
	}
	if cerr := lm.controller.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("device close failed: %w", cerr)
	}
	if lm.storage != nil {
		lm.storage.Close()
	}

	if err == nil {
		lm.logger.Info("Graceful shutdown completed")
	}
	return err
}

func (lm *LifecycleManager) state() SystemState {
	lm.stateMu.RLock()
	defer lm.stateMu.RUnlock()
	return lm.currentState
}

func (lm *LifecycleManager) setState(next SystemState) bool {
	lm.stateMu.Lock()
	defer lm.stateMu.Unlock()

	if err := ValidateTransition(lm.currentState, next); err != nil {
		lm.logger.Warn("System state change rejected", zap.Error(err))
		return false
	}
	lm.currentState = next
	return true
}

// GetCurrentStatus returns current system status (Interface implementation)
func (lm *LifecycleManager) GetCurrentStatus() interfaces.SystemStatus {
	status := interfaces.SystemStatus{
		State:            lm.state().String(),
		Machine:          lm.controller.GetStatus(),
		Definition:       lm.config.Machine.Definition,
		JournalEnabled:   lm.storage != nil,
		WebSocketClients: lm.hub.GetClientCount(),
		DroppedEvents:    lm.streamer.Dropped(),
	}
	if lm.poller != nil {
		status.MonitorRunning = lm.poller.IsRunning()
	}
	return status
}

// GRPCAddr is the address the health server listens on once started.
func (lm *LifecycleManager) GRPCAddr() net.Addr {
	return lm.grpcAddr
}

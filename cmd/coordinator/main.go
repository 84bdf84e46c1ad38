// Package main is the entry point for the last-mile coordinator server.
// One binary runs the coordination simulator, the motion and reasoning
// tickers, the HTTP + WebSocket API and the optional MCP tool server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lastmile/coordinator/internal/common/config"
	"github.com/lastmile/coordinator/internal/common/httpmw"
	"github.com/lastmile/coordinator/internal/common/logger"
	"github.com/lastmile/coordinator/internal/common/tracing"
	"github.com/lastmile/coordinator/internal/coordinator/controller"
	"github.com/lastmile/coordinator/internal/coordinator/handlers"
	"github.com/lastmile/coordinator/internal/coordinator/reasoning"
	"github.com/lastmile/coordinator/internal/coordinator/scenario"
	"github.com/lastmile/coordinator/internal/coordinator/service"
	"github.com/lastmile/coordinator/internal/events"
	gateways "github.com/lastmile/coordinator/internal/gateway/websocket"
	"github.com/lastmile/coordinator/internal/mcpserver"
	"github.com/lastmile/coordinator/internal/motion"
)

const serverName = "coordinator"

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	flag.Parse()

	// 1. Load configuration
	cfg, err := config.LoadWithPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize logger
	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	logger.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("coordinator exited with error", zap.Error(err))
		os.Exit(1)
	}
	log.Info("Coordinator stopped")
}

func run(cfg *config.Config, log *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting coordinator...")

	// 3. Event bus (in-memory, or NATS if configured)
	provided, closeBus, err := events.Provide(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeBus() }()
	eventBus := provided.Bus

	// 4. Scenario and simulators
	sc, err := scenario.Load(cfg.Simulation.ScenarioPath, time.Now())
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}
	log.Info("Scenario loaded",
		zap.Int("drivers", len(sc.Drivers)),
		zap.Int("orders", len(sc.Orders)),
		zap.Int("paths", len(sc.Paths)))

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	svc := service.NewService(sc, cfg.Simulation, eventBus, log,
		service.WithRand(rand.New(rand.NewSource(seed))))
	sim := motion.NewSimulator(sc.Paths, cfg.Simulation.MotionInterval, svc.Clock(),
		rand.New(rand.NewSource(seed+1)), eventBus, log)
	sim.Sync(svc.Drivers())
	monitor := reasoning.NewMonitor(svc, cfg.Simulation.ReasoningInterval, svc.Clock(),
		rand.New(rand.NewSource(seed+2)), eventBus, log)

	ctrl := controller.NewCoordinatorController(svc, sim, monitor)

	// 5. WebSocket gateway
	gateway := gateways.NewGateway(log)
	broadcaster := gateways.RegisterNotifications(ctx, eventBus, gateway.Hub, log)
	defer broadcaster.Close()

	// 6. HTTP server
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(httpmw.RequestID())
	router.Use(httpmw.OtelTracing(serverName))
	router.Use(httpmw.RequestLogger(log, serverName))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":        "ok",
			"service":       serverName,
			"is_processing": svc.IsProcessing(),
			"ws_clients":    gateway.Hub.GetClientCount(),
		})
	})
	gateway.SetupRoutes(router)
	handlers.RegisterRoutes(router, gateway.Dispatcher, ctrl, log)
	log.Info("Registered coordinator handlers (HTTP + WebSocket)")

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	// 7. MCP tool server
	if cfg.MCP.Enabled {
		mcpSrv, stopMCP, err := mcpserver.Provide(ctx, mcpserver.Config{Port: cfg.MCP.Port}, ctrl, log)
		if err != nil {
			return fmt.Errorf("start MCP server: %w", err)
		}
		defer func() {
			if err := stopMCP(); err != nil {
				log.Error("MCP server stop error", zap.Error(err))
			}
		}()
		log.Info("MCP server started",
			zap.String("sse", mcpSrv.SSEEndpoint()),
			zap.String("streamable_http", mcpSrv.StreamableHTTPEndpoint()))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })
	g.Go(func() error { return sim.Run(gctx, svc) })
	g.Go(func() error { return monitor.Run(gctx) })
	g.Go(func() error {
		gateway.Hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}
		if err := tracing.Shutdown(shutdownCtx); err != nil {
			log.Warn("tracer shutdown error", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}

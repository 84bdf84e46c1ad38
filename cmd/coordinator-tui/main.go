// Command coordinator-tui runs the coordinator in-process behind a terminal
// console: chat on the left, driver board, agent trail and reasoning panel on
// the right.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lastmile/coordinator/internal/common/config"
	"github.com/lastmile/coordinator/internal/common/logger"
	"github.com/lastmile/coordinator/internal/coordinator/reasoning"
	"github.com/lastmile/coordinator/internal/coordinator/scenario"
	"github.com/lastmile/coordinator/internal/coordinator/service"
	"github.com/lastmile/coordinator/internal/motion"
)

func main() {
	configPath := flag.String("config", "", "directory containing config.yaml")
	logPath := flag.String("log", "coordinator-tui.log", "log file (the terminal is taken by the UI)")
	altScreen := flag.Bool("alt-screen", true, "use the terminal alternate screen")
	flag.Parse()

	cfg, err := config.LoadWithPath(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     "json",
		OutputPath: *logPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log, *altScreen); err != nil {
		log.Error("coordinator-tui exited with error", zap.Error(err))
		fmt.Fprintf(os.Stderr, "coordinator-tui fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger, altScreen bool) error {
	sc, err := scenario.Load(cfg.Simulation.ScenarioPath, time.Now())
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	// The console reads state directly, so no event bus is wired.
	svc := service.NewService(sc, cfg.Simulation, nil, log, service.WithRand(rand.New(rand.NewSource(seed))))
	sim := motion.NewSimulator(sc.Paths, cfg.Simulation.MotionInterval, svc.Clock(), rand.New(rand.NewSource(seed+1)), nil, log)
	sim.Sync(svc.Drivers())
	monitor := reasoning.NewMonitor(svc, cfg.Simulation.ReasoningInterval, svc.Clock(), rand.New(rand.NewSource(seed+2)), nil, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.Run(gctx) })
	g.Go(func() error { return sim.Run(gctx, svc) })
	g.Go(func() error { return monitor.Run(gctx) })

	opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if altScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	p := tea.NewProgram(newModel(ctx, svc, sim, monitor, refreshInterval), opts...)
	_, runErr := p.Run()

	cancel()
	if err := g.Wait(); err != nil {
		return err
	}
	return runErr
}

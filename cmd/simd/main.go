package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/antonzymin-eng/Game-sub016/internal/config"
	"github.com/antonzymin-eng/Game-sub016/internal/core/ecs"
	"github.com/antonzymin-eng/Game-sub016/internal/core/event"
	"github.com/antonzymin-eng/Game-sub016/internal/core/threading"
	"github.com/antonzymin-eng/Game-sub016/internal/data"
	"github.com/antonzymin-eng/Game-sub016/internal/persist"
	"github.com/antonzymin-eng/Game-sub016/internal/scripting"
	"github.com/antonzymin-eng/Game-sub016/internal/system"
)

var (
	cfgPath   string
	duration  time.Duration
	maxFrames uint64
)

var rootCmd = &cobra.Command{
	Use:   "simd",
	Short: "Frame-synchronized simulation daemon",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	runCmd.Flags().StringVarP(&cfgPath, "config", "c", "config/simd.toml", "path to TOML config")
	runCmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 = run until signal)")
	runCmd.Flags().Uint64Var(&maxFrames, "frames", 0, "stop after this many frames (0 = unlimited)")
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	scenario, err := data.LoadScenario(cfg.Engine.Scenario)
	if err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}
	log.Info("scenario loaded",
		zap.String("name", scenario.Name),
		zap.Int("systems", len(scenario.Systems)),
		zap.Int("provinces", len(scenario.Provinces)))

	// Component stores and the message bus.
	world := ecs.NewWorld()
	bus := event.NewBus()
	populations := ecs.NewStore[system.Population]()
	economies := ecs.NewStore[system.Economy]()
	world.RegisterStore(populations)
	world.RegisterStore(economies)

	for _, p := range scenario.Provinces {
		id := world.CreateEntity()
		populations.Set(id, &system.Population{Count: p.Population, GrowthRate: p.GrowthRate})
		economies.Set(id, &system.Economy{Wealth: p.Wealth, TradePower: 1.0})
	}

	mgr, err := threading.NewManager(world, bus, cfg.Threading.Tuning(), log)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	builtins := map[string]threading.System{
		"PopulationSystem": system.NewPopulationSystem(bus, populations, log),
		"TradeSystem":      system.NewTradeSystem(bus, economies, populations, log),
	}

	for _, entry := range scenario.Systems {
		sys, err := buildSystem(entry, builtins, cfg, log)
		if err != nil {
			return err
		}
		if err := mgr.AddSystem(sys, entry.StrategyFor()); err != nil {
			return fmt.Errorf("register %s: %w", entry.Name, err)
		}
		if entry.Critical {
			if err := mgr.SetPerformanceCritical(entry.Name, true); err != nil {
				return err
			}
		}
		if entry.TargetInterval > 0 {
			if err := mgr.SetTargetInterval(entry.Name, entry.TargetInterval.Std()); err != nil {
				return err
			}
		}
	}

	// Optional Postgres-backed telemetry.
	if cfg.Telemetry.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		db, err := persist.NewDB(ctx, cfg.Telemetry, log)
		cancel()
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer db.Close()

		migCtx, migCancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = db.Migrate(migCtx)
		migCancel()
		if err != nil {
			return fmt.Errorf("migrations: %w", err)
		}

		telemetry := system.NewTelemetrySystem(mgr, persist.NewTelemetryRepo(db), cfg.Telemetry.FlushFrames, log)
		if err := mgr.AddSystem(telemetry, threading.Background); err != nil {
			return err
		}
		log.Info("telemetry enabled", zap.Uint64("flush_frames", cfg.Telemetry.FlushFrames))
	}

	mgr.Initialize()
	mgr.StartSystems()
	defer mgr.Shutdown()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var deadline <-chan time.Time
	if duration > 0 {
		deadline = time.After(duration)
	}

	log.Info("simulation running",
		zap.Duration("tick_rate", cfg.Engine.TickRate),
		zap.Int("workers", mgr.PoolInfo().Workers))

	ticker := time.NewTicker(cfg.Engine.TickRate)
	defer ticker.Stop()

	last := time.Now()
loop:
	for {
		select {
		case <-sigCh:
			log.Info("signal received, shutting down")
			break loop
		case <-deadline:
			log.Info("duration elapsed, shutting down")
			break loop
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now

			mgr.Update(dt)

			// Frame boundary: deliver last frame's events, then reap
			// destroyed entities while no system update is in flight.
			bus.SwapBuffers()
			bus.DispatchAll()
			world.FlushDestroyQueue()

			if maxFrames > 0 && mgr.Clock().Frame() >= maxFrames {
				log.Info("frame limit reached, shutting down", zap.Uint64("frames", maxFrames))
				break loop
			}
		}
	}

	for _, line := range mgr.PerformanceReport() {
		fmt.Println(line)
	}
	return nil
}

// buildSystem resolves a scenario entry to a built-in system or a Lua script.
func buildSystem(entry data.SystemEntry, builtins map[string]threading.System, cfg *config.Config, log *zap.Logger) (threading.System, error) {
	if sys, ok := builtins[entry.Name]; ok {
		return sys, nil
	}
	if entry.Script == "" {
		return nil, fmt.Errorf("system %q: not built in and no script given", entry.Name)
	}
	path := entry.Script
	if !filepath.IsAbs(path) {
		path = filepath.Join(cfg.Engine.ScriptsDir, path)
	}
	engine, err := scripting.NewEngine(path, log)
	if err != nil {
		return nil, fmt.Errorf("system %q: %w", entry.Name, err)
	}
	return system.NewScriptedSystem(entry.Name, engine), nil
}

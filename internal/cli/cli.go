// Package cli wires configuration, datasets, strategy construction, and the
// tick driver into the crowdsim command line interface.
//
// Command structure:
//
//	crowdsim run       # execute a simulation from a YAML config
//	crowdsim generate  # write a synthetic canonical dataset
//
// Both honour the persistent --config/-c flag (default configs/default.yaml).
package cli

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/crowdsim/crowdsim/internal/dataset"
	"github.com/crowdsim/crowdsim/internal/fairness"
	"github.com/crowdsim/crowdsim/internal/metrics"
	"github.com/crowdsim/crowdsim/internal/pool"
	"github.com/crowdsim/crowdsim/internal/sim"
	"github.com/crowdsim/crowdsim/internal/strategy"
	"github.com/crowdsim/crowdsim/pkg/types"
)

// Config maps the YAML configuration file. Everything the run needs is
// declared here and passed down explicitly; there are no process-wide
// mutable defaults.
type Config struct {
	Simulation struct {
		TimeStep       time.Duration `yaml:"time_step"`
		StartTime      string        `yaml:"start_time"` // RFC 3339, empty = infer
		EndTime        string        `yaml:"end_time"`   // RFC 3339, empty = run until drained
		Strategy       string        `yaml:"strategy"`
		CompletionMode string        `yaml:"completion_mode"`
		Teleport       bool          `yaml:"teleport_on_complete"`
		RevenuePerKm   float64       `yaml:"revenue_per_km"`
		Seed           int64         `yaml:"seed"`
		MaxTicks       int           `yaml:"max_ticks"`
		MetricsCSV     string        `yaml:"metrics_csv"`
	} `yaml:"simulation"`

	StrategyParams struct {
		Lambda1       float64 `yaml:"lambda1"`
		Lambda2       float64 `yaml:"lambda2"`
		Lambda3       float64 `yaml:"lambda3"`
		Gamma         float64 `yaml:"gamma"`
		K             int     `yaml:"k"`
		SoftThreshold float64 `yaml:"soft_threshold"`
		ScoreFilter   float64 `yaml:"score_filter"`
	} `yaml:"strategy_params"`

	Dataset struct {
		Workers string `yaml:"workers"`
		Tasks   string `yaml:"tasks"`
	} `yaml:"dataset"`

	Logging struct {
		Development bool `yaml:"development"`
	} `yaml:"logging"`

	Metrics struct {
		Enabled bool `yaml:"enabled"`
		Port    int  `yaml:"port"`
	} `yaml:"metrics"`
}

var configFile string

// BuildCLI assembles the root command.
func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "crowdsim",
		Short: "crowdsim: a discrete-time spatial crowdsourcing simulator",
		Long: `crowdsim replays canonical worker/task datasets through a tick-driven
matching simulation with pluggable assignment strategies:
- greedy: nearest feasible worker per task
- composite: fairness-aware two-phase scoring`,
		Version: "1.0.0",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildGenerateCommand())

	return rootCmd
}

func buildRunCommand() *cobra.Command {
	var workersPath, tasksPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation from the configured datasets",
		Long:  "Load the canonical worker/task CSVs, run the tick loop, and export per-tick metrics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(workersPath, tasksPath)
		},
	}

	cmd.Flags().StringVar(&workersPath, "workers", "", "override the configured workers CSV path")
	cmd.Flags().StringVar(&tasksPath, "tasks", "", "override the configured tasks CSV path")

	return cmd
}

func runSimulation(workersOverride, tasksOverride string) error {
	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	workersPath := cfg.Dataset.Workers
	if workersOverride != "" {
		workersPath = workersOverride
	}
	tasksPath := cfg.Dataset.Tasks
	if tasksOverride != "" {
		tasksPath = tasksOverride
	}

	workers, tasks, err := dataset.Load(workersPath, tasksPath)
	if err != nil {
		return err
	}
	logger.Info("dataset loaded",
		zap.String("workers", workersPath),
		zap.Int("worker_count", len(workers)),
		zap.String("tasks", tasksPath),
		zap.Int("task_count", len(tasks)))

	params := strategy.Params{
		Lambda1:       cfg.StrategyParams.Lambda1,
		Lambda2:       cfg.StrategyParams.Lambda2,
		Lambda3:       cfg.StrategyParams.Lambda3,
		Gamma:         cfg.StrategyParams.Gamma,
		K:             cfg.StrategyParams.K,
		SoftThreshold: cfg.StrategyParams.SoftThreshold,
		ScoreFilter:   cfg.StrategyParams.ScoreFilter,
	}.Normalize()

	rng := rand.New(rand.NewSource(cfg.Simulation.Seed))
	strat, err := strategy.New(cfg.Simulation.Strategy, params, rng)
	if err != nil {
		return err
	}

	mode, err := parseCompletionMode(cfg.Simulation.CompletionMode)
	if err != nil {
		return err
	}

	pools := pool.New(workers, tasks, pool.Config{
		Mode:     mode,
		Teleport: cfg.Simulation.Teleport,
		Revenue:  cfg.Simulation.RevenuePerKm,
		Fairness: fairness.NewTracker(params.Gamma),
	})

	driverCfg := sim.Config{
		Step:     cfg.Simulation.TimeStep,
		MaxTicks: cfg.Simulation.MaxTicks,
	}
	if driverCfg.Start, err = parseOptionalTime("start_time", cfg.Simulation.StartTime); err != nil {
		return err
	}
	if driverCfg.End, err = parseOptionalTime("end_time", cfg.Simulation.EndTime); err != nil {
		return err
	}

	var prom *metrics.Collector
	if cfg.Metrics.Enabled {
		prom = metrics.NewCollector(prometheus.DefaultRegisterer)
		go func() {
			logger.Info("starting metrics server", zap.Int("port", cfg.Metrics.Port))
			if err := metrics.StartServer(cfg.Metrics.Port); err != nil {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	tracker := metrics.NewTracker()
	driver, err := sim.New(driverCfg, pools, strat, tracker, prom, logger)
	if err != nil {
		return err
	}

	logger.Info("starting simulation",
		zap.String("strategy", strat.Name()),
		zap.String("completion_mode", string(mode)),
		zap.Duration("time_step", cfg.Simulation.TimeStep),
		zap.Int64("seed", cfg.Simulation.Seed))

	report, err := driver.Run()
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	if cfg.Simulation.MetricsCSV != "" {
		if err := tracker.WriteCSV(cfg.Simulation.MetricsCSV); err != nil {
			return err
		}
		logger.Info("metrics written", zap.String("path", cfg.Simulation.MetricsCSV))
	}

	fmt.Printf("ticks=%d assignments=%d completed=%d unserved=%d expired_unserved=%d final_jfi=%.4f\n",
		report.Ticks, report.Assignments, report.Completed,
		report.Unserved, report.ExpiredUnserved, report.FinalJFI)

	return nil
}

func buildGenerateCommand() *cobra.Command {
	synth := dataset.DefaultSynthConfig()
	var outDir string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic canonical dataset",
		Long:  "Write workers.csv and tasks.csv with entities scattered around a city centre.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return generateDataset(synth, outDir)
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "output directory")
	cmd.Flags().IntVar(&synth.Workers, "workers", synth.Workers, "number of workers")
	cmd.Flags().IntVar(&synth.Tasks, "tasks", synth.Tasks, "number of tasks")
	cmd.Flags().Float64Var(&synth.CenterLat, "lat", synth.CenterLat, "centre latitude")
	cmd.Flags().Float64Var(&synth.CenterLon, "lon", synth.CenterLon, "centre longitude")
	cmd.Flags().Float64Var(&synth.RadiusKm, "radius", synth.RadiusKm, "scatter radius in km")
	cmd.Flags().Int64Var(&synth.Seed, "seed", synth.Seed, "generator seed")

	return cmd
}

func generateDataset(synth dataset.SynthConfig, outDir string) error {
	workers, tasks := dataset.Generate(synth)

	workersPath := outDir + "/workers.csv"
	tasksPath := outDir + "/tasks.csv"

	if err := dataset.WriteWorkersCSV(workersPath, workers); err != nil {
		return err
	}
	if err := dataset.WriteTasksCSV(tasksPath, tasks); err != nil {
		return err
	}

	fmt.Printf("wrote %d workers to %s and %d tasks to %s (seed %d)\n",
		len(workers), workersPath, len(tasks), tasksPath, synth.Seed)
	return nil
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return &cfg, nil
}

func buildLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.Logging.Development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func parseCompletionMode(raw string) (types.CompletionMode, error) {
	switch types.CompletionMode(raw) {
	case types.CompletionInstant:
		return types.CompletionInstant, nil
	case types.CompletionDistance, "":
		return types.CompletionDistance, nil
	default:
		return "", fmt.Errorf("unknown completion mode %q (want instant or distance)", raw)
	}
}

func parseOptionalTime(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q (want RFC 3339): %w", field, raw, err)
	}
	return ts, nil
}

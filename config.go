package harness

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-harness/flags"
	"github.com/ethereum-optimism/infra/op-harness/registry"
	"github.com/ethereum-optimism/infra/op-harness/runner"
	"github.com/ethereum-optimism/infra/op-harness/tags"
	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/ethereum/go-ethereum/log"
)

// Config holds the application configuration
type Config struct {
	ModulePath       string          // Compiled test module to load
	IncludeTags      []string        // Only tests carrying one of these tags run
	ExcludeTags      []string        // Tests carrying any of these tags never run
	Serial           bool            // Whether to run tests one at a time
	Concurrency      int             // Number of concurrent test workers (0 = number of CPUs)
	Timeout          time.Duration   // Default per-test deadline, can be overridden per test
	PlanFile         string          // Optional YAML/TOML run plan
	Plan             *types.RunPlan  // Parsed plan, nil without --plan
	LogDir           string          // Directory to store per-run result logs
	RunInterval      time.Duration   // Interval between test runs
	RunOnce          bool            // Indicates if the service should exit after one test run
	ShowProgress     bool            // Whether to show periodic progress updates during test execution
	ProgressInterval time.Duration   // Interval between progress updates when ShowProgress is 'true'
	ListOnly         bool            // Print admitted tests and exit
	Log              log.Logger
}

// NewConfig creates a new Config from cli context. Values given on the
// command line take precedence over the run plan.
func NewConfig(ctx *cli.Context, log log.Logger, modulePath string) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}
	if modulePath == "" {
		return nil, errors.New("path to a compiled test module is required")
	}
	absModulePath, err := filepath.Abs(modulePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for test module '%s': %w", modulePath, err)
	}

	var (
		plan        *types.RunPlan
		absPlanFile string
	)
	if planFile := ctx.String(flags.Plan.Name); planFile != "" {
		absPlanFile, err = filepath.Abs(planFile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for plan file '%s': %w", planFile, err)
		}
		plan, err = registry.LoadPlan(absPlanFile)
		if err != nil {
			return nil, err
		}
	}

	includeTags := tags.ParseCSV(ctx.String(flags.IncludeTags.Name))
	excludeTags := tags.ParseCSV(ctx.String(flags.ExcludeTags.Name))
	concurrency := ctx.Int(flags.Parallel.Name)
	if concurrency < 0 {
		return nil, fmt.Errorf("invalid --parallel %d: must not be negative", concurrency)
	}
	timeout, err := flags.ParseTimeout(ctx.String(flags.Timeout.Name))
	if err != nil {
		return nil, err
	}

	if plan != nil {
		if !ctx.IsSet(flags.IncludeTags.Name) {
			includeTags = plan.IncludeTags
		}
		if !ctx.IsSet(flags.ExcludeTags.Name) {
			excludeTags = plan.ExcludeTags
		}
		if !ctx.IsSet(flags.Parallel.Name) && plan.Parallel > 0 {
			concurrency = plan.Parallel
		}
		if !ctx.IsSet(flags.Timeout.Name) && plan.Timeout > 0 {
			timeout = plan.Timeout
		}
	}

	serial := ctx.Bool(flags.Serial.Name)
	if serial {
		if concurrency > 1 {
			log.Warn("Both --serial and --parallel given, running serially", "parallel", concurrency)
		}
		concurrency = 1
	}
	if concurrency == 0 {
		concurrency = runtime.NumCPU()
	}
	if concurrency > runner.MaxReasonableConcurrency {
		log.Warn("Concurrency is unusually high", "concurrency", concurrency, "max_reasonable", runner.MaxReasonableConcurrency)
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	if runInterval < 0 {
		return nil, fmt.Errorf("invalid --run-interval %s: must not be negative", runInterval)
	}
	runOnce := runInterval == 0

	// Get log directory, default to "logs" if not specified
	logDir := ctx.String(flags.LogDir.Name)
	if logDir == "" {
		logDir = "logs"
	}
	logDir, err = filepath.Abs(logDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
	}

	return &Config{
		ModulePath:       absModulePath,
		IncludeTags:      includeTags,
		ExcludeTags:      excludeTags,
		Serial:           serial,
		Concurrency:      concurrency,
		Timeout:          timeout,
		PlanFile:         absPlanFile,
		Plan:             plan,
		LogDir:           logDir,
		RunInterval:      runInterval,
		RunOnce:          runOnce,
		ShowProgress:     ctx.Bool(flags.ShowProgress.Name),
		ProgressInterval: ctx.Duration(flags.ProgressInterval.Name),
		ListOnly:         ctx.Bool(flags.ListTests.Name),
		Log:              log,
	}, nil
}

// Filter returns the tag filter described by the config
func (c *Config) Filter() tags.Filter {
	return tags.New(c.IncludeTags, c.ExcludeTags)
}

// Snapshot returns the effective configuration of a run
func (c *Config) Snapshot(version, runID string) *types.EffectiveConfigSnapshot {
	snap := &types.EffectiveConfigSnapshot{
		Runner: types.RunnerConfigSnapshot{
			Timeout:          c.Timeout,
			Serial:           c.Serial,
			Concurrency:      c.Concurrency,
			ShowProgress:     c.ShowProgress,
			ProgressInterval: c.ProgressInterval,
		},
		Filter: types.FilterConfigSnapshot{
			IncludeTags: c.Filter().Include.Sorted(),
			ExcludeTags: c.Filter().Exclude.Sorted(),
		},
		Execution: types.ExecutionConfigSnapshot{
			RunInterval: c.RunInterval,
			RunOnce:     c.RunOnce,
		},
		Paths: types.PathsConfigSnapshot{
			ModulePath: c.ModulePath,
			PlanFile:   c.PlanFile,
			LogDir:     c.LogDir,
		},
		Version: version,
		RunID:   runID,
	}
	if c.Plan != nil {
		snap.Filter.Overrides = len(c.Plan.Tests)
	}
	return snap
}

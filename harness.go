// Package harness runs the tests of a compiled test module as a service:
// once, or periodically until interrupted. Each run gets its own result
// directory, a console table, metrics and a published status.
package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/panics"

	"github.com/ethereum-optimism/infra/op-harness/logging"
	"github.com/ethereum-optimism/infra/op-harness/metrics"
	"github.com/ethereum-optimism/infra/op-harness/registry"
	"github.com/ethereum-optimism/infra/op-harness/runner"
	"github.com/ethereum-optimism/infra/op-harness/service"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// ConfigSnapshotFilename is written into every run directory
const ConfigSnapshotFilename = "config.json"

// Harness implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = (*Harness)(nil)

// Harness loads the tests of one provider and runs them on a schedule.
type Harness struct {
	config    *Config
	version   string
	provider  registry.Provider
	runner    runner.TestRunner
	executor  TestExecutor
	formatter ResultFormatter
	reporter  MetricsReporter
	scheduler TestScheduler
	progress  runner.ProgressIndicator // nil unless --show-progress
	status    StatusPublisher          // optional
	listOut   io.Writer

	mu     sync.Mutex
	runID  string // of the run in progress or last started
	result *runner.RunnerResult

	shutdownCallback func(error) // Callback to signal application shutdown
}

// Option customises a Harness
type Option func(*Harness)

// WithStatusPublisher publishes the state of every run
func WithStatusPublisher(p StatusPublisher) Option {
	return func(h *Harness) { h.status = p }
}

// WithResultFormatter replaces the console table formatter
func WithResultFormatter(f ResultFormatter) Option {
	return func(h *Harness) { h.formatter = f }
}

// WithListOutput sets where --list output is written
func WithListOutput(w io.Writer) Option {
	return func(h *Harness) { h.listOut = w }
}

func New(config *Config, provider registry.Provider, version string, shutdownCallback func(error), opts ...Option) (*Harness, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if provider == nil {
		return nil, errors.New("provider is required")
	}
	if shutdownCallback == nil {
		shutdownCallback = func(error) {}
	}

	config.Log.Debug("Creating harness with config",
		"module", config.ModulePath,
		"plan", config.PlanFile,
		"includeTags", config.IncludeTags,
		"excludeTags", config.ExcludeTags,
		"concurrency", config.Concurrency,
		"timeout", config.Timeout,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce)

	if config.Plan != nil {
		provider = registry.WithPlan(provider, config.Plan)
	}

	var progress runner.ProgressIndicator
	if config.ShowProgress {
		progress = runner.NewConsoleProgressIndicator(config.Log, config.ProgressInterval)
	}

	testRunner, err := runner.NewTestRunner(runner.Config{
		Provider:    provider,
		Filter:      config.Filter(),
		Concurrency: config.Concurrency,
		Timeout:     config.Timeout,
		Log:         config.Log,
		Progress:    progress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create test runner: %w", err)
	}

	h := &Harness{
		config:           config,
		version:          version,
		provider:         provider,
		runner:           testRunner,
		executor:         NewDefaultTestExecutor(testRunner, config.Log),
		formatter:        NewConsoleResultFormatter(config.Log),
		reporter:         NewDefaultMetricsReporter(),
		scheduler:        NewDefaultTestScheduler(config.RunInterval, config.RunOnce, config.Log),
		progress:         progress,
		listOut:          os.Stdout,
		shutdownCallback: shutdownCallback,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.scheduler.RegisterCallback(h.runTests)
	h.scheduler.OnRunError(h.handleRunError)
	return h, nil
}

// Start runs the tests, once or periodically at the configured interval.
// In run-once mode a run with any non-passing test returns a
// TestFailureError.
// Start implements the cliapp.Lifecycle interface.
func (h *Harness) Start(ctx context.Context) error {
	if h.config.ListOnly {
		if err := h.listTests(); err != nil {
			return err
		}
		go h.shutdownCallback(nil)
		return nil
	}

	if h.config.RunOnce {
		h.config.Log.Info("Starting op-harness in run-once mode")
	} else {
		h.config.Log.Info("Starting op-harness in continuous mode", "interval", h.config.RunInterval)
	}

	if err := h.scheduler.Start(ctx); err != nil {
		h.config.Log.Error("Runtime error running tests", "error", err)
		if !IsRuntimeError(err) {
			err = NewRuntimeError(err)
		}
		return err
	}

	if h.config.RunOnce {
		h.config.Log.Info("Tests completed, exiting (run-once mode)")

		if result := h.Result(); result != nil && !result.Passed() {
			h.config.Log.Warn("Run-once test run completed with failures, returning exit code 1")
			return NewTestFailureError(result.String())
		}

		go h.shutdownCallback(nil)
		return nil
	}

	h.config.Log.Debug("op-harness started successfully")
	return nil
}

// runTests performs one run and processes its results. Panics escaping the
// run are converted into a RuntimeError.
func (h *Harness) runTests(ctx context.Context) error {
	var (
		pc  panics.Catcher
		err error
	)
	pc.Try(func() { err = h.performRun(ctx) })
	if r := pc.Recovered(); r != nil {
		h.config.Log.Error("Runtime error occurred", "error", r.Value, "stack", string(r.Stack))
		return NewRuntimeError(r.AsError())
	}
	return err
}

func (h *Harness) performRun(ctx context.Context) error {
	runID := uuid.New().String()
	h.mu.Lock()
	h.runID = runID
	h.mu.Unlock()

	fileLogger, err := logging.NewFileLogger(h.config.LogDir, runID)
	if err != nil {
		return NewRuntimeError(fmt.Errorf("failed to create file logger: %w", err))
	}
	if withLogger, ok := h.runner.(runner.TestRunnerWithFileLogger); ok {
		withLogger.SetFileLogger(fileLogger)
	}
	if err := h.writeConfigSnapshot(fileLogger, runID); err != nil {
		h.config.Log.Warn("Failed to write config snapshot", "run_id", runID, "error", err)
	}

	if h.status != nil {
		h.status.SetStatus(service.RunStatus{RunID: runID, Run: h.scheduler.Runs(), Status: "running", Running: true})
	}

	result, err := h.executor.RunTests(ctx)
	if err != nil {
		if cerr := fileLogger.Complete(runID); cerr != nil {
			h.config.Log.Error("Failed to close result files", "run_id", runID, "error", cerr)
		}
		return err
	}

	fileLogger.SetRunDuration(runID, result.Duration)
	if err := fileLogger.Complete(runID); err != nil {
		h.config.Log.Error("Failed to complete result files", "run_id", runID, "error", err)
	}

	h.mu.Lock()
	h.result = result
	h.mu.Unlock()

	if err := h.formatter.FormatResults(result); err != nil {
		h.config.Log.Error("Failed to format results", "run_id", runID, "error", err)
	}
	h.reporter.ReportResults(runID, result)
	if h.status != nil {
		status := runStatus(result)
		status.Run = h.scheduler.Runs()
		h.status.SetStatus(status)
	}

	if dir, err := fileLogger.GetDirectoryForRunID(runID); err == nil {
		h.config.Log.Info("Results written", "run_id", runID, "dir", dir)
	}
	return nil
}

// handleRunError publishes a run that could not be performed. Test failures
// are not errors here; they are part of a normal result.
func (h *Harness) handleRunError(run int64, err error) {
	metrics.RecordErrorDetails("run", err)
	if h.status == nil {
		return
	}
	h.mu.Lock()
	runID := h.runID
	h.mu.Unlock()
	h.status.SetStatus(service.RunStatus{RunID: runID, Run: run, Status: "error", Error: err.Error()})
}

func (h *Harness) writeConfigSnapshot(fileLogger *logging.FileLogger, runID string) error {
	dir, err := fileLogger.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(h.config.Snapshot(h.version, runID), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config snapshot: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, ConfigSnapshotFilename), data, 0644)
}

// listTests prints the admitted tests without running them
func (h *Harness) listTests() error {
	cases, err := h.provider.TestCases()
	if err != nil {
		return NewRuntimeError(err)
	}
	admitted, rejected := h.config.Filter().Partition(cases)
	h.config.Log.Info("Listing tests", "admitted", len(admitted), "rejected", len(rejected))
	_, err = fmt.Fprint(h.listOut, FormatTestList(admitted))
	return err
}

// Result returns the result of the most recent completed run, or nil
func (h *Harness) Result() *runner.RunnerResult {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.result
}

// Stop stops scheduling further runs. A run in progress is not interrupted.
// Stop implements the cliapp.Lifecycle interface.
func (h *Harness) Stop(ctx context.Context) error {
	h.config.Log.Info("Stopping op-harness")
	if err := h.scheduler.Stop(); err != nil {
		return err
	}
	if h.progress != nil {
		h.progress.Stop()
	}
	h.config.Log.Info("op-harness stopped successfully")
	return nil
}

// Stopped returns true if no further runs will be scheduled.
// Stopped implements the cliapp.Lifecycle interface.
func (h *Harness) Stopped() bool {
	return h.scheduler.Stopped()
}

// WaitForShutdown blocks until all goroutines have terminated.
func (h *Harness) WaitForShutdown(ctx context.Context) error {
	return h.scheduler.WaitForShutdown(ctx)
}

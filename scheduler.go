package harness

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// RunFunc performs one complete test run
type RunFunc func(ctx context.Context) error

// TestScheduler decides when test runs happen: once, or once immediately and
// then every interval until stopped.
type TestScheduler interface {
	Start(ctx context.Context) error
	Stop() error
	RegisterCallback(RunFunc)
	OnRunError(func(run int64, err error))
	Runs() int64
	WaitForShutdown(ctx context.Context) error
	Stopped() bool
}

// DefaultTestScheduler implements the TestScheduler interface. Runs never
// overlap: the interval is measured from the end of one run to the start of
// the next.
type DefaultTestScheduler struct {
	interval time.Duration
	runOnce  bool
	logger   log.Logger
	run      RunFunc
	onError  func(run int64, err error)

	runs     atomic.Int64
	failures atomic.Int64 // consecutive failed runs
	running  atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewDefaultTestScheduler(interval time.Duration, runOnce bool, logger log.Logger) *DefaultTestScheduler {
	return &DefaultTestScheduler{
		interval: interval,
		runOnce:  runOnce,
		logger:   logger.New("component", "scheduler"),
		done:     make(chan struct{}),
	}
}

// RegisterCallback sets the function invoked for every run
func (s *DefaultTestScheduler) RegisterCallback(run RunFunc) {
	s.run = run
}

// OnRunError sets a hook invoked with the 1-based run number of every run
// that returns an error, including the first one.
func (s *DefaultTestScheduler) OnRunError(fn func(run int64, err error)) {
	s.onError = fn
}

// Runs returns the number of runs started so far
func (s *DefaultTestScheduler) Runs() int64 {
	return s.runs.Load()
}

// Start performs the first run and returns its error. In periodic mode the
// following runs happen in the background; their errors only reach the
// OnRunError hook.
func (s *DefaultTestScheduler) Start(ctx context.Context) error {
	if s.run == nil {
		return errors.New("callback must be registered before starting scheduler")
	}
	if !s.runOnce && s.interval <= 0 {
		return errors.New("periodic scheduler requires a positive interval")
	}

	s.done = make(chan struct{})
	s.running.Store(true)

	if err := s.perform(ctx); err != nil || s.runOnce {
		return err
	}

	s.wg.Add(1)
	go s.loop(ctx)
	return nil
}

// perform executes a single run and keeps the run bookkeeping
func (s *DefaultTestScheduler) perform(ctx context.Context) error {
	n := s.runs.Add(1)
	s.logger.Info("Starting test run", "run", n)

	err := s.run(ctx)
	if err == nil {
		s.failures.Store(0)
		return nil
	}

	failures := s.failures.Add(1)
	s.logger.Error("Test run failed", "run", n, "consecutive_failures", failures, "error", err)
	if s.onError != nil {
		s.onError(n, err)
	}
	return err
}

func (s *DefaultTestScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	timer := time.NewTimer(s.interval)
	defer timer.Stop()
	s.logger.Info("Next test run scheduled", "in", s.interval)

	for {
		select {
		case <-timer.C:
			if !s.running.Load() {
				return
			}
			// the error was already handed to the hook
			_ = s.perform(ctx)
			timer.Reset(s.interval)
			s.logger.Info("Next test run scheduled", "in", s.interval)

		case <-s.done:
			s.logger.Debug("Scheduler stopped, no further runs")
			return

		case <-ctx.Done():
			s.logger.Debug("Context canceled, no further runs")
			s.running.Store(false)
			return
		}
	}
}

// Stop prevents further runs. It is safe to call more than once.
func (s *DefaultTestScheduler) Stop() error {
	if s.running.CompareAndSwap(true, false) {
		close(s.done)
	}
	return nil
}

// Stopped returns true if no further runs will be started.
func (s *DefaultTestScheduler) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until the background run loop, if any, has exited.
func (s *DefaultTestScheduler) WaitForShutdown(ctx context.Context) error {
	exited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(exited)
	}()

	select {
	case <-exited:
		return nil
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for the run loop to exit", "error", ctx.Err())
		return ctx.Err()
	}
}

// Package logging writes the per-run result directory:
//
//	<logdir>/testrun-<runID>/
//	  all.log        every result, in completion order
//	  passed/        one file per passing test
//	  failed/        one file per failing, erroring or timed out test
//	  results.json   machine readable results, written on Complete
//	  summary.log    text summary and table, written on Complete
//
// Results are fed to a set of ResultSink values as they are appended by the
// runner; sinks that need the whole run write their output on Complete.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/reporting"
	"github.com/ethereum-optimism/infra/op-harness/types"
)

const (
	AllLogsFilename     = "all.log"
	ResultsJSONFilename = "results.json"
	PassedDirName       = "passed"
	FailedDirName       = "failed"
)

// ResultSink is an interface for different ways of consuming test results
type ResultSink interface {
	// Consume processes a single test result
	Consume(result *types.TestResult, runID string) error
	// Complete is called when all results have been consumed
	Complete(runID string) error
}

// FileLogger handles writing test results to files
type FileLogger struct {
	baseDir      string
	logDir       string
	runID        string
	mu           sync.Mutex
	sinks        []ResultSink
	summary      *reporting.TextSummarySink
	asyncWriters map[string]*AsyncFile
}

// AsyncFile provides non-blocking file writing capabilities
type AsyncFile struct {
	file     *os.File
	queue    chan []byte
	wg       sync.WaitGroup
	mu       sync.Mutex
	stopped  bool
	writeErr error
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes
func NewAsyncFile(path string) (*AsyncFile, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100),
	}

	af.wg.Add(1)
	go af.processQueue()

	return af, nil
}

// Write queues data to be written asynchronously
func (af *AsyncFile) Write(data []byte) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return fmt.Errorf("async file %s is closed", af.file.Name())
	}

	// The caller may reuse data after Write returns
	af.queue <- append([]byte(nil), data...)
	return nil
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil && af.writeErr == nil {
			af.writeErr = err
		}
	}
}

// Close stops the async writer, waits for queued writes and closes the file.
// It returns the first write error, if any.
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if af.stopped {
		af.mu.Unlock()
		return nil
	}
	af.stopped = true
	close(af.queue)
	af.mu.Unlock()

	af.wg.Wait()
	closeErr := af.file.Close()
	if af.writeErr != nil {
		return fmt.Errorf("failed writing %s: %w", af.file.Name(), af.writeErr)
	}
	return closeErr
}

// NewFileLogger creates the run directory for runID below baseDir and
// registers the default sinks
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := filepath.Join(baseDir, reporting.RunDirectoryPrefix+runID)
	for _, dir := range []string{logDir, filepath.Join(logDir, PassedDirName), filepath.Join(logDir, FailedDirName)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	l := &FileLogger{
		baseDir:      baseDir,
		logDir:       logDir,
		runID:        runID,
		asyncWriters: make(map[string]*AsyncFile),
		summary:      reporting.NewTextSummarySink(baseDir, true),
	}
	l.sinks = []ResultSink{
		&AllLogsFileSink{logger: l},
		&PerTestFileSink{logger: l, processedTests: make(map[string]bool)},
		NewResultsJSONSink(l),
		l.summary,
	}

	return l, nil
}

// AddSink registers an additional sink. Sinks are fed in registration order.
func (l *FileLogger) AddSink(sink ResultSink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, sink)
}

func (l *FileLogger) getAsyncWriter(path string) (*AsyncFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if writer, exists := l.asyncWriters[path]; exists {
		return writer, nil
	}

	writer, err := NewAsyncFile(path)
	if err != nil {
		return nil, err
	}
	l.asyncWriters[path] = writer
	return writer, nil
}

func (l *FileLogger) closeAllWriters() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, writer := range l.asyncWriters {
		if err := writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.asyncWriters = make(map[string]*AsyncFile)
	return firstErr
}

func (l *FileLogger) snapshotSinks() []ResultSink {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ResultSink(nil), l.sinks...)
}

// GetRunID returns the run ID the logger was created for
func (l *FileLogger) GetRunID() string {
	return l.runID
}

// GetDirectoryForRunID returns the path for a specific runID
func (l *FileLogger) GetDirectoryForRunID(runID string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("runID cannot be empty")
	}
	if runID == l.runID {
		return l.logDir, nil
	}
	return filepath.Join(l.baseDir, reporting.RunDirectoryPrefix+runID), nil
}

// GetAllLogsFileForRunID returns the path to the all.log file for the given runID
func (l *FileLogger) GetAllLogsFileForRunID(runID string) (string, error) {
	dir, err := l.GetDirectoryForRunID(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AllLogsFilename), nil
}

// GetSummaryFileForRunID returns the summary file for a specific runID
func (l *FileLogger) GetSummaryFileForRunID(runID string) (string, error) {
	dir, err := l.GetDirectoryForRunID(runID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, reporting.SummaryFilename), nil
}

// LogTestResult feeds a test result to every registered sink
func (l *FileLogger) LogTestResult(result *types.TestResult, runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}

	for _, sink := range l.snapshotSinks() {
		if err := sink.Consume(result, runID); err != nil {
			return fmt.Errorf("error in sink %s: %w", sinkTypeName(sink), err)
		}
	}
	return nil
}

// SetRunDuration records the wall-clock duration shown in summary.log
func (l *FileLogger) SetRunDuration(runID string, d time.Duration) {
	l.summary.SetRunDuration(runID, d)
}

// Complete finalizes all sinks and closes all file writers
func (l *FileLogger) Complete(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}

	for _, sink := range l.snapshotSinks() {
		if err := sink.Complete(runID); err != nil {
			_ = l.closeAllWriters()
			return fmt.Errorf("error completing sink %s: %w", sinkTypeName(sink), err)
		}
	}

	return l.closeAllWriters()
}

// GetSinkByType returns a sink whose struct name is sinkType
func (l *FileLogger) GetSinkByType(sinkType string) (ResultSink, bool) {
	for _, sink := range l.snapshotSinks() {
		if sinkTypeName(sink) == sinkType {
			return sink, true
		}
	}
	return nil, false
}

func sinkTypeName(sink ResultSink) string {
	typeName := strings.TrimPrefix(fmt.Sprintf("%T", sink), "*")
	if idx := strings.LastIndex(typeName, "."); idx >= 0 {
		typeName = typeName[idx+1:]
	}
	return typeName
}

// safeFilename converts a test name to a safe filename by replacing problematic characters
func safeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
	)
	s = replacer.Replace(s)
	s = strings.ReplaceAll(s, "...", "")
	if s == "" {
		return "unnamed"
	}
	return s
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}

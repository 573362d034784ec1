package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

const (
	RunDirectoryPrefix = "testrun-"
	SummaryFilename    = "summary.log"
)

// TextSummarySink collects results and writes summary.log when the run completes
type TextSummarySink struct {
	summary     *TextSummaryFormatter
	table       *TableFormatter
	baseDir     string
	mu          sync.Mutex
	testResults map[string][]*types.TestResult
	durations   map[string]time.Duration
}

// NewTextSummarySink creates a new text summary sink writing below baseDir
func NewTextSummarySink(baseDir string, includeDetails bool) *TextSummarySink {
	return &TextSummarySink{
		summary:     NewTextSummaryFormatter(includeDetails),
		table:       NewTableFormatter("Test Results", true),
		baseDir:     baseDir,
		testResults: make(map[string][]*types.TestResult),
		durations:   make(map[string]time.Duration),
	}
}

// Consume collects test results for later text summary generation
func (s *TextSummarySink) Consume(result *types.TestResult, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.testResults[runID] = append(s.testResults[runID], result)
	return nil
}

// SetRunDuration records the wall-clock duration of a run for its summary
func (s *TextSummarySink) SetRunDuration(runID string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.durations[runID] = d
}

// Complete generates the summary file for runID
func (s *TextSummarySink) Complete(runID string) error {
	s.mu.Lock()
	results := s.testResults[runID]
	duration := s.durations[runID]
	delete(s.testResults, runID)
	delete(s.durations, runID)
	s.mu.Unlock()

	outputDir := filepath.Join(s.baseDir, RunDirectoryPrefix+runID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	summaryFile := filepath.Join(outputDir, SummaryFilename)
	gen := NewReportGenerator(NewReportBuilder(), s, NewFileWriter(summaryFile))
	if err := gen.GenerateFromTestResults(results, runID, duration); err != nil {
		return fmt.Errorf("failed to write summary file: %w", err)
	}
	return nil
}

// Format renders the text summary followed by the results table
func (s *TextSummarySink) Format(data *ReportData) (string, error) {
	summary, err := s.summary.Format(data)
	if err != nil {
		return "", fmt.Errorf("failed to format text summary: %w", err)
	}
	table, err := s.table.Format(data)
	if err != nil {
		return "", fmt.Errorf("failed to format results table: %w", err)
	}
	return summary + "\n" + table, nil
}

// TableReporter renders results as a console table
type TableReporter struct {
	formatter *TableFormatter
}

// NewTableReporter creates a new table reporter
func NewTableReporter(title string, colored bool) *TableReporter {
	return &TableReporter{formatter: NewTableFormatter(title, colored)}
}

// GenerateTableFromTestResults generates a table report and returns the content as a string
func (tr *TableReporter) GenerateTableFromTestResults(testResults []*types.TestResult, runID string, duration time.Duration) (string, error) {
	data := NewReportBuilder().BuildFromTestResults(testResults, runID, duration)
	return tr.formatter.Format(data)
}

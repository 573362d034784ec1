package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/ethereum-optimism/infra/op-harness/ui"
)

// boxWidth is the width of the header boxes in all.log and per-test files
const boxWidth = 72

func resultBox(result *types.TestResult) string {
	var content strings.Builder
	content.WriteString(ui.BuildBoxHeader("TEST: "+result.Name, boxWidth))
	content.WriteString(ui.BuildBoxLine("Outcome:  "+result.Outcome.Label(), boxWidth))
	content.WriteString(ui.BuildBoxLine("Duration: "+formatDuration(result.Duration), boxWidth))
	if len(result.Tags) > 0 {
		content.WriteString(ui.BuildBoxLine("Tags:     "+strings.Join(result.Tags, ", "), boxWidth))
	}
	if len(result.Fixtures) > 0 {
		content.WriteString(ui.BuildBoxLine("Fixtures: "+strings.Join(result.Fixtures, ", "), boxWidth))
	}
	content.WriteString(ui.BuildBoxFooter(boxWidth))
	return content.String()
}

// AllLogsFileSink writes all test results to a single all.log file
type AllLogsFileSink struct {
	logger *FileLogger
}

// Consume appends a test result to the all.log file
func (s *AllLogsFileSink) Consume(result *types.TestResult, runID string) error {
	allLogsFile, err := s.logger.GetAllLogsFileForRunID(runID)
	if err != nil {
		return err
	}
	writer, err := s.logger.getAsyncWriter(allLogsFile)
	if err != nil {
		return err
	}

	var content strings.Builder
	content.WriteString("\n")
	content.WriteString(resultBox(result))
	if result.Message != "" {
		fmt.Fprintf(&content, "\nMESSAGE:\n~~~~~~~~\n%s\n", indentText(result.Message, "  "))
	}
	content.WriteString("\n")

	return writer.Write([]byte(content.String()))
}

// Complete is a no-op for AllLogsFileSink
func (s *AllLogsFileSink) Complete(runID string) error {
	return nil
}

func indentText(text, indent string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = indent + line
		}
	}
	return strings.Join(lines, "\n")
}

// PerTestFileSink writes one file per test into the passed or failed directory
type PerTestFileSink struct {
	logger         *FileLogger
	processedTests map[string]bool
	mu             sync.Mutex
}

// Consume writes a test result to <run dir>/{passed,failed}/<name>.log
func (s *PerTestFileSink) Consume(result *types.TestResult, runID string) error {
	baseDir, err := s.logger.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}

	targetDir := filepath.Join(baseDir, PassedDirName)
	if !result.Passed() {
		targetDir = filepath.Join(baseDir, FailedDirName)
	}
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", targetDir, err)
	}

	testFilePath := filepath.Join(targetDir, safeFilename(result.Name)+".log")

	s.mu.Lock()
	if s.processedTests[testFilePath] {
		s.mu.Unlock()
		return nil
	}
	s.processedTests[testFilePath] = true
	s.mu.Unlock()

	writer, err := s.logger.getAsyncWriter(testFilePath)
	if err != nil {
		return err
	}
	return writer.Write([]byte(perTestContent(result)))
}

func perTestContent(result *types.TestResult) string {
	var content strings.Builder
	content.WriteString(resultBox(result))
	content.WriteString("\n")

	switch result.Outcome {
	case types.TestOutcomePassed:
		fmt.Fprintf(&content, "RESULT SUMMARY:\n")
		fmt.Fprintf(&content, "===============\n\n")
		fmt.Fprintf(&content, "Test passed: %s\n", result.Name)
		fmt.Fprintf(&content, "Duration:    %s\n", formatDuration(result.Duration))
	case types.TestOutcomeTimedOut:
		fmt.Fprintf(&content, "TIMEOUT ERROR SUMMARY:\n")
		fmt.Fprintf(&content, "======================\n\n")
		fmt.Fprintf(&content, "*** TIMEOUT ERROR ***\n")
		fmt.Fprintf(&content, "%s\n", result.Message)
		fmt.Fprintf(&content, "*** END TIMEOUT ERROR ***\n")
	default:
		fmt.Fprintf(&content, "ERROR SUMMARY:\n")
		fmt.Fprintf(&content, "=============\n\n")
		fmt.Fprintf(&content, "Outcome: %s\n", result.Outcome.Label())
		fmt.Fprintf(&content, "Error:   %s\n", result.Message)
	}
	return content.String()
}

// Complete is a no-op for PerTestFileSink
func (s *PerTestFileSink) Complete(runID string) error {
	return nil
}

// JSONTestResult is the results.json encoding of a single test result
type JSONTestResult struct {
	Name       string   `json:"name"`
	Class      string   `json:"class"`
	Method     string   `json:"method"`
	Outcome    string   `json:"outcome"`
	DurationMS int64    `json:"durationMs"`
	Message    string   `json:"message,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Fixtures   []string `json:"fixtures,omitempty"`
}

// JSONRunResults is the document written to results.json
type JSONRunResults struct {
	RunID     string                    `json:"runId"`
	Timestamp time.Time                 `json:"timestamp"`
	Total     int                       `json:"total"`
	Outcomes  map[types.TestOutcome]int `json:"outcomes"`
	Tests     []JSONTestResult          `json:"tests"`
}

// ResultsJSONSink collects results and writes results.json on Complete
type ResultsJSONSink struct {
	logger  *FileLogger
	mu      sync.Mutex
	results map[string][]*types.TestResult
}

// NewResultsJSONSink creates a new results.json sink
func NewResultsJSONSink(logger *FileLogger) *ResultsJSONSink {
	return &ResultsJSONSink{
		logger:  logger,
		results: make(map[string][]*types.TestResult),
	}
}

// Consume collects the result for later encoding
func (s *ResultsJSONSink) Consume(result *types.TestResult, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[runID] = append(s.results[runID], result)
	return nil
}

// Complete writes the collected results of runID as JSON, sorted by test name
func (s *ResultsJSONSink) Complete(runID string) error {
	s.mu.Lock()
	results := slices.Clone(s.results[runID])
	delete(s.results, runID)
	s.mu.Unlock()

	dir, err := s.logger.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	slices.SortFunc(results, func(a, b *types.TestResult) int {
		return strings.Compare(a.Name, b.Name)
	})

	doc := JSONRunResults{
		RunID:     runID,
		Timestamp: time.Now().UTC(),
		Total:     len(results),
		Outcomes:  make(map[types.TestOutcome]int, len(types.AllOutcomes)),
		Tests:     make([]JSONTestResult, 0, len(results)),
	}
	for _, outcome := range types.AllOutcomes {
		doc.Outcomes[outcome] = 0
	}
	for _, r := range results {
		doc.Outcomes[r.Outcome]++
		doc.Tests = append(doc.Tests, JSONTestResult{
			Name:       r.Name,
			Class:      r.Class,
			Method:     r.Method,
			Outcome:    r.Outcome.String(),
			DurationMS: r.Duration.Milliseconds(),
			Message:    r.Message,
			Tags:       r.Tags,
			Fixtures:   r.Fixtures,
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	path := filepath.Join(dir, ResultsJSONFilename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

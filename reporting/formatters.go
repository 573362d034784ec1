package reporting

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/acarl005/stripansi"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

// NoTestsMessage is rendered in place of result rows for an empty run
const NoTestsMessage = "no tests were run"

// StatusDisplay represents display information for a test outcome
type StatusDisplay struct {
	Text   string
	Symbol string
}

// getStatusDisplay returns human-readable status text for an outcome
func getStatusDisplay(outcome types.TestOutcome) StatusDisplay {
	switch outcome {
	case types.TestOutcomePassed:
		return StatusDisplay{Text: "PASS", Symbol: "✓"}
	case types.TestOutcomeFailed:
		return StatusDisplay{Text: "FAIL", Symbol: "✗"}
	case types.TestOutcomeError:
		return StatusDisplay{Text: "ERROR", Symbol: "!"}
	case types.TestOutcomeTimedOut:
		return StatusDisplay{Text: "TIMEOUT", Symbol: "⏰"}
	default:
		return StatusDisplay{Text: "UNKNOWN", Symbol: "?"}
	}
}

// formatDuration formats a duration for display
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}

// ReportFormatter defines the interface for different report output formats
type ReportFormatter interface {
	Format(data *ReportData) (string, error)
}

// ReportWriter defines the interface for writing reports to various destinations
type ReportWriter interface {
	Write(content string) error
}

// FileWriter writes reports to a file
type FileWriter struct {
	path string
}

// NewFileWriter creates a new file writer
func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path}
}

// Write writes the content to the file with ANSI escape sequences removed
func (fw *FileWriter) Write(content string) error {
	return os.WriteFile(fw.path, []byte(stripansi.Strip(content)), 0644)
}

// TableFormatter formats reports as a table with one row per test
type TableFormatter struct {
	title   string
	colored bool
}

// NewTableFormatter creates a new table formatter. Colored tables use ANSI
// styles keyed on the overall result.
func NewTableFormatter(title string, colored bool) *TableFormatter {
	return &TableFormatter{
		title:   title,
		colored: colored,
	}
}

// Format renders the report as a table
func (tf *TableFormatter) Format(data *ReportData) (string, error) {
	t := table.NewWriter()
	t.SetTitle(fmt.Sprintf("%s (%s)", tf.title, data.DurationText))

	t.AppendHeader(table.Row{
		"Test", "Tags", "Duration", "Result", "Message",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Test", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Tags", WidthMax: 30, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Message", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	if len(data.AllTests) == 0 {
		t.AppendRow(table.Row{"-", "", "", "", NoTestsMessage})
	}
	for _, test := range data.AllTests {
		status := getStatusDisplay(test.Outcome)
		t.AppendRow(table.Row{
			test.Name,
			strings.Join(test.Tags, ", "),
			formatDuration(test.Duration),
			fmt.Sprintf("%s %s", status.Symbol, status.Text),
			test.Message,
		})
	}

	if tf.colored {
		switch {
		case data.HasFailures:
			t.SetStyle(table.StyleColoredBlackOnRedWhite)
		case data.Stats.Total == 0:
			t.SetStyle(table.StyleColoredBlackOnYellowWhite)
		default:
			t.SetStyle(table.StyleColoredBlackOnGreenWhite)
		}
	} else {
		t.SetStyle(table.StyleLight)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		fmt.Sprintf("%d tests", data.Stats.Total),
		data.DurationText,
		fmt.Sprintf("%d/%d passed", data.Stats.Passed, data.Stats.Total),
		fmt.Sprintf("%d failed, %d errored, %d timed out", data.Stats.Failed, data.Stats.Errored, data.Stats.Timeouts),
	})

	return t.Render() + "\n", nil
}

// TextSummaryFormatter formats reports as a plain text summary
type TextSummaryFormatter struct {
	includeDetails bool
}

// NewTextSummaryFormatter creates a new text summary formatter
func NewTextSummaryFormatter(includeDetails bool) *TextSummaryFormatter {
	return &TextSummaryFormatter{
		includeDetails: includeDetails,
	}
}

// Format formats the report data as a text summary
func (tsf *TextSummaryFormatter) Format(data *ReportData) (string, error) {
	var summary strings.Builder

	fmt.Fprintf(&summary, "TEST SUMMARY\n")
	fmt.Fprintf(&summary, "============\n")
	fmt.Fprintf(&summary, "Run ID: %s\n", data.RunID)
	fmt.Fprintf(&summary, "Time: %s\n", data.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&summary, "Duration: %s\n\n", data.DurationText)

	if data.Stats.Total == 0 {
		fmt.Fprintf(&summary, "%s\n", NoTestsMessage)
		return summary.String(), nil
	}

	if data.HasTimeouts {
		fmt.Fprintf(&summary, "WARNING: %d TEST(S) TIMED OUT\n\n", data.Stats.Timeouts)
	}

	fmt.Fprintf(&summary, "Results:\n")
	fmt.Fprintf(&summary, "  Total:    %d\n", data.Stats.Total)
	fmt.Fprintf(&summary, "  Passed:   %d\n", data.Stats.Passed)
	fmt.Fprintf(&summary, "  Failed:   %d\n", data.Stats.Failed)
	fmt.Fprintf(&summary, "  Errors:   %d\n", data.Stats.Errored)
	fmt.Fprintf(&summary, "  Timeouts: %d\n", data.Stats.Timeouts)
	fmt.Fprintf(&summary, "  Pass rate: %s\n\n", data.PassRateText)

	if len(data.TimeoutTests) > 0 {
		fmt.Fprintf(&summary, "TIMED OUT TESTS:\n")
		fmt.Fprintf(&summary, "================\n")
		for _, test := range data.TimeoutTests {
			fmt.Fprintf(&summary, "  - %s: %s\n", test.Name, test.Message)
		}
		fmt.Fprintf(&summary, "\n")
	}

	if len(data.FailedTests) > 0 {
		fmt.Fprintf(&summary, "Failed tests:\n")
		for _, test := range data.FailedTests {
			fmt.Fprintf(&summary, "  - %s [%s]: %s\n", test.Name, test.Outcome.Label(), test.Message)
		}
		fmt.Fprintf(&summary, "\n")
	}

	if tsf.includeDetails {
		fmt.Fprintf(&summary, "DETAILED RESULTS:\n")
		fmt.Fprintf(&summary, "=================\n")
		for _, test := range data.AllTests {
			fmt.Fprintf(&summary, "  - %s (%s) [%s]", test.Name, formatDuration(test.Duration), getStatusDisplay(test.Outcome).Text)
			if len(test.Tags) > 0 {
				fmt.Fprintf(&summary, " tags=%s", strings.Join(test.Tags, ","))
			}
			fmt.Fprintf(&summary, "\n")
		}
		fmt.Fprintf(&summary, "\n")
	}

	return summary.String(), nil
}

// ReportGenerator combines builder, formatter, and writer for easy report generation
type ReportGenerator struct {
	builder   *ReportBuilder
	formatter ReportFormatter
	writer    ReportWriter
}

// NewReportGenerator creates a new report generator
func NewReportGenerator(builder *ReportBuilder, formatter ReportFormatter, writer ReportWriter) *ReportGenerator {
	return &ReportGenerator{
		builder:   builder,
		formatter: formatter,
		writer:    writer,
	}
}

// GenerateFromTestResults builds, formats and writes a report
func (rg *ReportGenerator) GenerateFromTestResults(testResults []*types.TestResult, runID string, duration time.Duration) error {
	data := rg.builder.BuildFromTestResults(testResults, runID, duration)
	return rg.GenerateReport(data)
}

// GenerateReport formats and writes already built report data
func (rg *ReportGenerator) GenerateReport(reportData *ReportData) error {
	content, err := rg.formatter.Format(reportData)
	if err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}
	if err := rg.writer.Write(content); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

package harness

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/op-harness/reporting"
	"github.com/ethereum-optimism/infra/op-harness/runner"
	"github.com/ethereum-optimism/infra/op-harness/types"
	"github.com/ethereum-optimism/infra/op-harness/ui"
)

// ResultFormatter is responsible for formatting and displaying test results.
type ResultFormatter interface {
	FormatResults(result *runner.RunnerResult) error
}

// ConsoleResultFormatter implements the ResultFormatter interface.
type ConsoleResultFormatter struct {
	logger  log.Logger
	out     io.Writer
	colored bool
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter writing a
// colored table to stdout.
func NewConsoleResultFormatter(logger log.Logger) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{
		logger:  logger,
		out:     os.Stdout,
		colored: true,
	}
}

// FormatResults formats and displays the test results.
func (f *ConsoleResultFormatter) FormatResults(result *runner.RunnerResult) error {
	f.logger.Info("Printing results...")

	table, err := reporting.NewTableReporter("Test Results", f.colored).
		GenerateTableFromTestResults(result.Results, result.RunID, result.Duration)
	if err != nil {
		return fmt.Errorf("failed to render results table: %w", err)
	}

	if _, err := fmt.Fprint(f.out, table); err != nil {
		return err
	}
	_, err = fmt.Fprintln(f.out, result.String())
	return err
}

// FormatTestList renders the admitted test cases grouped by class in
// declaration order.
func FormatTestList(cases []types.TestCase) string {
	if len(cases) == 0 {
		return reporting.NoTestsMessage + "\n"
	}

	var (
		nodes []ui.TreeNode
		index = make(map[string]int)
	)
	for _, tc := range cases {
		i, ok := index[tc.Class.Name]
		if !ok {
			i = len(nodes)
			index[tc.Class.Name] = i
			nodes = append(nodes, ui.TreeNode{Label: tc.Class.Name})
		}
		nodes[i].Children = append(nodes[i].Children, ui.TreeNode{Label: testListLabel(tc)})
	}

	var b strings.Builder
	b.WriteString(ui.RenderTree(nodes))
	fmt.Fprintf(&b, "%d tests\n", len(cases))
	return b.String()
}

func testListLabel(tc types.TestCase) string {
	label := tc.Method
	if len(tc.Tags) > 0 {
		label += " [" + strings.Join(tc.Tags, ", ") + "]"
	}
	if len(tc.Fixtures) > 0 {
		label += " (fixtures: " + strings.Join(tc.Fixtures, ", ") + ")"
	}
	if tc.Timeout > 0 {
		label += fmt.Sprintf(" timeout=%s", tc.Timeout)
	}
	return label
}

package main_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-harness/exitcodes"
)

// buildArtifacts builds the op-harness binary and the sample test module
// into a temporary directory. Plugins need cgo, so the test is skipped when
// the module cannot be built.
func buildArtifacts(t *testing.T) (binary, module string) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping build of op-harness binary in short mode")
	}

	cwd, err := os.Getwd()
	require.NoError(t, err, "Failed to get current directory")
	projectRoot := filepath.Dir(cwd)

	outDir := t.TempDir()
	binary = filepath.Join(outDir, "op-harness")
	module = filepath.Join(outDir, "sample.so")

	goBuild(t, projectRoot, "-o", binary, "./cmd")
	if out, err := runGo(projectRoot, "build", "-buildmode=plugin", "-o", module, "./sample/plugin"); err != nil {
		t.Skipf("cannot build sample test module as a plugin: %v\n%s", err, out)
	}
	return binary, module
}

func runGo(dir string, args ...string) (string, error) {
	cmd := exec.Command("go", args...)
	cmd.Dir = dir
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.String(), err
}

func goBuild(t *testing.T, dir string, args ...string) {
	t.Helper()
	out, err := runGo(dir, append([]string{"build"}, args...)...)
	if err != nil {
		t.Fatalf("go build %v failed: %v\n%s", args, err, out)
	}
}

// TestExitCodeBehavior verifies that op-harness returns the correct exit codes in run-once mode:
// - Exit code 0 when all admitted tests pass, including when none are admitted
// - Exit code 1 when any test fails, errors or times out
// - Exit code 2 when the run cannot be performed
func TestExitCodeBehavior(t *testing.T) {
	binary, module := buildArtifacts(t)

	testCases := []struct {
		name           string
		args           func(logDir string) []string
		expectedStatus int
	}{
		{
			name: "Passing tests should exit with code 0",
			args: func(logDir string) []string {
				return []string{"--include-tags=Fast", "--logdir=" + logDir, module}
			},
			expectedStatus: exitcodes.Success,
		},
		{
			name: "No admitted tests should exit with code 0",
			args: func(logDir string) []string {
				return []string{"--include-tags=NoSuchTag", "--logdir=" + logDir, module}
			},
			expectedStatus: exitcodes.Success,
		},
		{
			name: "Failing assertion should exit with code 1",
			args: func(logDir string) []string {
				return []string{"--include-tags=Broken", "--logdir=" + logDir, module}
			},
			expectedStatus: exitcodes.TestFailure,
		},
		{
			name: "Timed out test should exit with code 1",
			args: func(logDir string) []string {
				return []string{"--exclude-tags=Broken,Slow", "--timeout=1", "--parallel=4", "--logdir=" + logDir, module}
			},
			expectedStatus: exitcodes.TestFailure,
		},
		{
			name: "Missing test module should exit with code 2",
			args: func(logDir string) []string {
				return []string{"--logdir=" + logDir, filepath.Join(logDir, "missing.so")}
			},
			expectedStatus: exitcodes.RuntimeErr,
		},
		{
			name: "Invalid timeout should exit with code 2",
			args: func(logDir string) []string {
				return []string{"--timeout=soon", "--logdir=" + logDir, module}
			},
			expectedStatus: exitcodes.RuntimeErr,
		},
		{
			name: "Missing module argument should exit with code 2",
			args: func(logDir string) []string {
				return []string{"--logdir=" + logDir}
			},
			expectedStatus: exitcodes.RuntimeErr,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			exitCode := runHarness(t, binary, tc.args(t.TempDir())...)
			require.Equal(t, tc.expectedStatus, exitCode, "Unexpected exit code")
		})
	}
}

func TestListDoesNotRunTests(t *testing.T) {
	binary, module := buildArtifacts(t)
	logDir := t.TempDir()

	exitCode := runHarness(t, binary, "--list", "--logdir="+logDir, module)
	require.Equal(t, exitcodes.Success, exitCode)

	entries, err := os.ReadDir(logDir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

// runHarness runs op-harness with the given arguments and returns the exit code
func runHarness(t *testing.T, binary string, args ...string) int {
	t.Logf("Running op-harness %v", args)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Ports are disabled so parallel test binaries do not collide
	execCmd := exec.CommandContext(ctx, binary, append([]string{"--run-interval=0", "--rpc.port=0"}, args...)...)

	var stdout, stderr bytes.Buffer
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()

	if stdout.Len() > 0 {
		t.Logf("stdout:\n%s", stdout.String())
	}
	if stderr.Len() > 0 {
		t.Logf("stderr:\n%s", stderr.String())
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		t.Logf("Command timed out")
		return exitcodes.RuntimeErr
	}
	if err == nil {
		return exitcodes.Success
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return exitcodes.RuntimeErr
}

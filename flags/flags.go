package flags

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
	oprpc "github.com/ethereum-optimism/optimism/op-service/rpc"
)

const EnvVarPrefix = "OP_HARNESS"

// DefaultTimeout is the per-test deadline used when --timeout is not given
const DefaultTimeout = 60 * time.Second

var (
	IncludeTags = &cli.StringFlag{
		Name:    "include-tags",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "INCLUDE_TAGS"),
		Usage:   "Comma separated tags; only tests carrying at least one of them run",
	}
	ExcludeTags = &cli.StringFlag{
		Name:    "exclude-tags",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "EXCLUDE_TAGS"),
		Usage:   "Comma separated tags; tests carrying any of them never run",
	}
	Parallel = &cli.IntFlag{
		Name:    "parallel",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PARALLEL"),
		Usage:   "Maximum number of tests running at once (0 = number of CPUs)",
	}
	Serial = &cli.BoolFlag{
		Name:    "serial",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SERIAL"),
		Usage:   "Run one test at a time. Overrides --parallel",
	}
	Timeout = &cli.StringFlag{
		Name:    "timeout",
		Value:   "60",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TIMEOUT"),
		Usage: "Per-test deadline. Plain integers are seconds ('30'); Go durations ('90s', '2m') are also accepted. " +
			"Timed out test bodies are not stopped and keep running in the background",
	}
	Plan = &cli.StringFlag{
		Name:    "plan",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PLAN"),
		Usage:   "Path to a YAML or TOML run plan with tag filters, parallelism and per-test overrides",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOGDIR"),
		Usage:   "Directory to store per-run result logs",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	ShowProgress = &cli.BoolFlag{
		Name:    "show-progress",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHOW_PROGRESS"),
		Usage:   "Log periodic progress updates while tests run",
	}
	ProgressInterval = &cli.DurationFlag{
		Name:    "progress-interval",
		Value:   30 * time.Second,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROGRESS_INTERVAL"),
		Usage:   "Interval between progress updates when --show-progress is set",
	}
	ListTests = &cli.BoolFlag{
		Name:    "list",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LIST"),
		Usage:   "Print the tests admitted by the tag filters, grouped by class, and exit without running them",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	IncludeTags,
	ExcludeTags,
	Parallel,
	Serial,
	Timeout,
	Plan,
	LogDir,
	RunInterval,
	ShowProgress,
	ProgressInterval,
	ListTests,
}

var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oprpc.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}

// maxTimeoutSeconds is the largest whole-second timeout a time.Duration holds
const maxTimeoutSeconds = math.MaxInt64 / int64(time.Second)

// ParseTimeout parses a --timeout value. A plain integer is a number of
// seconds; anything else must be a Go duration string. The result must be
// positive.
func ParseTimeout(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultTimeout, nil
	}

	var timeout time.Duration
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		if secs > maxTimeoutSeconds {
			return 0, fmt.Errorf("invalid timeout %q: at most %d seconds", value, maxTimeoutSeconds)
		}
		timeout = time.Duration(secs) * time.Second
	} else {
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid timeout %q: expected seconds or a duration like '90s'", value)
		}
		timeout = d
	}

	if timeout <= 0 {
		return 0, fmt.Errorf("invalid timeout %q: must be positive", value)
	}
	return timeout, nil
}

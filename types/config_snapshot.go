package types

import "time"

// EffectiveConfigSnapshot represents the effective runtime configuration grouped by domain.
// It is written next to the results of every run.
type EffectiveConfigSnapshot struct {
	Runner    RunnerConfigSnapshot    `json:"runner"`
	Filter    FilterConfigSnapshot    `json:"filter"`
	Execution ExecutionConfigSnapshot `json:"execution"`
	Paths     PathsConfigSnapshot     `json:"paths"`

	// Metadata
	Version string `json:"version,omitempty"`
	RunID   string `json:"runId,omitempty"`
}

type RunnerConfigSnapshot struct {
	Timeout          time.Duration `json:"timeout"`
	Serial           bool          `json:"serial"`
	Concurrency      int           `json:"concurrency"`
	ShowProgress     bool          `json:"showProgress"`
	ProgressInterval time.Duration `json:"progressInterval"`
}

type FilterConfigSnapshot struct {
	IncludeTags []string `json:"includeTags"`
	ExcludeTags []string `json:"excludeTags"`
	Overrides   int      `json:"overrides"` // per-test plan overrides
}

type ExecutionConfigSnapshot struct {
	RunInterval time.Duration `json:"runInterval"`
	RunOnce     bool          `json:"runOnce"`
}

type PathsConfigSnapshot struct {
	ModulePath string `json:"modulePath"`
	PlanFile   string `json:"planFile,omitempty"`
	LogDir     string `json:"logDir"`
}

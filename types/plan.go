package types

import "time"

// RunPlan represents an optional run configuration file. Values set on the
// command line take precedence over the plan.
type RunPlan struct {
	IncludeTags []string       `yaml:"include_tags,omitempty" toml:"include_tags"`
	ExcludeTags []string       `yaml:"exclude_tags,omitempty" toml:"exclude_tags"`
	Parallel    int            `yaml:"parallel,omitempty" toml:"parallel"`
	Timeout     time.Duration  `yaml:"timeout,omitempty" toml:"timeout"`
	Tests       []TestOverride `yaml:"tests,omitempty" toml:"tests"`
}

// TestOverride adjusts a single discovered test case by display name
type TestOverride struct {
	Name    string         `yaml:"name" toml:"name"`
	Timeout *time.Duration `yaml:"timeout,omitempty" toml:"timeout"`
	Tags    []string       `yaml:"tags,omitempty" toml:"tags"`
}

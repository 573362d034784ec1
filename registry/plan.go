package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

// LoadPlan reads a run plan from a YAML or TOML file
func LoadPlan(path string) (*types.RunPlan, error) {
	log.Debug("Reading run plan file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan file: %w", err)
	}

	var plan types.RunPlan
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &plan); err != nil {
			return nil, fmt.Errorf("parsing plan file: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &plan); err != nil {
			return nil, fmt.Errorf("parsing plan file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported plan file extension %q", ext)
	}

	if err := validatePlan(&plan); err != nil {
		return nil, fmt.Errorf("invalid plan file: %w", err)
	}
	return &plan, nil
}

func validatePlan(plan *types.RunPlan) error {
	if plan.Parallel < 0 {
		return fmt.Errorf("parallel cannot be negative")
	}
	if plan.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}
	seen := make(map[string]bool)
	for i, o := range plan.Tests {
		if strings.TrimSpace(o.Name) == "" {
			return fmt.Errorf("test override %d has no name", i)
		}
		if seen[o.Name] {
			return fmt.Errorf("test %q overridden more than once", o.Name)
		}
		seen[o.Name] = true
		if o.Timeout != nil && *o.Timeout <= 0 {
			return fmt.Errorf("test %q has a non-positive timeout", o.Name)
		}
		for _, tag := range o.Tags {
			if strings.TrimSpace(tag) == "" {
				return fmt.Errorf("test %q declares a blank tag", o.Name)
			}
		}
	}
	return nil
}

// ApplyPlan returns copies of cases with the plan's per-test overrides
// applied. Overridden tags are appended after the declared ones. Overrides
// naming unknown tests are an error.
func ApplyPlan(cases []types.TestCase, plan *types.RunPlan) ([]types.TestCase, error) {
	if plan == nil || len(plan.Tests) == 0 {
		return cases, nil
	}

	overrides := make(map[string]types.TestOverride, len(plan.Tests))
	for _, o := range plan.Tests {
		overrides[o.Name] = o
	}

	out := make([]types.TestCase, len(cases))
	for i, tc := range cases {
		o, ok := overrides[tc.Name()]
		if ok {
			delete(overrides, tc.Name())
			if o.Timeout != nil {
				tc.Timeout = *o.Timeout
			}
			if len(o.Tags) > 0 {
				tc.Tags = append(slices.Clone(tc.Tags), o.Tags...)
			}
		}
		out[i] = tc
	}

	if len(overrides) > 0 {
		unknown := make([]string, 0, len(overrides))
		for name := range overrides {
			unknown = append(unknown, name)
		}
		slices.Sort(unknown)
		return nil, fmt.Errorf("plan overrides unknown tests: %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

// WithPlan wraps a provider so that its test cases carry the plan's overrides
func WithPlan(p Provider, plan *types.RunPlan) Provider {
	if plan == nil {
		return p
	}
	return &planProvider{Provider: p, plan: plan}
}

type planProvider struct {
	Provider
	plan *types.RunPlan
}

func (p *planProvider) TestCases() ([]types.TestCase, error) {
	cases, err := p.Provider.TestCases()
	if err != nil {
		return nil, err
	}
	return ApplyPlan(cases, p.plan)
}

// Package tags decides which discovered test cases are admitted to a run.
package tags

import (
	"maps"
	"slices"
	"strings"

	"github.com/ethereum-optimism/infra/op-harness/types"
)

// Set is an unordered collection of tag names
type Set map[string]struct{}

// NewSet builds a Set from a list of tags, ignoring blank entries
func NewSet(tags ...string) Set {
	s := make(Set, len(tags))
	for _, tag := range tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			s[tag] = struct{}{}
		}
	}
	return s
}

// Contains reports whether tag is in the set
func (s Set) Contains(tag string) bool {
	_, ok := s[tag]
	return ok
}

// Intersects reports whether any of tags is in the set
func (s Set) Intersects(tags []string) bool {
	for _, tag := range tags {
		if s.Contains(tag) {
			return true
		}
	}
	return false
}

// Sorted returns the tags in the set in lexical order
func (s Set) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// Filter admits or rejects test cases by their declared tags.
// An empty Include admits everything; Exclude always wins.
type Filter struct {
	Include Set
	Exclude Set
}

// New creates a Filter from include and exclude tag lists
func New(include, exclude []string) Filter {
	return Filter{
		Include: NewSet(include...),
		Exclude: NewSet(exclude...),
	}
}

// Admit reports whether a test case carrying tags should run
func (f Filter) Admit(tags []string) bool {
	if len(f.Include) > 0 && !f.Include.Intersects(tags) {
		return false
	}
	return !f.Exclude.Intersects(tags)
}

// Partition splits test cases into admitted and rejected, preserving order
func (f Filter) Partition(cases []types.TestCase) (admitted, rejected []types.TestCase) {
	for _, tc := range cases {
		if f.Admit(tc.Tags) {
			admitted = append(admitted, tc)
		} else {
			rejected = append(rejected, tc)
		}
	}
	return admitted, rejected
}

// ParseCSV splits a comma separated tag list, dropping empty entries
func ParseCSV(s string) []string {
	var tags []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			tags = append(tags, part)
		}
	}
	return tags
}

package vdv

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DegeneratePatterns lists place-number sequences of line variants known to
// describe routes that no vehicle ever drives (artifacts of the planning
// system). A variant matching one of these is skipped with a reason instead
// of failing route assembly.
type DegeneratePatterns struct {
	Patterns []DegeneratePattern `yaml:"patterns"`
}

type DegeneratePattern struct {
	Places []int64 `yaml:"places"`
	Reason string  `yaml:"reason"`
}

// DefaultDegeneratePatterns returns the sequences observed in real exports
// so far. They are dataset-specific, which is why a deployment can replace
// them from a file instead of editing code.
func DefaultDegeneratePatterns() *DegeneratePatterns {
	return &DegeneratePatterns{
		Patterns: []DegeneratePattern{
			{
				Places: []int64{102001974, 101001974, 101029999, 101001974, 102001974},
				Reason: "depot loop via a virtual waypoint, never driven",
			},
			{
				Places: []int64{102021010, 101021010, 101002083, 102002083},
				Reason: "planning artifact between two depot entries",
			},
			{
				Places: []int64{102004107, 101004107, 101004108, 102004108},
				Reason: "planning artifact between two depot entries",
			},
		},
	}
}

// LoadDegeneratePatterns reads a pattern list from a YAML file.
func LoadDegeneratePatterns(path string) (*DegeneratePatterns, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read degenerate patterns: %w", err)
	}

	patterns := &DegeneratePatterns{}
	if err := yaml.Unmarshal(contents, patterns); err != nil {
		return nil, fmt.Errorf("parse degenerate patterns: %w", err)
	}
	return patterns, nil
}

// Match reports whether the place-number sequence of a variant equals one of
// the known degenerate patterns, and if so why it is skipped.
func (p *DegeneratePatterns) Match(placeNumbers []int64) (string, bool) {
	for _, pattern := range p.Patterns {
		if equalInt64s(pattern.Places, placeNumbers) {
			return pattern.Reason, true
		}
	}
	return "", false
}

func equalInt64s(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

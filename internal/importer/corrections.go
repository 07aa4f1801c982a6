package importer

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Op is what a correction rule does to a payer's name fragments.
type Op string

const (
	// OpDrop removes the fragment at Target (default: At).
	OpDrop Op = "drop"
	// OpReplace overwrites the fragment at At with With.
	OpReplace Op = "replace"
	// OpSwap exchanges the first two fragments.
	OpSwap Op = "swap"
)

// Rule is one name correction. It fires when the fragment at At equals one
// of Equals, or contains Contains. A rule whose position does not exist in
// the name is skipped.
type Rule struct {
	Op       Op       `yaml:"op"`
	At       int      `yaml:"at"`
	Equals   []string `yaml:"equals,omitempty"`
	Contains string   `yaml:"contains,omitempty"`
	With     string   `yaml:"with,omitempty"`
	Target   *int     `yaml:"target,omitempty"`
	Note     string   `yaml:"note,omitempty"`
}

func (r Rule) matches(fragments []string) bool {
	if r.At < 0 || r.At >= len(fragments) {
		return false
	}
	f := fragments[r.At]
	if r.Contains != "" {
		return strings.Contains(f, r.Contains)
	}
	return slices.Contains(r.Equals, f)
}

func (r Rule) target() int {
	if r.Target != nil {
		return *r.Target
	}
	return r.At
}

func (r Rule) apply(fragments []string) []string {
	if !r.matches(fragments) {
		return fragments
	}
	switch r.Op {
	case OpDrop:
		t := r.target()
		if t >= len(fragments) {
			return fragments
		}
		return slices.Delete(fragments, t, t+1)
	case OpReplace:
		fragments[r.At] = r.With
	case OpSwap:
		if len(fragments) >= 2 {
			fragments[0], fragments[1] = fragments[1], fragments[0]
		}
	}
	return fragments
}

func (r Rule) validate() error {
	switch r.Op {
	case OpDrop, OpSwap:
	case OpReplace:
		if r.With == "" {
			return fmt.Errorf("replace rule at %d has no replacement", r.At)
		}
	default:
		return fmt.Errorf("unknown op %q", r.Op)
	}
	if r.At < 0 {
		return fmt.Errorf("negative position %d", r.At)
	}
	if r.Target != nil && *r.Target < 0 {
		return fmt.Errorf("negative target %d", *r.Target)
	}
	if r.Contains == "" && r.Equals == nil {
		return fmt.Errorf("%s rule at %d matches nothing", r.Op, r.At)
	}
	return nil
}

// CorrectionTable is an ordered list of rules applied to every payer name
// of the bulk import. Rules run in order and each sees the result of the
// ones before it.
type CorrectionTable struct {
	Version int    `yaml:"version"`
	Rules   []Rule `yaml:"rules"`
}

// Apply runs every rule over a copy of fragments.
func (t *CorrectionTable) Apply(fragments []string) []string {
	out := slices.Clone(fragments)
	if t == nil {
		return out
	}
	for _, r := range t.Rules {
		out = r.apply(out)
	}
	return out
}

// Validate checks every rule.
func (t *CorrectionTable) Validate() error {
	if t.Version < 1 {
		return fmt.Errorf("correction table version must be >= 1, got %d", t.Version)
	}
	for i, r := range t.Rules {
		if err := r.validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i+1, err)
		}
	}
	return nil
}

func at(i int) *int { return &i }

// DefaultCorrections returns the corrections for the association's legacy
// accounting export.
func DefaultCorrections() *CorrectionTable {
	return &CorrectionTable{
		Version: 1,
		Rules: []Rule{
			{Op: OpDrop, At: 0, Equals: []string{""}, Note: "leading blank, e.g. after a comma"},
			{Op: OpDrop, At: 0, Equals: []string{"fehlgeschlagen"}, Note: "failed collection marker"},
			{Op: OpDrop, At: 0, Contains: "ckzahlung", Note: "Rückzahlung/Ruckzahlung prefix"},
			{Op: OpReplace, At: 0, Equals: []string{"Ewald-Oliver"}, With: "Oliver"},
			{Op: OpReplace, At: 1, Equals: []string{"Sirek", "Siereck"}, With: "Sierek"},
			{Op: OpReplace, At: 1, Equals: []string{"Eckhardt"}, With: "Eckardt"},
			{Op: OpReplace, At: 1, Equals: []string{"Grenzfurtner"}, With: "Grenzfurthner"},
			{Op: OpDrop, At: 1, Equals: []string{"Berg"}, Target: at(0), Note: "building qualifier before the name"},
			{Op: OpDrop, At: 1, Equals: []string{"Leo"}, Note: "middle name"},
			{Op: OpSwap, At: 0, Equals: []string{"Schreiner"}, Note: "surname first in export"},
			{Op: OpReplace, At: 1, Equals: []string{"Manztos"}, With: "Mantzos"},
			{Op: OpDrop, At: 2, Equals: []string{"Laub"}, Target: at(0), Note: "location qualifier before the name"},
		},
	}
}

// LoadCorrections reads a correction table from a YAML file.
func LoadCorrections(path string) (*CorrectionTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading corrections: %w", err)
	}
	var t CorrectionTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parsing corrections: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid corrections %s: %w", path, err)
	}
	return &t, nil
}

// SaveCorrections writes a correction table as YAML.
func SaveCorrections(path string, t *CorrectionTable) error {
	data, err := yaml.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshaling corrections: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing corrections: %w", err)
	}
	return nil
}

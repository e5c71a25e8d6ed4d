// Package rul holds rule metadata: whether a rule is enabled, how severe its
// warnings are and which summary groups it feeds.
package rul

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Rule priorities, the values of the Priority setting.
const (
	Blocker  = "Blocker"
	Critical = "Critical"
	Major    = "Major"
	Minor    = "Minor"
	Info     = "Info"
)

// Priorities lists every priority, most severe first.
var Priorities = []string{Blocker, Critical, Major, Minor, Info}

// GroupSummarized marks a rule that stands for a group of member rules.
// Its metric counts the warnings of all members.
const GroupSummarized = "summarized"

// Rule describes one rule id.
type Rule struct {
	ID            string            `yaml:"id" validate:"required"`
	Name          string            `yaml:"name"`
	Enabled       bool              `yaml:"-"`
	GroupType     string            `yaml:"group_type" validate:"omitempty,oneof=summarized none"`
	Groups        []string          `yaml:"groups"`
	CalculatedFor []string          `yaml:"calculated_for"`
	Settings      map[string]string `yaml:"settings"`
}

// IsDefined reports whether r came from a rule set rather than a failed
// lookup.
func (r Rule) IsDefined() bool { return r.ID != "" }

// SettingValue returns the named setting, "" if absent.
func (r Rule) SettingValue(name string) string { return r.Settings[name] }

// Priority returns the Priority setting, Minor when unset or unknown.
func (r Rule) Priority() string {
	p := r.SettingValue("Priority")
	if slices.Contains(Priorities, p) {
		return p
	}
	return Minor
}

// InGroup reports whether r is a member of group id.
func (r Rule) InGroup(id string) bool { return slices.Contains(r.Groups, id) }

// CalculatedForType reports whether metrics of r apply to nodes of
// nodeType. An empty list applies everywhere.
func (r Rule) CalculatedForType(nodeType string) bool {
	return len(r.CalculatedFor) == 0 || slices.Contains(r.CalculatedFor, nodeType)
}

// RuleSet is the lookup side of rule metadata. A miss is a normal outcome.
type RuleSet interface {
	Lookup(id string) (Rule, bool)
	// Rules returns every rule sorted by id.
	Rules() []Rule
}

// Store is an in-memory RuleSet.
type Store struct {
	byID map[string]Rule
}

// NewStore builds a store from rules. Later duplicates replace earlier ones.
func NewStore(rules ...Rule) *Store {
	s := &Store{byID: make(map[string]Rule, len(rules))}
	for _, r := range rules {
		s.byID[r.ID] = r
	}
	return s
}

func (s *Store) Lookup(id string) (Rule, bool) {
	r, ok := s.byID[id]
	return r, ok
}

func (s *Store) Rules() []Rule {
	out := make([]Rule, 0, len(s.byID))
	for _, r := range s.byID {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Rule) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Add inserts or replaces r.
func (s *Store) Add(r Rule) { s.byID[r.ID] = r }

func (s *Store) Len() int { return len(s.byID) }

type ruleFile struct {
	Rules []ruleEntry `yaml:"rules"`
}

// ruleEntry defaults Enabled to true when the key is absent.
type ruleEntry struct {
	Rule    `yaml:",inline"`
	Enabled *bool `yaml:"enabled"`
}

var validate = validator.New()

// Load reads a YAML document of the form
//
//	rules:
//	  - id: GC_ESCAPE
//	    settings: {Priority: Minor}
func Load(r io.Reader) (*Store, error) {
	var f ruleFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	s := NewStore()
	for i, e := range f.Rules {
		rule := e.Rule
		rule.Enabled = e.Enabled == nil || *e.Enabled
		if err := validate.Struct(rule); err != nil {
			return nil, fmt.Errorf("rule %d (%q): %w", i, rule.ID, err)
		}
		if p := rule.SettingValue("Priority"); p != "" && !slices.Contains(Priorities, p) {
			return nil, fmt.Errorf("rule %q: unknown priority %q", rule.ID, p)
		}
		if _, dup := s.byID[rule.ID]; dup {
			return nil, fmt.Errorf("rule %q defined twice", rule.ID)
		}
		s.Add(rule)
	}
	return s, nil
}

// LoadFile reads a rule file written for Load.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules: %w", err)
	}
	defer f.Close()
	s, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
)

// DefaultFile is the task file looked up when none is given
const DefaultFile = "configdist.yml"

// DefaultIndent is used when rewriting own config files
const DefaultIndent = "  "

// Target is one dist/own pair to reconcile
type Target struct {
	Name string
	Dist string
	Own  string
}

// Config holds the application configuration
type Config struct {
	Indent  string
	Targets []Target
}

// Overrides are command line values that take precedence over the file
type Overrides struct {
	Dist   string
	Own    string
	Indent *string
}

// Apply merges the overrides into the configuration. A dist/own pair given
// on the command line replaces the targets from the file.
func (c *Config) Apply(o Overrides) error {
	if o.Indent != nil {
		c.Indent = *o.Indent
	}

	if o.Dist == "" && o.Own == "" {
		return nil
	}
	if o.Dist == "" || o.Own == "" {
		return errors.New("--dist and --own must be given together")
	}
	c.Targets = []Target{{Name: "default", Dist: o.Dist, Own: o.Own}}
	return nil
}

// Validate checks that every target can be reconciled
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return errors.New("no targets configured")
	}

	seen := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		if seen[t.Name] {
			return fmt.Errorf("target %q: defined twice", t.Name)
		}
		seen[t.Name] = true

		if t.Dist == "" {
			return fmt.Errorf("target %q: dist path is required", t.Name)
		}
		if t.Own == "" {
			return fmt.Errorf("target %q: own path is required", t.Name)
		}
		if filepath.Clean(t.Dist) == filepath.Clean(t.Own) {
			return fmt.Errorf("target %q: dist and own must be different files", t.Name)
		}
	}
	return nil
}

// Select returns the named targets in the given order, or every target
// when no name is given.
func (c *Config) Select(names ...string) ([]Target, error) {
	if len(names) == 0 {
		return c.Targets, nil
	}

	byName := make(map[string]Target, len(c.Targets))
	for _, t := range c.Targets {
		byName[t.Name] = t
	}

	selected := make([]Target, 0, len(names))
	for _, name := range names {
		t, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown target %q", name)
		}
		selected = append(selected, t)
	}
	return selected, nil
}

func sortTargets(targets []Target) {
	sort.Slice(targets, func(i, j int) bool {
		return targets[i].Name < targets[j].Name
	})
}

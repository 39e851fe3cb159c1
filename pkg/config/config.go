// Package config loads stage graph declarations from YAML files.
//
// A declaration names the entry stage, the terminal stages and the
// transition rules; guards are referenced by name and resolved against a
// guard resolver at load time, so config files stay pure data.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/serviceops/conveyor/pkg/domain"
	"github.com/serviceops/conveyor/pkg/graph"
)

// GraphConfig mirrors the YAML shape of a graph declaration.
type GraphConfig struct {
	Entry     string       `mapstructure:"entry"`
	Terminals []string     `mapstructure:"terminals"`
	Rules     []RuleConfig `mapstructure:"rules"`
}

// RuleConfig declares one transition rule.
type RuleConfig struct {
	From   string `mapstructure:"from"`
	Action string `mapstructure:"action"`
	To     string `mapstructure:"to"`
	Role   string `mapstructure:"role"`
	Guard  string `mapstructure:"guard,omitempty"`
}

// GuardResolver turns a guard name from the config into a predicate.
type GuardResolver func(name string) (graph.Guard, error)

// DefaultGuardResolver understands the two built-in guard families:
//
//	has:<key>   the payload contains <key>
//	true:<key>  the payload holds boolean true under <key>
func DefaultGuardResolver(name string) (graph.Guard, error) {
	switch {
	case strings.HasPrefix(name, "has:"):
		return graph.PayloadHas(strings.TrimPrefix(name, "has:")), nil
	case strings.HasPrefix(name, "true:"):
		return graph.PayloadTrue(strings.TrimPrefix(name, "true:")), nil
	default:
		return graph.Guard{}, fmt.Errorf("unknown guard %q", name)
	}
}

// WithGuards extends a resolver with named custom guards, falling back to
// the wrapped resolver for everything else.
func WithGuards(base GuardResolver, custom map[string]graph.Guard) GuardResolver {
	return func(name string) (graph.Guard, error) {
		if g, ok := custom[name]; ok {
			return g, nil
		}
		return base(name)
	}
}

// LoadGraph reads a YAML declaration from disk and builds the graph.
func LoadGraph(path string, resolve GuardResolver) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read graph config: %w", err)
	}
	return ParseGraph(data, resolve)
}

// ParseGraph decodes a YAML declaration and builds the graph. Construction
// errors (duplicate rules, dead-end stages) surface here, at startup.
func ParseGraph(data []byte, resolve GuardResolver) (*graph.Graph, error) {
	if resolve == nil {
		resolve = DefaultGuardResolver
	}

	// YAML first into a generic map, then mapstructure into the typed
	// config, so unknown keys fail loudly instead of being dropped.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid graph config: %w", err)
	}

	var cfg GraphConfig
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &cfg,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("invalid graph config: %w", err)
	}

	if cfg.Entry == "" {
		return nil, fmt.Errorf("graph config: entry is required")
	}

	b := graph.NewBuilder(domain.Stage(cfg.Entry))
	for _, t := range cfg.Terminals {
		b.Terminal(domain.Stage(t))
	}
	for _, rc := range cfg.Rules {
		if rc.Guard == "" {
			b.Rule(domain.Stage(rc.From), domain.Action(rc.Action), domain.Stage(rc.To), domain.Role(rc.Role))
			continue
		}
		g, err := resolve(rc.Guard)
		if err != nil {
			return nil, fmt.Errorf("rule (%s, %s): %w", rc.From, rc.Action, err)
		}
		b.GuardedRule(domain.Stage(rc.From), domain.Action(rc.Action), domain.Stage(rc.To), domain.Role(rc.Role), g)
	}
	return b.Build()
}

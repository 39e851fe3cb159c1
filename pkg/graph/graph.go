package graph

import (
	"fmt"
	"sort"

	"github.com/serviceops/conveyor/pkg/domain"
)

// GuardFunc is a pure predicate over the accumulated payload. It must not
// mutate its argument.
type GuardFunc func(payload map[string]any) bool

// Guard pairs a predicate with a name for audit messages, YAML configs and
// graph rendering. The zero value means "no guard".
type Guard struct {
	Name  string
	Check GuardFunc
}

// Rule declares one legal transition: (From, Action) -> To, triggerable only
// by Role, optionally gated by Guard.
type Rule struct {
	From   domain.Stage
	Action domain.Action
	To     domain.Stage
	Role   domain.Role
	Guard  Guard
}

type ruleKey struct {
	from   domain.Stage
	action domain.Action
}

// Graph is the immutable, declarative source of truth for legal transitions.
// Build it once at startup via a Builder; lookups are pure and safe for
// concurrent use.
type Graph struct {
	entry     domain.Stage
	terminals map[domain.Stage]bool
	stages    map[domain.Stage]bool
	rules     map[ruleKey]Rule
}

// Entry returns the declared entry stage.
func (g *Graph) Entry() domain.Stage { return g.entry }

// IsTerminal reports whether the stage is declared terminal.
func (g *Graph) IsTerminal(s domain.Stage) bool { return g.terminals[s] }

// HasStage reports whether the stage is declared in the graph.
func (g *Graph) HasStage(s domain.Stage) bool { return g.stages[s] }

// Rule returns the unique rule for (from, action), if any.
func (g *Graph) Rule(from domain.Stage, action domain.Action) (Rule, bool) {
	r, ok := g.rules[ruleKey{from, action}]
	return r, ok
}

// RequiredRole returns the role a rule demands. The second return is false
// when no rule exists for the pair.
func (g *Graph) RequiredRole(from domain.Stage, action domain.Action) (domain.Role, bool) {
	r, ok := g.rules[ruleKey{from, action}]
	return r.Role, ok
}

// Stages returns all declared stages in lexical order.
func (g *Graph) Stages() []domain.Stage {
	out := make([]domain.Stage, 0, len(g.stages))
	for s := range g.stages {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RulesFrom returns the outgoing rules of a stage, ordered by action name.
func (g *Graph) RulesFrom(from domain.Stage) []Rule {
	var out []Rule
	for k, r := range g.rules {
		if k.from == from {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out
}

// Rules returns every rule, ordered by (from, action).
func (g *Graph) Rules() []Rule {
	out := make([]Rule, 0, len(g.rules))
	for _, r := range g.rules {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].Action < out[j].Action
	})
	return out
}

// Builder accumulates a graph declaration and validates it on Build.
type Builder struct {
	entry     domain.Stage
	terminals []domain.Stage
	rules     []Rule
	err       error
}

// NewBuilder starts a graph declaration rooted at the given entry stage.
func NewBuilder(entry domain.Stage) *Builder {
	return &Builder{entry: entry}
}

// Terminal declares one or more terminal stages. Terminal instances remain
// readable but accept no further transitions.
func (b *Builder) Terminal(stages ...domain.Stage) *Builder {
	b.terminals = append(b.terminals, stages...)
	return b
}

// Rule declares a transition without a guard.
func (b *Builder) Rule(from domain.Stage, action domain.Action, to domain.Stage, role domain.Role) *Builder {
	return b.GuardedRule(from, action, to, role, Guard{})
}

// GuardedRule declares a transition gated by a guard predicate.
func (b *Builder) GuardedRule(from domain.Stage, action domain.Action, to domain.Stage, role domain.Role, guard Guard) *Builder {
	b.rules = append(b.rules, Rule{From: from, Action: action, To: to, Role: role, Guard: guard})
	return b
}

// Build validates the declaration and returns the immutable graph.
// Validation failures are startup-time configuration errors: the process
// must not serve traffic on a graph that fails here.
func (b *Builder) Build() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.entry == "" {
		return nil, fmt.Errorf("graph: entry stage is required")
	}

	g := &Graph{
		entry:     b.entry,
		terminals: make(map[domain.Stage]bool, len(b.terminals)),
		stages:    make(map[domain.Stage]bool),
		rules:     make(map[ruleKey]Rule, len(b.rules)),
	}

	g.stages[b.entry] = true
	for _, t := range b.terminals {
		g.terminals[t] = true
		g.stages[t] = true
	}

	for _, r := range b.rules {
		if r.From == "" || r.Action == "" || r.To == "" {
			return nil, fmt.Errorf("graph: incomplete rule %+v", r)
		}
		if r.Role == "" {
			return nil, fmt.Errorf("graph: rule (%s, %s) has no required role", r.From, r.Action)
		}
		key := ruleKey{r.From, r.Action}
		if _, dup := g.rules[key]; dup {
			// Determinism invariant: at most one rule per (from, action).
			return nil, fmt.Errorf("graph: duplicate rule for (%s, %s)", r.From, r.Action)
		}
		if g.terminals[r.From] {
			return nil, fmt.Errorf("graph: terminal stage %s cannot have outgoing rule %s", r.From, r.Action)
		}
		g.rules[key] = r
		g.stages[r.From] = true
		g.stages[r.To] = true
	}

	if err := g.validateReachability(); err != nil {
		return nil, err
	}
	return g, nil
}

// validateReachability walks the graph from the entry stage and checks that
// every reachable stage either has an outgoing rule or is declared terminal.
func (g *Graph) validateReachability() error {
	visited := map[domain.Stage]bool{g.entry: true}
	queue := []domain.Stage{g.entry}

	for len(queue) > 0 {
		stage := queue[0]
		queue = queue[1:]

		outgoing := g.RulesFrom(stage)
		if len(outgoing) == 0 && !g.terminals[stage] {
			return fmt.Errorf("graph: stage %s is a dead end (no outgoing rules and not terminal)", stage)
		}
		for _, r := range outgoing {
			if !visited[r.To] {
				visited[r.To] = true
				queue = append(queue, r.To)
			}
		}
	}
	return nil
}

package chaos

import (
	"context"
	"sync"
)

// Predicate decides whether a scenario should fire for the given operation
// context. A registered predicate fully owns the decision; the engine adds no
// further randomization on top of it.
type Predicate func(chaosCtx map[string]interface{}) bool

// Action performs the injected fault. Actions should honor ctx so an injected
// delay never outlives the caller's deadline.
type Action func(ctx context.Context) error

// Scenario pairs a trigger predicate with the fault it injects. The pair is
// stored and replaced as a unit, so concurrent lookups never observe a
// predicate from one registration and an action from another.
type Scenario struct {
	Name      string
	Predicate Predicate
	Action    Action
}

// Registry holds all registered scenarios, built-in and custom, keyed by
// name. Safe for unbounded concurrent Register/Lookup.
type Registry struct {
	scenarios sync.Map // name -> *Scenario
}

// NewRegistry returns an empty registry. Built-in seeding happens in
// NewEngine, which owns the random source the built-in predicates draw from.
func NewRegistry() *Registry { return &Registry{} }

// Register installs or replaces the scenario under name. The last
// registration for a name wins, silently; callers must not assume append
// semantics.
func (r *Registry) Register(name string, predicate Predicate, action Action) error {
	if name == "" {
		return ErrEmptyScenarioName
	}
	if predicate == nil {
		return ErrNilPredicate
	}
	if action == nil {
		return ErrNilAction
	}
	r.scenarios.Store(name, &Scenario{Name: name, Predicate: predicate, Action: action})
	return nil
}

// Lookup returns the scenario registered under name, if any.
func (r *Registry) Lookup(name string) (*Scenario, bool) {
	v, ok := r.scenarios.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*Scenario), true
}

// Names returns the registered scenario names in no particular order.
func (r *Registry) Names() []string {
	var names []string
	r.scenarios.Range(func(k, _ interface{}) bool {
		names = append(names, k.(string))
		return true
	})
	return names
}

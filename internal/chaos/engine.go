package chaos

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Engine is the fault-injection decision engine. It composes the environment
// check, rate limiters, user targeting, custom predicates, and built-in
// probability evaluation into one ordered decision, and wraps the execution
// of the chosen injected action.
//
// ShouldTrigger never blocks and is safe to call from hot paths; the only
// suspension point is inside Execute while the chosen action runs.
type Engine struct {
	source   ConfigSource
	log      *zap.Logger
	registry *Registry
	metrics  *Metrics

	minute minuteLimiter
	hourly hourlyLimiter
	counts atomic.Pointer[countMap]

	now       func() time.Time
	randFloat func() float64
}

// countMap exists only to give atomic.Pointer a named element type for the
// lazily grown per-scenario cumulative counters.
type countMap struct{ m map[string]*atomic.Int64 }

// Option customizes engine construction.
type Option func(*Engine)

// WithClock substitutes the time source. Tests use this to drive the rate
// limiters and time windows deterministically.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRandom substitutes the uniform [0,1) draw used for probability checks.
func WithRandom(next func() float64) Option {
	return func(e *Engine) { e.randFloat = next }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine builds an engine reading configuration from source and logging
// through log. The registry comes pre-seeded with the built-in scenarios.
func NewEngine(source ConfigSource, log *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		source:    source,
		log:       log,
		registry:  NewRegistry(),
		now:       time.Now,
		randFloat: rand.Float64,
	}
	e.counts.Store(&countMap{m: make(map[string]*atomic.Int64)})
	for _, opt := range opts {
		opt(e)
	}
	e.registerBuiltins()
	return e
}

// Register installs or replaces a custom scenario. See Registry.Register.
func (e *Engine) Register(name string, predicate Predicate, action Action) error {
	return e.registry.Register(name, predicate, action)
}

// Registry exposes the scenario registry, mainly for inspection surfaces.
func (e *Engine) Registry() *Registry { return e.registry }

// ShouldTrigger decides whether the named scenario should fire for this
// operation. Pure arithmetic and map lookups; no side effects on any counter.
func (e *Engine) ShouldTrigger(scenario, correlationID, operation string, chaosCtx map[string]interface{}) bool {
	started := time.Now()
	cfg := e.source.Current()
	triggered := e.evaluate(cfg, scenario, chaosCtx)
	e.metrics.observeDecision(scenario, triggered, time.Since(started))

	if triggered && cfg.Global.EnableLogging {
		e.log.Debug("chaos trigger decision",
			zap.String("scenario", scenario),
			zap.String("operation", operation),
			zap.String("correlation_id", correlationID),
		)
	}
	return triggered
}

func (e *Engine) evaluate(cfg Snapshot, scenario string, chaosCtx map[string]interface{}) bool {
	g := cfg.Global
	if !g.Enabled {
		return false
	}
	if !g.AllowsEnvironment(cfg.Environment) {
		return false
	}
	if e.minute.limited(e.now(), g.MaxTriggersPerMinute) {
		return false
	}

	if uid, ok := userIDFrom(chaosCtx); ok && cfg.UserTargeting.Enabled {
		switch {
		case cfg.UserTargeting.isExcluded(uid):
			// Exclusion yields no decision; the normal evaluation below still
			// runs, it is just never boosted for this user.
		case cfg.UserTargeting.isTestUser(uid):
			p := cfg.baseProbability(scenario) * cfg.UserTargeting.TestUserProbabilityMultiplier * g.GlobalProbabilityMultiplier
			if e.randFloat() < p {
				return true
			}
			// A failed boosted draw falls through: test users get a second,
			// independent chance from the normal draw below.
		}
	}

	// A registered predicate owns the decision outright, enabled or not, and
	// skips time windows, hourly limits, and probability alike.
	if sc, ok := e.registry.Lookup(scenario); ok {
		return sc.Predicate(chaosCtx)
	}

	sconf, known := cfg.Scenarios[scenario]
	if !known {
		return e.randFloat() < DefaultProbability*g.GlobalProbabilityMultiplier
	}
	if !sconf.Enabled {
		return false
	}
	if sconf.TimeWindowRestricted && !InWindow(sconf.AllowedWindows, e.now()) {
		return false
	}
	if e.hourly.limited(scenario, e.now(), sconf.MaxTriggersPerHour) {
		return false
	}
	return e.randFloat() < sconf.Probability*g.GlobalProbabilityMultiplier
}

// Execute runs the full trigger-decide-inject cycle. When the decision is
// negative it returns (false, nil) with no side effects at all: nothing is
// recorded, nothing is logged, and fallback is never invoked. When positive,
// the trigger is recorded in both rate limiters before the action runs, even
// if the action subsequently fails.
//
// The action is the registered one when present, otherwise fallback. Action
// failures are logged and swallowed unless PropagateActionErrors is set.
func (e *Engine) Execute(ctx context.Context, scenario, correlationID, operation string, fallback Action, chaosCtx map[string]interface{}) (bool, error) {
	cfg, triggered := e.trigger(scenario, correlationID, operation, chaosCtx)
	if !triggered {
		return false, nil
	}

	action := fallback
	if sc, ok := e.registry.Lookup(scenario); ok {
		action = sc.Action
	}
	if action == nil {
		return true, nil
	}

	if err := runAction(ctx, action); err != nil {
		e.handleActionError(scenario, correlationID, operation, err)
		if cfg.Global.PropagateActionErrors {
			return true, err
		}
	}
	return true, nil
}

// ExecuteValue is the typed form of Execute. A registered custom action runs
// in preference to fallback and always yields T's zero value, because custom
// actions carry no typed result. Only when no custom action exists does the
// typed fallback's value surface.
func ExecuteValue[T any](ctx context.Context, e *Engine, scenario, correlationID, operation string, fallback func(context.Context) (T, error), chaosCtx map[string]interface{}) (bool, T, error) {
	var zero T

	cfg, triggered := e.trigger(scenario, correlationID, operation, chaosCtx)
	if !triggered {
		return false, zero, nil
	}

	if sc, ok := e.registry.Lookup(scenario); ok {
		if err := runAction(ctx, sc.Action); err != nil {
			e.handleActionError(scenario, correlationID, operation, err)
			if cfg.Global.PropagateActionErrors {
				return true, zero, err
			}
		}
		return true, zero, nil
	}
	if fallback == nil {
		return true, zero, nil
	}

	v, err := runTypedAction(ctx, fallback)
	if err != nil {
		e.handleActionError(scenario, correlationID, operation, err)
		if cfg.Global.PropagateActionErrors {
			return true, zero, err
		}
		return true, zero, nil
	}
	return true, v, nil
}

// trigger performs the decision and, when positive, records it in both rate
// limiters, bumps the cumulative counter, and emits the structured warning.
func (e *Engine) trigger(scenario, correlationID, operation string, chaosCtx map[string]interface{}) (Snapshot, bool) {
	cfg := e.source.Current()
	if !e.evaluate(cfg, scenario, chaosCtx) {
		e.metrics.observeDecision(scenario, false, 0)
		return cfg, false
	}
	e.metrics.observeDecision(scenario, true, 0)

	now := e.now()
	e.minute.record(now)
	e.hourly.record(scenario, now)
	e.count(scenario).Add(1)
	e.metrics.recordTrigger(scenario)

	if cfg.Global.EnableLogging {
		e.log.Warn("injecting chaos scenario",
			zap.String("scenario", scenario),
			zap.String("operation", operation),
			zap.String("correlation_id", correlationID),
			zap.Any("context", chaosCtx),
		)
	}
	return cfg, true
}

func (e *Engine) handleActionError(scenario, correlationID, operation string, err error) {
	e.metrics.recordActionFailure(scenario)
	e.log.Error("chaos action failed",
		zap.String("scenario", scenario),
		zap.String("operation", operation),
		zap.String("correlation_id", correlationID),
		zap.Error(err),
	)
}

// count returns the cumulative trigger counter for scenario, creating it on
// first use via copy-on-write so readers never take a lock.
func (e *Engine) count(scenario string) *atomic.Int64 {
	for {
		cur := e.counts.Load()
		if c, ok := cur.m[scenario]; ok {
			return c
		}
		next := &countMap{m: make(map[string]*atomic.Int64, len(cur.m)+1)}
		for k, v := range cur.m {
			next.m[k] = v
		}
		c := &atomic.Int64{}
		next.m[scenario] = c
		if e.counts.CompareAndSwap(cur, next) {
			return c
		}
	}
}

func runAction(ctx context.Context, action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chaos action panicked: %v", r)
		}
	}()
	return action(ctx)
}

func runTypedAction[T any](ctx context.Context, action func(context.Context) (T, error)) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chaos action panicked: %v", r)
		}
	}()
	return action(ctx)
}

func userIDFrom(chaosCtx map[string]interface{}) (string, bool) {
	if chaosCtx == nil {
		return "", false
	}
	v, ok := chaosCtx[ContextUserIDKey]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// Package chaos implements the fault-injection decision engine.
//
// The engine decides, for every in-flight operation, whether to synthetically
// inject a failure (delay, error, resource pressure) so that resilience paths
// are exercised by real production traffic. Decisions are cheap, never block,
// and honor a layered set of constraints: environment allow-list, global and
// per-scenario rate limits, user targeting, time windows, and per-scenario
// probabilities scaled by a global multiplier.
//
// Configuration is consumed as an immutable snapshot read fresh on every
// decision, so operators can retune probabilities and limits without a
// restart. All runtime state (rate limiters, trigger counters, the scenario
// registry) is process-wide and safe for unbounded concurrent callers.
package chaos

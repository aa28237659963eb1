package chaos

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// Built-in scenario names. Each is seeded into the registry at construction
// at a small fixed probability; operators can override any of them by name
// with a later Register call, without restarting the process.
const (
	ScenarioProcessingDelay = "ProcessingDelay"
	ScenarioNetworkTimeout  = "NetworkTimeout"
	ScenarioCacheFailure    = "CacheFailure"
	ScenarioStorageFailure  = "StorageFailure"
	ScenarioMemoryPressure  = "MemoryPressure"
)

// memoryPressureCeiling is the system memory utilization (percent) above
// which the pressure scenario refuses to inject. Keeps the blast radius of a
// synthetic fault from tipping an already strained host.
const memoryPressureCeiling = 85.0

func (e *Engine) registerBuiltins() {
	builtins := []struct {
		name        string
		probability float64
		action      Action
	}{
		{ScenarioProcessingDelay, 0.002, e.delayAction(250 * time.Millisecond)},
		{ScenarioNetworkTimeout, 0.001, e.timeoutAction(2 * time.Second)},
		{ScenarioCacheFailure, 0.001, func(context.Context) error { return ErrInjectedCacheFailure }},
		{ScenarioStorageFailure, 0.0005, func(context.Context) error { return ErrInjectedStorageFailure }},
		{ScenarioMemoryPressure, 0.0005, e.memoryPressureAction(64, 250*time.Millisecond)},
	}

	for _, b := range builtins {
		p := b.probability
		predicate := func(map[string]interface{}) bool {
			return e.randFloat() < p*e.source.Current().Global.GlobalProbabilityMultiplier
		}
		// Names and handlers are non-nil constants; Register cannot fail.
		_ = e.registry.Register(b.name, predicate, b.action)
	}
}

// delayAction injects a fixed processing delay, cut short by ctx.
func (e *Engine) delayAction(d time.Duration) Action {
	return func(ctx context.Context) error {
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// timeoutAction stalls for d (or until ctx expires) and then reports a
// timeout, mimicking a dependency that went dark.
func (e *Engine) timeoutAction(d time.Duration) Action {
	return func(ctx context.Context) error {
		select {
		case <-time.After(d):
			return ErrInjectedTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// memoryPressureAction allocates sizeMB of memory, holds it for the given
// duration, then releases it. Injection is skipped when the host is already
// above memoryPressureCeiling.
func (e *Engine) memoryPressureAction(sizeMB int, hold time.Duration) Action {
	return func(ctx context.Context) error {
		if vm, err := mem.VirtualMemory(); err == nil && vm.UsedPercent >= memoryPressureCeiling {
			e.log.Warn("skipping memory pressure injection, host memory already strained",
				zap.Float64("used_percent", vm.UsedPercent),
			)
			return nil
		}

		const chunk = 1 << 20
		blocks := make([][]byte, 0, sizeMB)
		for i := 0; i < sizeMB; i++ {
			b := make([]byte, chunk)
			// Touch each page so the allocation is backed by real memory.
			for j := 0; j < len(b); j += 4096 {
				b[j] = 1
			}
			blocks = append(blocks, b)
		}

		defer runtime.KeepAlive(blocks)
		select {
		case <-time.After(hold):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

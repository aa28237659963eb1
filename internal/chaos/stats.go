package chaos

import "time"

// ChaosStats is a point-in-time view of trigger activity. It is a copy, not a
// live view; holding one does not observe later triggers.
type ChaosStats struct {
	TotalScenarios     int              `json:"total_scenarios"`
	TriggeredScenarios int64            `json:"triggered_scenarios"`
	PerScenario        map[string]int64 `json:"per_scenario"`
	LastTriggered      *time.Time       `json:"last_triggered,omitempty"`
}

// Stats snapshots the per-scenario cumulative trigger counts. TotalScenarios
// counts distinct scenario names that have ever triggered, TriggeredScenarios
// sums all counts, and LastTriggered is nil when nothing has triggered yet.
func (e *Engine) Stats() ChaosStats {
	counts := e.counts.Load()

	stats := ChaosStats{
		PerScenario: make(map[string]int64, len(counts.m)),
	}
	for name, c := range counts.m {
		n := c.Load()
		stats.PerScenario[name] = n
		stats.TriggeredScenarios += n
	}
	stats.TotalScenarios = len(stats.PerScenario)

	if last, ok := e.hourly.lastTriggered(); ok {
		stats.LastTriggered = &last
	}
	return stats
}

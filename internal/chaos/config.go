package chaos

// ContextUserIDKey is the context-map key carrying the acting user's id.
// Decisions consult it for user targeting; absence simply skips that branch.
const ContextUserIDKey = "userId"

// DefaultProbability is the base trigger probability for scenario names that
// have neither a ScenarioConfig entry nor a registered predicate.
const DefaultProbability = 0.001

// GlobalConfig gates the whole engine. It is read fresh on every decision so
// a reloaded configuration takes effect immediately.
type GlobalConfig struct {
	Enabled                     bool
	AllowedEnvironments         []string
	GlobalProbabilityMultiplier float64
	MaxTriggersPerMinute        int
	EnableLogging               bool

	// PropagateActionErrors opts in to returning injected action failures to
	// the caller instead of swallowing them. Off by default for compatibility
	// with the original contract.
	PropagateActionErrors bool
}

// AllowsEnvironment reports whether env is in the allow-list.
func (g GlobalConfig) AllowsEnvironment(env string) bool {
	for _, e := range g.AllowedEnvironments {
		if e == env {
			return true
		}
	}
	return false
}

// UserTargeting narrows or boosts injection for specific users.
type UserTargeting struct {
	Enabled                       bool
	ExcludedUserIDs               []string
	TestUserIDs                   []string
	TestUserProbabilityMultiplier float64
}

func (u UserTargeting) isExcluded(id string) bool { return containsString(u.ExcludedUserIDs, id) }
func (u UserTargeting) isTestUser(id string) bool { return containsString(u.TestUserIDs, id) }

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

// ScenarioConfig configures one named scenario. Probability is advisory: the
// engine multiplies whatever value is present and never clamps it.
type ScenarioConfig struct {
	Name                 string
	Enabled              bool
	Probability          float64
	MaxTriggersPerHour   int
	TimeWindowRestricted bool
	AllowedWindows       []TimeWindow
}

// Snapshot is the immutable per-evaluation view of the full configuration,
// including the name of the environment the process is running in. Snapshots
// are produced externally (see internal/config) and must not be mutated after
// publication.
type Snapshot struct {
	Global        GlobalConfig
	UserTargeting UserTargeting
	Scenarios     map[string]ScenarioConfig
	Environment   string
}

// ConfigSource supplies the current configuration snapshot. Implementations
// must be safe for concurrent use; the engine calls Current once per decision.
type ConfigSource interface {
	Current() Snapshot
}

// StaticSource is a ConfigSource that always returns the same snapshot.
// Useful in tests and for callers without hot-reload.
type StaticSource struct{ Snapshot Snapshot }

func (s StaticSource) Current() Snapshot { return s.Snapshot }

// baseProbability returns the probability the user-targeting branch scales:
// the scenario's configured probability, or the default for unknown names.
func (s Snapshot) baseProbability(scenario string) float64 {
	if sc, ok := s.Scenarios[scenario]; ok {
		return sc.Probability
	}
	return DefaultProbability
}

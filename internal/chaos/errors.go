package chaos

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by registration and the built-in failure actions.
var (
	ErrEmptyScenarioName = errors.New("scenario name must not be empty")
	ErrNilPredicate      = errors.New("scenario predicate must not be nil")
	ErrNilAction         = errors.New("scenario action must not be nil")

	// Injected faults. These exist to be thrown: callers exercising their
	// resilience paths should expect to see them when propagation is enabled.
	ErrInjectedTimeout        = errors.New("injected network timeout")
	ErrInjectedCacheFailure   = errors.New("injected cache failure")
	ErrInjectedStorageFailure = errors.New("injected storage failure")
)

// ValidationError reports an invalid configuration or registration value.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

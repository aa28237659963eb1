package chaos

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryValidation(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	pred := func(map[string]interface{}) bool { return true }
	act := func(context.Context) error { return nil }

	assert.ErrorIs(t, r.Register("", pred, act), ErrEmptyScenarioName)
	assert.ErrorIs(t, r.Register("X", nil, act), ErrNilPredicate)
	assert.ErrorIs(t, r.Register("X", pred, nil), ErrNilAction)

	// Nothing invalid was stored.
	_, ok := r.Lookup("X")
	assert.False(t, ok)

	require.NoError(t, r.Register("X", pred, act))
	sc, ok := r.Lookup("X")
	require.True(t, ok)
	assert.Equal(t, "X", sc.Name)
}

func TestRegistryLastRegistrationWins(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	act := func(context.Context) error { return nil }

	require.NoError(t, r.Register("X", func(map[string]interface{}) bool { return false }, act))
	require.NoError(t, r.Register("X", func(map[string]interface{}) bool { return true }, act))

	sc, ok := r.Lookup("X")
	require.True(t, ok)
	assert.True(t, sc.Predicate(nil), "second registration replaced the first")
	assert.Len(t, r.Names(), 1)
}

// Each registration pairs a predicate answering i%2==0 with an action whose
// error carries i. A reader observing a predicate from one registration and
// an action from another would see mismatched parity.
func TestRegistryReplacementIsAtomic(t *testing.T) {
	t.Parallel()

	r := NewRegistry()
	register := func(i int) {
		even := i%2 == 0
		err := fmt.Errorf("registration %d", i)
		require.NoError(t, r.Register("X",
			func(map[string]interface{}) bool { return even },
			func(context.Context) error { return err },
		))
	}
	register(0)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i < 2000; i++ {
			register(i)
		}
		close(done)
	}()

	for {
		select {
		case <-done:
			wg.Wait()
			return
		default:
		}
		sc, ok := r.Lookup("X")
		require.True(t, ok)
		parity := sc.Predicate(nil)
		msg := sc.Action(context.Background()).Error()
		i, err := strconv.Atoi(strings.TrimPrefix(msg, "registration "))
		require.NoError(t, err)
		assert.Equal(t, i%2 == 0, parity, "predicate and action must come from the same registration")
	}
}

package dice

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource replays a fixed sequence of die values (1-10).
func scriptedSource(t *testing.T, values ...int) func(int) int {
	t.Helper()
	i := 0
	return func(n int) int {
		require.Equal(t, Faces, n)
		require.Less(t, i, len(values), "engine drew more dice than scripted")
		v := values[i]
		i++
		return v - 1
	}
}

func TestRollRejectsNonPositiveCount(t *testing.T) {
	engine := NewEngine()

	for _, count := range []int{0, -1, -15} {
		_, err := engine.Roll(count)
		assert.ErrorIs(t, err, ErrInvalidCount)
	}
}

func TestRollSingleTenTriggersOneCascadeDraw(t *testing.T) {
	// Initial [10 7 3]: one success (the 10), one pending cascade.
	// Cascade draw 9: one extra success, no further draws.
	engine := NewEngineWithSource(scriptedSource(t, 10, 7, 3, 9))

	result, err := engine.Roll(3)
	require.NoError(t, err)

	assert.Equal(t, []int{10, 7, 3}, result.Initial)
	assert.Equal(t, []int{9}, result.Extra)
	assert.Equal(t, 1, result.InitialSuccesses)
	assert.Equal(t, 1, result.ExtraSuccesses)
	assert.Equal(t, 2, result.TotalSuccesses)
}

func TestRollCascadeTenKeepsCascading(t *testing.T) {
	// The cascade 10 schedules one more draw in turn.
	engine := NewEngineWithSource(scriptedSource(t, 10, 10, 2))

	result, err := engine.Roll(1)
	require.NoError(t, err)

	assert.Equal(t, []int{10}, result.Initial)
	assert.Equal(t, []int{10, 2}, result.Extra)
	assert.Equal(t, 1, result.InitialSuccesses)
	assert.Equal(t, 1, result.ExtraSuccesses)
	assert.Equal(t, 2, result.TotalSuccesses)
}

func TestRollNoTensMeansNoCascade(t *testing.T) {
	engine := NewEngineWithSource(scriptedSource(t, 8, 9, 1))

	result, err := engine.Roll(3)
	require.NoError(t, err)

	assert.Empty(t, result.Extra)
	assert.Equal(t, 2, result.InitialSuccesses)
	assert.Equal(t, 0, result.ExtraSuccesses)
	assert.Equal(t, 2, result.TotalSuccesses)
}

func TestRollProperties(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	engine := NewEngineWithSource(r.Intn)

	for count := 1; count <= 15; count++ {
		result, err := engine.Roll(count)
		require.NoError(t, err)

		assert.Len(t, result.Initial, count)

		tens := 0
		successes := 0
		for _, v := range result.Initial {
			require.GreaterOrEqual(t, v, 1)
			require.LessOrEqual(t, v, Faces)
			if v == Faces {
				tens++
			}
			if v >= SuccessThreshold {
				successes++
			}
		}
		assert.Equal(t, successes, result.InitialSuccesses)

		// Every cascade draw is owed to exactly one earlier 10.
		extraSuccesses := 0
		for _, v := range result.Extra {
			require.GreaterOrEqual(t, v, 1)
			require.LessOrEqual(t, v, Faces)
			if v == Faces {
				tens++
			}
			if v >= SuccessThreshold {
				extraSuccesses++
			}
		}
		assert.Equal(t, tens, len(result.Extra))
		assert.Equal(t, extraSuccesses, result.ExtraSuccesses)
		assert.Equal(t, result.InitialSuccesses+result.ExtraSuccesses, result.TotalSuccesses)
	}
}

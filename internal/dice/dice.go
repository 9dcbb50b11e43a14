// Package dice implements the d10 roll mechanic used by chat dice messages:
// values of 8+ count as successes and every 10 grants one additional draw.
package dice

import (
	"errors"
	"math/rand"
	"time"
)

const (
	// Faces is the number of faces on a die.
	Faces = 10
	// SuccessThreshold is the lowest value counted as a success.
	SuccessThreshold = 8
)

// ErrInvalidCount is returned when a roll is requested for zero or fewer dice.
var ErrInvalidCount = errors.New("dice: count must be a positive integer")

// Result holds the full outcome of a roll, including cascade draws
// triggered by tens.
type Result struct {
	Initial          []int `json:"initial"`
	Extra            []int `json:"extra"`
	InitialSuccesses int   `json:"initialSuccesses"`
	ExtraSuccesses   int   `json:"extraSuccesses"`
	TotalSuccesses   int   `json:"totalSuccesses"`
}

// Engine produces roll results from an injectable integer source so tests
// can run deterministically.
type Engine struct {
	intn func(n int) int
}

// NewEngine returns an engine backed by a time-seeded PRNG. The engine is
// not safe for concurrent use; callers serialize rolls.
func NewEngine() *Engine {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Engine{intn: r.Intn}
}

// NewEngineWithSource returns an engine drawing from intn, which must behave
// like math/rand Intn (uniform integer in [0, n)).
func NewEngineWithSource(intn func(n int) int) *Engine {
	return &Engine{intn: intn}
}

// Roll draws count dice and resolves the cascade. Each 10, whether from the
// initial draw or a cascade draw, adds exactly one pending extra draw; the
// cascade is counter-driven and always terminates.
func (e *Engine) Roll(count int) (Result, error) {
	if count <= 0 {
		return Result{}, ErrInvalidCount
	}

	initial := make([]int, count)
	pendingTens := 0
	initialSuccesses := 0
	for i := range initial {
		v := e.draw()
		initial[i] = v
		if v >= SuccessThreshold {
			initialSuccesses++
		}
		if v == Faces {
			pendingTens++
		}
	}

	extra := []int{}
	extraSuccesses := 0
	for pendingTens > 0 {
		v := e.draw()
		extra = append(extra, v)
		if v >= SuccessThreshold {
			extraSuccesses++
		}
		if v == Faces {
			pendingTens++
		}
		pendingTens--
	}

	return Result{
		Initial:          initial,
		Extra:            extra,
		InitialSuccesses: initialSuccesses,
		ExtraSuccesses:   extraSuccesses,
		TotalSuccesses:   initialSuccesses + extraSuccesses,
	}, nil
}

func (e *Engine) draw() int {
	return e.intn(Faces) + 1
}

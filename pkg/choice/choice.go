// Package choice provides weighted random selection over a fixed set of options.
//
// A Distribution pairs each option with a non-negative integer weight. The
// cumulative totals are folded once, when the Distribution is built, and the
// Distribution is read-only afterwards, so a single value can be sampled from
// any number of goroutines.
//
//	d, err := choice.New([]int{70, 30}, []string{"Timeout", "InternalError"})
//	if err != nil {
//	    return err
//	}
//	label, err := d.Next(chance.Default())
package choice

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrArityMismatch is returned when weights and options differ in length.
	ErrArityMismatch = errors.New("weights and options must have the same length")

	// ErrNegativeWeight is returned when a weight is below zero.
	ErrNegativeWeight = errors.New("weight must be >= 0")

	// ErrWeightOverflow is returned when the weights sum past math.MaxInt64.
	ErrWeightOverflow = errors.New("total weight overflows int64")

	// ErrNoPositiveWeight is returned by Next when there is nothing to select:
	// the distribution is empty or every weight is zero.
	ErrNoPositiveWeight = errors.New("distribution has no option with a positive weight")
)

// Source is the randomness a Distribution draws from.
type Source interface {
	// Int64N returns a uniform value in [0, n). n is always > 0.
	Int64N(n int64) int64
}

// Distribution is an ordered set of options with relative weights.
type Distribution[T any] struct {
	options []T
	weights []int
	totals  []int64
}

// New builds a Distribution. Options keep the order they were given in, which
// is also the order of the cumulative totals.
func New[T any](weights []int, options []T) (*Distribution[T], error) {
	if len(weights) != len(options) {
		return nil, fmt.Errorf("%w: %d weights, %d options", ErrArityMismatch, len(weights), len(options))
	}
	var total int64
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("%w: option %d has weight %d", ErrNegativeWeight, i, w)
		}
		if int64(w) > math.MaxInt64-total {
			return nil, fmt.Errorf("%w: at option %d", ErrWeightOverflow, i)
		}
		total += int64(w)
	}

	d := &Distribution[T]{
		options: append([]T(nil), options...),
		weights: append([]int(nil), weights...),
	}
	d.totals = foldWeights(d.weights)
	return d, nil
}

// MustNew is like New but panics on error. Intended for package-level defaults.
func MustNew[T any](weights []int, options []T) *Distribution[T] {
	d, err := New(weights, options)
	if err != nil {
		panic(err)
	}
	return d
}

// Empty returns an empty Distribution.
func Empty[T any]() *Distribution[T] {
	return &Distribution[T]{}
}

// foldWeights returns the running sums of weights.
func foldWeights(weights []int) []int64 {
	totals := make([]int64, len(weights))
	var acc int64
	for i, w := range weights {
		acc += int64(w)
		totals[i] = acc
	}
	return totals
}

// Next draws one option. The draw x is uniform in [0, total) and the result is
// the first option whose cumulative total is strictly greater than x, so an
// option with weight zero can never be returned.
func (d *Distribution[T]) Next(src Source) (T, error) {
	var zero T
	total := d.Total()
	if total <= 0 {
		return zero, ErrNoPositiveWeight
	}

	x := src.Int64N(total)
	i := sort.Search(len(d.totals), func(i int) bool { return d.totals[i] > x })
	return d.options[i], nil
}

// Len returns the number of options, including zero-weight ones.
func (d *Distribution[T]) Len() int {
	if d == nil {
		return 0
	}
	return len(d.options)
}

// Empty reports whether the distribution has no options at all.
func (d *Distribution[T]) Empty() bool {
	return d.Len() == 0
}

// Total returns the sum of all weights.
func (d *Distribution[T]) Total() int64 {
	if d == nil || len(d.totals) == 0 {
		return 0
	}
	return d.totals[len(d.totals)-1]
}

// Options returns a copy of the options in order.
func (d *Distribution[T]) Options() []T {
	if d == nil {
		return nil
	}
	return append([]T(nil), d.options...)
}

// Weights returns a copy of the weights in order.
func (d *Distribution[T]) Weights() []int {
	if d == nil {
		return nil
	}
	return append([]int(nil), d.weights...)
}

// Probability returns the expected selection frequency of option i.
func (d *Distribution[T]) Probability(i int) float64 {
	total := d.Total()
	if total == 0 || i < 0 || i >= d.Len() {
		return 0
	}
	return float64(d.weights[i]) / float64(total)
}

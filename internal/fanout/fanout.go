// Package fanout runs independent tasks in parallel and settles their
// errors: zero failures yield a nil error, exactly one failure is returned
// unwrapped, and two or more are combined via [multierr.Combine].
package fanout

import (
	"errors"
	"sync"

	"go.uber.org/multierr"
)

// ErrAggregate indicates Settle combined 2 or more task failures into one
// error. Re-exported by the root zekta package so callers can write
// errors.Is(err, zekta.ErrAggregate) without importing this package.
var ErrAggregate = errors.New("fanout: aggregate failure")

// Run executes each task concurrently and waits for all of them to finish.
// Results are returned in the same order as tasks, with the zero value of T
// in place of any slot whose task failed.
func Run[T any](tasks []func() (T, error)) ([]T, error) {
	results := make([]T, len(tasks))
	errs := make([]error, len(tasks))

	var wg sync.WaitGroup

	wg.Add(len(tasks))

	for i, task := range tasks {
		go func(i int, task func() (T, error)) {
			defer wg.Done()

			result, err := task()
			results[i] = result
			errs[i] = err
		}(i, task)
	}

	wg.Wait()

	return results, Settle(errs)
}

// Settle combines a slice of per-task errors (which may contain nils) down
// to a single error: nil if none failed, the lone error if exactly one
// failed, or a combined [multierr] aggregate joined with ErrAggregate if two
// or more failed.
func Settle(errs []error) error {
	combined := multierr.Combine(errs...)

	if len(multierr.Errors(combined)) < 2 {
		return combined
	}

	return multierr.Append(ErrAggregate, combined)
}

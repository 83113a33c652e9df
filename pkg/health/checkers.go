package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// LimitCheck fails when current() exceeds limit. what names the measured
// quantity in the error. A limit of zero or less disables the check.
func LimitCheck(what string, current func() int64, limit int64) CheckFunc {
	return func(_ context.Context) error {
		if limit <= 0 {
			return nil
		}
		if n := current(); n > limit {
			return errors.Errorf("%s %d exceeds limit %d", what, n, limit)
		}
		return nil
	}
}

package supervisor

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// retry calls fn until it succeeds, attempts run out, or ctx is done.
// onErr sees every failed attempt together with the attempts left.
func retry(ctx context.Context, attempts int, onErr func(left int, err error), fn func() error) error {
	err := errors.New("not attempted")
	for left := attempts; left > 0; left-- {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err = fn(); err == nil {
			return nil
		}
		if onErr != nil {
			onErr(left-1, err)
		}
	}
	return errors.Wrap(err, "Exceeded attempts issue")
}

// sleep waits d or until ctx is done
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

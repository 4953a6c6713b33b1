package distributor

import (
	"time"

	"github.com/bucketdist/bucketdist/internal/logging"
)

// schedule runs fn every period, after an initial delay, until stop is
// called. Cancellation is cooperative: stop waits for an in-flight
// invocation of fn to run to completion, and no further invocation starts
// after stop returns.
// A panic inside fn is recovered and logged so one bad tick cannot kill the
// distributor's background goroutines (spec section 7, periodic tasks
// "catch-all boundary").
func schedule(name string, initialDelay, period time.Duration, fn func()) (stop func()) {
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		timer := time.NewTimer(initialDelay)
		defer timer.Stop()
		for {
			select {
			case <-done:
				return
			case <-timer.C:
			}
			runTick(name, fn)
			timer.Reset(period)
		}
	}()
	return func() {
		close(done)
		<-exited
	}
}

func runTick(name string, fn func()) {
	defer logging.RecoverPanic(name, nil)
	fn()
}

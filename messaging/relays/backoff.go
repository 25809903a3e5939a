package relays

import (
	"fmt"
	"time"

	"forgestr/engine/actors"
)

// Backoff retries an operation with exponential delays. Eventual-consistency
// lag on relays is expected, so polling with backoff is the normal way to
// wait for a just-published event to become visible.
type Backoff struct {
	Attempts   int
	Base       time.Duration
	Multiplier float64
	Cap        time.Duration
}

// DefaultBackoff reads the retry schedule from the config.
func DefaultBackoff() Backoff {
	conf := actors.MakeOrGetConfig()
	return Backoff{
		Attempts:   conf.GetInt("retryAttempts"),
		Base:       conf.GetDuration("retryBase"),
		Multiplier: conf.GetFloat64("retryMultiplier"),
		Cap:        conf.GetDuration("retryCap"),
	}
}

// Do calls op until it reports done, an error, or attempts run out. The delay
// between attempts starts at Base and multiplies up to Cap.
func (b Backoff) Do(op func() (done bool, err error)) error {
	delay := b.Base
	for attempt := 1; ; attempt++ {
		done, err := op()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if attempt >= b.Attempts {
			return fmt.Errorf("gave up after %d attempts", b.Attempts)
		}
		time.Sleep(delay)
		delay = time.Duration(float64(delay) * b.Multiplier)
		if delay > b.Cap {
			delay = b.Cap
		}
	}
}

// Delays returns the wait schedule without executing anything, mainly so the
// schedule itself is testable.
func (b Backoff) Delays() []time.Duration {
	delays := make([]time.Duration, 0, b.Attempts-1)
	delay := b.Base
	for i := 1; i < b.Attempts; i++ {
		delays = append(delays, delay)
		delay = time.Duration(float64(delay) * b.Multiplier)
		if delay > b.Cap {
			delay = b.Cap
		}
	}
	return delays
}

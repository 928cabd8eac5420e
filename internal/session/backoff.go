package session

import (
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Tier is one row of the reconnect delay table. Min is inclusive, Max is
// exclusive; delays are whole seconds.
type Tier struct {
	Min time.Duration
	Max time.Duration
}

// Tiers is indexed by attempt-1. Attempts past the end use the last row.
var Tiers = []Tier{
	{Min: 1 * time.Second, Max: 11 * time.Second},
	{Min: 10 * time.Second, Max: 20 * time.Second},
	{Min: 15 * time.Second, Max: 30 * time.Second},
	{Min: 30 * time.Second, Max: 45 * time.Second},
	{Min: 45 * time.Second, Max: 65 * time.Second},
}

// TierFor returns the table row for an attempt count. Attempts below 1 are
// treated as the first attempt.
func TierFor(attempt int) Tier {
	switch {
	case attempt < 1:
		return Tiers[0]
	case attempt > len(Tiers):
		return Tiers[len(Tiers)-1]
	default:
		return Tiers[attempt-1]
	}
}

// Delay samples a uniformly random whole-second delay from the tier for
// attempt. intn returns a value in [0, n); nil means math/rand/v2.IntN.
func Delay(attempt int, intn func(n int) int) time.Duration {
	if intn == nil {
		intn = rand.IntN
	}
	t := TierFor(attempt)
	span := int((t.Max - t.Min) / time.Second)
	return t.Min + time.Duration(intn(span))*time.Second
}

// Backoff drives the reconnect schedule as a backoff.BackOff. The attempt
// counter lives in the Session: NextBackOff counts one more abnormal close
// and Reset clears it after a successful open.
type Backoff struct {
	sess  *Session
	delay func(attempt int) time.Duration
}

var _ backoff.BackOff = (*Backoff)(nil)

// NewBackoff returns a schedule over sess. A nil delay samples Tiers.
func NewBackoff(sess *Session, delay func(attempt int) time.Duration) *Backoff {
	if delay == nil {
		delay = func(attempt int) time.Duration { return Delay(attempt, nil) }
	}
	return &Backoff{sess: sess, delay: delay}
}

func (b *Backoff) NextBackOff() time.Duration {
	return b.delay(b.sess.NextAttempt())
}

func (b *Backoff) Reset() {
	b.sess.ResetAttempt()
}

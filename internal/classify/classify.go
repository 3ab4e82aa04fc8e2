// Package classify turns two balance readings into a semantic event.
package classify

import "math"

// Kind is the semantic category of a balance reading
type Kind int

const (
	// FirstReading establishes the baseline; it never produces a notification
	FirstReading Kind = iota
	// NoChange means the balance moved less than epsilon
	NoChange
	// Deposit means the balance increased
	Deposit
	// Payment means the balance decreased
	Payment
)

func (k Kind) String() string {
	switch k {
	case FirstReading:
		return "first_reading"
	case NoChange:
		return "no_change"
	case Deposit:
		return "deposit"
	case Payment:
		return "payment"
	}
	return "unknown"
}

// epsilon absorbs floating point noise between readings
const epsilon = 1e-9

// Change is the classification of a new balance reading against the
// previous one. CrossedBelowThreshold is independent of Kind: a payment
// that drops the balance under the alert threshold sets both.
type Change struct {
	Kind                  Kind
	Magnitude             float64
	CrossedBelowThreshold bool
}

// Classify compares the previous balance (nil before the first successful
// read) with the new reading. The threshold (nil disables low-balance
// alerting) is edge-triggered: CrossedBelowThreshold is set only on the
// transition from at-or-above to below, so repeated polls while the balance
// stays under the threshold do not re-alert. A first reading never alerts,
// even when it is already below the threshold.
func Classify(old *float64, newBalance float64, threshold *float64) Change {
	if old == nil {
		return Change{Kind: FirstReading}
	}

	c := Change{Kind: NoChange}
	delta := newBalance - *old
	switch {
	case math.Abs(delta) < epsilon:
		// noise
	case delta > 0:
		c.Kind = Deposit
		c.Magnitude = delta
	default:
		c.Kind = Payment
		c.Magnitude = -delta
	}

	if threshold != nil && *old >= *threshold && newBalance < *threshold {
		c.CrossedBelowThreshold = true
	}

	return c
}

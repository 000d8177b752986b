// Package loadest estimates how much synthetic load is currently running
// against the adapters.
package loadest

import "context"

// Estimator reports the number of concurrent load workers it believes are
// active. It is a heuristic and never fails; unknown is 0.
type Estimator interface {
	Estimate(ctx context.Context) int
}

// Static always reports the same number.
type Static int

func (s Static) Estimate(context.Context) int { return int(s) }

package achievement

import (
	"time"

	"github.com/ridepool-hub/ridepool-achievements/internal/domain/shared"
)

// Advance applies a progress delta to a row under the definition's
// completion rule and returns the updated row.
//
// Rules, in order:
//   - a negative delta is rejected: progress never decrements or resets;
//   - a row that is already achieved is frozen - the input is returned
//     unchanged regardless of delta;
//   - otherwise the counter is incremented, and if it reaches or exceeds
//     RequiredPoints the row is promoted: Achieved flips to true and
//     DateAchieved is stamped with occurredAt.
//
// The threshold check uses >=, not ==, so a delta larger than one that
// overshoots the threshold still completes the achievement.
//
// The returned bool reports whether the row changed; callers use it to
// skip the write entirely on no-ops.
func Advance(p UserProgress, def Definition, delta int, occurredAt time.Time) (UserProgress, bool, error) {
	if delta < 0 {
		return p, false, shared.ErrNegativeDelta
	}
	if p.Achieved {
		return p, false, nil
	}
	if delta == 0 {
		return p, false, nil
	}

	updated := p
	updated.Progress += delta
	if updated.Progress >= def.RequiredPoints {
		updated.Achieved = true
		at := occurredAt
		updated.DateAchieved = &at
	}
	return updated, true, nil
}

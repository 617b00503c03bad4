package achievement

import (
	"time"
)

// UserProgress is the durable per-(user, achievement) progress record.
// Exactly one row exists per (UserID, AchievementID) pair. The counter is
// monotonically non-decreasing while Achieved is false and frozen once it
// becomes true; Achieved itself is a one-way false→true transition.
type UserProgress struct {
	// UserID identifies the user. Together with AchievementID it forms the
	// composite identity of the row.
	UserID string

	// AchievementID references the catalog definition.
	AchievementID string

	// Progress is the counter toward the achievement's threshold.
	Progress int

	// Achieved is set once Progress reaches the definition's RequiredPoints.
	Achieved bool

	// DateAchieved is set exactly once, at the moment Achieved flips to
	// true; nil before that.
	DateAchieved *time.Time

	// CreatedAt is when the row was provisioned.
	CreatedAt time.Time

	// UpdatedAt is when the row was last persisted.
	UpdatedAt time.Time
}

// NewUserProgress returns a fresh progress row for a (user, achievement)
// pair: zero progress, not achieved.
func NewUserProgress(userID, achievementID string, now time.Time) UserProgress {
	return UserProgress{
		UserID:        userID,
		AchievementID: achievementID,
		Progress:      0,
		Achieved:      false,
		DateAchieved:  nil,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ProgressView is a progress row joined with its catalog metadata, as
// exposed to the presentation layer by ListProgress.
type ProgressView struct {
	Title          Title      `json:"title"`
	Description    string     `json:"description"`
	RequiredPoints int        `json:"required_points"`
	Progress       int        `json:"progress"`
	Achieved       bool       `json:"achieved"`
	DateAchieved   *time.Time `json:"date_achieved,omitempty"`
}

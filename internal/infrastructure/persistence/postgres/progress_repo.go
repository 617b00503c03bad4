package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ridepool-hub/ridepool-achievements/internal/domain/achievement"
	"github.com/ridepool-hub/ridepool-achievements/internal/domain/shared"
)

// ProgressRepository implements achievement.ProgressRepository for
// PostgreSQL. The engine serializes fetch-evaluate-save per key, so updates
// are plain last-writer-wins; creation paths are atomic via
// ON CONFLICT DO NOTHING so they race safely with each other.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

// GetOrCreate returns the existing row for the pair, creating a
// zero-progress row if absent.
func (r *ProgressRepository) GetOrCreate(ctx context.Context, userID, achievementID string) (*achievement.UserProgress, error) {
	insert := `
		INSERT INTO user_achievement_progress (user_id, achievement_id, progress, achieved, created_at, updated_at)
		VALUES ($1, $2, 0, FALSE, $3, $3)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`
	now := time.Now().UTC()
	if _, err := r.conn.Exec(ctx, insert, userID, achievementID, now); err != nil {
		return nil, fmt.Errorf("failed to provision progress row: %w", err)
	}

	query := `
		SELECT user_id, achievement_id, progress, achieved, date_achieved, created_at, updated_at
		FROM user_achievement_progress
		WHERE user_id = $1 AND achievement_id = $2
	`
	row := r.conn.QueryRow(ctx, query, userID, achievementID)
	progress, err := scanProgress(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get progress row: %w", err)
	}
	return progress, nil
}

// Save persists the full updated record.
func (r *ProgressRepository) Save(ctx context.Context, progress *achievement.UserProgress) error {
	query := `
		UPDATE user_achievement_progress
		SET progress = $1, achieved = $2, date_achieved = $3, updated_at = $4
		WHERE user_id = $5 AND achievement_id = $6
	`

	result, err := r.conn.Exec(ctx, query,
		progress.Progress,
		progress.Achieved,
		progress.DateAchieved,
		progress.UpdatedAt,
		progress.UserID,
		progress.AchievementID,
	)
	if err != nil {
		if IsSerializationFailure(err) {
			return shared.WrapError("progress", "Save", shared.ErrConcurrentModification,
				"serialization failure", err)
		}
		return fmt.Errorf("failed to save progress row: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrProgressRowNotFound
	}
	return nil
}

// BulkEnsure pre-provisions zero-progress rows for every achievement ID the
// user does not have yet. Idempotent.
func (r *ProgressRepository) BulkEnsure(ctx context.Context, userID string, achievementIDs []string) error {
	if len(achievementIDs) == 0 {
		return nil
	}

	insert := `
		INSERT INTO user_achievement_progress (user_id, achievement_id, progress, achieved, created_at, updated_at)
		VALUES ($1, $2, 0, FALSE, $3, $3)
		ON CONFLICT (user_id, achievement_id) DO NOTHING
	`
	now := time.Now().UTC()

	batch := &pgx.Batch{}
	for _, id := range achievementIDs {
		batch.Queue(insert, userID, id, now)
	}

	results := r.conn.Pool().SendBatch(ctx, batch)
	defer results.Close()

	for range achievementIDs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to bulk ensure progress rows: %w", err)
		}
	}
	return nil
}

// ListByUser returns all progress rows of a user joined with achievement
// metadata, ordered by title.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID string) ([]*achievement.ProgressView, error) {
	query := `
		SELECT a.title, a.description, a.required_points,
		       p.progress, p.achieved, p.date_achieved
		FROM user_achievement_progress p
		JOIN achievements a ON a.id = p.achievement_id
		WHERE p.user_id = $1
		ORDER BY a.title
	`

	rows, err := r.conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user progress: %w", err)
	}
	defer rows.Close()

	var views []*achievement.ProgressView
	for rows.Next() {
		var v achievement.ProgressView
		var title string
		if err := rows.Scan(&title, &v.Description, &v.RequiredPoints, &v.Progress, &v.Achieved, &v.DateAchieved); err != nil {
			return nil, fmt.Errorf("failed to scan progress view: %w", err)
		}
		v.Title = achievement.Title(title)
		views = append(views, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate progress views: %w", err)
	}
	return views, nil
}

func scanProgress(row pgx.Row) (*achievement.UserProgress, error) {
	var p achievement.UserProgress
	if err := row.Scan(
		&p.UserID,
		&p.AchievementID,
		&p.Progress,
		&p.Achieved,
		&p.DateAchieved,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

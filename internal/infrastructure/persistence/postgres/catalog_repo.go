package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ridepool-hub/ridepool-achievements/internal/domain/achievement"
	"github.com/ridepool-hub/ridepool-achievements/internal/domain/shared"
)

// CatalogRepository implements achievement.CatalogRepository for PostgreSQL.
type CatalogRepository struct {
	conn *Connection
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(conn *Connection) *CatalogRepository {
	return &CatalogRepository{conn: conn}
}

// GetByTitle returns the definition registered under the given title.
func (r *CatalogRepository) GetByTitle(ctx context.Context, title achievement.Title) (*achievement.Definition, error) {
	query := `
		SELECT id, title, description, required_points, created_at
		FROM achievements
		WHERE title = $1
	`

	row := r.conn.QueryRow(ctx, query, string(title))
	def, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrDefinitionNotFound
		}
		return nil, fmt.Errorf("failed to get achievement by title: %w", err)
	}
	return def, nil
}

// List returns all catalog definitions ordered by title.
func (r *CatalogRepository) List(ctx context.Context) ([]*achievement.Definition, error) {
	query := `
		SELECT id, title, description, required_points, created_at
		FROM achievements
		ORDER BY title
	`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var defs []*achievement.Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate achievements: %w", err)
	}
	return defs, nil
}

// Create registers a new definition.
func (r *CatalogRepository) Create(ctx context.Context, def *achievement.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO achievements (id, title, description, required_points, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.conn.Exec(ctx, query,
		def.ID,
		string(def.Title),
		def.Description,
		def.RequiredPoints,
		def.CreatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrDefinitionExists
		}
		return fmt.Errorf("failed to create achievement: %w", err)
	}
	return nil
}

func scanDefinition(row pgx.Row) (*achievement.Definition, error) {
	var def achievement.Definition
	var title string
	if err := row.Scan(&def.ID, &title, &def.Description, &def.RequiredPoints, &def.CreatedAt); err != nil {
		return nil, err
	}
	def.Title = achievement.Title(title)
	return &def, nil
}

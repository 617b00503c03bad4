// Package memory implements the catalog and progress repositories in
// process memory. Used by tests and by dev deployments running without
// PostgreSQL.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ridepool-hub/ridepool-achievements/internal/domain/achievement"
	"github.com/ridepool-hub/ridepool-achievements/internal/domain/shared"
)

// Catalog is an in-memory achievement.CatalogRepository.
type Catalog struct {
	mu      sync.RWMutex
	byTitle map[achievement.Title]*achievement.Definition
}

// NewCatalog creates an empty in-memory catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		byTitle: make(map[achievement.Title]*achievement.Definition),
	}
}

// NewSeededCatalog creates a catalog pre-loaded with the given definitions.
// Definitions without an ID get one assigned.
func NewSeededCatalog(defs ...achievement.Definition) (*Catalog, error) {
	c := NewCatalog()
	for i := range defs {
		def := defs[i]
		if err := c.Create(context.Background(), &def); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// GetByTitle implements achievement.CatalogRepository.
func (c *Catalog) GetByTitle(ctx context.Context, title achievement.Title) (*achievement.Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.byTitle[title]
	if !ok {
		return nil, shared.ErrDefinitionNotFound
	}
	copied := *def
	return &copied, nil
}

// List implements achievement.CatalogRepository.
func (c *Catalog) List(ctx context.Context) ([]*achievement.Definition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	defs := make([]*achievement.Definition, 0, len(c.byTitle))
	for _, def := range c.byTitle {
		copied := *def
		defs = append(defs, &copied)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Title < defs[j].Title })
	return defs, nil
}

// Create implements achievement.CatalogRepository.
func (c *Catalog) Create(ctx context.Context, def *achievement.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.byTitle[def.Title]; exists {
		return shared.ErrDefinitionExists
	}
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = time.Now().UTC()
	}
	copied := *def
	c.byTitle[def.Title] = &copied
	return nil
}

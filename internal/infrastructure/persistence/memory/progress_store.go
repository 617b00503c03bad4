package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ridepool-hub/ridepool-achievements/internal/domain/achievement"
	"github.com/ridepool-hub/ridepool-achievements/internal/domain/shared"
)

// ProgressStore is an in-memory achievement.ProgressRepository. All
// operations are atomic under a single mutex; the engine's per-key locking
// still governs the fetch-evaluate-save sequence across calls.
type ProgressStore struct {
	catalog achievement.CatalogRepository

	mu   sync.RWMutex
	rows map[progressKey]*achievement.UserProgress
}

type progressKey struct {
	userID        string
	achievementID string
}

// NewProgressStore creates an empty in-memory progress store. The catalog
// is consulted by ListByUser to join rows with achievement metadata.
func NewProgressStore(catalog achievement.CatalogRepository) *ProgressStore {
	return &ProgressStore{
		catalog: catalog,
		rows:    make(map[progressKey]*achievement.UserProgress),
	}
}

// GetOrCreate implements achievement.ProgressRepository.
func (s *ProgressStore) GetOrCreate(ctx context.Context, userID, achievementID string) (*achievement.UserProgress, error) {
	key := progressKey{userID: userID, achievementID: achievementID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if row, ok := s.rows[key]; ok {
		copied := *row
		return &copied, nil
	}

	row := achievement.NewUserProgress(userID, achievementID, time.Now().UTC())
	s.rows[key] = &row
	copied := row
	return &copied, nil
}

// Save implements achievement.ProgressRepository.
func (s *ProgressStore) Save(ctx context.Context, progress *achievement.UserProgress) error {
	key := progressKey{userID: progress.UserID, achievementID: progress.AchievementID}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[key]; !ok {
		return shared.ErrProgressRowNotFound
	}
	copied := *progress
	s.rows[key] = &copied
	return nil
}

// BulkEnsure implements achievement.ProgressRepository.
func (s *ProgressStore) BulkEnsure(ctx context.Context, userID string, achievementIDs []string) error {
	now := time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range achievementIDs {
		key := progressKey{userID: userID, achievementID: id}
		if _, ok := s.rows[key]; ok {
			continue
		}
		row := achievement.NewUserProgress(userID, id, now)
		s.rows[key] = &row
	}
	return nil
}

// ListByUser implements achievement.ProgressRepository.
func (s *ProgressStore) ListByUser(ctx context.Context, userID string) ([]*achievement.ProgressView, error) {
	defs, err := s.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*achievement.Definition, len(defs))
	for _, def := range defs {
		byID[def.ID] = def
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var views []*achievement.ProgressView
	for key, row := range s.rows {
		if key.userID != userID {
			continue
		}
		def, ok := byID[key.achievementID]
		if !ok {
			// Row for a definition that was removed from the catalog;
			// nothing to present.
			continue
		}
		views = append(views, &achievement.ProgressView{
			Title:          def.Title,
			Description:    def.Description,
			RequiredPoints: def.RequiredPoints,
			Progress:       row.Progress,
			Achieved:       row.Achieved,
			DateAchieved:   row.DateAchieved,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Title < views[j].Title })
	return views, nil
}

// Len reports the number of stored rows. Intended for tests.
func (s *ProgressStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

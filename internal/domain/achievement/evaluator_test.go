package achievement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridepool-hub/ridepool-achievements/internal/domain/shared"
)

func testDefinition(required int) Definition {
	return Definition{
		ID:             "def-1",
		Title:          TitleCritic,
		Description:    "Submit five valuations of fellow riders",
		RequiredPoints: required,
		CreatedAt:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestAdvance(t *testing.T) {
	occurred := time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC)

	t.Run("increments below threshold without achieving", func(t *testing.T) {
		row := NewUserProgress("user-1", "def-1", occurred)

		updated, changed, err := Advance(row, testDefinition(5), 1, occurred)

		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, 1, updated.Progress)
		assert.False(t, updated.Achieved)
		assert.Nil(t, updated.DateAchieved)
	})

	t.Run("achieves exactly at threshold", func(t *testing.T) {
		row := NewUserProgress("user-1", "def-1", occurred)
		row.Progress = 4

		updated, changed, err := Advance(row, testDefinition(5), 1, occurred)

		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, 5, updated.Progress)
		assert.True(t, updated.Achieved)
		require.NotNil(t, updated.DateAchieved)
		assert.True(t, updated.DateAchieved.Equal(occurred))
	})

	t.Run("achieves when delta overshoots threshold", func(t *testing.T) {
		row := NewUserProgress("user-1", "def-1", occurred)
		row.Progress = 3

		updated, changed, err := Advance(row, testDefinition(5), 4, occurred)

		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, 7, updated.Progress)
		assert.True(t, updated.Achieved)
	})

	t.Run("frozen after achieved", func(t *testing.T) {
		achievedAt := occurred.Add(-time.Hour)
		row := NewUserProgress("user-1", "def-1", occurred)
		row.Progress = 5
		row.Achieved = true
		row.DateAchieved = &achievedAt

		updated, changed, err := Advance(row, testDefinition(5), 1, occurred)

		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, 5, updated.Progress)
		require.NotNil(t, updated.DateAchieved)
		assert.True(t, updated.DateAchieved.Equal(achievedAt), "completion date must never move")
	})

	t.Run("zero delta is a no-op", func(t *testing.T) {
		row := NewUserProgress("user-1", "def-1", occurred)
		row.Progress = 2

		updated, changed, err := Advance(row, testDefinition(5), 0, occurred)

		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, 2, updated.Progress)
	})

	t.Run("rejects negative delta", func(t *testing.T) {
		row := NewUserProgress("user-1", "def-1", occurred)
		row.Progress = 2

		updated, changed, err := Advance(row, testDefinition(5), -1, occurred)

		require.ErrorIs(t, err, shared.ErrNegativeDelta)
		assert.False(t, changed)
		assert.Equal(t, 2, updated.Progress, "counter must stay monotonic")
	})

	t.Run("progress never resets across repeated advances", func(t *testing.T) {
		def := testDefinition(3)
		row := NewUserProgress("user-1", "def-1", occurred)

		last := -1
		for i := 0; i < 6; i++ {
			updated, _, err := Advance(row, def, 1, occurred.Add(time.Duration(i)*time.Minute))
			require.NoError(t, err)
			assert.GreaterOrEqual(t, updated.Progress, last)
			last = updated.Progress
			row = updated
		}
		assert.Equal(t, 3, row.Progress, "frozen at the threshold it completed on")
		assert.True(t, row.Achieved)
		require.NotNil(t, row.DateAchieved)
		assert.True(t, row.DateAchieved.Equal(occurred.Add(2*time.Minute)))
	})
}

func TestDefinitionValidate(t *testing.T) {
	tests := []struct {
		name    string
		def     Definition
		wantErr error
	}{
		{
			name: "valid definition",
			def:  Definition{Title: TitleFirstRoute, RequiredPoints: 1},
		},
		{
			name:    "empty title",
			def:     Definition{Title: "  ", RequiredPoints: 5},
			wantErr: shared.ErrEmptyValue,
		},
		{
			name:    "zero threshold",
			def:     Definition{Title: TitleCritic, RequiredPoints: 0},
			wantErr: shared.ErrInvalidThreshold,
		},
		{
			name:    "negative threshold",
			def:     Definition{Title: TitleCritic, RequiredPoints: -3},
			wantErr: shared.ErrInvalidThreshold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

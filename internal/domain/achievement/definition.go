// Package achievement contains the core domain model of the achievement
// progress engine: catalog definitions, per-user progress rows, and the
// evaluation rule that advances progress and promotes it to "achieved".
package achievement

import (
	"strings"
	"time"

	"github.com/ridepool-hub/ridepool-achievements/internal/domain/shared"
)

// Title is the unique, human-readable key of an achievement definition.
// Events are classified into titles, then resolved against the catalog.
type Title string

// Catalog titles seeded by the migrations. The catalog is administered
// data, not code: the engine never assumes these are the only titles.
const (
	// Route-created milestone tiers. Each tier is an independent progress
	// row driven by the same raw event.
	TitleFirstRoute   Title = "FirstRoute"
	TitleRouteRegular Title = "RouteRegular"
	TitleRouteVeteran Title = "RouteVeteran"

	// Route-joined milestone tiers.
	TitleFirstJoin         Title = "FirstJoin"
	TitleFrequentPassenger Title = "FrequentPassenger"
	TitleRoadCompanion     Title = "RoadCompanion"

	// Single-tier achievements.
	TitleRouteCompleted Title = "RouteCompleted"
	TitleCritic         Title = "Critic"
	TitleChameleon      Title = "Chameleon"
)

// Definition is a single entry of the achievement catalog. Immutable from
// the engine's viewpoint; created and administered externally.
type Definition struct {
	// ID is the stable identifier of the definition.
	ID string

	// Title is the unique key used for lookup during classification.
	Title Title

	// Description is shown to users by the presentation layer.
	Description string

	// RequiredPoints is the positive threshold at which the achievement
	// is granted. Completion uses >= so an overshooting delta still grants.
	RequiredPoints int

	// CreatedAt is when the definition was registered.
	CreatedAt time.Time
}

// Validate checks definition invariants.
func (d Definition) Validate() error {
	if strings.TrimSpace(string(d.Title)) == "" {
		return shared.NewDomainError("achievement", "Validate", shared.ErrEmptyValue, "title is required")
	}
	if d.RequiredPoints <= 0 {
		return shared.ErrInvalidThreshold
	}
	return nil
}

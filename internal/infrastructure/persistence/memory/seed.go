package memory

import (
	"github.com/ridepool-hub/ridepool-achievements/internal/domain/achievement"
)

// SeedDefinitions returns the default achievement catalog, mirroring the
// set installed by the PostgreSQL migrations. Used to bootstrap the
// in-memory catalog for dev deployments and tests.
func SeedDefinitions() []achievement.Definition {
	return []achievement.Definition{
		{Title: achievement.TitleFirstRoute, Description: "Publish your first route", RequiredPoints: 1},
		{Title: achievement.TitleRouteRegular, Description: "Publish ten routes", RequiredPoints: 10},
		{Title: achievement.TitleRouteVeteran, Description: "Publish fifty routes", RequiredPoints: 50},
		{Title: achievement.TitleFirstJoin, Description: "Join your first route", RequiredPoints: 1},
		{Title: achievement.TitleFrequentPassenger, Description: "Join ten routes", RequiredPoints: 10},
		{Title: achievement.TitleRoadCompanion, Description: "Join fifty routes", RequiredPoints: 50},
		{Title: achievement.TitleRouteCompleted, Description: "Complete ten routes as a driver", RequiredPoints: 10},
		{Title: achievement.TitleCritic, Description: "Submit five valuations of fellow riders", RequiredPoints: 5},
		{Title: achievement.TitleChameleon, Description: "Change your profile picture three times", RequiredPoints: 3},
	}
}

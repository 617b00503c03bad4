// Package engine implements the achievement progress engine: event
// classification, per-key serialized evaluation, and the ApplyEvent facade
// that external collaborators call when something happened in the platform.
package engine

import (
	"strings"

	"github.com/ridepool-hub/ridepool-achievements/internal/domain/achievement"
	"github.com/ridepool-hub/ridepool-achievements/internal/domain/shared"
)

// Increment is one classified effect of a domain event: advance the
// (UserID, Title) progress row by Delta. A zero delta only guarantees the
// row exists (pre-provisioning); it never advances progress.
type Increment struct {
	UserID string
	Title  achievement.Title
	Delta  int
}

// JoinedActor selects which actor "joined N routes" milestones are
// attributed to.
type JoinedActor string

const (
	// JoinedActorPassenger attributes joined-route milestones to the
	// joining passenger. This is the default.
	JoinedActorPassenger JoinedActor = "passenger"

	// JoinedActorDriver attributes joined-route milestones to the route's
	// driver, matching the platform's historical behavior. Kept behind a
	// feature flag for installations that depend on the old numbers.
	JoinedActorDriver JoinedActor = "driver"
)

// ClassifierConfig contains configuration for the Classifier.
type ClassifierConfig struct {
	// JoinedActor controls attribution of joined-route milestones.
	JoinedActor JoinedActor

	// EagerProvisioning makes AccountCreated yield a zero-delta entry for
	// every catalog title, guaranteeing the progress rows exist up front.
	// When disabled, rows are created lazily on the first qualifying event.
	EagerProvisioning bool

	// CreatedRouteTiers are the milestone titles advanced by every
	// RouteCreated event. All tiers share the raw event and accumulate
	// independently, so lower tiers complete first.
	CreatedRouteTiers []achievement.Title

	// JoinedRouteTiers are the milestone titles advanced by every
	// RouteJoined event.
	JoinedRouteTiers []achievement.Title

	// ProfileImageFields are the field names that count as a profile-image
	// change for the Chameleon achievement. Matching is case-insensitive
	// and ignores underscores.
	ProfileImageFields []string
}

// DefaultClassifierConfig returns the classification rules for the seeded
// catalog.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		JoinedActor:       JoinedActorPassenger,
		EagerProvisioning: true,
		CreatedRouteTiers: []achievement.Title{
			achievement.TitleFirstRoute,
			achievement.TitleRouteRegular,
			achievement.TitleRouteVeteran,
		},
		JoinedRouteTiers: []achievement.Title{
			achievement.TitleFirstJoin,
			achievement.TitleFrequentPassenger,
			achievement.TitleRoadCompanion,
		},
		ProfileImageFields: []string{"profile_image", "avatar", "image"},
	}
}

// Classifier maps an incoming domain event to the set of progress
// increments it causes. It is a pure component: no storage access, no side
// effects, deterministic output.
type Classifier struct {
	config      ClassifierConfig
	imageFields map[string]struct{}
}

// NewClassifier creates a Classifier from the given configuration.
func NewClassifier(config ClassifierConfig) *Classifier {
	if config.JoinedActor == "" {
		config.JoinedActor = JoinedActorPassenger
	}
	fields := make(map[string]struct{}, len(config.ProfileImageFields))
	for _, f := range config.ProfileImageFields {
		fields[normalizeField(f)] = struct{}{}
	}
	return &Classifier{config: config, imageFields: fields}
}

// Classify returns the increments caused by event. catalogTitles is the
// full set of titles currently in the catalog; it is only consulted for
// AccountCreated pre-provisioning. Titles emitted here that are absent from
// the catalog are skipped later by the facade, never treated as errors.
func (c *Classifier) Classify(event shared.Event, catalogTitles []achievement.Title) []Increment {
	switch e := event.(type) {
	case shared.AccountCreatedEvent:
		if !c.config.EagerProvisioning {
			return nil
		}
		incs := make([]Increment, 0, len(catalogTitles))
		for _, title := range catalogTitles {
			incs = append(incs, Increment{UserID: e.UserID, Title: title, Delta: 0})
		}
		return incs

	case shared.RouteCreatedEvent:
		incs := make([]Increment, 0, len(c.config.CreatedRouteTiers))
		for _, title := range c.config.CreatedRouteTiers {
			incs = append(incs, Increment{UserID: e.DriverID, Title: title, Delta: 1})
		}
		return incs

	case shared.RouteJoinedEvent:
		actor := e.PassengerID
		if c.config.JoinedActor == JoinedActorDriver {
			actor = e.DriverID
		}
		incs := make([]Increment, 0, len(c.config.JoinedRouteTiers))
		for _, title := range c.config.JoinedRouteTiers {
			incs = append(incs, Increment{UserID: actor, Title: title, Delta: 1})
		}
		return incs

	case shared.RouteFinalizedEvent:
		// Only the false→true transition of the finalized flag counts;
		// repeated finalize calls must not re-fire.
		if e.AlreadyFinalized {
			return nil
		}
		return []Increment{{UserID: e.DriverID, Title: achievement.TitleRouteCompleted, Delta: 1}}

	case shared.ValuationGivenEvent:
		// Attributed to the giver, not the receiver.
		return []Increment{{UserID: e.GiverID, Title: achievement.TitleCritic, Delta: 1}}

	case shared.ProfileChangedEvent:
		if !c.touchesProfileImage(e.ChangedFields) {
			return nil
		}
		return []Increment{{UserID: e.UserID, Title: achievement.TitleChameleon, Delta: 1}}

	default:
		return nil
	}
}

// touchesProfileImage reports whether any changed field is a profile-image
// equivalent. The producer diffs fields against the pre-update snapshot;
// an update that did not actually change the image must not list it here.
func (c *Classifier) touchesProfileImage(changedFields []string) bool {
	for _, f := range changedFields {
		if _, ok := c.imageFields[normalizeField(f)]; ok {
			return true
		}
	}
	return false
}

func normalizeField(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "")
}

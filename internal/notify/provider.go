package notify

import (
	"time"

	"github.com/johndauphine/propfolio/internal/learning"
)

// Provider defines the notification contract for onboarding and learning
// events. This interface allows for different notification backends (Slack,
// email, etc.) and enables easier testing through mock implementations.
type Provider interface {
	// PropertyOnboarded is sent once when a wizard session completes.
	PropertyOnboarded(propertyID, address string, duration time.Duration) error

	// LearningMigrated is sent when staged learning data reached the durable store.
	LearningMigrated(accountID string, migrated learning.Counts) error

	// LearningMigrationFailed is sent when a migration attempt fails.
	LearningMigrationFailed(accountID string, err error) error
}

// Ensure Notifier implements Provider
var _ Provider = (*Notifier)(nil)

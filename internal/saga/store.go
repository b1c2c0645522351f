package saga

import (
	"context"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
)

// Store persists intents. Get of an unknown id returns sentinel.ErrNotFound.
type Store interface {
	Create(ctx context.Context, intent Intent) error
	Get(ctx context.Context, intentID id.IntentID) (Intent, error)
	// Save overwrites the intent's status fields and every step status.
	Save(ctx context.Context, intent Intent) error
	ListPending(ctx context.Context) ([]Intent, error)
}

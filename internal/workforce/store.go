package workforce

import (
	"context"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
)

// Store is the persistence collaborator for the shared aggregates.
//
// Save methods are optimistic: the argument's Version must equal the stored
// version (0 for a new document) or the write fails with
// sentinel.ErrVersionMismatch. On success the stored version is incremented.
// Lookups of missing documents return sentinel.ErrNotFound.
type Store interface {
	Principal(ctx context.Context, principal id.PrincipalID) (Principal, error)
	Principals(ctx context.Context) ([]Principal, error)
	SavePrincipal(ctx context.Context, p Principal) (Principal, error)

	Facility(ctx context.Context, facility id.FacilityID) (Facility, error)
	// Facilities lists an organization's facilities; an empty org lists all.
	Facilities(ctx context.Context, org id.OrgID) ([]Facility, error)
	FacilitiesOf(ctx context.Context, principal id.PrincipalID) ([]Facility, error)
	SaveFacility(ctx context.Context, f Facility) (Facility, error)

	Shift(ctx context.Context, shift id.ShiftID) (Shift, error)
	ShiftsOf(ctx context.Context, principal id.PrincipalID) ([]Shift, error)
	ShiftsAt(ctx context.Context, facility id.FacilityID) ([]Shift, error)
	SaveShift(ctx context.Context, s Shift) (Shift, error)
	// DeleteShift is idempotent: deleting a missing shift succeeds.
	DeleteShift(ctx context.Context, shift id.ShiftID) error
}

// Package domain holds the typed identifiers shared by every module.
//
// Workforce documents (principals, facilities, shifts, contracts) are keyed by
// opaque document ids issued by the identity provider or the document store.
// Records created by this service (audit events, saga intents, payroll entries)
// are keyed by UUIDs.
package domain

import (
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

const maxDocumentIDLength = 128

type (
	PrincipalID    string
	FacilityID     string
	OrgID          string
	ShiftID        string
	ContractID     string
	LeaveRequestID string
	SwapID         string
)

func (id PrincipalID) String() string    { return string(id) }
func (id FacilityID) String() string     { return string(id) }
func (id OrgID) String() string          { return string(id) }
func (id ShiftID) String() string        { return string(id) }
func (id ContractID) String() string     { return string(id) }
func (id LeaveRequestID) String() string { return string(id) }
func (id SwapID) String() string         { return string(id) }

func (id PrincipalID) IsZero() bool { return id == "" }
func (id FacilityID) IsZero() bool  { return id == "" }

func ParsePrincipalID(s string) (PrincipalID, error) {
	v, err := parseDocumentID("principal", s)
	return PrincipalID(v), err
}

func ParseFacilityID(s string) (FacilityID, error) {
	v, err := parseDocumentID("facility", s)
	return FacilityID(v), err
}

func ParseOrgID(s string) (OrgID, error) {
	v, err := parseDocumentID("organization", s)
	return OrgID(v), err
}

func ParseShiftID(s string) (ShiftID, error) {
	v, err := parseDocumentID("shift", s)
	return ShiftID(v), err
}

func ParseContractID(s string) (ContractID, error) {
	v, err := parseDocumentID("contract", s)
	return ContractID(v), err
}

// parseDocumentID accepts 1-128 ASCII letters, digits, '-' and '_'.
func parseDocumentID(kind, s string) (string, error) {
	if s == "" {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "%s ID required", kind)
	}
	if len(s) > maxDocumentIDLength || !utf8.ValidString(s) {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s ID", kind)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s ID", kind)
		}
	}
	return s, nil
}

type (
	IntentID uuid.UUID
	EventID  uuid.UUID
	EntryID  uuid.UUID
)

func NewIntentID() IntentID { return IntentID(uuid.New()) }
func NewEventID() EventID   { return EventID(uuid.New()) }
func NewEntryID() EntryID   { return EntryID(uuid.New()) }

func (id IntentID) String() string { return uuid.UUID(id).String() }
func (id EventID) String() string  { return uuid.UUID(id).String() }
func (id EntryID) String() string  { return uuid.UUID(id).String() }

func (id IntentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EventID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

func ParseIntentID(s string) (IntentID, error) {
	u, err := parseUUID("intent", s)
	return IntentID(u), err
}

func ParseEntryID(s string) (EntryID, error) {
	u, err := parseUUID("entry", s)
	return EntryID(u), err
}

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s ID required", kind)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+kind+" ID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s ID", kind)
	}
	return u, nil
}

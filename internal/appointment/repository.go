package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrBlockedDateNotFound  = errors.New("blocked date not found")
)

type BlockedDateStore interface {
	// ActiveBlockedDate returns ErrBlockedDateNotFound when nothing is blocked on date.
	ActiveBlockedDate(ctx context.Context, date Date) (*BlockedDate, error)
	ListBlockedDates(ctx context.Context, activeOnly bool) ([]BlockedDate, error)
	// SaveBlockedDate inserts b, or updates it in place when b.ID already exists.
	SaveBlockedDate(ctx context.Context, b *BlockedDate) error
}

type SlotStore interface {
	ListSlotDefinitions(ctx context.Context, caseType CaseType) ([]SlotDefinition, error)
	// ReplaceSlotDefinitions swaps the whole catalog of caseType in one step.
	ReplaceSlotDefinitions(ctx context.Context, caseType CaseType, defs []SlotDefinition) error
	ListCaseTypes(ctx context.Context) ([]CaseType, error)
}

// Ledger is the append-only appointment book.
type Ledger interface {
	// CountBooked tallies appointments that still hold a seat, keyed by recorded time slot.
	CountBooked(ctx context.Context, date Date, caseType CaseType) (map[string]int, error)
	// AppendAppointment returns ErrDuplicateID when a.ID is already taken.
	AppendAppointment(ctx context.Context, a *Appointment) error
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	FindAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error)
	// UpdateAppointmentStatus only applies when the row is still in status from;
	// otherwise it returns ErrAppointmentNotFound. at becomes the row's UpdatedAt.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, registrationID *uuid.UUID, at time.Time) (*Appointment, error)
}

type RegistrationStore interface {
	CreateRegistration(ctx context.Context, r *Registration) error
	// FindSameDay returns the latest registration of patientID on date.
	FindSameDay(ctx context.Context, patientID string, date Date) (*Registration, error)
}

type EventStore interface {
	// InsertEvent stores ev and sets ev.ID to the assigned sequence number.
	InsertEvent(ctx context.Context, ev *EventLog) error
}

// Repository contains all storage interactions needed by the service.
type Repository interface {
	BlockedDateStore
	SlotStore
	Ledger
	RegistrationStore
	EventStore
}

// EventPublisher forwards recorded events to other systems.
type EventPublisher interface {
	Publish(ctx context.Context, ev EventLog) error
}

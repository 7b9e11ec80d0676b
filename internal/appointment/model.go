package appointment

import (
	"time"

	"github.com/google/uuid"
)

type CaseType string

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "Pending"
	StatusCompleted AppointmentStatus = "Selesai"
	StatusMissed    AppointmentStatus = "Tidak Hadir"
	StatusCancelled AppointmentStatus = "Cancelled"
)

// Terminal reports whether no further transition is allowed out of s.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusMissed || s == StatusCancelled
}

func (s AppointmentStatus) Valid() bool {
	return s == StatusPending || s.Terminal()
}

// ConsumesCapacity reports whether an appointment in this status still holds its seat.
func (s AppointmentStatus) ConsumesCapacity() bool {
	return s != StatusCancelled
}

type RegistrationKind string

const (
	RegistrationOPD RegistrationKind = "OPD"
	RegistrationMCH RegistrationKind = "MCH"
)

// AnyTime is the slot time of a case type whose bookings share one pool for the whole day.
const AnyTime = "any"

type SlotDefinition struct {
	CaseType   CaseType       `json:"case_type"`
	Time       string         `json:"time"`
	Capacity   int            `json:"capacity"`
	ActiveDays []time.Weekday `json:"active_days,omitempty"`
	UpdatedBy  string         `json:"updated_by,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at,omitempty"`
}

func (d SlotDefinition) IsAnyTime() bool {
	return d.Time == AnyTime
}

// ActiveOn reports whether the definition is offered on weekday. No ActiveDays means every day.
func (d SlotDefinition) ActiveOn(weekday time.Weekday) bool {
	if len(d.ActiveDays) == 0 {
		return true
	}
	for _, wd := range d.ActiveDays {
		if wd == weekday {
			return true
		}
	}
	return false
}

type BlockedDate struct {
	ID        uuid.UUID `json:"id"`
	Date      Date      `json:"date"`
	Reason    string    `json:"reason"`
	Category  string    `json:"category"`
	Active    bool      `json:"active"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BlockedDateCategories are the categories the clinic admins pick from.
var BlockedDateCategories = []string{
	"Cuti Perayaan",
	"Cuti Peristiwa",
	"Cuti Khas",
	"Latihan Staff",
	"Penyelenggaraan",
	"Lain-lain",
}

type Appointment struct {
	ID             uuid.UUID         `json:"id"`
	PatientID      string            `json:"patient_id"`
	PatientName    string            `json:"patient_name"`
	Phone          string            `json:"phone"`
	CaseType       CaseType          `json:"case_type"`
	Date           Date              `json:"date"`
	TimeSlot       string            `json:"time_slot"`
	Notes          string            `json:"notes,omitempty"`
	Status         AppointmentStatus `json:"status"`
	RegistrationID *uuid.UUID        `json:"registration_id,omitempty"`
	CreatedBy      string            `json:"created_by"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

type Registration struct {
	ID                   uuid.UUID        `json:"id"`
	Kind                 RegistrationKind `json:"kind"`
	PatientID            string           `json:"patient_id"`
	Name                 string           `json:"name"`
	Age                  int              `json:"age"`
	Gender               string           `json:"gender"`
	Phone                string           `json:"phone"`
	VisitType            string           `json:"visit_type"`
	Status               string           `json:"status"`
	OutOfArea            bool             `json:"out_of_area"`
	OutOfAreaDescription string           `json:"out_of_area_description,omitempty"`
	Date                 Date             `json:"date"`
	Time                 string           `json:"time"`
	CreatedBy            string           `json:"created_by"`
	CreatedAt            time.Time        `json:"created_at"`
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type AppointmentFilter struct {
	Date      *Date
	Before    *Date
	PatientID string
	NameQuery string
	CaseType  CaseType
	Status    AppointmentStatus
	Limit     int
	Offset    int
}

package appointment

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps everything in process memory. It backs tests, local runs
// with STORAGE=memory and the simulator.
type MemoryRepository struct {
	mu            sync.RWMutex
	blocked       []BlockedDate
	slots         map[CaseType][]SlotDefinition
	appointments  []Appointment
	byID          map[uuid.UUID]int
	registrations []Registration
	events        []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		slots: map[CaseType][]SlotDefinition{},
		byID:  map[uuid.UUID]int{},
	}
}

func (m *MemoryRepository) ActiveBlockedDate(_ context.Context, date Date) (*BlockedDate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, b := range m.blocked {
		if b.Active && b.Date == date {
			out := b
			return &out, nil
		}
	}
	return nil, ErrBlockedDateNotFound
}

func (m *MemoryRepository) ListBlockedDates(_ context.Context, activeOnly bool) ([]BlockedDate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []BlockedDate
	for _, b := range m.blocked {
		if activeOnly && !b.Active {
			continue
		}
		result = append(result, b)
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (m *MemoryRepository) SaveBlockedDate(_ context.Context, b *BlockedDate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.blocked {
		if b.Active && m.blocked[i].Active && m.blocked[i].Date == b.Date && m.blocked[i].ID != b.ID {
			return fmt.Errorf("%s already has an active block", b.Date)
		}
	}
	for i := range m.blocked {
		if m.blocked[i].ID == b.ID {
			m.blocked[i].Reason = b.Reason
			m.blocked[i].Category = b.Category
			m.blocked[i].Active = b.Active
			m.blocked[i].UpdatedAt = b.UpdatedAt
			return nil
		}
	}
	m.blocked = append(m.blocked, *b)
	return nil
}

func (m *MemoryRepository) ListSlotDefinitions(_ context.Context, caseType CaseType) ([]SlotDefinition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	defs := m.slots[caseType]
	out := make([]SlotDefinition, len(defs))
	copy(out, defs)
	return out, nil
}

func (m *MemoryRepository) ReplaceSlotDefinitions(_ context.Context, caseType CaseType, defs []SlotDefinition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(defs) == 0 {
		delete(m.slots, caseType)
		return nil
	}
	stored := make([]SlotDefinition, len(defs))
	copy(stored, defs)
	m.slots[caseType] = stored
	return nil
}

func (m *MemoryRepository) ListCaseTypes(_ context.Context) ([]CaseType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]CaseType, 0, len(m.slots))
	for ct := range m.slots {
		result = append(result, ct)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}

func (m *MemoryRepository) CountBooked(_ context.Context, date Date, caseType CaseType) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := map[string]int{}
	for _, a := range m.appointments {
		if a.Date == date && a.CaseType == caseType && a.Status.ConsumesCapacity() {
			counts[a.TimeSlot]++
		}
	}
	return counts, nil
}

func (m *MemoryRepository) AppendAppointment(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[a.ID]; ok {
		return ErrDuplicateID
	}
	m.byID[a.ID] = len(m.appointments)
	m.appointments = append(m.appointments, *a)
	return nil
}

func (m *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := m.appointments[i]
	return &out, nil
}

func (f AppointmentFilter) matches(a Appointment) bool {
	if f.Date != nil && a.Date != *f.Date {
		return false
	}
	if f.Before != nil && !a.Date.Before(*f.Before) {
		return false
	}
	if f.PatientID != "" && a.PatientID != f.PatientID {
		return false
	}
	if f.NameQuery != "" && !strings.Contains(strings.ToLower(a.PatientName), strings.ToLower(f.NameQuery)) {
		return false
	}
	if f.CaseType != "" && a.CaseType != f.CaseType {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}

func (m *MemoryRepository) FindAppointments(_ context.Context, filter AppointmentFilter) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Appointment
	for _, a := range m.appointments {
		if filter.matches(a) {
			result = append(result, a)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].TimeSlot < result[j].TimeSlot
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return nil, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *MemoryRepository) UpdateAppointmentStatus(_ context.Context, id uuid.UUID, from, to AppointmentStatus, registrationID *uuid.UUID, at time.Time) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i, ok := m.byID[id]
	if !ok || m.appointments[i].Status != from {
		return nil, ErrAppointmentNotFound
	}

	a := &m.appointments[i]
	a.Status = to
	if registrationID != nil {
		rid := *registrationID
		a.RegistrationID = &rid
	}
	a.UpdatedAt = at

	out := *a
	return &out, nil
}

func (m *MemoryRepository) CreateRegistration(_ context.Context, r *Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.registrations = append(m.registrations, *r)
	return nil
}

func (m *MemoryRepository) FindSameDay(_ context.Context, patientID string, date Date) (*Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *Registration
	for i := range m.registrations {
		r := &m.registrations[i]
		if r.PatientID != patientID || r.Date != date {
			continue
		}
		if latest == nil || !r.CreatedAt.Before(latest.CreatedAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, ErrRegistrationNotFound
	}
	out := *latest
	return &out, nil
}

func (m *MemoryRepository) InsertEvent(_ context.Context, ev *EventLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ev.ID = int64(len(m.events) + 1)
	m.events = append(m.events, *ev)
	return nil
}

// Events returns a copy of the recorded event log.
func (m *MemoryRepository) Events() []EventLog {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]EventLog, len(m.events))
	copy(out, m.events)
	return out
}

package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/lock"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentLinked        = "APPOINTMENT_LINKED"
	EventAppointmentMissed        = "APPOINTMENT_MISSED"
	EventRegistrationCreated      = "REGISTRATION_CREATED"
	EventDateBlocked              = "DATE_BLOCKED"
	EventDateUnblocked            = "DATE_UNBLOCKED"
	EventSlotsUpdated             = "SLOTS_UPDATED"
)

const maxIDAttempts = 3

type BookingRequest struct {
	PatientID   string   `json:"patient_id" validate:"required,patient_id"`
	PatientName string   `json:"patient_name" validate:"required,max=200"`
	Phone       string   `json:"phone" validate:"required,phone_my"`
	CaseType    CaseType `json:"case_type" validate:"required,max=100"`
	Date        Date     `json:"date"`
	TimeSlot    string   `json:"time_slot" validate:"required,slot_time"`
	Notes       string   `json:"notes" validate:"max=1000"`
	CreatedBy   string   `json:"created_by" validate:"max=100"`
}

func (r *BookingRequest) normalize() {
	r.PatientID = strings.ToUpper(strings.TrimSpace(r.PatientID))
	r.PatientName = strings.TrimSpace(r.PatientName)
	r.Phone = strings.TrimSpace(r.Phone)
	r.CaseType = CaseType(strings.TrimSpace(string(r.CaseType)))
	r.TimeSlot = strings.TrimSpace(r.TimeSlot)
	r.Notes = strings.TrimSpace(r.Notes)
	if r.CreatedBy == "" {
		r.CreatedBy = "system"
	}
}

func (r BookingRequest) validate() error {
	var extra map[string]string
	if r.Date.IsZero() {
		extra = map[string]string{"date": "is required"}
	}
	return validateStruct(r, extra)
}

type Option func(*Service)

// WithPublisher forwards every recorded event to p.
func WithPublisher(p EventPublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithIDGenerator replaces uuid.New for appointment ids.
func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(s *Service) { s.newID = fn }
}

type Service struct {
	repo      Repository
	locker    lock.Locker
	policy    Policy
	clock     Clock
	calendar  *CalendarPolicy
	catalog   *SlotCatalog
	resolver  *Resolver
	publisher EventPublisher
	newID     func() uuid.UUID
	log       *zap.Logger
}

func NewService(repo Repository, locker lock.Locker, policy Policy, clock Clock, log *zap.Logger, opts ...Option) *Service {
	calendar := NewCalendarPolicy(policy, repo, clock)
	catalog := NewSlotCatalog(repo)

	s := &Service{
		repo:     repo,
		locker:   locker,
		policy:   policy,
		clock:    clock,
		calendar: calendar,
		catalog:  catalog,
		resolver: NewResolver(calendar, catalog, repo),
		newID:    uuid.New,
		log:      log.Named("appointment"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the current clinic day.
func (s *Service) Today() Date {
	return s.clock.Today()
}

// Resolve returns the bookable options of caseType on date.
func (s *Service) Resolve(ctx context.Context, date Date, caseType CaseType) (*Availability, error) {
	return s.resolver.Resolve(ctx, date, caseType)
}

func bookingLockKey(date Date, caseType CaseType) string {
	// One key per (date, case type): the "any" pool spans every recorded time slot.
	return fmt.Sprintf("booking:%s:%s", date, caseType)
}

// Book re-resolves availability and appends the appointment while holding the booking
// lock of (date, case type), so concurrent bookers can never overfill a slot.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	req.normalize()
	if err := req.validate(); err != nil {
		return nil, err
	}

	var created *Appointment

	err := s.locker.WithLock(ctx, bookingLockKey(req.Date, req.CaseType), func(lockCtx context.Context) error {
		avail, err := s.resolver.Resolve(lockCtx, req.Date, req.CaseType)
		if err != nil {
			return err
		}

		slot, err := pickSlot(avail, req.TimeSlot)
		if err != nil {
			return err
		}
		if slot.Available <= 0 {
			return &PolicyError{
				Kind:     KindSlotFull,
				Reason:   fmt.Sprintf("%s %s on %s is full (%d/%d booked)", req.CaseType, slot.Time, req.Date, slot.Booked, slot.Capacity),
				Date:     req.Date,
				CaseType: req.CaseType,
				TimeSlot: req.TimeSlot,
			}
		}

		now := s.clock.Now()
		appt := &Appointment{
			PatientID:   req.PatientID,
			PatientName: req.PatientName,
			Phone:       req.Phone,
			CaseType:    req.CaseType,
			Date:        req.Date,
			TimeSlot:    req.TimeSlot,
			Notes:       req.Notes,
			Status:      StatusPending,
			CreatedBy:   req.CreatedBy,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.appendWithFreshID(lockCtx, appt); err != nil {
			return err
		}
		created = appt

		s.logEvent(lockCtx, &appt.ID, EventAppointmentCreated, map[string]any{
			"patient_id": appt.PatientID,
			"case_type":  appt.CaseType,
			"date":       appt.Date.String(),
			"time_slot":  appt.TimeSlot,
			"created_by": appt.CreatedBy,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, lock.ErrLockNotAcquired) {
			return nil, fmt.Errorf("%w: %v", ErrSlotBeingBooked, err)
		}
		return nil, err
	}

	s.log.Info("appointment booked",
		zap.String("appointment_id", created.ID.String()),
		zap.String("case_type", string(created.CaseType)),
		zap.String("date", created.Date.String()),
		zap.String("time_slot", created.TimeSlot),
	)

	if s.policy.AutoLinkOnBook {
		res, err := s.AutoLink(ctx, created.PatientID, created.Date)
		if err != nil {
			// The booking is committed; linking is retried on registration or via /appointments/link.
			s.log.Warn("auto-link after booking failed",
				zap.String("appointment_id", created.ID.String()),
				zap.Error(err),
			)
		}
		for i := range res.Appointments {
			if res.Appointments[i].ID == created.ID {
				linked := res.Appointments[i]
				created = &linked
			}
		}
	}

	return created, nil
}

// pickSlot maps a requested time onto the resolved options. A time the day does not list
// falls into the shared "any" pool when the case type has one.
func pickSlot(avail *Availability, timeSlot string) (SlotAvailability, error) {
	if slot, ok := avail.Slot(timeSlot); ok {
		return slot, nil
	}
	if slot, ok := avail.Slot(AnyTime); ok {
		return slot, nil
	}

	offered := make([]string, len(avail.Slots))
	for i, sl := range avail.Slots {
		offered[i] = sl.Time
	}
	return SlotAvailability{}, &PolicyError{
		Kind:     KindInvalidSlot,
		Reason:   fmt.Sprintf("%s is not offered for %s on %s (offered: %s)", timeSlot, avail.CaseType, avail.Date, strings.Join(offered, ", ")),
		Date:     avail.Date,
		CaseType: avail.CaseType,
		TimeSlot: timeSlot,
	}
}

// appendWithFreshID retries id collisions internally; callers never see ErrDuplicateID.
func (s *Service) appendWithFreshID(ctx context.Context, appt *Appointment) error {
	for attempt := 1; attempt <= maxIDAttempts; attempt++ {
		appt.ID = s.newID()
		err := s.repo.AppendAppointment(ctx, appt)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrDuplicateID) {
			return fmt.Errorf("append appointment: %w", err)
		}
		s.log.Warn("appointment id collision, regenerating",
			zap.String("appointment_id", appt.ID.String()),
			zap.Int("attempt", attempt),
		)
	}
	return fmt.Errorf("append appointment: no unique id after %d attempts", maxIDAttempts)
}

// UpdateStatus is the explicit admin transition out of Pending.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to AppointmentStatus, actor string) (*Appointment, error) {
	if !to.Valid() {
		return nil, &ValidationError{Fields: map[string]string{"status": fmt.Sprintf("unknown status %q", to)}}
	}

	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if appt.Status != StatusPending || to == StatusPending {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, appt.Status, to)
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, id, StatusPending, to, nil, s.clock.Now())
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Someone else moved it out of Pending first.
			return nil, fmt.Errorf("%w: appointment %s is no longer pending", ErrInvalidStatusTransition, id)
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.logEvent(ctx, &updated.ID, EventAppointmentStatusChanged, map[string]any{
		"from":  StatusPending,
		"to":    to,
		"actor": actor,
	})

	return updated, nil
}

// MarkMissed moves Pending appointments dated before today to Tidak Hadir.
// It is intended to be called by the worker periodically.
func (s *Service) MarkMissed(ctx context.Context) (int, error) {
	today := s.clock.Today()
	candidates, err := s.repo.FindAppointments(ctx, AppointmentFilter{Status: StatusPending, Before: &today})
	if err != nil {
		return 0, fmt.Errorf("find overdue pending appointments: %w", err)
	}

	marked := 0
	for _, appt := range candidates {
		_, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusMissed, nil, s.clock.Now())
		if err != nil {
			if !errors.Is(err, ErrAppointmentNotFound) {
				s.log.Error("mark appointment missed", zap.String("appointment_id", appt.ID.String()), zap.Error(err))
			}
			continue
		}
		marked++
		s.logEvent(ctx, &appt.ID, EventAppointmentMissed, map[string]any{
			"reason": "worker",
			"date":   appt.Date.String(),
		})
	}

	return marked, nil
}

// GetAppointment retrieves an appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// SearchAppointments lists appointments by date, patient, name, case type or status.
func (s *Service) SearchAppointments(ctx context.Context, filter AppointmentFilter) ([]Appointment, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20 // default
	}
	if filter.Limit > 100 {
		filter.Limit = 100 // max
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	appts, err := s.repo.FindAppointments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("search appointments: %w", err)
	}
	return appts, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID *uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error("marshal event payload", zap.String("event", eventType), zap.Error(err))
		data = nil
	}

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: appointmentID,
		Payload:       data,
		CreatedAt:     s.clock.Now(),
	}

	if err := s.repo.InsertEvent(ctx, &ev); err != nil {
		s.log.Error("insert event log", zap.String("event", eventType), zap.Error(err))
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.log.Warn("publish event", zap.String("event", eventType), zap.Error(err))
		}
	}
}

package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type LinkResult struct {
	Linked         bool          `json:"linked"`
	RegistrationID *uuid.UUID    `json:"registration_id,omitempty"`
	Appointments   []Appointment `json:"appointments,omitempty"`
}

func normalizePatientID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// AutoLink completes the patient's Pending appointments on date once a same-day
// registration exists. Transitions are conditional on Pending, so repeated or concurrent
// runs leave the same end state as a single one.
func (s *Service) AutoLink(ctx context.Context, patientID string, date Date) (LinkResult, error) {
	patientID = normalizePatientID(patientID)

	reg, err := s.repo.FindSameDay(ctx, patientID, date)
	if err != nil {
		if errors.Is(err, ErrRegistrationNotFound) {
			return LinkResult{}, nil
		}
		return LinkResult{}, fmt.Errorf("find same-day registration: %w", err)
	}

	pending, err := s.repo.FindAppointments(ctx, AppointmentFilter{
		Date:      &date,
		PatientID: patientID,
		Status:    StatusPending,
	})
	if err != nil {
		return LinkResult{}, fmt.Errorf("find pending appointments: %w", err)
	}

	result := LinkResult{RegistrationID: &reg.ID}
	for _, appt := range pending {
		updated, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, StatusPending, StatusCompleted, &reg.ID, s.clock.Now())
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				continue
			}
			return result, fmt.Errorf("link appointment %s: %w", appt.ID, err)
		}
		result.Appointments = append(result.Appointments, *updated)
		s.logEvent(ctx, &updated.ID, EventAppointmentLinked, map[string]any{
			"registration_id": reg.ID.String(),
			"patient_id":      patientID,
			"date":            date.String(),
		})
	}
	result.Linked = len(result.Appointments) > 0

	if result.Linked {
		s.log.Info("appointments linked to registration",
			zap.String("registration_id", reg.ID.String()),
			zap.Int("count", len(result.Appointments)),
		)
	}

	return result, nil
}

type RegistrationRequest struct {
	Kind                 RegistrationKind `json:"kind" validate:"required,oneof=OPD MCH"`
	PatientID            string           `json:"patient_id" validate:"required,patient_id"`
	Name                 string           `json:"name" validate:"required,max=200"`
	Age                  int              `json:"age" validate:"gte=0,lte=150"`
	Gender               string           `json:"gender" validate:"required,max=20"`
	Phone                string           `json:"phone" validate:"required,phone_my"`
	VisitType            string           `json:"visit_type" validate:"required,max=100"`
	Status               string           `json:"status" validate:"max=50"`
	OutOfArea            bool             `json:"out_of_area"`
	OutOfAreaDescription string           `json:"out_of_area_description" validate:"required_if=OutOfArea true,max=200"`
	CreatedBy            string           `json:"created_by" validate:"max=100"`
}

// Register records today's visit and then links any appointment the patient had booked for today.
func (s *Service) Register(ctx context.Context, req RegistrationRequest) (*Registration, LinkResult, error) {
	req.PatientID = normalizePatientID(req.PatientID)
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req, nil); err != nil {
		return nil, LinkResult{}, err
	}
	if req.Status == "" {
		req.Status = "Active"
	}
	if req.CreatedBy == "" {
		req.CreatedBy = "system"
	}

	now := s.clock.Now()
	reg := &Registration{
		ID:                   uuid.New(),
		Kind:                 req.Kind,
		PatientID:            req.PatientID,
		Name:                 req.Name,
		Age:                  req.Age,
		Gender:               req.Gender,
		Phone:                req.Phone,
		VisitType:            req.VisitType,
		Status:               req.Status,
		OutOfArea:            req.OutOfArea,
		OutOfAreaDescription: req.OutOfAreaDescription,
		Date:                 DateOf(now),
		Time:                 now.Format("15:04:05"),
		CreatedBy:            req.CreatedBy,
		CreatedAt:            now,
	}

	if err := s.repo.CreateRegistration(ctx, reg); err != nil {
		return nil, LinkResult{}, fmt.Errorf("create registration: %w", err)
	}

	s.logEvent(ctx, nil, EventRegistrationCreated, map[string]any{
		"registration_id": reg.ID.String(),
		"kind":            reg.Kind,
		"patient_id":      reg.PatientID,
	})

	linked, err := s.AutoLink(ctx, reg.PatientID, reg.Date)
	if err != nil {
		return reg, LinkResult{}, err
	}
	return reg, linked, nil
}

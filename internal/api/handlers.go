package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/appointment"
)

// AppointmentService is what the HTTP layer needs from the booking core.
type AppointmentService interface {
	Today() appointment.Date
	Resolve(ctx context.Context, date appointment.Date, caseType appointment.CaseType) (*appointment.Availability, error)
	Book(ctx context.Context, req appointment.BookingRequest) (*appointment.Appointment, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	SearchAppointments(ctx context.Context, filter appointment.AppointmentFilter) ([]appointment.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to appointment.AppointmentStatus, actor string) (*appointment.Appointment, error)
	AutoLink(ctx context.Context, patientID string, date appointment.Date) (appointment.LinkResult, error)
	Register(ctx context.Context, req appointment.RegistrationRequest) (*appointment.Registration, appointment.LinkResult, error)
	SetBlockedDate(ctx context.Context, req appointment.BlockedDateRequest) (*appointment.BlockedDate, error)
	ListBlockedDates(ctx context.Context, activeOnly bool) ([]appointment.BlockedDate, error)
	UpsertSlotCatalog(ctx context.Context, caseType appointment.CaseType, defs []appointment.SlotDefinition, actor string) ([]appointment.SlotDefinition, error)
	ListSlots(ctx context.Context, caseType appointment.CaseType) ([]appointment.SlotDefinition, error)
	CaseTypes(ctx context.Context) ([]appointment.CaseType, error)
}

type handlers struct {
	svc AppointmentService
	log *zap.Logger
}

func invalidParam(field, msg string) error {
	return &appointment.ValidationError{Fields: map[string]string{field: msg}}
}

func (h *handlers) availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := appointment.ParseDate(q.Get("date"))
	if err != nil {
		handleServiceError(w, r, h.log, invalidParam("date", "must be YYYY-MM-DD"))
		return
	}
	caseType := appointment.CaseType(q.Get("case_type"))
	if caseType == "" {
		handleServiceError(w, r, h.log, invalidParam("case_type", "is required"))
		return
	}

	avail, err := h.svc.Resolve(r.Context(), date, caseType)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, avail)
}

func (h *handlers) caseTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.svc.CaseTypes(r.Context())
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	if types == nil {
		types = []appointment.CaseType{}
	}
	writeJSON(w, http.StatusOK, types)
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req appointment.BookingRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	appt, err := h.svc.Book(r.Context(), req)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, appt)
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := appointment.AppointmentFilter{
		PatientID: q.Get("patient_id"),
		NameQuery: q.Get("name"),
		CaseType:  appointment.CaseType(q.Get("case_type")),
		Status:    appointment.AppointmentStatus(q.Get("status")),
	}

	if raw := q.Get("date"); raw != "" {
		date, err := appointment.ParseDate(raw)
		if err != nil {
			handleServiceError(w, r, h.log, invalidParam("date", "must be YYYY-MM-DD"))
			return
		}
		filter.Date = &date
	}
	if filter.Status != "" && !filter.Status.Valid() {
		handleServiceError(w, r, h.log, invalidParam("status", "unknown status"))
		return
	}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		handleServiceError(w, r, h.log, invalidParam("limit", "must be a number"))
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		handleServiceError(w, r, h.log, invalidParam("offset", "must be a number"))
		return
	}

	appts, err := h.svc.SearchAppointments(r.Context(), filter)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	if appts == nil {
		appts = []appointment.Appointment{}
	}

	writeJSON(w, http.StatusOK, AppointmentListResponse{Items: appts, Limit: filter.Limit, Offset: filter.Offset})
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func appointmentIDParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, invalidParam("id", "must be a valid UUID")
	}
	return id, nil
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, err := appointmentIDParam(r)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	appt, err := h.svc.GetAppointment(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, appt)
}

func (h *handlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := appointmentIDParam(r)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	var req StatusUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	appt, err := h.svc.UpdateStatus(r.Context(), id, req.Status, req.Actor)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, appt)
}

func (h *handlers) linkAppointments(w http.ResponseWriter, r *http.Request) {
	var req LinkRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	if req.PatientID == "" {
		handleServiceError(w, r, h.log, invalidParam("patient_id", "is required"))
		return
	}
	if req.Date.IsZero() {
		req.Date = h.svc.Today()
	}

	res, err := h.svc.AutoLink(r.Context(), req.PatientID, req.Date)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) createRegistration(w http.ResponseWriter, r *http.Request) {
	var req appointment.RegistrationRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	reg, link, err := h.svc.Register(r.Context(), req)
	if err != nil {
		// A registration that was stored but failed to link is still reported as an error.
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, RegistrationResponse{Registration: reg, Link: link})
}

package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-slot-booking/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &appointment.ValidationError{Fields: map[string]string{"body": "could not parse JSON: " + err.Error()}}
	}
	return nil
}

var policyStatus = map[appointment.PolicyKind]int{
	appointment.KindDateUnavailable: http.StatusUnprocessableEntity,
	appointment.KindNotConfigured:   http.StatusUnprocessableEntity,
	appointment.KindInvalidSlot:     http.StatusUnprocessableEntity,
	appointment.KindSlotFull:        http.StatusConflict,
}

// handleServiceError maps service errors onto the API error codes. Anything unknown is a 500.
func handleServiceError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	if pe, ok := appointment.AsPolicyError(err); ok {
		writeError(w, policyStatus[pe.Kind], string(pe.Kind), pe.Reason)
		return
	}

	var verr *appointment.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_failed",
			Details: summarizeFields(verr.Fields),
			Fields:  verr.Fields,
		})
		return
	}

	switch {
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrRegistrationNotFound):
		writeError(w, http.StatusNotFound, "registration_not_found", err.Error())
	case errors.Is(err, appointment.ErrBlockedDateNotFound):
		writeError(w, http.StatusNotFound, "blocked_date_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidSlotDefinition):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// summarizeFields renders every field error in key order.
func summarizeFields(fields map[string]string) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, len(keys))
	for i, k := range keys {
		msgs[i] = fmt.Sprintf("%s %s", k, fields[k])
	}
	return strings.Join(msgs, "; ")
}

package api

import (
	"github.com/hackgods/clinic-slot-booking/internal/appointment"
)

type StatusUpdateRequest struct {
	Status appointment.AppointmentStatus `json:"status"`
	Actor  string                        `json:"actor"`
}

type LinkRequest struct {
	PatientID string           `json:"patient_id"`
	Date      appointment.Date `json:"date"`
}

type BlockedDateBody struct {
	Reason    string `json:"reason"`
	Category  string `json:"category"`
	Active    *bool  `json:"active"`
	CreatedBy string `json:"created_by"`
}

type SlotCatalogRequest struct {
	Slots     []appointment.SlotDefinition `json:"slots"`
	UpdatedBy string                       `json:"updated_by"`
}

type AppointmentListResponse struct {
	Items  []appointment.Appointment `json:"items"`
	Limit  int                       `json:"limit"`
	Offset int                       `json:"offset"`
}

type RegistrationResponse struct {
	Registration *appointment.Registration `json:"registration"`
	Link         appointment.LinkResult    `json:"link"`
}

type SlotCatalogResponse struct {
	CaseType appointment.CaseType         `json:"case_type"`
	Slots    []appointment.SlotDefinition `json:"slots"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

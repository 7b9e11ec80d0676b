package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-slot-booking/internal/appointment"
)

func (h *handlers) listBlockedDates(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			handleServiceError(w, r, h.log, invalidParam("active", "must be true or false"))
			return
		}
		activeOnly = v
	}

	dates, err := h.svc.ListBlockedDates(r.Context(), activeOnly)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	if dates == nil {
		dates = []appointment.BlockedDate{}
	}

	writeJSON(w, http.StatusOK, dates)
}

func (h *handlers) putBlockedDate(w http.ResponseWriter, r *http.Request) {
	date, err := appointment.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		handleServiceError(w, r, h.log, invalidParam("date", "must be YYYY-MM-DD"))
		return
	}

	var body BlockedDateBody
	if err := decodeJSON(r, &body); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	active := true
	if body.Active != nil {
		active = *body.Active
	}

	blocked, err := h.svc.SetBlockedDate(r.Context(), appointment.BlockedDateRequest{
		Date:     date,
		Reason:   body.Reason,
		Category: body.Category,
		Active:   active,
		Actor:    body.CreatedBy,
	})
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, blocked)
}

func (h *handlers) getSlots(w http.ResponseWriter, r *http.Request) {
	caseType := appointment.CaseType(chi.URLParam(r, "caseType"))

	defs, err := h.svc.ListSlots(r.Context(), caseType)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	if defs == nil {
		defs = []appointment.SlotDefinition{}
	}

	writeJSON(w, http.StatusOK, SlotCatalogResponse{CaseType: caseType, Slots: defs})
}

func (h *handlers) putSlots(w http.ResponseWriter, r *http.Request) {
	caseType := appointment.CaseType(chi.URLParam(r, "caseType"))

	var req SlotCatalogRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	stored, err := h.svc.UpsertSlotCatalog(r.Context(), caseType, req.Slots, req.UpdatedBy)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, SlotCatalogResponse{CaseType: caseType, Slots: stored})
}

package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meracare/frontdesk/internal/dispatch"
	"github.com/meracare/frontdesk/internal/queue"
	"github.com/meracare/frontdesk/internal/shared/errors"
)

// Action endpoints front the dispatcher. They validate shape only; whether
// an action is allowed is the HIS's call, and a rejection comes back with
// the HIS reason verbatim.

// ConfirmOrder confirms a pending order and, when it closes out the
// encounter's last order, drives the follow-up workflow transition.
func (h *Handler) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		EncounterID        string                  `json:"encounter_id"`
		LastOrderCompleted bool                    `json:"last_order_completed"`
		HasImagingOrder    bool                    `json:"has_imaging_order"`
		Choice             dispatch.OperatorChoice `json:"choice"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	err := h.dispatcher.ConfirmOrder(r.Context(), dispatch.ConfirmOrderRequest{
		OrderID:            chi.URLParam(r, "orderID"),
		EncounterID:        body.EncounterID,
		LastOrderCompleted: body.LastOrderCompleted,
		HasImagingOrder:    body.HasImagingOrder,
		Choice:             body.Choice,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// AssignDoctor routes an order to a doctor or radiologist.
func (h *Handler) AssignDoctor(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DoctorID string `json:"doctor_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	if err := h.dispatcher.AssignDoctor(r.Context(), chi.URLParam(r, "orderID"), body.DoctorID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// SetState requests a workflow transition for an encounter.
func (h *Handler) SetState(w http.ResponseWriter, r *http.Request) {
	var body struct {
		State queue.WorkflowState `json:"state"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	if err := h.dispatcher.SetState(r.Context(), chi.URLParam(r, "encounterID"), body.State); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// SubmitMeasurements records front-desk vitals for an encounter.
func (h *Handler) SubmitMeasurements(w http.ResponseWriter, r *http.Request) {
	var measurements map[string]any
	if err := decodeBody(r, &measurements); err != nil {
		writeError(w, err)
		return
	}

	if err := h.dispatcher.SubmitMeasurements(r.Context(), chi.URLParam(r, "encounterID"), measurements); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// CancelEncounter cancels an encounter.
func (h *Handler) CancelEncounter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	if err := h.dispatcher.CancelEncounter(r.Context(), chi.URLParam(r, "encounterID"), body.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// ApproveAppRequest approves a patient-app request.
func (h *Handler) ApproveAppRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.dispatcher.ApproveAppRequest(r.Context(), chi.URLParam(r, "requestID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// RejectAppRequest rejects a patient-app request.
func (h *Handler) RejectAppRequest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	if err := h.dispatcher.RejectAppRequest(r.Context(), chi.URLParam(r, "requestID"), body.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// decodeBody parses an optional JSON body. An empty body is fine; malformed
// JSON is not.
func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.BadRequest("invalid request body")
	}
	return nil
}

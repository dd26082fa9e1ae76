package dispatch

import (
	"context"
	stderrors "errors"

	"github.com/rs/zerolog"

	"github.com/meracare/frontdesk/internal/audit"
	"github.com/meracare/frontdesk/internal/queue"
	"github.com/meracare/frontdesk/internal/shared/auth"
	"github.com/meracare/frontdesk/internal/shared/errors"
	"github.com/meracare/frontdesk/internal/shared/metrics"
	"github.com/meracare/frontdesk/internal/store"
	"github.com/meracare/frontdesk/internal/upstream"
)

// CommandSink is the HIS-facing side of the dispatcher. Every call is a
// single idempotent remote command keyed by a natural identifier.
type CommandSink interface {
	ConfirmOrder(ctx context.Context, orderID string) error
	AssignDoctor(ctx context.Context, orderID, doctorID string) error
	SetEncounterState(ctx context.Context, encounterID string, state queue.WorkflowState) error
	SubmitMeasurements(ctx context.Context, encounterID string, measurements map[string]any) error
	CancelEncounter(ctx context.Context, encounterID, reason string) error
	ApproveAppRequest(ctx context.Context, requestID string) error
	RejectAppRequest(ctx context.Context, requestID, reason string) error
}

// Trigger requests refreshes of snapshot domains.
type Trigger interface {
	Trigger(domain store.Domain)
}

// Recorder appends operator actions to the audit trail.
type Recorder interface {
	Record(ctx context.Context, e audit.Entry) error
}

// Dispatcher turns operator intents into HIS commands. It never mutates
// local snapshots: after a command succeeds it triggers refreshes of the
// domains the action could have touched, and the resulting snapshot is what
// the operator sees. A failed command triggers nothing, so the views keep
// showing the state the HIS still holds.
type Dispatcher struct {
	sink     CommandSink
	triggers Trigger
	recorder Recorder // nil when no audit database is configured
	log      zerolog.Logger
}

// New creates a dispatcher. recorder may be nil.
func New(sink CommandSink, triggers Trigger, recorder Recorder, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		sink:     sink,
		triggers: triggers,
		recorder: recorder,
		log:      log,
	}
}

// ConfirmOrderRequest carries the confirm intent plus the context the
// decision table needs.
type ConfirmOrderRequest struct {
	OrderID            string         `json:"order_id"`
	EncounterID        string         `json:"encounter_id"`
	LastOrderCompleted bool           `json:"last_order_completed"`
	HasImagingOrder    bool           `json:"has_imaging_order"`
	Choice             OperatorChoice `json:"choice,omitempty"`
}

// ConfirmOrder confirms an order and, when it was the encounter's last
// order, requests the follow-up workflow transition from the decision
// table. Refreshes run only after every command succeeded.
func (d *Dispatcher) ConfirmOrder(ctx context.Context, req ConfirmOrderRequest) error {
	if req.OrderID == "" {
		return errors.Validation("order id is required", nil)
	}

	err := d.sink.ConfirmOrder(ctx, req.OrderID)
	d.record(ctx, "confirm_order", "order", req.OrderID, upstream.ConfirmOrderKey(req.OrderID), err, map[string]any{
		"encounter_id": req.EncounterID,
	})
	if err != nil {
		return err
	}

	if state, ok := NextTransition(req.LastOrderCompleted, req.HasImagingOrder, req.Choice); ok {
		if req.EncounterID == "" {
			return errors.Validation("encounter id is required to transition after the last order", nil)
		}
		err = d.sink.SetEncounterState(ctx, req.EncounterID, state)
		d.record(ctx, "set_state", "encounter", req.EncounterID, upstream.SetStateKey(req.EncounterID, state), err, map[string]any{
			"state": string(state),
		})
		if err != nil {
			return err
		}
	}

	d.refresh("confirm_order", store.DomainWaitingQueue, store.DomainDashboardStats)
	return nil
}

// AssignDoctor routes an order to a doctor or radiologist.
func (d *Dispatcher) AssignDoctor(ctx context.Context, orderID, doctorID string) error {
	if orderID == "" || doctorID == "" {
		return errors.Validation("order id and doctor id are required", nil)
	}

	err := d.sink.AssignDoctor(ctx, orderID, doctorID)
	d.record(ctx, "assign_doctor", "order", orderID, upstream.AssignDoctorKey(orderID, doctorID), err, map[string]any{
		"doctor_id": doctorID,
	})
	if err != nil {
		return err
	}

	d.refresh("assign_doctor", store.DomainWaitingQueue, store.DomainImagingQueue, store.DomainDashboardStats)
	return nil
}

// SetState requests a workflow transition. The HIS validates it; this
// service only relays the intent.
func (d *Dispatcher) SetState(ctx context.Context, encounterID string, state queue.WorkflowState) error {
	if encounterID == "" {
		return errors.Validation("encounter id is required", nil)
	}
	if !state.Valid() {
		return errors.Validation("unknown workflow state", map[string]string{"state": string(state)})
	}

	err := d.sink.SetEncounterState(ctx, encounterID, state)
	d.record(ctx, "set_state", "encounter", encounterID, upstream.SetStateKey(encounterID, state), err, map[string]any{
		"state": string(state),
	})
	if err != nil {
		return err
	}

	domains := []store.Domain{store.DomainWaitingQueue, store.DomainDashboardStats}
	switch state {
	case queue.StateWaitingImaging, queue.StateInImaging:
		domains = append(domains, store.DomainImagingQueue)
	}
	d.refresh("set_state", domains...)
	return nil
}

// SubmitMeasurements records front-desk vitals for an encounter.
func (d *Dispatcher) SubmitMeasurements(ctx context.Context, encounterID string, measurements map[string]any) error {
	if encounterID == "" {
		return errors.Validation("encounter id is required", nil)
	}
	if len(measurements) == 0 {
		return errors.Validation("measurements are required", nil)
	}

	err := d.sink.SubmitMeasurements(ctx, encounterID, measurements)
	d.record(ctx, "submit_measurements", "encounter", encounterID, upstream.MeasurementsKey(encounterID), err, nil)
	if err != nil {
		return err
	}

	d.refresh("submit_measurements", store.DomainWaitingQueue)
	return nil
}

// CancelEncounter cancels an encounter.
func (d *Dispatcher) CancelEncounter(ctx context.Context, encounterID, reason string) error {
	if encounterID == "" {
		return errors.Validation("encounter id is required", nil)
	}

	err := d.sink.CancelEncounter(ctx, encounterID, reason)
	d.record(ctx, "cancel_encounter", "encounter", encounterID, upstream.CancelEncounterKey(encounterID), err, map[string]any{
		"reason": reason,
	})
	if err != nil {
		return err
	}

	d.refresh("cancel_encounter", store.DomainWaitingQueue, store.DomainImagingQueue, store.DomainDashboardStats)
	return nil
}

// ApproveAppRequest approves a patient-app request. Approval can create or
// update an encounter, so the waiting queue refreshes too.
func (d *Dispatcher) ApproveAppRequest(ctx context.Context, requestID string) error {
	if requestID == "" {
		return errors.Validation("request id is required", nil)
	}

	err := d.sink.ApproveAppRequest(ctx, requestID)
	d.record(ctx, "approve_app_request", "app_request", requestID, upstream.ApproveRequestKey(requestID), err, nil)
	if err != nil {
		return err
	}

	d.refresh("approve_app_request", store.DomainAppRequests, store.DomainWaitingQueue, store.DomainDashboardStats)
	return nil
}

// RejectAppRequest rejects a patient-app request.
func (d *Dispatcher) RejectAppRequest(ctx context.Context, requestID, reason string) error {
	if requestID == "" {
		return errors.Validation("request id is required", nil)
	}

	err := d.sink.RejectAppRequest(ctx, requestID, reason)
	d.record(ctx, "reject_app_request", "app_request", requestID, upstream.RejectRequestKey(requestID), err, map[string]any{
		"reason": reason,
	})
	if err != nil {
		return err
	}

	d.refresh("reject_app_request", store.DomainAppRequests)
	return nil
}

func (d *Dispatcher) refresh(action string, domains ...store.Domain) {
	metrics.ActionDispatched(action, "applied")
	for _, domain := range domains {
		d.triggers.Trigger(domain)
	}
}

// record appends an audit entry for a dispatched command. The idempotency
// key is the one the command sink sends upstream for this action.
func (d *Dispatcher) record(ctx context.Context, action, resourceType, resourceID, key string, cmdErr error, detail map[string]any) {
	outcome := audit.OutcomeApplied
	switch {
	case cmdErr == nil:
	case stderrors.Is(cmdErr, errors.ErrCommandRejected):
		outcome = audit.OutcomeRejected
		metrics.ActionDispatched(action, "rejected")
	default:
		outcome = audit.OutcomeFailed
		metrics.ActionDispatched(action, "failed")
	}

	if d.recorder == nil {
		return
	}

	e := audit.Entry{
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		IdempotencyKey: key,
		Outcome:        outcome,
		Detail:         detail,
	}
	if op := auth.GetOperator(ctx); op != nil {
		e.ActorID = op.ID.String()
		e.ActorName = op.Name
		e.ActorRole = op.Role
	}

	if err := d.recorder.Record(ctx, e); err != nil {
		d.log.Error().Err(err).Str("action", action).Msg("failed to record audit entry")
	}
}

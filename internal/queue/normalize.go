package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// The HIS gateway is not consistent about field names across deployments:
// the doctor reference appears as doctor_id, doctor or assigned_doctor, and
// identifiers/timestamps vary similarly. Everything fetched from upstream
// passes through this adapter so that derivations only ever see the
// canonical shapes in model.go. A malformed row degrades to zero values
// instead of failing the whole snapshot.

type rawQueueItem struct {
	EncounterID string `json:"encounter_id"`
	AltID       string `json:"id"`
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name"`
	AltName     string `json:"name"`
	DateOfBirth string `json:"date_of_birth"`
	Age         int    `json:"age"`
	Gender      string `json:"gender"`

	WorkflowState string `json:"workflow_state"`
	AltState      string `json:"status"`

	DoctorID       string `json:"doctor_id"`
	Doctor         string `json:"doctor"`
	AssignedDoctor string `json:"assigned_doctor"`

	Questionnaire string `json:"questionnaire_status"`
	IsReturning   bool   `json:"is_returning"`

	Orders []struct {
		OrderID string `json:"order_id"`
		AltID   string `json:"id"`
		Type    string `json:"type"`
		Status  string `json:"status"`
	} `json:"orders"`

	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
	StateAt   *string `json:"state_entered_at"`
}

// normalizeDoctor maps the known doctor field variants to one canonical
// identifier. Precedence is doctor_id, then doctor, then assigned_doctor.
func (r rawQueueItem) normalizeDoctor() string {
	if r.DoctorID != "" {
		return r.DoctorID
	}
	if r.Doctor != "" {
		return r.Doctor
	}
	return r.AssignedDoctor
}

func (r rawQueueItem) normalize() QueueItem {
	item := QueueItem{
		EncounterID: firstNonEmpty(r.EncounterID, r.AltID),
		PatientID:   r.PatientID,
		PatientName: firstNonEmpty(r.PatientName, r.AltName),
		DateOfBirth: r.DateOfBirth,
		Age:         r.Age,
		Gender:      r.Gender,
		DoctorID:    r.normalizeDoctor(),
		IsReturning: r.IsReturning,
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
	}

	state := WorkflowState(firstNonEmpty(r.WorkflowState, r.AltState))
	if state.Valid() {
		item.WorkflowState = state
	}

	switch QuestionnaireStatus(r.Questionnaire) {
	case QuestionnaireInProgress, QuestionnaireCompleted:
		item.Questionnaire = QuestionnaireStatus(r.Questionnaire)
	default:
		item.Questionnaire = QuestionnaireNotStarted
	}

	for _, o := range r.Orders {
		item.Orders = append(item.Orders, OrderSummary{
			OrderID: firstNonEmpty(o.OrderID, o.AltID),
			Type:    OrderType(o.Type),
			Status:  OrderStatus(o.Status),
		})
	}

	if r.StateAt != nil {
		if t := parseTime(*r.StateAt); !t.IsZero() {
			item.StateSince = &t
		}
	}

	return item
}

// DecodeSnapshot parses a raw queue snapshot payload into canonical form.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var raw struct {
		Queue        []rawQueueItem `json:"queue"`
		TotalWaiting int            `json:"total_waiting"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, fmt.Errorf("decode queue snapshot: %w", err)
	}

	snap := Snapshot{TotalWaiting: raw.TotalWaiting}
	for _, r := range raw.Queue {
		item := r.normalize()
		// A row without an encounter identity cannot participate in any
		// derivation; hiding it beats crashing the queue view.
		if item.EncounterID == "" && item.PatientID == "" {
			continue
		}
		snap.Items = append(snap.Items, item)
	}
	return snap, nil
}

type rawOrder struct {
	ID          string `json:"id"`
	AltID       string `json:"order_id"`
	Type        string `json:"type"`
	Category    string `json:"order_type"`
	Status      string `json:"status"`
	EncounterID string `json:"encounter_id"`
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name"`

	DoctorID       string `json:"doctor_id"`
	Doctor         string `json:"doctor"`
	AssignedDoctor string `json:"assigned_doctor"`

	CreatedAt string `json:"created_at"`
}

// DecodeOrders parses a pending-order list payload.
func DecodeOrders(data []byte) ([]Order, error) {
	var raws []rawOrder
	if err := json.Unmarshal(data, &raws); err != nil {
		// Some gateway versions wrap the list
		var wrapped struct {
			Orders []rawOrder `json:"orders"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("decode orders: %w", err)
		}
		raws = wrapped.Orders
	}

	orders := make([]Order, 0, len(raws))
	for _, r := range raws {
		id := firstNonEmpty(r.ID, r.AltID)
		if id == "" {
			continue
		}
		doctor := r.DoctorID
		if doctor == "" {
			doctor = r.Doctor
		}
		if doctor == "" {
			doctor = r.AssignedDoctor
		}
		orders = append(orders, Order{
			ID:          id,
			Type:        OrderType(r.Type),
			Category:    OrderCategory(r.Category),
			Status:      OrderStatus(r.Status),
			EncounterID: r.EncounterID,
			PatientID:   r.PatientID,
			PatientName: r.PatientName,
			DoctorID:    doctor,
			CreatedAt:   parseTime(r.CreatedAt),
		})
	}
	return orders, nil
}

// DecodeStats parses the dashboard counters payload.
func DecodeStats(data []byte) (DashboardStats, error) {
	var stats DashboardStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return DashboardStats{}, fmt.Errorf("decode stats: %w", err)
	}
	return stats, nil
}

type rawRosterEntry struct {
	DoctorID   string `json:"doctor_id"`
	AltID      string `json:"id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	RoomNumber string `json:"room_number"`
	AltRoom    string `json:"room"`
}

// DecodeRoster parses a doctor/radiologist roster payload.
func DecodeRoster(data []byte) ([]DoctorRosterEntry, error) {
	var raws []rawRosterEntry
	if err := json.Unmarshal(data, &raws); err != nil {
		var wrapped struct {
			Doctors []rawRosterEntry `json:"doctors"`
		}
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("decode roster: %w", err)
		}
		raws = wrapped.Doctors
	}

	entries := make([]DoctorRosterEntry, 0, len(raws))
	for _, r := range raws {
		id := firstNonEmpty(r.DoctorID, r.AltID)
		if id == "" {
			continue
		}
		entries = append(entries, DoctorRosterEntry{
			DoctorID:   id,
			Name:       r.Name,
			Department: r.Department,
			RoomNumber: firstNonEmpty(r.RoomNumber, r.AltRoom),
		})
	}
	return entries, nil
}

// DecodeAppRequests parses the app-originated request list payload.
func DecodeAppRequests(data []byte) ([]AppSyncRequest, error) {
	var raws []struct {
		ID          string         `json:"id"`
		Kind        string         `json:"kind"`
		Type        string         `json:"type"`
		PatientID   string         `json:"patient_id"`
		PatientName string         `json:"patient_name"`
		RequestedAt string         `json:"requested_at"`
		Detail      map[string]any `json:"detail"`
	}
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decode app requests: %w", err)
	}

	reqs := make([]AppSyncRequest, 0, len(raws))
	for _, r := range raws {
		if r.ID == "" {
			continue
		}
		kind := AppRequestKind(firstNonEmpty(r.Kind, r.Type))
		if kind != AppRequestAppointment {
			kind = AppRequestSync
		}
		reqs = append(reqs, AppSyncRequest{
			ID:          r.ID,
			Kind:        kind,
			PatientID:   r.PatientID,
			PatientName: r.PatientName,
			RequestedAt: parseTime(r.RequestedAt),
			Detail:      r.Detail,
		})
	}
	return reqs, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTime accepts the timestamp formats seen from upstream; anything else
// becomes the zero time rather than an error.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

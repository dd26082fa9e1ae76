package queue

import (
	"testing"
	"time"
)

func TestDecodeSnapshotDoctorFieldVariants(t *testing.T) {
	payload := []byte(`{
		"total_waiting": 3,
		"queue": [
			{"encounter_id": "e1", "patient_id": "P1", "doctor_id": "d1", "workflow_state": "WAITING_CLINIC", "created_at": "2026-03-02T10:00:00Z"},
			{"encounter_id": "e2", "patient_id": "P2", "doctor": "d2", "workflow_state": "IN_CLINIC", "created_at": "2026-03-02T10:01:00Z"},
			{"encounter_id": "e3", "patient_id": "P3", "assigned_doctor": "d3", "workflow_state": "WAITING_CLINIC", "created_at": "2026-03-02 10:02:00"}
		]
	}`)

	snap, err := DecodeSnapshot(payload)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if snap.TotalWaiting != 3 {
		t.Errorf("TotalWaiting = %d, want 3", snap.TotalWaiting)
	}
	if len(snap.Items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(snap.Items))
	}

	for i, want := range []string{"d1", "d2", "d3"} {
		if snap.Items[i].DoctorID != want {
			t.Errorf("Item %d doctor = %q, want %q", i, snap.Items[i].DoctorID, want)
		}
	}
}

func TestDecodeSnapshotDoctorPrecedence(t *testing.T) {
	payload := []byte(`{"queue": [
		{"encounter_id": "e1", "patient_id": "P1", "doctor_id": "d1", "doctor": "d2", "assigned_doctor": "d3"}
	]}`)

	snap, err := DecodeSnapshot(payload)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if snap.Items[0].DoctorID != "d1" {
		t.Errorf("Doctor = %q, want doctor_id to take precedence", snap.Items[0].DoctorID)
	}
}

func TestDecodeSnapshotMissingFieldsDegrade(t *testing.T) {
	payload := []byte(`{"queue": [
		{"encounter_id": "e1", "patient_id": "P1", "workflow_state": "NOT_A_STATE", "questionnaire_status": "???", "created_at": "garbage"},
		{"gender": "F"}
	]}`)

	snap, err := DecodeSnapshot(payload)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	// The identity-less row is hidden rather than crashing the view
	if len(snap.Items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(snap.Items))
	}

	it := snap.Items[0]
	if it.WorkflowState != "" {
		t.Errorf("Unknown state should normalize to empty, got %q", it.WorkflowState)
	}
	if it.Questionnaire != QuestionnaireNotStarted {
		t.Errorf("Questionnaire = %q, want NOT_STARTED default", it.Questionnaire)
	}
	if !it.CreatedAt.IsZero() {
		t.Errorf("Unparseable timestamp should be zero, got %v", it.CreatedAt)
	}
}

func TestDecodeSnapshotAltIdentifiers(t *testing.T) {
	payload := []byte(`{"queue": [
		{"id": "e1", "patient_id": "P1", "name": "Ana", "status": "WAITING_PAYMENT"}
	]}`)

	snap, err := DecodeSnapshot(payload)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	it := snap.Items[0]
	if it.EncounterID != "e1" || it.PatientName != "Ana" || it.WorkflowState != StateWaitingPayment {
		t.Errorf("Alt fields not normalized: %+v", it)
	}
}

func TestDecodeOrdersBareAndWrapped(t *testing.T) {
	bare := []byte(`[{"id": "o1", "type": "LAB", "order_type": "BLOOD_LIVER", "patient_id": "P1", "created_at": "2026-03-02T09:00:00Z"}]`)
	wrapped := []byte(`{"orders": [{"order_id": "o2", "type": "IMAGING", "patient_id": "P2", "doctor": "d7"}]}`)

	orders, err := DecodeOrders(bare)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "o1" || orders[0].Category != CategoryBloodLiver {
		t.Errorf("Bare decode = %+v", orders)
	}
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if !orders[0].CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", orders[0].CreatedAt, want)
	}

	orders, err = DecodeOrders(wrapped)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(orders) != 1 || orders[0].ID != "o2" || orders[0].DoctorID != "d7" {
		t.Errorf("Wrapped decode = %+v", orders)
	}
}

func TestDecodeRoster(t *testing.T) {
	payload := []byte(`{"doctors": [
		{"doctor_id": "d1", "name": "Petrovic", "department": "Internal", "room_number": "12"},
		{"id": "d2", "name": "Ilic", "room": "3"}
	]}`)

	entries, err := DecodeRoster(payload)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[1].DoctorID != "d2" || entries[1].RoomNumber != "3" {
		t.Errorf("Alt roster fields not normalized: %+v", entries[1])
	}
}

func TestDecodeAppRequests(t *testing.T) {
	payload := []byte(`[
		{"id": "r1", "kind": "appointment", "patient_id": "P1", "requested_at": "2026-03-02T08:00:00Z"},
		{"id": "r2", "type": "sync", "patient_id": "P2"},
		{"patient_id": "ignored"}
	]`)

	reqs, err := DecodeAppRequests(payload)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(reqs) != 2 {
		t.Fatalf("Expected 2 requests, got %d", len(reqs))
	}
	if reqs[0].Kind != AppRequestAppointment || reqs[1].Kind != AppRequestSync {
		t.Errorf("Kinds = %q, %q", reqs[0].Kind, reqs[1].Kind)
	}
}

package queue

import (
	"testing"
	"time"
)

func item(encounter, patient string, created time.Time, state WorkflowState) QueueItem {
	return QueueItem{
		EncounterID:   encounter,
		PatientID:     patient,
		WorkflowState: state,
		CreatedAt:     created,
	}
}

func TestDedupLatestByPatient(t *testing.T) {
	t10 := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	t1005 := time.Date(2026, 3, 2, 10, 5, 0, 0, time.UTC)
	t9 := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	in := []QueueItem{
		item("e1", "P1", t10, StateWaitingClinic),
		item("e2", "P1", t1005, StateInClinic),
		item("e3", "P2", t9, StateWaitingResults),
	}

	out := DedupLatestByPatient(in)

	if len(out) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(out))
	}
	if out[0].PatientID != "P1" || out[0].WorkflowState != StateInClinic || !out[0].CreatedAt.Equal(t1005) {
		t.Errorf("Expected P1 latest encounter (IN_CLINIC 10:05), got %+v", out[0])
	}
	if out[1].PatientID != "P2" || out[1].WorkflowState != StateWaitingResults {
		t.Errorf("Expected P2 WAITING_RESULTS, got %+v", out[1])
	}
}

func TestDedupAtMostOnePerPatient(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	in := []QueueItem{
		item("e1", "P1", base, StateWaitingClinic),
		item("e2", "P2", base.Add(time.Minute), StateWaitingClinic),
		item("e3", "P1", base.Add(2*time.Minute), StateInClinic),
		item("e4", "P3", base, StateWaitingPayment),
		item("e5", "P2", base, StateWaitingClinic),
	}

	out := DedupLatestByPatient(in)

	seen := make(map[string]bool)
	for _, it := range out {
		if seen[it.PatientID] {
			t.Errorf("Patient %s appears more than once", it.PatientID)
		}
		seen[it.PatientID] = true
	}
	for _, p := range []string{"P1", "P2", "P3"} {
		if !seen[p] {
			t.Errorf("Patient %s missing from output", p)
		}
	}
}

func TestDedupIdempotent(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	in := []QueueItem{
		item("e1", "P1", base, StateWaitingClinic),
		item("e2", "P1", base.Add(time.Minute), StateInClinic),
		item("e3", "P2", base, StateWaitingClinic),
	}

	once := DedupLatestByPatient(in)
	twice := DedupLatestByPatient(once)

	if len(once) != len(twice) {
		t.Fatalf("Second dedup changed length: %d vs %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].EncounterID != twice[i].EncounterID {
			t.Errorf("Position %d changed: %s vs %s", i, once[i].EncounterID, twice[i].EncounterID)
		}
	}
}

func TestDedupTieBreakHigherEncounterID(t *testing.T) {
	ts := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	in := []QueueItem{
		item("e09", "P1", ts, StateWaitingClinic),
		item("e10", "P1", ts, StateInClinic),
		item("e05", "P1", ts, StateWaitingClinic),
	}

	out := DedupLatestByPatient(in)

	if len(out) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(out))
	}
	if out[0].EncounterID != "e10" {
		t.Errorf("Expected e10 to win the tie, got %s", out[0].EncounterID)
	}
}

func TestBucketByDoctorPartition(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	in := []QueueItem{
		{EncounterID: "e1", PatientID: "P1", DoctorID: "d1", CreatedAt: base},
		{EncounterID: "e2", PatientID: "P2", DoctorID: "d2", CreatedAt: base},
		{EncounterID: "e3", PatientID: "P3", DoctorID: "d1", CreatedAt: base},
		{EncounterID: "e4", PatientID: "P4", CreatedAt: base},
	}
	deduped := DedupLatestByPatient(in)

	buckets := BucketByDoctor(deduped)

	patients := make(map[string]string)
	total := 0
	for doctor, items := range buckets {
		for _, it := range items {
			if prev, ok := patients[it.PatientID]; ok {
				t.Errorf("Patient %s in buckets %q and %q", it.PatientID, prev, doctor)
			}
			patients[it.PatientID] = doctor
			total++
		}
	}
	if total != len(deduped) {
		t.Errorf("Bucket union has %d items, deduped input has %d", total, len(deduped))
	}
	if len(buckets["d1"]) != 2 {
		t.Errorf("Expected 2 items for d1, got %d", len(buckets["d1"]))
	}
	if len(buckets[""]) != 1 {
		t.Errorf("Expected 1 unassigned item, got %d", len(buckets[""]))
	}
}

func TestSubQueueFilters(t *testing.T) {
	base := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	items := []QueueItem{
		{EncounterID: "e1", PatientID: "P1", WorkflowState: StateWaitingClinic, IsReturning: true, CreatedAt: base},
		{EncounterID: "e2", PatientID: "P2", WorkflowState: StateWaitingClinic, CreatedAt: base},
		{EncounterID: "e3", PatientID: "P3", WorkflowState: StateWaitingPayment, CreatedAt: base},
		{EncounterID: "e4", PatientID: "P4", WorkflowState: StateWaitingImaging, CreatedAt: base},
		{EncounterID: "e5", PatientID: "P5", WorkflowState: StateInImaging, CreatedAt: base},
		{EncounterID: "e6", PatientID: "P6", WorkflowState: StateCompleted, CreatedAt: base},
	}

	if got := AdditionalCare(items); len(got) != 1 || got[0].EncounterID != "e1" {
		t.Errorf("AdditionalCare = %+v, want [e1]", got)
	}
	if got := PaymentPending(items); len(got) != 1 || got[0].EncounterID != "e3" {
		t.Errorf("PaymentPending = %+v, want [e3]", got)
	}
	got := ImagingActive(items)
	if len(got) != 2 || got[0].EncounterID != "e4" || got[1].EncounterID != "e5" {
		t.Errorf("ImagingActive = %+v, want [e4 e5]", got)
	}
	if got := Active(items); len(got) != 5 {
		t.Errorf("Active returned %d items, want 5", len(got))
	}
	if got := Completed(items); len(got) != 1 || got[0].EncounterID != "e6" {
		t.Errorf("Completed = %+v, want [e6]", got)
	}
}

func TestGroupOrdersByPatient(t *testing.T) {
	orders := []Order{
		{ID: "1", PatientID: "P1", PatientName: "Ana"},
		{ID: "2", PatientID: "P1", PatientName: "Ana"},
		{ID: "3", PatientID: "P2", PatientName: "Marko"},
	}

	groups := GroupOrdersByPatient(orders)

	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}
	if groups[0].PatientID != "P1" || len(groups[0].Orders) != 2 {
		t.Errorf("Group 0 = %+v, want P1 with orders [1 2]", groups[0])
	}
	if groups[0].Orders[0].ID != "1" || groups[0].Orders[1].ID != "2" {
		t.Errorf("P1 order IDs = %s,%s, want 1,2", groups[0].Orders[0].ID, groups[0].Orders[1].ID)
	}
	if groups[1].PatientID != "P2" || len(groups[1].Orders) != 1 || groups[1].Orders[0].ID != "3" {
		t.Errorf("Group 1 = %+v, want P2 with order [3]", groups[1])
	}
}

func TestPaginationReconstructs(t *testing.T) {
	items := make([]QueueItem, 23)
	for i := range items {
		items[i].EncounterID = string(rune('a' + i))
	}
	const pageSize = 5

	total := TotalPages(len(items), pageSize)
	if total != 5 {
		t.Fatalf("TotalPages = %d, want 5", total)
	}

	var rebuilt []QueueItem
	for p := 1; p <= total; p++ {
		rebuilt = append(rebuilt, Page(items, p, pageSize)...)
	}

	if len(rebuilt) != len(items) {
		t.Fatalf("Reconstructed %d items, want %d", len(rebuilt), len(items))
	}
	for i := range items {
		if rebuilt[i].EncounterID != items[i].EncounterID {
			t.Errorf("Position %d: got %s, want %s", i, rebuilt[i].EncounterID, items[i].EncounterID)
		}
	}
}

func TestPaginationEmpty(t *testing.T) {
	if total := TotalPages(0, 10); total != 0 {
		t.Errorf("TotalPages(0) = %d, want 0", total)
	}
	if page := Page([]QueueItem{}, 1, 10); len(page) != 0 {
		t.Errorf("Page of empty list returned %d items", len(page))
	}
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		name       string
		page       int
		totalPages int
		want       int
	}{
		{"Within range", 2, 5, 2},
		{"Past the end", 9, 5, 5},
		{"Zero page", 0, 5, 1},
		{"Empty list", 3, 0, 3},
		{"Last page exactly", 5, 5, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampPage(tt.page, tt.totalPages); got != tt.want {
				t.Errorf("ClampPage(%d, %d) = %d, want %d", tt.page, tt.totalPages, got, tt.want)
			}
		})
	}
}

func TestSortRoster(t *testing.T) {
	entries := []DoctorRosterEntry{
		{DoctorID: "d1", Name: "Petrovic", RoomNumber: "12"},
		{DoctorID: "d2", Name: "Andric", RoomNumber: "A-wing"},
		{DoctorID: "d3", Name: "Ilic", RoomNumber: "3"},
		{DoctorID: "d4", Name: "Babic"},
		{DoctorID: "d5", Name: "Simic", RoomNumber: "3"},
	}

	SortRoster(entries)

	want := []string{"d3", "d5", "d1", "d2", "d4"}
	for i, id := range want {
		if entries[i].DoctorID != id {
			t.Errorf("Position %d: got %s, want %s", i, entries[i].DoctorID, id)
		}
	}
}

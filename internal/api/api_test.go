package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/meracare/frontdesk/internal/dispatch"
	"github.com/meracare/frontdesk/internal/queue"
	"github.com/meracare/frontdesk/internal/shared/errors"
	"github.com/meracare/frontdesk/internal/store"
)

type fixtureFetcher struct {
	waiting queue.Snapshot
	imaging queue.Snapshot
	roster  []queue.DoctorRosterEntry
}

func (f *fixtureFetcher) FetchWaitingQueue(ctx context.Context) (queue.Snapshot, error) {
	return f.waiting, nil
}

func (f *fixtureFetcher) FetchImagingQueue(ctx context.Context) (queue.Snapshot, error) {
	return f.imaging, nil
}

func (f *fixtureFetcher) FetchStats(ctx context.Context) (queue.DashboardStats, error) {
	return queue.DashboardStats{TotalPatients: 42, ClinicWaiting: 3}, nil
}

func (f *fixtureFetcher) FetchRoster(ctx context.Context) ([]queue.DoctorRosterEntry, error) {
	return f.roster, nil
}

func (f *fixtureFetcher) FetchAppRequests(ctx context.Context) ([]queue.AppSyncRequest, error) {
	return []queue.AppSyncRequest{{ID: "r1", Kind: queue.AppRequestSync}}, nil
}

type fakeOrders struct {
	orders    []queue.Order
	ordersErr error
}

func (f *fakeOrders) FetchPendingOrders(ctx context.Context, typ queue.OrderType) ([]queue.Order, error) {
	return f.orders, f.ordersErr
}

func (f *fakeOrders) FetchRadiologists(ctx context.Context) ([]queue.DoctorRosterEntry, error) {
	return []queue.DoctorRosterEntry{{DoctorID: "rad1", Name: "Vuk"}}, nil
}

func (f *fakeOrders) SearchQueue(ctx context.Context, queueType, search string) (queue.Snapshot, error) {
	return queue.Snapshot{}, nil
}

type nopSink struct {
	calls []string
}

func (s *nopSink) ConfirmOrder(ctx context.Context, orderID string) error {
	s.calls = append(s.calls, "confirm:"+orderID)
	return nil
}

func (s *nopSink) AssignDoctor(ctx context.Context, orderID, doctorID string) error {
	s.calls = append(s.calls, "assign:"+orderID)
	return nil
}

func (s *nopSink) SetEncounterState(ctx context.Context, encounterID string, state queue.WorkflowState) error {
	s.calls = append(s.calls, fmt.Sprintf("state:%s:%s", encounterID, state))
	return nil
}

func (s *nopSink) SubmitMeasurements(ctx context.Context, encounterID string, m map[string]any) error {
	s.calls = append(s.calls, "measure:"+encounterID)
	return nil
}

func (s *nopSink) CancelEncounter(ctx context.Context, encounterID, reason string) error {
	s.calls = append(s.calls, "cancel:"+encounterID)
	return nil
}

func (s *nopSink) ApproveAppRequest(ctx context.Context, requestID string) error {
	s.calls = append(s.calls, "approve:"+requestID)
	return nil
}

func (s *nopSink) RejectAppRequest(ctx context.Context, requestID, reason string) error {
	s.calls = append(s.calls, "reject:"+requestID)
	return nil
}

type nopTrigger struct {
	domains []store.Domain
}

func (t *nopTrigger) Trigger(d store.Domain) {
	t.domains = append(t.domains, d)
}

func item(encounterID, patientID, doctorID string, state queue.WorkflowState, createdAt time.Time) queue.QueueItem {
	return queue.QueueItem{
		EncounterID:   encounterID,
		PatientID:     patientID,
		DoctorID:      doctorID,
		WorkflowState: state,
		CreatedAt:     createdAt,
	}
}

func newFixture(t *testing.T) (*Handler, *nopSink, *nopTrigger) {
	t.Helper()
	base := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

	fetcher := &fixtureFetcher{
		waiting: queue.Snapshot{
			Items: []queue.QueueItem{
				item("e1", "p1", "d1", queue.StateWaitingClinic, base),
				item("e2", "p2", "d1", queue.StateWaitingPayment, base),
				item("e3", "p3", "d2", queue.StateWaitingClinic, base),
				// Newer encounter for p1: the dedup winner
				item("e4", "p1", "d2", queue.StateWaitingClinic, base.Add(time.Hour)),
				item("e5", "p4", "", queue.StateCompleted, base),
			},
			TotalWaiting: 4,
		},
		imaging: queue.Snapshot{
			Items: []queue.QueueItem{
				item("e6", "p5", "rad1", queue.StateWaitingImaging, base),
				item("e7", "p6", "rad1", queue.StateInImaging, base),
			},
		},
		roster: []queue.DoctorRosterEntry{
			{DoctorID: "d2", Name: "Mina", RoomNumber: "12"},
			{DoctorID: "d1", Name: "Luka", RoomNumber: "3"},
		},
	}

	st := store.New(fetcher, zerolog.Nop())
	ctx := context.Background()
	for _, d := range store.AllDomains {
		if err := st.Refresh(ctx, d); err != nil {
			t.Fatalf("refresh %s: %v", d, err)
		}
	}

	sink := &nopSink{}
	trigger := &nopTrigger{}
	dispatcher := dispatch.New(sink, trigger, nil, zerolog.Nop())

	h := NewHandler(st, dispatcher, &fakeOrders{
		orders: []queue.Order{
			{ID: "o1", PatientID: "p1", PatientName: "Ana", Type: queue.OrderTypeLab},
			{ID: "o2", PatientID: "p2", PatientName: "Ivan", Type: queue.OrderTypeLab},
			{ID: "o3", PatientID: "p1", PatientName: "Ana", Type: queue.OrderTypeImaging},
		},
	}, nil, 10, zerolog.Nop())
	return h, sink, trigger
}

func doRequest(t *testing.T, h *Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	return rec
}

func TestWaitingQueueDedupsAndFiltersTerminal(t *testing.T) {
	h, _, _ := newFixture(t)

	rec := doRequest(t, h, http.MethodGet, "/queue/waiting", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d", rec.Code)
	}

	var resp struct {
		Items        []queue.QueueItem `json:"items"`
		TotalWaiting int               `json:"total_waiting"`
		Pagination   pageMeta          `json:"pagination"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// p1 deduped to e4, p4 terminal and dropped: p1, p2, p3 remain
	if len(resp.Items) != 3 {
		t.Fatalf("Items = %d, want 3: %+v", len(resp.Items), resp.Items)
	}
	if resp.Items[0].EncounterID != "e4" {
		t.Errorf("p1 winner = %s, want the newer encounter e4", resp.Items[0].EncounterID)
	}
	if resp.TotalWaiting != 4 {
		t.Errorf("TotalWaiting = %d, want 4", resp.TotalWaiting)
	}
	if resp.Pagination.TotalPages != 1 {
		t.Errorf("TotalPages = %d, want 1", resp.Pagination.TotalPages)
	}
}

func TestWaitingQueueDoctorFilter(t *testing.T) {
	h, _, _ := newFixture(t)

	rec := doRequest(t, h, http.MethodGet, "/queue/waiting?doctor_id=d2", "")
	var resp struct {
		Items []queue.QueueItem `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// d2 has e3 plus e4 (p1's winner moved to d2)
	if len(resp.Items) != 2 {
		t.Fatalf("Items = %d, want 2: %+v", len(resp.Items), resp.Items)
	}
	for _, it := range resp.Items {
		if it.DoctorID != "d2" {
			t.Errorf("Item %s has doctor %q", it.EncounterID, it.DoctorID)
		}
	}
}

func TestWaitingQueuePageClamp(t *testing.T) {
	h, _, _ := newFixture(t)

	rec := doRequest(t, h, http.MethodGet, "/queue/waiting?page=99&page_size=2", "")
	var resp struct {
		Items      []queue.QueueItem `json:"items"`
		Pagination pageMeta          `json:"pagination"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if resp.Pagination.Page != resp.Pagination.TotalPages {
		t.Errorf("Page = %d, want clamped to last page %d", resp.Pagination.Page, resp.Pagination.TotalPages)
	}
	if len(resp.Items) == 0 {
		t.Error("Clamped page must not be empty while items exist")
	}
}

func TestDoctorQueuesRosterOrder(t *testing.T) {
	h, _, _ := newFixture(t)

	rec := doRequest(t, h, http.MethodGet, "/queue/doctors", "")
	var resp struct {
		Doctors []doctorQueue `json:"doctors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(resp.Doctors) != 2 {
		t.Fatalf("Doctors = %d, want 2", len(resp.Doctors))
	}
	// Room 3 before room 12
	if resp.Doctors[0].Doctor.DoctorID != "d1" || resp.Doctors[1].Doctor.DoctorID != "d2" {
		t.Errorf("Roster order = [%s %s], want [d1 d2]",
			resp.Doctors[0].Doctor.DoctorID, resp.Doctors[1].Doctor.DoctorID)
	}
	if resp.Doctors[1].Waiting != 2 {
		t.Errorf("d2 waiting = %d, want 2", resp.Doctors[1].Waiting)
	}
}

func TestPaymentPendingFilter(t *testing.T) {
	h, _, _ := newFixture(t)

	rec := doRequest(t, h, http.MethodGet, "/queue/payment", "")
	var resp struct {
		Items []queue.QueueItem `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].EncounterID != "e2" {
		t.Errorf("Items = %+v, want only e2", resp.Items)
	}
}

func TestImagingQueueView(t *testing.T) {
	h, _, _ := newFixture(t)

	rec := doRequest(t, h, http.MethodGet, "/queue/imaging", "")
	var resp struct {
		Items []queue.QueueItem `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Errorf("Items = %d, want 2", len(resp.Items))
	}
}

func TestPendingOrdersGrouped(t *testing.T) {
	h, _, _ := newFixture(t)

	rec := doRequest(t, h, http.MethodGet, "/orders/pending", "")
	var resp struct {
		Groups []queue.PatientOrders `json:"groups"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(resp.Groups) != 2 {
		t.Fatalf("Groups = %d, want 2", len(resp.Groups))
	}
	if resp.Groups[0].PatientID != "p1" || len(resp.Groups[0].Orders) != 2 {
		t.Errorf("First group = %+v, want p1 with 2 orders", resp.Groups[0])
	}
}

func TestPendingOrdersUpstreamError(t *testing.T) {
	h, _, _ := newFixture(t)
	h.orders = &fakeOrders{ordersErr: errors.Upstream(fmt.Errorf("down"))}

	rec := doRequest(t, h, http.MethodGet, "/orders/pending", "")
	if rec.Code != http.StatusBadGateway {
		t.Errorf("Status = %d, want 502", rec.Code)
	}
}

func TestSyncStatusWithoutChannel(t *testing.T) {
	h, _, _ := newFixture(t)

	rec := doRequest(t, h, http.MethodGet, "/sync/status", "")
	var resp struct {
		Channel  string                               `json:"channel"`
		Degraded bool                                 `json:"degraded"`
		Domains  map[store.Domain]store.DomainStatus `json:"domains"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if resp.Channel != "disabled" || !resp.Degraded {
		t.Errorf("channel=%q degraded=%v, want disabled/true", resp.Channel, resp.Degraded)
	}
	if len(resp.Domains) != len(store.AllDomains) {
		t.Errorf("Domains = %d, want %d", len(resp.Domains), len(store.AllDomains))
	}
}

func TestConfirmOrderAction(t *testing.T) {
	h, sink, trigger := newFixture(t)

	body := `{"encounter_id": "e1", "last_order_completed": true, "choice": "checkout"}`
	rec := doRequest(t, h, http.MethodPost, "/orders/o1/confirm", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Status = %d, body %s", rec.Code, rec.Body.String())
	}

	if len(sink.calls) != 2 || sink.calls[0] != "confirm:o1" || sink.calls[1] != "state:e1:WAITING_PAYMENT" {
		t.Errorf("Sink calls = %v", sink.calls)
	}
	if len(trigger.domains) == 0 {
		t.Error("Expected refresh triggers after a confirmed order")
	}
}

func TestAssignDoctorAction(t *testing.T) {
	h, sink, _ := newFixture(t)

	rec := doRequest(t, h, http.MethodPost, "/orders/o3/assign", `{"doctor_id": "rad1"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(sink.calls) != 1 || sink.calls[0] != "assign:o3" {
		t.Errorf("Sink calls = %v", sink.calls)
	}
}

func TestSetStateActionRejectsBadState(t *testing.T) {
	h, sink, _ := newFixture(t)

	rec := doRequest(t, h, http.MethodPost, "/encounters/e1/state", `{"state": "WARP"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", rec.Code)
	}
	if len(sink.calls) != 0 {
		t.Errorf("Sink calls = %v, want none", sink.calls)
	}
}

func TestCancelEncounterAction(t *testing.T) {
	h, sink, _ := newFixture(t)

	rec := doRequest(t, h, http.MethodPost, "/encounters/e2/cancel", `{"reason": "patient left"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Status = %d", rec.Code)
	}
	if len(sink.calls) != 1 || sink.calls[0] != "cancel:e2" {
		t.Errorf("Sink calls = %v", sink.calls)
	}
}

func TestAppRequestActions(t *testing.T) {
	h, sink, _ := newFixture(t)

	if rec := doRequest(t, h, http.MethodPost, "/app-requests/r1/approve", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("approve status = %d", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodPost, "/app-requests/r2/reject", `{"reason": "duplicate"}`); rec.Code != http.StatusAccepted {
		t.Fatalf("reject status = %d", rec.Code)
	}
	if len(sink.calls) != 2 || sink.calls[0] != "approve:r1" || sink.calls[1] != "reject:r2" {
		t.Errorf("Sink calls = %v", sink.calls)
	}
}

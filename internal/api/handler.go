package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/meracare/frontdesk/internal/dispatch"
	"github.com/meracare/frontdesk/internal/events"
	"github.com/meracare/frontdesk/internal/queue"
	"github.com/meracare/frontdesk/internal/store"
)

// OrderSource serves the on-demand fetches that bypass the store: pending
// order lists (regrouped on every request, never cached) and server-side
// patient search.
type OrderSource interface {
	FetchPendingOrders(ctx context.Context, typ queue.OrderType) ([]queue.Order, error)
	FetchRadiologists(ctx context.Context) ([]queue.DoctorRosterEntry, error)
	SearchQueue(ctx context.Context, queueType, search string) (queue.Snapshot, error)
}

// Handler serves the derived queue views and the operator action endpoints.
// View reads never block on the HIS: they derive from the store's last-known
// snapshots. Only search and order grouping reach upstream per request.
type Handler struct {
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	orders     OrderSource
	source     events.Source // nil when the event channel is disabled
	pageSize   int
	log        zerolog.Logger
}

// NewHandler creates the console API handler. source may be nil.
func NewHandler(st *store.Store, d *dispatch.Dispatcher, orders OrderSource, source events.Source, pageSize int, log zerolog.Logger) *Handler {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Handler{
		store:      st,
		dispatcher: d,
		orders:     orders,
		source:     source,
		pageSize:   pageSize,
		log:        log,
	}
}

// Routes registers the console routes.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/queue/waiting", h.WaitingQueue)
	r.Get("/queue/doctors", h.DoctorQueues)
	r.Get("/queue/additional-care", h.AdditionalCare)
	r.Get("/queue/payment", h.PaymentPending)
	r.Get("/queue/imaging", h.ImagingQueue)
	r.Get("/queue/completed", h.Completed)
	r.Get("/orders/pending", h.PendingOrders)
	r.Get("/stats", h.Stats)
	r.Get("/roster", h.Roster)
	r.Get("/roster/radiologists", h.Radiologists)
	r.Get("/app-requests", h.AppRequests)
	r.Get("/sync/status", h.SyncStatus)

	r.Post("/orders/{orderID}/confirm", h.ConfirmOrder)
	r.Post("/orders/{orderID}/assign", h.AssignDoctor)
	r.Post("/encounters/{encounterID}/state", h.SetState)
	r.Post("/encounters/{encounterID}/measurements", h.SubmitMeasurements)
	r.Post("/encounters/{encounterID}/cancel", h.CancelEncounter)
	r.Post("/app-requests/{requestID}/approve", h.ApproveAppRequest)
	r.Post("/app-requests/{requestID}/reject", h.RejectAppRequest)

	return r
}

// waitingItems derives the deduplicated active waiting list from the
// current snapshot.
func (h *Handler) waitingItems() ([]queue.QueueItem, int) {
	snap := h.store.WaitingQueue()
	items := queue.Active(queue.DedupLatestByPatient(snap.Items))
	return items, snap.TotalWaiting
}

// WaitingQueue serves the clinic waiting list, optionally filtered to one
// doctor or by a patient search term.
func (h *Handler) WaitingQueue(w http.ResponseWriter, r *http.Request) {
	var items []queue.QueueItem
	var totalWaiting int

	if search := r.URL.Query().Get("search"); search != "" {
		snap, err := h.orders.SearchQueue(r.Context(), "clinic", search)
		if err != nil {
			writeError(w, err)
			return
		}
		items = queue.Active(queue.DedupLatestByPatient(snap.Items))
		totalWaiting = snap.TotalWaiting
	} else {
		items, totalWaiting = h.waitingItems()
	}

	if doctorID := r.URL.Query().Get("doctor_id"); doctorID != "" {
		items = queue.BucketByDoctor(items)[doctorID]
	}

	page, pageSize := h.pageParams(r)
	pageItems, meta := paginate(items, page, pageSize)
	writeJSON(w, http.StatusOK, map[string]any{
		"items":         pageItems,
		"total_waiting": totalWaiting,
		"pagination":    meta,
	})
}

// doctorQueue is one doctor's slice of the waiting list.
type doctorQueue struct {
	Doctor  queue.DoctorRosterEntry `json:"doctor"`
	Waiting int                     `json:"waiting"`
	Items   []queue.QueueItem       `json:"items"`
}

// DoctorQueues serves the per-doctor waiting lists, in roster order (room
// number, then name), with unassigned patients in a trailing bucket.
func (h *Handler) DoctorQueues(w http.ResponseWriter, r *http.Request) {
	items, _ := h.waitingItems()
	buckets := queue.BucketByDoctor(items)

	roster := append([]queue.DoctorRosterEntry(nil), h.store.Roster()...)
	queue.SortRoster(roster)

	queues := make([]doctorQueue, 0, len(roster))
	for _, doctor := range roster {
		bucket := buckets[doctor.DoctorID]
		queues = append(queues, doctorQueue{
			Doctor:  doctor,
			Waiting: len(bucket),
			Items:   bucket,
		})
		delete(buckets, doctor.DoctorID)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"doctors":    queues,
		"unassigned": buckets[""],
	})
}

// AdditionalCare serves returning patients re-queued for the clinic.
func (h *Handler) AdditionalCare(w http.ResponseWriter, r *http.Request) {
	items, _ := h.waitingItems()
	h.writeSubQueue(w, r, queue.AdditionalCare(items))
}

// PaymentPending serves encounters waiting at the cashier.
func (h *Handler) PaymentPending(w http.ResponseWriter, r *http.Request) {
	items, _ := h.waitingItems()
	h.writeSubQueue(w, r, queue.PaymentPending(items))
}

// ImagingQueue serves the imaging queue snapshot's active encounters.
func (h *Handler) ImagingQueue(w http.ResponseWriter, r *http.Request) {
	snap := h.store.ImagingQueue()
	items := queue.ImagingActive(queue.DedupLatestByPatient(snap.Items))
	h.writeSubQueue(w, r, items)
}

// Completed serves today's completed encounters.
func (h *Handler) Completed(w http.ResponseWriter, r *http.Request) {
	snap := h.store.WaitingQueue()
	items := queue.Completed(queue.DedupLatestByPatient(snap.Items))
	h.writeSubQueue(w, r, items)
}

func (h *Handler) writeSubQueue(w http.ResponseWriter, r *http.Request, items []queue.QueueItem) {
	page, pageSize := h.pageParams(r)
	pageItems, meta := paginate(items, page, pageSize)
	writeJSON(w, http.StatusOK, map[string]any{
		"items":      pageItems,
		"pagination": meta,
	})
}

// PendingOrders serves pending orders grouped by patient. The grouping is
// recomputed from a fresh fetch on every request.
func (h *Handler) PendingOrders(w http.ResponseWriter, r *http.Request) {
	typ := queue.OrderType(r.URL.Query().Get("type"))
	orders, err := h.orders.FetchPendingOrders(r.Context(), typ)
	if err != nil {
		writeError(w, err)
		return
	}

	groups := queue.GroupOrdersByPatient(orders)
	page, pageSize := h.pageParams(r)
	pageGroups, meta := paginate(groups, page, pageSize)
	writeJSON(w, http.StatusOK, map[string]any{
		"groups":     pageGroups,
		"pagination": meta,
	})
}

// Stats serves the dashboard counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Stats())
}

// Roster serves today's doctor roster, sorted by room then name.
func (h *Handler) Roster(w http.ResponseWriter, r *http.Request) {
	roster := append([]queue.DoctorRosterEntry(nil), h.store.Roster()...)
	queue.SortRoster(roster)
	writeJSON(w, http.StatusOK, map[string]any{"doctors": roster})
}

// Radiologists serves the radiologist roster for imaging assignment.
func (h *Handler) Radiologists(w http.ResponseWriter, r *http.Request) {
	roster, err := h.orders.FetchRadiologists(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	queue.SortRoster(roster)
	writeJSON(w, http.StatusOK, map[string]any{"radiologists": roster})
}

// AppRequests serves pending patient-app requests.
func (h *Handler) AppRequests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"requests": h.store.AppRequests(),
	})
}

// SyncStatus reports the event channel state and the per-domain refresh
// picture. Degraded mode is an explicit condition the console surfaces.
func (h *Handler) SyncStatus(w http.ResponseWriter, r *http.Request) {
	channelState := "disabled"
	degraded := true
	if h.source != nil {
		state := h.source.State()
		channelState = state.String()
		degraded = state != events.StateConnected
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"channel":  channelState,
		"degraded": degraded,
		"domains":  h.store.Statuses(),
	})
}

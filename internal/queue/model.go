package queue

import "time"

// WorkflowState is the encounter position in the clinic workflow. The HIS
// owns the state machine; this service only requests transitions and
// reflects the resulting snapshots.
type WorkflowState string

const (
	StateWaitingClinic  WorkflowState = "WAITING_CLINIC"
	StateInClinic       WorkflowState = "IN_CLINIC"
	StateWaitingResults WorkflowState = "WAITING_RESULTS"
	StateWaitingImaging WorkflowState = "WAITING_IMAGING"
	StateInImaging      WorkflowState = "IN_IMAGING"
	StateWaitingPayment WorkflowState = "WAITING_PAYMENT"
	StateCompleted      WorkflowState = "COMPLETED"
	StateCancelled      WorkflowState = "CANCELLED"
)

// Terminal reports whether the state removes the encounter from all active
// queue views.
func (s WorkflowState) Terminal() bool {
	return s == StateCompleted || s == StateCancelled
}

// Valid reports whether the state is one the HIS can produce.
func (s WorkflowState) Valid() bool {
	switch s {
	case StateWaitingClinic, StateInClinic, StateWaitingResults,
		StateWaitingImaging, StateInImaging, StateWaitingPayment,
		StateCompleted, StateCancelled:
		return true
	}
	return false
}

// QuestionnaireStatus tracks the patient intake questionnaire
type QuestionnaireStatus string

const (
	QuestionnaireNotStarted QuestionnaireStatus = "NOT_STARTED"
	QuestionnaireInProgress QuestionnaireStatus = "IN_PROGRESS"
	QuestionnaireCompleted  QuestionnaireStatus = "COMPLETED"
)

// OrderType is the broad order class
type OrderType string

const (
	OrderTypeLab     OrderType = "LAB"
	OrderTypeImaging OrderType = "IMAGING"
)

// OrderCategory is the specific test kind
type OrderCategory string

const (
	CategoryGenomic    OrderCategory = "GENOMIC"
	CategoryBloodLiver OrderCategory = "BLOOD_LIVER"
	CategoryVital      OrderCategory = "VITAL"
	CategoryPhysical   OrderCategory = "PHYSICAL"
)

// OrderStatus is the order lifecycle position
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderCompleted OrderStatus = "COMPLETED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Order is a requested lab/imaging/vital/physical test
type Order struct {
	ID          string        `json:"id"`
	Type        OrderType     `json:"type"`
	Category    OrderCategory `json:"category"`
	Status      OrderStatus   `json:"status"`
	EncounterID string        `json:"encounter_id"`
	PatientID   string        `json:"patient_id"`
	PatientName string        `json:"patient_name"`
	DoctorID    string        `json:"doctor_id"`
	CreatedAt   time.Time     `json:"created_at"`
}

// OrderSummary is the denormalized order status carried on a queue item
type OrderSummary struct {
	OrderID string      `json:"order_id"`
	Type    OrderType   `json:"type"`
	Status  OrderStatus `json:"status"`
}

// QueueItem is the HIS projection of one encounter plus denormalized
// patient fields. It is never authored by this service.
type QueueItem struct {
	EncounterID   string              `json:"encounter_id"`
	PatientID     string              `json:"patient_id"`
	PatientName   string              `json:"patient_name"`
	DateOfBirth   string              `json:"date_of_birth"`
	Age           int                 `json:"age"`
	Gender        string              `json:"gender"`
	WorkflowState WorkflowState       `json:"workflow_state"`
	DoctorID      string              `json:"doctor_id"`
	Questionnaire QuestionnaireStatus `json:"questionnaire_status"`
	IsReturning   bool                `json:"is_returning"`
	Orders        []OrderSummary      `json:"orders,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	StateSince    *time.Time          `json:"state_entered_at,omitempty"`
}

// Snapshot is one fetched queue snapshot
type Snapshot struct {
	Items        []QueueItem `json:"queue"`
	TotalWaiting int         `json:"total_waiting"`
}

// DashboardStats are the front-desk dashboard counters
type DashboardStats struct {
	TotalPatients     int `json:"total_patients"`
	ClinicWaiting     int `json:"clinic_waiting"`
	ClinicInProgress  int `json:"clinic_in_progress"`
	ImagingWaiting    int `json:"imaging_waiting"`
	ImagingInProgress int `json:"imaging_in_progress"`
	CompletedToday    int `json:"completed_today"`
}

// DoctorRosterEntry describes one doctor on today's roster
type DoctorRosterEntry struct {
	DoctorID   string `json:"doctor_id"`
	Name       string `json:"name"`
	Department string `json:"department"`
	RoomNumber string `json:"room_number,omitempty"`
}

// AppRequestKind distinguishes app-originated request types
type AppRequestKind string

const (
	AppRequestSync        AppRequestKind = "sync"
	AppRequestAppointment AppRequestKind = "appointment"
)

// AppSyncRequest is a patient-app originated request awaiting operator review
type AppSyncRequest struct {
	ID          string         `json:"id"`
	Kind        AppRequestKind `json:"kind"`
	PatientID   string         `json:"patient_id"`
	PatientName string         `json:"patient_name"`
	RequestedAt time.Time      `json:"requested_at"`
	Detail      map[string]any `json:"detail,omitempty"`
}

// PatientOrders groups one patient's orders for batch operator action
type PatientOrders struct {
	PatientID   string  `json:"patient_id"`
	PatientName string  `json:"patient_name"`
	Orders      []Order `json:"orders"`
}

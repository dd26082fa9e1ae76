package audit

import (
	"time"

	"github.com/meracare/frontdesk/internal/shared/types"
)

// Outcome is the result of a dispatched operator action.
type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeRejected Outcome = "rejected"
	OutcomeFailed   Outcome = "failed"
)

// Entry is one operator action as seen by the dispatcher. The audit trail
// records intent and outcome; the HIS remains the source of truth for the
// resulting patient state.
type Entry struct {
	ID             types.ID       `json:"id"`
	OccurredAt     time.Time      `json:"occurred_at"`
	ActorID        string         `json:"actor_id"`
	ActorName      string         `json:"actor_name"`
	ActorRole      string         `json:"actor_role"`
	Action         string         `json:"action"`
	ResourceType   string         `json:"resource_type"`
	ResourceID     string         `json:"resource_id"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	Outcome        Outcome        `json:"outcome"`
	Detail         map[string]any `json:"detail,omitempty"`
}

// ListFilter narrows an audit listing.
type ListFilter struct {
	ResourceType string
	ResourceID   string
	ActorID      string
	Limit        int
}

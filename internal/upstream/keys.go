package upstream

import (
	"strings"

	"github.com/meracare/frontdesk/internal/queue"
	"github.com/meracare/frontdesk/internal/shared/types"
)

// Command idempotency keys. Each key is derived deterministically from the
// command's natural identifiers, so a retried request reuses the same key
// and the HIS cannot double-apply it. The dispatcher stamps the same key
// onto the audit row, which ties an audit entry to the upstream request it
// produced.

func ConfirmOrderKey(orderID string) string {
	return commandKey("confirm-order", orderID)
}

func AssignDoctorKey(orderID, doctorID string) string {
	return commandKey("assign-order", orderID, doctorID)
}

func SetStateKey(encounterID string, state queue.WorkflowState) string {
	return commandKey("set-state", encounterID, string(state))
}

// MeasurementsKey is day-scoped: vitals re-submitted on a later day are a
// new command, not a retry.
func MeasurementsKey(encounterID string) string {
	return commandKey("measurements", encounterID, today())
}

func CancelEncounterKey(encounterID string) string {
	return commandKey("cancel-encounter", encounterID)
}

func ApproveRequestKey(requestID string) string {
	return commandKey("approve-request", requestID)
}

func RejectRequestKey(requestID string) string {
	return commandKey("reject-request", requestID)
}

func commandKey(parts ...string) string {
	return types.NewDeterministicID("frontdesk-command", strings.Join(parts, "/")).String()
}

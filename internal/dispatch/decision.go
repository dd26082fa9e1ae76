package dispatch

import "github.com/meracare/frontdesk/internal/queue"

// OperatorChoice is the operator's answer to "where does the patient go
// next" after the last order of an encounter completes. It only matters
// when no imaging order is present; an imaging order always takes
// precedence.
type OperatorChoice string

const (
	ChoiceNone           OperatorChoice = ""
	ChoiceAdditionalCare OperatorChoice = "additional_care"
	ChoiceCheckout       OperatorChoice = "checkout"
)

// NextTransition decides the workflow transition to request after an order
// confirmation. Returns the target state and whether a transition should be
// requested at all.
//
//	lastOrderCompleted  hasImagingOrder  choice           → transition
//	false               any              any              → none
//	true                true             any              → WAITING_IMAGING
//	true                false            additional_care  → WAITING_CLINIC
//	true                false            otherwise        → WAITING_PAYMENT
func NextTransition(lastOrderCompleted, hasImagingOrder bool, choice OperatorChoice) (queue.WorkflowState, bool) {
	if !lastOrderCompleted {
		return "", false
	}
	if hasImagingOrder {
		return queue.StateWaitingImaging, true
	}
	if choice == ChoiceAdditionalCare {
		return queue.StateWaitingClinic, true
	}
	return queue.StateWaitingPayment, true
}

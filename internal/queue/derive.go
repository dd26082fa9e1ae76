package queue

import (
	"sort"
	"strconv"
	"strings"
)

// Derivations are pure functions over snapshots. They never mutate their
// inputs and never touch the store; every view the console renders is
// recomputed from the current snapshot through these.

// DedupLatestByPatient keeps, for each patient, only the queue item with the
// greatest CreatedAt. When two encounters for the same patient share an
// identical CreatedAt, the greater encounter ID wins. The winner occupies
// the position where its patient first appeared, so output order is stable
// across re-derivations.
func DedupLatestByPatient(items []QueueItem) []QueueItem {
	result := make([]QueueItem, 0, len(items))
	index := make(map[string]int, len(items))

	for _, item := range items {
		pos, seen := index[item.PatientID]
		if !seen {
			index[item.PatientID] = len(result)
			result = append(result, item)
			continue
		}

		current := result[pos]
		if item.CreatedAt.After(current.CreatedAt) ||
			(item.CreatedAt.Equal(current.CreatedAt) && item.EncounterID > current.EncounterID) {
			result[pos] = item
		}
	}

	return result
}

// Active filters out encounters in a terminal state, order preserved.
func Active(items []QueueItem) []QueueItem {
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		if !item.WorkflowState.Terminal() {
			out = append(out, item)
		}
	}
	return out
}

// Completed returns only terminal COMPLETED encounters, order preserved.
func Completed(items []QueueItem) []QueueItem {
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		if item.WorkflowState == StateCompleted {
			out = append(out, item)
		}
	}
	return out
}

// BucketByDoctor partitions queue items by their canonical doctor ID (the
// normalization adapter has already folded the doctor field variants).
// Unassigned items land under the empty key.
func BucketByDoctor(items []QueueItem) map[string][]QueueItem {
	buckets := make(map[string][]QueueItem)
	for _, item := range items {
		buckets[item.DoctorID] = append(buckets[item.DoctorID], item)
	}
	return buckets
}

// AdditionalCare selects returning patients re-queued for the clinic.
func AdditionalCare(items []QueueItem) []QueueItem {
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		if item.WorkflowState == StateWaitingClinic && item.IsReturning {
			out = append(out, item)
		}
	}
	return out
}

// PaymentPending selects encounters waiting at the cashier.
func PaymentPending(items []QueueItem) []QueueItem {
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		if item.WorkflowState == StateWaitingPayment {
			out = append(out, item)
		}
	}
	return out
}

// ImagingActive selects encounters queued for or undergoing imaging.
func ImagingActive(items []QueueItem) []QueueItem {
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		if item.WorkflowState == StateWaitingImaging || item.WorkflowState == StateInImaging {
			out = append(out, item)
		}
	}
	return out
}

// GroupOrdersByPatient groups a raw order list by patient so an operator can
// process all of one patient's pending orders together. Group order follows
// each patient's first appearance in the input.
func GroupOrdersByPatient(orders []Order) []PatientOrders {
	groups := make([]PatientOrders, 0)
	index := make(map[string]int)

	for _, o := range orders {
		pos, seen := index[o.PatientID]
		if !seen {
			pos = len(groups)
			index[o.PatientID] = pos
			groups = append(groups, PatientOrders{
				PatientID:   o.PatientID,
				PatientName: o.PatientName,
			})
		}
		if groups[pos].PatientName == "" {
			groups[pos].PatientName = o.PatientName
		}
		groups[pos].Orders = append(groups[pos].Orders, o)
	}

	return groups
}

// TotalPages returns the page count for n items; 0 when the list is empty.
func TotalPages(n, pageSize int) int {
	if n <= 0 || pageSize <= 0 {
		return 0
	}
	return (n + pageSize - 1) / pageSize
}

// ClampPage keeps the operator's page selection valid after a refresh
// shrinks the list: the page only moves when it fell past the last page.
func ClampPage(page, totalPages int) int {
	if page < 1 {
		return 1
	}
	if totalPages > 0 && page > totalPages {
		return totalPages
	}
	return page
}

// Page slices one page out of items. Pages are 1-based.
func Page[T any](items []T, page, pageSize int) []T {
	if pageSize <= 0 || page < 1 {
		return nil
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// SortRoster orders the roster by numeric room number then name; entries
// with non-numeric or missing rooms sort last, by name.
func SortRoster(entries []DoctorRosterEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		ri, iok := roomNumber(entries[i].RoomNumber)
		rj, jok := roomNumber(entries[j].RoomNumber)
		switch {
		case iok && jok:
			if ri != rj {
				return ri < rj
			}
			return entries[i].Name < entries[j].Name
		case iok:
			return true
		case jok:
			return false
		default:
			return entries[i].Name < entries[j].Name
		}
	})
}

func roomNumber(room string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(room))
	if err != nil {
		return 0, false
	}
	return n, true
}

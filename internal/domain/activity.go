package domain

import "time"

// Collection names one fact or aggregate collection clients can subscribe to.
type Collection string

// Collection values published by the change notifier.
const (
	CollectionWorkers    Collection = "workers"
	CollectionAttendance Collection = "attendance"
	CollectionExpenses   Collection = "expenses"
	CollectionPayroll    Collection = "payroll"
	CollectionBudget     Collection = "budget"
	CollectionActivity   Collection = "activity"
)

// Collections returns every known collection.
func Collections() []Collection {
	return []Collection{
		CollectionWorkers,
		CollectionAttendance,
		CollectionExpenses,
		CollectionPayroll,
		CollectionBudget,
		CollectionActivity,
	}
}

// ParseCollection validates a collection name.
func ParseCollection(raw string) (Collection, bool) {
	for _, c := range Collections() {
		if string(c) == raw {
			return c, true
		}
	}
	return "", false
}

// ActivityAction tags one audit-log entry.
type ActivityAction string

// ActivityAction values written by the service layer.
const (
	ActionWorkerCreated       ActivityAction = "worker_created"
	ActionWorkerUpdated       ActivityAction = "worker_updated"
	ActionAttendanceMarked    ActivityAction = "attendance_marked"
	ActionAttendanceCorrected ActivityAction = "attendance_corrected"
	ActionExpenseRecorded     ActivityAction = "expense_recorded"
	ActionPayrollCommitted    ActivityAction = "payroll_committed"
	ActionPayrollPaid         ActivityAction = "payroll_paid"
	ActionPayrollUnpaid       ActivityAction = "payroll_unpaid"
	ActionBudgetSet           ActivityAction = "budget_set"
	ActionBudgetRecalculated  ActivityAction = "budget_recalculated"
)

// ActivityEntry is one immutable audit-log row. ID is assigned by storage.
type ActivityEntry struct {
	ID         int64             `json:"id"`
	Action     ActivityAction    `json:"action_type"`
	Collection Collection        `json:"collection"`
	SubjectID  string            `json:"subject_id,omitempty"`
	Message    string            `json:"message"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// NewActivityEntry builds an unsaved entry.
func NewActivityEntry(action ActivityAction, collection Collection, subjectID, message string, metadata map[string]string, now time.Time) ActivityEntry {
	return ActivityEntry{
		Action:     action,
		Collection: collection,
		SubjectID:  subjectID,
		Message:    message,
		Metadata:   metadata,
		OccurredAt: now.UTC(),
	}
}

package cases

import "time"

// Status is the case lifecycle state. The lifecycle is ordered but not
// strictly linear: Pending can follow InProgress and reopening is allowed.
type Status string

const (
	StatusOpen       Status = "Open"
	StatusInProgress Status = "InProgress"
	StatusPending    Status = "Pending"
	StatusResolved   Status = "Resolved"
	StatusClosed     Status = "Closed"
)

// ValidStatus reports whether s is a known lifecycle state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusPending, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Active reports whether the status keeps the SLA clock running.
func (s Status) Active() bool {
	return s == StatusOpen || s == StatusInProgress
}

// Priority drives which SLA threshold applies to a case.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// ValidPriority reports whether p is a known priority.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Priorities lists every priority in ascending order of urgency.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Case is a support case. It belongs to exactly one customer; the optional
// associations point at the customer's systems, sites and orders.
type Case struct {
	ID              int64      `json:"id"`
	CustomerID      int64      `json:"customer_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Status          Status     `json:"status"`
	Priority        Priority   `json:"priority"`
	SystemID        *int64     `json:"system_id,omitempty"`
	ComponentID     *int64     `json:"component_id,omitempty"`
	SiteID          *int64     `json:"site_id,omitempty"`
	OrderID         *int64     `json:"order_id,omitempty"`
	AssignedUserID  *int64     `json:"assigned_user_id,omitempty"`
	CreatedBy       string     `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DueDate         *time.Time `json:"due_date,omitempty"`
	FirstResponseAt *time.Time `json:"first_response_at,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
}

// Relationship is one directed edge of a case-to-case link. Edges always
// exist as mirrored pairs: creating A→B also creates B→A with the same
// type, and deleting one side removes both.
type Relationship struct {
	ID            int64     `json:"id"`
	SourceCaseID  int64     `json:"source_case_id"`
	RelatedCaseID int64     `json:"related_case_id"`
	Type          string    `json:"type"`
	Notes         string    `json:"notes,omitempty"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListQuery narrows a case listing. Nil fields are ignored.
type ListQuery struct {
	CustomerID     *int64
	Status         *Status
	Priority       *Priority
	AssignedUserID *int64
}

// Update carries a partial case mutation. Nil fields stay unchanged.
type Update struct {
	Title          *string
	Description    *string
	Status         *Status
	Priority       *Priority
	AssignedUserID *int64
	DueDate        *time.Time
}

// BulkUpdate is the mutation applied to each case in a bulk operation.
type BulkUpdate struct {
	Status         *Status
	AssignedUserID *int64
}

// CloseWarning is the advisory surfaced when a case is closed while related
// cases are still open. Closing succeeds regardless.
type CloseWarning struct {
	OpenRelatedCount int    `json:"open_related_count"`
	Message          string `json:"message"`
}

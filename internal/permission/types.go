package permission

import (
	"strings"
	"time"

	"mamacare.app/internal/auth"
)

// Status is the review state of a request.
type Status string

const (
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
)

// Statuses lists every status in workflow order.
var Statuses = []Status{StatusPending, StatusUnderReview, StatusApproved, StatusRejected}

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.TrimSpace(s)); st {
	case StatusPending, StatusUnderReview, StatusApproved, StatusRejected:
		return st, true
	}
	return "", false
}

// InFlight reports whether the requester may still edit or cancel.
// At most one in-flight request exists per (requester, role).
func (s Status) InFlight() bool {
	return s == StatusPending || s == StatusUnderReview
}

// Terminal reports whether single-request review can no longer move the request.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Priority orders the admin queue.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists every priority.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// ParsePriority validates a priority string.
func ParsePriority(s string) (Priority, bool) {
	switch p := Priority(strings.TrimSpace(s)); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, true
	}
	return "", false
}

// RequestType classifies what the requester is asking for.
type RequestType string

const (
	TypePermission   RequestType = "permission_request"
	TypeVerification RequestType = "verification_request"
	TypeAccess       RequestType = "access_request"
)

// ParseRequestType validates a request type string.
func ParseRequestType(s string) (RequestType, bool) {
	switch t := RequestType(strings.TrimSpace(s)); t {
	case TypePermission, TypeVerification, TypeAccess:
		return t, true
	}
	return "", false
}

// ParseRole accepts only the roles that go through review.
func ParseRole(s string) (auth.Role, error) {
	r, ok := auth.ParseRole(s)
	if !ok || !r.Elevated() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// Document is supporting material attached by the requester.
type Document struct {
	Name       string    `json:"name"`
	URL        string    `json:"url"`
	Type       string    `json:"type,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Note is an admin remark. Notes are append-only and never deduplicated.
type Note struct {
	AdminID       string    `json:"adminId"`
	AdminUsername string    `json:"adminUsername"`
	Note          string    `json:"note"`
	Timestamp     time.Time `json:"timestamp"`
}

// Review records who last moved the request and when.
type Review struct {
	AdminID       string    `json:"adminId"`
	AdminUsername string    `json:"adminUsername"`
	ReviewedAt    time.Time `json:"reviewedAt"`
}

// Request is a requester's application to act in an elevated role.
type Request struct {
	ID              string      `json:"id"`
	UserID          string      `json:"userId"`
	UserEmail       string      `json:"userEmail"`
	UserRole        auth.Role   `json:"userRole"`
	RequestType     RequestType `json:"requestType"`
	Status          Status      `json:"status"`
	Details         Details     `json:"requestDetails"`
	Documents       []Document  `json:"documents"`
	AdminNotes      []Note      `json:"adminNotes"`
	ReviewedBy      *Review     `json:"reviewedBy,omitempty"`
	ReviewDate      *time.Time  `json:"reviewDate,omitempty"`
	RejectionReason string      `json:"rejectionReason,omitempty"`
	Priority        Priority    `json:"priority"`
	IsUrgent        bool        `json:"isUrgent"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
}

// Clone returns a deep copy so callers cannot alias stored slices.
func (r Request) Clone() Request {
	out := r
	if r.Details != nil {
		out.Details = r.Details.Clone()
	}
	out.Documents = append([]Document(nil), r.Documents...)
	out.AdminNotes = append([]Note(nil), r.AdminNotes...)
	if r.ReviewedBy != nil {
		rv := *r.ReviewedBy
		out.ReviewedBy = &rv
	}
	if r.ReviewDate != nil {
		d := *r.ReviewDate
		out.ReviewDate = &d
	}
	return out
}

// StatusChange is the write applied by single and bulk status updates.
type StatusChange struct {
	Status     Status
	ReviewedBy Review
	// RejectionReason nil leaves the stored reason unchanged; a pointer to ""
	// clears it.
	RejectionReason *string
	// Note, when set, is appended in the same write as the status.
	Note *Note
}

// Filter narrows admin listings. Zero values match everything.
type Filter struct {
	Status   Status
	Role     auth.Role
	Priority Priority
	Search   string
}

// Stats is the admin dashboard aggregate.
type Stats struct {
	ByStatus   map[Status]int    `json:"byStatus"`
	ByRole     map[auth.Role]int `json:"byRole"`
	ByPriority map[Priority]int  `json:"byPriority"`
	Urgent     int               `json:"urgent"`
	Recent     int               `json:"recent"`
	Total      int               `json:"total"`
}

// Pagination describes one page of an admin listing.
type Pagination struct {
	CurrentPage   int  `json:"currentPage"`
	TotalPages    int  `json:"totalPages"`
	TotalRequests int  `json:"totalRequests"`
	HasNext       bool `json:"hasNext"`
	HasPrev       bool `json:"hasPrev"`
}

// Page is a slice of requests plus its pagination block.
type Page struct {
	Requests   []Request  `json:"requests"`
	Pagination Pagination `json:"pagination"`
}

// BulkResult reports a bulk status update.
type BulkResult struct {
	ModifiedCount  int `json:"updatedCount"`
	RequestedCount int `json:"totalRequested"`
}

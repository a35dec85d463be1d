package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Role identifies which side of the marketplace a session belongs to
type Role string

const (
	RoleClient    Role = "client"
	RoleInspector Role = "inspector"
)

// ParseRole validates a role taken from a path or message
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleClient, RoleInspector:
		return Role(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// ErrInvalidRole is returned for roles other than client and inspector
var ErrInvalidRole = fmt.Errorf("invalid role")

// Session is the end user's authenticated context on the marketplace backend.
// It is passed explicitly into every fetch.
type Session struct {
	Token  string
	UserID string
	Role   Role
}

// StatusCategory is the closed set of buckets a record status maps to
type StatusCategory string

const (
	CategoryCompleted      StatusCategory = "completed"
	CategoryRejected       StatusCategory = "rejected"
	CategoryWorkInProgress StatusCategory = "work_in_progress"
	CategoryPending        StatusCategory = "pending"
	CategoryUnclassified   StatusCategory = "unclassified"
)

// Availability tells the UI whether counts came from the backend at all
type Availability string

const (
	// Available means a candidate source answered successfully
	Available Availability = "available"
	// Degraded means every source failed but a raw listing was still recovered
	Degraded Availability = "degraded"
	// Unavailable means nothing usable came back; all counts are zero
	Unavailable Availability = "unavailable"
)

// WorkInProgressBasis records which definition produced WorkInProgress
type WorkInProgressBasis string

const (
	BasisStatus      WorkInProgressBasis = "status"
	BasisBids        WorkInProgressBasis = "bids"
	BasisPrecomputed WorkInProgressBasis = "precomputed"
	BasisNone        WorkInProgressBasis = "none"
)

// StatsSummary is the dashboard result. It is built once per computation
// and never mutated afterwards.
type StatsSummary struct {
	Completed      int `json:"completed"`
	Rejected       int `json:"rejected"`
	WorkInProgress int `json:"workInProgress"`
	Pending        int `json:"pending"`
	Applications   int `json:"applications"`
	Unclassified   int `json:"unclassified"`
	Total          int `json:"total"`

	WorkInProgressBasis WorkInProgressBasis `json:"workInProgressBasis"`
	Availability        Availability        `json:"availability"`
	Source              string              `json:"source,omitempty"`
	ComputedAt          time.Time           `json:"computedAt"`
}

// EmptySummary is the zeroed result returned when nothing could be fetched
func EmptySummary() StatsSummary {
	return StatsSummary{
		WorkInProgressBasis: BasisNone,
		Availability:        Unavailable,
	}
}

// Classified returns the sum of all named buckets
func (s StatsSummary) Classified() int {
	return s.Completed + s.Rejected + s.WorkInProgress + s.Pending
}

// Record is a job, bid or inspection request as returned by the backend.
// Status is left untyped: the backend sends ints, numeric strings or words.
type Record struct {
	ID     string `json:"id"`
	Status any    `json:"status"`
}

// UnmarshalJSON accepts the id under id, _id or jobId and keeps numbers as json.Number
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	for _, key := range []string{"id", "_id", "jobId", "bidId", "requestId"} {
		if v, ok := raw[key]; ok && v != nil {
			r.ID = fmt.Sprint(v)
			break
		}
	}
	r.Status = raw["status"]
	return nil
}

package models

import "time"

// RequestStatus is the review state of an aid request
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Valid reports whether s is one of the known statuses
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected:
		return true
	}
	return false
}

// Request is an aid request filed by a family
type Request struct {
	ID           int64         `json:"id"`
	FamilyID     int64         `json:"family_id"`
	Type         string        `json:"type"`
	Description  string        `json:"description"`
	Status       RequestStatus `json:"status"`
	AdminComment string        `json:"admin_comment"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

type RequestPatch struct {
	Type         *string
	Description  *string
	Status       *RequestStatus
	AdminComment *string
}

// RequestWithFamily pairs a request with its family. Family is nil when the
// family row no longer exists.
type RequestWithFamily struct {
	Request
	Family *Family `json:"family"`
}

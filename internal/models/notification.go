package models

import "time"

// Notification targets
const (
	TargetAll      = "all"
	TargetHeads    = "head"
	TargetAdmins   = "admin"
	TargetSpecific = "specific"
)

// Notification is a broadcast message. Recipients is only set for the
// "specific" target and holds user ids; a nil list and an empty list are
// stored differently.
type Notification struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Message    string    `json:"message"`
	Target     string    `json:"target"`
	Recipients []int64   `json:"recipients,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type NotificationPatch struct {
	Title      *string
	Message    *string
	Target     *string
	Recipients *[]int64
}

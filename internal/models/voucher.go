package models

import "time"

// SupportVoucher is a distribution of aid to a set of families
type SupportVoucher struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	SupportType string    `json:"support_type"`
	CreatedBy   int64     `json:"created_by"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

type SupportVoucherPatch struct {
	Title       *string
	Description *string
	SupportType *string
	IsActive    *bool
}

// Recipient statuses
const (
	RecipientPending  = "pending"
	RecipientReceived = "received"
)

// VoucherRecipient links a voucher to a family by reference
type VoucherRecipient struct {
	ID        int64     `json:"id"`
	VoucherID int64     `json:"voucher_id"`
	FamilyID  int64     `json:"family_id"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes"`
	UpdatedAt time.Time `json:"updated_at"`
}

type VoucherRecipientPatch struct {
	Status *string
	Notes  *string
}

// RecipientWithFamily is a recipient joined to the family it references
type RecipientWithFamily struct {
	VoucherRecipient
	Family Family `json:"family"`
}

// VoucherWithDetails is a voucher with its creator and resolved recipients.
// Creator is nil when the creating user no longer exists.
type VoucherWithDetails struct {
	SupportVoucher
	Creator    *User                 `json:"creator"`
	Recipients []RecipientWithFamily `json:"recipients"`
}

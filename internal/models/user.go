package models

import "time"

// User roles
const (
	RoleHead  = "head"
	RoleAdmin = "admin"
	RoleRoot  = "root"
)

// User represents an account in the registry. A non-nil DeletedAt marks the
// account as soft deleted.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	Phone        string     `json:"phone"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the user has been soft deleted
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// UserPatch holds a partial update; nil fields are left unchanged.
// Soft deletion has its own operations and cannot be patched.
type UserPatch struct {
	Username     *string
	PasswordHash *string
	Role         *string
	Phone        *string
}

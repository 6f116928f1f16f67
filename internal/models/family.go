package models

import "time"

// Family is the root of the household aggregate: wives, members, requests
// and documents all belong to exactly one family.
type Family struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	HusbandName  string    `json:"husband_name"`
	HusbandID    string    `json:"husband_id"` // national identifier
	PrimaryPhone string    `json:"primary_phone"`
	Branch       string    `json:"branch"`
	SocialStatus string    `json:"social_status"`
	TotalMembers int       `json:"total_members"`
	IsDisplaced  bool      `json:"is_displaced"`
	IsAbroad     bool      `json:"is_abroad"`
	WarDamage    bool      `json:"war_damage"`
	CreatedAt    time.Time `json:"created_at"`
}

type FamilyPatch struct {
	UserID       *int64
	HusbandName  *string
	HusbandID    *string
	PrimaryPhone *string
	Branch       *string
	SocialStatus *string
	TotalMembers *int
	IsDisplaced  *bool
	IsAbroad     *bool
	WarDamage    *bool
}

// Wife belongs to a family
type Wife struct {
	ID        int64     `json:"id"`
	FamilyID  int64     `json:"family_id"`
	WifeName  string    `json:"wife_name"`
	WifeID    string    `json:"wife_id"`
	CreatedAt time.Time `json:"created_at"`
}

type WifePatch struct {
	WifeName *string
	WifeID   *string
}

// Member is a dependent registered under a family
type Member struct {
	ID           int64     `json:"id"`
	FamilyID     int64     `json:"family_id"`
	FullName     string    `json:"full_name"`
	MemberID     string    `json:"member_id"`
	Gender       string    `json:"gender"`
	Relationship string    `json:"relationship"`
	IsDisabled   bool      `json:"is_disabled"`
	CreatedAt    time.Time `json:"created_at"`
}

type MemberPatch struct {
	FullName     *string
	MemberID     *string
	Gender       *string
	Relationship *string
	IsDisabled   *bool
}

// FamilyWithMembers combines a family with its member list
type FamilyWithMembers struct {
	Family
	Members []Member `json:"members"`
}

package models

import (
	"errors"
	"time"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrPhoneImmutable = errors.New("phone number cannot be changed")
)

// Role is a user's single role. Exactly one role at a time.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleSponsor Role = "sponsor"
	RoleUser    Role = "user"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSponsor, RoleUser:
		return true
	}
	return false
}

// User is an identity keyed by E.164 phone number.
type User struct {
	ID             int64      `json:"id"`
	Phone          string     `json:"phone"`
	Role           Role       `json:"role"`
	IsVerified     bool       `json:"is_verified"`
	FullName       string     `json:"full_name,omitempty"`
	Email          string     `json:"email,omitempty"`
	Bio            string     `json:"bio,omitempty"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	Timezone       string     `json:"timezone,omitempty"`
	TimezoneAuto   bool       `json:"timezone_auto_detect"`
	CreatedAt      time.Time  `json:"created_at"`
	RoleAssignedAt *time.Time `json:"role_assigned_at,omitempty"`
	RoleAssignedBy *int64     `json:"role_assigned_by,omitempty"`
}

// Age reports the user's age at now, or -1 when no date of birth is on file.
func (u *User) Age(now time.Time) int {
	if u.DateOfBirth == nil {
		return -1
	}
	dob := *u.DateOfBirth
	age := now.Year() - dob.Year()
	if now.YearDay() < dob.YearDay() {
		age--
	}
	return age
}

// SponsorProfile is the one-to-one sponsor record for a user of role=sponsor.
type SponsorProfile struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	CompanyName  string    `json:"company_name"`
	WebsiteURL   string    `json:"website_url,omitempty"`
	LogoURL      string    `json:"logo_url,omitempty"`
	ContactEmail string    `json:"contact_email,omitempty"`
	ContactPhone string    `json:"contact_phone,omitempty"`
	Industry     string    `json:"industry,omitempty"`
	Description  string    `json:"description,omitempty"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
}

// RoleAudit records a role change. Append-only.
type RoleAudit struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	OldRole   Role      `json:"old_role"`
	NewRole   Role      `json:"new_role"`
	ChangedBy int64     `json:"changed_by"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// ProfileUpdate is the PUT /users/me request body.
type ProfileUpdate struct {
	FullName     *string `json:"full_name,omitempty" binding:"omitempty,max=120"`
	Email        *string `json:"email,omitempty" binding:"omitempty,email"`
	Bio          *string `json:"bio,omitempty" binding:"omitempty,max=1000"`
	Timezone     *string `json:"timezone,omitempty"`
	TimezoneAuto *bool   `json:"timezone_auto_detect,omitempty"`
}

package model

import "time"

type User struct {
	ID                  int64      `json:"id" db:"id"`
	Email               string     `json:"email" db:"email"`
	FirstName           string     `json:"first_name" db:"first_name"`
	LastName            string     `json:"last_name" db:"last_name"`
	Phone               *string    `json:"phone,omitempty" db:"phone"`
	City                *string    `json:"city,omitempty" db:"city"`
	AcademicProgramCode *string    `json:"academic_program_code,omitempty" db:"academic_program_code"`
	Faculty             *string    `json:"faculty,omitempty" db:"faculty"`
	StudentNumber       *string    `json:"student_number,omitempty" db:"student_number"`
	Tickets             int        `json:"tickets" db:"tickets"`
	MembershipEndsAt    *time.Time `json:"membership_ends_at,omitempty" db:"membership_ends_at"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt           *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// MissingBookingFields returns the profile fields that must be filled before
// the user can hold a reservation on an event.
func (u *User) MissingBookingFields() []string {
	var missing []string
	if u.Phone == nil || *u.Phone == "" {
		missing = append(missing, "phone")
	}
	if u.City == nil || *u.City == "" {
		missing = append(missing, "city")
	}
	return missing
}

// MissingCouponFields returns the academic profile fields that must be
// filled before the user can redeem a coupon.
func (u *User) MissingCouponFields() []string {
	var missing []string
	if u.AcademicProgramCode == nil || *u.AcademicProgramCode == "" {
		missing = append(missing, "academic_program_code")
	}
	if u.Faculty == nil || *u.Faculty == "" {
		missing = append(missing, "faculty")
	}
	if u.StudentNumber == nil || *u.StudentNumber == "" {
		missing = append(missing, "student_number")
	}
	return missing
}

// UpdateUserParams carries the profile fields a user may change. Nil fields
// are left untouched.
type UpdateUserParams struct {
	FirstName           *string `json:"first_name,omitempty"`
	LastName            *string `json:"last_name,omitempty"`
	Phone               *string `json:"phone,omitempty"`
	City                *string `json:"city,omitempty"`
	AcademicProgramCode *string `json:"academic_program_code,omitempty"`
	Faculty             *string `json:"faculty,omitempty"`
	StudentNumber       *string `json:"student_number,omitempty"`
}

type CreateUserRequest struct {
	Email     string `json:"email" binding:"required,email"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

// PaymentProfile links a user to their vault profile at the external card
// processor. Cards added with a single-use token are stored under it.
type PaymentProfile struct {
	ID            int64     `json:"id" db:"id"`
	UserID        int64     `json:"user_id" db:"user_id"`
	Name          string    `json:"name" db:"name"`
	ExternalAPIID string    `json:"external_api_id" db:"external_api_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

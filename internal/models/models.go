package models

import (
	"time"

	"github.com/gofrs/uuid"
)

const (
	RoleVisitor = "VISITOR"
	RoleAdmin   = "ADMIN"
	RoleStaff   = "STAFF"
)

const (
	ProviderGoogle = "GOOGLE"
	ProviderGitHub = "GITHUB"
)

type User struct {
	ID         int64     `json:"id"`
	UUID       uuid.UUID `json:"uuid"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	PhoneNo    string    `json:"phone_no"`
	Role       string    `json:"user_role"`
	Photo      *string   `json:"photo,omitempty"`
	IsActive   bool      `json:"-"`
	IsArchived bool      `json:"-"`
	DateJoined time.Time `json:"date_joined"`
	UpdatedAt  time.Time `json:"-"`
}

func (u User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// OTPRecord is a single-use emailed login code. Validity is not stored on the
// row; it is computed from CreatedAt plus the configured lifetime.
type OTPRecord struct {
	ID        int64
	UserID    int64
	Code      string
	CreatedAt time.Time
}

// UserInfo is the normalized identity a provider returns after validation.
type UserInfo struct {
	Provider  string
	Email     string
	FirstName string
	LastName  string
	Photo     string
}

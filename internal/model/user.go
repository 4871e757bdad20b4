// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered account. Email is the login identifier.
//
// PasswordHash holds a bcrypt hash, or an unusable marker (prefix "!") for
// accounts created without a password, e.g. through GitHub login.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"isActive"`
	IsStaff      bool      `json:"isStaff"`
	IsSuperuser  bool      `json:"isSuperuser"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// UserFields carries the optional attributes accepted by the user factory.
//
// The flags are pointers so that "not supplied" and "explicitly false" can be
// told apart: the superuser factory rejects an explicit false.
type UserFields struct {
	Name        string
	IsActive    *bool
	IsStaff     *bool
	IsSuperuser *bool
}

// UserPatch is a partial profile update. Nil fields are left untouched.
type UserPatch struct {
	Email    *string
	Name     *string
	Password *string
}

package domain

import "time"

// User is the domain entity for a user account.
type User struct {
	ID             int64
	Email          string
	Username       string
	HashedPassword string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// UserPatch carries a partial profile update. Nil fields are left untouched.
type UserPatch struct {
	Email    *string
	Username *string
	Password *string
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Email == nil && p.Username == nil && p.Password == nil
}

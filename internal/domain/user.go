package domain

import "time"

// UserRole separates admins from ticket requesters. There is no deeper
// role hierarchy.
type UserRole string

const (
	RoleAdmin     UserRole = "admin"
	RoleRequester UserRole = "requester"
)

// User is an authenticated caller.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	Role         UserRole
	CreatedAt    time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

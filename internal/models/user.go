package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin     UserRole = "ADMIN"
	RoleTeacher   UserRole = "TEACHER"
	RoleSecretary UserRole = "SECRETARY"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FullName     string    `db:"full_name" json:"full_name"`
	Role         UserRole  `db:"role" json:"role"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ActorContext identifies who performs an operation. It is passed explicitly
// to every service call that filters or mutates on behalf of a user.
type ActorContext struct {
	UserID string
	Roles  map[UserRole]struct{}
}

// NewActor builds an actor holding the given roles.
func NewActor(userID string, roles ...UserRole) ActorContext {
	set := make(map[UserRole]struct{}, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return ActorContext{UserID: userID, Roles: set}
}

// HasRole reports whether the actor holds role.
func (a ActorContext) HasRole(role UserRole) bool {
	_, ok := a.Roles[role]
	return ok
}

// IsAdmin reports whether the actor holds the admin role.
func (a ActorContext) IsAdmin() bool { return a.HasRole(RoleAdmin) }

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

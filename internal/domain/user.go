package domain

import "time"

// Role is a user's permission tier
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// User represents a user in the system
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	IsOwner   bool      `json:"isOwner"`
	Banned    bool      `json:"banned"`
	BanReason string    `json:"banReason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Identity is the authenticated caller, resolved at login and carried in the request context
type Identity struct {
	UserID  string `json:"userId"`
	Email   string `json:"email"`
	Role    Role   `json:"role"`
	IsOwner bool   `json:"isOwner"`
}

// IdentityOf builds the identity claim set for a user
func IdentityOf(u *User) Identity {
	return Identity{
		UserID:  u.ID,
		Email:   u.Email,
		Role:    u.Role,
		IsOwner: u.IsOwner,
	}
}

// LoginRequest is the payload of POST /api/auth/login
type LoginRequest struct {
	Email string `json:"email"`
}

// LoginResponse carries the issued token and the resolved user
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

// RoleUpdateRequest is the payload of PATCH /api/users/{userId}/role
type RoleUpdateRequest struct {
	Role Role `json:"role"`
}

// BanRequest is the payload of PATCH /api/users/{userId}/ban
type BanRequest struct {
	Banned bool   `json:"banned"`
	Reason string `json:"reason"`
}

// UsersResponse lists registered users
type UsersResponse struct {
	Users []User `json:"users"`
}

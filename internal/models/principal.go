package models

// Role is the authorization level of a principal.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// IsValid returns true if the role is recognized.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Principal is the authenticated caller.
type Principal struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   Role   `json:"role"`
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// CanModify reports whether the principal may change or delete e.
func (p Principal) CanModify(e *Entry) bool {
	return p.IsAdmin() || (p.UserID != "" && e.OwnerID == p.UserID)
}

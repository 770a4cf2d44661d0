package models

// Role is the platform-wide role of an authenticated user
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Identity is the authenticated caller of an operation
type Identity struct {
	UserID string `json:"userId"`
	Role   Role   `json:"role"`
}

// IsAdmin reports whether the caller has platform admin rights
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// ProjectRole is a user's role within a single project
type ProjectRole string

const (
	ProjectRoleMember  ProjectRole = "member"
	ProjectRoleManager ProjectRole = "manager"
)

package models

// Role is the coarse permission level of a user. The only persisted signal is
// the boolean admin flag; Role names its two states.
type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// RoleOf maps the admin flag to a Role.
func RoleOf(isAdmin bool) Role {
	if isAdmin {
		return RoleAdmin
	}
	return RoleMember
}

// Toggled returns the opposite role.
func (r Role) Toggled() Role {
	if r == RoleAdmin {
		return RoleMember
	}
	return RoleAdmin
}

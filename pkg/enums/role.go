package enums

import "slices"

// Role is the actor role carried in access tokens.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

func (r Role) String() string { return string(r) }

// IsValid reports whether r is one of the roles tokens may carry.
func (r Role) IsValid() bool {
	return slices.Contains([]Role{RoleBuyer, RoleSeller, RoleAdmin}, r)
}


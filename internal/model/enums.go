package model

// Role is one of the two fixed caller scopes.
type Role string

const (
	RoleDevice Role = "device"
	RoleClient Role = "client"
)

func (r Role) String() string {
	return string(r)
}

package game

// Role is the side a participant plays on. The zero value means no role
// has been assigned yet.
type Role string

const (
	RoleUnassigned Role = ""
	RoleCitizen    Role = "CITIZEN"
	RoleLiar       Role = "LIAR"
)

func (r Role) String() string {
	if r == RoleUnassigned {
		return "UNASSIGNED"
	}
	return string(r)
}

// Valid reports whether r is a known role, including RoleUnassigned.
func (r Role) Valid() bool {
	switch r {
	case RoleUnassigned, RoleCitizen, RoleLiar:
		return true
	}
	return false
}

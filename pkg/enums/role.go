package enums

// Role is the authorization role carried by a caller principal.
type Role string

const (
	// RoleOperator is the platform super-administrator. Only operators may
	// drive subscription transitions or record payments.
	RoleOperator Role = "operator"
	// RoleCompanyAdmin administers a single tenant and may read that
	// tenant's own invoice history.
	RoleCompanyAdmin Role = "company_admin"
)

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

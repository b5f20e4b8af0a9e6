package enums

import "fmt"

// CompanyStatus tracks a tenant's standing on the platform.
type CompanyStatus string

const (
	CompanyStatusActive    CompanyStatus = "active"
	CompanyStatusSuspended CompanyStatus = "suspended"
	CompanyStatusExpired   CompanyStatus = "expired"
	CompanyStatusDeleted   CompanyStatus = "deleted"
)

var validCompanyStatuses = []CompanyStatus{
	CompanyStatusActive,
	CompanyStatusSuspended,
	CompanyStatusExpired,
	CompanyStatusDeleted,
}

// String implements fmt.Stringer.
func (s CompanyStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s CompanyStatus) IsValid() bool {
	for _, candidate := range validCompanyStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s CompanyStatus) IsTerminal() bool {
	return s == CompanyStatusDeleted
}

// ParseCompanyStatus converts raw input into a CompanyStatus.
func ParseCompanyStatus(value string) (CompanyStatus, error) {
	for _, candidate := range validCompanyStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid company status %q", value)
}

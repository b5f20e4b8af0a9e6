package identity

import (
	"github.com/google/uuid"

	"github.com/rentiva/rentiva-backend/pkg/enums"
	pkgerrors "github.com/rentiva/rentiva-backend/pkg/errors"
)

// Principal identifies the caller of a lifecycle operation. CompanyID is
// zero for platform operators, who are not bound to a tenant.
type Principal struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
	Role      enums.Role
}

// IsOperator reports whether the caller holds the platform operator role.
func (p Principal) IsOperator() bool {
	return p.Role == enums.RoleOperator
}

// CanViewCompany reports whether the caller may read data scoped to the
// given company. Operators see everything; a company admin only their own.
func (p Principal) CanViewCompany(companyID uuid.UUID) bool {
	if p.IsOperator() {
		return true
	}
	return p.Role == enums.RoleCompanyAdmin && p.CompanyID == companyID
}

// RequireOperator returns a forbidden error unless the caller is an operator.
func RequireOperator(p Principal) error {
	if !p.IsOperator() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "operator role required")
	}
	return nil
}

package domain

import (
	"fmt"

	"arrears/internal/errors"
)

type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleCustomer Role = "CUSTOMER"
	RoleEmployee Role = "EMPLOYEE"
	RoleCompany  Role = "COMPANY"
)

func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleAdmin, RoleCustomer, RoleEmployee, RoleCompany:
		return Role(raw), nil
	default:
		return "", errors.NewValidationError(fmt.Sprintf("role %q is not recognized", raw), errors.ValidationDetail{
			Field:   "X-Account-Role",
			Message: "must be one of ADMIN, CUSTOMER, EMPLOYEE, COMPANY",
		})
	}
}

// Staff reports whether the role acts on behalf of the business rather
// than a purchasing account.
func (r Role) Staff() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// AccountKind maps a purchasing role to the kind recorded on its orders.
// Staff roles do not place orders for themselves.
func (r Role) AccountKind() (AccountKind, error) {
	switch r {
	case RoleCustomer:
		return AccountKindCustomer, nil
	case RoleCompany:
		return AccountKindCompany, nil
	default:
		return "", errors.NewUnknownAccountKindError(fmt.Sprintf("role %s does not map to an account kind", r))
	}
}

package authz

import (
	"fmt"

	"arrears/internal/domain"
	"arrears/internal/errors"
)

type Operation string

const (
	OpPlaceOrder      Operation = "order:place"
	OpRecordPayment   Operation = "order:pay"
	OpCancelOrder     Operation = "order:cancel"
	OpSweepOverdue    Operation = "order:sweep"
	OpViewOrder       Operation = "order:view"
	OpViewReceivables Operation = "receivables:view"
)

// policy is the full (operation, role) grant table. Anything absent is
// denied, so adding a role without touching this table grants nothing.
var policy = map[Operation]map[domain.Role]bool{
	OpPlaceOrder: {
		domain.RoleCustomer: true,
		domain.RoleCompany:  true,
	},
	OpRecordPayment: {
		domain.RoleAdmin:    true,
		domain.RoleEmployee: true,
		domain.RoleCustomer: true,
		domain.RoleCompany:  true,
	},
	OpCancelOrder: {
		domain.RoleAdmin:    true,
		domain.RoleEmployee: true,
	},
	OpSweepOverdue: {
		domain.RoleAdmin: true,
	},
	OpViewOrder: {
		domain.RoleAdmin:    true,
		domain.RoleEmployee: true,
		domain.RoleCustomer: true,
		domain.RoleCompany:  true,
	},
	OpViewReceivables: {
		domain.RoleAdmin:    true,
		domain.RoleEmployee: true,
	},
}

func Allowed(role domain.Role, op Operation) bool {
	return policy[op][role]
}

func Authorize(role domain.Role, op Operation) error {
	if !Allowed(role, op) {
		return errors.NewForbiddenError(fmt.Sprintf("role %s may not perform %s", role, op))
	}
	return nil
}

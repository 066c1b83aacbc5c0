package identity

import (
	"net/http"

	"arrears/internal/domain"
	"arrears/internal/errors"
)

// Headers injected by the API gateway after authentication. This service
// trusts them and never sees credentials.
const (
	HeaderAccountID   = "X-Account-ID"
	HeaderAccountRole = "X-Account-Role"
)

type Principal struct {
	AccountID string
	Role      domain.Role
}

func FromRequest(r *http.Request) (Principal, error) {
	accountID := r.Header.Get(HeaderAccountID)
	if accountID == "" {
		return Principal{}, errors.NewValidationError("missing account identity", errors.ValidationDetail{
			Field:   HeaderAccountID,
			Message: "header is required",
		})
	}

	role, err := domain.ParseRole(r.Header.Get(HeaderAccountRole))
	if err != nil {
		return Principal{}, err
	}

	return Principal{
		AccountID: accountID,
		Role:      role,
	}, nil
}

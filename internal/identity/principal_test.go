package identity

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arrears/internal/domain"
	"arrears/internal/errors"
)

func TestFromRequest_Valid(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/orders", nil)
	req.Header.Set(HeaderAccountID, "acct-42")
	req.Header.Set(HeaderAccountRole, "COMPANY")

	principal, err := FromRequest(req)

	require.NoError(t, err)
	assert.Equal(t, "acct-42", principal.AccountID)
	assert.Equal(t, domain.RoleCompany, principal.Role)
}

func TestFromRequest_MissingAccountID(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/orders", nil)
	req.Header.Set(HeaderAccountRole, "ADMIN")

	_, err := FromRequest(req)

	ve, ok := errors.IsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, HeaderAccountID, ve.Details[0].Field)
}

func TestFromRequest_UnknownRole(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/orders", nil)
	req.Header.Set(HeaderAccountID, "acct-42")
	req.Header.Set(HeaderAccountRole, "WIZARD")

	_, err := FromRequest(req)

	_, ok := errors.IsValidationError(err)
	assert.True(t, ok)
}

func TestFromRequest_MissingRole(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/v1/orders", nil)
	req.Header.Set(HeaderAccountID, "acct-42")

	_, err := FromRequest(req)

	assert.Error(t, err)
}

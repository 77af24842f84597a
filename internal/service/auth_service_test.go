package service_test

import (
	"context"
	"strconv"
	"testing"

	"fsanano/inventory/internal/service"
	"fsanano/inventory/internal/service/servicetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIssuer struct{}

func (stubIssuer) Issue(userID int64) (string, error) {
	return "token-" + strconv.FormatInt(userID, 10), nil
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	db := servicetest.NewDB()
	svc := service.NewAuthService(db.Users(), stubIssuer{})

	u, token, err := svc.Register(context.Background(), " Ana ", "Ana@Example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "Ana", u.Name)
	assert.Equal(t, "ana@example.com", u.Email)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)
	assert.Equal(t, "token-"+strconv.FormatInt(u.ID, 10), token)

	logged, token, err := svc.Login(context.Background(), "ANA@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, u.ID, logged.ID)
	assert.NotEmpty(t, token)

	_, _, err = svc.Login(context.Background(), "ana@example.com", "wrong-pass")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, _, err = svc.Login(context.Background(), "nobody@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, _, err = svc.Register(context.Background(), "Ana 2", "ana@example.com", "another-pass")
	assert.ErrorIs(t, err, service.ErrEmailTaken)
}

func TestAuthService_RegisterValidation(t *testing.T) {
	tests := []struct {
		name, user, email, password, field string
	}{
		{"missing name", "", "a@example.com", "password1", "name"},
		{"bad email", "Ana", "not-an-email", "password1", "email"},
		{"short password", "Ana", "a@example.com", "short", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := service.NewAuthService(servicetest.NewDB().Users(), stubIssuer{})
			_, _, err := svc.Register(context.Background(), tt.user, tt.email, tt.password)
			var vErr *service.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

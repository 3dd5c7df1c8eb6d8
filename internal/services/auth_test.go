package services

import (
	"testing"

	"github.com/sitetrack/backend/internal/config"
	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/internal/utils"
	"github.com/sitetrack/backend/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	emp, err := env.employees.Create(env.ctx, &CreateEmployeeRequest{
		Name:     "Foreman",
		Phone:    "0712345678",
		Password: "s3cret",
		Role:     "admin",
	})
	require.NoError(t, err)

	auth := NewAuthService(env.db, &config.JWTConfig{ExpireHour: 2})

	_, err = auth.Login(&LoginRequest{Phone: "0712345678", Password: "wrong"})
	requireKind(t, err, response.KindUnauthorized)

	_, err = auth.Login(&LoginRequest{Phone: "0799999999", Password: "s3cret"})
	requireKind(t, err, response.KindUnauthorized)

	result, err := auth.Login(&LoginRequest{Phone: " 0712345678 ", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, emp.ID, result.Employee.ID)
	assert.NotNil(t, result.Employee.LastLogin)

	claims, err := utils.ParseToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, emp.ID, claims.UserID)
	assert.Equal(t, "0712345678", claims.Username)
	assert.Equal(t, string(models.RoleAdmin), claims.Role)

	me, err := auth.GetCurrentUser(emp.ID)
	require.NoError(t, err)
	assert.Equal(t, "Foreman", me.Name)

	_, err = auth.GetCurrentUser(emp.ID + 100)
	requireKind(t, err, response.KindNotFound)
}

func TestLogin_InactiveEmployee(t *testing.T) {
	env := newTestEnv(t)
	emp, err := env.employees.Create(env.ctx, &CreateEmployeeRequest{
		Name:     "Former",
		Phone:    "0711111111",
		Password: "s3cret",
		Role:     "Employee",
	})
	require.NoError(t, err)

	inactive := models.EmployeeInactive
	_, err = env.employees.Update(env.ctx, emp.ID, &UpdateEmployeeRequest{Status: &inactive})
	require.NoError(t, err)

	auth := NewAuthService(env.db, &config.JWTConfig{})
	_, err = auth.Login(&LoginRequest{Phone: "0711111111", Password: "s3cret"})
	requireKind(t, err, response.KindForbidden)
}

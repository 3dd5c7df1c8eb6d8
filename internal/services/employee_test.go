package services

import (
	"strings"
	"testing"

	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/internal/utils"
	"github.com/sitetrack/backend/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateEmployee_Validation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.employees.Create(env.ctx, &CreateEmployeeRequest{Name: "Bob"})
	requireKind(t, err, response.KindValidation)
	assert.Contains(t, err.Error(), "phone, password, role")

	_, err = env.employees.Create(env.ctx, &CreateEmployeeRequest{Name: "Bob", Phone: "0700000001", Password: "x", Role: "Supervisor"})
	requireKind(t, err, response.KindValidation)

	_, err = env.employees.Create(env.ctx, &CreateEmployeeRequest{Name: "Bob", Phone: "0700000001", Password: strings.Repeat("x", 73), Role: "Employee"})
	requireKind(t, err, response.KindValidation)
}

func TestCreateEmployee_UniqueFields(t *testing.T) {
	env := newTestEnv(t)

	emp, err := env.employees.Create(env.ctx, &CreateEmployeeRequest{
		Name: "Bob", Phone: "0700000001", Email: " Bob@Example.com ", Password: "pw", Role: "employee",
	})
	require.NoError(t, err)
	require.NotNil(t, emp.Email)
	assert.Equal(t, "bob@example.com", *emp.Email)
	assert.Equal(t, models.RoleEmployee, emp.Role)
	assert.True(t, utils.CheckPassword("pw", emp.Password))

	_, err = env.employees.Create(env.ctx, &CreateEmployeeRequest{Name: "Rob", Phone: "0700000001", Password: "pw", Role: "Employee"})
	requireKind(t, err, response.KindConflict)

	_, err = env.employees.Create(env.ctx, &CreateEmployeeRequest{Name: "Rob", Phone: "0700000002", Email: "BOB@example.com", Password: "pw", Role: "Employee"})
	requireKind(t, err, response.KindConflict)

	// employees without email do not collide with each other
	_, err = env.employees.Create(env.ctx, &CreateEmployeeRequest{Name: "Ann", Phone: "0700000003", Password: "pw", Role: "Employee"})
	require.NoError(t, err)
	_, err = env.employees.Create(env.ctx, &CreateEmployeeRequest{Name: "Eve", Phone: "0700000004", Password: "pw", Role: "Employee"})
	require.NoError(t, err)

	taken := "0700000003"
	_, err = env.employees.Update(env.ctx, emp.ID, &UpdateEmployeeRequest{Phone: &taken})
	requireKind(t, err, response.KindConflict)

	own := "0700000001"
	_, err = env.employees.Update(env.ctx, emp.ID, &UpdateEmployeeRequest{Phone: &own})
	require.NoError(t, err)
}

func TestListEmployees_Filters(t *testing.T) {
	env := newTestEnv(t)
	env.employee("Carpenter", models.RoleEmployee)

	all, err := env.employees.List(env.ctx, &EmployeeListRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)

	admins, err := env.employees.List(env.ctx, &EmployeeListRequest{Role: "ADMIN"})
	require.NoError(t, err)
	require.Len(t, admins.Items, 1)
	assert.Equal(t, env.admin.ID, admins.Items[0].ID)

	named, err := env.employees.List(env.ctx, &EmployeeListRequest{Name: "Carp"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), named.Total)

	_, err = env.employees.List(env.ctx, &EmployeeListRequest{Role: "boss"})
	requireKind(t, err, response.KindValidation)
}

func TestDeleteEmployee_ClearsAssignments(t *testing.T) {
	env := newTestEnv(t)
	site := env.site("Riverside")
	p := env.phase(site.ID, "Foundation", 0)
	task := env.task(p, "Pour slab", env.worker.ID)
	_, err := env.phases.Assign(env.ctx, env.admin, p.ID, env.worker.ID)
	require.NoError(t, err)

	err = env.employees.Delete(env.ctx, env.admin, env.admin.ID)
	requireKind(t, err, response.KindBadRequest)

	require.NoError(t, env.employees.Delete(env.ctx, env.admin, env.worker.ID))

	var count int64
	env.db.Model(&models.TaskAssignment{}).Where("task_id = ?", task.ID).Count(&count)
	assert.Zero(t, count)
	env.db.Model(&models.SiteAssignment{}).Where("site_id = ?", site.ID).Count(&count)
	assert.Zero(t, count)
	assert.Nil(t, env.reloadPhase(p.ID).AssignedTo)

	err = env.employees.Delete(env.ctx, env.admin, env.worker.ID)
	requireKind(t, err, response.KindNotFound)
}

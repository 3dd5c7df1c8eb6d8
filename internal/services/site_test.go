package services

import (
	"testing"
	"time"

	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestCreateSite_Duration(t *testing.T) {
	env := newTestEnv(t)

	// Mon 2 Mar .. Fri 13 Mar 2026 is two working weeks
	site, err := env.sites.Create(env.ctx, env.admin, &CreateSiteRequest{
		Name:      "Riverside",
		StartDate: date(2026, time.March, 2),
		EndDate:   date(2026, time.March, 13),
	})
	require.NoError(t, err)
	assert.Equal(t, 10, site.DurationDays)
	assert.Equal(t, "NONE", site.HolidayCountry)

	explicit := 3
	site, err = env.sites.Create(env.ctx, env.admin, &CreateSiteRequest{
		Name:         "Hilltop",
		StartDate:    date(2026, time.March, 2),
		EndDate:      date(2026, time.March, 13),
		DurationDays: &explicit,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, site.DurationDays)
}

func TestCreateSite_Validation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.sites.Create(env.ctx, env.worker, &CreateSiteRequest{Name: "x"})
	requireKind(t, err, response.KindForbidden)

	_, err = env.sites.Create(env.ctx, env.admin, &CreateSiteRequest{Name: " "})
	requireKind(t, err, response.KindValidation)

	_, err = env.sites.Create(env.ctx, env.admin, &CreateSiteRequest{Name: "x", HolidayCountry: "XX"})
	requireKind(t, err, response.KindValidation)

	_, err = env.sites.Create(env.ctx, env.admin, &CreateSiteRequest{
		Name:      "x",
		StartDate: date(2026, time.March, 13),
		EndDate:   date(2026, time.March, 2),
	})
	requireKind(t, err, response.KindValidation)
}

func TestSiteList_EmployeeSeesAssignedSites(t *testing.T) {
	env := newTestEnv(t)
	direct := env.site("Direct")
	viaTask := env.site("Via task")
	env.site("Hidden")

	require.NoError(t, env.sites.AssignEmployees(env.ctx, env.admin, direct.ID, []uint{env.worker.ID, env.worker.ID}))
	_, err := env.tasks.AddTask(env.ctx, env.admin, &CreateTaskRequest{SiteID: viaTask.ID, Name: "Fence", AssigneeIDs: []uint{env.worker.ID}})
	require.NoError(t, err)

	all, err := env.sites.List(env.ctx, env.admin, &SiteListRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)

	mine, err := env.sites.List(env.ctx, env.worker, &SiteListRequest{})
	require.NoError(t, err)
	names := make([]string, len(mine.Items))
	for i, s := range mine.Items {
		names[i] = s.Name
	}
	assert.ElementsMatch(t, []string{"Direct", "Via task"}, names)

	employees, err := env.sites.ListEmployees(env.ctx, direct.ID)
	require.NoError(t, err)
	assert.Len(t, employees, 1)

	err = env.sites.AssignEmployees(env.ctx, env.admin, direct.ID, []uint{env.worker.ID + 100})
	requireKind(t, err, response.KindNotFound)
	employees, err = env.sites.ListEmployees(env.ctx, direct.ID)
	require.NoError(t, err)
	assert.Len(t, employees, 1)
}

func TestSiteGet_OrderedPhasesWithTasks(t *testing.T) {
	env := newTestEnv(t)
	site := env.site("Riverside")
	b := env.phase(site.ID, "B", 0)
	env.phase(site.ID, "A", 1)
	env.task(b, "Wall", env.worker.ID)

	got, err := env.sites.Get(env.ctx, site.ID)
	require.NoError(t, err)
	require.Len(t, got.Phases, 2)
	assert.Equal(t, "A", got.Phases[0].Name)
	assert.Equal(t, "B", got.Phases[1].Name)
	require.Len(t, got.Phases[1].Tasks, 1)
	require.NotNil(t, got.Phases[1].Tasks[0].EmployeeID)
	assert.Equal(t, env.worker.ID, *got.Phases[1].Tasks[0].EmployeeID)

	_, err = env.sites.Get(env.ctx, site.ID+100)
	requireKind(t, err, response.KindNotFound)
}

func TestSiteDelete_Cascades(t *testing.T) {
	env := newTestEnv(t)
	site := env.site("Riverside")
	p := env.phase(site.ID, "Foundation", 0)
	task := env.task(p, "Pour slab", env.worker.ID)
	_, err := env.tasks.RecordProgress(env.ctx, env.worker, task.ID, &ProgressRequest{Progress: 30})
	require.NoError(t, err)
	require.NoError(t, env.sites.AssignEmployees(env.ctx, env.admin, site.ID, []uint{env.worker.ID}))

	requireKind(t, env.sites.Delete(env.ctx, env.worker, site.ID), response.KindForbidden)
	require.NoError(t, env.sites.Delete(env.ctx, env.admin, site.ID))

	for _, model := range []interface{}{
		&models.Site{}, &models.Phase{}, &models.Task{}, &models.TaskAssignment{},
		&models.SiteAssignment{}, &models.ProgressUpdate{}, &models.Message{},
	} {
		var count int64
		require.NoError(t, env.db.Model(model).Count(&count).Error)
		assert.Zerof(t, count, "%T rows left", model)
	}

	requireKind(t, env.sites.Delete(env.ctx, env.admin, site.ID), response.KindNotFound)
}

func TestUpdateSite(t *testing.T) {
	env := newTestEnv(t)
	site := env.site("Riverside")

	name := "Riverside Towers"
	end := date(2026, time.March, 6)
	updated, err := env.sites.Update(env.ctx, env.admin, site.ID, &UpdateSiteRequest{
		Name:      &name,
		StartDate: date(2026, time.March, 2),
		EndDate:   end,
	})
	require.NoError(t, err)
	assert.Equal(t, "Riverside Towers", updated.Name)
	assert.Equal(t, 5, updated.DurationDays)

	_, err = env.sites.Update(env.ctx, env.admin, site.ID, &UpdateSiteRequest{EndDate: date(2026, time.February, 1)})
	requireKind(t, err, response.KindValidation)
}

package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/pkg/response"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testEnv struct {
	t             *testing.T
	ctx           context.Context
	db            *gorm.DB
	wf            *Workflow
	tasks         *TaskService
	phases        *PhaseService
	sites         *SiteService
	employees     *EmployeeService
	notifications *NotificationService

	admin  Actor
	worker Actor
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := models.Open("sqlite", "file:"+name+"?mode=memory&cache=shared", logger.Silent)
	require.NoError(t, err)
	require.NoError(t, models.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithQueue(t, nil)
}

// newTestEnvWithQueue uses the given queue, or a sync queue persisting
// into the test database when nil.
func newTestEnvWithQueue(t *testing.T, queue NotificationQueue) *testEnv {
	t.Helper()
	db := openTestDB(t)

	notifications := NewNotificationService(db, nil)
	if queue == nil {
		queue = NewSyncQueue(notifications.Persist)
	}
	locker := NewLocalLocker()
	wf := NewWorkflow(db, locker, NewEmitter(queue))

	env := &testEnv{
		t:             t,
		ctx:           context.Background(),
		db:            db,
		wf:            wf,
		tasks:         NewTaskService(wf),
		phases:        NewPhaseService(wf, NewPhaseSequencer()),
		sites:         NewSiteService(db, locker, NewHolidayService(), "NONE"),
		employees:     NewEmployeeService(db),
		notifications: notifications,
	}

	admin := env.employee("Site Manager", models.RoleAdmin)
	worker := env.employee("Mason", models.RoleEmployee)
	env.admin = Actor{ID: admin.ID, Role: models.RoleAdmin}
	env.worker = Actor{ID: worker.ID, Role: models.RoleEmployee}
	return env
}

var phoneSeq int

func (e *testEnv) employee(name string, role models.Role) *models.Employee {
	e.t.Helper()
	phoneSeq++
	emp := &models.Employee{
		Name:     name,
		Phone:    fmt.Sprintf("07%08d", phoneSeq),
		Password: "hash",
		Role:     role,
		Status:   models.EmployeeActive,
	}
	require.NoError(e.t, e.db.Create(emp).Error)
	return emp
}

func (e *testEnv) site(name string) *models.Site {
	e.t.Helper()
	site, err := e.sites.Create(e.ctx, e.admin, &CreateSiteRequest{Name: name})
	require.NoError(e.t, err)
	return site
}

// phase appends when position is 0.
func (e *testEnv) phase(siteID uint, name string, position int) *models.Phase {
	e.t.Helper()
	req := &CreatePhaseRequest{Name: name}
	if position != 0 {
		req.Position = &position
	}
	p, err := e.phases.AddPhase(e.ctx, e.admin, siteID, req)
	require.NoError(e.t, err)
	return p
}

func (e *testEnv) task(phase *models.Phase, name string, assignees ...uint) *models.Task {
	e.t.Helper()
	task, err := e.tasks.AddTask(e.ctx, e.admin, &CreateTaskRequest{PhaseID: &phase.ID, Name: name, AssigneeIDs: assignees})
	require.NoError(e.t, err)
	return task
}

// approveTask drives a task through submission and approval.
func (e *testEnv) approveTask(taskID uint) {
	e.t.Helper()
	_, err := e.tasks.Complete(e.ctx, e.worker, taskID, "")
	require.NoError(e.t, err)
	_, err = e.tasks.Approve(e.ctx, e.admin, taskID)
	require.NoError(e.t, err)
}

func (e *testEnv) reloadPhase(id uint) models.Phase {
	e.t.Helper()
	var p models.Phase
	require.NoError(e.t, e.db.First(&p, id).Error)
	return p
}

func (e *testEnv) reloadTask(id uint) models.Task {
	e.t.Helper()
	var task models.Task
	require.NoError(e.t, e.db.First(&task, id).Error)
	return task
}

func (e *testEnv) orderNums(siteID uint) []int {
	e.t.Helper()
	var nums []int
	require.NoError(e.t, e.db.Model(&models.Phase{}).Where("site_id = ?", siteID).Order("order_num ASC").Pluck("order_num", &nums).Error)
	return nums
}

func (e *testEnv) phaseNames(siteID uint) []string {
	e.t.Helper()
	var names []string
	require.NoError(e.t, e.db.Model(&models.Phase{}).Where("site_id = ?", siteID).Order("order_num ASC").Pluck("name", &names).Error)
	return names
}

func (e *testEnv) notificationsOf(typ models.NotificationType) []models.Notification {
	e.t.Helper()
	var rows []models.Notification
	require.NoError(e.t, e.db.Where("type = ?", typ).Order("id ASC").Find(&rows).Error)
	return rows
}

func (e *testEnv) systemMessages(taskID, phaseID *uint) []models.Message {
	e.t.Helper()
	q := e.db.Where("type = ?", models.MessageSystem)
	if taskID != nil {
		q = q.Where("task_id = ?", *taskID)
	}
	if phaseID != nil {
		q = q.Where("phase_id = ?", *phaseID)
	}
	var rows []models.Message
	require.NoError(e.t, q.Order("id ASC").Find(&rows).Error)
	return rows
}

func dense(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func requireKind(t *testing.T, err error, kind response.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, response.IsKind(err, kind), "expected %s, got %v", kind, err)
}

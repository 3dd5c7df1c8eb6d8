package services

import (
	"sync"
	"testing"

	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseAggregation_CompletesOnceAllTasksApproved(t *testing.T) {
	env := newTestEnv(t)
	site := env.site("Riverside")
	p := env.phase(site.ID, "Foundation", 0)
	t1 := env.task(p, "Excavate", env.worker.ID)
	t2 := env.task(p, "Pour slab", env.worker.ID)
	t3 := env.task(p, "Cure slab", env.worker.ID)

	env.approveTask(t1.ID)
	env.approveTask(t2.ID)

	phase := env.reloadPhase(p.ID)
	assert.Equal(t, models.StatusNotStarted, phase.Status)
	assert.Equal(t, 67, phase.Progress)
	assert.Empty(t, env.notificationsOf(models.NotificationStageCompleted))

	env.approveTask(t3.ID)

	phase = env.reloadPhase(p.ID)
	assert.Equal(t, models.StatusWaitingForApproval, phase.Status)
	assert.Equal(t, 100, phase.Progress)
	require.NotNil(t, phase.CompletedBy)
	assert.Equal(t, env.admin.ID, *phase.CompletedBy)

	completed := env.notificationsOf(models.NotificationStageCompleted)
	require.Len(t, completed, 1)
	assert.Nil(t, completed[0].RecipientID)
	assert.Equal(t, p.ID, *completed[0].PhaseID)

	var trigger []models.Message
	for _, m := range env.systemMessages(nil, &p.ID) {
		if m.Content == msgAllTasksCompleted {
			trigger = append(trigger, m)
		}
	}
	assert.Len(t, trigger, 1)

	// re-approving a completed task must not fire the trigger again
	_, err := env.tasks.Approve(env.ctx, env.admin, t3.ID)
	require.NoError(t, err)
	assert.Len(t, env.notificationsOf(models.NotificationStageCompleted), 1)
}

func TestPhaseAggregation_ConcurrentApprovalsTriggerOnce(t *testing.T) {
	env := newTestEnv(t)
	site := env.site("Riverside")
	p := env.phase(site.ID, "Framing", 0)

	const n = 6
	ids := make([]uint, n)
	for i := range ids {
		task := env.task(p, "Wall", env.worker.ID)
		_, err := env.tasks.Complete(env.ctx, env.worker, task.ID, "")
		require.NoError(t, err)
		ids[i] = task.ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, id := range ids {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := env.tasks.Approve(env.ctx, env.admin, id)
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, models.StatusWaitingForApproval, env.reloadPhase(p.ID).Status)
	assert.Len(t, env.notificationsOf(models.NotificationStageCompleted), 1)

	var count int64
	env.db.Model(&models.Message{}).Where("phase_id = ? AND content = ?", p.ID, msgAllTasksCompleted).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestPhaseAggregation_SettledPhaseIgnoresTaskWrites(t *testing.T) {
	env := newTestEnv(t)
	site := env.site("Riverside")
	p := env.phase(site.ID, "Foundation", 0)
	task := env.task(p, "Pour slab", env.worker.ID)

	_, err := env.phases.Complete(env.ctx, env.worker, p.ID, "")
	require.NoError(t, err)

	_, err = env.tasks.RecordProgress(env.ctx, env.worker, task.ID, &ProgressRequest{Progress: 10})
	require.NoError(t, err)

	phase := env.reloadPhase(p.ID)
	assert.Equal(t, models.StatusWaitingForApproval, phase.Status)
	assert.Equal(t, 100, phase.Progress)
}

func TestPhaseApproveAndReject(t *testing.T) {
	env := newTestEnv(t)
	site := env.site("Riverside")
	p := env.phase(site.ID, "Foundation", 0)
	env.task(p, "Pour slab", env.worker.ID)

	_, err := env.phases.Approve(env.ctx, env.admin, p.ID)
	requireKind(t, err, response.KindInvalidTransition)
	_, err = env.phases.Reject(env.ctx, env.admin, p.ID, "")
	requireKind(t, err, response.KindInvalidTransition)

	_, err = env.phases.Complete(env.ctx, env.worker, p.ID, "")
	require.NoError(t, err)

	_, err = env.phases.Reject(env.ctx, env.worker, p.ID, "")
	requireKind(t, err, response.KindForbidden)

	rejected, err := env.phases.Reject(env.ctx, env.admin, p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, rejected.Status)
	assert.Equal(t, 0, rejected.Progress)
	assert.Nil(t, rejected.CompletedBy)
	msgs := env.systemMessages(nil, &p.ID)
	assert.Equal(t, "Stage rejected: Stage requires further work", msgs[len(msgs)-1].Content)

	_, err = env.phases.Complete(env.ctx, env.worker, p.ID, "ready")
	require.NoError(t, err)
	_, err = env.phases.Approve(env.ctx, env.worker, p.ID)
	requireKind(t, err, response.KindForbidden)

	var before, after int64
	env.db.Model(&models.Notification{}).Count(&before)

	approved, err := env.phases.Approve(env.ctx, env.admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, env.admin.ID, *approved.ApprovedBy)

	env.db.Model(&models.Notification{}).Count(&after)
	assert.Equal(t, before, after)

	again, err := env.phases.Approve(env.ctx, env.admin, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, again.Status)

	_, err = env.phases.RecordProgress(env.ctx, env.worker, p.ID, &PhaseProgressRequest{Progress: 50})
	requireKind(t, err, response.KindInvalidTransition)

	completed := "Completed"
	_, err = env.phases.UpdatePhase(env.ctx, env.admin, p.ID, &UpdatePhaseRequest{Status: &completed})
	requireKind(t, err, response.KindForbidden)
}

func TestPhaseRecordProgress(t *testing.T) {
	env := newTestEnv(t)
	site := env.site("Riverside")
	p := env.phase(site.ID, "Foundation", 0)

	_, err := env.phases.RecordProgress(env.ctx, env.worker, p.ID, &PhaseProgressRequest{Progress: 101})
	requireKind(t, err, response.KindValidation)

	phase, err := env.phases.RecordProgress(env.ctx, env.worker, p.ID, &PhaseProgressRequest{Progress: 40, Message: "halfway there"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, phase.Status)
	assert.Equal(t, 40, phase.Progress)

	updates := env.notificationsOf(models.NotificationTaskUpdate)
	require.Len(t, updates, 1)
	assert.Nil(t, updates[0].RecipientID)

	phase, err = env.phases.Complete(env.ctx, env.admin, p.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusWaitingForApproval, phase.Status)
	assert.Equal(t, env.admin.ID, *phase.CompletedBy)
	assert.Len(t, env.notificationsOf(models.NotificationTaskUpdate), 1)

	details, err := env.phases.GetDetails(env.ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, details.Updates, 1)
	assert.Equal(t, 0, details.Updates[0].PreviousProgress)
	assert.Equal(t, 40, details.Updates[0].NewProgress)
}

func TestPhaseAssign(t *testing.T) {
	env := newTestEnv(t)
	site := env.site("Riverside")
	p := env.phase(site.ID, "Foundation", 0)

	_, err := env.phases.Assign(env.ctx, env.admin, p.ID, env.worker.ID+100)
	requireKind(t, err, response.KindNotFound)

	phase, err := env.phases.Assign(env.ctx, env.admin, p.ID, env.worker.ID)
	require.NoError(t, err)
	require.NotNil(t, phase.AssignedTo)
	assert.Equal(t, env.worker.ID, *phase.AssignedTo)
	assert.NotNil(t, phase.AssignedAt)

	notes := env.notificationsOf(models.NotificationAssignment)
	require.Len(t, notes, 1)
	assert.Equal(t, env.worker.ID, *notes[0].RecipientID)

	employees, err := env.sites.ListEmployees(env.ctx, site.ID)
	require.NoError(t, err)
	require.Len(t, employees, 1)
	assert.Equal(t, env.worker.ID, employees[0].ID)

	_, err = env.phases.Assign(env.ctx, env.admin, p.ID, env.worker.ID)
	require.NoError(t, err)
	employees, err = env.sites.ListEmployees(env.ctx, site.ID)
	require.NoError(t, err)
	assert.Len(t, employees, 1)

	details, err := env.phases.GetDetails(env.ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, details.Assignee)
	assert.Equal(t, env.worker.ID, details.Assignee.ID)
}

func TestPhaseChat(t *testing.T) {
	env := newTestEnv(t)
	site := env.site("Riverside")
	p := env.phase(site.ID, "Foundation", 0)

	_, err := env.phases.SendMessage(env.ctx, env.worker, p.ID, &SendMessageRequest{Content: "site flooded"})
	require.NoError(t, err)
	chat := env.notificationsOf(models.NotificationChatUpdate)
	require.Len(t, chat, 1)
	assert.Nil(t, chat[0].TaskID)

	_, err = env.phases.SendMessage(env.ctx, env.worker, p.ID+100, &SendMessageRequest{Content: "x"})
	requireKind(t, err, response.KindNotFound)

	todo, err := env.phases.AddTodo(env.ctx, env.admin, p.ID, "pump water")
	require.NoError(t, err)
	_, err = env.tasks.ToggleTodo(env.ctx, env.admin, todo.ID)
	requireKind(t, err, response.KindNotFound)
	toggled, err := env.phases.ToggleTodo(env.ctx, env.admin, todo.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Done)
}

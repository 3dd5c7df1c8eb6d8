package services

import (
	"testing"

	"github.com/sitetrack/backend/internal/config"
	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedFeed produces one notification of every type through the workflow.
func seedFeed(t *testing.T, env *testEnv) {
	t.Helper()
	site := env.site("Riverside")
	p := env.phase(site.ID, "Foundation", 0)
	task := env.task(p, "Pour slab", env.worker.ID) // ASSIGNMENT

	_, err := env.tasks.RecordProgress(env.ctx, env.worker, task.ID, &ProgressRequest{Progress: 50}) // TASK_UPDATE
	require.NoError(t, err)
	_, err = env.tasks.SendMessage(env.ctx, env.worker, task.ID, &SendMessageRequest{Content: "hi"}) // CHAT_UPDATE
	require.NoError(t, err)
	_, err = env.tasks.Complete(env.ctx, env.worker, task.ID, "") // TASK_SUBMITTED
	require.NoError(t, err)
	_, err = env.tasks.Reject(env.ctx, env.admin, task.ID, "redo") // TASK_REJECTED
	require.NoError(t, err)
	env.approveTask(task.ID) // TASK_SUBMITTED, TASK_APPROVED, STAGE_COMPLETED
}

func feedTypes(items []models.Notification) []models.NotificationType {
	out := make([]models.NotificationType, len(items))
	for i, n := range items {
		out[i] = n.Type
	}
	return out
}

func TestNotificationFeeds_RoleFiltered(t *testing.T) {
	env := newTestEnv(t)
	seedFeed(t, env)

	adminFeed, err := env.notifications.List(env.ctx, env.admin, &NotificationListRequest{PageSize: 50})
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.NotificationType{
		models.NotificationTaskUpdate,
		models.NotificationChatUpdate,
		models.NotificationStageCompleted,
	}, feedTypes(adminFeed.Items))

	workerFeed, err := env.notifications.List(env.ctx, env.worker, &NotificationListRequest{})
	require.NoError(t, err)
	assert.Equal(t, []models.NotificationType{models.NotificationAssignment}, feedTypes(workerFeed.Items))
	assert.Equal(t, 1, workerFeed.Page)
	assert.Equal(t, 20, workerFeed.PageSize)

	outsider := env.employee("Painter", models.RoleEmployee)
	empty, err := env.notifications.List(env.ctx, Actor{ID: outsider.ID, Role: models.RoleEmployee}, &NotificationListRequest{})
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
}

func TestNotificationFeeds_Configurable(t *testing.T) {
	env := newTestEnv(t)
	seedFeed(t, env)

	svc := NewNotificationService(env.db, &config.NotificationsConfig{
		AdminFeedTypes:    []string{"task_submitted", "bogus"},
		EmployeeFeedTypes: []string{"ASSIGNMENT", "TASK_APPROVED", "TASK_REJECTED"},
	})

	adminFeed, err := svc.List(env.ctx, env.admin, &NotificationListRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), adminFeed.Total)

	workerFeed, err := svc.List(env.ctx, env.worker, &NotificationListRequest{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []models.NotificationType{
		models.NotificationAssignment,
		models.NotificationTaskRejected,
		models.NotificationTaskApproved,
	}, feedTypes(workerFeed.Items))
}

func TestNotificationReadMarking(t *testing.T) {
	env := newTestEnv(t)
	seedFeed(t, env)

	unread, err := env.notifications.UnreadCount(env.ctx, env.admin)
	require.NoError(t, err)
	assert.Equal(t, int64(3), unread)

	workerFeed, err := env.notifications.List(env.ctx, env.worker, &NotificationListRequest{})
	require.NoError(t, err)
	require.Len(t, workerFeed.Items, 1)
	assignment := workerFeed.Items[0]

	err = env.notifications.MarkRead(env.ctx, env.admin, assignment.ID)
	requireKind(t, err, response.KindNotFound)

	require.NoError(t, env.notifications.MarkRead(env.ctx, env.worker, assignment.ID))
	require.NoError(t, env.notifications.MarkRead(env.ctx, env.worker, assignment.ID))
	unread, err = env.notifications.UnreadCount(env.ctx, env.worker)
	require.NoError(t, err)
	assert.Zero(t, unread)

	var row models.Notification
	require.NoError(t, env.db.First(&row, assignment.ID).Error)
	assert.True(t, row.IsRead)
	assert.NotNil(t, row.ReadAt)

	marked, err := env.notifications.MarkAllRead(env.ctx, env.admin)
	require.NoError(t, err)
	assert.Equal(t, int64(3), marked)

	unreadOnly, err := env.notifications.List(env.ctx, env.admin, &NotificationListRequest{UnreadOnly: true})
	require.NoError(t, err)
	assert.Zero(t, unreadOnly.Total)

	// hidden types stay unread
	var hidden int64
	env.db.Model(&models.Notification{}).Where("is_read = ?", false).Count(&hidden)
	assert.Positive(t, hidden)
}

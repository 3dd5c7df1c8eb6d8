package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// Role is the capability level of an employee. Inputs in any casing are
// normalized once via ParseRole; everything downstream compares enum values.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleEmployee Role = "Employee"
)

// ParseRole normalizes "admin", "ADMIN", "Admin" etc.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin", "administrator":
		return RoleAdmin, true
	case "employee", "user", "worker":
		return RoleEmployee, true
	}
	return "", false
}

func (r Role) IsAdmin() bool { return r == RoleAdmin }

// Status is shared by phases and tasks.
type Status string

const (
	StatusNotStarted         Status = "NotStarted"
	StatusInProgress         Status = "InProgress"
	StatusWaitingForApproval Status = "WaitingForApproval"
	StatusCompleted          Status = "Completed"
)

// ParseStatus accepts any casing and separators: "in progress", "IN_PROGRESS",
// "waiting-for-approval", "completed".
func ParseStatus(s string) (Status, bool) {
	key := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))

	switch key {
	case "notstarted", "pending", "todo":
		return StatusNotStarted, true
	case "inprogress", "ongoing":
		return StatusInProgress, true
	case "waitingforapproval", "awaitingapproval", "pendingapproval", "submitted":
		return StatusWaitingForApproval, true
	case "completed", "complete", "done", "approved":
		return StatusCompleted, true
	}
	return "", false
}

// StatusFromProgress derives the lifecycle status implied by a progress value.
func StatusFromProgress(progress int) Status {
	switch {
	case progress >= 100:
		return StatusWaitingForApproval
	case progress > 0:
		return StatusInProgress
	default:
		return StatusNotStarted
	}
}

// Value always persists the canonical spelling.
func (s Status) Value() (driver.Value, error) {
	if s == "" {
		return string(StatusNotStarted), nil
	}
	return string(s), nil
}

// Scan tolerates legacy rows stored in other casings.
func (s *Status) Scan(value interface{}) error {
	var raw string
	switch v := value.(type) {
	case nil:
		*s = StatusNotStarted
		return nil
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return fmt.Errorf("unsupported status type %T", value)
	}
	if parsed, ok := ParseStatus(raw); ok {
		*s = parsed
		return nil
	}
	*s = Status(raw)
	return nil
}

// MessageType classifies chat entries.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageSystem MessageType = "system"
	MessageImage  MessageType = "image"
	MessageVideo  MessageType = "video"
	MessageFile   MessageType = "file"
)

// ParseMessageType accepts user-sendable types only; system messages are
// produced by lifecycle transitions.
func ParseMessageType(s string) (MessageType, bool) {
	switch MessageType(strings.ToLower(strings.TrimSpace(s))) {
	case "", MessageText:
		return MessageText, true
	case MessageImage:
		return MessageImage, true
	case MessageVideo:
		return MessageVideo, true
	case MessageFile:
		return MessageFile, true
	}
	return "", false
}

func (t MessageType) IsMedia() bool {
	return t == MessageImage || t == MessageVideo || t == MessageFile
}

type NotificationType string

const (
	NotificationAssignment     NotificationType = "ASSIGNMENT"
	NotificationTaskUpdate     NotificationType = "TASK_UPDATE"
	NotificationTaskSubmitted  NotificationType = "TASK_SUBMITTED"
	NotificationTaskApproved   NotificationType = "TASK_APPROVED"
	NotificationTaskRejected   NotificationType = "TASK_REJECTED"
	NotificationChatUpdate     NotificationType = "CHAT_UPDATE"
	NotificationStageCompleted NotificationType = "STAGE_COMPLETED"
)

// ParseNotificationType is used when reading feed filters from config.
func ParseNotificationType(s string) (NotificationType, bool) {
	t := NotificationType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case NotificationAssignment, NotificationTaskUpdate, NotificationTaskSubmitted,
		NotificationTaskApproved, NotificationTaskRejected, NotificationChatUpdate,
		NotificationStageCompleted:
		return t, true
	}
	return "", false
}

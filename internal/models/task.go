package models

import "time"

type TaskPriority string

const (
	TaskPriorityLow    TaskPriority = "Low"
	TaskPriorityMedium TaskPriority = "Medium"
	TaskPriorityHigh   TaskPriority = "High"
)

func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "Pending"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusCompleted  TaskStatus = "Completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted:
		return true
	}
	return false
}

type Task struct {
	ID          string
	Title       string
	Description string
	DueDate     *time.Time
	Priority    TaskPriority
	Status      TaskStatus
	AssignedTo  *string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskFilter narrows task listings. Zero values mean "any".
type TaskFilter struct {
	Status     TaskStatus
	Priority   TaskPriority
	AssignedTo string
	Limit      int
	Offset     int
}

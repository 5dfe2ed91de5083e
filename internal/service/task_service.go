package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"taskmanager/internal/ids"
	"taskmanager/internal/models"
	"taskmanager/internal/notify"
	"taskmanager/internal/repository"
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrAssigneeNotFound = errors.New("assigned user not found")
)

type TaskStore interface {
	Create(ctx context.Context, task models.Task) error
	GetByID(ctx context.Context, id string) (models.Task, error)
	List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	ListDueBetween(ctx context.Context, from, to time.Time) ([]models.Task, error)
	Update(ctx context.Context, task models.Task) error
	Delete(ctx context.Context, id string) error
}

type UserLookup interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

type NotificationPublisher interface {
	Publish(ctx context.Context, msg notify.Message) error
}

type TaskService struct {
	tasks        TaskStore
	users        UserLookup
	publisher    NotificationPublisher
	storeTimeout time.Duration
	now          func() time.Time
	log          zerolog.Logger
}

func NewTaskService(
	tasks TaskStore,
	users UserLookup,
	publisher NotificationPublisher,
	storeTimeout time.Duration,
	log zerolog.Logger,
) *TaskService {
	return &TaskService{
		tasks:        tasks,
		users:        users,
		publisher:    publisher,
		storeTimeout: storeTimeout,
		now:          time.Now,
		log:          log,
	}
}

type CreateTaskInput struct {
	Title            string
	Description      string
	DueDate          *time.Time
	Priority         models.TaskPriority
	Status           models.TaskStatus
	AssignedTo       *string
	NotificationType notify.Kind
	CreatedBy        string
}

// UpdateTaskInput is a partial update: nil fields keep their stored value.
type UpdateTaskInput struct {
	Title            *string
	Description      *string
	DueDate          *time.Time
	Priority         *models.TaskPriority
	Status           *models.TaskStatus
	AssignedTo       *string
	NotificationType notify.Kind
}

func (s *TaskService) Create(ctx context.Context, input CreateTaskInput) (models.Task, error) {
	ctx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	priority := input.Priority
	if priority == "" {
		priority = models.TaskPriorityLow
	}
	status := input.Status
	if status == "" {
		status = models.TaskStatusPending
	}

	now := s.now().UTC()
	task := models.Task{
		ID:          ids.New(),
		Title:       strings.TrimSpace(input.Title),
		Description: strings.TrimSpace(input.Description),
		DueDate:     input.DueDate,
		Priority:    priority,
		Status:      status,
		AssignedTo:  blankToNil(input.AssignedTo),
		CreatedBy:   input.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	assignee, err := s.resolveAssignee(ctx, task.AssignedTo)
	if err != nil {
		return models.Task{}, err
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return models.Task{}, err
	}

	s.log.Info().Str("task_id", task.ID).Str("created_by", task.CreatedBy).Msg("task created")

	if assignee != nil {
		s.notifyAssignee(ctx, task, *assignee, input.NotificationType)
	}
	return task, nil
}

func (s *TaskService) Get(ctx context.Context, id string) (models.Task, error) {
	ctx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, fmt.Errorf("load task: %w", err)
	}
	return task, nil
}

func (s *TaskService) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	ctx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	tasks, err := s.tasks.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (s *TaskService) Update(ctx context.Context, id string, input UpdateTaskInput) (models.Task, error) {
	ctx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, fmt.Errorf("load task: %w", err)
	}

	if input.Title != nil {
		task.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		task.Description = strings.TrimSpace(*input.Description)
	}
	if input.DueDate != nil {
		task.DueDate = input.DueDate
	}
	if input.Priority != nil {
		task.Priority = *input.Priority
	}
	if input.Status != nil {
		task.Status = *input.Status
	}

	var assignee *models.User
	if input.AssignedTo != nil {
		task.AssignedTo = blankToNil(input.AssignedTo)
		if assignee, err = s.resolveAssignee(ctx, task.AssignedTo); err != nil {
			return models.Task{}, err
		}
	}
	task.UpdatedAt = s.now().UTC()

	if err := s.tasks.Update(ctx, task); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, err
	}

	if assignee != nil {
		s.notifyAssignee(ctx, task, *assignee, input.NotificationType)
	}
	return task, nil
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	ctx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	if err := s.tasks.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrTaskNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("delete task: %w", err)
	}
	s.log.Info().Str("task_id", id).Msg("task deleted")
	return nil
}

// SendDueReminders emails the assignee of every open task due within window
// of now. It returns how many reminders were queued.
func (s *TaskService) SendDueReminders(ctx context.Context, now time.Time, window time.Duration) (int, error) {
	if s.publisher == nil {
		return 0, nil
	}

	ctx, cancel := storeContext(ctx, s.storeTimeout)
	defer cancel()

	tasks, err := s.tasks.ListDueBetween(ctx, now, now.Add(window))
	if err != nil {
		return 0, fmt.Errorf("list due tasks: %w", err)
	}

	sent := 0
	for _, task := range tasks {
		if task.AssignedTo == nil || task.DueDate == nil {
			continue
		}
		user, err := s.users.GetByID(ctx, *task.AssignedTo)
		if err != nil {
			s.log.Warn().Err(err).Str("task_id", task.ID).Msg("reminder skipped, assignee not loadable")
			continue
		}
		msg := notify.Message{
			Kind:    notify.KindEmail,
			To:      user.Email,
			Subject: "Task due soon",
			Body:    fmt.Sprintf("Reminder: task %q is due %s", task.Title, task.DueDate.UTC().Format(time.RFC1123)),
			TaskID:  task.ID,
		}
		if err := s.publisher.Publish(ctx, msg); err != nil {
			s.log.Error().Err(err).Str("task_id", task.ID).Msg("queue reminder failed")
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *TaskService) resolveAssignee(ctx context.Context, userID *string) (*models.User, error) {
	if userID == nil {
		return nil, nil
	}
	user, err := s.users.GetByID(ctx, *userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrAssigneeNotFound
		}
		return nil, fmt.Errorf("load assignee: %w", err)
	}
	return &user, nil
}

// notifyAssignee queues the assignment notice. Failures are logged only; the
// task write has already succeeded.
func (s *TaskService) notifyAssignee(ctx context.Context, task models.Task, user models.User, kind notify.Kind) {
	if s.publisher == nil || kind == "" {
		return
	}

	msg := notify.Message{
		Kind:    kind,
		Subject: "New task assigned",
		Body:    fmt.Sprintf("You have been assigned a new task: %s", task.Title),
		TaskID:  task.ID,
	}
	switch kind {
	case notify.KindEmail:
		msg.To = user.Email
	case notify.KindSMS:
		if user.Phone == nil || *user.Phone == "" {
			s.log.Warn().Str("user_id", user.ID).Msg("sms notification requested but assignee has no phone")
			return
		}
		msg.To = *user.Phone
	default:
		return
	}

	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.log.Error().Err(err).Str("task_id", task.ID).Msg("queue notification failed")
	}
}

func blankToNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"taskmanager/internal/models"
)

var ErrTaskNotFound = errors.New("task not found")

const taskColumns = `id, title, description, due_date, priority, status, assigned_to, created_by, created_at, updated_at`

type TaskRepository struct {
	db DBTX
}

func NewTaskRepository(db DBTX) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task models.Task) error {
	const query = `
		INSERT INTO tasks (
			id, title, description, due_date, priority, status, assigned_to, created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := r.db.Exec(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.DueDate,
		string(task.Priority),
		string(task.Status),
		task.AssignedTo,
		task.CreatedBy,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (models.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Task{}, ErrTaskNotFound
	}
	return task, err
}

func (r *TaskRepository) List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, string(filter.Priority))
		where = append(where, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		where = append(where, fmt.Sprintf("assigned_to = $%d", len(args)))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return r.queryTasks(ctx, query, args...)
}

// ListDueBetween returns open tasks with an assignee whose due date falls in
// [from, to).
func (r *TaskRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]models.Task, error) {
	const query = `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE due_date >= $1 AND due_date < $2
		  AND status <> $3
		  AND assigned_to IS NOT NULL
		ORDER BY due_date ASC
	`
	return r.queryTasks(ctx, query, from, to, string(models.TaskStatusCompleted))
}

func (r *TaskRepository) Update(ctx context.Context, task models.Task) error {
	const query = `
		UPDATE tasks
		SET title = $2,
		    description = $3,
		    due_date = $4,
		    priority = $5,
		    status = $6,
		    assigned_to = $7,
		    updated_at = $8
		WHERE id = $1
	`

	cmd, err := r.db.Exec(ctx, query,
		task.ID,
		task.Title,
		task.Description,
		task.DueDate,
		string(task.Priority),
		string(task.Status),
		task.AssignedTo,
		task.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM tasks WHERE id = $1`

	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepository) queryTasks(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]models.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(row pgx.Row) (models.Task, error) {
	var (
		task     models.Task
		priority string
		status   string
	)
	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.DueDate,
		&priority,
		&status,
		&task.AssignedTo,
		&task.CreatedBy,
		&task.CreatedAt,
		&task.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Task{}, err
		}
		return models.Task{}, fmt.Errorf("scan task: %w", err)
	}
	task.Priority = models.TaskPriority(priority)
	task.Status = models.TaskStatus(status)
	return task, nil
}

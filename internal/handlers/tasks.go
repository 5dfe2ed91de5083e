package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskmanager/internal/middleware"
	"taskmanager/internal/models"
	"taskmanager/internal/notify"
	"taskmanager/internal/service"
)

const (
	defaultPerPage = 20
	maxPerPage     = 100
)

type createTaskRequest struct {
	Title            string     `json:"title" binding:"required,min=3,max=100"`
	Description      string     `json:"description" binding:"max=500"`
	DueDate          *time.Time `json:"dueDate"`
	Priority         string     `json:"priority" binding:"omitempty,task_priority"`
	Status           string     `json:"status" binding:"omitempty,task_status"`
	AssignedTo       *string    `json:"assignedTo"`
	NotificationType string     `json:"notificationType" binding:"omitempty,oneof=email sms"`
}

type updateTaskRequest struct {
	Title            *string    `json:"title" binding:"omitempty,min=3,max=100"`
	Description      *string    `json:"description" binding:"omitempty,max=500"`
	DueDate          *time.Time `json:"dueDate"`
	Priority         *string    `json:"priority" binding:"omitempty,task_priority"`
	Status           *string    `json:"status" binding:"omitempty,task_status"`
	AssignedTo       *string    `json:"assignedTo"`
	NotificationType string     `json:"notificationType" binding:"omitempty,oneof=email sms"`
}

type listTasksQuery struct {
	Status     string `form:"status" binding:"omitempty,task_status"`
	Priority   string `form:"priority" binding:"omitempty,task_priority"`
	AssignedTo string `form:"assignedTo"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PerPage    int    `form:"perPage" binding:"omitempty,min=1,max=100"`
}

type taskResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    string     `json:"priority"`
	Status      string     `json:"status"`
	AssignedTo  *string    `json:"assignedTo,omitempty"`
	CreatedBy   string     `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func newTaskResponse(task models.Task) taskResponse {
	return taskResponse{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		DueDate:     task.DueDate,
		Priority:    string(task.Priority),
		Status:      string(task.Status),
		AssignedTo:  task.AssignedTo,
		CreatedBy:   task.CreatedBy,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

func (h HandlerSet) CreateTask(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, err)
		return
	}

	task, err := h.tasks.Create(c.Request.Context(), service.CreateTaskInput{
		Title:            req.Title,
		Description:      req.Description,
		DueDate:          req.DueDate,
		Priority:         models.TaskPriority(req.Priority),
		Status:           models.TaskStatus(req.Status),
		AssignedTo:       req.AssignedTo,
		NotificationType: notify.Kind(req.NotificationType),
		CreatedBy:        identity.UserID,
	})
	if err != nil {
		h.taskError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newTaskResponse(task))
}

func (h HandlerSet) ListTasks(c *gin.Context) {
	var query listTasksQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		validationFailed(c, err)
		return
	}
	if query.Page == 0 {
		query.Page = 1
	}
	if query.PerPage == 0 {
		query.PerPage = defaultPerPage
	}
	if query.PerPage > maxPerPage {
		query.PerPage = maxPerPage
	}

	tasks, err := h.tasks.List(c.Request.Context(), models.TaskFilter{
		Status:     models.TaskStatus(query.Status),
		Priority:   models.TaskPriority(query.Priority),
		AssignedTo: query.AssignedTo,
		Limit:      query.PerPage,
		Offset:     (query.Page - 1) * query.PerPage,
	})
	if err != nil {
		h.serverError(c, err)
		return
	}

	out := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		out = append(out, newTaskResponse(task))
	}
	c.JSON(http.StatusOK, gin.H{
		"tasks":   out,
		"page":    query.Page,
		"perPage": query.PerPage,
	})
}

func (h HandlerSet) GetTask(c *gin.Context) {
	task, err := h.tasks.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.taskError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (h HandlerSet) UpdateTask(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationFailed(c, err)
		return
	}

	input := service.UpdateTaskInput{
		Title:            req.Title,
		Description:      req.Description,
		DueDate:          req.DueDate,
		AssignedTo:       req.AssignedTo,
		NotificationType: notify.Kind(req.NotificationType),
	}
	if req.Priority != nil {
		priority := models.TaskPriority(*req.Priority)
		input.Priority = &priority
	}
	if req.Status != nil {
		status := models.TaskStatus(*req.Status)
		input.Status = &status
	}

	task, err := h.tasks.Update(c.Request.Context(), c.Param("id"), input)
	if err != nil {
		h.taskError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (h HandlerSet) DeleteTask(c *gin.Context) {
	if err := h.tasks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.taskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Task removed"})
}

func (h HandlerSet) taskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"msg": "Task not found"})
	case errors.Is(err, service.ErrAssigneeNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"msg": "Assigned user not found"})
	default:
		h.serverError(c, err)
	}
}

package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"taskmanager/internal/middleware"
	"taskmanager/internal/models"
	"taskmanager/internal/revocation"
	"taskmanager/internal/service"
)

type AuthFlows interface {
	Register(ctx context.Context, input service.RegisterInput) (service.AuthResult, error)
	Login(ctx context.Context, input service.LoginInput) (service.AuthResult, error)
	Logout(ctx context.Context, token string)
	Me(ctx context.Context, userID string) (models.User, error)
}

type TaskManager interface {
	Create(ctx context.Context, input service.CreateTaskInput) (models.Task, error)
	Get(ctx context.Context, id string) (models.Task, error)
	List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	Update(ctx context.Context, id string, input service.UpdateTaskInput) (models.Task, error)
	Delete(ctx context.Context, id string) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type Dependencies struct {
	Log         zerolog.Logger
	Environment string
	Auth        AuthFlows
	Tasks       TaskManager
	Tokens      middleware.TokenVerifier
	Revoked     revocation.Store
	Database    Pinger
	Cache       Pinger
}

type HandlerSet struct {
	log         zerolog.Logger
	environment string
	auth        AuthFlows
	tasks       TaskManager
	tokens      middleware.TokenVerifier
	revoked     revocation.Store
	db          Pinger
	cache       Pinger
}

func NewHandlerSet(deps Dependencies) HandlerSet {
	return HandlerSet{
		log:         deps.Log,
		environment: deps.Environment,
		auth:        deps.Auth,
		tasks:       deps.Tasks,
		tokens:      deps.Tokens,
		revoked:     deps.Revoked,
		db:          deps.Database,
		cache:       deps.Cache,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	authenticated := middleware.Auth(h.tokens, h.revoked)
	managers := middleware.RequireRoles(h.log, models.UserRoleAdmin, models.UserRoleManager)
	admins := middleware.RequireRoles(h.log, models.UserRoleAdmin)

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", h.Login)
		auth.POST("/logout", authenticated, h.Logout)
		auth.GET("/me", authenticated, h.Me)
	}

	tasks := router.Group("/tasks")
	tasks.Use(authenticated)
	{
		tasks.POST("", managers, h.CreateTask)
		tasks.GET("", h.ListTasks)
		tasks.GET("/:id", h.GetTask)
		tasks.PUT("/:id", managers, h.UpdateTask)
		tasks.DELETE("/:id", admins, h.DeleteTask)
	}
}

func (h HandlerSet) serverError(c *gin.Context, err error) {
	h.log.Error().
		Err(err).
		Str("path", c.FullPath()).
		Str("request_id", middleware.CurrentRequestID(c)).
		Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"msg": "Server error"})
}

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"taskmanager/internal/models"
	"taskmanager/internal/notify"
	"taskmanager/internal/repository"
	"taskmanager/internal/revocation"
	"taskmanager/internal/security"
	"taskmanager/internal/service"
	"taskmanager/internal/validation"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memUsers struct {
	mu    sync.Mutex
	users []models.User
}

func (m *memUsers) Create(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append(m.users, user)
	return nil
}

func (m *memUsers) find(match func(models.User) bool) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (models.User, error) {
	return m.find(func(u models.User) bool { return u.Email == email })
}

func (m *memUsers) FindByPhone(_ context.Context, phone string) (models.User, error) {
	return m.find(func(u models.User) bool { return u.Phone != nil && *u.Phone == phone })
}

func (m *memUsers) FindByLogin(_ context.Context, identifier string) (models.User, error) {
	email := repository.NormalizeEmail(identifier)
	return m.find(func(u models.User) bool { return u.Email == email || u.Username == identifier })
}

func (m *memUsers) GetByID(_ context.Context, id string) (models.User, error) {
	return m.find(func(u models.User) bool { return u.ID == id })
}

type memTasks struct {
	mu    sync.Mutex
	tasks map[string]models.Task
}

func (m *memTasks) Create(_ context.Context, task models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
	return nil
}

func (m *memTasks) GetByID(_ context.Context, id string) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return models.Task{}, repository.ErrTaskNotFound
	}
	return task, nil
}

func (m *memTasks) List(_ context.Context, filter models.TaskFilter) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Task{}
	for _, t := range m.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memTasks) ListDueBetween(context.Context, time.Time, time.Time) ([]models.Task, error) {
	return nil, nil
}

func (m *memTasks) Update(_ context.Context, task models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[task.ID]; !ok {
		return repository.ErrTaskNotFound
	}
	m.tasks[task.ID] = task
	return nil
}

func (m *memTasks) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return repository.ErrTaskNotFound
	}
	delete(m.tasks, id)
	return nil
}

type memPublisher struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (p *memPublisher) Publish(_ context.Context, msg notify.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

type testAPI struct {
	router    *gin.Engine
	tokens    *security.TokenService
	publisher *memPublisher
}

func newTestAPI(t *testing.T, database Pinger) testAPI {
	t.Helper()
	require.NoError(t, validation.Register())

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	log := zerolog.Nop()
	users := &memUsers{}
	tokens := security.NewTokenService("handler-secret", time.Hour)
	revoked := revocation.NewRedisStore(client, time.Hour, time.Second, log)
	publisher := &memPublisher{}

	set := NewHandlerSet(Dependencies{
		Log:         log,
		Environment: "test",
		Auth:        service.NewAuthService(users, tokens, revoked, time.Second, log),
		Tasks:       service.NewTaskService(&memTasks{tasks: map[string]models.Task{}}, users, publisher, time.Second, log),
		Tokens:      tokens,
		Revoked:     revoked,
		Database:    database,
		Cache:       PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() }),
	})

	router := gin.New()
	set.Register(router.Group("/api"))
	return testAPI{router: router, tokens: tokens, publisher: publisher}
}

func (a testAPI) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

// register returns the token for a freshly registered account.
func (a testAPI) register(t *testing.T, username, email, role string) string {
	t.Helper()
	body := map[string]string{"username": username, "email": email, "password": "Aa1!aaaa"}
	if role != "" {
		body["role"] = role
	}
	status, out := a.do(t, http.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, http.StatusCreated, status, out)
	token, _ := out["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func okPinger() Pinger {
	return PingFunc(func(context.Context) error { return nil })
}

func failingPinger() Pinger {
	return PingFunc(func(context.Context) error { return errors.New("connection refused") })
}

package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"taskmanager/internal/models"
	"taskmanager/internal/notify"
	"taskmanager/internal/repository"
)

type fakeUserStore struct {
	mu        sync.Mutex
	users     map[string]models.User
	createErr error
	lookupErr error
}

func newFakeUserStore(users ...models.User) *fakeUserStore {
	s := &fakeUserStore{users: map[string]models.User{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.users[user.ID] = user
	return nil
}

func (s *fakeUserStore) find(match func(models.User) bool) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return models.User{}, s.lookupErr
	}
	for _, u := range s.users {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (s *fakeUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	return s.find(func(u models.User) bool { return u.Email == email })
}

func (s *fakeUserStore) FindByPhone(_ context.Context, phone string) (models.User, error) {
	return s.find(func(u models.User) bool { return u.Phone != nil && *u.Phone == phone })
}

func (s *fakeUserStore) FindByLogin(_ context.Context, identifier string) (models.User, error) {
	email := repository.NormalizeEmail(identifier)
	return s.find(func(u models.User) bool { return u.Email == email || u.Username == identifier })
}

func (s *fakeUserStore) GetByID(_ context.Context, id string) (models.User, error) {
	return s.find(func(u models.User) bool { return u.ID == id })
}

type fakeRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func newFakeRevocationStore() *fakeRevocationStore {
	return &fakeRevocationStore{revoked: map[string]bool{}}
}

func (s *fakeRevocationStore) Revoke(_ context.Context, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[token] = true
}

func (s *fakeRevocationStore) IsRevoked(_ context.Context, token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked[token]
}

type fakeTaskStore struct {
	mu       sync.Mutex
	tasks    map[string]models.Task
	listErr  error
	lastList models.TaskFilter
}

func newFakeTaskStore(tasks ...models.Task) *fakeTaskStore {
	s := &fakeTaskStore{tasks: map[string]models.Task{}}
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	return s
}

func (s *fakeTaskStore) Create(_ context.Context, task models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
	return nil
}

func (s *fakeTaskStore) GetByID(_ context.Context, id string) (models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return models.Task{}, repository.ErrTaskNotFound
	}
	return task, nil
}

func (s *fakeTaskStore) List(_ context.Context, filter models.TaskFilter) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastList = filter
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]models.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		if filter.AssignedTo != "" && (t.AssignedTo == nil || *t.AssignedTo != filter.AssignedTo) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeTaskStore) ListDueBetween(_ context.Context, from, to time.Time) ([]models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Task
	for _, t := range s.tasks {
		if t.DueDate == nil || t.AssignedTo == nil || t.Status == models.TaskStatusCompleted {
			continue
		}
		if !t.DueDate.Before(from) && t.DueDate.Before(to) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(*out[j].DueDate) })
	return out, nil
}

func (s *fakeTaskStore) Update(_ context.Context, task models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[task.ID]; !ok {
		return repository.ErrTaskNotFound
	}
	s.tasks[task.ID] = task
	return nil
}

func (s *fakeTaskStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return repository.ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	messages []notify.Message
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, msg notify.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func strPtr(s string) *string { return &s }

package repository

import (
	"context"
	"sync"

	"github.com/agenthands/jmaptodo/internal/core/model"
)

type MemoryRepository struct {
	mu    sync.RWMutex
	todos []model.Todo

	NewID IDGenerator
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{NewID: NewID}
}

func (r *MemoryRepository) List(ctx context.Context) ([]model.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Todo, len(r.todos))
	copy(out, r.todos)
	return out, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*model.Todo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := r.indexOf(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	t := r.todos[i]
	return &t, nil
}

func (r *MemoryRepository) Create(ctx context.Context, title string) (*model.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := model.Todo{ID: r.NewID(), Title: title}
	r.todos = append(r.todos, t)
	return &t, nil
}

func (r *MemoryRepository) Update(ctx context.Context, id string, patch model.TodoPatch) (*model.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	r.todos[i] = patch.Apply(r.todos[i])
	t := r.todos[i]
	return &t, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	r.todos = append(r.todos[:i:i], r.todos[i+1:]...)
	return nil
}

func (r *MemoryRepository) Close() error { return nil }

func (r *MemoryRepository) indexOf(id string) int {
	for i, t := range r.todos {
		if t.ID == id {
			return i
		}
	}
	return -1
}

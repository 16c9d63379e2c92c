// Package repository persists Todos for the JMAP server.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agenthands/jmaptodo/internal/config"
	"github.com/agenthands/jmaptodo/internal/core/model"
	"github.com/agenthands/jmaptodo/internal/driver"
)

var ErrNotFound = errors.New("todo not found")

// TodoRepository stores Todos. List returns them in creation order.
type TodoRepository interface {
	List(ctx context.Context) ([]model.Todo, error)
	Get(ctx context.Context, id string) (*model.Todo, error)
	Create(ctx context.Context, title string) (*model.Todo, error)
	Update(ctx context.Context, id string, patch model.TodoPatch) (*model.Todo, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// IDGenerator assigns server ids to new Todos.
type IDGenerator func() string

func NewID() string {
	return uuid.New().String()
}

// Open returns the backend selected by cfg.Storage.Backend.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (TodoRepository, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		log.Info().Msg("Using in-memory todo storage")
		return NewMemoryRepository(), nil
	case config.BackendSQLite:
		log.Info().Str("path", cfg.Storage.SQLitePath).Msg("Using SQLite todo storage")
		return NewSQLiteRepository(ctx, cfg.Storage.SQLitePath)
	case config.BackendMemgraph:
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph, log)
		if err != nil {
			return nil, err
		}
		if err := d.BuildIndices(ctx); err != nil {
			_ = d.Close(ctx)
			return nil, err
		}
		return NewGraphRepository(d), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

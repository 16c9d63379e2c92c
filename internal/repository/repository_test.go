package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/jmaptodo/internal/config"
	"github.com/agenthands/jmaptodo/internal/core/model"
)

func sequentialIDs() IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("t-%d", n)
	}
}

func ptr[T any](v T) *T { return &v }

func testRepositoryContract(t *testing.T, repo TodoRepository) {
	ctx := context.Background()

	todos, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, todos)

	first, err := repo.Create(ctx, "Buy milk")
	require.NoError(t, err)
	assert.Equal(t, &model.Todo{ID: "t-1", Title: "Buy milk"}, first)

	_, err = repo.Create(ctx, "Call mum")
	require.NoError(t, err)
	_, err = repo.Create(ctx, "Water plants")
	require.NoError(t, err)

	updated, err := repo.Update(ctx, "t-1", model.TodoPatch{IsCompleted: ptr(true)})
	require.NoError(t, err)
	assert.Equal(t, &model.Todo{ID: "t-1", Title: "Buy milk", IsCompleted: true}, updated)

	renamed, err := repo.Update(ctx, "t-2", model.TodoPatch{Title: ptr("Call dad")})
	require.NoError(t, err)
	assert.Equal(t, "Call dad", renamed.Title)
	assert.False(t, renamed.IsCompleted)

	require.NoError(t, repo.Delete(ctx, "t-3"))
	assert.ErrorIs(t, repo.Delete(ctx, "t-3"), ErrNotFound)

	got, err := repo.Get(ctx, "t-1")
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)

	_, err = repo.Get(ctx, "t-3")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Update(ctx, "t-3", model.TodoPatch{Title: ptr("x")})
	assert.ErrorIs(t, err, ErrNotFound)

	todos, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Todo{
		{ID: "t-1", Title: "Buy milk", IsCompleted: true},
		{ID: "t-2", Title: "Call dad"},
	}, todos)
}

func TestMemoryRepository(t *testing.T) {
	repo := NewMemoryRepository()
	repo.NewID = sequentialIDs()
	testRepositoryContract(t, repo)
	assert.NoError(t, repo.Close())
}

func TestSQLiteRepository(t *testing.T) {
	repo, err := NewSQLiteRepository(context.Background(), ":memory:")
	require.NoError(t, err)
	defer repo.Close()
	repo.NewID = sequentialIDs()
	testRepositoryContract(t, repo)
}

func TestSQLiteRepositoryPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "todos.db")

	repo, err := NewSQLiteRepository(context.Background(), path)
	require.NoError(t, err)
	created, err := repo.Create(context.Background(), "Buy milk")
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	repo, err = NewSQLiteRepository(context.Background(), path)
	require.NoError(t, err)
	defer repo.Close()
	todos, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []model.Todo{*created}, todos)
}

func TestOpen(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Backend = config.BackendMemory
	repo, err := Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &MemoryRepository{}, repo)

	cfg.Storage.Backend = config.BackendSQLite
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "todos.db")
	repo, err = Open(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &SQLiteRepository{}, repo)
	assert.NoError(t, repo.Close())

	cfg.Storage.Backend = "postgres"
	_, err = Open(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

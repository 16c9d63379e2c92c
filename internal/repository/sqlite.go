package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agenthands/jmaptodo/internal/core/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS todos (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	is_completed INTEGER NOT NULL DEFAULT 0
);`

// SQLiteRepository keeps Todos in a single SQLite table. Rows are listed in
// rowid order, which is insertion order.
type SQLiteRepository struct {
	db *sql.DB

	NewID IDGenerator
}

func NewSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteRepository{db: db, NewID: NewID}, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]model.Todo, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, title, is_completed FROM todos ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	defer rows.Close()

	todos := []model.Todo{}
	for rows.Next() {
		var t model.Todo
		if err := rows.Scan(&t.ID, &t.Title, &t.IsCompleted); err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*model.Todo, error) {
	var t model.Todo
	err := r.db.QueryRowContext(ctx, "SELECT id, title, is_completed FROM todos WHERE id = ?", id).
		Scan(&t.ID, &t.Title, &t.IsCompleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get todo %s: %w", id, err)
	}
	return &t, nil
}

func (r *SQLiteRepository) Create(ctx context.Context, title string) (*model.Todo, error) {
	id := r.NewID()
	if _, err := r.db.ExecContext(ctx, "INSERT INTO todos (id, title) VALUES (?, ?)", id, title); err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *SQLiteRepository) Update(ctx context.Context, id string, patch model.TodoPatch) (*model.Todo, error) {
	res, err := r.db.ExecContext(ctx,
		"UPDATE todos SET title = COALESCE(?, title), is_completed = COALESCE(?, is_completed) WHERE id = ?",
		nullString(patch.Title), nullBool(patch.IsCompleted), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update todo %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM todos WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete todo %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete todo %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

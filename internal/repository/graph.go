package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/jmaptodo/internal/core/model"
	"github.com/agenthands/jmaptodo/internal/driver"
)

// GraphRepository stores each Todo as a (:Todo) node.
type GraphRepository struct {
	driver driver.GraphDriver

	NewID IDGenerator
	Now   func() time.Time
}

func NewGraphRepository(d driver.GraphDriver) *GraphRepository {
	return &GraphRepository{driver: d, NewID: NewID, Now: time.Now}
}

func (r *GraphRepository) List(ctx context.Context) ([]model.Todo, error) {
	res, err := r.driver.ExecuteQuery(ctx, driver.ListTodosQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list todos: %w", err)
	}
	todos := make([]model.Todo, 0, len(res.Records))
	for _, rec := range res.Records {
		todos = append(todos, todoFromRecord(rec))
	}
	return todos, nil
}

func (r *GraphRepository) Get(ctx context.Context, id string) (*model.Todo, error) {
	res, err := r.driver.ExecuteQuery(ctx, driver.GetTodoQuery, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to get todo %s: %w", id, err)
	}
	return firstTodo(res)
}

func (r *GraphRepository) Create(ctx context.Context, title string) (*model.Todo, error) {
	params := map[string]any{
		"id":           r.NewID(),
		"title":        title,
		"is_completed": false,
		"created_at":   r.Now().UnixNano(),
	}
	res, err := r.driver.ExecuteQuery(ctx, driver.CreateTodoQuery, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create todo: %w", err)
	}
	return firstTodo(res)
}

func (r *GraphRepository) Update(ctx context.Context, id string, patch model.TodoPatch) (*model.Todo, error) {
	params := map[string]any{"id": id, "title": nil, "is_completed": nil}
	if patch.Title != nil {
		params["title"] = *patch.Title
	}
	if patch.IsCompleted != nil {
		params["is_completed"] = *patch.IsCompleted
	}
	res, err := r.driver.ExecuteQuery(ctx, driver.UpdateTodoQuery, params)
	if err != nil {
		return nil, fmt.Errorf("failed to update todo %s: %w", id, err)
	}
	return firstTodo(res)
}

func (r *GraphRepository) Delete(ctx context.Context, id string) error {
	res, err := r.driver.ExecuteQuery(ctx, driver.DeleteTodoQuery, map[string]any{"id": id})
	if err != nil {
		return fmt.Errorf("failed to delete todo %s: %w", id, err)
	}
	if len(res.Records) == 0 {
		return ErrNotFound
	}
	deleted, _ := res.Records[0].Get("deleted")
	if n, _ := deleted.(int64); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GraphRepository) Close() error {
	return r.driver.Close(context.Background())
}

func firstTodo(res neo4j.EagerResult) (*model.Todo, error) {
	if len(res.Records) == 0 {
		return nil, ErrNotFound
	}
	t := todoFromRecord(res.Records[0])
	return &t, nil
}

func todoFromRecord(rec *neo4j.Record) model.Todo {
	id, _ := rec.Get("id")
	title, _ := rec.Get("title")
	completed, _ := rec.Get("is_completed")

	t := model.Todo{}
	t.ID, _ = id.(string)
	t.Title, _ = title.(string)
	t.IsCompleted, _ = completed.(bool)
	return t
}

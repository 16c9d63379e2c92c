// Package todo implements the user intents of the Todo list on top of the
// batched protocol client. Every intent updates the local store
// optimistically, reconciles it with the server's answer, and ends with a
// full refresh when the server accepted the change.
package todo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/agenthands/jmaptodo/internal/core/model"
	"github.com/agenthands/jmaptodo/internal/jmap"
	"github.com/agenthands/jmaptodo/internal/store"
)

var ErrEmptyTitle = errors.New("todo title is empty")

// NewCreationID returns a creation id that is unique for the lifetime of the
// process.
func NewCreationID() string {
	return "c-" + uuid.NewString()
}

type Controller struct {
	api   *API
	store *store.Store[model.Todo]
	log   zerolog.Logger

	// CreationID generates creation ids for new Todos.
	CreationID func() string
}

func NewController(api *API, log zerolog.Logger) *Controller {
	return &Controller{
		api:        api,
		store:      store.New(func(t model.Todo) string { return t.ID }),
		log:        log.With().Str("component", "todo").Logger(),
		CreationID: NewCreationID,
	}
}

// Store exposes the entity store the presentation layer renders from.
func (c *Controller) Store() *store.Store[model.Todo] { return c.store }

// Todos returns the current list, optimistic changes included.
func (c *Controller) Todos() []model.Todo { return c.store.Values() }

// ListAll refreshes the store from the server and returns its contents.
func (c *Controller) ListAll(ctx context.Context) ([]model.Todo, error) {
	if err := c.refresh(ctx); err != nil {
		return nil, err
	}
	return c.store.Values(), nil
}

func (c *Controller) refresh(ctx context.Context) error {
	epoch := c.store.NextEpoch()
	todos, err := c.api.FetchAll(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("Failed to refresh todos")
		return err
	}
	if !c.store.Replace(epoch, todos) {
		c.log.Debug().Uint64("epoch", epoch).Msg("Discarded stale refresh")
		return nil
	}
	c.log.Debug().Uint64("epoch", epoch).Int("count", len(todos)).Msg("Refreshed todos")
	return nil
}

// Create adds a Todo titled title. The entry is visible under its creation id
// until the server assigns the real id.
func (c *Controller) Create(ctx context.Context, title string) (*model.Todo, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}

	cid := c.CreationID()
	if err := c.store.BeginCreate(cid, model.Todo{ID: cid, Title: title}); err != nil {
		return nil, err
	}

	resp, err := c.api.Set(ctx, model.SetArgs{
		Create: map[string]model.TodoCreate{cid: {Title: title}},
	})
	if err != nil {
		c.store.FailCreate(cid)
		c.log.Error().Err(err).Str("creation_id", cid).Msg("Failed to create todo")
		return nil, fmt.Errorf("create %q: %w", title, err)
	}
	if setErr, ok := resp.NotCreated[cid]; ok {
		c.store.FailCreate(cid)
		c.log.Warn().Str("creation_id", cid).Str("type", setErr.Type).Msg("Server rejected todo")
		return nil, fmt.Errorf("create %q: %w", title, &setErr)
	}
	created, ok := resp.Created[cid]
	if !ok || created.ID == "" {
		c.store.FailCreate(cid)
		err := &jmap.MalformedResponseError{Reason: "Todo/set did not report creation " + cid}
		c.log.Error().Err(err).Msg("Failed to create todo")
		return nil, err
	}

	// The server may only echo the properties it set, typically just the id.
	todo := model.Todo{ID: created.ID, Title: title, IsCompleted: created.IsCompleted}
	if created.Title != "" {
		todo.Title = created.Title
	}
	c.store.ConfirmCreate(cid, todo.ID, todo)
	c.log.Info().Str("id", todo.ID).Str("creation_id", cid).Msg("Created todo")

	if err := c.refresh(ctx); err != nil {
		return &todo, fmt.Errorf("refresh after create: %w", err)
	}
	return &todo, nil
}

// ToggleCompleted sets isCompleted of id to !current.
func (c *Controller) ToggleCompleted(ctx context.Context, id string, current bool) error {
	next := !current
	patch := model.TodoPatch{IsCompleted: &next}

	optimistic := false
	if e, ok := c.store.Get(id); ok && (e.State == store.Present || e.State == store.PendingMutation) {
		optimistic = c.store.BeginUpdate(id, patch.Apply(e.Value)) == nil
	}
	revert := func() {
		if optimistic {
			c.store.RevertUpdate(id)
		}
	}

	resp, err := c.api.Set(ctx, model.SetArgs{
		Update: map[string]model.TodoPatch{id: patch},
	})
	if err != nil {
		revert()
		c.log.Error().Err(err).Str("id", id).Msg("Failed to toggle todo")
		return fmt.Errorf("toggle %s: %w", id, err)
	}
	if setErr, ok := resp.NotUpdated[id]; ok {
		revert()
		c.log.Warn().Str("id", id).Str("type", setErr.Type).Msg("Server rejected toggle")
		return fmt.Errorf("toggle %s: %w", id, &setErr)
	}
	updated, ok := resp.Updated[id]
	if !ok {
		revert()
		err := &jmap.MalformedResponseError{Reason: "Todo/set did not report update of " + id}
		c.log.Error().Err(err).Msg("Failed to toggle todo")
		return err
	}

	if optimistic {
		e, _ := c.store.Get(id)
		confirmed := e.Value
		if updated != nil && updated.ID == id {
			confirmed = *updated
		}
		c.store.ConfirmUpdate(id, confirmed)
	}
	c.log.Info().Str("id", id).Bool("is_completed", next).Msg("Toggled todo")

	if err := c.refresh(ctx); err != nil {
		return fmt.Errorf("refresh after toggle: %w", err)
	}
	return nil
}

// Delete destroys id. Deleting an id the server no longer knows reports a
// notFound *model.SetError and leaves the store untouched.
func (c *Controller) Delete(ctx context.Context, id string) error {
	optimistic := c.store.BeginDestroy(id) == nil
	revert := func() {
		if optimistic {
			c.store.RevertDestroy(id)
		}
	}

	resp, err := c.api.Set(ctx, model.SetArgs{Destroy: []string{id}})
	if err != nil {
		revert()
		c.log.Error().Err(err).Str("id", id).Msg("Failed to delete todo")
		return fmt.Errorf("delete %s: %w", id, err)
	}
	if setErr, ok := resp.NotDestroyed[id]; ok {
		revert()
		c.log.Warn().Str("id", id).Str("type", setErr.Type).Msg("Server rejected delete")
		return fmt.Errorf("delete %s: %w", id, &setErr)
	}
	if !slices.Contains(resp.Destroyed, id) {
		revert()
		err := &jmap.MalformedResponseError{Reason: "Todo/set did not report destruction of " + id}
		c.log.Error().Err(err).Msg("Failed to delete todo")
		return err
	}

	if optimistic {
		c.store.ConfirmDestroy(id)
	}
	c.log.Info().Str("id", id).Msg("Deleted todo")

	if err := c.refresh(ctx); err != nil {
		return fmt.Errorf("refresh after delete: %w", err)
	}
	return nil
}

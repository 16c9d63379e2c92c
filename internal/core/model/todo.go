package model

import "fmt"

const (
	MethodTodoQuery = "Todo/query"
	MethodTodoGet   = "Todo/get"
	MethodTodoSet   = "Todo/set"
)

// Per-item Todo/set error types.
const (
	SetErrorNotFound          = "notFound"
	SetErrorInvalidProperties = "invalidProperties"
	SetErrorSingleton         = "singleton"
)

type Todo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	IsCompleted bool   `json:"isCompleted"`
}

// TodoCreate is the object sent for a new Todo; the server assigns the id.
type TodoCreate struct {
	Title       string `json:"title"`
	IsCompleted bool   `json:"isCompleted,omitempty"`
}

// TodoPatch lists the properties to change; nil fields are left alone.
type TodoPatch struct {
	Title       *string `json:"title,omitempty"`
	IsCompleted *bool   `json:"isCompleted,omitempty"`
}

// Apply returns t with the patch applied.
func (p TodoPatch) Apply(t Todo) Todo {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.IsCompleted != nil {
		t.IsCompleted = *p.IsCompleted
	}
	return t
}

type TodoFilter struct {
	IsCompleted *bool `json:"isCompleted,omitempty"`
}

func (f *TodoFilter) Matches(t Todo) bool {
	if f == nil {
		return true
	}
	if f.IsCompleted != nil && *f.IsCompleted != t.IsCompleted {
		return false
	}
	return true
}

type QueryArgs struct {
	AccountID string      `json:"accountId"`
	Filter    *TodoFilter `json:"filter,omitempty"`
	Position  int         `json:"position,omitempty"`
	Limit     *int        `json:"limit,omitempty"`
}

type QueryResponse struct {
	AccountID           string   `json:"accountId"`
	QueryState          string   `json:"queryState"`
	CanCalculateChanges bool     `json:"canCalculateChanges"`
	Position            int      `json:"position"`
	IDs                 []string `json:"ids"`
	Total               int      `json:"total"`
}

// GetArgs fetches Todos by id; a nil IDs slice fetches every Todo.
type GetArgs struct {
	AccountID  string   `json:"accountId"`
	IDs        []string `json:"ids"`
	Properties []string `json:"properties,omitempty"`
}

type GetResponse struct {
	AccountID string   `json:"accountId"`
	State     string   `json:"state"`
	List      []Todo   `json:"list"`
	NotFound  []string `json:"notFound"`
}

type SetArgs struct {
	AccountID string                `json:"accountId"`
	IfInState string                `json:"ifInState,omitempty"`
	Create    map[string]TodoCreate `json:"create,omitempty"`
	Update    map[string]TodoPatch  `json:"update,omitempty"`
	Destroy   []string              `json:"destroy,omitempty"`
}

type SetResponse struct {
	AccountID    string              `json:"accountId"`
	OldState     string              `json:"oldState"`
	NewState     string              `json:"newState"`
	Created      map[string]Todo     `json:"created"`
	Updated      map[string]*Todo    `json:"updated"`
	Destroyed    []string            `json:"destroyed"`
	NotCreated   map[string]SetError `json:"notCreated"`
	NotUpdated   map[string]SetError `json:"notUpdated"`
	NotDestroyed map[string]SetError `json:"notDestroyed"`
}

// NewSetResponse returns a response with every map and list allocated, so
// empty results encode as {} and [] rather than null.
func NewSetResponse(accountID, oldState string) *SetResponse {
	return &SetResponse{
		AccountID:    accountID,
		OldState:     oldState,
		NewState:     oldState,
		Created:      map[string]Todo{},
		Updated:      map[string]*Todo{},
		Destroyed:    []string{},
		NotCreated:   map[string]SetError{},
		NotUpdated:   map[string]SetError{},
		NotDestroyed: map[string]SetError{},
	}
}

// SetError is a per-item failure inside a Todo/set response.
type SetError struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Properties  []string `json:"properties,omitempty"`
}

func (e SetError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s: %s", e.Type, e.Description)
	}
	if len(e.Properties) > 0 {
		return fmt.Sprintf("%s %v", e.Type, e.Properties)
	}
	return e.Type
}

package todo

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/jmaptodo/internal/core/model"
	"github.com/agenthands/jmaptodo/internal/jmap"
)

// MockBackend is an in-process JMAP endpoint implementing jmap.Transport. It
// resolves result references the way a server would, so it works with both
// strategies.
type MockBackend struct {
	mu       sync.Mutex
	todos    []model.Todo
	nextID   int
	Requests []model.Request

	// BeforeSet runs while a Todo/set call is in flight.
	BeforeSet func()
	// Reject makes every Todo/set item fail with this error.
	Reject *model.SetError
	// SetErr fails the round trip carrying a Todo/set call.
	SetErr error
}

func NewMockBackend(todos ...model.Todo) *MockBackend {
	return &MockBackend{todos: todos, nextID: 42}
}

func (m *MockBackend) Post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	var req model.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()

	results := jmap.NewResults()
	out := make([]model.Response, 0, len(req.MethodCalls))
	for _, call := range req.MethodCalls {
		var resp model.Response
		resolved, err := jmap.Resolve(call, results)
		if err != nil {
			resp = model.NewErrorResponse(call.CallID, model.ErrorObject{Type: model.ErrorInvalidResultReference, Description: err.Error()})
		} else {
			resp, err = m.handle(resolved)
			if err != nil {
				return nil, err
			}
		}
		if err := results.Add(resp); err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return json.Marshal(model.ResponseEnvelope{MethodResponses: out, SessionState: "s"})
}

func (m *MockBackend) handle(call model.Invocation) (model.Response, error) {
	switch call.Name {
	case model.MethodTodoQuery:
		m.mu.Lock()
		ids := make([]string, 0, len(m.todos))
		for _, t := range m.todos {
			ids = append(ids, t.ID)
		}
		m.mu.Unlock()
		return model.NewResponse(call.Name, model.QueryResponse{AccountID: "primary", IDs: ids, Total: len(ids)}, call.CallID)

	case model.MethodTodoGet:
		raw, _ := call.Args["ids"].([]any)
		resp := model.GetResponse{AccountID: "primary", List: []model.Todo{}, NotFound: []string{}}
		m.mu.Lock()
		for _, v := range raw {
			id, _ := v.(string)
			if i := m.indexOf(id); i >= 0 {
				resp.List = append(resp.List, m.todos[i])
			} else {
				resp.NotFound = append(resp.NotFound, id)
			}
		}
		m.mu.Unlock()
		return model.NewResponse(call.Name, resp, call.CallID)

	case model.MethodTodoSet:
		if m.BeforeSet != nil {
			m.BeforeSet()
		}
		if m.SetErr != nil {
			return model.Response{}, m.SetErr
		}
		raw, err := json.Marshal(call.Args)
		if err != nil {
			return model.Response{}, err
		}
		var args model.SetArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return model.Response{}, err
		}
		return model.NewResponse(call.Name, m.set(args), call.CallID)
	}
	return model.NewErrorResponse(call.CallID, model.ErrorObject{Type: model.ErrorUnknownMethod}), nil
}

func (m *MockBackend) set(args model.SetArgs) *model.SetResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp := model.NewSetResponse(args.AccountID, "1")
	for cid, create := range args.Create {
		if m.Reject != nil {
			resp.NotCreated[cid] = *m.Reject
			continue
		}
		id := fmt.Sprintf("t-%d", m.nextID)
		m.nextID++
		m.todos = append(m.todos, model.Todo{ID: id, Title: create.Title, IsCompleted: create.IsCompleted})
		resp.Created[cid] = model.Todo{ID: id}
	}
	for id, patch := range args.Update {
		i := m.indexOf(id)
		switch {
		case m.Reject != nil:
			resp.NotUpdated[id] = *m.Reject
		case i < 0:
			resp.NotUpdated[id] = model.SetError{Type: model.SetErrorNotFound}
		default:
			m.todos[i] = patch.Apply(m.todos[i])
			resp.Updated[id] = nil
		}
	}
	for _, id := range args.Destroy {
		i := m.indexOf(id)
		switch {
		case m.Reject != nil:
			resp.NotDestroyed[id] = *m.Reject
		case i < 0:
			resp.NotDestroyed[id] = model.SetError{Type: model.SetErrorNotFound}
		default:
			m.todos = append(m.todos[:i], m.todos[i+1:]...)
			resp.Destroyed = append(resp.Destroyed, id)
		}
	}
	resp.NewState = "2"
	return resp
}

func (m *MockBackend) indexOf(id string) int {
	for i, t := range m.todos {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (m *MockBackend) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

func newTestController(t *testing.T, strategy jmap.Strategy, backend *MockBackend) *Controller {
	t.Helper()
	client, err := jmap.NewClient(jmap.Config{Endpoint: "http://jmap.test/jmap", Strategy: strategy}, backend, zerolog.Nop())
	require.NoError(t, err)
	return NewController(NewAPI(client, "primary"), zerolog.Nop())
}

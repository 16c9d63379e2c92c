package jmap

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/jmaptodo/internal/core/model"
)

// MockTransport decodes every request it is handed and answers through Reply.
type MockTransport struct {
	Requests []model.Request
	Reply    func(req model.Request) ([]byte, error)
}

func (m *MockTransport) Post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	var req model.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, err
	}
	m.Requests = append(m.Requests, req)
	return m.Reply(req)
}

func response(t *testing.T, name string, result any, callID string) model.Response {
	t.Helper()
	resp, err := model.NewResponse(name, result, callID)
	require.NoError(t, err)
	return resp
}

func envelope(t *testing.T, responses ...model.Response) []byte {
	t.Helper()
	if responses == nil {
		responses = []model.Response{}
	}
	raw, err := json.Marshal(model.ResponseEnvelope{MethodResponses: responses, SessionState: "s1"})
	require.NoError(t, err)
	return raw
}

func newTestClient(t *testing.T, strategy Strategy, transport Transport) *Client {
	t.Helper()
	c, err := NewClient(Config{Endpoint: "http://jmap.test/jmap", Strategy: strategy}, transport, zerolog.Nop())
	require.NoError(t, err)
	return c
}

// todoBackend answers Todo/query and Todo/get from a fixed id list. Reference
// arguments are echoed back as an error so tests notice unresolved markers.
func todoBackend(t *testing.T, ids []string) func(req model.Request) ([]byte, error) {
	return func(req model.Request) ([]byte, error) {
		var out []model.Response
		for _, call := range req.MethodCalls {
			if len(call.Args.ReferenceKeys()) > 0 {
				out = append(out, model.NewErrorResponse(call.CallID, model.ErrorObject{Type: model.ErrorInvalidResultReference}))
				continue
			}
			switch call.Name {
			case model.MethodTodoQuery:
				out = append(out, response(t, call.Name, model.QueryResponse{AccountID: "primary", IDs: ids, Total: len(ids)}, call.CallID))
			case model.MethodTodoGet:
				var list []model.Todo
				raw, _ := call.Args["ids"].([]any)
				for _, id := range raw {
					list = append(list, model.Todo{ID: id.(string), Title: "title " + id.(string)})
				}
				out = append(out, response(t, call.Name, model.GetResponse{AccountID: "primary", List: list, NotFound: []string{}}, call.CallID))
			default:
				out = append(out, model.NewErrorResponse(call.CallID, model.ErrorObject{Type: model.ErrorUnknownMethod}))
			}
		}
		return envelope(t, out...), nil
	}
}

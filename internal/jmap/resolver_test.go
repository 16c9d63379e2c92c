package jmap

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/jmaptodo/internal/core/model"
)

func queryResults(t *testing.T) *Results {
	results := NewResults()
	results.expect(model.Invocation{Name: model.MethodTodoQuery, CallID: "q"})
	require.NoError(t, results.Add(response(t, model.MethodTodoQuery, model.QueryResponse{IDs: []string{"t-1", "t-2"}}, "q")))
	return results
}

func TestResolveSplicesLiteral(t *testing.T) {
	results := queryResults(t)
	call := model.Invocation{
		Name:   model.MethodTodoGet,
		Args:   model.Arguments{"accountId": "primary"}.SetRef("ids", model.Ref("q", model.MethodTodoQuery, "/ids")),
		CallID: "g",
	}

	resolved, err := Resolve(call, results)
	require.NoError(t, err)

	assert.Equal(t, []any{"t-1", "t-2"}, resolved.Args["ids"])
	assert.Equal(t, "primary", resolved.Args["accountId"])
	assert.NotContains(t, resolved.Args, "#ids")

	// The pending call keeps its marker.
	assert.Contains(t, call.Args, "#ids")
	assert.NotContains(t, call.Args, "ids")
}

func TestResolveMatchesManualSubstitution(t *testing.T) {
	results := queryResults(t)
	call := model.Invocation{
		Name: model.MethodTodoGet,
		Args: model.Arguments{"accountId": "primary"}.
			SetRef("ids", model.Ref("q", model.MethodTodoQuery, "/ids")).
			SetRef("first", model.Ref("q", model.MethodTodoQuery, "/ids/0")),
		CallID: "g",
	}

	resolved, err := Resolve(call, results)
	require.NoError(t, err)

	manual := model.Arguments{
		"accountId": "primary",
		"ids":       []any{"t-1", "t-2"},
		"first":     "t-1",
	}
	assert.Equal(t, manual, resolved.Args)
}

func TestResolveWithoutReferences(t *testing.T) {
	call := model.Invocation{Name: model.MethodTodoGet, Args: model.Arguments{"ids": []string{"a"}}, CallID: "g"}
	resolved, err := Resolve(call, NewResults())
	require.NoError(t, err)
	assert.Equal(t, call, resolved)
}

func TestResolveFailures(t *testing.T) {
	results := queryResults(t)
	results.expect(model.Invocation{Name: model.MethodTodoSet, CallID: "s"})
	require.NoError(t, results.Add(model.NewErrorResponse("s", model.ErrorObject{Type: model.ErrorServerFail, Description: "disk full"})))

	get := func(ref model.ResultReference) model.Invocation {
		return model.Invocation{Name: model.MethodTodoGet, Args: model.Arguments{}.SetRef("ids", ref), CallID: "g"}
	}

	t.Run("no response", func(t *testing.T) {
		_, err := Resolve(get(model.Ref("nope", model.MethodTodoQuery, "/ids")), results)
		var refErr *UnresolvedReferenceError
		require.True(t, errors.As(err, &refErr), "got %v", err)
		assert.Equal(t, "g", refErr.CallID)
	})

	t.Run("method mismatch", func(t *testing.T) {
		_, err := Resolve(get(model.Ref("q", model.MethodTodoGet, "/ids")), results)
		var refErr *UnresolvedReferenceError
		require.True(t, errors.As(err, &refErr), "got %v", err)
	})

	t.Run("upstream error", func(t *testing.T) {
		_, err := Resolve(get(model.Ref("s", model.MethodTodoSet, "/created")), results)
		var upErr *UpstreamMethodError
		require.True(t, errors.As(err, &upErr), "got %v", err)
		assert.Equal(t, "s", upErr.CallID)
		assert.Equal(t, model.ErrorServerFail, upErr.Type)
		assert.Equal(t, "disk full", upErr.Description)
	})

	t.Run("bad path", func(t *testing.T) {
		_, err := Resolve(get(model.Ref("q", model.MethodTodoQuery, "/missing")), results)
		var pathErr *PathResolutionError
		require.True(t, errors.As(err, &pathErr), "got %v", err)
		assert.Equal(t, "/missing", pathErr.Path)
	})
}

func TestResolveKeepsLargeIntegers(t *testing.T) {
	results := NewResults()
	results.expect(model.Invocation{Name: model.MethodCoreEcho, CallID: "a"})
	require.NoError(t, results.Add(model.Response{Name: model.MethodCoreEcho, Args: json.RawMessage(`{"big":9007199254740993}`), CallID: "a"}))

	call := model.Invocation{
		Name:   model.MethodCoreEcho,
		Args:   model.Arguments{}.SetRef("n", model.Ref("a", model.MethodCoreEcho, "/big")),
		CallID: "b",
	}
	resolved, err := Resolve(call, results)
	require.NoError(t, err)

	raw, err := json.Marshal(resolved.Args)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":9007199254740993}`, string(raw))
	assert.Contains(t, string(raw), "9007199254740993")
}

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvocationWireFormat(t *testing.T) {
	call := Invocation{
		Name:   MethodTodoGet,
		Args:   Arguments{"accountId": "primary"}.SetRef("ids", Ref("q", MethodTodoQuery, "/ids")),
		CallID: "g",
	}
	raw, err := json.Marshal(call)
	require.NoError(t, err)
	assert.JSONEq(t, `["Todo/get", {"accountId": "primary", "#ids": {"resultOf": "q", "name": "Todo/query", "path": "/ids"}}, "g"]`, string(raw))

	var back Invocation
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, call, back)

	raw, err = json.Marshal(Invocation{Name: MethodCoreEcho, CallID: "e"})
	require.NoError(t, err)
	assert.JSONEq(t, `["Core/echo", {}, "e"]`, string(raw))
}

func TestInvocationRejectsBadShapes(t *testing.T) {
	for _, payload := range []string{
		`["Todo/get", {}]`,
		`{"name": "Todo/get"}`,
		`["Todo/get", null, "g"]`,
		`["Todo/get", {"#ids": "q"}, "g"]`,
		`[1, {}, "g"]`,
	} {
		var inv Invocation
		assert.Error(t, json.Unmarshal([]byte(payload), &inv), payload)
	}
}

func TestArgumentsReferences(t *testing.T) {
	args := Arguments{"accountId": "primary"}.
		SetRef("ids", Ref("q", MethodTodoQuery, "/ids")).
		SetRef("filter", Ref("f", "Filter/get", "/0"))

	refs, err := args.References()
	require.NoError(t, err)
	assert.Len(t, refs, 2)
	assert.Equal(t, "/ids", refs["ids"].Path)
	assert.Equal(t, []string{"filter", "ids"}, args.ReferenceKeys())

	_, err = Arguments{"ids": []string{}, "#ids": Ref("q", MethodTodoQuery, "/ids")}.References()
	assert.Error(t, err)
	_, err = Arguments{"#": Ref("q", MethodTodoQuery, "/ids")}.References()
	assert.Error(t, err)

	refs, err = Arguments{"accountId": "primary"}.References()
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestResponseWireFormat(t *testing.T) {
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(`["error", {"type": "unknownMethod"}, "x"]`), &resp))
	assert.True(t, resp.IsError())
	obj, ok := resp.Failure()
	require.True(t, ok)
	assert.Equal(t, ErrorUnknownMethod, obj.Type)

	assert.Error(t, json.Unmarshal([]byte(`["Todo/get", [], "g"]`), &resp))

	resp = NewErrorResponse("y", ErrorObject{})
	obj, _ = resp.Failure()
	assert.Equal(t, ErrorServerFail, obj.Type)

	_, ok = Response{Name: MethodTodoGet, Args: json.RawMessage(`{}`)}.Failure()
	assert.False(t, ok)
}

func TestSetResponseEncodesEmptyCollections(t *testing.T) {
	raw, err := json.Marshal(NewSetResponse("primary", "3"))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"accountId": "primary", "oldState": "3", "newState": "3",
		"created": {}, "updated": {}, "destroyed": [],
		"notCreated": {}, "notUpdated": {}, "notDestroyed": {}
	}`, string(raw))
}

func TestTodoPatchAndFilter(t *testing.T) {
	done := true
	title := "new"
	todo := Todo{ID: "t-1", Title: "old"}

	assert.Equal(t, Todo{ID: "t-1", Title: "new", IsCompleted: true}, TodoPatch{Title: &title, IsCompleted: &done}.Apply(todo))
	assert.Equal(t, todo, TodoPatch{}.Apply(todo))

	var nilFilter *TodoFilter
	assert.True(t, nilFilter.Matches(todo))
	assert.False(t, (&TodoFilter{IsCompleted: &done}).Matches(todo))
}

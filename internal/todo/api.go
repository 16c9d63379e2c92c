package todo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agenthands/jmaptodo/internal/core/model"
	"github.com/agenthands/jmaptodo/internal/jmap"
)

// Call ids used by the batches this package builds.
const (
	callQuery = "q"
	callGet   = "g"
	callSet   = "s"
)

// API issues typed Todo method calls through a jmap.Client.
type API struct {
	client    *jmap.Client
	accountID string
}

func NewAPI(client *jmap.Client, accountID string) *API {
	return &API{client: client, accountID: accountID}
}

func (a *API) AccountID() string { return a.accountID }

// FetchAll lists every Todo in query order. The get call takes its ids from
// the query by result reference, so depending on the client's strategy this
// is one or two round trips.
func (a *API) FetchAll(ctx context.Context) ([]model.Todo, error) {
	b := a.client.NewBatch()
	if err := b.Add(model.MethodTodoQuery, model.Arguments{"accountId": a.accountID}, callQuery); err != nil {
		return nil, err
	}
	getArgs := model.Arguments{"accountId": a.accountID}.
		SetRef("ids", model.Ref(callQuery, model.MethodTodoQuery, "/ids"))
	if err := b.Add(model.MethodTodoGet, getArgs, callGet); err != nil {
		return nil, err
	}

	results, err := a.client.Do(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch todos: %w", err)
	}
	var got model.GetResponse
	if err := results.Decode(callGet, &got); err != nil {
		return nil, fmt.Errorf("failed to fetch todos: %w", err)
	}
	if got.List == nil {
		got.List = []model.Todo{}
	}
	return got.List, nil
}

// Set sends one Todo/set call. Per-item failures are reported inside the
// response, not as an error.
func (a *API) Set(ctx context.Context, args model.SetArgs) (*model.SetResponse, error) {
	args.AccountID = a.accountID
	callArgs, err := toArguments(args)
	if err != nil {
		return nil, err
	}

	b := a.client.NewBatch()
	if err := b.Add(model.MethodTodoSet, callArgs, callSet); err != nil {
		return nil, err
	}
	results, err := a.client.Do(ctx, b)
	if err != nil {
		return nil, err
	}
	var resp model.SetResponse
	if err := results.Decode(callSet, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func toArguments(v any) (model.Arguments, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}
	var args model.Arguments
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("failed to encode arguments: %w", err)
	}
	return args, nil
}

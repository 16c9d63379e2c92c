package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agenthands/jmaptodo/internal/core/model"
	"github.com/agenthands/jmaptodo/internal/repository"
)

const sessionState = "s1"

type methodHandler func(ctx context.Context, args model.Arguments) (any, error)

// methodError is a failure reported to the client as an "error" response.
type methodError struct {
	obj model.ErrorObject
}

func (e *methodError) Error() string {
	return e.obj.Type + ": " + e.obj.Description
}

func invalidArguments(format string, args ...any) error {
	return &methodError{obj: model.ErrorObject{Type: model.ErrorInvalidArguments, Description: fmt.Sprintf(format, args...)}}
}

// decodeArgs converts literal arguments into v, rejecting unknown keys.
func decodeArgs(args model.Arguments, v any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return invalidArguments("%v", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return invalidArguments("%v", err)
	}
	return nil
}

func checkAccount(accountID string) error {
	if accountID != AccountID {
		return &methodError{obj: model.ErrorObject{Type: model.ErrorAccountNotFound, Description: accountID}}
	}
	return nil
}

func (s *Server) coreEcho(ctx context.Context, args model.Arguments) (any, error) {
	return args, nil
}

func capabilities() model.Capabilities {
	return model.Capabilities{
		Core: model.CoreCapability{
			MaxSizeRequest:        MaxSizeRequest,
			MaxConcurrentUpload:   4,
			MaxConcurrentDownload: 4,
			MaxCallsInRequest:     MaxCallsInRequest,
			MaxObjectsInGet:       MaxObjectsInGet,
			MaxObjectsInSet:       MaxObjectsInSet,
			CollationAlgorithms:   []string{},
		},
		Todo: todoCapability(),
	}
}

func todoCapability() model.TodoCapability {
	return model.TodoCapability{
		MaxObjectsInQuery: MaxObjectsInGet,
		MaxObjectsInSet:   MaxObjectsInSet,
		QuerySortOptions:  []string{},
	}
}

func (s *Server) coreGetCapabilities(ctx context.Context, args model.Arguments) (any, error) {
	return map[string]any{"capabilities": capabilities()}, nil
}

func (s *Server) coreGetSession(ctx context.Context, args model.Arguments) (any, error) {
	url, _ := ctx.Value(apiURLKey{}).(string)
	return s.session(url), nil
}

func (s *Server) session(apiURL string) model.Session {
	return model.Session{
		Capabilities: capabilities(),
		Accounts: map[string]model.Account{
			AccountID: {
				Name:                "Primary Account",
				IsPersonal:          true,
				AccountCapabilities: map[string]model.TodoCapability{model.CapabilityTodo: todoCapability()},
			},
		},
		PrimaryAccounts: map[string]string{
			model.CapabilityCore: AccountID,
			model.CapabilityTodo: AccountID,
		},
		Username: "anonymous",
		APIURL:   apiURL,
		State:    sessionState,
	}
}

func (s *Server) todoQuery(ctx context.Context, args model.Arguments) (any, error) {
	var q model.QueryArgs
	if err := decodeArgs(args, &q); err != nil {
		return nil, err
	}
	if err := checkAccount(q.AccountID); err != nil {
		return nil, err
	}
	if q.Limit != nil && *q.Limit < 0 {
		return nil, invalidArguments("limit must not be negative")
	}

	todos, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := []string{}
	for _, t := range todos {
		if q.Filter.Matches(t) {
			ids = append(ids, t.ID)
		}
	}

	total := len(ids)
	pos := q.Position
	if pos < 0 {
		pos = max(total+pos, 0)
	}
	pos = min(pos, total)
	end := total
	if q.Limit != nil {
		end = min(pos+*q.Limit, total)
	}

	return model.QueryResponse{
		AccountID:  AccountID,
		QueryState: s.State(),
		Position:   pos,
		IDs:        ids[pos:end],
		Total:      total,
	}, nil
}

func (s *Server) todoGet(ctx context.Context, args model.Arguments) (any, error) {
	var g model.GetArgs
	if err := decodeArgs(args, &g); err != nil {
		return nil, err
	}
	if err := checkAccount(g.AccountID); err != nil {
		return nil, err
	}
	if len(g.IDs) > MaxObjectsInGet {
		return nil, &methodError{obj: model.ErrorObject{Type: "requestTooLarge"}}
	}

	resp := model.GetResponse{
		AccountID: AccountID,
		State:     s.State(),
		List:      []model.Todo{},
		NotFound:  []string{},
	}
	if g.IDs == nil {
		todos, err := s.repo.List(ctx)
		if err != nil {
			return nil, err
		}
		resp.List = append(resp.List, todos...)
		return resp, nil
	}

	for _, id := range g.IDs {
		t, err := s.repo.Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			resp.NotFound = append(resp.NotFound, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		resp.List = append(resp.List, *t)
	}
	return resp, nil
}

// setArgs keeps the per-item objects raw so each one is validated on its own.
type setArgs struct {
	AccountID string                     `json:"accountId"`
	IfInState string                     `json:"ifInState,omitempty"`
	Create    map[string]json.RawMessage `json:"create,omitempty"`
	Update    map[string]json.RawMessage `json:"update,omitempty"`
	Destroy   []string                   `json:"destroy,omitempty"`
}

func (s *Server) todoSet(ctx context.Context, args model.Arguments) (any, error) {
	var req setArgs
	if err := decodeArgs(args, &req); err != nil {
		return nil, err
	}
	if err := checkAccount(req.AccountID); err != nil {
		return nil, err
	}
	if len(req.Create)+len(req.Update)+len(req.Destroy) > MaxObjectsInSet {
		return nil, &methodError{obj: model.ErrorObject{Type: "requestTooLarge"}}
	}

	s.setMu.Lock()
	defer s.setMu.Unlock()

	oldState := s.State()
	if req.IfInState != "" && req.IfInState != oldState {
		return nil, &methodError{obj: model.ErrorObject{Type: model.ErrorStateMismatch}}
	}
	resp := model.NewSetResponse(AccountID, oldState)
	changed := false

	for _, cid := range sortedKeys(req.Create) {
		var create model.TodoCreate
		if err := decodeItem(req.Create[cid], &create); err != nil {
			resp.NotCreated[cid] = *err
			continue
		}
		title := strings.TrimSpace(create.Title)
		if title == "" {
			resp.NotCreated[cid] = model.SetError{Type: model.SetErrorInvalidProperties, Properties: []string{"title"}}
			continue
		}
		t, err := s.repo.Create(ctx, title)
		if err == nil && create.IsCompleted {
			done := true
			t, err = s.repo.Update(ctx, t.ID, model.TodoPatch{IsCompleted: &done})
		}
		if err != nil {
			s.log.Error().Err(err).Str("creation_id", cid).Msg("Failed to create todo")
			resp.NotCreated[cid] = model.SetError{Type: model.ErrorServerFail, Description: err.Error()}
			continue
		}
		resp.Created[cid] = *t
		changed = true
	}

	for _, id := range sortedKeys(req.Update) {
		var patch model.TodoPatch
		if err := decodeItem(req.Update[id], &patch); err != nil {
			resp.NotUpdated[id] = *err
			continue
		}
		if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
			resp.NotUpdated[id] = model.SetError{Type: model.SetErrorInvalidProperties, Properties: []string{"title"}}
			continue
		}
		t, err := s.repo.Update(ctx, id, patch)
		if errors.Is(err, repository.ErrNotFound) {
			resp.NotUpdated[id] = model.SetError{Type: model.SetErrorNotFound}
			continue
		}
		if err != nil {
			s.log.Error().Err(err).Str("id", id).Msg("Failed to update todo")
			resp.NotUpdated[id] = model.SetError{Type: model.ErrorServerFail, Description: err.Error()}
			continue
		}
		resp.Updated[id] = t
		changed = true
	}

	for _, id := range req.Destroy {
		err := s.repo.Delete(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			resp.NotDestroyed[id] = model.SetError{Type: model.SetErrorNotFound}
			continue
		}
		if err != nil {
			s.log.Error().Err(err).Str("id", id).Msg("Failed to delete todo")
			resp.NotDestroyed[id] = model.SetError{Type: model.ErrorServerFail, Description: err.Error()}
			continue
		}
		resp.Destroyed = append(resp.Destroyed, id)
		changed = true
	}

	if changed {
		s.state.Add(1)
	}
	resp.NewState = s.State()
	return resp, nil
}

// decodeItem strictly decodes one create or update object.
func decodeItem(raw json.RawMessage, v any) *model.SetError {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &model.SetError{Type: model.SetErrorInvalidProperties, Description: err.Error()}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

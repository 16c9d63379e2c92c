package jmap

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/jmaptodo/internal/core/model"
)

// Invoker performs exactly one request/response round trip.
type Invoker interface {
	Invoke(ctx context.Context, req *model.Request) (*model.ResponseEnvelope, error)
}

// Strategy decides where result references are resolved.
type Strategy interface {
	Name() string
	// Validate runs the construction-time checks for calls.
	Validate(calls []model.Invocation) error
	// Execute dispatches req and returns the responses of every call.
	Execute(ctx context.Context, inv Invoker, req *model.Request) (*Results, error)
}

var (
	// ServerSide sends "#key" references verbatim; the server resolves them
	// while executing the request. One round trip.
	ServerSide Strategy = serverSide{}
	// ClientSide dispatches calls in dependency rounds and splices referenced
	// values into dependent calls before sending them.
	ClientSide Strategy = clientSide{}
)

func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "server", "server-side":
		return ServerSide, nil
	case "client", "client-side":
		return ClientSide, nil
	default:
		return nil, fmt.Errorf("unknown reference strategy %q", name)
	}
}

type serverSide struct{}

func (serverSide) Name() string { return "server" }

func (serverSide) Validate([]model.Invocation) error { return nil }

func (serverSide) Execute(ctx context.Context, inv Invoker, req *model.Request) (*Results, error) {
	env, err := inv.Invoke(ctx, req)
	if err != nil {
		return nil, err
	}
	return demultiplex(req.MethodCalls, env)
}

type clientSide struct{}

func (clientSide) Name() string { return "client" }

func (clientSide) Validate(calls []model.Invocation) error {
	index := make(map[string]int, len(calls))
	for i, c := range calls {
		index[c.CallID] = i
	}
	for i, c := range calls {
		refs, err := c.Args.References()
		if err != nil {
			return fmt.Errorf("call %s: %w", c.CallID, err)
		}
		for _, key := range c.Args.ReferenceKeys() {
			ref := refs[key]
			j, ok := index[ref.ResultOf]
			if !ok {
				return &UnresolvedReferenceError{CallID: c.CallID, Ref: ref, Reason: "no call " + ref.ResultOf + " in batch"}
			}
			if calls[j].Name != ref.Name {
				return &UnresolvedReferenceError{
					CallID: c.CallID,
					Ref:    ref,
					Reason: fmt.Sprintf("%s is a %s call", ref.ResultOf, calls[j].Name),
				}
			}
			if j >= i {
				return &ForwardReferenceError{CallID: c.CallID, ResultOf: ref.ResultOf}
			}
		}
	}
	return nil
}

func (clientSide) Execute(ctx context.Context, inv Invoker, req *model.Request) (*Results, error) {
	all := NewResults()
	for _, round := range rounds(req.MethodCalls) {
		resolved := make([]model.Invocation, len(round))
		for i, call := range round {
			r, err := Resolve(call, all)
			if err != nil {
				return nil, err
			}
			resolved[i] = r
		}

		env, err := inv.Invoke(ctx, &model.Request{Using: req.Using, MethodCalls: resolved})
		if err != nil {
			return nil, err
		}
		got, err := demultiplex(resolved, env)
		if err != nil {
			return nil, err
		}
		if err := all.merge(got); err != nil {
			return nil, err
		}
	}
	return all, nil
}

// rounds groups calls by reference depth: round 0 has no references, round n
// only references calls from earlier rounds. Calls keep their relative order.
// Validate must have accepted calls.
func rounds(calls []model.Invocation) [][]model.Invocation {
	index := make(map[string]int, len(calls))
	depth := make([]int, len(calls))
	maxDepth := 0
	for i, c := range calls {
		index[c.CallID] = i
		refs, _ := c.Args.References()
		for _, ref := range refs {
			if j, ok := index[ref.ResultOf]; ok && depth[j]+1 > depth[i] {
				depth[i] = depth[j] + 1
			}
		}
		if depth[i] > maxDepth {
			maxDepth = depth[i]
		}
	}

	out := make([][]model.Invocation, maxDepth+1)
	for i, c := range calls {
		out[depth[i]] = append(out[depth[i]], c)
	}
	return out
}

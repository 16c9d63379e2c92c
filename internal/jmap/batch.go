package jmap

import (
	"errors"
	"fmt"

	"github.com/agenthands/jmaptodo/internal/core/model"
)

// Batch collects method calls for a single request envelope. Call order is
// execution order.
type Batch struct {
	strategy Strategy
	using    []string
	calls    []model.Invocation
	index    map[string]int
}

func NewBatch(strategy Strategy, using ...string) *Batch {
	if strategy == nil {
		strategy = ServerSide
	}
	return &Batch{
		strategy: strategy,
		using:    append([]string(nil), using...),
		index:    make(map[string]int),
	}
}

func (b *Batch) Strategy() Strategy { return b.strategy }

// Add appends a call. args may hold ResultReference values under "#key".
func (b *Batch) Add(name string, args model.Arguments, callID string) error {
	if callID == "" {
		return errors.New("call id must not be empty")
	}
	if name == "" {
		return fmt.Errorf("call %s: method name must not be empty", callID)
	}
	if _, dup := b.index[callID]; dup {
		return &DuplicateCallIDError{CallID: callID}
	}
	refs, err := args.References()
	if err != nil {
		return fmt.Errorf("call %s: %w", callID, err)
	}
	for _, ref := range refs {
		if ref.ResultOf == callID {
			return &CyclicReferenceError{Cycle: []string{callID, callID}}
		}
	}

	if args == nil {
		args = model.Arguments{}
	}
	b.index[callID] = len(b.calls)
	b.calls = append(b.calls, model.Invocation{Name: name, Args: args.Clone(), CallID: callID})
	return nil
}

// Len is the number of calls added so far.
func (b *Batch) Len() int { return len(b.calls) }

// Build validates the references and returns the request envelope. The
// envelope is a copy; later Adds do not change it.
func (b *Batch) Build() (*model.Request, error) {
	if len(b.calls) == 0 {
		return nil, errors.New("batch has no method calls")
	}
	if err := checkCycles(b.calls); err != nil {
		return nil, err
	}
	if err := b.strategy.Validate(b.calls); err != nil {
		return nil, err
	}

	calls := make([]model.Invocation, len(b.calls))
	for i, c := range b.calls {
		calls[i] = model.Invocation{Name: c.Name, Args: c.Args.Clone(), CallID: c.CallID}
	}
	return &model.Request{
		Using:       append([]string(nil), b.using...),
		MethodCalls: calls,
	}, nil
}

// Demultiplex indexes env by call id against the calls of this batch.
func (b *Batch) Demultiplex(env *model.ResponseEnvelope) (*Results, error) {
	return demultiplex(b.calls, env)
}

func demultiplex(calls []model.Invocation, env *model.ResponseEnvelope) (*Results, error) {
	results := NewResults()
	known := make(map[string]bool, len(calls))
	for _, c := range calls {
		results.expect(c)
		known[c.CallID] = true
	}
	if env == nil {
		return results, nil
	}
	for _, resp := range env.MethodResponses {
		if !known[resp.CallID] {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("response for unknown call id %q", resp.CallID)}
		}
		if err := results.Add(resp); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// checkCycles walks reference edges between calls of the batch. References
// to ids outside the batch are left to the strategy.
func checkCycles(calls []model.Invocation) error {
	index := make(map[string]int, len(calls))
	for i, c := range calls {
		index[c.CallID] = i
	}
	edges := make([][]int, len(calls))
	for i, c := range calls {
		refs, err := c.Args.References()
		if err != nil {
			return fmt.Errorf("call %s: %w", c.CallID, err)
		}
		for _, key := range c.Args.ReferenceKeys() {
			if j, ok := index[refs[key].ResultOf]; ok {
				edges[i] = append(edges[i], j)
			}
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	color := make([]int, len(calls))
	var stack []int
	var visit func(int) []int
	visit = func(n int) []int {
		color[n] = visiting
		stack = append(stack, n)
		for _, m := range edges[n] {
			switch color[m] {
			case visiting:
				for k, s := range stack {
					if s == m {
						return append(append([]int(nil), stack[k:]...), m)
					}
				}
			case unvisited:
				if cycle := visit(m); cycle != nil {
					return cycle
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[n] = done
		return nil
	}

	for i := range calls {
		if color[i] != unvisited {
			continue
		}
		if cycle := visit(i); cycle != nil {
			ids := make([]string, len(cycle))
			for k, n := range cycle {
				ids[k] = calls[n].CallID
			}
			return &CyclicReferenceError{Cycle: ids}
		}
	}
	return nil
}

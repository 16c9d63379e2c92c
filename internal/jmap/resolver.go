package jmap

import (
	"fmt"

	"github.com/agenthands/jmaptodo/internal/core/model"
)

// Resolve returns a copy of call whose reference arguments ("#key") are
// replaced by literal "key" values extracted from results. call itself is not
// modified.
func Resolve(call model.Invocation, results *Results) (model.Invocation, error) {
	refs, err := call.Args.References()
	if err != nil {
		return call, fmt.Errorf("call %s: %w", call.CallID, err)
	}
	if len(refs) == 0 {
		return call, nil
	}

	args := call.Args.Clone()
	for _, key := range call.Args.ReferenceKeys() {
		ref := refs[key]
		value, err := resolveReference(call.CallID, ref, results)
		if err != nil {
			return call, err
		}
		delete(args, model.RefPrefix+key)
		args[key] = value
	}

	resolved := call
	resolved.Args = args
	return resolved, nil
}

func resolveReference(callID string, ref model.ResultReference, results *Results) (any, error) {
	resp, state := results.Get(ref.ResultOf)
	switch state {
	case NoResponse:
		return nil, &UnresolvedReferenceError{CallID: callID, Ref: ref, Reason: "no response for " + ref.ResultOf}
	case Failed:
		return nil, newUpstreamMethodError(ref.Name, resp)
	}
	if resp.Name != ref.Name {
		return nil, &UnresolvedReferenceError{
			CallID: callID,
			Ref:    ref,
			Reason: fmt.Sprintf("%s was answered by %s", ref.ResultOf, resp.Name),
		}
	}

	raw, err := Evaluate(resp.Args, ref.Path)
	if err != nil {
		return nil, fmt.Errorf("call %s: resolving %s: %w", callID, ref, err)
	}
	value, err := decodeValue(raw)
	if err != nil {
		return nil, &PathResolutionError{Path: ref.Path, Reason: err.Error()}
	}
	return value, nil
}

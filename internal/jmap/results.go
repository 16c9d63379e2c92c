package jmap

import (
	"encoding/json"
	"fmt"

	"github.com/agenthands/jmaptodo/internal/core/model"
)

// ResultState describes what the server said about one dispatched call.
type ResultState int

const (
	// NoResponse means the call was dispatched but not answered.
	NoResponse ResultState = iota
	Answered
	Failed
)

func (s ResultState) String() string {
	switch s {
	case Answered:
		return "answered"
	case Failed:
		return "failed"
	default:
		return "no response"
	}
}

// Results indexes method responses by call id. It is not safe for concurrent
// mutation.
type Results struct {
	dispatched []string
	methods    map[string]string
	byID       map[string]model.Response
}

func NewResults() *Results {
	return &Results{
		methods: make(map[string]string),
		byID:    make(map[string]model.Response),
	}
}

// expect records a dispatched call so a missing answer can be reported.
func (r *Results) expect(call model.Invocation) {
	if _, seen := r.methods[call.CallID]; seen {
		return
	}
	r.dispatched = append(r.dispatched, call.CallID)
	r.methods[call.CallID] = call.Name
}

// Add indexes resp. A second response for the same call id is a protocol
// violation.
func (r *Results) Add(resp model.Response) error {
	if _, dup := r.byID[resp.CallID]; dup {
		return &DuplicateResponseError{CallID: resp.CallID}
	}
	r.byID[resp.CallID] = resp
	return nil
}

// Get returns the response for callID and its state.
func (r *Results) Get(callID string) (model.Response, ResultState) {
	resp, ok := r.byID[callID]
	if !ok {
		return model.Response{}, NoResponse
	}
	if resp.IsError() {
		return resp, Failed
	}
	return resp, Answered
}

// Missing lists dispatched call ids without a response, in dispatch order.
func (r *Results) Missing() []string {
	var out []string
	for _, id := range r.dispatched {
		if _, ok := r.byID[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Len is the number of responses held.
func (r *Results) Len() int { return len(r.byID) }

// Decode unmarshals the result of callID into v. A failed call yields an
// *UpstreamMethodError and an unanswered one a *NoResponseError.
func (r *Results) Decode(callID string, v any) error {
	resp, state := r.Get(callID)
	switch state {
	case NoResponse:
		return &NoResponseError{CallID: callID}
	case Failed:
		return newUpstreamMethodError(r.methods[callID], resp)
	}
	if err := json.Unmarshal(resp.Args, v); err != nil {
		return &MalformedResponseError{Reason: fmt.Sprintf("result of %s (%s)", callID, resp.Name), Err: err}
	}
	return nil
}

func (r *Results) merge(other *Results) error {
	for _, id := range other.dispatched {
		r.expect(model.Invocation{CallID: id, Name: other.methods[id]})
	}
	for _, resp := range other.byID {
		if err := r.Add(resp); err != nil {
			return err
		}
	}
	return nil
}

package jmap

import (
	"fmt"
	"strings"

	"github.com/agenthands/jmaptodo/internal/core/model"
)

// TransportError reports a failure to send the request or read the reply.
// Nothing is retried automatically.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error talking to %s: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// HTTPStatusError reports a non-2xx reply.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP error: status %d: %s", e.StatusCode, e.Body)
}

// MalformedResponseError reports a reply that is not a well-formed response
// envelope.
type MalformedResponseError struct {
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed response: %s: %v", e.Reason, e.Err)
	}
	return "malformed response: " + e.Reason
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// UpstreamMethodError reports that the server answered a single call with an
// error object. Sibling calls are unaffected.
type UpstreamMethodError struct {
	CallID      string
	Method      string
	Type        string
	Description string
}

func newUpstreamMethodError(method string, resp model.Response) *UpstreamMethodError {
	obj, _ := resp.Failure()
	return &UpstreamMethodError{
		CallID:      resp.CallID,
		Method:      method,
		Type:        obj.Type,
		Description: obj.Description,
	}
}

func (e *UpstreamMethodError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "call %s", e.CallID)
	if e.Method != "" {
		fmt.Fprintf(&b, " (%s)", e.Method)
	}
	fmt.Fprintf(&b, " failed: %s", e.Type)
	if e.Description != "" {
		fmt.Fprintf(&b, ": %s", e.Description)
	}
	return b.String()
}

// UnresolvedReferenceError reports a reference to a call that has no usable
// response, or whose method name differs from the one declared.
type UnresolvedReferenceError struct {
	CallID string
	Ref    model.ResultReference
	Reason string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("call %s: unresolved reference %s: %s", e.CallID, e.Ref, e.Reason)
}

// PathResolutionError reports a path that does not lead to a value in the
// referenced result.
type PathResolutionError struct {
	Path   string
	Reason string
}

func (e *PathResolutionError) Error() string {
	return fmt.Sprintf("path %q: %s", e.Path, e.Reason)
}

// CyclicReferenceError reports calls that reference each other, directly or
// through other calls.
type CyclicReferenceError struct {
	Cycle []string
}

func (e *CyclicReferenceError) Error() string {
	return "cyclic result reference: " + strings.Join(e.Cycle, " -> ")
}

// ForwardReferenceError reports a reference to a call placed later in the
// batch.
type ForwardReferenceError struct {
	CallID   string
	ResultOf string
}

func (e *ForwardReferenceError) Error() string {
	return fmt.Sprintf("call %s references later call %s", e.CallID, e.ResultOf)
}

// DuplicateCallIDError reports two calls sharing a call id in one batch.
type DuplicateCallIDError struct {
	CallID string
}

func (e *DuplicateCallIDError) Error() string {
	return fmt.Sprintf("duplicate call id %q", e.CallID)
}

// DuplicateResponseError reports two responses sharing a call id.
type DuplicateResponseError struct {
	CallID string
}

func (e *DuplicateResponseError) Error() string {
	return fmt.Sprintf("duplicate response for call id %q", e.CallID)
}

// NoResponseError reports a dispatched call the server did not answer.
type NoResponseError struct {
	CallID string
}

func (e *NoResponseError) Error() string {
	return fmt.Sprintf("no response for call id %q", e.CallID)
}

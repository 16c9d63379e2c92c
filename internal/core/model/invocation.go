package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// RefPrefix marks an argument key whose value is a ResultReference.
const RefPrefix = "#"

// MethodError is the method name of a response reporting a failed invocation.
const MethodError = "error"

// Method-level error types.
const (
	ErrorUnknownMethod          = "unknownMethod"
	ErrorInvalidArguments       = "invalidArguments"
	ErrorInvalidResultReference = "invalidResultReference"
	ErrorServerFail             = "serverFail"
	ErrorAccountNotFound        = "accountNotFound"
	ErrorStateMismatch          = "stateMismatch"
)

// ResultReference points at a value inside the result of an earlier call in
// the same request.
type ResultReference struct {
	ResultOf string `json:"resultOf"`
	Name     string `json:"name"`
	Path     string `json:"path"`
}

func Ref(callID, name, path string) ResultReference {
	return ResultReference{ResultOf: callID, Name: name, Path: path}
}

func (r ResultReference) String() string {
	return fmt.Sprintf("%s(%s)%s", r.Name, r.ResultOf, r.Path)
}

// Arguments is the argument object of a method call. Keys starting with
// RefPrefix hold a ResultReference instead of a literal value.
type Arguments map[string]any

// SetRef stores ref under "#"+key.
func (a Arguments) SetRef(key string, ref ResultReference) Arguments {
	a[RefPrefix+key] = ref
	return a
}

// References returns the reference-valued arguments keyed by their plain
// (unprefixed) name.
func (a Arguments) References() (map[string]ResultReference, error) {
	var refs map[string]ResultReference
	for k, v := range a {
		if !strings.HasPrefix(k, RefPrefix) {
			continue
		}
		ref, err := asReference(v)
		if err != nil {
			return nil, fmt.Errorf("argument %q: %w", k, err)
		}
		plain := strings.TrimPrefix(k, RefPrefix)
		if plain == "" {
			return nil, fmt.Errorf("argument %q: empty reference key", k)
		}
		if _, clash := a[plain]; clash {
			return nil, fmt.Errorf("argument %q given both as literal and reference", plain)
		}
		if refs == nil {
			refs = make(map[string]ResultReference)
		}
		refs[plain] = ref
	}
	return refs, nil
}

// ReferenceKeys returns the plain names of reference arguments in sorted order.
func (a Arguments) ReferenceKeys() []string {
	var keys []string
	for k := range a {
		if strings.HasPrefix(k, RefPrefix) {
			keys = append(keys, strings.TrimPrefix(k, RefPrefix))
		}
	}
	sort.Strings(keys)
	return keys
}

// Clone makes a shallow copy; nested values are shared.
func (a Arguments) Clone() Arguments {
	out := make(Arguments, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

func (a *Arguments) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("arguments must be an object")
	}
	out := make(Arguments, len(raw))
	for k, v := range raw {
		if strings.HasPrefix(k, RefPrefix) {
			var ref ResultReference
			if err := json.Unmarshal(v, &ref); err != nil {
				return fmt.Errorf("argument %q: invalid result reference: %w", k, err)
			}
			out[k] = ref
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(v))
		dec.UseNumber()
		var val any
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("argument %q: %w", k, err)
		}
		out[k] = val
	}
	*a = out
	return nil
}

func asReference(v any) (ResultReference, error) {
	switch ref := v.(type) {
	case ResultReference:
		return ref, nil
	case *ResultReference:
		if ref == nil {
			return ResultReference{}, fmt.Errorf("nil result reference")
		}
		return *ref, nil
	default:
		return ResultReference{}, fmt.Errorf("expected result reference, got %T", v)
	}
}

// Invocation is a single method call: [name, arguments, callId] on the wire.
type Invocation struct {
	Name   string
	Args   Arguments
	CallID string
}

func (i Invocation) MarshalJSON() ([]byte, error) {
	args := i.Args
	if args == nil {
		args = Arguments{}
	}
	return json.Marshal([3]any{i.Name, args, i.CallID})
}

func (i *Invocation) UnmarshalJSON(data []byte) error {
	parts, err := splitTriple(data)
	if err != nil {
		return err
	}
	var inv Invocation
	if err := json.Unmarshal(parts[0], &inv.Name); err != nil {
		return fmt.Errorf("method name: %w", err)
	}
	if err := inv.Args.UnmarshalJSON(parts[1]); err != nil {
		return err
	}
	if err := json.Unmarshal(parts[2], &inv.CallID); err != nil {
		return fmt.Errorf("call id: %w", err)
	}
	*i = inv
	return nil
}

// ErrorObject is the argument object of an "error" response.
type ErrorObject struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Properties  []string `json:"properties,omitempty"`
}

// Response is a single method response: [name, result, callId] on the wire.
// Args stays raw so references can be evaluated against the exact bytes the
// server sent.
type Response struct {
	Name   string
	Args   json.RawMessage
	CallID string
}

func NewResponse(name string, result any, callID string) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal %s result: %w", name, err)
	}
	return Response{Name: name, Args: raw, CallID: callID}, nil
}

func NewErrorResponse(callID string, obj ErrorObject) Response {
	raw, _ := json.Marshal(obj)
	return Response{Name: MethodError, Args: raw, CallID: callID}
}

// IsError reports whether the call failed.
func (r Response) IsError() bool {
	return r.Name == MethodError
}

// Failure decodes the error object of a failed call.
func (r Response) Failure() (ErrorObject, bool) {
	if !r.IsError() {
		return ErrorObject{}, false
	}
	var obj ErrorObject
	if err := json.Unmarshal(r.Args, &obj); err != nil || obj.Type == "" {
		obj.Type = ErrorServerFail
	}
	return obj, true
}

func (r Response) MarshalJSON() ([]byte, error) {
	args := r.Args
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	return json.Marshal([3]any{r.Name, args, r.CallID})
}

func (r *Response) UnmarshalJSON(data []byte) error {
	parts, err := splitTriple(data)
	if err != nil {
		return err
	}
	var resp Response
	if err := json.Unmarshal(parts[0], &resp.Name); err != nil {
		return fmt.Errorf("method name: %w", err)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(parts[1]), []byte("{")) {
		return fmt.Errorf("result of %q is not an object", resp.Name)
	}
	resp.Args = append(json.RawMessage(nil), parts[1]...)
	if err := json.Unmarshal(parts[2], &resp.CallID); err != nil {
		return fmt.Errorf("call id: %w", err)
	}
	*r = resp
	return nil
}

func splitTriple(data []byte) ([]json.RawMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return nil, fmt.Errorf("expected [name, arguments, callId]: %w", err)
	}
	if len(parts) != 3 {
		return nil, fmt.Errorf("expected 3 elements, got %d", len(parts))
	}
	return parts, nil
}

// Request is the request envelope.
type Request struct {
	Using       []string     `json:"using,omitempty"`
	MethodCalls []Invocation `json:"methodCalls"`
}

// ResponseEnvelope is the response envelope. Response order is not
// significant; correlate by CallID.
type ResponseEnvelope struct {
	MethodResponses []Response `json:"methodResponses"`
	SessionState    string     `json:"sessionState,omitempty"`
}

// ProblemDetails is the request-level error document (RFC 7807).
type ProblemDetails struct {
	Type   string `json:"type"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
	Limit  string `json:"limit,omitempty"`
}

// Request-level problem types.
const (
	ProblemNotJSON    = "urn:ietf:params:jmap:error:notJSON"
	ProblemNotRequest = "urn:ietf:params:jmap:error:notRequest"
	ProblemLimit      = "urn:ietf:params:jmap:error:limit"
)

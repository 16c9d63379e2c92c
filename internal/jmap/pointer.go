package jmap

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Evaluate walks path through the JSON document doc and returns the raw value
// it points at. Path tokens are separated by "/" with "~1" and "~0" escaping
// "/" and "~". A "*" token applies the rest of the path to every element of
// an array; array results are flattened into the output array.
func Evaluate(doc json.RawMessage, path string) (json.RawMessage, error) {
	if !gjson.ValidBytes(doc) {
		return nil, &PathResolutionError{Path: path, Reason: "result is not valid JSON"}
	}
	if path == "" {
		return doc, nil
	}
	if !strings.HasPrefix(path, "/") {
		return nil, &PathResolutionError{Path: path, Reason: "path must start with \"/\""}
	}
	tokens := strings.Split(path[1:], "/")
	for i, tok := range tokens {
		tokens[i] = strings.NewReplacer("~1", "/", "~0", "~").Replace(tok)
	}
	res, err := walk(gjson.ParseBytes(doc), tokens, path)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(res), nil
}

func walk(cur gjson.Result, tokens []string, path string) (string, error) {
	for i, tok := range tokens {
		if tok == "*" {
			if !cur.IsArray() {
				return "", &PathResolutionError{Path: path, Reason: "\"*\" applied to a non-array value"}
			}
			var items []string
			var failed error
			cur.ForEach(func(_, elem gjson.Result) bool {
				v, err := walk(elem, tokens[i+1:], path)
				if err != nil {
					failed = err
					return false
				}
				if sub := gjson.Parse(v); sub.IsArray() {
					sub.ForEach(func(_, inner gjson.Result) bool {
						items = append(items, inner.Raw)
						return true
					})
				} else {
					items = append(items, v)
				}
				return true
			})
			if failed != nil {
				return "", failed
			}
			return "[" + strings.Join(items, ",") + "]", nil
		}
		if !cur.IsObject() && !cur.IsArray() {
			return "", &PathResolutionError{Path: path, Reason: "cannot descend into " + cur.Type.String() + " at " + strings.Join(tokens[:i+1], "/")}
		}
		if cur.IsArray() && !isIndex(tok) {
			return "", &PathResolutionError{Path: path, Reason: "non-numeric index " + tok + " into array"}
		}
		next := cur.Get(gjson.Escape(tok))
		if !next.Exists() {
			return "", &PathResolutionError{Path: path, Reason: "no value at " + strings.Join(tokens[:i+1], "/")}
		}
		cur = next
	}
	return cur.Raw, nil
}

func isIndex(tok string) bool {
	if tok == "" || (len(tok) > 1 && tok[0] == '0') {
		return false
	}
	for _, c := range tok {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// decodeValue turns a raw JSON value into the generic Go representation used
// for literal arguments. Numbers stay json.Number so they are re-encoded
// exactly as the server sent them.
func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

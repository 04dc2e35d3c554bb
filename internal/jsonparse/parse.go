// Package jsonparse implements an allocation-bounded JSON object parser
// for untrusted JWT header/payload segments.
//
// No library in the corpus offers depth/array/string-size bounded JSON
// decoding (encoding/json, goccy/go-json, and json-iterator all build an
// unbounded tree from untrusted input); this is the one component in
// jwtguard built directly on the standard library's streaming
// json.Decoder rather than a pack dependency. Everything above this layer
// (the rest of the decode pipeline) still follows the teacher's
// conventions.
package jsonparse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Limits bounds the shape of an accepted JSON document.
type Limits struct {
	MaxStringLen int // per JSON string
	MaxArrayLen  int // per JSON array
	MaxDepth     int // nesting depth
}

// ErrOversizeString, ErrOversizeArray and ErrDepthExceeded classify which
// limit was hit, so the caller can raise the matching OVERSIZE_* kind.
var (
	ErrOversizeString = fmt.Errorf("jsonparse: string exceeds limit")
	ErrOversizeArray  = fmt.Errorf("jsonparse: array exceeds limit")
	ErrDepthExceeded  = fmt.Errorf("jsonparse: depth exceeds limit")
)

// ParseObject decodes a JSON object from data under the given Limits,
// returning it as a map of Go values (string, float64, bool, nil,
// []interface{}, map[string]interface{}). Arrays and nesting are checked
// before the offending element is parsed, so they never grow past the
// limits; a string is read as one token and rejected as soon as that token
// is seen to exceed MaxStringLen.
func ParseObject(data []byte, lim Limits) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return nil, fmt.Errorf("jsonparse: top-level value is not an object")
	}

	obj, err := parseObjectBody(dec, lim, 1)
	if err != nil {
		return nil, err
	}

	// Reject trailing garbage after the closing brace.
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("jsonparse: trailing data after object")
	}
	return obj, nil
}

func parseObjectBody(dec *json.Decoder, lim Limits, depth int) (map[string]interface{}, error) {
	if lim.MaxDepth > 0 && depth > lim.MaxDepth {
		return nil, ErrDepthExceeded
	}
	out := make(map[string]interface{})
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("jsonparse: object key is not a string")
		}
		if lim.MaxStringLen > 0 && len(key) > lim.MaxStringLen {
			return nil, ErrOversizeString
		}
		val, err := parseValue(dec, lim, depth)
		if err != nil {
			return nil, err
		}
		out[key] = val
	}
	// consume closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseArrayBody(dec *json.Decoder, lim Limits, depth int) ([]interface{}, error) {
	if lim.MaxDepth > 0 && depth > lim.MaxDepth {
		return nil, ErrDepthExceeded
	}
	out := make([]interface{}, 0)
	for dec.More() {
		if lim.MaxArrayLen > 0 && len(out) >= lim.MaxArrayLen {
			return nil, ErrOversizeArray
		}
		val, err := parseValue(dec, lim, depth)
		if err != nil {
			return nil, err
		}
		out = append(out, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseValue(dec *json.Decoder, lim Limits, depth int) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return parseObjectBody(dec, lim, depth+1)
		case '[':
			return parseArrayBody(dec, lim, depth+1)
		default:
			return nil, fmt.Errorf("jsonparse: unexpected delimiter %q", v)
		}
	case string:
		if lim.MaxStringLen > 0 && len(v) > lim.MaxStringLen {
			return nil, ErrOversizeString
		}
		return v, nil
	case float64:
		return v, nil
	case bool:
		return v, nil
	case nil:
		return nil, nil
	default:
		return v, nil
	}
}

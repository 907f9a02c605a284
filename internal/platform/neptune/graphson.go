package neptune

import (
	"encoding/json"
	"fmt"
)

// Response is a decoded Gremlin HTTP response. Neptune wraps result data in
// GraphSON typed envelopes ({"@type": ..., "@value": ...}); accessors here
// unwrap them tolerantly since the nesting depth varies by query shape.
type Response struct {
	RequestID string
	Data      []any
}

type rawResponse struct {
	RequestID string `json:"requestId"`
	Status    struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"status"`
	Result struct {
		Data any `json:"data"`
	} `json:"result"`
}

func decodeResponse(raw []byte) (*Response, error) {
	var parsed rawResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode gremlin response: %w", err)
	}
	return &Response{
		RequestID: parsed.RequestID,
		Data:      asList(parsed.Result.Data),
	}, nil
}

// FirstInt extracts the leading numeric result, the shape count queries
// return.
func (r *Response) FirstInt() (int64, bool) {
	if r == nil || len(r.Data) == 0 {
		return 0, false
	}
	return asInt(r.Data[0])
}

// Rows flattens each result element into a string map, the shape project()
// queries return.
func (r *Response) Rows() []map[string]string {
	if r == nil {
		return nil
	}
	rows := make([]map[string]string, 0, len(r.Data))
	for _, el := range r.Data {
		if m := asStringMap(el); len(m) > 0 {
			rows = append(rows, m)
		}
	}
	return rows
}

func asList(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case map[string]any:
		if inner, ok := t["@value"]; ok {
			return asList(inner)
		}
		return []any{t}
	default:
		return []any{t}
	}
}

func asInt(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case map[string]any:
		if inner, ok := t["@value"]; ok {
			return asInt(inner)
		}
	}
	return 0, false
}

func asStringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	if inner, ok := m["@value"]; ok {
		// GraphSON g:Map: a flat [k1, v1, k2, v2, ...] list.
		pairs := asList(inner)
		out := make(map[string]string, len(pairs)/2)
		for i := 0; i+1 < len(pairs); i += 2 {
			key, ok := asString(pairs[i])
			if !ok {
				continue
			}
			if val, ok := asString(pairs[i+1]); ok {
				out[key] = val
			}
		}
		return out
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s, ok := asString(val); ok {
			out[k] = s
		}
	}
	return out
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case map[string]any:
		if inner, ok := t["@value"]; ok {
			return asString(inner)
		}
	}
	return "", false
}

package marketplace

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Envelope is the loosely shaped JSON body every backend endpoint returns:
// a success flag next to payload fields whose names vary per endpoint.
type Envelope struct {
	Success bool
	Message string
	Fields  map[string]json.RawMessage
}

// Counts holds precomputed dashboard numbers reported by a summary endpoint
type Counts struct {
	Completed int
	Accepted  int
	Rejected  int
	Applied   int
}

// DecodeEnvelope parses a response body into an Envelope
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("error decoding response envelope: %w", err)
	}

	env := &Envelope{Fields: fields}

	if raw, ok := fields["success"]; ok {
		if err := json.Unmarshal(raw, &env.Success); err != nil {
			var s string
			if json.Unmarshal(raw, &s) == nil {
				env.Success, _ = strconv.ParseBool(s)
			}
		}
	}
	if raw, ok := fields["message"]; ok {
		_ = json.Unmarshal(raw, &env.Message)
	}

	return env, nil
}

// Array returns the first JSON array found under one of keys, looking at the
// top level first and then inside a "data" object. A "data" field that is
// itself an array matches any key.
func (e *Envelope) Array(keys ...string) (json.RawMessage, string, bool) {
	return e.array(keys, true)
}

// StrictArray is Array without the bare "data" array fallback. Use it for
// secondary listings that must never alias the primary payload.
func (e *Envelope) StrictArray(keys ...string) (json.RawMessage, string, bool) {
	return e.array(keys, false)
}

func (e *Envelope) array(keys []string, dataFallback bool) (json.RawMessage, string, bool) {
	if raw, key, ok := findArray(e.Fields, keys); ok {
		return raw, key, true
	}

	data, ok := e.Fields["data"]
	if !ok {
		return nil, "", false
	}
	if isArray(data) {
		if dataFallback {
			return data, "data", true
		}
		return nil, "", false
	}

	var nested map[string]json.RawMessage
	if err := json.Unmarshal(data, &nested); err != nil {
		return nil, "", false
	}
	return findArray(nested, keys)
}

var countKeys = map[string][]string{
	"completed": {"completedCount", "completed_count", "totalCompleted"},
	"accepted":  {"acceptedCount", "accepted_count", "totalAccepted"},
	"rejected":  {"rejectedCount", "rejected_count", "totalRejected"},
	"applied":   {"appliedCount", "applied_count", "totalApplied"},
}

// Counts extracts precomputed counts from the top level, "data" or "stats".
// The second return is false when no count field is present at all.
func (e *Envelope) Counts() (Counts, bool) {
	candidates := []map[string]json.RawMessage{e.Fields}
	for _, key := range []string{"data", "stats"} {
		raw, ok := e.Fields[key]
		if !ok {
			continue
		}
		var nested map[string]json.RawMessage
		if json.Unmarshal(raw, &nested) == nil {
			candidates = append(candidates, nested)
		}
	}

	for _, fields := range candidates {
		var c Counts
		found := false
		for name, keys := range countKeys {
			n, ok := lookupCount(fields, keys)
			if !ok {
				continue
			}
			found = true
			switch name {
			case "completed":
				c.Completed = n
			case "accepted":
				c.Accepted = n
			case "rejected":
				c.Rejected = n
			case "applied":
				c.Applied = n
			}
		}
		if found {
			return c, true
		}
	}

	return Counts{}, false
}

func findArray(fields map[string]json.RawMessage, keys []string) (json.RawMessage, string, bool) {
	for _, key := range keys {
		raw, ok := fields[key]
		if ok && isArray(raw) {
			return raw, key, true
		}
	}
	return nil, "", false
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func lookupCount(fields map[string]json.RawMessage, keys []string) (int, bool) {
	for _, key := range keys {
		raw, ok := fields[key]
		if !ok {
			continue
		}

		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil {
			if v, err := n.Int64(); err == nil && v >= 0 {
				return int(v), true
			}
		}

		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if v, err := strconv.Atoi(strings.TrimSpace(s)); err == nil && v >= 0 {
				return v, true
			}
		}
	}
	return 0, false
}

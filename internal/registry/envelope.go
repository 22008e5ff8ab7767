package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// envelope is the response wrapper both registry generations share.
type envelope struct {
	Success   bool            `json:"Success"`
	Message   string          `json:"Message"`
	ErrorCode int             `json:"ErrorCode"`
	Data      json.RawMessage `json:"Data"`
}

// records splits Data into individual records. Data may be null, one object,
// or an array.
func (e envelope) records() ([]json.RawMessage, error) {
	data := bytes.TrimSpace(e.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	switch data[0] {
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode data array: %w", err)
		}
		return list, nil
	case '{':
		return []json.RawMessage{data}, nil
	default:
		return nil, fmt.Errorf("unexpected data payload %q", truncate(string(data), 64))
	}
}

// flexString decodes a JSON string, number, bool or null into trimmed text.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flexString(strconv.FormatBool(v))
		return nil
	}
	return fmt.Errorf("cannot decode %s as text", b)
}

func (f flexString) String() string {
	return string(f)
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

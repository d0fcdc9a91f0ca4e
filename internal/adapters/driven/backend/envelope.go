package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// envelope is the backend's standard response wrapper.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}

// unwrap returns the data payload of a 2xx body. A body without an
// envelope is returned whole. `success: false` becomes an *APIError.
func unwrap(body []byte, status int, method, path string) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if env.Success != nil && !*env.Success {
		return nil, &APIError{StatusCode: status, Message: env.message(), Method: method, Path: path}
	}
	if env.Success != nil && len(env.Data) > 0 {
		return env.Data, nil
	}
	return trimmed, nil
}

// message picks the most specific human-readable text in the envelope.
func (e *envelope) message() string {
	if msg := rawMessage(e.Error); msg != "" {
		return msg
	}
	if msg := rawMessage(e.Detail); msg != "" {
		return msg
	}
	return e.Message
}

// rawMessage extracts text from a field that is either a string or an
// object with a message.
func rawMessage(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, m := range []string{obj.Message, obj.Detail, obj.Msg} {
			if m != "" {
				return m
			}
		}
	}
	return strings.TrimSpace(string(raw))
}

// errorMessage extracts the server message from a non-2xx body.
func errorMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	if trimmed[0] != '{' {
		if len(trimmed) > 200 {
			trimmed = trimmed[:200]
		}
		return string(trimmed)
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return ""
	}
	return env.message()
}

// decodeInto decodes data into out. When data is an object holding one of
// keys, that member is decoded instead, so both `[...]` and
// `{"documents": [...]}` fill a slice.
func decodeInto(data json.RawMessage, out any, keys ...string) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' && len(keys) > 0 {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err == nil {
			for _, k := range keys {
				if v, ok := fields[k]; ok && len(v) > 0 && string(v) != "null" {
					return json.Unmarshal(v, out)
				}
			}
		}
	}
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	return json.Unmarshal(trimmed, out)
}

// firstString returns the first non-empty string member among keys.
func firstString(data json.RawMessage, keys ...string) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return ""
	}
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			if err := json.Unmarshal(v, &s); err == nil && s != "" {
				return s
			}
		}
	}
	return ""
}

package commerce

import (
	"bytes"
	"encoding/json"
)

// Result is a tool outcome. On the wire a success is the bare value and a
// failure is {"error": "<message>"}.
type Result[T any] struct {
	Value T
	Err   string
	OK    bool
}

func Success[T any](value T) Result[T] {
	return Result[T]{Value: value, OK: true}
}

func Failure[T any](message string) Result[T] {
	return Result[T]{Err: message}
}

func (r Result[T]) Failed() bool {
	return !r.OK
}

func (r Result[T]) MarshalJSON() ([]byte, error) {
	if !r.OK {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{Error: r.Err})
	}
	return json.Marshal(r.Value)
}

func (r *Result[T]) UnmarshalJSON(data []byte) error {
	if message, failed := failureMessage(data); failed {
		*r = Failure[T](message)
		return nil
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	*r = Success(value)
	return nil
}

// DecodeResult parses a raw tool output.
func DecodeResult[T any](raw json.RawMessage) (Result[T], error) {
	var result Result[T]
	err := json.Unmarshal(raw, &result)
	return result, err
}

// failureMessage reports whether data is an object carrying an "error" key.
// Non-string error values are returned as their JSON text.
func failureMessage(data []byte) (string, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return "", false
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return "", false
	}
	raw, ok := probe["error"]
	if !ok {
		return "", false
	}
	var message string
	if err := json.Unmarshal(raw, &message); err != nil {
		return string(raw), true
	}
	return message, true
}

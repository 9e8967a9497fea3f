package llm

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAPIKey = errors.New("missing API key for remote provider")
	ErrMissingModel  = errors.New("missing model for remote provider")
	ErrEmptyResponse = errors.New("LLM response was empty")
)

type ErrUnsupportedProvider struct {
	Provider string
}

func (e ErrUnsupportedProvider) Error() string {
	return fmt.Sprintf("unsupported LLM provider: %s", e.Provider)
}

// ErrInvalidObject reports a structured response that does not match the
// requested schema.
type ErrInvalidObject struct {
	Name string
	Err  error
}

func (e ErrInvalidObject) Error() string {
	return fmt.Sprintf("invalid %s object: %v", e.Name, e.Err)
}

func (e ErrInvalidObject) Unwrap() error {
	return e.Err
}

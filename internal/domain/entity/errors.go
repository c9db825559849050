package entity

import (
	"errors"
	"fmt"
)

// InputContractError marks a caller-supplied input that violates a precondition.
// ErrArtifactNotFound is returned when no artifact exists for a request id.
var ErrArtifactNotFound = errors.New("artifact not found")

type InputContractError struct {
	Field   string
	Message string
}

func (e *InputContractError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewInputError(field, format string, args ...any) error {
	return &InputContractError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func IsInputError(err error) bool {
	var ie *InputContractError
	return errors.As(err, &ie)
}

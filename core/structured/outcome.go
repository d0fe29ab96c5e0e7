package structured

import (
	"errors"

	"github.com/leofalp/planner/providers/ai"
)

// ErrIncompleteAnswer marks a Malformed outcome whose answer the model did
// not finish, such as one cut off by the token limit.
var ErrIncompleteAnswer = errors.New("model answer is incomplete")

// Outcome statuses, also used as metric and log attribute values.
const (
	StatusParsed         = "parsed"
	StatusMalformed      = "malformed"
	StatusTransportError = "transport_error"
)

// Outcome is the result of one extraction. It is implemented only by
// Parsed, Malformed and TransportFailure.
type Outcome interface {
	// Status returns StatusParsed, StatusMalformed or StatusTransportError.
	Status() string

	outcome()
}

// Parsed is a record that decoded and passed validation.
type Parsed[T any] struct {
	Value    T
	Response *ai.ChatResponse
}

// Status implements Outcome.
func (Parsed[T]) Status() string { return StatusParsed }

func (Parsed[T]) outcome() {}

// Malformed is a model answer that was received but could not be turned into
// a valid record.
type Malformed struct {
	Raw string
	Err error
}

// Status implements Outcome.
func (Malformed) Status() string { return StatusMalformed }

func (Malformed) outcome() {}

// Error returns the decoding or validation failure message.
func (malformed Malformed) Error() string {
	if malformed.Err == nil {
		return "malformed model answer"
	}
	return malformed.Err.Error()
}

// TransportFailure is a model call that did not produce an answer.
type TransportFailure struct {
	Err error
}

// Status implements Outcome.
func (TransportFailure) Status() string { return StatusTransportError }

func (TransportFailure) outcome() {}

// Error returns the provider error message.
func (failure TransportFailure) Error() string {
	if failure.Err == nil {
		return "model call failed"
	}
	return failure.Err.Error()
}

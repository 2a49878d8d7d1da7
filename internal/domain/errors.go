package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateTopic is returned when a topic is registered twice. Fatal at load time.
	ErrDuplicateTopic = errors.New("duplicate topic")

	// ErrUnknownTopic is returned when a reading arrives for a topic with no threshold.
	ErrUnknownTopic = errors.New("unknown topic")

	// ErrInvalidPayload is returned when a reading cannot be parsed as a finite number.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrInvalidThreshold is returned when a threshold definition violates band ordering.
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrSinkUnavailable is returned when a sink could not accept an event after retries.
	ErrSinkUnavailable = errors.New("sink unavailable")
)

// TopicError attaches the offending topic to a registry or ingestion error.
type TopicError struct {
	Topic string
	Err   error
}

func (e *TopicError) Error() string {
	return fmt.Sprintf("%s: %q", e.Err, e.Topic)
}

func (e *TopicError) Unwrap() error { return e.Err }

package sqs

import "fmt"

// ConfigurationError reports required setup values missing or inconsistent.
// Fatal at startup, surfaced by Connect.
type ConfigurationError struct{ Reason string }

func (e *ConfigurationError) Error() string { return "sqs configuration: " + e.Reason }

// ConnectionError reports a failure to reach or authenticate with the
// service. Fatal for the operation attempted, never retried here.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string { return fmt.Sprintf("sqs %s: %s", e.Op, e.Err) }
func (e *ConnectionError) Unwrap() error { return e.Err }

// DecodeError reports a message body that is not valid serialized structure,
// a producer/consumer format mismatch that must stay visible.
type DecodeError struct {
	Queue string
	Err   error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("sqs decode from %s: %s", e.Queue, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// DeliveryError reports a synchronous failure submitting an outbound message.
type DeliveryError struct {
	Queue string
	Err   error
}

func (e *DeliveryError) Error() string { return fmt.Sprintf("sqs deliver to %s: %s", e.Queue, e.Err) }
func (e *DeliveryError) Unwrap() error { return e.Err }

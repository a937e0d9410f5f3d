package blossom

import (
	"errors"
	"fmt"
	"time"
)

// ErrAllServersExhausted is the terminal failure after every server was tried once.
var ErrAllServersExhausted = errors.New("all-servers-exhausted")

// Attempt reasons.
const (
	ReasonOK           = "ok"
	ReasonStatus       = "status"
	ReasonTransport    = "transport"
	ReasonMalformed    = "malformed"
	ReasonHashMismatch = "hash-mismatch"
)

// Attempt records the result of one request against one server.
type Attempt struct {
	Server   Server
	Status   int
	Reason   string
	Err      error
	Duration time.Duration
}

// OK reports whether the attempt produced a verified success.
func (a Attempt) OK() bool {
	return a.Reason == ReasonOK
}

// ExhaustedError aggregates the per-server attempts of a failed upload.
type ExhaustedError struct {
	Attempts []Attempt
}

func (e *ExhaustedError) Error() string {
	mismatches := 0
	for _, a := range e.Attempts {
		if a.Reason == ReasonHashMismatch {
			mismatches++
		}
	}
	if mismatches > 0 {
		return fmt.Sprintf("%s: %d servers tried, %d returned a mismatched hash",
			ErrAllServersExhausted, len(e.Attempts), mismatches)
	}
	return fmt.Sprintf("%s: %d servers tried", ErrAllServersExhausted, len(e.Attempts))
}

func (e *ExhaustedError) Unwrap() error {
	return ErrAllServersExhausted
}

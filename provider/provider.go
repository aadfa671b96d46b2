package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nyaysetu/nyaysetu"
)

// Backend is one answer-producing strategy of the fallback chain.
type Backend interface {
	// Answers the query. Implementations must not panic on backend errors and
	// must report every problem through the returned Result.
	Query(ctx context.Context, query string) Result

	// Name reported in metrics, logs and Answer metadata. E.g., "local"
	Name() string
}

// Prober reports whether a backend is reachable right now.
type Prober interface {
	CheckAvailability(ctx context.Context) bool
}

// ErrBlankAnswer is reported by backends whose response carries only whitespace.
var ErrBlankAnswer = errors.New("backend returned a blank answer")

type Outcome int

const (
	// The backend produced an answer.
	OutcomeSuccess Outcome = iota

	// The backend was not attempted: it is unreachable or not configured.
	OutcomeUnavailable

	// The backend was attempted but the request or its response failed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeFailed:
		return "failed"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Result explains why a backend did or did not answer.
type Result struct {
	Outcome Outcome

	// Set only when Outcome is OutcomeSuccess.
	Answer *nyaysetu.Answer

	// Cause for OutcomeUnavailable and OutcomeFailed. May be nil.
	Err error
}

func Success(answer *nyaysetu.Answer) Result {
	return Result{Outcome: OutcomeSuccess, Answer: answer}
}

func Unavailable(err error) Result {
	return Result{Outcome: OutcomeUnavailable, Err: err}
}

func Failed(err error) Result {
	return Result{Outcome: OutcomeFailed, Err: err}
}

// Ok reports whether the result carries a usable answer, one with non-blank text.
func (r Result) Ok() bool {
	return r.Outcome == OutcomeSuccess && r.Answer != nil && strings.TrimSpace(r.Answer.Answer) != ""
}

package server

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/nyaysetu/nyaysetu"
	"github.com/nyaysetu/nyaysetu/monitoring"
	"github.com/nyaysetu/nyaysetu/provider"
	"github.com/nyaysetu/nyaysetu/provider/static"
	"github.com/nyaysetu/nyaysetu/utils"
)

// Query text is cut to this many runes in log lines.
const maxLoggedQueryLength = 100

var ErrEmptyQuery = errors.New("query cannot be empty")

// Orchestrator walks the fallback chain. Backends are tried once each, in order, and the
// static generator answers when none of them succeeds.
type Orchestrator struct {
	backends []provider.Backend
	fallback *static.Generator
	monitor  monitoring.Monitor
	clock    clock.Clock
	logger   *zap.SugaredLogger
}

func NewOrchestrator(
	backends []provider.Backend,
	fallback *static.Generator,
	monitor monitoring.Monitor,
	logger *zap.SugaredLogger,
) *Orchestrator {
	return &Orchestrator{
		backends: backends,
		fallback: fallback,
		monitor:  monitor,
		clock:    clock.New(),
		logger:   logger,
	}
}

// Answer returns a well-formed answer for every non-blank query. The only error is a
// BadRequestError wrapping ErrEmptyQuery.
func (o *Orchestrator) Answer(ctx context.Context, query string) (answer *nyaysetu.Answer, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, BadRequestError{ErrEmptyQuery}
	}

	logger := requestLogger(ctx, o.logger)
	start := o.clock.Now()

	// Runs after the chain guard below, so it sees the final answer.
	defer func() {
		if answer == nil {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("Failed to record answer", "panic", r)
			}
		}()
		o.monitor.RecordAnswer(ctx, answer.Backend(), o.clock.Since(start))
	}()

	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("Fallback chain panicked", "panic", r)
			answer, err = o.fallback.Generate(query), nil
		}
	}()

	for _, backend := range o.backends {
		result := o.attempt(ctx, backend, query)
		if result.Ok() {
			logger.Infow("Answered query", "backend", backend.Name())
			return result.Answer, nil
		}
	}

	logger.Warnw("All backends failed, using static fallback", "query", utils.Truncate(query, maxLoggedQueryLength))
	return o.fallback.Generate(query), nil
}

func (o *Orchestrator) attempt(ctx context.Context, backend provider.Backend, query string) (result provider.Result) {
	logger := requestLogger(ctx, o.logger)
	ctx, finish := o.monitor.StartAttempt(ctx, backend.Name())
	start := o.clock.Now()

	defer func() {
		if r := recover(); r != nil {
			logger.Errorw("Backend panicked", "backend", backend.Name(), "panic", r)
			result = provider.Failed(fmt.Errorf("backend %s panicked: %v", backend.Name(), r))
		}
		if result.Outcome == provider.OutcomeSuccess {
			if result.Answer == nil {
				result = provider.Failed(fmt.Errorf("backend %s reported success without an answer", backend.Name()))
			} else if strings.TrimSpace(result.Answer.Answer) == "" {
				result = provider.Failed(fmt.Errorf("backend %s returned a blank answer", backend.Name()))
			}
		}

		finish(result.Outcome.String())
		logger.Infow("Backend attempt finished",
			"backend", backend.Name(),
			"outcome", result.Outcome.String(),
			"duration", o.clock.Since(start),
			"error", result.Err,
		)
	}()

	return backend.Query(ctx, query)
}

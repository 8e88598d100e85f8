// Package strategy runs ordered fallback chains. Each step reports Found,
// Deferred or Failed; the chain stops at the first Found.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrExhausted is returned when no step in a chain found a result.
var ErrExhausted = errors.New("all strategies exhausted")

// Outcome tags a step result.
type Outcome int

const (
	// Deferred means the step did not apply; try the next one.
	Deferred Outcome = iota
	// Found means the step produced a value.
	Found
	// Failed means the step applied but broke; the reason is kept and the
	// next step is tried.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Found:
		return "found"
	case Failed:
		return "failed"
	default:
		return "deferred"
	}
}

// Result is the tagged value a step returns.
type Result[T any] struct {
	Outcome Outcome
	Value   T
	Err     error
}

// FoundValue returns a Found result holding v.
func FoundValue[T any](v T) Result[T] {
	return Result[T]{Outcome: Found, Value: v}
}

// Defer returns a Deferred result.
func Defer[T any]() Result[T] {
	return Result[T]{Outcome: Deferred}
}

// Fail returns a Failed result carrying reason.
func Fail[T any](reason error) Result[T] {
	return Result[T]{Outcome: Failed, Err: reason}
}

// Step is one named strategy.
type Step[T any] struct {
	Name string
	Run  func(ctx context.Context) Result[T]
}

// Run tries steps in order and returns the first Found value with the name
// of the step that produced it. When every step defers or fails, the error
// wraps ErrExhausted and joins the failure reasons.
func Run[T any](ctx context.Context, logger *slog.Logger, steps []Step[T]) (T, string, error) {
	var zero T
	var reasons []error
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return zero, "", err
		}
		r := s.Run(ctx)
		logger.Debug("strategy outcome", "strategy", s.Name, "outcome", r.Outcome.String())
		switch r.Outcome {
		case Found:
			return r.Value, s.Name, nil
		case Failed:
			if r.Err != nil {
				reasons = append(reasons, fmt.Errorf("%s: %w", s.Name, r.Err))
			}
		}
	}
	if len(reasons) == 0 {
		return zero, "", ErrExhausted
	}
	return zero, "", fmt.Errorf("%w: %w", ErrExhausted, errors.Join(reasons...))
}

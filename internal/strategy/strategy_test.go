package strategy

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_FirstFoundWins(t *testing.T) {
	var ran []string
	step := func(name string, r Result[string]) Step[string] {
		return Step[string]{Name: name, Run: func(context.Context) Result[string] {
			ran = append(ran, name)
			return r
		}}
	}

	v, name, err := Run(context.Background(), slog.Default(), []Step[string]{
		step("a", Defer[string]()),
		step("b", Fail[string](errors.New("boom"))),
		step("c", FoundValue("hit")),
		step("d", FoundValue("late")),
	})
	require.NoError(t, err)
	assert.Equal(t, "hit", v)
	assert.Equal(t, "c", name)
	assert.Equal(t, []string{"a", "b", "c"}, ran)
}

func TestRun_Exhausted(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := Run(context.Background(), slog.Default(), []Step[int]{
		{Name: "a", Run: func(context.Context) Result[int] { return Defer[int]() }},
		{Name: "b", Run: func(context.Context) Result[int] { return Fail[int](boom) }},
	})
	assert.ErrorIs(t, err, ErrExhausted)
	assert.ErrorIs(t, err, boom)
}

func TestRun_EmptyChain(t *testing.T) {
	_, _, err := Run[string](context.Background(), slog.Default(), nil)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestRun_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	called := false
	_, _, err := Run(ctx, slog.Default(), []Step[string]{
		{Name: "a", Run: func(context.Context) Result[string] {
			cancel()
			return Defer[string]()
		}},
		{Name: "b", Run: func(context.Context) Result[string] {
			called = true
			return FoundValue("x")
		}},
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "found", Found.String())
	assert.Equal(t, "deferred", Deferred.String())
	assert.Equal(t, "failed", Failed.String())
}

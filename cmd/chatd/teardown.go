package main

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type teardownStep struct {
	name string
	fn   func(ctx context.Context) error
}

// teardown releases resources in the reverse order they were acquired.
// Every step runs even when an earlier one fails.
type teardown struct {
	steps  []teardownStep
	logger *zap.Logger
}

func newTeardown(logger *zap.Logger) *teardown {
	return &teardown{logger: logger}
}

func (t *teardown) add(name string, fn func(ctx context.Context) error) {
	t.steps = append(t.steps, teardownStep{name: name, fn: fn})
}

// run executes the steps once and returns their combined error.
func (t *teardown) run(ctx context.Context) error {
	var err error
	for i := len(t.steps) - 1; i >= 0; i-- {
		step := t.steps[i]
		if stepErr := step.fn(ctx); stepErr != nil {
			t.logger.Error("teardown step failed", zap.String("step", step.name), zap.Error(stepErr))
			err = multierr.Append(err, errors.Wrap(stepErr, step.name))
		}
	}
	t.steps = nil
	return err
}

// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package rt

import (
	"time"

	"github.com/joeycumines/logiface"

	"github.com/joeycumines/go-rt/clock"
	"github.com/joeycumines/go-rt/executor"
)

// runtimeOptions holds configuration options for Runtime creation.
type runtimeOptions struct {
	logger       *logiface.Logger[logiface.Event]
	clock        clock.Clock
	executorOpts []executor.Option
	hasClock     bool
}

// Option configures a Runtime instance.
type Option interface {
	applyRuntime(*runtimeOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyRuntimeFunc func(*runtimeOptions) error
}

func (o *optionImpl) applyRuntime(opts *runtimeOptions) error {
	return o.applyRuntimeFunc(opts)
}

// WithClock sets the runtime's clock, used by its timer and installed as the
// ambient clock. Defaults to the system clock.
func WithClock(c clock.Clock) Option {
	return &optionImpl{func(opts *runtimeOptions) error {
		opts.clock = c
		opts.hasClock = true
		return nil
	}}
}

// WithLogger sets the structured logger, for both the runtime and its
// executor. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *runtimeOptions) error {
		opts.logger = logger
		opts.executorOpts = append(opts.executorOpts, executor.WithLogger(logger))
		return nil
	}}
}

// WithFailureHandler registers a callback for failed tasks. See
// executor.WithFailureHandler.
func WithFailureHandler(fn func(*executor.TaskError)) Option {
	return executorOption(executor.WithFailureHandler(fn))
}

// WithFailureLogRate limits how often task failures are logged. See
// executor.WithFailureLogRate.
func WithFailureLogRate(rates map[time.Duration]int) Option {
	return executorOption(executor.WithFailureLogRate(rates))
}

// WithTaskBudget caps the number of tasks polled per pass. See
// executor.WithTaskBudget.
func WithTaskBudget(n int) Option {
	return executorOption(executor.WithTaskBudget(n))
}

func executorOption(o executor.Option) Option {
	return &optionImpl{func(opts *runtimeOptions) error {
		opts.executorOpts = append(opts.executorOpts, o)
		return nil
	}}
}

// resolveOptions applies Option instances to runtimeOptions.
func resolveOptions(opts []Option) (*runtimeOptions, error) {
	cfg := &runtimeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRuntime(cfg); err != nil {
			return nil, err
		}
	}
	if !cfg.hasClock {
		cfg.clock = clock.New()
	}
	return cfg, nil
}

// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package executor

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// executorOptions holds configuration options for CurrentThread creation.
type executorOptions struct {
	logger         *logiface.Logger[logiface.Event]
	failureHandler func(*TaskError)
	failureLimiter *catrate.Limiter
	taskBudget     int
}

// Option configures a CurrentThread instance.
type Option interface {
	applyExecutor(*executorOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyExecutorFunc func(*executorOptions) error
}

func (o *optionImpl) applyExecutor(opts *executorOptions) error {
	return o.applyExecutorFunc(opts)
}

// WithLogger sets the structured logger, used to report task failures and
// park errors. A nil logger disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *executorOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithFailureHandler registers a callback, invoked on the driving goroutine
// after any task fails. It must not block.
func WithFailureHandler(fn func(*TaskError)) Option {
	return &optionImpl{func(opts *executorOptions) error {
		opts.failureHandler = fn
		return nil
	}}
}

// WithFailureLogRate limits how often task failures are logged, e.g.
// {time.Second: 5, time.Minute: 50}. Failures beyond the limit are still
// recorded and passed to the failure handler. Longer windows must allow more
// events, at a lower average rate, than shorter ones.
func WithFailureLogRate(rates map[time.Duration]int) Option {
	return &optionImpl{func(opts *executorOptions) error {
		if len(rates) == 0 {
			opts.failureLimiter = nil
			return nil
		}
		limiter, err := newFailureLimiter(rates)
		if err != nil {
			return err
		}
		opts.failureLimiter = limiter
		return nil
	}}
}

// WithTaskBudget caps the number of tasks polled per pass. Zero (default)
// polls every task that was runnable at the start of the pass.
func WithTaskBudget(n int) Option {
	return &optionImpl{func(opts *executorOptions) error {
		if n < 0 {
			return errors.New("executor: task budget must not be negative")
		}
		opts.taskBudget = n
		return nil
	}}
}

// newFailureLimiter converts the panic catrate raises for invalid rates.
func newFailureLimiter(rates map[time.Duration]int) (limiter *catrate.Limiter, err error) {
	defer func() {
		if r := recover(); r != nil {
			limiter, err = nil, fmt.Errorf("executor: invalid failure log rate: %v", r)
		}
	}()
	return catrate.NewLimiter(rates), nil
}

// resolveOptions applies Option instances to executorOptions.
func resolveOptions(opts []Option) (*executorOptions, error) {
	cfg := &executorOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyExecutor(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

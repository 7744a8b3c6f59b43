package executor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnter_SecondEnterOnSameGoroutineFails(t *testing.T) {
	first, err := Acquire()
	require.NoError(t, err)
	defer first.Exit()

	second, err := Acquire()
	assert.Nil(t, second)
	assert.ErrorIs(t, err, ErrAlreadyEntered)
	assert.True(t, IsEntered())

	first.Exit()
	assert.False(t, IsEntered())

	third, err := Acquire()
	require.NoError(t, err)
	third.Exit()
}

func TestEnter_IndependentAcrossGoroutines(t *testing.T) {
	permit, err := Acquire()
	require.NoError(t, err)
	defer permit.Exit()

	errs := make(chan error, 1)
	go func() {
		other, err := Acquire()
		if err == nil {
			other.Exit()
		}
		errs <- err
	}()
	assert.NoError(t, <-errs)
}

func TestEnter_Check(t *testing.T) {
	var nilPermit *Enter
	assert.ErrorIs(t, nilPermit.Check(), ErrNotEntered)

	permit, err := Acquire()
	require.NoError(t, err)
	assert.NoError(t, permit.Check())

	errs := make(chan error, 1)
	go func() { errs <- permit.Check() }()
	assert.ErrorIs(t, <-errs, ErrNotEntered, "permit must not be usable from another goroutine")

	permit.Exit()
	permit.Exit()
	assert.ErrorIs(t, permit.Check(), ErrNotEntered)
}

func TestEnter_ExitStalePermitDoesNotReleaseNewer(t *testing.T) {
	stale, err := Acquire()
	require.NoError(t, err)
	stale.Exit()

	current, err := Acquire()
	require.NoError(t, err)
	defer current.Exit()

	stale.Exit()
	_, err = Acquire()
	if !errors.Is(err, ErrAlreadyEntered) {
		t.Fatalf("expected ErrAlreadyEntered, got %v", err)
	}
}

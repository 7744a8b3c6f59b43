package ambient

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStack_NestedWith(t *testing.T) {
	var s Stack[string]

	_, ok := s.Current()
	require.False(t, ok)

	err := s.With("outer", func() error {
		v, ok := s.Current()
		require.True(t, ok)
		assert.Equal(t, "outer", v)

		return s.With("inner", func() error {
			v, _ := s.Current()
			assert.Equal(t, "inner", v)
			assert.Equal(t, 2, s.Depth())
			return nil
		})
	})
	require.NoError(t, err)

	_, ok = s.Current()
	assert.False(t, ok)
	assert.Equal(t, 0, s.Depth())
}

func TestStack_RestoredOnError(t *testing.T) {
	var s Stack[int]
	sentinel := errors.New("boom")

	err := s.With(1, func() error {
		return s.With(2, func() error { return sentinel })
	})
	require.ErrorIs(t, err, sentinel)
	assert.Equal(t, 0, s.Depth())
}

func TestStack_RestoredOnPanic(t *testing.T) {
	var s Stack[int]

	func() {
		defer func() {
			require.Equal(t, "boom", recover())
		}()
		_ = s.With(1, func() error {
			return s.With(2, func() error { panic("boom") })
		})
	}()

	assert.Equal(t, 0, s.Depth())
}

func TestStack_GoroutineScoped(t *testing.T) {
	var s Stack[int]

	_ = s.With(7, func() error {
		done := make(chan bool)
		go func() {
			_, ok := s.Current()
			done <- ok
		}()
		assert.False(t, <-done)
		v, ok := s.Current()
		assert.True(t, ok)
		assert.Equal(t, 7, v)
		return nil
	})
}

func TestStack_RestoreIdempotentAndDiscardsAbove(t *testing.T) {
	var s Stack[int]

	outer := s.Push(1)
	_ = s.Push(2) // leaked frame
	assert.Equal(t, 2, s.Depth())

	outer()
	assert.Equal(t, 0, s.Depth())
	outer()
	assert.Equal(t, 0, s.Depth())
}

package async

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuture(t *testing.T) {
	t.Parallel()

	t.Run("await returns result", func(t *testing.T) {
		f := Go(context.Background(), func(context.Context) (int, error) { return 42, nil })
		v, err := f.Await()
		require.NoError(t, err)
		assert.Equal(t, 42, v)
	})

	t.Run("await returns error", func(t *testing.T) {
		boom := errors.New("boom")
		f := Go(context.Background(), func(context.Context) (struct{}, error) { return struct{}{}, boom })
		_, err := f.Await()
		require.ErrorIs(t, err, boom)
	})

	t.Run("canceled context skips the task", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		called := false
		f := Go(ctx, func(context.Context) (int, error) {
			called = true
			return 1, nil
		})
		_, err := f.Await()
		require.ErrorIs(t, err, context.Canceled)
		assert.False(t, called)
	})

	t.Run("panic becomes an error", func(t *testing.T) {
		f := Go(context.Background(), func(context.Context) (int, error) { panic("kaboom") })
		_, err := f.Await()
		require.ErrorIs(t, err, ErrPanicked)
	})

	t.Run("await context gives up without waiting for the task", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)
		f := Go(context.Background(), func(context.Context) (int, error) {
			<-release
			return 1, nil
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := f.AwaitContext(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("resolved future is complete", func(t *testing.T) {
		f := Resolved("ok", nil)
		select {
		case <-f.Done():
		default:
			t.Fatal("resolved future should be done")
		}
	})
}

package app

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDispatcher_ReturnsResult(t *testing.T) {
	d := NewDispatcher(2, time.Second, discardLogger())
	defer d.Close()

	text, err := d.Dispatch(context.Background(), func(ctx context.Context) (string, error) {
		return "report", nil
	})
	require.NoError(t, err)
	require.Equal(t, "report", text)
}

func TestDispatcher_TimesOutWithinDeadline(t *testing.T) {
	d := NewDispatcher(1, 50*time.Millisecond, discardLogger())
	defer d.Close()

	started := time.Now()
	_, err := d.Dispatch(context.Background(), func(ctx context.Context) (string, error) {
		time.Sleep(time.Second)
		return "late", nil
	})
	elapsed := time.Since(started)

	require.Error(t, err)
	require.Equal(t, FailureTimeout, FailureKindOf(err))
	require.Less(t, elapsed, 500*time.Millisecond)
}

func TestDispatcher_Classification(t *testing.T) {
	d := NewDispatcher(1, time.Second, discardLogger())
	defer d.Close()

	cases := []struct {
		name string
		job  Job
		want FailureKind
	}{
		{"not loaded", func(ctx context.Context) (string, error) { return "", ErrModelNotLoaded }, FailureUnavailable},
		{"wrapped not loaded", func(ctx context.Context) (string, error) {
			return "", errors.Join(errors.New("engine"), ErrModelNotLoaded)
		}, FailureUnavailable},
		{"other", func(ctx context.Context) (string, error) { return "", errors.New("bad image") }, FailureInternal},
		{"panic", func(ctx context.Context) (string, error) { panic("boom") }, FailureInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Dispatch(context.Background(), tc.job)
			require.Error(t, err)
			require.Equal(t, tc.want, FailureKindOf(err))
		})
	}
}

func TestDispatcher_DropsJobsAbandonedInQueue(t *testing.T) {
	d := NewDispatcher(1, 100*time.Millisecond, discardLogger())
	defer d.Close()

	release := make(chan struct{})
	go func() {
		_, _ = d.Dispatch(context.Background(), func(ctx context.Context) (string, error) {
			<-release
			return "", nil
		})
	}()
	require.Eventually(t, func() bool { return d.InFlight() == 1 }, time.Second, 5*time.Millisecond)

	var ran atomic.Bool
	_, err := d.Dispatch(context.Background(), func(ctx context.Context) (string, error) {
		ran.Store(true)
		return "", nil
	})
	require.Equal(t, FailureTimeout, FailureKindOf(err))

	close(release)

	// Очередь FIFO с одним воркером: к этому моменту брошенная задача уже пропущена.
	text, err := d.Dispatch(context.Background(), func(ctx context.Context) (string, error) {
		return "after", nil
	})
	require.NoError(t, err)
	require.Equal(t, "after", text)
	require.False(t, ran.Load())
}

func TestDispatcher_CallerCancellation(t *testing.T) {
	d := NewDispatcher(1, time.Second, discardLogger())
	defer d.Close()

	t.Run("deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := d.Dispatch(ctx, func(ctx context.Context) (string, error) {
			time.Sleep(300 * time.Millisecond)
			return "late", nil
		})
		require.Equal(t, FailureTimeout, FailureKindOf(err))
	})

	t.Run("cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := d.Dispatch(ctx, func(ctx context.Context) (string, error) {
			return "never", nil
		})
		require.Error(t, err)
		require.Equal(t, FailureInternal, FailureKindOf(err))
	})
}

func TestDispatcher_Closed(t *testing.T) {
	d := NewDispatcher(1, time.Second, discardLogger())
	d.Close()
	d.Close()

	_, err := d.Dispatch(context.Background(), func(ctx context.Context) (string, error) {
		return "never", nil
	})
	require.Equal(t, FailureUnavailable, FailureKindOf(err))
}

func TestDispatcher_CloseFailsQueuedJobs(t *testing.T) {
	d := NewDispatcher(1, time.Second, discardLogger())

	release := make(chan struct{})
	running := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(context.Background(), func(ctx context.Context) (string, error) {
			<-release
			return "first", nil
		})
		running <- err
	}()
	require.Eventually(t, func() bool { return d.InFlight() == 1 }, time.Second, 5*time.Millisecond)

	var ran atomic.Bool
	queued := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(context.Background(), func(ctx context.Context) (string, error) {
			ran.Store(true)
			return "second", nil
		})
		queued <- err
	}()
	require.Eventually(t, func() bool { return len(d.jobs) == 1 }, time.Second, 5*time.Millisecond)

	go d.Close()
	require.Eventually(t, func() bool {
		select {
		case <-d.quit:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
	close(release)

	require.NoError(t, <-running)

	start := time.Now()
	err := <-queued
	require.Equal(t, FailureUnavailable, FailureKindOf(err))
	require.Less(t, time.Since(start), 500*time.Millisecond)
	require.False(t, ran.Load())
}

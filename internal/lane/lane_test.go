package lane

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	offerr "github.com/Aman-CERP/offsearch/internal/errors"
	"github.com/Aman-CERP/offsearch/internal/logging"
)

func newTestLane(t *testing.T, kind Kind) *Lane {
	t.Helper()
	l := New(kind, logging.Discard())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.Close(ctx)
	})
	return l
}

// blocker returns a task body that waits until release is closed.
func blocker(started chan<- struct{}, release <-chan struct{}) func(context.Context) (int, error) {
	return func(ctx context.Context) (int, error) {
		close(started)
		select {
		case <-release:
			return 1, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSubmit_RunsInSubmissionOrder(t *testing.T) {
	// Given: a build lane
	l := newTestLane(t, KindBuild)

	// When: 50 tasks are submitted back to back
	var mu sync.Mutex
	var order []int
	futures := make([]*Future[int], 0, 50)
	for i := 0; i < 50; i++ {
		futures = append(futures, Submit(l, "task", func(ctx context.Context) (int, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return i, nil
		}))
	}

	// Then: they complete in order with their own results
	for i, f := range futures {
		v, err := f.Wait(waitCtx(t))
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestSubmit_NeverOverlapsWithinLane(t *testing.T) {
	// Given: a lane and a concurrency probe
	l := newTestLane(t, KindSearch)
	var active, peak atomic.Int32

	// When: many tasks are submitted from many goroutines
	var wg sync.WaitGroup
	futures := make(chan *Future[struct{}], 40)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			futures <- Submit(l, "probe", func(ctx context.Context) (struct{}, error) {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				active.Add(-1)
				return struct{}{}, nil
			})
		}()
	}
	wg.Wait()
	close(futures)

	// Then: at most one task ever ran at a time
	for f := range futures {
		_, err := f.Wait(waitCtx(t))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), peak.Load())
}

func TestScheduler_LanesAreIndependent(t *testing.T) {
	// Given: a scheduler whose build lane is blocked
	s := NewScheduler(logging.Discard())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	started := make(chan struct{})
	release := make(chan struct{})
	build := Submit(s.Build(), "long-build", blocker(started, release))
	<-started

	// When: a search is submitted
	search := Submit(s.Search(), "search", func(ctx context.Context) (string, error) {
		return "hits", nil
	})

	// Then: the search completes while the build is still running
	v, err := search.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "hits", v)
	assert.Equal(t, StatusRunning, build.Status())

	close(release)
	_, err = build.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, StatusDone, build.Status())
}

func TestCancel_QueuedTaskNeverRuns(t *testing.T) {
	// Given: a lane occupied by a running task and a second task queued
	l := newTestLane(t, KindBuild)
	started := make(chan struct{})
	release := make(chan struct{})
	first := Submit(l, "first", blocker(started, release))
	<-started

	var ran atomic.Bool
	second := Submit(l, "second", func(ctx context.Context) (int, error) {
		ran.Store(true)
		return 2, nil
	})
	assert.Equal(t, StatusQueued, second.Status())

	// When: the queued task is cancelled
	assert.True(t, second.Cancel())

	// Then: it completes as cancelled and its body never runs
	_, err := second.Wait(waitCtx(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, offerr.ErrCancelled))
	assert.Equal(t, StatusCancelled, second.Status())

	close(release)
	_, err = first.Wait(waitCtx(t))
	require.NoError(t, err)

	// And: a task submitted afterwards still runs
	third := Submit(l, "third", func(ctx context.Context) (int, error) { return 3, nil })
	v, err := third.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.False(t, ran.Load())
}

func TestCancel_RunningTaskObservesContext(t *testing.T) {
	// Given: a running task that honors its context, with another queued behind it
	l := newTestLane(t, KindBuild)
	started := make(chan struct{})
	f := Submit(l, "cooperative", blocker(started, make(chan struct{})))
	<-started
	next := Submit(l, "next", func(ctx context.Context) (int, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 7, nil
	})

	// When: the running task is cancelled
	assert.True(t, f.Cancel())

	// Then: it ends with a cancellation error
	_, err := f.Wait(waitCtx(t))
	require.Error(t, err)
	assert.Equal(t, offerr.ErrCodeCancelled, offerr.GetCode(err))
	assert.True(t, errors.Is(err, context.Canceled))

	require.Eventually(t, func() bool {
		return f.Status() == StatusCancelled
	}, time.Second, 5*time.Millisecond)

	// And: the queued task still runs with a live context
	v, err := next.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	require.Eventually(t, func() bool {
		return next.Status() == StatusDone
	}, time.Second, 5*time.Millisecond)
}

func TestCancel_FinishedTaskReturnsFalse(t *testing.T) {
	l := newTestLane(t, KindSearch)
	f := Submit(l, "quick", func(ctx context.Context) (int, error) { return 1, nil })
	_, err := f.Wait(waitCtx(t))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return f.Status() == StatusDone }, time.Second, 5*time.Millisecond)
	assert.False(t, f.Cancel())
}

func TestSubmit_ErrorDoesNotStopLane(t *testing.T) {
	// Given: a failing task followed by a healthy one
	l := newTestLane(t, KindBuild)
	boom := errors.New("disk full")
	bad := Submit(l, "bad", func(ctx context.Context) (int, error) { return 0, boom })
	good := Submit(l, "good", func(ctx context.Context) (int, error) { return 7, nil })

	// Then: the failure is isolated to its own future
	_, err := bad.Wait(waitCtx(t))
	assert.ErrorIs(t, err, boom)

	v, err := good.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	stats := l.Stats()
	assert.Equal(t, uint64(2), stats.Submitted)
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, uint64(1), stats.Completed)
}

func TestSubmit_PanicIsRecovered(t *testing.T) {
	// Given: a task that panics
	l := newTestLane(t, KindSearch)
	bad := Submit(l, "panics", func(ctx context.Context) (int, error) {
		panic("corrupt segment")
	})
	good := Submit(l, "after", func(ctx context.Context) (int, error) { return 1, nil })

	// Then: the panic becomes a task error and the lane keeps running
	_, err := bad.Wait(waitCtx(t))
	require.Error(t, err)
	assert.Equal(t, offerr.ErrCodeTaskPanic, offerr.GetCode(err))
	assert.Contains(t, err.Error(), "corrupt segment")

	_, err = good.Wait(waitCtx(t))
	require.NoError(t, err)
}

func TestSubmit_AfterCloseFails(t *testing.T) {
	// Given: a closed lane
	l := New(KindBuild, logging.Discard())
	require.NoError(t, l.Close(waitCtx(t)))

	// When: a task is submitted
	f := Submit(l, "late", func(ctx context.Context) (int, error) { return 1, nil })

	// Then: it fails immediately with a lane-closed error
	select {
	case <-f.Done():
	default:
		t.Fatal("future should already be complete")
	}
	_, err := f.Result()
	assert.Equal(t, offerr.ErrCodeLaneClosed, offerr.GetCode(err))
	assert.False(t, f.Cancel())
	assert.Equal(t, StatusDone, f.Status())
}

func TestClose_DrainsQueuedTasks(t *testing.T) {
	l := New(KindBuild, logging.Discard())
	var count atomic.Int32
	for i := 0; i < 10; i++ {
		Submit(l, "n", func(ctx context.Context) (int, error) {
			count.Add(1)
			return 0, nil
		})
	}

	require.NoError(t, l.Close(waitCtx(t)))
	assert.Equal(t, int32(10), count.Load())

	select {
	case <-l.Done():
	default:
		t.Fatal("worker should have exited")
	}
}

func TestClose_DeadlineCancelsPending(t *testing.T) {
	// Given: a lane blocked on a cooperative task with another queued behind it
	l := New(KindBuild, logging.Discard())
	started := make(chan struct{})
	running := Submit(l, "running", blocker(started, make(chan struct{})))
	<-started
	queued := Submit(l, "queued", func(ctx context.Context) (int, error) { return 1, nil })

	// When: Close runs out of time
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Close(ctx)

	// Then: both tasks end as cancelled
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, err = queued.Wait(waitCtx(t))
	assert.Equal(t, offerr.ErrCodeCancelled, offerr.GetCode(err))
	_, err = running.Wait(waitCtx(t))
	assert.Equal(t, offerr.ErrCodeCancelled, offerr.GetCode(err))
}

func TestFuture_OnComplete(t *testing.T) {
	l := newTestLane(t, KindSearch)
	release := make(chan struct{})
	started := make(chan struct{})
	f := Submit(l, "cb", blocker(started, release))

	got := make(chan int, 2)
	f.OnComplete(func(v int, err error) { got <- v })
	close(release)

	select {
	case v := <-got:
		assert.Equal(t, 1, v)
	case <-time.After(5 * time.Second):
		t.Fatal("callback not invoked")
	}

	// Registered after completion: runs immediately.
	f.OnComplete(func(v int, err error) { got <- v + 1 })
	assert.Equal(t, 2, <-got)
}

func TestFuture_WaitTimeoutDoesNotCancel(t *testing.T) {
	l := newTestLane(t, KindBuild)
	started := make(chan struct{})
	release := make(chan struct{})
	f := Submit(l, "slow", blocker(started, release))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, StatusRunning, f.Status())

	_, err = f.Result()
	assert.ErrorIs(t, err, ErrPending)

	close(release)
	v, err := f.Wait(waitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestFailed(t *testing.T) {
	f := Failed[string](offerr.ErrNotActivated)
	_, err := f.Wait(context.Background())
	assert.ErrorIs(t, err, offerr.ErrNotActivated)
	assert.Equal(t, StatusDone, f.Status())
	assert.False(t, f.Cancel())
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "queued", StatusQueued.String())
	assert.Equal(t, "running", StatusRunning.String())
	assert.Equal(t, "done", StatusDone.String())
	assert.Equal(t, "cancelled", StatusCancelled.String())
	assert.Equal(t, "unknown", Status(42).String())
}

func TestScheduler_Lane(t *testing.T) {
	s := NewScheduler(logging.Discard())
	defer func() { _ = s.Close(context.Background()) }()

	assert.Same(t, s.Build(), s.Lane(KindBuild))
	assert.Same(t, s.Search(), s.Lane(KindSearch))
	assert.Nil(t, s.Lane(Kind("other")))

	stats := s.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, KindBuild, stats[0].Kind)
	assert.Equal(t, KindSearch, stats[1].Kind)
}

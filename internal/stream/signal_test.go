package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for a value")
		panic("unreachable")
	}
}

func TestWatchDeliversCurrentThenUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := Of(1)
	ch := s.Watch(ctx)
	assert.Equal(t, 1, recv(t, ch))

	s.Set(2)
	assert.Equal(t, 2, recv(t, ch))
}

func TestWatchCoalescesToLatest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New[int]()
	ch := s.Watch(ctx)

	// No receiver is waiting: intermediate values may be skipped, but the
	// newest must arrive.
	for i := 1; i <= 100; i++ {
		s.Set(i)
	}
	for v := range ch {
		if v == 100 {
			return
		}
		require.Less(t, v, 100)
	}
	t.Fatalf("never saw the final value")
}

func TestWatchClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := Of("x")
	ch := s.Watch(ctx)
	recv(t, ch)
	cancel()

	for range ch {
	}
}

func TestEmptySignalBlocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New[int]()
	ch := s.Watch(ctx)
	select {
	case v := <-ch:
		t.Fatalf("empty signal delivered %v", v)
	case <-time.After(50 * time.Millisecond):
	}

	s.Set(7)
	assert.Equal(t, 7, recv(t, ch))
}

func TestMap(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := Of(2)
	out := Map(ctx, in, func(v int) int { return v * 10 })
	ch := out.Watch(ctx)
	assert.Equal(t, 20, recv(t, ch))

	in.Set(3)
	for v := range ch {
		if v == 30 {
			return
		}
	}
	t.Fatalf("mapped value never arrived")
}

func TestCombine2JoinsLatest(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := New[int]()
	b := New[string]()
	out := Combine2(ctx, a, b, func(n int, s string) string {
		return s + ":" + string(rune('0'+n))
	})

	// Nothing fires until both inputs hold a value.
	_, ok := out.Get()
	assert.False(t, ok)

	a.Set(1)
	time.Sleep(20 * time.Millisecond)
	_, ok = out.Get()
	assert.False(t, ok)

	b.Set("x")
	ch := out.Watch(ctx)
	assert.Equal(t, "x:1", recv(t, ch))

	a.Set(2)
	for v := range ch {
		if v == "x:2" {
			return
		}
	}
	t.Fatalf("combined update never arrived")
}

func TestCombine3(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, b, c := Of(1), Of(2), Of(3)
	out := Combine3(ctx, a, b, c, func(x, y, z int) int { return x + y + z })
	v, err := First(ctx, out, func(int) bool { return true })
	require.NoError(t, err)
	assert.Equal(t, 6, v)
}

func TestDistinctFunc(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := New[int]()
	out := DistinctFunc(ctx, in, func(a, b int) bool { return a == b })
	ch := out.Watch(ctx)

	in.Set(1)
	assert.Equal(t, 1, recv(t, ch))

	// A repeat does not fire; the next change does.
	in.Set(1)
	in.Set(2)
	assert.Equal(t, 2, recv(t, ch))
}

func TestFirst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := New[int]()
	go func() {
		for i := 1; i <= 5; i++ {
			s.Set(i)
			time.Sleep(5 * time.Millisecond)
		}
	}()
	v, err := First(ctx, s, func(v int) bool { return v >= 4 })
	require.NoError(t, err)
	assert.GreaterOrEqual(t, v, 4)
}

func TestFirstHonorsContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	s := Of(1)
	_, err := First(ctx, s, func(int) bool { return false })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

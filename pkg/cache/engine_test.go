package cache

import (
	"bytes"
	"log/slog"
	"math/big"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/suite"

	"github.com/mac-/eidetic/errors"
	"github.com/mac-/eidetic/pkg/clock"
)

type payload struct {
	Some     string
	SomeMore []int
	IsData   bool
	Date     time.Time
	Sub      *sub
}

type sub struct {
	Obj string
}

func newPayload() payload {
	return payload{
		Some:     "data",
		SomeMore: []int{1, 2, 3},
		IsData:   false,
		Date:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Sub:      &sub{Obj: "fnord"},
	}
}

type removalEvent struct {
	key    string
	reason RemovalReason
}

type EngineSuite struct {
	suite.Suite
	clock *clock.Fake
	cache *Engine[any]
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.clock = clock.NewFake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s.cache = s.newCache()
}

func (s *EngineSuite) newCache(opts ...Option[any]) *Engine[any] {
	all := append([]Option[any]{WithClock[any](s.clock)}, opts...)
	c, err := New[any](all...)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = c.Close() })
	return c
}

func (s *EngineSuite) put(c *Engine[any], key string, value any, opts ...PutOption) {
	ok, err := c.Put(key, value, opts...)
	s.Require().NoError(err)
	s.Require().True(ok, "put %q", key)
}

func (s *EngineSuite) TestPutGetRoundTrip() {
	s.put(s.cache, "k", newPayload())

	got, ok := s.cache.Get("k")
	s.Require().True(ok)
	s.Empty(cmp.Diff(newPayload(), got))
}

func (s *EngineSuite) TestRoundTripKeepsUnexportedState() {
	addr := netip.MustParseAddr("10.1.2.3")
	amount := big.NewInt(42)
	s.put(s.cache, "addr", addr)
	s.put(s.cache, "amount", amount)

	got, ok := s.cache.Get("addr")
	s.Require().True(ok)
	gotAddr, ok := got.(netip.Addr)
	s.Require().True(ok)
	s.Equal(addr, gotAddr)
	s.Equal("10.1.2.3", gotAddr.String())

	got, ok = s.cache.Get("amount")
	s.Require().True(ok)
	gotAmount, ok := got.(*big.Int)
	s.Require().True(ok)
	s.NotSame(amount, gotAmount)
	s.Zero(amount.Cmp(gotAmount))

	gotAmount.SetInt64(7)
	again, _ := s.cache.Get("amount")
	s.Equal("42", again.(*big.Int).String())
}

func (s *EngineSuite) TestPutStoresCopy() {
	original := newPayload()
	s.put(s.cache, "k", original)

	original.Some = "changed"
	original.SomeMore[0] = 99
	original.Sub.Obj = "changed"

	got, ok := s.cache.Get("k")
	s.Require().True(ok)
	s.Empty(cmp.Diff(newPayload(), got))
}

func (s *EngineSuite) TestGetReturnsCopy() {
	s.put(s.cache, "k", &sub{Obj: "fnord"})

	first, ok := s.cache.Get("k")
	s.Require().True(ok)
	first.(*sub).Obj = "mutated"

	second, ok := s.cache.Get("k")
	s.Require().True(ok)
	s.Equal("fnord", second.(*sub).Obj)
}

func (s *EngineSuite) TestHitMissAccounting() {
	s.put(s.cache, "k", newPayload())

	_, ok := s.cache.Get("k")
	s.True(ok)
	_, ok = s.cache.Get("missing")
	s.False(ok)

	s.Equal(int64(1), s.cache.Hits())
	s.Equal(int64(1), s.cache.Misses())
	s.Equal(int64(2), s.cache.TotalRequests())
	s.Equal(1, s.cache.Size())
}

func (s *EngineSuite) TestMissOnEmptyCache() {
	got, ok := s.cache.Get("nothing")
	s.False(ok)
	s.Nil(got)
	s.Equal(int64(0), s.cache.Hits())
	s.Equal(int64(1), s.cache.Misses())
}

func (s *EngineSuite) TestZeroValuesAreDistinguishable() {
	values := map[string]any{
		"false": false,
		"zero":  0,
		"empty": "",
		"slice": []int{},
	}
	for key, value := range values {
		s.put(s.cache, key, value, WithDuration(time.Minute))
	}

	for key, want := range values {
		got, ok := s.cache.Get(key)
		s.True(ok, key)
		s.Equal(want, got, key)
	}
}

func (s *EngineSuite) TestAbsoluteExpiry() {
	s.put(s.cache, "k", "v", WithDuration(time.Second))

	s.clock.Advance(999 * time.Millisecond)
	_, ok := s.cache.Get("k")
	s.True(ok)

	s.clock.Advance(time.Millisecond)
	_, ok = s.cache.Get("k")
	s.False(ok)
	s.Equal(0, s.cache.Size())
	s.Equal(int64(1), s.cache.Stats().Expirations())
}

func (s *EngineSuite) TestDefaultDurationIsOneSecond() {
	s.put(s.cache, "k", "v")

	s.clock.Advance(900 * time.Millisecond)
	s.Equal(1, s.cache.Size())

	s.clock.Advance(100 * time.Millisecond)
	s.Equal(0, s.cache.Size())
}

func (s *EngineSuite) TestAbsoluteExpiryIgnoresReads() {
	s.put(s.cache, "k", "v", WithDuration(time.Second))

	s.clock.Advance(500 * time.Millisecond)
	_, ok := s.cache.Get("k")
	s.True(ok)

	s.clock.Advance(500 * time.Millisecond)
	_, ok = s.cache.Get("k")
	s.False(ok)
}

func (s *EngineSuite) TestSlidingExpiry() {
	s.put(s.cache, "k", "v", WithDuration(time.Second), WithSlidingExpiration(true))

	s.clock.Advance(500 * time.Millisecond)
	_, ok := s.cache.Get("k")
	s.True(ok)

	// 1.2s after the put, 700ms after the last read
	s.clock.Advance(700 * time.Millisecond)
	_, ok = s.cache.Get("k")
	s.True(ok)

	s.clock.Advance(time.Second)
	_, ok = s.cache.Get("k")
	s.False(ok)
}

func (s *EngineSuite) TestSlidingByDefault() {
	c := s.newCache(WithSlidingByDefault[any](true), WithDefaultDuration[any](2*time.Second))
	s.put(c, "k", "v")

	for i := 0; i < 5; i++ {
		s.clock.Advance(1500 * time.Millisecond)
		_, ok := c.Get("k")
		s.Require().True(ok, "read %d", i)
	}

	s.clock.Advance(2 * time.Second)
	s.Equal(0, c.Size())
}

func (s *EngineSuite) TestOverwriteReplacesValueAndTimer() {
	s.put(s.cache, "k", "v1", WithDuration(time.Second))
	s.clock.Advance(800 * time.Millisecond)
	s.put(s.cache, "k", "v2", WithDuration(time.Second))
	s.Equal(1, s.clock.Pending(), "old expiry must be cancelled")

	s.clock.Advance(400 * time.Millisecond)
	got, ok := s.cache.Get("k")
	s.Require().True(ok)
	s.Equal("v2", got)
	s.Equal(1, s.cache.Size())

	s.clock.Advance(600 * time.Millisecond)
	_, ok = s.cache.Get("k")
	s.False(ok)
}

func (s *EngineSuite) TestZeroDurationKeepsRemainingLifetime() {
	s.put(s.cache, "k", "v1", WithDuration(3*time.Second))
	s.clock.Advance(2 * time.Second)

	s.put(s.cache, "k", "v2", WithDuration(0))
	s.Equal(1, s.clock.Pending(), "existing expiry is kept, not rescheduled")
	s.Equal(1, s.cache.TTL("k"))

	got, ok := s.cache.Get("k")
	s.Require().True(ok)
	s.Equal("v2", got)

	s.clock.Advance(999 * time.Millisecond)
	s.Equal(1, s.cache.Size())

	s.clock.Advance(time.Millisecond)
	s.Equal(0, s.cache.Size())
}

func (s *EngineSuite) TestZeroDurationKeepsSlidingDeadline() {
	s.put(s.cache, "k", "v1", WithDuration(10*time.Second), WithSlidingExpiration(true))
	s.clock.Advance(4 * time.Second)
	_, ok := s.cache.Get("k")
	s.Require().True(ok)
	s.clock.Advance(2 * time.Second)

	s.put(s.cache, "k", "v2", WithDuration(0), WithSlidingExpiration(true))
	s.Equal(8, s.cache.TTL("k"), "remaining time counts from the last read")

	s.clock.Advance(8*time.Second - time.Millisecond)
	s.Equal(1, s.cache.Size())
	s.clock.Advance(time.Millisecond)
	s.Equal(0, s.cache.Size())
}

func (s *EngineSuite) TestZeroDurationOnNewKeyExpiresImmediately() {
	s.put(s.cache, "k", "v", WithDuration(0))
	s.Equal(1, s.cache.Size())

	s.clock.Flush()
	_, ok := s.cache.Get("k")
	s.False(ok)
}

func (s *EngineSuite) TestNegativeDurationClampsToZero() {
	s.put(s.cache, "k", "v", WithDuration(-5*time.Second))

	s.clock.Flush()
	s.Equal(0, s.cache.Size())
}

func (s *EngineSuite) TestDurationClampsToMax() {
	s.put(s.cache, "k", "v", WithDuration(MaxDuration+time.Hour))

	s.Equal(2147483, s.cache.TTL("k"))
}

func (s *EngineSuite) TestLastPutOptionWins() {
	s.put(s.cache, "k", "v",
		WithSlidingExpiration(true), WithSlidingExpiration(false),
		WithDuration(time.Minute), WithDuration(2*time.Second))
	s.Equal(2, s.cache.TTL("k"))

	s.clock.Advance(time.Second)
	_, ok := s.cache.Get("k")
	s.True(ok)

	s.clock.Advance(time.Second)
	_, ok = s.cache.Get("k")
	s.False(ok, "absolute expiry is not refreshed by the read")
}

func (s *EngineSuite) TestTTL() {
	s.put(s.cache, "k", "v", WithDuration(10*time.Second))
	s.Equal(10, s.cache.TTL("k"))

	s.clock.Advance(100 * time.Millisecond)
	s.Equal(9, s.cache.TTL("k"), "elapsed time rounds up")

	s.clock.Advance(1900 * time.Millisecond)
	s.Equal(8, s.cache.TTL("k"))

	s.Equal(0, s.cache.TTL("missing"))
}

func (s *EngineSuite) TestTTLSlidingCountsFromLastRead() {
	s.put(s.cache, "k", "v", WithDuration(10*time.Second), WithSlidingExpiration(true))

	s.clock.Advance(3 * time.Second)
	s.Equal(7, s.cache.TTL("k"))

	_, ok := s.cache.Get("k")
	s.Require().True(ok)
	s.Equal(10, s.cache.TTL("k"))
}

func (s *EngineSuite) TestTTLDoesNotCountAsRequest() {
	s.put(s.cache, "k", "v", WithDuration(time.Minute))
	_ = s.cache.TTL("k")
	_ = s.cache.TTL("missing")

	s.Equal(int64(0), s.cache.TotalRequests())
}

func (s *EngineSuite) TestRejectsWhenFull() {
	c := s.newCache(WithMaxSize[any](1))
	s.put(c, "a", "x", WithDuration(time.Minute))

	ok, err := c.Put("b", "y", WithDuration(time.Minute))
	s.NoError(err)
	s.False(ok)

	_, found := c.Get("b")
	s.False(found)
	got, found := c.Get("a")
	s.True(found)
	s.Equal("x", got)
	s.Equal(int64(1), c.Stats().Rejections())
	s.Equal(1, s.clock.Pending(), "rejected put must not schedule anything")
}

func (s *EngineSuite) TestOverwriteAllowedWhenFull() {
	c := s.newCache(WithMaxSize[any](1))
	s.put(c, "a", "x", WithDuration(time.Minute))
	s.put(c, "a", "z", WithDuration(time.Minute))

	got, ok := c.Get("a")
	s.True(ok)
	s.Equal("z", got)
}

func (s *EngineSuite) TestCanPutWhenFullEvictsDeferred() {
	c := s.newCache(WithMaxSize[any](1), WithCanPutWhenFull[any](true))
	s.put(c, "a", "x", WithDuration(time.Minute))
	s.clock.Advance(10 * time.Millisecond)
	s.put(c, "b", "y", WithDuration(time.Minute))

	s.Equal(2, c.Size(), "eviction runs after put returns")

	s.clock.Flush()
	s.Equal(1, c.Size())
	_, ok := c.Get("a")
	s.False(ok)
	got, ok := c.Get("b")
	s.True(ok)
	s.Equal("y", got)
	s.Equal(int64(1), c.Stats().Evictions())
}

func (s *EngineSuite) TestEvictsLeastRecentlyUsed() {
	c := s.newCache(WithMaxSize[any](2), WithCanPutWhenFull[any](true))
	s.put(c, "a", 1, WithDuration(time.Minute))
	s.clock.Advance(time.Millisecond)
	s.put(c, "b", 2, WithDuration(time.Minute))
	s.clock.Advance(time.Millisecond)
	_, _ = c.Get("a")
	s.clock.Advance(time.Millisecond)
	s.put(c, "c", 3, WithDuration(time.Minute))

	s.clock.Flush()
	s.ElementsMatch([]string{"a", "c"}, c.Keys())
}

func (s *EngineSuite) TestEvictionTiesFollowAccessOrder() {
	c := s.newCache(WithMaxSize[any](2), WithCanPutWhenFull[any](true))
	s.put(c, "a", 1, WithDuration(time.Minute))
	s.put(c, "b", 2, WithDuration(time.Minute))
	s.put(c, "c", 3, WithDuration(time.Minute))

	s.clock.Flush()
	s.ElementsMatch([]string{"b", "c"}, c.Keys())
}

func (s *EngineSuite) TestEvictionOncePerOverflowingPut() {
	c := s.newCache(WithMaxSize[any](1), WithCanPutWhenFull[any](true))
	s.put(c, "a", 1, WithDuration(time.Minute))
	s.put(c, "b", 2, WithDuration(time.Minute))
	s.put(c, "c", 3, WithDuration(time.Minute))
	s.Equal(3, c.Size())

	s.clock.Flush()
	s.Equal([]string{"c"}, c.Keys())
	s.Equal(int64(2), c.Stats().Evictions())
}

func (s *EngineSuite) TestEvictionSkippedWhenBackWithinBounds() {
	c := s.newCache(WithMaxSize[any](1), WithCanPutWhenFull[any](true))
	s.put(c, "a", 1, WithDuration(time.Minute))
	s.put(c, "b", 2, WithDuration(time.Minute))
	s.True(c.Delete("a"))

	s.clock.Flush()
	s.Equal([]string{"b"}, c.Keys())
	s.Equal(int64(0), c.Stats().Evictions())
}

func (s *EngineSuite) TestDelete() {
	s.put(s.cache, "k", "v", WithDuration(time.Minute))

	s.True(s.cache.Delete("k"))
	s.False(s.cache.Delete("k"))
	s.Equal(0, s.clock.Pending(), "expiry must be cancelled")

	_, ok := s.cache.Get("k")
	s.False(ok)
	s.Equal(int64(1), s.cache.Stats().Deletes())
}

func (s *EngineSuite) TestClearKeepsCounters() {
	s.put(s.cache, "a", 1, WithDuration(time.Minute))
	s.put(s.cache, "b", 2, WithDuration(time.Minute))
	_, _ = s.cache.Get("a")

	s.cache.Clear()

	s.Equal(0, s.cache.Size())
	s.Equal(0, s.clock.Pending())
	s.Equal(int64(1), s.cache.Hits())
	s.Equal(int64(0), s.cache.Misses())
}

func (s *EngineSuite) TestKeys() {
	s.put(s.cache, "a", 1, WithDuration(time.Minute))
	s.put(s.cache, "b", 2, WithDuration(time.Minute))

	s.ElementsMatch([]string{"a", "b"}, s.cache.Keys())
}

func (s *EngineSuite) TestInvalidArguments() {
	var nilPayload *payload
	cases := map[string]struct {
		key   string
		value any
	}{
		"empty key":   {key: "", value: 1},
		"nil value":   {key: "k", value: nil},
		"nil pointer": {key: "k", value: nilPayload},
		"nil slice":   {key: "k", value: []int(nil)},
		"nil map":     {key: "k", value: map[string]int(nil)},
	}

	for name, tc := range cases {
		ok, err := s.cache.Put(tc.key, tc.value)
		s.False(ok, name)
		s.Require().Error(err, name)
		s.True(errors.IsInvalid(err), name)
		s.ErrorIs(err, errors.ErrInvalidArgument, name)
	}
	s.Equal(0, s.cache.Size())
	s.Equal(int64(0), s.cache.Stats().Sets())
}

func (s *EngineSuite) TestClose() {
	s.put(s.cache, "k", "v", WithDuration(time.Minute))

	s.NoError(s.cache.Close())
	s.Equal(0, s.clock.Pending())

	ok, err := s.cache.Put("k", "v")
	s.False(ok)
	s.True(errors.IsFatal(err))
	s.ErrorIs(err, errors.ErrClosed)

	_, found := s.cache.Get("k")
	s.False(found)
	s.NoError(s.cache.Close(), "close is idempotent")
}

func (s *EngineSuite) TestCloseCancelsPendingEviction() {
	c := s.newCache(WithMaxSize[any](1), WithCanPutWhenFull[any](true))
	s.put(c, "a", 1, WithDuration(time.Minute))
	s.put(c, "b", 2, WithDuration(time.Minute))

	s.NoError(c.Close())
	s.Equal(0, s.clock.Pending())
}

func (s *EngineSuite) TestEvictionCallbackReasons() {
	var (
		mu     sync.Mutex
		events []removalEvent
	)
	c := s.newCache(
		WithMaxSize[any](2),
		WithCanPutWhenFull[any](true),
		WithEvictionCallback[any](func(key string, _ any, reason RemovalReason) {
			mu.Lock()
			events = append(events, removalEvent{key: key, reason: reason})
			mu.Unlock()
		}),
	)

	s.put(c, "expires", 1, WithDuration(time.Second))
	s.put(c, "deleted", 2, WithDuration(time.Minute))
	s.put(c, "deleted", 3, WithDuration(time.Minute)) // overwrite, no callback
	s.True(c.Delete("deleted"))

	s.clock.Advance(time.Second)

	s.put(c, "old", 4, WithDuration(time.Minute))
	s.clock.Advance(time.Millisecond)
	s.put(c, "mid", 5, WithDuration(time.Minute))
	s.clock.Advance(time.Millisecond)
	s.put(c, "new", 6, WithDuration(time.Minute))
	s.clock.Flush()

	c.Clear()

	mu.Lock()
	defer mu.Unlock()
	s.Equal([]removalEvent{
		{key: "deleted", reason: RemovalDeleted},
		{key: "expires", reason: RemovalExpired},
		{key: "old", reason: RemovalEvicted},
	}, events[:3])
	s.ElementsMatch([]removalEvent{
		{key: "mid", reason: RemovalCleared},
		{key: "new", reason: RemovalCleared},
	}, events[3:])
}

func (s *EngineSuite) TestEvictionCallbackReceivesCopy() {
	original := &sub{Obj: "fnord"}
	var seen *sub
	c := s.newCache(WithEvictionCallback[any](func(_ string, value any, _ RemovalReason) {
		seen = value.(*sub)
	}))
	s.put(c, "k", original, WithDuration(time.Minute))

	s.True(c.Delete("k"))
	s.Require().NotNil(seen)
	s.Equal("fnord", seen.Obj)
	s.NotSame(original, seen)
}

func (s *EngineSuite) TestSupersededExpiryIsNoop() {
	s.put(s.cache, "k", "v1", WithDuration(time.Second))

	s.cache.mu.Lock()
	stale := s.cache.items["k"].expiry
	s.cache.mu.Unlock()

	s.put(s.cache, "k", "v2", WithDuration(time.Minute))
	s.cache.expire("k", stale)

	got, ok := s.cache.Get("k")
	s.True(ok)
	s.Equal("v2", got)
}

func (s *EngineSuite) TestPeakSize() {
	s.put(s.cache, "a", 1, WithDuration(time.Minute))
	s.put(s.cache, "b", 2, WithDuration(time.Minute))
	s.True(s.cache.Delete("a"))

	s.Equal(int64(1), s.cache.Stats().CurrentSize())
	s.Equal(int64(2), s.cache.Stats().MaxSize())
}

func (s *EngineSuite) TestLogging() {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: LevelTrace}))
	c := s.newCache(WithLogger[any](logger), WithName[any]("sessions"), WithMaxSize[any](1))

	s.put(c, "k", "v", WithDuration(time.Minute))
	_, _ = c.Get("k")
	_, _ = c.Put("other", "v")
	_, _ = c.Put("", "v")

	out := buf.String()
	s.Contains(out, "attempting to put entry")
	s.Contains(out, "cache hit")
	s.Contains(out, "cache full, put rejected")
	s.Contains(out, "level=WARN")
	s.Contains(out, "cache=sessions")
	s.Contains(out, "component=cache")
}

func TestNew_RejectsNonPositiveMaxSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		c, err := New[string](WithMaxSize[string](size))
		if err == nil {
			t.Fatalf("expected error for max size %d", size)
		}
		if c != nil {
			t.Fatalf("expected nil cache for max size %d", size)
		}
		if !errors.IsInvalid(err) {
			t.Errorf("expected invalid error, got %v", err)
		}
	}
}

func TestEngine_ConcurrentAccess(t *testing.T) {
	c, err := New[[]int](
		WithMaxSize[[]int](64),
		WithCanPutWhenFull[[]int](true),
		WithDefaultDuration[[]int](50*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				key := string(rune('a' + (worker*7+i)%26))
				if _, ok := c.Get(key); !ok {
					_, _ = c.Put(key, []int{worker, i}, WithSlidingExpiration(i%2 == 0))
				}
				if i%50 == 0 {
					_ = c.TTL(key)
					_ = c.Keys()
				}
				if i%97 == 0 {
					c.Delete(key)
				}
			}
		}(w)
	}
	wg.Wait()

	if got, want := c.Misses(), c.TotalRequests()-c.Hits(); got != want {
		t.Errorf("misses %d != total-hits %d", got, want)
	}
	if c.TotalRequests() != 8*500 {
		t.Errorf("expected %d requests, got %d", 8*500, c.TotalRequests())
	}
}

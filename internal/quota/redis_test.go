package quota

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T, limit int64) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb, limit)
}

func TestRedisStoreReserveUntilLimit(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t, 2)

	for i := 0; i < 2; i++ {
		ok, err := s.Reserve(ctx)
		if err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("reserve %d should succeed under the limit", i)
		}
	}

	ok, _ := s.Reserve(ctx)
	if ok {
		t.Error("reserve should fail once the limit is reached")
	}

	state, err := s.Usage(ctx)
	if err != nil {
		t.Fatalf("usage: %v", err)
	}
	if state.UsedToday != 2 || state.DailyLimit != 2 {
		t.Errorf("expected 2/2, got %d/%d", state.UsedToday, state.DailyLimit)
	}
}

func TestRedisStoreReleaseRefundsSlot(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t, 1)

	if ok, _ := s.Reserve(ctx); !ok {
		t.Fatal("first reserve should succeed")
	}
	if err := s.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := s.Reserve(ctx); !ok {
		t.Error("reserve should succeed again after release")
	}
}

func TestRedisStoreReleaseNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t, 5)

	if err := s.Release(ctx); err != nil {
		t.Fatalf("release on empty counter: %v", err)
	}
	state, _ := s.Usage(ctx)
	if state.UsedToday != 0 {
		t.Errorf("expected 0 used, got %d", state.UsedToday)
	}
}

func TestRedisStoreReset(t *testing.T) {
	ctx := context.Background()
	s := newTestRedisStore(t, 3)
	s.Reserve(ctx)
	s.Reserve(ctx)

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	state, _ := s.Usage(ctx)
	if state.UsedToday != 0 {
		t.Errorf("expected 0 used after reset, got %d", state.UsedToday)
	}
}

func TestRedisStoreNilClientFailsOpen(t *testing.T) {
	ctx := context.Background()
	s := NewRedisStore(nil, 10)

	ok, err := s.Reserve(ctx)
	if err != nil || !ok {
		t.Errorf("nil client should allow every reserve, got ok=%v err=%v", ok, err)
	}
	if err := s.Release(ctx); err != nil {
		t.Errorf("nil client release: %v", err)
	}
	state, _ := s.Usage(ctx)
	if state.DailyLimit != 10 {
		t.Errorf("expected limit 10, got %d", state.DailyLimit)
	}
}

func TestRedisStoreFailsOpenWhenRedisDown(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	s := NewRedisStore(rdb, 1)

	mr.Close()

	ok, err := s.Reserve(ctx)
	if err != nil {
		t.Fatalf("reserve should not surface redis errors: %v", err)
	}
	if !ok {
		t.Error("reserve should fail open when redis is unreachable")
	}
}

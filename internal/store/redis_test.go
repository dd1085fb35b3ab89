package store

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/MJE43/mapgame-session-go/internal/engine"
)

// TestRedisSessions requires a running Redis at MAPGAME_TEST_REDIS_ADDR.
func TestRedisSessions(t *testing.T) {
	addr := os.Getenv("MAPGAME_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping Redis integration test: MAPGAME_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	r := NewRedis(addr, "", 0, time.Minute)
	defer r.Close()
	if err := r.Ping(ctx); err != nil {
		t.Skipf("Skipping Redis integration test: %v", err)
	}

	st := sampleState("redis-test-" + time.Now().Format("150405.000000"))
	if err := r.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := r.Load(ctx, st.Token)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got.UserChoices, st.UserChoices) || *got.CurrentPromptIndex != 1 {
		t.Errorf("session not round-tripped: %+v", got)
	}

	ttl, err := r.client.TTL(ctx, r.key(st.Token)).Result()
	if err != nil || ttl <= 0 || ttl > time.Minute {
		t.Errorf("ttl = %v, %v; want (0, 1m]", ttl, err)
	}

	if err := r.Delete(ctx, st.Token); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := r.Delete(ctx, st.Token); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("second Delete = %v, want ErrNotFound", err)
	}
	if _, err := r.Load(ctx, st.Token); !errors.Is(err, engine.ErrNotFound) {
		t.Errorf("Load after delete = %v, want ErrNotFound", err)
	}
}

// TestRedisLock requires a running Redis at MAPGAME_TEST_REDIS_ADDR.
func TestRedisLock(t *testing.T) {
	addr := os.Getenv("MAPGAME_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Skipping Redis integration test: MAPGAME_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	first := NewRedis(addr, "", 0, time.Minute)
	defer first.Close()
	if err := first.Ping(ctx); err != nil {
		t.Skipf("Skipping Redis integration test: %v", err)
	}
	// a second client stands in for another server instance
	second := NewRedis(addr, "", 0, time.Minute)
	defer second.Close()

	token := "redis-lock-" + time.Now().Format("150405.000000")
	unlock, err := first.Lock(ctx, token)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	_, err = second.Lock(waitCtx, token)
	cancel()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second Lock while held = %v, want deadline exceeded", err)
	}

	unlock()
	unlock2, err := second.Lock(ctx, token)
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	unlock2()
}

func TestRedisUnreachable(t *testing.T) {
	r := NewRedis("127.0.0.1:1", "", 0, 0)
	defer r.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := r.Load(ctx, "tok")
	if err == nil || errors.Is(err, engine.ErrNotFound) {
		t.Errorf("Load against a dead server = %v, want a connection error", err)
	}
}

func TestRedisLockUnreachable(t *testing.T) {
	r := NewRedis("127.0.0.1:1", "", 0, 0)
	defer r.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := r.Lock(ctx, "tok"); err == nil {
		t.Error("Lock against a dead server should fail")
	}
}

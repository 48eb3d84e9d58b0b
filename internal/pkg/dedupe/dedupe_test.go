package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRedisGuard_ClaimOnce(t *testing.T) {
	client, _ := setupTestRedis(t)
	g := NewRedisGuard(client, time.Hour)
	ctx := context.Background()
	key := Key("ses", "m1", "bounced", "2024-01-01T00:00:00Z")

	first, err := g.Claim(ctx, key)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if !first {
		t.Fatal("first Claim() = false, want true")
	}

	second, err := g.Claim(ctx, key)
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if second {
		t.Error("second Claim() = true, want false")
	}
}

func TestRedisGuard_ReleaseAllowsRetry(t *testing.T) {
	client, _ := setupTestRedis(t)
	g := NewRedisGuard(client, time.Hour)
	ctx := context.Background()

	g.Claim(ctx, "k")
	if err := g.Release(ctx, "k"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	ok, _ := g.Claim(ctx, "k")
	if !ok {
		t.Error("Claim() after Release() = false, want true")
	}
}

func TestRedisGuard_Expires(t *testing.T) {
	client, mr := setupTestRedis(t)
	g := NewRedisGuard(client, time.Minute)
	ctx := context.Background()

	g.Claim(ctx, "k")
	mr.FastForward(2 * time.Minute)

	ok, _ := g.Claim(ctx, "k")
	if !ok {
		t.Error("Claim() after TTL = false, want true")
	}
}

func TestKey_Stable(t *testing.T) {
	if Key("a", "b") != Key("a", "b") {
		t.Error("Key() not deterministic")
	}
	if Key("a", "bc") == Key("ab", "c") {
		t.Error("Key() collides across part boundaries")
	}
	if len(Key("x")) != 64 {
		t.Errorf("Key() length = %d, want 64", len(Key("x")))
	}
}

func TestNop(t *testing.T) {
	var g Guard = Nop{}
	for i := 0; i < 2; i++ {
		ok, err := g.Claim(context.Background(), "k")
		if err != nil || !ok {
			t.Fatalf("Nop.Claim() = %v, %v", ok, err)
		}
	}
}

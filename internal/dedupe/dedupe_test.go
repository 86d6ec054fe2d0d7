package dedupe

import (
	"context"
	"os"
	"testing"
	"time"

	"tradechat-go/internal/clock"
	"tradechat-go/internal/models"

	"github.com/google/uuid"
)

func TestMemoryGuard(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	guard := NewMemoryGuard(clk, time.Hour)
	ctx := context.Background()

	first, _ := guard.FirstDelivery(ctx, "wamid.1")
	if !first {
		t.Fatal("Expected first delivery")
	}
	again, _ := guard.FirstDelivery(ctx, "wamid.1")
	if again {
		t.Error("Expected redelivery to be detected")
	}

	clk.Advance(time.Hour)
	afterTTL, _ := guard.FirstDelivery(ctx, "wamid.1")
	if !afterTTL {
		t.Error("Expected id to be forgotten after the TTL")
	}
	if guard.Len() != 1 {
		t.Errorf("Len() = %d, want 1", guard.Len())
	}
}

func TestMemoryGuard_Release(t *testing.T) {
	guard := NewMemoryGuard(nil, time.Hour)
	ctx := context.Background()

	guard.FirstDelivery(ctx, "wamid.2")
	if err := guard.Release(ctx, "wamid.2"); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if ok, _ := guard.FirstDelivery(ctx, "wamid.2"); !ok {
		t.Error("Expected released id to be processed again")
	}
}

func TestMemoryGuard_CleanupEvictsExpired(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	guard := NewMemoryGuard(clk, time.Hour)
	ctx := context.Background()

	guard.FirstDelivery(ctx, "old")
	clk.Advance(30 * time.Minute)
	guard.FirstDelivery(ctx, "fresh")
	clk.Advance(45 * time.Minute)

	guard.Cleanup()
	if guard.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after cleanup", guard.Len())
	}
	if ok, _ := guard.FirstDelivery(ctx, "fresh"); ok {
		t.Error("Expected unexpired id to survive cleanup")
	}
}

func TestMemoryGuard_StartAndClose(t *testing.T) {
	guard := NewMemoryGuard(nil, time.Millisecond)
	guard.Start(context.Background(), time.Millisecond)
	guard.FirstDelivery(context.Background(), "wamid.3")

	deadline := time.Now().Add(time.Second)
	for guard.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if guard.Len() != 0 {
		t.Error("Expected cleanup loop to evict the expired id")
	}

	guard.Close()
	guard.Close()
}

func TestMemoryGuard_EmptyIdAlwaysProcessed(t *testing.T) {
	guard := NewMemoryGuard(nil, 0)
	for i := 0; i < 2; i++ {
		if ok, _ := guard.FirstDelivery(context.Background(), ""); !ok {
			t.Error("Expected messages without an id to be processed")
		}
	}
}

// Requires a running Redis; set REDIS_ADDR to enable.
func TestRedisGuard(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	guard, err := NewRedisGuard(ctx, models.RedisConfig{Addr: addr, Prefix: "tradechat:test:", DeliveryTTL: time.Minute})
	if err != nil {
		t.Fatalf("NewRedisGuard() error = %v", err)
	}
	defer guard.Close()

	id := uuid.New().String()
	if ok, err := guard.FirstDelivery(ctx, id); err != nil || !ok {
		t.Fatalf("FirstDelivery() = %v, %v", ok, err)
	}
	if ok, _ := guard.FirstDelivery(ctx, id); ok {
		t.Error("Expected redelivery to be detected")
	}
	if err := guard.Release(ctx, id); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if ok, _ := guard.FirstDelivery(ctx, id); !ok {
		t.Error("Expected released id to be processed again")
	}
}

func TestNewRedisGuard_RequiresAddr(t *testing.T) {
	if _, err := NewRedisGuard(context.Background(), models.RedisConfig{}); err == nil {
		t.Error("Expected error for empty address")
	}
}

package storage

import (
	"context"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
)

func getRedisStore(t *testing.T) *RedisAdapter {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	// A dedicated logical database keeps FlushDB safe.
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 9})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}

	t.Cleanup(func() { client.Close() })
	return NewRedisAdapter(client)
}

func TestRedisResourceStore(t *testing.T) {
	runResourceStoreSuite(t, getRedisStore(t))
}

func TestRedisTombstoneSetRetainsDeletedIDs(t *testing.T) {
	store := getRedisStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "doomed", "")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := store.Delete(ctx, created.ID, 1); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	member, err := store.client.SIsMember(ctx, tombstoneKey, created.ID).Result()
	if err != nil {
		t.Fatalf("sismember failed: %v", err)
	}
	if !member {
		t.Error("deleted id must be retained in the tombstone set")
	}

	ids, err := store.client.LRange(ctx, orderKey, 0, -1).Result()
	if err != nil {
		t.Fatalf("lrange failed: %v", err)
	}
	for _, id := range ids {
		if id == created.ID {
			t.Error("deleted id must leave the creation-order list")
		}
	}
}

package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisLockPrefix = "jobmatch:testutil:db_lock:"

// RedisCandidates lists the addresses probed for a test Redis, in order. REDIS_ADDR wins when set.
func RedisCandidates() []string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return []string{addr}
	}
	return []string{"localhost:56379", "redis:6379", "localhost:6379"}
}

// SetupTestRedis returns a client on an otherwise unused logical database, flushed before use.
// Packages running in parallel reserve different databases through a lock key in DB 0.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()

	addr, ok := firstReachable(RedisCandidates())
	if !ok {
		skipOrFail(t, requireRedis(), "redis not available at %v", RedisCandidates())
		return nil
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: reserveRedisDB(t, addr)})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		skipOrFail(t, requireRedis(), "flush test redis at %s: %v", addr, err)
	}
	return client
}

func firstReachable(addrs []string) (string, bool) {
	for _, addr := range addrs {
		c := redis.NewClient(&redis.Options{Addr: addr})
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		err := c.Ping(ctx).Err()
		cancel()
		_ = c.Close()
		if err == nil {
			return addr, true
		}
	}
	return "", false
}

// reserveRedisDB honours TEST_REDIS_DB, otherwise claims the first free index in 1..15.
func reserveRedisDB(t TestingTB, addr string) int {
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
	}

	meta := redis.NewClient(&redis.Options{Addr: addr, DB: 0})
	defer func() { _ = meta.Close() }()

	owner := fmt.Sprintf("%d:%d", os.Getpid(), time.Now().UnixNano())
	for i := 1; i <= 15; i++ {
		key := redisLockPrefix + strconv.Itoa(i)
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		ok, err := meta.SetNX(ctx, key, owner, 30*time.Minute).Result()
		cancel()
		if err != nil || !ok {
			continue
		}
		t.Cleanup(func() {
			c := redis.NewClient(&redis.Options{Addr: addr, DB: 0})
			defer func() { _ = c.Close() }()
			delCtx, delCancel := context.WithTimeout(context.Background(), time.Second)
			defer delCancel()
			_ = c.Del(delCtx, key).Err()
		})
		return i
	}
	t.Logf("no free redis db on %s; sharing db 1", addr)
	return 1
}

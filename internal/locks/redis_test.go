package locks_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/locks"
)

func TestRedisLockerExcludesSecondHolder(t *testing.T) {
	url := os.Getenv("PAGECMS_TEST_REDIS_URL")
	if url == "" {
		t.Skip("PAGECMS_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	locker, err := locks.NewRedisLockerFromURL(ctx, url, locks.RedisOptions{
		Prefix:     "pagecms:test:" + uuid.NewString() + ":",
		LeaseTTL:   time.Second,
		RetryDelay: 5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	unlock, err := locker.Lock(ctx, "page")
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := locker.Lock(waitCtx, "page"); !errors.Is(err, locks.ErrLockUnavailable) {
		t.Fatalf("expected ErrLockUnavailable, got %v", err)
	}

	unlock()
	again, err := locker.Lock(ctx, "page")
	if err != nil {
		t.Fatalf("relock after release: %v", err)
	}
	again()
}

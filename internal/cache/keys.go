package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// BranchGenerationKey is bumped on every branch mutation; list keys embed
	// the current value so a bump orphans every cached list at once.
	BranchGenerationKey = "branches:version"

	branchListKeyFormat   = "branches:v%d:site:%d"
	branchDetailKeyFormat = "branches:v%d:site:%d:id:%d"
)

// BranchTTL is the freshness window for public branch reads.
const BranchTTL = 5 * time.Minute

func BranchListKey(generation int64, siteID uint) string {
	return fmt.Sprintf(branchListKeyFormat, generation, siteID)
}

func BranchDetailKey(generation int64, siteID, branchID uint) string {
	return fmt.Sprintf(branchDetailKeyFormat, generation, siteID, branchID)
}

// Generation reads a generation counter. A missing key is generation 0.
func Generation(ctx context.Context, rdb *redis.Client, key string) (int64, error) {
	if rdb == nil {
		return 0, nil
	}
	n, err := rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Bump advances a generation counter.
func Bump(ctx context.Context, rdb *redis.Client, key string) error {
	if rdb == nil {
		return nil
	}
	return rdb.Incr(ctx, key).Err()
}

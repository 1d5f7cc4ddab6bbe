package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb, err := NewClient(mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestAside_LoadsOnceThenHits(t *testing.T) {
	mr, rdb := setupRedis(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) ([]item, error) {
		calls++
		return []item{{ID: 1, Name: "Lagos"}}, nil
	}

	got, err := Aside(ctx, rdb, "test", "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, []item{{ID: 1, Name: "Lagos"}}, got)

	got, err = Aside(ctx, rdb, "test", "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, "Lagos", got[0].Name)
	assert.Equal(t, 1, calls)

	mr.FastForward(2 * time.Minute)
	_, err = Aside(ctx, rdb, "test", "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls, "expired entries reload")
}

func TestAside_LoadErrorIsNotCached(t *testing.T) {
	mr, rdb := setupRedis(t)
	boom := errors.New("boom")

	_, err := Aside(context.Background(), rdb, "test", "k", time.Minute, func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("k"))
}

func TestAside_NilClientAndZeroTTLBypass(t *testing.T) {
	calls := 0
	load := func(context.Context) (int, error) { calls++; return 7, nil }

	v, err := Aside(context.Background(), nil, "test", "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, rdb := setupRedis(t)
	_, err = Aside(context.Background(), rdb, "test", "k", 0, load)
	require.NoError(t, err)
	_, err = Aside(context.Background(), rdb, "test", "k", 0, load)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestAside_CorruptEntryReloads(t *testing.T) {
	mr, rdb := setupRedis(t)
	require.NoError(t, mr.Set("k", "{not json"))

	v, err := Aside(context.Background(), rdb, "test", "k", time.Minute, func(context.Context) (item, error) {
		return item{ID: 2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint(2), v.ID)
}

func TestGenerationAndBump(t *testing.T) {
	_, rdb := setupRedis(t)
	ctx := context.Background()

	gen, err := Generation(ctx, rdb, BranchGenerationKey)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	require.NoError(t, Bump(ctx, rdb, BranchGenerationKey))
	require.NoError(t, Bump(ctx, rdb, BranchGenerationKey))
	gen, err = Generation(ctx, rdb, BranchGenerationKey)
	require.NoError(t, err)
	assert.Equal(t, int64(2), gen)

	assert.Equal(t, "branches:v2:site:3", BranchListKey(gen, 3))
	assert.Equal(t, "branches:v2:site:3:id:9", BranchDetailKey(gen, 3, 9))

	gen, err = Generation(ctx, nil, BranchGenerationKey)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)
	assert.NoError(t, Bump(ctx, nil, BranchGenerationKey))
}

func TestNewClient_ParsesURL(t *testing.T) {
	c, err := NewClient("redis://localhost:6380/2")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", c.Options().Addr)
	assert.Equal(t, 2, c.Options().DB)

	_, err = NewClient("redis://bad host:x")
	assert.Error(t, err)
}

func TestInitRedis_UnreachableLeavesNilClient(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	InitRedis(addr)
	assert.Nil(t, GetClient())
}

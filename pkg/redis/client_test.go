package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/assetledger/pkg/config"
)

type fakeCommands struct {
	data map[string]string
}

func newFakeCommands() *fakeCommands { return &fakeCommands{data: map[string]string{}} }

func (f *fakeCommands) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCommands) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCommands) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeCommands) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (f *fakeCommands) Eval(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	if f.data[keys[0]] == fmt.Sprint(args[0]) {
		delete(f.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestSetNXAndDelIfValue(t *testing.T) {
	ctx := context.Background()
	client := &Client{cmds: newFakeCommands()}

	won, err := client.SetNX(ctx, "lease", "worker-a", time.Minute)
	require.NoError(t, err)
	require.True(t, won)
	won, err = client.SetNX(ctx, "lease", "worker-b", time.Minute)
	require.NoError(t, err)
	assert.False(t, won)

	removed, err := client.DelIfValue(ctx, "lease", "worker-b")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = client.DelIfValue(ctx, "lease", "worker-a")
	require.NoError(t, err)
	assert.True(t, removed)

	_, err = client.Get(ctx, "lease")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestDisconnectedClient(t *testing.T) {
	client := &Client{}
	assert.ErrorIs(t, client.Ping(context.Background()), errNotConnected)
	_, err := client.DelIfValue(context.Background(), "k", "v")
	assert.ErrorIs(t, err, errNotConnected)
	assert.NoError(t, client.Close())
}

func TestKeys(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "assetledger:idempotency:POST /inventory/move:abc", client.IdempotencyKey("POST /inventory/move", "abc"))
	assert.Equal(t, "assetledger:lock:cron-worker", client.LockKey("cron-worker"))
	assert.Equal(t, "assetledger:idempotency:scope", client.IdempotencyKey("scope", " "))
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{Address: "localhost:6379", PoolSize: 7, DB: 2, DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, time.Second, opts.DialTimeout)

	opts, err = optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6380/3", DB: 9})
	require.NoError(t, err)
	assert.Equal(t, 3, opts.DB)
}

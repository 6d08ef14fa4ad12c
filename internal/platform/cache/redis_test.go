package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// fakeCmdable answers GET, SET and DEL from a map. Any other command
// panics on the nil embedded interface.
type fakeCmdable struct {
	redis.Cmdable
	data   map[string]string
	ttl    map[string]time.Duration
	getErr error
}

func newFakeCmdable() *fakeCmdable {
	return &fakeCmdable{data: make(map[string]string), ttl: make(map[string]time.Duration)}
}

func (f *fakeCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	if f.getErr != nil {
		cmd.SetErr(f.getErr)
		return cmd
	}
	v, ok := f.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (f *fakeCmdable) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key)
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	default:
		f.data[key] = fmt.Sprint(v)
	}
	f.ttl[key] = expiration
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "del")
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func TestRedis_MissIsNotAnError(t *testing.T) {
	c := NewRedis(newFakeCmdable(), "", time.Minute)
	v, ok, err := c.Get(context.Background(), "5512345678")
	if err != nil {
		t.Fatalf("expected no error on miss, got %v", err)
	}
	if ok || v != nil {
		t.Errorf("expected miss, got %q", v)
	}
}

func TestRedis_SetGetDelete(t *testing.T) {
	rdb := newFakeCmdable()
	c := NewRedis(rdb, "test:client", 30*time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "5512345678", []byte(`{"nombre":"Ana"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := rdb.data["test:client:5512345678"]; !ok {
		t.Errorf("expected prefixed key, got %v", rdb.data)
	}
	if got := rdb.ttl["test:client:5512345678"]; got != 30*time.Minute {
		t.Errorf("expected ttl 30m, got %v", got)
	}

	v, ok, err := c.Get(ctx, "5512345678")
	if err != nil || !ok || string(v) != `{"nombre":"Ana"}` {
		t.Fatalf("expected hit, got %q ok=%v err=%v", v, ok, err)
	}

	if err := c.Delete(ctx, "5512345678"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "5512345678"); ok {
		t.Error("expected miss after delete")
	}
}

func TestRedis_GetErrorIsWrapped(t *testing.T) {
	rdb := newFakeCmdable()
	down := errors.New("connection refused")
	rdb.getErr = down
	_, ok, err := NewRedis(rdb, "", time.Minute).Get(context.Background(), "k")
	if ok || !errors.Is(err, down) {
		t.Errorf("expected wrapped error, got ok=%v err=%v", ok, err)
	}
}

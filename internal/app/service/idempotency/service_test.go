package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/billingsync/internal/models"
	"github.com/fatflowers/billingsync/internal/platform/db/dbtest"
	"github.com/fatflowers/billingsync/pkg/config"
)

const (
	testKey   = "6f1c2b9e-3d4a-4e5f-8a7b-1c2d3e4f5a6b"
	testScope = "user:u1"
)

func newTestService(t *testing.T) (*Service, *time.Time) {
	t.Helper()
	gdb := dbtest.New(t)
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	s := NewService(&config.Config{Idempotency: config.IdempotencyConfig{TTL: time.Hour, LockTimeout: time.Minute}}, gdb, zap.NewNop().Sugar())
	s.now = func() time.Time { return now }
	return s, &now
}

func TestHashBodyCanonical(t *testing.T) {
	a := HashBody([]byte(`{"b":1,"a":{"y":2,"x":[1,2]}}`))
	b := HashBody([]byte("{ \"a\": {\"x\": [1, 2], \"y\": 2},\n \"b\": 1 }"))
	require.Equal(t, a, b)
	require.Len(t, a, 64)

	require.NotEqual(t, a, HashBody([]byte(`{"b":2,"a":{"y":2,"x":[1,2]}}`)))
	// numbers keep their written form
	require.NotEqual(t, HashBody([]byte(`{"n":1.0}`)), HashBody([]byte(`{"n":1}`)))
	require.Equal(t, HashBody([]byte(`{"n":12345678901234567890}`)), HashBody([]byte(`{ "n" : 12345678901234567890 }`)))

	// non-JSON bodies hash raw bytes
	require.NotEqual(t, HashBody([]byte("a=1&b=2")), HashBody([]byte("b=2&a=1")))
	require.NotEqual(t, HashBody([]byte(`{"a":1} trailing`)), HashBody([]byte(`{"a":1}`)))
	require.Equal(t, HashBody(nil), HashBody([]byte{}))
}

func TestValidateKey(t *testing.T) {
	require.NoError(t, ValidateKey(testKey))
	for _, k := range []string{"abc", "6f1c2b9e3d4a4e5f8a7b1c2d3e4f5a6b", "6f1c2b9e-3d4a-4e5f-8a7b-1c2d3e4f5a6", "zz1c2b9e-3d4a-4e5f-8a7b-1c2d3e4f5a6b"} {
		require.ErrorIs(t, ValidateKey(k), ErrInvalidKey, k)
	}
}

func TestCheckKeyFlow(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	body := []byte(`{"product_id":"pro","fetch_token":"t"}`)

	res, err := s.CheckKey(ctx, testScope, "", body)
	require.NoError(t, err)
	require.True(t, res.Proceed)

	_, err = s.CheckKey(ctx, testScope, "not-a-uuid", body)
	require.ErrorIs(t, err, ErrInvalidKey)

	res, err = s.CheckKey(ctx, testScope, testKey, body)
	require.NoError(t, err)
	require.True(t, res.Proceed)

	resp := []byte(`{"code":0,"message":"ok","data":{"status":"active"}}`)
	require.NoError(t, s.StoreKey(ctx, testScope, testKey, body, 201, resp))

	res, err = s.CheckKey(ctx, testScope, testKey, []byte(`{"fetch_token":"t","product_id":"pro"}`))
	require.NoError(t, err)
	require.False(t, res.Proceed)
	require.NotNil(t, res.Cached)
	require.Equal(t, 201, res.Cached.StatusCode)
	require.Equal(t, resp, res.Cached.Body)

	res, err = s.CheckKey(ctx, testScope, testKey, []byte(`{"product_id":"other","fetch_token":"t"}`))
	require.NoError(t, err)
	require.True(t, res.Conflict)
	require.False(t, res.Proceed)
	require.Nil(t, res.Cached)
}

func TestStoreKeySkipsNon2xx(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	for _, code := range []int{400, 409, 429, 500, 302} {
		require.NoError(t, s.StoreKey(ctx, testScope, testKey, []byte(`{}`), code, []byte(`{"code":50000}`)))
	}
	var n int64
	require.NoError(t, s.db.Model(&models.IdempotencyKey{}).Count(&n).Error)
	require.Zero(t, n)
}

func TestStoreKeyKeepsLiveEntryAndReplacesExpired(t *testing.T) {
	s, now := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.StoreKey(ctx, testScope, testKey, []byte(`{"a":1}`), 200, []byte(`first`)))
	// a concurrent duplicate may not overwrite the live entry
	require.NoError(t, s.StoreKey(ctx, testScope, testKey, []byte(`{"a":1}`), 200, []byte(`second`)))

	res, err := s.CheckKey(ctx, testScope, testKey, []byte(`{"a":1}`))
	require.NoError(t, err)
	require.Equal(t, []byte(`first`), res.Cached.Body)

	// after the TTL the key behaves as new and can be rebound
	later := now.Add(2 * time.Hour)
	s.now = func() time.Time { return later }

	res, err = s.CheckKey(ctx, testScope, testKey, []byte(`{"a":2}`))
	require.NoError(t, err)
	require.True(t, res.Proceed)

	require.NoError(t, s.StoreKey(ctx, testScope, testKey, []byte(`{"a":2}`), 200, []byte(`third`)))
	res, err = s.CheckKey(ctx, testScope, testKey, []byte(`{"a":2}`))
	require.NoError(t, err)
	require.Equal(t, []byte(`third`), res.Cached.Body)
}

func TestDeleteExpired(t *testing.T) {
	s, now := newTestService(t)
	ctx := context.Background()
	require.NoError(t, s.StoreKey(ctx, testScope, testKey, []byte(`{}`), 200, []byte(`ok`)))

	n, err := s.DeleteExpired(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	later := now.Add(time.Hour)
	s.now = func() time.Time { return later }
	n, err = s.DeleteExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestStoreFailuresFailOpen(t *testing.T) {
	s, _ := newTestService(t)
	dbtest.Close(t, s.db)

	res, err := s.CheckKey(context.Background(), testScope, testKey, []byte(`{}`))
	require.NoError(t, err)
	require.True(t, res.Proceed)

	require.Error(t, s.StoreKey(context.Background(), testScope, testKey, []byte(`{}`), 200, []byte(`ok`)))
}

func TestCheckKeyReservesUntilStored(t *testing.T) {
	s, now := newTestService(t)
	ctx := context.Background()
	body := []byte(`{"a":1}`)

	res, err := s.CheckKey(ctx, testScope, testKey, body)
	require.NoError(t, err)
	require.True(t, res.Proceed)

	// the first request has not answered yet
	res, err = s.CheckKey(ctx, testScope, testKey, body)
	require.NoError(t, err)
	require.True(t, res.InProgress)
	require.False(t, res.Proceed)

	res, err = s.CheckKey(ctx, testScope, testKey, []byte(`{"a":2}`))
	require.NoError(t, err)
	require.True(t, res.Conflict)

	// a failed response releases the key for a retry
	require.NoError(t, s.StoreKey(ctx, testScope, testKey, body, 502, []byte(`{"code":50200}`)))
	res, err = s.CheckKey(ctx, testScope, testKey, body)
	require.NoError(t, err)
	require.True(t, res.Proceed)

	// an abandoned reservation is taken over after the lock timeout
	later := now.Add(2 * time.Minute)
	s.now = func() time.Time { return later }
	res, err = s.CheckKey(ctx, testScope, testKey, []byte(`{"a":3}`))
	require.NoError(t, err)
	require.True(t, res.Proceed)

	require.NoError(t, s.StoreKey(ctx, testScope, testKey, []byte(`{"a":3}`), 201, []byte(`done`)))
	res, err = s.CheckKey(ctx, testScope, testKey, []byte(`{"a":3}`))
	require.NoError(t, err)
	require.Equal(t, &CachedResponse{StatusCode: 201, Body: []byte(`done`)}, res.Cached)
}

func TestCheckKeyConcurrent(t *testing.T) {
	s, _ := newTestService(t)
	body := []byte(`{"product_id":"pro"}`)

	const n = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	proceeded, inProgress := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.CheckKey(context.Background(), testScope, testKey, body)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.Proceed {
				proceeded++
			}
			if res.InProgress {
				inProgress++
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, proceeded)
	require.Equal(t, n-1, inProgress)
}

func TestKeysAreScopedPerCaller(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()
	body := []byte(`{"a":1}`)

	res, err := s.CheckKey(ctx, "user:u1", testKey, body)
	require.NoError(t, err)
	require.True(t, res.Proceed)
	require.NoError(t, s.StoreKey(ctx, "user:u1", testKey, body, 200, []byte(`u1`)))

	res, err = s.CheckKey(ctx, "user:u2", testKey, body)
	require.NoError(t, err)
	require.True(t, res.Proceed)
	require.Nil(t, res.Cached)
}

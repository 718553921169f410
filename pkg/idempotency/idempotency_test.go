package idempotency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestService(t *testing.T, ttl time.Duration) *Service {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client, ttl)
}

func TestPutGet_RoundTrip(t *testing.T) {
	svc := newTestService(t, time.Minute)
	ctx := context.Background()

	if err := svc.Put(ctx, "snap-1", 200, []byte(`{"status":"ok"}`)); err != nil {
		t.Fatalf("Put() err = %v", err)
	}

	rec, found, err := svc.Get(ctx, "snap-1")
	if err != nil {
		t.Fatalf("Get() err = %v", err)
	}
	if !found {
		t.Fatal("expected a cached record")
	}
	if rec.Status != 200 || string(rec.Body) != `{"status":"ok"}` {
		t.Fatalf("record = %+v", rec)
	}
}

func TestGet_MissingKey(t *testing.T) {
	svc := newTestService(t, time.Minute)
	_, found, err := svc.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get() err = %v", err)
	}
	if found {
		t.Fatal("expected no record for an unset key")
	}
}

func TestAttachOrRun_ConcurrentCallersShareOneExecution(t *testing.T) {
	svc := newTestService(t, time.Minute)
	var runs int32

	var wg sync.WaitGroup
	results := make([]interface{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err, _ := svc.AttachOrRun(context.Background(), "snap-dedup", func(ctx context.Context) (interface{}, error) {
				atomic.AddInt32(&runs, 1)
				time.Sleep(20 * time.Millisecond)
				return "ranking-result", nil
			})
			if err != nil {
				t.Errorf("AttachOrRun() err = %v", err)
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	if got := atomic.LoadInt32(&runs); got != 1 {
		t.Fatalf("build ran %d times, want exactly 1", got)
	}
	for i, v := range results {
		if v != "ranking-result" {
			t.Fatalf("result[%d] = %v, want shared result", i, v)
		}
	}
}

func TestAttachOrRun_PropagatesError(t *testing.T) {
	svc := newTestService(t, time.Minute)
	wantErr := errors.New("strategist_failed")

	_, err, _ := svc.AttachOrRun(context.Background(), "snap-err", func(ctx context.Context) (interface{}, error) {
		return nil, wantErr
	})
	if err != wantErr {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

package metadata

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}

	rec := Record{PreferredCache: "sts.windows.net", ExpiresAt: time.Now().Add(time.Hour)}
	if err := store.Put(ctx, Key("c", "h"), rec); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	got, ok, err := store.Get(ctx, Key("c", "h"))
	if err != nil || !ok {
		t.Fatalf("Get after Put: ok=%v err=%v", ok, err)
	}
	if got.PreferredCache != "sts.windows.net" {
		t.Fatalf("record mismatch: %+v", got)
	}
}

func TestMemoryStoreConcurrentLastWriterWins(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	key := Key("c", "h")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Put(ctx, key, Record{PreferredCache: "sts.windows.net"})
			_, _, _ = store.Get(ctx, key)
		}()
	}
	wg.Wait()

	if _, ok, err := store.Get(ctx, key); err != nil || !ok {
		t.Fatalf("record missing after concurrent writes: ok=%v err=%v", ok, err)
	}
}

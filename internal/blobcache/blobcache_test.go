package blobcache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"playercore/internal/fileid"
)

func TestGetOrLoadCachesResult(t *testing.T) {
	c := New(1024)
	var calls atomic.Int32
	key := fileid.BlobKey(fileid.Media(1))
	loader := func() ([]byte, error) {
		calls.Add(1)
		return []byte("data"), nil
	}

	for i := 0; i < 3; i++ {
		got, err := c.GetOrLoad(key, loader)
		if err != nil {
			t.Fatalf("GetOrLoad: %v", err)
		}
		if string(got) != "data" {
			t.Errorf("got %q", got)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("expected loader called once, got %d", calls.Load())
	}
}

func TestGetOrLoadCoalescesConcurrentMisses(t *testing.T) {
	c := New(1024)
	var calls atomic.Int32
	started := make(chan struct{})
	key := fileid.BlobKey(fileid.Media(1))

	loader := func() ([]byte, error) {
		calls.Add(1)
		close(started)
		time.Sleep(30 * time.Millisecond)
		return []byte("shared"), nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([][]byte, n)
	errs := make([]error, n)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = c.GetOrLoad(key, loader)
	}()
	<-started

	for i := 1; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrLoad(key, loader)
		}(i)
	}
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("expected loader called once, got %d", calls.Load())
	}
	for i := range results {
		if errs[i] != nil {
			t.Errorf("caller %d: %v", i, errs[i])
		}
		if string(results[i]) != "shared" {
			t.Errorf("caller %d: got %q", i, results[i])
		}
	}
}

func TestGetOrLoadPropagatesError(t *testing.T) {
	c := New(1024)
	wantErr := errors.New("boom")
	_, err := c.GetOrLoad(fileid.BlobKey(fileid.Media(1)), func() ([]byte, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
}

func TestEvictsLeastRecentlyUsed(t *testing.T) {
	c := New(10) // budget for 2 entries of 5 bytes each
	load := func(data string) func() ([]byte, error) {
		return func() ([]byte, error) { return []byte(data), nil }
	}

	a := fileid.BlobKey(fileid.Media(1))
	b := fileid.BlobKey(fileid.Media(2))
	d := fileid.BlobKey(fileid.Media(3))

	if _, err := c.GetOrLoad(a, load("aaaaa")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetOrLoad(b, load("bbbbb")); err != nil {
		t.Fatal(err)
	}
	// Touch a so b becomes least-recently-used.
	if _, err := c.GetOrLoad(a, load("aaaaa")); err != nil {
		t.Fatal(err)
	}
	// Inserting a third entry should evict b, not a.
	var calls atomic.Int32
	loaderD := func() ([]byte, error) {
		calls.Add(1)
		return []byte("ddddd"), nil
	}
	if _, err := c.GetOrLoad(d, loaderD); err != nil {
		t.Fatal(err)
	}

	if c.Len() != 2 {
		t.Fatalf("expected 2 entries after eviction, got %d", c.Len())
	}

	var aCalls atomic.Int32
	if _, err := c.GetOrLoad(a, func() ([]byte, error) {
		aCalls.Add(1)
		return []byte("aaaaa"), nil
	}); err != nil {
		t.Fatal(err)
	}
	if aCalls.Load() != 0 {
		t.Error("a should still be cached (was recently touched)")
	}

	var bCalls atomic.Int32
	if _, err := c.GetOrLoad(b, func() ([]byte, error) {
		bCalls.Add(1)
		return []byte("bbbbb"), nil
	}); err != nil {
		t.Fatal(err)
	}
	if bCalls.Load() != 1 {
		t.Error("b should have been evicted and required a reload")
	}
}

func TestInvalidate(t *testing.T) {
	c := New(1024)
	key := fileid.BlobKey(fileid.Media(1))
	if _, err := c.GetOrLoad(key, func() ([]byte, error) { return []byte("v"), nil }); err != nil {
		t.Fatal(err)
	}
	c.Invalidate(key)
	if c.Len() != 0 {
		t.Errorf("expected empty cache after invalidate, got %d entries", c.Len())
	}
}

func TestInvalidatePrefix(t *testing.T) {
	c := New(1024)
	id := fileid.Media(6)
	for i := uint32(0); i < 3; i++ {
		key := fileid.ChunkKey(id, i)
		if _, err := c.GetOrLoad(key, func() ([]byte, error) { return []byte{1}, nil }); err != nil {
			t.Fatal(err)
		}
	}
	other := fileid.BlobKey(fileid.Media(7))
	if _, err := c.GetOrLoad(other, func() ([]byte, error) { return []byte{2}, nil }); err != nil {
		t.Fatal(err)
	}

	c.InvalidatePrefix(fileid.ChunkPrefix(id))

	if c.Len() != 1 {
		t.Fatalf("expected only the unrelated key to survive, got %d entries", c.Len())
	}
}

func TestSetBudgetEvictsImmediately(t *testing.T) {
	c := New(1024)
	a := fileid.BlobKey(fileid.Media(1))
	b := fileid.BlobKey(fileid.Media(2))
	if _, err := c.GetOrLoad(a, func() ([]byte, error) { return make([]byte, 500), nil }); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetOrLoad(b, func() ([]byte, error) { return make([]byte, 500), nil }); err != nil {
		t.Fatal(err)
	}
	c.SetBudget(500)
	if c.UsedBytes() > 500 {
		t.Errorf("expected used bytes <= 500 after SetBudget, got %d", c.UsedBytes())
	}
}

package cacheserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	memstore "playercore/internal/blobstore/memory"
	"playercore/internal/cachemanager"
	"playercore/internal/download"
	"playercore/internal/fileid"
	"playercore/internal/transport"
)

type fakeFetcher map[string][]byte

func (f fakeFetcher) FetchRange(_ context.Context, source transport.Source, offset, length int64) (io.ReadCloser, error) {
	data, ok := f[source.URL]
	if !ok {
		return nil, errors.New("no content for " + source.URL)
	}
	hi := int64(len(data))
	if length > 0 && offset+length < hi {
		hi = offset + length
	}
	return io.NopCloser(bytes.NewReader(data[offset:hi])), nil
}

// testContents is 112 bytes: above the 100-byte floor below which
// CacheManager treats a media entry as corrupt.
var testContents = bytes.Repeat([]byte("hello cache server contents "), 4)

func newTestServer(t *testing.T) (*httptest.Server, *cachemanager.Manager) {
	t.Helper()
	fetcher := fakeFetcher{"http://x/m1": testContents}
	cache := cachemanager.New(cachemanager.Config{
		Store:               memstore.New(),
		Fetcher:             fetcher,
		TotalMemoryBytes:    4 << 30,
		DownloadConcurrency: download.DefaultConcurrency,
	})
	desc := transport.RequiredFileDescriptor{
		FileID: fileid.Media(1),
		Size:   int64(len(fetcher["http://x/m1"])),
		Source: transport.Source{Kind: transport.SourceHTTP, URL: "http://x/m1"},
	}
	if err := cache.Fetch(context.Background(), desc); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	srv := New(Config{Cache: cache})
	return httptest.NewServer(srv.Handler()), cache
}

func TestGetWholeFile(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/cache/media/1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != string(testContents) {
		t.Errorf("unexpected body: %q", body)
	}
}

func TestGetRangeReturns206(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/cache/media/1", nil)
	req.Header.Set("Range", "bytes=0-4")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		t.Fatalf("expected 206, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "hello" {
		t.Errorf("expected 'hello', got %q", body)
	}
	if got := resp.Header.Get("Content-Range"); got != "bytes 0-4/112" {
		t.Errorf("unexpected Content-Range: %q", got)
	}
}

func TestHeadReturns200WhenPresent(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Head(ts.URL + "/cache/media/1")
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestHeadReturns404WhenAbsent(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Head(ts.URL + "/cache/media/999")
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestMetadataEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/cache/media/1/metadata")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var meta metadataResponse
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if meta.Kind != "media" || meta.ID != 1 || meta.Size != 112 {
		t.Errorf("unexpected metadata: %+v", meta)
	}
}

func TestUnknownKindIs404(t *testing.T) {
	ts, _ := newTestServer(t)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/cache/widget-html/1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unaddressable kind, got %d", resp.StatusCode)
	}
}

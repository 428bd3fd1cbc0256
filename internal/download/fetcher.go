package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"playercore/internal/transport"
)

// ErrDeferred marks an HTTP 202 Accepted response: the origin is still
// preparing the file. The response body must not be cached, and the
// fetch should be retried on a later collection cycle.
var ErrDeferred = errors.New("download: origin deferred (202 Accepted)")

// Fetcher opens a byte stream for a source. offset/length select a byte
// range; length <= 0 means "from offset to end". Implementations must
// honor ctx cancellation.
type Fetcher interface {
	FetchRange(ctx context.Context, source transport.Source, offset, length int64) (io.ReadCloser, error)
}

// HTTPFetcher fetches SourceHTTP sources with net/http, issuing a Range
// header when a sub-range is requested. It rejects every other source
// kind, SourceXMDS included: no caller turns an XMDS token into a URL
// before it reaches this type, so such a fetch fails with an error
// instead of fetching the wrong bytes.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher using client, or http.DefaultClient if nil.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{Client: client}
}

func (f *HTTPFetcher) FetchRange(ctx context.Context, source transport.Source, offset, length int64) (io.ReadCloser, error) {
	if source.Kind != transport.SourceHTTP {
		return nil, fmt.Errorf("download: HTTPFetcher cannot fetch source kind %v", source.Kind)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if offset > 0 || length > 0 {
		if length > 0 {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
		} else {
			req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
		}
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", source.URL, err)
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
		return resp.Body, nil
	case http.StatusAccepted:
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: %w", source.URL, ErrDeferred)
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: unexpected status %d", source.URL, resp.StatusCode)
	}
}

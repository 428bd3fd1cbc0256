// Package httpxmds implements transport.Transport over HTTP, for CMS
// deployments that expose a REST-ish façade in front of the legacy XMDS
// SOAP surface. Wire envelope construction/parsing is deliberately thin
// here — per spec §1 the wire protocol variants themselves are treated as
// an external concern; this package only shapes requests/responses into
// the transport.Transport contract and applies the default timeouts of
// spec §5.
package httpxmds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"playercore/internal/fileid"
	"playercore/internal/logging"
	"playercore/internal/schedule"
	"playercore/internal/transport"
)

// Config configures a Transport.
type Config struct {
	// BaseURL is the CMS endpoint, e.g. "https://cms.example.com/xmds".
	BaseURL string

	// HardwareKey identifies this device to the CMS.
	HardwareKey string

	// Client is the HTTP client used for all requests. If nil, a client
	// with spec §5's default timeouts is constructed.
	Client *http.Client

	Logger *slog.Logger
}

// Transport is an HTTP-backed transport.Transport.
type Transport struct {
	baseURL     string
	hardwareKey string
	client      *http.Client
	logger      *slog.Logger
}

// New creates a Transport from cfg.
func New(cfg Config) *Transport {
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: transport.DefaultRequiredFilesTimeout}
	}
	return &Transport{
		baseURL:     cfg.BaseURL,
		hardwareKey: cfg.HardwareKey,
		client:      client,
		logger:      logging.Default(cfg.Logger).With("component", "transport-httpxmds"),
	}
}

func (t *Transport) endpoint(path string) string {
	u, err := url.JoinPath(t.baseURL, path)
	if err != nil {
		return t.baseURL + path
	}
	return u
}

func (t *Transport) doJSON(ctx context.Context, timeout time.Duration, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.endpoint(path), reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Hardware-Key", t.hardwareKey)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusInternalServerError {
		// Distinguish a structured CMS fault from a plain network/HTTP
		// error so the caller can abort the collection cycle cleanly
		// rather than treating it as retryable the same way.
		return fmt.Errorf("%s %s: %w", method, path, transport.ErrTransportFault)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

func (t *Transport) Register(ctx context.Context) (transport.RegisterResult, error) {
	var out struct {
		CollectIntervalSeconds int    `json:"collectIntervalSeconds"`
		XMRURL                 string `json:"xmrUrl"`
		XMRKey                 string `json:"xmrKey"`
	}
	if err := t.doJSON(ctx, transport.DefaultRegisterTimeout, http.MethodPost, "/register", nil, &out); err != nil {
		return transport.RegisterResult{}, err
	}
	return transport.RegisterResult{
		CollectInterval: time.Duration(out.CollectIntervalSeconds) * time.Second,
		XMRURL:          out.XMRURL,
		XMRKey:          out.XMRKey,
	}, nil
}

func (t *Transport) RequiredFiles(ctx context.Context) ([]transport.RequiredFileDescriptor, error) {
	var out []transport.RequiredFileDescriptor
	err := t.doJSON(ctx, transport.DefaultRequiredFilesTimeout, http.MethodGet, "/required-files", nil, &out)
	return out, err
}

func (t *Transport) Schedule(ctx context.Context) (*schedule.Model, error) {
	var out schedule.Model
	if err := t.doJSON(ctx, transport.DefaultScheduleTimeout, http.MethodGet, "/schedule", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *Transport) GetResource(ctx context.Context, layout fileid.ID, region, widget string) ([]byte, string, error) {
	path := fmt.Sprintf("/resource/%s/%s/%s", layout.String(), region, widget)
	ctx, cancel := context.WithTimeout(ctx, transport.DefaultScheduleTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint(path), nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("GET %s: unexpected status %d", path, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read resource body: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (t *Transport) NotifyStatus(ctx context.Context, report transport.StatusReport) error {
	return t.doJSON(ctx, transport.DefaultScheduleTimeout, http.MethodPost, "/status", report, nil)
}

func (t *Transport) SubmitStats(ctx context.Context, stats []transport.StatRecord) error {
	return t.doJSON(ctx, transport.DefaultRequiredFilesTimeout, http.MethodPost, "/stats", stats, nil)
}

func (t *Transport) SubmitLog(ctx context.Context, entries []transport.LogRecord) error {
	return t.doJSON(ctx, transport.DefaultRequiredFilesTimeout, http.MethodPost, "/log", entries, nil)
}

func (t *Transport) SubmitScreenshot(ctx context.Context, png []byte) error {
	ctx, cancel := context.WithTimeout(ctx, transport.DefaultRequiredFilesTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("/screenshot"), bytes.NewReader(png))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "image/png")
	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST /screenshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("POST /screenshot: unexpected status %d", resp.StatusCode)
	}
	return nil
}

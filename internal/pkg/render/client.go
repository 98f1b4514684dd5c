package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"
)

const defaultTimeout = 15 * time.Second

// Job states reported by the rendering backend.
const (
	StateQueued    = "queued"
	StateRendering = "rendering"
	StateDone      = "done"
	StateFailed    = "failed"
)

var ErrNotConfigured = errors.New("render backend not configured")

// Client talks to the rendering backend's JSON API.
type Client struct {
	baseURL string
	token   string
	ua      string
	http    *http.Client
}

// SubmitRequest describes one render job.
type SubmitRequest struct {
	JobID    string         `json:"job_id"`
	Feature  string         `json:"feature"`
	Provider string         `json:"provider"`
	Prompt   string         `json:"prompt"`
	Params   map[string]any `json:"params,omitempty"`
}

// Job is the backend's view of a render.
type Job struct {
	ID        string `json:"id"`
	State     string `json:"state"`
	OutputURL string `json:"output_url,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Asset is a downloaded render output. The caller closes Body.
type Asset struct {
	Body        io.ReadCloser
	ContentType string
}

// NewClient creates a render client.
func NewClient(baseURL, token string, timeout time.Duration, ua string) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		ua:      ua,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Submit queues a job and returns the backend job.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (*Job, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("render submit request error: %w", err)
	}

	var job Job
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/v1/renders", payload, &job); err != nil {
		return nil, fmt.Errorf("render submit: %w", err)
	}
	if job.ID == "" {
		return nil, fmt.Errorf("render submit: empty job id")
	}
	return &job, nil
}

// Status fetches the current state of a job.
func (c *Client) Status(ctx context.Context, jobID string) (*Job, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	var job Job
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/v1/renders/"+url.PathEscape(jobID), nil, &job); err != nil {
		return nil, fmt.Errorf("render status: %w", err)
	}
	return &job, nil
}

// Download streams a finished output.
func (c *Client) Download(ctx context.Context, outputURL string) (*Asset, error) {
	if c == nil || c.http == nil {
		return nil, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, outputURL, nil)
	if err != nil {
		return nil, fmt.Errorf("render download request error: %w", err)
	}
	if c.ua != "" {
		req.Header.Set("User-Agent", c.ua)
	}
	// only send credentials to our own backend
	if strings.HasPrefix(outputURL, c.baseURL+"/") {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyRequestError(ctx, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("render download http error: status=%d body=%s", resp.StatusCode, string(body))
	}
	return &Asset{Body: resp.Body, ContentType: resp.Header.Get("Content-Type")}, nil
}

func (c *Client) check() error {
	if c == nil || c.http == nil || strings.TrimSpace(c.baseURL) == "" {
		return ErrNotConfigured
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte, out any) error {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.ua != "" {
		req.Header.Set("User-Agent", c.ua)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyRequestError(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if readErr != nil {
			return fmt.Errorf("http error: status=%d body=<failed to read body: %v>", resp.StatusCode, readErr)
		}
		return fmt.Errorf("http error: status=%d body=%s", resp.StatusCode, string(raw))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func classifyRequestError(ctx context.Context, err error) error {
	if isTimeoutError(ctx, err) {
		return fmt.Errorf("timeout: %w", err)
	}
	if isNetworkError(err) {
		return fmt.Errorf("network error: %w", err)
	}
	return fmt.Errorf("request error: %w", err)
}

func isTimeoutError(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}

	return false
}

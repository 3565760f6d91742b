package conway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Sandbox lifecycle states reported by the Conway API.
const (
	SandboxCreating = "creating"
	SandboxRunning  = "running"
	SandboxStopped  = "stopped"
	SandboxError    = "error"
)

const (
	defaultHTTPTimeout  = 2 * time.Minute // sandbox creation can be slow
	defaultMaxWait      = 90 * time.Second
	defaultPollInterval = 3 * time.Second

	// Exec requests carry a server-side timeout; the client-side deadline adds
	// this grace on top so a hung provider surfaces as an error, not a hang.
	execDeadlineGrace = 30 * time.Second
)

// Client is a stateless typed wrapper over the Conway Cloud REST API. Every
// method maps to exactly one endpoint; there are no retries and no business
// logic here. Non-2xx responses surface as *APIError.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client for the given API base URL and bearer token.
func New(base, apiKey string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		return nil, fmt.Errorf("conway api base url required")
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid conway api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// Sandbox describes a provisioned Conway VM.
type Sandbox struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	Region    string    `json:"region"`
	VCPU      int       `json:"vcpu"`
	MemoryMB  int       `json:"memory_mb"`
	DiskGB    int       `json:"disk_gb"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateSandboxRequest carries the resource spec for a new sandbox.
type CreateSandboxRequest struct {
	Name     string `json:"name"`
	VCPU     int    `json:"vcpu,omitempty"`
	MemoryMB int    `json:"memory_mb,omitempty"`
	DiskGB   int    `json:"disk_gb,omitempty"`
	Region   string `json:"region,omitempty"`
}

// ExecRequest runs a shell command inside a sandbox.
type ExecRequest struct {
	Command        string `json:"command"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// ExecResult reports the outcome of a remote command. A non-zero exit code is
// not an error at the transport level; callers inspect ExitCode.
type ExecResult struct {
	ExitCode int    `json:"exit_code"`
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
}

// UploadFileRequest writes a file inside a sandbox.
type UploadFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Mode    string `json:"mode,omitempty"` // e.g. "0644"
}

// ExposePortRequest asks for a public ingress mapping.
type ExposePortRequest struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol,omitempty"`
}

// ExposePortResult carries the public mapping for an exposed port.
type ExposePortResult struct {
	PublicURL string `json:"public_url"`
	Port      int    `json:"port"`
}

// CreateSandbox provisions a new Linux sandbox.
func (c *Client) CreateSandbox(ctx context.Context, req CreateSandboxRequest) (*Sandbox, error) {
	var sandbox Sandbox
	if err := c.do(ctx, http.MethodPost, "/sandboxes", req, &sandbox); err != nil {
		return nil, err
	}
	return &sandbox, nil
}

// GetSandbox reads a sandbox descriptor, used for status polling.
func (c *Client) GetSandbox(ctx context.Context, sandboxID string) (*Sandbox, error) {
	var sandbox Sandbox
	path := "/sandboxes/" + url.PathEscape(sandboxID)
	if err := c.do(ctx, http.MethodGet, path, nil, &sandbox); err != nil {
		return nil, err
	}
	return &sandbox, nil
}

// DeleteSandbox terminates and deletes a sandbox.
func (c *Client) DeleteSandbox(ctx context.Context, sandboxID string) error {
	return c.do(ctx, http.MethodDelete, "/sandboxes/"+url.PathEscape(sandboxID), nil, nil)
}

// StopSandbox stops a running sandbox.
func (c *Client) StopSandbox(ctx context.Context, sandboxID string) error {
	return c.do(ctx, http.MethodPost, "/sandboxes/"+url.PathEscape(sandboxID)+"/stop", nil, nil)
}

// StartSandbox starts a stopped sandbox.
func (c *Client) StartSandbox(ctx context.Context, sandboxID string) error {
	return c.do(ctx, http.MethodPost, "/sandboxes/"+url.PathEscape(sandboxID)+"/start", nil, nil)
}

// Exec executes a command inside the sandbox and returns its exit code and
// captured output.
func (c *Client) Exec(ctx context.Context, sandboxID string, req ExecRequest) (*ExecResult, error) {
	if req.TimeoutSeconds > 0 {
		deadline := time.Duration(req.TimeoutSeconds)*time.Second + execDeadlineGrace
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}
	var result ExecResult
	path := "/sandboxes/" + url.PathEscape(sandboxID) + "/exec"
	if err := c.do(ctx, http.MethodPost, path, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadFile writes a file to the sandbox filesystem.
func (c *Client) UploadFile(ctx context.Context, sandboxID string, req UploadFileRequest) error {
	return c.do(ctx, http.MethodPost, "/sandboxes/"+url.PathEscape(sandboxID)+"/files", req, nil)
}

// ExposePort requests a public ingress mapping for the given port.
func (c *Client) ExposePort(ctx context.Context, sandboxID string, req ExposePortRequest) (*ExposePortResult, error) {
	var result ExposePortResult
	path := "/sandboxes/" + url.PathEscape(sandboxID) + "/ports"
	if err := c.do(ctx, http.MethodPost, path, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// WaitForRunning polls GetSandbox until the sandbox reports running. It fails
// with *TimeoutError once maxWait elapses, or immediately if the sandbox
// enters the error state. Non-positive maxWait and pollInterval fall back to
// 90s and 3s.
func (c *Client) WaitForRunning(ctx context.Context, sandboxID string, maxWait, pollInterval time.Duration) (*Sandbox, error) {
	if maxWait <= 0 {
		maxWait = defaultMaxWait
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	deadline := time.Now().Add(maxWait)

	for time.Now().Before(deadline) {
		sandbox, err := c.GetSandbox(ctx, sandboxID)
		if err != nil {
			return nil, err
		}
		switch sandbox.Status {
		case SandboxRunning:
			return sandbox, nil
		case SandboxError:
			return nil, &TimeoutError{
				SandboxID: sandboxID,
				Reason:    "entered error state during creation",
			}
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	return nil, &TimeoutError{
		SandboxID: sandboxID,
		Reason:    fmt.Sprintf("did not reach %q within %s", SandboxRunning, maxWait),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, v any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return &APIError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(data)),
		}
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

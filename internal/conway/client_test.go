package conway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestCreateSandboxSendsAuthAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/sandboxes" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer secret" {
			t.Fatalf("unexpected authorization header %q", auth)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["name"] != "openclaw-bot-1" {
			t.Fatalf("unexpected name %v", payload["name"])
		}
		if payload["vcpu"] != float64(2) || payload["memory_mb"] != float64(2048) {
			t.Fatalf("unexpected resource spec %v/%v", payload["vcpu"], payload["memory_mb"])
		}
		json.NewEncoder(w).Encode(Sandbox{ID: "sb-1", Name: "openclaw-bot-1", Status: SandboxCreating, Region: "us-east"})
	}))
	defer srv.Close()

	client, err := New(srv.URL+"/", " secret ")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	sandbox, err := client.CreateSandbox(context.Background(), CreateSandboxRequest{
		Name:     "openclaw-bot-1",
		VCPU:     2,
		MemoryMB: 2048,
		DiskGB:   10,
		Region:   "us-east",
	})
	if err != nil {
		t.Fatalf("create sandbox: %v", err)
	}
	if sandbox.ID != "sb-1" || sandbox.Status != SandboxCreating {
		t.Fatalf("unexpected sandbox %+v", sandbox)
	}
}

func TestNonSuccessStatusSurfacesAsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient credits", http.StatusPaymentRequired)
	}))
	defer srv.Close()

	client, err := New(srv.URL, "secret")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.CreateSandbox(context.Background(), CreateSandboxRequest{Name: "openclaw-bot-1"})
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Method != http.MethodPost || apiErr.Path != "/sandboxes" {
		t.Fatalf("unexpected request identity %s %s", apiErr.Method, apiErr.Path)
	}
	if apiErr.Status != http.StatusPaymentRequired || apiErr.Body != "insufficient credits" {
		t.Fatalf("unexpected error detail %d %q", apiErr.Status, apiErr.Body)
	}
}

func TestExecDecodesResultWithoutTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sandboxes/sb-1/exec" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var payload ExecRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.TimeoutSeconds != 60 {
			t.Fatalf("unexpected timeout %d", payload.TimeoutSeconds)
		}
		json.NewEncoder(w).Encode(ExecResult{ExitCode: 127, Stderr: "sh: pnpm: not found"})
	}))
	defer srv.Close()

	client, err := New(srv.URL, "secret")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	result, err := client.Exec(context.Background(), "sb-1", ExecRequest{
		Command:        "pnpm build",
		TimeoutSeconds: 60,
	})
	if err != nil {
		t.Fatalf("non-zero exit must not be a transport error: %v", err)
	}
	if result.ExitCode != 127 || !strings.Contains(result.Stderr, "not found") {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestExposePortDecodesMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sandboxes/sb-1/ports" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(ExposePortResult{PublicURL: "https://sb-1-8080.conway.app", Port: 8080})
	}))
	defer srv.Close()

	client, err := New(srv.URL, "secret")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	result, err := client.ExposePort(context.Background(), "sb-1", ExposePortRequest{Port: 8080, Protocol: "tcp"})
	if err != nil {
		t.Fatalf("expose port: %v", err)
	}
	if result.PublicURL != "https://sb-1-8080.conway.app" || result.Port != 8080 {
		t.Fatalf("unexpected mapping %+v", result)
	}
}

func TestWaitForRunningPollsUntilRunning(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := SandboxCreating
		if polls.Add(1) >= 3 {
			status = SandboxRunning
		}
		json.NewEncoder(w).Encode(Sandbox{ID: "sb-1", Status: status, IPAddress: "10.40.0.7"})
	}))
	defer srv.Close()

	client, err := New(srv.URL, "secret")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	sandbox, err := client.WaitForRunning(context.Background(), "sb-1", time.Second, time.Millisecond)
	if err != nil {
		t.Fatalf("wait for running: %v", err)
	}
	if sandbox.Status != SandboxRunning {
		t.Fatalf("unexpected status %q", sandbox.Status)
	}
	if polls.Load() < 3 {
		t.Fatalf("expected at least 3 polls, got %d", polls.Load())
	}
}

func TestWaitForRunningFailsFastOnErrorState(t *testing.T) {
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		json.NewEncoder(w).Encode(Sandbox{ID: "sb-1", Status: SandboxError})
	}))
	defer srv.Close()

	client, err := New(srv.URL, "secret")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.WaitForRunning(context.Background(), "sb-1", time.Second, time.Millisecond)

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
	if !strings.Contains(timeoutErr.Reason, "error state") {
		t.Fatalf("unexpected reason %q", timeoutErr.Reason)
	}
	if polls.Load() != 1 {
		t.Fatalf("error state must fail on the first poll, got %d polls", polls.Load())
	}
}

func TestWaitForRunningTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Sandbox{ID: "sb-1", Status: SandboxCreating})
	}))
	defer srv.Close()

	client, err := New(srv.URL, "secret")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.WaitForRunning(context.Background(), "sb-1", 30*time.Millisecond, 5*time.Millisecond)

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
	if timeoutErr.SandboxID != "sb-1" {
		t.Fatalf("unexpected sandbox id %q", timeoutErr.SandboxID)
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New("   ", "secret"); err == nil {
		t.Fatal("expected error for blank base url")
	}
}

func TestFormatErrorExpandsAPIErrors(t *testing.T) {
	err := fmt.Errorf("create sandbox: %w", &APIError{
		Method: http.MethodPost,
		Path:   "/sandboxes",
		Status: http.StatusPaymentRequired,
		Body:   "insufficient credits",
	})
	got := FormatError(err)
	want := "Conway API POST /sandboxes → 402: insufficient credits"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if FormatError(nil) != "" {
		t.Fatalf("nil error must render empty")
	}
}

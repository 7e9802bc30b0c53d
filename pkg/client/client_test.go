package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Sternrassler/dealer-answer/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
)

// newTestClient builds an unpaced client against server with /api mounted.
func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()

	cfg := DefaultConfig(server.URL + "/api")
	cfg.RateLimit = ratelimit.Config{}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		expectError bool
	}{
		{
			name:   "valid config",
			config: DefaultConfig("http://localhost:8080/api"),
		},
		{
			name:        "empty base url",
			config:      Config{Timeout: time.Second},
			expectError: true,
		},
		{
			name:        "relative base url",
			config:      Config{BaseURL: "/api", Timeout: time.Second},
			expectError: true,
		},
		{
			name:        "unparseable base url",
			config:      Config{BaseURL: "http://[::1", Timeout: time.Second},
			expectError: true,
		},
		{
			name:        "zero timeout",
			config:      Config{BaseURL: "http://localhost/api"},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("Expected ErrInvalidConfig, got %v", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client == nil {
				t.Fatal("Client is nil")
			}
			if client.CacheEnabled() {
				t.Error("Cache should be disabled without Redis")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("")

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.Timeout <= 0 {
		t.Errorf("Timeout = %v, should be > 0", cfg.Timeout)
	}
	if cfg.UserAgent == "" {
		t.Error("UserAgent should have a default")
	}
	if cfg.Redis != nil {
		t.Error("Redis should be nil by default")
	}
}

func TestNew_WithRedisEnablesCache(t *testing.T) {
	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer redisClient.Close()

	cfg := DefaultConfig("http://localhost/api")
	cfg.Redis = redisClient
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !c.CacheEnabled() {
		t.Error("Cache should be enabled when Redis is configured")
	}
}

func TestURL(t *testing.T) {
	tests := []struct {
		base     string
		endpoint string
		want     string
	}{
		{"http://svc/api", "/datasetId", "http://svc/api/datasetId"},
		{"http://svc/api/", "ds/vehicles", "http://svc/api/ds/vehicles"},
		{"http://svc", "/ds/dealers/7", "http://svc/ds/dealers/7"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			c, err := New(Config{BaseURL: tt.base, Timeout: time.Second})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if got := c.URL(tt.endpoint); got != tt.want {
				t.Errorf("URL(%q) = %q, want %q", tt.endpoint, got, tt.want)
			}
		})
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"/datasetId", "/datasetId"},
		{"/abc/vehicles", "/{dataset}/vehicles"},
		{"/abc/vehicles/42", "/{dataset}/vehicles/{id}"},
		{"/abc/dealers/7", "/{dataset}/dealers/{id}"},
		{"/abc/answer", "/{dataset}/answer"},
		{"/abc/cheat", "other"},
		{"/", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			if got := NormalizeEndpoint(tt.endpoint); got != tt.want {
				t.Errorf("NormalizeEndpoint(%q) = %q, want %q", tt.endpoint, got, tt.want)
			}
		})
	}
}

func TestDo_HeadersSet(t *testing.T) {
	var userAgent, accept, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.Header.Get("User-Agent")
		accept = r.Header.Get("Accept")
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"datasetId": "ds"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server)

	resp, err := c.Get(context.Background(), "/datasetId")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	resp.Body.Close()

	if userAgent != c.config.UserAgent {
		t.Errorf("User-Agent = %q, want %q", userAgent, c.config.UserAgent)
	}
	if accept != "application/json" {
		t.Errorf("Accept = %q, want application/json", accept)
	}
	if path != "/api/datasetId" {
		t.Errorf("Path = %q, want /api/datasetId", path)
	}
}

func TestDo_ErrorStatusReturnedToCaller(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"client error", http.StatusNotFound},
		{"server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			c := newTestClient(t, server)

			resp, err := c.Get(context.Background(), "/ds/vehicles/1")
			if err != nil {
				t.Fatalf("Get() error = %v, non-2xx should not be a transport error", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.statusCode {
				t.Errorf("StatusCode = %d, want %d", resp.StatusCode, tt.statusCode)
			}
		})
	}
}

func TestDo_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := newTestClient(t, server)
	server.Close()

	_, err := c.Get(context.Background(), "/datasetId")
	if err == nil {
		t.Fatal("Expected network error")
	}

	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("Expected *RequestError, got %T", err)
	}
	if reqErr.Endpoint != "/datasetId" {
		t.Errorf("Endpoint = %q, want /datasetId", reqErr.Endpoint)
	}
	if Classify(err) != ErrorClassNetwork {
		t.Errorf("Classify() = %q, want network", Classify(err))
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	c := newTestClient(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, "/datasetId")
	if err == nil {
		t.Fatal("Expected error on cancelled context")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected context.DeadlineExceeded in chain, got %v", err)
	}
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/ok":
			w.Write([]byte(`{"datasetId": "ds-1"}`))
		case "/api/garbage":
			w.Write([]byte(`<html>`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`not here`))
		}
	}))
	defer server.Close()

	c := newTestClient(t, server)
	ctx := context.Background()

	var out struct {
		DatasetID string `json:"datasetId"`
	}
	if err := c.GetJSON(ctx, "/ok", &out); err != nil {
		t.Fatalf("GetJSON(/ok) error = %v", err)
	}
	if out.DatasetID != "ds-1" {
		t.Errorf("DatasetID = %q, want ds-1", out.DatasetID)
	}

	err := c.GetJSON(ctx, "/garbage", &out)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Errorf("Expected *DecodeError for invalid JSON, got %v", err)
	}

	err = c.GetJSON(ctx, "/missing", &out)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Expected *StatusError for 404, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound || statusErr.Body != "not here" {
		t.Errorf("StatusError = %+v", statusErr)
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound should be true")
	}
}

func TestPostJSON(t *testing.T) {
	var (
		gotBody        map[string]any
		gotContentType string
		gotMethod      string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		w.Write([]byte(`{"success": true, "message": "ok", "totalMilliseconds": 12}`))
	}))
	defer server.Close()

	c := newTestClient(t, server)

	var out struct {
		Success           bool   `json:"success"`
		Message           string `json:"message"`
		TotalMilliseconds int    `json:"totalMilliseconds"`
	}
	in := map[string]any{"dealers": []any{}}
	if err := c.PostJSON(context.Background(), "/ds/answer", in, &out); err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("Method = %q, want POST", gotMethod)
	}
	if gotContentType != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if _, ok := gotBody["dealers"]; !ok {
		t.Errorf("Request body = %v, want dealers key", gotBody)
	}
	if !out.Success || out.Message != "ok" || out.TotalMilliseconds != 12 {
		t.Errorf("Decoded response = %+v", out)
	}
}

func TestDo_NoCacheWithoutRedis(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"vehicleId": 1}`))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		var out map[string]any
		if err := c.GetJSON(ctx, "/ds/vehicles/1", &out); err != nil {
			t.Fatalf("GetJSON() error = %v", err)
		}
	}

	if hits.Load() != 3 {
		t.Errorf("Server hits = %d, want 3", hits.Load())
	}
}

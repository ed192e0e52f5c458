package transport

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(Options{
		BaseURL:   baseURL,
		UserAgent: "FSAuth/1.0 (test)",
		Logger:    zerolog.Nop(),
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{name: "https", baseURL: "https://licensing.example.com", wantErr: false},
		{name: "http", baseURL: "http://localhost:8080", wantErr: false},
		{name: "no scheme", baseURL: "licensing.example.com", wantErr: true},
		{name: "wrong scheme", baseURL: "ftp://example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Options{BaseURL: tt.baseURL, Logger: zerolog.Nop()})
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%q) error = %v, wantErr %v", tt.baseURL, err, tt.wantErr)
			}
		})
	}
}

func TestPost_SendsJSONAndDecodes(t *testing.T) {
	var gotPath, gotContentType, gotUserAgent string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotUserAgent = r.Header.Get("User-Agent")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		_, _ = w.Write([]byte(`{"success": true, "token": "T"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	var result struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
	}
	err := c.Post(context.Background(), "/api/license", map[string]string{"license_key": "KEY"}, &result)
	if err != nil {
		t.Fatalf("Post() error: %v", err)
	}

	if gotPath != "/api/license" {
		t.Errorf("path = %q", gotPath)
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q", gotContentType)
	}
	if gotUserAgent != "FSAuth/1.0 (test)" {
		t.Errorf("User-Agent = %q", gotUserAgent)
	}
	if gotBody["license_key"] != "KEY" {
		t.Errorf("request body = %v", gotBody)
	}
	if !result.Success || result.Token != "T" {
		t.Errorf("decoded result = %+v", result)
	}
}

func TestPost_NonJSONBodyReturnsErrInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>502 Bad Gateway</html>"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	var result map[string]any
	err := c.Post(context.Background(), "/api/init", map[string]string{}, &result)
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("Post() error = %v, want ErrInvalidResponse", err)
	}
}

func TestPost_DomainFailureIsNotATransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Backend conveys rejection via the body, with a non-2xx code.
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success": false, "message": "invalid key"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	var result struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.Post(context.Background(), "/api/license", map[string]string{}, &result); err != nil {
		t.Fatalf("Post() error = %v, domain failure should decode cleanly", err)
	}
	if result.Success {
		t.Error("result.Success = true, want false")
	}
	if result.Message != "invalid key" {
		t.Errorf("result.Message = %q", result.Message)
	}
}

func TestPost_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := newTestClient(t, srv.URL)

	var result map[string]any
	err := c.Post(context.Background(), "/api/init", map[string]string{}, &result)
	if err == nil {
		t.Error("Post() expected error against closed server")
	}
	if errors.Is(err, ErrInvalidResponse) {
		t.Error("network failure must not be reported as an invalid response")
	}
}

func TestPost_NilResultSkipsDecode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json at all"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	if err := c.Post(context.Background(), "/api/logs", map[string]string{}, nil); err != nil {
		t.Errorf("Post() with nil result error = %v, want nil", err)
	}
}

func TestShouldBypassProxy(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		noProxy string
		want    bool
	}{
		{name: "empty no_proxy", host: "example.com", noProxy: "", want: false},
		{name: "wildcard", host: "example.com", noProxy: "*", want: true},
		{name: "exact match", host: "internal.corp", noProxy: "internal.corp", want: true},
		{name: "exact match with port", host: "internal.corp:8443", noProxy: "internal.corp", want: true},
		{name: "suffix match", host: "api.example.com", noProxy: ".example.com", want: true},
		{name: "subdomain match", host: "api.example.com", noProxy: "example.com", want: true},
		{name: "no match", host: "other.org", noProxy: "example.com", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldBypassProxy(tt.host, tt.noProxy); got != tt.want {
				t.Errorf("shouldBypassProxy(%q, %q) = %v, want %v", tt.host, tt.noProxy, got, tt.want)
			}
		})
	}
}

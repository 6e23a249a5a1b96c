package ipsource

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/evanofslack/dnsupdate/internal/config"
	"github.com/evanofslack/dnsupdate/internal/metrics"
)

type MockHttpClient struct {
	err error
}

func (m *MockHttpClient) Do(req *http.Request) (*http.Response, error) {
	return nil, m.err
}

func TestLookup(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		status      int
		expected    netip.Addr
		expectError bool
	}{
		{
			name:     "plain ipv4",
			body:     "203.0.113.5",
			status:   http.StatusOK,
			expected: netip.MustParseAddr("203.0.113.5"),
		},
		{
			name:     "trailing newline",
			body:     "203.0.113.5\n",
			status:   http.StatusOK,
			expected: netip.MustParseAddr("203.0.113.5"),
		},
		{
			name:     "ipv6 with whitespace",
			body:     "  2001:db8::1 \r\n",
			status:   http.StatusOK,
			expected: netip.MustParseAddr("2001:db8::1"),
		},
		{
			name:        "garbage body",
			body:        "<html>nope</html>",
			status:      http.StatusOK,
			expectError: true,
		},
		{
			name:        "empty body",
			body:        "",
			status:      http.StatusOK,
			expectError: true,
		},
		{
			name:        "non-200 status",
			body:        "203.0.113.5",
			status:      http.StatusServiceUnavailable,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			src, err := New(config.IP{URL: srv.URL}, srv.Client(), metrics.New(false))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			got, err := src.Lookup(context.Background())
			if tt.expectError && err == nil {
				t.Fatalf("Expected error but got none, ip %s", got)
			}
			if !tt.expectError && err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestLookup_TransportError(t *testing.T) {
	src, err := New(config.IP{URL: "http://ip.invalid"}, &MockHttpClient{err: errors.New("connection refused")}, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := src.Lookup(context.Background()); err == nil {
		t.Fatal("Expected error but got none")
	}
}

func TestStatic(t *testing.T) {
	src, err := New(config.IP{URL: "http://unused.invalid", Address: " 198.51.100.7 "}, &MockHttpClient{err: errors.New("must not be called")}, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	got, err := src.Lookup(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if want := netip.MustParseAddr("198.51.100.7"); got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}

	if _, err := Static("not-an-ip"); err == nil {
		t.Error("Expected error for invalid static address")
	}
}

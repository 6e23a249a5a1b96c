package ydns

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"

	"github.com/evanofslack/dnsupdate/internal/config"
	"github.com/evanofslack/dnsupdate/internal/metrics"
	"github.com/evanofslack/dnsupdate/internal/provider"
)

type MockHttpClient struct {
	err error
}

func (m *MockHttpClient) Do(req *http.Request) (*http.Response, error) {
	return nil, m.err
}

var ip = netip.MustParseAddr("203.0.113.5")

func TestUpdate(t *testing.T) {
	tests := []struct {
		name           string
		status         int
		expected       provider.Outcome
		expectRejected bool
	}{
		{name: "ok", status: http.StatusOK, expected: provider.Success},
		{name: "unauthorized", status: http.StatusUnauthorized, expected: provider.Fail, expectRejected: true},
		{name: "bad request", status: http.StatusBadRequest, expected: provider.Fail, expectRejected: true},
		{name: "no content", status: http.StatusNoContent, expected: provider.Fail, expectRejected: true},
		{name: "server error", status: http.StatusInternalServerError, expected: provider.Fail, expectRejected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				gotURI          string
				gotUser, gotPwd string
				gotAuth         bool
				calls           int
			)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				gotURI = r.URL.RequestURI()
				gotUser, gotPwd, gotAuth = r.BasicAuth()
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p, err := New(config.YDNS{User: "user", Password: "secret", BaseURL: srv.URL}, srv.Client(), metrics.New(false))
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			outcome, err := p.Update(context.Background(), "home.ydns.eu", ip)
			if outcome != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, outcome)
			}
			if got := errors.Is(err, provider.ErrRejected); got != tt.expectRejected {
				t.Errorf("Expected rejected=%v, got %v (%v)", tt.expectRejected, got, err)
			}
			if !tt.expectRejected && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}

			if calls != 1 {
				t.Errorf("Expected exactly one request, got %d", calls)
			}
			if want := "/update/?host=home.ydns.eu&ip=203.0.113.5"; gotURI != want {
				t.Errorf("Expected request %s, got %s", want, gotURI)
			}
			if !gotAuth || gotUser != "user" || gotPwd != "secret" {
				t.Errorf("Expected basic auth user/secret, got %q/%q (%v)", gotUser, gotPwd, gotAuth)
			}
		})
	}
}

func TestUpdate_TransportError(t *testing.T) {
	p, err := New(config.YDNS{User: "user", Password: "secret"}, &MockHttpClient{err: errors.New("connection refused")}, metrics.New(false))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	outcome, err := p.Update(context.Background(), "home.ydns.eu", ip)
	if outcome != provider.Fail {
		t.Errorf("Expected Fail, got %s", outcome)
	}
	if err == nil || errors.Is(err, provider.ErrRejected) {
		t.Errorf("Expected transport error, got %v", err)
	}
}

func TestUpdate_WithoutMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	p, err := New(config.YDNS{User: "user", Password: "secret", BaseURL: srv.URL}, srv.Client(), nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	outcome, err := p.Update(context.Background(), "home.ydns.eu", ip)
	if err != nil || outcome != provider.Success {
		t.Errorf("Expected Success, got %s (%v)", outcome, err)
	}
}

func TestNew(t *testing.T) {
	if _, err := New(config.YDNS{User: "user"}, nil, nil); err == nil {
		t.Error("Expected error for missing password")
	}

	p, err := New(config.YDNS{User: "user", Password: "secret"}, nil, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.baseURL != defaultBaseURL {
		t.Errorf("Expected default base url %s, got %s", defaultBaseURL, p.baseURL)
	}
	if p.Name() != "YDNS" {
		t.Errorf("Expected name YDNS, got %s", p.Name())
	}
}

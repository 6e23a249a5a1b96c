package ydns

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"net/url"
	"strings"

	"github.com/evanofslack/dnsupdate/internal/config"
	"github.com/evanofslack/dnsupdate/internal/metrics"
	"github.com/evanofslack/dnsupdate/internal/provider"
)

const (
	Name           = "YDNS"
	defaultBaseURL = "https://ydns.io/api/v1"
)

type Httper interface {
	Do(req *http.Request) (*http.Response, error)
}

type YDNSProvider struct {
	baseURL  string
	user     string
	password string
	http     Httper
	metrics  *metrics.Metrics
}

func New(cfg config.YDNS, client Httper, metrics *metrics.Metrics) (*YDNSProvider, error) {
	if cfg.User == "" || cfg.Password == "" {
		return nil, fmt.Errorf("ydns user and password required")
	}
	if client == nil {
		client = &http.Client{}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	return &YDNSProvider{
		baseURL:  strings.TrimRight(baseURL, "/"),
		user:     cfg.User,
		password: cfg.Password,
		http:     client,
		metrics:  metrics,
	}, nil
}

func (p *YDNSProvider) Name() string {
	return Name
}

// Update sends a single authenticated update call. The host is passed
// through as configured; YDNS resolves it on its side.
func (p *YDNSProvider) Update(ctx context.Context, subdomain string, ip netip.Addr) (provider.Outcome, error) {
	endpoint := fmt.Sprintf("%s/update/?host=%s&ip=%s", p.baseURL, url.QueryEscape(subdomain), url.QueryEscape(ip.String()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return provider.Fail, fmt.Errorf("ydns: build request: %w", err)
	}
	req.SetBasicAuth(p.user, p.password)

	slog.Info("Updating DNS record", "backend", Name, "name", subdomain, "data", ip)
	resp, err := p.http.Do(req)
	if err != nil {
		p.observe("update", false)
		return provider.Fail, fmt.Errorf("ydns: update %s: %w", subdomain, err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused for the next subdomain.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		p.observe("update", false)
		return provider.Fail, fmt.Errorf("ydns: update %s, status=%d: %w", subdomain, resp.StatusCode, provider.ErrRejected)
	}

	p.observe("update", true)
	return provider.Success, nil
}

func (p *YDNSProvider) observe(operation string, success bool) {
	if p.metrics != nil {
		p.metrics.IncDNSRequest(Name, operation, success)
	}
}

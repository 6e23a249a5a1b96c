package ipsource

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"

	"github.com/evanofslack/dnsupdate/internal/config"
	"github.com/evanofslack/dnsupdate/internal/metrics"
)

// Source resolves the address the DNS records should point at.
type Source interface {
	Lookup(ctx context.Context) (netip.Addr, error)
}

type Httper interface {
	Do(req *http.Request) (*http.Response, error)
}

// New returns a static source when cfg.Address is set, else a web source
// querying cfg.URL.
func New(cfg config.IP, client Httper, metrics *metrics.Metrics) (Source, error) {
	if cfg.Address != "" {
		return Static(cfg.Address)
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("ip source: no url or address configured")
	}
	return &web{url: cfg.URL, http: client, metrics: metrics}, nil
}

type static netip.Addr

// Static parses addr once and always returns it.
func Static(addr string) (Source, error) {
	ip, err := netip.ParseAddr(strings.TrimSpace(addr))
	if err != nil {
		return nil, fmt.Errorf("parse static ip %q: %w", addr, err)
	}
	return static(ip), nil
}

func (s static) Lookup(context.Context) (netip.Addr, error) {
	return netip.Addr(s), nil
}

type web struct {
	url     string
	http    Httper
	metrics *metrics.Metrics
}

// Lookup issues one GET and parses the first line of a 200 response.
func (w *web) Lookup(ctx context.Context) (netip.Addr, error) {
	ip, err := w.lookup(ctx)
	if w.metrics != nil {
		w.metrics.IncIPRequest(err == nil)
	}
	if err != nil {
		return netip.Addr{}, err
	}
	slog.Debug("Resolved public ip", "ip", ip, "source", w.url)
	return ip, nil
}

func (w *web) lookup(ctx context.Context) (netip.Addr, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.url, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("create ip request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := w.http.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("ip request %s: %w", w.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("ip request %s, status=%d", w.url, resp.StatusCode)
	}

	line, err := bufio.NewReader(io.LimitReader(resp.Body, 256)).ReadString('\n')
	if err != nil && err != io.EOF {
		return netip.Addr{}, fmt.Errorf("read ip response: %w", err)
	}
	ip, err := netip.ParseAddr(strings.TrimSpace(line))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("parse ip from response body: %w", err)
	}
	return ip.Unmap(), nil
}

package cloudflare

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/cloudflare/cloudflare-go"
	"github.com/evanofslack/dnsupdate/internal/config"
	"github.com/evanofslack/dnsupdate/internal/domain"
	"github.com/evanofslack/dnsupdate/internal/metrics"
	"github.com/evanofslack/dnsupdate/internal/provider"
	"github.com/libdns/libdns"
)

const Name = "Cloudflare"

type CloudflareProvider struct {
	client  *cloudflare.API
	metrics *metrics.Metrics
}

// recordUpdate is the PUT body; field order is part of the wire format.
type recordUpdate struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Proxied bool   `json:"proxied"`
}

func New(cfg config.Cloudflare, httpClient *http.Client, metrics *metrics.Metrics) (*CloudflareProvider, error) {
	if cfg.APIKey == "" || cfg.AccountEmail == "" {
		return nil, fmt.Errorf("cloudflare api key and account email required")
	}

	// Failed calls are never retried.
	opts := []cloudflare.Option{cloudflare.UsingRetryPolicy(0, 0, 0)}
	if cfg.BaseURL != "" {
		opts = append(opts, cloudflare.BaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}
	if httpClient != nil {
		opts = append(opts, cloudflare.HTTPClient(httpClient))
	}

	client, err := cloudflare.New(cfg.APIKey, cfg.AccountEmail, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloudflare client: %w", err)
	}

	return &CloudflareProvider{
		client:  client,
		metrics: metrics,
	}, nil
}

func (p *CloudflareProvider) Name() string {
	return Name
}

// Update resolves subdomain to its zone and existing address record, then
// rewrites the record content to ip. Missing zones, missing records and
// non-address records are skipped, never created or retyped.
func (p *CloudflareProvider) Update(ctx context.Context, subdomain string, ip netip.Addr) (provider.Outcome, error) {
	name, err := domain.Decompose(subdomain)
	if err != nil {
		return provider.Skipped, err
	}

	zoneID, found, err := p.findZone(ctx, name.Apex())
	if err != nil {
		return provider.Fail, err
	}
	if !found {
		slog.Info("Skipping subdomain without active zone", "subdomain", subdomain, "zone", name.Apex())
		return provider.Skipped, nil
	}

	record, found, err := p.findRecord(ctx, zoneID, name.FQDN())
	if err != nil {
		return provider.Fail, err
	}
	if !found {
		slog.Info("Skipping subdomain without DNS record", "name", libdns.RelativeName(name.FQDN(), name.Apex()), "zone", name.Apex())
		return provider.Skipped, nil
	}
	if !record.IsAddress() {
		slog.Info("Skipping non-address DNS record", "subdomain", subdomain, "type", record.Type)
		return provider.Skipped, nil
	}

	if err := p.updateRecord(ctx, record, ip); err != nil {
		return provider.Fail, err
	}
	return provider.Success, nil
}

func (p *CloudflareProvider) findZone(ctx context.Context, apex string) (string, bool, error) {
	slog.Debug("Getting zone", "zone", apex)

	endpoint := fmt.Sprintf("/zones?name=%s&status=active&per_page=1&page=1", url.QueryEscape(apex))
	var zones []cloudflare.Zone
	if err := p.get(ctx, "zone_lookup", endpoint, &zones); err != nil {
		return "", false, fmt.Errorf("failed to get zone %s: %w", apex, err)
	}
	if len(zones) == 0 {
		return "", false, nil
	}
	return zones[0].ID, true, nil
}

func (p *CloudflareProvider) findRecord(ctx context.Context, zoneID, fqdn string) (provider.Record, bool, error) {
	slog.Debug("Getting DNS record", "zone_id", zoneID, "name", fqdn)

	endpoint := fmt.Sprintf("/zones/%s/dns_records?name=%s", url.PathEscape(zoneID), url.QueryEscape(fqdn))
	var records []cloudflare.DNSRecord
	if err := p.get(ctx, "record_lookup", endpoint, &records); err != nil {
		return provider.Record{}, false, fmt.Errorf("failed to get DNS record %s: %w", fqdn, err)
	}
	if len(records) == 0 {
		return provider.Record{}, false, nil
	}

	r := records[0]
	return provider.Record{
		ID:      r.ID,
		Name:    r.Name,
		Type:    r.Type,
		Data:    r.Content,
		Zone:    zoneID,
		Proxied: r.Proxied != nil && *r.Proxied,
	}, true, nil
}

func (p *CloudflareProvider) updateRecord(ctx context.Context, record provider.Record, ip netip.Addr) error {
	slog.Info("Updating DNS record", "zone_id", record.Zone, "name", record.Name, "type", record.Type, "old", record.Data, "data", ip)
	start := time.Now()

	body := recordUpdate{
		ID:      record.ID,
		Content: ip.String(),
		Type:    "A",
		Name:    record.Name,
		Proxied: record.Proxied,
	}
	endpoint := fmt.Sprintf("/zones/%s/dns_records/%s", url.PathEscape(record.Zone), url.PathEscape(record.ID))

	resp, err := p.client.Raw(ctx, http.MethodPut, endpoint, body, nil)
	if err != nil {
		p.observe("update", false)
		return fmt.Errorf("failed to update DNS record %s: %w", record.Name, classify(err))
	}
	if !resp.Success {
		p.observe("update", false)
		return fmt.Errorf("failed to update DNS record %s: %w", record.Name, rejected(resp.Errors))
	}

	p.observe("update", true)
	slog.Debug("Updated DNS record", "zone_id", record.Zone, "name", record.Name, "duration", time.Since(start))
	return nil
}

func (p *CloudflareProvider) get(ctx context.Context, operation, endpoint string, out interface{}) error {
	resp, err := p.client.Raw(ctx, http.MethodGet, endpoint, nil, nil)
	if err != nil {
		p.observe(operation, false)
		return classify(err)
	}
	if !resp.Success {
		p.observe(operation, false)
		return rejected(resp.Errors)
	}

	if len(resp.Result) > 0 && string(resp.Result) != "null" {
		if err := json.Unmarshal(resp.Result, out); err != nil {
			p.observe(operation, false)
			return fmt.Errorf("decode %s result: %w", operation, err)
		}
	}
	p.observe(operation, true)
	return nil
}

func (p *CloudflareProvider) observe(operation string, success bool) {
	if p.metrics != nil {
		p.metrics.IncDNSRequest(Name, operation, success)
	}
}

// apiError is satisfied by the typed errors cloudflare-go returns for
// non-2xx API responses.
type apiError interface {
	ErrorMessages() []string
}

// classify marks API responses that carried an error status as rejections;
// anything else (connection failures, unreadable bodies) passes through.
func classify(err error) error {
	var apiErr apiError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %w", provider.ErrRejected, err)
	}
	var cfErr *cloudflare.Error
	if errors.As(err, &cfErr) {
		return fmt.Errorf("%w: %w", provider.ErrRejected, err)
	}
	return err
}

func rejected(infos []cloudflare.ResponseInfo) error {
	if len(infos) == 0 {
		return provider.ErrRejected
	}
	msgs := make([]string, 0, len(infos))
	for _, info := range infos {
		msgs = append(msgs, fmt.Sprintf("%d: %s", info.Code, info.Message))
	}
	return fmt.Errorf("%w: %s", provider.ErrRejected, strings.Join(msgs, "; "))
}

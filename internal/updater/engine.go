package updater

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"

	"github.com/evanofslack/dnsupdate/internal/domain"
	"github.com/evanofslack/dnsupdate/internal/metrics"
	"github.com/evanofslack/dnsupdate/internal/provider"
)

type Engine interface {
	Run(ctx context.Context, ip netip.Addr) (Results, error)
	Update(ctx context.Context, backend Backend, ip netip.Addr) (Results, error)
}

type engine struct {
	backends []Backend
	out      io.Writer
	failFast bool
	metrics  *metrics.Metrics
}

// NewEngine returns an engine that updates backends in the given order and
// writes one progress line per subdomain to out.
func NewEngine(backends []Backend, out io.Writer, failFast bool, metrics *metrics.Metrics) *engine {
	if out == nil {
		out = io.Discard
	}
	return &engine{
		backends: backends,
		out:      out,
		failFast: failFast,
		metrics:  metrics,
	}
}

func (e *engine) Run(ctx context.Context, ip netip.Addr) (Results, error) {
	results := Results{}
	for _, b := range e.backends {
		res, err := e.Update(ctx, b, ip)
		results.merge(res)
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// Update attempts every subdomain of backend once. Per-subdomain errors are
// logged and recorded in the results; only with failFast does a
// decomposition or transport error stop the run. Rejections never do.
func (e *engine) Update(ctx context.Context, backend Backend, ip netip.Addr) (Results, error) {
	results := Results{}
	name := backend.Provider.Name()
	// Cancellation is honoured between subdomains; a request already sent
	// runs to completion, bounded by the client timeout.
	reqCtx := context.WithoutCancel(ctx)

	for _, subdomain := range backend.Domains {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("%s: %w", name, err)
		}

		outcome, err := backend.Provider.Update(reqCtx, subdomain, ip)
		fmt.Fprintf(e.out, "[%s] Update %s: %s\n", name, subdomain, outcome)
		if e.metrics != nil {
			e.metrics.IncUpdate(name, outcome.Label())
		}
		results.add(Result{Backend: name, Subdomain: subdomain, Outcome: outcome, Err: err})

		if err == nil {
			continue
		}

		var derr *domain.DecompositionError
		switch {
		case errors.As(err, &derr):
			slog.Warn("fail decompose subdomain", "backend", name, "subdomain", subdomain, "error", err)
		case errors.Is(err, provider.ErrRejected):
			slog.Error("update rejected", "backend", name, "subdomain", subdomain, "error", err)
			continue
		default:
			slog.Error("fail update subdomain", "backend", name, "subdomain", subdomain, "error", err)
		}
		if e.failFast {
			return results, fmt.Errorf("%s update %s: %w", name, subdomain, err)
		}
	}
	return results, nil
}

package provider

import (
	"context"
	"errors"
	"net/netip"
)

// ErrRejected marks a response in which the backend answered but refused
// the request (non-2xx status or an unsuccessful result body).
var ErrRejected = errors.New("rejected by backend")

// Provider updates the address record behind a configured subdomain.
//
// Update returns the outcome for that subdomain. A non-nil error always comes
// with a Fail or Skipped outcome and explains it; NotFound conditions are
// reported as Skipped with a nil error.
type Provider interface {
	Name() string
	Update(ctx context.Context, subdomain string, ip netip.Addr) (Outcome, error)
}

type Outcome int

const (
	Success Outcome = iota
	Fail
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "Success"
	case Fail:
		return "Fail"
	case Skipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

// Label is the lower case form used in metrics.
func (o Outcome) Label() string {
	switch o {
	case Success:
		return "success"
	case Fail:
		return "fail"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Record is the subset of a backend DNS record the update protocols read.
type Record struct {
	ID      string
	Name    string
	Type    string
	Data    string
	Zone    string
	Proxied bool
}

// IsAddress reports whether the record holds an address (A or AAAA).
func (r Record) IsAddress() bool {
	return r.Type == "A" || r.Type == "AAAA"
}

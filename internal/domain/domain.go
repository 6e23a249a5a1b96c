// Package domain splits fully-qualified names into the parts a DNS provider
// needs to locate a zone: the label below the registrable domain, the
// registrable domain itself and its public suffix.
package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/libdns/libdns"
	"github.com/miekg/dns"
	"golang.org/x/net/publicsuffix"
)

var (
	ErrInvalidName        = errors.New("invalid domain name")
	ErrUnrecognizedSuffix = errors.New("unrecognized public suffix")
	ErrNoRegistrable      = errors.New("name has no registrable domain")
)

// DecompositionError is returned when a name cannot be split against the
// public suffix list.
type DecompositionError struct {
	Name string
	Err  error
}

func (e *DecompositionError) Error() string {
	return fmt.Sprintf("decompose %q: %v", e.Name, e.Err)
}

func (e *DecompositionError) Unwrap() error {
	return e.Err
}

// Name is a decomposed domain name. Label is empty for apex names.
type Name struct {
	Label       string
	Registrable string
	Suffix      string
}

// Apex is the zone apex, e.g. "example.co.uk".
func (n Name) Apex() string {
	return n.Registrable + "." + n.Suffix
}

// FQDN reassembles the full name, e.g. "home.example.co.uk".
func (n Name) FQDN() string {
	return libdns.AbsoluteName(n.Label, n.Apex())
}

func (n Name) String() string {
	return n.FQDN()
}

// Decompose splits subdomain using the public suffix list. Both ICANN and
// privately managed suffixes are recognized; a suffix that only matches the
// implicit "*" rule is not.
func Decompose(subdomain string) (Name, error) {
	name := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(subdomain), "."))
	if !validName(name) {
		return Name{}, &DecompositionError{Name: subdomain, Err: ErrInvalidName}
	}

	suffix, icann := publicsuffix.PublicSuffix(name)
	if !icann && !strings.Contains(suffix, ".") {
		return Name{}, &DecompositionError{Name: subdomain, Err: ErrUnrecognizedSuffix}
	}

	apex, err := publicsuffix.EffectiveTLDPlusOne(name)
	if err != nil {
		return Name{}, &DecompositionError{Name: subdomain, Err: fmt.Errorf("%w: %v", ErrNoRegistrable, err)}
	}

	return Name{
		Label:       strings.TrimSuffix(strings.TrimSuffix(name, apex), "."),
		Registrable: strings.TrimSuffix(apex, "."+suffix),
		Suffix:      suffix,
	}, nil
}

func validName(name string) bool {
	if name == "" || strings.HasPrefix(name, ".") || strings.Contains(name, "..") {
		return false
	}
	if strings.ContainsAny(name, " \t/\\@") {
		return false
	}
	_, ok := dns.IsDomainName(name)
	return ok
}

package updater

import (
	"io"
	"unicode/utf8"

	"github.com/evanofslack/dnsupdate/internal/provider"
	"github.com/olekukonko/tablewriter"
)

// Backend pairs a provider with the subdomains it should update, in order.
type Backend struct {
	Provider provider.Provider
	Domains  []string
}

type Result struct {
	Backend   string
	Subdomain string
	Outcome   provider.Outcome
	Err       error
}

type Results struct {
	Items []Result
}

func (r *Results) add(res Result) {
	r.Items = append(r.Items, res)
}

func (r *Results) merge(other Results) {
	r.Items = append(r.Items, other.Items...)
}

func (r Results) Count(outcome provider.Outcome) int {
	n := 0
	for _, item := range r.Items {
		if item.Outcome == outcome {
			n++
		}
	}
	return n
}

// Failed reports whether any subdomain ended in Fail.
func (r Results) Failed() bool {
	return r.Count(provider.Fail) > 0
}

const maxErrorWidth = 64

func (r Results) WriteTable(w io.Writer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Backend", "Subdomain", "Outcome", "Error"})
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_CENTER, tablewriter.ALIGN_LEFT})
	table.SetAutoWrapText(false)
	for _, item := range r.Items {
		msg := ""
		if item.Err != nil {
			msg = truncate(item.Err.Error(), maxErrorWidth)
		}
		table.Append([]string{item.Backend, item.Subdomain, item.Outcome.String(), msg})
	}
	table.Render()
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

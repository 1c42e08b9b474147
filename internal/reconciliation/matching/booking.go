package matching

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"github.com/invoice-reconciliation/internal/domain/hms"
	"github.com/invoice-reconciliation/internal/domain/rule"
)

// BookingOutcome describes how a booking reference was matched, if at all
type BookingOutcome struct {
	Matched    bool
	Strategy   rule.BookingStrategy
	InvoiceRef string
	OMSRef     string
	MappedRef  string
	Attempted  []rule.BookingStrategy
}

// StripPrefix removes the longest configured prefix found at the start of ref
func StripPrefix(ref string, ph rule.PrefixHandling) string {
	ref = strings.TrimSpace(ref)
	if !ph.Enabled {
		return ref
	}

	prefixes := make([]string, len(ph.Prefixes))
	copy(prefixes, ph.Prefixes)
	sort.SliceStable(prefixes, func(i, j int) bool {
		return len(prefixes[i]) > len(prefixes[j])
	})

	for _, p := range prefixes {
		if p == "" || len(p) > len(ref) {
			continue
		}
		head := ref[:len(p)]
		if head == p || (ph.CaseInsensitive && strings.EqualFold(head, p)) {
			return strings.TrimSpace(ref[len(p):])
		}
	}
	return ref
}

// NormalizeReference upper-cases a booking reference and drops separators
func NormalizeReference(ref string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(ref) {
		if isLetterOrDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isLetterOrDigit(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// MatchBooking tries each configured strategy in order and stops at the first match.
// Configured prefixes are stripped from both references and from mapped ids.
// A mapping that does not exist is a non-match; an unavailable lookup is returned as an error.
func MatchBooking(ctx context.Context, cfg rule.BookingMatchConfig, lookup hms.Lookup, vendorCode, invoiceRef, omsRef string) (BookingOutcome, error) {
	out := BookingOutcome{
		InvoiceRef: StripPrefix(invoiceRef, cfg.PrefixHandling),
		OMSRef:     StripPrefix(omsRef, cfg.PrefixHandling),
	}
	want := NormalizeReference(out.OMSRef)
	if want == "" {
		return out, nil
	}

	for _, strategy := range cfg.Strategies {
		out.Attempted = append(out.Attempted, strategy)

		switch strategy {
		case rule.StrategyDirectOMS:
			if NormalizeReference(out.InvoiceRef) == want {
				out.Matched = true
				out.Strategy = strategy
				return out, nil
			}

		case rule.StrategyHMSMapping:
			if lookup == nil {
				return out, hms.ErrLookupUnavailable{VendorCode: vendorCode, VendorBookingID: out.InvoiceRef, Err: errNoLookup}
			}
			mapped, found, err := lookup.Resolve(ctx, vendorCode, out.InvoiceRef)
			if err != nil {
				return out, err
			}
			if found && NormalizeReference(StripPrefix(mapped, cfg.PrefixHandling)) == want {
				out.Matched = true
				out.Strategy = strategy
				out.MappedRef = mapped
				return out, nil
			}
		}
	}
	return out, nil
}

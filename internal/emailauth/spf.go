package emailauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/privacychecker/audit-core/internal/audit"
	"github.com/privacychecker/audit-core/internal/resolver"
)

// RFC 7208 limits an SPF evaluation to 10 DNS-costing terms across the
// whole include/redirect tree.
const spfLookupBudget = 10

var (
	errLookupBudget = errors.New("too many DNS lookups")
	errIncludeCycle = errors.New("include cycle")
	errNoSPFRecord  = errors.New("no SPF record")
)

type axisResult struct {
	status   audit.AuthStatus
	score    int
	findings []string
}

func evaluateSPF(ctx context.Context, dns DNSClient, domain, record string, lookupErr error) axisResult {
	if lookupErr != nil {
		switch {
		case errors.Is(lookupErr, resolver.ErrMultipleRecords):
			return axisResult{
				status:   audit.StatusPermError,
				score:    0,
				findings: []string{"SPF: multiple SPF records published, receivers treat this as a permanent error"},
			}
		case errors.Is(lookupErr, resolver.ErrNotFound):
			return axisResult{
				status:   audit.StatusNotFound,
				score:    0,
				findings: []string{"SPF: no SPF record published"},
			}
		default:
			return axisResult{
				status:   audit.StatusNotFound,
				score:    0,
				findings: []string{"SPF: lookup failed, record could not be verified"},
			}
		}
	}

	w := &spfWalker{
		dns:     dns,
		budget:  spfLookupBudget,
		visited: map[string]bool{domain: true},
	}
	qualifier, err := w.walk(ctx, record)
	if err != nil {
		return axisResult{
			status:   audit.StatusPermError,
			score:    0,
			findings: []string{"SPF: " + err.Error() + ", receivers treat this as a permanent error"},
		}
	}

	switch qualifier {
	case "-":
		return axisResult{status: audit.StatusPassStrict, score: 100}
	case "~":
		return axisResult{status: audit.StatusPassSoft, score: 80}
	case "?":
		return axisResult{
			status:   audit.StatusNeutral,
			score:    40,
			findings: []string{"SPF: ?all gives receivers no guidance, use ~all or -all"},
		}
	case "+":
		return axisResult{
			status:   audit.StatusDangerous,
			score:    5,
			findings: []string{"SPF: +all authorizes any server to send as this domain"},
		}
	default:
		return axisResult{
			status:   audit.StatusNoAll,
			score:    50,
			findings: []string{"SPF: record has no all mechanism, unlisted senders are unconstrained"},
		}
	}
}

type spfWalker struct {
	dns     DNSClient
	budget  int
	visited map[string]bool
}

// walk parses one SPF record, spends budget on its DNS-costing terms,
// recurses through include and redirect, and returns the qualifier of
// the all mechanism that terminates evaluation ("" when none).
func (w *spfWalker) walk(ctx context.Context, record string) (string, error) {
	terms := strings.Fields(record)
	if len(terms) == 0 || !strings.EqualFold(terms[0], "v=spf1") {
		return "", fmt.Errorf("malformed record %q", record)
	}

	allQualifier := ""
	redirectTarget := ""

	for _, term := range terms[1:] {
		lower := strings.ToLower(term)

		qualifier := "+"
		mech := lower
		if len(mech) > 0 && strings.ContainsAny(mech[:1], "+-~?") {
			qualifier = mech[:1]
			mech = mech[1:]
		}

		switch {
		case mech == "all":
			allQualifier = qualifier
		case strings.HasPrefix(mech, "include:"):
			if err := w.spend(); err != nil {
				return "", err
			}
			target := strings.TrimPrefix(mech, "include:")
			if err := w.descend(ctx, target); err != nil {
				return "", err
			}
		case mech == "a" || strings.HasPrefix(mech, "a:") || strings.HasPrefix(mech, "a/"),
			mech == "mx" || strings.HasPrefix(mech, "mx:") || strings.HasPrefix(mech, "mx/"),
			mech == "ptr" || strings.HasPrefix(mech, "ptr:"),
			strings.HasPrefix(mech, "exists:"):
			if err := w.spend(); err != nil {
				return "", err
			}
		case strings.HasPrefix(lower, "redirect="):
			if err := w.spend(); err != nil {
				return "", err
			}
			redirectTarget = strings.TrimPrefix(lower, "redirect=")
		}
	}

	// redirect only applies when the record has no all mechanism
	if allQualifier == "" && redirectTarget != "" {
		if w.visited[redirectTarget] {
			return "", errIncludeCycle
		}
		w.visited[redirectTarget] = true
		target, err := w.fetch(ctx, redirectTarget)
		if err != nil {
			return "", err
		}
		return w.walk(ctx, target)
	}

	return allQualifier, nil
}

// descend fetches and walks an included record for budget and cycle
// accounting. The included record's all qualifier does not terminate
// the caller's evaluation.
func (w *spfWalker) descend(ctx context.Context, target string) error {
	if w.visited[target] {
		return errIncludeCycle
	}
	w.visited[target] = true
	record, err := w.fetch(ctx, target)
	if err != nil {
		return err
	}
	_, err = w.walk(ctx, record)
	return err
}

func (w *spfWalker) fetch(ctx context.Context, domain string) (string, error) {
	record, err := w.dns.SPF(ctx, domain)
	if err != nil {
		if errors.Is(err, resolver.ErrMultipleRecords) {
			return "", fmt.Errorf("%s publishes multiple SPF records", domain)
		}
		return "", fmt.Errorf("%w at %s", errNoSPFRecord, domain)
	}
	return record, nil
}

func (w *spfWalker) spend() error {
	w.budget--
	if w.budget < 0 {
		return errLookupBudget
	}
	return nil
}

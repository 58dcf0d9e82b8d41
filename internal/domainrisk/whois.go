// Package domainrisk enriches an audit with WHOIS registration health.
// It is informational only and never feeds category scoring.
package domainrisk

import (
	"fmt"
	"time"

	"github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"
	"go.uber.org/zap"

	"github.com/privacychecker/audit-core/internal/audit"
)

const (
	warningDays  = 60
	criticalDays = 14
)

// whoisFn is swapped in tests.
type whoisFn func(domain string, servers ...string) (string, error)

type Checker struct {
	lookup whoisFn
	logger *zap.Logger
	now    func() time.Time
}

func NewChecker(logger *zap.Logger) *Checker {
	return &Checker{lookup: whois.Whois, logger: logger, now: time.Now}
}

// Check runs a WHOIS lookup. Failures return a nil risk and an error;
// the caller treats the enrichment as optional.
func (c *Checker) Check(domain string) (*audit.DomainRisk, error) {
	raw, err := c.lookup(domain)
	if err != nil {
		return nil, fmt.Errorf("whois lookup failed: %w", err)
	}

	parsed, err := whoisparser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("whois parse failed: %w", err)
	}

	risk := &audit.DomainRisk{
		Registrar: parsed.Registrar.Name,
		Status:    "unknown",
	}

	if parsed.Domain.ExpirationDate == "" {
		return risk, nil
	}
	expiry, err := parseWhoisDate(parsed.Domain.ExpirationDate)
	if err != nil {
		c.logger.Debug("unparsable whois expiry",
			zap.String("domain", domain),
			zap.String("raw", parsed.Domain.ExpirationDate))
		return risk, nil
	}

	risk.ExpiresAt = &expiry
	risk.DaysUntilExpiry = int(expiry.Sub(c.now()).Hours() / 24)
	risk.Status = classify(risk.DaysUntilExpiry)
	return risk, nil
}

func classify(days int) string {
	switch {
	case days < criticalDays:
		return "critical"
	case days < warningDays:
		return "warning"
	default:
		return "ok"
	}
}

func parseWhoisDate(dateStr string) (time.Time, error) {
	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"02-Jan-2006",
		"2006.01.02 15:04:05",
		"2006/01/02",
		"2006-01-02",
	}
	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

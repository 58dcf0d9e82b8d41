// Package emailauth grades a domain's email authentication posture
// from its published SPF, DKIM, and DMARC records. The grader always
// produces a complete grade; lookup failures lower the affected axis
// and surface as findings instead of errors.
package emailauth

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/privacychecker/audit-core/internal/audit"
	"github.com/privacychecker/audit-core/internal/resolver"
)

// DNSClient is the record access the grader needs, satisfied by
// *resolver.Client.
type DNSClient interface {
	SPF(ctx context.Context, domain string) (string, error)
	DKIM(ctx context.Context, domain string) (selector, record string, err error)
	DMARC(ctx context.Context, domain string) ([]string, error)
	MX(ctx context.Context, domain string) ([]string, error)
	ResolveAll(ctx context.Context, domain string) resolver.Records
}

// Axis weights sum to 100.
const (
	weightSPF   = 40
	weightDKIM  = 30
	weightDMARC = 30
)

type Grader struct {
	dns    DNSClient
	logger *zap.Logger
}

func NewGrader(dns DNSClient, logger *zap.Logger) *Grader {
	return &Grader{dns: dns, logger: logger}
}

// Grade resolves the domain's records and scores the three axes. The
// context bounds the whole resolution including SPF include recursion.
func (g *Grader) Grade(ctx context.Context, domain string) *audit.EmailGrade {
	rec := g.dns.ResolveAll(ctx, domain)

	spf := evaluateSPF(ctx, g.dns, domain, rec.SPF, rec.SPFErr)
	dkim := evaluateDKIM(rec.DKIMSel, rec.DKIMRec, rec.DKIMErr)
	dmarc := evaluateDMARC(rec.DMARC, rec.DMARCErr)

	score := weighted(spf.score, dkim.score, dmarc.score)
	grade := &audit.EmailGrade{
		Domain:      domain,
		Score:       score,
		Grade:       letter(score),
		SPFStatus:   spf.status,
		DKIMStatus:  dkim.status,
		DMARCStatus: dmarc.status,
		HasMX:       rec.MXErr == nil && len(rec.MXHosts) > 0,
		Findings:    []string{},
	}
	grade.Findings = append(grade.Findings, spf.findings...)
	grade.Findings = append(grade.Findings, dkim.findings...)
	grade.Findings = append(grade.Findings, dmarc.findings...)
	if !grade.HasMX {
		grade.Findings = append(grade.Findings, "MX: domain publishes no MX records and cannot receive mail")
	}

	g.logger.Debug("email grade computed",
		zap.String("domain", domain),
		zap.Int("score", score),
		zap.String("grade", grade.Grade),
		zap.String("spf", string(spf.status)),
		zap.String("dkim", string(dkim.status)),
		zap.String("dmarc", string(dmarc.status)))

	return grade
}

func weighted(spf, dkim, dmarc int) int {
	raw := float64(spf)*weightSPF + float64(dkim)*weightDKIM + float64(dmarc)*weightDMARC
	return int(math.Round(raw / 100))
}

func letter(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

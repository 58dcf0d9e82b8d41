package emailauth

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/privacychecker/audit-core/internal/audit"
	"github.com/privacychecker/audit-core/internal/resolver"
)

type fakeDNS struct {
	spf      map[string]string
	spfErr   map[string]error
	dkimSel  string
	dkimRec  string
	dkimErr  error
	dmarc    []string
	dmarcErr error
	mx       []string
	mxErr    error
}

func (f *fakeDNS) SPF(_ context.Context, domain string) (string, error) {
	if err, ok := f.spfErr[domain]; ok {
		return "", err
	}
	if rec, ok := f.spf[domain]; ok {
		return rec, nil
	}
	return "", fmt.Errorf("%w: %s", resolver.ErrNotFound, domain)
}

func (f *fakeDNS) DKIM(_ context.Context, _ string) (string, string, error) {
	return f.dkimSel, f.dkimRec, f.dkimErr
}

func (f *fakeDNS) DMARC(_ context.Context, _ string) ([]string, error) {
	return f.dmarc, f.dmarcErr
}

func (f *fakeDNS) MX(_ context.Context, _ string) ([]string, error) {
	return f.mx, f.mxErr
}

func (f *fakeDNS) ResolveAll(ctx context.Context, domain string) resolver.Records {
	rec := resolver.Records{
		DKIMSel:  f.dkimSel,
		DKIMRec:  f.dkimRec,
		DKIMErr:  f.dkimErr,
		DMARC:    f.dmarc,
		DMARCErr: f.dmarcErr,
		MXHosts:  f.mx,
		MXErr:    f.mxErr,
	}
	rec.SPF, rec.SPFErr = f.SPF(ctx, domain)
	return rec
}

func notFound() error {
	return fmt.Errorf("probe: %w", resolver.ErrNotFound)
}

// healthyDNS publishes a fully configured domain.
func healthyDNS() *fakeDNS {
	return &fakeDNS{
		spf:     map[string]string{"example.com": "v=spf1 include:_spf.mailer.example -all"},
		dkimSel: "default",
		dkimRec: "v=DKIM1; k=rsa; p=MIGfMA0GCSqGSIb3DQEB",
		dmarc:   []string{"v=DMARC1; p=reject; rua=mailto:dmarc@example.com"},
		mx:      []string{"mx1.example.com"},
	}
}

func grade(t *testing.T, dns *fakeDNS) *audit.EmailGrade {
	t.Helper()
	if dns.spf != nil {
		// include targets default to a terminal record unless set
		if _, ok := dns.spf["_spf.mailer.example"]; !ok {
			dns.spf["_spf.mailer.example"] = "v=spf1 ip4:192.0.2.0/24 -all"
		}
	}
	g := NewGrader(dns, zap.NewNop())
	return g.Grade(context.Background(), "example.com")
}

func TestGradeFullyConfiguredDomain(t *testing.T) {
	got := grade(t, healthyDNS())
	assert.Equal(t, 100, got.Score)
	assert.Equal(t, "A", got.Grade)
	assert.Equal(t, audit.StatusPassStrict, got.SPFStatus)
	assert.Equal(t, audit.StatusPass, got.DKIMStatus)
	assert.Equal(t, audit.StatusReject, got.DMARCStatus)
	assert.True(t, got.HasMX)
	assert.Empty(t, got.Findings)
}

func TestGradeUnconfiguredDomain(t *testing.T) {
	dns := &fakeDNS{
		dkimErr:  notFound(),
		dmarcErr: notFound(),
		mxErr:    notFound(),
	}
	got := grade(t, dns)
	// spf 0, dkim 50 (lenient unknown), dmarc 0
	assert.Equal(t, 15, got.Score)
	assert.Equal(t, "F", got.Grade)
	assert.Equal(t, audit.StatusNotFound, got.SPFStatus)
	assert.Equal(t, audit.StatusUnknown, got.DKIMStatus)
	assert.Equal(t, audit.StatusNotFound, got.DMARCStatus)
	assert.False(t, got.HasMX)
	require.Len(t, got.Findings, 4)
	assert.Contains(t, got.Findings[2], "no DMARC policy")
}

func TestSPFQualifiers(t *testing.T) {
	tests := []struct {
		record string
		status audit.AuthStatus
		score  int
	}{
		{"v=spf1 ip4:192.0.2.1 -all", audit.StatusPassStrict, 100},
		{"v=spf1 ip4:192.0.2.1 ~all", audit.StatusPassSoft, 80},
		{"v=spf1 ip4:192.0.2.1 ?all", audit.StatusNeutral, 40},
		{"v=spf1 ip4:192.0.2.1 +all", audit.StatusDangerous, 5},
		{"v=spf1 ip4:192.0.2.1 all", audit.StatusDangerous, 5},
		{"v=spf1 ip4:192.0.2.1", audit.StatusNoAll, 50},
	}
	for _, tt := range tests {
		t.Run(tt.record, func(t *testing.T) {
			dns := &fakeDNS{spf: map[string]string{"example.com": tt.record}}
			res := evaluateSPF(context.Background(), dns, "example.com", tt.record, nil)
			assert.Equal(t, tt.status, res.status)
			assert.Equal(t, tt.score, res.score)
		})
	}
}

func TestSPFMultipleRecordsIsPermError(t *testing.T) {
	err := fmt.Errorf("2 records: %w", resolver.ErrMultipleRecords)
	res := evaluateSPF(context.Background(), &fakeDNS{}, "example.com", "", err)
	assert.Equal(t, audit.StatusPermError, res.status)
	assert.Zero(t, res.score)
	require.Len(t, res.findings, 1)
	assert.Contains(t, res.findings[0], "multiple SPF records")
}

func TestSPFLookupBudget(t *testing.T) {
	spf := map[string]string{}
	var includes []string
	for i := 1; i <= 11; i++ {
		name := fmt.Sprintf("inc%d.example", i)
		includes = append(includes, "include:"+name)
		spf[name] = "v=spf1 ip4:192.0.2.1 -all"
	}
	record := "v=spf1 " + strings.Join(includes, " ") + " -all"
	spf["example.com"] = record

	res := evaluateSPF(context.Background(), &fakeDNS{spf: spf}, "example.com", record, nil)
	assert.Equal(t, audit.StatusPermError, res.status)
	assert.Zero(t, res.score)
	require.Len(t, res.findings, 1)
	assert.Contains(t, res.findings[0], "too many DNS lookups")
}

func TestSPFTenLookupsIsFine(t *testing.T) {
	spf := map[string]string{}
	var includes []string
	for i := 1; i <= 10; i++ {
		name := fmt.Sprintf("inc%d.example", i)
		includes = append(includes, "include:"+name)
		spf[name] = "v=spf1 ip4:192.0.2.1 -all"
	}
	record := "v=spf1 " + strings.Join(includes, " ") + " -all"
	spf["example.com"] = record

	res := evaluateSPF(context.Background(), &fakeDNS{spf: spf}, "example.com", record, nil)
	assert.Equal(t, audit.StatusPassStrict, res.status)
}

func TestSPFIncludeCycle(t *testing.T) {
	spf := map[string]string{
		"a.example": "v=spf1 include:b.example -all",
		"b.example": "v=spf1 include:a.example -all",
	}
	record := spf["a.example"]
	res := evaluateSPF(context.Background(), &fakeDNS{spf: spf}, "a.example", record, nil)
	assert.Equal(t, audit.StatusPermError, res.status)
	assert.Zero(t, res.score)
}

func TestSPFRedirect(t *testing.T) {
	spf := map[string]string{
		"example.com":   "v=spf1 redirect=spf.example.net",
		"spf.example.net": "v=spf1 ip4:192.0.2.1 ~all",
	}
	res := evaluateSPF(context.Background(), &fakeDNS{spf: spf}, "example.com", spf["example.com"], nil)
	assert.Equal(t, audit.StatusPassSoft, res.status)
	assert.Equal(t, 80, res.score)
}

func TestSPFIncludeTargetMissing(t *testing.T) {
	record := "v=spf1 include:gone.example -all"
	res := evaluateSPF(context.Background(), &fakeDNS{spf: map[string]string{"example.com": record}}, "example.com", record, nil)
	assert.Equal(t, audit.StatusPermError, res.status)
}

func TestDKIMClassification(t *testing.T) {
	tests := []struct {
		name   string
		record string
		err    error
		status audit.AuthStatus
		score  int
	}{
		{"valid key", "v=DKIM1; k=rsa; p=MIGfMA0G", nil, audit.StatusPass, 100},
		{"revoked empty p", "v=DKIM1; k=rsa; p=", nil, audit.StatusRevoked, 20},
		{"malformed no p tag", "v=DKIM1; k=rsa", nil, audit.StatusMalformed, 30},
		{"no selector resolved", "", notFound(), audit.StatusUnknown, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := evaluateDKIM("default", tt.record, tt.err)
			assert.Equal(t, tt.status, res.status)
			assert.Equal(t, tt.score, res.score)
			if tt.status != audit.StatusPass {
				assert.NotEmpty(t, res.findings)
			}
		})
	}
}

func TestDMARCPolicies(t *testing.T) {
	tests := []struct {
		name    string
		records []string
		err     error
		status  audit.AuthStatus
		score   int
	}{
		{"reject", []string{"v=DMARC1; p=reject"}, nil, audit.StatusReject, 100},
		{"quarantine", []string{"v=DMARC1; p=quarantine"}, nil, audit.StatusQuarantine, 80},
		{"none", []string{"v=DMARC1; p=none"}, nil, audit.StatusMonitor, 30},
		{"absent", nil, notFound(), audit.StatusNotFound, 0},
		{"multiple records", []string{"v=DMARC1; p=reject", "v=DMARC1; p=none"}, nil, audit.StatusPermError, 0},
		{"no p tag", []string{"v=DMARC1; rua=mailto:x@example.com"}, nil, audit.StatusPermError, 0},
		{"reject at pct 50", []string{"v=DMARC1; p=reject; pct=50"}, nil, audit.StatusReject, 50},
		{"quarantine at pct 25", []string{"v=DMARC1; p=quarantine; pct=25"}, nil, audit.StatusQuarantine, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := evaluateDMARC(tt.records, tt.err)
			assert.Equal(t, tt.status, res.status)
			assert.Equal(t, tt.score, res.score)
		})
	}
}

func TestWeightedScoreAndLetterGrades(t *testing.T) {
	tests := []struct {
		spf, dkim, dmarc int
		score            int
		grade            string
	}{
		{100, 100, 100, 100, "A"},
		{80, 100, 80, 86, "B"},   // soft fail + monitoring gaps
		{100, 50, 30, 64, "D"},   // 40 + 15 + 9
		{0, 50, 0, 15, "F"},
		{80, 100, 100, 92, "A"},
	}
	for _, tt := range tests {
		got := weighted(tt.spf, tt.dkim, tt.dmarc)
		assert.Equal(t, tt.score, got)
		assert.Equal(t, tt.grade, letter(got))
	}
}

func TestFindingsOrderIsDeterministic(t *testing.T) {
	dns := &fakeDNS{
		spf:      map[string]string{"example.com": "v=spf1 ip4:192.0.2.1 ?all"},
		dkimRec:  "v=DKIM1; p=",
		dkimSel:  "default",
		dmarc:    []string{"v=DMARC1; p=none"},
		mx:       []string{"mx.example.com"},
	}
	first := grade(t, dns)
	second := grade(t, dns)
	require.Equal(t, first.Findings, second.Findings)
	require.Len(t, first.Findings, 3)
	assert.True(t, strings.HasPrefix(first.Findings[0], "SPF:"))
	assert.True(t, strings.HasPrefix(first.Findings[1], "DKIM:"))
	assert.True(t, strings.HasPrefix(first.Findings[2], "DMARC:"))
}

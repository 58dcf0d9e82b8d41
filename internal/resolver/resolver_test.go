package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// zone maps "name/qtype" to TXT or MX payloads served by the fake
// exchange.
type zone map[string][]string

func testClient(records zone) *Client {
	c := New(Config{}, zap.NewNop())
	c.exchange = func(_ context.Context, m *dns.Msg) (*dns.Msg, error) {
		q := m.Question[0]
		name := strings.TrimSuffix(q.Name, ".")
		key := name + "/" + dns.TypeToString[q.Qtype]

		r := new(dns.Msg)
		r.SetReply(m)

		payloads, ok := records[key]
		if !ok {
			r.Rcode = dns.RcodeNameError
			return r, nil
		}
		for _, p := range payloads {
			switch q.Qtype {
			case dns.TypeTXT:
				r.Answer = append(r.Answer, &dns.TXT{
					Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeTXT, Class: dns.ClassINET},
					Txt: []string{p},
				})
			case dns.TypeMX:
				r.Answer = append(r.Answer, &dns.MX{
					Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeMX, Class: dns.ClassINET},
					Mx:  p + ".",
				})
			}
		}
		return r, nil
	}
	return c
}

func TestSPFSingleRecord(t *testing.T) {
	c := testClient(zone{
		"example.com/TXT": {
			"google-site-verification=abc123",
			"v=spf1 include:_spf.google.com ~all",
		},
	})
	record, err := c.SPF(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, "v=spf1 include:_spf.google.com ~all", record)
}

func TestSPFNotFound(t *testing.T) {
	c := testClient(zone{"example.com/TXT": {"some-verification=1"}})
	_, err := c.SPF(context.Background(), "example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	c = testClient(zone{})
	_, err = c.SPF(context.Background(), "example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSPFMultipleRecords(t *testing.T) {
	c := testClient(zone{
		"example.com/TXT": {
			"v=spf1 -all",
			"v=spf1 include:other.example ~all",
		},
	})
	_, err := c.SPF(context.Background(), "example.com")
	assert.ErrorIs(t, err, ErrMultipleRecords)
}

func TestDMARCLookupUsesPrefix(t *testing.T) {
	c := testClient(zone{
		"_dmarc.example.com/TXT": {"v=DMARC1; p=reject"},
	})
	records, err := c.DMARC(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"v=DMARC1; p=reject"}, records)
}

func TestDKIMProbesSelectorsInOrder(t *testing.T) {
	c := testClient(zone{
		"selector1._domainkey.example.com/TXT": {"v=DKIM1; k=rsa; p=AAA"},
		"s1._domainkey.example.com/TXT":        {"v=DKIM1; k=rsa; p=BBB"},
	})
	sel, record, err := c.DKIM(context.Background(), "example.com")
	require.NoError(t, err)
	// selector1 precedes s1 in the default probe order
	assert.Equal(t, "selector1", sel)
	assert.Equal(t, "v=DKIM1; k=rsa; p=AAA", record)
}

func TestDKIMNoSelectorResolves(t *testing.T) {
	c := testClient(zone{})
	_, _, err := c.DKIM(context.Background(), "example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMXStripsTrailingDot(t *testing.T) {
	c := testClient(zone{"example.com/MX": {"mx1.example.com", "mx2.example.com"}})
	hosts, err := c.MX(context.Background(), "example.com")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"mx1.example.com", "mx2.example.com"}, hosts)
}

func TestQueryServerFailure(t *testing.T) {
	c := New(Config{}, zap.NewNop())
	c.exchange = func(_ context.Context, m *dns.Msg) (*dns.Msg, error) {
		r := new(dns.Msg)
		r.SetReply(m)
		r.Rcode = dns.RcodeServerFailure
		return r, nil
	}
	_, err := c.TXT(context.Background(), "example.com")
	assert.ErrorIs(t, err, ErrUnresolvable)

	c.exchange = func(_ context.Context, _ *dns.Msg) (*dns.Msg, error) {
		return nil, errors.New("i/o timeout")
	}
	_, err = c.TXT(context.Background(), "example.com")
	assert.ErrorIs(t, err, ErrUnresolvable)
}

func TestResolveAllCollectsEverything(t *testing.T) {
	c := testClient(zone{
		"example.com/TXT":                    {"v=spf1 -all"},
		"_dmarc.example.com/TXT":             {"v=DMARC1; p=none"},
		"default._domainkey.example.com/TXT": {"v=DKIM1; p=CCC"},
		"example.com/MX":                     {"mail.example.com"},
	})
	rec := c.ResolveAll(context.Background(), "example.com")
	assert.NoError(t, rec.SPFErr)
	assert.Equal(t, "v=spf1 -all", rec.SPF)
	assert.NoError(t, rec.DKIMErr)
	assert.Equal(t, "default", rec.DKIMSel)
	assert.NoError(t, rec.DMARCErr)
	assert.NoError(t, rec.MXErr)
	assert.Equal(t, []string{"mail.example.com"}, rec.MXHosts)
}

// Package resolver wraps a DNS client for the record types the email
// authentication grader needs. Lookups go to one configured resolver
// and are rate limited per client instance.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// ErrNotFound means the name does not exist or holds no records of
	// the requested type. Expected for most domains on most selectors.
	ErrNotFound = errors.New("record not found")

	// ErrUnresolvable covers timeouts and server failures. The caller
	// cannot tell whether the record exists.
	ErrUnresolvable = errors.New("lookup failed")

	// ErrMultipleRecords flags more than one record where the protocol
	// allows exactly one (SPF, DMARC).
	ErrMultipleRecords = errors.New("multiple records published")
)

const (
	defaultServer  = "8.8.8.8:53"
	lookupTimeout  = 5 * time.Second
	defaultQPS     = 20
	defaultBurst   = 10
	dmarcPrefix    = "_dmarc."
	domainkeyLabel = "._domainkey."
)

// DefaultDKIMSelectors are probed when the caller does not supply its
// own list.
var DefaultDKIMSelectors = []string{
	"default", "google", "selector1", "selector2", "k1", "dkim", "mail",
	"s1", "s2", "mandrill", "sendgrid", "amazonses", "ses", "mx", "pm",
}

type Config struct {
	Server    string
	QPS       float64
	Burst     int
	Selectors []string
}

type Client struct {
	dns       *dns.Client
	server    string
	limiter   *rate.Limiter
	selectors []string
	logger    *zap.Logger

	// exchange is swapped in tests
	exchange func(ctx context.Context, m *dns.Msg) (*dns.Msg, error)
}

func New(cfg Config, logger *zap.Logger) *Client {
	server := cfg.Server
	if server == "" {
		server = defaultServer
	}
	qps := cfg.QPS
	if qps <= 0 {
		qps = defaultQPS
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = defaultBurst
	}
	selectors := cfg.Selectors
	if len(selectors) == 0 {
		selectors = DefaultDKIMSelectors
	}
	c := &Client{
		dns:       &dns.Client{Timeout: lookupTimeout},
		server:    server,
		limiter:   rate.NewLimiter(rate.Limit(qps), burst),
		selectors: selectors,
		logger:    logger,
	}
	c.exchange = func(ctx context.Context, m *dns.Msg) (*dns.Msg, error) {
		r, _, err := c.dns.ExchangeContext(ctx, m, c.server)
		return r, err
	}
	return c
}

func (c *Client) Selectors() []string {
	return c.selectors
}

func (c *Client) query(ctx context.Context, name string, qtype uint16) (*dns.Msg, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	r, err := c.exchange(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnresolvable, name, err)
	}
	switch r.Rcode {
	case dns.RcodeSuccess:
		return r, nil
	case dns.RcodeNameError:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	default:
		return nil, fmt.Errorf("%w: %s: rcode %s", ErrUnresolvable, name, dns.RcodeToString[r.Rcode])
	}
}

// TXT returns the TXT records at name, each record's character strings
// joined. Returns ErrNotFound when the name resolves but carries no TXT
// data.
func (c *Client) TXT(ctx context.Context, name string) ([]string, error) {
	r, err := c.query(ctx, name, dns.TypeTXT)
	if err != nil {
		return nil, err
	}
	var records []string
	for _, rr := range r.Answer {
		if txt, ok := rr.(*dns.TXT); ok {
			records = append(records, strings.Join(txt.Txt, ""))
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s: no TXT data", ErrNotFound, name)
	}
	return records, nil
}

// MX returns the MX target hosts for domain, unordered.
func (c *Client) MX(ctx context.Context, domain string) ([]string, error) {
	r, err := c.query(ctx, domain, dns.TypeMX)
	if err != nil {
		return nil, err
	}
	var hosts []string
	for _, rr := range r.Answer {
		if mx, ok := rr.(*dns.MX); ok {
			hosts = append(hosts, strings.TrimSuffix(mx.Mx, "."))
		}
	}
	if len(hosts) == 0 {
		return nil, fmt.Errorf("%w: %s: no MX data", ErrNotFound, domain)
	}
	return hosts, nil
}

// A reports whether the name resolves to at least one A or AAAA
// record.
func (c *Client) A(ctx context.Context, name string) (bool, error) {
	r, err := c.query(ctx, name, dns.TypeA)
	if err == nil && len(r.Answer) > 0 {
		return true, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}
	r, err = c.query(ctx, name, dns.TypeAAAA)
	if err != nil {
		return false, err
	}
	return len(r.Answer) > 0, nil
}

// SPF returns the single v=spf1 TXT record at domain. More than one is
// a publishing error per RFC 7208 and reported as ErrMultipleRecords.
func (c *Client) SPF(ctx context.Context, domain string) (string, error) {
	records, err := c.TXT(ctx, domain)
	if err != nil {
		return "", err
	}
	var spf []string
	for _, rec := range records {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(rec)), "v=spf1") {
			spf = append(spf, rec)
		}
	}
	switch len(spf) {
	case 0:
		return "", fmt.Errorf("%w: %s: no SPF record", ErrNotFound, domain)
	case 1:
		return spf[0], nil
	default:
		return "", fmt.Errorf("%w: %s: %d SPF records", ErrMultipleRecords, domain, len(spf))
	}
}

// DMARC returns the v=DMARC1 TXT records at _dmarc.<domain>. The caller
// decides how to treat multiples.
func (c *Client) DMARC(ctx context.Context, domain string) ([]string, error) {
	records, err := c.TXT(ctx, dmarcPrefix+domain)
	if err != nil {
		return nil, err
	}
	var dmarc []string
	for _, rec := range records {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(rec)), "v=dmarc1") {
			dmarc = append(dmarc, rec)
		}
	}
	if len(dmarc) == 0 {
		return nil, fmt.Errorf("%w: %s: no DMARC record", ErrNotFound, domain)
	}
	return dmarc, nil
}

// DKIM probes the configured selectors and returns the first selector
// that publishes a TXT record at <selector>._domainkey.<domain>.
func (c *Client) DKIM(ctx context.Context, domain string) (selector, record string, err error) {
	for _, sel := range c.selectors {
		records, lerr := c.TXT(ctx, sel+domainkeyLabel+domain)
		if lerr != nil {
			if errors.Is(lerr, ErrNotFound) {
				continue
			}
			c.logger.Debug("dkim selector probe failed",
				zap.String("domain", domain),
				zap.String("selector", sel),
				zap.Error(lerr))
			continue
		}
		if len(records) > 0 {
			return sel, records[0], nil
		}
	}
	return "", "", fmt.Errorf("%w: no DKIM selector resolved for %s", ErrNotFound, domain)
}

// Records bundles the lookups the grader starts from. Individual errors
// stay per-field so one failed axis does not hide the others.
type Records struct {
	SPF       string
	SPFErr    error
	DKIMSel   string
	DKIMRec   string
	DKIMErr   error
	DMARC     []string
	DMARCErr  error
	MXHosts   []string
	MXErr     error
}

// ResolveAll runs the four lookups concurrently.
func (c *Client) ResolveAll(ctx context.Context, domain string) Records {
	var rec Records
	var wg sync.WaitGroup
	wg.Add(4)

	go func() {
		defer wg.Done()
		rec.SPF, rec.SPFErr = c.SPF(ctx, domain)
	}()
	go func() {
		defer wg.Done()
		rec.DKIMSel, rec.DKIMRec, rec.DKIMErr = c.DKIM(ctx, domain)
	}()
	go func() {
		defer wg.Done()
		rec.DMARC, rec.DMARCErr = c.DMARC(ctx, domain)
	}()
	go func() {
		defer wg.Done()
		rec.MXHosts, rec.MXErr = c.MX(ctx, domain)
	}()

	wg.Wait()
	return rec
}

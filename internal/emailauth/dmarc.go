package emailauth

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/privacychecker/audit-core/internal/audit"
	"github.com/privacychecker/audit-core/internal/resolver"
)

var (
	dmarcPolicyRe = regexp.MustCompile(`(?i)\bp=(\w+)`)
	dmarcPctRe    = regexp.MustCompile(`(?i)\bpct=(\d+)`)
)

func evaluateDMARC(records []string, lookupErr error) axisResult {
	if lookupErr != nil {
		if errors.Is(lookupErr, resolver.ErrNotFound) {
			return axisResult{
				status:   audit.StatusNotFound,
				score:    0,
				findings: []string{"DMARC: no DMARC policy published"},
			}
		}
		return axisResult{
			status:   audit.StatusNotFound,
			score:    0,
			findings: []string{"DMARC: lookup failed, policy could not be verified"},
		}
	}

	if len(records) > 1 {
		return axisResult{
			status:   audit.StatusPermError,
			score:    0,
			findings: []string{"DMARC: multiple DMARC records published, receivers ignore all of them"},
		}
	}

	record := records[0]
	m := dmarcPolicyRe.FindStringSubmatch(record)
	if m == nil {
		return axisResult{
			status:   audit.StatusPermError,
			score:    0,
			findings: []string{"DMARC: record has no p= tag and is invalid"},
		}
	}

	pct := 100
	if pm := dmarcPctRe.FindStringSubmatch(record); pm != nil {
		if v, err := strconv.Atoi(pm[1]); err == nil && v >= 0 && v <= 100 {
			pct = v
		}
	}

	switch strings.ToLower(m[1]) {
	case "reject":
		return scaledPolicy(audit.StatusReject, 100, pct)
	case "quarantine":
		return scaledPolicy(audit.StatusQuarantine, 80, pct)
	case "none":
		return axisResult{
			status:   audit.StatusMonitor,
			score:    30,
			findings: []string{"DMARC: p=none only monitors, spoofed mail is still delivered"},
		}
	default:
		return axisResult{
			status:   audit.StatusPermError,
			score:    0,
			findings: []string{"DMARC: unknown policy p=" + m[1]},
		}
	}
}

// Enforcement applied to only a fraction of mail earns a proportional
// fraction of the credit.
func scaledPolicy(status audit.AuthStatus, base, pct int) axisResult {
	if pct >= 100 {
		return axisResult{status: status, score: base}
	}
	score := int(math.Round(float64(base) * float64(pct) / 100))
	return axisResult{
		status: status,
		score:  score,
		findings: []string{fmt.Sprintf(
			"DMARC: pct=%d applies the policy to only %d%% of mail", pct, pct)},
	}
}

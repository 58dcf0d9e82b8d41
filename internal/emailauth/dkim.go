package emailauth

import (
	"regexp"
	"strings"

	"github.com/privacychecker/audit-core/internal/audit"
)

var dkimPublicKeyRe = regexp.MustCompile(`(?i)(?:^|;)\s*p=([^;\s]*)`)

// evaluateDKIM classifies the record found on the first responding
// selector. No selector resolving is graded leniently: the domain may
// sign with a selector outside the probe set.
func evaluateDKIM(selector, record string, lookupErr error) axisResult {
	if lookupErr != nil {
		return axisResult{
			status:   audit.StatusUnknown,
			score:    50,
			findings: []string{"DKIM: no record found on common selectors, signing may use a custom selector"},
		}
	}

	m := dkimPublicKeyRe.FindStringSubmatch(record)
	if m == nil {
		return axisResult{
			status:   audit.StatusMalformed,
			score:    30,
			findings: []string{"DKIM: record on selector " + selector + " has no p= tag and cannot be used"},
		}
	}

	key := strings.TrimSpace(m[1])
	if key == "" {
		return axisResult{
			status:   audit.StatusRevoked,
			score:    20,
			findings: []string{"DKIM: key on selector " + selector + " is revoked (empty p=)"},
		}
	}

	return axisResult{status: audit.StatusPass, score: 100}
}

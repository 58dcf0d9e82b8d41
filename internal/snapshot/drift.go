package snapshot

import (
	"fmt"
	"sort"

	"github.com/privacychecker/audit-core/internal/audit"
)

// Score movement inside this band counts as noise, not a trend.
const directionThreshold = 5

// Boolean checks whose loss is treated as high severity.
var criticalChecks = map[string]bool{
	"https":          true,
	"consent_banner": true,
	"privacy_policy": true,
}

type boolCheck struct {
	field string
	label string
	prev  bool
	curr  bool
}

// Detect compares the current snapshot against the previous one. A nil
// previous means this is the domain's first scan: no changes, direction
// unchanged.
func Detect(previous *audit.Snapshot, current audit.Snapshot) audit.DriftReport {
	report := audit.DriftReport{
		Domain:    current.Domain,
		Direction: audit.DirectionUnchanged,
	}
	if previous == nil {
		report.FirstScan = true
		return report
	}

	report.ScoreDelta = current.Score - previous.Score
	switch {
	case report.ScoreDelta <= -directionThreshold:
		report.Direction = audit.DirectionDeclining
	case report.ScoreDelta >= directionThreshold:
		report.Direction = audit.DirectionImproving
	}

	var changes []audit.DriftChange
	changes = append(changes, checkChanges(previous.Checks, current.Checks)...)
	changes = append(changes, vendorChanges(previous.Vendors, current.Vendors)...)
	changes = append(changes, cookieChanges(previous.Cookies, current.Cookies)...)
	changes = append(changes, trackerChanges(previous.Trackers, current.Trackers)...)
	if c, ok := scoreChange(previous.Score, current.Score); ok {
		changes = append(changes, c)
	}

	sortChanges(changes)
	report.Changes = changes
	report.HasChanges = len(changes) > 0
	return report
}

func checkChanges(prev, curr audit.ComplianceChecks) []audit.DriftChange {
	checks := []boolCheck{
		{"https", "HTTPS", prev.HTTPS, curr.HTTPS},
		{"consent_banner", "Consent banner", prev.ConsentBanner, curr.ConsentBanner},
		{"privacy_policy", "Privacy policy", prev.PrivacyPolicy, curr.PrivacyPolicy},
		{"cookie_policy", "Cookie policy", prev.CookiePolicy, curr.CookiePolicy},
		{"legal_mentions", "Legal mentions", prev.LegalMentions, curr.LegalMentions},
		{"dpo_contact", "DPO contact", prev.DPOContact, curr.DPOContact},
		{"data_delete_link", "Data deletion link", prev.DataDeleteLink, curr.DataDeleteLink},
		{"opt_out_mechanism", "Opt-out mechanism", prev.OptOutMechanism, curr.OptOutMechanism},
		{"secure_forms", "Secure forms", prev.SecureForms, curr.SecureForms},
	}

	var out []audit.DriftChange
	for _, c := range checks {
		if c.prev == c.curr {
			continue
		}
		change := audit.DriftChange{
			Field:    c.field,
			Previous: c.prev,
			Current:  c.curr,
		}
		if c.prev && !c.curr {
			change.Kind = audit.ChangeRegression
			change.Severity = audit.SeverityMedium
			if criticalChecks[c.field] {
				change.Severity = audit.SeverityHigh
			}
			change.Detail = c.label + " is no longer present"
		} else {
			change.Kind = audit.ChangeImprovement
			change.Severity = audit.SeverityLow
			change.Detail = c.label + " is now present"
		}
		out = append(out, change)
	}
	return out
}

func vendorChanges(prev, curr []audit.VendorSnapshot) []audit.DriftChange {
	prevByName := make(map[string]int, len(prev))
	for _, v := range prev {
		prevByName[v.Name] = v.RiskScore
	}

	var out []audit.DriftChange
	for _, v := range curr {
		old, existed := prevByName[v.Name]
		switch {
		case !existed && v.RiskScore >= 7:
			out = append(out, audit.DriftChange{
				Field:    "vendors",
				Kind:     audit.ChangeRegression,
				Severity: audit.SeverityHigh,
				Previous: nil,
				Current:  v.RiskScore,
				Detail:   fmt.Sprintf("new high-risk vendor %q (risk %d)", v.Name, v.RiskScore),
			})
		case existed && v.RiskScore-old > 2:
			out = append(out, audit.DriftChange{
				Field:    "vendors",
				Kind:     audit.ChangeRegression,
				Severity: audit.SeverityMedium,
				Previous: old,
				Current:  v.RiskScore,
				Detail:   fmt.Sprintf("vendor %q risk rose from %d to %d", v.Name, old, v.RiskScore),
			})
		}
	}
	return out
}

func cookieChanges(prev, curr audit.CookieStats) []audit.DriftChange {
	if prev.Undeclared == curr.Undeclared {
		return nil
	}
	change := audit.DriftChange{
		Field:    "undeclared_cookies",
		Previous: prev.Undeclared,
		Current:  curr.Undeclared,
	}
	if curr.Undeclared > prev.Undeclared {
		change.Kind = audit.ChangeRegression
		change.Severity = audit.SeverityMedium
		change.Detail = fmt.Sprintf("undeclared cookies went from %d to %d", prev.Undeclared, curr.Undeclared)
	} else {
		change.Kind = audit.ChangeImprovement
		change.Severity = audit.SeverityLow
		change.Detail = fmt.Sprintf("undeclared cookies went from %d to %d", prev.Undeclared, curr.Undeclared)
	}
	return []audit.DriftChange{change}
}

func trackerChanges(prev, curr []string) []audit.DriftChange {
	prevSet := make(map[string]bool, len(prev))
	for _, t := range prev {
		prevSet[t] = true
	}
	currSet := make(map[string]bool, len(curr))
	for _, t := range curr {
		currSet[t] = true
	}

	var out []audit.DriftChange
	for _, t := range curr {
		if !prevSet[t] {
			out = append(out, audit.DriftChange{
				Field:    "trackers",
				Kind:     audit.ChangeRegression,
				Severity: audit.SeverityLow,
				Current:  t,
				Detail:   fmt.Sprintf("tracker %q appeared", t),
			})
		}
	}
	for _, t := range prev {
		if !currSet[t] {
			out = append(out, audit.DriftChange{
				Field:    "trackers",
				Kind:     audit.ChangeImprovement,
				Severity: audit.SeverityLow,
				Previous: t,
				Detail:   fmt.Sprintf("tracker %q removed", t),
			})
		}
	}
	return out
}

func scoreChange(prev, curr int) (audit.DriftChange, bool) {
	delta := curr - prev
	if delta == 0 {
		return audit.DriftChange{}, false
	}
	change := audit.DriftChange{
		Field:    "score",
		Previous: prev,
		Current:  curr,
		Detail:   fmt.Sprintf("overall score changed by %+d", delta),
	}
	if delta < 0 {
		change.Kind = audit.ChangeRegression
	} else {
		change.Kind = audit.ChangeImprovement
	}
	abs := delta
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 15:
		change.Severity = audit.SeverityHigh
	case abs >= 5:
		change.Severity = audit.SeverityMedium
	default:
		change.Severity = audit.SeverityLow
	}
	return change, true
}

var severityRank = map[audit.Severity]int{
	audit.SeverityHigh:   0,
	audit.SeverityMedium: 1,
	audit.SeverityLow:    2,
}

var kindRank = map[audit.ChangeKind]int{
	audit.ChangeRegression:  0,
	audit.ChangeNeutral:     1,
	audit.ChangeImprovement: 2,
}

// Regressions first, then by severity. Stable so equal entries keep
// their field order.
func sortChanges(changes []audit.DriftChange) {
	sort.SliceStable(changes, func(i, j int) bool {
		if kindRank[changes[i].Kind] != kindRank[changes[j].Kind] {
			return kindRank[changes[i].Kind] < kindRank[changes[j].Kind]
		}
		return severityRank[changes[i].Severity] < severityRank[changes[j].Severity]
	})
}

// Package scoring derives per-category scores from a scan's signal
// bundle. Every function is pure; a false ok means the bundle carried
// no signal for that category and the category must be omitted from
// the result, not reported as zero.
package scoring

import (
	"math"

	"github.com/privacychecker/audit-core/internal/audit"
)

// Categories computes all category scores present in the bundle, in a
// fixed order.
func Categories(issues audit.Issues) []audit.CategoryScore {
	out := make([]audit.CategoryScore, 0, 5)
	add := func(name string, v int, ok bool) {
		if ok {
			out = append(out, audit.CategoryScore{Name: name, Value: v})
		}
	}
	v, ok := Compliance(issues)
	add(audit.CategoryCompliance, v, ok)
	v, ok = ConsentPrivacy(issues)
	add(audit.CategoryConsentPrivacy, v, ok)
	v, ok = CookiesTracking(issues)
	add(audit.CategoryCookies, v, ok)
	v, ok = Vendors(issues)
	add(audit.CategoryVendors, v, ok)
	v, ok = Security(issues)
	add(audit.CategorySecurity, v, ok)
	return out
}

// Compliance scores the nine boolean posture checks equally. Always
// present since the booleans are always observed.
func Compliance(issues audit.Issues) (int, bool) {
	checks := []bool{
		issues.HTTPS,
		issues.ConsentBanner,
		issues.PrivacyPolicy,
		issues.CookiePolicy,
		issues.LegalMentions,
		issues.DPOContact,
		issues.DataDeleteLink,
		issues.OptOutMechanism,
		issues.SecureForms,
	}
	passed := 0
	for _, c := range checks {
		if c {
			passed++
		}
	}
	return roundDiv(passed*100, len(checks)), true
}

// ConsentPrivacy averages whichever behavioral sub-scores ran. Omitted
// when none of the four analyses produced a result.
func ConsentPrivacy(issues audit.Issues) (int, bool) {
	var parts []int
	if issues.ConsentBehavior != nil {
		parts = append(parts, issues.ConsentBehavior.Score)
	}
	if issues.PolicyAnalysis != nil {
		parts = append(parts, issues.PolicyAnalysis.OverallScore)
	}
	if issues.DarkPatterns != nil {
		parts = append(parts, issues.DarkPatterns.Score)
	}
	if issues.OptInForms != nil {
		parts = append(parts, issues.OptInForms.Score)
	}
	if len(parts) == 0 {
		return 0, false
	}
	sum := 0
	for _, p := range parts {
		sum += p
	}
	return roundDiv(sum, len(parts)), true
}

// CookiesTracking penalizes undeclared cookies proportionally (up to 50
// points) and trackers at 5 points each (capped at 30). Present when
// cookie stats or a tracker list was observed, even an empty one.
func CookiesTracking(issues audit.Issues) (int, bool) {
	if issues.Cookies == nil && issues.Trackers == nil {
		return 0, false
	}
	var total, undeclared int
	if issues.Cookies != nil {
		total = issues.Cookies.Count
		undeclared = issues.Cookies.Undeclared
	}
	denom := total
	if denom < 1 {
		denom = 1
	}
	cookiePenalty := float64(undeclared) / float64(denom) * 50
	trackerPenalty := math.Min(float64(len(issues.Trackers))*5, 30)
	score := int(math.Round(100 - cookiePenalty - trackerPenalty))
	if score < 0 {
		score = 0
	}
	return score, true
}

// Vendors starts at 100 and deducts 15 per high or critical risk vendor
// and 5 per medium. Omitted when no vendors were detected.
func Vendors(issues audit.Issues) (int, bool) {
	if len(issues.VendorRisks) == 0 {
		return 0, false
	}
	score := 100
	for _, v := range issues.VendorRisks {
		switch v.RiskLevel {
		case audit.RiskHigh, audit.RiskCritical:
			score -= 15
		case audit.RiskMedium:
			score -= 5
		}
	}
	if score < 0 {
		score = 0
	}
	return score, true
}

// Security averages the security sub-scores that ran. Mixed content
// contributes a binary 100/0 based on detection.
func Security(issues audit.Issues) (int, bool) {
	var parts []int
	if issues.SecurityHeadersExtended != nil {
		parts = append(parts, issues.SecurityHeadersExtended.Score)
	}
	if issues.Fingerprinting != nil {
		parts = append(parts, issues.Fingerprinting.Score)
	}
	if issues.FormSecurity != nil {
		parts = append(parts, issues.FormSecurity.Score)
	}
	if issues.MixedContent != nil {
		if issues.MixedContent.Detected {
			parts = append(parts, 0)
		} else {
			parts = append(parts, 100)
		}
	}
	if len(parts) == 0 {
		return 0, false
	}
	sum := 0
	for _, p := range parts {
		sum += p
	}
	return roundDiv(sum, len(parts)), true
}

// roundDiv is round-half-up integer division for non-negative inputs.
func roundDiv(num, den int) int {
	return int(math.Round(float64(num) / float64(den)))
}

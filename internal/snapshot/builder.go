// Package snapshot projects audit results into the compact per-domain
// record kept between scans and compares consecutive records to detect
// compliance drift.
package snapshot

import (
	"github.com/privacychecker/audit-core/internal/audit"
)

// Version of the snapshot field set. Any change to what Build captures
// must bump this so stored snapshots from older scans can be told apart.
const Version = 1

// Build projects a result into the fixed snapshot field set. Signals
// the result does not carry come out as zero values, which compare
// cleanly against later scans.
func Build(r *audit.Result) audit.Snapshot {
	s := audit.Snapshot{
		Version:   Version,
		Domain:    r.Domain,
		Score:     r.Score,
		Timestamp: r.ScannedAt,
		Checks: audit.ComplianceChecks{
			HTTPS:           r.Issues.HTTPS,
			ConsentBanner:   r.Issues.ConsentBanner,
			PrivacyPolicy:   r.Issues.PrivacyPolicy,
			CookiePolicy:    r.Issues.CookiePolicy,
			LegalMentions:   r.Issues.LegalMentions,
			DPOContact:      r.Issues.DPOContact,
			DataDeleteLink:  r.Issues.DataDeleteLink,
			OptOutMechanism: r.Issues.OptOutMechanism,
			SecureForms:     r.Issues.SecureForms,
		},
	}
	if r.Issues.Cookies != nil {
		s.Cookies = *r.Issues.Cookies
	}
	if len(r.Issues.Trackers) > 0 {
		s.Trackers = append([]string(nil), r.Issues.Trackers...)
	}
	for _, v := range r.Issues.VendorRisks {
		s.Vendors = append(s.Vendors, audit.VendorSnapshot{
			Name:      v.Name,
			RiskScore: v.RiskScore,
		})
	}
	return s
}

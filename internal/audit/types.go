package audit

import (
	"time"

	"github.com/google/uuid"
)

// Issues is the normalized bundle of signals the crawler/analysis layer
// produces for a single scan. Booleans are always observed; nested
// sub-results are nil when the corresponding analysis did not run, and
// that absence is meaningful (the category is omitted, never zeroed).
type Issues struct {
	HTTPS           bool `json:"https"`
	ConsentBanner   bool `json:"consent_banner"`
	PrivacyPolicy   bool `json:"privacy_policy"`
	CookiePolicy    bool `json:"cookie_policy"`
	LegalMentions   bool `json:"legal_mentions"`
	DPOContact      bool `json:"dpo_contact"`
	DataDeleteLink  bool `json:"data_delete_link"`
	OptOutMechanism bool `json:"opt_out_mechanism"`
	SecureForms     bool `json:"secure_forms"`

	Cookies  *CookieStats `json:"cookies,omitempty"`
	Trackers []string     `json:"trackers,omitempty"`

	ConsentBehavior *SubScore       `json:"consent_behavior,omitempty"`
	PolicyAnalysis  *PolicyAnalysis `json:"policy_analysis,omitempty"`
	DarkPatterns    *SubScore       `json:"dark_patterns,omitempty"`
	OptInForms      *SubScore       `json:"opt_in_forms,omitempty"`

	VendorRisks []VendorRisk `json:"vendor_risks,omitempty"`

	SecurityHeadersExtended *SubScore     `json:"security_headers_extended,omitempty"`
	Fingerprinting          *SubScore     `json:"fingerprinting,omitempty"`
	FormSecurity            *SubScore     `json:"form_security,omitempty"`
	MixedContent            *MixedContent `json:"mixed_content,omitempty"`
}

type CookieStats struct {
	Count      int `json:"count"`
	Undeclared int `json:"undeclared"`
}

// SubScore wraps a 0-100 score produced by one of the crawler's analysis
// modules (consent behavior, dark patterns, fingerprinting, ...).
type SubScore struct {
	Score int `json:"score"`
}

type PolicyAnalysis struct {
	Found        bool `json:"found"`
	OverallScore int  `json:"overall_score"`
}

type MixedContent struct {
	Detected    bool `json:"detected"`
	TotalIssues int  `json:"total_issues,omitempty"`
}

type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

type VendorRisk struct {
	Name      string    `json:"name"`
	Category  string    `json:"category,omitempty"`
	RiskScore int       `json:"risk_score"`
	RiskLevel RiskLevel `json:"risk_level"`
}

// Category names are fixed; a category absent from CategoryScores had no
// contributing signal in the Issues bundle.
const (
	CategoryCompliance     = "compliance"
	CategoryConsentPrivacy = "consent_privacy"
	CategoryCookies        = "cookies_tracking"
	CategoryVendors        = "vendors_data_flow"
	CategorySecurity       = "security"
)

type CategoryScore struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Submission is what the scan pipeline receives from the crawler: the
// raw signal bundle plus the overall score the upstream breakdown
// produced. The core treats Score as an opaque comparable integer.
type Submission struct {
	Domain   string    `json:"domain"`
	TenantID string    `json:"tenant_id,omitempty"`
	Score    int       `json:"score"`
	Issues   Issues    `json:"issues"`
	ScanTime time.Time `json:"scan_time,omitempty"`
}

// Result is the complete outcome of one scan: category scores, the
// upstream overall score, the email authentication grade, and optional
// enrichments.
type Result struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	TenantID   string          `json:"tenant_id,omitempty" db:"tenant_id"`
	Domain     string          `json:"domain" db:"domain"`
	Score      int             `json:"score" db:"score"`
	Categories []CategoryScore `json:"categories"`
	Issues     Issues          `json:"issues"`
	EmailGrade *EmailGrade     `json:"email_grade,omitempty"`
	DomainRisk *DomainRisk     `json:"domain_risk,omitempty"`
	ScannedAt  time.Time       `json:"scanned_at" db:"scanned_at"`
}

type AuthStatus string

const (
	StatusPassStrict AuthStatus = "pass-strict" // SPF -all
	StatusPassSoft   AuthStatus = "pass-soft"   // SPF ~all
	StatusNeutral    AuthStatus = "neutral"     // SPF ?all
	StatusDangerous  AuthStatus = "dangerous"   // SPF +all
	StatusPass       AuthStatus = "pass"
	StatusRevoked    AuthStatus = "revoked"
	StatusMalformed  AuthStatus = "malformed"
	StatusUnknown    AuthStatus = "unknown"
	StatusPermError  AuthStatus = "permerror"
	StatusNotFound   AuthStatus = "not-found"
	StatusNoAll      AuthStatus = "no-all"
	StatusMonitor    AuthStatus = "monitor"    // DMARC p=none
	StatusQuarantine AuthStatus = "quarantine" // DMARC p=quarantine
	StatusReject     AuthStatus = "reject"     // DMARC p=reject
)

// EmailGrade is the deliverability/anti-spoofing verdict for a domain,
// also consumable on its own through the email endpoint.
type EmailGrade struct {
	Domain      string     `json:"domain"`
	Score       int        `json:"score"`
	Grade       string     `json:"grade"`
	SPFStatus   AuthStatus `json:"spf_status"`
	DKIMStatus  AuthStatus `json:"dkim_status"`
	DMARCStatus AuthStatus `json:"dmarc_status"`
	HasMX       bool       `json:"has_mx"`
	Findings    []string   `json:"findings"`
}

// DomainRisk summarizes WHOIS registration health. Informational only;
// it never feeds the category formulas.
type DomainRisk struct {
	Registrar       string     `json:"registrar,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	DaysUntilExpiry int        `json:"days_until_expiry"`
	Status          string     `json:"status"` // ok, warning, critical, unknown
}

// Snapshot is the minimal per-domain projection persisted between scans
// for drift comparison. The field set is fixed; extending it changes
// drift semantics for every stored snapshot and requires a version bump.
type Snapshot struct {
	Version   int              `json:"version"`
	Domain    string           `json:"domain"`
	Score     int              `json:"score"`
	Timestamp time.Time        `json:"timestamp"`
	Checks    ComplianceChecks `json:"checks"`
	Cookies   CookieStats      `json:"cookies"`
	Trackers  []string         `json:"trackers,omitempty"`
	Vendors   []VendorSnapshot `json:"vendors,omitempty"`
}

// ComplianceChecks are the boolean posture fields tracked for drift.
type ComplianceChecks struct {
	HTTPS           bool `json:"https"`
	ConsentBanner   bool `json:"consent_banner"`
	PrivacyPolicy   bool `json:"privacy_policy"`
	CookiePolicy    bool `json:"cookie_policy"`
	LegalMentions   bool `json:"legal_mentions"`
	DPOContact      bool `json:"dpo_contact"`
	DataDeleteLink  bool `json:"data_delete_link"`
	OptOutMechanism bool `json:"opt_out_mechanism"`
	SecureForms     bool `json:"secure_forms"`
}

type VendorSnapshot struct {
	Name      string `json:"name"`
	RiskScore int    `json:"risk_score"`
}

type Direction string

const (
	DirectionImproving Direction = "improving"
	DirectionDeclining Direction = "declining"
	DirectionUnchanged Direction = "unchanged"
)

type ChangeKind string

const (
	ChangeImprovement ChangeKind = "improvement"
	ChangeRegression  ChangeKind = "regression"
	ChangeNeutral     ChangeKind = "neutral"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

type DriftChange struct {
	Field    string     `json:"field"`
	Kind     ChangeKind `json:"kind"`
	Severity Severity   `json:"severity"`
	Previous any        `json:"previous_value"`
	Current  any        `json:"current_value"`
	Detail   string     `json:"detail,omitempty"`
}

// DriftReport is recomputed on every scan and never persisted beyond a
// short-lived cache; the snapshot feeding the next comparison is what
// lives in the store.
type DriftReport struct {
	Domain     string        `json:"domain"`
	HasChanges bool          `json:"has_changes"`
	Direction  Direction     `json:"direction"`
	ScoreDelta int           `json:"score_delta"`
	Changes    []DriftChange `json:"changes"`
	FirstScan  bool          `json:"first_scan"`
}

package db

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// RawJSON stores an already-marshaled document in a jsonb column.
type RawJSON []byte

func (r RawJSON) Value() (driver.Value, error) {
	if len(r) == 0 {
		return nil, nil
	}
	return []byte(r), nil
}

func (r *RawJSON) Scan(value interface{}) error {
	if value == nil {
		*r = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("json scan: unexpected type %T", value)
	}
	*r = append((*r)[:0], bytes...)
	return nil
}

// AuditRow is one scan outcome as persisted.
type AuditRow struct {
	ID         string    `db:"id"`
	TenantID   string    `db:"tenant_id"`
	Domain     string    `db:"domain"`
	Score      int       `db:"score"`
	Categories RawJSON   `db:"categories"`
	Issues     RawJSON   `db:"issues"`
	EmailGrade RawJSON   `db:"email_grade"`
	DomainRisk RawJSON   `db:"domain_risk"`
	ScannedAt  time.Time `db:"scanned_at"`
	CreatedAt  time.Time `db:"created_at"`
}

// DriftEventRow is one flattened drift change, linked to the audit that
// produced it, so regressions can be queried across domains.
type DriftEventRow struct {
	ID        string    `db:"id"`
	AuditID   string    `db:"audit_id"`
	TenantID  string    `db:"tenant_id"`
	Domain    string    `db:"domain"`
	Field     string    `db:"field"`
	Kind      string    `db:"kind"`
	Severity  string    `db:"severity"`
	Detail    string    `db:"detail"`
	CreatedAt time.Time `db:"created_at"`
}

package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/privacychecker/audit-core/internal/audit"
)

var ErrNotFound = errors.New("not found")

type Repository struct {
	db *sqlx.DB
}

func NewConnection(databaseURL string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	conn, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(maxIdle)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return conn, nil
}

func NewRepository(conn *sqlx.DB) *Repository {
	return &Repository{db: conn}
}

// SaveAudit persists the audit row and its drift events in one
// transaction.
func (r *Repository) SaveAudit(result *audit.Result, drift *audit.DriftReport) error {
	row, err := toRow(result)
	if err != nil {
		return err
	}

	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const insertAudit = `
		INSERT INTO audits (
			id, tenant_id, domain, score, categories, issues,
			email_grade, domain_risk, scanned_at, created_at
		) VALUES (
			:id, :tenant_id, :domain, :score, :categories, :issues,
			:email_grade, :domain_risk, :scanned_at, :created_at
		)`
	if _, err := tx.NamedExec(insertAudit, row); err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}

	if drift != nil {
		const insertEvent = `
			INSERT INTO drift_events (
				id, audit_id, tenant_id, domain, field, kind, severity, detail, created_at
			) VALUES (
				:id, :audit_id, :tenant_id, :domain, :field, :kind, :severity, :detail, :created_at
			)`
		for _, c := range drift.Changes {
			event := DriftEventRow{
				ID:        uuid.NewString(),
				AuditID:   row.ID,
				TenantID:  row.TenantID,
				Domain:    row.Domain,
				Field:     c.Field,
				Kind:      string(c.Kind),
				Severity:  string(c.Severity),
				Detail:    c.Detail,
				CreatedAt: row.CreatedAt,
			}
			if _, err := tx.NamedExec(insertEvent, event); err != nil {
				return fmt.Errorf("insert drift event: %w", err)
			}
		}
	}

	return tx.Commit()
}

func (r *Repository) GetLatestAudit(domain, tenantID string) (*audit.Result, error) {
	var row AuditRow
	const query = `
		SELECT * FROM audits
		WHERE domain = $1 AND tenant_id = $2
		ORDER BY scanned_at DESC
		LIMIT 1`
	err := r.db.Get(&row, query, domain, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no audit for %s", ErrNotFound, domain)
	}
	if err != nil {
		return nil, err
	}
	return fromRow(&row)
}

func (r *Repository) GetAuditHistory(domain, tenantID string, limit int) ([]*audit.Result, error) {
	rows := []AuditRow{}
	const query = `
		SELECT * FROM audits
		WHERE domain = $1 AND tenant_id = $2
		ORDER BY scanned_at DESC
		LIMIT $3`
	if err := r.db.Select(&rows, query, domain, tenantID, limit); err != nil {
		return nil, err
	}
	results := make([]*audit.Result, 0, len(rows))
	for i := range rows {
		res, err := fromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Repository) GetDriftEvents(domain, tenantID string, limit int) ([]DriftEventRow, error) {
	events := []DriftEventRow{}
	const query = `
		SELECT * FROM drift_events
		WHERE domain = $1 AND tenant_id = $2
		ORDER BY created_at DESC
		LIMIT $3`
	err := r.db.Select(&events, query, domain, tenantID, limit)
	return events, err
}

func toRow(result *audit.Result) (*AuditRow, error) {
	categories, err := json.Marshal(result.Categories)
	if err != nil {
		return nil, fmt.Errorf("marshal categories: %w", err)
	}
	issues, err := json.Marshal(result.Issues)
	if err != nil {
		return nil, fmt.Errorf("marshal issues: %w", err)
	}
	row := &AuditRow{
		ID:         result.ID.String(),
		TenantID:   result.TenantID,
		Domain:     result.Domain,
		Score:      result.Score,
		Categories: categories,
		Issues:     issues,
		ScannedAt:  result.ScannedAt,
		CreatedAt:  time.Now().UTC(),
	}
	if result.EmailGrade != nil {
		if row.EmailGrade, err = json.Marshal(result.EmailGrade); err != nil {
			return nil, fmt.Errorf("marshal email grade: %w", err)
		}
	}
	if result.DomainRisk != nil {
		if row.DomainRisk, err = json.Marshal(result.DomainRisk); err != nil {
			return nil, fmt.Errorf("marshal domain risk: %w", err)
		}
	}
	return row, nil
}

func fromRow(row *AuditRow) (*audit.Result, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("parse audit id: %w", err)
	}
	result := &audit.Result{
		ID:        id,
		TenantID:  row.TenantID,
		Domain:    row.Domain,
		Score:     row.Score,
		ScannedAt: row.ScannedAt,
	}
	if len(row.Categories) > 0 {
		if err := json.Unmarshal(row.Categories, &result.Categories); err != nil {
			return nil, fmt.Errorf("unmarshal categories: %w", err)
		}
	}
	if len(row.Issues) > 0 {
		if err := json.Unmarshal(row.Issues, &result.Issues); err != nil {
			return nil, fmt.Errorf("unmarshal issues: %w", err)
		}
	}
	if len(row.EmailGrade) > 0 {
		if err := json.Unmarshal(row.EmailGrade, &result.EmailGrade); err != nil {
			return nil, fmt.Errorf("unmarshal email grade: %w", err)
		}
	}
	if len(row.DomainRisk) > 0 {
		if err := json.Unmarshal(row.DomainRisk, &result.DomainRisk); err != nil {
			return nil, fmt.Errorf("unmarshal domain risk: %w", err)
		}
	}
	return result, nil
}

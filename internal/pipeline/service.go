// Package pipeline orchestrates one scan: email grading, category
// scoring, drift detection against the stored snapshot, persistence,
// and metrics.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/privacychecker/audit-core/internal/audit"
	"github.com/privacychecker/audit-core/internal/config"
	"github.com/privacychecker/audit-core/internal/scoring"
	"github.com/privacychecker/audit-core/internal/snapshot"
	"github.com/privacychecker/audit-core/internal/storage/redis"
)

var ErrEmptyDomain = errors.New("submission has no domain")

// SnapshotStore keeps one snapshot per domain. Implementations must let
// the caller read the prior snapshot before PutSnapshot replaces it.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, domain string) (*audit.Snapshot, error)
	PutSnapshot(ctx context.Context, snap audit.Snapshot) error
	CacheDriftReport(ctx context.Context, report *audit.DriftReport, ttl time.Duration) error
}

type AuditStore interface {
	SaveAudit(result *audit.Result, drift *audit.DriftReport) error
}

type EmailGrader interface {
	Grade(ctx context.Context, domain string) *audit.EmailGrade
}

type RiskChecker interface {
	Check(domain string) (*audit.DomainRisk, error)
}

type Recorder interface {
	RecordScan(tenantID, domain string, seconds float64)
	RecordScanFailure(tenantID, stage string)
	RecordResult(result *audit.Result)
	RecordDrift(tenantID string, report *audit.DriftReport)
}

type Service struct {
	cfg       config.PipelineConfig
	driftTTL  time.Duration
	snapshots SnapshotStore
	audits    AuditStore
	grader    EmailGrader
	risk      RiskChecker
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(
	cfg config.PipelineConfig,
	driftTTL time.Duration,
	snapshots SnapshotStore,
	audits AuditStore,
	grader EmailGrader,
	risk RiskChecker,
	recorder Recorder,
	logger *zap.Logger,
) *Service {
	return &Service{
		cfg:       cfg,
		driftTTL:  driftTTL,
		snapshots: snapshots,
		audits:    audits,
		grader:    grader,
		risk:      risk,
		recorder:  recorder,
		logger:    logger,
		now:       time.Now,
	}
}

// Process runs the full pipeline for one submission and returns the
// audit result with its drift report.
func (s *Service) Process(ctx context.Context, sub audit.Submission) (*audit.Result, *audit.DriftReport, error) {
	if sub.Domain == "" {
		return nil, nil, ErrEmptyDomain
	}
	started := s.now()

	scannedAt := sub.ScanTime
	if scannedAt.IsZero() {
		scannedAt = started.UTC()
	}

	result := &audit.Result{
		ID:         uuid.New(),
		TenantID:   sub.TenantID,
		Domain:     sub.Domain,
		Score:      sub.Score,
		Categories: scoring.Categories(sub.Issues),
		Issues:     sub.Issues,
		ScannedAt:  scannedAt,
	}

	emailCtx, cancel := context.WithTimeout(ctx, s.cfg.EmailTimeout)
	result.EmailGrade = s.grader.Grade(emailCtx, sub.Domain)
	cancel()

	if s.cfg.WhoisEnabled && s.risk != nil {
		risk, err := s.risk.Check(sub.Domain)
		if err != nil {
			// enrichment only, the audit proceeds without it
			s.logger.Debug("domain risk check failed",
				zap.String("domain", sub.Domain), zap.Error(err))
		} else {
			result.DomainRisk = risk
		}
	}

	prior, err := s.snapshots.GetSnapshot(ctx, sub.Domain)
	if err != nil && !errors.Is(err, redis.ErrNoSnapshot) {
		s.recorder.RecordScanFailure(sub.TenantID, "snapshot_load")
		return nil, nil, fmt.Errorf("load prior snapshot: %w", err)
	}

	snap := snapshot.Build(result)
	drift := snapshot.Detect(prior, snap)

	if err := s.audits.SaveAudit(result, &drift); err != nil {
		s.recorder.RecordScanFailure(sub.TenantID, "persist")
		return nil, nil, fmt.Errorf("persist audit: %w", err)
	}
	if err := s.snapshots.PutSnapshot(ctx, snap); err != nil {
		s.recorder.RecordScanFailure(sub.TenantID, "snapshot_store")
		return nil, nil, fmt.Errorf("store snapshot: %w", err)
	}
	if err := s.snapshots.CacheDriftReport(ctx, &drift, s.driftTTL); err != nil {
		s.logger.Warn("drift report cache failed",
			zap.String("domain", sub.Domain), zap.Error(err))
	}

	s.recorder.RecordScan(sub.TenantID, sub.Domain, s.now().Sub(started).Seconds())
	s.recorder.RecordResult(result)
	s.recorder.RecordDrift(sub.TenantID, &drift)

	s.logger.Info("scan processed",
		zap.String("domain", sub.Domain),
		zap.String("tenant_id", sub.TenantID),
		zap.Int("score", result.Score),
		zap.String("direction", string(drift.Direction)),
		zap.Int("changes", len(drift.Changes)),
		zap.Bool("first_scan", drift.FirstScan))

	return result, &drift, nil
}

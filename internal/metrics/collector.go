package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/privacychecker/audit-core/internal/audit"
	"github.com/privacychecker/audit-core/internal/config"
)

type Collector struct {
	config *config.MimirConfig

	scansTotal   *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	scanFailures *prometheus.CounterVec

	auditScore    *prometheus.GaugeVec
	categoryScore *prometheus.GaugeVec

	emailScore *prometheus.GaugeVec

	driftDirection   *prometheus.GaugeVec
	driftChanges     *prometheus.CounterVec
	driftRegressions *prometheus.CounterVec

	queueSize *prometheus.GaugeVec
}

func NewCollector(cfg config.MimirConfig) *Collector {
	return &Collector{
		config: &cfg,

		scansTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_scans_total",
				Help: "Total number of scans processed",
			},
			[]string{"tenant_id", "domain"},
		),

		scanDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "audit_scan_duration_seconds",
				Help:    "Duration of scan processing in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"tenant_id", "domain"},
		),

		scanFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_scan_failures_total",
				Help: "Scans that failed during processing",
			},
			[]string{"tenant_id", "stage"},
		),

		auditScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "audit_overall_score",
				Help: "Latest overall compliance score per domain",
			},
			[]string{"tenant_id", "domain"},
		),

		categoryScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "audit_category_score",
				Help: "Latest per-category compliance score",
			},
			[]string{"tenant_id", "domain", "category"},
		),

		emailScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "audit_email_auth_score",
				Help: "Latest email authentication score per domain",
			},
			[]string{"tenant_id", "domain", "grade"},
		),

		driftDirection: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "audit_drift_direction",
				Help: "Drift direction of the latest scan (1 improving, 0 unchanged, -1 declining)",
			},
			[]string{"tenant_id", "domain"},
		),

		driftChanges: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_drift_changes_total",
				Help: "Drift change entries by kind and severity",
			},
			[]string{"tenant_id", "domain", "kind", "severity"},
		),

		driftRegressions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_drift_regressions_total",
				Help: "Regressions detected per tracked field",
			},
			[]string{"tenant_id", "domain", "field"},
		),

		queueSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "audit_scan_queue_size",
				Help: "Number of jobs waiting in the scan queue",
			},
			[]string{"queue"},
		),
	}
}

func (c *Collector) RecordScan(tenantID, domain string, seconds float64) {
	c.scansTotal.WithLabelValues(tenantID, domain).Inc()
	c.scanDuration.WithLabelValues(tenantID, domain).Observe(seconds)
}

func (c *Collector) RecordScanFailure(tenantID, stage string) {
	c.scanFailures.WithLabelValues(tenantID, stage).Inc()
}

func (c *Collector) RecordResult(result *audit.Result) {
	c.auditScore.WithLabelValues(result.TenantID, result.Domain).Set(float64(result.Score))
	for _, cat := range result.Categories {
		c.categoryScore.WithLabelValues(result.TenantID, result.Domain, cat.Name).Set(float64(cat.Value))
	}
	if result.EmailGrade != nil {
		c.emailScore.WithLabelValues(result.TenantID, result.Domain, result.EmailGrade.Grade).
			Set(float64(result.EmailGrade.Score))
	}
}

func (c *Collector) RecordDrift(tenantID string, report *audit.DriftReport) {
	var dir float64
	switch report.Direction {
	case audit.DirectionImproving:
		dir = 1
	case audit.DirectionDeclining:
		dir = -1
	}
	c.driftDirection.WithLabelValues(tenantID, report.Domain).Set(dir)

	for _, change := range report.Changes {
		c.driftChanges.WithLabelValues(tenantID, report.Domain, string(change.Kind), string(change.Severity)).Inc()
		if change.Kind == audit.ChangeRegression {
			c.driftRegressions.WithLabelValues(tenantID, report.Domain, change.Field).Inc()
		}
	}
}

func (c *Collector) SetQueueSize(queue string, size int64) {
	c.queueSize.WithLabelValues(queue).Set(float64(size))
}

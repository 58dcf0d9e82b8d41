package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/privacychecker/audit-core/internal/audit"
	"github.com/privacychecker/audit-core/internal/config"
	"github.com/privacychecker/audit-core/internal/storage/redis"
)

type fakeSnapshots struct {
	stored  map[string]audit.Snapshot
	cached  *audit.DriftReport
	getErr  error
	putErr  error
	puts    []audit.Snapshot
	getBeforePut bool
	gotPrior     bool
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{stored: map[string]audit.Snapshot{}}
}

func (f *fakeSnapshots) GetSnapshot(_ context.Context, domain string) (*audit.Snapshot, error) {
	f.gotPrior = true
	if f.getErr != nil {
		return nil, f.getErr
	}
	snap, ok := f.stored[domain]
	if !ok {
		return nil, redis.ErrNoSnapshot
	}
	return &snap, nil
}

func (f *fakeSnapshots) PutSnapshot(_ context.Context, snap audit.Snapshot) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.getBeforePut = f.gotPrior
	f.stored[snap.Domain] = snap
	f.puts = append(f.puts, snap)
	return nil
}

func (f *fakeSnapshots) CacheDriftReport(_ context.Context, report *audit.DriftReport, _ time.Duration) error {
	f.cached = report
	return nil
}

type fakeAudits struct {
	saved   []*audit.Result
	drifts  []*audit.DriftReport
	saveErr error
}

func (f *fakeAudits) SaveAudit(result *audit.Result, drift *audit.DriftReport) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, result)
	f.drifts = append(f.drifts, drift)
	return nil
}

type fakeGrader struct{}

func (fakeGrader) Grade(_ context.Context, domain string) *audit.EmailGrade {
	return &audit.EmailGrade{Domain: domain, Score: 85, Grade: "B", Findings: []string{}}
}

type fakeRecorder struct {
	scans    int
	failures []string
	drifts   int
}

func (r *fakeRecorder) RecordScan(_, _ string, _ float64)          { r.scans++ }
func (r *fakeRecorder) RecordScanFailure(_, stage string)          { r.failures = append(r.failures, stage) }
func (r *fakeRecorder) RecordResult(_ *audit.Result)               {}
func (r *fakeRecorder) RecordDrift(_ string, _ *audit.DriftReport) { r.drifts++ }

func newService(snaps *fakeSnapshots, audits *fakeAudits, rec *fakeRecorder) *Service {
	cfg := config.PipelineConfig{
		ScanTimeout:  time.Minute,
		EmailTimeout: 10 * time.Second,
		WhoisEnabled: false,
	}
	return NewService(cfg, time.Hour, snaps, audits, fakeGrader{}, nil, rec, zap.NewNop())
}

func submission(score int) audit.Submission {
	return audit.Submission{
		Domain: "example.com",
		Score:  score,
		Issues: audit.Issues{
			HTTPS:         true,
			PrivacyPolicy: true,
			Cookies:       &audit.CookieStats{Count: 5, Undeclared: 1},
		},
	}
}

func TestProcessFirstScan(t *testing.T) {
	snaps := newFakeSnapshots()
	audits := &fakeAudits{}
	rec := &fakeRecorder{}
	svc := newService(snaps, audits, rec)

	result, drift, err := svc.Process(context.Background(), submission(70))
	require.NoError(t, err)

	assert.NotEqual(t, "", result.ID.String())
	assert.Equal(t, 70, result.Score)
	assert.NotEmpty(t, result.Categories)
	require.NotNil(t, result.EmailGrade)
	assert.Equal(t, "B", result.EmailGrade.Grade)

	assert.True(t, drift.FirstScan)
	assert.False(t, drift.HasChanges)
	assert.Equal(t, audit.DirectionUnchanged, drift.Direction)

	require.Len(t, snaps.puts, 1)
	assert.Equal(t, 70, snaps.puts[0].Score)
	require.Len(t, audits.saved, 1)
	assert.Same(t, drift, snaps.cached)
	assert.Equal(t, 1, rec.scans)
	assert.Equal(t, 1, rec.drifts)
}

func TestProcessSecondScanDetectsDrift(t *testing.T) {
	snaps := newFakeSnapshots()
	audits := &fakeAudits{}
	svc := newService(snaps, audits, &fakeRecorder{})

	_, _, err := svc.Process(context.Background(), submission(70))
	require.NoError(t, err)

	second := submission(60)
	second.Issues.HTTPS = false
	_, drift, err := svc.Process(context.Background(), second)
	require.NoError(t, err)

	assert.False(t, drift.FirstScan)
	assert.True(t, drift.HasChanges)
	assert.Equal(t, audit.DirectionDeclining, drift.Direction)
	assert.Equal(t, -10, drift.ScoreDelta)

	// the prior snapshot was read before being overwritten
	assert.True(t, snaps.getBeforePut)
	assert.Equal(t, 60, snaps.stored["example.com"].Score)
}

func TestProcessEmptyDomain(t *testing.T) {
	svc := newService(newFakeSnapshots(), &fakeAudits{}, &fakeRecorder{})
	_, _, err := svc.Process(context.Background(), audit.Submission{})
	assert.ErrorIs(t, err, ErrEmptyDomain)
}

func TestProcessSnapshotLoadFailure(t *testing.T) {
	snaps := newFakeSnapshots()
	snaps.getErr = errors.New("redis down")
	rec := &fakeRecorder{}
	svc := newService(snaps, &fakeAudits{}, rec)

	_, _, err := svc.Process(context.Background(), submission(70))
	assert.Error(t, err)
	assert.Contains(t, rec.failures, "snapshot_load")
}

func TestProcessPersistFailureSkipsSnapshotWrite(t *testing.T) {
	snaps := newFakeSnapshots()
	audits := &fakeAudits{saveErr: errors.New("db down")}
	rec := &fakeRecorder{}
	svc := newService(snaps, audits, rec)

	_, _, err := svc.Process(context.Background(), submission(70))
	assert.Error(t, err)
	assert.Empty(t, snaps.puts)
	assert.Contains(t, rec.failures, "persist")
}

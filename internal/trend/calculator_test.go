package trend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/privacychecker/audit-core/internal/audit"
)

func result(score int, day int) *audit.Result {
	return &audit.Result{
		Domain:    "example.com",
		Score:     score,
		ScannedAt: time.Date(2026, 8, day, 0, 0, 0, 0, time.UTC),
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.AuditCount)
	assert.Equal(t, audit.DirectionUnchanged, s.Direction)
}

func TestSummarizeOrdersByScanTime(t *testing.T) {
	// newest-first input, as the repository returns it
	s := Summarize([]*audit.Result{
		result(90, 20),
		result(75, 10),
		result(60, 1),
	})
	assert.Equal(t, 3, s.AuditCount)
	assert.Equal(t, 60, s.FirstScore)
	assert.Equal(t, 90, s.LatestScore)
	assert.Equal(t, 75, s.AverageScore)
	assert.Equal(t, 90, s.BestScore)
	assert.Equal(t, 60, s.WorstScore)
	assert.Equal(t, audit.DirectionImproving, s.Direction)
	assert.Equal(t, result(0, 1).ScannedAt, s.PeriodStart)
	assert.Equal(t, result(0, 20).ScannedAt, s.PeriodEnd)
}

func TestSummarizeDirectionThreshold(t *testing.T) {
	s := Summarize([]*audit.Result{result(80, 1), result(77, 2)})
	assert.Equal(t, audit.DirectionUnchanged, s.Direction)

	s = Summarize([]*audit.Result{result(80, 1), result(74, 2)})
	assert.Equal(t, audit.DirectionDeclining, s.Direction)
}

func TestSummarizeSingleAudit(t *testing.T) {
	s := Summarize([]*audit.Result{result(70, 5)})
	assert.Equal(t, 1, s.AuditCount)
	assert.Equal(t, 70, s.FirstScore)
	assert.Equal(t, 70, s.LatestScore)
	assert.Equal(t, audit.DirectionUnchanged, s.Direction)
}

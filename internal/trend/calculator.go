// Package trend summarizes a domain's score history across audits.
package trend

import (
	"math"
	"sort"
	"time"

	"github.com/privacychecker/audit-core/internal/audit"
)

// Summary covers a window of audits for one domain, oldest to newest.
type Summary struct {
	Domain       string          `json:"domain"`
	PeriodStart  time.Time       `json:"period_start"`
	PeriodEnd    time.Time       `json:"period_end"`
	AuditCount   int             `json:"audit_count"`
	FirstScore   int             `json:"first_score"`
	LatestScore  int             `json:"latest_score"`
	AverageScore int             `json:"average_score"`
	BestScore    int             `json:"best_score"`
	WorstScore   int             `json:"worst_score"`
	Direction    audit.Direction `json:"direction"`
}

// Same noise band the drift detector uses for score movement.
const directionThreshold = 5

// Summarize computes the trend over the given audits, which may arrive
// in any order. Returns a zero summary when the slice is empty.
func Summarize(results []*audit.Result) Summary {
	if len(results) == 0 {
		return Summary{Direction: audit.DirectionUnchanged}
	}

	ordered := make([]*audit.Result, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ScannedAt.Before(ordered[j].ScannedAt)
	})

	first := ordered[0]
	latest := ordered[len(ordered)-1]

	sum := 0
	best := math.MinInt
	worst := math.MaxInt
	for _, r := range ordered {
		sum += r.Score
		if r.Score > best {
			best = r.Score
		}
		if r.Score < worst {
			worst = r.Score
		}
	}

	direction := audit.DirectionUnchanged
	switch delta := latest.Score - first.Score; {
	case delta <= -directionThreshold:
		direction = audit.DirectionDeclining
	case delta >= directionThreshold:
		direction = audit.DirectionImproving
	}

	return Summary{
		Domain:       latest.Domain,
		PeriodStart:  first.ScannedAt,
		PeriodEnd:    latest.ScannedAt,
		AuditCount:   len(ordered),
		FirstScore:   first.Score,
		LatestScore:  latest.Score,
		AverageScore: int(math.Round(float64(sum) / float64(len(ordered)))),
		BestScore:    best,
		WorstScore:   worst,
		Direction:    direction,
	}
}

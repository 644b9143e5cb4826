package badges

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fixersapp/fixers-backend/pkg/enums"
)

const (
	jobsCap             = 100
	ratingScale         = 5
	responseCapMinutes  = 240
	tenureCapDays       = 365
	satisfiedRatingFrom = 4

	weightJobs         = 0.30
	weightRating       = 0.25
	weightResponse     = 0.20
	weightSatisfaction = 0.15
	weightTenure       = 0.10

	silverMinBadges = 3
	goldMinBadges   = 5
)

// PerformanceSnapshot is one fixer's aggregated marketplace record.
type PerformanceSnapshot struct {
	FixerID            uuid.UUID `json:"fixer_id"`
	CompletedJobs      int64     `json:"completed_jobs"`
	CancelledJobs      int64     `json:"cancelled_jobs"`
	TotalJobs          int64     `json:"total_jobs"`
	AverageRating      float64   `json:"average_rating"`
	ReviewCount        int64     `json:"review_count"`
	SatisfiedReviews   int64     `json:"satisfied_reviews"`
	AvgResponseMinutes *float64  `json:"avg_response_minutes,omitempty"`
	JoinedAt           time.Time `json:"joined_at"`
}

// TenureDays counts whole days since the fixer joined, never negative.
func (p PerformanceSnapshot) TenureDays(now time.Time) float64 {
	if p.JoinedAt.IsZero() || !now.After(p.JoinedAt) {
		return 0
	}
	return math.Floor(now.Sub(p.JoinedAt).Hours() / 24)
}

// ResponseMinutes treats a fixer without response data as the slowest responder.
func (p PerformanceSnapshot) ResponseMinutes() float64 {
	if p.AvgResponseMinutes == nil {
		return responseCapMinutes
	}
	return *p.AvgResponseMinutes
}

// CancellationRate is the percentage of all jobs that were cancelled.
func (p PerformanceSnapshot) CancellationRate() float64 {
	if p.TotalJobs == 0 {
		return 0
	}
	return float64(p.CancelledJobs) / float64(p.TotalJobs) * 100
}

// Score is the weighted performance score in [0, 1].
func Score(p PerformanceSnapshot, now time.Time) float64 {
	jobs := math.Min(float64(p.CompletedJobs), jobsCap) / jobsCap
	rating := clamp(p.AverageRating/ratingScale, 0, 1)
	response := 1 - math.Min(math.Max(p.ResponseMinutes(), 0), responseCapMinutes)/responseCapMinutes
	satisfaction := float64(p.SatisfiedReviews) / math.Max(float64(p.ReviewCount), 1)
	tenure := math.Min(p.TenureDays(now), tenureCapDays) / tenureCapDays

	return weightJobs*jobs +
		weightRating*rating +
		weightResponse*response +
		weightSatisfaction*satisfaction +
		weightTenure*tenure
}

// Ranking is a fixer's position in the scored population.
type Ranking struct {
	FixerID    uuid.UUID `json:"fixer_id"`
	Score      float64   `json:"score"`
	Rank       int       `json:"rank"`
	Population int       `json:"population"`
	Cutoff     int       `json:"cutoff"`
	Top        bool      `json:"is_top_performer"`
}

// RankFixer scores every snapshot, sorts by score descending with fixer id
// ascending as the tie-break, and reports whether fixerID falls inside the top
// percent. Rank is zero-based; ok is false when the fixer is not in the population.
func RankFixer(population []PerformanceSnapshot, fixerID uuid.UUID, percent float64, now time.Time) (Ranking, bool) {
	type scored struct {
		id    uuid.UUID
		key   string
		score float64
	}
	rows := make([]scored, 0, len(population))
	for _, p := range population {
		rows = append(rows, scored{id: p.FixerID, key: p.FixerID.String(), score: Score(p, now)})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].score != rows[j].score {
			return rows[i].score > rows[j].score
		}
		return rows[i].key < rows[j].key
	})

	cutoff := TopCutoff(len(rows), percent)
	for i, row := range rows {
		if row.id == fixerID {
			return Ranking{
				FixerID:    fixerID,
				Score:      row.score,
				Rank:       i,
				Population: len(rows),
				Cutoff:     cutoff,
				Top:        i < cutoff,
			}, true
		}
	}
	return Ranking{FixerID: fixerID, Population: len(rows), Cutoff: cutoff}, false
}

// TopCutoff is the number of top-performer seats: ceil(n * percent / 100).
func TopCutoff(n int, percent float64) int {
	if n <= 0 || percent <= 0 {
		return 0
	}
	return int(math.Ceil(float64(n) * percent / 100))
}

// TierFor maps the active badge count and top-performer flag to a tier.
// PLATINUM needs the GOLD threshold as well as a top-performer ranking.
func TierFor(activeBadges int, topPerformer bool) enums.BadgeTier {
	switch {
	case activeBadges >= goldMinBadges && topPerformer:
		return enums.BadgeTierPlatinum
	case activeBadges >= goldMinBadges:
		return enums.BadgeTierGold
	case activeBadges >= silverMinBadges:
		return enums.BadgeTierSilver
	case activeBadges >= 1:
		return enums.BadgeTierBronze
	default:
		return enums.BadgeTierNone
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

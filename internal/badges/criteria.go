package badges

import (
	"fmt"
	"strconv"

	dbtypes "github.com/fixersapp/fixers-backend/pkg/db/types"
)

// Criteria keys stored on badges.criteria.
const (
	criteriaMinJobs             = "minJobs"
	criteriaMinRating           = "minRating"
	criteriaMaxResponseMinutes  = "maxResponseMinutes"
	criteriaMaxCancellationRate = "maxCancellationRate"
)

// Criteria are the optional quality thresholds a badge may require.
type Criteria struct {
	MinJobs             *int64   `json:"min_jobs,omitempty"`
	MinRating           *float64 `json:"min_rating,omitempty"`
	MaxResponseMinutes  *float64 `json:"max_response_minutes,omitempty"`
	MaxCancellationRate *float64 `json:"max_cancellation_rate,omitempty"`
}

// ParseCriteria reads thresholds from a badge's criteria document. Unknown
// keys are ignored; malformed values are an error.
func ParseCriteria(raw dbtypes.JSONMap) (Criteria, error) {
	var c Criteria
	if v, ok, err := number(raw, criteriaMinJobs); err != nil {
		return c, err
	} else if ok {
		jobs := int64(v)
		c.MinJobs = &jobs
	}
	if v, ok, err := number(raw, criteriaMinRating); err != nil {
		return c, err
	} else if ok {
		c.MinRating = &v
	}
	if v, ok, err := number(raw, criteriaMaxResponseMinutes); err != nil {
		return c, err
	} else if ok {
		c.MaxResponseMinutes = &v
	}
	if v, ok, err := number(raw, criteriaMaxCancellationRate); err != nil {
		return c, err
	} else if ok {
		c.MaxCancellationRate = &v
	}
	return c, nil
}

func number(raw dbtypes.JSONMap, key string) (float64, bool, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return 0, false, nil
	}
	switch n := v.(type) {
	case float64:
		return n, true, nil
	case int:
		return float64(n), true, nil
	case int64:
		return float64(n), true, nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false, fmt.Errorf("criteria %s: %w", key, err)
		}
		return f, true, nil
	default:
		return 0, false, fmt.Errorf("criteria %s: unsupported type %T", key, v)
	}
}

// CriteriaResult reports eligibility plus the thresholds the fixer misses.
type CriteriaResult struct {
	Eligible bool                `json:"eligible"`
	Unmet    []string            `json:"unmet"`
	Criteria Criteria            `json:"criteria"`
	Snapshot PerformanceSnapshot `json:"snapshot"`
}

// Evaluate checks a snapshot against the thresholds. It never mutates anything.
func Evaluate(c Criteria, p PerformanceSnapshot) CriteriaResult {
	out := CriteriaResult{Criteria: c, Snapshot: p, Unmet: []string{}}
	if c.MinJobs != nil && p.CompletedJobs < *c.MinJobs {
		out.Unmet = append(out.Unmet, fmt.Sprintf("requires %d completed jobs, has %d", *c.MinJobs, p.CompletedJobs))
	}
	if c.MinRating != nil && p.AverageRating < *c.MinRating {
		out.Unmet = append(out.Unmet, fmt.Sprintf("requires average rating %.2f, has %.2f", *c.MinRating, p.AverageRating))
	}
	if c.MaxResponseMinutes != nil && p.ResponseMinutes() > *c.MaxResponseMinutes {
		out.Unmet = append(out.Unmet, fmt.Sprintf("requires response within %.0f minutes, averages %.0f", *c.MaxResponseMinutes, p.ResponseMinutes()))
	}
	if c.MaxCancellationRate != nil && p.CancellationRate() > *c.MaxCancellationRate {
		out.Unmet = append(out.Unmet, fmt.Sprintf("requires cancellation rate at most %.1f%%, has %.1f%%", *c.MaxCancellationRate, p.CancellationRate()))
	}
	out.Eligible = len(out.Unmet) == 0
	return out
}

// Package dashboard derives the triage dashboard counters from the case rows
// delivered by the case store.
package dashboard

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/safetyflow/icsr-triage/pkg/common/models"
)

// NoSamples is shown when no case has a usable response time.
const NoSamples = "—"

// Compute recomputes the dashboard counters over every row. It is total over
// its input: malformed or missing columns simply do not count.
func Compute(rows []models.CaseRow) models.DashboardMetrics {
	m := models.DashboardMetrics{
		TotalCases:          len(rows),
		AverageResponseTime: NoSamples,
	}
	if len(rows) == 0 {
		return m
	}

	var firstTouch int
	var totalMinutes float64
	var samples int
	for _, row := range rows {
		status := strings.ToLower(stringColumn(row, "status"))
		if strings.ToLower(strings.TrimSpace(stringColumn(row, "risk_score"))) == "high" {
			m.HighRiskCases++
		}
		if strings.Contains(status, "follow") {
			m.PendingFollowups++
		}
		if (status == "intake" || status == "completed") && stringColumn(row, "meddra_pt") != "" {
			firstTouch++
		}

		created, ok := timeColumn(row, "created_at")
		if !ok {
			continue
		}
		completed, ok := timeColumn(row, "completed_at")
		if !ok || !completed.After(created) {
			continue
		}
		totalMinutes += completed.Sub(created).Minutes()
		samples++
	}

	m.FirstTouchSuccess = int(math.Round(100 * float64(firstTouch) / float64(len(rows))))
	if samples > 0 {
		m.AverageResponseTime = FormatMinutes(totalMinutes / float64(samples))
	}
	return m
}

// FormatMinutes renders a duration in minutes with a unit chosen by
// magnitude: seconds below one minute, then minutes, hours and days.
func FormatMinutes(mins float64) string {
	switch {
	case mins < 1:
		return fmt.Sprintf("%ds", int(math.Round(mins*60)))
	case mins < 60:
		return fmt.Sprintf("%.1f mins", roundTenth(mins))
	case mins < 1440:
		return fmt.Sprintf("%.1f hrs", roundTenth(mins/60))
	default:
		return fmt.Sprintf("%.1f days", roundTenth(mins/1440))
	}
}

// roundTenth rounds half up to one decimal. %.1f alone rounds ties to even.
func roundTenth(x float64) float64 {
	return math.Floor(x*10+0.5) / 10
}

// ProcessingTime is the per-case elapsed time shown in case listings. When
// both timestamps fall on the same instant a value in [5s, 11s) is shown
// instead; the result is for display and must never be stored.
func ProcessingTime(created, done time.Time, rnd *rand.Rand) string {
	mins := done.Sub(created).Minutes()
	if mins < 0 {
		mins = 0
	}
	if mins == 0 && rnd != nil {
		mins = (5 + rnd.Float64()*6) / 60
	}
	return FormatMinutes(mins)
}

// RowProcessingTime is ProcessingTime over a row, measured to completed_at
// or, for open cases, to extraction_completed_at. ok is false when the row
// has no usable pair of timestamps.
func RowProcessingTime(row models.CaseRow, rnd *rand.Rand) (string, bool) {
	created, ok := timeColumn(row, "created_at")
	if !ok {
		return "", false
	}
	done, ok := timeColumn(row, "completed_at")
	if !ok {
		if done, ok = timeColumn(row, "extraction_completed_at"); !ok {
			return "", false
		}
	}
	return ProcessingTime(created, done, rnd), true
}

func stringColumn(row models.CaseRow, key string) string {
	v, ok := row[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case *string:
		if val == nil {
			return ""
		}
		return *val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

// timeColumn accepts RFC 3339 strings (as decoded from JSON) and time values
// (as read back through gorm).
func timeColumn(row models.CaseRow, key string) (time.Time, bool) {
	switch v := row[key].(type) {
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return *v, true
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05.999999-07", "2006-01-02T15:04:05.999999"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}

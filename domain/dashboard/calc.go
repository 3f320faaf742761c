package dashboard

import (
	"math"
	"strings"
)

// CompletionRate returns round(completed/total*100), or 0 when there is nothing to complete
func CompletionRate(completed, total int64) int {
	return percentage(completed, total)
}

// NewProgressData builds the bucket view from raw counts.
// Each percentage is rounded on its own so they need not sum to 100;
// the not-passed residual is clamped at zero.
func NewProgressData(completed, inProgress, notStarted int64) ProgressData {
	total := completed + inProgress + notStarted
	p := ProgressData{
		TotalEnrollments:     total,
		CompletedCount:       completed,
		InProgressCount:      inProgress,
		NotStartedCount:      notStarted,
		CompletedPercentage:  percentage(completed, total),
		InProgressPercentage: percentage(inProgress, total),
		NotStartedPercentage: percentage(notStarted, total),
	}
	residual := 100 - p.CompletedPercentage - p.InProgressPercentage - p.NotStartedPercentage
	if total == 0 || residual < 0 {
		residual = 0
	}
	p.NotPassedPercentage = residual
	return p
}

func percentage(part, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

// Feed icons keyed by the verb found in an audit action
var actionIcons = []struct {
	verb string
	icon string
}{
	{"create", "plus-circle"},
	{"update", "edit"},
	{"delete", "trash"},
	{"login", "sign-in-alt"},
}

// DefaultActivityIcon is used for actions with no dedicated icon
const DefaultActivityIcon = "info-circle"

// IconForAction picks the feed icon for an audit action name
func IconForAction(action string) string {
	a := strings.ToLower(action)
	for _, m := range actionIcons {
		if strings.Contains(a, m.verb) {
			return m.icon
		}
	}
	return DefaultActivityIcon
}

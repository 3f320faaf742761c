package valueobjects

import "fmt"

// Timeframe selects the bucketing of an activity series
type Timeframe string

const (
	TimeframeDay   Timeframe = "day"
	TimeframeWeek  Timeframe = "week"
	TimeframeMonth Timeframe = "month"
)

// AllTimeframes is used when every activity series for a scope must be evicted
var AllTimeframes = []Timeframe{TimeframeDay, TimeframeWeek, TimeframeMonth}

// ParseTimeframe validates a timeframe name. Empty input defaults to week.
func ParseTimeframe(s string) (Timeframe, error) {
	if s == "" {
		return TimeframeWeek, nil
	}
	tf := Timeframe(s)
	switch tf {
	case TimeframeDay, TimeframeWeek, TimeframeMonth:
		return tf, nil
	}
	return "", fmt.Errorf("unknown timeframe %q: must be day, week or month", s)
}

// Buckets returns the number of points in the series
func (t Timeframe) Buckets() int {
	switch t {
	case TimeframeDay:
		return 24
	case TimeframeWeek:
		return 7
	default:
		return 30
	}
}

func (t Timeframe) String() string {
	return string(t)
}

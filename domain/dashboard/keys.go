// Package dashboard holds the cache keys, TTL classes and statistics
// read models served by the dashboard metrics cache.
package dashboard

import (
	"fmt"
	"strconv"

	"lms-dashboard/domain/core/valueobjects"
)

// KeyPrefix namespaces every dashboard entry in a shared cache store
const KeyPrefix = "dashboard_"

// Statistic families. Each family owns one key shape.
const (
	FamilyGlobalStats      = "global_stats"
	FamilyBranchStats      = "branch_stats"
	FamilyInstructorStats  = "instructor_stats"
	FamilyProgress         = "progress"
	FamilyActivity         = "activity"
	FamilyRecentActivities = "recent_activities"
)

// Families lists every family, used by the break-glass clear
var Families = []string{
	FamilyGlobalStats,
	FamilyBranchStats,
	FamilyInstructorStats,
	FamilyProgress,
	FamilyActivity,
	FamilyRecentActivities,
}

// Key is a canonical cache key. Build keys only through the functions in this file.
type Key string

func (k Key) String() string { return string(k) }

// ProgressScope identifies one progress query
type ProgressScope struct {
	UserID     *int64
	BranchID   *int64
	BusinessID *int64
	Filtered   bool
}

// GlobalStatsKey is the single unscoped global statistics entry
func GlobalStatsKey() Key {
	return Key(KeyPrefix + FamilyGlobalStats)
}

// BranchStatsKey is the entry for one branch
func BranchStatsKey(branchID int64) Key {
	return Key(fmt.Sprintf("%s%s_b%d", KeyPrefix, FamilyBranchStats, branchID))
}

// InstructorStatsKey is the entry for one instructor
func InstructorStatsKey(userID int64) Key {
	return Key(fmt.Sprintf("%s%s_u%d", KeyPrefix, FamilyInstructorStats, userID))
}

// ProgressKey carries every qualifier of the query so distinct scopes never share an entry
func ProgressKey(s ProgressScope) Key {
	return Key(fmt.Sprintf("%s%s_u%s_b%s_bs%s_f%s",
		KeyPrefix, FamilyProgress,
		qualifier(s.UserID), qualifier(s.BranchID), qualifier(s.BusinessID),
		flag(s.Filtered)))
}

// ActivityKey is the entry for one timeframe, optionally scoped to a branch
func ActivityKey(tf valueobjects.Timeframe, branchID *int64) Key {
	return Key(fmt.Sprintf("%s%s_%s_b%s", KeyPrefix, FamilyActivity, tf, qualifier(branchID)))
}

// RecentActivitiesKey is the entry for one feed length, optionally scoped to a branch
func RecentActivitiesKey(limit int, branchID *int64) Key {
	return Key(fmt.Sprintf("%s%s_n%d_b%s", KeyPrefix, FamilyRecentActivities, limit, qualifier(branchID)))
}

// Patterns are shell globs understood by stores that support pattern deletion.
// '*' never has to cross a '/', keys contain none.

// FamilyPattern matches every entry of a family
func FamilyPattern(family string) string {
	return KeyPrefix + family + "*"
}

// ProgressBranchPattern matches progress entries scoped to the branch
func ProgressBranchPattern(branchID int64) string {
	return fmt.Sprintf("%s%s_*_b%d_*", KeyPrefix, FamilyProgress, branchID)
}

// ProgressBusinessPattern matches progress entries scoped to the business
func ProgressBusinessPattern(businessID int64) string {
	return fmt.Sprintf("%s%s_*_bs%d_*", KeyPrefix, FamilyProgress, businessID)
}

// ProgressUnscopedPattern matches progress entries with neither branch nor business
func ProgressUnscopedPattern() string {
	return fmt.Sprintf("%s%s_*_b%s_bs%s_*", KeyPrefix, FamilyProgress, allQualifier, allQualifier)
}

// ProgressUserPattern matches every progress entry requested for the user
func ProgressUserPattern(userID int64) string {
	return fmt.Sprintf("%s%s_u%d_*", KeyPrefix, FamilyProgress, userID)
}

const allQualifier = "all"

func qualifier(id *int64) string {
	if id == nil {
		return allQualifier
	}
	return strconv.FormatInt(*id, 10)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

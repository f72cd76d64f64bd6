// Package summary computes report and task statistics.
//
// Every function is a pure transformation of the rows it is given: nothing is queried, cached or
// mutated, and empty input yields zeroed results instead of errors.
package summary

import (
	"slices"
	"strconv"
	"strings"

	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
)

// completionKeywords mark a next-week plan as "done". Matching is lexical, so CompletionRate is
// an approximation: a plan such as "마무리 단계이지만 계속 진행" still counts as completed.
var completionKeywords = []string{"완료", "종료", "마무리", "끝", "finish", "complete"}

// Stats 项目周报统计
type Stats struct {
	TotalWeeks     int      `json:"total_weeks"`
	LatestWeek     string   `json:"latest_week"`
	TotalReports   int      `json:"total_reports"`
	CurrentIssues  int      `json:"current_issues"`
	CompletionRate float64  `json:"completion_rate"`
	Stages         []string `json:"stages"`
}

// ProjectStats summarizes one project's reports.
func ProjectStats(reports []entity.WeeklyReport) Stats {
	return Stats{
		TotalWeeks:     TotalWeeks(reports),
		LatestWeek:     LatestWeek(reports),
		TotalReports:   len(reports),
		CurrentIssues:  CurrentIssues(reports),
		CompletionRate: CompletionRate(reports),
		Stages:         Stages(reports),
	}
}

// TotalWeeks counts distinct week identifiers.
func TotalWeeks(reports []entity.WeeklyReport) int {
	weeks := make(map[string]struct{}, len(reports))
	for _, r := range reports {
		weeks[r.Week] = struct{}{}
	}
	return len(weeks)
}

// LatestWeek returns the greatest week in string order. YYYY-WNN sorts
// chronologically only because NN is zero padded.
func LatestWeek(reports []entity.WeeklyReport) string {
	latest := ""
	for _, r := range reports {
		if r.Week > latest {
			latest = r.Week
		}
	}
	return latest
}

// HasIssues reports whether the report lists a non-blank issue.
func HasIssues(r entity.WeeklyReport) bool {
	return !blank(r.IssuesRisks)
}

// CurrentIssues counts reports with non-blank issues_risks.
func CurrentIssues(reports []entity.WeeklyReport) int {
	n := 0
	for _, r := range reports {
		if HasIssues(r) {
			n++
		}
	}
	return n
}

// IsCompleted applies the keyword heuristic to a report's next-week plan.
func IsCompleted(r entity.WeeklyReport) bool {
	if blank(r.NextWeekPlan) {
		return true
	}
	plan := strings.ToLower(*r.NextWeekPlan)
	for _, kw := range completionKeywords {
		if strings.Contains(plan, kw) {
			return true
		}
	}
	return false
}

// CompletionRate is the percentage of reports IsCompleted accepts, to one decimal.
func CompletionRate(reports []entity.WeeklyReport) float64 {
	if len(reports) == 0 {
		return 0
	}
	done := 0
	for _, r := range reports {
		if IsCompleted(r) {
			done++
		}
	}
	return Round1(float64(done) / float64(len(reports)) * 100)
}

// Stages lists the distinct stages in ascending order.
func Stages(reports []entity.WeeklyReport) []string {
	stages := make([]string, 0)
	for _, r := range reports {
		if !slices.Contains(stages, r.Stage) {
			stages = append(stages, r.Stage)
		}
	}
	slices.Sort(stages)
	return stages
}

// Round1 rounds to one decimal place, resolving exact halves to even.
func Round1(x float64) float64 {
	return roundTo(x, 1)
}

// Round2 rounds to two decimal places.
func Round2(x float64) float64 {
	return roundTo(x, 2)
}

// roundTo rounds the exact binary value of x, so 0.35 (stored as 0.34999...) becomes 0.3.
func roundTo(x float64, places int) float64 {
	v, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', places, 64), 64)
	return v
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

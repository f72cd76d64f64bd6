package summary

import (
	"fmt"
	"slices"
	"time"

	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
)

// 时间线事件类型
const (
	EventProjectCreated = "project_created"
	EventProjectUpdated = "project_updated"
	EventReportCreated  = "report_created"
	EventReportUpdated  = "report_updated"
	EventTaskCreated    = "task_created"
	EventTaskUpdated    = "task_updated"
	EventTaskCompleted  = "task_completed"
	EventTaskRisk       = "task_risk"
)

// 事件来源
const (
	CategoryProject = "project"
	CategoryReport  = "report"
	CategoryTask    = "task"
)

// Event is one entry of a project timeline.
type Event struct {
	Type        string                 `json:"type"`
	Category    string                 `json:"category"`
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Date        time.Time              `json:"date"`
	Details     map[string]interface{} `json:"details"`
}

// DateRange 时间线起止
type DateRange struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

// TimelineSummary 时间线概要
type TimelineSummary struct {
	TotalEvents    int       `json:"total_events"`
	CompletedTasks int       `json:"completed_tasks"`
	IssuesCount    int       `json:"issues_count"`
	DateRange      DateRange `json:"date_range"`
}

// Timeline 项目时间线
type Timeline struct {
	Events  []Event         `json:"timeline_events"`
	Summary TimelineSummary `json:"summary"`
}

// BuildTimeline merges project, report and task lifecycle events into one list ordered by date.
// Events sharing a timestamp keep generation order: project, then reports, then tasks.
func BuildTimeline(project entity.Project, reports []entity.WeeklyReport, tasks []entity.DetailedTask) Timeline {
	events := make([]Event, 0, 2+2*len(reports)+4*len(tasks))
	issues := 0

	projectDetails := map[string]interface{}{
		"name":     project.Name,
		"status":   project.Status,
		"priority": project.Priority,
		"manager":  project.Manager,
	}
	events = append(events, Event{
		Type: EventProjectCreated, Category: CategoryProject,
		Title:       "프로젝트 생성",
		Description: fmt.Sprintf("%s 프로젝트가 생성되었습니다", project.Name),
		Date:        project.CreatedAt,
		Details:     projectDetails,
	})
	if !project.UpdatedAt.Equal(project.CreatedAt) {
		events = append(events, Event{
			Type: EventProjectUpdated, Category: CategoryProject,
			Title:       "프로젝트 수정",
			Description: fmt.Sprintf("%s 프로젝트 정보가 수정되었습니다", project.Name),
			Date:        project.UpdatedAt,
			Details:     projectDetails,
		})
	}

	for _, r := range reports {
		details := map[string]interface{}{
			"id":             r.ID,
			"week":           r.Week,
			"stage":          r.Stage,
			"this_week_work": r.ThisWeekWork,
			"next_week_plan": r.NextWeekPlan,
			"issues_risks":   r.IssuesRisks,
		}
		events = append(events, Event{
			Type: EventReportCreated, Category: CategoryReport,
			Title:       fmt.Sprintf("%s 주간 보고", r.Week),
			Description: fmt.Sprintf("[%s] %s", r.Stage, Truncate(r.ThisWeekWork, 100)),
			Date:        r.CreatedAt,
			Details:     details,
		})
		if !r.UpdatedAt.Equal(r.CreatedAt) {
			events = append(events, Event{
				Type: EventReportUpdated, Category: CategoryReport,
				Title:       fmt.Sprintf("%s 주간 보고 수정", r.Week),
				Description: fmt.Sprintf("[%s] 보고서가 수정되었습니다", r.Stage),
				Date:        r.UpdatedAt,
				Details:     details,
			})
		}
		if HasIssues(r) {
			issues++
		}
	}

	completed := 0
	for _, t := range tasks {
		details := map[string]interface{}{
			"id":               t.ID,
			"task_item":        t.TaskItem,
			"stage":            t.Stage,
			"assignee":         t.Assignee,
			"current_status":   t.CurrentStatus,
			"progress_rate":    t.ProgressRate,
			"has_risk":         t.HasRisk,
			"planned_end_date": t.PlannedEndDate,
			"actual_end_date":  t.ActualEndDate,
		}
		events = append(events, Event{
			Type: EventTaskCreated, Category: CategoryTask,
			Title:       "업무 등록",
			Description: t.TaskItem,
			Date:        t.CreatedAt,
			Details:     details,
		})
		if !t.UpdatedAt.Equal(t.CreatedAt) {
			events = append(events, Event{
				Type: EventTaskUpdated, Category: CategoryTask,
				Title:       "업무 수정",
				Description: fmt.Sprintf("%s (진행률 %.0f%%)", t.TaskItem, t.ProgressRate),
				Date:        t.UpdatedAt,
				Details:     details,
			})
		}
		if t.ActualEndDate != nil {
			completed++
			events = append(events, Event{
				Type: EventTaskCompleted, Category: CategoryTask,
				Title:       "업무 완료",
				Description: t.TaskItem,
				Date:        t.ActualEndDate.Time(),
				Details:     details,
			})
		}
		if t.HasRisk {
			issues++
			events = append(events, Event{
				Type: EventTaskRisk, Category: CategoryTask,
				Title:       "리스크 발생",
				Description: t.TaskItem,
				Date:        t.UpdatedAt,
				Details:     details,
			})
		}
	}

	slices.SortStableFunc(events, func(a, b Event) int { return a.Date.Compare(b.Date) })

	tl := Timeline{
		Events: events,
		Summary: TimelineSummary{
			TotalEvents:    len(events),
			CompletedTasks: completed,
			IssuesCount:    issues,
		},
	}
	if len(events) > 0 {
		start, end := events[0].Date, events[len(events)-1].Date
		tl.Summary.DateRange = DateRange{Start: &start, End: &end}
	}
	return tl
}

// Truncate shortens s to max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

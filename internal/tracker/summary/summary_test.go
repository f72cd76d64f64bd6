package summary

import (
	"reflect"
	"testing"
	"time"

	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
)

func str(s string) *string { return &s }

func report(week, stage string, plan, issues *string) entity.WeeklyReport {
	return entity.WeeklyReport{Week: week, Stage: stage, ThisWeekWork: "work", NextWeekPlan: plan, IssuesRisks: issues}
}

func task(assignee, stage string, progress float64, risk bool) entity.DetailedTask {
	return entity.DetailedTask{Assignee: assignee, Stage: stage, ProgressRate: progress, HasRisk: risk,
		CurrentStatus: entity.TaskStatusInProgress}
}

func TestProjectStatsEmpty(t *testing.T) {
	s := ProjectStats(nil)
	if s.TotalWeeks != 0 || s.LatestWeek != "" || s.TotalReports != 0 || s.CurrentIssues != 0 || s.CompletionRate != 0 {
		t.Errorf("Expected zeroed stats, got %+v", s)
	}
	if s.Stages == nil || len(s.Stages) != 0 {
		t.Errorf("Expected empty stages, got %#v", s.Stages)
	}
}

func TestProjectStats(t *testing.T) {
	reports := []entity.WeeklyReport{
		report("2024-W09", "설계", str("계속 진행"), str("일정 지연")),
		report("2024-W10", "개발", nil, nil),
		report("2024-W10", "설계", str("설계 마무리"), str("  ")),
		report("2023-W52", "기획", str("Finish QA"), nil),
	}
	s := ProjectStats(reports)

	if s.TotalWeeks != 3 {
		t.Errorf("Expected 3 weeks, got %d", s.TotalWeeks)
	}
	if s.LatestWeek != "2024-W10" {
		t.Errorf("Expected latest week 2024-W10, got %s", s.LatestWeek)
	}
	if s.TotalReports != 4 {
		t.Errorf("Expected 4 reports, got %d", s.TotalReports)
	}
	if s.CurrentIssues != 1 {
		t.Errorf("Expected 1 issue, got %d", s.CurrentIssues)
	}
	if s.CompletionRate != 75.0 {
		t.Errorf("Expected completion rate 75.0, got %v", s.CompletionRate)
	}
	if !reflect.DeepEqual(s.Stages, []string{"개발", "기획", "설계"}) {
		t.Errorf("Unexpected stages %v", s.Stages)
	}
}

func TestCurrentIssuesWhitespaceOnly(t *testing.T) {
	reports := []entity.WeeklyReport{report("2024-W01", "a", nil, str("   "))}
	if n := CurrentIssues(reports); n != 0 {
		t.Errorf("Expected whitespace-only issues to be ignored, got %d", n)
	}
}

func TestIsCompleted(t *testing.T) {
	tests := []struct {
		name string
		plan *string
		want bool
	}{
		{"nil plan", nil, true},
		{"blank plan", str("  \n"), true},
		{"no keyword", str("계속 진행"), false},
		{"korean keyword", str("테스트 완료 예정"), true},
		{"end keyword", str("이번 주 끝"), true},
		{"latin upper", str("COMPLETE the release"), true},
		{"latin mixed", str("Finishing touches"), true},
		{"incidental match", str("마무리 단계이지만 계속 진행"), true},
		{"unrelated latin", str("continue testing"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCompleted(report("2024-W01", "s", tt.plan, nil)); got != tt.want {
				t.Errorf("IsCompleted(%v) = %v, want %v", tt.plan, got, tt.want)
			}
		})
	}
}

func TestCompletionRateRounding(t *testing.T) {
	reports := []entity.WeeklyReport{
		report("2024-W01", "a", nil, nil),
		report("2024-W02", "a", str("진행"), nil),
		report("2024-W03", "a", str("진행"), nil),
	}
	if got := CompletionRate(reports); got != 33.3 {
		t.Errorf("Expected 33.3, got %v", got)
	}
}

func TestProgressScenarioB(t *testing.T) {
	tasks := []entity.DetailedTask{
		task("a", "s", 0, false),
		task("b", "s", 50, true),
		task("c", "s", 100, false),
	}
	s := Progress(tasks)
	if s.NotStartedTasks != 1 || s.InProgressTasks != 1 || s.CompletedTasks != 1 {
		t.Errorf("Expected 1/1/1, got %+v", s)
	}
	if s.AvgProgress != 50.0 {
		t.Errorf("Expected avg 50.0, got %v", s.AvgProgress)
	}
	if s.TasksWithRisk != 1 || RiskCount(tasks) != 1 {
		t.Errorf("Expected 1 risk task, got %d", s.TasksWithRisk)
	}
}

func TestProgressEmpty(t *testing.T) {
	s := Progress(nil)
	if s != (TaskSummary{}) {
		t.Errorf("Expected zero summary, got %+v", s)
	}
	if AverageProgress(nil) != 0 {
		t.Errorf("Expected 0 average")
	}
}

func TestAverageProgressTwoDecimals(t *testing.T) {
	tasks := []entity.DetailedTask{task("", "", 10, false), task("", "", 20, false), task("", "", 20, false)}
	if got := AverageProgress(tasks); got != 16.67 {
		t.Errorf("Expected 16.67, got %v", got)
	}
	if got := Progress(tasks).AvgProgress; got != 16.7 {
		t.Errorf("Expected 16.7, got %v", got)
	}
}

func TestRoundHalfEven(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.25, 0.2},
		{0.75, 0.8},
		{0.35, 0.3},
		{12.5, 12.5},
		{66.66666, 66.7},
	}
	for _, tt := range tests {
		if got := Round1(tt.in); got != tt.want {
			t.Errorf("Round1(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStatusBreakdown(t *testing.T) {
	tasks := []entity.DetailedTask{
		{CurrentStatus: entity.TaskStatusCompleted},
		{CurrentStatus: entity.TaskStatusCompleted},
		{CurrentStatus: entity.TaskStatusOnHold},
	}
	got := StatusBreakdown(tasks)
	want := map[string]int{"not_started": 0, "in_progress": 0, "completed": 2, "on_hold": 1, "cancelled": 0}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestProgressDistribution(t *testing.T) {
	tasks := []entity.DetailedTask{
		task("", "", 0, false), task("", "", 25, false), task("", "", 26, false),
		task("", "", 75, false), task("", "", 99.5, false), task("", "", 100, false),
	}
	var counts []int
	for _, b := range ProgressDistribution(tasks) {
		counts = append(counts, b.Count)
	}
	if !reflect.DeepEqual(counts, []int{1, 1, 1, 1, 1, 1}) {
		t.Errorf("Unexpected distribution %v", counts)
	}
}

func TestByAssigneeExcludesBlank(t *testing.T) {
	tasks := []entity.DetailedTask{
		task("kim", "설계", 100, false),
		task("kim", "개발", 50, true),
		task("lee", "개발", 0, false),
		task("", "개발", 80, false),
		task("   ", "개발", 80, false),
	}
	got := ByAssignee(tasks)
	want := []Breakdown{
		{Name: "kim", Total: 2, Completed: 1, InProgress: 1, WithRisk: 1, AvgProgress: 75},
		{Name: "lee", Total: 1, AvgProgress: 0},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
	if len(ByAssignee(nil)) != 0 {
		t.Error("Expected no groups for empty input")
	}
}

func TestByStageAndProject(t *testing.T) {
	tasks := []entity.DetailedTask{
		{ProjectID: 1, Stage: "개발", ProgressRate: 40},
		{ProjectID: 1, Stage: "개발", ProgressRate: 60},
		{ProjectID: 2, Stage: "설계", ProgressRate: 100},
		{ProjectID: 2, Stage: "", ProgressRate: 100},
	}
	stages := ByStage(tasks)
	if len(stages) != 2 || stages[0].Name != "개발" || stages[0].AvgProgress != 50 || stages[1].Completed != 1 {
		t.Errorf("Unexpected stage breakdown %+v", stages)
	}

	projects := ByProject(tasks, map[uint]string{1: "alpha", 2: "beta"})
	if len(projects) != 2 || projects[0].Name != "alpha" || projects[1].Name != "beta" || projects[1].Completed != 2 {
		t.Errorf("Unexpected project breakdown %+v", projects)
	}
}

func TestTimelineOrderingAndTies(t *testing.T) {
	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	project := entity.Project{Name: "alpha", CreatedAt: t0, UpdatedAt: t0}
	reports := []entity.WeeklyReport{
		{ID: 1, Week: "2024-W09", Stage: "설계", ThisWeekWork: "w", CreatedAt: t0, UpdatedAt: t0.Add(2 * time.Hour),
			IssuesRisks: str("지연")},
	}
	done := entity.NewDate(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	tasks := []entity.DetailedTask{
		{ID: 7, TaskItem: "API", CreatedAt: t0, UpdatedAt: t0.Add(2 * time.Hour), HasRisk: true, ActualEndDate: &done},
	}

	tl := BuildTimeline(project, reports, tasks)

	var types []string
	for _, e := range tl.Events {
		types = append(types, e.Type)
	}
	want := []string{
		EventTaskCompleted,
		EventProjectCreated, EventReportCreated, EventTaskCreated,
		EventReportUpdated, EventTaskUpdated, EventTaskRisk,
	}
	if !reflect.DeepEqual(types, want) {
		t.Fatalf("Expected %v, got %v", want, types)
	}
	for i := 1; i < len(tl.Events); i++ {
		if tl.Events[i].Date.Before(tl.Events[i-1].Date) {
			t.Errorf("Event %d is earlier than its predecessor", i)
		}
	}

	if tl.Summary.TotalEvents != 7 || tl.Summary.CompletedTasks != 1 || tl.Summary.IssuesCount != 2 {
		t.Errorf("Unexpected summary %+v", tl.Summary)
	}
	if !tl.Summary.DateRange.Start.Equal(done.Time()) || !tl.Summary.DateRange.End.Equal(t0.Add(2*time.Hour)) {
		t.Errorf("Unexpected date range %v - %v", tl.Summary.DateRange.Start, tl.Summary.DateRange.End)
	}
}

func TestTimelineSkipsUnchangedUpdates(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tl := BuildTimeline(entity.Project{Name: "p", CreatedAt: t0, UpdatedAt: t0},
		[]entity.WeeklyReport{{Week: "2024-W01", CreatedAt: t0, UpdatedAt: t0}},
		[]entity.DetailedTask{{TaskItem: "x", CreatedAt: t0, UpdatedAt: t0}})
	if len(tl.Events) != 3 {
		t.Errorf("Expected only creation events, got %d", len(tl.Events))
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("가나다라", 2); got != "가나..." {
		t.Errorf("Expected rune-safe truncation, got %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Expected unchanged string, got %q", got)
	}
}

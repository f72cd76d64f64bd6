package summary

import (
	"slices"
	"strings"

	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
)

// TaskSummary 任务进度汇总
type TaskSummary struct {
	TotalTasks      int     `json:"total_tasks"`
	CompletedTasks  int     `json:"completed_tasks"`
	InProgressTasks int     `json:"in_progress_tasks"`
	NotStartedTasks int     `json:"not_started_tasks"`
	TasksWithRisk   int     `json:"tasks_with_risk"`
	AvgProgress     float64 `json:"avg_progress"`
}

// Breakdown is one group of a per-assignee, per-stage or per-project rollup.
type Breakdown struct {
	Name        string  `json:"name"`
	Total       int     `json:"total"`
	Completed   int     `json:"completed"`
	InProgress  int     `json:"in_progress"`
	WithRisk    int     `json:"with_risk"`
	AvgProgress float64 `json:"avg_progress"`
}

// ProgressBucket 进度区间计数
type ProgressBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Progress rolls tasks up by progress_rate. The mean of an empty set is 0.
func Progress(tasks []entity.DetailedTask) TaskSummary {
	s := TaskSummary{TotalTasks: len(tasks)}
	sum := 0.0
	for _, t := range tasks {
		sum += t.ProgressRate
		switch {
		case t.ProgressRate >= 100:
			s.CompletedTasks++
		case t.ProgressRate > 0:
			s.InProgressTasks++
		default:
			s.NotStartedTasks++
		}
		if t.HasRisk {
			s.TasksWithRisk++
		}
	}
	s.AvgProgress = mean(sum, len(tasks), Round1)
	return s
}

// RiskCount counts tasks flagged has_risk.
func RiskCount(tasks []entity.DetailedTask) int {
	n := 0
	for _, t := range tasks {
		if t.HasRisk {
			n++
		}
	}
	return n
}

// AverageProgress is the mean progress to two decimals, as the task statistics view reports it.
func AverageProgress(tasks []entity.DetailedTask) float64 {
	sum := 0.0
	for _, t := range tasks {
		sum += t.ProgressRate
	}
	return mean(sum, len(tasks), Round2)
}

// StatusBreakdown counts tasks per current_status. Every known status is present.
func StatusBreakdown(tasks []entity.DetailedTask) map[string]int {
	counts := make(map[string]int, len(entity.TaskStatuses))
	for _, s := range entity.TaskStatuses {
		counts[s] = 0
	}
	for _, t := range tasks {
		counts[t.CurrentStatus]++
	}
	return counts
}

// ProgressDistribution buckets tasks by progress_rate.
func ProgressDistribution(tasks []entity.DetailedTask) []ProgressBucket {
	buckets := []ProgressBucket{
		{Label: "0%"}, {Label: "1-25%"}, {Label: "26-50%"},
		{Label: "51-75%"}, {Label: "76-99%"}, {Label: "100%"},
	}
	for _, t := range tasks {
		p := t.ProgressRate
		switch {
		case p <= 0:
			buckets[0].Count++
		case p <= 25:
			buckets[1].Count++
		case p <= 50:
			buckets[2].Count++
		case p <= 75:
			buckets[3].Count++
		case p < 100:
			buckets[4].Count++
		default:
			buckets[5].Count++
		}
	}
	return buckets
}

// ByAssignee groups tasks by assignee. Tasks without an assignee are left out.
func ByAssignee(tasks []entity.DetailedTask) []Breakdown {
	return groupBy(tasks, func(t entity.DetailedTask) string { return strings.TrimSpace(t.Assignee) })
}

// ByStage groups tasks by stage. Tasks without a stage are left out.
func ByStage(tasks []entity.DetailedTask) []Breakdown {
	return groupBy(tasks, func(t entity.DetailedTask) string { return strings.TrimSpace(t.Stage) })
}

// ByProject groups tasks by project, naming each group from names.
func ByProject(tasks []entity.DetailedTask, names map[uint]string) []Breakdown {
	return groupBy(tasks, func(t entity.DetailedTask) string { return names[t.ProjectID] })
}

// groupBy orders groups by size, largest first, then by name.
func groupBy(tasks []entity.DetailedTask, key func(entity.DetailedTask) string) []Breakdown {
	groups := make(map[string]*Breakdown)
	sums := make(map[string]float64)
	for _, t := range tasks {
		k := key(t)
		if k == "" {
			continue
		}
		g, ok := groups[k]
		if !ok {
			g = &Breakdown{Name: k}
			groups[k] = g
		}
		g.Total++
		sums[k] += t.ProgressRate
		switch {
		case t.ProgressRate >= 100:
			g.Completed++
		case t.ProgressRate > 0:
			g.InProgress++
		}
		if t.HasRisk {
			g.WithRisk++
		}
	}

	out := make([]Breakdown, 0, len(groups))
	for k, g := range groups {
		g.AvgProgress = mean(sums[k], g.Total, Round1)
		out = append(out, *g)
	}
	slices.SortFunc(out, func(a, b Breakdown) int {
		if a.Total != b.Total {
			return b.Total - a.Total
		}
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

func mean(sum float64, n int, round func(float64) float64) float64 {
	if n == 0 {
		return 0
	}
	return round(sum / float64(n))
}

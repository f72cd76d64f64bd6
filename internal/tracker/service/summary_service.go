package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
	"github.com/sungreong/TaskWeaver/internal/tracker/repository"
	"github.com/sungreong/TaskWeaver/internal/tracker/summary"
)

const (
	recentUpdateLimit   = 3
	recentActivityLimit = 5
	recentTaskLimit     = 10
	topAssigneeLimit    = 10
	topProjectLimit     = 5
	workPreviewRunes    = 100
)

// SummaryService 汇总服务。结果经 SummaryCache 缓存，任何写操作后失效
type SummaryService struct {
	repos *repository.Repositories
	cache *SummaryCache
}

// NewSummaryService 创建汇总服务
func NewSummaryService(repos *repository.Repositories, cache *SummaryCache) *SummaryService {
	return &SummaryService{repos: repos, cache: cache}
}

// ProjectSummary 项目周报汇总
type ProjectSummary struct {
	Project string `json:"project"`
	summary.Stats
	RecentUpdates []RecentUpdate `json:"recent_updates"`
}

// RecentUpdate 最近更新的周报
type RecentUpdate struct {
	Week         string    `json:"week"`
	Stage        string    `json:"stage"`
	ThisWeekWork string    `json:"this_week_work"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// WeekSummary 某一周全部项目汇总
type WeekSummary struct {
	Week               string               `json:"week"`
	TotalProjects      int                  `json:"total_projects"`
	TotalStages        int                  `json:"total_stages"`
	ProjectsWithIssues int                  `json:"projects_with_issues"`
	TotalIssues        int                  `json:"total_issues"`
	ProjectSummaries   []WeekProjectSummary `json:"project_summaries"`
}

// WeekProjectSummary 某一周单个项目
type WeekProjectSummary struct {
	Project     string   `json:"project"`
	Stages      []string `json:"stages"`
	HasIssues   bool     `json:"has_issues"`
	TotalStages int      `json:"total_stages"`
}

// Dashboard 总览
type Dashboard struct {
	TotalReports      int64            `json:"total_reports"`
	TotalProjects     int64            `json:"total_projects"`
	ActiveProjects    int64            `json:"active_projects"`
	TotalWeeks        int              `json:"total_weeks"`
	LatestWeek        string           `json:"latest_week"`
	CurrentWeek       string           `json:"current_week"`
	ReportsThisWeek   int              `json:"reports_this_week"`
	ReportsWithIssues int              `json:"reports_with_issues"`
	RecentActivities  []ReportActivity `json:"recent_activities"`
}

// ReportActivity 最近的周报活动
type ReportActivity struct {
	Project   string    `json:"project"`
	Week      string    `json:"week"`
	Stage     string    `json:"stage"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskActivity 最近的任务活动
type TaskActivity struct {
	Project       string    `json:"project,omitempty"`
	TaskItem      string    `json:"task_item"`
	Assignee      string    `json:"assignee"`
	CurrentStatus string    `json:"current_status"`
	ProgressRate  float64   `json:"progress_rate"`
	HasRisk       bool      `json:"has_risk"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EnhancedDashboard 含细化任务的总览
type EnhancedDashboard struct {
	Overview         DashboardOverview `json:"overview"`
	TaskStatistics   TaskDistribution  `json:"task_statistics"`
	RecentActivities struct {
		TaskUpdates []TaskActivity `json:"task_updates"`
	} `json:"recent_activities"`
}

// DashboardOverview 总览计数
type DashboardOverview struct {
	TotalProjects      int64   `json:"total_projects"`
	TotalReports       int64   `json:"total_reports"`
	TotalWeeks         int     `json:"total_weeks"`
	TotalDetailedTasks int     `json:"total_detailed_tasks"`
	ReportsWithIssues  int     `json:"reports_with_issues"`
	TasksWithRisk      int     `json:"tasks_with_risk"`
	AvgTaskProgress    float64 `json:"avg_task_progress"`
}

// TaskDistribution 任务分布
type TaskDistribution struct {
	StatusDistribution   map[string]int           `json:"status_distribution"`
	ProgressDistribution []summary.ProgressBucket `json:"progress_distribution"`
	AssigneeDistribution []summary.Breakdown      `json:"assignee_distribution"`
	ProjectOverview      []summary.Breakdown      `json:"project_overview"`
}

// EnhancedProjectSummary 项目周报与任务汇总
type EnhancedProjectSummary struct {
	Project              string              `json:"project"`
	WeeklySummary        summary.Stats       `json:"weekly_summary"`
	TaskSummary          summary.TaskSummary `json:"task_summary"`
	AssigneeBreakdown    []summary.Breakdown `json:"assignee_breakdown"`
	StageBreakdown       []summary.Breakdown `json:"stage_breakdown"`
	RecentTaskActivities []TaskActivity      `json:"recent_task_activities"`
}

// ProjectTimeline 项目时间线
type ProjectTimeline struct {
	Project string `json:"project"`
	summary.Timeline
}

// AssigneeSummary 负责人任务汇总。Found 为 false 时其余字段为空
type AssigneeSummary struct {
	Assignee            string              `json:"assignee"`
	Found               bool                `json:"found"`
	Overview            AssigneeOverview    `json:"overview"`
	ProjectDistribution []summary.Breakdown `json:"project_distribution"`
	RecentTasks         []TaskView          `json:"recent_tasks"`
}

// AssigneeOverview 负责人任务计数
type AssigneeOverview struct {
	summary.TaskSummary
	TotalProjects int `json:"total_projects"`
}

// Projects 全部项目名称
func (s *SummaryService) Projects(ctx context.Context) ([]string, error) {
	return cached(ctx, s.cache, "projects", func() ([]string, error) {
		names, err := s.repos.Project.Names(ctx)
		if err != nil {
			return nil, fmt.Errorf("project names: %w", err)
		}
		return nonNil(names), nil
	})
}

// Weeks 全部周次，倒序
func (s *SummaryService) Weeks(ctx context.Context) ([]string, error) {
	return cached(ctx, s.cache, "weeks", func() ([]string, error) {
		weeks, err := s.repos.Report.DistinctWeeks(ctx)
		if err != nil {
			return nil, fmt.Errorf("distinct weeks: %w", err)
		}
		return nonNil(weeks), nil
	})
}

// Stages 全部阶段
func (s *SummaryService) Stages(ctx context.Context) ([]string, error) {
	return cached(ctx, s.cache, "stages", func() ([]string, error) {
		stages, err := s.repos.Report.DistinctStages(ctx)
		if err != nil {
			return nil, fmt.Errorf("distinct stages: %w", err)
		}
		return nonNil(stages), nil
	})
}

// Project 项目周报统计和最近更新
func (s *SummaryService) Project(ctx context.Context, name string) (*ProjectSummary, error) {
	project, err := findProject(ctx, s.repos, 0, name)
	if err != nil {
		return nil, err
	}
	return cached(ctx, s.cache, "project:"+project.Name, func() (*ProjectSummary, error) {
		reports, err := s.repos.Report.ListByProject(ctx, project.ID)
		if err != nil {
			return nil, fmt.Errorf("list reports: %w", err)
		}
		recent, err := s.recentReports(ctx, project.ID, recentUpdateLimit)
		if err != nil {
			return nil, err
		}
		out := &ProjectSummary{
			Project:       project.Name,
			Stats:         summary.ProjectStats(reports),
			RecentUpdates: make([]RecentUpdate, 0, len(recent)),
		}
		for _, r := range recent {
			out.RecentUpdates = append(out.RecentUpdates, RecentUpdate{
				Week:         r.Week,
				Stage:        r.Stage,
				ThisWeekWork: summary.Truncate(r.ThisWeekWork, workPreviewRunes),
				UpdatedAt:    r.UpdatedAt,
			})
		}
		return out, nil
	})
}

func (s *SummaryService) recentReports(ctx context.Context, projectID uint, limit int) ([]entity.WeeklyReport, error) {
	reports, err := s.repos.Report.List(ctx, repository.ReportFilter{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	slices.SortStableFunc(reports, func(a, b entity.WeeklyReport) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return reports[:min(limit, len(reports))], nil
}

// Week 某一周全部项目汇总，项目按名称排序
func (s *SummaryService) Week(ctx context.Context, week string) (*WeekSummary, error) {
	week, err := validateWeek(week)
	if err != nil {
		return nil, err
	}
	return cached(ctx, s.cache, "week:"+week, func() (*WeekSummary, error) {
		reports, err := s.repos.Report.ListByWeek(ctx, week)
		if err != nil {
			return nil, fmt.Errorf("list reports: %w", err)
		}
		names, err := s.repos.Project.NameMap(ctx)
		if err != nil {
			return nil, fmt.Errorf("project names: %w", err)
		}

		groups := make(map[string]*WeekProjectSummary)
		var order []string
		out := &WeekSummary{Week: week, TotalStages: len(reports)}
		for _, r := range reports {
			name := names[r.ProjectID]
			g, ok := groups[name]
			if !ok {
				g = &WeekProjectSummary{Project: name, Stages: []string{}}
				groups[name] = g
				order = append(order, name)
			}
			g.Stages = append(g.Stages, r.Stage)
			g.TotalStages++
			if summary.HasIssues(r) {
				g.HasIssues = true
				out.TotalIssues++
			}
		}
		slices.Sort(order)

		out.TotalProjects = len(order)
		out.ProjectSummaries = make([]WeekProjectSummary, 0, len(order))
		for _, name := range order {
			g := groups[name]
			slices.Sort(g.Stages)
			if g.HasIssues {
				out.ProjectsWithIssues++
			}
			out.ProjectSummaries = append(out.ProjectSummaries, *g)
		}
		return out, nil
	})
}

// Dashboard 周报总览
func (s *SummaryService) Dashboard(ctx context.Context) (*Dashboard, error) {
	return cached(ctx, s.cache, "dashboard", func() (*Dashboard, error) {
		reports, err := s.repos.Report.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("list reports: %w", err)
		}
		projects, err := s.repos.Project.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count projects: %w", err)
		}
		byStatus, err := s.repos.Project.CountBy(ctx, "status")
		if err != nil {
			return nil, fmt.Errorf("count by status: %w", err)
		}
		recent, err := s.repos.Report.Recent(ctx, recentActivityLimit)
		if err != nil {
			return nil, fmt.Errorf("recent reports: %w", err)
		}
		names, err := s.repos.Project.NameMap(ctx)
		if err != nil {
			return nil, fmt.Errorf("project names: %w", err)
		}

		current := entity.WeekOf(time.Now())
		d := &Dashboard{
			TotalReports:      int64(len(reports)),
			TotalProjects:     projects,
			ActiveProjects:    byStatus[entity.ProjectStatusActive],
			TotalWeeks:        summary.TotalWeeks(reports),
			LatestWeek:        summary.LatestWeek(reports),
			CurrentWeek:       current,
			ReportsWithIssues: summary.CurrentIssues(reports),
			RecentActivities:  make([]ReportActivity, 0, len(recent)),
		}
		for _, r := range reports {
			if r.Week == current {
				d.ReportsThisWeek++
			}
		}
		for _, r := range recent {
			d.RecentActivities = append(d.RecentActivities, ReportActivity{
				Project:   names[r.ProjectID],
				Week:      r.Week,
				Stage:     r.Stage,
				UpdatedAt: r.UpdatedAt,
			})
		}
		return d, nil
	})
}

// EnhancedDashboard 含细化任务统计的总览
func (s *SummaryService) EnhancedDashboard(ctx context.Context) (*EnhancedDashboard, error) {
	return cached(ctx, s.cache, "enhanced-dashboard", func() (*EnhancedDashboard, error) {
		reports, err := s.repos.Report.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("list reports: %w", err)
		}
		tasks, err := s.repos.Task.ListAll(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		projects, err := s.repos.Project.Count(ctx)
		if err != nil {
			return nil, fmt.Errorf("count projects: %w", err)
		}
		names, err := s.repos.Project.NameMap(ctx)
		if err != nil {
			return nil, fmt.Errorf("project names: %w", err)
		}

		progress := summary.Progress(tasks)
		d := &EnhancedDashboard{
			Overview: DashboardOverview{
				TotalProjects:      projects,
				TotalReports:       int64(len(reports)),
				TotalWeeks:         summary.TotalWeeks(reports),
				TotalDetailedTasks: len(tasks),
				ReportsWithIssues:  summary.CurrentIssues(reports),
				TasksWithRisk:      progress.TasksWithRisk,
				AvgTaskProgress:    progress.AvgProgress,
			},
			TaskStatistics: TaskDistribution{
				StatusDistribution:   summary.StatusBreakdown(tasks),
				ProgressDistribution: summary.ProgressDistribution(tasks),
				AssigneeDistribution: top(summary.ByAssignee(tasks), topAssigneeLimit),
				ProjectOverview:      top(summary.ByProject(tasks, names), topProjectLimit),
			},
		}
		// ListAll 已按 updated_at 倒序
		d.RecentActivities.TaskUpdates = taskActivities(tasks[:min(recentActivityLimit, len(tasks))], names)
		return d, nil
	})
}

// EnhancedProject 项目周报与任务的综合汇总
func (s *SummaryService) EnhancedProject(ctx context.Context, name string) (*EnhancedProjectSummary, error) {
	project, err := findProject(ctx, s.repos, 0, name)
	if err != nil {
		return nil, err
	}
	return cached(ctx, s.cache, "project-enhanced:"+project.Name, func() (*EnhancedProjectSummary, error) {
		reports, err := s.repos.Report.ListByProject(ctx, project.ID)
		if err != nil {
			return nil, fmt.Errorf("list reports: %w", err)
		}
		tasks, err := s.repos.Task.List(ctx, repository.TaskFilter{ProjectID: project.ID})
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		return &EnhancedProjectSummary{
			Project:              project.Name,
			WeeklySummary:        summary.ProjectStats(reports),
			TaskSummary:          summary.Progress(tasks),
			AssigneeBreakdown:    summary.ByAssignee(tasks),
			StageBreakdown:       summary.ByStage(tasks),
			RecentTaskActivities: taskActivities(tasks[:min(recentActivityLimit, len(tasks))], nil),
		}, nil
	})
}

// Timeline 项目时间线
func (s *SummaryService) Timeline(ctx context.Context, name string) (*ProjectTimeline, error) {
	project, err := findProject(ctx, s.repos, 0, name)
	if err != nil {
		return nil, err
	}
	return cached(ctx, s.cache, "timeline:"+project.Name, func() (*ProjectTimeline, error) {
		reports, err := s.repos.Report.ListByProject(ctx, project.ID)
		if err != nil {
			return nil, fmt.Errorf("list reports: %w", err)
		}
		tasks, err := s.repos.Task.ListByProject(ctx, project.ID)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		return &ProjectTimeline{
			Project:  project.Name,
			Timeline: summary.BuildTimeline(*project, reports, tasks),
		}, nil
	})
}

// Assignee 负责人的任务汇总。没有任务时 Found 为 false
func (s *SummaryService) Assignee(ctx context.Context, name string) (*AssigneeSummary, error) {
	if _, err := required("assignee", name, 100); err != nil {
		return nil, err
	}
	return cached(ctx, s.cache, "assignee:"+name, func() (*AssigneeSummary, error) {
		tasks, err := s.repos.Task.ListByAssignee(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		out := &AssigneeSummary{
			Assignee:            name,
			Found:               len(tasks) > 0,
			ProjectDistribution: []summary.Breakdown{},
			RecentTasks:         []TaskView{},
		}
		if !out.Found {
			return out, nil
		}
		names, err := s.repos.Project.NameMap(ctx)
		if err != nil {
			return nil, fmt.Errorf("project names: %w", err)
		}
		out.ProjectDistribution = summary.ByProject(tasks, names)
		out.Overview = AssigneeOverview{
			TaskSummary:   summary.Progress(tasks),
			TotalProjects: len(out.ProjectDistribution),
		}
		out.RecentTasks = taskViews(tasks[:min(recentTaskLimit, len(tasks))], names)
		return out, nil
	})
}

func taskActivities(tasks []entity.DetailedTask, names map[uint]string) []TaskActivity {
	out := make([]TaskActivity, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskActivity{
			Project:       names[t.ProjectID],
			TaskItem:      t.TaskItem,
			Assignee:      t.Assignee,
			CurrentStatus: t.CurrentStatus,
			ProgressRate:  t.ProgressRate,
			HasRisk:       t.HasRisk,
			UpdatedAt:     t.UpdatedAt,
		})
	}
	return out
}

func top(groups []summary.Breakdown, n int) []summary.Breakdown {
	return groups[:min(n, len(groups))]
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

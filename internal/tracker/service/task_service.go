package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
	"github.com/sungreong/TaskWeaver/internal/tracker/repository"
	"github.com/sungreong/TaskWeaver/internal/tracker/sse"
	"github.com/sungreong/TaskWeaver/internal/tracker/summary"
)

// UnclassifiedStage 阶段为空的任务归入此分组
const UnclassifiedStage = "미분류"

// TaskService 细化任务服务
type TaskService struct {
	repos  *repository.Repositories
	events *notifier
}

// NewTaskService 创建任务服务
func NewTaskService(repos *repository.Repositories, events *notifier) *TaskService {
	return &TaskService{repos: repos, events: events}
}

// CreateTaskRequest 创建任务请求。project_id 优先，未提供时按 project 名称查找
type CreateTaskRequest struct {
	ProjectID      uint    `json:"project_id"`
	Project        string  `json:"project"`
	Stage          string  `json:"stage"`
	TaskItem       string  `json:"task_item" binding:"required"`
	Assignee       string  `json:"assignee"`
	CurrentStatus  string  `json:"current_status"`
	HasRisk        bool    `json:"has_risk"`
	Description    string  `json:"description"`
	PlannedEndDate string  `json:"planned_end_date"`
	ActualEndDate  string  `json:"actual_end_date"`
	ProgressRate   float64 `json:"progress_rate"`
}

// UpdateTaskRequest 更新任务请求
type UpdateTaskRequest struct {
	ProjectID      *uint    `json:"project_id"`
	Project        *string  `json:"project"`
	Stage          *string  `json:"stage"`
	TaskItem       *string  `json:"task_item"`
	Assignee       *string  `json:"assignee"`
	CurrentStatus  *string  `json:"current_status"`
	HasRisk        *bool    `json:"has_risk"`
	Description    *string  `json:"description"`
	PlannedEndDate *string  `json:"planned_end_date"`
	ActualEndDate  *string  `json:"actual_end_date"`
	ProgressRate   *float64 `json:"progress_rate"`
}

// TaskView 任务及其项目名称
type TaskView struct {
	entity.DetailedTask
	Project string `json:"project"`
}

// StageGroup 同一阶段的任务
type StageGroup struct {
	Stage string     `json:"stage"`
	Tasks []TaskView `json:"tasks"`
}

// LinkResult 周报关联结果
type LinkResult struct {
	ReportID      uint   `json:"report_id"`
	LinkedTaskIDs []uint `json:"linked_task_ids"`
	PreviousCount int    `json:"previous_count"`
	CurrentCount  int    `json:"current_count"`
}

// LinkedReport 引用任务的周报
type LinkedReport struct {
	ID        uint   `json:"id"`
	ProjectID uint   `json:"project_id"`
	Project   string `json:"project"`
	Week      string `json:"week"`
	Stage     string `json:"stage"`
}

// TaskStatistics 项目任务统计
type TaskStatistics struct {
	Project         string         `json:"project"`
	TotalTasks      int            `json:"total_tasks"`
	StatusBreakdown map[string]int `json:"status_breakdown"`
	AverageProgress float64        `json:"average_progress"`
	RiskCount       int            `json:"risk_count"`
}

func validateTaskStatus(status string) (string, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return entity.TaskStatusNotStarted, nil
	}
	if !entity.ValidTaskStatus(status) {
		return "", invalid("current_status", "must be one of %s", strings.Join(entity.TaskStatuses, ", "))
	}
	return status, nil
}

func (req *CreateTaskRequest) build(project *entity.Project) (*entity.DetailedTask, error) {
	item, err := required("task_item", req.TaskItem, 255)
	if err != nil {
		return nil, err
	}
	status, err := validateTaskStatus(req.CurrentStatus)
	if err != nil {
		return nil, err
	}
	if err := checkProgress("progress_rate", req.ProgressRate); err != nil {
		return nil, err
	}
	planned, err := parseDate("planned_end_date", req.PlannedEndDate)
	if err != nil {
		return nil, err
	}
	actual, err := parseDate("actual_end_date", req.ActualEndDate)
	if err != nil {
		return nil, err
	}

	t := now()
	return &entity.DetailedTask{
		ProjectID:      project.ID,
		Stage:          strings.TrimSpace(req.Stage),
		TaskItem:       item,
		Assignee:       strings.TrimSpace(req.Assignee),
		CurrentStatus:  status,
		HasRisk:        req.HasRisk,
		Description:    req.Description,
		PlannedEndDate: planned,
		ActualEndDate:  actual,
		ProgressRate:   req.ProgressRate,
		CreatedAt:      t,
		UpdatedAt:      t,
	}, nil
}

// prepare resolves the project and validates req without writing anything.
func (s *TaskService) prepare(ctx context.Context, req *CreateTaskRequest) (*entity.Project, *entity.DetailedTask, error) {
	project, err := findProject(ctx, s.repos, req.ProjectID, req.Project)
	if err != nil {
		return nil, nil, err
	}
	task, err := req.build(project)
	if err != nil {
		return nil, nil, err
	}
	if err := s.checkDuplicate(ctx, project, task.TaskItem, 0); err != nil {
		return nil, nil, err
	}
	return project, task, nil
}

// Create 创建任务
func (s *TaskService) Create(ctx context.Context, req *CreateTaskRequest) (*TaskView, error) {
	project, task, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Task.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	s.events.changed(ctx, sse.EventTaskUpdate, sse.Change{ProjectID: project.ID, ID: task.ID, Action: sse.ActionCreated})
	return &TaskView{DetailedTask: *task, Project: project.Name}, nil
}

func (s *TaskService) checkDuplicate(ctx context.Context, project *entity.Project, item string, excludeID uint) error {
	dup, err := s.repos.Task.ExistsDuplicate(ctx, project.ID, item, excludeID)
	if err != nil {
		return fmt.Errorf("check task: %w", err)
	}
	if dup {
		return fmt.Errorf("%w: %s / %s", ErrDuplicateTask, project.Name, item)
	}
	return nil
}

func (s *TaskService) find(ctx context.Context, id uint) (*entity.DetailedTask, error) {
	task, err := s.repos.Task.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrTaskNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find task: %w", err)
	}
	return task, nil
}

// Get 获取任务
func (s *TaskService) Get(ctx context.Context, id uint) (*TaskView, error) {
	task, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	project, err := findProject(ctx, s.repos, task.ProjectID, "")
	if err != nil {
		return nil, err
	}
	return &TaskView{DetailedTask: *task, Project: project.Name}, nil
}

// List 获取任务列表
func (s *TaskService) List(ctx context.Context, filter repository.TaskFilter) ([]TaskView, error) {
	tasks, err := s.repos.Task.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	names, err := s.repos.Project.NameMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("project names: %w", err)
	}
	return taskViews(tasks, names), nil
}

func taskViews(tasks []entity.DetailedTask, names map[uint]string) []TaskView {
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, TaskView{DetailedTask: t, Project: names[t.ProjectID]})
	}
	return views
}

// ByProject 项目全部任务，最近更新在前
func (s *TaskService) ByProject(ctx context.Context, name string) ([]TaskView, error) {
	project, err := findProject(ctx, s.repos, 0, name)
	if err != nil {
		return nil, err
	}
	tasks, err := s.repos.Task.List(ctx, repository.TaskFilter{ProjectID: project.ID})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return taskViews(tasks, map[uint]string{project.ID: project.Name}), nil
}

// ByProjectStage groups a project's tasks by stage. A non-empty keyword keeps tasks whose stage
// or task_item contains it, ignoring case. Blank stages are grouped under UnclassifiedStage, last.
func (s *TaskService) ByProjectStage(ctx context.Context, name, keyword string) ([]StageGroup, error) {
	views, err := s.ByProject(ctx, name)
	if err != nil {
		return nil, err
	}
	keyword = strings.ToLower(strings.TrimSpace(keyword))

	groups := make(map[string][]TaskView)
	for _, v := range views {
		if keyword != "" &&
			!strings.Contains(strings.ToLower(v.Stage), keyword) &&
			!strings.Contains(strings.ToLower(v.TaskItem), keyword) {
			continue
		}
		stage := strings.TrimSpace(v.Stage)
		if stage == "" {
			stage = UnclassifiedStage
		}
		groups[stage] = append(groups[stage], v)
	}

	out := make([]StageGroup, 0, len(groups))
	for stage, tasks := range groups {
		out = append(out, StageGroup{Stage: stage, Tasks: tasks})
	}
	slices.SortFunc(out, func(a, b StageGroup) int {
		if (a.Stage == UnclassifiedStage) != (b.Stage == UnclassifiedStage) {
			if a.Stage == UnclassifiedStage {
				return 1
			}
			return -1
		}
		return strings.Compare(a.Stage, b.Stage)
	})
	return out, nil
}

// Update 部分更新任务
func (s *TaskService) Update(ctx context.Context, id uint, req *UpdateTaskRequest) (*TaskView, error) {
	task, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	projectID := task.ProjectID
	projectName := ""
	if req.ProjectID != nil {
		projectID = *req.ProjectID
	} else if req.Project != nil {
		projectID, projectName = 0, *req.Project
	}
	project, err := findProject(ctx, s.repos, projectID, projectName)
	if err != nil {
		return nil, err
	}

	item := task.TaskItem
	if req.TaskItem != nil {
		if item, err = required("task_item", *req.TaskItem, 255); err != nil {
			return nil, err
		}
	}
	if project.ID != task.ProjectID || item != task.TaskItem {
		if err := s.checkDuplicate(ctx, project, item, task.ID); err != nil {
			return nil, err
		}
	}
	task.ProjectID, task.TaskItem = project.ID, item

	if req.Stage != nil {
		task.Stage = strings.TrimSpace(*req.Stage)
	}
	if req.Assignee != nil {
		task.Assignee = strings.TrimSpace(*req.Assignee)
	}
	if req.CurrentStatus != nil {
		if task.CurrentStatus, err = validateTaskStatus(*req.CurrentStatus); err != nil {
			return nil, err
		}
	}
	if req.HasRisk != nil {
		task.HasRisk = *req.HasRisk
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.PlannedEndDate != nil {
		if task.PlannedEndDate, err = parseDate("planned_end_date", *req.PlannedEndDate); err != nil {
			return nil, err
		}
	}
	if req.ActualEndDate != nil {
		if task.ActualEndDate, err = parseDate("actual_end_date", *req.ActualEndDate); err != nil {
			return nil, err
		}
	}
	if req.ProgressRate != nil {
		if err := checkProgress("progress_rate", *req.ProgressRate); err != nil {
			return nil, err
		}
		task.ProgressRate = *req.ProgressRate
	}
	task.UpdatedAt = now()

	if err := s.repos.Task.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	s.events.changed(ctx, sse.EventTaskUpdate, sse.Change{ProjectID: task.ProjectID, ID: task.ID, Action: sse.ActionUpdated})
	return &TaskView{DetailedTask: *task, Project: project.Name}, nil
}

// Delete 删除任务
func (s *TaskService) Delete(ctx context.Context, id uint) error {
	task, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repos.Task.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: id %d", ErrTaskNotFound, id)
		}
		return fmt.Errorf("delete task: %w", err)
	}
	s.events.changed(ctx, sse.EventTaskUpdate, sse.Change{ProjectID: task.ProjectID, ID: id, Action: sse.ActionDeleted})
	return nil
}

// LinkToReport 用 taskIDs 替换周报关联的任务。任一 id 不存在时不做任何修改
func (s *TaskService) LinkToReport(ctx context.Context, reportID uint, taskIDs []uint) (*LinkResult, error) {
	report, err := s.repos.Report.FindByID(ctx, reportID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrReportNotFound, reportID)
	}
	if err != nil {
		return nil, fmt.Errorf("find report: %w", err)
	}

	found, err := s.repos.Task.FindByIDs(ctx, taskIDs)
	if err != nil {
		return nil, fmt.Errorf("find tasks: %w", err)
	}
	present := make(map[uint]bool, len(found))
	for _, t := range found {
		present[t.ID] = true
	}
	var missing []string
	for _, id := range taskIDs {
		if !present[id] {
			missing = append(missing, fmt.Sprint(id))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: ids %s", ErrTaskNotFound, strings.Join(missing, ", "))
	}

	previous, err := s.repos.Report.LinkedTasks(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("linked tasks: %w", err)
	}
	if err := s.repos.Report.LinkTasks(ctx, reportID, taskIDs); err != nil {
		return nil, fmt.Errorf("link tasks: %w", err)
	}
	s.events.changed(ctx, sse.EventReportUpdate, sse.Change{ProjectID: report.ProjectID, ID: reportID, Action: sse.ActionLinked})

	if taskIDs == nil {
		taskIDs = []uint{}
	}
	return &LinkResult{
		ReportID:      reportID,
		LinkedTaskIDs: taskIDs,
		PreviousCount: len(previous),
		CurrentCount:  len(found),
	}, nil
}

// LinkedTasks 周报关联的任务
func (s *TaskService) LinkedTasks(ctx context.Context, reportID uint) ([]TaskView, error) {
	if _, err := s.repos.Report.FindByID(ctx, reportID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrReportNotFound, reportID)
		}
		return nil, fmt.Errorf("find report: %w", err)
	}
	tasks, err := s.repos.Report.LinkedTasks(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("linked tasks: %w", err)
	}
	names, err := s.repos.Project.NameMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("project names: %w", err)
	}
	return taskViews(tasks, names), nil
}

// ReportsForTask 引用该任务的周报
func (s *TaskService) ReportsForTask(ctx context.Context, taskID uint) ([]LinkedReport, error) {
	if _, err := s.find(ctx, taskID); err != nil {
		return nil, err
	}
	reports, err := s.repos.Report.ReportsForTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("reports for task: %w", err)
	}
	names, err := s.repos.Project.NameMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("project names: %w", err)
	}
	out := make([]LinkedReport, 0, len(reports))
	for _, r := range reports {
		out = append(out, LinkedReport{
			ID:        r.ID,
			ProjectID: r.ProjectID,
			Project:   names[r.ProjectID],
			Week:      r.Week,
			Stage:     r.Stage,
		})
	}
	return out, nil
}

// Statistics 项目任务统计，平均进度保留两位小数
func (s *TaskService) Statistics(ctx context.Context, name string) (*TaskStatistics, error) {
	project, err := findProject(ctx, s.repos, 0, name)
	if err != nil {
		return nil, err
	}
	tasks, err := s.repos.Task.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return &TaskStatistics{
		Project:         project.Name,
		TotalTasks:      len(tasks),
		StatusBreakdown: summary.StatusBreakdown(tasks),
		AverageProgress: summary.AverageProgress(tasks),
		RiskCount:       summary.RiskCount(tasks),
	}, nil
}

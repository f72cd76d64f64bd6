package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
	"github.com/sungreong/TaskWeaver/internal/tracker/repository"
	"github.com/sungreong/TaskWeaver/internal/tracker/sse"
)

// ReportService 周报服务
type ReportService struct {
	repos  *repository.Repositories
	events *notifier
}

// NewReportService 创建周报服务
func NewReportService(repos *repository.Repositories, events *notifier) *ReportService {
	return &ReportService{repos: repos, events: events}
}

// CreateReportRequest 创建周报请求。project_id 优先，未提供时按 project 名称查找
type CreateReportRequest struct {
	ProjectID    uint    `json:"project_id"`
	Project      string  `json:"project"`
	Week         string  `json:"week" binding:"required"`
	Stage        string  `json:"stage" binding:"required"`
	ThisWeekWork string  `json:"this_week_work" binding:"required"`
	NextWeekPlan *string `json:"next_week_plan"`
	IssuesRisks  *string `json:"issues_risks"`
}

// UpdateReportRequest 更新周报请求
type UpdateReportRequest struct {
	ProjectID    *uint   `json:"project_id"`
	Project      *string `json:"project"`
	Week         *string `json:"week"`
	Stage        *string `json:"stage"`
	ThisWeekWork *string `json:"this_week_work"`
	NextWeekPlan *string `json:"next_week_plan"`
	IssuesRisks  *string `json:"issues_risks"`
}

// ReportView 周报及其项目名称
type ReportView struct {
	entity.WeeklyReport
	Project string `json:"project"`
}

func validateWeek(week string) (string, error) {
	week = strings.TrimSpace(week)
	if !entity.ValidWeek(week) {
		return "", invalid("week", "must match YYYY-WNN with NN between 01 and 53, got %q", week)
	}
	return week, nil
}

// Create 创建周报
func (s *ReportService) Create(ctx context.Context, req *CreateReportRequest) (*ReportView, error) {
	week, err := validateWeek(req.Week)
	if err != nil {
		return nil, err
	}
	stage, err := required("stage", req.Stage, 100)
	if err != nil {
		return nil, err
	}
	work, err := required("this_week_work", req.ThisWeekWork, 0)
	if err != nil {
		return nil, err
	}
	project, err := findProject(ctx, s.repos, req.ProjectID, req.Project)
	if err != nil {
		return nil, err
	}
	if err := s.checkDuplicate(ctx, project, week, stage, 0); err != nil {
		return nil, err
	}

	t := now()
	report := &entity.WeeklyReport{
		ProjectID:    project.ID,
		Week:         week,
		Stage:        stage,
		ThisWeekWork: work,
		NextWeekPlan: req.NextWeekPlan,
		IssuesRisks:  req.IssuesRisks,
		CreatedAt:    t,
		UpdatedAt:    t,
	}
	if err := s.repos.Report.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	s.events.changed(ctx, sse.EventReportUpdate, sse.Change{ProjectID: project.ID, ID: report.ID, Action: sse.ActionCreated})
	return &ReportView{WeeklyReport: *report, Project: project.Name}, nil
}

func (s *ReportService) checkDuplicate(ctx context.Context, project *entity.Project, week, stage string, excludeID uint) error {
	dup, err := s.repos.Report.ExistsDuplicate(ctx, project.ID, week, stage, excludeID)
	if err != nil {
		return fmt.Errorf("check report: %w", err)
	}
	if dup {
		return fmt.Errorf("%w: %s %s %s", ErrDuplicateReport, project.Name, week, stage)
	}
	return nil
}

func (s *ReportService) find(ctx context.Context, id uint) (*entity.WeeklyReport, error) {
	report, err := s.repos.Report.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrReportNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find report: %w", err)
	}
	return report, nil
}

// Get 获取周报
func (s *ReportService) Get(ctx context.Context, id uint) (*ReportView, error) {
	report, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	project, err := findProject(ctx, s.repos, report.ProjectID, "")
	if err != nil {
		return nil, err
	}
	return &ReportView{WeeklyReport: *report, Project: project.Name}, nil
}

// List 获取周报列表
func (s *ReportService) List(ctx context.Context, filter repository.ReportFilter) ([]ReportView, error) {
	reports, err := s.repos.Report.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	names, err := s.repos.Project.NameMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("project names: %w", err)
	}
	return reportViews(reports, names), nil
}

func reportViews(reports []entity.WeeklyReport, names map[uint]string) []ReportView {
	views := make([]ReportView, 0, len(reports))
	for _, r := range reports {
		views = append(views, ReportView{WeeklyReport: r, Project: names[r.ProjectID]})
	}
	return views
}

// Update 部分更新周报。修改项目、周次或阶段时重新检查唯一性
func (s *ReportService) Update(ctx context.Context, id uint, req *UpdateReportRequest) (*ReportView, error) {
	report, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	projectID := report.ProjectID
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

	week, stage := report.Week, report.Stage
	if req.Week != nil {
		if week, err = validateWeek(*req.Week); err != nil {
			return nil, err
		}
	}
	if req.Stage != nil {
		if stage, err = required("stage", *req.Stage, 100); err != nil {
			return nil, err
		}
	}
	if project.ID != report.ProjectID || week != report.Week || stage != report.Stage {
		if err := s.checkDuplicate(ctx, project, week, stage, report.ID); err != nil {
			return nil, err
		}
	}
	report.ProjectID, report.Week, report.Stage = project.ID, week, stage

	if req.ThisWeekWork != nil {
		if report.ThisWeekWork, err = required("this_week_work", *req.ThisWeekWork, 0); err != nil {
			return nil, err
		}
	}
	if req.NextWeekPlan != nil {
		report.NextWeekPlan = req.NextWeekPlan
	}
	if req.IssuesRisks != nil {
		report.IssuesRisks = req.IssuesRisks
	}
	report.UpdatedAt = now()

	if err := s.repos.Report.Update(ctx, report); err != nil {
		return nil, fmt.Errorf("update report: %w", err)
	}
	s.events.changed(ctx, sse.EventReportUpdate, sse.Change{ProjectID: report.ProjectID, ID: report.ID, Action: sse.ActionUpdated})
	return &ReportView{WeeklyReport: *report, Project: project.Name}, nil
}

// Delete 删除周报
func (s *ReportService) Delete(ctx context.Context, id uint) error {
	report, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repos.Report.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: id %d", ErrReportNotFound, id)
		}
		return fmt.Errorf("delete report: %w", err)
	}
	s.events.changed(ctx, sse.EventReportUpdate, sse.Change{ProjectID: report.ProjectID, ID: id, Action: sse.ActionDeleted})
	return nil
}

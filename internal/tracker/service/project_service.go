package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
	"github.com/sungreong/TaskWeaver/internal/tracker/repository"
	"github.com/sungreong/TaskWeaver/internal/tracker/sse"
	"github.com/sungreong/TaskWeaver/internal/tracker/summary"
)

// ProjectService 项目服务
type ProjectService struct {
	repos  *repository.Repositories
	events *notifier
}

// NewProjectService 创建项目服务
func NewProjectService(repos *repository.Repositories, events *notifier) *ProjectService {
	return &ProjectService{repos: repos, events: events}
}

// CreateProjectRequest 创建项目请求
type CreateProjectRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Manager     string   `json:"manager"`
	TeamMembers string   `json:"team_members"`
	Budget      *float64 `json:"budget"`
	Notes       string   `json:"notes"`
}

// UpdateProjectRequest 更新项目请求，nil 字段保持不变
type UpdateProjectRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	StartDate   *string  `json:"start_date"`
	EndDate     *string  `json:"end_date"`
	Status      *string  `json:"status"`
	Priority    *string  `json:"priority"`
	Manager     *string  `json:"manager"`
	TeamMembers *string  `json:"team_members"`
	Budget      *float64 `json:"budget"`
	Notes       *string  `json:"notes"`
}

// ProjectDetail 项目及其周报统计
type ProjectDetail struct {
	entity.Project
	Stats summary.Stats `json:"stats"`
}

// ProjectOverview 项目总体统计
type ProjectOverview struct {
	TotalProjects        int64            `json:"total_projects"`
	ActiveProjects       int64            `json:"active_projects"`
	CompletedProjects    int64            `json:"completed_projects"`
	StatusDistribution   map[string]int64 `json:"status_distribution"`
	PriorityDistribution map[string]int64 `json:"priority_distribution"`
	RecentUpdates        []ProjectUpdate  `json:"recent_updates"`
}

// ProjectUpdate 最近更新的项目
type ProjectUpdate struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	UpdatedAt string `json:"updated_at"`
}

// findProject resolves a project by id, or by exact name when id is zero.
func findProject(ctx context.Context, repos *repository.Repositories, id uint, name string) (*entity.Project, error) {
	var (
		p   *entity.Project
		err error
	)
	if id != 0 {
		p, err = repos.Project.FindByID(ctx, id)
	} else {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, invalid("project_id", "is required")
		}
		p, err = repos.Project.FindByName(ctx, name)
	}
	if errors.Is(err, repository.ErrNotFound) {
		if id != 0 {
			return nil, fmt.Errorf("%w: id %d", ErrProjectNotFound, id)
		}
		return nil, fmt.Errorf("%w: %q", ErrProjectNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("find project: %w", err)
	}
	return p, nil
}

func validateStatus(status string) (string, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return entity.ProjectStatusPlanning, nil
	}
	if !entity.ValidProjectStatus(status) {
		return "", invalid("status", "must be one of %s", strings.Join(entity.ProjectStatuses, ", "))
	}
	return status, nil
}

func validatePriority(priority string) (string, error) {
	priority = strings.ToLower(strings.TrimSpace(priority))
	if priority == "" {
		return entity.PriorityMedium, nil
	}
	if !entity.ValidPriority(priority) {
		return "", invalid("priority", "must be one of %s", strings.Join(entity.ProjectPriorities, ", "))
	}
	return priority, nil
}

// build validates req into a new, unsaved project.
func (req *CreateProjectRequest) build() (*entity.Project, error) {
	name, err := required("name", req.Name, 255)
	if err != nil {
		return nil, err
	}
	status, err := validateStatus(req.Status)
	if err != nil {
		return nil, err
	}
	priority, err := validatePriority(req.Priority)
	if err != nil {
		return nil, err
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return nil, err
	}
	if err := checkRange("start_date", start, end); err != nil {
		return nil, err
	}
	if req.Budget != nil && *req.Budget < 0 {
		return nil, invalid("budget", "must not be negative")
	}

	t := now()
	return &entity.Project{
		Name:        name,
		Description: req.Description,
		StartDate:   start,
		EndDate:     end,
		Status:      status,
		Priority:    priority,
		Manager:     strings.TrimSpace(req.Manager),
		TeamMembers: req.TeamMembers,
		Budget:      req.Budget,
		Notes:       req.Notes,
		CreatedAt:   t,
		UpdatedAt:   t,
	}, nil
}

// prepare validates req against the stored projects without writing anything.
func (s *ProjectService) prepare(ctx context.Context, req *CreateProjectRequest) (*entity.Project, error) {
	project, err := req.build()
	if err != nil {
		return nil, err
	}
	exists, err := s.repos.Project.ExistsByName(ctx, project.Name, 0)
	if err != nil {
		return nil, fmt.Errorf("check project name: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateName, project.Name)
	}
	return project, nil
}

// Create 创建项目
func (s *ProjectService) Create(ctx context.Context, req *CreateProjectRequest) (*entity.Project, error) {
	project, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := s.repos.Project.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	s.events.changed(ctx, sse.EventProjectUpdate, sse.Change{ProjectID: project.ID, ID: project.ID, Action: sse.ActionCreated})
	return project, nil
}

// List 获取项目列表
func (s *ProjectService) List(ctx context.Context, filter repository.ProjectFilter) ([]entity.Project, error) {
	projects, err := s.repos.Project.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// Names 全部项目名称
func (s *ProjectService) Names(ctx context.Context) ([]string, error) {
	names, err := s.repos.Project.Names(ctx)
	if err != nil {
		return nil, fmt.Errorf("list project names: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Get 获取项目详情和周报统计
func (s *ProjectService) Get(ctx context.Context, id uint) (*ProjectDetail, error) {
	project, err := findProject(ctx, s.repos, id, "")
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, project)
}

// GetByName 按名称获取项目详情
func (s *ProjectService) GetByName(ctx context.Context, name string) (*ProjectDetail, error) {
	project, err := findProject(ctx, s.repos, 0, name)
	if err != nil {
		return nil, err
	}
	return s.detail(ctx, project)
}

func (s *ProjectService) detail(ctx context.Context, project *entity.Project) (*ProjectDetail, error) {
	reports, err := s.repos.Report.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return &ProjectDetail{Project: *project, Stats: summary.ProjectStats(reports)}, nil
}

// Update 部分更新项目
func (s *ProjectService) Update(ctx context.Context, id uint, req *UpdateProjectRequest) (*entity.Project, error) {
	project, err := findProject(ctx, s.repos, id, "")
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name, err := required("name", *req.Name, 255)
		if err != nil {
			return nil, err
		}
		if name != project.Name {
			exists, err := s.repos.Project.ExistsByName(ctx, name, project.ID)
			if err != nil {
				return nil, fmt.Errorf("check project name: %w", err)
			}
			if exists {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateName, name)
			}
		}
		project.Name = name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.StartDate != nil {
		if project.StartDate, err = parseDate("start_date", *req.StartDate); err != nil {
			return nil, err
		}
	}
	if req.EndDate != nil {
		if project.EndDate, err = parseDate("end_date", *req.EndDate); err != nil {
			return nil, err
		}
	}
	if err := checkRange("start_date", project.StartDate, project.EndDate); err != nil {
		return nil, err
	}
	if req.Status != nil {
		if project.Status, err = validateStatus(*req.Status); err != nil {
			return nil, err
		}
	}
	if req.Priority != nil {
		if project.Priority, err = validatePriority(*req.Priority); err != nil {
			return nil, err
		}
	}
	if req.Manager != nil {
		project.Manager = strings.TrimSpace(*req.Manager)
	}
	if req.TeamMembers != nil {
		project.TeamMembers = *req.TeamMembers
	}
	if req.Budget != nil {
		if *req.Budget < 0 {
			return nil, invalid("budget", "must not be negative")
		}
		project.Budget = req.Budget
	}
	if req.Notes != nil {
		project.Notes = *req.Notes
	}
	project.UpdatedAt = now()

	if err := s.repos.Project.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	s.events.changed(ctx, sse.EventProjectUpdate, sse.Change{ProjectID: project.ID, ID: project.ID, Action: sse.ActionUpdated})
	return project, nil
}

// Delete 删除项目及其全部周报、任务和 WBS
func (s *ProjectService) Delete(ctx context.Context, id uint) error {
	err := s.repos.Project.DeleteCascade(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: id %d", ErrProjectNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	s.events.changed(ctx, sse.EventProjectUpdate, sse.Change{ProjectID: id, ID: id, Action: sse.ActionDeleted})
	return nil
}

// Overview 项目总体统计
func (s *ProjectService) Overview(ctx context.Context) (*ProjectOverview, error) {
	total, err := s.repos.Project.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count projects: %w", err)
	}
	byStatus, err := s.repos.Project.CountBy(ctx, "status")
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	byPriority, err := s.repos.Project.CountBy(ctx, "priority")
	if err != nil {
		return nil, fmt.Errorf("count by priority: %w", err)
	}
	recent, err := s.repos.Project.List(ctx, repository.ProjectFilter{Page: repository.Page{Limit: 5}})
	if err != nil {
		return nil, fmt.Errorf("recent projects: %w", err)
	}

	o := &ProjectOverview{
		TotalProjects:        total,
		ActiveProjects:       byStatus[entity.ProjectStatusActive],
		CompletedProjects:    byStatus[entity.ProjectStatusCompleted],
		StatusDistribution:   make(map[string]int64, len(entity.ProjectStatuses)),
		PriorityDistribution: make(map[string]int64, len(entity.ProjectPriorities)),
		RecentUpdates:        make([]ProjectUpdate, 0, len(recent)),
	}
	for _, st := range entity.ProjectStatuses {
		o.StatusDistribution[st] = byStatus[st]
	}
	for _, p := range entity.ProjectPriorities {
		o.PriorityDistribution[p] = byPriority[p]
	}
	for _, p := range recent {
		o.RecentUpdates = append(o.RecentUpdates, ProjectUpdate{
			Name:      p.Name,
			Status:    p.Status,
			UpdatedAt: p.UpdatedAt.Format("2006-01-02 15:04"),
		})
	}
	return o, nil
}

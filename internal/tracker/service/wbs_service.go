package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
	"github.com/sungreong/TaskWeaver/internal/tracker/repository"
	"github.com/sungreong/TaskWeaver/internal/tracker/sse"
	"github.com/sungreong/TaskWeaver/internal/tracker/wbs"
)

// WBSService WBS 服务
type WBSService struct {
	repos  *repository.Repositories
	events *notifier
}

// NewWBSService 创建 WBS 服务
func NewWBSService(repos *repository.Repositories, events *notifier) *WBSService {
	return &WBSService{repos: repos, events: events}
}

// CreateWBSRequest 创建 WBS 节点请求
type CreateWBSRequest struct {
	ProjectID    uint   `json:"project_id" binding:"required"`
	ParentID     *uint  `json:"parent_id"`
	Text         string `json:"text" binding:"required"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Progress     int    `json:"progress"`
	Deliverables string `json:"deliverables"`
	Remarks      string `json:"remarks"`
	SortOrder    int    `json:"sort_order"`
}

// UpdateWBSRequest 更新 WBS 节点请求。parent_id 为 0 表示移到根级
type UpdateWBSRequest struct {
	ParentID     *uint   `json:"parent_id"`
	Text         *string `json:"text"`
	StartDate    *string `json:"start_date"`
	EndDate      *string `json:"end_date"`
	Progress     *int    `json:"progress"`
	Deliverables *string `json:"deliverables"`
	Remarks      *string `json:"remarks"`
	SortOrder    *int    `json:"sort_order"`
}

// DeleteWBSResult 删除结果
type DeleteWBSResult struct {
	DeletedIDs []uint `json:"deleted_ids"`
}

// Tree 项目的 WBS 森林
func (s *WBSService) Tree(ctx context.Context, projectID uint) ([]*wbs.Node, error) {
	if _, err := findProject(ctx, s.repos, projectID, ""); err != nil {
		return nil, err
	}
	rows, err := s.repos.WBS.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list wbs: %w", err)
	}
	return wbs.Build(rows), nil
}

// Create 创建 WBS 节点。父节点必须存在且属于同一项目
func (s *WBSService) Create(ctx context.Context, req *CreateWBSRequest) (*entity.WBSTask, error) {
	text, err := required("text", req.Text, 255)
	if err != nil {
		return nil, err
	}
	if req.Progress < 0 || req.Progress > 100 {
		return nil, invalid("progress", "must be between 0 and 100, got %d", req.Progress)
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
	project, err := findProject(ctx, s.repos, req.ProjectID, "")
	if err != nil {
		return nil, err
	}

	parentID := req.ParentID
	if parentID != nil && *parentID == 0 {
		parentID = nil
	}
	if parentID != nil {
		if err := s.checkParent(ctx, project.ID, *parentID); err != nil {
			return nil, err
		}
	}

	t := now()
	task := &entity.WBSTask{
		ProjectID:    project.ID,
		ParentID:     parentID,
		Text:         text,
		StartDate:    start,
		EndDate:      end,
		Progress:     req.Progress,
		Deliverables: req.Deliverables,
		Remarks:      req.Remarks,
		SortOrder:    req.SortOrder,
		CreatedAt:    t,
		UpdatedAt:    t,
	}
	if err := s.repos.WBS.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create wbs: %w", err)
	}
	s.events.changed(ctx, sse.EventWBSUpdate, sse.Change{ProjectID: project.ID, ID: task.ID, Action: sse.ActionCreated})
	return task, nil
}

// checkParent 父节点存在 (否则 ErrParentNotFound) 且属于 projectID (否则 ErrInvalidParent)
func (s *WBSService) checkParent(ctx context.Context, projectID, parentID uint) error {
	parent, err := s.repos.WBS.FindByID(ctx, parentID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: id %d", ErrParentNotFound, parentID)
	}
	if err != nil {
		return fmt.Errorf("find parent: %w", err)
	}
	if parent.ProjectID != projectID {
		return fmt.Errorf("%w: parent %d belongs to project %d", ErrInvalidParent, parentID, parent.ProjectID)
	}
	return nil
}

func (s *WBSService) find(ctx context.Context, id uint) (*entity.WBSTask, error) {
	task, err := s.repos.WBS.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrWBSNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find wbs: %w", err)
	}
	return task, nil
}

// Update 部分更新 WBS 节点
func (s *WBSService) Update(ctx context.Context, id uint, req *UpdateWBSRequest) (*entity.WBSTask, error) {
	task, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.ParentID != nil {
		if *req.ParentID == 0 {
			task.ParentID = nil
		} else {
			if err := s.reparent(ctx, task, *req.ParentID); err != nil {
				return nil, err
			}
			parentID := *req.ParentID
			task.ParentID = &parentID
		}
	}
	if req.Text != nil {
		if task.Text, err = required("text", *req.Text, 255); err != nil {
			return nil, err
		}
	}
	if req.StartDate != nil {
		if task.StartDate, err = parseDate("start_date", *req.StartDate); err != nil {
			return nil, err
		}
	}
	if req.EndDate != nil {
		if task.EndDate, err = parseDate("end_date", *req.EndDate); err != nil {
			return nil, err
		}
	}
	if err := checkRange("start_date", task.StartDate, task.EndDate); err != nil {
		return nil, err
	}
	if req.Progress != nil {
		if *req.Progress < 0 || *req.Progress > 100 {
			return nil, invalid("progress", "must be between 0 and 100, got %d", *req.Progress)
		}
		task.Progress = *req.Progress
	}
	if req.Deliverables != nil {
		task.Deliverables = *req.Deliverables
	}
	if req.Remarks != nil {
		task.Remarks = *req.Remarks
	}
	if req.SortOrder != nil {
		task.SortOrder = *req.SortOrder
	}
	task.UpdatedAt = now()

	if err := s.repos.WBS.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("update wbs: %w", err)
	}
	s.events.changed(ctx, sse.EventWBSUpdate, sse.Change{ProjectID: task.ProjectID, ID: task.ID, Action: sse.ActionUpdated})
	return task, nil
}

// reparent rejects a parent that is the task itself, lives in another project or sits below the task.
func (s *WBSService) reparent(ctx context.Context, task *entity.WBSTask, parentID uint) error {
	if parentID == task.ID {
		return fmt.Errorf("%w: task %d cannot be its own parent", ErrInvalidParent, task.ID)
	}
	if err := s.checkParent(ctx, task.ProjectID, parentID); err != nil {
		return err
	}
	rows, err := s.repos.WBS.ListByProject(ctx, task.ProjectID)
	if err != nil {
		return fmt.Errorf("list wbs: %w", err)
	}
	if wbs.IsDescendant(rows, task.ID, parentID) {
		return fmt.Errorf("%w: %d is a descendant of %d", ErrInvalidParent, parentID, task.ID)
	}
	return nil
}

// Delete 删除节点及其全部后代
func (s *WBSService) Delete(ctx context.Context, id uint) (*DeleteWBSResult, error) {
	task, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	ids, err := s.repos.WBS.DeleteSubtree(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: id %d", ErrWBSNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("delete wbs: %w", err)
	}
	s.events.changed(ctx, sse.EventWBSUpdate, sse.Change{ProjectID: task.ProjectID, ID: id, Action: sse.ActionDeleted})
	return &DeleteWBSResult{DeletedIDs: ids}, nil
}

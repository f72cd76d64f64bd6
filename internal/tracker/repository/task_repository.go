package repository

import (
	"context"

	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
	"gorm.io/gorm"
)

// TaskRepository 细化任务仓库
type TaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository 创建任务仓库
func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

// TaskFilter 任务过滤条件
type TaskFilter struct {
	ProjectID   uint
	Project     string // 项目名称模糊匹配
	Stage       string
	Assignee    string
	Status      string
	HasRisk     *bool
	PlannedFrom *entity.Date
	PlannedTo   *entity.Date
	Page
}

// FindByID 根据ID查找任务
func (r *TaskRepository) FindByID(ctx context.Context, id uint) (*entity.DetailedTask, error) {
	var task entity.DetailedTask
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, notFound(err)
	}
	return &task, nil
}

// FindByIDs 批量查找
func (r *TaskRepository) FindByIDs(ctx context.Context, ids []uint) ([]entity.DetailedTask, error) {
	var tasks []entity.DetailedTask
	if len(ids) == 0 {
		return tasks, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&tasks).Error
	return tasks, err
}

// ExistsDuplicate (project, task_item) 是否已存在
func (r *TaskRepository) ExistsDuplicate(ctx context.Context, projectID uint, taskItem string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&entity.DetailedTask{}).
		Where("project_id = ? AND task_item = ?", projectID, taskItem)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// Create 创建任务
func (r *TaskRepository) Create(ctx context.Context, task *entity.DetailedTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// Update 更新任务
func (r *TaskRepository) Update(ctx context.Context, task *entity.DetailedTask) error {
	return r.db.WithContext(ctx).Save(task).Error
}

// Delete 删除任务及其周报关联
func (r *TaskRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("detailed_task_id = ?", id).Delete(&entity.WeeklyReportTask{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&entity.DetailedTask{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// List 获取任务列表
func (r *TaskRepository) List(ctx context.Context, f TaskFilter) ([]entity.DetailedTask, error) {
	var tasks []entity.DetailedTask
	q := r.db.WithContext(ctx).Model(&entity.DetailedTask{})
	if f.ProjectID != 0 {
		q = q.Where("detailed_tasks.project_id = ?", f.ProjectID)
	}
	if f.Project != "" {
		q = q.Joins("JOIN projects ON projects.id = detailed_tasks.project_id").
			Where("LOWER(projects.name) LIKE ?", containsLower(f.Project))
	}
	if f.Stage != "" {
		q = q.Where("LOWER(detailed_tasks.stage) LIKE ?", containsLower(f.Stage))
	}
	if f.Assignee != "" {
		q = q.Where("LOWER(detailed_tasks.assignee) LIKE ?", containsLower(f.Assignee))
	}
	if f.Status != "" {
		q = q.Where("detailed_tasks.current_status = ?", f.Status)
	}
	if f.HasRisk != nil {
		q = q.Where("detailed_tasks.has_risk = ?", *f.HasRisk)
	}
	if f.PlannedFrom != nil {
		q = q.Where("detailed_tasks.planned_end_date >= ?", *f.PlannedFrom)
	}
	if f.PlannedTo != nil {
		q = q.Where("detailed_tasks.planned_end_date <= ?", *f.PlannedTo)
	}
	err := f.Page.apply(q).
		Select("detailed_tasks.*").
		Order("detailed_tasks.updated_at DESC, detailed_tasks.id DESC").
		Find(&tasks).Error
	return tasks, err
}

// ListByProject 项目全部任务，按阶段和创建顺序
func (r *TaskRepository) ListByProject(ctx context.Context, projectID uint) ([]entity.DetailedTask, error) {
	var tasks []entity.DetailedTask
	err := r.db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("stage ASC, id ASC").
		Find(&tasks).Error
	return tasks, err
}

// ListByAssignee 某负责人的全部任务，最近更新在前
func (r *TaskRepository) ListByAssignee(ctx context.Context, assignee string) ([]entity.DetailedTask, error) {
	var tasks []entity.DetailedTask
	err := r.db.WithContext(ctx).
		Where("assignee = ?", assignee).
		Order("updated_at DESC, id DESC").
		Find(&tasks).Error
	return tasks, err
}

// ListAll 全部任务
func (r *TaskRepository) ListAll(ctx context.Context) ([]entity.DetailedTask, error) {
	return r.List(ctx, TaskFilter{})
}

// Recent 最近更新的任务
func (r *TaskRepository) Recent(ctx context.Context, limit int) ([]entity.DetailedTask, error) {
	return r.List(ctx, TaskFilter{Page: Page{Limit: limit}})
}

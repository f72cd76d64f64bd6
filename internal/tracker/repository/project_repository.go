package repository

import (
	"context"

	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
	"gorm.io/gorm"
)

// ProjectRepository 项目仓库
type ProjectRepository struct {
	db *gorm.DB
}

// NewProjectRepository 创建项目仓库
func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// ProjectFilter 项目列表过滤条件
type ProjectFilter struct {
	Status   string
	Priority string
	Manager  string
	Page
}

// FindByID 根据ID查找项目
func (r *ProjectRepository) FindByID(ctx context.Context, id uint) (*entity.Project, error) {
	var project entity.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&project).Error; err != nil {
		return nil, notFound(err)
	}
	return &project, nil
}

// FindByName 根据名称查找项目
func (r *ProjectRepository) FindByName(ctx context.Context, name string) (*entity.Project, error) {
	var project entity.Project
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&project).Error; err != nil {
		return nil, notFound(err)
	}
	return &project, nil
}

// ExistsByName 名称是否已被其他项目占用
func (r *ProjectRepository) ExistsByName(ctx context.Context, name string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&entity.Project{}).Where("name = ?", name)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// Create 创建项目
func (r *ProjectRepository) Create(ctx context.Context, project *entity.Project) error {
	return r.db.WithContext(ctx).Create(project).Error
}

// Update 更新项目
func (r *ProjectRepository) Update(ctx context.Context, project *entity.Project) error {
	return r.db.WithContext(ctx).Save(project).Error
}

// List 获取项目列表，按更新时间倒序
func (r *ProjectRepository) List(ctx context.Context, f ProjectFilter) ([]entity.Project, error) {
	var projects []entity.Project
	q := r.db.WithContext(ctx).Model(&entity.Project{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.Manager != "" {
		q = q.Where("LOWER(manager) LIKE ?", containsLower(f.Manager))
	}
	err := f.Page.apply(q).Order("updated_at DESC, id DESC").Find(&projects).Error
	return projects, err
}

// ListAll 获取全部项目
func (r *ProjectRepository) ListAll(ctx context.Context) ([]entity.Project, error) {
	var projects []entity.Project
	err := r.db.WithContext(ctx).Order("id ASC").Find(&projects).Error
	return projects, err
}

// Names 全部项目名称
func (r *ProjectRepository) Names(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).Model(&entity.Project{}).Order("name ASC").Pluck("name", &names).Error
	return names, err
}

// NameMap 项目ID到名称的映射
func (r *ProjectRepository) NameMap(ctx context.Context) (map[uint]string, error) {
	projects, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}
	return names, nil
}

// Count 项目总数
func (r *ProjectRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Project{}).Count(&count).Error
	return count, err
}

type groupCount struct {
	Name  string
	Total int64
}

// CountBy 按 status 或 priority 分组计数
func (r *ProjectRepository) CountBy(ctx context.Context, column string) (map[string]int64, error) {
	if column != "status" && column != "priority" {
		column = "status"
	}
	var rows []groupCount
	err := r.db.WithContext(ctx).Model(&entity.Project{}).
		Select(column + " AS name, COUNT(*) AS total").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Name] = row.Total
	}
	return counts, nil
}

// DeleteCascade 删除项目及其周报、任务、关联和 WBS，全部在一个事务中完成
func (r *ProjectRepository) DeleteCascade(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project entity.Project
		if err := tx.Where("id = ?", id).First(&project).Error; err != nil {
			return notFound(err)
		}

		reportIDs := tx.Model(&entity.WeeklyReport{}).Select("id").Where("project_id = ?", id)
		taskIDs := tx.Model(&entity.DetailedTask{}).Select("id").Where("project_id = ?", id)
		if err := tx.Where("weekly_report_id IN (?) OR detailed_task_id IN (?)", reportIDs, taskIDs).
			Delete(&entity.WeeklyReportTask{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&entity.WeeklyReport{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&entity.DetailedTask{}).Error; err != nil {
			return err
		}
		if err := tx.Where("project_id = ?", id).Delete(&entity.WBSTask{}).Error; err != nil {
			return err
		}
		return tx.Delete(&project).Error
	})
}

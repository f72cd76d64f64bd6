package repository

import (
	"context"

	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
	"github.com/sungreong/TaskWeaver/internal/tracker/wbs"
	"gorm.io/gorm"
)

// WBSRepository WBS 仓库
type WBSRepository struct {
	db *gorm.DB
}

// NewWBSRepository 创建 WBS 仓库
func NewWBSRepository(db *gorm.DB) *WBSRepository {
	return &WBSRepository{db: db}
}

// FindByID 根据ID查找 WBS 节点
func (r *WBSRepository) FindByID(ctx context.Context, id uint) (*entity.WBSTask, error) {
	var task entity.WBSTask
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&task).Error; err != nil {
		return nil, notFound(err)
	}
	return &task, nil
}

// ListByProject 项目的全部 WBS 行（扁平）
func (r *WBSRepository) ListByProject(ctx context.Context, projectID uint) ([]entity.WBSTask, error) {
	return listWBS(r.db.WithContext(ctx), projectID)
}

func listWBS(db *gorm.DB, projectID uint) ([]entity.WBSTask, error) {
	var tasks []entity.WBSTask
	err := db.Where("project_id = ?", projectID).
		Order("sort_order ASC, id ASC").
		Find(&tasks).Error
	return tasks, err
}

// Create 创建 WBS 节点
func (r *WBSRepository) Create(ctx context.Context, task *entity.WBSTask) error {
	return r.db.WithContext(ctx).Create(task).Error
}

// Update 更新 WBS 节点
func (r *WBSRepository) Update(ctx context.Context, task *entity.WBSTask) error {
	return r.db.WithContext(ctx).Save(task).Error
}

// DeleteSubtree 删除节点及其全部后代。读取与删除在同一事务中，要么全部删除要么都不删。
func (r *WBSRepository) DeleteSubtree(ctx context.Context, id uint) ([]uint, error) {
	var deleted []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task entity.WBSTask
		if err := tx.Where("id = ?", id).First(&task).Error; err != nil {
			return notFound(err)
		}
		rows, err := listWBS(tx, task.ProjectID)
		if err != nil {
			return err
		}
		ids := wbs.Subtree(rows, id)
		if err := tx.Where("id IN ?", ids).Delete(&entity.WBSTask{}).Error; err != nil {
			return err
		}
		deleted = ids
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

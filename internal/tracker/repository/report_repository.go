package repository

import (
	"context"

	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportRepository 周报仓库
type ReportRepository struct {
	db *gorm.DB
}

// NewReportRepository 创建周报仓库
func NewReportRepository(db *gorm.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// ReportFilter 周报过滤条件
type ReportFilter struct {
	ProjectID uint
	Project   string // 项目名称模糊匹配
	Week      string
	Stage     string
	StartWeek string
	EndWeek   string
	Page
}

// FindByID 根据ID查找周报
func (r *ReportRepository) FindByID(ctx context.Context, id uint) (*entity.WeeklyReport, error) {
	var report entity.WeeklyReport
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&report).Error; err != nil {
		return nil, notFound(err)
	}
	return &report, nil
}

// ExistsDuplicate (project, week, stage) 是否已存在
func (r *ReportRepository) ExistsDuplicate(ctx context.Context, projectID uint, week, stage string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&entity.WeeklyReport{}).
		Where("project_id = ? AND week = ? AND stage = ?", projectID, week, stage)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&count).Error
	return count > 0, err
}

// Create 创建周报
func (r *ReportRepository) Create(ctx context.Context, report *entity.WeeklyReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

// Update 更新周报
func (r *ReportRepository) Update(ctx context.Context, report *entity.WeeklyReport) error {
	return r.db.WithContext(ctx).Save(report).Error
}

// Delete 删除周报及其任务关联
func (r *ReportRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("weekly_report_id = ?", id).Delete(&entity.WeeklyReportTask{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&entity.WeeklyReport{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// List 获取周报列表，按周倒序、更新时间倒序
func (r *ReportRepository) List(ctx context.Context, f ReportFilter) ([]entity.WeeklyReport, error) {
	var reports []entity.WeeklyReport
	q := r.db.WithContext(ctx).Model(&entity.WeeklyReport{})
	if f.ProjectID != 0 {
		q = q.Where("weekly_reports.project_id = ?", f.ProjectID)
	}
	if f.Project != "" {
		q = q.Joins("JOIN projects ON projects.id = weekly_reports.project_id").
			Where("LOWER(projects.name) LIKE ?", containsLower(f.Project))
	}
	if f.Week != "" {
		q = q.Where("weekly_reports.week = ?", f.Week)
	}
	if f.Stage != "" {
		q = q.Where("LOWER(weekly_reports.stage) LIKE ?", containsLower(f.Stage))
	}
	if f.StartWeek != "" {
		q = q.Where("weekly_reports.week >= ?", f.StartWeek)
	}
	if f.EndWeek != "" {
		q = q.Where("weekly_reports.week <= ?", f.EndWeek)
	}
	err := f.Page.apply(q).
		Select("weekly_reports.*").
		Order("weekly_reports.week DESC, weekly_reports.updated_at DESC, weekly_reports.id DESC").
		Find(&reports).Error
	return reports, err
}

// ListByProject 项目全部周报
func (r *ReportRepository) ListByProject(ctx context.Context, projectID uint) ([]entity.WeeklyReport, error) {
	return r.List(ctx, ReportFilter{ProjectID: projectID})
}

// ListByWeek 某一周的全部周报
func (r *ReportRepository) ListByWeek(ctx context.Context, week string) ([]entity.WeeklyReport, error) {
	return r.List(ctx, ReportFilter{Week: week})
}

// ListAll 全部周报
func (r *ReportRepository) ListAll(ctx context.Context) ([]entity.WeeklyReport, error) {
	return r.List(ctx, ReportFilter{})
}

// Recent 最近更新的周报
func (r *ReportRepository) Recent(ctx context.Context, limit int) ([]entity.WeeklyReport, error) {
	var reports []entity.WeeklyReport
	err := r.db.WithContext(ctx).Order("updated_at DESC, id DESC").Limit(limit).Find(&reports).Error
	return reports, err
}

// DistinctWeeks 全部周次，倒序
func (r *ReportRepository) DistinctWeeks(ctx context.Context) ([]string, error) {
	var weeks []string
	err := r.db.WithContext(ctx).Model(&entity.WeeklyReport{}).
		Distinct("week").Order("week DESC").Pluck("week", &weeks).Error
	return weeks, err
}

// DistinctStages 全部阶段
func (r *ReportRepository) DistinctStages(ctx context.Context) ([]string, error) {
	var stages []string
	err := r.db.WithContext(ctx).Model(&entity.WeeklyReport{}).
		Distinct("stage").Order("stage ASC").Pluck("stage", &stages).Error
	return stages, err
}

// LinkTasks 用 taskIDs 替换周报关联的任务集合
func (r *ReportRepository) LinkTasks(ctx context.Context, reportID uint, taskIDs []uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("weekly_report_id = ?", reportID).Delete(&entity.WeeklyReportTask{}).Error; err != nil {
			return err
		}
		if len(taskIDs) == 0 {
			return nil
		}
		links := make([]entity.WeeklyReportTask, 0, len(taskIDs))
		for _, id := range taskIDs {
			links = append(links, entity.WeeklyReportTask{WeeklyReportID: reportID, DetailedTaskID: id})
		}
		// 重复 id 由复合主键去重
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error
	})
}

// LinkedTasks 周报关联的任务
func (r *ReportRepository) LinkedTasks(ctx context.Context, reportID uint) ([]entity.DetailedTask, error) {
	var tasks []entity.DetailedTask
	err := r.db.WithContext(ctx).
		Joins("JOIN weekly_report_detailed_tasks l ON l.detailed_task_id = detailed_tasks.id").
		Where("l.weekly_report_id = ?", reportID).
		Order("detailed_tasks.id ASC").
		Find(&tasks).Error
	return tasks, err
}

// ReportsForTask 引用某任务的周报
func (r *ReportRepository) ReportsForTask(ctx context.Context, taskID uint) ([]entity.WeeklyReport, error) {
	var reports []entity.WeeklyReport
	err := r.db.WithContext(ctx).
		Joins("JOIN weekly_report_detailed_tasks l ON l.weekly_report_id = weekly_reports.id").
		Where("l.detailed_task_id = ?", taskID).
		Order("weekly_reports.week DESC").
		Find(&reports).Error
	return reports, err
}

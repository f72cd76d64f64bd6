package entity

import (
	"time"
)

// WBSTask 工作分解结构节点，只保存父指针，子节点由 wbs.Build 推导
type WBSTask struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	ProjectID    uint      `json:"project_id" gorm:"not null;index"`
	ParentID     *uint     `json:"parent_id" gorm:"index"`
	Text         string    `json:"text" gorm:"size:255;not null"`
	StartDate    *Date     `json:"start_date"`
	EndDate      *Date     `json:"end_date"`
	Progress     int       `json:"progress" gorm:"not null;default:0"`
	Deliverables string    `json:"deliverables" gorm:"type:text"`
	Remarks      string    `json:"remarks" gorm:"type:text"`
	SortOrder    int       `json:"sort_order" gorm:"not null;default:0"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (WBSTask) TableName() string {
	return "wbs_tasks"
}

// AllModels 需要迁移的全部模型
func AllModels() []interface{} {
	return []interface{}{
		&Project{},
		&WeeklyReport{},
		&DetailedTask{},
		&WeeklyReportTask{},
		&WBSTask{},
	}
}

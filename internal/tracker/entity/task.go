package entity

import (
	"time"
)

// DetailedTask 细化任务
type DetailedTask struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	ProjectID      uint      `json:"project_id" gorm:"not null;uniqueIndex:idx_task_project_item"`
	Stage          string    `json:"stage" gorm:"size:100"`
	TaskItem       string    `json:"task_item" gorm:"size:255;not null;uniqueIndex:idx_task_project_item"`
	Assignee       string    `json:"assignee" gorm:"size:100;index"`
	CurrentStatus  string    `json:"current_status" gorm:"size:16;not null;default:not_started"`
	HasRisk        bool      `json:"has_risk" gorm:"not null;default:false"`
	Description    string    `json:"description" gorm:"type:text"`
	PlannedEndDate *Date     `json:"planned_end_date"`
	ActualEndDate  *Date     `json:"actual_end_date"`
	ProgressRate   float64   `json:"progress_rate" gorm:"not null;default:0"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (DetailedTask) TableName() string {
	return "detailed_tasks"
}

// 任务状态
const (
	TaskStatusNotStarted = "not_started"
	TaskStatusInProgress = "in_progress"
	TaskStatusCompleted  = "completed"
	TaskStatusOnHold     = "on_hold"
	TaskStatusCancelled  = "cancelled"
)

var TaskStatuses = []string{
	TaskStatusNotStarted, TaskStatusInProgress, TaskStatusCompleted,
	TaskStatusOnHold, TaskStatusCancelled,
}

func ValidTaskStatus(s string) bool {
	return contains(TaskStatuses, s)
}

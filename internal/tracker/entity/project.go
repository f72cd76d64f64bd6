package entity

import (
	"time"
)

// Project 项目实体
type Project struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"size:255;not null;uniqueIndex"`
	Description string    `json:"description" gorm:"type:text"`
	StartDate   *Date     `json:"start_date"`
	EndDate     *Date     `json:"end_date"`
	Status      string    `json:"status" gorm:"size:16;not null;default:planning"`
	Priority    string    `json:"priority" gorm:"size:16;not null;default:medium"`
	Manager     string    `json:"manager" gorm:"size:100"`
	TeamMembers string    `json:"team_members" gorm:"type:text"`
	Budget      *float64  `json:"budget"`
	Notes       string    `json:"notes" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}

// 项目状态
const (
	ProjectStatusPlanning  = "planning"
	ProjectStatusActive    = "active"
	ProjectStatusOnHold    = "on_hold"
	ProjectStatusCompleted = "completed"
	ProjectStatusCancelled = "cancelled"
)

// 项目优先级
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

var ProjectStatuses = []string{
	ProjectStatusPlanning, ProjectStatusActive, ProjectStatusOnHold,
	ProjectStatusCompleted, ProjectStatusCancelled,
}

var ProjectPriorities = []string{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

func ValidProjectStatus(s string) bool {
	return contains(ProjectStatuses, s)
}

func ValidPriority(s string) bool {
	return contains(ProjectPriorities, s)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

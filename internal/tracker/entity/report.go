package entity

import (
	"fmt"
	"regexp"
	"time"
)

// WeeklyReport 周报
type WeeklyReport struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	ProjectID    uint      `json:"project_id" gorm:"not null;uniqueIndex:idx_report_project_week_stage"`
	Week         string    `json:"week" gorm:"size:10;not null;index;uniqueIndex:idx_report_project_week_stage"`
	Stage        string    `json:"stage" gorm:"size:100;not null;uniqueIndex:idx_report_project_week_stage"`
	ThisWeekWork string    `json:"this_week_work" gorm:"type:text;not null"`
	NextWeekPlan *string   `json:"next_week_plan" gorm:"type:text"`
	IssuesRisks  *string   `json:"issues_risks" gorm:"type:text"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (WeeklyReport) TableName() string {
	return "weekly_reports"
}

// WeeklyReportTask 周报与细化任务的关联
type WeeklyReportTask struct {
	WeeklyReportID uint `json:"weekly_report_id" gorm:"primaryKey"`
	DetailedTaskID uint `json:"detailed_task_id" gorm:"primaryKey;index"`
}

func (WeeklyReportTask) TableName() string {
	return "weekly_report_detailed_tasks"
}

var weekPattern = regexp.MustCompile(`^\d{4}-W(\d{2})$`)

// ValidWeek reports whether s is a YYYY-WNN identifier with NN in 01..53.
func ValidWeek(s string) bool {
	m := weekPattern.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	return m[1] >= "01" && m[1] <= "53"
}

// WeekOf formats the ISO week containing t.
func WeekOf(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", y, w)
}

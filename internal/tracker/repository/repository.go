package repository

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 仓库集合
type Repositories struct {
	Project *ProjectRepository
	Report  *ReportRepository
	Task    *TaskRepository
	WBS     *WBSRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Project: NewProjectRepository(db),
		Report:  NewReportRepository(db),
		Task:    NewTaskRepository(db),
		WBS:     NewWBSRepository(db),
	}
}

// Page limit/offset 分页
type Page struct {
	Limit  int
	Offset int
}

func (p Page) apply(q *gorm.DB) *gorm.DB {
	if p.Limit > 0 {
		q = q.Limit(p.Limit)
	}
	if p.Offset > 0 {
		q = q.Offset(p.Offset)
	}
	return q
}

// containsLower builds a case-insensitive substring pattern that works on postgres and sqlite alike.
func containsLower(s string) string {
	return "%" + strings.ToLower(s) + "%"
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

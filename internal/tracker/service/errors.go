package service

import (
	"errors"
	"fmt"
)

// 错误定义
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrReportNotFound  = errors.New("weekly report not found")
	ErrTaskNotFound    = errors.New("detailed task not found")
	ErrWBSNotFound     = errors.New("wbs task not found")
	ErrParentNotFound  = errors.New("parent task not found")

	ErrDuplicateName   = errors.New("project name already exists")
	ErrDuplicateReport = errors.New("weekly report already exists for this project, week and stage")
	ErrDuplicateTask   = errors.New("task item already exists in this project")

	ErrInvalidParent = errors.New("invalid parent task")
)

// ValidationError 字段校验失败
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

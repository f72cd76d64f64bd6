package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
	"github.com/sungreong/TaskWeaver/internal/tracker/sheet"
	"github.com/sungreong/TaskWeaver/internal/tracker/sse"
	"go.uber.org/zap"
)

const (
	previewRows      = 5
	failedDetailsCap = 10
)

// 上传文件必需列
var (
	ProjectColumns         = []string{"name", "description", "start_date", "end_date", "status", "priority", "manager", "team_members", "budget", "notes"}
	ProjectRequiredColumns = []string{"name", "description", "status", "priority", "manager"}
	TaskColumns            = []string{"project", "stage", "task_item", "assignee", "current_status", "has_risk", "description", "planned_end_date", "actual_end_date", "progress_rate"}
	TaskRequiredColumns    = []string{"project", "stage", "task_item"}
)

var (
	riskTrue  = []string{"true", "1", "yes", "y", "o", "있음", "예"}
	riskFalse = []string{"", "false", "0", "no", "n", "x", "없음", "아니오"}
)

// ImportService 项目和任务的批量导入
type ImportService struct {
	projects *ProjectService
	tasks    *TaskService
	archive  *Archive
	events   *notifier
	logger   *zap.Logger
}

// NewImportService 创建导入服务
func NewImportService(projects *ProjectService, tasks *TaskService, archive *Archive, events *notifier, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{projects: projects, tasks: tasks, archive: archive, events: events, logger: logger}
}

// RowError 校验失败的行
type RowError struct {
	Row    int               `json:"row"`
	Errors []string          `json:"errors"`
	Data   map[string]string `json:"data"`
}

// ValidationReport 上传校验结果，不写入任何数据
type ValidationReport struct {
	Success        bool                `json:"success"`
	TotalRows      int                 `json:"total_rows"`
	ValidRows      int                 `json:"valid_rows"`
	InvalidRows    int                 `json:"invalid_rows"`
	DuplicateCount int                 `json:"duplicate_count"`
	Columns        []string            `json:"columns"`
	Errors         []RowError          `json:"errors"`
	PreviewData    []map[string]string `json:"preview_data"`
}

// FailedRow 导入失败的行
type FailedRow struct {
	Row   int               `json:"row"`
	Error string            `json:"error"`
	Data  map[string]string `json:"data"`
}

// ImportResult 导入结果。每行单独提交，失败行不影响其它行
type ImportResult struct {
	TotalRows         int         `json:"total_rows"`
	SuccessfulImports int         `json:"successful_imports"`
	FailedImports     int         `json:"failed_imports"`
	FailedDetails     []FailedRow `json:"failed_details"`
	Created           []string    `json:"created"`
	ArchiveKey        string      `json:"archive_key,omitempty"`
}

// parse reads the upload and checks its header.
func parse(filename string, data []byte, required []string) (*sheet.Table, error) {
	if !sheet.Supported(filename) {
		return nil, invalid("file", "%s", sheet.ErrUnsupportedFormat.Error())
	}
	table, err := sheet.Read(filename, data)
	if errors.Is(err, sheet.ErrEmpty) {
		return nil, invalid("file", "%s", err.Error())
	}
	if err != nil {
		return nil, invalid("file", "cannot parse %s: %v", filename, err)
	}
	if missing := table.Missing(required...); len(missing) > 0 {
		return nil, invalid("file", "missing required columns: %s", strings.Join(missing, ", "))
	}
	return table, nil
}

// projectRequest maps a row onto a create request. Column format problems are returned as messages.
func projectRequest(row sheet.Row) (*CreateProjectRequest, []string) {
	var errs []string
	if !row.Has("name") {
		errs = append(errs, "name is required")
	}
	req := &CreateProjectRequest{
		Name:        row.Get("name"),
		Description: row.Get("description"),
		StartDate:   row.Get("start_date"),
		EndDate:     row.Get("end_date"),
		Status:      row.Get("status"),
		Priority:    row.Get("priority"),
		Manager:     row.Get("manager"),
		TeamMembers: row.Get("team_members"),
		Notes:       row.Get("notes"),
	}
	if row.Has("budget") {
		b, err := strconv.ParseFloat(strings.ReplaceAll(row.Get("budget"), ",", ""), 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("budget must be a number, got %q", row.Get("budget")))
		} else {
			req.Budget = &b
		}
	}
	return req, errs
}

// taskRequest maps a row onto a create request. The project column holds a project name.
func taskRequest(row sheet.Row) (*CreateTaskRequest, []string) {
	var errs []string
	for _, col := range TaskRequiredColumns {
		if !row.Has(col) {
			errs = append(errs, col+" is required")
		}
	}
	req := &CreateTaskRequest{
		Project:        row.Get("project"),
		Stage:          row.Get("stage"),
		TaskItem:       row.Get("task_item"),
		Assignee:       row.Get("assignee"),
		CurrentStatus:  row.Get("current_status"),
		Description:    row.Get("description"),
		PlannedEndDate: row.Get("planned_end_date"),
		ActualEndDate:  row.Get("actual_end_date"),
	}
	risk, err := ParseRisk(row.Get("has_risk"))
	if err != nil {
		errs = append(errs, err.Error())
	}
	req.HasRisk = risk
	progress, err := ParseProgress(row.Get("progress_rate"))
	if err != nil {
		errs = append(errs, err.Error())
	}
	req.ProgressRate = progress
	return req, errs
}

// ParseRisk accepts the yes/no spellings found in team spreadsheets.
func ParseRisk(v string) (bool, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, t := range riskTrue {
		if v == t {
			return true, nil
		}
	}
	for _, f := range riskFalse {
		if v == f {
			return false, nil
		}
	}
	return false, fmt.Errorf("has_risk: unrecognized value %q", v)
}

// ParseProgress accepts "50", "50%" and blank (0).
func ParseProgress(v string) (float64, error) {
	v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "%"))
	if v == "" {
		return 0, nil
	}
	p, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("progress_rate must be a number, got %q", v)
	}
	return p, nil
}

// ValidateProjects 校验项目上传文件
func (s *ImportService) ValidateProjects(ctx context.Context, filename string, data []byte) (*ValidationReport, error) {
	table, err := parse(filename, data, ProjectRequiredColumns)
	if err != nil {
		return nil, err
	}
	key := func(r sheet.Row) string { return r.Get("name") }
	return validate(ctx, table, projectRequest, key, func(ctx context.Context, req *CreateProjectRequest) error {
		_, err := s.projects.prepare(ctx, req)
		return err
	})
}

// ValidateTasks 校验任务上传文件。(project, task_item) 在文件内重复的行计入 duplicate_count
func (s *ImportService) ValidateTasks(ctx context.Context, filename string, data []byte) (*ValidationReport, error) {
	table, err := parse(filename, data, TaskRequiredColumns)
	if err != nil {
		return nil, err
	}
	key := func(r sheet.Row) string {
		if !r.Has("project") || !r.Has("task_item") {
			return ""
		}
		return r.Get("project") + "\x00" + r.Get("task_item")
	}
	return validate(ctx, table, taskRequest, key, func(ctx context.Context, req *CreateTaskRequest) error {
		_, _, err := s.tasks.prepare(ctx, req)
		return err
	})
}

func validate[R any](ctx context.Context, table *sheet.Table, toRequest func(sheet.Row) (*R, []string), key func(sheet.Row) string,
	check func(context.Context, *R) error) (*ValidationReport, error) {
	report := &ValidationReport{
		TotalRows:   len(table.Rows),
		Columns:     table.Header,
		Errors:      []RowError{},
		PreviewData: []map[string]string{},
	}

	seen := make(map[string]int, len(table.Rows))
	for _, row := range table.Rows {
		if k := key(row); k != "" {
			seen[k]++
		}
	}
	for _, n := range seen {
		if n > 1 {
			report.DuplicateCount += n
		}
	}

	for _, row := range table.Rows {
		req, errs := toRequest(row)
		if len(errs) == 0 {
			if err := check(ctx, req); err != nil {
				if !isUserError(err) {
					return nil, err
				}
				errs = append(errs, err.Error())
			}
		}
		if len(errs) > 0 {
			report.Errors = append(report.Errors, RowError{Row: row.Number, Errors: errs, Data: row.Values})
			continue
		}
		report.ValidRows++
		if len(report.PreviewData) < previewRows {
			report.PreviewData = append(report.PreviewData, row.Values)
		}
	}
	report.InvalidRows = len(report.Errors)
	report.Success = report.InvalidRows == 0
	return report, nil
}

// ImportProjects 导入项目
func (s *ImportService) ImportProjects(ctx context.Context, filename string, data []byte) (*ImportResult, error) {
	table, err := parse(filename, data, ProjectRequiredColumns)
	if err != nil {
		return nil, err
	}
	result := importRows(ctx, s.logger, table, projectRequest, func(ctx context.Context, req *CreateProjectRequest) (string, error) {
		p, err := s.projects.Create(ctx, req)
		if err != nil {
			return "", err
		}
		return p.Name, nil
	})
	result.ArchiveKey = s.archive.Store(ctx, ArchiveImports, sheet.Ext(filename), uploadContentType(filename), data)
	if result.SuccessfulImports > 0 {
		// 批量导入结束后再发一次汇总事件
		s.events.changed(ctx, sse.EventProjectUpdate, sse.Change{Action: sse.ActionImported})
	}
	s.logger.Info("projects imported",
		zap.String("file", filename),
		zap.Int("total", result.TotalRows),
		zap.Int("failed", result.FailedImports),
	)
	return result, nil
}

// ImportTasks 导入细化任务
func (s *ImportService) ImportTasks(ctx context.Context, filename string, data []byte) (*ImportResult, error) {
	table, err := parse(filename, data, TaskRequiredColumns)
	if err != nil {
		return nil, err
	}
	result := importRows(ctx, s.logger, table, taskRequest, func(ctx context.Context, req *CreateTaskRequest) (string, error) {
		t, err := s.tasks.Create(ctx, req)
		if err != nil {
			return "", err
		}
		return t.Project + " / " + t.TaskItem, nil
	})
	result.ArchiveKey = s.archive.Store(ctx, ArchiveImports, sheet.Ext(filename), uploadContentType(filename), data)
	if result.SuccessfulImports > 0 {
		s.events.changed(ctx, sse.EventTaskUpdate, sse.Change{Action: sse.ActionImported})
	}
	s.logger.Info("tasks imported",
		zap.String("file", filename),
		zap.Int("total", result.TotalRows),
		zap.Int("failed", result.FailedImports),
	)
	return result, nil
}

// importRows commits each row on its own; a failed row never affects the others.
func importRows[R any](ctx context.Context, logger *zap.Logger, table *sheet.Table, toRequest func(sheet.Row) (*R, []string),
	create func(context.Context, *R) (string, error)) *ImportResult {
	result := &ImportResult{
		TotalRows:     len(table.Rows),
		FailedDetails: []FailedRow{},
		Created:       []string{},
	}
	for _, row := range table.Rows {
		req, errs := toRequest(row)
		var name string
		var err error
		if len(errs) > 0 {
			err = errors.New(strings.Join(errs, "; "))
		} else {
			name, err = create(ctx, req)
		}
		if err != nil {
			logger.Debug("import row failed", zap.Int("row", row.Number), zap.Error(err))
			result.FailedImports++
			if len(result.FailedDetails) < failedDetailsCap {
				result.FailedDetails = append(result.FailedDetails, FailedRow{Row: row.Number, Error: err.Error(), Data: row.Values})
			}
			continue
		}
		result.SuccessfulImports++
		result.Created = append(result.Created, name)
	}
	return result
}

// isUserError reports whether err describes bad input rather than a storage failure.
func isUserError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve) ||
		errors.Is(err, ErrProjectNotFound) ||
		errors.Is(err, ErrDuplicateName) ||
		errors.Is(err, ErrDuplicateTask)
}

func uploadContentType(filename string) string {
	switch sheet.Ext(filename) {
	case ".csv":
		return sheet.ContentTypeCSV
	}
	return sheet.ContentTypeXLSX
}

var projectSamples = [][]string{
	{"샘플 프로젝트 1", "프로젝트 설명을 입력하세요", "2024-01-01", "2024-12-31", "planning", "high", "홍길동", "김철수, 이영희", "1000000", "추가 메모사항"},
	{"샘플 프로젝트 2", "또 다른 프로젝트 설명", "2024-02-01", "2024-11-30", "active", "medium", "김영수", "박민수, 최은정", "2000000", "중요한 프로젝트"},
}

var taskSamples = [][]string{
	{"AI개발", "요구사항분석", "사용자 스토리 작성", "김개발", "in_progress", "false", "주요 기능에 대한 사용자 스토리 작성", "2024-12-31", "", "50"},
	{"AI개발", "설계", "시스템 아키텍처 설계", "박설계", "not_started", "true", "전체 시스템 구조 설계", "2025-01-15", "", "0"},
}

// ProjectTemplate 项目上传模板
func (s *ImportService) ProjectTemplate(format string) (*File, error) {
	return render("project_template", "Projects", format, ProjectColumns, projectSamples)
}

// TaskTemplate 任务上传模板
func (s *ImportService) TaskTemplate(format string) (*File, error) {
	return render("detailed_tasks_template", "DetailedTasks", format, TaskColumns, taskSamples)
}

// ColumnGuide 列说明
type ColumnGuide struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Example     string   `json:"example"`
	Format      string   `json:"format,omitempty"`
	Options     []string `json:"options,omitempty"`
}

// UploadGuide 上传说明
type UploadGuide struct {
	SupportedFormats []string            `json:"supported_formats"`
	Columns          []string            `json:"columns"`
	RequiredColumns  []ColumnGuide       `json:"required_columns"`
	OptionalColumns  []ColumnGuide       `json:"optional_columns"`
	SampleData       []map[string]string `json:"sample_data"`
	FileSizeLimit    string              `json:"file_size_limit"`
	Encoding         string              `json:"encoding"`
	Tips             []string            `json:"tips"`
}

var supportedUploads = []string{"CSV", "XLSX"}

// ProjectGuide 项目上传说明
func (s *ImportService) ProjectGuide(maxSize int64) *UploadGuide {
	return &UploadGuide{
		SupportedFormats: supportedUploads,
		Columns:          ProjectColumns,
		RequiredColumns: []ColumnGuide{
			{Name: "name", Description: "프로젝트명 (필수)", Example: "신규 프로젝트"},
			{Name: "description", Description: "프로젝트 설명 (필수)", Example: "프로젝트에 대한 설명"},
			{Name: "status", Description: "프로젝트 상태 (필수)", Example: "planning", Options: entity.ProjectStatuses},
			{Name: "priority", Description: "우선순위 (필수)", Example: "high", Options: entity.ProjectPriorities},
			{Name: "manager", Description: "담당자 (필수)", Example: "홍길동"},
		},
		OptionalColumns: []ColumnGuide{
			{Name: "start_date", Description: "시작일", Format: "YYYY-MM-DD", Example: "2024-01-01"},
			{Name: "end_date", Description: "종료일", Format: "YYYY-MM-DD", Example: "2024-12-31"},
			{Name: "team_members", Description: "팀원", Example: "김철수, 이영희"},
			{Name: "budget", Description: "예산", Format: "숫자", Example: "1000000"},
			{Name: "notes", Description: "메모", Example: "추가 정보"},
		},
		SampleData:    samples(ProjectColumns, projectSamples),
		FileSizeLimit: sizeLabel(maxSize),
		Encoding:      "UTF-8 (EUC-KR CSV도 지원)",
		Tips: []string{
			"날짜는 YYYY-MM-DD 형식으로 입력해주세요",
			"프로젝트명은 중복될 수 없습니다",
			"각 행은 개별적으로 등록되며 실패한 행은 건너뜁니다",
		},
	}
}

// TaskGuide 任务上传说明
func (s *ImportService) TaskGuide(maxSize int64) *UploadGuide {
	return &UploadGuide{
		SupportedFormats: supportedUploads,
		Columns:          TaskColumns,
		RequiredColumns: []ColumnGuide{
			{Name: "project", Description: "프로젝트명 (필수, 등록된 프로젝트)", Example: "AI개발"},
			{Name: "stage", Description: "단계 (필수)", Example: "설계"},
			{Name: "task_item", Description: "업무 항목 (필수)", Example: "시스템 아키텍처 설계"},
		},
		OptionalColumns: []ColumnGuide{
			{Name: "assignee", Description: "담당자", Example: "김개발"},
			{Name: "current_status", Description: "현재 상태", Example: "in_progress", Options: entity.TaskStatuses},
			{Name: "has_risk", Description: "리스크 여부", Format: "TRUE/FALSE, 1/0, Y/N, O/X", Example: "FALSE"},
			{Name: "description", Description: "설명", Example: "전체 시스템 구조 설계"},
			{Name: "planned_end_date", Description: "종료예정일", Format: "YYYY-MM-DD", Example: "2024-12-31"},
			{Name: "actual_end_date", Description: "실제 완료일", Format: "YYYY-MM-DD", Example: ""},
			{Name: "progress_rate", Description: "진행률", Format: "0-100 (50 또는 50%)", Example: "50"},
		},
		SampleData:    samples(TaskColumns, taskSamples),
		FileSizeLimit: sizeLabel(maxSize),
		Encoding:      "UTF-8 (EUC-KR CSV도 지원)",
		Tips: []string{
			"project 컬럼에는 이미 등록된 프로젝트명을 입력해주세요",
			"같은 프로젝트 안에서 업무 항목은 중복될 수 없습니다",
		},
	}
}

func samples(header []string, rows [][]string) []map[string]string {
	out := make([]map[string]string, 0, len(rows))
	for _, r := range rows {
		m := make(map[string]string, len(header))
		for i, h := range header {
			m[h] = r[i]
		}
		out = append(out, m)
	}
	return out
}

func sizeLabel(n int64) string {
	if n > 0 && n%(1<<20) == 0 {
		return fmt.Sprintf("%dMB", n>>20)
	}
	if n > 0 && n%(1<<10) == 0 {
		return fmt.Sprintf("%dKB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}

package service

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
	"github.com/sungreong/TaskWeaver/internal/tracker/repository"
	"github.com/sungreong/TaskWeaver/internal/tracker/sheet"
	"github.com/sungreong/TaskWeaver/internal/tracker/summary"
)

const timestampLayout = "2006-01-02 15:04:05"

// File 生成的下载文件
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService 导出 CSV / Excel
type ExportService struct {
	repos   *repository.Repositories
	archive *Archive
}

// NewExportService 创建导出服务
func NewExportService(repos *repository.Repositories, archive *Archive) *ExportService {
	return &ExportService{repos: repos, archive: archive}
}

var (
	reportExportHeader  = []string{"ID", "프로젝트", "주차", "단계", "이번 주 한 일", "다음 주 계획", "이슈/리스크", "생성일", "수정일"}
	projectExportHeader = []string{"프로젝트", "총 주차 수", "최신 주차", "단계 수", "진행 단계", "현재 이슈 수", "완료율(%)", "총 보고서 수"}
	weekExportHeader    = []string{"주차", "총 프로젝트 수", "총 단계 수", "이슈가 있는 프로젝트 수", "총 이슈 수", "프로젝트 목록"}
	taskExportHeader    = []string{"ID", "프로젝트", "단계", "업무 항목", "담당자", "현재 상태", "리스크 여부", "설명", "종료예정일", "실제 완료일", "진행률(%)", "생성일", "수정일"}
)

// render writes header and rows as base.<format>.
func render(base, sheetName, format string, header []string, rows [][]string) (*File, error) {
	f, ok := sheet.NormalizeFormat(format)
	if !ok {
		return nil, invalid("format", "must be csv or xlsx, got %q", format)
	}
	var buf bytes.Buffer
	if err := sheet.Write(&buf, f, sheetName, header, rows); err != nil {
		return nil, fmt.Errorf("render %s: %w", base, err)
	}
	return &File{Filename: base + "." + f, ContentType: sheet.ContentType(f), Data: buf.Bytes()}, nil
}

func (s *ExportService) export(ctx context.Context, base, sheetName, format string, header []string, rows [][]string) (*File, error) {
	file, err := render(base, sheetName, format, header, rows)
	if err != nil {
		return nil, err
	}
	s.archive.Store(ctx, ArchiveExports, sheet.Ext(file.Filename), file.ContentType, file.Data)
	return file, nil
}

// WeeklyReports 导出周报。文件名带上项目和周次过滤条件
func (s *ExportService) WeeklyReports(ctx context.Context, filter repository.ReportFilter, format string) (*File, error) {
	reports, err := s.repos.Report.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	names, err := s.repos.Project.NameMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("project names: %w", err)
	}

	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, []string{
			strconv.FormatUint(uint64(r.ID), 10),
			names[r.ProjectID],
			r.Week,
			r.Stage,
			r.ThisWeekWork,
			deref(r.NextWeekPlan),
			deref(r.IssuesRisks),
			timestamp(r.CreatedAt),
			timestamp(r.UpdatedAt),
		})
	}
	return s.export(ctx, filename("weekly_reports", filter.Project, filter.Week), "WeeklyReports", format, reportExportHeader, rows)
}

// ProjectSummary 导出有周报的项目汇总
func (s *ExportService) ProjectSummary(ctx context.Context, format string) (*File, error) {
	projects, err := s.repos.Project.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		reports, err := s.repos.Report.ListByProject(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("list reports: %w", err)
		}
		if len(reports) == 0 {
			continue
		}
		st := summary.ProjectStats(reports)
		rows = append(rows, []string{
			p.Name,
			strconv.Itoa(st.TotalWeeks),
			st.LatestWeek,
			strconv.Itoa(len(st.Stages)),
			strings.Join(st.Stages, ", "),
			strconv.Itoa(st.CurrentIssues),
			strconv.FormatFloat(st.CompletionRate, 'f', -1, 64),
			strconv.Itoa(st.TotalReports),
		})
	}
	return s.export(ctx, "project_summary", "ProjectSummary", format, projectExportHeader, rows)
}

// WeeklySummary 导出每周汇总，最新周在前
func (s *ExportService) WeeklySummary(ctx context.Context, format string) (*File, error) {
	weeks, err := s.repos.Report.DistinctWeeks(ctx)
	if err != nil {
		return nil, fmt.Errorf("distinct weeks: %w", err)
	}
	names, err := s.repos.Project.NameMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("project names: %w", err)
	}

	rows := make([][]string, 0, len(weeks))
	for _, week := range weeks {
		reports, err := s.repos.Report.ListByWeek(ctx, week)
		if err != nil {
			return nil, fmt.Errorf("list reports: %w", err)
		}
		var projects []string
		withIssues := make(map[string]bool)
		issues := 0
		for _, r := range reports {
			name := names[r.ProjectID]
			if _, ok := withIssues[name]; !ok {
				withIssues[name] = false
				projects = append(projects, name)
			}
			if summary.HasIssues(r) {
				withIssues[name] = true
				issues++
			}
		}
		flagged := 0
		for _, has := range withIssues {
			if has {
				flagged++
			}
		}
		rows = append(rows, []string{
			week,
			strconv.Itoa(len(projects)),
			strconv.Itoa(len(reports)),
			strconv.Itoa(flagged),
			strconv.Itoa(issues),
			strings.Join(projects, ", "),
		})
	}
	return s.export(ctx, "weekly_summary", "WeeklySummary", format, weekExportHeader, rows)
}

// DetailedTasks 导出细化任务
func (s *ExportService) DetailedTasks(ctx context.Context, filter repository.TaskFilter, format string) (*File, error) {
	tasks, err := s.repos.Task.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	names, err := s.repos.Project.NameMap(ctx)
	if err != nil {
		return nil, fmt.Errorf("project names: %w", err)
	}

	rows := make([][]string, 0, len(tasks))
	for _, t := range tasks {
		risk := "아니오"
		if t.HasRisk {
			risk = "예"
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(t.ID), 10),
			names[t.ProjectID],
			t.Stage,
			t.TaskItem,
			t.Assignee,
			t.CurrentStatus,
			risk,
			t.Description,
			date(t.PlannedEndDate),
			date(t.ActualEndDate),
			strconv.FormatFloat(t.ProgressRate, 'f', -1, 64),
			timestamp(t.CreatedAt),
			timestamp(t.UpdatedAt),
		})
	}
	return s.export(ctx, filename("detailed_tasks", filter.Project, filter.Assignee), "DetailedTasks", format, taskExportHeader, rows)
}

// filename joins base with the non-empty filter values.
func filename(base string, parts ...string) string {
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			base += "_" + p
		}
	}
	return base
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func date(d *entity.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(timestampLayout)
}

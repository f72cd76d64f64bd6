package service_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
	"github.com/sungreong/TaskWeaver/internal/tracker/repository"
	"github.com/sungreong/TaskWeaver/internal/tracker/service"
	"github.com/sungreong/TaskWeaver/internal/tracker/sheet"
	"github.com/sungreong/TaskWeaver/internal/tracker/testutil"
)

const bom = "\uFEFF"

func TestParseRisk(t *testing.T) {
	tests := []struct {
		in      string
		want    bool
		wantErr bool
	}{
		{"TRUE", true, false},
		{"1", true, false},
		{"Y", true, false},
		{"o", true, false},
		{"있음", true, false},
		{"예", true, false},
		{"아니오", false, false},
		{"", false, false},
		{"False", false, false},
		{"없음", false, false},
		{"maybe", false, true},
	}
	for _, tt := range tests {
		got, err := service.ParseRisk(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseRisk(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestParseProgress(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"50", 50, false},
		{"50%", 50, false},
		{" 12.5 % ", 12.5, false},
		{"", 0, false},
		{"half", 0, true},
	}
	for _, tt := range tests {
		got, err := service.ParseProgress(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseProgress(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestImportTasksContinuesPastBadRows(t *testing.T) {
	db, svcs := setup(t)
	ctx := context.Background()
	testutil.SeedProject(t, db, "AI개발")

	var csv strings.Builder
	csv.WriteString(bom + "project,stage,task_item,assignee,has_risk,progress_rate\n")
	csv.WriteString("AI개발,설계,아키텍처,김개발,예,50%\n")
	csv.WriteString("AI개발,설계,검토,김개발,maybe,\n")
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&csv, "없는프로젝트,설계,업무%d,,,\n", i)
	}
	csv.WriteString("AI개발,개발,API 구현,박개발,O,\n")
	csv.WriteString("AI개발,개발,API 구현,박개발,,\n")

	res, err := svcs.Import.ImportTasks(ctx, "tasks.csv", []byte(csv.String()))
	if err != nil {
		t.Fatalf("ImportTasks: %v", err)
	}
	if res.TotalRows != 16 || res.SuccessfulImports != 2 || res.FailedImports != 14 {
		t.Fatalf("Unexpected result: total=%d ok=%d failed=%d", res.TotalRows, res.SuccessfulImports, res.FailedImports)
	}
	if len(res.FailedDetails) != 10 {
		t.Errorf("Expected failed_details capped at 10, got %d", len(res.FailedDetails))
	}
	if res.FailedDetails[0].Row != 3 || !strings.Contains(res.FailedDetails[0].Error, "has_risk") {
		t.Errorf("Unexpected first failure: %+v", res.FailedDetails[0])
	}
	if res.FailedDetails[1].Row != 4 || res.FailedDetails[1].Data["project"] != "없는프로젝트" {
		t.Errorf("Unexpected second failure: %+v", res.FailedDetails[1])
	}

	tasks, _ := svcs.Task.ByProject(ctx, "AI개발")
	if len(tasks) != 2 {
		t.Fatalf("Expected 2 imported tasks, got %d", len(tasks))
	}
	for _, task := range tasks {
		if !task.HasRisk {
			t.Errorf("Expected has_risk on %s", task.TaskItem)
		}
		if task.TaskItem == "아키텍처" && task.ProgressRate != 50 {
			t.Errorf("Expected progress 50, got %v", task.ProgressRate)
		}
	}
}

func TestImportTasksMissingColumns(t *testing.T) {
	_, svcs := setup(t)
	_, err := svcs.Import.ImportTasks(context.Background(), "tasks.csv", []byte("project,assignee\nA,kim\n"))
	expectValidation(t, err, "file")
	if !strings.Contains(err.Error(), "stage, task_item") {
		t.Errorf("Expected missing columns named, got %v", err)
	}

	_, err = svcs.Import.ImportTasks(context.Background(), "tasks.txt", []byte("x"))
	expectValidation(t, err, "file")
}

func TestValidateTasks(t *testing.T) {
	db, svcs := setup(t)
	ctx := context.Background()
	testutil.SeedProject(t, db, "Alpha")

	csv := "project,stage,task_item,progress_rate\n" +
		"Alpha,설계,ERD,10\n" +
		"Alpha,설계,ERD,20\n" +
		",설계,빈 프로젝트,0\n" +
		"Alpha,개발,API,150\n"

	report, err := svcs.Import.ValidateTasks(ctx, "tasks.csv", []byte(csv))
	if err != nil {
		t.Fatalf("ValidateTasks: %v", err)
	}
	if report.TotalRows != 4 || report.ValidRows != 2 || report.InvalidRows != 2 || report.DuplicateCount != 2 {
		t.Errorf("Unexpected report: %+v", report)
	}
	if report.Success {
		t.Error("Expected success=false with invalid rows")
	}
	if report.Errors[0].Row != 4 || report.Errors[1].Row != 5 {
		t.Errorf("Unexpected error rows: %+v", report.Errors)
	}
	if len(report.PreviewData) != 2 {
		t.Errorf("Expected 2 preview rows, got %d", len(report.PreviewData))
	}

	var count int64
	db.Model(&entity.DetailedTask{}).Count(&count)
	if count != 0 {
		t.Errorf("Validate must not write, got %d tasks", count)
	}
}

func TestImportProjects(t *testing.T) {
	db, svcs := setup(t)
	ctx := context.Background()
	testutil.SeedProject(t, db, "기존 프로젝트")

	csv := "name,description,status,priority,manager,start_date,end_date,budget\n" +
		"신규 프로젝트,설명,active,high,홍길동,2024-01-01,2024-12-31,\"1,000,000\"\n" +
		"기존 프로젝트,설명,planning,low,김영수,,,\n" +
		"잘못된 상태,설명,running,low,김영수,,,\n"

	res, err := svcs.Import.ImportProjects(ctx, "projects.csv", []byte(csv))
	if err != nil {
		t.Fatalf("ImportProjects: %v", err)
	}
	if res.SuccessfulImports != 1 || res.FailedImports != 2 {
		t.Fatalf("Unexpected result: %+v", res)
	}
	if len(res.Created) != 1 || res.Created[0] != "신규 프로젝트" {
		t.Errorf("Unexpected created list: %v", res.Created)
	}
	if res.ArchiveKey != "" {
		t.Errorf("Archive disabled, expected empty key, got %q", res.ArchiveKey)
	}

	p, err := svcs.Project.GetByName(ctx, "신규 프로젝트")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if p.Budget == nil || *p.Budget != 1000000 || p.StartDate.String() != "2024-01-01" {
		t.Errorf("Unexpected project: %+v", p.Project)
	}
}

func TestTemplates(t *testing.T) {
	_, svcs := setup(t)

	f, err := svcs.Import.TaskTemplate("csv")
	if err != nil {
		t.Fatalf("TaskTemplate: %v", err)
	}
	if f.Filename != "detailed_tasks_template.csv" || !bytes.HasPrefix(f.Data, []byte(bom)) {
		t.Errorf("Unexpected csv template: %s", f.Filename)
	}
	table, err := sheet.Read(f.Filename, f.Data)
	if err != nil {
		t.Fatalf("Read template: %v", err)
	}
	if len(table.Rows) != 2 || table.Rows[0].Get("project") != "AI개발" {
		t.Errorf("Unexpected template rows: %+v", table.Rows)
	}

	f, err = svcs.Import.ProjectTemplate("xlsx")
	if err != nil {
		t.Fatalf("ProjectTemplate: %v", err)
	}
	if f.ContentType != sheet.ContentTypeXLSX {
		t.Errorf("Unexpected content type %s", f.ContentType)
	}
	table, err = sheet.Read(f.Filename, f.Data)
	if err != nil {
		t.Fatalf("Read xlsx template: %v", err)
	}
	if missing := table.Missing(service.ProjectRequiredColumns...); len(missing) != 0 {
		t.Errorf("Template missing required columns %v", missing)
	}

	_, err = svcs.Import.ProjectTemplate("pdf")
	expectValidation(t, err, "format")

	guide := svcs.Import.TaskGuide(10 << 20)
	if guide.FileSizeLimit != "10MB" || len(guide.RequiredColumns) != 3 {
		t.Errorf("Unexpected guide: %+v", guide)
	}
	if !reflect.DeepEqual(guide.SupportedFormats, []string{"CSV", "XLSX"}) {
		t.Errorf("Unexpected supported formats: %v", guide.SupportedFormats)
	}
}

func TestExports(t *testing.T) {
	db, svcs := setup(t)
	ctx := context.Background()
	p := testutil.SeedProject(t, db, "Alpha")
	testutil.SeedReport(t, db, p.ID, "2024-W01", "설계", strPtr("지연"))
	testutil.SeedReport(t, db, p.ID, "2024-W02", "개발", nil)
	task := testutil.SeedTask(t, db, p.ID, "API", "kim", 50)
	db.Model(task).Update("has_risk", true)

	f, err := svcs.Export.DetailedTasks(ctx, repository.TaskFilter{Project: "Alpha"}, "")
	if err != nil {
		t.Fatalf("DetailedTasks: %v", err)
	}
	if !bytes.HasPrefix(f.Data, []byte(bom)) {
		t.Error("CSV export must start with the UTF-8 BOM")
	}
	if f.Filename != "detailed_tasks_Alpha.csv" {
		t.Errorf("Unexpected filename %s", f.Filename)
	}
	table, err := sheet.Read(f.Filename, f.Data)
	if err != nil {
		t.Fatalf("Read export: %v", err)
	}
	if len(table.Rows) != 1 || table.Rows[0].Get("리스크 여부") != "예" || table.Rows[0].Get("진행률(%)") != "50" {
		t.Errorf("Unexpected export rows: %+v", table.Rows)
	}

	f, err = svcs.Export.WeeklySummary(ctx, "xlsx")
	if err != nil {
		t.Fatalf("WeeklySummary: %v", err)
	}
	table, err = sheet.Read(f.Filename, f.Data)
	if err != nil {
		t.Fatalf("Read xlsx export: %v", err)
	}
	if len(table.Rows) != 2 || table.Rows[0].Get("주차") != "2024-W02" || table.Rows[1].Get("총 이슈 수") != "1" {
		t.Errorf("Unexpected weekly summary rows: %+v", table.Rows)
	}

	f, err = svcs.Export.ProjectSummary(ctx, "csv")
	if err != nil {
		t.Fatalf("ProjectSummary: %v", err)
	}
	table, _ = sheet.Read(f.Filename, f.Data)
	if len(table.Rows) != 1 || table.Rows[0].Get("총 보고서 수") != "2" || table.Rows[0].Get("진행 단계") != "개발, 설계" {
		t.Errorf("Unexpected project summary rows: %+v", table.Rows)
	}

	if _, err := svcs.Export.WeeklyReports(ctx, repository.ReportFilter{}, "pdf"); !errors.As(err, new(*service.ValidationError)) {
		t.Errorf("Expected ValidationError for unknown format, got %v", err)
	}
}

package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
	"github.com/sungreong/TaskWeaver/internal/tracker/repository"
	"github.com/sungreong/TaskWeaver/internal/tracker/testutil"
)

func strPtr(s string) *string { return &s }

func TestProjectDeleteCascade(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	p := testutil.SeedProject(t, db, "Alpha")
	other := testutil.SeedProject(t, db, "Beta")
	r := testutil.SeedReport(t, db, p.ID, "2024-W10", "설계", nil)
	task := testutil.SeedTask(t, db, p.ID, "API", "kim", 50)
	otherTask := testutil.SeedTask(t, db, other.ID, "API", "lee", 10)
	root := testutil.SeedWBS(t, db, p.ID, nil, "root", 0)
	testutil.SeedWBS(t, db, p.ID, &root.ID, "child", 0)
	testutil.SeedWBS(t, db, other.ID, nil, "other root", 0)

	if err := repos.Report.LinkTasks(ctx, r.ID, []uint{task.ID}); err != nil {
		t.Fatalf("LinkTasks: %v", err)
	}

	if err := repos.Project.DeleteCascade(ctx, p.ID); err != nil {
		t.Fatalf("DeleteCascade: %v", err)
	}

	if _, err := repos.Project.FindByID(ctx, p.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	var count int64
	db.Model(&entity.WeeklyReport{}).Where("project_id = ?", p.ID).Count(&count)
	if count != 0 {
		t.Errorf("Expected reports deleted, got %d", count)
	}
	db.Model(&entity.DetailedTask{}).Where("project_id = ?", p.ID).Count(&count)
	if count != 0 {
		t.Errorf("Expected tasks deleted, got %d", count)
	}
	db.Model(&entity.WeeklyReportTask{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected links deleted, got %d", count)
	}
	db.Model(&entity.WBSTask{}).Where("project_id = ?", p.ID).Count(&count)
	if count != 0 {
		t.Errorf("Expected wbs rows deleted, got %d", count)
	}

	// 其他项目不受影响
	if _, err := repos.Task.FindByID(ctx, otherTask.ID); err != nil {
		t.Errorf("Other project's task should survive: %v", err)
	}
	rows, _ := repos.WBS.ListByProject(ctx, other.ID)
	if len(rows) != 1 {
		t.Errorf("Other project's wbs should survive, got %d rows", len(rows))
	}
}

func TestProjectDeleteCascadeNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)

	err := repos.Project.DeleteCascade(context.Background(), 999)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestWBSDeleteSubtree(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	p := testutil.SeedProject(t, db, "Alpha")
	one := testutil.SeedWBS(t, db, p.ID, nil, "1", 0)
	two := testutil.SeedWBS(t, db, p.ID, &one.ID, "2", 0)
	three := testutil.SeedWBS(t, db, p.ID, &two.ID, "3", 0)
	four := testutil.SeedWBS(t, db, p.ID, nil, "4", 1)

	deleted, err := repos.WBS.DeleteSubtree(ctx, two.ID)
	if err != nil {
		t.Fatalf("DeleteSubtree: %v", err)
	}
	if len(deleted) != 2 || deleted[0] != two.ID || deleted[1] != three.ID {
		t.Fatalf("Expected [%d %d], got %v", two.ID, three.ID, deleted)
	}

	rows, err := repos.WBS.ListByProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListByProject: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != one.ID || rows[1].ID != four.ID {
		t.Fatalf("Expected nodes 1 and 4 to remain, got %+v", rows)
	}
}

func TestWBSDeleteSubtreeNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)

	_, err := repos.WBS.DeleteSubtree(context.Background(), 42)
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestReportUniquenessAndFilters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	alpha := testutil.SeedProject(t, db, "Alpha Platform")
	beta := testutil.SeedProject(t, db, "Beta")
	testutil.SeedReport(t, db, alpha.ID, "2024-W01", "설계", nil)
	testutil.SeedReport(t, db, alpha.ID, "2024-W03", "개발", strPtr("지연"))
	testutil.SeedReport(t, db, beta.ID, "2024-W02", "개발", nil)

	dup, err := repos.Report.ExistsDuplicate(ctx, alpha.ID, "2024-W01", "설계", 0)
	if err != nil || !dup {
		t.Fatalf("Expected duplicate, got %v %v", dup, err)
	}
	dup, _ = repos.Report.ExistsDuplicate(ctx, alpha.ID, "2024-W01", "개발", 0)
	if dup {
		t.Fatal("Different stage should not be a duplicate")
	}

	byName, err := repos.Report.List(ctx, repository.ReportFilter{Project: "platform"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(byName) != 2 || byName[0].Week != "2024-W03" {
		t.Fatalf("Expected 2 alpha reports newest week first, got %+v", byName)
	}

	ranged, _ := repos.Report.List(ctx, repository.ReportFilter{StartWeek: "2024-W02", EndWeek: "2024-W03"})
	if len(ranged) != 2 {
		t.Errorf("Expected 2 reports in range, got %d", len(ranged))
	}

	paged, _ := repos.Report.List(ctx, repository.ReportFilter{Page: repository.Page{Limit: 1, Offset: 1}})
	if len(paged) != 1 || paged[0].Week != "2024-W02" {
		t.Errorf("Expected second page to hold 2024-W02, got %+v", paged)
	}

	weeks, _ := repos.Report.DistinctWeeks(ctx)
	if len(weeks) != 3 || weeks[0] != "2024-W03" {
		t.Errorf("Expected weeks descending, got %v", weeks)
	}
	stages, _ := repos.Report.DistinctStages(ctx)
	if len(stages) != 2 {
		t.Errorf("Expected 2 stages, got %v", stages)
	}
}

func TestLinkTasksReplacesSet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	p := testutil.SeedProject(t, db, "Alpha")
	r := testutil.SeedReport(t, db, p.ID, "2024-W10", "개발", nil)
	a := testutil.SeedTask(t, db, p.ID, "A", "kim", 0)
	b := testutil.SeedTask(t, db, p.ID, "B", "kim", 0)
	c := testutil.SeedTask(t, db, p.ID, "C", "kim", 0)

	if err := repos.Report.LinkTasks(ctx, r.ID, []uint{a.ID, b.ID, a.ID}); err != nil {
		t.Fatalf("LinkTasks: %v", err)
	}
	linked, _ := repos.Report.LinkedTasks(ctx, r.ID)
	if len(linked) != 2 {
		t.Fatalf("Expected 2 linked tasks, got %d", len(linked))
	}

	if err := repos.Report.LinkTasks(ctx, r.ID, []uint{c.ID}); err != nil {
		t.Fatalf("LinkTasks: %v", err)
	}
	linked, _ = repos.Report.LinkedTasks(ctx, r.ID)
	if len(linked) != 1 || linked[0].ID != c.ID {
		t.Fatalf("Expected only task C linked, got %+v", linked)
	}

	reports, _ := repos.Report.ReportsForTask(ctx, c.ID)
	if len(reports) != 1 || reports[0].ID != r.ID {
		t.Errorf("Expected report %d for task C, got %+v", r.ID, reports)
	}
	reports, _ = repos.Report.ReportsForTask(ctx, a.ID)
	if len(reports) != 0 {
		t.Errorf("Task A should no longer be linked, got %d", len(reports))
	}
}

func TestTaskFilters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	p := testutil.SeedProject(t, db, "Alpha")
	risky := testutil.SeedTask(t, db, p.ID, "Risky", "Kim Minsu", 30)
	db.Model(risky).Update("has_risk", true)
	testutil.SeedTask(t, db, p.ID, "Safe", "Lee", 80)

	yes := true
	got, err := repos.Task.List(ctx, repository.TaskFilter{HasRisk: &yes})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != risky.ID {
		t.Fatalf("Expected only the risky task, got %+v", got)
	}

	got, _ = repos.Task.List(ctx, repository.TaskFilter{Assignee: "minsu"})
	if len(got) != 1 || got[0].TaskItem != "Risky" {
		t.Errorf("Expected case-insensitive assignee match, got %+v", got)
	}

	dup, _ := repos.Task.ExistsDuplicate(ctx, p.ID, "Safe", 0)
	if !dup {
		t.Error("Expected (project, task_item) duplicate")
	}
}

func TestProjectCountBy(t *testing.T) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	ctx := context.Background()

	testutil.SeedProject(t, db, "A")
	testutil.SeedProject(t, db, "B")
	c := testutil.SeedProject(t, db, "C")
	db.Model(c).Update("status", entity.ProjectStatusCompleted)

	counts, err := repos.Project.CountBy(ctx, "status")
	if err != nil {
		t.Fatalf("CountBy: %v", err)
	}
	if counts[entity.ProjectStatusActive] != 2 || counts[entity.ProjectStatusCompleted] != 1 {
		t.Errorf("Unexpected counts: %v", counts)
	}

	names, _ := repos.Project.Names(ctx)
	if len(names) != 3 || names[0] != "A" {
		t.Errorf("Expected sorted names, got %v", names)
	}
}

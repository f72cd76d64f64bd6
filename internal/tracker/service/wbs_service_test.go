package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sungreong/TaskWeaver/internal/tracker/service"
	"github.com/sungreong/TaskWeaver/internal/tracker/testutil"
)

func uintPtr(v uint) *uint { return &v }

func TestWBSTree(t *testing.T) {
	db, svcs := setup(t)
	ctx := context.Background()
	p := testutil.SeedProject(t, db, "Alpha")

	forest, err := svcs.WBS.Tree(ctx, p.ID)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if forest == nil || len(forest) != 0 {
		t.Fatalf("Expected empty non-nil forest, got %v", forest)
	}

	root := testutil.SeedWBS(t, db, p.ID, nil, "기획", 1)
	testutil.SeedWBS(t, db, p.ID, &root.ID, "요구사항", 2)
	testutil.SeedWBS(t, db, p.ID, &root.ID, "킥오프", 1)
	testutil.SeedWBS(t, db, p.ID, nil, "착수", 0)

	forest, err = svcs.WBS.Tree(ctx, p.ID)
	if err != nil {
		t.Fatalf("Tree: %v", err)
	}
	if len(forest) != 2 || forest[0].Text != "착수" || forest[1].Text != "기획" {
		t.Fatalf("Unexpected roots: %+v", forest)
	}
	children := forest[1].Children
	if len(children) != 2 || children[0].Text != "킥오프" || children[1].Text != "요구사항" {
		t.Errorf("Unexpected children order: %+v", children)
	}

	if _, err := svcs.WBS.Tree(ctx, 999); !errors.Is(err, service.ErrProjectNotFound) {
		t.Errorf("Expected ErrProjectNotFound, got %v", err)
	}
}

func TestWBSCreateParentChecks(t *testing.T) {
	db, svcs := setup(t)
	ctx := context.Background()
	alpha := testutil.SeedProject(t, db, "Alpha")
	beta := testutil.SeedProject(t, db, "Beta")
	foreign := testutil.SeedWBS(t, db, beta.ID, nil, "beta root", 0)

	tests := []struct {
		name string
		req  service.CreateWBSRequest
		want error
	}{
		{"missing project", service.CreateWBSRequest{ProjectID: 999, Text: "x"}, service.ErrProjectNotFound},
		{"missing parent", service.CreateWBSRequest{ProjectID: alpha.ID, ParentID: uintPtr(12345), Text: "x"}, service.ErrParentNotFound},
		{"cross project parent", service.CreateWBSRequest{ProjectID: alpha.ID, ParentID: &foreign.ID, Text: "x"}, service.ErrInvalidParent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svcs.WBS.Create(ctx, &tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	_, err := svcs.WBS.Create(ctx, &service.CreateWBSRequest{ProjectID: alpha.ID, Text: "x", Progress: 120})
	expectValidation(t, err, "progress")

	root, err := svcs.WBS.Create(ctx, &service.CreateWBSRequest{ProjectID: alpha.ID, ParentID: uintPtr(0), Text: "root"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if root.ParentID != nil {
		t.Errorf("parent_id 0 should create a root, got %v", *root.ParentID)
	}
	child, err := svcs.WBS.Create(ctx, &service.CreateWBSRequest{ProjectID: alpha.ID, ParentID: &root.ID, Text: "child", StartDate: "2024-01-01", EndDate: "2024-01-31"})
	if err != nil {
		t.Fatalf("Create child: %v", err)
	}
	if child.StartDate == nil || child.StartDate.String() != "2024-01-01" {
		t.Errorf("Unexpected start date: %v", child.StartDate)
	}
}

func TestWBSReparent(t *testing.T) {
	db, svcs := setup(t)
	ctx := context.Background()
	p := testutil.SeedProject(t, db, "Alpha")
	other := testutil.SeedProject(t, db, "Beta")
	a := testutil.SeedWBS(t, db, p.ID, nil, "A", 0)
	b := testutil.SeedWBS(t, db, p.ID, &a.ID, "B", 0)
	c := testutil.SeedWBS(t, db, p.ID, &b.ID, "C", 0)
	d := testutil.SeedWBS(t, db, p.ID, nil, "D", 1)
	foreign := testutil.SeedWBS(t, db, other.ID, nil, "X", 0)

	tests := []struct {
		name   string
		id     uint
		parent uint
	}{
		{"self", a.ID, a.ID},
		{"child", a.ID, b.ID},
		{"grandchild", a.ID, c.ID},
		{"other project", d.ID, foreign.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svcs.WBS.Update(ctx, tt.id, &service.UpdateWBSRequest{ParentID: uintPtr(tt.parent)})
			if !errors.Is(err, service.ErrInvalidParent) {
				t.Errorf("Expected ErrInvalidParent, got %v", err)
			}
		})
	}

	moved, err := svcs.WBS.Update(ctx, c.ID, &service.UpdateWBSRequest{ParentID: &d.ID, Text: strPtr("C'")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if moved.ParentID == nil || *moved.ParentID != d.ID || moved.Text != "C'" {
		t.Errorf("Unexpected node: %+v", moved)
	}

	moved, err = svcs.WBS.Update(ctx, c.ID, &service.UpdateWBSRequest{ParentID: uintPtr(0)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if moved.ParentID != nil {
		t.Errorf("Expected root after parent_id 0, got %v", *moved.ParentID)
	}

	if _, err := svcs.WBS.Update(ctx, 999, &service.UpdateWBSRequest{}); !errors.Is(err, service.ErrWBSNotFound) {
		t.Errorf("Expected ErrWBSNotFound, got %v", err)
	}
}

func TestWBSDeleteSubtree(t *testing.T) {
	db, svcs := setup(t)
	ctx := context.Background()
	p := testutil.SeedProject(t, db, "Alpha")
	a := testutil.SeedWBS(t, db, p.ID, nil, "A", 0)
	b := testutil.SeedWBS(t, db, p.ID, &a.ID, "B", 0)
	c := testutil.SeedWBS(t, db, p.ID, &b.ID, "C", 0)
	d := testutil.SeedWBS(t, db, p.ID, nil, "D", 1)

	res, err := svcs.WBS.Delete(ctx, b.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(res.DeletedIDs) != 2 || res.DeletedIDs[0] != b.ID || res.DeletedIDs[1] != c.ID {
		t.Errorf("Unexpected deleted ids: %v", res.DeletedIDs)
	}

	forest, _ := svcs.WBS.Tree(ctx, p.ID)
	if len(forest) != 2 || forest[0].ID != a.ID || len(forest[0].Children) != 0 || forest[1].ID != d.ID {
		t.Errorf("Unexpected forest after delete: %+v", forest)
	}

	if _, err := svcs.WBS.Delete(ctx, b.ID); !errors.Is(err, service.ErrWBSNotFound) {
		t.Errorf("Expected ErrWBSNotFound, got %v", err)
	}
}

// Package wbs assembles a project's flat WBS rows into an ordered forest.
//
// Rows only carry parent pointers by id. Build indexes them in an arena and links every row in a
// single pass; rows whose parent is missing, is themselves, or only leads back into a cycle are
// rendered as roots so partially corrupt data still shows up.
package wbs

import (
	"slices"

	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
)

// Node is a WBS task with its ordered children.
type Node struct {
	entity.WBSTask
	Children []*Node `json:"children"`
}

// Build converts rows of one project into a forest ordered by sort_order.
// Every row appears exactly once in the result.
func Build(rows []entity.WBSTask) []*Node {
	arena := make([]Node, len(rows))
	index := make(map[uint]int, len(rows))
	for i, row := range rows {
		arena[i] = Node{WBSTask: row, Children: []*Node{}}
		if _, seen := index[row.ID]; !seen {
			index[row.ID] = i
		}
	}

	parent := make([]int, len(arena))
	kids := make([][]int, len(arena))
	var roots []int
	for i := range arena {
		parent[i] = -1
		pid := arena[i].ParentID
		// 重复 id 的后续行作为根
		if pid == nil || *pid == arena[i].ID || index[arena[i].ID] != i {
			roots = append(roots, i)
			continue
		}
		j, ok := index[*pid]
		if !ok || j == i {
			roots = append(roots, i)
			continue
		}
		parent[i] = j
		kids[j] = append(kids[j], i)
	}

	// Members of a parent cycle (A->B->A) are unreachable from every root.
	reached := make([]bool, len(arena))
	mark := func(start int) {
		reached[start] = true
		queue := []int{start}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, k := range kids[cur] {
				if !reached[k] {
					reached[k] = true
					queue = append(queue, k)
				}
			}
		}
	}
	for _, r := range roots {
		mark(r)
	}
	for i := range arena {
		if reached[i] {
			continue
		}
		p := parent[i]
		kids[p] = slices.DeleteFunc(kids[p], func(k int) bool { return k == i })
		parent[i] = -1
		roots = append(roots, i)
		mark(i)
	}

	bySortOrder := func(a, b *Node) int { return a.SortOrder - b.SortOrder }
	for i := range arena {
		for _, k := range kids[i] {
			arena[i].Children = append(arena[i].Children, &arena[k])
		}
		slices.SortStableFunc(arena[i].Children, bySortOrder)
	}

	forest := make([]*Node, 0, len(roots))
	for _, r := range roots {
		forest = append(forest, &arena[r])
	}
	slices.SortStableFunc(forest, bySortOrder)
	return forest
}

// Flatten lists the forest in pre-order with children dropped.
func Flatten(forest []*Node) []entity.WBSTask {
	var rows []entity.WBSTask
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			rows = append(rows, n.WBSTask)
			walk(n.Children)
		}
	}
	walk(forest)
	return rows
}

// Count returns the number of nodes in the forest, nested ones included.
func Count(forest []*Node) int {
	total := 0
	for _, n := range forest {
		total += 1 + Count(n.Children)
	}
	return total
}

// Subtree returns rootID followed by every descendant of it, breadth first.
// It returns nil when rootID is not among rows.
func Subtree(rows []entity.WBSTask, rootID uint) []uint {
	children := make(map[uint][]uint, len(rows))
	found := false
	for _, row := range rows {
		if row.ID == rootID {
			found = true
		}
		if row.ParentID != nil && *row.ParentID != row.ID {
			children[*row.ParentID] = append(children[*row.ParentID], row.ID)
		}
	}
	if !found {
		return nil
	}

	seen := map[uint]bool{rootID: true}
	ids := []uint{rootID}
	for i := 0; i < len(ids); i++ {
		for _, c := range children[ids[i]] {
			if !seen[c] {
				seen[c] = true
				ids = append(ids, c)
			}
		}
	}
	return ids
}

// IsDescendant reports whether candidate lies in the subtree below ancestor.
func IsDescendant(rows []entity.WBSTask, ancestor, candidate uint) bool {
	if ancestor == candidate {
		return false
	}
	return slices.Contains(Subtree(rows, ancestor), candidate)
}

package tree

import (
	"errors"
	"testing"

	"github.com/docforest/docforest/internal/store"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := store.Open(store.Options{InMemory: true})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return NewService(s)
}

func newTestRepo(t *testing.T, svc *Service) *Repository {
	t.Helper()
	repo, err := svc.CreateRepository("alice", "Algo Notes", "root readme", ModeFile)
	if err != nil {
		t.Fatalf("CreateRepository failed: %v", err)
	}
	return repo
}

func TestAddRootPath(t *testing.T) {
	svc := newTestService(t)
	repo := newTestRepo(t, svc)

	doc, err := svc.AddRoot(repo.ID, "main", "alice", "Sorting", "")
	if err != nil {
		t.Fatalf("AddRoot failed: %v", err)
	}
	if doc.ID != 1 {
		t.Errorf("first document id = %d, want 1", doc.ID)
	}
	if doc.Path != "/1" {
		t.Errorf("root path = %q, want %q", doc.Path, "/1")
	}
	if doc.ParentID != nil {
		t.Errorf("root parent = %v, want nil", *doc.ParentID)
	}
}

func TestAddChildPath(t *testing.T) {
	svc := newTestService(t)
	repo := newTestRepo(t, svc)

	parent, err := svc.AddRoot(repo.ID, "main", "alice", "Sorting", "")
	if err != nil {
		t.Fatalf("AddRoot failed: %v", err)
	}
	child, err := svc.AddChild(repo.ID, "main", parent.ID, "alice", "Quicksort", "")
	if err != nil {
		t.Fatalf("AddChild failed: %v", err)
	}
	if want := parent.Path + "/2"; child.Path != want {
		t.Errorf("child path = %q, want %q", child.Path, want)
	}
}

func TestAddChildMissingParent(t *testing.T) {
	svc := newTestService(t)
	repo := newTestRepo(t, svc)

	_, err := svc.AddChild(repo.ID, "main", 42, "alice", "Orphan", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDocIDsScopedPerBranch(t *testing.T) {
	svc := newTestService(t)
	repo := newTestRepo(t, svc)

	a, err := svc.AddRoot(repo.ID, "main", "alice", "A", "")
	if err != nil {
		t.Fatalf("AddRoot failed: %v", err)
	}
	b, err := svc.AddRoot(repo.ID, "dev", "alice", "B", "")
	if err != nil {
		t.Fatalf("AddRoot failed: %v", err)
	}
	if a.ID != 1 || b.ID != 1 {
		t.Errorf("ids = %d and %d, want both 1 (independent scopes)", a.ID, b.ID)
	}
}

func TestNextIDMonotonic(t *testing.T) {
	svc := newTestService(t)
	repo := newTestRepo(t, svc)

	for i := 0; i < 5; i++ {
		if _, err := svc.AddRoot(repo.ID, "main", "alice", "doc", ""); err != nil {
			t.Fatalf("AddRoot failed: %v", err)
		}
	}
	// Removing a middle document must not let the allocator reuse the max.
	if _, err := svc.DeleteSubtree(repo.ID, "main", 3); err != nil {
		t.Fatalf("DeleteSubtree failed: %v", err)
	}
	doc, err := svc.AddRoot(repo.ID, "main", "alice", "doc", "")
	if err != nil {
		t.Fatalf("AddRoot failed: %v", err)
	}
	if doc.ID <= 5 {
		t.Errorf("allocated id %d, want > 5", doc.ID)
	}
}

func TestBlockIDsIndependentFromDocIDs(t *testing.T) {
	svc := newTestService(t)
	repo := newTestRepo(t, svc)

	doc, err := svc.AddRoot(repo.ID, "main", "alice", "Doc", "")
	if err != nil {
		t.Fatalf("AddRoot failed: %v", err)
	}
	block, err := svc.CreateBlock(repo.ID, "main", doc.ID, "alice", "Card", "text")
	if err != nil {
		t.Fatalf("CreateBlock failed: %v", err)
	}
	if block.ID != 1 {
		t.Errorf("first block id = %d, want 1 (independent counter)", block.ID)
	}
}

func TestGetChildrenOrdering(t *testing.T) {
	svc := newTestService(t)
	repo := newTestRepo(t, svc)

	parent, err := svc.AddRoot(repo.ID, "main", "alice", "Parent", "")
	if err != nil {
		t.Fatalf("AddRoot failed: %v", err)
	}
	for _, spec := range []struct {
		title string
		order int
	}{
		{"third", 5},
		{"first", 1},
		{"second", 1}, // same order, created later, higher id breaks the tie
	} {
		doc, err := svc.AddChild(repo.ID, "main", parent.ID, "alice", spec.title, "")
		if err != nil {
			t.Fatalf("AddChild failed: %v", err)
		}
		if err := svc.SetDocumentOrder(repo.ID, "main", doc.ID, spec.order); err != nil {
			t.Fatalf("SetDocumentOrder failed: %v", err)
		}
	}

	children, err := svc.GetChildren(repo.ID, "main", &parent.ID)
	if err != nil {
		t.Fatalf("GetChildren failed: %v", err)
	}
	var titles []string
	for _, c := range children {
		titles = append(titles, c.Title)
	}
	want := []string{"first", "second", "third"}
	for i := range want {
		if titles[i] != want[i] {
			t.Errorf("children order = %v, want %v", titles, want)
			break
		}
	}
}

func TestDeleteSubtreePrefixExact(t *testing.T) {
	svc := newTestService(t)
	repo := newTestRepo(t, svc)

	// Create 10 roots so that document 10 has path "/10", which shares a
	// string prefix with "/1" but is outside its subtree.
	var docs []*Document
	for i := 0; i < 10; i++ {
		d, err := svc.AddRoot(repo.ID, "main", "alice", "doc", "")
		if err != nil {
			t.Fatalf("AddRoot failed: %v", err)
		}
		docs = append(docs, d)
	}
	child, err := svc.AddChild(repo.ID, "main", docs[0].ID, "alice", "child of 1", "")
	if err != nil {
		t.Fatalf("AddChild failed: %v", err)
	}

	deleted, err := svc.DeleteSubtree(repo.ID, "main", docs[0].ID)
	if err != nil {
		t.Fatalf("DeleteSubtree failed: %v", err)
	}
	if len(deleted) != 2 {
		t.Errorf("deleted %v, want exactly [1 %d]", deleted, child.ID)
	}
	if _, err := svc.GetDocument(repo.ID, "main", 10); err != nil {
		t.Errorf("document 10 should survive deleting subtree of 1: %v", err)
	}
	if _, err := svc.GetDocument(repo.ID, "main", child.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("descendant should be deleted, got %v", err)
	}
}

func TestMoveDocumentRecomputesPaths(t *testing.T) {
	svc := newTestService(t)
	repo := newTestRepo(t, svc)

	a, _ := svc.AddRoot(repo.ID, "main", "alice", "A", "")
	b, _ := svc.AddRoot(repo.ID, "main", "alice", "B", "")
	c, err := svc.AddChild(repo.ID, "main", a.ID, "alice", "C", "")
	if err != nil {
		t.Fatalf("AddChild failed: %v", err)
	}

	moved, err := svc.MoveDocument(repo.ID, "main", a.ID, &b.ID)
	if err != nil {
		t.Fatalf("MoveDocument failed: %v", err)
	}
	if want := "/2/1"; moved.Path != want {
		t.Errorf("moved path = %q, want %q", moved.Path, want)
	}

	got, err := svc.GetDocument(repo.ID, "main", c.ID)
	if err != nil {
		t.Fatalf("GetDocument failed: %v", err)
	}
	if want := "/2/1/3"; got.Path != want {
		t.Errorf("descendant path = %q, want %q", got.Path, want)
	}
}

func TestMoveDocumentRejectsCycles(t *testing.T) {
	svc := newTestService(t)
	repo := newTestRepo(t, svc)

	a, _ := svc.AddRoot(repo.ID, "main", "alice", "A", "")
	b, err := svc.AddChild(repo.ID, "main", a.ID, "alice", "B", "")
	if err != nil {
		t.Fatalf("AddChild failed: %v", err)
	}

	tests := []struct {
		name      string
		did       int
		newParent int
	}{
		{"self parent", a.ID, a.ID},
		{"under own descendant", a.ID, b.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.MoveDocument(repo.ID, "main", tt.did, &tt.newParent)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestClearBranch(t *testing.T) {
	svc := newTestService(t)
	repo := newTestRepo(t, svc)

	doc, _ := svc.AddRoot(repo.ID, "main", "alice", "A", "")
	if _, err := svc.CreateBlock(repo.ID, "main", doc.ID, "alice", "card", ""); err != nil {
		t.Fatalf("CreateBlock failed: %v", err)
	}
	if _, err := svc.AddRoot(repo.ID, "dev", "alice", "Other", ""); err != nil {
		t.Fatalf("AddRoot failed: %v", err)
	}

	if err := svc.ClearBranch(repo.ID, "main"); err != nil {
		t.Fatalf("ClearBranch failed: %v", err)
	}

	docs, err := svc.ListDocuments(repo.ID, "main")
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	blocks, err := svc.ListBlocks(repo.ID, "main")
	if err != nil {
		t.Fatalf("ListBlocks failed: %v", err)
	}
	if len(docs) != 0 || len(blocks) != 0 {
		t.Errorf("cleared branch has %d docs and %d blocks, want 0/0", len(docs), len(blocks))
	}

	other, err := svc.ListDocuments(repo.ID, "dev")
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(other) != 1 {
		t.Errorf("other branch lost data: %d docs, want 1", len(other))
	}
}

func TestDeleteRepositoryCascades(t *testing.T) {
	svc := newTestService(t)
	repo := newTestRepo(t, svc)

	doc, _ := svc.AddRoot(repo.ID, "main", "alice", "A", "")
	if _, err := svc.CreateBlock(repo.ID, "main", doc.ID, "alice", "card", ""); err != nil {
		t.Fatalf("CreateBlock failed: %v", err)
	}

	if err := svc.DeleteRepository(repo.ID); err != nil {
		t.Fatalf("DeleteRepository failed: %v", err)
	}
	if _, err := svc.GetRepository(repo.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	docs, err := svc.ListDocuments(repo.ID, "main")
	if err != nil {
		t.Fatalf("ListDocuments failed: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("documents survived repository delete: %d", len(docs))
	}
}

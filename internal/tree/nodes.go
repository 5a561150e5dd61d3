package tree

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docforest/docforest/internal/store"
)

// AddRoot creates a root document in (rpid, branch).
func (s *Service) AddRoot(rpid int, branch, owner, title, content string) (*Document, error) {
	return s.addDocument(rpid, branch, nil, owner, title, content)
}

// AddChild creates a document under parentID in (rpid, branch).
// Fails with ErrNotFound if the parent does not exist in that scope.
func (s *Service) AddChild(rpid int, branch string, parentID int, owner, title, content string) (*Document, error) {
	return s.addDocument(rpid, branch, &parentID, owner, title, content)
}

func (s *Service) addDocument(rpid int, branch string, parentID *int, owner, title, content string) (*Document, error) {
	branch = NormalizeBranch(branch)

	var parentPath string
	if parentID != nil {
		parent, err := s.GetDocument(rpid, branch, *parentID)
		if err != nil {
			return nil, err
		}
		parentPath = parent.Path
	}

	did, err := s.nextDocID(rpid, branch)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	doc := &Document{
		ID:        did,
		RepoID:    rpid,
		Branch:    branch,
		ParentID:  parentID,
		Path:      fmt.Sprintf("%s/%d", parentPath, did),
		Title:     title,
		Content:   content,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Put(docKey(rpid, branch, did), doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// GetDocument loads one document from (rpid, branch).
func (s *Service) GetDocument(rpid int, branch string, did int) (*Document, error) {
	var doc Document
	err := s.store.Get(docKey(rpid, branch, did), &doc)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: document %d in repository %d branch %q", ErrNotFound, did, rpid, branch)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments returns all documents of (rpid, branch), unordered.
func (s *Service) ListDocuments(rpid int, branch string) ([]Document, error) {
	var docs []Document
	err := s.store.List(docPrefix(rpid, branch), func(_ string, value []byte) error {
		var d Document
		if err := decode(value, &d); err != nil {
			return err
		}
		docs = append(docs, d)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// GetChildren returns the direct children of parentID, ordered by order
// ascending with id as tie-break. A nil parentID selects the roots.
func (s *Service) GetChildren(rpid int, branch string, parentID *int) ([]Document, error) {
	docs, err := s.ListDocuments(rpid, branch)
	if err != nil {
		return nil, err
	}

	var children []Document
	for _, d := range docs {
		if parentID == nil && d.ParentID == nil {
			children = append(children, d)
		} else if parentID != nil && d.ParentID != nil && *d.ParentID == *parentID {
			children = append(children, d)
		}
	}
	sortSiblings(children)
	return children, nil
}

// EditDocument updates title and content in place and bumps UpdatedAt.
func (s *Service) EditDocument(rpid int, branch string, did int, title, content string) (*Document, error) {
	doc, err := s.GetDocument(rpid, branch, did)
	if err != nil {
		return nil, err
	}
	doc.Title = title
	doc.Content = content
	doc.UpdatedAt = time.Now()
	if err := s.store.Put(docKey(rpid, branch, did), doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SetDocumentOrder updates the sibling ordering key.
func (s *Service) SetDocumentOrder(rpid int, branch string, did, order int) error {
	doc, err := s.GetDocument(rpid, branch, did)
	if err != nil {
		return err
	}
	doc.Order = order
	doc.UpdatedAt = time.Now()
	return s.store.Put(docKey(rpid, branch, did), doc)
}

// MoveDocument reparents a document. A nil newParentID moves it to the root.
// The move is rejected with ErrValidation when the proposed parent is the
// document itself or one of its descendants. Paths are recomputed for the
// moved document and its whole subtree.
func (s *Service) MoveDocument(rpid int, branch string, did int, newParentID *int) (*Document, error) {
	doc, err := s.GetDocument(rpid, branch, did)
	if err != nil {
		return nil, err
	}

	var newParentPath string
	if newParentID != nil {
		if *newParentID == did {
			return nil, fmt.Errorf("%w: document %d cannot be its own parent", ErrValidation, did)
		}
		parent, err := s.GetDocument(rpid, branch, *newParentID)
		if err != nil {
			return nil, err
		}
		// Walk up from the proposed parent; finding the moved document
		// among its ancestors means the move would create a cycle.
		if err := s.checkAncestry(rpid, branch, parent, did); err != nil {
			return nil, err
		}
		newParentPath = parent.Path
	}

	oldPath := doc.Path
	doc.ParentID = newParentID
	doc.Path = fmt.Sprintf("%s/%d", newParentPath, did)
	doc.UpdatedAt = time.Now()
	if err := s.store.Put(docKey(rpid, branch, did), doc); err != nil {
		return nil, err
	}

	// Rewrite the stored paths of every descendant.
	if err := s.rewriteSubtreePaths(rpid, branch, oldPath, doc.Path); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Service) checkAncestry(rpid int, branch string, start *Document, forbidden int) error {
	cur := start
	for {
		if cur.ID == forbidden {
			return fmt.Errorf("%w: moving document %d under its own descendant", ErrValidation, forbidden)
		}
		if cur.ParentID == nil {
			return nil
		}
		parent, err := s.GetDocument(rpid, branch, *cur.ParentID)
		if err != nil {
			// Broken parent link terminates the walk.
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			return err
		}
		cur = parent
	}
}

func (s *Service) rewriteSubtreePaths(rpid int, branch, oldPath, newPath string) error {
	docs, err := s.ListDocuments(rpid, branch)
	if err != nil {
		return err
	}
	for i := range docs {
		d := &docs[i]
		if !strings.HasPrefix(d.Path, oldPath+"/") {
			continue
		}
		d.Path = newPath + strings.TrimPrefix(d.Path, oldPath)
		d.UpdatedAt = time.Now()
		if err := s.store.Put(docKey(rpid, branch, d.ID), d); err != nil {
			return err
		}
	}
	return nil
}

// DeleteSubtree removes the document and every descendant, matching by
// materialized path. It returns the ids of all deleted documents; cascading
// deletion of their blocks is the caller's responsibility.
func (s *Service) DeleteSubtree(rpid int, branch string, did int) ([]int, error) {
	doc, err := s.GetDocument(rpid, branch, did)
	if err != nil {
		return nil, err
	}

	docs, err := s.ListDocuments(rpid, branch)
	if err != nil {
		return nil, err
	}

	var deleted []int
	for _, d := range docs {
		if d.Path != doc.Path && !strings.HasPrefix(d.Path, doc.Path+"/") {
			continue
		}
		if err := s.store.Delete(docKey(rpid, branch, d.ID)); err != nil {
			return deleted, err
		}
		deleted = append(deleted, d.ID)
	}
	return deleted, nil
}

// ClearBranch destructively removes every document and block of (rpid, branch).
// Used before importing a freshly pulled remote tree.
func (s *Service) ClearBranch(rpid int, branch string) error {
	branch = NormalizeBranch(branch)
	if err := s.store.DeletePrefix(docPrefix(rpid, branch)); err != nil {
		return err
	}
	return s.store.DeletePrefix(blockPrefix(rpid, branch))
}

// BumpDocumentViews increments the view counter.
func (s *Service) BumpDocumentViews(rpid int, branch string, did int) error {
	doc, err := s.GetDocument(rpid, branch, did)
	if err != nil {
		return err
	}
	doc.Views++
	return s.store.Put(docKey(rpid, branch, did), doc)
}

package tree

import (
	"log/slog"
	"sort"
	"strings"
)

// CreateBranch adds name to the repository's branch set, makes it the
// current branch, and deep-copies the prior current branch's tree into it.
// The copy is best-effort: a copy failure is logged but does not undo the
// branch creation.
func (s *Service) CreateBranch(rpid int, name string) (*Repository, error) {
	repo, err := s.GetRepository(rpid)
	if err != nil {
		return nil, err
	}

	name = NormalizeBranch(name)
	source := repo.CurrentBranch

	if !repo.HasBranch(name) {
		repo.Branches = append(repo.Branches, name)
	}
	repo.CurrentBranch = name
	if err := s.saveRepository(repo); err != nil {
		return nil, err
	}

	if err := s.CloneBranchData(rpid, source, name, repo.Owner); err != nil {
		slog.Error("Branch data clone failed", "rpid", rpid, "source", source, "target", name, "error", err)
	}

	slog.Info("Branch created", "rpid", rpid, "branch", name, "cloned_from", source)
	return repo, nil
}

// SwitchBranch sets the current branch without validating membership in the
// branch set; a branch that was never created simply has an empty tree.
func (s *Service) SwitchBranch(rpid int, name string) (*Repository, error) {
	repo, err := s.GetRepository(rpid)
	if err != nil {
		return nil, err
	}

	repo.CurrentBranch = NormalizeBranch(name)
	if err := s.saveRepository(repo); err != nil {
		return nil, err
	}
	return repo, nil
}

// CloneBranchData deep-copies every document and block of (rpid, source)
// into (rpid, target), allocating fresh ids in the target scope. Documents
// are recreated root-first so parents exist before their children; a child
// whose recreated parent is missing is skipped rather than failing the copy.
// Cloning a branch onto itself is a no-op.
func (s *Service) CloneBranchData(rpid int, source, target, owner string) error {
	source = NormalizeBranch(source)
	target = NormalizeBranch(target)
	if source == target {
		return nil
	}

	docs, err := s.ListDocuments(rpid, source)
	if err != nil {
		return err
	}

	// Root-first: shallower paths have fewer separators.
	sort.SliceStable(docs, func(i, j int) bool {
		di := strings.Count(docs[i].Path, "/")
		dj := strings.Count(docs[j].Path, "/")
		if di != dj {
			return di < dj
		}
		return docs[i].ID < docs[j].ID
	})

	idMap := make(map[int]int, len(docs))
	for _, doc := range docs {
		var copied *Document
		if doc.ParentID == nil {
			copied, err = s.AddRoot(rpid, target, owner, doc.Title, doc.Content)
		} else {
			newParent, ok := idMap[*doc.ParentID]
			if !ok {
				slog.Warn("Skipping orphaned document during branch clone",
					"rpid", rpid, "source", source, "did", doc.ID, "parent", *doc.ParentID)
				continue
			}
			copied, err = s.AddChild(rpid, target, newParent, owner, doc.Title, doc.Content)
		}
		if err != nil {
			return err
		}

		copied.Order = doc.Order
		if err := s.store.Put(docKey(rpid, target, copied.ID), copied); err != nil {
			return err
		}
		idMap[doc.ID] = copied.ID

		blocks, err := s.ListBlocksOfDoc(rpid, source, doc.ID)
		if err != nil {
			return err
		}
		for _, b := range blocks {
			copiedBlock, err := s.CreateBlock(rpid, target, copied.ID, owner, b.Title, b.Content)
			if err != nil {
				return err
			}
			copiedBlock.Order = b.Order
			if err := s.store.Put(blockKey(rpid, target, copiedBlock.ID), copiedBlock); err != nil {
				return err
			}
		}
	}

	return nil
}

package tree

import (
	"log/slog"
	"time"
)

// BackfillOrder assigns explicit sibling order values to documents and blocks
// that predate the order field. Siblings are numbered in their current
// display sequence (order ascending, id ascending), so running the migration
// again reproduces the same assignment; it is safe to run repeatedly.
// Returns the number of records rewritten.
func (s *Service) BackfillOrder(rpid int) (int, error) {
	repo, err := s.GetRepository(rpid)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, branch := range repo.Branches {
		n, err := s.backfillBranch(rpid, branch)
		if err != nil {
			return changed, err
		}
		changed += n
	}

	slog.Info("Order backfill complete", "rpid", rpid, "rewritten", changed)
	return changed, nil
}

func (s *Service) backfillBranch(rpid int, branch string) (int, error) {
	docs, err := s.ListDocuments(rpid, branch)
	if err != nil {
		return 0, err
	}

	// Group documents by parent, then number each sibling group.
	groups := make(map[int][]Document)
	const rootGroup = 0 // document ids start at 1, so 0 is free
	for _, d := range docs {
		key := rootGroup
		if d.ParentID != nil {
			key = *d.ParentID
		}
		groups[key] = append(groups[key], d)
	}

	changed := 0
	for _, siblings := range groups {
		sortSiblings(siblings)
		for i, d := range siblings {
			if d.Order == i {
				continue
			}
			d.Order = i
			d.UpdatedAt = time.Now()
			if err := s.store.Put(docKey(rpid, branch, d.ID), &d); err != nil {
				return changed, err
			}
			changed++
		}
	}

	blocks, err := s.ListBlocks(rpid, branch)
	if err != nil {
		return changed, err
	}
	blockGroups := make(map[int][]Block)
	for _, b := range blocks {
		blockGroups[b.DocID] = append(blockGroups[b.DocID], b)
	}
	for _, owned := range blockGroups {
		sortBlocks(owned)
		for i, b := range owned {
			if b.Order == i {
				continue
			}
			b.Order = i
			b.UpdatedAt = time.Now()
			if err := s.store.Put(blockKey(rpid, branch, b.ID), &b); err != nil {
				return changed, err
			}
			changed++
		}
	}

	return changed, nil
}

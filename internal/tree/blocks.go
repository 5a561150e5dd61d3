package tree

import (
	"errors"
	"fmt"
	"time"

	"github.com/docforest/docforest/internal/store"
)

// CreateBlock creates a block under an existing document in (rpid, branch).
func (s *Service) CreateBlock(rpid int, branch string, did int, owner, title, content string) (*Block, error) {
	branch = NormalizeBranch(branch)

	if _, err := s.GetDocument(rpid, branch, did); err != nil {
		return nil, err
	}

	bid, err := s.nextBlockID(rpid, branch)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	block := &Block{
		ID:        bid,
		DocID:     did,
		RepoID:    rpid,
		Branch:    branch,
		Title:     title,
		Content:   content,
		Owner:     owner,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Put(blockKey(rpid, branch, bid), block); err != nil {
		return nil, err
	}
	return block, nil
}

// GetBlock loads one block from (rpid, branch).
func (s *Service) GetBlock(rpid int, branch string, bid int) (*Block, error) {
	var block Block
	err := s.store.Get(blockKey(rpid, branch, bid), &block)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: block %d in repository %d branch %q", ErrNotFound, bid, rpid, branch)
	}
	if err != nil {
		return nil, err
	}
	return &block, nil
}

// EditBlock updates title and content in place and bumps UpdatedAt.
func (s *Service) EditBlock(rpid int, branch string, bid int, title, content string) (*Block, error) {
	block, err := s.GetBlock(rpid, branch, bid)
	if err != nil {
		return nil, err
	}
	block.Title = title
	block.Content = content
	block.UpdatedAt = time.Now()
	if err := s.store.Put(blockKey(rpid, branch, bid), block); err != nil {
		return nil, err
	}
	return block, nil
}

// SetBlockOrder updates the sibling ordering key.
func (s *Service) SetBlockOrder(rpid int, branch string, bid, order int) error {
	block, err := s.GetBlock(rpid, branch, bid)
	if err != nil {
		return err
	}
	block.Order = order
	block.UpdatedAt = time.Now()
	return s.store.Put(blockKey(rpid, branch, bid), block)
}

// DeleteBlock removes one block.
func (s *Service) DeleteBlock(rpid int, branch string, bid int) error {
	if _, err := s.GetBlock(rpid, branch, bid); err != nil {
		return err
	}
	return s.store.Delete(blockKey(rpid, branch, bid))
}

// ListBlocks returns all blocks of (rpid, branch), unordered.
func (s *Service) ListBlocks(rpid int, branch string) ([]Block, error) {
	var blocks []Block
	err := s.store.List(blockPrefix(rpid, branch), func(_ string, value []byte) error {
		var b Block
		if err := decode(value, &b); err != nil {
			return err
		}
		blocks = append(blocks, b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

// ListBlocksOfDoc returns the blocks owned by one document, ordered by
// order ascending with id as tie-break.
func (s *Service) ListBlocksOfDoc(rpid int, branch string, did int) ([]Block, error) {
	blocks, err := s.ListBlocks(rpid, branch)
	if err != nil {
		return nil, err
	}

	var owned []Block
	for _, b := range blocks {
		if b.DocID == did {
			owned = append(owned, b)
		}
	}
	sortBlocks(owned)
	return owned, nil
}

// DeleteBlocksOfDocs removes every block owned by any of the given documents.
// Used as the cascade step after a subtree delete.
func (s *Service) DeleteBlocksOfDocs(rpid int, branch string, dids []int) error {
	if len(dids) == 0 {
		return nil
	}
	owned := make(map[int]bool, len(dids))
	for _, did := range dids {
		owned[did] = true
	}

	blocks, err := s.ListBlocks(rpid, branch)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		if !owned[b.DocID] {
			continue
		}
		if err := s.store.Delete(blockKey(rpid, branch, b.ID)); err != nil {
			return err
		}
	}
	return nil
}

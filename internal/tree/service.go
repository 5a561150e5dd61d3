package tree

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/docforest/docforest/internal/store"
)

var (
	// ErrNotFound indicates the addressed repository, document or block
	// does not exist in the addressed scope.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates a malformed or structurally illegal request,
	// such as a reparent that would introduce a cycle.
	ErrValidation = errors.New("validation failed")
)

// Service is the typed access layer over the document store. It owns id
// allocation and all structural invariants of the tree.
type Service struct {
	store *store.Store
}

// NewService creates a tree service over the given store.
func NewService(s *store.Store) *Service {
	return &Service{store: s}
}

// Key layout. The ":" separator cannot appear in branch names (NormalizeBranch
// strips it), so prefixes are unambiguous even for branch names with slashes.
func repoKey(rpid int) string {
	return fmt.Sprintf("repo:%d", rpid)
}

func docPrefix(rpid int, branch string) string {
	return fmt.Sprintf("doc:%d:%s:", rpid, branch)
}

func docKey(rpid int, branch string, did int) string {
	return fmt.Sprintf("%s%d", docPrefix(rpid, branch), did)
}

func blockPrefix(rpid int, branch string) string {
	return fmt.Sprintf("blk:%d:%s:", rpid, branch)
}

func blockKey(rpid int, branch string, bid int) string {
	return fmt.Sprintf("%s%d", blockPrefix(rpid, branch), bid)
}

// NormalizeBranch trims the name, strips key-separator characters and
// falls back to the default branch for empty input.
func NormalizeBranch(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ReplaceAll(name, ":", "")
	if name == "" {
		return DefaultBranch
	}
	return name
}

// nextRepoID allocates the next repository id.
//
// Allocation is max-scan-plus-one, not atomic: two concurrent calls in the
// same scope can observe the same maximum. Contention is expected to be a
// single editor per branch; replacing this with an atomic counter is a known
// hardening step.
func (s *Service) nextRepoID() (int, error) {
	return s.nextID("repo:", func(value []byte) (int, error) {
		var r Repository
		if err := decode(value, &r); err != nil {
			return 0, err
		}
		return r.ID, nil
	})
}

// nextDocID allocates the next document id in (rpid, branch).
func (s *Service) nextDocID(rpid int, branch string) (int, error) {
	return s.nextID(docPrefix(rpid, branch), func(value []byte) (int, error) {
		var d Document
		if err := decode(value, &d); err != nil {
			return 0, err
		}
		return d.ID, nil
	})
}

// nextBlockID allocates the next block id in (rpid, branch), counted
// independently from document ids.
func (s *Service) nextBlockID(rpid int, branch string) (int, error) {
	return s.nextID(blockPrefix(rpid, branch), func(value []byte) (int, error) {
		var b Block
		if err := decode(value, &b); err != nil {
			return 0, err
		}
		return b.ID, nil
	})
}

func (s *Service) nextID(prefix string, idOf func([]byte) (int, error)) (int, error) {
	maxID := 0
	err := s.store.List(prefix, func(_ string, value []byte) error {
		id, err := idOf(value)
		if err != nil {
			return err
		}
		if id > maxID {
			maxID = id
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("id allocation scan failed: %w", err)
	}
	return maxID + 1, nil
}

func decode(value []byte, out any) error {
	if err := json.Unmarshal(value, out); err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}
	return nil
}

// sortSiblings orders documents by order ascending, id ascending as tie-break.
func sortSiblings(docs []Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Order != docs[j].Order {
			return docs[i].Order < docs[j].Order
		}
		return docs[i].ID < docs[j].ID
	})
}

// sortBlocks orders blocks by order ascending, id ascending as tie-break.
func sortBlocks(blocks []Block) {
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].Order != blocks[j].Order {
			return blocks[i].Order < blocks[j].Order
		}
		return blocks[i].ID < blocks[j].ID
	})
}

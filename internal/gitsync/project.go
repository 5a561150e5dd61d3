package gitsync

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/docforest/docforest/internal/tree"
)

// Projector renders a branch's document/block tree into a directory and
// file layout: one directory per document, README.md for document content,
// one markdown file per block, and a .keep marker in childless directories.
type Projector struct {
	tree *tree.Service
}

// NewProjector creates a projector over the given tree service.
func NewProjector(t *tree.Service) *Projector {
	return &Projector{tree: t}
}

// Project writes the (rpid, branch) tree under targetDir. The repository's
// own content becomes targetDir/README.md when non-empty.
func (p *Projector) Project(rpid int, branch, targetDir string) error {
	repo, err := p.tree.GetRepository(rpid)
	if err != nil {
		return err
	}

	docs, err := p.tree.ListDocuments(rpid, branch)
	if err != nil {
		return err
	}

	// Parent -> ordered children index; 0 collects the roots (ids start at 1).
	children := make(map[int][]tree.Document)
	for _, d := range docs {
		parent := 0
		if d.ParentID != nil {
			parent = *d.ParentID
		}
		children[parent] = append(children[parent], d)
	}
	for parent := range children {
		sortDocuments(children[parent])
	}

	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}
	if repo.Content != "" {
		readme := filepath.Join(targetDir, "README.md")
		if err := os.WriteFile(readme, []byte(repo.Content), 0644); err != nil {
			return fmt.Errorf("failed to write repository readme: %w", err)
		}
	}

	for _, root := range children[0] {
		if err := p.projectDocument(rpid, branch, root, children, targetDir); err != nil {
			return err
		}
	}
	return nil
}

func (p *Projector) projectDocument(rpid int, branch string, doc tree.Document, children map[int][]tree.Document, parentDir string) error {
	dir := filepath.Join(parentDir, SanitizeTitle(doc.Title))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory for document %d: %w", doc.ID, err)
	}

	if doc.Content != "" {
		readme := filepath.Join(dir, "README.md")
		if err := os.WriteFile(readme, []byte(doc.Content), 0644); err != nil {
			return fmt.Errorf("failed to write readme for document %d: %w", doc.ID, err)
		}
	}

	blocks, err := p.tree.ListBlocksOfDoc(rpid, branch, doc.ID)
	if err != nil {
		return err
	}
	for _, b := range blocks {
		name := SanitizeTitle(b.Title) + ".md"
		if err := os.WriteFile(filepath.Join(dir, name), []byte(b.Content), 0644); err != nil {
			return fmt.Errorf("failed to write block %d: %w", b.ID, err)
		}
	}

	kids := children[doc.ID]
	for _, child := range kids {
		if err := p.projectDocument(rpid, branch, child, children, dir); err != nil {
			return err
		}
	}

	// An empty directory would not survive a commit; pin it with a marker.
	if len(blocks) == 0 && len(kids) == 0 {
		keep := filepath.Join(dir, ".keep")
		if err := os.WriteFile(keep, nil, 0644); err != nil {
			return fmt.Errorf("failed to write keep marker for document %d: %w", doc.ID, err)
		}
	}
	return nil
}

func sortDocuments(docs []tree.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		if docs[i].Order != docs[j].Order {
			return docs[i].Order < docs[j].Order
		}
		return docs[i].ID < docs[j].ID
	})
}

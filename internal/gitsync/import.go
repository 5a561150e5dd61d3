package gitsync

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docforest/docforest/internal/tree"
)

// Importer materializes document and block nodes from a directory layout,
// the inverse of the Projector. It only creates: reconciling deletions is
// the caller's job (the sync orchestrator clears the branch first).
type Importer struct {
	tree *tree.Service
}

// NewImporter creates an importer over the given tree service.
func NewImporter(t *tree.Service) *Importer {
	return &Importer{tree: t}
}

// Import walks sourceDir and creates the corresponding tree in (rpid, branch).
// The root README.md, when present, becomes the repository's content. Sibling
// ordering follows directory enumeration order; the original order values are
// not reconstructable from disk.
func (im *Importer) Import(rpid int, branch, sourceDir, owner string) error {
	if readme, err := os.ReadFile(filepath.Join(sourceDir, "README.md")); err == nil {
		content := string(readme)
		if _, err := im.tree.UpdateRepository(rpid, tree.RepositoryUpdate{Content: &content}); err != nil {
			return err
		}
	}

	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return fmt.Errorf("failed to read import directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == ".git" {
			continue
		}
		if _, err := im.importDocument(rpid, branch, filepath.Join(sourceDir, entry.Name()), entry.Name(), nil, owner); err != nil {
			return err
		}
	}
	return nil
}

func (im *Importer) importDocument(rpid int, branch, dir, name string, parentID *int, owner string) (*tree.Document, error) {
	content := ""
	if readme, err := os.ReadFile(filepath.Join(dir, "README.md")); err == nil {
		content = string(readme)
	}

	title := SanitizeTitle(name)
	var doc *tree.Document
	var err error
	if parentID == nil {
		doc, err = im.tree.AddRoot(rpid, branch, owner, title, content)
	} else {
		doc, err = im.tree.AddChild(rpid, branch, *parentID, owner, title, content)
	}
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory for document %d: %w", doc.ID, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			if entry.Name() == ".git" {
				continue
			}
			if _, err := im.importDocument(rpid, branch, filepath.Join(dir, entry.Name()), entry.Name(), &doc.ID, owner); err != nil {
				return nil, err
			}
			continue
		}

		fileName := entry.Name()
		if fileName == "README.md" || !strings.HasSuffix(fileName, ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, fileName))
		if err != nil {
			return nil, fmt.Errorf("failed to read block file %s: %w", fileName, err)
		}
		blockTitle := strings.TrimSuffix(fileName, ".md")
		if _, err := im.tree.CreateBlock(rpid, branch, doc.ID, owner, blockTitle, string(data)); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// Package search maintains per-repository Bleve indexes over document and
// block content and answers full-text queries against them.
package search

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/docforest/docforest/internal/domain"
	"github.com/docforest/docforest/internal/tree"
)

const (
	// IndexSuffix is the suffix for index directories
	IndexSuffix = ".bleve"

	// MaxBatchSize is the maximum number of entries per index batch
	MaxBatchSize = 100
)

// Indexer manages one Bleve index per repository.
type Indexer struct {
	baseDir string
	tree    *tree.Service
}

// NewIndexer creates an indexer storing indexes under baseDir.
func NewIndexer(baseDir string, t *tree.Service) *Indexer {
	return &Indexer{baseDir: baseDir, tree: t}
}

func (i *Indexer) indexPath(rpid int) string {
	return filepath.Join(i.baseDir, "indexes", fmt.Sprintf("%d%s", rpid, IndexSuffix))
}

// CreateIndexMapping creates the Bleve index mapping for tree entries.
func CreateIndexMapping() mapping.IndexMapping {
	entryMapping := bleve.NewDocumentMapping()

	titleField := bleve.NewTextFieldMapping()
	titleField.Analyzer = standard.Name
	titleField.Store = true
	entryMapping.AddFieldMappingsAt(domain.EntryFieldTitle, titleField)

	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = standard.Name
	contentField.Store = true
	contentField.IncludeTermVectors = true
	entryMapping.AddFieldMappingsAt(domain.EntryFieldContent, contentField)

	kindField := bleve.NewTextFieldMapping()
	kindField.Analyzer = keyword.Name
	kindField.Store = true
	entryMapping.AddFieldMappingsAt(domain.EntryFieldKind, kindField)

	branchField := bleve.NewTextFieldMapping()
	branchField.Analyzer = keyword.Name
	branchField.Store = true
	entryMapping.AddFieldMappingsAt(domain.EntryFieldBranch, branchField)

	pathField := bleve.NewTextFieldMapping()
	pathField.Analyzer = keyword.Name
	pathField.Store = true
	entryMapping.AddFieldMappingsAt(domain.EntryFieldPath, pathField)

	idField := bleve.NewTextFieldMapping()
	idField.Index = false
	idField.Store = true
	entryMapping.AddFieldMappingsAt(domain.EntryFieldID, idField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = entryMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// Rebuild drops and fully re-creates the repository's index from the tree,
// covering every branch in the repository's branch set. Returns the number
// of entries indexed.
func (i *Indexer) Rebuild(rpid int) (count int, err error) {
	repo, err := i.tree.GetRepository(rpid)
	if err != nil {
		return 0, err
	}

	indexPath := i.indexPath(rpid)
	if err := os.RemoveAll(indexPath); err != nil {
		return 0, fmt.Errorf("failed to drop index: %w", err)
	}

	index, err := bleve.New(indexPath, CreateIndexMapping())
	if err != nil {
		return 0, fmt.Errorf("failed to create index: %w", err)
	}
	defer func() {
		if cerr := index.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	batch := index.NewBatch()
	batchSize := 0
	flush := func() error {
		if batchSize == 0 {
			return nil
		}
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("batch index failed: %w", err)
		}
		count += batchSize
		batch = index.NewBatch()
		batchSize = 0
		return nil
	}

	for _, branch := range repo.Branches {
		docs, err := i.tree.ListDocuments(rpid, branch)
		if err != nil {
			return count, err
		}
		pathOf := make(map[int]string, len(docs))
		for _, d := range docs {
			pathOf[d.ID] = d.Path
			entry := domain.TreeEntry{
				ID:      fmt.Sprintf("doc/%s/%d", branch, d.ID),
				Kind:    domain.KindDocument,
				Branch:  branch,
				Title:   d.Title,
				Content: d.Content,
				Path:    d.Path,
			}
			if err := batch.Index(entry.ID, entry); err != nil {
				return count, fmt.Errorf("failed to index document %d: %w", d.ID, err)
			}
			batchSize++
			if batchSize >= MaxBatchSize {
				if err := flush(); err != nil {
					return count, err
				}
			}
		}

		blocks, err := i.tree.ListBlocks(rpid, branch)
		if err != nil {
			return count, err
		}
		for _, b := range blocks {
			entry := domain.TreeEntry{
				ID:      fmt.Sprintf("blk/%s/%d", branch, b.ID),
				Kind:    domain.KindBlock,
				Branch:  branch,
				Title:   b.Title,
				Content: b.Content,
				Path:    pathOf[b.DocID],
			}
			if err := batch.Index(entry.ID, entry); err != nil {
				return count, fmt.Errorf("failed to index block %d: %w", b.ID, err)
			}
			batchSize++
			if batchSize >= MaxBatchSize {
				if err := flush(); err != nil {
					return count, err
				}
			}
		}
	}

	if err := flush(); err != nil {
		return count, err
	}

	slog.Info("Index rebuilt", "rpid", rpid, "entries", count)
	return count, nil
}

// Hit is one search result.
type Hit struct {
	ID       string  `json:"id"`
	Kind     string  `json:"kind"`
	Branch   string  `json:"branch"`
	Title    string  `json:"title"`
	Path     string  `json:"path"`
	Score    float64 `json:"score"`
	Fragment string  `json:"fragment,omitempty"`
}

// Search runs a query-string search against the repository's index.
func (i *Indexer) Search(rpid int, query string, limit int) ([]Hit, error) {
	index, err := bleve.Open(i.indexPath(rpid))
	if err != nil {
		return nil, fmt.Errorf("failed to open index for repository %d: %w", rpid, err)
	}
	defer func() { _ = index.Close() }()

	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), limit, 0, false)
	req.Fields = []string{
		domain.EntryFieldKind, domain.EntryFieldBranch,
		domain.EntryFieldTitle, domain.EntryFieldPath,
	}
	req.Highlight = bleve.NewHighlightWithStyle("html")
	req.Highlight.AddField(domain.EntryFieldContent)

	result, err := index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, match := range result.Hits {
		hit := Hit{ID: match.ID, Score: match.Score}
		if v, ok := match.Fields[domain.EntryFieldKind].(string); ok {
			hit.Kind = v
		}
		if v, ok := match.Fields[domain.EntryFieldBranch].(string); ok {
			hit.Branch = v
		}
		if v, ok := match.Fields[domain.EntryFieldTitle].(string); ok {
			hit.Title = v
		}
		if v, ok := match.Fields[domain.EntryFieldPath].(string); ok {
			hit.Path = v
		}
		if fragments, ok := match.Fragments[domain.EntryFieldContent]; ok && len(fragments) > 0 {
			hit.Fragment = fragments[0]
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// IndexExists reports whether the repository has a built index.
func (i *Indexer) IndexExists(rpid int) bool {
	_, err := os.Stat(i.indexPath(rpid))
	return err == nil
}

// DeleteIndex removes the repository's index from disk.
func (i *Indexer) DeleteIndex(rpid int) error {
	return os.RemoveAll(i.indexPath(rpid))
}

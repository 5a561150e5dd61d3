package domain

// TreeEntry is the shape indexed for full-text search: one entry per
// document node or block node of a repository.
type TreeEntry struct {
	// ID uniquely identifies the entry within one repository index.
	// Format: "doc/{branch}/{did}" or "blk/{branch}/{bid}".
	ID string `json:"id"`

	// Kind is "document" or "block".
	Kind string `json:"kind"`

	// Branch is the branch partition the entry belongs to.
	Branch string `json:"branch"`

	// Title is the node title, analyzed for search.
	Title string `json:"title"`

	// Content is the node content, analyzed for search.
	Content string `json:"content"`

	// Path is the owning document's materialized path.
	Path string `json:"path"`
}

// Entry kinds.
const (
	KindDocument = "document"
	KindBlock    = "block"
)

// Bleve field name constants for consistent field references in queries and mappings.
const (
	EntryFieldID      = "id"
	EntryFieldKind    = "kind"
	EntryFieldBranch  = "branch"
	EntryFieldTitle   = "title"
	EntryFieldContent = "content"
	EntryFieldPath    = "path"
)

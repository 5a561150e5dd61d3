// Package tree implements the branchable content tree: repositories,
// document nodes, block nodes, branch lifecycle and batch mutations.
// Persistence is delegated to the store package; all identifiers are
// integers scoped to their repository (and branch, for documents and
// blocks), never globally unique.
package tree

import "time"

// Repository modes. Mode is a presentation toggle, not structural.
const (
	ModeFile       = "file"
	ModeManuscript = "manuscript"
)

// DefaultBranch is the branch every repository starts with.
const DefaultBranch = "main"

// Repository is one logical project. Documents and blocks hang off it,
// partitioned by branch name.
type Repository struct {
	ID            int       `json:"id"`
	Title         string    `json:"title"`
	Content       string    `json:"content"`
	Owner         string    `json:"owner"`
	Mode          string    `json:"mode"`
	CurrentBranch string    `json:"current_branch"`
	Branches      []string  `json:"branches"`
	RemoteURL     string    `json:"remote_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasBranch reports whether name is in the repository's branch set.
func (r *Repository) HasBranch(name string) bool {
	for _, b := range r.Branches {
		if b == name {
			return true
		}
	}
	return false
}

// Document is a node in the content tree of one (repository, branch) scope.
// Path is the materialized ancestor-id chain: "/{id}" for roots,
// "{parent.Path}/{id}" for children.
type Document struct {
	ID        int       `json:"id"`
	RepoID    int       `json:"repo_id"`
	Branch    string    `json:"branch"`
	ParentID  *int      `json:"parent_id"`
	Path      string    `json:"path"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Owner     string    `json:"owner"`
	Order     int       `json:"order"`
	Views     int       `json:"views"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Block is a leaf content unit owned by exactly one document.
// Its ID is allocated independently from document IDs, in the same
// (repository, branch) scope.
type Block struct {
	ID        int       `json:"id"`
	DocID     int       `json:"doc_id"`
	RepoID    int       `json:"repo_id"`
	Branch    string    `json:"branch"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Owner     string    `json:"owner"`
	Order     int       `json:"order"`
	Views     int       `json:"views"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

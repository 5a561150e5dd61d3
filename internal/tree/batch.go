package tree

import (
	"fmt"
	"log/slog"
	"strconv"
)

// maxResolveRounds caps the placeholder-resolution loop. Unresolvable or
// cyclic temp-id references are reported per item once the cap is exhausted.
const maxResolveRounds = 10

// BatchRequest is one editor save action: heterogeneous creates, updates and
// deletes applied against (rpid, branch) as one logical unit. Creates carry a
// client-generated temp id; a create's parent reference may name another
// create's temp id. Edges describe parent-link changes for the graph-style
// editor variant.
type BatchRequest struct {
	NodeCreates []NodeCreate `json:"node_creates"`
	NodeUpdates []NodeUpdate `json:"node_updates"`
	NodeDeletes []int        `json:"node_deletes"`
	CardCreates []CardCreate `json:"card_creates"`
	CardUpdates []CardUpdate `json:"card_updates"`
	CardDeletes []int        `json:"card_deletes"`
	EdgeCreates []Edge       `json:"edge_creates"`
	EdgeDeletes []Edge       `json:"edge_deletes"`
}

// NodeCreate creates a document. ParentID is empty for a root, a decimal
// string for an existing document id, or another create's temp id.
type NodeCreate struct {
	TempID   string `json:"temp_id"`
	ParentID string `json:"parent_id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Order    int    `json:"order"`
}

// NodeUpdate changes fields of an existing document. Nil fields are left
// untouched; a non-nil ParentID reparents (empty string moves to root).
type NodeUpdate struct {
	ID       int     `json:"id"`
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	Order    *int    `json:"order"`
	ParentID *string `json:"parent_id"`
}

// CardCreate creates a block. DocID is a decimal document id or a node
// create's temp id.
type CardCreate struct {
	TempID  string `json:"temp_id"`
	DocID   string `json:"doc_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Order   int    `json:"order"`
}

// CardUpdate changes fields of an existing block.
type CardUpdate struct {
	ID      int     `json:"id"`
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Order   *int    `json:"order"`
}

// Edge names a parent link between two documents, by real id or temp id.
type Edge struct {
	Parent string `json:"parent"`
	Child  string `json:"child"`
}

// BatchResponse maps every client temp id to its allocated real id and lists
// per-item errors. Errors never abort the batch: every independently
// resolvable item commits.
type BatchResponse struct {
	Success   bool           `json:"success"`
	NodeIDMap map[string]int `json:"node_id_map"`
	CardIDMap map[string]int `json:"card_id_map"`
	Errors    []string       `json:"errors"`
}

// ApplyBatch applies one batch mutation against (rpid, branch).
// Order of application: deletes, node creates (dependency rounds), card
// creates, node updates, card updates, edge deletes, edge creates.
func (s *Service) ApplyBatch(rpid int, branch, owner string, req BatchRequest) (*BatchResponse, error) {
	branch = NormalizeBranch(branch)
	if _, err := s.GetRepository(rpid); err != nil {
		return nil, err
	}

	resp := &BatchResponse{
		NodeIDMap: make(map[string]int),
		CardIDMap: make(map[string]int),
		Errors:    []string{},
	}

	s.applyDeletes(rpid, branch, req, resp)
	s.applyNodeCreates(rpid, branch, owner, req.NodeCreates, resp)
	s.applyCardCreates(rpid, branch, owner, req.CardCreates, resp)
	s.applyUpdates(rpid, branch, req, resp)
	s.applyEdges(rpid, branch, req, resp)

	resp.Success = len(resp.Errors) == 0
	slog.Info("Batch applied", "rpid", rpid, "branch", branch,
		"nodes_created", len(resp.NodeIDMap), "cards_created", len(resp.CardIDMap),
		"errors", len(resp.Errors))
	return resp, nil
}

func (s *Service) applyDeletes(rpid int, branch string, req BatchRequest, resp *BatchResponse) {
	for _, did := range req.NodeDeletes {
		deleted, err := s.DeleteSubtree(rpid, branch, did)
		if err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("delete node %d: %v", did, err))
			continue
		}
		if err := s.DeleteBlocksOfDocs(rpid, branch, deleted); err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("delete blocks of node %d: %v", did, err))
		}
	}
	for _, bid := range req.CardDeletes {
		if err := s.DeleteBlock(rpid, branch, bid); err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("delete card %d: %v", bid, err))
		}
	}
}

func (s *Service) applyNodeCreates(rpid int, branch, owner string, creates []NodeCreate, resp *BatchResponse) {
	pending := make([]NodeCreate, 0, len(creates))
	for _, c := range creates {
		if c.TempID == "" {
			resp.Errors = append(resp.Errors, "create node: missing temp id")
			continue
		}
		if c.Title == "" {
			resp.Errors = append(resp.Errors, fmt.Sprintf("create node %s: missing title", c.TempID))
			continue
		}
		pending = append(pending, c)
	}

	for round := 0; round < maxResolveRounds && len(pending) > 0; round++ {
		var unresolved []NodeCreate
		progressed := false

		for _, c := range pending {
			parentID, ok := resolveRef(c.ParentID, resp.NodeIDMap)
			if !ok {
				unresolved = append(unresolved, c)
				continue
			}
			progressed = true

			var doc *Document
			var err error
			if parentID == nil {
				doc, err = s.AddRoot(rpid, branch, owner, c.Title, c.Content)
			} else {
				doc, err = s.AddChild(rpid, branch, *parentID, owner, c.Title, c.Content)
			}
			if err != nil {
				resp.Errors = append(resp.Errors, fmt.Sprintf("create node %s: %v", c.TempID, err))
				continue
			}
			if c.Order != 0 {
				if err := s.SetDocumentOrder(rpid, branch, doc.ID, c.Order); err != nil {
					resp.Errors = append(resp.Errors, fmt.Sprintf("create node %s: %v", c.TempID, err))
				}
			}
			resp.NodeIDMap[c.TempID] = doc.ID
		}

		pending = unresolved
		if !progressed {
			break
		}
	}

	for _, c := range pending {
		resp.Errors = append(resp.Errors, fmt.Sprintf("create node %s: unresolvable parent reference %q", c.TempID, c.ParentID))
	}
}

func (s *Service) applyCardCreates(rpid int, branch, owner string, creates []CardCreate, resp *BatchResponse) {
	for _, c := range creates {
		if c.TempID == "" {
			resp.Errors = append(resp.Errors, "create card: missing temp id")
			continue
		}
		docID, ok := resolveRef(c.DocID, resp.NodeIDMap)
		if !ok || docID == nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("create card %s: unresolvable document reference %q", c.TempID, c.DocID))
			continue
		}

		block, err := s.CreateBlock(rpid, branch, *docID, owner, c.Title, c.Content)
		if err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("create card %s: %v", c.TempID, err))
			continue
		}
		if c.Order != 0 {
			if err := s.SetBlockOrder(rpid, branch, block.ID, c.Order); err != nil {
				resp.Errors = append(resp.Errors, fmt.Sprintf("create card %s: %v", c.TempID, err))
			}
		}
		resp.CardIDMap[c.TempID] = block.ID
	}
}

func (s *Service) applyUpdates(rpid int, branch string, req BatchRequest, resp *BatchResponse) {
	for _, u := range req.NodeUpdates {
		if err := s.applyNodeUpdate(rpid, branch, u, resp.NodeIDMap); err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("update node %d: %v", u.ID, err))
		}
	}
	for _, u := range req.CardUpdates {
		if err := s.applyCardUpdate(rpid, branch, u); err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("update card %d: %v", u.ID, err))
		}
	}
}

func (s *Service) applyNodeUpdate(rpid int, branch string, u NodeUpdate, nodeIDMap map[string]int) error {
	doc, err := s.GetDocument(rpid, branch, u.ID)
	if err != nil {
		return err
	}

	title := doc.Title
	content := doc.Content
	if u.Title != nil {
		title = *u.Title
	}
	if u.Content != nil {
		content = *u.Content
	}
	if title != doc.Title || content != doc.Content {
		if _, err := s.EditDocument(rpid, branch, u.ID, title, content); err != nil {
			return err
		}
	}
	if u.Order != nil && *u.Order != doc.Order {
		if err := s.SetDocumentOrder(rpid, branch, u.ID, *u.Order); err != nil {
			return err
		}
	}
	if u.ParentID != nil {
		newParent, ok := resolveRef(*u.ParentID, nodeIDMap)
		if !ok {
			return fmt.Errorf("%w: unresolvable parent reference %q", ErrValidation, *u.ParentID)
		}
		if _, err := s.MoveDocument(rpid, branch, u.ID, newParent); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) applyCardUpdate(rpid int, branch string, u CardUpdate) error {
	block, err := s.GetBlock(rpid, branch, u.ID)
	if err != nil {
		return err
	}

	title := block.Title
	content := block.Content
	if u.Title != nil {
		title = *u.Title
	}
	if u.Content != nil {
		content = *u.Content
	}
	if title != block.Title || content != block.Content {
		if _, err := s.EditBlock(rpid, branch, u.ID, title, content); err != nil {
			return err
		}
	}
	if u.Order != nil && *u.Order != block.Order {
		if err := s.SetBlockOrder(rpid, branch, u.ID, *u.Order); err != nil {
			return err
		}
	}
	return nil
}

// applyEdges translates edge mutations into reparent operations. An edge
// delete detaches the child to the root; an edge create attaches it under
// the resolved parent.
func (s *Service) applyEdges(rpid int, branch string, req BatchRequest, resp *BatchResponse) {
	for _, e := range req.EdgeDeletes {
		child, ok := resolveRef(e.Child, resp.NodeIDMap)
		if !ok || child == nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("delete edge: unresolvable child %q", e.Child))
			continue
		}
		if _, err := s.MoveDocument(rpid, branch, *child, nil); err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("delete edge to node %d: %v", *child, err))
		}
	}
	for _, e := range req.EdgeCreates {
		child, ok := resolveRef(e.Child, resp.NodeIDMap)
		if !ok || child == nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("create edge: unresolvable child %q", e.Child))
			continue
		}
		parent, ok := resolveRef(e.Parent, resp.NodeIDMap)
		if !ok {
			resp.Errors = append(resp.Errors, fmt.Sprintf("create edge: unresolvable parent %q", e.Parent))
			continue
		}
		if _, err := s.MoveDocument(rpid, branch, *child, parent); err != nil {
			resp.Errors = append(resp.Errors, fmt.Sprintf("create edge to node %d: %v", *child, err))
		}
	}
}

// resolveRef resolves a node reference: empty means root (nil id), a decimal
// string is a real id, anything else is looked up as a temp id in idMap.
// The second return is false when the reference cannot be resolved yet.
func resolveRef(ref string, idMap map[string]int) (*int, bool) {
	if ref == "" {
		return nil, true
	}
	if id, err := strconv.Atoi(ref); err == nil {
		return &id, true
	}
	if id, ok := idMap[ref]; ok {
		return &id, true
	}
	return nil, false
}

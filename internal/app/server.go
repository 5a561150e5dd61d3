package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docforest/docforest/internal/auth"
	"github.com/docforest/docforest/internal/config"
	"github.com/docforest/docforest/internal/gitsync"
	"github.com/docforest/docforest/internal/search"
	"github.com/docforest/docforest/internal/tree"
)

// ServerDeps contains the services the HTTP layer exposes.
// Indexer may be nil; search routes are only registered when it is set.
// With APIKeys set, every route except /health requires a valid key.
type ServerDeps struct {
	Tree       *tree.Service
	Syncer     *gitsync.Syncer
	Indexer    *search.Indexer
	APIKeys    []string
	GitTimeout time.Duration
}

// NewRouter builds the gin engine with all API routes
func NewRouter(deps ServerDeps) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())

	h := &handlers{deps: deps}

	engine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := engine.Group("/api/v1")
	api.Use(auth.NewMiddleware(deps.APIKeys))
	{
		api.POST("/repos", h.createRepo)
		api.GET("/repos", h.listRepos)
		api.GET("/repos/:rpid", h.getRepo)
		api.PATCH("/repos/:rpid", h.updateRepo)
		api.DELETE("/repos/:rpid", h.deleteRepo)

		api.POST("/repos/:rpid/batch", h.applyBatch)

		api.POST("/repos/:rpid/branches", h.createBranch)
		api.POST("/repos/:rpid/branches/switch", h.switchBranch)

		api.POST("/repos/:rpid/push", h.push)
		api.POST("/repos/:rpid/pull", h.pull)

		if deps.Indexer != nil {
			api.GET("/repos/:rpid/search", h.search)
			api.POST("/repos/:rpid/search/rebuild", h.rebuildIndex)
		}
	}

	return engine
}

// StartServer runs the engine on the configured address, blocking until it exits
func StartServer(engine *gin.Engine, settings *config.Settings) error {
	addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)
	slog.Info("Server listening (HTTP)", "addr", addr)
	return engine.Run(addr)
}

type handlers struct {
	deps ServerDeps
}

// writeError maps service errors onto HTTP statuses. Unknown errors are 500s.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, tree.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, tree.ErrValidation), errors.Is(err, gitsync.ErrInvalidRemoteURL):
		status = http.StatusBadRequest
	case errors.Is(err, gitsync.ErrConfiguration):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, gitsync.ErrExternalTool):
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func repoID(c *gin.Context) (int, bool) {
	rpid, err := strconv.Atoi(c.Param("rpid"))
	if err != nil || rpid <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid repository id"})
		return 0, false
	}
	return rpid, true
}

type createRepoRequest struct {
	Owner   string `json:"owner"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Mode    string `json:"mode"`
}

func (h *handlers) createRepo(c *gin.Context) {
	var req createRepoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	repo, err := h.deps.Tree.CreateRepository(req.Owner, req.Title, req.Content, req.Mode)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, repo)
}

func (h *handlers) listRepos(c *gin.Context) {
	repos, err := h.deps.Tree.ListRepositories()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"repos": repos})
}

// repoTreeResponse is the full tree payload for one branch of a repository.
type repoTreeResponse struct {
	Repo      *tree.Repository `json:"repo"`
	Branch    string           `json:"branch"`
	Documents []tree.Document  `json:"documents"`
	Blocks    []tree.Block     `json:"blocks"`
}

func (h *handlers) getRepo(c *gin.Context) {
	rpid, ok := repoID(c)
	if !ok {
		return
	}

	repo, err := h.deps.Tree.GetRepository(rpid)
	if err != nil {
		writeError(c, err)
		return
	}

	branch := c.Query("branch")
	if branch == "" {
		branch = repo.CurrentBranch
	}
	branch = tree.NormalizeBranch(branch)

	docs, err := h.deps.Tree.ListDocuments(rpid, branch)
	if err != nil {
		writeError(c, err)
		return
	}
	blocks, err := h.deps.Tree.ListBlocks(rpid, branch)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, repoTreeResponse{
		Repo:      repo,
		Branch:    branch,
		Documents: docs,
		Blocks:    blocks,
	})
}

type updateRepoRequest struct {
	Title     *string `json:"title"`
	Content   *string `json:"content"`
	Mode      *string `json:"mode"`
	RemoteURL *string `json:"remote_url"`
}

func (h *handlers) updateRepo(c *gin.Context) {
	rpid, ok := repoID(c)
	if !ok {
		return
	}

	var req updateRepoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	repo, err := h.deps.Tree.UpdateRepository(rpid, tree.RepositoryUpdate{
		Title:     req.Title,
		Content:   req.Content,
		Mode:      req.Mode,
		RemoteURL: req.RemoteURL,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, repo)
}

func (h *handlers) deleteRepo(c *gin.Context) {
	rpid, ok := repoID(c)
	if !ok {
		return
	}

	if err := h.deps.Tree.DeleteRepository(rpid); err != nil {
		writeError(c, err)
		return
	}
	if h.deps.Indexer != nil {
		if err := h.deps.Indexer.DeleteIndex(rpid); err != nil {
			slog.Error("Failed to delete search index", "repo", rpid, "error", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

type batchRequest struct {
	Branch string `json:"branch"`
	Owner  string `json:"owner"`
	tree.BatchRequest
}

func (h *handlers) applyBatch(c *gin.Context) {
	rpid, ok := repoID(c)
	if !ok {
		return
	}

	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	resp, err := h.deps.Tree.ApplyBatch(rpid, req.Branch, req.Owner, req.BatchRequest)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type branchRequest struct {
	Name string `json:"name"`
}

func (h *handlers) createBranch(c *gin.Context) {
	rpid, ok := repoID(c)
	if !ok {
		return
	}

	var req branchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	repo, err := h.deps.Tree.CreateBranch(rpid, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, repo)
}

func (h *handlers) switchBranch(c *gin.Context) {
	rpid, ok := repoID(c)
	if !ok {
		return
	}

	var req branchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	repo, err := h.deps.Tree.SwitchBranch(rpid, req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, repo)
}

type pushRequest struct {
	Branch string `json:"branch"`
	Note   string `json:"note"`
	Actor  string `json:"actor"`
}

func (h *handlers) push(c *gin.Context) {
	rpid, ok := repoID(c)
	if !ok {
		return
	}

	var req pushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	ctx, cancel := h.syncContext(c)
	defer cancel()

	branch, err := h.deps.Syncer.Push(ctx, rpid, req.Branch, req.Note, req.Actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "branch": branch})
}

type pullRequest struct {
	Branch string `json:"branch"`
	Actor  string `json:"actor"`
}

func (h *handlers) pull(c *gin.Context) {
	rpid, ok := repoID(c)
	if !ok {
		return
	}

	var req pullRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	ctx, cancel := h.syncContext(c)
	defer cancel()

	branch, err := h.deps.Syncer.Pull(ctx, rpid, req.Branch, req.Actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "branch": branch})
}

func (h *handlers) syncContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.deps.GitTimeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.deps.GitTimeout)
}

func (h *handlers) search(c *gin.Context) {
	rpid, ok := repoID(c)
	if !ok {
		return
	}

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter 'q'"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	hits, err := h.deps.Indexer.Search(rpid, query, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hits": hits})
}

func (h *handlers) rebuildIndex(c *gin.Context) {
	rpid, ok := repoID(c)
	if !ok {
		return
	}

	count, err := h.deps.Indexer.Rebuild(rpid)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"indexed": count})
}

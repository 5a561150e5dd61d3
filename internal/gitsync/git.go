// Package gitsync synchronizes a repository branch tree with an external
// git remote: it projects the tree to a directory layout, imports the
// inverse, and drives git subprocess calls for push and pull.
package gitsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

var (
	// ErrExternalTool indicates a git subprocess exited non-zero. The
	// wrapped message carries the subcommand and git's stderr.
	ErrExternalTool = errors.New("external tool failed")

	// ErrConfiguration indicates a missing access token or remote URL.
	ErrConfiguration = errors.New("configuration error")
)

// CommandExecutor abstracts command execution for testing.
type CommandExecutor interface {
	// Run executes a command and returns its combined output.
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// DefaultExecutor executes commands using os/exec.
type DefaultExecutor struct{}

// Run executes a command and returns its combined output.
func (e *DefaultExecutor) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// Include stderr in error message for debugging
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}

	return stdout.Bytes(), nil
}

// GitClient executes git commands against a working directory.
type GitClient struct {
	executor CommandExecutor
}

// NewGitClient creates a new GitClient with the default command executor.
func NewGitClient() *GitClient {
	return &GitClient{
		executor: &DefaultExecutor{},
	}
}

// NewGitClientWithExecutor creates a GitClient with a custom executor (for testing).
func NewGitClientWithExecutor(executor CommandExecutor) *GitClient {
	return &GitClient{
		executor: executor,
	}
}

func (g *GitClient) run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	out, err := g.executor.Run(ctx, dir, "git", args...)
	if err != nil {
		return nil, fmt.Errorf("%w: git %s: %v", ErrExternalTool, args[0], err)
	}
	return out, nil
}

// Clone clones url into dir.
func (g *GitClient) Clone(ctx context.Context, url, dir string) error {
	_, err := g.run(ctx, dir, "clone", url, ".")
	return err
}

// Init initializes an empty repository in dir.
func (g *GitClient) Init(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "init")
	return err
}

// Fetch fetches all refs from origin.
func (g *GitClient) Fetch(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "fetch", "origin")
	return err
}

// FetchBranchShallow fetches a single branch at depth 1.
func (g *GitClient) FetchBranchShallow(ctx context.Context, dir, branch string) error {
	_, err := g.run(ctx, dir, "fetch", "--depth=1", "origin", branch)
	return err
}

// Checkout switches to an existing local branch.
func (g *GitClient) Checkout(ctx context.Context, dir, branch string) error {
	_, err := g.run(ctx, dir, "checkout", branch)
	return err
}

// CheckoutNew creates and switches to a new local branch.
func (g *GitClient) CheckoutNew(ctx context.Context, dir, branch string) error {
	_, err := g.run(ctx, dir, "checkout", "-b", branch)
	return err
}

// CheckoutTrack creates a local branch tracking origin/<branch>.
func (g *GitClient) CheckoutTrack(ctx context.Context, dir, branch string) error {
	_, err := g.run(ctx, dir, "checkout", "-b", branch, "origin/"+branch)
	return err
}

// CheckoutReset creates or resets a local branch to origin/<branch>.
func (g *GitClient) CheckoutReset(ctx context.Context, dir, branch string) error {
	_, err := g.run(ctx, dir, "checkout", "-B", branch, "origin/"+branch)
	return err
}

// Pull pulls a branch from origin.
func (g *GitClient) Pull(ctx context.Context, dir, branch string) error {
	_, err := g.run(ctx, dir, "pull", "origin", branch)
	return err
}

// ConfigIdentity sets the committer identity for the working copy.
func (g *GitClient) ConfigIdentity(ctx context.Context, dir, name, email string) error {
	if _, err := g.run(ctx, dir, "config", "user.name", name); err != nil {
		return err
	}
	_, err := g.run(ctx, dir, "config", "user.email", email)
	return err
}

// AddAll stages every change in the working copy.
func (g *GitClient) AddAll(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "add", ".")
	return err
}

// HasChanges reports whether the working copy has staged or unstaged changes.
func (g *GitClient) HasChanges(ctx context.Context, dir string) (bool, error) {
	out, err := g.run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return len(bytes.TrimSpace(out)) > 0, nil
}

// Commit records a commit with the given message.
func (g *GitClient) Commit(ctx context.Context, dir, message string) error {
	_, err := g.run(ctx, dir, "commit", "-m", message)
	return err
}

// RemoteAdd registers origin.
func (g *GitClient) RemoteAdd(ctx context.Context, dir, url string) error {
	_, err := g.run(ctx, dir, "remote", "add", "origin", url)
	return err
}

// RemoteSetURL re-points origin.
func (g *GitClient) RemoteSetURL(ctx context.Context, dir, url string) error {
	_, err := g.run(ctx, dir, "remote", "set-url", "origin", url)
	return err
}

// Push pushes a branch to origin.
func (g *GitClient) Push(ctx context.Context, dir, branch string) error {
	_, err := g.run(ctx, dir, "push", "origin", branch)
	return err
}

// PushUpstream pushes a branch to origin and sets it as upstream. Used for
// brand-new repositories and branches that do not exist on the remote yet.
func (g *GitClient) PushUpstream(ctx context.Context, dir, branch string) error {
	_, err := g.run(ctx, dir, "push", "-u", "origin", branch)
	return err
}

// DefaultBranch returns the remote's default branch name (e.g. "main").
func (g *GitClient) DefaultBranch(ctx context.Context, dir string) (string, error) {
	out, err := g.run(ctx, dir, "symbolic-ref", "refs/remotes/origin/HEAD")
	if err == nil {
		// Output is like "refs/remotes/origin/main"
		ref := strings.TrimSpace(string(out))
		parts := strings.Split(ref, "/")
		if len(parts) > 0 {
			return parts[len(parts)-1], nil
		}
	}

	// Fallback: check if main exists, then master
	if _, err := g.run(ctx, dir, "rev-parse", "--verify", "origin/main"); err == nil {
		return "main", nil
	}
	if _, err := g.run(ctx, dir, "rev-parse", "--verify", "origin/master"); err == nil {
		return "master", nil
	}

	return "", fmt.Errorf("%w: could not determine default branch", ErrExternalTool)
}

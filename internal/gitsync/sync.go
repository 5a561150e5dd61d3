package gitsync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/docforest/docforest/internal/tree"
	"github.com/google/uuid"
)

// Options configures a Syncer.
type Options struct {
	// Token is the access token embedded into the remote URL. Pushing or
	// pulling without one is a configuration error.
	Token string
	// BotName and BotEmail form the committer identity.
	BotName  string
	BotEmail string
	// WorkBase is the parent directory for per-operation working copies.
	// Defaults to the system temp directory.
	WorkBase string
}

// Syncer composes the projector, importer and git driver into push and
// pull operations for one branch at a time. Every operation runs in a
// fresh, uniquely named working directory that is removed on all exit
// paths; a failure never leaves a working copy behind, but it also does
// not roll back local tree mutations an import already applied.
type Syncer struct {
	tree      *tree.Service
	git       *GitClient
	projector *Projector
	importer  *Importer
	opts      Options
}

// NewSyncer creates a syncer over the given tree service.
func NewSyncer(t *tree.Service, git *GitClient, opts Options) *Syncer {
	if opts.WorkBase == "" {
		opts.WorkBase = os.TempDir()
	}
	return &Syncer{
		tree:      t,
		git:       git,
		projector: NewProjector(t),
		importer:  NewImporter(t),
		opts:      opts,
	}
}

// Push projects (rpid, branch) to a working copy and pushes it to the
// repository's remote. An empty branch selects the current branch. Returns
// the branch that was targeted.
func (s *Syncer) Push(ctx context.Context, rpid int, branch, note, actor string) (string, error) {
	repo, branch, authURL, err := s.prepare(rpid, branch)
	if err != nil {
		return branch, err
	}

	workdir, cleanup, err := s.newWorkdir("push")
	if err != nil {
		return branch, err
	}
	defer cleanup()

	// Clone the remote; a clone failure is treated as a brand-new remote
	// repository and the working copy is initialized from scratch.
	freshRepo := false
	newBranch := false
	if err := s.git.Clone(ctx, authURL, workdir); err != nil {
		slog.Info("Clone failed, initializing new repository", "rpid", rpid, "branch", branch)
		if err := s.git.Init(ctx, workdir); err != nil {
			return branch, err
		}
		if err := s.git.CheckoutNew(ctx, workdir, branch); err != nil {
			return branch, err
		}
		freshRepo = true
	} else {
		if err := s.git.Fetch(ctx, workdir); err != nil {
			return branch, err
		}
		newBranch, err = s.checkoutBranch(ctx, workdir, branch)
		if err != nil {
			return branch, err
		}
		// Branch may be new on the remote; a failed pull is fine.
		if err := s.git.Pull(ctx, workdir, branch); err != nil {
			slog.Debug("Pull before push failed", "rpid", rpid, "branch", branch, "error", err)
		}
	}

	if err := s.git.ConfigIdentity(ctx, workdir, s.opts.BotName, s.opts.BotEmail); err != nil {
		return branch, err
	}

	// Overwrite the working copy with the projected tree. The projector
	// never writes into .git.
	if err := s.projector.Project(rpid, branch, workdir); err != nil {
		return branch, err
	}

	if err := s.git.AddAll(ctx, workdir); err != nil {
		return branch, err
	}
	changed, err := s.git.HasChanges(ctx, workdir)
	if err != nil {
		return branch, err
	}
	if changed {
		message := fmt.Sprintf("docforest: repository %d updated by %s", rpid, actor)
		if note != "" {
			message += "\n\n" + note
		}
		if err := s.git.Commit(ctx, workdir, message); err != nil {
			return branch, err
		}
	}

	if freshRepo {
		if err := s.git.RemoteAdd(ctx, workdir, authURL); err != nil {
			return branch, err
		}
	} else {
		if err := s.git.RemoteSetURL(ctx, workdir, authURL); err != nil {
			return branch, err
		}
	}

	if freshRepo || newBranch {
		err = s.git.PushUpstream(ctx, workdir, branch)
	} else {
		err = s.git.Push(ctx, workdir, branch)
		if err != nil {
			// The branch may not exist on the remote yet.
			err = s.git.PushUpstream(ctx, workdir, branch)
		}
	}
	if err != nil {
		return branch, err
	}

	slog.Info("Push complete", "rpid", rpid, "branch", branch,
		"remote", RedactToken(repo.RemoteURL), "committed", changed)
	return branch, nil
}

// Pull replaces the local (rpid, branch) tree with the remote's current
// state for that branch. All git steps run before any local mutation, so a
// fetch or checkout failure leaves the local data untouched.
func (s *Syncer) Pull(ctx context.Context, rpid int, branch, actor string) (string, error) {
	_, branch, authURL, err := s.prepare(rpid, branch)
	if err != nil {
		return branch, err
	}

	workdir, cleanup, err := s.newWorkdir("pull")
	if err != nil {
		return branch, err
	}
	defer cleanup()

	if err := s.git.Init(ctx, workdir); err != nil {
		return branch, err
	}
	if err := s.git.RemoteAdd(ctx, workdir, authURL); err != nil {
		return branch, err
	}
	if err := s.git.FetchBranchShallow(ctx, workdir, branch); err != nil {
		return branch, err
	}
	if err := s.git.CheckoutReset(ctx, workdir, branch); err != nil {
		return branch, err
	}

	// The importer only creates; clearing first makes remote deletions stick.
	if err := s.tree.ClearBranch(rpid, branch); err != nil {
		return branch, err
	}
	if err := s.importer.Import(rpid, branch, workdir, actor); err != nil {
		return branch, err
	}

	slog.Info("Pull complete", "rpid", rpid, "branch", branch)
	return branch, nil
}

// prepare validates preconditions and resolves the branch and remote URL.
// No git subprocess runs before these checks pass.
func (s *Syncer) prepare(rpid int, branch string) (*tree.Repository, string, string, error) {
	repo, err := s.tree.GetRepository(rpid)
	if err != nil {
		return nil, branch, "", err
	}
	if branch == "" {
		branch = repo.CurrentBranch
	}
	branch = tree.NormalizeBranch(branch)

	if s.opts.Token == "" {
		return nil, branch, "", fmt.Errorf("%w: git access token not configured; set it in the system settings", ErrConfiguration)
	}
	if repo.RemoteURL == "" {
		return nil, branch, "", fmt.Errorf("%w: GitHub repository not configured; set the remote URL in the repository settings", ErrConfiguration)
	}

	authURL, err := AuthenticatedRemote(repo.RemoteURL, s.opts.Token)
	if err != nil {
		return nil, branch, "", err
	}
	return repo, branch, authURL, nil
}

// checkoutBranch tries, in order: a plain checkout, a tracking checkout of
// origin/<branch>, and finally branching off the remote's default branch.
// It reports whether the branch had to be created locally.
func (s *Syncer) checkoutBranch(ctx context.Context, workdir, branch string) (bool, error) {
	if err := s.git.Checkout(ctx, workdir, branch); err == nil {
		return false, nil
	}
	if err := s.git.CheckoutTrack(ctx, workdir, branch); err == nil {
		return false, nil
	}

	defaultBranch, err := s.git.DefaultBranch(ctx, workdir)
	if err != nil {
		return false, err
	}
	if err := s.git.Checkout(ctx, workdir, defaultBranch); err != nil {
		return false, err
	}
	if err := s.git.CheckoutNew(ctx, workdir, branch); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Syncer) newWorkdir(op string) (string, func(), error) {
	dir := filepath.Join(s.opts.WorkBase, fmt.Sprintf("docforest-%s-%s", op, uuid.NewString()))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", nil, fmt.Errorf("failed to create working directory: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.Error("Failed to remove working directory", "dir", dir, "error", err)
		}
	}
	return dir, cleanup, nil
}

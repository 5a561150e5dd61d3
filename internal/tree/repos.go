package tree

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/docforest/docforest/internal/store"
)

// CreateRepository creates a new repository with an empty main branch.
func (s *Service) CreateRepository(owner, title, content, mode string) (*Repository, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: repository title is required", ErrValidation)
	}
	if mode == "" {
		mode = ModeFile
	}
	if mode != ModeFile && mode != ModeManuscript {
		return nil, fmt.Errorf("%w: unknown repository mode %q", ErrValidation, mode)
	}

	rpid, err := s.nextRepoID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	repo := &Repository{
		ID:            rpid,
		Title:         title,
		Content:       content,
		Owner:         owner,
		Mode:          mode,
		CurrentBranch: DefaultBranch,
		Branches:      []string{DefaultBranch},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Put(repoKey(rpid), repo); err != nil {
		return nil, err
	}

	slog.Info("Repository created", "rpid", rpid, "title", title, "owner", owner)
	return repo, nil
}

// GetRepository loads a repository by id.
func (s *Service) GetRepository(rpid int) (*Repository, error) {
	var repo Repository
	err := s.store.Get(repoKey(rpid), &repo)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: repository %d", ErrNotFound, rpid)
	}
	if err != nil {
		return nil, err
	}
	return &repo, nil
}

// ListRepositories returns all repositories ordered by id.
func (s *Service) ListRepositories() ([]Repository, error) {
	var repos []Repository
	err := s.store.List("repo:", func(_ string, value []byte) error {
		var r Repository
		if err := decode(value, &r); err != nil {
			return err
		}
		repos = append(repos, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].ID < repos[j].ID })
	return repos, nil
}

// RepositoryUpdate carries optional repository field changes.
// Nil fields are left untouched.
type RepositoryUpdate struct {
	Title     *string
	Content   *string
	Mode      *string
	RemoteURL *string
}

// UpdateRepository applies the given field changes and bumps UpdatedAt.
func (s *Service) UpdateRepository(rpid int, update RepositoryUpdate) (*Repository, error) {
	repo, err := s.GetRepository(rpid)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: repository title is required", ErrValidation)
		}
		repo.Title = title
	}
	if update.Content != nil {
		repo.Content = *update.Content
	}
	if update.Mode != nil {
		if *update.Mode != ModeFile && *update.Mode != ModeManuscript {
			return nil, fmt.Errorf("%w: unknown repository mode %q", ErrValidation, *update.Mode)
		}
		repo.Mode = *update.Mode
	}
	if update.RemoteURL != nil {
		repo.RemoteURL = strings.TrimSpace(*update.RemoteURL)
	}

	repo.UpdatedAt = time.Now()
	if err := s.store.Put(repoKey(rpid), repo); err != nil {
		return nil, err
	}
	return repo, nil
}

// DeleteRepository removes the repository and every document and block of
// every branch that ever carried its id.
func (s *Service) DeleteRepository(rpid int) error {
	if _, err := s.GetRepository(rpid); err != nil {
		return err
	}

	if err := s.store.DeletePrefix(fmt.Sprintf("doc:%d:", rpid)); err != nil {
		return err
	}
	if err := s.store.DeletePrefix(fmt.Sprintf("blk:%d:", rpid)); err != nil {
		return err
	}
	if err := s.store.Delete(repoKey(rpid)); err != nil {
		return err
	}

	slog.Info("Repository deleted", "rpid", rpid)
	return nil
}

// saveRepository persists a repository after in-place mutation.
func (s *Service) saveRepository(repo *Repository) error {
	repo.UpdatedAt = time.Now()
	return s.store.Put(repoKey(repo.ID), repo)
}

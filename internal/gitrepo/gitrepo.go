// Package gitrepo wraps the instance Git repository: open-or-init, staging,
// change detection and auto-commit.
package gitrepo

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Fallback identity when the repository has no user.name/user.email set.
const (
	defaultAuthorName  = "gcgit"
	defaultAuthorEmail = "gcgit@localhost"
)

// Client defines the Git operations the sync driver needs.
type Client interface {
	// AddFiles stages the given repository-relative paths.
	AddFiles(paths []string) error

	// HasChangesAfterAdd stages the paths, then reports whether any of them
	// now show a staged change, how many, and which ones.
	HasChangesAfterAdd(paths []string) (bool, int, []string, error)

	// Commit records staged changes with the given message.
	Commit(message string) error

	// ModifiedFiles returns repository-relative paths with uncommitted
	// changes (staged or not).
	ModifiedFiles() ([]string, error)
}

// defaultClient implements Client using go-git against an on-disk worktree.
type defaultClient struct {
	repo *git.Repository
}

// Open opens the repository at dir, initializing one if none exists.
func Open(dir string) (Client, error) {
	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = git.PlainInit(dir, false)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open Git repository at %s: %w", dir, err)
	}
	return &defaultClient{repo: repo}, nil
}

// Init creates a new repository at dir. It fails if one already exists.
func Init(dir string) error {
	if _, err := git.PlainInit(dir, false); err != nil {
		return fmt.Errorf("failed to initialize Git repository at %s: %w", dir, err)
	}
	return nil
}

// AddFiles stages the given repository-relative paths.
func (c *defaultClient) AddFiles(paths []string) error {
	worktree, err := c.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	for _, path := range paths {
		if _, err := worktree.Add(path); err != nil {
			return fmt.Errorf("failed to stage %s: %w", path, err)
		}
	}
	return nil
}

// HasChangesAfterAdd stages the paths and inspects the status snapshot:
// Git's own change detection decides whether a commit is warranted, so
// unchanged pulls never produce empty commits.
func (c *defaultClient) HasChangesAfterAdd(paths []string) (bool, int, []string, error) {
	if err := c.AddFiles(paths); err != nil {
		return false, 0, nil, err
	}

	worktree, err := c.repo.Worktree()
	if err != nil {
		return false, 0, nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return false, 0, nil, fmt.Errorf("failed to get status: %w", err)
	}

	var changed []string
	for _, path := range paths {
		fileStatus := status.File(path)
		if fileStatus.Staging != git.Unmodified && fileStatus.Staging != git.Untracked {
			changed = append(changed, path)
		}
	}
	return len(changed) > 0, len(changed), changed, nil
}

// Commit records staged changes. When the repository carries no configured
// identity, a fixed fallback signature is used so automation never stalls on
// missing user.name.
func (c *defaultClient) Commit(message string) error {
	worktree, err := c.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	opts := &git.CommitOptions{}
	if !hasIdentity(c.repo) {
		opts.Author = &object.Signature{
			Name:  defaultAuthorName,
			Email: defaultAuthorEmail,
			When:  time.Now(),
		}
	}

	if _, err := worktree.Commit(message, opts); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// ModifiedFiles returns every path with uncommitted changes.
func (c *defaultClient) ModifiedFiles() ([]string, error) {
	worktree, err := c.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}

	var modified []string
	for path, fileStatus := range status {
		if fileStatus.Staging == git.Unmodified && fileStatus.Worktree == git.Unmodified {
			continue
		}
		modified = append(modified, path)
	}
	return modified, nil
}

func hasIdentity(repo *git.Repository) bool {
	cfg, err := repo.ConfigScoped(config.GlobalScope)
	if err != nil {
		return false
	}
	return cfg.User.Name != "" && cfg.User.Email != ""
}

// Package gitinfo reads repository state for prompt context and status
// display.
package gitinfo

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// Status summarizes the repository at a point in time.
type Status struct {
	Branch    string
	Dirty     bool
	Modified  int
	Staged    int
	Untracked int
}

// Commit is one log entry.
type Commit struct {
	Hash    string
	Author  string
	Message string
}

// Service reads state from the repository containing dir. A dir outside
// any repository yields a Service whose InRepository reports false.
type Service struct {
	repo *git.Repository
}

// New opens the repository enclosing dir, walking up like git itself does.
func New(dir string) *Service {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return &Service{}
	}
	return &Service{repo: repo}
}

// InRepository reports whether dir was inside a git repository.
func (s *Service) InRepository() bool {
	return s.repo != nil
}

// Status returns the current branch and working tree state.
func (s *Service) Status() (*Status, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("not a git repository")
	}

	head, err := s.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to read HEAD: %w", err)
	}

	worktree, err := s.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to open worktree: %w", err)
	}
	wtStatus, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("failed to read worktree status: %w", err)
	}

	status := &Status{Branch: head.Name().Short()}
	for _, file := range wtStatus {
		switch {
		case file.Worktree == git.Untracked:
			status.Untracked++
		case file.Staging != git.Unmodified && file.Staging != git.Untracked:
			status.Staged++
		case file.Worktree != git.Unmodified:
			status.Modified++
		}
	}
	status.Dirty = status.Modified+status.Staged+status.Untracked > 0

	return status, nil
}

// Log returns up to max recent commits, newest first.
func (s *Service) Log(max int) ([]Commit, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("not a git repository")
	}

	iter, err := s.repo.Log(&git.LogOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to read log: %w", err)
	}
	defer iter.Close()

	commits := make([]Commit, 0, max)
	err = iter.ForEach(func(c *object.Commit) error {
		if len(commits) >= max {
			return storer.ErrStop
		}
		commits = append(commits, Commit{
			Hash:    c.Hash.String()[:7],
			Author:  c.Author.Name,
			Message: strings.SplitN(c.Message, "\n", 2)[0],
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate log: %w", err)
	}

	return commits, nil
}

// Summary is a one-line description for prompt context, empty when not in
// a repository.
func (s *Service) Summary() string {
	status, err := s.Status()
	if err != nil {
		return ""
	}

	if !status.Dirty {
		return fmt.Sprintf("git branch %s, clean", status.Branch)
	}
	return fmt.Sprintf("git branch %s, %d modified, %d staged, %d untracked",
		status.Branch, status.Modified, status.Staged, status.Untracked)
}

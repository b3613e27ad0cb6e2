package gitinfo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return dir, repo
}

func commitFile(t *testing.T, repo *git.Repository, dir, name, content, message string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))

	worktree, err := repo.Worktree()
	require.NoError(t, err)
	_, err = worktree.Add(name)
	require.NoError(t, err)
	_, err = worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com"},
	})
	require.NoError(t, err)
}

func TestNew_OutsideRepository(t *testing.T) {
	s := New(t.TempDir())

	assert.False(t, s.InRepository())
	assert.Empty(t, s.Summary())

	_, err := s.Status()
	require.Error(t, err)
}

func TestStatus_CleanRepository(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, repo, dir, "a.txt", "one", "initial commit")

	s := New(dir)
	require.True(t, s.InRepository())

	status, err := s.Status()
	require.NoError(t, err)
	assert.Equal(t, "master", status.Branch)
	assert.False(t, status.Dirty)
	assert.Contains(t, s.Summary(), "clean")
}

func TestStatus_CountsUntrackedAndModified(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, repo, dir, "a.txt", "one", "initial commit")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("changed"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0o644))

	status, err := New(dir).Status()
	require.NoError(t, err)
	assert.True(t, status.Dirty)
	assert.Equal(t, 1, status.Modified)
	assert.Equal(t, 1, status.Untracked)
}

func TestNew_DetectsRepoFromSubdirectory(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, repo, dir, "a.txt", "one", "initial commit")

	sub := filepath.Join(dir, "nested", "deep")
	require.NoError(t, os.MkdirAll(sub, 0o755))

	assert.True(t, New(sub).InRepository())
}

func TestLog_NewestFirstAndBounded(t *testing.T) {
	dir, repo := initRepo(t)
	commitFile(t, repo, dir, "a.txt", "one", "first commit")
	commitFile(t, repo, dir, "a.txt", "two", "second commit")
	commitFile(t, repo, dir, "a.txt", "three", "third commit\n\nwith a body")

	commits, err := New(dir).Log(2)
	require.NoError(t, err)

	require.Len(t, commits, 2)
	assert.Equal(t, "third commit", commits[0].Message)
	assert.Equal(t, "second commit", commits[1].Message)
	assert.Equal(t, "tester", commits[0].Author)
	assert.Len(t, commits[0].Hash, 7)
}

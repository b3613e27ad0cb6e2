package appcontrol

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	started [][]string
	ran     [][]string
	err     error
}

func (f *fakeRunner) Start(ctx context.Context, name string, args ...string) error {
	f.started = append(f.started, append([]string{name}, args...))
	return f.err
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) error {
	f.ran = append(f.ran, append([]string{name}, args...))
	return f.err
}

func TestOpenApplication_DarwinMapsFriendlyName(t *testing.T) {
	runner := &fakeRunner{}
	c := newController("darwin", runner, nil)

	msg, err := c.OpenApplication(context.Background(), "chrome")

	require.NoError(t, err)
	assert.Equal(t, "Opened chrome", msg)
	require.Len(t, runner.started, 1)
	assert.Equal(t, []string{"open", "-a", "Google Chrome"}, runner.started[0])
}

func TestOpenApplication_LinuxUnmappedPassesThrough(t *testing.T) {
	runner := &fakeRunner{}
	c := newController("linux", runner, nil)

	_, err := c.OpenApplication(context.Background(), "inkscape")

	require.NoError(t, err)
	assert.Equal(t, []string{"inkscape"}, runner.started[0])
}

func TestOpenApplication_WindowsUsesStart(t *testing.T) {
	runner := &fakeRunner{}
	c := newController("windows", runner, nil)

	_, err := c.OpenApplication(context.Background(), "notepad")

	require.NoError(t, err)
	assert.Equal(t, []string{"cmd", "/c", "start", "", "notepad.exe"}, runner.started[0])
}

func TestOpenApplication_LaunchFailure(t *testing.T) {
	runner := &fakeRunner{err: errors.New("no such binary")}
	c := newController("linux", runner, nil)

	_, err := c.OpenApplication(context.Background(), "ghost")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open ghost")
}

func TestCloseApplication_GracefulAndForced(t *testing.T) {
	runner := &fakeRunner{}
	c := newController("linux", runner, nil)

	msg, err := c.CloseApplication(context.Background(), "firefox", false)
	require.NoError(t, err)
	assert.Equal(t, "Closed firefox", msg)
	assert.Equal(t, []string{"pkill", "-TERM", "-i", "firefox"}, runner.ran[0])

	_, err = c.CloseApplication(context.Background(), "firefox", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"pkill", "-KILL", "-i", "firefox"}, runner.ran[1])
}

func TestCloseApplication_WindowsTaskkill(t *testing.T) {
	runner := &fakeRunner{}
	c := newController("windows", runner, nil)

	_, err := c.CloseApplication(context.Background(), "chrome", true)

	require.NoError(t, err)
	assert.Equal(t, []string{"taskkill", "/F", "/IM", "chrome.exe"}, runner.ran[0])
}

func TestCloseApplication_NoMatch(t *testing.T) {
	runner := &fakeRunner{err: errors.New("exit status 1")}
	c := newController("linux", runner, nil)

	_, err := c.CloseApplication(context.Background(), "ghost", false)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no running instances of ghost")
}

func TestOpenPath_RequiresExistingTarget(t *testing.T) {
	runner := &fakeRunner{}
	c := newController("linux", runner, nil)

	_, err := c.OpenPath(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "path not found")
	assert.Empty(t, runner.started)
}

func TestOpenPath_LaunchesOpener(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	runner := &fakeRunner{}
	c := newController("linux", runner, nil)

	msg, err := c.OpenPath(context.Background(), target)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(msg, "Opened "))
	assert.Equal(t, []string{"xdg-open", target}, runner.started[0])
}

func TestOpenURL_AddsScheme(t *testing.T) {
	runner := &fakeRunner{}
	c := newController("darwin", runner, nil)

	_, err := c.OpenURL(context.Background(), "example.com")

	require.NoError(t, err)
	assert.Equal(t, []string{"open", "https://example.com"}, runner.started[0])
}

func TestOpenURL_KeepsExplicitScheme(t *testing.T) {
	runner := &fakeRunner{}
	c := newController("linux", runner, nil)

	_, err := c.OpenURL(context.Background(), "http://localhost:8080")

	require.NoError(t, err)
	assert.Equal(t, []string{"xdg-open", "http://localhost:8080"}, runner.started[0])
}

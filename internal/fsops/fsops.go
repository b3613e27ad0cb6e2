// Package fsops performs file and directory mutations on behalf of the
// dispatcher. Every destructive call captures enough pre-state to undo
// itself and returns it as a rollback payload; path policy (traversal,
// workspace confinement) is the caller's responsibility, not enforced here.
package fsops

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/Cyclone1070/nlshell/internal/safety"
)

// fileSystem is the minimal filesystem surface the mutators need.
type fileSystem interface {
	Stat(path string) (os.FileInfo, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
	Remove(path string) error
	RemoveAll(path string) error
	ReadDir(path string) ([]os.DirEntry, error)
	WalkDir(root string, fn fs.WalkDirFunc) error
}

// OSFileSystem implements fileSystem against the local OS.
type OSFileSystem struct{}

func (OSFileSystem) Stat(path string) (os.FileInfo, error) { return os.Stat(path) }
func (OSFileSystem) ReadFile(path string) ([]byte, error)  { return os.ReadFile(path) }
func (OSFileSystem) Remove(path string) error              { return os.Remove(path) }
func (OSFileSystem) RemoveAll(path string) error           { return os.RemoveAll(path) }

func (OSFileSystem) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

func (OSFileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

func (OSFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (OSFileSystem) WalkDir(root string, fn fs.WalkDirFunc) error {
	return filepath.WalkDir(root, fn)
}

// DirEntry describes a single listing result.
type DirEntry struct {
	Name  string
	Path  string
	IsDir bool
	Size  int64
}

// FileOps executes create/read/modify/append/delete operations.
type FileOps struct {
	fs     fileSystem
	logger *slog.Logger
}

// New creates a FileOps backed by the real filesystem.
func New(logger *slog.Logger) *FileOps {
	return NewWithFS(OSFileSystem{}, logger)
}

// NewWithFS creates a FileOps with a custom filesystem (for tests).
func NewWithFS(fs fileSystem, logger *slog.Logger) *FileOps {
	if fs == nil {
		panic("fs is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileOps{fs: fs, logger: logger}
}

// CreateFile writes a new file, creating parent directories as needed.
// Fails if the target exists and overwrite is false.
func (f *FileOps) CreateFile(path, content string, overwrite bool) (string, *safety.RollbackInfo, error) {
	if _, err := f.fs.Stat(path); err == nil && !overwrite {
		return "", nil, alreadyExists(path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := f.fs.MkdirAll(dir, 0o755); err != nil {
			return "", nil, ioFailure(path, "failed to create parent directories", err)
		}
	}

	if err := f.fs.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", nil, ioFailure(path, "failed to create file", err)
	}

	f.logger.Info("created file", "path", path)
	return "Created file: " + path, &safety.RollbackInfo{Path: path}, nil
}

// ReadFile returns a file's content.
func (f *FileOps) ReadFile(path string) (string, string, error) {
	info, err := f.fs.Stat(path)
	if err != nil {
		return "", "", notFound(path, "file not found")
	}
	if info.IsDir() {
		return "", "", invalidInput(path, "not a file")
	}

	data, err := f.fs.ReadFile(path)
	if err != nil {
		return "", "", ioFailure(path, "failed to read file", err)
	}
	return fmt.Sprintf("Read %d characters from %s", len(data), path), string(data), nil
}

// ModifyFile replaces a file's content, capturing the prior content for
// rollback. Fails if the target does not exist.
func (f *FileOps) ModifyFile(path, content string) (string, *safety.RollbackInfo, error) {
	info, err := f.fs.Stat(path)
	if err != nil {
		return "", nil, notFound(path, "file not found")
	}
	if info.IsDir() {
		return "", nil, invalidInput(path, "not a file")
	}

	prior, err := f.fs.ReadFile(path)
	if err != nil {
		return "", nil, ioFailure(path, "failed to read prior content", err)
	}

	if err := f.fs.WriteFile(path, []byte(content), info.Mode().Perm()); err != nil {
		return "", nil, ioFailure(path, "failed to modify file", err)
	}

	f.logger.Info("modified file", "path", path)
	info2 := &safety.RollbackInfo{Path: path, PriorContent: prior, Perm: info.Mode().Perm()}
	return "Modified file: " + path, info2, nil
}

// AppendFile appends to a file, creating it (with empty prior content) when
// absent. Always returns a rollback payload.
func (f *FileOps) AppendFile(path, content string) (string, *safety.RollbackInfo, error) {
	var prior []byte
	perm := os.FileMode(0o644)

	info, err := f.fs.Stat(path)
	if err == nil {
		if info.IsDir() {
			return "", nil, invalidInput(path, "not a file")
		}
		perm = info.Mode().Perm()
		prior, err = f.fs.ReadFile(path)
		if err != nil {
			return "", nil, ioFailure(path, "failed to read prior content", err)
		}
	} else if dir := filepath.Dir(path); dir != "." {
		if err := f.fs.MkdirAll(dir, 0o755); err != nil {
			return "", nil, ioFailure(path, "failed to create parent directories", err)
		}
	}

	if err := f.fs.WriteFile(path, append(append([]byte{}, prior...), content...), perm); err != nil {
		return "", nil, ioFailure(path, "failed to append to file", err)
	}

	f.logger.Info("appended to file", "path", path)
	return "Appended content to " + path, &safety.RollbackInfo{Path: path, PriorContent: prior, Perm: perm}, nil
}

// DeleteFile removes a plain file, capturing its full content for
// restoration.
func (f *FileOps) DeleteFile(path string) (string, *safety.RollbackInfo, error) {
	info, err := f.fs.Stat(path)
	if err != nil {
		return "", nil, notFound(path, "file not found")
	}
	if !info.Mode().IsRegular() {
		return "", nil, invalidInput(path, "not a file")
	}

	content, err := f.fs.ReadFile(path)
	if err != nil {
		return "", nil, ioFailure(path, "failed to capture content before delete", err)
	}

	if err := f.fs.Remove(path); err != nil {
		return "", nil, ioFailure(path, "failed to delete file", err)
	}

	f.logger.Info("deleted file", "path", path)
	info2 := &safety.RollbackInfo{Path: path, PriorContent: content, Perm: info.Mode().Perm()}
	return "Deleted file: " + path, info2, nil
}

// CreateDirectory creates a directory and any missing parents.
func (f *FileOps) CreateDirectory(path string) (string, error) {
	if err := f.fs.MkdirAll(path, 0o755); err != nil {
		return "", ioFailure(path, "failed to create directory", err)
	}
	f.logger.Info("created directory", "path", path)
	return "Created directory: " + path, nil
}

// DeleteDirectory removes a directory. Non-recursive deletes fail on
// non-empty directories and return a rollback payload (the inverse of an
// empty-directory delete is a mkdir). Recursive deletes carry no payload.
func (f *FileOps) DeleteDirectory(path string, recursive bool) (string, *safety.RollbackInfo, error) {
	info, err := f.fs.Stat(path)
	if err != nil {
		return "", nil, notFound(path, "directory not found")
	}
	if !info.IsDir() {
		return "", nil, invalidInput(path, "not a directory")
	}

	if recursive {
		if err := f.fs.RemoveAll(path); err != nil {
			return "", nil, ioFailure(path, "failed to delete directory", err)
		}
		f.logger.Info("deleted directory recursively", "path", path)
		return "Deleted directory: " + path, nil, nil
	}

	entries, err := f.fs.ReadDir(path)
	if err != nil {
		return "", nil, ioFailure(path, "failed to read directory", err)
	}
	if len(entries) > 0 {
		return "", nil, invalidInput(path, "directory not empty")
	}

	if err := f.fs.Remove(path); err != nil {
		return "", nil, ioFailure(path, "failed to delete directory", err)
	}

	f.logger.Info("deleted directory", "path", path)
	return "Deleted directory: " + path, &safety.RollbackInfo{Path: path}, nil
}

// ListDirectory returns a directory's entries, directories first.
func (f *FileOps) ListDirectory(path string) (string, []DirEntry, error) {
	info, err := f.fs.Stat(path)
	if err != nil {
		return "", nil, notFound(path, "directory not found")
	}
	if !info.IsDir() {
		return "", nil, invalidInput(path, "not a directory")
	}

	raw, err := f.fs.ReadDir(path)
	if err != nil {
		return "", nil, ioFailure(path, "failed to list directory", err)
	}

	entries := make([]DirEntry, 0, len(raw))
	for _, e := range raw {
		var size int64
		if fi, err := e.Info(); err == nil && !e.IsDir() {
			size = fi.Size()
		}
		entries = append(entries, DirEntry{
			Name:  e.Name(),
			Path:  filepath.Join(path, e.Name()),
			IsDir: e.IsDir(),
			Size:  size,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Name < entries[j].Name
	})

	return fmt.Sprintf("Listed %d items in %s", len(entries), path), entries, nil
}

// SearchFiles walks dir and returns paths whose basename matches the glob
// pattern.
func (f *FileOps) SearchFiles(dir, pattern string) (string, []string, error) {
	if pattern == "" {
		pattern = "*"
	}
	info, err := f.fs.Stat(dir)
	if err != nil {
		return "", nil, notFound(dir, "directory not found")
	}
	if !info.IsDir() {
		return "", nil, invalidInput(dir, "not a directory")
	}

	var matches []string
	err = f.fs.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if d.IsDir() {
			return nil
		}
		ok, matchErr := filepath.Match(pattern, d.Name())
		if matchErr != nil {
			return matchErr
		}
		if ok {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return "", nil, invalidInput(pattern, "invalid search pattern")
	}

	return fmt.Sprintf("Found %d files matching %q in %s", len(matches), pattern, dir), matches, nil
}

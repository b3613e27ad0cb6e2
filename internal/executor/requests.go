package executor

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// ErrOutsideWorkspace marks a file target that resolves outside the current
// working directory.
var ErrOutsideWorkspace = errors.New("path is outside the working directory")

// validatePath rejects parent-directory traversal before any permission check
// or mutator call. The model is told never to emit "../"; a target that
// carries one anyway is a malformed action, not a policy question.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	for _, segment := range strings.Split(filepath.ToSlash(path), "/") {
		if segment == ".." {
			return fmt.Errorf("path %q contains parent directory traversal", path)
		}
	}
	return nil
}

// confinePath resolves a target against the working directory and rejects it
// when it lands outside. Traversal segments are caught by validatePath first,
// so the targets reaching this check escape only via an absolute path.
func confinePath(path, workDir string) error {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(workDir, abs)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(workDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrOutsideWorkspace, path)
	}
	return nil
}

// decodeParams maps the loosely typed action parameters onto a request
// struct. Unknown keys are ignored; wrong-typed values are an error.
func decodeParams(params map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(params)
}

type openAppRequest struct {
	AppName string `mapstructure:"app_name"`
}

func (r *openAppRequest) validate() error {
	if r.AppName == "" {
		return fmt.Errorf("app_name is required")
	}
	return nil
}

type closeAppRequest struct {
	AppName string `mapstructure:"app_name"`
	Force   bool   `mapstructure:"force"`
}

func (r *closeAppRequest) validate() error {
	if r.AppName == "" {
		return fmt.Errorf("app_name is required")
	}
	return nil
}

type fileContentRequest struct {
	FilePath string `mapstructure:"file_path"`
	Content  string `mapstructure:"content"`
}

func (r *fileContentRequest) validate() error {
	return validatePath(r.FilePath)
}

type filePathRequest struct {
	FilePath string `mapstructure:"file_path"`
}

func (r *filePathRequest) validate() error {
	return validatePath(r.FilePath)
}

type dirPathRequest struct {
	DirPath string `mapstructure:"dir_path"`
}

func (r *dirPathRequest) validate() error {
	return validatePath(r.DirPath)
}

type deleteDirectoryRequest struct {
	DirPath   string `mapstructure:"dir_path"`
	Recursive bool   `mapstructure:"recursive"`
}

func (r *deleteDirectoryRequest) validate() error {
	return validatePath(r.DirPath)
}

type listDirectoryRequest struct {
	DirPath string `mapstructure:"dir_path"`
}

func (r *listDirectoryRequest) validate() error {
	if r.DirPath == "" {
		r.DirPath = "."
	}
	return validatePath(r.DirPath)
}

type searchFilesRequest struct {
	Directory string `mapstructure:"directory"`
	DirPath   string `mapstructure:"dir_path"`
	Pattern   string `mapstructure:"pattern"`
}

// validate also normalizes the two directory spellings the model produces.
func (r *searchFilesRequest) validate() error {
	if r.Directory == "" {
		r.Directory = r.DirPath
	}
	if r.Directory == "" {
		r.Directory = "."
	}
	if r.Pattern == "" {
		r.Pattern = "*"
	}
	return validatePath(r.Directory)
}

type openURLRequest struct {
	URL string `mapstructure:"url"`
}

func (r *openURLRequest) validate() error {
	if r.URL == "" {
		return fmt.Errorf("url is required")
	}
	return nil
}

type runCommandRequest struct {
	Command string `mapstructure:"command"`
}

func (r *runCommandRequest) validate() error {
	if strings.TrimSpace(r.Command) == "" {
		return fmt.Errorf("command is required")
	}
	return nil
}

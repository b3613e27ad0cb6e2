// Package executor turns model replies into validated, permission-checked
// side effects and reports the outcome as user-facing text.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Cyclone1070/nlshell/internal/backend"
	"github.com/Cyclone1070/nlshell/internal/fsops"
	"github.com/Cyclone1070/nlshell/internal/interpret"
	"github.com/Cyclone1070/nlshell/internal/safety"
)

// ModelBackend is the slice of the backend router the dispatcher needs.
type ModelBackend interface {
	Send(ctx context.Context, prompt string) (string, error)
	SetSystemPrompt(prompt string)
}

// FileService performs filesystem mutations and reads.
type FileService interface {
	CreateFile(path, content string, overwrite bool) (string, *safety.RollbackInfo, error)
	ReadFile(path string) (string, string, error)
	ModifyFile(path, content string) (string, *safety.RollbackInfo, error)
	AppendFile(path, content string) (string, *safety.RollbackInfo, error)
	DeleteFile(path string) (string, *safety.RollbackInfo, error)
	CreateDirectory(path string) (string, error)
	DeleteDirectory(path string, recursive bool) (string, *safety.RollbackInfo, error)
	ListDirectory(path string) (string, []fsops.DirEntry, error)
	SearchFiles(dir, pattern string) (string, []string, error)
}

// AppService opens and closes applications, files and URLs via the OS.
type AppService interface {
	OpenApplication(ctx context.Context, name string) (string, error)
	CloseApplication(ctx context.Context, name string, force bool) (string, error)
	OpenPath(ctx context.Context, path string) (string, error)
	OpenURL(ctx context.Context, url string) (string, error)
}

// ShellService runs a user-requested shell command.
type ShellService interface {
	Run(ctx context.Context, command string) (string, error)
}

// ConfirmFunc asks the user to approve an operation the policy flags for
// confirmation. Returning false aborts the operation.
type ConfirmFunc func(ctx context.Context, op safety.Operation) bool

// unusableAnswer replaces near-empty chat replies from small or
// uncooperative models.
const unusableAnswer = "I didn't get a usable answer. Try rephrasing, or ask a more specific question."

// actionSpec maps a wire action name onto its operation kind and the
// parameter key holding the operation target.
type actionSpec struct {
	kind      safety.Kind
	targetKey string
}

var actionTable = map[string]actionSpec{
	"open_app":         {safety.KindAppOpen, "app_name"},
	"close_app":        {safety.KindAppClose, "app_name"},
	"create_file":      {safety.KindFileCreate, "file_path"},
	"append_file":      {safety.KindFileAppend, "file_path"},
	"read_file":        {safety.KindFileRead, "file_path"},
	"modify_file":      {safety.KindFileModify, "file_path"},
	"delete_file":      {safety.KindFileDelete, "file_path"},
	"open_file":        {safety.KindFileOpen, "file_path"},
	"create_directory": {safety.KindDirCreate, "dir_path"},
	"delete_directory": {safety.KindDirDelete, "dir_path"},
	"list_directory":   {safety.KindDirList, "dir_path"},
	"search_files":     {safety.KindFileSearch, "directory"},
	"open_url":         {safety.KindBrowserOpen, "url"},
	"run_command":      {safety.KindSystemCommand, "command"},
}

// RepoInfo reports version control state for prompt augmentation.
type RepoInfo interface {
	Summary() string
}

// Dispatcher owns one user turn end to end: prompt the backend, parse the
// reply into an action, gate it, perform it and record rollback state.
type Dispatcher struct {
	backend      ModelBackend
	gate         *safety.Gate
	ledger       *safety.Ledger
	files        FileService
	apps         AppService
	shell        ShellService
	confirm      ConfirmFunc
	repo         RepoInfo
	minAnswerLen int
	logOps       bool
	logger       *slog.Logger
}

// New creates a Dispatcher and installs the action system prompt on the
// backend. confirm may be nil; flagged operations then proceed with a log
// line only.
func New(mb ModelBackend, gate *safety.Gate, ledger *safety.Ledger, files FileService, apps AppService, shell ShellService, confirm ConfirmFunc, minAnswerLen int, logger *slog.Logger) *Dispatcher {
	if mb == nil {
		panic("backend is required")
	}
	if gate == nil {
		panic("gate is required")
	}
	if ledger == nil {
		panic("ledger is required")
	}
	if files == nil {
		panic("files is required")
	}
	if apps == nil {
		panic("apps is required")
	}
	if shell == nil {
		panic("shell is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	mb.SetSystemPrompt(SystemPrompt)

	return &Dispatcher{
		backend:      mb,
		gate:         gate,
		ledger:       ledger,
		files:        files,
		apps:         apps,
		shell:        shell,
		confirm:      confirm,
		minAnswerLen: minAnswerLen,
		logOps:       true,
		logger:       logger,
	}
}

// SetRepoInfo attaches an optional repository summary source; when set, its
// one-line summary is included in every augmented prompt.
func (d *Dispatcher) SetRepoInfo(repo RepoInfo) {
	d.repo = repo
}

// SetOperationLogging toggles the per-operation info log lines. Errors are
// always logged.
func (d *Dispatcher) SetOperationLogging(enabled bool) {
	d.logOps = enabled
}

// Execute runs one user turn. The returned string is always user-facing
// text; a non-nil error means the backend itself failed and the turn
// produced nothing.
func (d *Dispatcher) Execute(ctx context.Context, input string, history []backend.Message, plan *Plan) (string, error) {
	workDir, err := os.Getwd()
	if err != nil {
		workDir = "."
	}

	repoSummary := ""
	if d.repo != nil {
		repoSummary = d.repo.Summary()
	}

	reply, err := d.backend.Send(ctx, buildPrompt(input, workDir, repoSummary, history, plan))
	if err != nil {
		return "", fmt.Errorf("backend request failed: %w", err)
	}

	action := interpret.Parse(reply)
	return d.executeAction(ctx, action, workDir), nil
}

// executeAction resolves one parsed action into user-facing result text.
// Every return is terminal for the turn.
func (d *Dispatcher) executeAction(ctx context.Context, action interpret.Action, workDir string) string {
	if action.Action == interpret.ActionChat {
		return d.guardAnswer(action.Explanation)
	}

	spec, known := actionTable[action.Action]
	if !known {
		if action.Action == interpret.ActionClarify {
			return clarifyQuestion(action)
		}
		return fmt.Sprintf("Unknown action: %s", action.Action)
	}

	target := stringParam(action.Parameters, spec.targetKey)

	// Traversal and workspace escapes are rejected before any permission
	// check or mutator call; no operation is constructed or logged for them.
	if spec.kind.Category() == safety.CategoryFile && target != "" {
		if err := validatePath(target); err != nil {
			return fmt.Sprintf("Invalid path: %s", err.Error())
		}
		if err := confinePath(target, workDir); err != nil {
			return fmt.Sprintf("Invalid path: %s", err.Error())
		}
	}

	op := safety.NewOperation(spec.kind, target, action.Parameters)

	allowed, reason := d.gate.Check(op)
	if !allowed {
		if d.logOps {
			d.logger.Info("operation denied",
				slog.String("kind", string(op.Kind)),
				slog.String("target", op.Target),
				slog.String("reason", reason))
		}
		return fmt.Sprintf("Permission denied: %s", reason)
	}

	if d.gate.RequiresConfirmation(op) {
		if d.confirm == nil {
			if d.logOps {
				d.logger.Info("confirmation required, proceeding without prompt",
					slog.String("kind", string(op.Kind)),
					slog.String("target", op.Target))
			}
		} else if !d.confirm(ctx, op) {
			return fmt.Sprintf("Cancelled: %s was not confirmed", action.Action)
		}
	}

	result, undo, err := d.perform(ctx, action)
	if err != nil {
		d.logger.Error("operation failed",
			slog.String("kind", string(op.Kind)),
			slog.String("target", op.Target),
			slog.Any("error", err))
		return fmt.Sprintf("Failed to %s: %s", action.Action, err.Error())
	}

	if d.logOps {
		d.logger.Info("operation completed",
			slog.String("id", op.ID),
			slog.String("kind", string(op.Kind)),
			slog.String("target", op.Target))
	}

	if undo != nil {
		d.ledger.Record(op, undo)
	}

	if action.Explanation == "" {
		return result
	}
	return action.Explanation + "\n" + result
}

// perform dispatches to the mutator for the action. It validates parameters
// first; a malformed target never reaches a mutator.
func (d *Dispatcher) perform(ctx context.Context, action interpret.Action) (string, *safety.RollbackInfo, error) {
	params := action.Parameters

	switch action.Action {
	case "open_app":
		var req openAppRequest
		if err := decodeAndValidate(params, &req, req.validate); err != nil {
			return "", nil, err
		}
		msg, err := d.apps.OpenApplication(ctx, req.AppName)
		return msg, nil, err

	case "close_app":
		var req closeAppRequest
		if err := decodeAndValidate(params, &req, req.validate); err != nil {
			return "", nil, err
		}
		msg, err := d.apps.CloseApplication(ctx, req.AppName, req.Force)
		return msg, nil, err

	case "create_file":
		var req fileContentRequest
		if err := decodeAndValidate(params, &req, req.validate); err != nil {
			return "", nil, err
		}
		return d.files.CreateFile(req.FilePath, req.Content, false)

	case "read_file":
		var req filePathRequest
		if err := decodeAndValidate(params, &req, req.validate); err != nil {
			return "", nil, err
		}
		msg, content, err := d.files.ReadFile(req.FilePath)
		if err != nil {
			return "", nil, err
		}
		if content != "" {
			msg = "File content:\n" + content
		}
		return msg, nil, nil

	case "modify_file":
		var req fileContentRequest
		if err := decodeAndValidate(params, &req, req.validate); err != nil {
			return "", nil, err
		}
		return d.files.ModifyFile(req.FilePath, req.Content)

	case "append_file":
		var req fileContentRequest
		if err := decodeAndValidate(params, &req, req.validate); err != nil {
			return "", nil, err
		}
		return d.files.AppendFile(req.FilePath, req.Content)

	case "delete_file":
		var req filePathRequest
		if err := decodeAndValidate(params, &req, req.validate); err != nil {
			return "", nil, err
		}
		return d.files.DeleteFile(req.FilePath)

	case "open_file":
		var req filePathRequest
		if err := decodeAndValidate(params, &req, req.validate); err != nil {
			return "", nil, err
		}
		msg, err := d.apps.OpenPath(ctx, req.FilePath)
		return msg, nil, err

	case "create_directory":
		var req dirPathRequest
		if err := decodeAndValidate(params, &req, req.validate); err != nil {
			return "", nil, err
		}
		msg, err := d.files.CreateDirectory(req.DirPath)
		return msg, nil, err

	case "delete_directory":
		var req deleteDirectoryRequest
		if err := decodeAndValidate(params, &req, req.validate); err != nil {
			return "", nil, err
		}
		return d.files.DeleteDirectory(req.DirPath, req.Recursive)

	case "list_directory":
		var req listDirectoryRequest
		if err := decodeAndValidate(params, &req, req.validate); err != nil {
			return "", nil, err
		}
		msg, entries, err := d.files.ListDirectory(req.DirPath)
		if err != nil {
			return "", nil, err
		}
		if len(entries) > 0 {
			msg = "Directory contents:\n" + formatEntries(entries)
		}
		return msg, nil, nil

	case "search_files":
		var req searchFilesRequest
		if err := decodeAndValidate(params, &req, req.validate); err != nil {
			return "", nil, err
		}
		msg, matches, err := d.files.SearchFiles(req.Directory, req.Pattern)
		if err != nil {
			return "", nil, err
		}
		if len(matches) > 0 {
			msg = "Found files:\n" + strings.Join(matches, "\n")
		}
		return msg, nil, nil

	case "open_url":
		var req openURLRequest
		if err := decodeAndValidate(params, &req, req.validate); err != nil {
			return "", nil, err
		}
		msg, err := d.apps.OpenURL(ctx, req.URL)
		return msg, nil, err

	case "run_command":
		var req runCommandRequest
		if err := decodeAndValidate(params, &req, req.validate); err != nil {
			return "", nil, err
		}
		msg, err := d.shell.Run(ctx, req.Command)
		return msg, nil, err
	}

	return "", nil, fmt.Errorf("unknown action %q", action.Action)
}

// guardAnswer substitutes a fixed message when the chat answer is too short
// to be useful.
func (d *Dispatcher) guardAnswer(answer string) string {
	trimmed := strings.TrimSpace(answer)
	if len(trimmed) < d.minAnswerLen {
		return unusableAnswer
	}
	return trimmed
}

func clarifyQuestion(action interpret.Action) string {
	if action.Explanation != "" {
		return action.Explanation
	}
	if q := stringParam(action.Parameters, "question"); q != "" && q != safety.TargetUnknown {
		return q
	}
	return "Could you clarify?"
}

func decodeAndValidate(params map[string]any, out any, validate func() error) error {
	if err := decodeParams(params, out); err != nil {
		return err
	}
	return validate()
}

func stringParam(params map[string]any, key string) string {
	value, ok := params[key].(string)
	if !ok {
		return ""
	}
	return value
}

func formatEntries(entries []fsops.DirEntry) string {
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		tag := "FILE"
		if entry.IsDir {
			tag = "DIR"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", tag, entry.Name))
	}
	return strings.Join(lines, "\n")
}

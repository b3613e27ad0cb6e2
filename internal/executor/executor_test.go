package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Cyclone1070/nlshell/internal/backend"
	"github.com/Cyclone1070/nlshell/internal/fsops"
	"github.com/Cyclone1070/nlshell/internal/safety"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	reply        string
	err          error
	lastPrompt   string
	systemPrompt string
}

func (f *fakeModel) Send(ctx context.Context, prompt string) (string, error) {
	f.lastPrompt = prompt
	return f.reply, f.err
}

func (f *fakeModel) SetSystemPrompt(prompt string) { f.systemPrompt = prompt }

type fakeApps struct {
	calls []string
	err   error
}

func (f *fakeApps) OpenApplication(ctx context.Context, name string) (string, error) {
	f.calls = append(f.calls, "open:"+name)
	return "Opened " + name, f.err
}

func (f *fakeApps) CloseApplication(ctx context.Context, name string, force bool) (string, error) {
	f.calls = append(f.calls, fmt.Sprintf("close:%s:%t", name, force))
	return "Closed " + name, f.err
}

func (f *fakeApps) OpenPath(ctx context.Context, path string) (string, error) {
	f.calls = append(f.calls, "path:"+path)
	return "Opened " + path, f.err
}

func (f *fakeApps) OpenURL(ctx context.Context, url string) (string, error) {
	f.calls = append(f.calls, "url:"+url)
	return "Opened " + url, f.err
}

type fakeShell struct {
	calls []string
}

func (f *fakeShell) Run(ctx context.Context, command string) (string, error) {
	f.calls = append(f.calls, command)
	return "ran: " + command, nil
}

type fixture struct {
	model  *fakeModel
	apps   *fakeApps
	shell  *fakeShell
	ledger *safety.Ledger
	disp   *Dispatcher
}

func newFixture(t *testing.T, reply string, policy *safety.Policy) *fixture {
	t.Helper()
	t.Chdir(t.TempDir())

	if policy == nil {
		policy = safety.DefaultPolicy()
	}

	model := &fakeModel{reply: reply}
	apps := &fakeApps{}
	shell := &fakeShell{}
	ledger := safety.NewLedger(10, nil, nil)

	disp := New(model, safety.NewGate(policy), ledger, fsops.New(nil), apps, shell, nil, 2, nil)

	return &fixture{model: model, apps: apps, shell: shell, ledger: ledger, disp: disp}
}

func fenced(body string) string {
	return "```json\n" + body + "\n```"
}

func TestNew_InstallsSystemPrompt(t *testing.T) {
	f := newFixture(t, "", nil)

	assert.Contains(t, f.model.systemPrompt, `"action": "action_type"`)
}

func TestExecute_CreateFileRecordsRollback(t *testing.T) {
	f := newFixture(t, fenced(`{
		"action": "create_file",
		"parameters": {"file_path": "notes.txt", "content": "hi"},
		"explanation": "Creating notes.txt"
	}`), nil)

	result, err := f.disp.Execute(context.Background(), `create a file named notes.txt with content "hi"`, nil, nil)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result, "Creating notes.txt\n"))
	assert.FileExists(t, "notes.txt")

	history := f.ledger.History()
	require.Len(t, history, 1)
	assert.Equal(t, safety.KindFileCreate, history[0].Kind)

	require.True(t, f.ledger.Rollback(history[0].ID))
	assert.NoFileExists(t, "notes.txt")
}

func TestExecute_RunCommandDeniedByDefault(t *testing.T) {
	f := newFixture(t, fenced(`{
		"action": "run_command",
		"parameters": {"command": "rm -rf /tmp/x"},
		"explanation": "Removing the directory"
	}`), nil)

	result, err := f.disp.Execute(context.Background(), "delete that directory", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "Permission denied: System commands are disabled", result)
	assert.Empty(t, f.shell.calls)
}

func TestExecute_RunCommandAllowedWhenEnabled(t *testing.T) {
	policy := safety.DefaultPolicy()
	policy.AllowSystemCommands = true
	policy.RequireConfirmation.SystemCommands = false
	f := newFixture(t, fenced(`{
		"action": "run_command",
		"parameters": {"command": "uname -a"},
		"explanation": "Checking the kernel"
	}`), policy)

	result, err := f.disp.Execute(context.Background(), "what kernel am I on", nil, nil)

	require.NoError(t, err)
	assert.Contains(t, result, "ran: uname -a")
	assert.Equal(t, []string{"uname -a"}, f.shell.calls)
}

func TestExecute_ChatReturnsExplanation(t *testing.T) {
	f := newFixture(t, fenced(`{
		"action": "chat",
		"parameters": {},
		"explanation": "2 + 2 = 4."
	}`), nil)

	result, err := f.disp.Execute(context.Background(), "what is 2+2?", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "2 + 2 = 4.", result)
}

func TestExecute_ShortChatAnswerSubstituted(t *testing.T) {
	f := newFixture(t, fenced(`{
		"action": "chat",
		"parameters": {},
		"explanation": " "
	}`), nil)

	result, err := f.disp.Execute(context.Background(), "hello", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, unusableAnswer, result)
}

func TestExecute_ClarifyReturnsQuestion(t *testing.T) {
	f := newFixture(t, fenced(`{
		"action": "clarify",
		"parameters": {"question": "Which directory did you mean?"},
		"explanation": ""
	}`), nil)

	result, err := f.disp.Execute(context.Background(), "clean it up", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "Which directory did you mean?", result)
}

func TestExecute_UnknownActionReported(t *testing.T) {
	f := newFixture(t, fenced(`{
		"action": "frobnicate",
		"parameters": {},
		"explanation": ""
	}`), nil)

	result, err := f.disp.Execute(context.Background(), "frobnicate the widget", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "Unknown action: frobnicate", result)
}

func TestExecute_PathTraversalRejectedBeforePermissionCheck(t *testing.T) {
	f := newFixture(t, fenced(`{
		"action": "create_file",
		"parameters": {"file_path": "../evil.txt", "content": "x"},
		"explanation": "Creating the file"
	}`), nil)

	result, err := f.disp.Execute(context.Background(), "make a file one level up", nil, nil)

	require.NoError(t, err)
	assert.Contains(t, result, "Invalid path")
	assert.NoFileExists(t, "../evil.txt")
	assert.Empty(t, f.ledger.History())
}

func TestExecute_SensitivePathDenied(t *testing.T) {
	policy := safety.DefaultPolicy()
	policy.SensitivePaths = []string{"secrets"}
	f := newFixture(t, fenced(`{
		"action": "delete_file",
		"parameters": {"file_path": "secrets/creds.txt"},
		"explanation": "Deleting the file"
	}`), policy)

	require.NoError(t, os.MkdirAll("secrets", 0o755))
	require.NoError(t, os.WriteFile("secrets/creds.txt", []byte("token"), 0o644))

	result, err := f.disp.Execute(context.Background(), "delete secrets/creds.txt", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "Permission denied: Access to sensitive path denied: secrets/creds.txt", result)
	assert.FileExists(t, "secrets/creds.txt")
}

func TestExecute_AbsolutePathOutsideWorkspaceRejected(t *testing.T) {
	outside := filepath.Join(t.TempDir(), "evil.txt")
	f := newFixture(t, fenced(fmt.Sprintf(`{
		"action": "create_file",
		"parameters": {"file_path": %q, "content": "pwned"},
		"explanation": "Creating the file"
	}`, outside)), nil)

	result, err := f.disp.Execute(context.Background(), "create a file over there", nil, nil)

	require.NoError(t, err)
	assert.Contains(t, result, "Invalid path")
	assert.Contains(t, result, "outside the working directory")
	assert.NoFileExists(t, outside)
	assert.Empty(t, f.ledger.History())
}

func TestExecute_AbsolutePathInsideWorkspaceAllowed(t *testing.T) {
	f := newFixture(t, "", nil)

	cwd, err := os.Getwd()
	require.NoError(t, err)
	inside := filepath.Join(cwd, "ok.txt")
	f.model.reply = fenced(fmt.Sprintf(`{
		"action": "create_file",
		"parameters": {"file_path": %q, "content": "fine"},
		"explanation": "Creating the file"
	}`, inside))

	result, execErr := f.disp.Execute(context.Background(), "create ok.txt", nil, nil)

	require.NoError(t, execErr)
	assert.NotContains(t, result, "Invalid path")
	assert.FileExists(t, inside)
}

func TestConfinePath_WorkspaceBoundary(t *testing.T) {
	tests := []struct {
		name string
		path string
		ok   bool
	}{
		{"relative inside", "notes.txt", true},
		{"nested relative", "sub/dir/notes.txt", true},
		{"absolute inside", "/work/project/notes.txt", true},
		{"workdir itself", "/work/project", true},
		{"absolute outside", "/tmp/evil.txt", false},
		{"sibling with shared prefix", "/work/project2/notes.txt", false},
		{"parent of workdir", "/work", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := confinePath(tt.path, "/work/project")
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrOutsideWorkspace)
			}
		})
	}
}

func TestExecute_MutatorFailureReported(t *testing.T) {
	f := newFixture(t, fenced(`{
		"action": "read_file",
		"parameters": {"file_path": "missing.txt"},
		"explanation": "Reading the file"
	}`), nil)

	result, err := f.disp.Execute(context.Background(), "read missing.txt", nil, nil)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result, "Failed to read_file: "))
}

func TestExecute_ConfirmationDeclinedCancels(t *testing.T) {
	t.Chdir(t.TempDir())

	model := &fakeModel{reply: fenced(`{
		"action": "delete_file",
		"parameters": {"file_path": "keep.txt"},
		"explanation": "Deleting keep.txt"
	}`)}
	files := fsops.New(nil)
	_, _, err := files.CreateFile("keep.txt", "precious", false)
	require.NoError(t, err)

	decline := func(ctx context.Context, op safety.Operation) bool { return false }
	disp := New(model, safety.NewGate(safety.DefaultPolicy()), safety.NewLedger(10, nil, nil), files, &fakeApps{}, &fakeShell{}, decline, 2, nil)

	result, err := disp.Execute(context.Background(), "delete keep.txt", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "Cancelled: delete_file was not confirmed", result)
	assert.FileExists(t, "keep.txt")
}

func TestExecute_OpenAppDispatches(t *testing.T) {
	f := newFixture(t, fenced(`{
		"action": "open_app",
		"parameters": {"app_name": "mail"},
		"explanation": "Opening your email client"
	}`), nil)

	result, err := f.disp.Execute(context.Background(), "open my email", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "Opening your email client\nOpened mail", result)
	assert.Equal(t, []string{"open:mail"}, f.apps.calls)
}

func TestExecute_BackendErrorSurfaced(t *testing.T) {
	f := newFixture(t, "", nil)
	f.model.err = errors.New("connection refused")

	_, err := f.disp.Execute(context.Background(), "hello", nil, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestExecute_ProseReplyBecomesChat(t *testing.T) {
	f := newFixture(t, "Sure, the capital of France is Paris.", nil)

	result, err := f.disp.Execute(context.Background(), "capital of France?", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, "Sure, the capital of France is Paris.", result)
}

func TestExecute_PromptCarriesContextAndPlan(t *testing.T) {
	f := newFixture(t, fenced(`{"action": "chat", "parameters": {}, "explanation": "ok then"}`), nil)

	history := []backend.Message{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}
	plan := &Plan{GoalAnalysis: "make a file", Steps: []string{"create it"}}

	_, err := f.disp.Execute(context.Background(), "do it", history, plan)

	require.NoError(t, err)
	assert.Contains(t, f.model.lastPrompt, "Recent context:")
	assert.Contains(t, f.model.lastPrompt, "user: earlier question")
	assert.Contains(t, f.model.lastPrompt, "Current task plan:")
	assert.Contains(t, f.model.lastPrompt, "Current working directory:")
}

type fakeRepo struct {
	summary string
}

func (f *fakeRepo) Summary() string { return f.summary }

func TestExecute_PromptCarriesRepoSummary(t *testing.T) {
	f := newFixture(t, fenced(`{"action": "chat", "parameters": {}, "explanation": "ok then"}`), nil)
	f.disp.SetRepoInfo(&fakeRepo{summary: "git branch main, 2 modified"})

	_, err := f.disp.Execute(context.Background(), "what changed", nil, nil)

	require.NoError(t, err)
	assert.Contains(t, f.model.lastPrompt, "Repository state: git branch main, 2 modified")
}

func TestExecute_NoRepoSummaryWithoutRepoInfo(t *testing.T) {
	f := newFixture(t, fenced(`{"action": "chat", "parameters": {}, "explanation": "ok then"}`), nil)

	_, err := f.disp.Execute(context.Background(), "hello there", nil, nil)

	require.NoError(t, err)
	assert.NotContains(t, f.model.lastPrompt, "Repository state:")
}

func TestSetOperationLogging_SuppressesPerOperationLines(t *testing.T) {
	t.Chdir(t.TempDir())

	runTurn := func(t *testing.T, logOps bool) string {
		t.Helper()
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		model := &fakeModel{reply: fenced(`{
			"action": "create_file",
			"parameters": {"file_path": "log-check.txt", "content": "x"},
			"explanation": "Creating the file"
		}`)}
		disp := New(model, safety.NewGate(safety.DefaultPolicy()), safety.NewLedger(10, nil, logger),
			fsops.New(nil), &fakeApps{}, &fakeShell{}, nil, 2, logger)
		disp.SetOperationLogging(logOps)

		_, err := disp.Execute(context.Background(), "create the file", nil, nil)
		require.NoError(t, err)
		require.NoError(t, os.Remove("log-check.txt"))
		return buf.String()
	}

	assert.Contains(t, runTurn(t, true), "operation completed")
	assert.NotContains(t, runTurn(t, false), "operation completed")
}

func TestExecute_ListDirectoryFormatsEntries(t *testing.T) {
	f := newFixture(t, fenced(`{
		"action": "list_directory",
		"parameters": {},
		"explanation": "Listing the current directory"
	}`), nil)

	files := fsops.New(nil)
	_, _, err := files.CreateFile("a.txt", "", false)
	require.NoError(t, err)
	require.NoError(t, errFromCreateDir(files, "sub"))

	result, err := f.disp.Execute(context.Background(), "what is here", nil, nil)

	require.NoError(t, err)
	assert.Contains(t, result, "[DIR] sub")
	assert.Contains(t, result, "[FILE] a.txt")
}

func errFromCreateDir(files *fsops.FileOps, path string) error {
	_, err := files.CreateDirectory(path)
	return err
}

func TestPlanTask_ParsesFencedPlan(t *testing.T) {
	f := newFixture(t, fenced(`{
		"goal_analysis": "create a note",
		"approach": "direct",
		"steps": ["create notes.txt"],
		"risks": [],
		"expected_outcome": "file exists",
		"required_tools": []
	}`), nil)

	plan := f.disp.PlanTask(context.Background(), "make a note")

	require.NotNil(t, plan)
	assert.Equal(t, "create a note", plan.GoalAnalysis)
	assert.Equal(t, []string{"create notes.txt"}, plan.Steps)
}

func TestPlanTask_DegradesOnGarbage(t *testing.T) {
	f := newFixture(t, "no plan for you", nil)

	plan := f.disp.PlanTask(context.Background(), "make a note")

	require.NotNil(t, plan)
	assert.Equal(t, "Direct execution", plan.GoalAnalysis)
	assert.Equal(t, []string{"make a note"}, plan.Steps)
}

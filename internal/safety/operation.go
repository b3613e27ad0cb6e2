package safety

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Kind identifies the type of a side-effecting operation.
type Kind string

const (
	KindAppOpen       Kind = "app_open"
	KindAppClose      Kind = "app_close"
	KindFileCreate    Kind = "file_create"
	KindFileAppend    Kind = "file_append"
	KindFileModify    Kind = "file_modify"
	KindFileDelete    Kind = "file_delete"
	KindFileRead      Kind = "file_read"
	KindFileOpen      Kind = "file_open"
	KindFileSearch    Kind = "file_search"
	KindDirCreate     Kind = "dir_create"
	KindDirDelete     Kind = "dir_delete"
	KindDirList       Kind = "dir_list"
	KindBrowserOpen   Kind = "browser_open"
	KindBrowserClose  Kind = "browser_close"
	KindSystemCommand Kind = "system_command"
)

// Category groups operation kinds for permission checks.
type Category string

const (
	CategoryApp     Category = "app"
	CategoryFile    Category = "file"
	CategoryBrowser Category = "browser"
	CategorySystem  Category = "system"
)

// Category returns the permission category a kind belongs to.
func (k Kind) Category() Category {
	switch k {
	case KindAppOpen, KindAppClose:
		return CategoryApp
	case KindBrowserOpen, KindBrowserClose:
		return CategoryBrowser
	case KindSystemCommand:
		return CategorySystem
	default:
		return CategoryFile
	}
}

// TargetUnknown is the sentinel target for operations whose parameters did
// not carry one.
const TargetUnknown = "unknown"

// Operation is the audit record for one attempted side-effecting action.
// It is immutable once created.
type Operation struct {
	ID        string
	Kind      Kind
	Target    string
	Params    map[string]any
	Timestamp time.Time
}

// opSeq breaks identity collisions when two operations are created within
// the same clock tick.
var opSeq atomic.Uint64

// NewOperation creates an Operation with a process-unique identity.
func NewOperation(kind Kind, target string, params map[string]any) Operation {
	if target == "" {
		target = TargetUnknown
	}
	if params == nil {
		params = map[string]any{}
	}
	now := time.Now()
	seq := opSeq.Add(1)
	return Operation{
		ID:        fmt.Sprintf("%d-%d_%s", now.UnixNano(), seq, kind),
		Kind:      kind,
		Target:    target,
		Params:    params,
		Timestamp: now,
	}
}

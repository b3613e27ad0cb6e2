package safety

import (
	"os"
	"path/filepath"
	"strings"
)

// ConfirmSettings lists which destructive kinds require user confirmation.
type ConfirmSettings struct {
	FileDeletion     bool
	FileModification bool
	AppClosure       bool
	SystemCommands   bool
}

// Policy is the static permission snapshot loaded at startup.
// It is read-only for the lifetime of a session.
type Policy struct {
	AllowAppControl     bool
	AllowFileOperations bool
	AllowBrowserControl bool
	AllowSystemCommands bool
	SensitivePaths      []string
	RequireConfirmation ConfirmSettings
}

// DefaultPolicy mirrors the shipped configuration defaults: everything but
// system commands is allowed, deletions and system commands need confirmation.
func DefaultPolicy() *Policy {
	return &Policy{
		AllowAppControl:     true,
		AllowFileOperations: true,
		AllowBrowserControl: true,
		AllowSystemCommands: false,
		RequireConfirmation: ConfirmSettings{
			FileDeletion:   true,
			SystemCommands: true,
		},
	}
}

// Gate evaluates proposed operations against a Policy. It has no side
// effects; execution and confirmation prompting are the caller's job.
type Gate struct {
	policy  *Policy
	resolve func(path string) string
}

// NewGate creates a Gate for the given policy.
func NewGate(policy *Policy) *Gate {
	if policy == nil {
		panic("policy is required")
	}
	return &Gate{policy: policy, resolve: resolvePath}
}

// NewGateWithResolver creates a Gate with a custom path resolver (for tests).
func NewGateWithResolver(policy *Policy, resolve func(path string) string) *Gate {
	g := NewGate(policy)
	g.resolve = resolve
	return g
}

// Check reports whether op is permitted. When denied, reason names the
// disabled category or the sensitive path that matched.
func (g *Gate) Check(op Operation) (allowed bool, reason string) {
	switch op.Kind.Category() {
	case CategoryApp:
		if !g.policy.AllowAppControl {
			return false, "Application control is disabled"
		}
	case CategoryBrowser:
		if !g.policy.AllowBrowserControl {
			return false, "Browser control is disabled"
		}
	case CategorySystem:
		if !g.policy.AllowSystemCommands {
			return false, "System commands are disabled"
		}
	case CategoryFile:
		if !g.policy.AllowFileOperations {
			return false, "File operations are disabled"
		}
		if g.isSensitivePath(op.Target) {
			return false, "Access to sensitive path denied: " + op.Target
		}
	}
	return true, ""
}

// RequiresConfirmation reports whether op needs explicit user confirmation
// before execution. Independent of Check.
func (g *Gate) RequiresConfirmation(op Operation) bool {
	c := g.policy.RequireConfirmation
	switch op.Kind {
	case KindFileDelete, KindDirDelete:
		return c.FileDeletion
	case KindFileModify, KindFileAppend:
		return c.FileModification
	case KindAppClose:
		return c.AppClosure
	case KindSystemCommand:
		return c.SystemCommands
	}
	return false
}

// isSensitivePath reports whether path equals or is nested under any
// configured sensitive path. Both sides are resolved before comparison so
// traversal segments and symlinks cannot dodge the deny-list.
func (g *Gate) isSensitivePath(path string) bool {
	resolved := g.resolve(path)
	for _, sensitive := range g.policy.SensitivePaths {
		sens := g.resolve(sensitive)
		rel, err := filepath.Rel(sens, resolved)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return true
		}
	}
	return false
}

// resolvePath makes a path absolute and resolves symlinks as far as the
// on-disk state allows. Targets that do not exist yet are resolved through
// their nearest existing ancestor.
func resolvePath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	// Target missing: resolve the parent instead and re-attach the base.
	dir, base := filepath.Split(abs)
	if resolved, err := filepath.EvalSymlinks(filepath.Clean(dir)); err == nil {
		return filepath.Join(resolved, base)
	}
	if _, err := os.Stat(abs); err == nil {
		return abs
	}
	return abs
}

package safety

import (
	"log/slog"
	"os"
)

// RollbackInfo is the prior-state snapshot needed to invert one operation.
// The fields that matter depend on the operation kind:
//
//   - KindFileCreate: Path (inverse removes it)
//   - KindFileDelete: Path + PriorContent (inverse rewrites it)
//   - KindFileModify / KindFileAppend: Path + PriorContent (inverse restores)
//   - KindDirDelete (empty delete only): Path (inverse recreates the dir)
type RollbackInfo struct {
	Path         string
	PriorContent []byte
	Perm         os.FileMode
}

// ledgerFS is the minimal filesystem surface needed to apply inverses.
type ledgerFS interface {
	WriteFile(path string, data []byte, perm os.FileMode) error
	Remove(path string) error
	MkdirAll(path string, perm os.FileMode) error
	Stat(path string) (os.FileInfo, error)
}

// OSLedgerFS applies inverses against the real filesystem.
type OSLedgerFS struct{}

func (OSLedgerFS) WriteFile(path string, data []byte, perm os.FileMode) error {
	return os.WriteFile(path, data, perm)
}

func (OSLedgerFS) Remove(path string) error { return os.Remove(path) }

func (OSLedgerFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (OSLedgerFS) Stat(path string) (os.FileInfo, error) { return os.Stat(path) }

// Ledger is a bounded FIFO of executed operations plus a side map from
// operation identity to its undo payload. When capacity is exceeded the
// oldest operation is evicted together with its payload, so an evicted
// operation can no longer be rolled back.
//
// The ledger exclusively owns recorded payloads; callers must not retain
// or mutate a RollbackInfo after handing it to Record.
type Ledger struct {
	capacity int
	ops      []Operation
	undo     map[string]RollbackInfo
	fs       ledgerFS
	logger   *slog.Logger
}

// DefaultLedgerCapacity bounds the in-memory operation history.
const DefaultLedgerCapacity = 10

// NewLedger creates a Ledger with the given capacity. A capacity below one
// falls back to the default.
func NewLedger(capacity int, fs ledgerFS, logger *slog.Logger) *Ledger {
	if capacity < 1 {
		capacity = DefaultLedgerCapacity
	}
	if fs == nil {
		fs = OSLedgerFS{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		capacity: capacity,
		undo:     make(map[string]RollbackInfo),
		fs:       fs,
		logger:   logger,
	}
}

// Record appends op to the history and, if info is non-nil, stores its undo
// payload. Call only after the operation executed successfully.
func (l *Ledger) Record(op Operation, info *RollbackInfo) {
	if len(l.ops) >= l.capacity {
		evicted := l.ops[0]
		l.ops = l.ops[1:]
		delete(l.undo, evicted.ID)
	}
	l.ops = append(l.ops, op)
	if info != nil {
		l.undo[op.ID] = *info
	}
	l.logger.Debug("recorded operation", "kind", op.Kind, "target", op.Target)
}

// CanRollback reports whether identity has a stored undo payload.
func (l *Ledger) CanRollback(id string) bool {
	_, ok := l.undo[id]
	return ok
}

// Rollback applies the inverse of the identified operation. It returns false
// when the operation is unknown, evicted, of an unsupported kind, or the
// inverse itself failed. A failed inverse leaves the entry in place so the
// rollback can be retried.
func (l *Ledger) Rollback(id string) bool {
	info, ok := l.undo[id]
	if !ok {
		l.logger.Warn("cannot rollback operation", "id", id)
		return false
	}
	op, ok := l.find(id)
	if !ok {
		return false
	}

	if err := l.applyInverse(op, info); err != nil {
		l.logger.Error("rollback failed", "id", id, "error", err)
		return false
	}

	delete(l.undo, id)
	l.logger.Info("rolled back operation", "kind", op.Kind, "target", op.Target)
	return true
}

// History returns the recorded operations, oldest first.
func (l *Ledger) History() []Operation {
	out := make([]Operation, len(l.ops))
	copy(out, l.ops)
	return out
}

// Clear drops all history and undo payloads.
func (l *Ledger) Clear() {
	l.ops = nil
	l.undo = make(map[string]RollbackInfo)
}

func (l *Ledger) find(id string) (Operation, bool) {
	for _, op := range l.ops {
		if op.ID == id {
			return op, true
		}
	}
	return Operation{}, false
}

func (l *Ledger) applyInverse(op Operation, info RollbackInfo) error {
	perm := info.Perm
	if perm == 0 {
		perm = 0o644
	}

	switch op.Kind {
	case KindFileCreate:
		// Success-on-absence: if the file is already gone the desired net
		// effect holds.
		if _, err := l.fs.Stat(info.Path); os.IsNotExist(err) {
			return nil
		}
		return l.fs.Remove(info.Path)

	case KindFileDelete:
		return l.fs.WriteFile(info.Path, info.PriorContent, perm)

	case KindFileModify, KindFileAppend:
		return l.fs.WriteFile(info.Path, info.PriorContent, perm)

	case KindDirDelete:
		return l.fs.MkdirAll(info.Path, 0o755)

	default:
		return &UnsupportedRollbackError{Kind: op.Kind}
	}
}

// UnsupportedRollbackError is returned when an operation kind has no
// defined inverse.
type UnsupportedRollbackError struct {
	Kind Kind
}

func (e *UnsupportedRollbackError) Error() string {
	return "rollback not supported for operation kind: " + string(e.Kind)
}

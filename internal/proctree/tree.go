package proctree

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownProcess is returned when a key does not resolve.
	ErrUnknownProcess = errors.New("unknown process")
	// ErrUnknownParent is returned by Create when the parent is not in the tree.
	ErrUnknownParent = errors.New("unknown parent")
	// ErrPIDInUse is returned by Create when the pid's current record has not been reaped.
	ErrPIDInUse = errors.New("pid still in use")
	// ErrRootExists is returned by CreateRoot when called twice.
	ErrRootExists = errors.New("root already exists")
	// ErrAlreadyInSyscall is returned by BeginSyscall when a syscall is already in flight.
	ErrAlreadyInSyscall = errors.New("already in syscall")
	// ErrNotInSyscall is returned by EndSyscall when no syscall is in flight.
	ErrNotInSyscall = errors.New("not in syscall")
)

// Tree is the arena of all processes seen in a session.
type Tree struct {
	procs    map[Key]*Process
	order    []Key
	children map[Key][]Key
	current  map[int]Key    // pid -> latest epoch
	epochs   map[int]uint32 // pid -> next epoch to hand out
	root     *Key
}

// New creates an empty tree.
func New() *Tree {
	return &Tree{
		procs:    make(map[Key]*Process),
		children: make(map[Key][]Key),
		current:  make(map[int]Key),
		epochs:   make(map[int]uint32),
	}
}

// CreateRoot records the launched command.
func (t *Tree) CreateRoot(pid int, name, path string, now time.Time) (Key, error) {
	if t.root != nil {
		return Key{}, ErrRootExists
	}
	key, err := t.insert(pid, nil, KindProcess, name, path, now)
	if err != nil {
		return Key{}, err
	}
	t.root = &key
	return key, nil
}

// Create records a new child of parent. The child inherits the parent's name
// and path until it execs.
func (t *Tree) Create(pid int, parent Key, kind Kind, now time.Time) (Key, error) {
	p, ok := t.procs[parent]
	if !ok {
		return Key{}, fmt.Errorf("creating %d under %s: %w", pid, parent, ErrUnknownParent)
	}
	// A child never predates its parent.
	if now.Before(p.Spawned) {
		now = p.Spawned
	}
	parentKey := parent
	return t.insert(pid, &parentKey, kind, p.Name, p.Path, now)
}

func (t *Tree) insert(pid int, parent *Key, kind Kind, name, path string, now time.Time) (Key, error) {
	if cur, ok := t.current[pid]; ok && !t.procs[cur].Reaped {
		return Key{}, fmt.Errorf("creating %d: %w by %s", pid, ErrPIDInUse, cur)
	}

	key := Key{PID: pid, Epoch: t.epochs[pid]}
	t.epochs[pid]++

	t.procs[key] = &Process{
		Key:     key,
		Parent:  parent,
		Kind:    kind,
		Name:    name,
		Path:    path,
		Spawned: now,
		Alive:   true,
	}
	t.order = append(t.order, key)
	t.current[pid] = key
	if parent != nil {
		t.children[*parent] = append(t.children[*parent], key)
	}
	return key, nil
}

// Get returns the record for key.
func (t *Tree) Get(key Key) (*Process, bool) {
	p, ok := t.procs[key]
	return p, ok
}

// Current returns the record holding pid's latest epoch, reaped or not.
func (t *Tree) Current(pid int) (*Process, bool) {
	key, ok := t.current[pid]
	if !ok {
		return nil, false
	}
	return t.procs[key], true
}

// Live returns the unreaped record for pid, if any.
func (t *Tree) Live(pid int) (*Process, bool) {
	p, ok := t.Current(pid)
	if !ok || p.Reaped {
		return nil, false
	}
	return p, true
}

// Root returns the key of the launched command.
func (t *Tree) Root() (Key, bool) {
	if t.root == nil {
		return Key{}, false
	}
	return *t.root, true
}

// Len returns the number of records ever created.
func (t *Tree) Len() int {
	return len(t.order)
}

// Children returns the direct children of key in creation order.
func (t *Tree) Children(key Key) []Key {
	kids := t.children[key]
	out := make([]Key, len(kids))
	copy(out, kids)
	return out
}

// Ancestors returns the chain of parents of key, nearest first.
func (t *Tree) Ancestors(key Key) []Key {
	var out []Key
	p, ok := t.procs[key]
	for ok && p.Parent != nil {
		out = append(out, *p.Parent)
		p, ok = t.procs[*p.Parent]
	}
	return out
}

// Descendants returns every record below key in depth-first pre-order.
func (t *Tree) Descendants(key Key) []Key {
	var out []Key
	var visit func(Key)
	visit = func(k Key) {
		for _, child := range t.children[k] {
			out = append(out, child)
			visit(child)
		}
	}
	visit(key)
	return out
}

// Walk calls fn for each record in creation order until fn returns false.
func (t *Tree) Walk(fn func(*Process) bool) {
	for _, key := range t.order {
		if !fn(t.procs[key]) {
			return
		}
	}
}

// LiveKeys returns the keys of all unreaped records.
func (t *Tree) LiveKeys() []Key {
	var out []Key
	for _, key := range t.order {
		if !t.procs[key].Reaped {
			out = append(out, key)
		}
	}
	return out
}

// Rename updates the command of key after a successful exec.
func (t *Tree) Rename(key Key, name, path string) error {
	p, ok := t.procs[key]
	if !ok {
		return fmt.Errorf("renaming %s: %w", key, ErrUnknownProcess)
	}
	p.Name = name
	p.Path = path
	return nil
}

// BeginSyscall marks key as inside syscall nr of ABI arch.
func (t *Tree) BeginSyscall(key Key, arch uint32, nr uint64, args [6]uint64, now time.Time) error {
	p, ok := t.procs[key]
	if !ok {
		return fmt.Errorf("syscall entry for %s: %w", key, ErrUnknownProcess)
	}
	if p.Syscall.Active {
		return fmt.Errorf("syscall entry for %s: %w (%d)", key, ErrAlreadyInSyscall, p.Syscall.Nr)
	}
	p.Syscall = SyscallState{Active: true, Arch: arch, Nr: nr, Args: args, Entry: now}
	return nil
}

// EndSyscall returns key to Idle and returns the syscall that was in flight.
func (t *Tree) EndSyscall(key Key) (SyscallState, error) {
	p, ok := t.procs[key]
	if !ok {
		return SyscallState{}, fmt.Errorf("syscall exit for %s: %w", key, ErrUnknownProcess)
	}
	if !p.Syscall.Active {
		return SyscallState{}, fmt.Errorf("syscall exit for %s: %w", key, ErrNotInSyscall)
	}
	st := p.Syscall
	p.Syscall = SyscallState{}
	return st, nil
}

// MarkExited moves key to its terminal state. Any in-flight syscall is
// cleared and returned so the caller can account for it. Calling it again is
// a no-op that returns an idle state.
func (t *Tree) MarkExited(key Key, now time.Time) (SyscallState, error) {
	p, ok := t.procs[key]
	if !ok {
		return SyscallState{}, fmt.Errorf("exit of %s: %w", key, ErrUnknownProcess)
	}
	pending := p.Syscall
	p.Syscall = SyscallState{}
	if p.Alive {
		p.Alive = false
		if now.Before(p.Spawned) {
			now = p.Spawned
		}
		p.Exited = now
	}
	return pending, nil
}

// MarkReaped records the final status of key and frees its pid for reuse.
// A process that never reported an exit event is marked exited as well.
func (t *Tree) MarkReaped(key Key, status *ExitStatus, now time.Time) (SyscallState, error) {
	pending, err := t.MarkExited(key, now)
	if err != nil {
		return SyscallState{}, err
	}
	p := t.procs[key]
	if status != nil {
		st := *status
		p.Status = &st
	}
	p.Reaped = true
	return pending, nil
}

// SetStatus records the exit status reported ahead of reaping, by the
// PTRACE_EVENT_EXIT stop.
func (t *Tree) SetStatus(key Key, status ExitStatus) error {
	p, ok := t.procs[key]
	if !ok {
		return fmt.Errorf("status of %s: %w", key, ErrUnknownProcess)
	}
	p.Status = &status
	return nil
}

// Degrade flags key as having unreliable data and records why.
func (t *Tree) Degrade(key Key, issue string) error {
	p, ok := t.procs[key]
	if !ok {
		return fmt.Errorf("degrading %s: %w", key, ErrUnknownProcess)
	}
	p.Degraded = true
	p.Issues = append(p.Issues, issue)
	return nil
}

// Revive returns an exited but unreaped record to life. A thread-group leader
// reports an exit event when another thread execs, then carries on as the
// new program under the same pid.
func (t *Tree) Revive(key Key) error {
	p, ok := t.procs[key]
	if !ok {
		return fmt.Errorf("reviving %s: %w", key, ErrUnknownProcess)
	}
	if p.Reaped {
		return fmt.Errorf("reviving %s: already reaped", key)
	}
	p.Alive = true
	p.Exited = time.Time{}
	p.Status = nil
	return nil
}

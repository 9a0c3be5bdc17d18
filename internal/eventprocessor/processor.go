package eventprocessor

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/KarelPeeters/wtf/internal/attributes"
	"github.com/KarelPeeters/wtf/internal/procmeta"
	"github.com/KarelPeeters/wtf/internal/proctree"
	"github.com/KarelPeeters/wtf/internal/profile"
	"github.com/KarelPeeters/wtf/internal/ptrace"
	"github.com/KarelPeeters/wtf/internal/syscalls"
	"github.com/KarelPeeters/wtf/internal/timesync"
)

// Inspector reads tracee state at a stop.
type Inspector interface {
	SyscallInfo(pid int) (ptrace.SyscallInfo, error)
	EventMsg(pid int) (uint, error)
	ReadWord(pid int, addr uintptr) (uint64, error)
	ReadString(pid int, addr uintptr, maxLen int) (string, bool, error)
	ReadStringList(pid int, addr uintptr, maxItems, maxLen int) ([]string, bool, error)
	GroupStop(pid int) bool
}

// ProcSource reads a stopped process's exec details from outside its memory.
type ProcSource interface {
	Cmdline(pid int) ([]string, bool, error)
	Environ(pid int) ([]string, bool, error)
	Exe(pid int) (string, error)
}

// Resume asks the tracer to restart PID, delivering Signal unless it is zero.
type Resume struct {
	PID    int
	Signal unix.Signal
}

// Limits bound how much tracee memory is copied per exec.
type Limits struct {
	MaxExecArgs  int
	MaxStringLen int
}

// Stats counts what the processor has seen.
type Stats struct {
	Stops          uint64
	Syscalls       uint64
	Spawns         uint64
	Execs          uint64
	Parked         uint64
	ProtocolErrors uint64
	Vanished       uint64
}

// pendingExec is an execve captured at syscall entry, committed by the exec
// event or dropped when the syscall fails.
type pendingExec struct {
	path      string
	argv      []string
	envp      []string
	truncated bool
	err       error
}

// Processor coordinates stop processing.
// It is not safe for concurrent use; the tracer calls it under the session lock.
type Processor struct {
	tree      *proctree.Tree
	agg       *profile.Aggregator
	meta      *procmeta.Manager
	evaluator *attributes.Evaluator
	inspector Inspector
	procs     ProcSource
	clock     timesync.Clock
	limits    Limits

	// parked holds the initial stop of children seen before their parent's
	// fork event; they stay stopped until the node exists.
	parked map[int]ptrace.Stop
	// reapedEarly holds children that died before their parent's event.
	reapedEarly map[int]ptrace.Stop
	// awaitingStop are children created from an event whose initial SIGSTOP
	// has not arrived yet.
	awaitingStop map[int]bool
	pending      map[proctree.Key]*pendingExec

	stats Stats
}

// NewProcessor creates a new stop processor. evaluator may be nil.
func NewProcessor(
	tree *proctree.Tree,
	agg *profile.Aggregator,
	meta *procmeta.Manager,
	evaluator *attributes.Evaluator,
	inspector Inspector,
	clock timesync.Clock,
	limits Limits,
) *Processor {
	return &Processor{
		tree:         tree,
		agg:          agg,
		meta:         meta,
		evaluator:    evaluator,
		inspector:    inspector,
		clock:        clock,
		limits:       limits,
		parked:       make(map[int]ptrace.Stop),
		reapedEarly:  make(map[int]ptrace.Stop),
		awaitingStop: make(map[int]bool),
		pending:      make(map[proctree.Key]*pendingExec),
	}
}

// SetProcSource sets where exec details come from when they could not be
// copied out of tracee memory at syscall entry.
func (p *Processor) SetProcSource(src ProcSource) {
	p.procs = src
}

// Stats returns counters accumulated so far.
func (p *Processor) Stats() Stats {
	return p.stats
}

// AddRoot registers the launched command, already stopped after its execve.
func (p *Processor) AddRoot(pid int, path string, argv, envp []string) (proctree.Key, error) {
	now := p.clock.Now()
	key, err := p.tree.CreateRoot(pid, filepath.Base(path), path, now)
	if err != nil {
		return proctree.Key{}, err
	}
	md := procmeta.FromExec(path, argv, envp)
	p.meta.Set(key, md)
	p.meta.RecordExec(key, procmeta.ExecRecord{Time: now, Path: path, Args: argv}, md.Environ)
	p.evaluate(key)
	return key, nil
}

// Handle applies one stop and returns the tracees to resume. A non-nil error
// is a *TraceProtocolError that has already been recorded on the process;
// the returned resumes are still valid.
func (p *Processor) Handle(stop ptrace.Stop) ([]Resume, error) {
	p.stats.Stops++

	if stop.Kind.Terminal() {
		p.handleReaped(stop)
		return nil, nil
	}

	proc, ok := p.tree.Live(stop.PID)
	if !ok {
		// A new child reporting before its parent's fork event.
		p.parked[stop.PID] = stop
		p.stats.Parked++
		log.Debugf("Parked stop %s until its parent reports", stop)
		return nil, nil
	}

	switch {
	case stop.Kind == ptrace.StopSyscall:
		return p.handleSyscall(proc, stop)
	case stop.Kind.Spawns():
		return p.handleSpawn(proc, stop)
	case stop.Kind == ptrace.StopExec:
		return p.handleExec(proc, stop)
	case stop.Kind == ptrace.StopExitEvent:
		return p.handleExitEvent(proc, stop)
	case stop.Kind == ptrace.StopSignal:
		return p.handleSignal(proc, stop), nil
	default:
		return resume(stop.PID, 0), p.protocolError(proc, stop, "unexpected stop", nil)
	}
}

// Vanished marks pid exited after a request on it failed with ESRCH. Its
// reap is still processed when wait4 reports it.
func (p *Processor) Vanished(pid int) error {
	proc, ok := p.tree.Live(pid)
	if !ok {
		return fmt.Errorf("pid %d: %w", pid, ErrProcessVanished)
	}
	p.stats.Vanished++
	now := p.clock.Now()
	pendingCall, err := p.tree.MarkExited(proc.Key, now)
	if err != nil {
		return err
	}
	p.finishPending(proc.Key, pendingCall, now)
	return fmt.Errorf("%s: %w", proc.Key, ErrProcessVanished)
}

// LiveKeys returns every process that has not been reaped yet.
func (p *Processor) LiveKeys() []proctree.Key {
	return p.tree.LiveKeys()
}

// Parked returns the pids whose stops are waiting for a parent event.
func (p *Processor) Parked() []int {
	out := make([]int, 0, len(p.parked))
	for pid := range p.parked {
		out = append(out, pid)
	}
	return out
}

func resume(pid int, sig unix.Signal) []Resume {
	return []Resume{{PID: pid, Signal: sig}}
}

func (p *Processor) protocolError(proc *proctree.Process, stop ptrace.Stop, reason string, err error) error {
	p.stats.ProtocolErrors++
	perr := &TraceProtocolError{Key: proc.Key, Stop: stop, Reason: reason, Err: err}
	issue := reason
	if err != nil {
		issue = fmt.Sprintf("%s: %v", reason, err)
	}
	_ = p.tree.Degrade(proc.Key, issue)
	return perr
}

func (p *Processor) handleSyscall(proc *proctree.Process, stop ptrace.Stop) ([]Resume, error) {
	info, err := p.inspector.SyscallInfo(stop.PID)
	if err != nil {
		return resume(stop.PID, 0), p.protocolError(proc, stop, "reading syscall info", err)
	}

	op := info.Op
	switch op {
	case ptrace.OpNone:
		// The kernel did not say; our own state does.
		if proc.InSyscall() {
			op = ptrace.OpExit
		} else {
			op = ptrace.OpEntry
		}
	case ptrace.OpSeccomp:
		op = ptrace.OpEntry
	}

	now := p.clock.Now()
	if op == ptrace.OpEntry {
		var perr error
		if proc.InSyscall() {
			// The exit of the previous call was never reported.
			prev, _ := p.tree.EndSyscall(proc.Key)
			perr = p.protocolError(proc, stop, fmt.Sprintf("entry of %s while in %s",
				syscalls.NameByArch(info.Arch, info.Nr), syscalls.NameByArch(prev.Arch, prev.Nr)), nil)
		}
		if err := p.tree.BeginSyscall(proc.Key, info.Arch, info.Nr, info.Args, now); err != nil {
			return resume(stop.PID, 0), p.protocolError(proc, stop, "syscall entry", err)
		}
		switch {
		case !isExec(info.Arch, info.Nr):
			if !syscalls.KnownByArch(info.Arch, info.Nr) {
				log.Debugf("%s: unknown %s syscall %d", proc.Key, syscalls.ArchName(info.Arch), info.Nr)
			}
		case syscalls.IsNative(info.Arch):
			p.captureExec(proc.Key, stop.PID, info.Nr, info.Args)
		default:
			// Pointers of another ABI are not decoded; the exec event reads /proc.
			p.meta.AddIssue(proc.Key, fmt.Sprintf("%s exec arguments not read from memory",
				syscalls.ArchName(info.Arch)))
		}
		return resume(stop.PID, 0), perr
	}

	st, err := p.tree.EndSyscall(proc.Key)
	if err != nil {
		return resume(stop.PID, 0), p.protocolError(proc, stop, "syscall exit", err)
	}
	p.stats.Syscalls++
	p.agg.Record(profile.SyscallEvent{
		Key:   proc.Key,
		Arch:  st.Arch,
		Nr:    st.Nr,
		Entry: st.Entry,
		Exit:  now,
		Ret:   info.Ret,
	})
	if isExec(st.Arch, st.Nr) {
		// A successful exec was committed by its event; anything left failed.
		delete(p.pending, proc.Key)
	}
	return resume(stop.PID, 0), nil
}

func (p *Processor) captureExec(key proctree.Key, pid int, nr uint64, args [6]uint64) {
	// execveat(dirfd, path, argv, envp, flags) shifts the execve arguments by one.
	off := 0
	if nr == nrExecveat {
		off = 1
	}
	pe := &pendingExec{}
	var cut bool
	var err error

	pe.path, cut, err = p.inspector.ReadString(pid, uintptr(args[off]), p.limits.MaxStringLen)
	pe.truncated = pe.truncated || cut
	pe.err = errors.Join(pe.err, err)

	pe.argv, cut, err = p.inspector.ReadStringList(pid, uintptr(args[off+1]), p.limits.MaxExecArgs, p.limits.MaxStringLen)
	pe.truncated = pe.truncated || cut
	pe.err = errors.Join(pe.err, err)

	pe.envp, cut, err = p.inspector.ReadStringList(pid, uintptr(args[off+2]), p.limits.MaxExecArgs, p.limits.MaxStringLen)
	pe.truncated = pe.truncated || cut
	pe.err = errors.Join(pe.err, err)

	p.pending[key] = pe
}

func (p *Processor) handleSpawn(proc *proctree.Process, stop ptrace.Stop) ([]Resume, error) {
	msg, err := p.inspector.EventMsg(stop.PID)
	if err != nil {
		return resume(stop.PID, 0), p.protocolError(proc, stop, "reading new child pid", err)
	}
	childPID := int(msg)
	kind := p.spawnKind(proc, stop)
	now := p.clock.Now()

	child, err := p.tree.Create(childPID, proc.Key, kind, now)
	if errors.Is(err, proctree.ErrPIDInUse) {
		// The previous owner of this pid died without us seeing its reap.
		if stale, ok := p.tree.Live(childPID); ok {
			_ = p.tree.Degrade(stale.Key, "pid reused before its exit was observed")
			pendingCall, _ := p.tree.MarkReaped(stale.Key, nil, now)
			p.finishPending(stale.Key, pendingCall, now)
		}
		child, err = p.tree.Create(childPID, proc.Key, kind, now)
	}
	if err != nil {
		return resume(stop.PID, 0), p.protocolError(proc, stop, "recording new child", err)
	}
	p.stats.Spawns++
	p.meta.Inherit(child, proc.Key)
	log.Debugf("%s spawned %s %s", proc.Key, kind, child)

	resumes := resume(stop.PID, 0)
	if early, ok := p.reapedEarly[childPID]; ok {
		delete(p.reapedEarly, childPID)
		p.handleReaped(early)
		return resumes, nil
	}
	if _, ok := p.parked[childPID]; ok {
		delete(p.parked, childPID)
		// The parked stop was the initial SIGSTOP; it is swallowed.
		resumes = append(resumes, Resume{PID: childPID})
	} else {
		p.awaitingStop[childPID] = true
	}
	return resumes, nil
}

// spawnKind tells threads from processes using the flags of the clone call
// the parent is in the middle of.
func (p *Processor) spawnKind(proc *proctree.Process, stop ptrace.Stop) proctree.Kind {
	if stop.Kind != ptrace.StopClone || !proc.InSyscall() {
		return proctree.KindProcess
	}
	call := cloneCall(proc.Syscall.Arch, proc.Syscall.Nr)
	if call == noSyscall {
		return proctree.KindProcess
	}
	var flags uint64
	switch call {
	case nrClone:
		flags = proc.Syscall.Args[0]
	case nrClone3:
		if !syscalls.IsNative(proc.Syscall.Arch) {
			log.Debugf("Not decoding %s clone3 flags of %s", syscalls.ArchName(proc.Syscall.Arch), proc.Key)
			return proctree.KindProcess
		}
		// clone3 takes a struct clone_args whose first field is flags.
		w, err := p.inspector.ReadWord(stop.PID, uintptr(proc.Syscall.Args[0]))
		if err != nil {
			log.Debugf("Reading clone3 flags of %s: %v", proc.Key, err)
			return proctree.KindProcess
		}
		flags = w
	default:
		return proctree.KindProcess
	}
	if flags&unix.CLONE_THREAD != 0 {
		return proctree.KindThread
	}
	return proctree.KindProcess
}

func (p *Processor) handleExec(proc *proctree.Process, stop ptrace.Stop) ([]Resume, error) {
	p.stats.Execs++
	now := p.clock.Now()
	key := proc.Key

	var perr error
	msg, err := p.inspector.EventMsg(stop.PID)
	if err != nil {
		perr = p.protocolError(proc, stop, "reading former thread id", err)
	} else if former := int(msg); former != stop.PID {
		p.absorbExecingThread(proc, former, now)
	}

	pe := p.pending[key]
	delete(p.pending, key)
	if pe == nil || pe.err != nil {
		if fallback := p.readProc(stop.PID); fallback != nil {
			p.meta.AddIssue(key, "exec arguments read from /proc")
			pe = fallback
		}
	}
	if pe == nil {
		p.meta.AddIssue(key, "exec arguments were not captured")
		return resume(stop.PID, 0), perr
	}
	if pe.err != nil {
		p.meta.AddIssue(key, fmt.Sprintf("reading exec arguments: %v", pe.err))
	}
	if pe.truncated {
		p.meta.AddIssue(key, "exec arguments truncated")
	}

	name := proc.Name
	switch {
	case pe.path != "":
		name = filepath.Base(pe.path)
	case len(pe.argv) > 0:
		name = filepath.Base(pe.argv[0])
	}
	_ = p.tree.Rename(key, name, pe.path)

	var env map[string]string
	if pe.envp != nil {
		env = procmeta.FromExec(pe.path, nil, pe.envp).Environ
	}
	p.meta.RecordExec(key, procmeta.ExecRecord{Time: now, Path: pe.path, Args: pe.argv}, env)
	p.evaluate(key)
	log.Debugf("%s exec %s", key, pe.path)

	return resume(stop.PID, 0), perr
}

// readProc rebuilds an exec from /proc. The new program is stopped at its
// exec event, so what /proc shows is what execve was given.
func (p *Processor) readProc(pid int) *pendingExec {
	if p.procs == nil {
		return nil
	}
	exe, err := p.procs.Exe(pid)
	if err != nil {
		log.Debugf("pid %d: %v", pid, err)
		return nil
	}
	pe := &pendingExec{path: exe}
	var cut bool
	pe.argv, cut, err = p.procs.Cmdline(pid)
	pe.truncated = pe.truncated || cut
	pe.err = errors.Join(pe.err, err)
	pe.envp, cut, err = p.procs.Environ(pid)
	pe.truncated = pe.truncated || cut
	pe.err = errors.Join(pe.err, err)
	return pe
}

// absorbExecingThread handles an exec by a non-leader thread: the former
// thread's record ends and its in-flight execve continues as the leader.
func (p *Processor) absorbExecingThread(leader *proctree.Process, former int, now time.Time) {
	if !leader.Alive {
		_ = p.tree.Revive(leader.Key)
	}
	if leader.InSyscall() {
		st, _ := p.tree.EndSyscall(leader.Key)
		p.finishPending(leader.Key, st, now)
	}

	fp, ok := p.tree.Live(former)
	if !ok {
		return
	}
	// The former thread id disappears without ever being reaped.
	inFlight, _ := p.tree.MarkReaped(fp.Key, nil, now)
	if inFlight.Active {
		_ = p.tree.BeginSyscall(leader.Key, inFlight.Arch, inFlight.Nr, inFlight.Args, inFlight.Entry)
	}
	if pe, ok := p.pending[fp.Key]; ok {
		p.pending[leader.Key] = pe
		delete(p.pending, fp.Key)
	}
	delete(p.awaitingStop, former)
	log.Debugf("%s exec'd from thread %s", leader.Key, fp.Key)
}

func (p *Processor) handleExitEvent(proc *proctree.Process, stop ptrace.Stop) ([]Resume, error) {
	now := p.clock.Now()
	pendingCall, err := p.tree.MarkExited(proc.Key, now)
	if err != nil {
		return resume(stop.PID, 0), p.protocolError(proc, stop, "exit event", err)
	}
	p.finishPending(proc.Key, pendingCall, now)
	// The event message is the wait status the reap will report.
	if msg, err := p.inspector.EventMsg(stop.PID); err == nil {
		if status := exitStatus(unix.WaitStatus(msg)); status != nil {
			_ = p.tree.SetStatus(proc.Key, *status)
		}
	}
	return resume(stop.PID, 0), nil
}

func exitStatus(ws unix.WaitStatus) *proctree.ExitStatus {
	switch {
	case ws.Exited():
		return &proctree.ExitStatus{Code: ws.ExitStatus()}
	case ws.Signaled():
		return &proctree.ExitStatus{Signal: ws.Signal(), CoreDumped: ws.CoreDump()}
	}
	return nil
}

func (p *Processor) handleSignal(proc *proctree.Process, stop ptrace.Stop) []Resume {
	if p.awaitingStop[stop.PID] && stop.Signal == unix.SIGSTOP {
		delete(p.awaitingStop, stop.PID)
		return resume(stop.PID, 0)
	}
	if stop.Signal == unix.SIGTRAP {
		return resume(stop.PID, 0)
	}
	if isStopSignal(stop.Signal) && p.inspector.GroupStop(stop.PID) {
		// Re-injecting the signal of a group-stop would stop it again forever.
		return resume(stop.PID, 0)
	}
	log.Debugf("%s received %s", proc.Key, unix.SignalName(stop.Signal))
	return resume(stop.PID, stop.Signal)
}

func isStopSignal(sig unix.Signal) bool {
	switch sig {
	case unix.SIGSTOP, unix.SIGTSTP, unix.SIGTTIN, unix.SIGTTOU:
		return true
	}
	return false
}

func (p *Processor) handleReaped(stop ptrace.Stop) {
	proc, ok := p.tree.Live(stop.PID)
	if !ok {
		if _, parked := p.parked[stop.PID]; parked {
			delete(p.parked, stop.PID)
		}
		// Keep it until the parent's event creates the node.
		p.reapedEarly[stop.PID] = stop
		return
	}

	status := &proctree.ExitStatus{Code: stop.ExitCode}
	if stop.Kind == ptrace.StopKilled {
		status = &proctree.ExitStatus{Signal: stop.Signal, CoreDumped: stop.CoreDumped}
	}
	now := p.clock.Now()
	pendingCall, err := p.tree.MarkReaped(proc.Key, status, now)
	if err != nil {
		return
	}
	p.finishPending(proc.Key, pendingCall, now)
	delete(p.awaitingStop, stop.PID)
	delete(p.pending, proc.Key)
	log.Debugf("%s reaped: %s", proc.Key, status)
}

// finishPending accounts for a syscall cut short by the death of its process.
// exit and exit_group never return, so they count as completed calls.
func (p *Processor) finishPending(key proctree.Key, st proctree.SyscallState, now time.Time) {
	if !st.Active {
		return
	}
	p.stats.Syscalls++
	p.agg.Record(profile.SyscallEvent{
		Key:          key,
		Arch:         st.Arch,
		Nr:           st.Nr,
		Entry:        st.Entry,
		Exit:         now,
		Unterminated: !isExit(st.Arch, st.Nr),
	})
}

func (p *Processor) evaluate(key proctree.Key) {
	if p.evaluator == nil || p.evaluator.Len() == 0 {
		return
	}
	attrs, err := p.evaluator.EvaluateCustomAttributes(p.meta.Get(key))
	if err != nil {
		p.meta.AddIssue(key, err.Error())
	}
	p.meta.SetAttributes(key, attributes.ToMap(attrs))
}

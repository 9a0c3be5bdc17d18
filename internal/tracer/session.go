package tracer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/KarelPeeters/wtf/internal/attributes"
	"github.com/KarelPeeters/wtf/internal/config"
	"github.com/KarelPeeters/wtf/internal/eventprocessor"
	"github.com/KarelPeeters/wtf/internal/procfs"
	"github.com/KarelPeeters/wtf/internal/procmeta"
	"github.com/KarelPeeters/wtf/internal/proctree"
	"github.com/KarelPeeters/wtf/internal/profile"
	"github.com/KarelPeeters/wtf/internal/ptrace"
	"github.com/KarelPeeters/wtf/internal/snapshot"
	"github.com/KarelPeeters/wtf/internal/timesync"
)

// Options describe what to launch and how to record it.
type Options struct {
	Command string
	Args    []string
	// Env is the target's environment; nil means the tracer's own.
	Env   []string
	Stdio ptrace.Stdio

	Attributes []config.CustomAttribute
	Limits     eventprocessor.Limits

	// Clock defaults to the system clock.
	Clock timesync.Clock
	// Publisher receives the final snapshot; one is created if nil.
	Publisher *snapshot.Publisher
}

// OptionsFromConfig builds session options from the parsed command line.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Command: cfg.Command,
		Args:    cfg.Args,
		Stdio: ptrace.Stdio{
			Stdin:  os.Stdin,
			Stdout: os.Stdout,
			Stderr: os.Stderr,
		},
		Attributes: cfg.CustomAttributes,
		Limits: eventprocessor.Limits{
			MaxExecArgs:  cfg.Settings.MaxExecArgs,
			MaxStringLen: cfg.Settings.MaxStringLen,
		},
	}
}

// Result is how the launched command ended.
type Result struct {
	ExitCode int
	Signal   unix.Signal
	// Cancelled is set when the session was stopped before the command ended.
	Cancelled bool
}

// Code folds the result into a shell-style exit code.
func (r Result) Code() int {
	if r.Signal != 0 {
		return 128 + int(r.Signal)
	}
	return r.ExitCode
}

// Session is one traced command and everything it spawned.
type Session struct {
	// mu guards the tracer state below; the tracer thread holds it while
	// handling a stop, snapshot builders while copying.
	mu   sync.Mutex
	tree *proctree.Tree
	agg  *profile.Aggregator
	meta *procmeta.Manager
	proc *eventprocessor.Processor

	kernel ptrace.Kernel
	clock  timesync.Clock
	pub    *snapshot.Publisher

	root proctree.Key

	cancelled atomic.Bool
	killed    map[proctree.Key]bool

	done   chan struct{}
	result Result
	err    error
}

// Start launches the command under trace and returns once it is running.
// The trace continues in the background until every tracee is gone or ctx
// is cancelled, in which case all tracees are killed. Wait returns the
// outcome.
func Start(ctx context.Context, opts Options) (*Session, error) {
	evaluator, err := attributes.NewEvaluator(opts.Attributes)
	if err != nil {
		return nil, err
	}
	clock := opts.Clock
	if clock == nil {
		clock = timesync.System{}
	}
	pub := opts.Publisher
	if pub == nil {
		pub = snapshot.NewPublisher()
	}

	s := &Session{
		tree:   proctree.New(),
		agg:    profile.NewAggregator(),
		meta:   procmeta.NewManager(),
		clock:  clock,
		pub:    pub,
		killed: make(map[proctree.Key]bool),
		done:   make(chan struct{}),
	}
	s.proc = eventprocessor.NewProcessor(s.tree, s.agg, s.meta, evaluator, s.kernel, clock, opts.Limits)
	s.proc.SetProcSource(procfs.Reader{MaxItems: opts.Limits.MaxExecArgs, MaxLen: opts.Limits.MaxStringLen})

	started := make(chan error, 1)
	go func() {
		defer close(s.done)
		// The thread stays locked: it is the tracer of record and is
		// discarded when this goroutine exits.
		runtime.LockOSThread()

		if err := s.launch(opts); err != nil {
			started <- err
			return
		}
		started <- nil
		s.result, s.err = s.loop(ctx)
	}()

	if err := <-started; err != nil {
		<-s.done
		return nil, err
	}
	return s, nil
}

func (s *Session) launch(opts Options) error {
	path, err := exec.LookPath(opts.Command)
	if err != nil {
		return &LaunchError{Command: opts.Command, Err: err}
	}
	argv := append([]string{opts.Command}, opts.Args...)
	env := opts.Env
	if env == nil {
		env = os.Environ()
	}

	pid, err := ptrace.Launch(path, argv, env, opts.Stdio)
	switch {
	case errors.Is(err, ptrace.ErrAttach), errors.Is(err, ptrace.ErrUnsupported):
		scope, _ := ptrace.PtraceScope()
		return &AttachError{Command: opts.Command, Scope: scope, Err: err}
	case err != nil:
		return &LaunchError{Command: opts.Command, Err: err}
	}

	s.mu.Lock()
	key, err := s.proc.AddRoot(pid, path, argv, env)
	s.mu.Unlock()
	if err != nil {
		s.abandon(pid)
		return fmt.Errorf("registering %s: %w", opts.Command, err)
	}
	s.root = key
	log.Infof("Tracing %s (pid %d)", path, pid)

	if err := s.kernel.Resume(pid, 0); err != nil {
		s.abandon(pid)
		return &AttachError{Command: opts.Command, Scope: -1, Err: err}
	}
	return nil
}

// abandon kills and reaps a target the loop will never wait for.
func (s *Session) abandon(pid int) {
	if err := ptrace.KillAndReap(pid); err != nil {
		log.Warnf("Abandoning pid %d: %v", pid, err)
	}
}

// loop handles stops until no tracee is left.
func (s *Session) loop(ctx context.Context) (Result, error) {
	stopWatch := s.watchCancel(ctx)
	defer stopWatch()

	var waitErr error
	for {
		stop, err := ptrace.Wait()
		if errors.Is(err, unix.ECHILD) {
			break
		}
		if err != nil {
			waitErr = fmt.Errorf("waiting for tracees: %w", err)
			s.killLive()
			break
		}
		log.Debugf("Stop %s", stop)

		s.mu.Lock()
		resumes, perr := s.proc.Handle(stop)
		s.mu.Unlock()
		if perr != nil {
			log.Warnf("%v", perr)
		}

		if s.cancelled.Load() {
			// Children spawned after the first round of kills.
			s.killLive()
		}
		for _, r := range resumes {
			s.resume(r)
		}
	}

	final := s.Snapshot()
	s.pub.PublishFinal(final)

	res := s.rootResult()
	stats := s.Stats()
	log.Infof("Trace finished: %d processes, %d syscalls, %d stops", s.tree.Len(), s.agg.Events(), stats.Stops)
	return res, waitErr
}

func (s *Session) resume(r eventprocessor.Resume) {
	err := s.kernel.Resume(r.PID, r.Signal)
	if err == nil {
		return
	}
	if errors.Is(err, unix.ESRCH) {
		// Killed while stopped; its reap is still on the way.
		s.mu.Lock()
		verr := s.proc.Vanished(r.PID)
		s.mu.Unlock()
		log.Debugf("Resuming %d: %v", r.PID, verr)
		return
	}
	log.Warnf("Resuming %d: %v", r.PID, err)
}

// watchCancel kills every tracee when ctx is done, which also wakes the
// loop out of wait4.
func (s *Session) watchCancel(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			log.Infof("Cancelled, killing traced processes")
			s.cancelled.Store(true)
			s.killLive()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// killLive SIGKILLs every unreaped tracee not killed yet, and every parked one.
func (s *Session) killLive() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range s.proc.LiveKeys() {
		if s.killed[key] {
			continue
		}
		s.killed[key] = true
		if err := s.kernel.Kill(key.PID); err != nil && !errors.Is(err, unix.ESRCH) {
			log.Warnf("Killing %s: %v", key, err)
		}
	}
	// Parked children are stopped tracees without a node yet; left alone
	// they would keep the drain from ever reaching ECHILD.
	for _, pid := range s.proc.Parked() {
		if err := s.kernel.Kill(pid); err != nil && !errors.Is(err, unix.ESRCH) {
			log.Warnf("Killing parked pid %d: %v", pid, err)
		}
	}
}

func (s *Session) rootResult() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := Result{Cancelled: s.cancelled.Load()}
	p, ok := s.tree.Get(s.root)
	if !ok || p.Status == nil {
		return res
	}
	res.ExitCode = p.Status.Code
	res.Signal = p.Status.Signal
	return res
}

// Wait blocks until the trace is over.
func (s *Session) Wait() (Result, error) {
	<-s.done
	return s.result, s.err
}

// Done is closed when the trace is over.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Root returns the key of the launched command.
func (s *Session) Root() proctree.Key {
	return s.root
}

// Publisher returns the publisher the final snapshot goes to.
func (s *Session) Publisher() *snapshot.Publisher {
	return s.pub
}

// Snapshot copies the current state. It is safe to call from any goroutine.
func (s *Session) Snapshot() *snapshot.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshot.Build(s.tree, s.agg, s.meta, s.clock.Now())
}

// Stats returns the processor counters.
func (s *Session) Stats() eventprocessor.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc.Stats()
}

// Publish runs the periodic snapshot publisher until the trace is over or
// ctx is cancelled.
func (s *Session) Publish(ctx context.Context, interval time.Duration) error {
	return s.pub.Run(ctx, interval, s.Snapshot)
}

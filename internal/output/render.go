package output

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/KarelPeeters/wtf/internal/snapshot"
)

// RenderOptions control how a snapshot is drawn as text.
type RenderOptions struct {
	// ShowThreads lists CLONE_THREAD children as their own rows. Their
	// numbers are always included in the rollups.
	ShowThreads bool
	// Width truncates lines; 0 means unlimited.
	Width int
	// MaxLines stops the tree after that many lines; 0 means unlimited.
	MaxLines int
	// TopSyscalls is how many syscalls are listed per process.
	TopSyscalls int
}

// Render writes the process tree of s, one line per process followed by its
// busiest syscalls.
func Render(w io.Writer, s *snapshot.Snapshot, opts RenderOptions) error {
	r := &renderer{w: w, s: s, opts: opts}
	r.header()
	root, ok := s.RootNode()
	if !ok {
		r.line("(nothing traced yet)")
		return r.err
	}
	r.visit(root, 0)
	if r.hidden > 0 {
		r.force(fmt.Sprintf("... %d more", r.hidden))
	}
	return r.err
}

type renderer struct {
	w      io.Writer
	s      *snapshot.Snapshot
	opts   RenderOptions
	lines  int
	hidden int
	err    error
}

func (r *renderer) header() {
	var events uint64
	var running int
	for i := range r.s.Nodes {
		events += r.s.Nodes[i].SelfEvents
		if r.s.Nodes[i].Alive {
			running++
		}
	}
	elapsed := time.Duration(0)
	if root, ok := r.s.RootNode(); ok {
		elapsed = root.SelfWall
	}
	state := "running"
	if r.s.Final {
		state = "finished"
	}
	r.line(fmt.Sprintf("wtf: %s, %s processes (%d alive), %s syscalls, %s elapsed",
		state, humanize.Comma(int64(len(r.s.Nodes))), running, humanize.Comma(int64(events)), FormatDuration(elapsed)))
	r.line(fmt.Sprintf("%-8s %-7s %9s %9s %10s  %s", "PID", "STATE", "WALL", "BUSY", "CALLS", "COMMAND"))
}

func (r *renderer) visit(n *snapshot.Node, depth int) {
	hide := !r.opts.ShowThreads && n.Kind == "thread"
	childDepth := depth
	if !hide {
		r.node(n, depth)
		childDepth = depth + 1
	}
	for _, key := range n.Children {
		if child, ok := r.s.Node(key); ok {
			r.visit(child, childDepth)
		}
	}
}

func (r *renderer) node(n *snapshot.Node, depth int) {
	indent := strings.Repeat("  ", depth)
	cmd := n.DisplayName()
	if len(n.Args) > 1 {
		cmd += " " + strings.Join(n.Args[1:], " ")
	}
	if n.Degraded {
		cmd += " [degraded]"
	}
	r.line(fmt.Sprintf("%-8s %-7s %9s %9s %10s  %s%s",
		fmt.Sprint(n.Key.PID), nodeState(n), FormatDuration(n.SubtreeWall), FormatDuration(n.SubtreeBusy),
		humanize.Comma(int64(n.SubtreeEvents)), indent, cmd))

	var parts []string
	if n.InFlight != nil {
		parts = append(parts, fmt.Sprintf("in %s for %s", n.InFlight.Name, FormatDuration(n.InFlight.Elapsed)))
	}
	for _, row := range n.Top(r.opts.TopSyscalls) {
		parts = append(parts, fmt.Sprintf("%s %s/%s", row.Name, humanize.Comma(int64(row.Count)), FormatDuration(row.Total)))
	}
	if len(parts) > 0 && r.opts.TopSyscalls > 0 {
		r.line(fmt.Sprintf("%48s%s  %s", "", indent, strings.Join(parts, ", ")))
	}
}

func nodeState(n *snapshot.Node) string {
	switch {
	case n.Alive:
		return "run"
	case n.Status == nil:
		return "exited"
	case n.Status.Signaled():
		return "killed"
	default:
		return fmt.Sprintf("exit %d", n.Status.Code)
	}
}

func (r *renderer) line(s string) {
	if r.opts.MaxLines > 0 && r.lines >= r.opts.MaxLines-1 {
		r.hidden++
		return
	}
	r.force(s)
}

func (r *renderer) force(s string) {
	if r.err != nil {
		return
	}
	r.lines++
	_, r.err = io.WriteString(r.w, truncate(s, r.opts.Width)+"\n")
}

func truncate(s string, width int) string {
	if width <= 0 || utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	if width == 1 {
		return string(runes[:1])
	}
	return string(runes[:width-1]) + "…"
}

// FormatDuration prints d with a precision suited to its size.
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}

package snapshot

import (
	"path/filepath"
	"sort"
	"time"

	"github.com/KarelPeeters/wtf/internal/procmeta"
	"github.com/KarelPeeters/wtf/internal/proctree"
	"github.com/KarelPeeters/wtf/internal/profile"
	"github.com/KarelPeeters/wtf/internal/syscalls"
)

// Snapshot is an immutable view of the whole profile at one instant.
type Snapshot struct {
	Seq   uint64        `json:"seq"`
	Taken time.Time     `json:"taken"`
	Final bool          `json:"final"`
	Root  *proctree.Key `json:"root,omitempty"`
	Nodes []Node        `json:"nodes"`

	index map[proctree.Key]int
}

// Node is one process in a Snapshot.
type Node struct {
	Key      proctree.Key   `json:"key"`
	Parent   *proctree.Key  `json:"parent,omitempty"`
	Children []proctree.Key `json:"children,omitempty"`
	Kind     string         `json:"kind"`

	Command string   `json:"command"`
	Path    string   `json:"path,omitempty"`
	Args    []string `json:"args,omitempty"`

	Alive   bool                 `json:"alive"`
	Spawned time.Time            `json:"spawned"`
	Exited  *time.Time           `json:"exited,omitempty"`
	Status  *proctree.ExitStatus `json:"status,omitempty"`

	Degraded   bool                  `json:"degraded,omitempty"`
	Issues     []string              `json:"issues,omitempty"`
	Attributes map[string]string     `json:"attributes,omitempty"`
	Execs      []procmeta.ExecRecord `json:"execs,omitempty"`

	Syscalls []SyscallRow `json:"syscalls"`
	InFlight *InFlight    `json:"in_flight,omitempty"`

	SelfEvents    uint64        `json:"self_events"`
	SelfBusy      time.Duration `json:"self_busy_ns"`
	SelfWall      time.Duration `json:"self_wall_ns"`
	SubtreeEvents uint64        `json:"subtree_events"`
	SubtreeBusy   time.Duration `json:"subtree_busy_ns"`
	SubtreeWall   time.Duration `json:"subtree_wall_ns"`
}

// SyscallRow is the summary of one syscall name within a Node.
type SyscallRow struct {
	Name         string        `json:"name"`
	Count        uint64        `json:"count"`
	Errors       uint64        `json:"errors,omitempty"`
	Unterminated uint64        `json:"unterminated,omitempty"`
	Total        time.Duration `json:"total_ns"`
	Min          time.Duration `json:"min_ns"`
	Max          time.Duration `json:"max_ns"`
}

// InFlight is the syscall a process was blocked in when the snapshot was taken.
type InFlight struct {
	Name    string        `json:"name"`
	Since   time.Time     `json:"since"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Build copies the current state into a new Snapshot taken at now.
// meta may be nil.
func Build(tree *proctree.Tree, agg *profile.Aggregator, meta *procmeta.Manager, now time.Time) *Snapshot {
	s := &Snapshot{
		Taken: now,
		Nodes: make([]Node, 0, tree.Len()),
		index: make(map[proctree.Key]int, tree.Len()),
	}
	if root, ok := tree.Root(); ok {
		s.Root = &root
	}

	tree.Walk(func(p *proctree.Process) bool {
		n := Node{
			Key:      p.Key,
			Children: tree.Children(p.Key),
			Kind:     p.Kind.String(),
			Command:  p.Name,
			Path:     p.Path,
			Alive:    p.Alive,
			Spawned:  p.Spawned,
			Degraded: p.Degraded,
			Issues:   append([]string(nil), p.Issues...),
			SelfWall: p.WallTime(now),
			Syscalls: []SyscallRow{},
		}
		if len(n.Children) == 0 {
			n.Children = nil
		}
		if p.Parent != nil {
			parent := *p.Parent
			n.Parent = &parent
		}
		if !p.Exited.IsZero() {
			exited := p.Exited
			n.Exited = &exited
		}
		if p.Status != nil {
			status := *p.Status
			n.Status = &status
		}
		if p.Syscall.Active {
			elapsed := now.Sub(p.Syscall.Entry)
			if elapsed < 0 {
				elapsed = 0
			}
			n.InFlight = &InFlight{
				Name:    syscalls.NameByArch(p.Syscall.Arch, p.Syscall.Nr),
				Since:   p.Syscall.Entry,
				Elapsed: elapsed,
			}
		}

		if prof, ok := agg.Profile(p.Key); ok {
			n.SelfBusy = prof.Busy
			n.SelfEvents = prof.Events
			n.Syscalls = rows(prof)
		}

		if meta != nil {
			if md := meta.Get(p.Key); md != nil {
				md = md.Clone()
				n.Args = md.Args
				n.Attributes = md.Attributes
				n.Execs = md.Execs
				if len(n.Execs) == 0 {
					n.Execs = nil
				}
			}
			n.Issues = append(n.Issues, meta.GetIssues(p.Key)...)
		}
		if len(n.Issues) == 0 {
			n.Issues = nil
		}

		n.SubtreeBusy = n.SelfBusy
		n.SubtreeWall = n.SelfWall
		n.SubtreeEvents = n.SelfEvents

		s.index[p.Key] = len(s.Nodes)
		s.Nodes = append(s.Nodes, n)
		return true
	})

	// Children always follow their parent in creation order, so a reverse
	// pass sees every subtree complete before it is added to its parent.
	for i := len(s.Nodes) - 1; i >= 0; i-- {
		n := &s.Nodes[i]
		if n.Parent == nil {
			continue
		}
		if pi, ok := s.index[*n.Parent]; ok {
			parent := &s.Nodes[pi]
			parent.SubtreeBusy += n.SubtreeBusy
			parent.SubtreeWall += n.SubtreeWall
			parent.SubtreeEvents += n.SubtreeEvents
		}
	}

	return s
}

func rows(prof *profile.ProcessProfile) []SyscallRow {
	out := make([]SyscallRow, 0, len(prof.Syscalls))
	for name, st := range prof.Syscalls {
		out = append(out, SyscallRow{
			Name:         name,
			Count:        st.Count,
			Errors:       st.Errors,
			Unterminated: st.Unterminated,
			Total:        st.Total,
			Min:          st.Min,
			Max:          st.Max,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Node returns the node for key.
func (s *Snapshot) Node(key proctree.Key) (*Node, bool) {
	if s.index == nil {
		// Decoded snapshots carry no index.
		for i := range s.Nodes {
			if s.Nodes[i].Key == key {
				return &s.Nodes[i], true
			}
		}
		return nil, false
	}
	i, ok := s.index[key]
	if !ok {
		return nil, false
	}
	return &s.Nodes[i], true
}

// RootNode returns the node of the launched command.
func (s *Snapshot) RootNode() (*Node, bool) {
	if s.Root == nil {
		return nil, false
	}
	return s.Node(*s.Root)
}

// Live returns the number of nodes still alive.
func (s *Snapshot) Live() int {
	n := 0
	for i := range s.Nodes {
		if s.Nodes[i].Alive {
			n++
		}
	}
	return n
}

// DisplayName returns the command with a path fallback.
func (n *Node) DisplayName() string {
	if n.Command != "" {
		return n.Command
	}
	if n.Path != "" {
		return filepath.Base(n.Path)
	}
	return n.Key.String()
}

// Top returns up to limit syscall rows ordered by total time, largest first.
func (n *Node) Top(limit int) []SyscallRow {
	out := append([]SyscallRow(nil), n.Syscalls...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

package output

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/KarelPeeters/wtf/internal/snapshot"
)

// Totals is one syscall summed over every process of a snapshot.
type Totals struct {
	Name         string
	Count        uint64
	Errors       uint64
	Unterminated uint64
	Total        time.Duration
	Max          time.Duration
}

// Average returns the mean duration of one call.
func (t Totals) Average() time.Duration {
	if t.Count == 0 {
		return 0
	}
	return t.Total / time.Duration(t.Count)
}

// SyscallTotals sums the syscall tables of all nodes, largest total first.
func SyscallTotals(s *snapshot.Snapshot) []Totals {
	byName := make(map[string]*Totals)
	for i := range s.Nodes {
		for _, row := range s.Nodes[i].Syscalls {
			t, ok := byName[row.Name]
			if !ok {
				t = &Totals{Name: row.Name}
				byName[row.Name] = t
			}
			t.Count += row.Count
			t.Errors += row.Errors
			t.Unterminated += row.Unterminated
			t.Total += row.Total
			t.Max = max(t.Max, row.Max)
		}
	}

	out := make([]Totals, 0, len(byName))
	for _, t := range byName {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// WriteSummary prints the final report: the whole process tree, the syscall
// totals and every recorded issue.
func WriteSummary(w io.Writer, s *snapshot.Snapshot, opts RenderOptions) error {
	opts.MaxLines = 0
	if opts.TopSyscalls == 0 {
		opts.TopSyscalls = 5
	}
	if err := Render(w, s, opts); err != nil {
		return err
	}

	totals := SyscallTotals(s)
	if len(totals) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "SYSCALL\tCALLS\tERRORS\tUNFINISHED\tTOTAL\tAVG\tMAX\t")
		for _, t := range totals {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
				t.Name,
				humanize.Comma(int64(t.Count)),
				humanize.Comma(int64(t.Errors)),
				humanize.Comma(int64(t.Unterminated)),
				FormatDuration(t.Total),
				FormatDuration(t.Average()),
				FormatDuration(t.Max),
			)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	var issues []string
	for i := range s.Nodes {
		n := &s.Nodes[i]
		for _, issue := range n.Issues {
			issues = append(issues, fmt.Sprintf("%s (%s): %s", n.Key, n.DisplayName(), issue))
		}
	}
	if len(issues) > 0 {
		fmt.Fprintf(w, "\n%d issue(s):\n", len(issues))
		for _, issue := range issues {
			fmt.Fprintf(w, "  %s\n", issue)
		}
	}
	return nil
}

package output

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"github.com/KarelPeeters/wtf/internal/snapshot"
)

const (
	defaultWidth  = 120
	defaultHeight = 40
)

// Display redraws the latest snapshot in place on a terminal.
type Display struct {
	out     io.Writer
	fd      int
	tty     bool
	threads bool
	drawn   int // lines of the previous frame
}

// NewDisplay draws on f. Nothing is drawn unless f is a terminal.
func NewDisplay(f *os.File, showThreads bool) *Display {
	fd := f.Fd()
	return &Display{
		out:     f,
		fd:      int(fd),
		tty:     os.Getenv("TERM") != "dumb" && (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)),
		threads: showThreads,
	}
}

// Enabled reports whether the display will draw anything.
func (d *Display) Enabled() bool {
	return d.tty
}

// Run redraws on every published snapshot until the final one is out or ctx
// is cancelled. The last frame is erased so the summary can take its place.
func (d *Display) Run(ctx context.Context, pub *snapshot.Publisher) error {
	if !d.tty {
		return nil
	}
	defer d.Clear()
	for {
		select {
		case <-pub.Updates():
			if s := pub.Latest(); s != nil && !s.Final {
				if err := d.Draw(s); err != nil {
					return fmt.Errorf("drawing display: %w", err)
				}
			}
		case <-pub.Done():
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (d *Display) size() (int, int) {
	w, h, err := term.GetSize(d.fd)
	if err != nil || w <= 0 || h <= 0 {
		return defaultWidth, defaultHeight
	}
	return w, h
}

// Draw replaces the previous frame with s.
func (d *Display) Draw(s *snapshot.Snapshot) error {
	width, height := d.size()
	var buf bytes.Buffer
	d.erase(&buf)
	if err := Render(&buf, s, RenderOptions{
		ShowThreads: d.threads,
		Width:       width,
		MaxLines:    height - 1,
		TopSyscalls: 3,
	}); err != nil {
		return err
	}
	d.drawn = bytes.Count(buf.Bytes(), []byte("\n"))
	_, err := d.out.Write(buf.Bytes())
	return err
}

// Clear erases the last frame.
func (d *Display) Clear() {
	if !d.tty || d.drawn == 0 {
		return
	}
	var buf bytes.Buffer
	d.erase(&buf)
	d.drawn = 0
	_, _ = d.out.Write(buf.Bytes())
}

func (d *Display) erase(buf *bytes.Buffer) {
	if d.drawn > 0 {
		// Cursor up to the first line of the frame, then clear to the end.
		fmt.Fprintf(buf, "\033[%dA\r\033[J", d.drawn)
	}
}

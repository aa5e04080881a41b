package interactive

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/adamancini/upkeep/internal/update"
)

// ProgressRenderer prints download progress. On a terminal it redraws one
// line; otherwise it prints a line every ten percent.
type ProgressRenderer struct {
	out  io.Writer
	tty  bool
	mu   sync.Mutex
	last int
	done bool
}

// NewProgressRenderer creates a renderer writing to out.
func NewProgressRenderer(out io.Writer, tty bool) *ProgressRenderer {
	return &ProgressRenderer{out: out, tty: tty, last: -1}
}

// Render is an update.ProgressFunc.
func (r *ProgressRenderer) Render(p update.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pct := p.Percent()
	if r.tty {
		if p.TotalBytes > 0 && pct == r.last {
			return
		}
		_, _ = fmt.Fprintf(r.out, "\r%s", padRight(FormatProgress(p), 72))
		r.last = pct
		r.done = false
		return
	}

	if p.TotalBytes <= 0 {
		return
	}
	step := pct / 10 * 10
	if step <= r.last {
		return
	}
	_, _ = fmt.Fprintln(r.out, FormatProgress(p))
	r.last = step
}

// Finish terminates the progress line.
func (r *ProgressRenderer) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tty && r.last >= 0 && !r.done {
		_, _ = fmt.Fprintln(r.out)
	}
	r.done = true
}

// FormatProgress renders a progress snapshot, e.g.
// "Downloading  45%  4.5 MB / 10 MB  1.2 MB/s  5s left".
func FormatProgress(p update.Progress) string {
	var b strings.Builder
	if p.TotalBytes > 0 {
		fmt.Fprintf(&b, "Downloading %3d%%  %s / %s", p.Percent(),
			humanize.Bytes(uint64(p.BytesTransferred)), humanize.Bytes(uint64(p.TotalBytes)))
	} else {
		fmt.Fprintf(&b, "Downloading  %s", humanize.Bytes(uint64(p.BytesTransferred)))
	}
	if p.BytesPerSecond > 0 {
		fmt.Fprintf(&b, "  %s/s", humanize.Bytes(uint64(p.BytesPerSecond)))
	}
	if eta := p.ETA(); eta > 0 {
		fmt.Fprintf(&b, "  %s left", eta)
	}
	return b.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

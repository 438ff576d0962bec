// Package progress reports batch progress on a terminal.
package progress

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const barWidth = 20

// Indicator prints one updating line per batch. A nil writer disables it.
type Indicator struct {
	out     io.Writer
	message string
	total   int
	done    int
	failed  int
	start   time.Time
	now     func() time.Time
}

func New(out io.Writer, message string, total int) *Indicator {
	return &Indicator{out: out, message: message, total: total, now: time.Now, start: time.Now()}
}

// Step records one finished item, failed when err is non-nil.
func (p *Indicator) Step(item string, err error) {
	p.done++
	if err != nil {
		p.failed++
	}
	if p.out == nil {
		return
	}
	fmt.Fprintf(p.out, "\r%s [%s] %d/%d %s", p.message, bar(p.done, p.total), p.done, p.total, item)
}

// Finish ends the line with a summary.
func (p *Indicator) Finish() {
	if p.out == nil {
		return
	}
	elapsed := p.now().Sub(p.start)
	if p.failed > 0 {
		fmt.Fprintf(p.out, "\r%s: %d ok, %d con error en %s\n", p.message, p.done-p.failed, p.failed, formatDuration(elapsed))
		return
	}
	fmt.Fprintf(p.out, "\r%s: %d completados en %s\n", p.message, p.done, formatDuration(elapsed))
}

func bar(done, total int) string {
	if total <= 0 {
		return strings.Repeat("░", barWidth)
	}
	filled := done * barWidth / total
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
}

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/moffa90/go-pybricks/hub"
)

// progressBar renders upload progress on one terminal line.
type progressBar struct {
	out    io.Writer
	width  int
	active bool
}

func newProgressBar(out io.Writer, width int) *progressBar {
	return &progressBar{out: out, width: width}
}

func (pb *progressBar) render(percentage float64) string {
	filled := int(float64(pb.width) * percentage / 100.0)
	if filled > pb.width {
		filled = pb.width
	}
	if filled < 0 {
		filled = 0
	}

	bar := strings.Repeat("█", filled) + strings.Repeat("░", pb.width-filled)
	return fmt.Sprintf("[%s] %5.1f%%", bar, percentage)
}

// Update is a hub.ProgressCallback.
func (pb *progressBar) Update(p hub.Progress) {
	pb.active = true
	fmt.Fprint(pb.out, "\r\033[K")

	var eta time.Duration
	if p.Percentage > 0 && p.Percentage < 100 {
		total := time.Duration(float64(p.ElapsedTime) * 100.0 / p.Percentage)
		eta = total - p.ElapsedTime
	}

	fmt.Fprintf(pb.out, "%s %s | chunk %d/%d | %d/%d bytes | ETA %s",
		phaseStyle.Render(fmt.Sprintf("%-12s", p.Phase)),
		pb.render(p.Percentage),
		p.ChunksWritten, p.TotalChunks,
		p.BytesWritten, p.TotalBytes,
		eta.Round(100*time.Millisecond),
	)
}

// Done ends the progress line.
func (pb *progressBar) Done() {
	if pb.active {
		fmt.Fprintln(pb.out)
		pb.active = false
	}
}

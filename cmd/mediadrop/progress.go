package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"mediadrop/internal/uploader"

	"golang.org/x/term"
)

const barWidth = 30

// progressPrinter renders pipeline progress. On a terminal it redraws a single
// bar line; otherwise it prints one line per stage.
type progressPrinter struct {
	mu        sync.Mutex
	w         io.Writer
	tty       bool
	lastStage uploader.Stage
	drawn     bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	tty := false
	if f, ok := w.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return &progressPrinter{w: w, tty: tty}
}

func (p *progressPrinter) Update(pr uploader.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.tty {
		if pr.Stage != p.lastStage {
			p.lastStage = pr.Stage
			fmt.Fprintln(p.w, stageLine(pr))
		}
		return
	}

	fmt.Fprintf(p.w, "\r%s", renderBar(pr, barWidth))
	p.drawn = true
}

// Done ends the bar line so later output starts on a fresh line.
func (p *progressPrinter) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drawn {
		fmt.Fprintln(p.w)
		p.drawn = false
	}
}

func stageLine(pr uploader.Progress) string {
	if pr.Detail != "" {
		return fmt.Sprintf("%s (%s)", pr.Stage, pr.Detail)
	}
	return string(pr.Stage)
}

// renderBar draws "[#####-----]  50% uploading (detail)" padded so a shorter
// redraw clears the previous one.
func renderBar(pr uploader.Progress, width int) string {
	percent := pr.Percent
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := width * percent / 100

	line := fmt.Sprintf("[%s%s] %3d%% %s",
		strings.Repeat("#", filled),
		strings.Repeat("-", width-filled),
		percent,
		stageLine(pr))
	return fmt.Sprintf("%-*s", width+40, line)
}

package batch

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Reporter receives progress for a run. Update is called from worker
// goroutines and must be safe for concurrent use.
type Reporter interface {
	Start(s ProgressSnapshot)
	Update(s ProgressSnapshot)
	Finish(s ProgressSnapshot)
}

// ProgressFunc adapts a function into a Reporter that is called on every
// update and at the end of the run.
type ProgressFunc func(s ProgressSnapshot)

// Start implements Reporter.
func (f ProgressFunc) Start(ProgressSnapshot) {}

// Update implements Reporter.
func (f ProgressFunc) Update(s ProgressSnapshot) { f(s) }

// Finish implements Reporter.
func (f ProgressFunc) Finish(s ProgressSnapshot) { f(s) }

type nopReporter struct{}

func (nopReporter) Start(ProgressSnapshot)  {}
func (nopReporter) Update(ProgressSnapshot) {}
func (nopReporter) Finish(ProgressSnapshot) {}

const (
	defaultBarWidth       = 40
	defaultRenderInterval = 100 * time.Millisecond
)

//nolint:gochecknoglobals // styles are immutable after init
var labelStyle = lipgloss.NewStyle().Bold(true)

// DefaultReporter draws a bar on stderr when stderr is a terminal and
// reports nothing otherwise.
func DefaultReporter(label string) Reporter {
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return nopReporter{}
	}
	return NewBarReporter(os.Stderr, label)
}

// BarReporter renders a single-line progress bar, redrawn in place with a
// carriage return. Redraws are throttled; the final state is always drawn.
type BarReporter struct {
	out      io.Writer
	label    string
	bar      progress.Model
	printer  *message.Printer
	interval time.Duration

	mu            sync.Mutex
	lastDraw      time.Time
	lastProcessed int
}

// NewBarReporter returns a BarReporter writing to w.
func NewBarReporter(w io.Writer, label string) *BarReporter {
	return &BarReporter{
		out:      w,
		label:    label,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(defaultBarWidth), progress.WithoutPercentage()),
		printer:  message.NewPrinter(language.English),
		interval: defaultRenderInterval,
	}
}

// Start implements Reporter.
func (r *BarReporter) Start(s ProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draw(s)
}

// Update implements Reporter. A snapshot older than the last one drawn is
// dropped.
func (r *BarReporter) Update(s ProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ProcessedItems < r.lastProcessed || time.Since(r.lastDraw) < r.interval {
		return
	}
	r.draw(s)
}

// Finish implements Reporter.
func (r *BarReporter) Finish(s ProgressSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.draw(s)
	_, _ = fmt.Fprintln(r.out)
}

// Line renders s without writing it.
func (r *BarReporter) Line(s ProgressSnapshot) string {
	label := ""
	if r.label != "" {
		label = labelStyle.Render(r.label) + " "
	}

	if s.Indeterminate() {
		return label + r.printer.Sprintf("%d done [%s, %.1f/s]",
			s.ProcessedItems, s.ElapsedTime.Round(time.Second), s.ItemsPerSecond)
	}

	return label + r.bar.ViewAs(s.PercentComplete/percentMultiplier) + " " +
		r.printer.Sprintf("%d/%d %3.0f%% [%s, %.1f/s]",
			s.ProcessedItems, s.TotalItems, s.PercentComplete,
			s.ElapsedTime.Round(time.Second), s.ItemsPerSecond)
}

func (r *BarReporter) draw(s ProgressSnapshot) {
	_, _ = fmt.Fprint(r.out, "\r"+r.Line(s))
	r.lastDraw = time.Now()
	r.lastProcessed = s.ProcessedItems
}

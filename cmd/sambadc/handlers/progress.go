package handlers

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/isometry/terraform-provider-sambadc/internal/provision"
)

// BarProgress renders a run as a stage list followed by a progress bar.
type BarProgress struct {
	w       io.Writer
	bar     *progressbar.ProgressBar
	stages  []provision.Stage
	current int
}

// NewBarProgress creates a Progress writing to w.
func NewBarProgress(w io.Writer) *BarProgress {
	return &BarProgress{w: w, current: -1}
}

func (p *BarProgress) Start(caption string, stages []provision.Stage) {
	p.stages = stages
	p.current = -1

	color.New(color.Bold).Fprintln(p.w, caption)
	for i, stage := range stages {
		fmt.Fprintf(p.w, "  %d. %s\n", i+1, stage.Label)
	}

	p.bar = progressbar.NewOptions(len(stages),
		progressbar.OptionSetWriter(p.w),
		progressbar.OptionShowCount(),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetWidth(30),
	)
}

func (p *BarProgress) NextStage() {
	if p.bar == nil {
		return
	}
	if p.current >= 0 {
		_ = p.bar.Add(1)
	}
	p.current++
	if p.current < len(p.stages) {
		p.bar.Describe(p.stages[p.current].Step)
	}
}

func (p *BarProgress) Finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	fmt.Fprintln(p.w)
}

// ColorReporter prints errors in red.
type ColorReporter struct {
	w io.Writer
}

// NewColorReporter creates a Reporter writing to w.
func NewColorReporter(w io.Writer) *ColorReporter {
	return &ColorReporter{w: w}
}

func (r *ColorReporter) Error(msg string) {
	fmt.Fprintln(r.w, color.RedString("Error: %s", msg))
}

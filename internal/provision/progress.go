package provision

import (
	"github.com/isometry/terraform-provider-sambadc/internal/logging"
)

// Progress displays the stages of a run as they execute.
type Progress interface {
	// Start announces the run and the full stage list.
	Start(caption string, stages []Stage)
	// NextStage marks the next stage as running.
	NextStage()
	// Finish marks the run as complete.
	Finish()
}

// Reporter shows error messages to the operator.
type Reporter interface {
	Error(msg string)
}

// LogProgress reports progress through a structured logger.
type LogProgress struct {
	logger  logging.Logger
	stages  []Stage
	current int
}

// NewLogProgress creates a Progress that writes one record per stage.
func NewLogProgress(logger logging.Logger) *LogProgress {
	return &LogProgress{logger: logging.OrNop(logger)}
}

func (p *LogProgress) Start(caption string, stages []Stage) {
	p.stages = stages
	p.current = -1
	p.logger.Info(caption, map[string]any{
		"stages": len(stages),
	})
}

func (p *LogProgress) NextStage() {
	p.current++
	if p.current >= len(p.stages) {
		return
	}
	stage := p.stages[p.current]
	p.logger.Info(stage.Step, map[string]any{
		"stage":  string(stage.ID),
		"number": p.current + 1,
		"of":     len(p.stages),
	})
}

func (p *LogProgress) Finish() {
	p.logger.Info("Provisioning finished", map[string]any{
		"stages": len(p.stages),
	})
}

// Messages collects reported errors in order.
type Messages struct {
	Errors []string
}

func (m *Messages) Error(msg string) {
	m.Errors = append(m.Errors, msg)
}

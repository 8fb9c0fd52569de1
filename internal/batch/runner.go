package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/iProgramme/AI-shouban/internal/handler"
	"github.com/iProgramme/AI-shouban/internal/log"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const DefaultDelay = 2 * time.Second

type Handler interface {
	Handle(context.Context, handler.Input) (handler.Output, error)
}

type Result struct {
	Task   Task
	Output handler.Output
	Err    error
}

type Summary struct {
	Total     int
	Succeeded int
	Results   []Result
}

func (s Summary) Failed() int { return s.Total - s.Succeeded }

type Runner struct {
	handler Handler
	prefix  string
	delay   time.Duration
}

func New(h Handler, prefix string, delay time.Duration) *Runner {
	return &Runner{handler: h, prefix: prefix, delay: delay}
}

func NewRunner(i *do.Injector) (*Runner, error) {
	return New(
		do.MustInvoke[*handler.Handler](i),
		do.MustInvokeNamed[string](i, "output_prefix"),
		do.MustInvokeNamed[time.Duration](i, "batch_delay"),
	), nil
}

func (t Task) input(prefix string, n int) handler.Input {
	label := lo.Ternary(t.Label != "", "_"+t.Label, "")
	return handler.Input{
		Prompt:      t.Prompt,
		AspectRatio: t.AspectRatio,
		Resolution:  t.Resolution,
		SourcePaths: t.Sources,
		Name:        t.Name,
		Prefix:      fmt.Sprintf("%s_batch_%d%s", prefix, n, label),
	}
}

// Run executes tasks one at a time, waiting the configured delay between
// them. A failed task is recorded and the run continues. Cancelling ctx stops
// the run before the next task starts.
func (r *Runner) Run(ctx context.Context, tasks []Task) (Summary, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("batch").With("tasks", len(tasks))
	logger.Info("starting batch")

	summary := Summary{Total: len(tasks)}
	for n, task := range tasks {
		if n > 0 && r.delay > 0 {
			logger.Info("waiting before next task", "delay", r.delay.String())
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(r.delay):
			}
		} else if err := ctx.Err(); err != nil {
			return summary, err
		}

		tlog := logger.With("task", n+1)
		out, err := r.handler.Handle(ctx, task.input(r.prefix, n+1))
		if err != nil {
			tlog.Error("task failed", "error", err)
		} else {
			tlog.Info("task succeeded", "location", out.Location)
			summary.Succeeded++
		}
		summary.Results = append(summary.Results, Result{Task: task, Output: out, Err: err})
	}

	logger.Info("batch finished", "succeeded", summary.Succeeded, "failed", summary.Failed())
	return summary, nil
}

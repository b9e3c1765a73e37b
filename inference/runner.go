package inference

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/natexcvi/go-llm-eval/agents"
	"github.com/natexcvi/go-llm-eval/records"
	log "github.com/sirupsen/logrus"
)

// ProgressFunc is called after each record of a restricted agent and once
// per completed agent run.
type ProgressFunc func(agent string, done, total int)

// Runner drives agents over a record set and writes one JSON array file
// per agent, named after the agent's label.
type Runner struct {
	agents     []agents.Agent
	outputDir  string
	records    []*records.Record
	appendMode bool
	jsonl      bool
	progress   ProgressFunc
}

type Option func(*Runner)

// WithAppend opens output files in append mode. Earlier results are kept
// as they are; nothing is deduplicated.
func WithAppend(appendMode bool) Option {
	return func(r *Runner) {
		r.appendMode = appendMode
	}
}

// WithJSONL also writes each agent's records of this run, one per line,
// to <label>.jsonl next to the array file.
func WithJSONL(jsonl bool) Option {
	return func(r *Runner) {
		r.jsonl = jsonl
	}
}

func WithProgress(progress ProgressFunc) Option {
	return func(r *Runner) {
		r.progress = progress
	}
}

func NewRunner(agentList []agents.Agent, outputDir string, recs []*records.Record, opts ...Option) (*Runner, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory %s: %w", outputDir, err)
	}
	runner := &Runner{
		agents:    agentList,
		outputDir: outputDir,
		records:   recs,
		progress:  func(string, int, int) {},
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner, nil
}

func (r *Runner) OutputPath(agent agents.Agent) string {
	return filepath.Join(r.outputDir, agent.Name()+".json")
}

func (r *Runner) JSONLPath(agent agents.Agent) string {
	return filepath.Join(r.outputDir, agent.Name()+".jsonl")
}

// RunInSequence runs the agents one after another. Each agent works on its
// own copy of the records. The first failing agent stops the run.
func (r *Runner) RunInSequence(ctx context.Context, maxBatchSize int) error {
	for _, agent := range r.agents {
		if err := r.runAgent(ctx, agent, records.CloneAll(r.records), maxBatchSize); err != nil {
			return err
		}
	}
	return nil
}

// RunConcurrently runs every agent in its own goroutine over its own copy
// of the records. A failing agent does not stop the others; all failures
// are returned together once every agent is done.
func (r *Runner) RunConcurrently(ctx context.Context, maxBatchSize int) error {
	done := make([]chan error, len(r.agents))
	for i, agent := range r.agents {
		recs := records.CloneAll(r.records)
		done[i] = make(chan error, 1)
		go func() {
			done[i] <- r.runAgent(ctx, agent, recs, maxBatchSize)
		}()
	}
	var errs *multierror.Error
	for _, ch := range done {
		if err := <-ch; err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func (r *Runner) runAgent(ctx context.Context, agent agents.Agent, recs []*records.Record, maxBatchSize int) error {
	logger := log.WithField("agent", agent.Name())
	logger.Infof("%s is running...", agent.Name())
	start := time.Now()

	var (
		processed []*records.Record
		err       error
	)
	if agent.Model().Restricted {
		processed, err = r.runStreaming(ctx, agent, recs)
	} else {
		processed = agents.ProcessMultiple(ctx, agent, recs, maxBatchSize)
		r.progress(agent.Name(), len(processed), len(recs))
		err = records.WriteArrayFile(r.OutputPath(agent), processed, false, r.appendMode)
	}
	if err == nil && r.jsonl {
		err = records.WriteJSONL(r.JSONLPath(agent), processed)
	}
	if err != nil {
		return fmt.Errorf("agent %s: %w", agent.Name(), err)
	}
	logger.Infof("%s is completed, elapsed %s", agent.Name(), time.Since(start))
	return nil
}

// runStreaming processes records one at a time and writes each result as
// soon as it is available. On cancellation the records written so far are
// kept and the array is closed.
func (r *Runner) runStreaming(ctx context.Context, agent agents.Agent, recs []*records.Record) ([]*records.Record, error) {
	w, err := records.NewArrayWriter(r.OutputPath(agent), r.appendMode)
	if err != nil {
		return nil, err
	}
	processed := make([]*records.Record, 0, len(recs))
	total := len(recs)
	for i, rec := range recs {
		log.WithField("agent", agent.Name()).Debugf("%s running... (%d of %d)", agent.Name(), i+1, total)
		select {
		case <-ctx.Done():
			if err := w.Close(); err != nil {
				return processed, err
			}
			return processed, ctx.Err()
		case out := <-agents.ProcessAsync(ctx, agent, rec):
			if err := w.Append(out); err != nil {
				w.Close()
				return processed, err
			}
			processed = append(processed, out)
		}
		r.progress(agent.Name(), i+1, total)
	}
	return processed, w.Close()
}

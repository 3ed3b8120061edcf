// Package engine runs scripted interaction jobs across browser sessions.
// Each job drives one session through its steps in order; jobs run
// concurrently on a worker pool and share whatever history their sessions
// share.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/config"
	"github.com/xkilldash9x/scalpel-heal/internal/observability"
)

const (
	defaultConcurrency = 4
	defaultStepTimeout = 2 * time.Minute
	reportTimeout      = 30 * time.Second
)

// -- Interfaces for Dependency Inversion --

// Performer drives one browser session. *service.Session satisfies it.
type Performer interface {
	ID() string
	Perform(ctx context.Context, elementID string, primary schemas.Locator, action schemas.Action) schemas.ActionResult
}

// Sink receives a report for every job the engine finishes.
type Sink interface {
	Report(ctx context.Context, report *schemas.JobReport) error
}

// Job is an ordered list of steps for one session. An empty ID is replaced
// with a generated one.
type Job struct {
	ID      string
	Session Performer
	Steps   []schemas.Step
}

// StepEngine distributes jobs to a pool of workers.
type StepEngine struct {
	cfg    config.Interface
	logger *zap.Logger
	sink   Sink
	wg     sync.WaitGroup

	// stateLock protects the running state of the engine.
	stateLock sync.Mutex
	isRunning bool
}

// New creates a StepEngine.
func New(cfg config.Interface, logger *zap.Logger, sink Sink) (*StepEngine, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if sink == nil {
		return nil, errors.New("sink cannot be nil")
	}
	return &StepEngine{
		cfg:    cfg,
		logger: logger.Named("step_engine"),
		sink:   sink,
	}, nil
}

// Start launches the worker pool, consuming jobs until the channel is closed
// or ctx is cancelled.
func (e *StepEngine) Start(ctx context.Context, jobs <-chan Job) {
	e.stateLock.Lock()
	if e.isRunning {
		e.stateLock.Unlock()
		e.logger.Warn("StepEngine.Start called, but engine is already running.")
		return
	}
	e.isRunning = true
	e.stateLock.Unlock()

	concurrency := e.concurrency()
	e.logger.Info("Starting step engine worker pool", zap.Int("concurrency", concurrency))

	for i := 0; i < concurrency; i++ {
		e.wg.Add(1)
		go e.runWorker(ctx, i+1, jobs)
	}
}

// Stop waits for all workers to exit. Workers exit once the job channel is
// drained or the context passed to Start is cancelled.
func (e *StepEngine) Stop() {
	e.logger.Info("Stopping step engine... waiting for workers to finish.")
	e.wg.Wait()

	e.stateLock.Lock()
	e.isRunning = false
	e.stateLock.Unlock()

	e.logger.Info("Step engine stopped gracefully.")
}

// Run executes jobs with bounded concurrency and returns their reports in
// input order. Job failures are recorded in the reports; the returned error
// is the first sink failure, if any.
func (e *StepEngine) Run(ctx context.Context, jobs []Job) ([]*schemas.JobReport, error) {
	reports := make([]*schemas.JobReport, len(jobs))

	var g errgroup.Group
	g.SetLimit(e.concurrency())
	for i := range jobs {
		job := jobs[i]
		g.Go(func() error {
			job = withID(job)
			logger := e.logger.With(zap.String("job_id", job.ID))
			reports[i] = e.execute(ctx, job, logger)
			return e.deliver(reports[i], logger)
		})
	}
	return reports, g.Wait()
}

func (e *StepEngine) concurrency() int {
	if n := e.cfg.Engine().Concurrency; n > 0 {
		return n
	}
	return defaultConcurrency
}

// runWorker is the main loop for a single worker goroutine.
func (e *StepEngine) runWorker(ctx context.Context, workerID int, jobs <-chan Job) {
	defer e.wg.Done()
	logger := e.logger.With(zap.Int("worker_id", workerID))
	logger.Debug("Worker goroutine started")

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Context cancelled, worker shutting down.", zap.Error(ctx.Err()))
			return
		case job, ok := <-jobs:
			if !ok {
				logger.Debug("Job queue closed and drained, worker shutting down.")
				return
			}
			e.process(ctx, job, logger)
		}
	}
}

// process runs one job and hands its report to the sink.
func (e *StepEngine) process(ctx context.Context, job Job, logger *zap.Logger) {
	job = withID(job)
	logger = logger.With(zap.String("job_id", job.ID))
	report := e.execute(ctx, job, logger)
	if err := e.deliver(report, logger); err != nil {
		logger.Error("Failed to deliver job report", zap.Error(err))
	}
}

// deliver uses its own context so a report is still written when the job
// context has been cancelled.
func (e *StepEngine) deliver(report *schemas.JobReport, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()
	if err := e.sink.Report(ctx, report); err != nil {
		return fmt.Errorf("report job %s: %w", report.JobID, err)
	}
	logger.Debug("Job report delivered.", zap.Bool("succeeded", report.Succeeded()))
	return nil
}

// execute runs job's steps in order. A failed step aborts the job unless it
// is marked ContinueOnFailure; the steps after an abort are reported skipped.
func (e *StepEngine) execute(ctx context.Context, job Job, logger *zap.Logger) *schemas.JobReport {
	report := &schemas.JobReport{
		JobID:     job.ID,
		StartedAt: time.Now().UTC(),
		Steps:     make([]schemas.StepReport, 0, len(job.Steps)),
	}
	defer func() { report.FinishedAt = time.Now().UTC() }()

	var aborted error
	if job.Session == nil {
		aborted = errors.New("job has no session")
	} else {
		report.SessionID = job.Session.ID()
	}

	timeout := e.cfg.Engine().StepTimeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}

	for _, step := range job.Steps {
		label := step.Label()
		if aborted == nil && ctx.Err() != nil {
			aborted = ctx.Err()
		}
		if aborted != nil {
			report.Steps = append(report.Steps, schemas.StepReport{Step: label, Status: schemas.StepSkipped})
			continue
		}

		var result schemas.ActionResult
		if err := step.Validate(); err != nil {
			result.Err = err
		} else {
			stepCtx, cancel := context.WithTimeout(ctx, timeout)
			result = job.Session.Perform(stepCtx, step.ElementID, step.Locator, step.Action)
			cancel()
		}

		if result.Success {
			report.Steps = append(report.Steps, schemas.StepReport{Step: label, Status: schemas.StepSucceeded, Result: result})
			continue
		}

		report.Steps = append(report.Steps, schemas.StepReport{Step: label, Status: schemas.StepFailed, Result: result})
		logger.Warn("Step failed.",
			zap.String("step", label),
			observability.ElementID(step.ElementID),
			zap.Bool("continue_on_failure", step.ContinueOnFailure),
			zap.Error(result.Err),
		)
		if !step.ContinueOnFailure {
			aborted = fmt.Errorf("step %q failed: %w", label, result.Err)
		}
	}

	if aborted != nil {
		report.Error = aborted.Error()
	}
	return report
}

func withID(job Job) Job {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	return job
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/engine"
	"github.com/xkilldash9x/scalpel-heal/internal/service"
)

// plan is the file format accepted by the run command.
type plan struct {
	Jobs []planJob `json:"jobs"`
}

type planJob struct {
	ID string `json:"id,omitempty"`
	target
	Steps []schemas.Step `json:"steps"`
}

func loadPlan(path string) (*plan, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand plan path: %w", err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	var p plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse plan: %w", err)
	}
	if len(p.Jobs) == 0 {
		return nil, errors.New("plan has no jobs")
	}
	for i, job := range p.Jobs {
		if err := job.target.validate(); err != nil {
			return nil, fmt.Errorf("job %d: %w", i, err)
		}
		if len(job.Steps) == 0 {
			return nil, fmt.Errorf("job %d has no steps", i)
		}
	}
	return &p, nil
}

// logSink records each finished job in the log.
type logSink struct {
	logger *zap.Logger
}

func (s logSink) Report(_ context.Context, r *schemas.JobReport) error {
	fields := []zap.Field{
		zap.String("job_id", r.JobID),
		zap.String("session_id", r.SessionID),
		zap.Int("steps", len(r.Steps)),
		zap.Duration("duration", r.FinishedAt.Sub(r.StartedAt)),
	}
	if r.Succeeded() {
		s.logger.Info("Job succeeded.", fields...)
	} else {
		s.logger.Warn("Job failed.", append(fields, zap.String("error", r.Error))...)
	}
	return nil
}

func newRunCommand(a *app) *cobra.Command {
	var planFile string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a plan of steps, one job per page, and print a report per job",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPlan(planFile)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			svc, err := service.New(a.cfg, a.logger)
			if err != nil {
				return err
			}
			eng, err := engine.New(a.cfg, a.logger, logSink{logger: a.logger.Named("report")})
			if err != nil {
				return err
			}

			jobs := make([]engine.Job, 0, len(p.Jobs))
			for _, pj := range p.Jobs {
				drv, release, err := a.open(ctx, pj.target)
				if err != nil {
					return err
				}
				defer release()
				jobs = append(jobs, engine.Job{ID: pj.ID, Session: svc.Session(drv), Steps: pj.Steps})
			}

			reports, err := eng.Run(ctx, jobs)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), reports); err != nil {
				return err
			}
			for _, r := range reports {
				if !r.Succeeded() {
					return fmt.Errorf("%w: job %s: %s", errActionFailed, r.JobID, r.Error)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&planFile, "plan", "", "JSON plan file")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

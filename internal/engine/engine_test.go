package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/scalpel-heal/api/schemas"
	"github.com/xkilldash9x/scalpel-heal/internal/config"
	"github.com/xkilldash9x/scalpel-heal/internal/mocks"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -- Helpers --

func newMockConfig(concurrency int, stepTimeout time.Duration) *mocks.MockConfig {
	cfg := new(mocks.MockConfig)
	cfg.On("Engine").Return(config.EngineConfig{Concurrency: concurrency, StepTimeout: stepTimeout})
	return cfg
}

// collector is a Sink that keeps every report.
type collector struct {
	mu      sync.Mutex
	reports []*schemas.JobReport
}

func (c *collector) Report(_ context.Context, r *schemas.JobReport) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reports = append(c.reports, r)
	return nil
}

func (c *collector) byJob() map[string]*schemas.JobReport {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*schemas.JobReport, len(c.reports))
	for _, r := range c.reports {
		out[r.JobID] = r
	}
	return out
}

func ok() schemas.ActionResult {
	return schemas.ActionResult{Success: true, Attempts: 1, Strategy: "native-click"}
}

func failed(err error) schemas.ActionResult {
	return schemas.ActionResult{Attempts: 4, Err: err}
}

func step(element string, continueOnFailure bool) schemas.Step {
	return schemas.Step{
		ElementID:         element,
		Locator:           schemas.ByID(element),
		Action:            schemas.Click(),
		ContinueOnFailure: continueOnFailure,
	}
}

func newSession(id string) *mocks.MockPerformer {
	p := new(mocks.MockPerformer)
	p.On("ID").Return(id)
	return p
}

// -- Test Suite --

func TestNew_ValidatesDependencies(t *testing.T) {
	logger := zaptest.NewLogger(t)
	cfg := newMockConfig(1, time.Second)

	_, err := New(nil, logger, &collector{})
	assert.Error(t, err)
	_, err = New(cfg, nil, &collector{})
	assert.Error(t, err)
	_, err = New(cfg, logger, nil)
	assert.Error(t, err)

	e, err := New(cfg, logger, &collector{})
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestStepEngine_StartStop(t *testing.T) {
	sink := &collector{}
	e, err := New(newMockConfig(2, time.Second), zaptest.NewLogger(t), sink)
	require.NoError(t, err)

	jobs := make(chan Job, 3)
	for _, id := range []string{"job-1", "job-2", "job-3"} {
		sess := newSession("session-" + id)
		sess.On("Perform", mock.Anything, "login", schemas.ByID("login"), schemas.Click()).Return(ok())
		jobs <- Job{ID: id, Session: sess, Steps: []schemas.Step{step("login", false)}}
	}
	close(jobs)

	e.Start(context.Background(), jobs)
	e.Stop()

	reports := sink.byJob()
	require.Len(t, reports, 3)
	for _, id := range []string{"job-1", "job-2", "job-3"} {
		r := reports[id]
		require.NotNil(t, r, id)
		assert.True(t, r.Succeeded())
		assert.Equal(t, "session-"+id, r.SessionID)
		assert.False(t, r.FinishedAt.Before(r.StartedAt))
	}
}

func TestStepEngine_StartIsNotReentrant(t *testing.T) {
	e, err := New(newMockConfig(1, time.Second), zaptest.NewLogger(t), &collector{})
	require.NoError(t, err)

	jobs := make(chan Job)
	ctx, cancel := context.WithCancel(context.Background())
	e.Start(ctx, jobs)
	e.Start(ctx, jobs)
	cancel()
	e.Stop()
}

func TestExecute_FailureAbortsJob(t *testing.T) {
	e, err := New(newMockConfig(1, time.Second), zaptest.NewLogger(t), &collector{})
	require.NoError(t, err)

	boom := errors.New("intercepted")
	sess := newSession("s1")
	sess.On("Perform", mock.Anything, "a", mock.Anything, mock.Anything).Return(ok())
	sess.On("Perform", mock.Anything, "b", mock.Anything, mock.Anything).Return(failed(boom))

	report := e.execute(context.Background(), Job{ID: "j", Session: sess, Steps: []schemas.Step{
		step("a", false), step("b", false), step("c", false),
	}}, e.logger)

	require.Len(t, report.Steps, 3)
	assert.Equal(t, schemas.StepSucceeded, report.Steps[0].Status)
	assert.Equal(t, schemas.StepFailed, report.Steps[1].Status)
	assert.Equal(t, schemas.StepSkipped, report.Steps[2].Status)
	assert.Contains(t, report.Error, `step "b:click" failed`)
	assert.False(t, report.Succeeded())
	sess.AssertNotCalled(t, "Perform", mock.Anything, "c", mock.Anything, mock.Anything)
}

func TestExecute_ContinueOnFailure(t *testing.T) {
	e, err := New(newMockConfig(1, time.Second), zaptest.NewLogger(t), &collector{})
	require.NoError(t, err)

	sess := newSession("s1")
	sess.On("Perform", mock.Anything, "banner", mock.Anything, mock.Anything).Return(failed(errors.New("gone")))
	sess.On("Perform", mock.Anything, "login", mock.Anything, mock.Anything).Return(ok())

	report := e.execute(context.Background(), Job{ID: "j", Session: sess, Steps: []schemas.Step{
		step("banner", true), step("login", false),
	}}, e.logger)

	require.Len(t, report.Steps, 2)
	assert.Equal(t, schemas.StepFailed, report.Steps[0].Status)
	assert.Equal(t, schemas.StepSucceeded, report.Steps[1].Status)
	assert.Empty(t, report.Error)
	// A tolerated failure still keeps the job from counting as clean.
	assert.False(t, report.Succeeded())
}

func TestExecute_StepTimeoutApplied(t *testing.T) {
	e, err := New(newMockConfig(1, 50*time.Millisecond), zaptest.NewLogger(t), &collector{})
	require.NoError(t, err)

	sess := newSession("s1")
	sess.On("Perform", mock.Anything, "a", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			deadline, ok := ctx.Deadline()
			assert.True(t, ok)
			assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
		}).
		Return(ok())

	report := e.execute(context.Background(), Job{ID: "j", Session: sess, Steps: []schemas.Step{step("a", false)}}, e.logger)
	assert.True(t, report.Succeeded())
}

func TestExecute_CancelledContextSkipsSteps(t *testing.T) {
	e, err := New(newMockConfig(1, time.Second), zaptest.NewLogger(t), &collector{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sess := newSession("s1")
	report := e.execute(ctx, Job{ID: "j", Session: sess, Steps: []schemas.Step{step("a", false), step("b", false)}}, e.logger)

	require.Len(t, report.Steps, 2)
	for _, s := range report.Steps {
		assert.Equal(t, schemas.StepSkipped, s.Status)
	}
	assert.Equal(t, context.Canceled.Error(), report.Error)
	sess.AssertNotCalled(t, "Perform", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecute_InvalidStepAndMissingSession(t *testing.T) {
	e, err := New(newMockConfig(1, time.Second), zaptest.NewLogger(t), &collector{})
	require.NoError(t, err)

	sess := newSession("s1")
	bad := schemas.Step{ElementID: "x", Locator: schemas.ByID("x"), Action: schemas.Action{Kind: "drag"}}
	report := e.execute(context.Background(), Job{ID: "j", Session: sess, Steps: []schemas.Step{bad}}, e.logger)
	require.Len(t, report.Steps, 1)
	assert.Equal(t, schemas.StepFailed, report.Steps[0].Status)
	assert.Error(t, report.Steps[0].Result.Err)

	report = e.execute(context.Background(), Job{ID: "j2", Steps: []schemas.Step{step("a", false)}}, e.logger)
	assert.Equal(t, schemas.StepSkipped, report.Steps[0].Status)
	assert.Equal(t, "job has no session", report.Error)
}

func TestRun_OrderedReportsAndGeneratedIDs(t *testing.T) {
	sink := new(mocks.MockSink)
	sink.On("Report", mock.Anything, mock.Anything).Return(nil)
	e, err := New(newMockConfig(2, time.Second), zaptest.NewLogger(t), sink)
	require.NoError(t, err)

	var jobs []Job
	for _, id := range []string{"s1", "s2", "s3", "s4"} {
		sess := newSession(id)
		sess.On("Perform", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(ok())
		jobs = append(jobs, Job{Session: sess, Steps: []schemas.Step{step("a", false), step("b", false)}})
	}

	reports, err := e.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, reports, 4)
	for i, r := range reports {
		assert.Equal(t, jobs[i].Session.ID(), r.SessionID)
		_, perr := uuid.Parse(r.JobID)
		assert.NoError(t, perr)
		assert.True(t, r.Succeeded())
	}
	sink.AssertNumberOfCalls(t, "Report", 4)
}

func TestRun_SinkError(t *testing.T) {
	sink := new(mocks.MockSink)
	sink.On("Report", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	e, err := New(newMockConfig(1, time.Second), zaptest.NewLogger(t), sink)
	require.NoError(t, err)

	sess := newSession("s1")
	sess.On("Perform", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(ok())

	reports, err := e.Run(context.Background(), []Job{{ID: "j", Session: sess, Steps: []schemas.Step{step("a", false)}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	require.Len(t, reports, 1)
	assert.True(t, reports[0].Succeeded())
}

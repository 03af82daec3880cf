package harmonization

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/interfaces"
	"github.com/ternarybob/harmonia/internal/models"
)

// DefaultPollInterval is the fixed spacing between completion checks
const DefaultPollInterval = 10 * time.Second

// Job is one dispatched request awaiting completion
type Job struct {
	Request *models.HarmonizationRequest
	Receipt *interfaces.DispatchReceipt
	Logger  arbor.ILogger

	// OnAttempt is called after every pending observation
	OnAttempt func(attempt int)
}

func (j *Job) logger(fallback arbor.ILogger) arbor.ILogger {
	if j.Logger != nil {
		return j.Logger
	}
	return fallback
}

// CompletionStrategy waits for a dispatched job to reach a terminal state
type CompletionStrategy interface {
	Name() string
	Await(ctx context.Context, job *Job) (*models.PollResult, error)
}

// PollOptions bounds a poll loop. A zero Timeout never expires.
type PollOptions struct {
	Interval time.Duration
	Timeout  time.Duration
}

func (o PollOptions) interval() time.Duration {
	if o.Interval <= 0 {
		return DefaultPollInterval
	}
	return o.Interval
}

// pollUntil calls check immediately and then once per interval until it
// reports done, ctx ends, or the optional timeout elapses.
func pollUntil(ctx context.Context, opts PollOptions, check func(attempt int) bool) error {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ticker := time.NewTicker(opts.interval())
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return pollError(ctx, opts)
		}

		if check(attempt) {
			return nil
		}

		select {
		case <-ctx.Done():
			return pollError(ctx, opts)
		case <-ticker.C:
		}
	}
}

func pollError(ctx context.Context, opts PollOptions) error {
	if opts.Timeout > 0 && ctx.Err() == context.DeadlineExceeded {
		return ErrPollTimeout
	}
	return ctx.Err()
}

// StorePoller detects completion by querying the document store
type StorePoller struct {
	store  interfaces.DocumentStore
	opts   PollOptions
	logger arbor.ILogger
}

// NewStorePoller creates a poller over the document store
func NewStorePoller(store interfaces.DocumentStore, opts PollOptions, logger arbor.ILogger) *StorePoller {
	return &StorePoller{store: store, opts: opts, logger: logger}
}

func (p *StorePoller) Name() string {
	return "store"
}

// Check runs one completion query and classifies it
func (p *StorePoller) Check(ctx context.Context, targetVersion string) (*models.PollResult, error) {
	docs, err := p.store.FindCompletion(ctx, targetVersion)
	if err != nil {
		return nil, err
	}
	return &models.PollResult{
		Outcome:   models.ClassifyDocuments(docs, targetVersion),
		Documents: docs,
		Attempts:  1,
	}, nil
}

// Await blocks until the first non-empty completion set appears.
// Query errors are logged and the next tick tries again.
func (p *StorePoller) Await(ctx context.Context, job *Job) (*models.PollResult, error) {
	logger := job.logger(p.logger)
	target := job.Request.TargetSchemaVersion

	var result *models.PollResult
	err := pollUntil(ctx, p.opts, func(attempt int) bool {
		r, err := p.Check(ctx, target)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Str("target", target).Msg("Completion query failed, retrying")
			notify(job, attempt)
			return false
		}

		if r.Outcome == models.PollPending {
			logger.Debug().Int("attempt", attempt).Str("target", target).Msg("No completion documents yet")
			notify(job, attempt)
			return false
		}

		r.Attempts = attempt
		result = r
		return true
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("outcome", string(result.Outcome)).
		Int("documents", len(result.Documents)).
		Int("attempts", result.Attempts).
		Msg("Completion documents found")

	return result, nil
}

// ExecutionPoller detects completion from the engine's executions API
type ExecutionPoller struct {
	client       interfaces.WorkflowClient
	workflowID   string
	legacyOffset bool
	opts         PollOptions
	logger       arbor.ILogger

	// inFlight counts offset-correlated jobs currently being polled
	inFlight int32
}

// NewExecutionPoller creates a poller over the executions API.
// legacyOffset enables guessing ids from the latest execution.
func NewExecutionPoller(client interfaces.WorkflowClient, workflowID string, legacyOffset bool, opts PollOptions, logger arbor.ILogger) *ExecutionPoller {
	return &ExecutionPoller{
		client:       client,
		workflowID:   workflowID,
		legacyOffset: legacyOffset,
		opts:         opts,
		logger:       logger,
	}
}

func (p *ExecutionPoller) Name() string {
	return "execution"
}

// offsetFor is the distance from the latest execution to this job's run.
// A generate-missing-key run starts one side-effect execution fewer.
func offsetFor(generateMissingKey bool) models.ExecutionID {
	if generateMissingKey {
		return 1
	}
	return 2
}

// resolveExecutionID prefers the id echoed by the trigger. The offset scheme
// assumes strictly ordered ids and no concurrent submissions.
func (p *ExecutionPoller) resolveExecutionID(ctx context.Context, job *Job, logger arbor.ILogger) (models.ExecutionID, bool, error) {
	if job.Receipt != nil && job.Receipt.ExecutionID > 0 {
		return job.Receipt.ExecutionID, false, nil
	}
	if !p.legacyOffset {
		return 0, false, ErrNoCorrelation
	}

	latest, err := p.client.LatestExecution(ctx, p.workflowID)
	if err != nil {
		return 0, false, err
	}

	id := latest.ID + offsetFor(job.Request.GenerateMissingKey)
	logger.Warn().
		Int64("latest", int64(latest.ID)).
		Int64("execution_id", int64(id)).
		Msg("Execution id derived from latest execution offset")
	return id, true, nil
}

// Await polls the execution until it finishes as a webhook run or errors.
// An error mode is a terminal failure result, not an error return.
func (p *ExecutionPoller) Await(ctx context.Context, job *Job) (*models.PollResult, error) {
	logger := job.logger(p.logger)

	id, guessed, err := p.resolveExecutionID(ctx, job, logger)
	if err != nil {
		return nil, err
	}
	if guessed {
		if n := atomic.AddInt32(&p.inFlight, 1); n > 1 {
			logger.Warn().Int("in_flight", int(n)).Msg("Concurrent submissions in flight, offset correlation may track the wrong execution")
		}
		defer atomic.AddInt32(&p.inFlight, -1)
	}

	var result *models.PollResult
	err = pollUntil(ctx, p.opts, func(attempt int) bool {
		exec, err := p.client.GetExecution(ctx, id)
		if err != nil {
			logger.Warn().Err(err).Int("attempt", attempt).Int64("execution_id", int64(id)).Msg("Execution status read failed, retrying")
			notify(job, attempt)
			return false
		}

		outcome := exec.Classify()
		if outcome == models.PollPending {
			logger.Debug().Int("attempt", attempt).Bool("finished", exec.Finished).Str("mode", exec.Mode).Msg("Execution still running")
			notify(job, attempt)
			return false
		}

		result = &models.PollResult{Outcome: outcome, Execution: exec, Attempts: attempt}
		return true
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("outcome", string(result.Outcome)).
		Int64("execution_id", int64(id)).
		Int("attempts", result.Attempts).
		Msg("Execution reached a terminal state")

	return result, nil
}

func notify(job *Job, attempt int) {
	if job.OnAttempt != nil {
		job.OnAttempt(attempt)
	}
}

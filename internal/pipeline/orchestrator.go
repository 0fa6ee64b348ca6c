package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"bulletsmith/internal/ai"
	"bulletsmith/internal/budget"
	"bulletsmith/internal/cache"
	"bulletsmith/internal/deadletter"
	"bulletsmith/internal/errors"
	"bulletsmith/internal/ratelimit"
	"bulletsmith/internal/signals"
	"bulletsmith/internal/types"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// stage names double as DLQ tags and log fields, so they stay SCREAMING_CASE
type stage string

const (
	stageIngest    stage = "INGEST"
	stageExtract   stage = "EXTRACT_SIGNALS"
	stageProcess   stage = "PROCESS"
	stageValidate  stage = "VALIDATE"
	stageOutput    stage = "OUTPUT"
	stageCompleted stage = "COMPLETED"
)

// Pipeline tuning knobs. Zero values fall back to these defaults.
const (
	DefaultBatchSize           = 5
	DefaultValidateParallelism = 4
	DefaultCostPerRequest      = 0.01
	DefaultCallerKey           = "pipeline"
)

// Config tunes orchestrator behavior per deployment
type Config struct {
	BatchSize           int     // bullets per external rewrite call
	ValidateParallelism int     // concurrent consistency checks per job
	CostPerRequest      float64 // estimated spend charged per external call
	CallerKey           string  // limiter/budget ledger key when none is given
}

func (c *Config) applyDefaults() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.ValidateParallelism <= 0 {
		c.ValidateParallelism = DefaultValidateParallelism
	}
	if c.CostPerRequest <= 0 {
		c.CostPerRequest = DefaultCostPerRequest
	}
	if c.CallerKey == "" {
		c.CallerKey = DefaultCallerKey
	}
}

// Options carries the orchestrator's collaborators. Provider is required;
// every other dependency may be nil, which disables that concern (no
// caching, no rate limiting, no budget, no dead letters, no metrics).
type Options struct {
	Provider    ai.Provider
	Extractor   *signals.Extractor
	SignalCache *cache.SignalCache
	Results     *cache.ResultStore
	Limiter     *ratelimit.Manager
	Budget      *budget.Manager
	DeadLetter  *deadletter.Log
	Logger      *errors.Logger
	Metrics     Metrics
	Config      Config
}

// Orchestrator drives one revision job through the stage sequence
// INGEST, EXTRACT_SIGNALS, PROCESS, VALIDATE, OUTPUT. It owns no job state
// between calls and is safe to run concurrently for independent jobs.
type Orchestrator struct {
	provider    ai.Provider
	extractor   *signals.Extractor
	signalCache *cache.SignalCache
	results     *cache.ResultStore
	limiter     *ratelimit.Manager
	budget      *budget.Manager
	deadLetter  *deadletter.Log
	logger      *errors.Logger
	metrics     Metrics
	cfg         Config
	tracer      trace.Tracer
	newJobID    func() string
}

// New wires an orchestrator from its collaborators
func New(opts Options) (*Orchestrator, error) {
	if opts.Provider == nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
			"AI provider is required", nil)
	}
	if opts.Extractor == nil {
		opts.Extractor = signals.NewExtractor(signals.DefaultConfig(), opts.Logger)
	}
	if opts.Metrics == nil {
		opts.Metrics = noopMetrics{}
	}

	cfg := opts.Config
	cfg.applyDefaults()

	return &Orchestrator{
		provider:    opts.Provider,
		extractor:   opts.Extractor,
		signalCache: opts.SignalCache,
		results:     opts.Results,
		limiter:     opts.Limiter,
		budget:      opts.Budget,
		deadLetter:  opts.DeadLetter,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		cfg:         cfg,
		tracer:      otel.Tracer("bulletsmith.pipeline"),
		newJobID:    uuid.NewString,
	}, nil
}

// jobState is the working memory for one job. It never crosses job
// boundaries and is discarded once the terminal output is captured.
type jobState struct {
	input       types.JobInput
	caller      string
	description string
	descHash    string
	bullets     []string
	idemKey     string
	signals     types.Signals
	results     []types.BulletResult
	redFlags    []string
	cached      *types.JobOutput
	output      *types.JobOutput
	recorder    *stageRecorder

	tokens     atomic.Int64
	nearWarned atomic.Bool
}

// Execute runs one job under the default caller key
func (o *Orchestrator) Execute(ctx context.Context, input types.JobInput) (*types.JobOutput, error) {
	return o.ExecuteForCaller(ctx, "", input)
}

// ExecuteForCaller runs one job, charging rate and budget consumption to the
// given caller key. Input errors return immediately; any later failure
// appends a dead letter entry before propagating.
func (o *Orchestrator) ExecuteForCaller(ctx context.Context, caller string, input types.JobInput) (*types.JobOutput, error) {
	input.Sanitize()
	input.Settings.ApplyDefaults()
	if err := input.Validate(); err != nil {
		o.metrics.RecordJob(ctx, "rejected")
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest, err.Error(), nil)
	}
	if input.JobID == "" {
		input.JobID = o.newJobID()
	}
	if caller == "" {
		caller = o.cfg.CallerKey
	}

	st := &jobState{
		input:    input,
		caller:   caller,
		recorder: newStageRecorder(input.JobID, o.logger),
	}

	ctx, span := o.tracer.Start(ctx, "pipeline.execute",
		trace.WithAttributes(attribute.String("job.id", input.JobID)))
	defer span.End()

	current := stageIngest
	for current != stageCompleted {
		if err := ctx.Err(); err != nil {
			cancelled := errors.NewInternalError(errors.ErrCodeJobFailed,
				"Job cancelled", err)
			return nil, o.fail(ctx, current, st, span, cancelled)
		}

		next, err := o.step(ctx, current, st)
		if err != nil {
			return nil, o.fail(ctx, current, st, span, err)
		}
		current = next
	}

	span.SetAttributes(
		attribute.Bool("success", true),
		attribute.Int("bullets", len(st.bullets)),
		attribute.Int("red_flags", len(st.output.RedFlags)),
		attribute.Int64("tokens.total", st.tokens.Load()),
	)
	if o.logger != nil {
		o.logger.Info("Job completed",
			"job_id", input.JobID,
			"bullets", len(st.bullets),
			"red_flags", len(st.output.RedFlags),
			"tokens", st.tokens.Load())
	}
	o.metrics.RecordJob(ctx, "completed")
	return st.output, nil
}

// step runs one stage inside its own span and returns the next stage
func (o *Orchestrator) step(ctx context.Context, s stage, st *jobState) (stage, error) {
	ctx, span := o.tracer.Start(ctx, "pipeline."+string(s),
		trace.WithAttributes(attribute.String("job.id", st.input.JobID)))
	defer span.End()

	start := time.Now()
	defer func() {
		o.metrics.RecordStageDuration(ctx, string(s), time.Since(start).Seconds())
	}()

	var next stage
	var err error
	switch s {
	case stageIngest:
		next, err = o.ingest(ctx, st)
	case stageExtract:
		next, err = o.extractSignals(ctx, st)
	case stageProcess:
		next, err = o.process(ctx, st)
	case stageValidate:
		next, err = o.validate(ctx, st)
	case stageOutput:
		next, err = o.output(ctx, st)
	default:
		err = errors.NewInternalError(errors.ErrCodeJobFailed,
			fmt.Sprintf("Unknown stage: %s", s), nil)
	}

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return "", err
	}
	span.SetAttributes(attribute.Bool("success", true))
	return next, nil
}

// fail finalizes a job that cannot complete: record the failure, append a
// dead letter entry carrying the input snapshot, and hand the typed error
// back to the caller. Input validation errors skip the dead letter log since
// there is nothing to replay. The append itself takes no context, so a
// disconnected caller cannot lose the record.
func (o *Orchestrator) fail(ctx context.Context, failedStage stage, st *jobState, span trace.Span, cause error) error {
	st.recorder.Error(string(failedStage), fmt.Sprintf("Job failed: %v", cause), cause)
	span.RecordError(cause)
	span.SetAttributes(attribute.Bool("success", false))

	var appErr *errors.AppError
	isValidation := stderrors.As(cause, &appErr) && appErr.Type == errors.ErrorTypeValidation

	if !isValidation && o.deadLetter != nil {
		snapshot := st.input
		entry := deadletter.Entry{
			JobID:         st.input.JobID,
			Stage:         string(failedStage),
			Reason:        cause.Error(),
			InputSnapshot: &snapshot,
		}
		if appErr != nil {
			entry.ErrorDetails = map[string]any{
				"type": string(appErr.Type),
				"code": appErr.Code,
			}
		}
		if err := o.deadLetter.Append(entry); err != nil {
			if o.logger != nil {
				o.logger.Warn("Dead letter append failed",
					"job_id", st.input.JobID, "error", err.Error())
			}
		} else {
			o.metrics.RecordDeadLetter(ctx, string(failedStage))
		}
	}

	outcome := "failed"
	switch {
	case isValidation:
		outcome = "rejected"
	case appErr != nil && (appErr.Code == errors.ErrCodeRateLimited || appErr.Code == errors.ErrCodeBudgetExceeded):
		outcome = "denied"
	}
	o.metrics.RecordJob(ctx, outcome)

	if appErr != nil {
		return cause
	}
	return errors.NewInternalError(errors.ErrCodeJobFailed,
		fmt.Sprintf("Job failed at stage %s", failedStage), cause)
}

// ingest normalizes the input, fingerprints it, and short-circuits to OUTPUT
// when an identical job already completed
func (o *Orchestrator) ingest(ctx context.Context, st *jobState) (stage, error) {
	st.recorder.Info(string(stageIngest), "Starting ingestion")

	st.description = signals.NormalizeText(st.input.Description)
	if st.description == "" {
		return "", errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Description is empty after normalization", nil)
	}
	st.descHash = cache.DescriptionHash(st.description)

	st.bullets = signals.NormalizeBullets(st.input.Bullets)
	if len(st.bullets) == 0 {
		return "", errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"No valid bullets provided", nil)
	}

	st.recorder.Info(string(stageIngest),
		fmt.Sprintf("Ingested %d bullets", len(st.bullets)),
		"description_hash", st.descHash)

	st.idemKey = cache.IdempotencyKey(st.input.JobID, st.descHash, st.bullets, st.input.Settings)
	if cached, ok := o.results.Get(ctx, st.idemKey); ok {
		o.metrics.RecordCacheEvent(ctx, "results", "hit")
		st.cached = &cached
		st.recorder.Info(string(stageIngest), "Identical job already completed, serving cached result",
			"idempotency_key", st.idemKey)
		return stageOutput, nil
	}
	if o.results != nil {
		o.metrics.RecordCacheEvent(ctx, "results", "miss")
	}

	return stageExtract, nil
}

// extractSignals resolves Signals for the description: signal cache first,
// then the local heuristic, then the model when local confidence is too low
func (o *Orchestrator) extractSignals(ctx context.Context, st *jobState) (stage, error) {
	st.recorder.Info(string(stageExtract), "Extracting description signals")

	if sig, ok := o.signalCache.Get(ctx, st.descHash); ok {
		o.metrics.RecordCacheEvent(ctx, "signals", "hit")
		st.signals = sig
		st.recorder.Info(string(stageExtract),
			fmt.Sprintf("Served %d cached signal terms", len(sig.TopTerms)),
			"cache_hit", true)
		return stageProcess, nil
	}
	if o.signalCache != nil {
		o.metrics.RecordCacheEvent(ctx, "signals", "miss")
	}

	sig, confidence := o.extractor.Extract(st.description)
	if confidence >= o.extractor.Threshold() {
		st.signals = sig
		st.recorder.Info(string(stageExtract),
			fmt.Sprintf("Local extraction yielded %d terms (confidence %.2f)",
				len(sig.TopTerms), confidence))
	} else {
		st.recorder.Info(string(stageExtract),
			fmt.Sprintf("Local confidence %.2f below threshold %.2f, using model extraction",
				confidence, o.extractor.Threshold()))

		modelSig, err := o.modelExtract(ctx, st)
		if err != nil {
			return "", err
		}
		st.signals = modelSig
		st.recorder.Info(string(stageExtract),
			fmt.Sprintf("Model extraction yielded %d terms", len(modelSig.TopTerms)))
	}

	o.signalCache.Set(ctx, st.descHash, st.signals)
	return stageProcess, nil
}

func (o *Orchestrator) modelExtract(ctx context.Context, st *jobState) (types.Signals, error) {
	warnings, err := o.gate(ctx, st)
	for _, w := range warnings {
		st.recorder.Warn(string(stageExtract), w)
	}
	if err != nil {
		return types.Signals{}, err
	}

	sig, usage, err := o.provider.ExtractSignals(ctx, types.ExtractSignalsInput{
		Description: st.description,
	})
	if err != nil {
		return types.Signals{}, err
	}
	o.recordSpend(st, usage)
	return sig, nil
}

// process rewrites and scores every bullet in batches. Provider failures
// never fail the job here: affected bullets fall back to their original text
// with neutral scores and an explanatory note.
func (o *Orchestrator) process(ctx context.Context, st *jobState) (stage, error) {
	st.recorder.Info(string(stageProcess),
		fmt.Sprintf("Processing %d bullets in batches of %d", len(st.bullets), o.cfg.BatchSize))

	st.results = make([]types.BulletResult, len(st.bullets))
	for start := 0; start < len(st.bullets); start += o.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return "", errors.NewInternalError(errors.ErrCodeJobFailed,
				"Job cancelled during processing", err)
		}

		end := min(start+o.cfg.BatchSize, len(st.bullets))
		if err := o.processChunk(ctx, st, start, st.bullets[start:end]); err != nil {
			return "", err
		}
	}

	st.recorder.Info(string(stageProcess),
		fmt.Sprintf("Processed %d bullets", len(st.results)))
	return stageValidate, nil
}

// processChunk issues one batched rewrite call and re-associates results to
// input bullets by their explicit index. The returned error is non-nil only
// for rate or budget denials; call failures degrade to fallback results.
func (o *Orchestrator) processChunk(ctx context.Context, st *jobState, offset int, chunk []string) error {
	warnings, err := o.gate(ctx, st)
	for _, w := range warnings {
		st.recorder.Warn(string(stageProcess), w)
	}
	if err != nil {
		return err
	}

	out, usage, err := o.provider.ProcessBullets(ctx, types.ProcessBulletsInput{
		Role:         st.input.Role,
		Bullets:      chunk,
		Signals:      st.signals,
		ExtraContext: st.input.ExtraContext,
		Settings:     st.input.Settings,
	})
	if err != nil {
		st.recorder.Warn(string(stageProcess),
			fmt.Sprintf("Batch processing failed: %v", err))
		for i, bullet := range chunk {
			st.results[offset+i] = fallbackResult(bullet,
				fmt.Sprintf("Batch processing failed: %v", err))
		}
		return nil
	}
	o.recordSpend(st, usage)

	byIndex := make(map[int]types.ProcessedBullet, len(out.Results))
	for _, pb := range out.Results {
		if pb.BulletIndex < 0 || pb.BulletIndex >= len(chunk) {
			st.recorder.Warn(string(stageProcess),
				fmt.Sprintf("Dropping result with out-of-range bullet index %d", pb.BulletIndex))
			continue
		}
		byIndex[pb.BulletIndex] = pb
	}

	for i, bullet := range chunk {
		pb, ok := byIndex[i]
		if !ok || len(pb.Variants) == 0 {
			st.results[offset+i] = fallbackResult(bullet, "Failed to process in batch")
			continue
		}

		texts := make([]string, 0, len(pb.Variants))
		var rationales []string
		for _, v := range pb.Variants {
			texts = append(texts, v.Text)
			if v.Rationale != "" {
				rationales = append(rationales, v.Rationale)
			}
		}
		notes := strings.Join(rationales, "; ")
		if notes == "" {
			notes = "No rationale provided"
		}

		st.results[offset+i] = types.BulletResult{
			Original: bullet,
			Revised:  texts,
			Scores: types.BulletScores{
				Relevance: clampScore(pb.Scores.Relevance),
				Impact:    clampScore(pb.Scores.Impact),
				Clarity:   clampScore(pb.Scores.Clarity),
			},
			Notes: notes,
			Diff:  types.BulletDiff{Removed: []string{}, AddedTerms: []string{}},
		}
	}
	return nil
}

// validateTask addresses one (result, variant) slot
type validateTask struct {
	result  int
	variant int
}

// variantCheck collects one task's findings so they can be merged in input
// order after the parallel phase
type variantCheck struct {
	flags    []string
	warnings []string
}

// validate runs PII detection, safe fixes, and the model-backed consistency
// check over every variant. Checks run concurrently with bounded
// parallelism; findings become red flags, never errors.
func (o *Orchestrator) validate(ctx context.Context, st *jobState) (stage, error) {
	st.recorder.Info(string(stageValidate), "Validating revised bullets")

	var tasks []validateTask
	for ri := range st.results {
		for vi := range st.results[ri].Revised {
			tasks = append(tasks, validateTask{result: ri, variant: vi})
		}
	}
	checks := make([]variantCheck, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.ValidateParallelism)
	for ti, task := range tasks {
		g.Go(func() error {
			corrected := ApplySafeFixes(st.results[task.result].Revised[task.variant])
			st.results[task.result].Revised[task.variant] = corrected

			check := &checks[ti]
			check.flags = append(check.flags, DetectPII(corrected)...)

			flags, warning := o.checkConsistency(gctx, st, st.results[task.result].Original, corrected)
			check.flags = append(check.flags, flags...)
			if warning != "" {
				check.warnings = append(check.warnings, warning)
			}
			return nil
		})
	}
	_ = g.Wait()

	st.redFlags = []string{}
	seen := make(map[string]bool)
	for _, check := range checks {
		for _, w := range check.warnings {
			st.recorder.Warn(string(stageValidate), w)
		}
		for _, flag := range check.flags {
			if seen[flag] {
				continue
			}
			seen[flag] = true
			st.redFlags = append(st.redFlags, flag)
		}
	}

	st.recorder.Info(string(stageValidate),
		fmt.Sprintf("Validation complete, %d flags raised", len(st.redFlags)))
	return stageOutput, nil
}

// checkConsistency asks the model whether a revised bullet fabricates tools,
// metrics, or facts. A failed or denied check degrades to a warning, never a
// flag: validation must not invent findings it could not verify.
func (o *Orchestrator) checkConsistency(ctx context.Context, st *jobState, original, revised string) ([]string, string) {
	if ctx.Err() != nil {
		return nil, ""
	}

	warnings, err := o.gate(ctx, st)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("Factual consistency check skipped: %v", err))
		return nil, strings.Join(warnings, "; ")
	}

	out, usage, err := o.provider.CheckConsistency(ctx, types.CheckConsistencyInput{
		Original:  original,
		Revised:   revised,
		HardTools: st.signals.HardTools,
	})
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("Factual consistency check failed: %v", err))
		return nil, strings.Join(warnings, "; ")
	}
	o.recordSpend(st, usage)

	var flags []string
	if !out.IsConsistent {
		for _, v := range out.Violations {
			flags = append(flags, fmt.Sprintf("%s: %s", v.Type, v.Detail))
		}
	}
	return flags, strings.Join(warnings, "; ")
}

// output assembles the terminal JobOutput, computes diffs and coverage over
// the corrected texts, and stores it under the idempotency key. On a cached
// replay it serves the stored payload with this run's log entries appended.
func (o *Orchestrator) output(ctx context.Context, st *jobState) (stage, error) {
	if st.cached != nil {
		st.recorder.Info(string(stageOutput), "Serving cached result")
		out := *st.cached
		out.Logs = append(out.Logs, st.recorder.Logs()...)
		st.output = &out
		return stageCompleted, nil
	}

	st.recorder.Info(string(stageOutput), "Assembling output")

	var allRevised []string
	for i := range st.results {
		allRevised = append(allRevised, st.results[i].Revised...)
		st.results[i].Diff = signals.ComputeDiff(
			st.results[i].Original, st.results[i].Revised, st.signals)
	}

	topTerms := st.signals.TopTerms
	if topTerms == nil {
		topTerms = []string{}
	}

	out := &types.JobOutput{
		JobID: st.input.JobID,
		Summary: types.Summary{
			Role:     st.input.Role,
			TopTerms: topTerms,
			Coverage: signals.ComputeCoverage(allRevised, st.signals),
		},
		Results:  st.results,
		RedFlags: st.redFlags,
		Logs:     st.recorder.Logs(),
	}
	if out.RedFlags == nil {
		out.RedFlags = []string{}
	}

	o.results.Set(ctx, st.idemKey, *out)
	st.output = out
	return stageCompleted, nil
}

// gate checks the rate limiter and cost guard before an external call. The
// returned warnings are near-limit notices, reported once per job.
func (o *Orchestrator) gate(ctx context.Context, st *jobState) ([]string, error) {
	if !o.limiter.TryAcquire(st.caller, 1) {
		o.metrics.RecordRateLimitDenial(ctx)
		wait := o.limiter.TimeUntilAvailable(st.caller, 1)
		return nil, errors.NewNetworkError(errors.ErrCodeRateLimited,
			fmt.Sprintf("Rate limit exceeded for caller %q, retry in %s", st.caller, wait), nil)
	}

	guard := o.budget.GuardFor(st.caller)
	if allowed, reason := guard.CanProceed(o.cfg.CostPerRequest); !allowed {
		o.metrics.RecordBudgetDenial(ctx)
		return nil, errors.NewAIError(errors.ErrCodeBudgetExceeded, reason, nil)
	}

	var warnings []string
	if nearLimit := guard.NearLimit(); len(nearLimit) > 0 && st.nearWarned.CompareAndSwap(false, true) {
		warnings = nearLimit
	}
	return warnings, nil
}

// recordSpend charges one call against the caller's budget and accumulates
// token usage for the job summary log
func (o *Orchestrator) recordSpend(st *jobState, usage *ai.TokenUsage) {
	o.budget.GuardFor(st.caller).Record(o.cfg.CostPerRequest)
	if usage != nil {
		st.tokens.Add(usage.TotalTokens)
	}
}

func fallbackResult(original, note string) types.BulletResult {
	return types.BulletResult{
		Original: original,
		Revised:  []string{original},
		Scores:   types.BulletScores{Relevance: 50, Impact: 50, Clarity: 50},
		Notes:    note,
		Diff:     types.BulletDiff{Removed: []string{}, AddedTerms: []string{}},
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

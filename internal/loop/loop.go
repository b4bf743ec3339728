package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/grindloop/grind/internal/session"
	"github.com/grindloop/grind/pkg/models"
)

// DefaultMaxIterations caps a run when no explicit cap is configured.
const DefaultMaxIterations = 50

// ErrAlreadyRan is returned when Run is called on a controller that
// has already run. Controllers are single use.
var ErrAlreadyRan = errors.New("loop controller is single use; construct a new one per run")

// errStopRequested flows out of the signal check when the operator
// asked the run to stop.
var errStopRequested = errors.New("stop requested")

// Selector creates a session for a model spec, carrying history and
// spend from the session it replaces.
type Selector interface {
	Create(spec string, carryFrom session.Session) (session.Session, error)
}

// SignalSource surfaces operator directives. The controller polls it
// between iterations; implementations must be safe for concurrent
// use.
type SignalSource interface {
	// ShouldStop reports whether a stop has been requested.
	ShouldStop() bool
	// ShouldPause reports whether the loop should hold before the
	// next call.
	ShouldPause() bool
	// TakeSteer returns a pending steer directive, consuming it.
	TakeSteer() (string, bool)
}

// Config holds the per-run parameters. They are fixed once the run
// starts; the same prompt is sent every iteration and only the model
// may change mid-run.
type Config struct {
	// Prompt is sent verbatim on every iteration.
	Prompt string
	// CompletionMarker is the promise string whose appearance in a
	// response ends the run as Completed.
	CompletionMarker string
	// Guard selects how strictly the marker is matched.
	Guard GuardMode
	// MaxIterations caps successful calls. Zero means the default.
	MaxIterations int
	// CostCeiling is the USD spend limit. Zero disables it.
	CostCeiling float64
	// ContextThreshold is the utilization fraction that triggers
	// compaction. Zero means the default.
	ContextThreshold float64
	// Retry bounds transient-failure retries. Zero fields take
	// defaults.
	Retry RetryPolicy
	// FallbackModel, when set, is switched to once if a call keeps
	// failing after all retries.
	FallbackModel string
	// StartIteration is the iteration index to resume counting from.
	StartIteration int
	// RunID overrides the generated run id (used when resuming).
	RunID string
}

// Option configures optional controller collaborators.
type Option func(*Controller)

// WithEmitter attaches a progress event emitter.
func WithEmitter(e *Emitter) Option {
	return func(c *Controller) { c.emitter = e }
}

// WithLogger attaches a debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSelector enables mid-run model switching.
func WithSelector(s Selector) Option {
	return func(c *Controller) { c.selector = s }
}

// WithSignals attaches an operator signal source.
func WithSignals(s SignalSource) Option {
	return func(c *Controller) { c.signals = s }
}

// WithIterationHook registers a callback invoked after every
// successful iteration, before the next one begins. Used for
// persistence; the hook runs on the loop goroutine.
func WithIterationHook(fn func(models.IterationRecord)) Option {
	return func(c *Controller) { c.onIteration = fn }
}

// Controller drives one iterate-until-done run: send the prompt,
// scan the response for the completion promise, repeat. Between
// iterations it enforces, in order, the iteration cap, the cost
// ceiling, operator signals, and context headroom, so the loop never
// issues a call it already knows it should not make.
type Controller struct {
	cfg        Config
	budget     *CostGovernor
	contextGov *ContextGovernor
	detector   Detector
	retry      RetryPolicy

	session     session.Session
	selector    Selector
	signals     SignalSource
	emitter     *Emitter
	logger      *DebugLogger
	onIteration func(models.IterationRecord)

	runID     string
	log       *Log
	warned    bool
	escalated bool

	mu            sync.Mutex
	started       bool
	pendingSwitch string
}

// New creates a controller for one run.
func New(cfg Config, sess session.Session, opts ...Option) (*Controller, error) {
	if sess == nil {
		return nil, errors.New("session is required")
	}
	if strings.TrimSpace(cfg.Prompt) == "" {
		return nil, errors.New("prompt is required")
	}
	if strings.TrimSpace(cfg.CompletionMarker) == "" {
		return nil, errors.New("completion promise is required")
	}
	if cfg.Guard == "" {
		cfg.Guard = GuardAnywhere
	}
	if !cfg.Guard.Valid() {
		return nil, fmt.Errorf("unknown guard mode %q", cfg.Guard)
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.StartIteration < 0 {
		cfg.StartIteration = 0
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}

	c := &Controller{
		cfg:        cfg,
		budget:     NewCostGovernor(cfg.CostCeiling),
		contextGov: NewContextGovernor(cfg.ContextThreshold),
		detector:   Detector{Marker: cfg.CompletionMarker, Guard: cfg.Guard},
		retry:      cfg.Retry.normalized(),
		session:    sess,
		logger:     NopLogger(),
		runID:      cfg.RunID,
		log:        NewLog(cfg.StartIteration),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// RunID returns the identifier for this run.
func (c *Controller) RunID() string {
	return c.runID
}

// Records returns the iteration records appended so far.
func (c *Controller) Records() []models.IterationRecord {
	return c.log.Records()
}

// SwitchModel queues a switch to the given model spec. The switch
// takes effect between iterations; history and cumulative spend carry
// over to the new session. Safe to call from other goroutines.
func (c *Controller) SwitchModel(spec string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingSwitch = spec
}

// Run drives the loop until a terminal outcome. The controller is
// single use: a second call returns a Failed outcome immediately.
func (c *Controller) Run(ctx context.Context) models.Outcome {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return models.Outcome{Kind: models.OutcomeFailed, Err: ErrAlreadyRan}
	}
	c.started = true
	c.mu.Unlock()

	c.emit(Event{Type: EventRunStarted, Iteration: c.cfg.StartIteration, Message: truncateForDisplay(c.cfg.Prompt)})
	c.logger.Log("run %s started: model=%s max_iterations=%d ceiling=$%.2f",
		c.runID, c.session.ActiveModel(), c.cfg.MaxIterations, c.cfg.CostCeiling)

	iter := c.cfg.StartIteration
	lastResponse := ""

	for {
		// Iteration cap first: a capped run stops before spending
		// anything more.
		if iter >= c.cfg.MaxIterations {
			return c.finish(models.OutcomeMaxIterations, lastResponse, iter, nil)
		}

		// Budget next. Strict exceed: spend equal to the ceiling
		// still permits one more call.
		spend := c.session.CumulativeCost()
		switch c.budget.Status(spend) {
		case BudgetExceeded:
			c.emit(Event{Type: EventBudgetExceeded, Iteration: iter,
				Message: fmt.Sprintf("spend $%.4f exceeds ceiling $%.2f", spend, c.budget.Ceiling())})
			c.logger.Log("budget exceeded: $%.4f > $%.2f", spend, c.budget.Ceiling())
			return c.finish(models.OutcomeBudgetExceeded, lastResponse, iter, nil)
		case BudgetWarning:
			if !c.warned {
				c.warned = true
				c.emit(Event{Type: EventBudgetWarning, Iteration: iter,
					Message: fmt.Sprintf("spend $%.4f is past %.0f%% of the $%.2f ceiling",
						spend, DefaultWarningFraction*100, c.budget.Ceiling())})
				c.logger.Log("budget warning: $%.4f of $%.2f", spend, c.budget.Ceiling())
			}
		}

		// Operator signals: stop, pause, steer, queued switches.
		if err := c.checkSignals(ctx); err != nil {
			return c.finishSignal(err, lastResponse, iter)
		}

		// Context headroom: compact before a call that would not fit.
		if outcome, terminal := c.ensureHeadroom(ctx, iter, lastResponse); terminal {
			return outcome
		}

		c.emit(Event{Type: EventIterationStarted, Iteration: iter})
		started := time.Now()
		costBefore := c.session.CumulativeCost()

		response, err := c.callWithRetry(ctx, iter)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return c.finish(models.OutcomeStopped, lastResponse, iter, nil)
			}
			return c.finish(models.OutcomeFailed, lastResponse, iter, err)
		}

		finished := time.Now()
		lastResponse = response
		detected := c.detector.Detect(response)

		rec := models.IterationRecord{
			Index:              iter,
			PromptSent:         c.cfg.Prompt,
			ResponseReceived:   response,
			CostDelta:          c.session.CumulativeCost() - costBefore,
			CompletionDetected: detected,
			Model:              c.session.ActiveModel(),
			StartedAt:          started,
			FinishedAt:         finished,
		}
		if err := c.log.Append(rec); err != nil {
			return c.finish(models.OutcomeFailed, lastResponse, iter, err)
		}
		if c.onIteration != nil {
			c.onIteration(rec)
		}

		used, capacity := c.session.ContextUsage()
		c.emit(Event{Type: EventIterationCompleted, Iteration: iter,
			CostDelta: rec.CostDelta, ContextUsed: used, ContextCapacity: capacity,
			Message: truncateForDisplay(response)})
		c.logger.Log("iteration %d completed: $%.4f, context %d/%d tokens", iter, rec.CostDelta, used, capacity)

		iter++

		if detected {
			c.emit(Event{Type: EventCompletionDetected, Iteration: iter - 1,
				Message: fmt.Sprintf("completion promise %q found", c.cfg.CompletionMarker)})
			c.logger.Log("completion detected on iteration %d", iter-1)
			return c.finish(models.OutcomeCompleted, response, iter, nil)
		}
	}
}

// checkSignals handles operator directives. It returns
// errStopRequested for a stop, the context error if cancelled while
// paused, or a switch error if a requested model could not be built.
func (c *Controller) checkSignals(ctx context.Context) error {
	if c.signals != nil {
		if c.signals.ShouldStop() {
			c.emit(Event{Type: EventSignalReceived, Message: "stop"})
			c.logger.Log("stop signal received")
			return errStopRequested
		}
		if err := c.waitWhilePaused(ctx); err != nil {
			return err
		}
		if directive, ok := c.signals.TakeSteer(); ok {
			c.emit(Event{Type: EventSignalReceived, Message: directive})
			fields := strings.Fields(directive)
			switch {
			case directive == "stop":
				return errStopRequested
			case len(fields) == 2 && fields[0] == "model":
				c.SwitchModel(fields[1])
			default:
				c.logger.Log("ignoring unrecognized steer directive %q", directive)
			}
		}
	}

	c.mu.Lock()
	spec := c.pendingSwitch
	c.pendingSwitch = ""
	c.mu.Unlock()
	if spec != "" {
		if err := c.switchTo(spec, "operator request"); err != nil {
			return err
		}
	}
	return nil
}

// waitWhilePaused blocks while the pause signal is present.
func (c *Controller) waitWhilePaused(ctx context.Context) error {
	if !c.signals.ShouldPause() {
		return nil
	}
	c.emit(Event{Type: EventSignalReceived, Message: "pause"})
	c.logger.Log("paused")
	for c.signals.ShouldPause() {
		if c.signals.ShouldStop() {
			return errStopRequested
		}
		if err := sleep(ctx, 500*time.Millisecond); err != nil {
			return err
		}
	}
	c.emit(Event{Type: EventSignalReceived, Message: "resume"})
	c.logger.Log("resumed")
	return nil
}

// ensureHeadroom compacts the conversation when utilization has
// crossed the threshold. It returns a terminal outcome when the
// conversation cannot be brought back under it.
func (c *Controller) ensureHeadroom(ctx context.Context, iter int, lastResponse string) (models.Outcome, bool) {
	used, capacity := c.session.ContextUsage()
	if !c.contextGov.NeedsCompaction(used, capacity) {
		return models.Outcome{}, false
	}

	c.emit(Event{Type: EventContextWarning, Iteration: iter,
		ContextUsed: used, ContextCapacity: capacity,
		Message: fmt.Sprintf("context at %.0f%% of capacity", c.contextGov.Utilization(used, capacity)*100)})
	c.emit(Event{Type: EventCompactionStarted, Iteration: iter,
		ContextUsed: used, ContextCapacity: capacity,
		Message: "compacting conversation history"})
	c.logger.Log("context at %d/%d tokens (%.0f%%), compacting",
		used, capacity, c.contextGov.Utilization(used, capacity)*100)

	reduced, err := c.session.Compact(ctx)
	if err != nil {
		c.emit(Event{Type: EventCompactionFailed, Iteration: iter, Err: err,
			Message: fmt.Sprintf("compaction failed: %v", err)})
		c.logger.Log("compaction failed: %v", err)
		return c.finish(models.OutcomeContextExhausted, lastResponse, iter, err), true
	}

	after, capacity := c.session.ContextUsage()
	if c.contextGov.NeedsCompaction(after, capacity) {
		c.emit(Event{Type: EventCompactionFailed, Iteration: iter,
			ContextUsed: after, ContextCapacity: capacity,
			Message: fmt.Sprintf("still at %.0f%% after compaction", c.contextGov.Utilization(after, capacity)*100)})
		c.logger.Log("compaction left context at %d/%d tokens, giving up", after, capacity)
		return c.finish(models.OutcomeContextExhausted, lastResponse, iter,
			fmt.Errorf("context still at %d of %d tokens after compaction", after, capacity)), true
	}

	c.emit(Event{Type: EventCompactionCompleted, Iteration: iter,
		ContextUsed: after, ContextCapacity: capacity,
		Message: fmt.Sprintf("context reduced from %d to %d tokens", used, after)})
	c.logger.Log("compaction reduced context from %d to %d tokens (target met: %t)", used, after, reduced)
	return models.Outcome{}, false
}

// callWithRetry sends the prompt, retrying transient failures with
// backoff. When retries are exhausted and a fallback model is
// configured, it switches once and starts a fresh retry budget.
func (c *Controller) callWithRetry(ctx context.Context, iter int) (string, error) {
	attempt := 0
	for {
		response, err := c.session.Run(ctx, c.cfg.Prompt)
		if err == nil {
			return response, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !session.IsRetryable(err) {
			return "", err
		}
		if attempt >= c.retry.MaxRetries {
			if c.cfg.FallbackModel != "" && !c.escalated {
				c.escalated = true
				if switchErr := c.switchTo(c.cfg.FallbackModel, "retry escalation"); switchErr == nil {
					attempt = 0
					continue
				} else {
					c.logger.Log("escalation to %s failed: %v", c.cfg.FallbackModel, switchErr)
				}
			}
			return "", err
		}

		delay := c.retry.Delay(attempt)
		if hint := session.RetryAfterHint(err); hint > 0 {
			delay = hint
			if delay > c.retry.MaxDelay {
				delay = c.retry.MaxDelay
			}
		}
		c.emit(Event{Type: EventRetryScheduled, Iteration: iter, Err: err,
			Message: fmt.Sprintf("attempt %d failed, retrying in %s: %v", attempt+1, delay.Round(time.Millisecond), err)})
		c.logger.Log("iteration %d attempt %d failed, retrying in %s: %v", iter, attempt+1, delay, err)
		if err := sleep(ctx, delay); err != nil {
			return "", err
		}
		attempt++
	}
}

// switchTo replaces the active session with one for the given model
// spec, carrying history and spend.
func (c *Controller) switchTo(spec, reason string) error {
	if c.selector == nil {
		return errors.New("model switching is not configured")
	}
	from := c.session.ActiveModel()
	next, err := c.selector.Create(spec, c.session)
	if err != nil {
		return fmt.Errorf("switch model to %s: %w", spec, err)
	}
	c.session = next
	c.emit(Event{Type: EventModelSwitched, Model: next.ActiveModel(),
		Message: fmt.Sprintf("switched from %s to %s (%s)", from, next.ActiveModel(), reason)})
	c.logger.Log("model switched from %s to %s (%s)", from, next.ActiveModel(), reason)
	return nil
}

// finishSignal maps a signal-check error to its terminal outcome.
func (c *Controller) finishSignal(err error, lastResponse string, iter int) models.Outcome {
	if errors.Is(err, errStopRequested) || errors.Is(err, context.Canceled) {
		return c.finish(models.OutcomeStopped, lastResponse, iter, nil)
	}
	return c.finish(models.OutcomeFailed, lastResponse, iter, err)
}

// finish builds the terminal outcome and emits the closing event.
func (c *Controller) finish(kind models.OutcomeKind, response string, iterations int, err error) models.Outcome {
	out := models.Outcome{
		Kind:       kind,
		Response:   response,
		Iterations: iterations,
		Spend:      c.session.CumulativeCost(),
		Err:        err,
	}
	msg := fmt.Sprintf("%s after %d iterations", kind, iterations)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	c.emit(Event{Type: EventRunFinished, Iteration: iterations, Outcome: kind, Err: err, Message: msg})
	c.logger.Log("run %s finished: %s ($%.4f total)", c.runID, msg, out.Spend)
	return out
}

// emit stamps shared fields and forwards to the emitter, if any.
func (c *Controller) emit(ev Event) {
	if c.emitter == nil {
		return
	}
	ev.RunID = c.runID
	ev.MaxIterations = c.cfg.MaxIterations
	if ev.Model == "" {
		ev.Model = c.session.ActiveModel()
	}
	ev.TotalCost = c.session.CumulativeCost()
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	c.emitter.Emit(ev)
}

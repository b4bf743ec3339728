package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/grindloop/grind/internal/checkpoint"
	"github.com/grindloop/grind/internal/config"
	"github.com/grindloop/grind/internal/loop"
	"github.com/grindloop/grind/internal/signal"
	"github.com/grindloop/grind/internal/state"
	"github.com/grindloop/grind/pkg/models"
)

var (
	runPrompt        string
	runPromise       string
	runModel         string
	runFallbackModel string
	runGuard         string
	runMaxIterations int
	runBudget        float64
	runAutonomous    bool
	runHeadless      bool
	runResume        string
)

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Run the agent loop until the completion promise appears",
	Long: `Run the agent loop against a prompt until its completion promise
appears in a response.

Every iteration sends the same prompt; the conversation history
carries the work forward. Between iterations the loop enforces,
in order: the iteration cap, the cost ceiling, operator signals,
and context-window headroom (compacting history when it runs low).

The run, its per-iteration records, and a resumable checkpoint are
persisted under .grind/ and the state database; 'grind history' and
'grind status' read them back. An interrupted run continues with
  grind run --resume <id>
which re-seeds the loop from the checkpoint (same prompt and
promise, iteration count and spend carried forward).

Exit codes:
  0  completed (promise detected)
  1  failed (infrastructure error)
  3  max iterations reached
  4  budget exceeded
  5  context exhausted
  6  stopped by operator`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLoop,
}

func init() {
	runCmd.Flags().StringVarP(&runPrompt, "prompt", "p", "", "Prompt sent to the agent every iteration")
	runCmd.Flags().StringVar(&runPromise, "completion-promise", "", "Marker whose appearance ends the run as completed")
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "Model id or alias (see 'grind models')")
	runCmd.Flags().StringVar(&runFallbackModel, "fallback-model", "", "Model to switch to after repeated call failures")
	runCmd.Flags().StringVar(&runGuard, "guard", "", "Promise match mode: anywhere, line, or fenced-line")
	runCmd.Flags().IntVarP(&runMaxIterations, "max-iterations", "n", 0, "Cap on successful agent calls")
	runCmd.Flags().Float64Var(&runBudget, "budget", 0, "USD spend ceiling (0 = unlimited)")
	runCmd.Flags().BoolVar(&runAutonomous, "autonomous", false, "Ask the agent to proceed without questions")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Run without TUI, printing events to stdout")
	runCmd.Flags().StringVar(&runResume, "resume", "", "Resume an interrupted run by checkpoint id")
}

func runLoop(cmd *cobra.Command, args []string) error {
	outcome, err := executeRun(cmd, args)
	if err != nil {
		return err
	}
	os.Exit(outcome.Kind.ExitCode())
	return nil
}

// executeRun builds the run from flags, config, and (when resuming) the
// checkpoint, then drives it in TUI or headless mode. Cleanup runs
// before the exit-code mapping in runLoop.
func executeRun(cmd *cobra.Command, args []string) (models.Outcome, error) {
	cfg, err := config.Load()
	if err != nil {
		return models.Outcome{}, fmt.Errorf("load config: %w", err)
	}
	applyRunDefaults(cmd, cfg)

	prompt := strings.TrimSpace(runPrompt)
	if prompt == "" && len(args) > 0 {
		prompt = strings.TrimSpace(args[0])
	}
	promise := strings.TrimSpace(runPromise)

	guard, err := parseGuard(runGuard)
	if err != nil {
		return models.Outcome{}, err
	}

	repoPath, err := os.Getwd()
	if err != nil {
		return models.Outcome{}, fmt.Errorf("get working directory: %w", err)
	}

	// Run history and the crash-recovery checkpoint.
	db, err := state.OpenProject(repoPath)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return models.Outcome{}, fmt.Errorf("migrate state database: %w", err)
	}

	store, err := checkpoint.NewStore(checkpoint.DefaultPath(repoPath))
	if err != nil {
		return models.Outcome{}, fmt.Errorf("open checkpoint store: %w", err)
	}
	defer store.Close()

	runID := uuid.New().String()
	startIteration := 0
	priorSpend := 0.0
	modelSpec := runModel

	if runResume != "" {
		cp, err := store.Get(runResume)
		if err != nil {
			return models.Outcome{}, fmt.Errorf("resume: %w", err)
		}
		if cp.Status == string(models.OutcomeCompleted) {
			return models.Outcome{}, fmt.Errorf("run %s already completed, nothing to resume", shortID(cp.RunID))
		}
		// The checkpoint owns the run's identity: same prompt, same
		// promise, progress carried forward.
		runID = cp.RunID
		prompt = cp.Prompt
		promise = cp.CompletionPromise
		startIteration = cp.Iteration
		priorSpend = cp.TotalCost
		if !cmd.Flags().Changed("model") {
			modelSpec = cp.Model
		}
	}

	if prompt == "" {
		return models.Outcome{}, fmt.Errorf("a prompt is required: pass it as an argument or with --prompt")
	}
	if promise == "" {
		return models.Outcome{}, fmt.Errorf("a completion promise is required (--completion-promise)")
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return models.Outcome{}, err
	}
	sess, ref, err := createSession(cfg, registry, modelSpec, priorSpend)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("create session: %w", err)
	}

	sig, err := signal.NewManager(repoPath)
	if err != nil {
		return models.Outcome{}, fmt.Errorf("create signal manager: %w", err)
	}
	defer sig.Close()
	// A stop or pause file left over from an earlier run would kill
	// this one before its first iteration.
	sig.ClearSignals()

	logger := loop.NewDebugLoggerForRepo(repoPath)
	defer logger.Close()

	emitter := loop.NewEmitter(256)

	var jsonl *loop.JSONLWriter
	logPath := filepath.Join(sig.Dir(), "logs", fmt.Sprintf("run-%s.jsonl", shortID(runID)))
	eventLog, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		logger.Log("open event log %s: %v", logPath, err)
	} else {
		jsonl = loop.NewJSONLWriter(eventLog)
		defer eventLog.Close()
	}

	if existing, err := db.GetRun(runID); err != nil {
		return models.Outcome{}, fmt.Errorf("query run: %w", err)
	} else if existing == nil {
		err := db.CreateRun(&state.Run{
			ID:                runID,
			Prompt:            prompt,
			CompletionPromise: promise,
			Model:             ref.Info.ID,
			MaxIterations:     runMaxIterations,
			CostCeiling:       runBudget,
			StartedAt:         time.Now(),
		})
		if err != nil {
			return models.Outcome{}, fmt.Errorf("record run: %w", err)
		}
	}

	if runResume == "" {
		if _, err := store.Create(runID, prompt, promise, ref.Info.ID); err != nil {
			return models.Outcome{}, fmt.Errorf("create checkpoint: %w", err)
		}
	} else {
		if err := store.MarkStatus(runID, checkpoint.StatusRunning); err != nil {
			return models.Outcome{}, fmt.Errorf("reopen checkpoint: %w", err)
		}
	}

	// Persist progress after every successful iteration so a crash
	// loses at most one iteration of work.
	runningCost := priorSpend
	hook := func(rec models.IterationRecord) {
		runningCost += rec.CostDelta
		if err := db.RecordIteration(runID, rec); err != nil {
			logger.Log("record iteration %d: %v", rec.Index, err)
		}
		if err := store.UpdateProgress(runID, rec.Index+1, runningCost, rec.Model); err != nil {
			logger.Log("checkpoint iteration %d: %v", rec.Index, err)
			return
		}
		emitter.Emit(loop.Event{
			Type:          loop.EventCheckpointSaved,
			RunID:         runID,
			Iteration:     rec.Index,
			MaxIterations: runMaxIterations,
			Model:         rec.Model,
			TotalCost:     runningCost,
			Message:       fmt.Sprintf("iteration %d checkpointed", rec.Index),
			Timestamp:     time.Now(),
		})
	}

	ctrl, err := loop.New(loop.Config{
		Prompt:           prompt,
		CompletionMarker: promise,
		Guard:            guard,
		MaxIterations:    runMaxIterations,
		CostCeiling:      runBudget,
		ContextThreshold: cfg.Loop.ContextThreshold,
		Retry: loop.RetryPolicy{
			MaxRetries: cfg.Retry.MaxRetries,
			BaseDelay:  cfg.Retry.BaseDelay,
			MaxDelay:   cfg.Retry.MaxDelay,
		},
		FallbackModel:  runFallbackModel,
		StartIteration: startIteration,
		RunID:          runID,
	}, sess,
		loop.WithEmitter(emitter),
		loop.WithLogger(logger),
		loop.WithSelector(registry),
		loop.WithSignals(sig),
		loop.WithIterationHook(hook),
	)
	if err != nil {
		return models.Outcome{}, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	ossignal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer ossignal.Stop(sigCh)
	go func() {
		<-sigCh
		if runHeadless {
			fmt.Println("\nReceived interrupt, stopping after the current call...")
		}
		cancel()
	}()

	var outcome models.Outcome
	if runHeadless {
		fmt.Printf("Starting run %s\n", shortID(runID))
		fmt.Printf("  Model: %s\n", ref.Info.ID)
		fmt.Printf("  Max iterations: %d\n", runMaxIterations)
		if runBudget > 0 {
			fmt.Printf("  Budget: $%.2f\n", runBudget)
		}
		fmt.Println()
		outcome = runHeadlessMode(ctx, ctrl, emitter, jsonl)
	} else {
		outcome = runWithTUI(ctx, cancel, ctrl, emitter, jsonl, sig, runBudget)
	}

	if err := db.FinishRun(runID, outcome.Kind, outcome.Iterations, outcome.Spend, outcome.ErrorMessage()); err != nil {
		logger.Log("finish run: %v", err)
	}
	if err := store.MarkStatus(runID, string(outcome.Kind)); err != nil {
		logger.Log("mark checkpoint: %v", err)
	}

	fmt.Printf("\nRun %s: %s after %d iterations ($%.4f)\n",
		shortID(runID), outcome.Kind, outcome.Iterations, outcome.Spend)
	if outcome.Err != nil {
		fmt.Fprintf(os.Stderr, "  error: %v\n", outcome.Err)
	}
	if outcome.Kind != models.OutcomeCompleted && outcome.Kind != models.OutcomeFailed {
		fmt.Printf("  resume with: grind run --resume %s\n", runID)
	}

	return outcome, nil
}

// applyRunDefaults fills unset flags from the loaded configuration.
func applyRunDefaults(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if !flags.Changed("model") {
		runModel = cfg.Defaults.Model
	}
	if !flags.Changed("fallback-model") {
		runFallbackModel = cfg.Defaults.FallbackModel
	}
	if !flags.Changed("completion-promise") {
		runPromise = cfg.Defaults.CompletionPromise
	}
	if !flags.Changed("guard") {
		runGuard = cfg.Defaults.Guard
	}
	if !flags.Changed("max-iterations") {
		runMaxIterations = cfg.Defaults.MaxIterations
	}
	if !flags.Changed("budget") {
		runBudget = cfg.Defaults.Budget
	}
	if flags.Changed("autonomous") {
		cfg.Defaults.Autonomous = runAutonomous
	}
}

// parseGuard validates the promise match mode. Empty means the
// default exact-substring match.
func parseGuard(s string) (loop.GuardMode, error) {
	if s == "" {
		return loop.GuardAnywhere, nil
	}
	mode := loop.GuardMode(s)
	if !mode.Valid() {
		return "", fmt.Errorf("unknown guard mode %q: use anywhere, line, or fenced-line", s)
	}
	return mode, nil
}

// shortID truncates a run id for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

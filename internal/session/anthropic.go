package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

const defaultMaxTokens = 8192

const baseSystemPrompt = `You are a coding agent working iteratively on a single task. Every user message restates the task; the conversation history shows what you have already done. Continue from where the previous iteration left off instead of starting over. When the task is genuinely finished, include the completion promise you were given, verbatim, in your reply.`

const autonomousSystemPrompt = ` Operate unattended: never ask questions or wait for confirmation. State your assumptions and proceed.`

const summarySystemPrompt = `Condense the following conversation excerpt into a short factual summary of what was attempted, what succeeded, and what remains. Keep file names, commands, and decisions. No commentary.`

// Config describes an Anthropic-backed session. The registry fills it
// from the model catalog and the run configuration.
type Config struct {
	// ModelID is the catalog id reported by ActiveModel.
	ModelID string
	// APIModel is the id sent on the wire. For Bedrock this is the
	// cross-region inference profile; empty means ModelID.
	APIModel string
	// Provider labels errors and events ("anthropic", "bedrock").
	Provider string
	// APIKey authenticates the direct API. Empty falls back to the
	// ANTHROPIC_API_KEY environment variable.
	APIKey string
	// UseBedrock routes calls through AWS Bedrock instead of the
	// direct API.
	UseBedrock bool
	// AWSRegion is the Bedrock region, empty for the default chain.
	AWSRegion string
	// AWSProfile is the shared-config profile, empty for the default.
	AWSProfile string
	// Autonomous selects the unattended system prompt variant. It is
	// an explicit construction-time setting, not ambient process state.
	Autonomous bool
	// MaxTokens caps each response. Zero means the default.
	MaxTokens int64
	// ContextWindow is the model's context capacity in tokens.
	ContextWindow int
	// Pricing is the model's per-token rate.
	Pricing Pricing
	// CompactTarget is the utilization fraction compaction aims for.
	// Zero means 0.60.
	CompactTarget float64
	// StrategyName selects the compaction strategy ("window",
	// "summarize") when Strategy is nil.
	StrategyName string
	// KeepPairs is how many recent exchange pairs the built-in
	// strategies preserve. Zero means the default.
	KeepPairs int
	// Strategy overrides the built-in compaction strategies.
	Strategy CompactionStrategy
	// PriorSpend seeds the cumulative cost. Used when carrying a
	// conversation into a new session or resuming a run.
	PriorSpend float64
	// InitialTranscript seeds the conversation history on a model
	// switch. Nil starts an empty conversation.
	InitialTranscript *Transcript
}

// AnthropicSession drives the Anthropic Messages API, either directly
// or through AWS Bedrock. It satisfies Session and HistoryCarrier.
type AnthropicSession struct {
	client   anthropic.Client
	cfg      Config
	apiModel anthropic.Model
	strategy CompactionStrategy
	tracker  *usageTracker

	mu         sync.Mutex
	transcript *Transcript
}

// NewAnthropic builds a session from cfg. Credential problems surface
// here, not at the first call.
func NewAnthropic(cfg Config) (*AnthropicSession, error) {
	if cfg.ModelID == "" {
		return nil, fmt.Errorf("session: model id is required")
	}
	if cfg.ContextWindow <= 0 {
		return nil, fmt.Errorf("session: context window must be positive, got %d", cfg.ContextWindow)
	}

	var opts []option.RequestOption
	if cfg.UseBedrock {
		var loadOpts []func(*awsconfig.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, awsconfig.WithSharedConfigProfile(cfg.AWSProfile))
		}
		opts = append(opts, bedrock.WithLoadDefaultConfig(context.Background(), loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("session: no API key configured and ANTHROPIC_API_KEY is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	if cfg.Provider == "" {
		if cfg.UseBedrock {
			cfg.Provider = "bedrock"
		} else {
			cfg.Provider = "anthropic"
		}
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.CompactTarget <= 0 || cfg.CompactTarget >= 1 {
		cfg.CompactTarget = 0.60
	}

	apiModel := cfg.APIModel
	if apiModel == "" {
		apiModel = cfg.ModelID
	}

	transcript := NewTranscript()
	if cfg.InitialTranscript != nil {
		transcript = cfg.InitialTranscript.Clone()
	}

	s := &AnthropicSession{
		client:     anthropic.NewClient(opts...),
		cfg:        cfg,
		apiModel:   anthropic.Model(apiModel),
		tracker:    newUsageTracker(cfg.PriorSpend),
		transcript: transcript,
	}

	s.strategy = cfg.Strategy
	if s.strategy == nil {
		switch cfg.StrategyName {
		case "summarize":
			s.strategy = Summarizer{Summarize: s.summarize, KeepPairs: cfg.KeepPairs}
		default:
			s.strategy = SlidingWindow{KeepPairs: cfg.KeepPairs}
		}
	}

	return s, nil
}

// Run sends the prompt with the accumulated history and returns the
// agent's text response. The transcript grows by one exchange per call.
func (s *AnthropicSession) Run(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.transcript.Append(RoleUser, prompt)
	params := s.messageParamsLocked()
	s.mu.Unlock()

	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     s.apiModel,
		MaxTokens: s.cfg.MaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: s.systemPrompt()},
		},
		Messages: params,
	})
	if err != nil {
		// The failed prompt stays off the transcript so a retry does
		// not duplicate it.
		s.mu.Lock()
		s.transcript.RemoveLast()
		s.mu.Unlock()
		return "", s.wrapProviderError(err)
	}

	s.tracker.add(resp.Usage.InputTokens, resp.Usage.OutputTokens, s.cfg.Pricing)

	var text string
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += variant.Text
		}
	}

	s.mu.Lock()
	s.transcript.Append(RoleAssistant, text)
	s.mu.Unlock()

	return text, nil
}

// CumulativeCost returns the running USD total, including any spend
// carried in from a previous session or resumed run.
func (s *AnthropicSession) CumulativeCost() float64 {
	return s.tracker.totalSpend()
}

// ContextUsage reports the conversation's token volume against the
// model's capacity. After a call it is the backend's own accounting of
// the turn; before the first call, and right after compaction, it is
// the character-based estimate.
func (s *AnthropicSession) ContextUsage() (used, capacity int) {
	if last := s.tracker.lastTurn(); last > 0 {
		return last, s.cfg.ContextWindow
	}
	s.mu.Lock()
	est := s.transcript.EstimatedTokens()
	s.mu.Unlock()
	return est, s.cfg.ContextWindow
}

// ActiveModel returns the catalog id of the serving model.
func (s *AnthropicSession) ActiveModel() string {
	return s.cfg.ModelID
}

// Compact rewrites the history with the configured strategy and reports
// whether utilization came down below the compaction target.
func (s *AnthropicSession) Compact(ctx context.Context) (bool, error) {
	s.mu.Lock()
	working := s.transcript.Clone()
	s.mu.Unlock()

	if err := s.strategy.Compact(ctx, working); err != nil {
		return false, err
	}

	s.mu.Lock()
	s.transcript = working
	s.mu.Unlock()
	s.tracker.resetLastTurn()

	target := int(s.cfg.CompactTarget * float64(s.cfg.ContextWindow))
	return working.EstimatedTokens() <= target, nil
}

// TranscriptFormat identifies the transcript shape for model switches.
func (s *AnthropicSession) TranscriptFormat() string {
	return FormatAnthropicMessages
}

// Snapshot returns a copy of the conversation so far.
func (s *AnthropicSession) Snapshot() *Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Clone()
}

// Usage returns cumulative input/output tokens and call count.
func (s *AnthropicSession) Usage() (input, output int64, calls int) {
	return s.tracker.totals()
}

func (s *AnthropicSession) systemPrompt() string {
	p := baseSystemPrompt
	if s.cfg.Autonomous {
		p += autonomousSystemPrompt
	}
	return p
}

// messageParamsLocked converts the transcript to API params. Callers
// hold s.mu.
func (s *AnthropicSession) messageParamsLocked() []anthropic.MessageParam {
	msgs := s.transcript.Messages()
	params := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleAssistant:
			params = append(params, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			params = append(params, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return params
}

// summarize condenses dropped history with a single model call. Its
// cost accrues to the session's running total.
func (s *AnthropicSession) summarize(ctx context.Context, conversation string) (string, error) {
	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     s.apiModel,
		MaxTokens: 1024,
		System: []anthropic.TextBlockParam{
			{Text: summarySystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(conversation)),
		},
	})
	if err != nil {
		return "", s.wrapProviderError(err)
	}

	s.tracker.addSpend(s.cfg.Pricing.Cost(resp.Usage.InputTokens, resp.Usage.OutputTokens))

	var text string
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += variant.Text
		}
	}
	return text, nil
}

// wrapProviderError classifies an SDK failure for the retry policy.
// Context cancellation passes through untouched.
func (s *AnthropicSession) wrapProviderError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	status := 0
	var retryAfter time.Duration
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		status = apierr.StatusCode
		retryAfter = retryAfterFromResponse(apierr.Response)
	}
	return providerErrorFromStatus(s.cfg.Provider, status, retryAfter, err)
}

func retryAfterFromResponse(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

package llm

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"brain2-extractor/application/ports"
	"brain2-extractor/pkg/errors"
)

// DefaultSystemPrompt instructs the model to answer in the extraction micro-syntax
const DefaultSystemPrompt = `You map ideas as a knowledge graph. Answer only with entries of these two forms, one per line:
(id: "<label>", node_type: "<concept|claim|evidence|question|definition|example>", title: "<short title>", description: "<one sentence>", citation: "<source>", confidence: "<0..1>")
(source_id: "<label>", target_id: "<label>", edge_type: "<support|contradict|elaborate|cause|example_of|question|relate>")
Labels are short and unique. Write every node before the edges that use it.`

// GeneratorConfig configures the upstream generation client
type GeneratorConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	Temperature  float32
	Timeout      time.Duration

	// Breaker trips after MaxFailures consecutive failed stream opens and
	// stays open for Cooldown
	MaxFailures uint32
	Cooldown    time.Duration
}

// Generator opens streaming chat completions as extraction stream sources
type Generator struct {
	client  *openai.Client
	cfg     GeneratorConfig
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewGenerator creates a generator
func NewGenerator(cfg GeneratorConfig, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	maxFailures := cfg.MaxFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai-stream",
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Generator{
		client:  openai.NewClientWithConfig(clientCfg),
		cfg:     cfg,
		breaker: breaker,
		logger:  logger,
	}
}

// Open starts a streaming completion for prompt. Only opening the stream
// goes through the breaker; failures while reading surface from Next.
func (g *Generator) Open(ctx context.Context, prompt string) (ports.StreamSource, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.NewValidationError("prompt is required").WithCode("EMPTY_PROMPT")
	}

	var (
		streamCtx context.Context
		cancel    context.CancelFunc
	)
	if g.cfg.Timeout > 0 {
		streamCtx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
	} else {
		streamCtx, cancel = context.WithCancel(ctx)
	}

	result, err := g.breaker.Execute(func() (interface{}, error) {
		return g.client.CreateChatCompletionStream(streamCtx, openai.ChatCompletionRequest{
			Model:       g.cfg.Model,
			Temperature: g.cfg.Temperature,
			Stream:      true,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: g.cfg.SystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
	})
	if err != nil {
		cancel()
		if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, errors.NewUnavailableError("openai").WithCause(err)
		}
		g.logger.Error("Failed to open completion stream", zap.String("model", g.cfg.Model), zap.Error(err))
		return nil, errors.NewExternalError("openai", err)
	}

	g.logger.Debug("Completion stream opened", zap.String("model", g.cfg.Model))
	return &streamSource{stream: result.(*openai.ChatCompletionStream), cancel: cancel}, nil
}

// State reports the breaker state
func (g *Generator) State() gobreaker.State {
	return g.breaker.State()
}

type streamSource struct {
	stream *openai.ChatCompletionStream
	cancel context.CancelFunc
}

var _ ports.StreamSource = (*streamSource)(nil)

// Next returns the next non-empty content delta, or io.EOF once the stream ends
func (s *streamSource) Next(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		resp, err := s.stream.Recv()
		if stderrors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if err != nil {
			return "", errors.NewExternalError("openai", err)
		}

		for _, choice := range resp.Choices {
			if choice.Delta.Content != "" {
				return choice.Delta.Content, nil
			}
		}
	}
}

func (s *streamSource) Close() error {
	defer s.cancel()
	return s.stream.Close()
}

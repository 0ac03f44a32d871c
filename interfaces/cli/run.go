package cli

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"brain2-extractor/application/extraction"
	"brain2-extractor/application/ports"
	"brain2-extractor/application/services"
	"brain2-extractor/domain/events"
	"brain2-extractor/infrastructure/config"
	"brain2-extractor/pkg/errors"
)

func run(cmd *cobra.Command, opts *Options, cfg *config.Config, opener StreamOpener, logger *zap.Logger) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if opts.ChunkSize < 1 {
		return errors.NewValidationError("chunk size must be positive").WithCode("INVALID_CHUNK_SIZE")
	}
	if opts.Buffer < 1 {
		return errors.NewValidationError("buffer must be positive").WithCode("INVALID_BUFFER")
	}

	policyCfg := *cfg
	policyCfg.PolicyFile = opts.PolicyFile
	policy, err := config.LoadPolicy(&policyCfg)
	if err != nil {
		return err
	}

	source, err := openSource(ctx, cmd, opts, opener)
	if err != nil {
		return err
	}
	defer func() {
		if err := source.Close(); err != nil {
			logger.Debug("Failed to close stream source", zap.Error(err))
		}
	}()

	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	observer := extraction.NewChannelObserver(sessionID, opts.Buffer, nil)
	engine := extraction.NewEngine(policy, observer, logger)
	if err := engine.StartSession(sessionID); err != nil {
		return err
	}

	written := make(chan error, 1)
	go func() {
		written <- writeEvents(cmd.OutOrStdout(), observer.Events())
	}()

	pumpErr := pump(ctx, engine, source)
	writeErr := <-written

	summary := engine.Summary()
	logger.Debug("Extraction finished",
		zap.String("sessionID", sessionID),
		zap.Int("nodes", summary.NodesEmitted),
		zap.Int("edges", summary.EdgesEmitted),
		zap.String("reason", string(summary.Reason)))

	if opts.Summary {
		if err := json.NewEncoder(cmd.ErrOrStderr()).Encode(summary); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}

	if pumpErr != nil {
		return pumpErr
	}
	if writeErr != nil {
		return fmt.Errorf("failed to write events: %w", writeErr)
	}
	return nil
}

func openSource(ctx context.Context, cmd *cobra.Command, opts *Options, opener StreamOpener) (ports.StreamSource, error) {
	if opts.Prompt != "" {
		if opener == nil {
			return nil, errors.NewUnavailableError("generation").WithCode("GENERATION_DISABLED").
				WithCause(stderrors.New("OPENAI_API_KEY is not set"))
		}
		return opener.Open(ctx, opts.Prompt)
	}

	var in io.Reader = cmd.InOrStdin()
	if opts.File != "" && opts.File != "-" {
		f, err := os.Open(opts.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	text, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return &textSource{chunks: services.Chunk(string(text), opts.ChunkSize)}, nil
}

// pump feeds the engine until the source ends. An idle timeout may
// finalize the session first; the rest of the input is then ignored.
func pump(ctx context.Context, engine *extraction.Engine, source ports.StreamSource) error {
	for {
		fragment, err := source.Next(ctx)
		if stderrors.Is(err, io.EOF) {
			if err := engine.EndOfStream(); err != nil && !errors.IsSessionState(err) {
				return err
			}
			return nil
		}
		if err != nil {
			if failErr := engine.Fail(err); failErr != nil && !errors.IsSessionState(failErr) {
				return failErr
			}
			return err
		}

		if err := engine.Consume(fragment); err != nil {
			if errors.IsSessionState(err) {
				return nil
			}
			return err
		}
	}
}

// writeEvents writes one JSON line per event. After a write error it keeps
// draining so the engine never blocks on a full channel.
func writeEvents(w io.Writer, ch <-chan events.DomainEvent) error {
	enc := json.NewEncoder(w)
	var firstErr error
	for event := range ch {
		if firstErr != nil {
			continue
		}
		if err := enc.Encode(event); err != nil {
			firstErr = err
		}
	}
	return firstErr
}

// textSource replays pre-chunked text as a stream
type textSource struct {
	chunks []string
	next   int
}

func (s *textSource) Next(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.next >= len(s.chunks) {
		return "", io.EOF
	}
	chunk := s.chunks[s.next]
	s.next++
	return chunk, nil
}

func (s *textSource) Close() error {
	return nil
}

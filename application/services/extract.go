package services

import (
	"context"
	stderrors "errors"
	"io"
	"unicode/utf8"

	"go.uber.org/zap"

	"brain2-extractor/application/extraction"
	"brain2-extractor/application/ports"
	"brain2-extractor/domain/core/aggregates"
	"brain2-extractor/pkg/errors"
)

// ExtractionResult is the outcome of a one-shot extraction
type ExtractionResult struct {
	Graph   *aggregates.Graph
	Summary extraction.Summary
}

// ExtractText runs a complete text through a fresh session, fed in chunks
// of chunkSize bytes to mirror how a stream arrives. Chunks never split a
// UTF-8 sequence. Cancelling ctx fails the session.
func (m *SessionManager) ExtractText(ctx context.Context, text string, chunkSize int) (*ExtractionResult, error) {
	if chunkSize < 1 {
		return nil, errors.NewValidationError("chunk size must be positive").WithCode("INVALID_CHUNK_SIZE")
	}

	s, err := m.start("")
	if err != nil {
		return nil, err
	}

	for _, chunk := range Chunk(text, chunkSize) {
		if err := ctx.Err(); err != nil {
			if _, failErr := m.Fail(context.WithoutCancel(ctx), s.id, err); failErr != nil {
				m.logger.Debug("Session already finished", zap.String("sessionID", s.id), zap.Error(failErr))
			}
			return nil, errors.NewTimeoutError("extract text").WithCause(err)
		}
		if err := s.engine.Consume(chunk); err != nil {
			return nil, err
		}
	}

	if err := s.engine.EndOfStream(); err != nil && !errors.IsSessionState(err) {
		return nil, err
	}

	return &ExtractionResult{
		Graph:   s.collector.Graph(),
		Summary: s.engine.Summary(),
	}, nil
}

// RunSource pumps an upstream stream into an active session until the
// stream ends or fails. End of stream finalizes the session; an upstream
// error or cancellation fails it. Upstream errors are not retried.
func (m *SessionManager) RunSource(ctx context.Context, sessionID string, source ports.StreamSource) (extraction.Summary, error) {
	defer func() {
		if err := source.Close(); err != nil {
			m.logger.Debug("Failed to close stream source", zap.String("sessionID", sessionID), zap.Error(err))
		}
	}()

	for {
		fragment, err := source.Next(ctx)
		if stderrors.Is(err, io.EOF) {
			return m.End(ctx, sessionID)
		}
		if err != nil {
			m.logger.Warn("Upstream stream failed",
				zap.String("sessionID", sessionID),
				zap.Error(err))
			if _, failErr := m.Fail(context.WithoutCancel(ctx), sessionID, err); failErr != nil {
				return extraction.Summary{}, failErr
			}
			return extraction.Summary{}, err
		}

		if _, err := m.Consume(ctx, sessionID, fragment); err != nil {
			return extraction.Summary{}, err
		}
	}
}

// Chunk splits text into pieces of at most size bytes without cutting a
// UTF-8 sequence. A rune wider than size forms its own piece.
func Chunk(text string, size int) []string {
	if size < 1 || len(text) <= size {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	chunks := make([]string, 0, len(text)/size+1)
	for len(text) > 0 {
		if len(text) <= size {
			chunks = append(chunks, text)
			break
		}

		end := size
		for end > 0 && !utf8.RuneStart(text[end]) {
			end--
		}
		if end == 0 {
			_, width := utf8.DecodeRuneInString(text)
			end = width
		}

		chunks = append(chunks, text[:end])
		text = text[end:]
	}
	return chunks
}

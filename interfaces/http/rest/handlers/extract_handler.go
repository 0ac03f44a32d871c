package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"brain2-extractor/application/extraction"
	"brain2-extractor/application/services"
	"brain2-extractor/pkg/common"
	"brain2-extractor/pkg/errors"
	"brain2-extractor/pkg/observability"
)

// ExtractHandler serves one-shot extraction of a complete text
type ExtractHandler struct {
	sessions         *services.SessionManager
	defaultChunkSize int
	tracer           *observability.Tracer
	errorHandler     *errors.ErrorHandler
	logger           *zap.Logger
}

// NewExtractHandler creates a new extract handler
func NewExtractHandler(
	sessions *services.SessionManager,
	defaultChunkSize int,
	tracer *observability.Tracer,
	errorHandler *errors.ErrorHandler,
	logger *zap.Logger,
) *ExtractHandler {
	if defaultChunkSize < 1 {
		defaultChunkSize = 64
	}
	return &ExtractHandler{
		sessions:         sessions,
		defaultChunkSize: defaultChunkSize,
		tracer:           tracer,
		errorHandler:     errorHandler,
		logger:           logger,
	}
}

// ExtractRequest represents the request body for a one-shot extraction
type ExtractRequest struct {
	Text      string `json:"text" validate:"required"`
	ChunkSize int    `json:"chunk_size,omitempty" validate:"omitempty,min=1,max=65536"`
}

// ExtractResponse is the extracted graph with its session summary
type ExtractResponse struct {
	GraphResponse
	Summary extraction.Summary `json:"summary"`
}

// Extract handles POST /extract
func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if !decodeRequest(h.errorHandler, w, r, &req, false) {
		return
	}

	chunkSize := req.ChunkSize
	if chunkSize == 0 {
		chunkSize = h.defaultChunkSize
	}

	var result *services.ExtractionResult
	err := h.tracer.TraceFunction(r.Context(), "extract_text", func(ctx context.Context) error {
		var err error
		result, err = h.sessions.ExtractText(ctx, req.Text, chunkSize)
		if err == nil {
			h.tracer.AddAnnotation(ctx, "session_id", result.Summary.SessionID)
		}
		return err
	})
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("Text extracted",
		zap.String("sessionID", result.Summary.SessionID),
		zap.Int("nodes", result.Summary.NodesEmitted),
		zap.Int("edges", result.Summary.EdgesEmitted))

	common.RespondJSON(w, r, http.StatusOK, ExtractResponse{
		GraphResponse: NewGraphResponse(result.Graph),
		Summary:       result.Summary,
	})
}

package handlers

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"brain2-extractor/application/extraction"
	"brain2-extractor/application/ports"
	"brain2-extractor/application/services"
	"brain2-extractor/domain/core/aggregates"
	"brain2-extractor/domain/core/entities"
	"brain2-extractor/pkg/common"
	"brain2-extractor/pkg/errors"
	"brain2-extractor/pkg/utils"
)

const maxBodyBytes = 1 << 20

// StreamOpener opens an upstream generation stream for a prompt
type StreamOpener interface {
	Open(ctx context.Context, prompt string) (ports.StreamSource, error)
}

// SessionHandler handles extraction session requests
type SessionHandler struct {
	sessions     *services.SessionManager
	generator    StreamOpener
	errorHandler *errors.ErrorHandler
	logger       *zap.Logger
}

// NewSessionHandler creates a new session handler. generator may be nil,
// in which case generation requests are rejected as unavailable.
func NewSessionHandler(
	sessions *services.SessionManager,
	generator StreamOpener,
	errorHandler *errors.ErrorHandler,
	logger *zap.Logger,
) *SessionHandler {
	return &SessionHandler{
		sessions:     sessions,
		generator:    generator,
		errorHandler: errorHandler,
		logger:       logger,
	}
}

// CreateSessionRequest represents the request body for opening a session
type CreateSessionRequest struct {
	SessionID string `json:"session_id,omitempty" validate:"omitempty,max=128"`
}

// FragmentRequest carries one chunk of the stream
type FragmentRequest struct {
	Text string `json:"text" validate:"required"`
}

// FailSessionRequest carries the upstream failure reason
type FailSessionRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// GenerateRequest asks the upstream model to produce the session's stream
type GenerateRequest struct {
	Prompt string `json:"prompt" validate:"required,max=20000"`
}

// GraphResponse is the extracted graph of a session
type GraphResponse struct {
	SessionID string                   `json:"session_id"`
	Nodes     []entities.GraphNode     `json:"nodes"`
	Edges     []entities.GraphEdge     `json:"edges"`
	Metadata  aggregates.GraphMetadata `json:"metadata"`
}

// NewGraphResponse flattens a graph for transport
func NewGraphResponse(graph *aggregates.Graph) GraphResponse {
	return GraphResponse{
		SessionID: graph.SessionID(),
		Nodes:     graph.Nodes(),
		Edges:     graph.Edges(),
		Metadata:  graph.Metadata(),
	}
}

// CreateSession handles POST /sessions
func (h *SessionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !h.decode(w, r, &req, true) {
		return
	}

	summary, err := h.sessions.Start(r.Context(), req.SessionID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	h.logger.Info("Session opened", zap.String("sessionID", summary.SessionID))
	common.RespondJSON(w, r, http.StatusCreated, summary)
}

// AppendFragment handles POST /sessions/{sessionID}/fragments
func (h *SessionHandler) AppendFragment(w http.ResponseWriter, r *http.Request) {
	var req FragmentRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	summary, err := h.sessions.Consume(r.Context(), chi.URLParam(r, "sessionID"), req.Text)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusAccepted, summary)
}

// EndSession handles POST /sessions/{sessionID}/end
func (h *SessionHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	summary, err := h.sessions.End(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, summary)
}

// FailSession handles POST /sessions/{sessionID}/fail
func (h *SessionHandler) FailSession(w http.ResponseWriter, r *http.Request) {
	var req FailSessionRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	cause := errors.NewExternalError("upstream", stderrors.New(req.Reason))
	summary, err := h.sessions.Fail(r.Context(), chi.URLParam(r, "sessionID"), cause)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, summary)
}

// GetSession handles GET /sessions/{sessionID}
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	summary, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, summary)
}

// GetGraph handles GET /sessions/{sessionID}/graph
func (h *SessionHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	graph, err := h.sessions.Graph(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	common.RespondJSON(w, r, http.StatusOK, NewGraphResponse(graph))
}

// Generate handles POST /sessions/{sessionID}/generate. The upstream stream
// is opened before responding so breaker and upstream errors surface here;
// pumping it into the session continues after the response.
func (h *SessionHandler) Generate(w http.ResponseWriter, r *http.Request) {
	if h.generator == nil {
		h.errorHandler.Handle(w, r, errors.NewUnavailableError("generation").WithCode("GENERATION_DISABLED"))
		return
	}

	var req GenerateRequest
	if !h.decode(w, r, &req, false) {
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	summary, err := h.sessions.Get(r.Context(), sessionID)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}
	if !summary.CompletedAt.IsZero() {
		h.errorHandler.Handle(w, r, extraction.ErrSessionNotActive)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	source, err := h.generator.Open(ctx, req.Prompt)
	if err != nil {
		h.errorHandler.Handle(w, r, err)
		return
	}

	go func() {
		final, err := h.sessions.RunSource(ctx, sessionID, source)
		if err != nil {
			h.logger.Warn("Generation ended with error", zap.String("sessionID", sessionID), zap.Error(err))
			return
		}
		h.logger.Info("Generation finished",
			zap.String("sessionID", sessionID),
			zap.Int("nodes", final.NodesEmitted),
			zap.Int("edges", final.EdgesEmitted))
	}()

	common.RespondJSON(w, r, http.StatusAccepted, summary)
}

// decode parses and validates a JSON body, writing the error response itself
func (h *SessionHandler) decode(w http.ResponseWriter, r *http.Request, v interface{}, allowEmpty bool) bool {
	return decodeRequest(h.errorHandler, w, r, v, allowEmpty)
}

func decodeRequest(errorHandler *errors.ErrorHandler, w http.ResponseWriter, r *http.Request, v interface{}, allowEmpty bool) bool {
	if err := common.ParseJSONBody(w, r, v, maxBodyBytes, allowEmpty); err != nil {
		errorHandler.Handle(w, r, errors.NewValidationError("invalid request body: "+err.Error()).WithCode("INVALID_BODY"))
		return false
	}
	if err := utils.ValidateStruct(v); err != nil {
		errorHandler.Handle(w, r, errors.NewValidationError(err.Error()).WithCode("INVALID_REQUEST"))
		return false
	}
	return true
}

package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"brain2-extractor/application/extraction"
	"brain2-extractor/application/ports"
	"brain2-extractor/domain/config"
	"brain2-extractor/domain/core/aggregates"
	"brain2-extractor/domain/events"
	"brain2-extractor/pkg/errors"
)

// SessionReporter receives the statistics of every finished session and
// the cause of every failed one
type SessionReporter interface {
	RecordSession(ctx context.Context, stats events.SessionStats, duration time.Duration)
	RecordError(ctx context.Context, errorType string, errorCode string)
}

// SessionGauge tracks the number of registered sessions
type SessionGauge interface {
	Set(float64)
}

// ManagerConfig holds the limits of a SessionManager
type ManagerConfig struct {
	MaxSessions      int
	Retention        time.Duration
	SubscriberBuffer int
	SinkTimeout      time.Duration
}

// DefaultManagerConfig returns the limits used when none are configured
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxSessions:      1000,
		Retention:        5 * time.Minute,
		SubscriberBuffer: 256,
		SinkTimeout:      10 * time.Second,
	}
}

// ManagerDeps holds the collaborators of a SessionManager. Only Policy is
// required; nil collaborators are skipped.
type ManagerDeps struct {
	Policy    *config.ExtractionPolicy
	Sink      ports.GraphSink
	Publisher ports.EventPublisher
	Finished  ports.Cache
	Recorder  extraction.Recorder
	Reporter  SessionReporter
	Gauge     SessionGauge
	Clock     extraction.Clock
	Logger    *zap.Logger
}

// SessionManager runs any number of concurrent extraction sessions, one
// engine each. Finished sessions leave the registry; their summaries stay
// readable from the finished cache for the retention period.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*session

	cfg       ManagerConfig
	policy    *config.ExtractionPolicy
	sink      ports.GraphSink
	publisher ports.EventPublisher
	finished  ports.Cache
	recorder  extraction.Recorder
	reporter  SessionReporter
	gauge     SessionGauge
	clock     extraction.Clock
	logger    *zap.Logger
}

type session struct {
	id          string
	engine      *extraction.Engine
	collector   *GraphCollector
	broadcaster *Broadcaster
}

// NewSessionManager creates a session manager
func NewSessionManager(cfg ManagerConfig, deps ManagerDeps) *SessionManager {
	defaults := DefaultManagerConfig()
	if cfg.MaxSessions < 1 {
		cfg.MaxSessions = defaults.MaxSessions
	}
	if cfg.Retention <= 0 {
		cfg.Retention = defaults.Retention
	}
	if cfg.SubscriberBuffer < 1 {
		cfg.SubscriberBuffer = defaults.SubscriberBuffer
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaults.SinkTimeout
	}

	m := &SessionManager{
		sessions:  make(map[string]*session),
		cfg:       cfg,
		policy:    deps.Policy,
		sink:      deps.Sink,
		publisher: deps.Publisher,
		finished:  deps.Finished,
		recorder:  deps.Recorder,
		reporter:  deps.Reporter,
		gauge:     deps.Gauge,
		clock:     deps.Clock,
		logger:    deps.Logger,
	}
	if m.policy == nil {
		m.policy = config.DefaultExtractionPolicy()
	}
	if m.recorder == nil {
		m.recorder = extraction.NopRecorder{}
	}
	if m.clock == nil {
		m.clock = extraction.SystemClock{}
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	return m
}

// Start opens a session. An empty ID gets a generated one.
func (m *SessionManager) Start(ctx context.Context, sessionID string) (extraction.Summary, error) {
	s, err := m.start(sessionID)
	if err != nil {
		return extraction.Summary{}, err
	}
	return s.engine.Summary(), nil
}

// Consume feeds one fragment to a session and returns its updated summary
func (m *SessionManager) Consume(ctx context.Context, sessionID, fragment string) (extraction.Summary, error) {
	s, err := m.lookup(ctx, sessionID)
	if err != nil {
		return extraction.Summary{}, err
	}

	if err := s.engine.Consume(fragment); err != nil {
		return extraction.Summary{}, err
	}
	return s.engine.Summary(), nil
}

// End finalizes a session and returns its final summary
func (m *SessionManager) End(ctx context.Context, sessionID string) (extraction.Summary, error) {
	s, err := m.lookup(ctx, sessionID)
	if err != nil {
		return extraction.Summary{}, err
	}

	if err := s.engine.EndOfStream(); err != nil {
		return extraction.Summary{}, err
	}
	return s.engine.Summary(), nil
}

// Fail ends a session because its upstream failed
func (m *SessionManager) Fail(ctx context.Context, sessionID string, cause error) (extraction.Summary, error) {
	s, err := m.lookup(ctx, sessionID)
	if err != nil {
		return extraction.Summary{}, err
	}

	if err := s.engine.Fail(cause); err != nil {
		return extraction.Summary{}, err
	}

	summary := s.engine.Summary()
	m.retain(s.id, summary)
	if m.reporter != nil {
		errorType, errorCode := failureKind(cause)
		m.reporter.RecordError(ctx, errorType, errorCode)
	}
	return summary, nil
}

// Get returns the summary of an active or recently finished session
func (m *SessionManager) Get(ctx context.Context, sessionID string) (extraction.Summary, error) {
	if s := m.active(sessionID); s != nil {
		return s.engine.Summary(), nil
	}
	if summary, ok := m.finishedSummary(ctx, sessionID); ok {
		return summary, nil
	}
	return extraction.Summary{}, errors.NewNotFoundError("session")
}

// Graph returns the graph of a session: the partial graph while the session
// is active, the persisted graph afterwards
func (m *SessionManager) Graph(ctx context.Context, sessionID string) (*aggregates.Graph, error) {
	if s := m.active(sessionID); s != nil {
		return s.collector.Graph(), nil
	}
	if m.sink == nil {
		return nil, errors.NewNotFoundError("graph")
	}
	return m.sink.Load(ctx, sessionID)
}

// Subscribe streams the events of an active session. The channel closes
// after the terminal event; cancel releases the subscription early.
func (m *SessionManager) Subscribe(ctx context.Context, sessionID string) (<-chan events.DomainEvent, func(), error) {
	s, err := m.lookup(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}

	ch, cancel := s.broadcaster.Subscribe()
	return ch, cancel, nil
}

// Active returns the number of registered sessions
func (m *SessionManager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Accepting reports whether another session can be started
func (m *SessionManager) Accepting() bool {
	return m.Active() < m.cfg.MaxSessions
}

// Shutdown ends every active session so open drafts are flushed and
// persisted. It returns early when ctx expires.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	open := make([]*session, 0, len(m.sessions))
	for _, s := range m.sessions {
		open = append(open, s)
	}
	m.mu.Unlock()

	for _, s := range open {
		if err := ctx.Err(); err != nil {
			return err
		}
		// A session may finish on its own between the snapshot and here
		if err := s.engine.EndOfStream(); err != nil && !errors.IsSessionState(err) {
			m.logger.Warn("Failed to end session during shutdown",
				zap.String("sessionID", s.id),
				zap.Error(err))
		}
	}
	return nil
}

func (m *SessionManager) start(sessionID string) (*session, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sessionID]; exists {
		return nil, errors.NewConflictError("session already active").WithCode("SESSION_EXISTS")
	}
	if len(m.sessions) >= m.cfg.MaxSessions {
		return nil, errors.NewUnavailableError("extraction sessions").WithCode("SESSION_LIMIT")
	}

	logger := m.logger.With(zap.String("sessionID", sessionID))
	s := &session{
		id:          sessionID,
		collector:   NewGraphCollector(sessionID, logger),
		broadcaster: NewBroadcaster(sessionID, m.cfg.SubscriberBuffer, m.clock, logger),
	}

	observers := extraction.Observers{s.collector}
	if m.sink != nil {
		observers = append(observers, NewPersistingObserver(s.collector, m.sink, m.cfg.SinkTimeout, logger))
	}
	if m.publisher != nil {
		observers = append(observers, NewEventForwarder(sessionID, m.publisher, m.clock, m.cfg.SinkTimeout, logger))
	}
	observers = append(observers, s.broadcaster, extraction.ObserverFuncs{
		OnSessionComplete: func(summary extraction.Summary) {
			m.unregister(s)
			m.retain(s.id, summary)
		},
		OnSessionError: func(error) { m.unregister(s) },
	})

	s.engine = extraction.NewEngine(m.policy, observers, m.logger,
		extraction.WithClock(m.clock),
		extraction.WithRecorder(m.recorder))

	// Registered first: the idle deadline may fire as soon as the session starts
	m.sessions[sessionID] = s
	if err := s.engine.StartSession(sessionID); err != nil {
		delete(m.sessions, sessionID)
		return nil, err
	}

	m.updateGauge()
	return s, nil
}

// unregister and retain run inside the engine's terminal notification, so
// they must not call back into the engine.
func (m *SessionManager) unregister(s *session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessions[s.id] == s {
		delete(m.sessions, s.id)
	}
	m.updateGauge()
}

// retain keeps a finished session's summary readable and reports it
func (m *SessionManager) retain(sessionID string, summary extraction.Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.SinkTimeout)
	defer cancel()

	if m.finished != nil {
		if err := m.finished.Set(ctx, sessionID, summary, m.cfg.Retention); err != nil {
			m.logger.Warn("Failed to retain session summary", zap.String("sessionID", sessionID), zap.Error(err))
		}
	}
	if m.reporter != nil {
		m.reporter.RecordSession(ctx, summary.Stats(), summary.Duration())
	}
}

// failureKind classifies an upstream failure for reporting
func failureKind(cause error) (string, string) {
	appErr := errors.GetAppError(cause)
	if appErr == nil {
		return string(errors.ErrorTypeExternal), "UPSTREAM_FAILURE"
	}
	if appErr.Code == "" {
		return string(appErr.Type), "UPSTREAM_FAILURE"
	}
	return string(appErr.Type), appErr.Code
}

func (m *SessionManager) lookup(ctx context.Context, sessionID string) (*session, error) {
	if s := m.active(sessionID); s != nil {
		return s, nil
	}
	if _, ok := m.finishedSummary(ctx, sessionID); ok {
		return nil, extraction.ErrSessionNotActive
	}
	return nil, errors.NewNotFoundError("session")
}

func (m *SessionManager) active(sessionID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID]
}

func (m *SessionManager) finishedSummary(ctx context.Context, sessionID string) (extraction.Summary, bool) {
	if m.finished == nil {
		return extraction.Summary{}, false
	}
	v, ok := m.finished.Get(ctx, sessionID)
	if !ok {
		return extraction.Summary{}, false
	}
	summary, ok := v.(extraction.Summary)
	return summary, ok
}

func (m *SessionManager) updateGauge() {
	if m.gauge != nil {
		m.gauge.Set(float64(len(m.sessions)))
	}
}

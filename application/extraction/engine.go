package extraction

import (
	"sync"

	"go.uber.org/zap"

	"brain2-extractor/domain/config"
	pkgerrors "brain2-extractor/pkg/errors"
)

// State is the lifecycle state of an engine
type State int

const (
	StateIdle State = iota
	StateActive
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateFinalizing:
		return "finalizing"
	default:
		return "idle"
	}
}

// Option configures an Engine
type Option func(*Engine)

// WithClock sets the clock used for timestamps and the idle deadline
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// WithRecorder sets the measurement recorder
func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) {
		e.recorder = recorder
	}
}

// Engine is the session controller. One engine serves one session at a time;
// every call processes its input completely before returning, and
// notifications are delivered from inside the call that caused them.
type Engine struct {
	mu sync.Mutex

	policy   *config.ExtractionPolicy
	observer Observer
	recorder Recorder
	clock    Clock
	logger   *zap.Logger

	state       State
	sessionID   string
	buffer      *Buffer
	scanner     *Scanner
	assembler   *Assembler
	terminalEnd int

	timer    Timer
	timerGen uint64
	summary  Summary
	dropped  int
	consumed int64
}

// NewEngine creates an idle engine
func NewEngine(policy *config.ExtractionPolicy, observer Observer, logger *zap.Logger, opts ...Option) *Engine {
	if policy == nil {
		policy = config.DefaultExtractionPolicy()
	}
	if observer == nil {
		observer = ObserverFuncs{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		policy:   policy.Clone(),
		observer: observer,
		recorder: NopRecorder{},
		clock:    SystemClock{},
		logger:   logger,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// StartSession resets all session state and arms the idle deadline. A
// session that is still active is abandoned without notifications.
func (e *Engine) StartSession(sessionID string) error {
	if sessionID == "" {
		return ErrSessionIDEmpty
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateActive {
		e.logger.Info("Abandoning active session",
			zap.String("sessionID", e.sessionID),
			zap.String("nextSessionID", sessionID))
		e.stopTimer()
	}

	identity := NewIdentityResolver()
	dedup := NewDeduplicator(e.policy.FieldDedupLimit)

	e.sessionID = sessionID
	e.buffer = NewBuffer(e.policy.BufferCeiling, e.policy.FallbackTail)
	e.scanner = NewScanner()
	e.assembler = NewAssembler(e.policy, identity, dedup, e.observer, e.recorder, e.clock,
		e.logger.With(zap.String("sessionID", sessionID)))
	e.terminalEnd = -1
	e.dropped = 0
	e.consumed = 0
	e.summary = Summary{SessionID: sessionID, StartedAt: e.clock.Now()}
	e.state = StateActive

	e.armTimer()

	e.logger.Info("Extraction session started",
		zap.String("sessionID", sessionID),
		zap.Duration("idleTimeout", e.policy.IdleTimeout))
	return nil
}

// Consume processes one fragment of the stream. Fragments must be supplied
// in arrival order. Nothing happens unless a session is active.
func (e *Engine) Consume(fragment string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateActive {
		return ErrSessionNotActive
	}

	e.consumed += int64(len(fragment))
	e.buffer.Append(fragment)
	e.scan()
	e.trim()
	e.armTimer()
	return nil
}

// EndOfStream finalizes the session: open drafts are flushed where possible
// and SessionComplete fires.
func (e *Engine) EndOfStream() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateActive {
		return ErrSessionNotActive
	}

	e.finalize(ReasonEndOfStream)
	return nil
}

// Fail ends the session because the upstream stream failed. SessionError
// fires instead of SessionComplete and nothing is flushed.
func (e *Engine) Fail(cause error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateActive {
		return ErrSessionNotActive
	}

	e.stopTimer()
	if !pkgerrors.IsAppError(cause) {
		cause = pkgerrors.NewExternalError("upstream stream", cause)
	}

	e.summary = e.snapshot()
	e.summary.Reason = ReasonUpstreamFailure
	e.summary.CompletedAt = e.clock.Now()
	e.summary.State = StateIdle.String()
	e.state = StateIdle

	e.logger.Warn("Extraction session failed",
		zap.String("sessionID", e.sessionID),
		zap.Error(cause))
	e.recorder.SessionFailed()
	e.observer.SessionError(cause)
	return nil
}

// State returns the lifecycle state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SessionID returns the current or most recent session ID
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// Summary returns the accounting of the current or most recent session
func (e *Engine) Summary() Summary {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateActive {
		return e.snapshot()
	}
	return e.summary
}

// scan feeds every newly delimited field to the assembler
func (e *Engine) scan() {
	for {
		field, status := e.scanner.Next(e.buffer.Bytes())
		if status != ScanField {
			return
		}

		e.assembler.Apply(field)
		if field.Terminal {
			e.terminalEnd = field.End
		}
	}
}

// trim drops the validated prefix, then falls back to a lossy trim when the
// buffer is still over its ceiling. The tail kept by a lossy trim is scanned
// again so fields already complete in it are not left behind.
func (e *Engine) trim() {
	for {
		if n := e.buffer.TrimValidated(e.terminalEnd, e.scanner.Pos()); n > 0 {
			e.scanner.Rebase(n)
			e.terminalEnd -= n
		}

		if !e.buffer.ExceedsCeiling() || !e.fallbackTrim() {
			return
		}
		e.scan()
	}
}

// fallbackTrim runs one lossy trim and reports whether anything was removed
func (e *Engine) fallbackTrim() bool {
	before := e.buffer.Len()
	n := e.buffer.FallbackTrim()
	if n == 0 {
		return false
	}
	if e.terminalEnd >= 0 {
		e.terminalEnd -= n
		if e.terminalEnd < 0 {
			e.terminalEnd = -1
		}
	}

	lost := !e.scanner.Rebase(n)
	if lost {
		e.dropped++
		e.recorder.FieldDropped()
	}
	e.recorder.FallbackTrim(n)

	// Known accuracy risk: a field cut by this trim is never reported
	e.logger.Warn("Buffer exceeded ceiling, dropped prefix",
		zap.String("sessionID", e.sessionID),
		zap.Int("bufferBytes", before),
		zap.Int("droppedBytes", n),
		zap.Bool("fieldLost", lost))
	return true
}

func (e *Engine) finalize(reason CompletionReason) {
	e.stopTimer()
	e.state = StateFinalizing

	e.assembler.Finalize()

	e.summary = e.snapshot()
	e.summary.Reason = reason
	e.summary.CompletedAt = e.clock.Now()
	e.summary.State = StateIdle.String()
	e.state = StateIdle

	e.logger.Info("Extraction session completed",
		zap.String("sessionID", e.sessionID),
		zap.String("reason", string(reason)),
		zap.Int("nodes", e.summary.NodesEmitted),
		zap.Int("edges", e.summary.EdgesEmitted),
		zap.Int("fallbackTrims", e.summary.FallbackTrims),
		zap.Int("pendingEdgesDiscarded", e.summary.PendingEdgesDiscarded))
	e.recorder.SessionFinished(string(reason), e.summary.Duration())
	e.observer.SessionComplete(e.summary)
}

func (e *Engine) snapshot() Summary {
	s := e.summary
	stats := e.assembler.stats

	s.State = e.state.String()
	s.NodesEmitted = stats.nodes
	s.EdgesEmitted = stats.edges
	s.FieldsApplied = stats.applied
	s.DuplicatesSuppressed = stats.duplicates
	s.PendingEdges = e.assembler.PendingEdges()
	s.PendingEdgesDiscarded = stats.discardedPending
	s.FieldsDropped = e.dropped
	s.FallbackTrims = e.buffer.FallbackTrims()
	s.BytesConsumed = e.consumed
	s.BufferedBytes = e.buffer.Len()
	return s
}

// armTimer replaces the idle deadline. The generation guards against a timer
// that fired while a newer one was being armed.
func (e *Engine) armTimer() {
	e.stopTimer()

	gen := e.timerGen
	e.timer = e.clock.AfterFunc(e.policy.IdleTimeout, func() {
		e.onIdle(gen)
	})
}

func (e *Engine) stopTimer() {
	e.timerGen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) onIdle(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.timerGen || e.state != StateActive {
		return
	}

	e.logger.Info("Idle deadline reached, finalizing session",
		zap.String("sessionID", e.sessionID))
	e.finalize(ReasonIdleTimeout)
}

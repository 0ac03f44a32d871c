package extraction

import (
	"go.uber.org/zap"

	"brain2-extractor/domain/config"
	"brain2-extractor/domain/core/entities"
	"brain2-extractor/domain/core/valueobjects"
)

// Assembler routes scanned fields into the node and edge automata and
// decides when a draft becomes an emitted entity. It is owned by a single
// engine and is not safe for concurrent use.
type Assembler struct {
	policy   *config.ExtractionPolicy
	identity *IdentityResolver
	dedup    *Deduplicator
	observer Observer
	recorder Recorder
	clock    Clock
	logger   *zap.Logger

	node      *entities.NodeDraft
	replaying bool
	edge      *entities.EdgeDraft
	pending   []*entities.EdgeDraft
	late      *lateWindow

	stats assemblyStats
}

// lateWindow is the node that completed most recently. Node fields arriving
// before the next entity starts belong to it and are reported only.
type lateWindow struct {
	label      string
	id         valueobjects.NodeID
	suppressed bool
}

type assemblyStats struct {
	nodes            int
	edges            int
	applied          int
	duplicates       int
	discardedPending int
}

// NewAssembler creates an assembler for one session
func NewAssembler(
	policy *config.ExtractionPolicy,
	identity *IdentityResolver,
	dedup *Deduplicator,
	observer Observer,
	recorder Recorder,
	clock Clock,
	logger *zap.Logger,
) *Assembler {
	return &Assembler{
		policy:   policy,
		identity: identity,
		dedup:    dedup,
		observer: observer,
		recorder: recorder,
		clock:    clock,
		logger:   logger,
	}
}

// Apply processes one scanned field
func (a *Assembler) Apply(f Field) {
	if f.Kind == KindEdge {
		a.applyEdgeField(f)
		return
	}
	a.applyNodeField(f)
}

// Finalize flushes what can still be completed at session end and discards
// the rest. It returns the number of pending edges that never resolved.
func (a *Assembler) Finalize() int {
	a.late = nil

	if a.node != nil {
		a.closeNode()
	}

	if a.edge != nil {
		if a.edge.HasType && a.edge.HasEndpoints() {
			a.submitEdge()
		} else {
			a.logger.Debug("Discarding incomplete edge draft at finalization",
				zap.String("sourceLabel", a.edge.SourceLabel),
				zap.String("targetLabel", a.edge.TargetLabel))
			a.edge = nil
		}
	}

	a.retryPending()

	discarded := len(a.pending)
	for _, draft := range a.pending {
		a.logger.Debug("Discarding unresolved edge",
			zap.String("sourceLabel", draft.SourceLabel),
			zap.String("targetLabel", draft.TargetLabel))
	}
	a.pending = nil
	a.stats.discardedPending += discarded
	return discarded
}

// PendingEdges returns the number of edges waiting for an endpoint
func (a *Assembler) PendingEdges() int {
	return len(a.pending)
}

func (a *Assembler) applyNodeField(f Field) {
	if f.Starts {
		a.startNode(f.Value)
		return
	}

	if a.node == nil {
		// Fields after a completed node belong to it, not to a new draft
		if a.late != nil {
			a.applyLateField(f)
			return
		}
		a.openNode()
	}

	if a.replaying {
		if f.Terminal {
			a.endReplay()
		}
		return
	}

	if f.Value == "" {
		return
	}
	if !a.dedup.ApplyField(a.node.ID, f.Key, f.Value) {
		return
	}

	setNodeField(a.node, f.Key, f.Value)
	a.fieldApplied(a.node.Label, f.Key, f.Value)

	if f.Terminal && a.node.HasContent() {
		a.completeNode()
	}
}

func (a *Assembler) startNode(label string) {
	a.late = nil

	if a.node != nil {
		if label != "" && a.node.Label == label {
			return
		}
		a.closeNode()
	}

	a.openNode()
	a.node.Label = label
	if label == "" {
		return
	}

	if a.dedup.NodeCompleted(NodeKey(label, "", "")) {
		a.replaying = true
		a.stats.duplicates++
		a.recorder.DuplicateSuppressed(KindNode.String())
		a.logger.Debug("Suppressing repeated node definition", zap.String("label", label))
		return
	}

	if a.dedup.ApplyField(a.node.ID, FieldID, label) {
		a.fieldApplied(label, FieldID, label)
	}
}

func (a *Assembler) openNode() {
	a.node = entities.NewNodeDraft(a.identity.Mint())
	a.replaying = false
}

// closeNode ends the open draft because another node starts or the session
// ends. A flushable draft completes, anything else is dropped.
func (a *Assembler) closeNode() {
	switch {
	case a.replaying:
		a.endReplay()
	case a.node.IsFlushable():
		a.completeNode()
	default:
		a.logger.Debug("Discarding incomplete node draft",
			zap.String("label", a.node.Label),
			zap.Bool("hasContent", a.node.HasContent()))
		a.node = nil
	}
}

func (a *Assembler) endReplay() {
	a.late = &lateWindow{label: a.node.Label, suppressed: true}
	a.node = nil
	a.replaying = false
}

func (a *Assembler) completeNode() {
	draft := a.node
	a.node = nil

	key := NodeKey(draft.Label, draft.Title, draft.Description)
	if a.dedup.NodeCompleted(key) {
		a.stats.duplicates++
		a.recorder.DuplicateSuppressed(KindNode.String())
		a.logger.Debug("Suppressing duplicate node", zap.String("label", draft.Label))
		return
	}

	node, err := draft.Finalize(a.policy, entities.NodePlacement{
		Index:     a.stats.nodes,
		IsRoot:    a.stats.nodes == 0,
		CreatedAt: a.clock.Now(),
	})
	if err != nil {
		a.logger.Debug("Dropping node draft", zap.String("label", draft.Label), zap.Error(err))
		return
	}

	a.dedup.MarkNode(key)
	a.identity.Bind(draft.Label, node.ID)
	a.stats.nodes++
	a.recorder.NodeEmitted(node.Category.String())
	a.observer.NodeReady(node)

	if draft.Label != "" {
		a.late = &lateWindow{label: draft.Label, id: node.ID}
	}

	a.retryPending()
}

func (a *Assembler) applyLateField(f Field) {
	if a.late.suppressed || f.Value == "" {
		return
	}
	if !a.dedup.ApplyField(a.late.id, f.Key, f.Value) {
		return
	}
	a.fieldApplied(a.late.label, f.Key, f.Value)
}

func (a *Assembler) applyEdgeField(f Field) {
	if f.Starts {
		a.late = nil
		if a.edge != nil {
			a.logger.Debug("Discarding incomplete edge draft",
				zap.String("sourceLabel", a.edge.SourceLabel),
				zap.String("targetLabel", a.edge.TargetLabel))
		}
		a.edge = entities.NewEdgeDraft(a.identity.Mint())
	} else if a.edge == nil {
		a.edge = entities.NewEdgeDraft(a.identity.Mint())
	}

	if f.Value == "" {
		return
	}
	if !a.dedup.ApplyField(a.edge.ID, f.Key, f.Value) {
		return
	}

	switch f.Key {
	case FieldSourceID:
		a.edge.SourceLabel = f.Value
	case FieldTargetID:
		a.edge.TargetLabel = f.Value
	case FieldEdgeType:
		a.edge.Relationship = f.Value
		a.edge.HasType = true
	}
	a.fieldApplied(a.edge.SourceLabel, f.Key, f.Value)

	if a.edge.HasType && a.edge.HasEndpoints() {
		a.submitEdge()
	}
}

// submitEdge completes the open edge draft or parks it until its endpoints resolve
func (a *Assembler) submitEdge() {
	draft := a.edge
	a.edge = nil

	if !a.tryCompleteEdge(draft) {
		a.logger.Debug("Edge waiting for endpoint",
			zap.String("sourceLabel", draft.SourceLabel),
			zap.String("targetLabel", draft.TargetLabel))
		a.pending = append(a.pending, draft)
	}
}

// tryCompleteEdge reports false only when an endpoint is still unresolved.
// Rejected and duplicate edges count as handled.
func (a *Assembler) tryCompleteEdge(draft *entities.EdgeDraft) bool {
	sourceID, ok := a.identity.Resolve(draft.SourceLabel)
	if !ok {
		return false
	}
	targetID, ok := a.identity.Resolve(draft.TargetLabel)
	if !ok {
		return false
	}

	if sourceID.Equals(targetID) {
		a.logger.Debug("Rejecting self-referencing edge", zap.String("label", draft.SourceLabel))
		return true
	}

	key := draft.Key(sourceID, targetID)
	if a.dedup.EdgeCompleted(key) {
		a.stats.duplicates++
		a.recorder.DuplicateSuppressed(KindEdge.String())
		a.logger.Debug("Suppressing duplicate edge", zap.String("edgeKey", key.String()))
		return true
	}

	edge, err := draft.Finalize(sourceID, targetID, a.clock.Now())
	if err != nil {
		a.logger.Debug("Dropping edge draft", zap.Error(err))
		return true
	}

	a.dedup.MarkEdge(key)
	a.stats.edges++
	a.recorder.EdgeEmitted(edge.Relationship.String())
	a.observer.EdgeReady(edge)
	return true
}

func (a *Assembler) retryPending() {
	if len(a.pending) == 0 {
		return
	}

	remaining := a.pending[:0]
	for _, draft := range a.pending {
		if !a.tryCompleteEdge(draft) {
			remaining = append(remaining, draft)
		}
	}
	a.pending = remaining
}

func (a *Assembler) fieldApplied(label string, key FieldKey, value string) {
	a.stats.applied++
	a.recorder.FieldApplied(string(key))
	a.observer.FieldUpdate(label, string(key), value)
}

func setNodeField(draft *entities.NodeDraft, key FieldKey, value string) {
	switch key {
	case FieldNodeType:
		draft.NodeType = value
	case FieldTitle:
		draft.Title = value
	case FieldDescription:
		draft.Description = value
	case FieldCitation:
		draft.Citation = value
	case FieldConfidence:
		draft.Confidence = value
	}
}

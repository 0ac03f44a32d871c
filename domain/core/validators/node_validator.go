package validators

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"brain2-extractor/domain/core/aggregates"
	"brain2-extractor/domain/core/entities"
	"brain2-extractor/pkg/errors"
)

// NodeValidator validates extracted nodes before they leave the process
type NodeValidator struct {
	titleMaxLength       int
	descriptionMaxLength int
	citationMaxLength    int
}

// NewNodeValidator creates a new node validator with default rules
func NewNodeValidator() *NodeValidator {
	return &NodeValidator{
		titleMaxLength:       255,
		descriptionMaxLength: 50000,
		citationMaxLength:    1000,
	}
}

// ValidateNode validates a completed node
func (v *NodeValidator) ValidateNode(node entities.GraphNode) error {
	problems := map[string]interface{}{}

	if strings.TrimSpace(node.Title) == "" {
		problems["title"] = "title is required"
	} else if utf8.RuneCountInString(node.Title) > v.titleMaxLength {
		problems["title"] = fmt.Sprintf("title exceeds %d characters", v.titleMaxLength)
	}

	if utf8.RuneCountInString(node.Description) > v.descriptionMaxLength {
		problems["description"] = fmt.Sprintf("description exceeds %d characters", v.descriptionMaxLength)
	}

	if utf8.RuneCountInString(node.Citation) > v.citationMaxLength {
		problems["citation"] = fmt.Sprintf("citation exceeds %d characters", v.citationMaxLength)
	}

	if !node.Category.IsValid() {
		problems["category"] = fmt.Sprintf("unknown category %q", node.Category)
	}

	if node.Confidence < 0 || node.Confidence > 1 {
		problems["confidence"] = "confidence must be between 0 and 1"
	}

	if len(problems) > 0 {
		return errors.NewValidationError("invalid node " + node.ID.String()).WithDetails(problems)
	}
	return nil
}

// GraphValidator validates graph-level rules
type GraphValidator struct {
	maxNodes      int
	maxEdges      int
	nodeValidator *NodeValidator
}

// NewGraphValidator creates a new graph validator
func NewGraphValidator() *GraphValidator {
	return &GraphValidator{
		maxNodes:      10000,
		maxEdges:      50000,
		nodeValidator: NewNodeValidator(),
	}
}

// ValidateNodeCount validates the number of nodes in a graph
func (v *GraphValidator) ValidateNodeCount(count int) error {
	if count > v.maxNodes {
		return errors.NewValidationError(fmt.Sprintf("graph cannot have more than %d nodes", v.maxNodes))
	}
	return nil
}

// ValidateEdgeCount validates the number of edges in a graph
func (v *GraphValidator) ValidateEdgeCount(count int) error {
	if count > v.maxEdges {
		return errors.NewValidationError(fmt.Sprintf("graph cannot have more than %d edges", v.maxEdges))
	}
	return nil
}

// ValidateGraph validates an extracted graph and every node in it
func (v *GraphValidator) ValidateGraph(graph *aggregates.Graph) error {
	if graph == nil {
		return errors.NewValidationError("graph is required")
	}
	if graph.SessionID() == "" {
		return errors.NewValidationError("graph has no session")
	}

	nodes := graph.Nodes()
	if err := v.ValidateNodeCount(len(nodes)); err != nil {
		return err
	}
	if err := v.ValidateEdgeCount(len(graph.Edges())); err != nil {
		return err
	}

	for _, node := range nodes {
		if err := v.nodeValidator.ValidateNode(node); err != nil {
			return err
		}
	}

	if err := graph.Validate(); err != nil {
		return errors.NewValidationError(err.Error())
	}
	return nil
}

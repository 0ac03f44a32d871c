package dynamodb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"brain2-extractor/application/ports"
	"brain2-extractor/domain/core/aggregates"
	"brain2-extractor/domain/core/entities"
	"brain2-extractor/domain/core/valueobjects"
	"brain2-extractor/pkg/errors"
)

const (
	entityGraph = "GRAPH"
	entityNode  = "NODE"
	entityEdge  = "EDGE"

	// DynamoDB accepts at most 25 writes per batch
	batchSize          = 25
	maxWriteAttempts   = 3
	unprocessedBackoff = 50 * time.Millisecond
)

// DynamoDBAPI is the part of the DynamoDB client the repository uses
type DynamoDBAPI interface {
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// GraphRepository stores extracted graphs in a single DynamoDB table. All
// items of a session share the partition key SESSION#<id>; sort keys keep
// nodes and edges in emission order.
type GraphRepository struct {
	client    DynamoDBAPI
	tableName string
	ttl       time.Duration
	logger    *zap.Logger
}

var _ ports.GraphSink = (*GraphRepository)(nil)

// NewGraphRepository creates a new GraphRepository. A positive ttl sets the
// table's TTL attribute on every item.
func NewGraphRepository(client DynamoDBAPI, tableName string, ttl time.Duration, logger *zap.Logger) *GraphRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphRepository{
		client:    client,
		tableName: tableName,
		ttl:       ttl,
		logger:    logger,
	}
}

// graphItem represents the DynamoDB item structure for a graph
type graphItem struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	EntityType   string `dynamodbav:"EntityType"`
	SessionID    string `dynamodbav:"SessionID"`
	NodeCount    int    `dynamodbav:"NodeCount"`
	EdgeCount    int    `dynamodbav:"EdgeCount"`
	ClusterCount int    `dynamodbav:"ClusterCount"`
	CreatedAt    string `dynamodbav:"CreatedAt"`
	UpdatedAt    string `dynamodbav:"UpdatedAt"`
	TTL          int64  `dynamodbav:"TTL,omitempty"`
}

// nodeItem represents the DynamoDB item structure for a node
type nodeItem struct {
	PK          string  `dynamodbav:"PK"`
	SK          string  `dynamodbav:"SK"`
	EntityType  string  `dynamodbav:"EntityType"`
	NodeID      string  `dynamodbav:"NodeID"`
	Label       string  `dynamodbav:"Label,omitempty"`
	Title       string  `dynamodbav:"Title"`
	Description string  `dynamodbav:"Description,omitempty"`
	Category    string  `dynamodbav:"Category"`
	Citation    string  `dynamodbav:"Citation,omitempty"`
	Confidence  float64 `dynamodbav:"Confidence"`
	IsRoot      bool    `dynamodbav:"IsRoot"`
	X           float64 `dynamodbav:"X"`
	Y           float64 `dynamodbav:"Y"`
	CreatedAt   string  `dynamodbav:"CreatedAt"`
	TTL         int64   `dynamodbav:"TTL,omitempty"`
}

// edgeItem represents the DynamoDB item structure for an edge
type edgeItem struct {
	PK           string `dynamodbav:"PK"`
	SK           string `dynamodbav:"SK"`
	EntityType   string `dynamodbav:"EntityType"`
	EdgeID       string `dynamodbav:"EdgeID"`
	SourceID     string `dynamodbav:"SourceID"`
	TargetID     string `dynamodbav:"TargetID"`
	Relationship string `dynamodbav:"Relationship"`
	Style        string `dynamodbav:"Style"`
	CreatedAt    string `dynamodbav:"CreatedAt"`
	TTL          int64  `dynamodbav:"TTL,omitempty"`
}

func sessionPK(sessionID string) string {
	return fmt.Sprintf("SESSION#%s", sessionID)
}

// Save persists a graph to DynamoDB
func (r *GraphRepository) Save(ctx context.Context, graph *aggregates.Graph) error {
	if graph == nil || graph.SessionID() == "" {
		return errors.NewValidationError("graph with a session is required")
	}

	items, err := r.buildItems(graph)
	if err != nil {
		return errors.NewInternalError("failed to marshal graph").WithCause(err)
	}

	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		if err := r.writeBatch(ctx, items[start:end]); err != nil {
			r.logger.Error("Failed to save graph to DynamoDB",
				zap.String("sessionID", graph.SessionID()),
				zap.Error(err))
			return errors.NewDatabaseError("save graph", err)
		}
	}

	meta := graph.Metadata()
	r.logger.Info("Saved extracted graph to DynamoDB",
		zap.String("sessionID", graph.SessionID()),
		zap.String("PK", sessionPK(graph.SessionID())),
		zap.Int("nodeCount", meta.NodeCount),
		zap.Int("edgeCount", meta.EdgeCount))
	return nil
}

// Load retrieves the graph of a session
func (r *GraphRepository) Load(ctx context.Context, sessionID string) (*aggregates.Graph, error) {
	keyExpr := expression.Key("PK").Equal(expression.Value(sessionPK(sessionID)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, errors.NewInternalError("failed to build expression").WithCause(err)
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
	}

	var (
		meta  *graphItem
		nodes []entities.GraphNode
		edges []entities.GraphEdge
	)

	// Handle pagination
	for {
		result, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, errors.NewDatabaseError("load graph", err)
		}

		for _, item := range result.Items {
			switch entityType(item) {
			case entityGraph:
				var g graphItem
				if err := attributevalue.UnmarshalMap(item, &g); err != nil {
					return nil, errors.NewInternalError("failed to unmarshal graph").WithCause(err)
				}
				meta = &g
			case entityNode:
				node, err := parseNode(item)
				if err != nil {
					r.logger.Warn("Skipping unreadable node item", zap.String("sessionID", sessionID), zap.Error(err))
					continue
				}
				nodes = append(nodes, node)
			case entityEdge:
				edge, err := parseEdge(item)
				if err != nil {
					r.logger.Warn("Skipping unreadable edge item", zap.String("sessionID", sessionID), zap.Error(err))
					continue
				}
				edges = append(edges, edge)
			}
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	if meta == nil {
		return nil, errors.NewNotFoundError("graph")
	}

	createdAt, _ := time.Parse(time.RFC3339Nano, meta.CreatedAt)
	graph, err := aggregates.ReconstructGraph(sessionID, nodes, edges, createdAt)
	if err != nil {
		return nil, errors.NewInternalError("stored graph is inconsistent").WithCause(err)
	}
	return graph, nil
}

func (r *GraphRepository) buildItems(graph *aggregates.Graph) ([]map[string]types.AttributeValue, error) {
	pk := sessionPK(graph.SessionID())
	meta := graph.Metadata()
	ttl := r.expiry()

	items := make([]map[string]types.AttributeValue, 0, 1+meta.NodeCount+meta.EdgeCount)

	av, err := attributevalue.MarshalMap(graphItem{
		PK:           pk,
		SK:           entityGraph,
		EntityType:   entityGraph,
		SessionID:    graph.SessionID(),
		NodeCount:    meta.NodeCount,
		EdgeCount:    meta.EdgeCount,
		ClusterCount: meta.ClusterCount,
		CreatedAt:    meta.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:    meta.UpdatedAt.Format(time.RFC3339Nano),
		TTL:          ttl,
	})
	if err != nil {
		return nil, err
	}
	items = append(items, av)

	for i, node := range graph.Nodes() {
		av, err := attributevalue.MarshalMap(nodeItem{
			PK:          pk,
			SK:          fmt.Sprintf("NODE#%06d#%s", i, node.ID.String()),
			EntityType:  entityNode,
			NodeID:      node.ID.String(),
			Label:       node.Label,
			Title:       node.Title,
			Description: node.Description,
			Category:    node.Category.String(),
			Citation:    node.Citation,
			Confidence:  node.Confidence,
			IsRoot:      node.IsRoot,
			X:           node.Position.X,
			Y:           node.Position.Y,
			CreatedAt:   node.CreatedAt.Format(time.RFC3339Nano),
			TTL:         ttl,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, av)
	}

	for i, edge := range graph.Edges() {
		av, err := attributevalue.MarshalMap(edgeItem{
			PK:           pk,
			SK:           fmt.Sprintf("EDGE#%06d#%s", i, edge.ID.String()),
			EntityType:   entityEdge,
			EdgeID:       edge.ID.String(),
			SourceID:     edge.SourceID.String(),
			TargetID:     edge.TargetID.String(),
			Relationship: edge.Relationship.String(),
			Style:        string(edge.Style),
			CreatedAt:    edge.CreatedAt.Format(time.RFC3339Nano),
			TTL:          ttl,
		})
		if err != nil {
			return nil, err
		}
		items = append(items, av)
	}

	return items, nil
}

// writeBatch writes one batch, retrying unprocessed items a bounded number
// of times
func (r *GraphRepository) writeBatch(ctx context.Context, items []map[string]types.AttributeValue) error {
	requests := make([]types.WriteRequest, 0, len(items))
	for _, item := range items {
		requests = append(requests, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: item},
		})
	}

	for attempt := 1; ; attempt++ {
		result, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				r.tableName: requests,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to write batch: %w", err)
		}

		requests = result.UnprocessedItems[r.tableName]
		if len(requests) == 0 {
			return nil
		}
		if attempt >= maxWriteAttempts {
			return fmt.Errorf("failed to write %d items after %d attempts", len(requests), attempt)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(unprocessedBackoff * time.Duration(attempt)):
		}
	}
}

func (r *GraphRepository) expiry() int64 {
	if r.ttl <= 0 {
		return 0
	}
	return time.Now().Add(r.ttl).Unix()
}

func entityType(item map[string]types.AttributeValue) string {
	if v, ok := item["EntityType"].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	if v, ok := item["SK"].(*types.AttributeValueMemberS); ok {
		prefix, _, _ := strings.Cut(v.Value, "#")
		return prefix
	}
	return ""
}

func parseNode(item map[string]types.AttributeValue) (entities.GraphNode, error) {
	var n nodeItem
	if err := attributevalue.UnmarshalMap(item, &n); err != nil {
		return entities.GraphNode{}, err
	}

	id, err := valueobjects.NewNodeIDFromString(n.NodeID)
	if err != nil {
		return entities.GraphNode{}, err
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, n.CreatedAt)

	return entities.ReconstructNode(
		id,
		n.Label,
		valueobjects.NewNodeContent(n.Title, n.Description),
		valueobjects.Category(n.Category),
		n.Citation,
		n.Confidence,
		n.IsRoot,
		valueobjects.NewPosition(n.X, n.Y),
		createdAt,
	), nil
}

func parseEdge(item map[string]types.AttributeValue) (entities.GraphEdge, error) {
	var e edgeItem
	if err := attributevalue.UnmarshalMap(item, &e); err != nil {
		return entities.GraphEdge{}, err
	}

	id, err := valueobjects.NewNodeIDFromString(e.EdgeID)
	if err != nil {
		return entities.GraphEdge{}, err
	}
	source, err := valueobjects.NewNodeIDFromString(e.SourceID)
	if err != nil {
		return entities.GraphEdge{}, err
	}
	target, err := valueobjects.NewNodeIDFromString(e.TargetID)
	if err != nil {
		return entities.GraphEdge{}, err
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, e.CreatedAt)

	return entities.GraphEdge{
		ID:           id,
		SourceID:     source,
		TargetID:     target,
		Relationship: valueobjects.RelationshipType(e.Relationship),
		Style:        valueobjects.ConnectionStyle(e.Style),
		CreatedAt:    createdAt,
	}, nil
}

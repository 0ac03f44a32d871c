package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"brain2-extractor/domain/events"
)

// CloudWatchAPI is the part of the CloudWatch client the reporter uses
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Metrics pushes per-session extraction metrics to CloudWatch
type Metrics struct {
	namespace string
	client    CloudWatchAPI
	logger    *zap.Logger
}

// NewMetrics creates a new metrics instance. A nil client turns every call
// into a no-op.
func NewMetrics(namespace string, client CloudWatchAPI, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Metrics{
		namespace: namespace,
		client:    client,
		logger:    logger,
	}
}

// RecordSession records the counters of one finished session
func (m *Metrics) RecordSession(ctx context.Context, stats events.SessionStats, duration time.Duration) {
	if m.client == nil {
		return
	}

	now := aws.Time(time.Now())
	dimensions := []types.Dimension{
		{
			Name:  aws.String("Reason"),
			Value: aws.String(stats.Reason),
		},
	}

	count := func(name string, value int) types.MetricDatum {
		return types.MetricDatum{
			MetricName: aws.String(name),
			Dimensions: dimensions,
			Value:      aws.Float64(float64(value)),
			Unit:       types.StandardUnitCount,
			Timestamp:  now,
		}
	}

	metricData := []types.MetricDatum{
		count("SessionCount", 1),
		count("NodesEmitted", stats.NodesEmitted),
		count("EdgesEmitted", stats.EdgesEmitted),
		count("FieldsDropped", stats.FieldsDropped),
		count("FallbackTrims", stats.FallbackTrims),
		count("PendingEdgesDiscarded", stats.PendingEdgesDiscarded),
		{
			MetricName: aws.String("SessionDuration"),
			Dimensions: dimensions,
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Timestamp:  now,
		},
	}

	m.put(ctx, metricData)
}

// RecordError records error occurrences
func (m *Metrics) RecordError(ctx context.Context, errorType string, errorCode string) {
	if m.client == nil {
		return
	}

	m.put(ctx, []types.MetricDatum{
		{
			MetricName: aws.String("Errors"),
			Dimensions: []types.Dimension{
				{
					Name:  aws.String("ErrorType"),
					Value: aws.String(errorType),
				},
				{
					Name:  aws.String("ErrorCode"),
					Value: aws.String(errorCode),
				},
			},
			Value:     aws.Float64(1),
			Unit:      types.StandardUnitCount,
			Timestamp: aws.Time(time.Now()),
		},
	})
}

func (m *Metrics) put(ctx context.Context, data []types.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}

	// Metrics never fail the operation that produced them
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.Warn("Failed to send metrics",
			zap.String("namespace", m.namespace),
			zap.Error(err))
	}
}

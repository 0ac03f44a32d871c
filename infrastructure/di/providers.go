package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"brain2-extractor/application/ports"
	"brain2-extractor/application/services"
	domainconfig "brain2-extractor/domain/config"
	"brain2-extractor/infrastructure/config"
	"brain2-extractor/infrastructure/llm"
	"brain2-extractor/infrastructure/messaging/eventbridge"
	"brain2-extractor/infrastructure/persistence/dynamodb"
	"brain2-extractor/infrastructure/persistence/memory"
	"brain2-extractor/pkg/observability"
	"brain2-extractor/pkg/ratelimit"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() || cfg.IsLambda {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("environment", cfg.Environment)), nil
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideGraphSink selects where finished graphs are stored
func ProvideGraphSink(cfg *config.Config, client *awsdynamodb.Client, logger *zap.Logger) ports.GraphSink {
	if cfg.GraphSink == "dynamodb" {
		return dynamodb.NewGraphRepository(client, cfg.GraphTable, cfg.GraphTTL, logger)
	}
	return memory.NewGraphSink()
}

// ProvideEventPublisher returns the EventBridge publisher, or nil when the
// event bus is disabled
func ProvideEventPublisher(cfg *config.Config, client *awseventbridge.Client, logger *zap.Logger) ports.EventPublisher {
	if !cfg.EnableEventBus {
		return nil
	}
	return eventbridge.NewPublisher(client, cfg.EventBusName, cfg.EventSource, logger)
}

// ProvideCollector creates the Prometheus collector
func ProvideCollector() *observability.Collector {
	return observability.NewCollector("brain2_extractor")
}

// ProvideMetrics creates the CloudWatch reporter; it is a no-op unless
// CloudWatch is enabled
func ProvideMetrics(cfg *config.Config, client *awscloudwatch.Client, logger *zap.Logger) *observability.Metrics {
	if !cfg.EnableCloudWatch {
		return observability.NewMetrics(cfg.CloudWatchNamespace, nil, logger)
	}
	return observability.NewMetrics(cfg.CloudWatchNamespace, client, logger)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer("brain2-extractor", cfg.EnableTracing)
}

// ProvideFinishedCache creates the cache of finished session summaries
func ProvideFinishedCache() (ports.Cache, func()) {
	cache := memory.NewCache(time.Minute)
	return cache, cache.Close
}

// ProvideGenerateLimiter creates the per-client limiter for generation
// requests, or nil when GENERATE_RATE_LIMIT is zero
func ProvideGenerateLimiter(cfg *config.Config) (*ratelimit.SlidingWindowLimiter, func()) {
	if cfg.GenerateRateLimit == 0 {
		return nil, func() {}
	}

	limiter := ratelimit.NewSlidingWindowLimiter(cfg.GenerateRateLimit, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	go limiter.Run(ctx, 5*time.Minute)
	return limiter, cancel
}

// ProvidePolicy loads the extraction policy
func ProvidePolicy(cfg *config.Config) (*domainconfig.ExtractionPolicy, error) {
	return config.LoadPolicy(cfg)
}

// ProvideSessionManager creates the session manager
func ProvideSessionManager(
	cfg *config.Config,
	policy *domainconfig.ExtractionPolicy,
	sink ports.GraphSink,
	publisher ports.EventPublisher,
	finished ports.Cache,
	collector *observability.Collector,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *services.SessionManager {
	return services.NewSessionManager(services.ManagerConfig{
		MaxSessions:      cfg.MaxSessions,
		Retention:        cfg.SessionRetention,
		SubscriberBuffer: cfg.SubscriberBuffer,
	}, services.ManagerDeps{
		Policy:    policy,
		Sink:      sink,
		Publisher: publisher,
		Finished:  finished,
		Recorder:  collector,
		Reporter:  metrics,
		Gauge:     collector.ActiveSessions,
		Logger:    logger,
	})
}

// ProvideGenerator creates the upstream generation client, or nil when no
// API key is configured
func ProvideGenerator(cfg *config.Config, logger *zap.Logger) *llm.Generator {
	if cfg.OpenAIAPIKey == "" {
		return nil
	}
	return llm.NewGenerator(llm.GeneratorConfig{
		APIKey:      cfg.OpenAIAPIKey,
		BaseURL:     cfg.OpenAIBaseURL,
		Model:       cfg.OpenAIModel,
		Timeout:     cfg.UpstreamTimeout,
		MaxFailures: uint32(cfg.BreakerMaxFailure),
		Cooldown:    cfg.BreakerCooldown,
	}, logger)
}

package main

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"brain2-extractor/infrastructure/config"
	"brain2-extractor/infrastructure/di"
	"brain2-extractor/interfaces/http/rest"
)

var (
	// chiLambda wraps the Chi router for AWS Lambda integration
	chiLambda *chiadapter.ChiLambdaV2

	// container holds the dependency injection container
	container *di.Container

	// coldStart tracks whether this is a cold start invocation
	coldStart = true

	coldStartTime time.Time
)

// init runs during cold start. Only the one-shot extraction routes are
// meaningful here: sessions do not outlive an invocation.
func init() {
	coldStartTime = time.Now()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.IsLambda = true

	// The cleanup only stops the cache sweeper; the sandbox freeze handles it
	container, _, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	router := rest.NewRouter(rest.RouterConfig{
		EnableCORS:       cfg.EnableCORS,
		DefaultChunkSize: cfg.DefaultChunkSize,
	}, container.Sessions, nil, nil, container.Tracer, container.Logger)

	chiRouter, ok := router.Setup().(*chi.Mux)
	if !ok {
		log.Fatal("Failed to cast handler to chi.Mux")
	}
	chiLambda = chiadapter.NewV2(chiRouter)

	container.Logger.Info("Lambda cold start completed",
		zap.Duration("duration", time.Since(coldStartTime)))
}

// Handler is the Lambda function handler
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	start := time.Now()
	wasColdStart := coldStart
	coldStart = false

	resp, err := chiLambda.ProxyWithContextV2(ctx, req)

	container.Logger.Info("Lambda request handled",
		zap.String("path", req.RequestContext.HTTP.Path),
		zap.String("method", req.RequestContext.HTTP.Method),
		zap.String("request_id", req.RequestContext.RequestID),
		zap.Int("status", resp.StatusCode),
		zap.Bool("cold_start", wasColdStart),
		zap.Duration("duration", time.Since(start)))

	return resp, err
}

func main() {
	lambda.Start(Handler)
}

package di

import (
	"go.uber.org/zap"

	"brain2-extractor/application/services"
	"brain2-extractor/infrastructure/config"
	"brain2-extractor/infrastructure/llm"
	"brain2-extractor/pkg/observability"
	"brain2-extractor/pkg/ratelimit"
)

// Container holds all application dependencies
type Container struct {
	Config          *config.Config
	Logger          *zap.Logger
	Sessions        *services.SessionManager
	Generator       *llm.Generator
	GenerateLimiter *ratelimit.SlidingWindowLimiter
	Collector       *observability.Collector
	Tracer          *observability.Tracer
}

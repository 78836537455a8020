// internal/api/router.go
package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"northbound-api/internal/common/config"
	"northbound-api/internal/common/logger"
	"northbound-api/internal/common/observability"
	"northbound-api/internal/ratelimit"
)

// Deps carries everything the router wires together.
type Deps struct {
	Config        *config.Config
	Subscriptions SubscriptionService
	Predictions   PredictionsService
	Limiter       *ratelimit.Limiter
	Postgres      Pinger
	Redis         Pinger
	Logger        logger.Logger
	Observability *observability.Observability
}

// NewRouter builds the HTTP surface. Subscribe and unsubscribe sit behind
// their own rate-limit budgets; confirm does not, a verification link must
// always be able to land.
func NewRouter(d Deps) *gin.Engine {
	if d.Config.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(resolveClientKey())
	r.Use(observe(d.Logger, d.Observability))
	r.Use(corsFor(d.Config.HTTP.CORSOrigins))

	h := &handlers{
		subs:        d.Subscriptions,
		predictions: d.Predictions,
		postgres:    d.Postgres,
		redis:       d.Redis,
		version:     d.Config.App.Version,
		log:         d.Logger,
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.GET("/health", h.health)
		v1.GET("/predictions/h7/latest", h.latestPredictions)

		subs := v1.Group("/subscriptions")
		subs.Use(apiKeyAuth(d.Config.HTTP.APIKey))
		{
			subs.GET("", h.getSubscription)
			subs.POST("", rateLimitFor(d.Limiter, "subscribe"), h.subscribe)
			subs.POST("/confirm", h.confirm)
			subs.POST("/unsubscribe", rateLimitFor(d.Limiter, "unsubscribe"), h.unsubscribe)
		}
	}
	return r
}

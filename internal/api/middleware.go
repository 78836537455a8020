// internal/api/middleware.go
package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "northbound-api/internal/common/errors"
	"northbound-api/internal/common/logger"
	"northbound-api/internal/common/metrics"
	"northbound-api/internal/common/observability"
	"northbound-api/internal/ratelimit"
)

const (
	requestIDKey  = "request_id"
	clientKeyKey  = "client_key"
	requestIDHead = "X-Request-ID"
)

// requestID assigns or propagates a request ID for log correlation.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHead)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHead, id)
		c.Next()
	}
}

// observe emits the access log line and request metrics.
func observe(log logger.Logger, obs *observability.Observability) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(elapsed.Seconds())
		if obs != nil {
			obs.RecordRequest(c.Request.Context(), path, c.Request.Method, status)
			obs.RecordDuration(c.Request.Context(), path, elapsed)
		}

		log.Info("request handled", map[string]interface{}{
			"method":      c.Request.Method,
			"path":        path,
			"status":      status,
			"duration_ms": elapsed.Milliseconds(),
			"client_key":  c.GetString(clientKeyKey),
			"request_id":  c.GetString(requestIDKey),
		})
	}
}

// resolveClientKey derives the rate-limit key for the caller. Behind the
// load balancer the client address is the first entry of X-Forwarded-For;
// X-Real-IP is the fallback. Callers with neither header all share the
// "unknown" bucket, so unidentified traffic is throttled collectively
// instead of getting a fresh budget per socket.
func resolveClientKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "unknown"
		if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
			first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
			if first != "" {
				key = first
			}
		} else if rip := c.GetHeader("X-Real-IP"); rip != "" {
			key = strings.TrimSpace(rip)
		}
		c.Set(clientKeyKey, key)
		c.Next()
	}
}

// apiKeyAuth enforces a static bearer key on mutating endpoints when one is
// configured. An empty configured key disables the check.
func apiKeyAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWithError(c, http.StatusUnauthorized, &apperrors.StandardError{
				Code:      apperrors.ErrCodeMissingAPIKey,
				Message:   "Authorization header is required",
				Timestamp: time.Now().UTC(),
			})
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if token != apiKey {
			abortWithError(c, http.StatusUnauthorized, &apperrors.StandardError{
				Code:      apperrors.ErrCodeInvalidAPIKey,
				Message:   "API key is not valid",
				Timestamp: time.Now().UTC(),
			})
			return
		}
		c.Next()
	}
}

// rateLimitFor guards an endpoint with the named limiter budget. Denials
// return 429 with the standard limit headers and a retry hint.
func rateLimitFor(limiter *ratelimit.Limiter, identifier string) gin.HandlerFunc {
	return func(c *gin.Context) {
		decision := limiter.Check(c.Request.Context(), identifier, c.GetString(clientKeyKey))

		if decision.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		}
		if decision.Allowed {
			c.Next()
			return
		}

		retryAfter := decision.RetryAfterSeconds(time.Now())
		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, RateLimitedResponse{
			Code:              string(apperrors.ErrCodeRateLimitExceeded),
			Message:           "Too many requests, slow down",
			Limit:             decision.Limit,
			Remaining:         decision.Remaining,
			ResetAt:           decision.ResetAt.UTC().Format(time.RFC3339),
			RetryAfterSeconds: retryAfter,
		})
	}
}

// corsFor allows the configured browser origins.
func corsFor(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	allowAll := false
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
			c.Header("Access-Control-Max-Age", "600")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func abortWithError(c *gin.Context, status int, stdErr *apperrors.StandardError) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		RequestID: c.GetString(requestIDKey),
	})
}

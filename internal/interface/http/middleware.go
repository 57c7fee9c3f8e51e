package http

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/featherlingo/featherlingo-api/internal/domain/shared"
	"github.com/featherlingo/featherlingo-api/internal/infrastructure/auth"
	"github.com/featherlingo/featherlingo-api/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

const (
	headerRequestID = "X-Request-ID"
	keyRequestID    = "request_id"
	keyIdentity     = "identity"
)

// TokenVerifier resolves a bearer token to the caller identity.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// requestIDMiddleware reuses X-Request-ID or generates one, and attaches
// a request-scoped logger to the request context.
func requestIDMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(keyRequestID, id)
		c.Header(headerRequestID, id)

		ctx := logger.WithContext(c.Request.Context(), log.WithRequestID(id))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// loggingMiddleware logs every request at a level chosen by status.
func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()
		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", path),
			logger.Int("status", status),
			logger.Latency(time.Since(start)),
			logger.String("ip", c.ClientIP()),
		}
		if id, ok := identityFrom(c); ok {
			fields = append(fields, logger.UserID(id.UserID))
		}

		log := logger.FromContext(c.Request.Context())
		switch {
		case status >= 500:
			log.Error("http request", fields...)
		case status >= 400:
			log.Warn("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	}
}

// recoveryMiddleware turns a panic into a 500 envelope.
func recoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.FromContext(c.Request.Context()).Error("panic recovered",
			logger.Any("panic", recovered),
			logger.String("stack", string(debug.Stack())),
			logger.String("path", c.Request.URL.Path),
		)
		fail(c, http.StatusInternalServerError, CodeInternal, "an unexpected error occurred", "")
	})
}

// corsMiddleware allows the configured origins. "*" allows any origin.
func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Authorization", "Content-Type", headerRequestID},
		ExposeHeaders: []string{headerRequestID},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// bodyLimitMiddleware caps request bodies at limit bytes.
func bodyLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// authMiddleware requires a valid bearer token.
func authMiddleware(tokens TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := tokens.Verify(bearerToken(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.Set(keyIdentity, id)

		ctx := c.Request.Context()
		ctx = logger.WithContext(ctx, logger.FromContext(ctx).With(logger.UserID(id.UserID)))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// featureGate hides a route group behind a feature switch.
func featureGate(enabled func() bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if enabled != nil && !enabled() {
			fail(c, http.StatusNotFound, CodeNotFound, "feature disabled", c.FullPath())
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func identityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(keyIdentity)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

// callerID returns the authenticated user id. Routes behind authMiddleware
// always have one; the error branch guards against wiring mistakes.
func callerID(c *gin.Context) (string, bool) {
	id, ok := identityFrom(c)
	if !ok || id.UserID == "" {
		respondError(c, shared.ErrMissingToken)
		return "", false
	}
	return id.UserID, true
}

func requestID(c *gin.Context) string {
	return c.GetString(keyRequestID)
}

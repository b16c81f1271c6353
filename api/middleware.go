package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"github.com/carson-networks/ingest-server/internal/auth"
	"github.com/carson-networks/ingest-server/internal/handlers/v1/imports"
	"github.com/carson-networks/ingest-server/internal/ledger"
	"github.com/carson-networks/ingest-server/internal/ratelimit"
)

type verifier interface {
	Verify(token string) (string, error)
}

type limiter interface {
	Allow(ctx context.Context, identity string) (ratelimit.Result, error)
}

// AuthMiddleware requires a valid bearer token on every operation except
// those listed in public.
func AuthMiddleware(api huma.API, v verifier, public ...string) func(huma.Context, func(huma.Context)) {
	skip := make(map[string]bool, len(public))
	for _, id := range public {
		skip[id] = true
	}
	return func(ctx huma.Context, next func(huma.Context)) {
		if op := ctx.Operation(); op != nil && skip[op.OperationID] {
			next(ctx)
			return
		}

		token, err := auth.BearerToken(ctx.Header("Authorization"))
		if err != nil {
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "authentication required", err)
			return
		}
		userID, err := v.Verify(token)
		if err != nil {
			_ = huma.WriteErr(api, ctx, http.StatusUnauthorized, "invalid token")
			return
		}
		next(huma.WithContext(ctx, auth.WithUserID(ctx.Context(), userID)))
	}
}

// RateLimitMiddleware counts every request against the import limiter when
// it submits an import and against the general limiter otherwise.
func RateLimitMiddleware(api huma.API, general, importLimiter limiter, log logrus.FieldLogger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		l := general
		if op := ctx.Operation(); op != nil && op.OperationID == imports.SubmitOperationID {
			l = importLimiter
		}

		identity := ratelimit.Identity(
			auth.UserID(ctx.Context()),
			auth.ClientIP(requestHeaders(ctx), ctx.RemoteAddr()),
		)
		result, err := l.Allow(ctx.Context(), identity)
		var exceeded *ledger.RateLimitExceeded
		if errors.As(err, &exceeded) {
			setLimitHeaders(ctx, result)
			retryAfter := int(time.Until(exceeded.ResetAt).Seconds()) + 1
			if retryAfter < 1 {
				retryAfter = 1
			}
			ctx.SetHeader("Retry-After", strconv.Itoa(retryAfter))
			log.WithField("identity", identity).Info("RateLimit.Middleware.rejected")
			_ = huma.WriteErr(api, ctx, http.StatusTooManyRequests, exceeded.Error())
			return
		}
		if err != nil {
			log.WithError(err).Warn("RateLimit.Middleware.error")
		}
		if !result.Bypassed {
			setLimitHeaders(ctx, result)
		}
		next(ctx)
	}
}

func setLimitHeaders(ctx huma.Context, result ratelimit.Result) {
	ctx.SetHeader("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
	ctx.SetHeader("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
	if !result.ResetAt.IsZero() {
		ctx.SetHeader("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	}
}

func requestHeaders(ctx huma.Context) http.Header {
	header := http.Header{}
	for _, name := range []string{"X-Forwarded-For", "X-Real-IP"} {
		if v := ctx.Header(name); v != "" {
			header.Set(name, v)
		}
	}
	return header
}

package api

import (
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/headercal/headercal-server/internal/errors"
	"github.com/headercal/headercal-server/internal/logger"
)

// rateLimitByIP returns a huma middleware that limits identity issuance
// per client address. It is a no-op when the limiter is disabled.
func (s *Server) rateLimitByIP() func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.identityLimiter == nil {
			next(ctx)
			return
		}

		key := clientIP(ctx.RemoteAddr())
		if s.identityLimiter.Allow(key) {
			next(ctx)
			return
		}

		wait := s.identityLimiter.RetryAfter(key)
		ctx.SetHeader("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		logger.FromContext(ctx.Context(), s.logger).Warn("rate limit exceeded",
			"ip", key,
			"path", ctx.URL().Path,
		)
		_ = huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, "Too many requests. Please try again later.",
			domainerrors.ErrRateLimited)
	}
}

// clientIP strips the port from a remote address. chi's RealIP middleware
// has already applied X-Forwarded-For and X-Real-IP.
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}

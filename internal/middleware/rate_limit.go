package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	pkghttp "github.com/nkuznetsov/vaultgate/pkg/http"
)

// Traffic classes with independent ceilings. The auth class gates
// login/registration on top of the general one.
const (
	RateClassGeneral = "general"
	RateClassAuth    = "auth"
)

// RateClassConfig holds one traffic class's ceiling
type RateClassConfig struct {
	Class   string
	Limit   int
	Window  time.Duration
	Message string
}

// GeneralRateLimit returns the router-wide traffic class config
func GeneralRateLimit(limit int, window time.Duration) RateClassConfig {
	return RateClassConfig{
		Class:   RateClassGeneral,
		Limit:   limit,
		Window:  window,
		Message: "Too many requests, please try again later",
	}
}

// AuthRateLimit returns the stricter class applied to authentication endpoints
func AuthRateLimit(limit int, window time.Duration) RateClassConfig {
	return RateClassConfig{
		Class:   RateClassAuth,
		Limit:   limit,
		Window:  window,
		Message: "Too many authentication attempts, please try again later",
	}
}

// RateLimitByIP admits up to cfg.Limit requests per client IP within
// cfg.Window. The client key comes from ExtractClientIP, so forwarding
// headers only count when the request arrived through a trusted proxy.
// Rejected requests never reach the downstream handler and are not audited
// (no credential check occurred); they only emit a warn-level log event
// alongside the 429 response.
func RateLimitByIP(cfg RateClassConfig, ipConfig *pkghttp.IPConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	return httprate.Limit(
		cfg.Limit,
		cfg.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			logger.Warn("rate limit exceeded",
				slog.String("class", cfg.Class),
				slog.String("ip", pkghttp.ExtractClientIP(r, ipConfig)),
				slog.String("path", r.URL.Path),
			)
			pkghttp.WriteTooManyRequests(w, cfg.Message)
		}),
	)
}

package server

import (
	"fmt"
	"net/http"
	"strings"
)

type SecurityConfig struct {
	BaseURL         string
	StorageEndpoint string
	FrameAncestors  string
}

// securityHeaders locks down the JSON API. Media is fetched from storage by the
// player, so the storage endpoint is allowed for media and images.
func securityHeaders(cfg SecurityConfig) func(http.Handler) http.Handler {
	strictTransport := hasHTTPS(cfg.BaseURL)

	storageSuffix := ""
	if cfg.StorageEndpoint != "" {
		storageSuffix = " " + cfg.StorageEndpoint
	}

	frameAncestors := "'none'"
	if ancestors := strings.TrimSpace(cfg.FrameAncestors); ancestors != "" {
		frameAncestors = ancestors
	}

	csp := fmt.Sprintf(
		"default-src 'none'; img-src 'self' data:%s; media-src 'self'%s; connect-src 'self'%s; frame-ancestors %s;",
		storageSuffix, storageSuffix, storageSuffix, frameAncestors,
	)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			w.Header().Set("Content-Security-Policy", csp)
			if frameAncestors == "'none'" {
				w.Header().Set("X-Frame-Options", "DENY")
			}
			if strictTransport {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hasHTTPS(baseURL string) bool {
	return strings.HasPrefix(baseURL, "https://")
}

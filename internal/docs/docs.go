// Package docs serves the OpenAPI description of the HTTP API and a browsable reference page.
package docs

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"net/http"
)

//go:embed openapi.yaml
var specYAML []byte

// specETag changes whenever the embedded description does, so clients revalidate cheaply.
var specETag = func() string {
	sum := sha256.Sum256(specYAML)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}()

const pageCSP = "default-src 'self'; " +
	"script-src 'self' https://cdn.jsdelivr.net 'unsafe-inline'; " +
	"style-src 'self' https://cdn.jsdelivr.net 'unsafe-inline'; " +
	"font-src 'self' https://cdn.jsdelivr.net data:; " +
	"img-src 'self' data:; connect-src 'self'; frame-ancestors 'self';"

func HandleSpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("ETag", specETag)
	w.Header().Set("Cache-Control", "public, max-age=300")
	if r.Header.Get("If-None-Match") == specETag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(specYAML)
}

// HandleDocs renders the reference page. It replaces the API's CSP because the
// viewer is loaded from a CDN.
func HandleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Security-Policy", pageCSP)
	w.Header().Del("X-Frame-Options")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}

const page = `<!DOCTYPE html>
<html><head>
  <title>Reelfeed API Reference</title>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
</head><body>
  <script id="api-reference" data-url="/api/docs/openapi.yaml"></script>
  <script src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"></script>
</body></html>`

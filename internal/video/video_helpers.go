package video

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/reelfeed/reelfeed/internal/httputil"
)

const pgForeignKeyViolation = "23503"

func viewerHash(ip, userAgent string) string {
	h := sha256.Sum256([]byte(ip + "|" + userAgent))
	return fmt.Sprintf("%x", h[:8])
}

// writeReferenceError answers a foreign key violation with 404 for a missing
// video and 403 for a token whose user is unknown. It reports whether it wrote.
func writeReferenceError(w http.ResponseWriter, err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgForeignKeyViolation {
		return false
	}
	if strings.Contains(pgErr.ConstraintName, "user_id") {
		httputil.WriteError(w, http.StatusForbidden, "unknown user")
		return true
	}
	httputil.WriteError(w, http.StatusNotFound, "video not found")
	return true
}

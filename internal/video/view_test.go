package video

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

const (
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	desktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	ipadUA    = "Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"
	botUA     = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func TestParseDevice(t *testing.T) {
	tests := []struct {
		ua   string
		want string
	}{
		{"", "unknown"},
		{iphoneUA, "mobile"},
		{desktopUA, "desktop"},
		{ipadUA, "tablet"},
		{botUA, "bot"},
	}
	for _, tt := range tests {
		if got := parseDevice(tt.ua); got != tt.want {
			t.Errorf("parseDevice(%.40q) = %q, want %q", tt.ua, got, tt.want)
		}
	}
}

func TestParseBrowser(t *testing.T) {
	if got := parseBrowser(desktopUA); got != "Chrome" {
		t.Errorf("expected Chrome, got %q", got)
	}
	if got := parseBrowser(""); got != "Other" {
		t.Errorf("expected Other for empty UA, got %q", got)
	}
}

func TestViewerHash_StableAndDistinct(t *testing.T) {
	a := viewerHash("203.0.113.1", desktopUA)
	if a != viewerHash("203.0.113.1", desktopUA) {
		t.Error("expected stable hash")
	}
	if a == viewerHash("203.0.113.2", desktopUA) {
		t.Error("expected different hash for different IP")
	}
	if len(a) != 16 {
		t.Errorf("expected 16 hex chars, got %d", len(a))
	}
}

func TestRecordView_Anonymous(t *testing.T) {
	h, mock, _ := newTestHandler(t)

	mock.ExpectExec(`UPDATE videos SET view_count = view_count \+ 1 WHERE id = \$1`).
		WithArgs(testVideoID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO video_views`).
		WithArgs(testVideoID, (*string)(nil), viewerHash("203.0.113.7", iphoneUA), "Safari", "mobile", "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	req := httptest.NewRequest(http.MethodPost, "/api/videos/"+testVideoID+"/view", nil)
	req.Header.Set("User-Agent", iphoneUA)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := serve(h, req)
	h.Wait()

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d: %s", http.StatusNoContent, rec.Code, rec.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestRecordView_AttachesSignedInUser(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	userID := testUserID

	mock.ExpectExec(`UPDATE videos SET view_count`).
		WithArgs(testVideoID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO video_views`).
		WithArgs(testVideoID, &userID, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), "", "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := serve(h, authenticatedRequest(t, http.MethodPost, "/api/videos/"+testVideoID+"/view", nil))
	h.Wait()

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestRecordView_UnknownVideo(t *testing.T) {
	h, mock, _ := newTestHandler(t)

	mock.ExpectExec(`UPDATE videos SET view_count`).
		WithArgs(testVideoID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/videos/"+testVideoID+"/view", nil))
	h.Wait()

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestRecordView_DatabaseError(t *testing.T) {
	h, mock, _ := newTestHandler(t)

	mock.ExpectExec(`UPDATE videos SET view_count`).
		WithArgs(testVideoID).
		WillReturnError(errors.New("connection reset"))

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/api/videos/"+testVideoID+"/view", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
}

package video

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/reelfeed/reelfeed/internal/catalog"
)

func TestListComments(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT c.id, c.user_id, COALESCE\(u.name, ''\), c.content, c.created_at`).
		WithArgs(testVideoID, maxListedComments).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "name", "content", "created_at"}).
			AddRow("comment-2", testUserID, "Ana", "second", at).
			AddRow("comment-1", testUserID, "Ana", "first", at.Add(-time.Minute)))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/comments/"+testVideoID, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	var comments []catalog.Comment
	if err := json.Unmarshal(rec.Body.Bytes(), &comments); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(comments) != 2 || comments[0].ID != "comment-2" || comments[0].Name != "Ana" {
		t.Fatalf("unexpected comments: %+v", comments)
	}
	if comments[1].VideoID != testVideoID {
		t.Errorf("expected video id on comment, got %q", comments[1].VideoID)
	}
}

func TestListComments_EmptyIsArray(t *testing.T) {
	h, mock, _ := newTestHandler(t)

	mock.ExpectQuery(`FROM comments c`).
		WithArgs(testVideoID, maxListedComments).
		WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "name", "content", "created_at"}))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/comments/"+testVideoID, nil))

	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("expected [], got %s", rec.Body.String())
	}
}

func TestCommentCount(t *testing.T) {
	h, mock, _ := newTestHandler(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM comments WHERE video_id = \$1`).
		WithArgs(testVideoID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/comments/"+testVideoID+"/count", nil))

	var resp commentCountResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Count != 7 {
		t.Errorf("expected count 7, got %d", resp.Count)
	}
}

func TestCommentCount_DatabaseError(t *testing.T) {
	h, mock, _ := newTestHandler(t)

	mock.ExpectQuery(`SELECT COUNT`).
		WithArgs(testVideoID).
		WillReturnError(errors.New("connection reset"))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/comments/"+testVideoID+"/count", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, rec.Code)
	}
}

func TestAddComment_Success(t *testing.T) {
	h, mock, _ := newTestHandler(t)
	at := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery(`WITH inserted AS`).
		WithArgs(testVideoID, testUserID, "great clip").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "created_at"}).AddRow("comment-9", "Ana", at))

	body, _ := json.Marshal(map[string]string{"content": "  great clip  "})
	rec := serve(h, authenticatedRequest(t, http.MethodPost, "/api/comments/"+testVideoID, body))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	var c catalog.Comment
	if err := json.Unmarshal(rec.Body.Bytes(), &c); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if c.ID != "comment-9" || c.Content != "great clip" || c.UserID != testUserID || c.Name != "Ana" {
		t.Errorf("unexpected comment: %+v", c)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet pgxmock expectations: %v", err)
	}
}

func TestAddComment_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"blank", `{"content":"   "}`, "comment is required"},
		{"too long", `{"content":"` + strings.Repeat("a", 5001) + `"}`, "comment must be 5000 characters or fewer"},
		{"malformed", `{"content":`, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, mock, _ := newTestHandler(t)

			rec := serve(h, authenticatedRequest(t, http.MethodPost, "/api/comments/"+testVideoID, []byte(tt.body)))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
			if msg := parseErrorResponse(t, rec.Body.Bytes()); msg != tt.want {
				t.Errorf("expected %q, got %q", tt.want, msg)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unexpected database access: %v", err)
			}
		})
	}
}

func TestAddComment_UnknownVideo(t *testing.T) {
	h, mock, _ := newTestHandler(t)

	mock.ExpectQuery(`WITH inserted AS`).
		WithArgs(testVideoID, testUserID, "hi").
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "comments_video_id_fkey"})

	rec := serve(h, authenticatedRequest(t, http.MethodPost, "/api/comments/"+testVideoID, []byte(`{"content":"hi"}`)))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

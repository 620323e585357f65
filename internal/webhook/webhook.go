// Package webhook delivers signed engagement events to an operator endpoint.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/reelfeed/reelfeed/internal/database"
)

const maxResponseBodyBytes = 1024

const (
	EventCommentCreated  = "comment.created"
	EventReactionChanged = "reaction.changed"
	EventBookmarkChanged = "bookmark.changed"
)

// Event represents a webhook event to dispatch.
type Event struct {
	Name      string         `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

func NewEvent(name string, data map[string]any) Event {
	return Event{Name: name, Timestamp: time.Now().UTC(), Data: data}
}

// Client dispatches webhook events with retries and delivery logging.
type Client struct {
	db          database.DBTX
	http        *http.Client
	url         string
	secret      string
	retryDelays []time.Duration
}

// New creates a webhook client posting to url. Deliveries are logged to db when it is set.
func New(db database.DBTX, url, secret string) *Client {
	return &Client{
		db:          db,
		http:        &http.Client{Timeout: 10 * time.Second},
		url:         url,
		secret:      secret,
		retryDelays: []time.Duration{1 * time.Second, 4 * time.Second},
	}
}

// SignPayload computes HMAC-SHA256 of the payload using the secret.
func SignPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Dispatch sends an event to the webhook URL with up to 3 attempts. All attempts
// share one delivery id so receivers can drop duplicates. Client errors other than
// 408 and 429 are not retried. Each attempt is logged to webhook_deliveries.
func (c *Client) Dispatch(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	d := delivery{
		id:        uuid.NewString(),
		event:     event.Name,
		body:      body,
		signature: SignPayload(c.secret, body),
	}
	maxAttempts := 1 + len(c.retryDelays)
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		statusCode, respBody, err := c.doPost(ctx, d)
		c.logDelivery(ctx, d, statusCode, respBody, attempt)

		if err == nil && statusCode != nil && *statusCode >= 200 && *statusCode < 300 {
			return nil
		}

		if err != nil {
			lastErr = err
		} else if statusCode != nil {
			lastErr = fmt.Errorf("webhook returned status %d", *statusCode)
			if !retryable(*statusCode) {
				return lastErr
			}
		}

		if attempt < maxAttempts {
			select {
			case <-time.After(c.retryDelays[attempt-1]):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return lastErr
}

type delivery struct {
	id        string
	event     string
	body      []byte
	signature string
}

func retryable(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests || status == http.StatusRequestTimeout
}

func (c *Client) doPost(ctx context.Context, d delivery) (*int, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(d.body))
	if err != nil {
		return nil, "", fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", d.signature)
	req.Header.Set("X-Webhook-Event", d.event)
	req.Header.Set("X-Webhook-Delivery", d.id)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err.Error(), err
	}
	defer func() { _ = resp.Body.Close() }()

	respBytes, _ := io.ReadAll(io.LimitReader(resp.Body, int64(maxResponseBodyBytes)+1))
	respBody := string(respBytes)
	if len(respBody) > maxResponseBodyBytes {
		respBody = respBody[:maxResponseBodyBytes]
	}

	return &resp.StatusCode, respBody, nil
}

func (c *Client) logDelivery(ctx context.Context, d delivery, statusCode *int, responseBody string, attempt int) {
	if c.db == nil {
		return
	}
	if _, err := c.db.Exec(ctx,
		`INSERT INTO webhook_deliveries (delivery_id, event, payload, status_code, response_body, attempt)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		d.id, d.event, d.body, statusCode, responseBody, attempt,
	); err != nil {
		slog.Error("webhook: failed to log delivery", "event", d.event, "delivery_id", d.id, "error", err)
	}
}

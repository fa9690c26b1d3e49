package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type triggerRequest struct {
	ChatId  uuid.UUID `json:"chat_id"`
	Message string    `json:"message"`
}

// HTTPResponder triggers the remote responder over HTTP.
type HTTPResponder struct {
	baseURL string
	client  *http.Client
}

func NewHTTPResponder(baseURL string, timeout time.Duration) *HTTPResponder {
	return &HTTPResponder{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (r *HTTPResponder) Trigger(ctx context.Context, chatID uuid.UUID, message string) (Result, error) {
	payload, err := json.Marshal(triggerRequest{ChatId: chatID, Message: message})
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal trigger request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/trigger", bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("failed to build trigger request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("responder unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("responder returned status %d: %s", resp.StatusCode, string(body))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("failed to decode responder result: %w", err)
	}
	return result, nil
}

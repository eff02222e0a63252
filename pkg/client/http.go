package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/message"
	"github.com/papercomputeco/relay/pkg/utils"
)

type chatRequest struct {
	SessionID string          `json:"sessionId"`
	Message   message.Message `json:"message"`
	Model     string          `json:"model,omitempty"`
}

// StatusError is returned for non-2xx relay responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("relay returned %d", e.StatusCode)
	}
	return fmt.Sprintf("relay returned %d: %s", e.StatusCode, e.Message)
}

// postChat opens the stream for a new user message.
func (s *Session) postChat(ctx context.Context, text string) (*http.Response, error) {
	body, err := json.Marshal(chatRequest{
		SessionID: s.id,
		Message: message.Message{
			ID:    uuid.NewString(),
			Role:  "user",
			Parts: []message.Part{{Type: message.PartText, Text: text}},
		},
		Model: s.cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	s.identify(req)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send chat request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	return resp, nil
}

// getStream asks the relay to replay the session's active stream. A nil
// response with a nil error means there is nothing to resume.
func (s *Session) getStream(ctx context.Context) (*http.Response, error) {
	u := s.cfg.BaseURL + "/stream/" + url.PathEscape(s.id) + "?follow=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create resume request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	s.identify(req)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send resume request: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusOK:
		return resp, nil
	case http.StatusNoContent:
		resp.Body.Close()
		return nil, nil
	default:
		return nil, statusError(resp)
	}
}

func (s *Session) identify(req *http.Request) {
	req.Header.Set("User-Agent", utils.UserAgent())
	if s.cfg.User != "" {
		req.Header.Set(HeaderUser, s.cfg.User)
	}
	if s.cfg.Email != "" {
		req.Header.Set(HeaderEmail, s.cfg.Email)
	}
}

func statusError(resp *http.Response) error {
	defer resp.Body.Close()

	se := &StatusError{StatusCode: resp.StatusCode}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return se
	}
	var er llm.ErrorResponse
	if json.Unmarshal(body, &er) == nil && er.Error != "" {
		se.Message = er.Error
	} else {
		se.Message = string(bytes.TrimSpace(body))
	}
	return se
}

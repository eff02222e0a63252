package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/storage"
)

type chatRequest struct {
	SessionID string      `json:"sessionId"`
	Message   chatMessage `json:"message"`
	Model     string      `json:"model,omitempty"`
}

// handleChat starts a new generation for the session and streams it back
// while buffering it in the cache.
func (r *Relay) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()
	id := currentIdentity(c)
	ctx := c.UserContext()

	var req chatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}
	text := req.Message.text()
	if req.SessionID == "" || strings.TrimSpace(text) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "sessionId and message text are required"})
	}

	if err := r.claimSession(ctx, req.SessionID, id.User); err != nil {
		return r.sendError(c, err)
	}

	// A new message supersedes whatever the session was streaming.
	r.cache.ClearActive(req.SessionID)

	turns, err := r.driver.History(ctx, req.SessionID)
	if err != nil {
		return r.sendError(c, fmt.Errorf("load history: %w", err))
	}

	prompt := llm.NewTextMessage("user", text)
	model := req.Model
	if model == "" {
		model = r.config.Model
	}
	body, err := r.requestProv.BuildRequest(&llm.ChatRequest{
		Model:    model,
		Messages: append(storage.Messages(turns), prompt),
	})
	if err != nil {
		return r.sendError(c, fmt.Errorf("build upstream request: %w", err))
	}

	streamID := uuid.NewString()
	log := r.logger.With("session_id", req.SessionID, "stream_id", streamID)

	// Use r.ctx instead of c.Context() because fasthttp recycles its
	// RequestCtx after the handler returns, while the producer keeps reading
	// upstream after the client goes away.
	upstreamCtx, cancel := context.WithCancel(r.ctx)
	httpReq, err := http.NewRequestWithContext(upstreamCtx, http.MethodPost, r.config.UpstreamURL, bytes.NewReader(body))
	if err != nil {
		cancel()
		return r.sendError(c, fmt.Errorf("create upstream request: %w", err))
	}
	r.headerHandler.SetUpstreamRequestHeaders(c, httpReq)

	log.Debug("forwarding chat to upstream",
		"url", r.config.UpstreamURL,
		"model", model,
		"history", len(turns),
	)

	httpResp, err := r.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		metrics.Add("upstream_errors", 1)
		log.Error("upstream request failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: "upstream request failed"})
	}
	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(httpResp.Body, 64*1024))
		httpResp.Body.Close()
		cancel()
		metrics.Add("upstream_errors", 1)
		log.Error("upstream returned error",
			"status", httpResp.StatusCode,
			"body", string(respBody),
		)
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{
			Error: fmt.Sprintf("upstream returned %d", httpResp.StatusCode),
		})
	}

	metrics.Add("chats", 1)
	r.headerHandler.SetStreamHeaders(c, streamID)

	// io.Pipe + SetBodyStream: pw.Write blocks until fasthttp has flushed
	// the previous chunk to the socket, so every event goes out as it is
	// produced.
	pr, pw := io.Pipe()
	p := &producer{
		relay:     r,
		sessionID: req.SessionID,
		streamID:  streamID,
		user:      id.User,
		prompt:    prompt,
		resp:      httpResp,
		cancel:    cancel,
		pw:        pw,
		logger:    log,
		startTime: startTime,
	}
	r.producers.Add(1)
	go p.run(upstreamCtx)

	// Set the pipe reader as the body stream with unknown size (-1),
	// which triggers chunked transfer encoding in fasthttp.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

package relay

import (
	"bytes"
	"context"
	"io"

	"github.com/gofiber/fiber/v2"
)

// handleResume replays the session's active stream from the first chunk.
// With ?follow=true the response stays open and tails live chunks until the
// stream is completed or evicted.
func (r *Relay) handleResume(c *fiber.Ctx) error {
	sessionID := c.Params("sessionId")
	id := currentIdentity(c)

	exists, err := r.checkOwner(c.UserContext(), sessionID, id.User)
	if err != nil {
		return r.sendError(c, err)
	}
	if !exists {
		return c.SendStatus(fiber.StatusNoContent)
	}

	streamID, ok := r.cache.ActiveStreamID(sessionID)
	if !ok {
		return c.SendStatus(fiber.StatusNoContent)
	}
	chunks, ok := r.cache.Chunks(streamID)
	if !ok || len(chunks) == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}

	metrics.Add("resumes", 1)
	r.logger.Info("resuming stream",
		"session_id", sessionID,
		"stream_id", streamID,
		"chunks", len(chunks),
		"follow", c.QueryBool("follow"),
	)
	r.headerHandler.SetStreamHeaders(c, streamID)

	if !c.QueryBool("follow") {
		return c.Send(bytes.Join(chunks, nil))
	}

	ctx, cancel := context.WithCancel(r.ctx)
	sub, ok := r.cache.Subscribe(ctx, streamID, 0)
	if !ok {
		cancel()
		return c.Send(bytes.Join(chunks, nil))
	}

	pr, pw := io.Pipe()
	go func() {
		defer cancel()
		defer pw.Close()
		for chunk := range sub {
			if _, err := pw.Write(chunk); err != nil {
				r.logger.Debug("resume client disconnected", "stream_id", streamID, "error", err)
				return
			}
		}
	}()

	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

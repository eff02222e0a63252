package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/storage"
)

const identityKey = "relay.identity"

var errForbidden = errors.New("session belongs to another user")

type identity struct {
	User  string
	Email string
}

// requireIdentity rejects requests without a forwarded user.
func (r *Relay) requireIdentity(c *fiber.Ctx) error {
	user, email := r.headerHandler.Identity(c)
	if user == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(llm.ErrorResponse{Error: "authentication required"})
	}
	c.Locals(identityKey, identity{User: user, Email: email})
	return c.Next()
}

func currentIdentity(c *fiber.Ctx) identity {
	id, _ := c.Locals(identityKey).(identity)
	return id
}

// claimSession makes user the owner of a new session, or checks that an
// existing one is theirs.
func (r *Relay) claimSession(ctx context.Context, sessionID, user string) error {
	owner, err := r.driver.ClaimSession(ctx, sessionID, user)
	if err != nil {
		return fmt.Errorf("claim session: %w", err)
	}
	if owner != user {
		return errForbidden
	}
	return nil
}

// checkOwner reports whether sessionID exists and belongs to user.
func (r *Relay) checkOwner(ctx context.Context, sessionID, user string) (bool, error) {
	owner, err := r.driver.Owner(ctx, sessionID)
	var nf storage.NotFoundError
	if errors.As(err, &nf) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up session owner: %w", err)
	}
	if owner != user {
		return false, errForbidden
	}
	return true, nil
}

func (r *Relay) sendError(c *fiber.Ctx, err error) error {
	if errors.Is(err, errForbidden) {
		return c.Status(fiber.StatusForbidden).JSON(llm.ErrorResponse{Error: err.Error()})
	}
	r.logger.Error("request failed", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "internal error"})
}

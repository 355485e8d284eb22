package httpServer

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"community-moderation/pkg/clients/identity"
	"community-moderation/pkg/models/private"
)

const actorLocal = "actor"

func bearerToken(c *fiber.Ctx) string {
	token := c.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = token[7:]
	}
	return strings.TrimSpace(token)
}

// authRequired resolves the bearer token through the identity
// collaborator and stores the actor in request locals.
func (h *handler) authRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
		}

		actor, err := h.identity.Resolve(c.Context(), token)
		if err != nil {
			if errors.Is(err, identity.ErrUnauthorized) {
				return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
			}

			h.logger.Error("failed to resolve actor", slog.String("error", err.Error()))
			return errorHandler(c, fiber.NewError(fiber.StatusInternalServerError, ""))
		}

		c.Locals(actorLocal, actor)

		return c.Next()
	}
}

// authOptional resolves the actor when a token is present and lets
// anonymous requests through. Report intake accepts both.
func (h *handler) authOptional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := bearerToken(c)
		if token == "" {
			return c.Next()
		}

		actor, err := h.identity.Resolve(c.Context(), token)
		if err != nil {
			if errors.Is(err, identity.ErrUnauthorized) {
				return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
			}

			h.logger.Error("failed to resolve actor", slog.String("error", err.Error()))
			return errorHandler(c, fiber.NewError(fiber.StatusInternalServerError, ""))
		}

		c.Locals(actorLocal, actor)

		return c.Next()
	}
}

func actorFromCtx(c *fiber.Ctx) (private.Actor, bool) {
	actor, ok := c.Locals(actorLocal).(private.Actor)
	return actor, ok
}

func (h *handler) loggerMiddleware(c *fiber.Ctx) error {
	headers := c.GetReqHeaders()
	delete(headers, "Authorization")
	delete(headers, "Cookie")

	res := c.Next()

	h.logger.Debug(
		"request",
		"status_code", c.Response().StatusCode(),
		"method", c.Method(),
		"url", c.OriginalURL(),
		"headers", headers,
		"body_length", len(c.Body()),
	)

	return res
}

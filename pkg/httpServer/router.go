package httpServer

import (
	"time"

	"github.com/gofiber/fiber/v2/middleware/limiter"
)

const (
	MaxRequests     = 100
	RateLimitWindow = 60 * time.Second
)

func (h *handler) RegisterRoutes() {
	h.logger.Info("Registering routes")

	m := newMetrics(h.namespace, h.subsystem)

	h.server.Use(m.metricsMiddleware)

	h.server.Use(limiter.New(limiter.Config{
		Max:               MaxRequests,
		Expiration:        RateLimitWindow,
		LimitReached:      h.limitReached,
		LimiterMiddleware: limiter.SlidingWindow{},
	}))

	apiv1 := h.server.Group("/api/v1", h.loggerMiddleware)

	apiv1.Get("/health", h.health)
	apiv1.Get("/metrics", h.metrics)

	{
		reports := apiv1.Group("/reports")

		reports.Post("", h.authOptional(), h.createReport)
		reports.Get("", h.authRequired(), h.getReports)
		reports.Get("/:id", h.authRequired(), h.getReport)
		reports.Post("/:id/triage", h.authRequired(), h.triageReport)
		reports.Post("/:id/dismiss", h.authRequired(), h.dismissReport)
	}

	{
		actions := apiv1.Group("/actions", h.authRequired())

		actions.Post("", h.createAction)
		actions.Get("", h.getActions)
		actions.Get("/:id", h.getAction)
	}

	{
		bans := apiv1.Group("/bans", h.authRequired())

		bans.Post("", h.issueBan)
		bans.Get("", h.getBans)
		bans.Get("/active", h.getActiveBan)
		bans.Get("/:id", h.getBan)
		bans.Post("/:id/lift", h.liftBan)
	}

	{
		appeals := apiv1.Group("/appeals", h.authRequired())

		appeals.Post("", h.submitAppeal)
		appeals.Get("", h.getAppeals)
		appeals.Get("/:id", h.getAppeal)
		appeals.Post("/:id/review", h.reviewAppeal)
		appeals.Post("/:id/escalate", h.escalateAppeal)
		appeals.Post("/:id/admin-review", h.adminResolveAppeal)
	}
}

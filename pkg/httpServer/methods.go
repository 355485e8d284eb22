package httpServer

import (
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	v1 "community-moderation/pkg/models/api/v1"
	"community-moderation/pkg/utils"
)

func (h *handler) limitReached(c *fiber.Ctx) error {
	log := h.logger.With(
		slog.String("method", c.Method()),
		slog.String("url", c.OriginalURL()),
	)

	log.Warn("rate limit reached for request")
	return fiber.NewError(fiber.StatusTooManyRequests, "too many requests, please try again later")
}

func (h *handler) createReport(c *fiber.Ctx) (err error) {
	log := h.logger.With(
		slog.String("func", "createReport"),
		slog.String("url", c.OriginalURL()),
	)

	var req v1.CreateReport
	if err := c.BodyParser(&req); err != nil {
		log.Error("failed to parse request body", slog.String("error", err.Error()))
		return errorHandler(c, fiber.NewError(fiber.StatusBadRequest, "invalid request body"))
	}

	var reporterID *string
	if actor, ok := actorFromCtx(c); ok {
		reporterID = &actor.ID
	}

	report, err := h.reports.Create(c.Context(), reporterID, req)
	if err != nil {
		log.Error("failed to create report", slog.String("error", err.Error()))
		return errorHandler(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"report": report,
	})
}

func (h *handler) getReports(c *fiber.Ctx) error {
	log := h.logger.With(slog.String("func", "getReports"))

	actor, ok := actorFromCtx(c)
	if !ok {
		return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
	}

	limit, offset := utils.ClampPaging(c.QueryInt("limit", 100), c.QueryInt("offset", 0))

	reports, err := h.reports.GetAll(c.Context(), actor, limit, offset)
	if err != nil {
		log.Error("failed to get reports", slog.String("error", err.Error()))
		return errorHandler(c, err)
	}

	return c.JSON(fiber.Map{
		"reports": reports,
	})
}

func (h *handler) getReport(c *fiber.Ctx) error {
	id := c.Params("id")
	log := h.logger.With(
		slog.String("func", "getReport"),
		slog.String("reportID", id),
	)

	actor, ok := actorFromCtx(c)
	if !ok {
		return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
	}

	if !validateID(id) {
		return errorHandler(c, fiber.NewError(fiber.StatusBadRequest, "invalid report id"))
	}

	report, err := h.reports.Get(c.Context(), actor, id)
	if err != nil {
		log.Error("failed to get report", slog.String("error", err.Error()))
		return errorHandler(c, err)
	}

	return c.JSON(fiber.Map{
		"report": report,
	})
}

func (h *handler) triageReport(c *fiber.Ctx) (err error) {
	id := c.Params("id")
	log := h.logger.With(
		slog.String("func", "triageReport"),
		slog.String("reportID", id),
	)

	actor, ok := actorFromCtx(c)
	if !ok {
		return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
	}

	if !validateID(id) {
		return errorHandler(c, fiber.NewError(fiber.StatusBadRequest, "invalid report id"))
	}

	var req v1.TriageReport
	if err := c.BodyParser(&req); err != nil {
		log.Error("failed to parse request body", slog.String("error", err.Error()))
		return errorHandler(c, fiber.NewError(fiber.StatusBadRequest, "invalid request body"))
	}

	report, err := h.reports.Triage(c.Context(), actor, id, req)
	if err != nil {
		log.Error("failed to triage report", slog.String("error", err.Error()))
		return errorHandler(c, err)
	}

	return c.JSON(fiber.Map{
		"report": report,
	})
}

func (h *handler) dismissReport(c *fiber.Ctx) (err error) {
	id := c.Params("id")
	log := h.logger.With(
		slog.String("func", "dismissReport"),
		slog.String("reportID", id),
	)

	actor, ok := actorFromCtx(c)
	if !ok {
		return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
	}

	if !validateID(id) {
		return errorHandler(c, fiber.NewError(fiber.StatusBadRequest, "invalid report id"))
	}

	var req v1.DismissReport
	if err := c.BodyParser(&req); err != nil {
		log.Error("failed to parse request body", slog.String("error", err.Error()))
		return errorHandler(c, fiber.NewError(fiber.StatusBadRequest, "invalid request body"))
	}

	report, err := h.reports.Dismiss(c.Context(), actor, id, req.ExpectedVersion)
	if err != nil {
		log.Error("failed to dismiss report", slog.String("error", err.Error()))
		return errorHandler(c, err)
	}

	return c.JSON(fiber.Map{
		"report": report,
	})
}

func (h *handler) createAction(c *fiber.Ctx) (err error) {
	log := h.logger.With(slog.String("func", "createAction"))

	actor, ok := actorFromCtx(c)
	if !ok {
		return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
	}

	var req v1.CreateAction
	if err := c.BodyParser(&req); err != nil {
		log.Error("failed to parse request body", slog.String("error", err.Error()))
		return errorHandler(c, fiber.NewError(fiber.StatusBadRequest, "invalid request body"))
	}

	if req.ReportID != nil && !validateID(*req.ReportID) {
		return errorHandler(c, fiber.NewError(fiber.StatusBadRequest, "invalid report id"))
	}

	action, err := h.actions.Create(c.Context(), actor, req)
	if err != nil {
		log.Error("failed to create action", slog.String("error", err.Error()))
		return errorHandler(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"action": action,
	})
}

func (h *handler) getActions(c *fiber.Ctx) error {
	log := h.logger.With(slog.String("func", "getActions"))

	actor, ok := actorFromCtx(c)
	if !ok {
		return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
	}

	limit, offset := utils.ClampPaging(c.QueryInt("limit", 100), c.QueryInt("offset", 0))

	actions, err := h.actions.GetAll(c.Context(), actor, limit, offset)
	if err != nil {
		log.Error("failed to get actions", slog.String("error", err.Error()))
		return errorHandler(c, err)
	}

	return c.JSON(fiber.Map{
		"actions": actions,
	})
}

func (h *handler) getAction(c *fiber.Ctx) error {
	id := c.Params("id")
	log := h.logger.With(
		slog.String("func", "getAction"),
		slog.String("actionID", id),
	)

	actor, ok := actorFromCtx(c)
	if !ok {
		return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
	}

	if !validateID(id) {
		return errorHandler(c, fiber.NewError(fiber.StatusBadRequest, "invalid action id"))
	}

	action, err := h.actions.Get(c.Context(), actor, id)
	if err != nil {
		log.Error("failed to get action", slog.String("error", err.Error()))
		return errorHandler(c, err)
	}

	return c.JSON(fiber.Map{
		"action": action,
	})
}

func (h *handler) issueBan(c *fiber.Ctx) (err error) {
	log := h.logger.With(slog.String("func", "issueBan"))

	actor, ok := actorFromCtx(c)
	if !ok {
		return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
	}

	var req v1.IssueBan
	if err := c.BodyParser(&req); err != nil {
		log.Error("failed to parse request body", slog.String("error", err.Error()))
		return errorHandler(c, fiber.NewError(fiber.StatusBadRequest, "invalid request body"))
	}

	ban, err := h.bans.Issue(c.Context(), actor, req)
	if err != nil {
		log.Error("failed to issue ban", slog.String("error", err.Error()))
		return errorHandler(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"ban": ban,
	})
}

func (h *handler) getBans(c *fiber.Ctx) error {
	log := h.logger.With(slog.String("func", "getBans"))

	actor, ok := actorFromCtx(c)
	if !ok {
		return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
	}

	limit, offset := utils.ClampPaging(c.QueryInt("limit", 100), c.QueryInt("offset", 0))

	bans, err := h.bans.GetAll(c.Context(), actor, limit, offset)
	if err != nil {
		log.Error("failed to get bans", slog.String("error", err.Error()))
		return errorHandler(c, err)
	}

	return c.JSON(fiber.Map{
		"bans": bans,
	})
}

func (h *handler) getActiveBan(c *fiber.Ctx) error {
	communityID := c.Query("community_id")
	userID := c.Query("user_id")
	log := h.logger.With(
		slog.String("func", "getActiveBan"),
		slog.String("communityID", communityID),
		slog.String("userID", userID),
	)

	actor, ok := actorFromCtx(c)
	if !ok {
		return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
	}

	ban, err := h.bans.GetActive(c.Context(), actor, communityID, userID)
	if err != nil {
		log.Error("failed to get active ban", slog.String("error", err.Error()))
		return errorHandler(c, err)
	}

	return c.JSON(fiber.Map{
		"banned": ban != nil,
		"ban":    ban,
	})
}

func (h *handler) getBan(c *fiber.Ctx) error {
	id := c.Params("id")
	log := h.logger.With(
		slog.String("func", "getBan"),
		slog.String("banID", id),
	)

	actor, ok := actorFromCtx(c)
	if !ok {
		return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
	}

	if !validateID(id) {
		return errorHandler(c, fiber.NewError(fiber.StatusBadRequest, "invalid ban id"))
	}

	ban, err := h.bans.Get(c.Context(), actor, id)
	if err != nil {
		log.Error("failed to get ban", slog.String("error", err.Error()))
		return errorHandler(c, err)
	}

	return c.JSON(fiber.Map{
		"ban": ban,
	})
}

func (h *handler) liftBan(c *fiber.Ctx) (err error) {
	id := c.Params("id")
	log := h.logger.With(
		slog.String("func", "liftBan"),
		slog.String("banID", id),
	)

	actor, ok := actorFromCtx(c)
	if !ok {
		return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
	}

	if !validateID(id) {
		return errorHandler(c, fiber.NewError(fiber.StatusBadRequest, "invalid ban id"))
	}

	if err := h.bans.Lift(c.Context(), actor, id); err != nil {
		log.Error("failed to lift ban", slog.String("error", err.Error()))
		return errorHandler(c, err)
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *handler) submitAppeal(c *fiber.Ctx) (err error) {
	log := h.logger.With(slog.String("func", "submitAppeal"))

	actor, ok := actorFromCtx(c)
	if !ok {
		return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
	}

	var req v1.SubmitAppeal
	if err := c.BodyParser(&req); err != nil {
		log.Error("failed to parse request body", slog.String("error", err.Error()))
		return errorHandler(c, fiber.NewError(fiber.StatusBadRequest, "invalid request body"))
	}

	appeal, err := h.appeals.Submit(c.Context(), actor, req)
	if err != nil {
		log.Error("failed to submit appeal", slog.String("error", err.Error()))
		return errorHandler(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"appeal": appeal,
	})
}

func (h *handler) getAppeals(c *fiber.Ctx) error {
	log := h.logger.With(slog.String("func", "getAppeals"))

	actor, ok := actorFromCtx(c)
	if !ok {
		return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
	}

	limit, offset := utils.ClampPaging(c.QueryInt("limit", 100), c.QueryInt("offset", 0))

	appeals, err := h.appeals.GetAll(c.Context(), actor, limit, offset)
	if err != nil {
		log.Error("failed to get appeals", slog.String("error", err.Error()))
		return errorHandler(c, err)
	}

	return c.JSON(fiber.Map{
		"appeals": appeals,
	})
}

func (h *handler) getAppeal(c *fiber.Ctx) error {
	id := c.Params("id")
	log := h.logger.With(
		slog.String("func", "getAppeal"),
		slog.String("appealID", id),
	)

	actor, ok := actorFromCtx(c)
	if !ok {
		return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
	}

	if !validateID(id) {
		return errorHandler(c, fiber.NewError(fiber.StatusBadRequest, "invalid appeal id"))
	}

	appeal, err := h.appeals.Get(c.Context(), actor, id)
	if err != nil {
		log.Error("failed to get appeal", slog.String("error", err.Error()))
		return errorHandler(c, err)
	}

	return c.JSON(fiber.Map{
		"appeal": appeal,
	})
}

func (h *handler) reviewAppeal(c *fiber.Ctx) (err error) {
	id := c.Params("id")
	log := h.logger.With(
		slog.String("func", "reviewAppeal"),
		slog.String("appealID", id),
	)

	actor, ok := actorFromCtx(c)
	if !ok {
		return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
	}

	if !validateID(id) {
		return errorHandler(c, fiber.NewError(fiber.StatusBadRequest, "invalid appeal id"))
	}

	var req v1.ReviewAppeal
	if err := c.BodyParser(&req); err != nil {
		log.Error("failed to parse request body", slog.String("error", err.Error()))
		return errorHandler(c, fiber.NewError(fiber.StatusBadRequest, "invalid request body"))
	}

	appeal, err := h.appeals.Review(c.Context(), actor, id, req)
	if err != nil {
		log.Error("failed to review appeal", slog.String("error", err.Error()))
		return errorHandler(c, err)
	}

	return c.JSON(fiber.Map{
		"appeal": appeal,
	})
}

func (h *handler) escalateAppeal(c *fiber.Ctx) (err error) {
	id := c.Params("id")
	log := h.logger.With(
		slog.String("func", "escalateAppeal"),
		slog.String("appealID", id),
	)

	actor, ok := actorFromCtx(c)
	if !ok {
		return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
	}

	if !validateID(id) {
		return errorHandler(c, fiber.NewError(fiber.StatusBadRequest, "invalid appeal id"))
	}

	appeal, err := h.appeals.Escalate(c.Context(), actor, id)
	if err != nil {
		log.Error("failed to escalate appeal", slog.String("error", err.Error()))
		return errorHandler(c, err)
	}

	return c.JSON(fiber.Map{
		"appeal": appeal,
	})
}

func (h *handler) adminResolveAppeal(c *fiber.Ctx) (err error) {
	id := c.Params("id")
	log := h.logger.With(
		slog.String("func", "adminResolveAppeal"),
		slog.String("appealID", id),
	)

	actor, ok := actorFromCtx(c)
	if !ok {
		return errorHandler(c, fiber.NewError(fiber.StatusUnauthorized, "unauthorized"))
	}

	if !validateID(id) {
		return errorHandler(c, fiber.NewError(fiber.StatusBadRequest, "invalid appeal id"))
	}

	var req v1.ReviewAppeal
	if err := c.BodyParser(&req); err != nil {
		log.Error("failed to parse request body", slog.String("error", err.Error()))
		return errorHandler(c, fiber.NewError(fiber.StatusBadRequest, "invalid request body"))
	}

	appeal, err := h.appeals.AdminResolve(c.Context(), actor, id, req)
	if err != nil {
		log.Error("failed to resolve appeal", slog.String("error", err.Error()))
		return errorHandler(c, err)
	}

	return c.JSON(fiber.Map{
		"appeal": appeal,
	})
}

func (h *handler) health(c *fiber.Ctx) error {
	return okHandler(c)
}

func (h *handler) metrics(c *fiber.Ctx) error {
	m := promhttp.Handler()

	return adaptor.HTTPHandler(m)(c)
}

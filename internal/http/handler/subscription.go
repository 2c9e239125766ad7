package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"wardline.app/api/internal/http/dto"
	"wardline.app/api/internal/service"
)

// maxWebhookBytes matches the payload cap the payment provider documents.
const maxWebhookBytes = 65536

type SubscriptionHandler struct {
	subService  service.SubscriptionService
	teamService service.TeamService
}

func NewSubscriptionHandler(subService service.SubscriptionService, teamService service.TeamService) *SubscriptionHandler {
	return &SubscriptionHandler{subService: subService, teamService: teamService}
}

func (h *SubscriptionHandler) Checkout(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: plan is required"})
		return
	}

	session, err := h.subService.Checkout(c.Request.Context(), user, req.Plan)
	if err != nil {
		respondError(c, err, "start checkout")
		return
	}

	c.JSON(http.StatusOK, dto.RedirectResponse{URL: session.URL})
}

func (h *SubscriptionHandler) Portal(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	url, err := h.subService.Portal(c.Request.Context(), user)
	if err != nil {
		respondError(c, err, "open billing portal")
		return
	}

	c.JSON(http.StatusOK, dto.RedirectResponse{URL: url})
}

func (h *SubscriptionHandler) Status(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	overview, err := h.subService.Status(ctx, user)
	if err != nil {
		respondError(c, err, "load subscription")
		return
	}

	var memberCount *int
	if overview.Team != nil {
		members, err := h.teamService.ListMembers(ctx, user, overview.Team.ID)
		if err != nil {
			respondError(c, err, "load subscription")
			return
		}
		count := len(members)
		memberCount = &count
	}

	c.JSON(http.StatusOK, dto.ToSubscriptionStatusResponse(overview, memberCount))
}

func (h *SubscriptionHandler) Downgrade(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	team, err := h.subService.Downgrade(c.Request.Context(), user)
	if err != nil {
		respondError(c, err, "downgrade subscription")
		return
	}

	c.JSON(http.StatusOK, dto.ToTeamResponse(team))
}

func (h *SubscriptionHandler) Webhook(c *gin.Context) {
	ctx := c.Request.Context()

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read body"})
		return
	}

	if err := h.subService.HandleWebhook(ctx, payload, c.GetHeader("Stripe-Signature")); err != nil {
		slog.WarnContext(ctx, "webhook rejected", "error", err)
		respondError(c, err, "process webhook")
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"wardline.app/api/internal/http/dto"
	"wardline.app/api/internal/model"
	"wardline.app/api/internal/service"
)

type InvitationHandler struct {
	invService service.InvitationService
}

func NewInvitationHandler(invService service.InvitationService) *InvitationHandler {
	return &InvitationHandler{invService: invService}
}

func (h *InvitationHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	teamID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.CreateInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: a valid email is required"})
		return
	}
	role := req.Role
	if role == "" {
		role = model.TeamRoleMember
	}

	inv, err := h.invService.Create(c.Request.Context(), user, teamID, req.Email, role)
	if err != nil {
		respondError(c, err, "create invitation")
		return
	}

	c.JSON(http.StatusCreated, dto.ToInvitationResponse(inv))
}

func (h *InvitationHandler) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	teamID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var status *model.InvitationStatus
	if raw := c.Query("status"); raw != "" {
		s := model.InvitationStatus(raw)
		if !s.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return
		}
		status = &s
	}

	invitations, err := h.invService.List(c.Request.Context(), user, teamID, status)
	if err != nil {
		respondError(c, err, "list invitations")
		return
	}

	c.JSON(http.StatusOK, gin.H{"invitations": dto.ToInvitationResponses(invitations)})
}

// Lookup is public. Invitations that are no longer pending are still described so
// the frontend can explain why the link does not work.
func (h *InvitationHandler) Lookup(c *gin.Context) {
	details, err := h.invService.Lookup(c.Request.Context(), c.Param("token"))
	if err != nil {
		if status := statusFor(err); status != 0 && details != nil {
			c.JSON(status, gin.H{
				"error":      err.Error(),
				"invitation": dto.ToInvitationLookupResponse(details),
			})
			return
		}
		respondError(c, err, "look up invitation")
		return
	}

	c.JSON(http.StatusOK, dto.ToInvitationLookupResponse(details))
}

func (h *InvitationHandler) Accept(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	updated, err := h.invService.Accept(c.Request.Context(), c.Param("token"), user)
	if err != nil {
		respondError(c, err, "accept invitation")
		return
	}

	c.JSON(http.StatusOK, dto.ToUserResponse(updated))
}

func (h *InvitationHandler) AcceptAndRegister(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: name, email and password are required"})
		return
	}

	result, err := h.invService.AcceptAndRegister(c.Request.Context(), c.Param("token"), req.Registration())
	if err != nil {
		respondError(c, err, "accept invitation")
		return
	}

	c.JSON(http.StatusCreated, dto.ToAuthResponse(result))
}

func (h *InvitationHandler) Cancel(c *gin.Context) {
	h.transition(c, h.invService.Cancel, "cancel invitation")
}

func (h *InvitationHandler) Resend(c *gin.Context) {
	h.transition(c, h.invService.Resend, "resend invitation")
}

type invitationTransition func(ctx context.Context, actor *model.User, teamID, invitationID int64) (*model.Invitation, error)

func (h *InvitationHandler) transition(c *gin.Context, fn invitationTransition, action string) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	teamID, ok := pathID(c, "id")
	if !ok {
		return
	}
	invitationID, ok := pathID(c, "invitationId")
	if !ok {
		return
	}

	inv, err := fn(c.Request.Context(), user, teamID, invitationID)
	if err != nil {
		respondError(c, err, action)
		return
	}

	c.JSON(http.StatusOK, dto.ToInvitationResponse(inv))
}

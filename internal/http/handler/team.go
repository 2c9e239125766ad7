package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wardline.app/api/internal/http/dto"
	"wardline.app/api/internal/service"
)

type TeamHandler struct {
	teamService service.TeamService
}

func NewTeamHandler(teamService service.TeamService) *TeamHandler {
	return &TeamHandler{teamService: teamService}
}

func (h *TeamHandler) Create(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.TeamNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: name is required"})
		return
	}

	team, err := h.teamService.Create(c.Request.Context(), user, req.Name)
	if err != nil {
		respondError(c, err, "create team")
		return
	}

	count := 1
	resp := dto.ToTeamResponse(team)
	resp.MemberCount = &count
	c.JSON(http.StatusCreated, resp)
}

func (h *TeamHandler) Mine(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	team, err := h.teamService.Mine(ctx, user)
	if err != nil {
		respondError(c, err, "load team")
		return
	}
	members, err := h.teamService.ListMembers(ctx, user, team.ID)
	if err != nil {
		respondError(c, err, "load team")
		return
	}

	count := len(members)
	resp := dto.ToTeamResponse(team)
	resp.MemberCount = &count
	c.JSON(http.StatusOK, resp)
}

func (h *TeamHandler) ListMembers(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	teamID, ok := pathID(c, "id")
	if !ok {
		return
	}

	members, err := h.teamService.ListMembers(c.Request.Context(), user, teamID)
	if err != nil {
		respondError(c, err, "list members")
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": dto.ToUserResponses(members)})
}

func (h *TeamHandler) Update(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	teamID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.TeamNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: name is required"})
		return
	}

	team, err := h.teamService.Update(c.Request.Context(), user, teamID, req.Name)
	if err != nil {
		respondError(c, err, "update team")
		return
	}

	c.JSON(http.StatusOK, dto.ToTeamResponse(team))
}

func (h *TeamHandler) Delete(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	teamID, ok := pathID(c, "id")
	if !ok {
		return
	}

	team, err := h.teamService.Delete(c.Request.Context(), user, teamID)
	if err != nil {
		respondError(c, err, "delete team")
		return
	}

	c.JSON(http.StatusOK, dto.ToTeamResponse(team))
}

func (h *TeamHandler) Restore(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	teamID, ok := pathID(c, "id")
	if !ok {
		return
	}

	team, err := h.teamService.Restore(c.Request.Context(), user, teamID)
	if err != nil {
		respondError(c, err, "restore team")
		return
	}

	c.JSON(http.StatusOK, dto.ToTeamResponse(team))
}

func (h *TeamHandler) UpdateMemberRole(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	teamID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	var req dto.UpdateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: role is required"})
		return
	}

	member, err := h.teamService.UpdateMemberRole(c.Request.Context(), user, teamID, userID, req.Role)
	if err != nil {
		respondError(c, err, "update member role")
		return
	}

	c.JSON(http.StatusOK, dto.ToUserResponse(member))
}

func (h *TeamHandler) RemoveMember(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	teamID, ok := pathID(c, "id")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}

	if err := h.teamService.RemoveMember(c.Request.Context(), user, teamID, userID); err != nil {
		respondError(c, err, "remove member")
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "member removed"})
}

func (h *TeamHandler) TransferOwnership(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	teamID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req dto.TransferOwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: user_id is required"})
		return
	}

	if err := h.teamService.TransferOwnership(c.Request.Context(), user, teamID, req.UserID); err != nil {
		respondError(c, err, "transfer ownership")
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "ownership transferred"})
}

func (h *TeamHandler) Leave(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.teamService.Leave(c.Request.Context(), user); err != nil {
		respondError(c, err, "leave team")
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "left team"})
}

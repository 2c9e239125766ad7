package router

import (
	"github.com/gin-gonic/gin"

	"wardline.app/api/internal/http/handler"
)

func TeamRouter(rg *gin.RouterGroup, h *handler.TeamHandler, inv *handler.InvitationHandler, g guards) {
	rg.Use(g.auth)

	rg.POST("", g.verified, h.Create)
	rg.GET("/me", h.Mine)
	rg.POST("/leave", h.Leave)

	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
	rg.POST("/:id/restore", h.Restore)
	rg.POST("/:id/transfer-ownership", h.TransferOwnership)

	rg.GET("/:id/members", h.ListMembers)
	rg.PUT("/:id/members/:userId/role", h.UpdateMemberRole)
	rg.DELETE("/:id/members/:userId", h.RemoveMember)

	rg.GET("/:id/invitations", inv.List)
	rg.POST("/:id/invitations", g.verified, inv.Create)
	rg.POST("/:id/invitations/:invitationId/cancel", inv.Cancel)
	rg.POST("/:id/invitations/:invitationId/resend", inv.Resend)
}

package router

import (
	"github.com/gin-gonic/gin"

	"wardline.app/api/internal/http/handler"
)

// InvitationRouter sets up the token routes. Lookup and register-and-accept are
// public and rate limited; accepting into an existing account needs a session.
func InvitationRouter(rg *gin.RouterGroup, h *handler.InvitationHandler, g guards) {
	rg.GET("/:token", g.rateLimit, h.Lookup)
	rg.POST("/:token/register", g.rateLimit, h.AcceptAndRegister)
	rg.POST("/:token/accept", g.auth, h.Accept)
}

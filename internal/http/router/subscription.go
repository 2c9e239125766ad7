package router

import (
	"github.com/gin-gonic/gin"

	"wardline.app/api/internal/http/handler"
)

func SubscriptionRouter(rg *gin.RouterGroup, h *handler.SubscriptionHandler, g guards) {
	rg.Use(g.auth)

	rg.GET("/status", h.Status)
	rg.POST("/checkout", g.verified, h.Checkout)
	rg.POST("/portal", h.Portal)
	rg.POST("/downgrade", h.Downgrade)
}

package router

import (
	"github.com/gin-gonic/gin"

	"wardline.app/api/internal/http/handler"
)

func PatientRouter(rg *gin.RouterGroup, h *handler.PatientHandler, g guards) {
	rg.Use(g.auth)

	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.DELETE("/:id", h.Delete)
}

package handlers

import (
	"net/http"

	"github.com/geocoder89/bienesraices/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// AccountHome is the landing page after login. Listing management lives elsewhere.
func AccountHome(ctx *gin.Context) {
	render(ctx, http.StatusOK, viewAccountHome, gin.H{
		"pagina": "Mis Propiedades",
		"nombre": middlewares.UserNameFromContext(ctx),
	})
}

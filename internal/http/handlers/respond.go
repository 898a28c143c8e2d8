package handlers

import (
	"net/http"

	"github.com/geocoder89/bienesraices/internal/forms"
	"github.com/geocoder89/bienesraices/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

// view template names
const (
	viewLogin          = "login.tmpl"
	viewRegister       = "registro.tmpl"
	viewForgotPassword = "olvide-password.tmpl"
	viewResetPassword  = "reset-password.tmpl"
	viewMessage        = "mensaje.tmpl"
	viewError          = "error.tmpl"
	viewAccountHome    = "mis-propiedades.tmpl"
)

const msgInternal = "Algo salió mal, intenta de nuevo más tarde"

func requestIDFrom(ctx *gin.Context) string {
	if s := ctx.GetString(middlewares.CtxRequestID); s != "" {
		return s
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

// render adds the values every page needs and writes the template.
func render(ctx *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	data["csrfToken"] = middlewares.CSRFToken(ctx)

	ctx.HTML(status, name, data)
}

func renderForm(ctx *gin.Context, status int, name, pagina string, errs forms.Errors, usuario gin.H) {
	render(ctx, status, name, gin.H{
		"pagina":  pagina,
		"errores": errs,
		"usuario": usuario,
	})
}

func renderMessage(ctx *gin.Context, status int, pagina, mensaje string, isError bool) {
	render(ctx, status, viewMessage, gin.H{
		"pagina":  pagina,
		"mensaje": mensaje,
		"error":   isError,
	})
}

func RenderError(ctx *gin.Context, status int, message string) {
	render(ctx, status, viewError, gin.H{
		"pagina":    http.StatusText(status),
		"mensaje":   message,
		"error":     true,
		"requestId": requestIDFrom(ctx),
	})
}

func RenderInternal(ctx *gin.Context) {
	RenderError(ctx, http.StatusInternalServerError, msgInternal)
}

// RenderForbidden is the CSRF rejection page.
func RenderForbidden(ctx *gin.Context, _ error) {
	RenderError(ctx, http.StatusForbidden, "La sesión del formulario expiró, recarga la página e intenta de nuevo")
}

func RenderNotFound(ctx *gin.Context) {
	RenderError(ctx, http.StatusNotFound, "La página que buscas no existe")
}

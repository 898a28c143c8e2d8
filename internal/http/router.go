package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/geocoder89/bienesraices/internal/config"
	"github.com/geocoder89/bienesraices/internal/http/handlers"
	"github.com/geocoder89/bienesraices/internal/http/middlewares"
	"github.com/geocoder89/bienesraices/internal/http/views"
	"github.com/geocoder89/bienesraices/internal/notifications"
	"github.com/geocoder89/bienesraices/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const (
	serviceName  = "bienesraices-api"
	maxFormBytes = 64 << 10
)

type Deps struct {
	Accounts handlers.AccountLifecycle
	Users    handlers.UserReader
	Notifier notifications.Notifier
	Sessions SessionManager

	// optional
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Checks   []handlers.Check
}

type SessionManager interface {
	handlers.SessionIssuer
	middlewares.SessionVerifier
}

func NewRouter(log *slog.Logger, cfg config.Config, deps Deps) (*gin.Engine, error) {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	tmpl, err := views.Templates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	r.SetHTMLTemplate(tmpl)

	public, err := views.Public()
	if err != nil {
		return nil, fmt.Errorf("public assets: %w", err)
	}

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	// health + metrics
	h := handlers.NewHealthHandler(deps.Checks...)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	r.StaticFS("/public", http.FS(public))

	r.NoRoute(handlers.RenderNotFound)

	// pages

	csrf := middlewares.CSRF(middlewares.CSRFConfig{
		Secret:  []byte(cfg.CSRFSecret),
		Secure:  cfg.Env == "prod",
		OnError: handlers.RenderForbidden,
	})

	pages := r.Group("/", middlewares.MaxBodyBytes(maxFormBytes), csrf)

	pages.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, middlewares.LoginPath)
	})

	authHandler := handlers.NewAuthHandler(log, deps.Accounts, deps.Users, deps.Notifier, deps.Sessions, cfg)

	authGroup := pages.Group("/auth")

	// form posts are throttled per client ip
	var limit gin.HandlerFunc = func(c *gin.Context) { c.Next() }
	if cfg.RateLimitRPS > 0 {
		limit = middlewares.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).RateLimiterMiddleware(middlewares.KeyByIP)
	}

	authGroup.GET("/login", authHandler.LoginForm)
	authGroup.POST("/login", limit, authHandler.Login)
	authGroup.POST("/cerrar-sesion", authHandler.Logout)

	authGroup.GET("/registro", authHandler.RegisterForm)
	authGroup.POST("/registro", limit, authHandler.Register)
	authGroup.GET("/confirmar/:token", authHandler.Confirm)

	authGroup.GET("/olvide-password", authHandler.ForgotPasswordForm)
	authGroup.POST("/olvide-password", limit, authHandler.RequestPasswordReset)
	authGroup.GET("/olvide-password/:token", authHandler.ResetPasswordForm)
	authGroup.POST("/olvide-password/:token", limit, authHandler.ResetPassword)

	session := middlewares.NewSessionMiddleware(deps.Sessions)
	pages.GET("/mis-propiedades", session.RequireSession(), handlers.AccountHome)

	return r, nil
}

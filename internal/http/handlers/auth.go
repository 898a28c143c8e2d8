package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/bienesraices/internal/config"
	"github.com/geocoder89/bienesraices/internal/domain/user"
	"github.com/geocoder89/bienesraices/internal/forms"
	"github.com/geocoder89/bienesraices/internal/http/middlewares"
	"github.com/geocoder89/bienesraices/internal/notifications"
	"github.com/geocoder89/bienesraices/internal/security"
	"github.com/geocoder89/bienesraices/internal/tokens"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type AccountLifecycle interface {
	Register(ctx context.Context, name, email, password string) (user.User, error)
	Issue(ctx context.Context, u *user.User) error
	Consume(ctx context.Context, token string) (user.User, error)
	ConfirmAccount(ctx context.Context, u user.User) error
	ResetPassword(ctx context.Context, u user.User, password string) error
}

type UserReader interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
}

type SessionIssuer interface {
	GenerateSessionToken(userID, name string) (string, error)
	TTL() time.Duration
}

const (
	storeTimeout = 3 * time.Second
	mailTimeout  = 10 * time.Second
)

// page titles
const (
	pageLogin          = "Iniciar Sesión"
	pageRegister       = "Crear Cuenta"
	pageForgotPassword = "Recupera tu Acceso a Bienes Raices"
	pageAccountCreated = "Cuenta Creada Correctamente"
	pageConfirmed      = "Cuenta Confirmada"
	pageConfirmFailed  = "Error al confirmar tu cuenta"
	pageResetPassword  = "Reestablece tu Password"
	pagePasswordSaved  = "Password Reestablecido"
)

const (
	msgUserExists        = "El Usuario ya está Registrado"
	msgUserNotFound      = "El Usuario no existe"
	msgNotConfirmed      = "Tu Cuenta no ha sido Confirmada"
	msgWrongPassword     = "El Password es Incorrecto"
	msgPasswordTooLong   = "El Password es demasiado largo"
	msgAccountCreated    = "Hemos Enviado un Email de Confirmación, presiona en el enlace"
	msgConfirmed         = "La cuenta se confirmó correctamente"
	msgConfirmFailed     = "Hubo un error al confirmar tu cuenta, intenta de nuevo"
	msgResetSent         = "Hemos enviado un email con las instrucciones"
	msgResetTokenInvalid = "Hubo un error al validar tu información, intenta de nuevo"
	msgPasswordSaved     = "El Password se guardó correctamente"
)

const accountHomePath = "/mis-propiedades"

type AuthHandler struct {
	log           *slog.Logger
	accounts      AccountLifecycle
	users         UserReader
	notifier      notifications.Notifier
	sessions      SessionIssuer
	secureCookies bool
}

func NewAuthHandler(log *slog.Logger, accounts AccountLifecycle, users UserReader, notifier notifications.Notifier, sessions SessionIssuer, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		log:           log,
		accounts:      accounts,
		users:         users,
		notifier:      notifier,
		sessions:      sessions,
		secureCookies: cfg.Env == "prod",
	}
}

func formValues(ctx *gin.Context, fields ...string) forms.Values {
	v := make(forms.Values, len(fields))
	for _, f := range fields {
		v[f] = ctx.PostForm(f)
	}
	return v
}

func (h *AuthHandler) LoginForm(ctx *gin.Context) {
	renderForm(ctx, http.StatusOK, viewLogin, pageLogin, nil, nil)
}

func (h *AuthHandler) RegisterForm(ctx *gin.Context) {
	renderForm(ctx, http.StatusOK, viewRegister, pageRegister, nil, nil)
}

func (h *AuthHandler) ForgotPasswordForm(ctx *gin.Context) {
	renderForm(ctx, http.StatusOK, viewForgotPassword, pageForgotPassword, nil, nil)
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	values := formValues(ctx, forms.FieldName, forms.FieldEmail, forms.FieldPassword, forms.FieldRepeatPassword)

	// passwords are never echoed back
	echo := gin.H{
		"nombre": values.Get(forms.FieldName),
		"email":  values.Get(forms.FieldEmail),
	}

	if errs := forms.Validate(values, forms.RegisterRules()); !errs.OK() {
		renderForm(ctx, http.StatusBadRequest, viewRegister, pageRegister, errs, echo)
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.accounts.Register(cctx, values.Get(forms.FieldName), values.Get(forms.FieldEmail), values.Get(forms.FieldPassword))
	if err != nil {
		switch {
		case errors.Is(err, user.ErrEmailAlreadyUsed):
			renderForm(ctx, http.StatusBadRequest, viewRegister, pageRegister, formError(forms.FieldEmail, msgUserExists), echo)
		case errors.Is(err, bcrypt.ErrPasswordTooLong):
			renderForm(ctx, http.StatusBadRequest, viewRegister, pageRegister, formError(forms.FieldPassword, msgPasswordTooLong), echo)
		default:
			h.internal(ctx, "register", err)
		}
		return
	}

	h.send(ctx, notifications.KindConfirmation, u)

	renderMessage(ctx, http.StatusOK, pageAccountCreated, msgAccountCreated, false)
}

func (h *AuthHandler) Confirm(ctx *gin.Context) {
	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.accounts.Consume(cctx, ctx.Param("token"))
	if err == nil {
		err = h.accounts.ConfirmAccount(cctx, u)
	}

	if err != nil {
		if errors.Is(err, tokens.ErrTokenNotFound) {
			renderMessage(ctx, http.StatusNotFound, pageConfirmFailed, msgConfirmFailed, true)
			return
		}
		h.internal(ctx, "confirm account", err)
		return
	}

	renderMessage(ctx, http.StatusOK, pageConfirmed, msgConfirmed, false)
}

func (h *AuthHandler) RequestPasswordReset(ctx *gin.Context) {
	values := formValues(ctx, forms.FieldEmail)
	echo := gin.H{"email": values.Get(forms.FieldEmail)}

	if errs := forms.Validate(values, forms.ResetRequestRules()); !errs.OK() {
		renderForm(ctx, http.StatusBadRequest, viewForgotPassword, pageForgotPassword, errs, echo)
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.users.GetByEmail(cctx, values.Get(forms.FieldEmail))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			renderForm(ctx, http.StatusBadRequest, viewForgotPassword, pageForgotPassword, formError(forms.FieldEmail, msgUserNotFound), echo)
			return
		}
		h.internal(ctx, "lookup user", err)
		return
	}

	if err := h.accounts.Issue(cctx, &u); err != nil {
		h.internal(ctx, "issue reset token", err)
		return
	}

	h.send(ctx, notifications.KindPasswordReset, u)

	renderMessage(ctx, http.StatusOK, pageResetPassword, msgResetSent, false)
}

func (h *AuthHandler) ResetPasswordForm(ctx *gin.Context) {
	token := ctx.Param("token")

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	if _, err := h.accounts.Consume(cctx, token); err != nil {
		if errors.Is(err, tokens.ErrTokenNotFound) {
			renderMessage(ctx, http.StatusNotFound, pageResetPassword, msgResetTokenInvalid, true)
			return
		}
		h.internal(ctx, "validate reset token", err)
		return
	}

	render(ctx, http.StatusOK, viewResetPassword, gin.H{
		"pagina": pageResetPassword,
		"token":  token,
	})
}

func (h *AuthHandler) ResetPassword(ctx *gin.Context) {
	token := ctx.Param("token")
	values := formValues(ctx, forms.FieldPassword)

	if errs := forms.Validate(values, forms.NewPasswordRules()); !errs.OK() {
		render(ctx, http.StatusBadRequest, viewResetPassword, gin.H{
			"pagina":  pageResetPassword,
			"errores": errs,
			"token":   token,
		})
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.accounts.Consume(cctx, token)
	if err == nil {
		err = h.accounts.ResetPassword(cctx, u, values.Get(forms.FieldPassword))
	}

	if err != nil {
		switch {
		case errors.Is(err, tokens.ErrTokenNotFound):
			renderMessage(ctx, http.StatusNotFound, pageResetPassword, msgResetTokenInvalid, true)
		case errors.Is(err, bcrypt.ErrPasswordTooLong):
			render(ctx, http.StatusBadRequest, viewResetPassword, gin.H{
				"pagina":  pageResetPassword,
				"errores": formError(forms.FieldPassword, msgPasswordTooLong),
				"token":   token,
			})
		default:
			h.internal(ctx, "reset password", err)
		}
		return
	}

	renderMessage(ctx, http.StatusOK, pagePasswordSaved, msgPasswordSaved, false)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	values := formValues(ctx, forms.FieldEmail, forms.FieldPassword)
	echo := gin.H{"email": values.Get(forms.FieldEmail)}

	if errs := forms.Validate(values, forms.LoginRules()); !errs.OK() {
		renderForm(ctx, http.StatusBadRequest, viewLogin, pageLogin, errs, echo)
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), storeTimeout)
	defer cancel()

	u, err := h.users.GetByEmail(cctx, values.Get(forms.FieldEmail))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			renderForm(ctx, http.StatusBadRequest, viewLogin, pageLogin, formError(forms.FieldEmail, msgUserNotFound), echo)
			return
		}
		h.internal(ctx, "lookup user", err)
		return
	}

	if !u.Confirmed {
		renderForm(ctx, http.StatusBadRequest, viewLogin, pageLogin, formError(forms.FieldEmail, msgNotConfirmed), echo)
		return
	}

	if err := security.CheckPassword(u.PasswordHash, values.Get(forms.FieldPassword)); err != nil {
		renderForm(ctx, http.StatusBadRequest, viewLogin, pageLogin, formError(forms.FieldPassword, msgWrongPassword), echo)
		return
	}

	token, err := h.sessions.GenerateSessionToken(u.ID, u.Name)
	if err != nil {
		h.internal(ctx, "sign session", err)
		return
	}

	middlewares.SetSessionCookie(ctx, token, int(h.sessions.TTL().Seconds()), h.secureCookies)
	ctx.Redirect(http.StatusFound, accountHomePath)
}

func (h *AuthHandler) Logout(ctx *gin.Context) {
	middlewares.ClearSessionCookie(ctx)
	ctx.Redirect(http.StatusFound, middlewares.LoginPath)
}

// send runs after the state change is persisted. A failed email is logged,
// never shown to the visitor.
func (h *AuthHandler) send(ctx *gin.Context, kind notifications.Kind, u user.User) {
	if u.Token == nil {
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), mailTimeout)
	defer cancel()

	err := notifications.Dispatch(cctx, h.notifier, kind, notifications.AccountEmail{
		Email: u.Email,
		Name:  u.Name,
		Token: *u.Token,
	})
	if err != nil {
		_ = ctx.Error(err)
		h.log.ErrorContext(ctx.Request.Context(), "account email failed",
			"kind", kind,
			"user_id", u.ID,
			"err", err,
		)
	}
}

func (h *AuthHandler) internal(ctx *gin.Context, op string, err error) {
	_ = ctx.Error(err)
	h.log.ErrorContext(ctx.Request.Context(), op+" failed", "err", err)
	RenderInternal(ctx)
}

func formError(field, message string) forms.Errors {
	return forms.Errors{{Field: field, Message: message}}
}

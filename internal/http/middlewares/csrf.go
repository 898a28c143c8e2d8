package middlewares

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CSRFCookieName = "_csrf"
	CSRFFormField  = "_csrf"
	CSRFHeaderName = "X-CSRF-Token"

	csrfNonceLength = 32
)

var (
	ErrCSRFTokenMissing  = errors.New("csrf token missing")
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

type CSRFConfig struct {
	Secret []byte
	Secure bool
	// OnError renders the rejection. The default writes a bare 403.
	OnError func(*gin.Context, error)
}

// CSRF is a double-submit cookie check. The cookie carries a random nonce and
// forms carry HMAC(secret, nonce), so a planted cookie is useless without the
// server secret.
func CSRF(cfg CSRFConfig) gin.HandlerFunc {
	if cfg.OnError == nil {
		cfg.OnError = func(c *gin.Context, _ error) {
			c.AbortWithStatus(http.StatusForbidden)
		}
	}

	return func(c *gin.Context) {
		nonce, err := c.Cookie(CSRFCookieName)
		if err != nil || !validNonce(nonce) {
			nonce, err = newNonce()
			if err != nil {
				_ = c.Error(err)
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}

			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(CSRFCookieName, nonce, 0, "/", "", cfg.Secure, true)
		}

		expected := signNonce(cfg.Secret, nonce)
		c.Set(CtxCSRFToken, expected)

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			c.Next()
			return
		}

		received := c.PostForm(CSRFFormField)
		if received == "" {
			received = c.GetHeader(CSRFHeaderName)
		}

		if received == "" {
			cfg.OnError(c, ErrCSRFTokenMissing)
			c.Abort()
			return
		}

		if !hmac.Equal([]byte(received), []byte(expected)) {
			cfg.OnError(c, ErrCSRFTokenMismatch)
			c.Abort()
			return
		}

		c.Next()
	}
}

// CSRFToken is the value forms must echo back in the _csrf field.
func CSRFToken(c *gin.Context) string {
	return c.GetString(CtxCSRFToken)
}

func newNonce() (string, error) {
	b := make([]byte, csrfNonceLength)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func validNonce(s string) bool {
	b, err := base64.RawURLEncoding.DecodeString(s)
	return err == nil && len(b) == csrfNonceLength
}

func signNonce(secret []byte, nonce string) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(nonce))
	return hex.EncodeToString(mac.Sum(nil))
}

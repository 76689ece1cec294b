package auth

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// CookieConfig scopes the refresh cookie to a deployment.
type CookieConfig struct {
	Name       string
	Domain     string
	Production bool
	MaxAge     time.Duration
}

// CookieCodec moves refresh tokens in and out of the HTTP cookie jar.
// Access tokens never travel in a cookie.
type CookieCodec struct {
	cfg CookieConfig
}

// NewCookieCodec builds a codec, defaulting the name to refreshToken.
func NewCookieCodec(cfg CookieConfig) *CookieCodec {
	if cfg.Name == "" {
		cfg.Name = "refreshToken"
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 7 * 24 * time.Hour
	}
	return &CookieCodec{cfg: cfg}
}

// Name returns the cookie name.
func (cc *CookieCodec) Name() string {
	return cc.cfg.Name
}

func (cc *CookieCodec) base() *fiber.Cookie {
	sameSite := fiber.CookieSameSiteLaxMode
	if cc.cfg.Production {
		sameSite = fiber.CookieSameSiteNoneMode
	}
	return &fiber.Cookie{
		Name:     cc.cfg.Name,
		Path:     "/",
		Domain:   cc.cfg.Domain,
		HTTPOnly: true,
		Secure:   cc.cfg.Production,
		SameSite: sameSite,
	}
}

// SetRefreshCookie writes token with the configured max age.
func (cc *CookieCodec) SetRefreshCookie(c *fiber.Ctx, token string) {
	cookie := cc.base()
	cookie.Value = token
	cookie.MaxAge = int(cc.cfg.MaxAge / time.Second)
	cookie.Expires = time.Now().Add(cc.cfg.MaxAge)
	c.Cookie(cookie)
}

// ReadRefreshCookie returns the presented refresh token, or "" when absent.
func (cc *CookieCodec) ReadRefreshCookie(c *fiber.Ctx) string {
	return c.Cookies(cc.cfg.Name)
}

// ClearRefreshCookie instructs the client to drop the cookie immediately.
func (cc *CookieCodec) ClearRefreshCookie(c *fiber.Ctx) {
	cookie := cc.base()
	cookie.Value = ""
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	c.Cookie(cookie)
}

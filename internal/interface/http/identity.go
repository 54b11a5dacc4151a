package http

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yanqian/docchat/internal/infra/config"
)

const (
	sessionCookie       = "docchat_session"
	sessionCookieMaxAge = 30 * 24 * 60 * 60
)

// identityFunc derives the session key for a request.
type identityFunc func(c *gin.Context) string

func newIdentityFunc(mode string) identityFunc {
	switch mode {
	case config.IdentityClientIP:
		return func(c *gin.Context) string { return c.ClientIP() }
	case config.IdentityCookie:
		return cookieIdentity
	default:
		return remoteAddrIdentity
	}
}

// remoteAddrIdentity keys sessions by the TCP peer host. Clients behind one NAT or proxy share a session.
func remoteAddrIdentity(c *gin.Context) string {
	host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}

// cookieIdentity keys sessions by a random id kept in a cookie, issuing one when absent or malformed.
func cookieIdentity(c *gin.Context) string {
	if v, err := c.Cookie(sessionCookie); err == nil {
		if id, err := uuid.Parse(v); err == nil {
			return id.String()
		}
	}
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(sessionCookie, id, sessionCookieMaxAge, "/", "", c.Request.TLS != nil, true)
	return id
}

package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/console/internal/backend"
	obscontext "github.com/smallbiznis/console/internal/observability/context"
	"github.com/smallbiznis/console/internal/session"
)

const contextSessionKey = "console_session"

// SessionMiddleware attaches the caller's console session, opening a new one
// when the cookie is missing or its session has expired.
func (s *Server) SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, _ := c.Cookie(s.cfg.Session.CookieName)
		sess, created := s.sessions.Acquire(sid)
		if created {
			s.setSessionCookie(c, sess.ID, int(s.sessions.TTL().Seconds()))
		}

		c.Set(contextSessionKey, sess)
		ctx := obscontext.WithSessionID(c.Request.Context(), sess.ID)
		if token := bearerToken(c); token != "" {
			ctx = backend.WithBearerToken(ctx, token)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (s *Server) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cfg.Session.CookieName, value, maxAge, "/", "", s.cfg.Session.CookieSecure, true)
}

func currentSession(c *gin.Context) *session.Session {
	value, ok := c.Get(contextSessionKey)
	if !ok {
		return nil
	}
	sess, _ := value.(*session.Session)
	return sess
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// authenticated reports whether backend calls of this request carry a token.
func (s *Server) authenticated(c *gin.Context) bool {
	return bearerToken(c) != "" || strings.TrimSpace(s.cfg.Backend.Token) != ""
}

// markView names the page a request renders for logs and traces.
func markView(view session.View) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("view", string(view))
		c.Next()
	}
}

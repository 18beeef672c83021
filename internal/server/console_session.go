package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ierr "github.com/smallbiznis/console/internal/errors"
	"github.com/smallbiznis/console/internal/session"
)

// Refresh re-runs every read of a view on explicit user request and
// renders that view's page. It is the only retry path after a failed load.
// Page parameters are taken from the query string, for example
// ?view=module-not-available&module_id=crm.
func (s *Server) Refresh(c *gin.Context) {
	view := session.ViewAdminPlans
	if raw := c.Query("view"); raw != "" {
		parsed, ok := parseView(raw)
		if !ok {
			AbortWithError(c, ierr.NewFieldError("view", "oneof", "Unknown view"))
			return
		}
		view = parsed
	}
	c.Set("view", string(view))

	switch view {
	case session.ViewMyModules:
		s.MyModules(c)
	case session.ViewChoosePlan:
		s.ChoosePlan(c)
	case session.ViewModuleNotAvailable:
		s.ModuleNotAvailable(c)
	case session.ViewInvoices:
		s.Invoices(c)
	default:
		s.AdminCatalog(c)
	}
}

func (s *Server) DismissNotification(c *gin.Context) {
	sess := currentSession(c)
	view, ok := parseView(c.Param("view"))
	if !ok {
		AbortWithError(c, ierr.NewFieldError("view", "oneof", "Unknown view"))
		return
	}
	sess.Notifications.Clear(view)
	c.Status(http.StatusNoContent)
}

func (s *Server) EndSession(c *gin.Context) {
	sess := currentSession(c)
	s.sessions.Teardown(sess.ID)
	s.setSessionCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

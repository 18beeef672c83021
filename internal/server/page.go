package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	obsmetrics "github.com/smallbiznis/console/internal/observability/metrics"
	"github.com/smallbiznis/console/internal/session"
)

// pageResponse is the view state of one console page. A failed read still
// renders the page, with the failure carried in Notifications.
type pageResponse struct {
	Data          any                    `json:"data"`
	Notifications []session.Notification `json:"notifications"`
}

func (s *Server) renderPage(c *gin.Context, sess *session.Session, view session.View, data any, loadErr error) {
	outcome := obsmetrics.OutcomeSuccess
	if loadErr != nil {
		outcome = obsmetrics.OutcomeFetch
	}
	s.httpMetrics.RecordPageLoad(c.Request.Context(), string(view), outcome)

	c.JSON(http.StatusOK, pageResponse{
		Data:          data,
		Notifications: sess.Notifications.For(view),
	})
}

// ensureCatalog loads the catalog once per session for pages that only
// need it as context, such as editor forms.
func (s *Server) ensureCatalog(c *gin.Context, sess *session.Session, view session.View) error {
	if sess.Store.Loaded() {
		return nil
	}
	_, err := sess.LoadCatalog(c.Request.Context(), view)
	return err
}

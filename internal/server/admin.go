package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/console/internal/catalog/domain"
	"github.com/smallbiznis/console/internal/editor"
	"github.com/smallbiznis/console/internal/projection"
	"github.com/smallbiznis/console/internal/session"
)

type adminCatalogView struct {
	Plans   []projection.PlanCard   `json:"plans"`
	Modules []projection.ModuleCard `json:"modules"`
	Counts  projection.CountsView   `json:"counts"`
}

func (s *Server) AdminCatalog(c *gin.Context) {
	sess := currentSession(c)
	snap, err := sess.LoadCatalog(c.Request.Context(), session.ViewAdminPlans)
	s.renderPage(c, sess, session.ViewAdminPlans, s.adminCatalog(snap), err)
}

func (s *Server) adminCatalog(snap catalogdomain.Snapshot) adminCatalogView {
	opts := displayOptions(s.display)
	opts.FeaturedIndex = -1
	return adminCatalogView{
		Plans:   projection.PlanCards(snap, opts),
		Modules: projection.ModuleCards(snap),
		Counts:  projection.Counts(snap),
	}
}

func (s *Server) OpenCreateForm(kind catalogdomain.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		loadErr := s.ensureCatalog(c, sess, session.ViewAdminPlans)

		form, err := sess.Editor.OpenCreate(kind)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		s.renderPage(c, sess, session.ViewAdminPlans, form, loadErr)
	}
}

func (s *Server) OpenEditForm(kind catalogdomain.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		loadErr := s.ensureCatalog(c, sess, session.ViewAdminPlans)

		form, err := sess.Editor.OpenEdit(kind, pathID(c, "id"))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		s.renderPage(c, sess, session.ViewAdminPlans, form, loadErr)
	}
}

// SaveForm submits a plan or module form. The request body is the form
// itself; the mode and original identifier come from the route.
func (s *Server) SaveForm(kind catalogdomain.Kind, mode editor.Mode) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		form, err := bindForm(c, kind, mode)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}

		result, err := sess.Editor.Save(c.Request.Context(), form)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		status := http.StatusOK
		if mode == editor.ModeCreate {
			status = http.StatusCreated
		}
		c.JSON(status, gin.H{"data": result})
	}
}

func bindForm(c *gin.Context, kind catalogdomain.Kind, mode editor.Mode) (editor.Form, error) {
	originalID := ""
	if mode == editor.ModeEdit {
		originalID = pathID(c, "id")
	}

	switch kind {
	case catalogdomain.KindPlan:
		var plan editor.PlanForm
		if err := c.ShouldBindJSON(&plan); err != nil {
			return editor.Form{}, err
		}
		plan.Mode, plan.OriginalID = mode, originalID
		return editor.Form{Kind: kind, Plan: &plan}, nil
	default:
		var module editor.ModuleForm
		if err := c.ShouldBindJSON(&module); err != nil {
			return editor.Form{}, err
		}
		module.Mode, module.OriginalID = mode, originalID
		return editor.Form{Kind: kind, Module: &module}, nil
	}
}

func (s *Server) DeleteRecord(kind catalogdomain.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		if err := s.ensureCatalog(c, sess, session.ViewAdminPlans); err != nil {
			AbortWithError(c, err)
			return
		}
		if err := sess.Editor.Delete(c.Request.Context(), kind, pathID(c, "id")); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (s *Server) SuggestIdentifier(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"identifier": editor.SuggestIdentifier(name)}})
}

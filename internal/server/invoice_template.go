package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	templatedomain "github.com/smallbiznis/invoicer/internal/invoicetemplate/domain"
)

type templateRequest struct {
	Name string         `json:"name" binding:"required"`
	Data map[string]any `json:"data"`
}

func (s *Server) ListTemplates(c *gin.Context) {
	templates, err := s.templateSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": templates})
}

func (s *Server) GetTemplate(c *gin.Context) {
	tmpl, err := s.templateSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tmpl})
}

func (s *Server) CreateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	tmpl, err := s.templateSvc.Create(c.Request.Context(), templatedomain.TemplateInput{
		Name: req.Name,
		Data: req.Data,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": tmpl})
}

func (s *Server) UpdateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	tmpl, err := s.templateSvc.Update(c.Request.Context(), c.Param("id"), templatedomain.TemplateInput{
		Name: req.Name,
		Data: req.Data,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tmpl})
}

func (s *Server) DeleteTemplate(c *gin.Context) {
	if err := s.templateSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

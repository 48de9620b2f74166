package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	reminderdomain "github.com/smallbiznis/invoicer/internal/reminder/domain"
	"github.com/smallbiznis/invoicer/internal/reminder/sweep"
)

type reminderRuleRequest struct {
	InvoiceID     *string `json:"invoiceId"`
	ClientID      *string `json:"clientId"`
	Enabled       *bool   `json:"enabled"`
	DaysBeforeDue *int    `json:"daysBeforeDue"`
	DaysAfterDue  *int    `json:"daysAfterDue"`
}

func (r reminderRuleRequest) input() reminderdomain.RuleInput {
	return reminderdomain.RuleInput{
		InvoiceID:     r.InvoiceID,
		ClientID:      r.ClientID,
		Enabled:       r.Enabled,
		DaysBeforeDue: r.DaysBeforeDue,
		DaysAfterDue:  r.DaysAfterDue,
	}
}

type runRemindersRequest struct {
	DryRun bool `json:"dryRun"`
}

type runRemindersResponse struct {
	OK        bool            `json:"ok"`
	DryRun    bool            `json:"dryRun"`
	Processed int             `json:"processed"`
	Results   []sweep.Outcome `json:"results"`
}

func (s *Server) ListReminderRules(c *gin.Context) {
	rules, err := s.reminderSvc.ListRules(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rules})
}

func (s *Server) CreateReminderRule(c *gin.Context) {
	var req reminderRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rule, err := s.reminderSvc.CreateRule(c.Request.Context(), req.input())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": rule})
}

func (s *Server) UpdateReminderRule(c *gin.Context) {
	var req reminderRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rule, err := s.reminderSvc.UpdateRule(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rule})
}

func (s *Server) DeleteReminderRule(c *gin.Context) {
	if err := s.reminderSvc.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ListReminderLogs(c *gin.Context) {
	logs, err := s.reminderSvc.ListLogs(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": logs})
}

// RunReminders triggers one sweep. dryRun may come from the JSON body or the query string.
func (s *Server) RunReminders(c *gin.Context) {
	var req runRemindersRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	queryDryRun, err := parseOptionalBool(c.Query("dryRun"))
	if err != nil {
		AbortWithError(c, newValidationError("dryRun", "invalid_dry_run", "invalid dryRun"))
		return
	}
	if queryDryRun != nil {
		req.DryRun = *queryDryRun
	}

	result, err := s.sweeper.Run(c.Request.Context(), req.DryRun)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	results := result.Results
	if results == nil {
		results = []sweep.Outcome{}
	}
	c.JSON(http.StatusOK, runRemindersResponse{
		OK:        true,
		DryRun:    result.DryRun,
		Processed: result.Processed,
		Results:   results,
	})
}

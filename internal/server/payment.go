package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/invoicer/internal/payment/domain"
)

type recordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Method    *string         `json:"method"`
	Reference *string         `json:"reference"`
	PaidAt    string          `json:"paidAt"`
}

func (s *Server) ListPayments(c *gin.Context) {
	payments, err := s.paymentSvc.ListPayments(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payments})
}

func (s *Server) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	paidAt, err := parseOptionalTime(req.PaidAt)
	if err != nil {
		AbortWithError(c, newValidationError("paidAt", "invalid_paid_at", "invalid paidAt"))
		return
	}

	resp, err := s.paymentSvc.RecordPayment(c.Request.Context(), c.Param("id"), paymentdomain.PaymentInput{
		Amount:    req.Amount,
		Status:    strings.TrimSpace(req.Status),
		Method:    req.Method,
		Reference: req.Reference,
		PaidAt:    paidAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
)

type invoiceItemRequest struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

type invoiceRequest struct {
	ClientID   string               `json:"clientId"`
	TemplateID *string              `json:"templateId"`
	Number     *string              `json:"number"`
	Currency   string               `json:"currency"`
	IssueDate  string               `json:"issueDate"`
	DueDate    string               `json:"dueDate"`
	Notes      *string              `json:"notes"`
	Status     *string              `json:"status"`
	TaxRate    *decimal.Decimal     `json:"taxRate"`
	Items      []invoiceItemRequest `json:"items"`
}

func (r invoiceRequest) input() invoicedomain.InvoiceInput {
	items := make([]invoicedomain.ItemInput, 0, len(r.Items))
	for _, item := range r.Items {
		items = append(items, invoicedomain.ItemInput{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	return invoicedomain.InvoiceInput{
		ClientID:   r.ClientID,
		TemplateID: r.TemplateID,
		Number:     r.Number,
		Currency:   r.Currency,
		IssueDate:  r.IssueDate,
		DueDate:    r.DueDate,
		Notes:      r.Notes,
		Status:     r.Status,
		TaxRate:    r.TaxRate,
		Items:      items,
	}
}

type invoiceStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type sendEmailRequest struct {
	To      *string `json:"to"`
	Message *string `json:"message"`
}

func (s *Server) ListInvoices(c *gin.Context) {
	invoices, err := s.invoiceSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoices})
}

func (s *Server) GetInvoice(c *gin.Context) {
	invoice, err := s.invoiceSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) NextInvoiceNumber(c *gin.Context) {
	number, err := s.invoiceSvc.PeekNextNumber(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"number": number}})
}

func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoice, err := s.invoiceSvc.Create(c.Request.Context(), req.input())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invoice})
}

func (s *Server) UpdateInvoice(c *gin.Context) {
	var req invoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invoice, err := s.invoiceSvc.Update(c.Request.Context(), c.Param("id"), req.input())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) DeleteInvoice(c *gin.Context) {
	if err := s.invoiceSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) UpdateInvoiceStatus(c *gin.Context) {
	var req invoiceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, bindError(err))
		return
	}

	invoice, err := s.invoiceSvc.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) GetInvoiceBalance(c *gin.Context) {
	balance, err := s.invoiceSvc.GetBalance(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": balance})
}

func (s *Server) DownloadInvoicePDF(c *gin.Context) {
	doc, err := s.invoiceSvc.RenderPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Content)
}

func (s *Server) SendInvoiceEmail(c *gin.Context) {
	var req sendEmailRequest
	// An empty body means "send to the client's address with the default message".
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	if err := s.invoiceSvc.SendEmail(c.Request.Context(), c.Param("id"), invoicedomain.SendEmailRequest{
		To:      req.To,
		Message: req.Message,
	}); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	invoicedomain "github.com/smallbiznis/invoicer/internal/invoice/domain"
	"github.com/smallbiznis/invoicer/internal/providers/email"
	"github.com/smallbiznis/invoicer/internal/providers/pdf"
	"github.com/smallbiznis/invoicer/internal/usercontext"
	"go.uber.org/zap"
)

const pdfContentType = "application/pdf"

type documentSource struct {
	invoice *invoicedomain.Invoice
	items   []invoicedomain.InvoiceItem
	client  *invoicedomain.ClientContact
	issuer  *invoicedomain.Issuer
}

func (s *Service) RenderPDF(ctx context.Context, id string) (invoicedomain.Document, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return invoicedomain.Document{}, invoicedomain.ErrInvalidUser
	}
	invoiceID, err := parseID(id)
	if err != nil {
		return invoicedomain.Document{}, err
	}

	src, err := s.loadDocumentSource(ctx, userID, invoiceID)
	if err != nil {
		return invoicedomain.Document{}, err
	}
	return s.render(ctx, src)
}

func (s *Service) SendEmail(ctx context.Context, id string, req invoicedomain.SendEmailRequest) error {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return invoicedomain.ErrInvalidUser
	}
	invoiceID, err := parseID(id)
	if err != nil {
		return err
	}

	src, err := s.loadDocumentSource(ctx, userID, invoiceID)
	if err != nil {
		return err
	}

	recipient := ""
	if req.To != nil {
		recipient = strings.TrimSpace(*req.To)
	}
	if recipient == "" && src.client.Email != nil {
		recipient = strings.TrimSpace(*src.client.Email)
	}
	if recipient == "" {
		return invoicedomain.ErrMissingRecipient
	}
	if err := s.validate.Var(recipient, "email"); err != nil {
		return invoicedomain.ErrInvalidRecipient
	}

	if !s.mailer.Configured() {
		s.metrics.RecordInvoiceEmail(ctx, "not_configured")
		return email.ErrNotConfigured
	}

	doc, err := s.render(ctx, src)
	if err != nil {
		return err
	}

	text := fmt.Sprintf("Hello,\n\nPlease find attached invoice %s.\n\nThank you.", src.invoice.Number)
	if req.Message != nil && strings.TrimSpace(*req.Message) != "" {
		text = *req.Message
	}

	err = s.mailer.Send(ctx, email.Message{
		To:      []string{recipient},
		Subject: "Invoice " + src.invoice.Number,
		Text:    text,
		Attachments: []email.Attachment{
			{Filename: doc.Filename, ContentType: doc.ContentType, Content: doc.Content},
		},
	})
	if err != nil {
		s.metrics.RecordInvoiceEmail(ctx, "failed")
		s.log.Warn("invoice email failed",
			zap.String("invoice_id", invoiceID.String()),
			zap.Error(err),
		)
		return err
	}

	s.metrics.RecordInvoiceEmail(ctx, "sent")
	s.log.Info("invoice email sent",
		zap.String("invoice_id", invoiceID.String()),
		zap.String("number", src.invoice.Number),
	)
	return nil
}

func (s *Service) loadDocumentSource(ctx context.Context, userID, invoiceID snowflake.ID) (documentSource, error) {
	invoice, err := s.loadInvoice(ctx, s.db, userID, invoiceID)
	if err != nil {
		return documentSource{}, err
	}
	items, err := s.repo.ListItems(ctx, s.db, invoiceID)
	if err != nil {
		return documentSource{}, err
	}
	client, err := s.repo.FindClient(ctx, s.db, userID, invoice.ClientID)
	if err != nil {
		return documentSource{}, err
	}
	if client == nil {
		return documentSource{}, invoicedomain.ErrClientNotFound
	}
	issuer, err := s.repo.FindIssuer(ctx, s.db, userID)
	if err != nil {
		return documentSource{}, err
	}
	if issuer == nil {
		issuer = &invoicedomain.Issuer{}
	}
	return documentSource{invoice: invoice, items: items, client: client, issuer: issuer}, nil
}

func (s *Service) render(ctx context.Context, src documentSource) (invoicedomain.Document, error) {
	data := pdf.InvoiceData{
		Number:        src.invoice.Number,
		Status:        string(src.invoice.Status),
		Currency:      src.invoice.Currency,
		IssueDate:     src.invoice.IssueDate.Format("2006-01-02"),
		DueDate:       src.invoice.DueDate.Format("2006-01-02"),
		FromName:      src.issuer.Name,
		FromEmail:     src.issuer.Email,
		ClientName:    src.client.Name,
		ClientCompany: deref(src.client.Company),
		ClientEmail:   deref(src.client.Email),
		ClientPhone:   deref(src.client.Phone),
		ClientAddress: deref(src.client.Address),
		ClientTaxID:   deref(src.client.TaxID),
		Subtotal:      src.invoice.Subtotal.StringFixed(2),
		Tax:           src.invoice.Tax.StringFixed(2),
		Total:         src.invoice.Total.StringFixed(2),
		Notes:         deref(src.invoice.Notes),
	}
	for _, item := range src.items {
		data.Items = append(data.Items, pdf.InvoiceItem{
			Description: item.Description,
			Quantity:    item.Quantity.StringFixed(2),
			UnitPrice:   item.UnitPrice.StringFixed(2),
			Amount:      item.Amount.StringFixed(2),
		})
	}

	content, err := s.pdf.RenderInvoice(ctx, data)
	if err != nil {
		return invoicedomain.Document{}, fmt.Errorf("render invoice pdf: %w", err)
	}
	return invoicedomain.Document{
		Filename:    documentFilename(src.invoice.Number),
		ContentType: pdfContentType,
		Content:     content,
	}, nil
}

func documentFilename(number string) string {
	name := slug.Make(number)
	if name == "" {
		name = "invoice"
	}
	return name + ".pdf"
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

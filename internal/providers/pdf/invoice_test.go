package pdf

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderInvoiceProducesPDF(t *testing.T) {
	r := New()
	out, err := r.RenderInvoice(context.Background(), InvoiceData{
		Number:     "INV-2026-0001",
		Status:     "sent",
		Currency:   "USD",
		IssueDate:  "2026-01-01",
		DueDate:    "2026-01-31",
		FromName:   "Owner",
		ClientName: "Acme",
		Items: []InvoiceItem{
			{Description: "Design", Quantity: "2.00", UnitPrice: "10.00", Amount: "20.00"},
		},
		Subtotal: "20.00",
		Tax:      "0.00",
		Total:    "20.00",
		Notes:    "Thanks",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderInvoiceRequiresNumber(t *testing.T) {
	_, err := New().RenderInvoice(context.Background(), InvoiceData{})
	assert.ErrorIs(t, err, ErrEmptyInvoice)
}

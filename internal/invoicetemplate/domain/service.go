package domain

import (
	"context"
	"errors"
)

type TemplateInput struct {
	Name string
	Data map[string]any
}

type Service interface {
	List(context.Context) ([]InvoiceTemplate, error)
	Get(ctx context.Context, id string) (InvoiceTemplate, error)
	Create(context.Context, TemplateInput) (InvoiceTemplate, error)
	Update(ctx context.Context, id string, input TemplateInput) (InvoiceTemplate, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidUser = errors.New("invalid_user")
	ErrInvalidName = errors.New("invalid_name")
	ErrInvalidID   = errors.New("invalid_id")
	ErrNotFound    = errors.New("not_found")
)

package domain

import (
	"context"
	"errors"
)

// ClientInput is shared by create and full update. Blank optional fields are stored as NULL.
type ClientInput struct {
	Name    string
	Email   *string
	Company *string
	Phone   *string
	Address *string
	TaxID   *string
}

type Service interface {
	List(context.Context) ([]Client, error)
	Get(ctx context.Context, id string) (Client, error)
	Create(context.Context, ClientInput) (Client, error)
	Update(ctx context.Context, id string, input ClientInput) (Client, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidUser  = errors.New("invalid_user")
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidEmail = errors.New("invalid_email")
	ErrInvalidID    = errors.New("invalid_id")
	ErrNotFound     = errors.New("not_found")
)

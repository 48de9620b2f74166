package domain

import (
	"context"
	"errors"
	"time"
)

type RegisterRequest struct {
	Email    string
	Password string
	Name     string
}

type LoginRequest struct {
	Email    string
	Password string
}

// UpdateProfileRequest only touches the fields that are set.
type UpdateProfileRequest struct {
	Name      *string
	Email     *string
	AvatarURL *string
}

type ChangePasswordRequest struct {
	CurrentPassword string
	NewPassword     string
}

type AuthResult struct {
	User      User      `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Service interface {
	Register(context.Context, RegisterRequest) (AuthResult, error)
	Login(context.Context, LoginRequest) (AuthResult, error)
	Me(context.Context) (User, error)
	UpdateProfile(context.Context, UpdateProfileRequest) (User, error)
	ChangePassword(context.Context, ChangePasswordRequest) error
}

var (
	ErrInvalidUser        = errors.New("invalid_user")
	ErrInvalidEmail       = errors.New("invalid_email")
	ErrInvalidName        = errors.New("invalid_name")
	ErrEmailTaken         = errors.New("email_taken")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrNothingToUpdate    = errors.New("nothing_to_update")
	ErrNotFound           = errors.New("not_found")
)

// WeakPasswordError lists every password rule the candidate broke.
type WeakPasswordError struct {
	Violations []error
}

func (e *WeakPasswordError) Error() string {
	return "weak_password"
}

func (e *WeakPasswordError) Unwrap() []error {
	return e.Violations
}

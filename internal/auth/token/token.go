package token

import (
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/invoicer/internal/clock"
	"github.com/smallbiznis/invoicer/internal/config"
	"go.uber.org/fx"
)

const issuer = "invoicer"

var (
	ErrInvalidToken   = errors.New("invalid_token")
	ErrExpiredToken   = errors.New("token_expired")
	ErrMissingSecret  = errors.New("jwt_secret_not_configured")
	ErrInvalidSubject = errors.New("invalid_subject")
)

var Module = fx.Module("auth.token",
	fx.Provide(NewFromConfig),
)

// Claims carries the authenticated owner. Subject holds the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Manager issues and verifies HS256 bearer tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

func NewFromConfig(cfg config.Config, clk clock.Clock) (*Manager, error) {
	return New(cfg.AuthJWTSecret, cfg.AuthJWTTTL, clk)
}

func New(secret string, ttl time.Duration, clk clock.Clock) (*Manager, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Manager{secret: []byte(secret), ttl: ttl, clock: clk}, nil
}

// Issue signs a token for the user and returns it with its expiry.
func (m *Manager) Issue(userID snowflake.ID, email string) (string, time.Time, error) {
	now := m.clock.Now()
	expiresAt := now.Add(m.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ulid.Make().String(),
			Issuer:    issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Parse verifies the signature and expiry and returns the owner id.
func (m *Manager) Parse(raw string) (snowflake.ID, *Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, nil, ErrExpiredToken
		}
		return 0, nil, ErrInvalidToken
	}
	if !parsed.Valid {
		return 0, nil, ErrInvalidToken
	}

	userID, err := snowflake.ParseString(claims.Subject)
	if err != nil || userID == 0 {
		return 0, nil, ErrInvalidSubject
	}
	return userID, claims, nil
}

package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// CodeConfig values are used verbatim; a zero TTL yields codes that are
// already expired.
type CodeConfig struct {
	TTL             time.Duration
	RateLimitWindow time.Duration
	RateLimitMax    int
}

func DefaultCodeConfig() CodeConfig {
	return CodeConfig{
		TTL:             10 * time.Minute,
		RateLimitWindow: 10 * time.Minute,
		RateLimitMax:    3,
	}
}

type SyncConfig struct {
	MinPasswordLength int
	ProviderTimeout   time.Duration
}

type PasswordConfig struct {
	MinPasswordLength int
	DevEmailFallback  bool
}

type Identity struct {
	ID    uuid.UUID
	Email string
}

type ProviderSession struct {
	AccessToken string
	ExpiresIn   int64
	Identity    Identity
}

type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}

// IdentityProvider is the external system of record for credentials.
type IdentityProvider interface {
	TokenVerifier
	CreateIdentity(ctx context.Context, email string, password string) (*Identity, error)
	DeleteIdentity(ctx context.Context, id uuid.UUID) error
	UpdatePassword(ctx context.Context, id uuid.UUID, password string) error
	SignIn(ctx context.Context, email string, password string) (*ProviderSession, error)
}

type EmailSender interface {
	SendVerificationCode(ctx context.Context, email string, code string) error
}

type CodeHasher interface {
	Hash(code string) (string, error)
	Verify(hash string, code string) bool
}

type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

type BcryptCodeHasher struct {
	Cost int
}

func (h BcryptCodeHasher) Hash(code string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(code), cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func (h BcryptCodeHasher) Verify(hash string, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}

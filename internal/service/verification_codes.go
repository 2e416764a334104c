package service

import (
	"context"
	"strings"
	"time"

	"sitecms/internal/entity"
	"sitecms/internal/metrics"
	"sitecms/internal/repository"
	"sitecms/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type CodeIssuer struct {
	codes  repository.VerificationCodeRepository
	hasher CodeHasher
	clock  Clock
	config CodeConfig
	logger logrus.FieldLogger
}

func NewCodeIssuer(
	codes repository.VerificationCodeRepository,
	hasher CodeHasher,
	clock Clock,
	config CodeConfig,
	logger logrus.FieldLogger,
) *CodeIssuer {
	return &CodeIssuer{
		codes:  codes,
		hasher: hasher,
		clock:  clock,
		config: config,
		logger: logger,
	}
}

// Issue stores the hash of a fresh code for userID and returns the
// plaintext. Nothing is written when the user is over the rate limit.
func (i *CodeIssuer) Issue(ctx context.Context, userID uuid.UUID) (string, error) {
	now := i.now()

	count, err := i.codes.CountCreatedSince(ctx, userID, now.Add(-i.config.RateLimitWindow))
	if err != nil {
		return "", internal("count verification codes", err)
	}
	if count >= int64(i.config.RateLimitMax) {
		metrics.CodesRejected.WithLabelValues("rate_limited").Inc()
		i.logger.WithField("user_id", userID).Warn("verification code rate limit reached")
		return "", ErrRateLimited
	}

	code, err := utils.GenerateNumericCode()
	if err != nil {
		return "", internal("generate verification code", err)
	}
	hash, err := i.hasher.Hash(code)
	if err != nil {
		return "", internal("hash verification code", err)
	}

	record := &entity.VerificationCode{
		UserID:    userID,
		CodeHash:  hash,
		Purpose:   entity.PurposePasswordChange,
		ExpiresAt: now.Add(i.config.TTL),
		CreatedAt: now,
	}
	if err := i.codes.Create(ctx, record); err != nil {
		return "", internal("store verification code", err)
	}

	metrics.CodesIssued.Inc()
	return code, nil
}

// Consume accepts plaintext at most once across concurrent callers. A
// successful match invalidates every other outstanding code of the user.
func (i *CodeIssuer) Consume(ctx context.Context, userID uuid.UUID, plaintext string) error {
	plaintext = strings.TrimSpace(plaintext)
	if plaintext == "" {
		return i.reject("empty")
	}

	now := i.now()
	candidates, err := i.codes.FindUsable(ctx, userID, now)
	if err != nil {
		return internal("load verification codes", err)
	}

	for _, candidate := range candidates {
		if !candidate.UsableAt(now) {
			continue
		}
		if !i.hasher.Verify(candidate.CodeHash, plaintext) {
			continue
		}

		consumed, err := i.codes.Consume(ctx, candidate.ID, userID, now)
		if err != nil {
			return internal("consume verification code", err)
		}
		if !consumed {
			return i.reject("already_used")
		}
		return nil
	}
	return i.reject("no_match")
}

func (i *CodeIssuer) reject(reason string) error {
	metrics.CodesRejected.WithLabelValues(reason).Inc()
	return ErrInvalidOrExpired
}

func (i *CodeIssuer) now() time.Time {
	if i.clock == nil {
		return time.Now()
	}
	return i.clock.Now()
}

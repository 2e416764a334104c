package service

import (
	"context"
	"errors"
	"testing"

	"sitecms/internal/entity"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordChangeWithSessionFlow(t *testing.T) {
	h := newHarness()
	user := h.seedUser("pw@x.com", "password123", entity.RoleEditor)
	principal := &Principal{ID: user.ID, Email: user.Email}
	ctx := context.Background()

	require.NoError(t, h.passwords.RequestCode(ctx, RequestCodeInput{Principal: principal}))
	code := h.sender.last("pw@x.com")
	require.Len(t, code, 6)

	err := h.passwords.ChangePassword(ctx, ChangePasswordInput{Principal: principal, Code: code, NewPassword: "brand-new-password"})
	require.NoError(t, err)
	assert.Equal(t, "brand-new-password", h.provider.passwords[user.ID])

	entries := h.audit.byAction(entity.AuditPasswordChange)
	require.Len(t, entries, 1)
	assert.Equal(t, user.ID, *entries[0].ActorID)
	assert.NotContains(t, string(entries[0].Changes), "brand-new-password")
	assert.NotContains(t, string(entries[0].Changes), code)

	err = h.passwords.ChangePassword(ctx, ChangePasswordInput{Principal: principal, Code: code, NewPassword: "another-password"})
	require.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestPasswordRequestWithCurrentPassword(t *testing.T) {
	h := newHarness()
	h.seedUser("pw@x.com", "password123", entity.RoleEditor)
	ctx := context.Background()

	err := h.passwords.RequestCode(ctx, RequestCodeInput{Email: "pw@x.com", CurrentPassword: "wrong"})
	require.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Empty(t, h.codes.rows)

	err = h.passwords.RequestCode(ctx, RequestCodeInput{Email: "pw@x.com"})
	require.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, h.passwords.RequestCode(ctx, RequestCodeInput{Email: "PW@x.com", CurrentPassword: "password123"}))
	code := h.sender.last("pw@x.com")

	err = h.passwords.ChangePassword(ctx, ChangePasswordInput{Email: "pw@x.com", Code: code, NewPassword: "brand-new-password"})
	require.NoError(t, err)
}

func TestPasswordRequestIsRateLimited(t *testing.T) {
	h := newHarness()
	user := h.seedUser("pw@x.com", "password123", entity.RoleEditor)
	principal := &Principal{ID: user.ID}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, h.passwords.RequestCode(ctx, RequestCodeInput{Principal: principal}))
	}
	err := h.passwords.RequestCode(ctx, RequestCodeInput{Principal: principal})
	require.ErrorIs(t, err, ErrRateLimited)
	assert.Len(t, h.sender.sent["pw@x.com"], 3)
}

func TestPasswordEmailFailureFallsBack(t *testing.T) {
	h := newHarness()
	user := h.seedUser("pw@x.com", "password123", entity.RoleEditor)
	h.sender.err = errors.New("smtp down")
	h.passwords.config.DevEmailFallback = true

	require.NoError(t, h.passwords.RequestCode(context.Background(), RequestCodeInput{Principal: &Principal{ID: user.ID}}))
	assert.True(t, h.logged(logrus.WarnLevel, "verification email not sent"))

	var fallback *logrus.Entry
	for _, entry := range h.logs.AllEntries() {
		if entry.Message == "DEVELOPMENT EMAIL FALLBACK: verification code" {
			fallback = entry
		}
	}
	require.NotNil(t, fallback)
	assert.Len(t, fallback.Data["code"], 6)
}

func TestPasswordNoTransportNeverLogsCode(t *testing.T) {
	h := newHarness()
	user := h.seedUser("pw@x.com", "password123", entity.RoleEditor)
	h.passwords.sender = nil

	require.NoError(t, h.passwords.RequestCode(context.Background(), RequestCodeInput{Principal: &Principal{ID: user.ID}}))
	assert.True(t, h.logged(logrus.WarnLevel, "no email transport, verification code not delivered"))
	for _, entry := range h.logs.AllEntries() {
		assert.NotContains(t, entry.Data, "code")
	}
}

func TestPasswordChangeFailures(t *testing.T) {
	h := newHarness()
	user := h.seedUser("pw@x.com", "password123", entity.RoleEditor)
	principal := &Principal{ID: user.ID}
	ctx := context.Background()

	err := h.passwords.ChangePassword(ctx, ChangePasswordInput{Principal: principal, Code: "123456", NewPassword: "short"})
	require.ErrorIs(t, err, ErrInvalidInput)

	err = h.passwords.ChangePassword(ctx, ChangePasswordInput{Email: "nobody@x.com", Code: "123456", NewPassword: "long-enough-password"})
	require.ErrorIs(t, err, ErrInvalidOrExpired)

	require.NoError(t, h.passwords.RequestCode(ctx, RequestCodeInput{Principal: principal}))
	code := h.sender.last("pw@x.com")
	h.provider.passwordErr = errors.New("provider down")
	err = h.passwords.ChangePassword(ctx, ChangePasswordInput{Principal: principal, Code: code, NewPassword: "long-enough-password"})
	require.ErrorIs(t, err, ErrInternal)
	assert.Empty(t, h.audit.byAction(entity.AuditPasswordChange))
}

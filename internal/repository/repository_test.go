package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"sitecms/internal/entity"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestConsumeMarksCodeAndSiblingsUsed(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVerificationCodeRepository(db)
	codeID, userID := uuid.New(), uuid.New()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id" FROM "verification_codes" WHERE user_id = $1 AND used_at IS NULL ORDER BY id FOR UPDATE`)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(codeID))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "verification_codes" SET "used_at"=$1 WHERE id = $2 AND user_id = $3 AND used_at IS NULL AND expires_at > $4`)).
		WithArgs(now, codeID, userID, now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "verification_codes" SET "used_at"=$1 WHERE user_id = $2 AND used_at IS NULL`)).
		WithArgs(now, userID).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	consumed, err := repo.Consume(context.Background(), codeID, userID, now)
	require.NoError(t, err)
	require.True(t, consumed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeLosingRaceDoesNotInvalidateSiblings(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVerificationCodeRepository(db)
	codeID, userID := uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id" FROM "verification_codes" WHERE user_id = $1 AND used_at IS NULL ORDER BY id FOR UPDATE`)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(codeID))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "verification_codes" SET "used_at"=$1`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	consumed, err := repo.Consume(context.Background(), codeID, userID, now)
	require.NoError(t, err)
	require.False(t, consumed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeLockConflictCountsAsLostRace(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVerificationCodeRepository(db)
	codeID, userID := uuid.New(), uuid.New()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "id" FROM "verification_codes" WHERE user_id = $1 AND used_at IS NULL ORDER BY id FOR UPDATE`)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(codeID))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "verification_codes" SET "used_at"=$1 WHERE id = $2`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "verification_codes" SET "used_at"=$1 WHERE user_id = $2 AND used_at IS NULL`)).
		WillReturnError(&pgconn.PgError{Code: "40P01", Message: "deadlock detected"})
	mock.ExpectRollback()

	consumed, err := repo.Consume(context.Background(), codeID, userID, now)
	require.NoError(t, err)
	require.False(t, consumed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountCreatedSince(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewVerificationCodeRepository(db)
	userID := uuid.New()
	since := time.Now().Add(-10 * time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "verification_codes" WHERE user_id = $1 AND created_at > $2`)).
		WithArgs(userID, since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountCreatedSince(context.Background(), userID, since)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserDeleteReportsRowsAffected(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	id := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "users" WHERE id = $1`)).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	rows, err := repo.Delete(context.Background(), id)
	require.NoError(t, err)
	require.EqualValues(t, 0, rows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserCreateTranslatesUniqueViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "users"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "idx_users_email"})

	err := repo.Create(context.Background(), &entity.User{
		ID:          uuid.New(),
		Email:       "a@x.com",
		DisplayName: "A",
		RoleID:      uuid.New(),
	})
	require.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestFindByEmailReturnsNilWhenMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE email = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}))

	user, err := repo.FindByEmail(context.Background(), "nobody@x.com")
	require.NoError(t, err)
	require.Nil(t, user)
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.True(t, isUniqueViolation(gorm.ErrDuplicatedKey))
	require.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	require.False(t, isUniqueViolation(nil))
}

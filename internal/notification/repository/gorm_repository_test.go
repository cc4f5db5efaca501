package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"notification-relay/internal/notification/domain"
)

func newDBWithMock(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestNotificationCreate_StoresJSONData(t *testing.T) {
	db, mock := newDBWithMock(t)
	repo := NewGormNotificationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "notifications"`)).
		WithArgs(1, nil, "tok", "Hi", "There", `{"orderId":42}`, "general", "pending",
			nil, nil, nil, nil, nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))
	mock.ExpectCommit()

	n := &domain.Notification{
		UserID:           1,
		DeviceToken:      "tok",
		Title:            "Hi",
		Body:             "There",
		Data:             datatypes.JSONMap{"orderId": 42},
		NotificationType: domain.DefaultNotificationType,
		Status:           domain.StatusPending,
	}
	require.NoError(t, repo.Create(context.Background(), n))
	assert.Equal(t, uint(11), n.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSent_OnlyMovesPendingRows(t *testing.T) {
	db, mock := newDBWithMock(t)
	repo := NewGormNotificationRepository(db)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	update := regexp.QuoteMeta(`UPDATE "notifications" SET "fcm_message_id"=$1,"sent_at"=$2,"status"=$3,"updated_at"=$4 WHERE id = $5 AND status = $6`)

	mock.ExpectBegin()
	mock.ExpectExec(update).
		WithArgs("projects/p/messages/1", at, "sent", at, 3, "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectExec(update).
		WithArgs("projects/p/messages/1", at, "sent", at, 3, "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	moved, err := repo.MarkSent(context.Background(), 3, "projects/p/messages/1", at)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = repo.MarkSent(context.Background(), 3, "projects/p/messages/1", at)
	require.NoError(t, err)
	assert.False(t, moved, "a redelivered message finds the row already terminal")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkFailed_InvalidToken(t *testing.T) {
	db, mock := newDBWithMock(t)
	repo := NewGormNotificationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "notifications" SET "fcm_error_code"=$1,"fcm_error_message"=$2,"status"=$3,"updated_at"=$4 WHERE id = $5 AND status = $6`)).
		WithArgs("messaging/registration-token-not-registered", "gone", "invalid_token", sqlmock.AnyArg(), 4, "pending").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	moved, err := repo.MarkFailed(context.Background(), 4, domain.StatusInvalidToken, "messaging/registration-token-not-registered", "gone")
	require.NoError(t, err)
	assert.True(t, moved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationList_ByUserAndStatus(t *testing.T) {
	db, mock := newDBWithMock(t)
	repo := NewGormNotificationRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "notifications" WHERE user_id = $1 AND status = $2`)).
		WithArgs(7, "failed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "notifications" WHERE user_id = $1 AND status = $2 ORDER BY created_at DESC LIMIT $3`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "device_token", "title", "body", "data", "status", "fcm_error_code", "created_at", "updated_at"}).
			AddRow(2, 7, "tok", "Hi", "There", []byte(`{"k":"v"}`), "failed", "messaging/unavailable", now, now))

	items, total, err := repo.List(context.Background(), domain.NotificationFilter{UserID: 7, Status: domain.StatusFailed, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, "v", items[0].Data["k"])
	require.NotNil(t, items[0].FcmErrorCode)
	assert.Equal(t, "messaging/unavailable", *items[0].FcmErrorCode)
}

func TestFcmJobCreate_IdenticalInputYieldsDistinctRows(t *testing.T) {
	db, mock := newDBWithMock(t)
	repo := NewGormFcmJobRepository(db)
	at := time.Now()
	id := "batch-1"
	msg := "projects/p/messages/9"

	for _, rowID := range []int{1, 2} {
		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "fcm_jobs"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(rowID))
		mock.ExpectCommit()
	}

	first := &domain.FcmJob{DeviceID: 5, Identifier: &id, MessageID: &msg, DeliverAt: at}
	second := &domain.FcmJob{DeviceID: 5, Identifier: &id, MessageID: &msg, DeliverAt: at}
	require.NoError(t, repo.Create(context.Background(), first))
	require.NoError(t, repo.Create(context.Background(), second))

	assert.NotEqual(t, first.ID, second.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFcmJobList_Filters(t *testing.T) {
	db, mock := newDBWithMock(t)
	repo := NewGormFcmJobRepository(db)
	deviceID := uint(5)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "fcm_jobs" WHERE device_id = $1 AND message_id = $2`)).
		WithArgs(5, "m-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "fcm_jobs" WHERE device_id = $1 AND message_id = $2 ORDER BY created_at DESC LIMIT $3`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	jobs, total, err := repo.List(context.Background(), domain.FcmJobFilter{DeviceID: &deviceID, MessageID: "m-1", Limit: 50})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, jobs)
}

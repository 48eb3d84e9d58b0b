package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/email-tracker/internal/domain"
)

func newMockStore(t *testing.T, prefix string) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, prefix), mock
}

func q(s string) string { return regexp.QuoteMeta(s) }

func TestNewTables_Prefix(t *testing.T) {
	assert.Equal(t, `"sent_emails"`, newTables("").sentEmails)
	assert.Equal(t, `"tracker_email_links"`, newTables("tracker").links)
}

func TestCreateSentEmail(t *testing.T) {
	s, mock := newMockStore(t, "")
	batch := int64(4)
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	e := &domain.SentEmail{
		Provider: domain.ProviderSES, MessageID: "m-1", Email: "a@example.com", BatchID: &batch,
		SentAt: at, BounceTracking: true,
	}

	mock.ExpectQuery(q(`INSERT INTO "sent_emails"`)).
		WithArgs("ses", "m-1", "a@example.com", int64(4), at, true, false, false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	require.NoError(t, s.CreateSentEmail(context.Background(), e))
	assert.Equal(t, int64(42), e.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateMessageID_NotFound(t *testing.T) {
	s, mock := newMockStore(t, "")
	mock.ExpectExec(q(`UPDATE "sent_emails" SET message_id = $2`)).
		WithArgs(int64(9), "provider-id").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.UpdateMessageID(context.Background(), 9, "provider-id")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func sentEmailRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "provider", "message_id", "email", "batch_id", "sent_at", "delivered_at",
		"bounce_tracking", "complaint_tracking", "delivery_tracking"})
}

func TestFindTracked(t *testing.T) {
	s, mock := newMockStore(t, "et")
	sentAt := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q(`WHERE message_id = $1 AND complaint_tracking = true`)).
		WithArgs("m-1").
		WillReturnRows(sentEmailRows().AddRow(7, "resend", "m-1", "a@example.com", nil, sentAt, nil, false, true, false))

	e, err := s.FindTracked(context.Background(), "m-1", domain.CategoryComplaint)
	require.NoError(t, err)
	assert.Equal(t, int64(7), e.ID)
	assert.Equal(t, domain.ProviderResend, e.Provider)
	assert.Nil(t, e.BatchID)
	assert.Nil(t, e.DeliveredAt)
	assert.True(t, e.ComplaintTracking)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindTracked_NotFound(t *testing.T) {
	s, mock := newMockStore(t, "")
	mock.ExpectQuery(q(`AND bounce_tracking = true`)).WithArgs("nope").WillReturnError(sql.ErrNoRows)

	_, err := s.FindTracked(context.Background(), "nope", domain.CategoryBounce)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFindOrCreateBatch(t *testing.T) {
	s, mock := newMockStore(t, "")
	mock.ExpectQuery(q(`ON CONFLICT (name)`)).WithArgs("spring").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	b, err := s.FindOrCreateBatch(context.Background(), "spring")
	require.NoError(t, err)
	assert.Equal(t, int64(3), b.ID)
	assert.Equal(t, "spring", b.Name)
}

func TestCreateBounce_Metadata(t *testing.T) {
	s, mock := newMockStore(t, "")
	at := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(q(`INSERT INTO "email_bounces"`)).
		WithArgs("ses", int64(7), "Permanent", "a@example.com", at, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(q(`INSERT INTO "email_bounces"`)).
		WithArgs("ses", int64(7), "Transient", "a@example.com", at, `{"k":"v"}`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))

	ctx := context.Background()
	require.NoError(t, s.CreateBounce(ctx, &domain.EmailBounce{
		Provider: domain.ProviderSES, SentEmailID: 7, Type: domain.BouncePermanent, Email: "a@example.com", BouncedAt: at,
	}))
	b := &domain.EmailBounce{
		Provider: domain.ProviderSES, SentEmailID: 7, Type: domain.BounceTransient, Email: "a@example.com", BouncedAt: at,
		Metadata: []byte(`{"k":"v"}`),
	}
	require.NoError(t, s.CreateBounce(ctx, b))
	assert.Equal(t, int64(2), b.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountBounces(t *testing.T) {
	s, mock := newMockStore(t, "")
	mock.ExpectQuery(q(`WHERE LOWER(email) = LOWER($1) AND provider = $2 AND type = $3`)).
		WithArgs("a@example.com", "ses", "Permanent").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(q(`SELECT COUNT(*) FROM "email_bounces" WHERE LOWER(email) = LOWER($1)`)).
		WithArgs("a@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))

	ctx := context.Background()
	n, err := s.CountBounces(ctx, "a@example.com", domain.ProviderSES, true)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.CountBounces(ctx, "a@example.com", "", false)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountComplaints(t *testing.T) {
	s, mock := newMockStore(t, "")
	mock.ExpectQuery(q(`FROM "email_complaints" WHERE LOWER(email) = LOWER($1) AND provider = $2`)).
		WithArgs("a@example.com", "postmark").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	n, err := s.CountComplaints(context.Background(), "a@example.com", domain.ProviderPostmark)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMarkOpened_FirstOpenOnly(t *testing.T) {
	s, mock := newMockStore(t, "")
	at := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	stmt := q(`UPDATE "email_opens" SET opened_at = $2 WHERE id = $1 AND opened_at IS NULL`)
	mock.ExpectExec(stmt).WithArgs(int64(1), at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(stmt).WithArgs(int64(1), at).WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	first, err := s.MarkOpened(ctx, 1, at)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := s.MarkOpened(ctx, 1, at)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestFindOpenByBeacon(t *testing.T) {
	s, mock := newMockStore(t, "")
	mock.ExpectQuery(q(`WHERE beacon_identifier = $1`)).WithArgs("b-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "sent_email_id", "beacon_identifier", "opened_at"}).
			AddRow(1, 7, "b-1", nil))
	mock.ExpectQuery(q(`WHERE beacon_identifier = $1`)).WithArgs("missing").WillReturnError(sql.ErrNoRows)

	ctx := context.Background()
	o, err := s.FindOpenByBeacon(ctx, "b-1")
	require.NoError(t, err)
	assert.Nil(t, o.OpenedAt)
	assert.Equal(t, int64(7), o.SentEmailID)

	_, err = s.FindOpenByBeacon(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRecordClick(t *testing.T) {
	s, mock := newMockStore(t, "")
	mock.ExpectQuery(q(`SET clicked = true, click_count = click_count + 1 WHERE id = $1 RETURNING click_count`)).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"click_count"}).AddRow(3))

	n, err := s.RecordClick(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestCreateLink(t *testing.T) {
	s, mock := newMockStore(t, "")
	mock.ExpectQuery(q(`INSERT INTO "email_links"`)).
		WithArgs(int64(7), "l-1", "https://example.com/a").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(11))

	l := &domain.EmailLink{SentEmailID: 7, LinkIdentifier: "l-1", OriginalURL: "https://example.com/a"}
	require.NoError(t, s.CreateLink(context.Background(), l))
	assert.Equal(t, int64(11), l.ID)
}

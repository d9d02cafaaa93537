package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vipul43/kiwis-outreach/internal/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock DB: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to open gorm: %v", err)
	}
	return db, mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unmet SQL expectations: %v", err)
	}
}

func TestCampaignRepository_CompareAndSetStatus(t *testing.T) {
	const updateSQL = `UPDATE "campaign" SET .* WHERE id = \$\d+ AND status = \$\d+`
	const selectSQL = `SELECT \* FROM "campaign" WHERE id = \$1`

	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "status matched",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(updateSQL).WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "status changed underneath",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(updateSQL).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(selectSQL).WillReturnRows(
					sqlmock.NewRows([]string{"id", "status"}).AddRow("c1", "paused"))
			},
			wantErr: ErrStatusChanged,
		},
		{
			name: "campaign missing",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(updateSQL).WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(selectSQL).WillReturnRows(sqlmock.NewRows([]string{"id", "status"}))
			},
			wantErr: ErrCampaignNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			tt.setup(mock)

			err := NewCampaignRepository(db).CompareAndSetStatus(context.Background(), "c1",
				models.CampaignStatusRunning, models.CampaignStatusPaused, nil)

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
			expectationsMet(t, mock)
		})
	}
}

func TestCampaignRepository_IncrementSentCount(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`UPDATE "campaign" SET "sent_count"=sent_count \+ 1.* WHERE id = \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := NewCampaignRepository(db).IncrementSentCount(context.Background(), "c1"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestCampaignRepository_ListDueScheduled(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT \* FROM "campaign" WHERE status = \$1 AND scheduled_date IS NOT NULL AND scheduled_date <= \$2 ORDER BY scheduled_date ASC`).
		WithArgs(models.CampaignStatusScheduled, now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}).AddRow("c1", "scheduled").AddRow("c2", "scheduled"))

	campaigns, err := NewCampaignRepository(db).ListDueScheduled(context.Background(), now)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(campaigns) != 2 || campaigns[0].ID != "c1" {
		t.Errorf("Unexpected campaigns: %+v", campaigns)
	}
	expectationsMet(t, mock)
}

func TestContactRepository_ListPending(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "contact" WHERE .*campaign_id = \$1 AND scheduled_for_processing = \$2 AND processed_at IS NULL.*NOT EXISTS .*e\.sent_at IS NOT NULL.*ORDER BY assigned_at ASC NULLS LAST,id ASC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).
			AddRow("a", "a@example.com").
			AddRow("b", "b@example.com"))

	contacts, err := NewContactRepository(db).ListPending(context.Background(), "c1", 2)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(contacts) != 2 || contacts[0].ID != "a" || contacts[1].Email != "b@example.com" {
		t.Errorf("Unexpected contacts: %+v", contacts)
	}
	expectationsMet(t, mock)
}

func TestContactRepository_MarkProcessed(t *testing.T) {
	tests := []struct {
		name        string
		rows        int64
		wantUpdated bool
	}{
		{name: "first call sets processed_at", rows: 1, wantUpdated: true},
		{name: "second call is a no-op", rows: 0, wantUpdated: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectExec(`UPDATE "contact" SET .* WHERE id = \$\d+ AND processed_at IS NULL`).
				WillReturnResult(sqlmock.NewResult(0, tt.rows))

			updated, err := NewContactRepository(db).MarkProcessed(context.Background(), "a", time.Now())
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if updated != tt.wantUpdated {
				t.Errorf("Expected updated=%v, got %v", tt.wantUpdated, updated)
			}
			expectationsMet(t, mock)
		})
	}
}

func TestContactRepository_IncrementAttempts(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`UPDATE contact\s+SET send_attempts = send_attempts \+ 1.*RETURNING send_attempts`).
		WillReturnRows(sqlmock.NewRows([]string{"send_attempts"}).AddRow(2))

	attempts, err := NewContactRepository(db).IncrementAttempts(context.Background(), "a", "backend error")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("Expected 2 attempts, got %d", attempts)
	}
	expectationsMet(t, mock)
}

func TestContactRepository_IncrementAttemptsMissing(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`UPDATE contact`).WillReturnRows(sqlmock.NewRows([]string{"send_attempts"}))

	_, err := NewContactRepository(db).IncrementAttempts(context.Background(), "gone", "x")
	if !errors.Is(err, ErrContactNotFound) {
		t.Errorf("Expected ErrContactNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestContactRepository_Assign(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`UPDATE "contact" SET .* WHERE id IN \(\$\d+,\$\d+\) AND campaign_id IS DISTINCT FROM \$\d+`).
		WillReturnResult(sqlmock.NewResult(0, 2))

	assigned, err := NewContactRepository(db).Assign(context.Background(), "c1", []string{"a", "b"}, time.Now())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if assigned != 2 {
		t.Errorf("Expected 2 assigned, got %d", assigned)
	}
	expectationsMet(t, mock)
}

func TestContactRepository_AssignEmpty(t *testing.T) {
	db, mock := newMockDB(t)

	assigned, err := NewContactRepository(db).Assign(context.Background(), "c1", nil, time.Now())
	if err != nil || assigned != 0 {
		t.Errorf("Expected no-op, got %d, %v", assigned, err)
	}
	expectationsMet(t, mock)
}

func TestContactRepository_Progress(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`(?s)COUNT\(\*\) AS total.*LEFT JOIN.*sent_at IS NOT NULL`).
		WithArgs("c1", "c1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "processed", "scheduled", "remaining"}).AddRow(5, 2, 5, 3))

	progress, err := NewContactRepository(db).Progress(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if progress.Total != 5 || progress.Processed != 2 || progress.Scheduled != 5 || progress.Remaining != 3 {
		t.Errorf("Unexpected progress: %+v", progress)
	}
	expectationsMet(t, mock)
}

func TestAccountRepository_GetByUserIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "account" WHERE "userId" = \$1 AND "providerId" = \$2 ORDER BY "updatedAt" DESC`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewAccountRepository(db).GetByUserID(context.Background(), "user-1")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestAccountRepository_UpdateTokens(t *testing.T) {
	tests := []struct {
		name         string
		refreshToken *string
		setPattern   string
	}{
		{name: "keeps refresh token", setPattern: `UPDATE "account" SET "accessToken"=\$1,"accessTokenExpiresAt"=\$2,"updatedAt"=\$3 WHERE id = \$4`},
		{name: "rotates refresh token", refreshToken: strPtr("refresh-2"), setPattern: `UPDATE "account" SET "accessToken"=\$1,"accessTokenExpiresAt"=\$2,"refreshToken"=\$3,"updatedAt"=\$4 WHERE id = \$5`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			mock.ExpectExec(tt.setPattern).WillReturnResult(sqlmock.NewResult(0, 1))

			err := NewAccountRepository(db).UpdateTokens(context.Background(), "acc-1", "new-access", tt.refreshToken, time.Now().Add(time.Hour))
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			expectationsMet(t, mock)
		})
	}
}

func TestAccountRepository_UpdateTokensMissing(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`UPDATE "account"`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewAccountRepository(db).UpdateTokens(context.Background(), "gone", "x", nil, time.Now())
	if !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("Expected ErrAccountNotFound, got %v", err)
	}
	expectationsMet(t, mock)
}

func TestEmailRepository_CountSentSince(t *testing.T) {
	db, mock := newMockDB(t)
	since := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "email" WHERE campaign_id = \$1 AND sent_at >= \$2`).
		WithArgs("c1", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := NewEmailRepository(db).CountSentSince(context.Background(), "c1", since)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3, got %d", count)
	}
	expectationsMet(t, mock)
}

func strPtr(s string) *string {
	return &s
}
